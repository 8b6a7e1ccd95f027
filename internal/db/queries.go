// internal/db/queries.go
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/marceldopr/volleyball-stats-pro-v3-sub003/internal/match"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// DBTX is the common surface of *sql.DB and *sql.Tx the queries run on.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries bundles the hand-written SQL for the scouting backend. It
// implements match.Store.
type Queries struct {
	db DBTX
}

// NewQueries binds the queries to a database or transaction.
func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

// CreateTeamParams holds the fields for CreateTeam.
type CreateTeamParams struct {
	ID     string
	Name   string
	Season string
}

// CreateTeam inserts a team row.
func (q *Queries) CreateTeam(ctx context.Context, params CreateTeamParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO teams (id, name, season) VALUES (?, ?, ?)`,
		params.ID, params.Name, params.Season,
	)
	if err != nil {
		return fmt.Errorf("create team %s: %w", params.ID, err)
	}
	return nil
}

// CreatePlayerParams holds the fields for CreatePlayer.
type CreatePlayerParams struct {
	ID     string
	TeamID string
	Name   string
	Number int
	Role   match.Role
}

// CreatePlayer inserts a roster player row.
func (q *Queries) CreatePlayer(ctx context.Context, params CreatePlayerParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO players (id, team_id, name, number, role) VALUES (?, ?, ?, ?, ?)`,
		params.ID, params.TeamID, params.Name, params.Number, string(params.Role),
	)
	if err != nil {
		return fmt.Errorf("create player %s: %w", params.ID, err)
	}
	return nil
}

// CreateMatchParams holds the fields for CreateMatch.
type CreateMatchParams struct {
	ID       string
	TeamID   string
	Opponent string
	OurSide  match.CourtSide
	PlayedAt time.Time
}

// CreateMatch inserts a match header row.
func (q *Queries) CreateMatch(ctx context.Context, params CreateMatchParams) error {
	playedAt := sql.NullTime{Time: params.PlayedAt, Valid: !params.PlayedAt.IsZero()}
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO matches (id, team_id, opponent, our_side, played_at) VALUES (?, ?, ?, ?, ?)`,
		params.ID, params.TeamID, params.Opponent, string(params.OurSide), playedAt,
	)
	if err != nil {
		return fmt.Errorf("create match %s: %w", params.ID, err)
	}
	return nil
}

// GetMatch loads a match header.
func (q *Queries) GetMatch(ctx context.Context, matchID string) (match.Info, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, team_id, opponent, our_side FROM matches WHERE id = ?`,
		matchID,
	)
	var info match.Info
	var ourSide string
	if err := row.Scan(&info.ID, &info.TeamID, &info.Opponent, &ourSide); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return match.Info{}, fmt.Errorf("match %s: %w", matchID, ErrNotFound)
		}
		return match.Info{}, fmt.Errorf("get match %s: %w", matchID, err)
	}
	info.OurSide = match.CourtSide(ourSide)
	return info, nil
}

// ListRoster loads the players of a team ordered by shirt number.
func (q *Queries) ListRoster(ctx context.Context, teamID string) ([]match.Player, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, name, number, role FROM players WHERE team_id = ? ORDER BY number, id`,
		teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("list roster %s: %w", teamID, err)
	}
	defer rows.Close()

	var roster []match.Player
	for rows.Next() {
		var player match.Player
		var role string
		if err := rows.Scan(&player.ID, &player.Name, &player.Number, &role); err != nil {
			return nil, fmt.Errorf("scan roster %s: %w", teamID, err)
		}
		player.Role = match.Role(role)
		roster = append(roster, player)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list roster %s: %w", teamID, err)
	}
	return roster, nil
}

// ListEvents loads the ordered event log of a match. Rows with payloads
// that no longer parse are returned with an empty payload so old logs
// still replay.
func (q *Queries) ListEvents(ctx context.Context, matchID string) ([]match.Event, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT event_id, type, payload, ts FROM match_events WHERE match_id = ? ORDER BY seq`,
		matchID,
	)
	if err != nil {
		return nil, fmt.Errorf("list events %s: %w", matchID, err)
	}
	defer rows.Close()

	var events []match.Event
	for rows.Next() {
		var ev match.Event
		var eventType, payload string
		if err := rows.Scan(&ev.ID, &eventType, &payload, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event %s: %w", matchID, err)
		}
		ev.Type = match.EventType(eventType)
		if err := json.Unmarshal([]byte(payload), &ev.Payload); err != nil {
			ev.Payload = match.Payload{}
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events %s: %w", matchID, err)
	}
	return events, nil
}

// AppendEvent writes one event row at the given sequence. Replays of the
// same event id or sequence are ignored, keeping retries idempotent.
func (q *Queries) AppendEvent(ctx context.Context, matchID string, seq int, ev match.Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshal event %s payload: %w", ev.ID, err)
	}
	_, err = q.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO match_events (match_id, seq, event_id, type, payload, ts)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		matchID, seq, ev.ID, string(ev.Type), string(payload), ev.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append event %s to match %s: %w", ev.ID, matchID, err)
	}
	return nil
}

// DeleteEventsAfter removes every event row at or beyond the given
// sequence, mirroring an in-memory log truncation.
func (q *Queries) DeleteEventsAfter(ctx context.Context, matchID string, seq int) error {
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM match_events WHERE match_id = ? AND seq >= ?`,
		matchID, seq,
	)
	if err != nil {
		return fmt.Errorf("delete events of match %s from seq %d: %w", matchID, seq, err)
	}
	return nil
}
