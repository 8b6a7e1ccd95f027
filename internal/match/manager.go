package match

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Info is the match header loaded from the store.
type Info struct {
	ID       string    `json:"id"`
	TeamID   string    `json:"teamId"`
	Opponent string    `json:"opponent"`
	OurSide  CourtSide `json:"ourSide"`
}

// Store is the full persistence boundary a manager needs: match headers,
// rosters, and the event log.
type Store interface {
	EventStore
	GetMatch(ctx context.Context, matchID string) (Info, error)
	ListRoster(ctx context.Context, teamID string) ([]Player, error)
	ListEvents(ctx context.Context, matchID string) ([]Event, error)
}

// Manager loads and caches live match sessions. One session exists per
// match; every handler goes through here so the single-writer ownership
// of the log holds process-wide.
type Manager struct {
	store Store

	// DispatchWindow overrides the duplicate-tap suppression window of
	// newly loaded sessions when positive.
	DispatchWindow time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager backed by the given store.
func NewManager(store Store) *Manager {
	return &Manager{
		store:    store,
		sessions: make(map[string]*Session),
	}
}

// Session returns the live session for a match, loading roster and event
// history from the store on first access.
func (m *Manager) Session(ctx context.Context, matchID string) (*Session, error) {
	m.mu.Lock()
	if session, ok := m.sessions[matchID]; ok {
		m.mu.Unlock()
		return session, nil
	}
	m.mu.Unlock()

	info, err := m.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("load match %s: %w", matchID, err)
	}
	roster, err := m.store.ListRoster(ctx, info.TeamID)
	if err != nil {
		return nil, fmt.Errorf("load roster for match %s: %w", matchID, err)
	}
	events, err := m.store.ListEvents(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("load events for match %s: %w", matchID, err)
	}

	session := NewSession(matchID, info.OurSide, roster, nil, events, m.store)
	if m.DispatchWindow > 0 {
		session.guard = NewDispatchGuard(m.DispatchWindow, nil)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[matchID]; ok {
		// Another request loaded it first; keep the existing writer.
		return existing, nil
	}
	m.sessions[matchID] = session
	log.Info().
		Str("match_id", matchID).
		Int("events", len(events)).
		Int("roster", len(roster)).
		Msg("Match session loaded")
	return session, nil
}

// Sessions returns the currently loaded sessions.
func (m *Manager) Sessions() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}
	return sessions
}

// Release drops a cached session, typically after the match is persisted
// and closed.
func (m *Manager) Release(matchID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, matchID)
}

// FlushAll retries persistence for every loaded session. Used by the
// scheduled retry job; failures are logged and do not stop other sessions.
func (m *Manager) FlushAll(ctx context.Context) {
	for _, session := range m.Sessions() {
		if session.UnsavedCount() == 0 {
			continue
		}
		if err := session.FlushUnsaved(ctx); err != nil {
			log.Warn().Err(err).
				Str("match_id", session.MatchID).
				Int("pending", session.UnsavedCount()).
				Msg("Event flush failed; will retry on next run")
		}
	}
}
