package match

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// EventStore persists the event log. The in-memory log remains the
// immediate source of truth; persistence is write-behind and retried, so a
// failed write never blocks further scoring.
type EventStore interface {
	AppendEvent(ctx context.Context, matchID string, seq int, ev Event) error
	DeleteEventsAfter(ctx context.Context, matchID string, seq int) error
}

// Session owns the live log and derived-state cache of one match. It is
// the only writer: all mutation goes through the append/truncate path, and
// every read serves from the cache rebuilt after each change.
type Session struct {
	MatchID string
	OurSide CourtSide

	mu             sync.Mutex
	roster         map[string]Player
	initialOnCourt map[Position]string
	events         *Log
	dismissed      []int
	state          DerivedState
	planned        []PlannedSub
	plannedSet     int            // set the queue was built for
	unsaved        map[string]int // event id -> seq, pending persistence
	store          EventStore
	guard          *DispatchGuard

	// persistMu orders store writes against truncation: persists hold the
	// read side across their INSERT, Truncate holds the write side across
	// its DELETE.
	persistMu sync.RWMutex
}

// NewSession builds a session from the context loaded at match start: the
// roster, our side designation, and the full ordered event history.
func NewSession(matchID string, ourSide CourtSide, roster []Player, initialOnCourt map[Position]string, events []Event, store EventStore) *Session {
	byID := make(map[string]Player, len(roster))
	for _, player := range roster {
		byID[player.ID] = player
	}
	s := &Session{
		MatchID:        matchID,
		OurSide:        ourSide,
		roster:         byID,
		initialOnCourt: initialOnCourt,
		events:         NewLog(events),
		unsaved:        make(map[string]int),
		store:          store,
		guard:          NewDispatchGuard(0, nil),
	}
	s.refold()
	return s
}

// Guard returns the duplicate-dispatch guard for this session.
func (s *Session) Guard() *DispatchGuard { return s.guard }

// Roster returns the read-only roster map keyed by player id.
func (s *Session) Roster() map[string]Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make(map[string]Player, len(s.roster))
	for id, player := range s.roster {
		copied[id] = player
	}
	return copied
}

// State returns the current derived state.
func (s *Session) State() DerivedState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// StateAt re-derives the state as of event index n (exclusive): the
// time-travel read.
func (s *Session) StateAt(n int) DerivedState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return CalculateDerivedState(s.events.Prefix(n), s.OurSide, s.initialOnCourt, s.dismissed)
}

// Events returns a copy of the committed log.
func (s *Session) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events.Events()
}

// Timeline renders the chronological projection using the session's own
// starting lineup and roster, so it folds the same context as State.
func (s *Session) Timeline() []TimelineEntry {
	s.mu.Lock()
	events := s.events.Events()
	s.mu.Unlock()
	return BuildTimeline(events, s.OurSide, s.initialOnCourt, s.roster)
}

// Analytics computes the aggregate statistics projections over the log.
func (s *Session) Analytics() MatchAnalytics {
	s.mu.Lock()
	events := s.events.Events()
	s.mu.Unlock()
	return MatchAnalytics{
		PlayerStats:   CalculatePlayerStats(events),
		Reception:     CalculateReceptionStats(events),
		Streaks:       LongestScoringStreaks(events),
		Substitutions: ExtractSubstitutions(events, s.OurSide, s.initialOnCourt),
		Timeouts:      ExtractTimeouts(events, s.OurSide, s.initialOnCourt),
	}
}

// Append adds an event to the log, rebuilds the derived state, and kicks
// off write-behind persistence. Duplicate ids are dropped silently so
// retried dispatches stay idempotent.
func (s *Session) Append(ctx context.Context, ev Event) error {
	if !ev.Type.IsValid() {
		return fmt.Errorf("append event: unknown type %q", ev.Type)
	}

	s.mu.Lock()
	if !s.events.Append(ev) {
		s.mu.Unlock()
		return nil
	}
	seq := s.events.Len() - 1
	s.unsaved[ev.ID] = seq
	s.refold()
	s.mu.Unlock()

	s.persistAsync(ev, seq)
	return nil
}

// Truncate drops every event after index n, rebuilds state, and removes
// the truncated rows from the store. This is the time-travel undo. It
// waits out in-flight write-behind persists so a truncated event cannot
// land in the store after the delete.
func (s *Session) Truncate(ctx context.Context, n int) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	s.events.Truncate(n)
	for id, seq := range s.unsaved {
		if seq >= n {
			delete(s.unsaved, id)
		}
	}
	s.refold()
	s.mu.Unlock()

	if s.store == nil {
		return nil
	}
	if err := s.store.DeleteEventsAfter(ctx, s.MatchID, n); err != nil {
		return fmt.Errorf("truncate match %s events: %w", s.MatchID, err)
	}
	return nil
}

// DismissSetSummary acknowledges a finished-set summary so it stops
// appearing in derived state.
func (s *Session) DismissSetSummary(setNumber int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, dismissed := range s.dismissed {
		if dismissed == setNumber {
			return
		}
	}
	s.dismissed = append(s.dismissed, setNumber)
	s.refold()
}

// QueueSubstitution validates a substitution against committed state plus
// the queue so far, and enqueues it when legal. A queue left over from a
// previous set is discarded before validation.
func (s *Session) QueueSubstitution(candidate PlannedSub) SubstitutionCheck {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropStaleQueue()
	check := CanAddToBatch(s.state.OnCourt, s.state.CurrentSetSubstitutions, s.planned, candidate)
	if check.Valid {
		s.plannedSet = s.state.CurrentSet
		s.planned = append(s.planned, candidate)
	}
	return check
}

// PlannedQueue returns a copy of the not-yet-committed substitution queue.
func (s *Session) PlannedQueue() []PlannedSub {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropStaleQueue()
	copied := make([]PlannedSub, len(s.planned))
	copy(copied, s.planned)
	return copied
}

// dropStaleQueue clears a queue built for a set that has since ended.
// Callers hold the mutex.
func (s *Session) dropStaleQueue() {
	if len(s.planned) > 0 && s.plannedSet != s.state.CurrentSet {
		log.Warn().
			Str("match_id", s.MatchID).
			Int("queued_set", s.plannedSet).
			Int("current_set", s.state.CurrentSet).
			Int("dropped", len(s.planned)).
			Msg("Discarding substitution queue from a previous set")
		s.planned = nil
	}
}

// ClearPlanned discards the queue without committing it.
func (s *Session) ClearPlanned() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.planned = nil
}

// CommitPlanned converts the queue into SUBSTITUTION events in order and
// clears it. Each event goes through the normal append path. A queue from
// a previous set is discarded, and entries the live state no longer
// allows are skipped.
func (s *Session) CommitPlanned(ctx context.Context) error {
	s.mu.Lock()
	s.dropStaleQueue()
	queue := s.planned
	s.planned = nil
	s.mu.Unlock()

	for _, sub := range queue {
		state := s.State()
		check := ValidateSubstitution(state.CurrentSetSubstitutions, sub.OutPlayerID, sub.InPlayerID, state.OnCourt)
		if !check.Valid {
			log.Warn().
				Str("match_id", s.MatchID).
				Str("out_player", sub.OutPlayerID).
				Str("in_player", sub.InPlayerID).
				Str("reason", check.Reason).
				Msg("Skipping queued substitution no longer legal")
			continue
		}
		ev := NewSubstitutionEvent(sub.OutPlayerID, sub.InPlayerID, sub.OutPosition)
		if err := s.Append(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// UnsavedCount reports how many appended events still await persistence.
func (s *Session) UnsavedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.unsaved)
}

// FlushUnsaved retries persistence of every pending event in log order.
// The first failure stops the flush; remaining events stay queued for the
// next attempt.
func (s *Session) FlushUnsaved(ctx context.Context) error {
	if s.store == nil {
		return nil
	}

	s.persistMu.RLock()
	defer s.persistMu.RUnlock()

	s.mu.Lock()
	type pending struct {
		ev  Event
		seq int
	}
	queue := make([]pending, 0, len(s.unsaved))
	all := s.events.Events()
	for id, seq := range s.unsaved {
		if seq < len(all) && all[seq].ID == id {
			queue = append(queue, pending{ev: all[seq], seq: seq})
		}
	}
	s.mu.Unlock()
	sort.Slice(queue, func(i, j int) bool { return queue[i].seq < queue[j].seq })

	for _, item := range queue {
		if err := s.store.AppendEvent(ctx, s.MatchID, item.seq, item.ev); err != nil {
			return fmt.Errorf("flush match %s event %s: %w", s.MatchID, item.ev.ID, err)
		}
		s.mu.Lock()
		delete(s.unsaved, item.ev.ID)
		s.mu.Unlock()
	}
	return nil
}

// refold rebuilds the derived-state cache. Callers hold the mutex.
func (s *Session) refold() {
	s.state = CalculateDerivedState(s.events.Events(), s.OurSide, s.initialOnCourt, s.dismissed)
}

// persistAsync writes the event through to the store without blocking the
// scoring path. Failures stay in the unsaved set for the retry job. A
// concurrent Truncate removes the event from the unsaved set first, so
// the pending check below keeps undone events out of the store.
func (s *Session) persistAsync(ev Event, seq int) {
	if s.store == nil {
		return
	}
	go func() {
		s.persistMu.RLock()
		defer s.persistMu.RUnlock()

		s.mu.Lock()
		got, pending := s.unsaved[ev.ID]
		s.mu.Unlock()
		if !pending || got != seq {
			return
		}

		ctx := context.Background()
		if err := s.store.AppendEvent(ctx, s.MatchID, seq, ev); err != nil {
			log.Warn().Err(err).
				Str("match_id", s.MatchID).
				Str("event_id", ev.ID).
				Int("seq", seq).
				Msg("Event persistence failed; will retry")
			return
		}
		s.mu.Lock()
		delete(s.unsaved, ev.ID)
		s.mu.Unlock()
	}()
}
