package match

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// fakeMatchStore implements Store over fixed in-memory fixtures.
type fakeMatchStore struct {
	*fakeStore
	mu      sync.Mutex
	matches map[string]Info
	rosters map[string][]Player
	events  map[string][]Event
	loads   int
}

func newFakeMatchStore() *fakeMatchStore {
	return &fakeMatchStore{
		fakeStore: newFakeStore(),
		matches: map[string]Info{
			"match-1": {ID: "match-1", TeamID: "team-1", Opponent: "CV Rivales", OurSide: SideHome},
		},
		rosters: map[string][]Player{
			"team-1": {
				{ID: "p1", Name: "Ana", Number: 4, Role: RoleSetter},
				{ID: "p7", Name: "Bea", Number: 12, Role: RoleOutside},
			},
		},
		events: map[string][]Event{},
	}
}

func (s *fakeMatchStore) GetMatch(ctx context.Context, matchID string) (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	info, ok := s.matches[matchID]
	if !ok {
		return Info{}, errors.New("match not found")
	}
	return info, nil
}

func (s *fakeMatchStore) ListRoster(ctx context.Context, teamID string) ([]Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rosters[teamID], nil
}

func (s *fakeMatchStore) ListEvents(ctx context.Context, matchID string) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[matchID], nil
}

func TestManager_SessionLoadsAndCaches(t *testing.T) {
	store := newFakeMatchStore()
	store.events["match-1"] = []Event{NewPointEvent(TeamUs, "", "")}
	manager := NewManager(store)
	ctx := context.Background()

	session, err := manager.Session(ctx, "match-1")
	if err != nil {
		t.Fatalf("Session failed: %v", err)
	}
	if session.OurSide != SideHome {
		t.Errorf("OurSide = %q, want home", session.OurSide)
	}
	if got := session.State().HomeScore; got != 1 {
		t.Errorf("replayed HomeScore = %d, want 1", got)
	}
	if len(session.Roster()) != 2 {
		t.Errorf("roster len = %d, want 2", len(session.Roster()))
	}

	again, err := manager.Session(ctx, "match-1")
	if err != nil {
		t.Fatal(err)
	}
	if again != session {
		t.Error("second access should return the cached session")
	}
	store.mu.Lock()
	loads := store.loads
	store.mu.Unlock()
	if loads != 1 {
		t.Errorf("store loads = %d, want 1", loads)
	}
}

func TestManager_SessionUnknownMatch(t *testing.T) {
	manager := NewManager(newFakeMatchStore())
	if _, err := manager.Session(context.Background(), "nope"); err == nil {
		t.Error("loading an unknown match should fail")
	}
}

func TestManager_Release(t *testing.T) {
	store := newFakeMatchStore()
	manager := NewManager(store)
	ctx := context.Background()

	first, err := manager.Session(ctx, "match-1")
	if err != nil {
		t.Fatal(err)
	}
	manager.Release("match-1")

	second, err := manager.Session(ctx, "match-1")
	if err != nil {
		t.Fatal(err)
	}
	if second == first {
		t.Error("released session should be reloaded fresh")
	}
}

func TestManager_FlushAllRetriesPending(t *testing.T) {
	store := newFakeMatchStore()
	store.setFailing(true)
	manager := NewManager(store)
	ctx := context.Background()

	session, err := manager.Session(ctx, "match-1")
	if err != nil {
		t.Fatal(err)
	}
	ev := NewPointEvent(TeamUs, "attack", "p1")
	if err := session.Append(ctx, ev); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return store.attemptCount() >= 1 }, "persist attempt never ran")
	if session.UnsavedCount() != 1 {
		t.Fatalf("UnsavedCount = %d, want 1", session.UnsavedCount())
	}

	store.setFailing(false)
	manager.FlushAll(ctx)

	if session.UnsavedCount() != 0 {
		t.Errorf("UnsavedCount after FlushAll = %d, want 0", session.UnsavedCount())
	}
	if _, ok := store.appendedSeq(ev.ID); !ok {
		t.Error("flushed event missing from the store")
	}
}
