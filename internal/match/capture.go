package match

import (
	"fmt"
	"sync"
	"time"
)

// ActionKind is a semantic scoring action as pressed in the UI.
type ActionKind string

const (
	ActionAttackPoint   ActionKind = "attack_point"
	ActionBlockPoint    ActionKind = "block_point"
	ActionServiceAce    ActionKind = "service_ace"
	ActionServiceError  ActionKind = "service_error"
	ActionOpponentError ActionKind = "opponent_error"
	ActionOpponentPoint ActionKind = "opponent_point"
	ActionUnforcedError ActionKind = "unforced_error"
	ActionFreeballSent  ActionKind = "freeball_sent"
)

// Resolution maps a semantic action to the event it produces and whether a
// player-attribution step is required before dispatch.
type Resolution struct {
	EventType   EventType
	Scorer      TeamRef
	Reason      string
	NeedsPlayer bool
}

// ResolveAction classifies a UI action. Opponent errors and opponent points
// never need attribution (the fault is not ours to assign); our unforced
// errors are dispatched directly on the opponent side; every other action
// requires choosing which of our players performed it.
func ResolveAction(kind ActionKind) (Resolution, error) {
	switch kind {
	case ActionAttackPoint:
		return Resolution{EventType: EventPointUs, Scorer: TeamUs, Reason: "attack", NeedsPlayer: true}, nil
	case ActionBlockPoint:
		return Resolution{EventType: EventPointUs, Scorer: TeamUs, Reason: "block", NeedsPlayer: true}, nil
	case ActionServiceAce:
		return Resolution{EventType: EventPointUs, Scorer: TeamUs, Reason: "service_ace", NeedsPlayer: true}, nil
	case ActionOpponentError:
		return Resolution{EventType: EventPointUs, Scorer: TeamUs, Reason: "opponent_error"}, nil
	case ActionServiceError:
		return Resolution{EventType: EventPointOpponent, Scorer: TeamOpponent, Reason: "service_error", NeedsPlayer: true}, nil
	case ActionOpponentPoint:
		return Resolution{EventType: EventPointOpponent, Scorer: TeamOpponent, Reason: "opponent_point"}, nil
	case ActionUnforcedError:
		return Resolution{EventType: EventPointOpponent, Scorer: TeamOpponent, Reason: "unforced_error"}, nil
	case ActionFreeballSent:
		return Resolution{EventType: EventFreeballSent, Scorer: TeamUs, Reason: "freeball_sent", NeedsPlayer: true}, nil
	default:
		return Resolution{}, fmt.Errorf("unknown action kind: %s", kind)
	}
}

// BuildEvent turns a resolution plus the chosen player (empty when no
// attribution was needed) into the event to append.
func (r Resolution) BuildEvent(playerID string) Event {
	switch r.EventType {
	case EventFreeballSent, EventFreeballReceived, EventFreeball:
		return NewFreeballEvent(r.EventType, playerID)
	default:
		return NewPointEvent(r.Scorer, r.Reason, playerID)
	}
}

// Clock abstracts time for testing guard behavior.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// DefaultDispatchWindow is how long repeated taps of the same action are
// suppressed while one is in flight. A responsiveness guard, not a
// correctness guarantee.
const DefaultDispatchWindow = 200 * time.Millisecond

// DispatchGuard suppresses duplicate dispatches from rapid repeated taps.
type DispatchGuard struct {
	window time.Duration
	clock  Clock

	mu   sync.Mutex
	last map[ActionKind]time.Time
}

// NewDispatchGuard creates a guard with the given suppression window.
// A zero window uses the default; a nil clock uses real time.
func NewDispatchGuard(window time.Duration, clock Clock) *DispatchGuard {
	if window <= 0 {
		window = DefaultDispatchWindow
	}
	if clock == nil {
		clock = realClock{}
	}
	return &DispatchGuard{
		window: window,
		clock:  clock,
		last:   make(map[ActionKind]time.Time),
	}
}

// Allow reports whether the action may dispatch now, and records it if so.
func (g *DispatchGuard) Allow(kind ActionKind) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	if last, ok := g.last[kind]; ok && now.Sub(last) < g.window {
		return false
	}
	g.last[kind] = now
	return true
}
