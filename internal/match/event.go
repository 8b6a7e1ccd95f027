// Package match implements the live-match scouting engine: an append-only
// log of typed match events plus the pure derivation, validation, and
// projection functions that run on top of it. State is never stored as a
// source of truth; it is recomputed by replaying the log.
package match

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies the kind of a match event.
type EventType string

const (
	// EventSetLineup records the starting lineup and libero for a set.
	EventSetLineup EventType = "SET_LINEUP"
	// EventSetServiceChoice records which side serves first in a set.
	EventSetServiceChoice EventType = "SET_SERVICE_CHOICE"
	// EventSetStart marks the beginning of a set.
	EventSetStart EventType = "SET_START"
	// EventSetEnd closes a set that did not finish by reaching the threshold.
	EventSetEnd EventType = "SET_END"
	// EventPointUs records a point scored by our team.
	EventPointUs EventType = "POINT_US"
	// EventPointOpponent records a point scored by the opponent.
	EventPointOpponent EventType = "POINT_OPPONENT"
	// EventSubstitution records a field substitution or a libero swap.
	EventSubstitution EventType = "SUBSTITUTION"
	// EventTimeout records a timeout called by either side.
	EventTimeout EventType = "TIMEOUT"
	// EventReceptionEval records a 0-4 reception rating for one of our players.
	EventReceptionEval EventType = "RECEPTION_EVAL"
	// EventFreeball records a generic freeball rally touch.
	EventFreeball EventType = "FREEBALL"
	// EventFreeballSent records a freeball sent to the opponent court.
	EventFreeballSent EventType = "FREEBALL_SENT"
	// EventFreeballReceived records a freeball received from the opponent.
	EventFreeballReceived EventType = "FREEBALL_RECEIVED"
)

// IsValid reports whether the event type is one of the known tags.
func (t EventType) IsValid() bool {
	switch t {
	case EventSetLineup, EventSetServiceChoice, EventSetStart, EventSetEnd,
		EventPointUs, EventPointOpponent, EventSubstitution, EventTimeout,
		EventReceptionEval, EventFreeball, EventFreeballSent, EventFreeballReceived:
		return true
	}
	return false
}

// CourtSide names a physical side of the scoresheet.
type CourtSide string

const (
	SideHome CourtSide = "home"
	SideAway CourtSide = "away"
)

// Opposite returns the other court side.
func (s CourtSide) Opposite() CourtSide {
	if s == SideHome {
		return SideAway
	}
	return SideHome
}

// TeamRef names a team relative to us.
type TeamRef string

const (
	TeamUs       TeamRef = "us"
	TeamOpponent TeamRef = "opponent"
)

// Opposite returns the other team reference.
func (t TeamRef) Opposite() TeamRef {
	if t == TeamUs {
		return TeamOpponent
	}
	return TeamUs
}

// Position is an on-court rotation position, 1 through 6.
type Position int

// Role is a roster position code.
type Role string

const (
	RoleSetter   Role = "S"
	RoleOutside  Role = "OH"
	RoleMiddle   Role = "MB"
	RoleOpposite Role = "OPP"
	RoleLibero   Role = "L"
)

// Player is the read-only roster context supplied at match load.
type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Number int    `json:"number"`
	Role   Role   `json:"role"`
}

// LineupPayload carries the starting positions for a set.
type LineupPayload struct {
	SetNumber int                 `json:"setNumber"`
	Positions map[Position]string `json:"positions"`
	LiberoID  string              `json:"liberoId,omitempty"`
}

// ServiceChoicePayload records the first-serving side of a set.
type ServiceChoicePayload struct {
	SetNumber int     `json:"setNumber"`
	Serving   TeamRef `json:"serving"`
}

// SetPayload names the set a SET_START or SET_END refers to.
type SetPayload struct {
	SetNumber int `json:"setNumber"`
}

// PointPayload carries the reason code and optional attribution of a point.
type PointPayload struct {
	Reason   string `json:"reason,omitempty"`
	PlayerID string `json:"playerId,omitempty"`
}

// SubstitutionPayload describes a player swap.
type SubstitutionPayload struct {
	OutPlayerID  string   `json:"outPlayerId"`
	InPlayerID   string   `json:"inPlayerId"`
	Position     Position `json:"position,omitempty"`
	IsLiberoSwap bool     `json:"isLiberoSwap,omitempty"`
}

// TimeoutPayload names the side that called the timeout.
type TimeoutPayload struct {
	Side CourtSide `json:"side"`
}

// ReceptionPayload carries a 0-4 reception rating.
type ReceptionPayload struct {
	PlayerID string `json:"playerId"`
	Rating   int    `json:"rating"`
}

// FreeballPayload optionally attributes a freeball touch.
type FreeballPayload struct {
	PlayerID string `json:"playerId,omitempty"`
}

// Payload is the tag-specific data of an event. Exactly one field is set
// for a well-formed event; the fold treats missing fields defensively.
type Payload struct {
	Lineup        *LineupPayload        `json:"lineup,omitempty"`
	ServiceChoice *ServiceChoicePayload `json:"serviceChoice,omitempty"`
	Set           *SetPayload           `json:"set,omitempty"`
	Point         *PointPayload         `json:"point,omitempty"`
	Substitution  *SubstitutionPayload  `json:"substitution,omitempty"`
	Timeout       *TimeoutPayload       `json:"timeout,omitempty"`
	Reception     *ReceptionPayload     `json:"reception,omitempty"`
	Freeball      *FreeballPayload      `json:"freeball,omitempty"`
}

// Event is the atomic unit of truth for a match. Events are immutable once
// appended; corrections are made by appending compensating events.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   Payload   `json:"payload"`
}

func newEvent(t EventType, p Payload) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      t,
		Timestamp: time.Now().UTC(),
		Payload:   p,
	}
}

// NewLineupEvent builds a SET_LINEUP event for the given set.
func NewLineupEvent(setNumber int, positions map[Position]string, liberoID string) Event {
	copied := make(map[Position]string, len(positions))
	for pos, id := range positions {
		copied[pos] = id
	}
	return newEvent(EventSetLineup, Payload{Lineup: &LineupPayload{
		SetNumber: setNumber,
		Positions: copied,
		LiberoID:  liberoID,
	}})
}

// NewServiceChoiceEvent builds a SET_SERVICE_CHOICE event.
func NewServiceChoiceEvent(setNumber int, serving TeamRef) Event {
	return newEvent(EventSetServiceChoice, Payload{ServiceChoice: &ServiceChoicePayload{
		SetNumber: setNumber,
		Serving:   serving,
	}})
}

// NewSetStartEvent builds a SET_START event.
func NewSetStartEvent(setNumber int) Event {
	return newEvent(EventSetStart, Payload{Set: &SetPayload{SetNumber: setNumber}})
}

// NewSetEndEvent builds a SET_END event.
func NewSetEndEvent(setNumber int) Event {
	return newEvent(EventSetEnd, Payload{Set: &SetPayload{SetNumber: setNumber}})
}

// NewPointEvent builds a POINT_US or POINT_OPPONENT event.
func NewPointEvent(scorer TeamRef, reason, playerID string) Event {
	t := EventPointUs
	if scorer == TeamOpponent {
		t = EventPointOpponent
	}
	return newEvent(t, Payload{Point: &PointPayload{Reason: reason, PlayerID: playerID}})
}

// NewSubstitutionEvent builds a SUBSTITUTION event for a field swap.
func NewSubstitutionEvent(outID, inID string, position Position) Event {
	return newEvent(EventSubstitution, Payload{Substitution: &SubstitutionPayload{
		OutPlayerID: outID,
		InPlayerID:  inID,
		Position:    position,
	}})
}

// NewLiberoSwapEvent builds a SUBSTITUTION event for a libero swap, which
// does not consume the field-substitution budget.
func NewLiberoSwapEvent(outID, inID string) Event {
	return newEvent(EventSubstitution, Payload{Substitution: &SubstitutionPayload{
		OutPlayerID:  outID,
		InPlayerID:   inID,
		IsLiberoSwap: true,
	}})
}

// NewTimeoutEvent builds a TIMEOUT event.
func NewTimeoutEvent(side CourtSide) Event {
	return newEvent(EventTimeout, Payload{Timeout: &TimeoutPayload{Side: side}})
}

// NewReceptionEvent builds a RECEPTION_EVAL event. Rating runs 0 (direct
// error) to 4 (perfect).
func NewReceptionEvent(playerID string, rating int) Event {
	return newEvent(EventReceptionEval, Payload{Reception: &ReceptionPayload{
		PlayerID: playerID,
		Rating:   rating,
	}})
}

// NewFreeballEvent builds one of the freeball events.
func NewFreeballEvent(t EventType, playerID string) Event {
	return newEvent(t, Payload{Freeball: &FreeballPayload{PlayerID: playerID}})
}
