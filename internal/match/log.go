package match

// maxDedupScan bounds the backward duplicate scan on append. It is enough
// to catch double-taps and transient retry double-submissions without
// turning every append into a full log walk.
const maxDedupScan = 100

// Log is the append-only, in-memory event log of one match. It is not
// safe for concurrent use; the owning session serializes access
// (single-writer model).
type Log struct {
	events []Event
}

// NewLog wraps an already-ordered event slice, normally loaded from the
// store at session start.
func NewLog(events []Event) *Log {
	copied := make([]Event, len(events))
	copy(copied, events)
	return &Log{events: copied}
}

// Append adds an event to the log. It returns false when an event with the
// same id was recently appended, so retried dispatches stay idempotent.
func (l *Log) Append(ev Event) bool {
	for i, scanned := len(l.events)-1, 0; i >= 0 && scanned < maxDedupScan; i, scanned = i-1, scanned+1 {
		if l.events[i].ID == ev.ID {
			return false
		}
	}
	l.events = append(l.events, ev)
	return true
}

// Len returns the number of events in the log.
func (l *Log) Len() int {
	return len(l.events)
}

// Events returns a copy of the full log in order.
func (l *Log) Events() []Event {
	copied := make([]Event, len(l.events))
	copy(copied, l.events)
	return copied
}

// Prefix returns a copy of the first n events, for time-travel derivation.
func (l *Log) Prefix(n int) []Event {
	if n < 0 {
		n = 0
	}
	if n > len(l.events) {
		n = len(l.events)
	}
	copied := make([]Event, n)
	copy(copied, l.events[:n])
	return copied
}

// Truncate drops every event after index n (exclusive). Undoing is always
// a truncation to a prior index or a compensating append, never an in-place
// edit of history.
func (l *Log) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	if n >= len(l.events) {
		return
	}
	l.events = l.events[:n]
}
