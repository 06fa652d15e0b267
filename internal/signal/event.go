// internal/signal/event.go

// Package signal defines the two-state input events consumed by the Morse decoder.
package signal

import (
	"fmt"
	"time"
)

// State is the level of a two-state input (eye, key, tone).
type State uint8

const (
	// Open is the resting state: eye open, key up, no tone.
	Open State = iota
	// Closed is the active state: eye closed, key down, tone present.
	Closed
)

// DefaultClosureThreshold is the closure coefficient at or above which an
// eye is considered closed.
const DefaultClosureThreshold = 0.85

// String implements fmt.Stringer
func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// ParseState parses "open" or "closed" (also accepts "up"/"down", "off"/"on").
func ParseState(s string) (State, error) {
	switch s {
	case "open", "up", "off":
		return Open, nil
	case "closed", "down", "on":
		return Closed, nil
	}
	return 0, fmt.Errorf("unknown signal state %q", s)
}

// Event is a single state transition. Sources must emit events with strictly
// increasing timestamps and alternating states.
type Event struct {
	State     State
	Timestamp time.Time
}

// FromDurations converts alternating closed/open interval lengths into the
// transitions that delimit them. The first interval is closed and begins at
// start. An open interval is terminated by the next closed-begin, so a
// trailing open interval produces no event; end reports when the last
// interval finishes so callers can advance their clock past it.
func FromDurations(start time.Time, durations ...time.Duration) (events []Event, end time.Time) {
	end = start
	for i, d := range durations {
		if i%2 == 0 {
			events = append(events,
				Event{State: Closed, Timestamp: end},
				Event{State: Open, Timestamp: end.Add(d)},
			)
		}
		end = end.Add(d)
	}
	return events, end
}
