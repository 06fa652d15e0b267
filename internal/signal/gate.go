// internal/signal/gate.go
package signal

import (
	"errors"
	"sync"
	"time"
)

// ErrInvalidThreshold indicates the closure threshold must be in (0, 1]
var ErrInvalidThreshold = errors.New("closure threshold must be greater than 0.0 and at most 1.0")

// Gate turns a continuous closure coefficient (0.0 = fully open, 1.0 = fully
// closed) into discrete transitions. Repeated samples in the same state are
// swallowed, so only changes reach the decoder.
type Gate struct {
	threshold float64

	mu    sync.Mutex
	state State
}

// NewGate creates a gate that starts Open.
func NewGate(threshold float64) (*Gate, error) {
	if threshold <= 0 || threshold > 1 {
		return nil, ErrInvalidThreshold
	}
	return &Gate{threshold: threshold, state: Open}, nil
}

// Sample feeds one coefficient reading taken at the given time. It returns
// the transition and true when the state changed.
func (g *Gate) Sample(coefficient float64, at time.Time) (Event, bool) {
	next := Open
	if coefficient >= g.threshold {
		next = Closed
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if next == g.state {
		return Event{}, false
	}
	g.state = next
	return Event{State: next, Timestamp: at}, true
}

// Set forces the gate to a discrete level, as a touch or key source would.
func (g *Gate) Set(closed bool, at time.Time) (Event, bool) {
	if closed {
		return g.Sample(1, at)
	}
	return g.Sample(0, at)
}

// State returns the last emitted state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Threshold returns the configured closure threshold.
func (g *Gate) Threshold() float64 {
	return g.threshold
}
