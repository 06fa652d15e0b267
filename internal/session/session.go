// internal/session/session.go

// Package session drives a decoder from a live or recorded event source and
// owns the commit timer.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ColonelBlimp/morsevision/internal/morse"
	"github.com/ColonelBlimp/morsevision/internal/recovery"
	"github.com/ColonelBlimp/morsevision/internal/signal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrDecoderRequired indicates a session needs a decoder
var ErrDecoderRequired = errors.New("decoder is required")

// Producer writes events to out until it runs dry or ctx is done. It must
// not close out; the session does that when the producer returns.
type Producer func(ctx context.Context, out chan<- signal.Event) error

// Session feeds events into one decoder and fires its commit deadline in
// the source's clock domain. A decoder must not be driven by two sessions
// at once.
type Session struct {
	dec *morse.Decoder
	log *zap.Logger
	now func() time.Time

	// skew is wall-clock time minus source time, taken at the latest event.
	skew    time.Duration
	onEvent func(signal.Event)
}

// New creates a session for dec. A nil logger discards output.
func New(dec *morse.Decoder, log *zap.Logger) (*Session, error) {
	if dec == nil {
		return nil, ErrDecoderRequired
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{dec: dec, log: log, now: time.Now}, nil
}

// OnEvent registers fn to see every event the decoder accepts. Call it
// before Run or Pump.
func (s *Session) OnEvent(fn func(signal.Event)) {
	s.onEvent = fn
}

// Decoder returns the driven decoder.
func (s *Session) Decoder() *morse.Decoder {
	return s.dec
}

// Run applies events as they arrive and commits pending symbols when their
// deadline passes. It returns nil once events is closed (after flushing any
// armed commit), ctx.Err() on cancellation, or the decoder's usage error.
func (s *Session) Run(ctx context.Context, events <-chan signal.Event) error {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				s.Flush()
				return nil
			}
			if err := s.dec.HandleEvent(ev); err != nil {
				return fmt.Errorf("handle %v event: %w", ev.State, err)
			}
			s.skew = s.now().Sub(ev.Timestamp)
			if s.onEvent != nil {
				s.onEvent(ev)
			}
			s.arm(timer)

		case <-timer.C:
			s.dec.Tick(s.sourceNow())
			s.arm(timer)
		}
	}
}

// sourceNow maps the wall clock onto the clock the source stamps events
// with, so a lagging source still gets its full gap.
func (s *Session) sourceNow() time.Time {
	return s.now().Add(-s.skew)
}

// arm points the timer at the decoder's deadline, or stops it when no
// commit is armed.
func (s *Session) arm(timer *time.Timer) {
	deadline, ok := s.dec.Deadline()
	if !ok {
		timer.Stop()
		return
	}
	wait := deadline.Sub(s.sourceNow())
	if wait < 0 {
		wait = 0
	}
	timer.Reset(wait)
}

// Pump runs produce and Run side by side. The first error cancels both.
func (s *Session) Pump(ctx context.Context, produce Producer) error {
	g, ctx := errgroup.WithContext(ctx)
	events := make(chan signal.Event, 64)

	g.Go(func() error {
		defer recovery.HandlePanic(s.log)
		defer close(events)
		return produce(ctx, events)
	})
	g.Go(func() error {
		defer recovery.HandlePanic(s.log)
		return s.Run(ctx, events)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		s.log.Debug("session cancelled")
		return nil
	}
	return err
}

// Replay feeds a finite recording in order without waiting on the wall
// clock, then lets the commit timeout elapse past end.
func (s *Session) Replay(ctx context.Context, events []signal.Event, end time.Time) error {
	for i, ev := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.dec.HandleEvent(ev); err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
		if s.onEvent != nil {
			s.onEvent(ev)
		}
	}
	s.dec.Tick(end.Add(s.dec.Timing().InterLetterGap))
	s.log.Debug("replay finished",
		zap.Int("events", len(events)),
		zap.String("transcript", s.dec.Transcript()))
	return nil
}

// Flush commits an armed symbol immediately, as if its deadline had passed.
func (s *Session) Flush() {
	if deadline, ok := s.dec.Deadline(); ok {
		s.dec.Tick(deadline)
	}
}
