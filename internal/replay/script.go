// internal/replay/script.go

// Package replay loads recorded or hand-written signal scripts so a decode
// can be reproduced without a live input.
package replay

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ColonelBlimp/morsevision/internal/signal"
	"gopkg.in/yaml.v3"
)

var (
	// ErrEmptyScript indicates a script with no events, intervals or readings
	ErrEmptyScript = errors.New("script has no events, intervals or coefficients")
	// ErrAmbiguousScript indicates more than one input section is set
	ErrAmbiguousScript = errors.New("script must use exactly one of events, intervals or coefficients")
	// ErrUnordered indicates offsets that do not strictly increase
	ErrUnordered = errors.New("script offsets must strictly increase")
	// ErrNegativeDuration indicates a negative offset or interval
	ErrNegativeDuration = errors.New("script durations must not be negative")
)

// Script is a decodable input recording. Exactly one of Events, Intervals
// or Coefficients is set. Offsets are relative to the start passed to
// (*Script).Resolve.
//
//	unit: 300ms
//	expect: SOS
//	events:
//	  - {state: closed, at: 0s}
//	  - {state: open, at: 100ms}
type Script struct {
	// Unit overrides the configured timing unit when non-zero.
	Unit time.Duration `yaml:"unit,omitempty"`
	// Expect is the transcript the script should decode to, if known.
	Expect string `yaml:"expect,omitempty"`

	Events       []Transition    `yaml:"events,omitempty"`
	Intervals    []time.Duration `yaml:"intervals,omitempty,flow"`
	Coefficients []Reading       `yaml:"coefficients,omitempty"`
	// Threshold applies to Coefficients. Zero defers to the threshold
	// passed to (*Script).Resolve.
	Threshold float64 `yaml:"threshold,omitempty"`
}

// Transition is one explicit state change.
type Transition struct {
	State State         `yaml:"state"`
	At    time.Duration `yaml:"at"`
}

// Reading is one closure coefficient sample (0.0 open, 1.0 closed).
type Reading struct {
	Value float64       `yaml:"value"`
	At    time.Duration `yaml:"at"`
}

// State accepts the names signal.ParseState knows.
type State signal.State

// UnmarshalYAML implements yaml.Unmarshaler
func (s *State) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: state must be a scalar", value.Line)
	}
	st, err := signal.ParseState(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*s = State(st)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (s State) MarshalYAML() (any, error) {
	return signal.State(s).String(), nil
}

// Load reads a script from a file.
func Load(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open script: %w", err)
	}
	defer f.Close()

	s, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates a script. Unknown keys are rejected.
func Parse(r io.Reader) (*Script, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var s Script
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyScript
		}
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks that exactly one input section is present and its offsets
// are usable.
func (s *Script) Validate() error {
	sections := 0
	for _, n := range []int{len(s.Events), len(s.Intervals), len(s.Coefficients)} {
		if n > 0 {
			sections++
		}
	}
	switch {
	case sections == 0:
		return ErrEmptyScript
	case sections > 1:
		return ErrAmbiguousScript
	}

	var errs []error
	if s.Unit < 0 {
		errs = append(errs, fmt.Errorf("unit: %w", ErrNegativeDuration))
	}
	if s.Threshold < 0 || s.Threshold > 1 {
		errs = append(errs, signal.ErrInvalidThreshold)
	}
	for i, d := range s.Intervals {
		if d < 0 {
			errs = append(errs, fmt.Errorf("intervals[%d]: %w", i, ErrNegativeDuration))
		}
	}
	var offsets []time.Duration
	for _, ev := range s.Events {
		offsets = append(offsets, ev.At)
	}
	for _, r := range s.Coefficients {
		offsets = append(offsets, r.At)
	}
	for i, at := range offsets {
		if at < 0 {
			errs = append(errs, fmt.Errorf("offset %d: %w", i, ErrNegativeDuration))
		}
		if i > 0 && at <= offsets[i-1] {
			errs = append(errs, fmt.Errorf("offset %d (%v): %w", i, at, ErrUnordered))
		}
	}
	return errors.Join(errs...)
}

// Resolve resolves the script into transitions starting at start. end is the
// time the recording finishes, which for a trailing open interval lies past
// the last transition. threshold gates coefficient scripts that set none of
// their own; zero means signal.DefaultClosureThreshold.
func (s *Script) Resolve(start time.Time, threshold float64) (events []signal.Event, end time.Time, err error) {
	switch {
	case len(s.Intervals) > 0:
		events, end = signal.FromDurations(start, s.Intervals...)
		return events, end, nil

	case len(s.Events) > 0:
		events = make([]signal.Event, len(s.Events))
		for i, tr := range s.Events {
			events[i] = signal.Event{State: signal.State(tr.State), Timestamp: start.Add(tr.At)}
		}
		return events, events[len(events)-1].Timestamp, nil

	case len(s.Coefficients) > 0:
		if s.Threshold != 0 {
			threshold = s.Threshold
		}
		if threshold == 0 {
			threshold = signal.DefaultClosureThreshold
		}
		gate, err := signal.NewGate(threshold)
		if err != nil {
			return nil, time.Time{}, err
		}
		for _, r := range s.Coefficients {
			if ev, changed := gate.Sample(r.Value, start.Add(r.At)); changed {
				events = append(events, ev)
			}
		}
		return events, start.Add(s.Coefficients[len(s.Coefficients)-1].At), nil
	}
	return nil, start, ErrEmptyScript
}

// Record builds an explicit-transition script from events, relative to the
// first event's timestamp.
func Record(events []signal.Event) *Script {
	s := &Script{}
	if len(events) == 0 {
		return s
	}
	origin := events[0].Timestamp
	for _, ev := range events {
		s.Events = append(s.Events, Transition{State: State(ev.State), At: ev.Timestamp.Sub(origin)})
	}
	return s
}

// Marshal encodes the script as YAML.
func (s *Script) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("encode script: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode script: %w", err)
	}
	return buf.Bytes(), nil
}
