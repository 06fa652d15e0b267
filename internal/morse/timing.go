// internal/morse/timing.go
package morse

import (
	"errors"
	"fmt"
	"time"
)

// Morse code timing ratios (ITU standard), in units of one dot.
const (
	// DashDotRatio is the ratio of dash duration to dot duration (ITU: 3:1)
	DashDotRatio = 3
	// InterLetterRatio is the silence separating letters (ITU: 3:1)
	InterLetterRatio = 3
	// InterWordRatio is the silence separating words (ITU: 7:1)
	InterWordRatio = 7

	// DefaultUnit is the average duration of a human blink.
	DefaultUnit = 300 * time.Millisecond
)

var (
	// ErrInvalidDotMax indicates the dot threshold must be positive
	ErrInvalidDotMax = errors.New("dot max must be positive")
	// ErrInvalidDashMax indicates the dash threshold must exceed the dot threshold
	ErrInvalidDashMax = errors.New("dash max must be greater than dot max")
	// ErrInvalidLetterGap indicates the letter gap must be at least the dash threshold
	ErrInvalidLetterGap = errors.New("inter-letter gap must be at least dash max")
	// ErrInvalidWordGap indicates the word gap must exceed the letter gap
	ErrInvalidWordGap = errors.New("inter-word gap must be greater than inter-letter gap")
)

// Timing holds the duration thresholds used to classify signal intervals.
type Timing struct {
	// DotMax is the longest closed interval read as a dot (inclusive).
	DotMax time.Duration
	// DashMax is the longest closed interval read as a dash (inclusive).
	// Anything longer is noise.
	DashMax time.Duration
	// InterLetterGap is the silence after the last element that commits a letter.
	InterLetterGap time.Duration
	// InterWordGap is the open interval above which a space is inserted.
	InterWordGap time.Duration
}

// TimingFromUnit derives thresholds from a dot length using the ITU ratios.
func TimingFromUnit(unit time.Duration) Timing {
	return Timing{
		DotMax:         unit,
		DashMax:        unit * DashDotRatio,
		InterLetterGap: unit * InterLetterRatio,
		InterWordGap:   unit * InterWordRatio,
	}
}

// DefaultTiming returns thresholds for DefaultUnit.
func DefaultTiming() Timing {
	return TimingFromUnit(DefaultUnit)
}

// Validate checks the ordering invariants between the thresholds.
func (t Timing) Validate() error {
	var errs []error
	if t.DotMax <= 0 {
		errs = append(errs, fmt.Errorf("%w, got %v", ErrInvalidDotMax, t.DotMax))
	}
	if t.DashMax <= t.DotMax {
		errs = append(errs, fmt.Errorf("%w, got dot %v dash %v", ErrInvalidDashMax, t.DotMax, t.DashMax))
	}
	if t.InterLetterGap < t.DashMax {
		errs = append(errs, fmt.Errorf("%w, got gap %v dash %v", ErrInvalidLetterGap, t.InterLetterGap, t.DashMax))
	}
	if t.InterWordGap <= t.InterLetterGap {
		errs = append(errs, fmt.Errorf("%w, got word %v letter %v", ErrInvalidWordGap, t.InterWordGap, t.InterLetterGap))
	}
	return errors.Join(errs...)
}

// Element is one Morse signal element.
type Element uint8

const (
	// Noise is a closed interval too long to be a dash. It is ignored.
	Noise Element = iota
	Dot
	Dash
)

// String implements fmt.Stringer
func (e Element) String() string {
	switch e {
	case Dot:
		return "dot"
	case Dash:
		return "dash"
	default:
		return "noise"
	}
}

// Classify maps a closed interval to an element.
func (t Timing) Classify(d time.Duration) Element {
	switch {
	case d <= t.DotMax:
		return Dot
	case d <= t.DashMax:
		return Dash
	default:
		return Noise
	}
}
