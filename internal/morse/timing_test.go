package morse

import (
	"errors"
	"testing"
	"time"
)

func TestTimingFromUnit_Ratios(t *testing.T) {
	timing := TimingFromUnit(300 * time.Millisecond)

	if timing.DotMax != 300*time.Millisecond {
		t.Errorf("DotMax = %v, want 300ms", timing.DotMax)
	}
	if timing.DashMax != 900*time.Millisecond {
		t.Errorf("DashMax = %v, want 900ms", timing.DashMax)
	}
	if timing.InterLetterGap != 900*time.Millisecond {
		t.Errorf("InterLetterGap = %v, want 900ms", timing.InterLetterGap)
	}
	if timing.InterWordGap != 2100*time.Millisecond {
		t.Errorf("InterWordGap = %v, want 2.1s", timing.InterWordGap)
	}
	if err := timing.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestDefaultTiming(t *testing.T) {
	if DefaultTiming() != TimingFromUnit(DefaultUnit) {
		t.Error("DefaultTiming() should derive from DefaultUnit")
	}
}

func TestTiming_Validate(t *testing.T) {
	valid := DefaultTiming()

	tests := []struct {
		name    string
		modify  func(*Timing)
		wantErr error
	}{
		{"zero dot", func(tm *Timing) { tm.DotMax = 0 }, ErrInvalidDotMax},
		{"negative dot", func(tm *Timing) { tm.DotMax = -time.Second }, ErrInvalidDotMax},
		{"dash equals dot", func(tm *Timing) { tm.DashMax = tm.DotMax }, ErrInvalidDashMax},
		{"letter gap below dash", func(tm *Timing) { tm.InterLetterGap = tm.DashMax - 1 }, ErrInvalidLetterGap},
		{"word gap equals letter gap", func(tm *Timing) { tm.InterWordGap = tm.InterLetterGap }, ErrInvalidWordGap},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			timing := valid
			tt.modify(&timing)
			err := timing.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTiming_Validate_JoinsErrors(t *testing.T) {
	err := Timing{}.Validate()
	for _, want := range []error{ErrInvalidDotMax, ErrInvalidDashMax, ErrInvalidWordGap} {
		if !errors.Is(err, want) {
			t.Errorf("Validate() error = %v, should include %v", err, want)
		}
	}
}

func TestTiming_Classify_Boundaries(t *testing.T) {
	timing := TimingFromUnit(300 * time.Millisecond)

	tests := []struct {
		d    time.Duration
		want Element
	}{
		{time.Nanosecond, Dot},
		{100 * time.Millisecond, Dot},
		{300 * time.Millisecond, Dot},
		{300*time.Millisecond + 1, Dash},
		{900 * time.Millisecond, Dash},
		{900*time.Millisecond + time.Millisecond, Noise},
		{5 * time.Second, Noise},
	}

	for _, tt := range tests {
		t.Run(tt.d.String(), func(t *testing.T) {
			if got := timing.Classify(tt.d); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.d, got, tt.want)
			}
		})
	}
}
