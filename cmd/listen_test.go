package cmd

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/ColonelBlimp/morsevision/internal/signal"
	"github.com/ColonelBlimp/morsevision/internal/tone"
	"go.uber.org/zap/zaptest"
)

// 600 Hz sits on a bin at this rate and one 512-sample block is 10ms.
const testSampleRate = 51200.0

func keyedTone(blocks int) []float32 {
	samples := make([]float32, blocks*512)
	for i := range samples {
		samples[i] = float32(math.Sin(2 * math.Pi * 600 * float64(i) / testSampleRate))
	}
	return samples
}

func newTestDetector(t *testing.T) *tone.Detector {
	t.Helper()
	g, err := tone.NewGoertzel(tone.GoertzelConfig{TargetFrequency: 600, SampleRate: testSampleRate, BlockSize: 512})
	if err != nil {
		t.Fatalf("NewGoertzel() error = %v", err)
	}
	det, err := tone.NewDetector(tone.DetectorConfig{
		Threshold:  0.4,
		Hysteresis: 1,
		AGCDecay:   0.9995,
		AGCAttack:  0.1,
	}, g)
	if err != nil {
		t.Fatalf("NewDetector() error = %v", err)
	}
	det.SetLogger(zaptest.NewLogger(t))
	det.SetOrigin(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	return det
}

func TestPumpSamples_SlowConsumerKeepsEveryTransition(t *testing.T) {
	det := newTestDetector(t)

	samples := make(chan []float32, 8)
	for i := 0; i < 3; i++ {
		samples <- keyedTone(10)
		samples <- make([]float32, 10*512)
	}
	close(samples)

	// Unbuffered and read slowly: the detector has to wait for the reader.
	out := make(chan signal.Event)
	done := make(chan error, 1)
	go func() { done <- pumpSamples(context.Background(), samples, 1, det, out) }()

	var got []signal.Event
	for len(got) < 6 {
		select {
		case ev := <-out:
			got = append(got, ev)
			time.Sleep(5 * time.Millisecond)
		case <-time.After(2 * time.Second):
			t.Fatalf("got %d transitions, want 6", len(got))
		}
	}
	if err := <-done; err != nil {
		t.Errorf("pumpSamples() error = %v", err)
	}

	for i, ev := range got {
		want := signal.Closed
		if i%2 == 1 {
			want = signal.Open
		}
		if ev.State != want {
			t.Errorf("transition %d = %v, want %v", i, ev.State, want)
		}
		if i > 0 && !ev.Timestamp.After(got[i-1].Timestamp) {
			t.Errorf("transition %d not after %d", i, i-1)
		}
	}
}

func TestPumpSamples_Cancelled(t *testing.T) {
	det := newTestDetector(t)
	samples := make(chan []float32, 1)
	samples <- keyedTone(4)

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan signal.Event)
	done := make(chan error, 1)
	go func() { done <- pumpSamples(ctx, samples, 1, det, out) }()

	// Nobody reads out; the pending send must give way to cancellation.
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("pumpSamples() error = %v, want %v", err, context.Canceled)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pumpSamples() did not return after cancel")
	}
}
