// internal/tone/detector.go
package tone

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ColonelBlimp/morsevision/internal/signal"
	"go.uber.org/zap"
)

var (
	// ErrInvalidThreshold indicates threshold must be between 0 and 1
	ErrInvalidThreshold = errors.New("threshold must be between 0.0 and 1.0")
	// ErrInvalidHysteresis indicates hysteresis must be non-negative
	ErrInvalidHysteresis = errors.New("hysteresis must be non-negative")
	// ErrInvalidOverlap indicates overlap percentage must be 0-99
	ErrInvalidOverlap = errors.New("overlap percentage must be between 0 and 99")
	// ErrInvalidAGCDecay indicates AGC decay must be between 0 and 1
	ErrInvalidAGCDecay = errors.New("agc decay must be between 0.0 and 1.0")
	// ErrInvalidAGCAttack indicates AGC attack must be between 0 and 1
	ErrInvalidAGCAttack = errors.New("agc attack must be between 0.0 and 1.0")
	// ErrInvalidAGCWarmup indicates AGC warmup blocks must be non-negative
	ErrInvalidAGCWarmup = errors.New("agc warmup blocks must be non-negative")
	// ErrGoertzelRequired indicates a Goertzel filter is required
	ErrGoertzelRequired = errors.New("goertzel instance is required")
)

// Callback receives each confirmed transition. Tone on is signal.Closed.
// Called from the audio path; must be fast and non-blocking.
type Callback func(ev signal.Event)

// DetectorConfig holds configuration for the tone detector.
type DetectorConfig struct {
	// Threshold for tone presence after AGC (config: threshold)
	Threshold float64
	// Hysteresis is consecutive blocks required to confirm a change (config: hysteresis)
	Hysteresis int
	// OverlapPct is the block overlap percentage 0-99 (config: overlap_pct)
	OverlapPct int
	// AGCEnabled enables automatic gain control (config: agc_enabled)
	AGCEnabled bool
	// AGCDecay is the peak decay rate per block (config: agc_decay)
	AGCDecay float64
	// AGCAttack is how fast the peak follows louder signals (config: agc_attack)
	AGCAttack float64
	// AGCWarmupBlocks are processed for calibration only (config: agc_warmup_blocks)
	AGCWarmupBlocks int
}

// Detector turns a sample stream into key-down/key-up events. Event
// timestamps come from the sample clock, so durations are exact regardless
// of how the backend batches buffers.
type Detector struct {
	config    DetectorConfig
	goertzel  *Goertzel
	gate      *signal.Gate
	log       *zap.Logger
	blockSize int
	hopSize   int

	mu            sync.Mutex
	overlapBuffer []float32
	position      int64 // samples received since origin
	origin        time.Time
	now           func() time.Time

	agcPeak       float64
	warmupCounter int

	toneState       bool
	pendingState    bool
	hysteresisCount int

	callbackPtr atomic.Pointer[Callback]
}

// NewDetector creates a detector reading blocks through g.
func NewDetector(cfg DetectorConfig, g *Goertzel) (*Detector, error) {
	if g == nil {
		return nil, ErrGoertzelRequired
	}
	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return nil, ErrInvalidThreshold
	}
	if cfg.Hysteresis < 0 {
		return nil, ErrInvalidHysteresis
	}
	if cfg.OverlapPct < 0 || cfg.OverlapPct >= 100 {
		return nil, ErrInvalidOverlap
	}
	if cfg.AGCDecay < 0 || cfg.AGCDecay > 1 {
		return nil, ErrInvalidAGCDecay
	}
	if cfg.AGCAttack < 0 || cfg.AGCAttack > 1 {
		return nil, ErrInvalidAGCAttack
	}
	if cfg.AGCWarmupBlocks < 0 {
		return nil, ErrInvalidAGCWarmup
	}

	// The detector has already applied its own threshold, so the gate only
	// de-duplicates confirmed states.
	gate, err := signal.NewGate(1)
	if err != nil {
		return nil, err
	}

	blockSize := g.BlockSize()
	overlapSize := (blockSize * cfg.OverlapPct) / 100

	return &Detector{
		config:        cfg,
		goertzel:      g,
		gate:          gate,
		log:           zap.NewNop(),
		blockSize:     blockSize,
		hopSize:       blockSize - overlapSize,
		overlapBuffer: make([]float32, 0, blockSize*2),
		now:           time.Now,
		agcPeak:       1.0,
	}, nil
}

// SetLogger replaces the no-op logger.
func (d *Detector) SetLogger(log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	d.mu.Lock()
	d.log = log
	d.mu.Unlock()
}

// SetCallback sets the transition callback. Safe while processing.
func (d *Detector) SetCallback(cb Callback) {
	if cb == nil {
		d.callbackPtr.Store(nil)
		return
	}
	d.callbackPtr.Store(&cb)
}

// SetOrigin pins the wall-clock time of the first sample. Without it the
// origin is taken from the clock when the first buffer arrives.
func (d *Detector) SetOrigin(t time.Time) {
	d.mu.Lock()
	d.origin = t
	d.mu.Unlock()
}

// Process consumes samples normalized to -1.0..1.0. Safe to call with
// buffers of any length; blocks are assembled internally.
func (d *Detector) Process(samples []float32) {
	var events []signal.Event

	d.mu.Lock()
	if d.origin.IsZero() {
		d.origin = d.now()
	}
	d.overlapBuffer = append(d.overlapBuffer, samples...)
	d.position += int64(len(samples))

	for len(d.overlapBuffer) >= d.blockSize {
		blockEnd := d.position - int64(len(d.overlapBuffer)) + int64(d.blockSize)
		if ev, ok := d.processBlock(d.overlapBuffer[:d.blockSize], blockEnd); ok {
			events = append(events, ev)
		}

		if d.hopSize > 0 && d.hopSize < len(d.overlapBuffer) {
			n := copy(d.overlapBuffer, d.overlapBuffer[d.hopSize:])
			d.overlapBuffer = d.overlapBuffer[:n]
		} else {
			d.overlapBuffer = d.overlapBuffer[:0]
		}
	}
	d.mu.Unlock()

	if cb := d.callbackPtr.Load(); cb != nil {
		for _, ev := range events {
			(*cb)(ev)
		}
	}
}

func (d *Detector) processBlock(block []float32, blockEnd int64) (signal.Event, bool) {
	magnitude := d.goertzel.magnitude(block)

	// Calibrate the AGC peak to the actual signal level before detecting.
	if d.warmupCounter < d.config.AGCWarmupBlocks {
		d.warmupCounter++
		if d.config.AGCEnabled && magnitude > 0.001 {
			if magnitude > d.agcPeak || d.warmupCounter == 1 {
				d.agcPeak = magnitude
			}
		}
		return signal.Event{}, false
	}

	if d.config.AGCEnabled {
		magnitude = d.applyAGC(magnitude)
	}

	return d.updateHysteresis(magnitude > d.config.Threshold, magnitude, blockEnd)
}

func (d *Detector) applyAGC(magnitude float64) float64 {
	if magnitude > d.agcPeak {
		d.agcPeak += d.config.AGCAttack * (magnitude - d.agcPeak)
	} else {
		d.agcPeak *= d.config.AGCDecay
	}
	if d.agcPeak < 0.001 {
		d.agcPeak = 0.001
	}

	normalized := magnitude / d.agcPeak
	if normalized > 1.0 {
		normalized = 1.0
	}
	return normalized
}

func (d *Detector) updateHysteresis(tonePresent bool, magnitude float64, blockEnd int64) (signal.Event, bool) {
	if tonePresent == d.toneState {
		d.pendingState = d.toneState
		d.hysteresisCount = 0
		return signal.Event{}, false
	}

	if tonePresent == d.pendingState {
		d.hysteresisCount++
	} else {
		d.pendingState = tonePresent
		d.hysteresisCount = 1
	}

	if d.hysteresisCount < d.config.Hysteresis {
		return signal.Event{}, false
	}

	d.toneState = d.pendingState
	d.hysteresisCount = 0

	at := d.origin.Add(d.sampleTime(blockEnd))
	ev, changed := d.gate.Set(d.toneState, at)
	if changed {
		d.log.Debug("tone transition",
			zap.Stringer("state", ev.State),
			zap.Float64("magnitude", magnitude),
			zap.Float64("agc_peak", d.agcPeak))
	}
	return ev, changed
}

func (d *Detector) sampleTime(n int64) time.Duration {
	return time.Duration(float64(n) / d.goertzel.SampleRate() * float64(time.Second))
}

// ToneState returns the current confirmed tone state
func (d *Detector) ToneState() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.toneState
}

// AGCPeak returns the current AGC peak value
func (d *Detector) AGCPeak() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.agcPeak
}

// Reset clears detection state. The sample clock restarts at the next
// buffer.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.overlapBuffer = d.overlapBuffer[:0]
	d.position = 0
	d.origin = time.Time{}
	d.agcPeak = 1.0
	d.warmupCounter = 0
	d.toneState = false
	d.pendingState = false
	d.hysteresisCount = 0
	d.gate.Set(false, time.Time{})
}

// Config returns the current configuration
func (d *Detector) Config() DetectorConfig {
	return d.config
}
