// internal/tone/goertzel.go
package tone

import (
	"errors"
	"math"
)

var (
	// ErrInvalidBlockSize indicates block size must be positive
	ErrInvalidBlockSize = errors.New("block size must be positive")
	// ErrInvalidSampleRate indicates sample rate must be positive
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	// ErrInvalidFrequency indicates frequency must be positive and below Nyquist
	ErrInvalidFrequency = errors.New("target frequency must be positive and less than Nyquist frequency")
	// ErrInsufficientSamples indicates not enough samples for the configured block size
	ErrInsufficientSamples = errors.New("insufficient samples for block size")
)

// GoertzelConfig holds configuration for the single-bin filter.
type GoertzelConfig struct {
	// TargetFrequency is the keyed tone in Hz (config: tone_frequency)
	TargetFrequency float64
	// SampleRate is the capture rate in Hz (config: sample_rate)
	SampleRate float64
	// BlockSize is the number of samples per detection window (config: block_size)
	BlockSize int
}

// Goertzel measures the energy of one frequency bin. Cheaper than an FFT
// when only the sidetone frequency matters.
type Goertzel struct {
	config      GoertzelConfig
	coefficient float64 // 2 * cos(2π * k / N)
	normalizer  float64 // 2 / N
}

// NewGoertzel returns a filter tuned to cfg.TargetFrequency.
func NewGoertzel(cfg GoertzelConfig) (*Goertzel, error) {
	if cfg.BlockSize <= 0 {
		return nil, ErrInvalidBlockSize
	}
	if cfg.SampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}
	if cfg.TargetFrequency <= 0 || cfg.TargetFrequency >= cfg.SampleRate/2.0 {
		return nil, ErrInvalidFrequency
	}

	k := (cfg.TargetFrequency / cfg.SampleRate) * float64(cfg.BlockSize)
	omega := (2.0 * math.Pi * k) / float64(cfg.BlockSize)

	return &Goertzel{
		config:      cfg,
		coefficient: 2.0 * math.Cos(omega),
		normalizer:  2.0 / float64(cfg.BlockSize),
	}, nil
}

// Magnitude returns the normalized magnitude of the target frequency. A
// full-scale sine at the target frequency yields roughly 1.0.
func (g *Goertzel) Magnitude(samples []float32) (float64, error) {
	if len(samples) < g.config.BlockSize {
		return 0, ErrInsufficientSamples
	}
	return g.magnitude(samples), nil
}

// magnitude is the hot path. Caller guarantees len(samples) >= BlockSize.
func (g *Goertzel) magnitude(samples []float32) float64 {
	var s0, s1, s2 float64
	coeff := g.coefficient

	for i := 0; i < g.config.BlockSize; i++ {
		s0 = float64(samples[i]) + coeff*s1 - s2
		s2 = s1
		s1 = s0
	}

	power := s1*s1 + s2*s2 - coeff*s1*s2
	if power < 0 {
		power = 0
	}

	return math.Sqrt(power) * g.normalizer
}

// Coefficient returns the pre-computed recurrence coefficient.
func (g *Goertzel) Coefficient() float64 {
	return g.coefficient
}

// BlockSize returns the configured block size
func (g *Goertzel) BlockSize() int {
	return g.config.BlockSize
}

// SampleRate returns the configured sample rate
func (g *Goertzel) SampleRate() float64 {
	return g.config.SampleRate
}
