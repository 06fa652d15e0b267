// internal/audio/capture.go
package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/gen2brain/malgo"
	"go.uber.org/zap"
)

var (
	ErrNotInitialized = errors.New("audio capture not initialized")
	ErrAlreadyRunning = errors.New("audio capture already running")
	ErrNotRunning     = errors.New("audio capture not running")
	ErrDeviceIndex    = errors.New("device index out of range")
)

// Config holds audio capture configuration
type Config struct {
	DeviceIndex int    // -1 for default device
	SampleRate  uint32 // e.g., 48000
	Channels    uint32 // 1 for mono, 2 for stereo
	BufferSize  uint32 // frames per callback
}

// DefaultConfig returns defaults suited to a keyed sidetone.
func DefaultConfig() Config {
	return Config{
		DeviceIndex: -1,
		SampleRate:  48000,
		Channels:    1,
		BufferSize:  1024,
	}
}

// Device describes one capture device as listed by the backend.
type Device struct {
	Index     int
	Name      string
	IsDefault bool
}

// Capture reads float32 frames from a capture device and hands a copy of
// each buffer to Samples. Consumers do their processing off the audio
// thread; a consumer that falls behind loses whole buffers, never events.
type Capture struct {
	config  Config
	log     *zap.Logger
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	running bool
	mu      sync.RWMutex

	closed    atomic.Bool
	closeOnce sync.Once
	dropped   atomic.Uint64

	// Samples receives a copy of every captured buffer (float32 normalized -1.0 to 1.0).
	// It is closed by Close.
	Samples chan []float32
}

// New creates a new audio capture instance
func New(cfg Config) *Capture {
	return &Capture{
		config:  cfg,
		log:     zap.NewNop(),
		Samples: make(chan []float32, 64),
	}
}

// SetLogger replaces the no-op logger.
func (c *Capture) SetLogger(log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	c.mu.Lock()
	c.log = log
	c.mu.Unlock()
}

// Init initializes the audio backend
func (c *Capture) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		c.log.Debug("malgo", zap.String("message", message))
	})
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}
	c.ctx = ctx

	return nil
}

// ListDevices returns available capture devices
func (c *Capture) ListDevices() ([]malgo.DeviceInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.ctx == nil {
		return nil, ErrNotInitialized
	}

	infos, err := c.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}

	return infos, nil
}

// Devices returns the capture devices in the order device_index refers to.
func (c *Capture) Devices() ([]Device, error) {
	infos, err := c.ListDevices()
	if err != nil {
		return nil, err
	}
	devices := make([]Device, len(infos))
	for i, info := range infos {
		devices[i] = Device{Index: i, Name: info.Name(), IsDefault: info.IsDefault != 0}
	}
	return devices, nil
}

// Start begins audio capture. Capture stops when ctx is cancelled.
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	if c.ctx == nil {
		c.mu.Unlock()
		return ErrNotInitialized
	}
	c.mu.Unlock()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.SampleRate = c.config.SampleRate
	deviceConfig.PeriodSizeInFrames = c.config.BufferSize
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = c.config.Channels

	if c.config.DeviceIndex >= 0 {
		devices, err := c.ListDevices()
		if err != nil {
			return err
		}
		if c.config.DeviceIndex >= len(devices) {
			return fmt.Errorf("%w: %d (have %d devices)", ErrDeviceIndex, c.config.DeviceIndex, len(devices))
		}
		deviceConfig.Capture.DeviceID = devices[c.config.DeviceIndex].ID.Pointer()
	}

	device, err := malgo.InitDevice(c.ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: c.onRecvFrames,
	})
	if err != nil {
		return fmt.Errorf("init device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("start device: %w", err)
	}

	c.mu.Lock()
	c.device = device
	c.running = true
	log := c.log
	c.mu.Unlock()

	log.Info("audio capture started",
		zap.Int("device_index", c.config.DeviceIndex),
		zap.Uint32("sample_rate", c.config.SampleRate),
		zap.Uint32("buffer_size", c.config.BufferSize))

	go func() {
		<-ctx.Done()
		_ = c.Stop()
	}()

	return nil
}

func (c *Capture) onRecvFrames(_, inputSamples []byte, _ uint32) {
	if len(inputSamples) == 0 || c.closed.Load() {
		return
	}

	// The backend reuses inputSamples after we return.
	c.safeSend(copyFloat32Slice(bytesAsFloat32(inputSamples)))
}

// safeSend delivers to Samples without blocking. A full channel drops the
// buffer; a send racing Close is absorbed.
func (c *Capture) safeSend(samples []float32) {
	if c.closed.Load() {
		return
	}
	defer func() {
		_ = recover()
	}()
	select {
	case c.Samples <- samples:
	default:
		c.dropped.Add(1)
	}
}

// Dropped returns the number of buffers discarded because Samples was full.
func (c *Capture) Dropped() uint64 {
	return c.dropped.Load()
}

// Stop stops audio capture
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return ErrNotRunning
	}

	if c.device != nil {
		_ = c.device.Stop()
		c.device.Uninit()
		c.device = nil
	}

	c.running = false
	c.log.Info("audio capture stopped", zap.Uint64("dropped_buffers", c.dropped.Load()))
	return nil
}

// Close releases all audio resources. Safe to call more than once.
func (c *Capture) Close() error {
	c.closed.Store(true)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running && c.device != nil {
		_ = c.device.Stop()
		c.device.Uninit()
		c.device = nil
		c.running = false
	}

	var err error
	if c.ctx != nil {
		if uerr := c.ctx.Uninit(); uerr != nil {
			err = fmt.Errorf("uninit context: %w", uerr)
		}
		c.ctx.Free()
		c.ctx = nil
	}

	c.closeOnce.Do(func() {
		close(c.Samples)
	})
	return err
}

// IsRunning returns true if capture is active
func (c *Capture) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// bytesAsFloat32 reinterprets data in place. Assumes a little-endian host,
// which is what miniaudio delivers FormatF32 in.
func bytesAsFloat32(data []byte) []float32 {
	if len(data) < 4 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&data[0])), len(data)/4)
}

func copyFloat32Slice(src []float32) []float32 {
	if src == nil {
		return nil
	}
	dst := make([]float32, len(src))
	copy(dst, src)
	return dst
}
