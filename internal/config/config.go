// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ColonelBlimp/morsevision/internal/morse"
	"github.com/ColonelBlimp/morsevision/internal/signal"
	"github.com/spf13/viper"
)

const (
	AppName       = "morsevision"
	ConfigType    = "yaml"
	DefaultConfig = `# Morse Vision Configuration

# Timing
unit: 300ms             # Dot length; 300ms is an average human blink
                        # Thresholds below default to ITU ratios of the unit when 0
dot_max: 0              # Longest closed interval read as a dot (1 unit)
dash_max: 0             # Longest closed interval read as a dash (3 units); longer is noise
inter_letter_gap: 0     # Silence that commits the pending letter (3 units)
inter_word_gap: 0       # Open interval that inserts a space (7 units)

# Input
source: "audio"         # audio (keyed tone on the sound card) or replay (event script)
replay_file: ""         # Event script for source: replay
closure_threshold: 0.85 # Closure coefficient (0.0-1.0) at which the input counts as closed

# Audio device settings (source: audio)
device_index: -1        # -1 for default device
sample_rate: 48000      # Audio sample rate in Hz
channels: 1             # Number of channels (1=mono)
buffer_size: 1024       # Frames per capture callback

# Tone detection (source: audio)
tone_frequency: 600     # Keyed tone frequency in Hz
block_size: 512         # Goertzel block size (samples per detection window)
overlap_pct: 50         # Block overlap percentage (0-99)
threshold: 0.4          # Detection threshold (0.0-1.0) after AGC
hysteresis: 5           # Consecutive blocks required to confirm a state change
agc_enabled: true       # Enable automatic gain control
agc_decay: 0.9995       # AGC peak decay rate per block
agc_attack: 0.1         # AGC attack rate (0.0-1.0)
agc_warmup_blocks: 10   # Blocks used to calibrate AGC before detection starts

# Output
log_level: "info"       # debug, info, warn, error
debug: false            # Enable debug output
`
)

// Source names
const (
	SourceAudio  = "audio"
	SourceReplay = "replay"
)

// Settings holds all application configuration
type Settings struct {
	// Timing
	Unit           time.Duration `mapstructure:"unit"`
	DotMax         time.Duration `mapstructure:"dot_max"`
	DashMax        time.Duration `mapstructure:"dash_max"`
	InterLetterGap time.Duration `mapstructure:"inter_letter_gap"`
	InterWordGap   time.Duration `mapstructure:"inter_word_gap"`

	// Input
	Source           string  `mapstructure:"source"`
	ReplayFile       string  `mapstructure:"replay_file"`
	ClosureThreshold float64 `mapstructure:"closure_threshold"`

	// Audio device settings
	DeviceIndex int     `mapstructure:"device_index"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Channels    int     `mapstructure:"channels"`
	BufferSize  int     `mapstructure:"buffer_size"`

	// Tone detection
	ToneFrequency   float64 `mapstructure:"tone_frequency"`
	BlockSize       int     `mapstructure:"block_size"`
	OverlapPct      int     `mapstructure:"overlap_pct"`
	Threshold       float64 `mapstructure:"threshold"`
	Hysteresis      int     `mapstructure:"hysteresis"`
	AGCEnabled      bool    `mapstructure:"agc_enabled"`
	AGCDecay        float64 `mapstructure:"agc_decay"`
	AGCAttack       float64 `mapstructure:"agc_attack"`
	AGCWarmupBlocks int     `mapstructure:"agc_warmup_blocks"`

	// Output
	LogLevel string `mapstructure:"log_level"`
	Debug    bool   `mapstructure:"debug"`
}

// SetDefaults registers the default value of every key.
func SetDefaults() {
	viper.SetDefault("unit", morse.DefaultUnit)
	viper.SetDefault("dot_max", time.Duration(0))
	viper.SetDefault("dash_max", time.Duration(0))
	viper.SetDefault("inter_letter_gap", time.Duration(0))
	viper.SetDefault("inter_word_gap", time.Duration(0))
	viper.SetDefault("source", SourceAudio)
	viper.SetDefault("replay_file", "")
	viper.SetDefault("closure_threshold", signal.DefaultClosureThreshold)
	viper.SetDefault("device_index", -1)
	viper.SetDefault("sample_rate", 48000)
	viper.SetDefault("channels", 1)
	viper.SetDefault("buffer_size", 1024)
	viper.SetDefault("tone_frequency", 600)
	viper.SetDefault("block_size", 512)
	viper.SetDefault("overlap_pct", 50)
	viper.SetDefault("threshold", 0.4)
	viper.SetDefault("hysteresis", 5)
	viper.SetDefault("agc_enabled", true)
	viper.SetDefault("agc_decay", 0.9995)
	viper.SetDefault("agc_attack", 0.1)
	viper.SetDefault("agc_warmup_blocks", 10)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("debug", false)
}

// Init initializes Viper with defaults and config file.
// Config file search order: current directory, then ~/.config/morsevision/
func Init() error {
	SetDefaults()

	viper.SetConfigType(ConfigType)
	viper.AddConfigPath(".")

	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	viper.AddConfigPath(filepath.Join(configDir, AppName))

	// Try .config.yaml first (hidden file), then config.yaml
	viper.SetConfigName(".config")
	if err = viper.ReadInConfig(); err != nil {
		viper.SetConfigName("config")
		err = viper.ReadInConfig()
	}

	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("read config: %w", err)
		}
		// No config found - create default in ~/.config/morsevision/
		if err = ensureConfigExists(filepath.Join(configDir, AppName)); err != nil {
			return err
		}
		if err = viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}

	return nil
}

func ensureConfigExists(configPath string) error {
	configFile := filepath.Join(configPath, "config.yaml")

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err = os.MkdirAll(configPath, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		if err = os.WriteFile(configFile, []byte(DefaultConfig), 0644); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}
	return nil
}

// Get returns the current settings
func Get() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &s, nil
}

// Timing resolves the effective thresholds: explicit values win, anything
// left at zero is derived from Unit.
func (s *Settings) Timing() morse.Timing {
	t := morse.TimingFromUnit(s.Unit)
	if s.DotMax > 0 {
		t.DotMax = s.DotMax
	}
	if s.DashMax > 0 {
		t.DashMax = s.DashMax
	}
	if s.InterLetterGap > 0 {
		t.InterLetterGap = s.InterLetterGap
	}
	if s.InterWordGap > 0 {
		t.InterWordGap = s.InterWordGap
	}
	return t
}

// Validate checks that all settings are within acceptable ranges
func (s *Settings) Validate() error {
	var errs []error

	// Timing
	if s.Unit < 10*time.Millisecond || s.Unit > 5*time.Second {
		errs = append(errs, fmt.Errorf("unit must be between 10ms and 5s, got %v", s.Unit))
	}
	for key, d := range map[string]time.Duration{
		"dot_max":          s.DotMax,
		"dash_max":         s.DashMax,
		"inter_letter_gap": s.InterLetterGap,
		"inter_word_gap":   s.InterWordGap,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %v", key, d))
		}
	}
	if err := s.Timing().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("timing: %w", err))
	}

	// Input
	switch s.Source {
	case SourceAudio:
	case SourceReplay:
		if s.ReplayFile == "" {
			errs = append(errs, errors.New("replay_file is required when source is replay"))
		}
	default:
		errs = append(errs, fmt.Errorf("source must be one of audio, replay, got %q", s.Source))
	}
	if s.ClosureThreshold <= 0 || s.ClosureThreshold > 1 {
		errs = append(errs, fmt.Errorf("closure_threshold must be greater than 0.0 and at most 1.0, got %v", s.ClosureThreshold))
	}

	// Audio device settings
	if s.SampleRate < 8000 || s.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("sample_rate must be between 8000 and 192000 Hz, got %v", s.SampleRate))
	}
	if s.Channels < 1 || s.Channels > 2 {
		errs = append(errs, fmt.Errorf("channels must be 1 or 2, got %d", s.Channels))
	}
	if s.BufferSize < 64 || s.BufferSize > 8192 {
		errs = append(errs, fmt.Errorf("buffer_size must be between 64 and 8192, got %d", s.BufferSize))
	}
	if s.BufferSize&(s.BufferSize-1) != 0 {
		errs = append(errs, fmt.Errorf("buffer_size should be a power of 2, got %d", s.BufferSize))
	}

	// Tone detection
	if s.ToneFrequency < 100 || s.ToneFrequency > 3000 {
		errs = append(errs, fmt.Errorf("tone_frequency must be between 100 and 3000 Hz, got %v", s.ToneFrequency))
	}
	if s.ToneFrequency >= s.SampleRate/2 {
		errs = append(errs, fmt.Errorf("tone_frequency (%v Hz) must be less than Nyquist frequency (%v Hz)", s.ToneFrequency, s.SampleRate/2))
	}
	if s.BlockSize < 32 || s.BlockSize > 4096 {
		errs = append(errs, fmt.Errorf("block_size must be between 32 and 4096, got %d", s.BlockSize))
	}
	if s.BlockSize&(s.BlockSize-1) != 0 {
		errs = append(errs, fmt.Errorf("block_size should be a power of 2, got %d", s.BlockSize))
	}
	if s.OverlapPct < 0 || s.OverlapPct > 99 {
		errs = append(errs, fmt.Errorf("overlap_pct must be between 0 and 99, got %d", s.OverlapPct))
	}
	if s.Threshold < 0.0 || s.Threshold > 1.0 {
		errs = append(errs, fmt.Errorf("threshold must be between 0.0 and 1.0, got %v", s.Threshold))
	}
	if s.Hysteresis < 1 || s.Hysteresis > 50 {
		errs = append(errs, fmt.Errorf("hysteresis must be between 1 and 50, got %d", s.Hysteresis))
	}
	if s.AGCDecay < 0.99 || s.AGCDecay > 0.99999 {
		errs = append(errs, fmt.Errorf("agc_decay must be between 0.99 and 0.99999, got %v", s.AGCDecay))
	}
	if s.AGCAttack < 0.0 || s.AGCAttack > 1.0 {
		errs = append(errs, fmt.Errorf("agc_attack must be between 0.0 and 1.0, got %v", s.AGCAttack))
	}
	if s.AGCWarmupBlocks < 0 {
		errs = append(errs, fmt.Errorf("agc_warmup_blocks must be non-negative, got %d", s.AGCWarmupBlocks))
	}

	// Output
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[s.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level must be one of debug, info, warn, error, got %q", s.LogLevel))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
