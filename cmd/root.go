// cmd/root.go
package cmd

import (
	"fmt"
	"os"

	"github.com/ColonelBlimp/morsevision/internal/config"
	"github.com/ColonelBlimp/morsevision/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var rootCmd = newRootCmd()

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

// newRootCmd builds the command tree. Tests build a fresh tree per case so
// flag state does not leak between them.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "morsevision",
		Short: "Morse code decoder for two-state inputs",
		Long: `Decodes Morse code from a binary input: an eye blinking, a key going
down and up, or a keyed tone on the sound card. Closed intervals become dots
and dashes; silences commit letters and insert word spaces.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return bindFlags(cmd.Root())
		},
	}

	// Global flags (override config file)
	root.PersistentFlags().DurationP("unit", "u", 0, "dot length; thresholds derive from it (default from config, 300ms)")
	root.PersistentFlags().IntP("device", "d", -1, "audio device index (-1 for default)")
	root.PersistentFlags().Float64P("frequency", "f", 600, "keyed tone frequency in Hz")
	root.PersistentFlags().BoolP("debug", "D", false, "enable debug output")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		newDecodeCmd(),
		newListenCmd(),
		newDevicesCmd(),
		newAlphabetCmd(),
	)
	return root
}

// flagKeys maps persistent flags to config keys.
var flagKeys = map[string]string{
	"unit":      "unit",
	"device":    "device_index",
	"frequency": "tone_frequency",
	"debug":     "debug",
	"log-level": "log_level",
}

// bindFlags binds only flags given on the command line, so unset flags
// never shadow the config file.
func bindFlags(root *cobra.Command) error {
	for name, key := range flagKeys {
		flag := root.PersistentFlags().Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := viper.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func initConfig() {
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
}

// loadSettings returns validated settings and a logger built from them.
func loadSettings() (*config.Settings, *zap.Logger, error) {
	settings, err := config.Get()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	log, err := logging.New(settings.LogLevel, settings.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	return settings, log, nil
}
