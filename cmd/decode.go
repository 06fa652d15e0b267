// cmd/decode.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ColonelBlimp/morsevision/internal/config"
	"github.com/ColonelBlimp/morsevision/internal/morse"
	"github.com/ColonelBlimp/morsevision/internal/replay"
	"github.com/ColonelBlimp/morsevision/internal/session"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// ErrNoInput indicates decode was given nothing to read
	ErrNoInput = errors.New("nothing to decode: pass --durations or --file, or set source: replay")
	// ErrTranscriptMismatch indicates a script decoded to something other than its expect value
	ErrTranscriptMismatch = errors.New("transcript does not match script")
)

func newDecodeCmd() *cobra.Command {
	var (
		durations []string
		file      string
		trace     bool
	)

	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode a recorded interval list or event script",
		Example: `  morsevision decode --durations 0.1,0.1,0.1,0.1,0.1
  morsevision decode --file sos.yaml --trace`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, log, err := loadSettings()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			script, err := loadScript(settings, durations, file)
			if err != nil {
				return err
			}
			return runDecode(cmd.Context(), cmd.OutOrStdout(), settings, script, trace, log)
		},
	}

	cmd.Flags().StringSliceVar(&durations, "durations", nil,
		"alternating closed/open intervals, first closed (seconds or Go durations)")
	cmd.Flags().StringVar(&file, "file", "", "YAML event script")
	cmd.Flags().BoolVar(&trace, "trace", false, "print every element, letter and space as it is decoded")
	cmd.MarkFlagsMutuallyExclusive("durations", "file")

	return cmd
}

// loadScript picks the input: flags first, then the configured replay file.
func loadScript(settings *config.Settings, durations []string, file string) (*replay.Script, error) {
	switch {
	case len(durations) > 0:
		intervals, err := parseIntervals(durations)
		if err != nil {
			return nil, err
		}
		s := &replay.Script{Intervals: intervals}
		if err := s.Validate(); err != nil {
			return nil, err
		}
		return s, nil
	case file != "":
		return replay.Load(file)
	case settings.Source == config.SourceReplay:
		return replay.Load(settings.ReplayFile)
	}
	return nil, ErrNoInput
}

// parseIntervals accepts bare numbers as seconds and anything else as a Go
// duration string.
func parseIntervals(values []string) ([]time.Duration, error) {
	out := make([]time.Duration, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			out = append(out, time.Duration(math.Round(secs * float64(time.Second))))
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid interval %q: %w", v, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func newDecoder(settings *config.Settings, log *zap.Logger, opts ...morse.Option) (*morse.Decoder, error) {
	opts = append([]morse.Option{morse.WithLogger(log.Named("decoder"))}, opts...)
	return morse.NewDecoder(morse.StandardAlphabet, settings.Timing(), opts...)
}

func runDecode(ctx context.Context, w io.Writer, settings *config.Settings, script *replay.Script, trace bool, log *zap.Logger) error {
	if script.Unit > 0 {
		scoped := *settings
		scoped.Unit = script.Unit
		settings = &scoped
	}

	var opts []morse.Option
	if trace {
		opts = append(opts, morse.WithCallback(func(o morse.Output) {
			fmt.Fprintln(w, formatOutput(o))
		}))
	}
	dec, err := newDecoder(settings, log, opts...)
	if err != nil {
		return fmt.Errorf("decoder: %w", err)
	}
	sess, err := session.New(dec, log.Named("session"))
	if err != nil {
		return err
	}

	// The origin is arbitrary; only differences between events matter.
	events, end, err := script.Resolve(time.Unix(0, 0).UTC(), settings.ClosureThreshold)
	if err != nil {
		return err
	}
	if err := sess.Replay(ctx, events, end); err != nil {
		return err
	}

	transcript := dec.Transcript()
	fmt.Fprintln(w, transcript)

	if script.Expect != "" && transcript != script.Expect {
		return fmt.Errorf("%w: got %q, want %q", ErrTranscriptMismatch, transcript, script.Expect)
	}
	return nil
}

func formatOutput(o morse.Output) string {
	switch o.Kind {
	case morse.KindElement:
		return fmt.Sprintf("%-9s %s", o.Element, o.Code)
	case morse.KindWordSpace:
		return "space"
	default:
		return fmt.Sprintf("letter    %c  %s", o.Character, o.Code)
	}
}
