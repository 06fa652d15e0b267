// cmd/listen.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/ColonelBlimp/morsevision/internal/audio"
	"github.com/ColonelBlimp/morsevision/internal/config"
	"github.com/ColonelBlimp/morsevision/internal/morse"
	"github.com/ColonelBlimp/morsevision/internal/replay"
	"github.com/ColonelBlimp/morsevision/internal/session"
	"github.com/ColonelBlimp/morsevision/internal/signal"
	"github.com/ColonelBlimp/morsevision/internal/tone"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newListenCmd() *cobra.Command {
	var record string

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Decode live input until interrupted",
		Long: `Decodes the configured source in real time. With source: audio the
keyed tone on the capture device is the input; with source: replay the
script is played back at its recorded pace. --record writes every accepted
transition to a script that decode --file can replay.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, log, err := loadSettings()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := ossignal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var produce session.Producer
			switch settings.Source {
			case config.SourceReplay:
				script, err := replay.Load(settings.ReplayFile)
				if err != nil {
					return err
				}
				produce = pacedProducer(script, settings.ClosureThreshold)
			default:
				produce = audioProducer(settings, log)
			}

			return runListen(ctx, cmd.OutOrStdout(), settings, produce, record, log)
		},
	}

	cmd.Flags().StringVar(&record, "record", "", "write accepted transitions to this YAML script on exit")

	return cmd
}

func runListen(ctx context.Context, w io.Writer, settings *config.Settings, produce session.Producer, record string, log *zap.Logger) error {
	dec, err := newDecoder(settings, log, morse.WithCallback(func(o morse.Output) {
		switch o.Kind {
		case morse.KindCharacter, morse.KindWordSpace:
			fmt.Fprintf(w, "%c", o.Character)
		}
	}))
	if err != nil {
		return fmt.Errorf("decoder: %w", err)
	}
	sess, err := session.New(dec, log.Named("session"))
	if err != nil {
		return err
	}

	log.Info("listening",
		zap.String("source", settings.Source),
		zap.Duration("dot_max", dec.Timing().DotMax),
		zap.Duration("dash_max", dec.Timing().DashMax),
		zap.Duration("inter_letter_gap", dec.Timing().InterLetterGap),
		zap.Duration("inter_word_gap", dec.Timing().InterWordGap))

	var recorded []signal.Event
	if record != "" {
		sess.OnEvent(func(ev signal.Event) { recorded = append(recorded, ev) })
	}

	err = sess.Pump(ctx, produce)
	fmt.Fprintln(w)
	if record != "" {
		if werr := writeRecording(record, recorded, settings.Unit, log); werr != nil {
			return errors.Join(err, werr)
		}
	}
	return err
}

// writeRecording saves events as an explicit-transition script.
func writeRecording(path string, events []signal.Event, unit time.Duration, log *zap.Logger) error {
	if len(events) == 0 {
		log.Warn("nothing recorded", zap.String("path", path))
		return nil
	}
	script := replay.Record(events)
	script.Unit = unit
	data, err := script.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write recording: %w", err)
	}
	log.Info("recording saved", zap.String("path", path), zap.Int("events", len(events)))
	return nil
}

// audioProducer keys the decoder from a tone on the capture device.
func audioProducer(settings *config.Settings, log *zap.Logger) session.Producer {
	return func(ctx context.Context, out chan<- signal.Event) error {
		g, err := tone.NewGoertzel(tone.GoertzelConfig{
			TargetFrequency: settings.ToneFrequency,
			SampleRate:      settings.SampleRate,
			BlockSize:       settings.BlockSize,
		})
		if err != nil {
			return fmt.Errorf("tone: %w", err)
		}
		det, err := tone.NewDetector(tone.DetectorConfig{
			Threshold:       settings.Threshold,
			Hysteresis:      settings.Hysteresis,
			OverlapPct:      settings.OverlapPct,
			AGCEnabled:      settings.AGCEnabled,
			AGCDecay:        settings.AGCDecay,
			AGCAttack:       settings.AGCAttack,
			AGCWarmupBlocks: settings.AGCWarmupBlocks,
		}, g)
		if err != nil {
			return fmt.Errorf("tone: %w", err)
		}
		det.SetLogger(log.Named("tone"))

		capture := audio.New(audio.Config{
			DeviceIndex: settings.DeviceIndex,
			SampleRate:  uint32(settings.SampleRate),
			Channels:    uint32(settings.Channels),
			BufferSize:  uint32(settings.BufferSize),
		})
		capture.SetLogger(log.Named("audio"))
		if err := capture.Init(); err != nil {
			return fmt.Errorf("audio: %w", err)
		}
		defer capture.Close()

		if err := capture.Start(ctx); err != nil {
			return fmt.Errorf("audio: %w", err)
		}
		return pumpSamples(ctx, capture.Samples, settings.Channels, det, out)
	}
}

// pumpSamples runs the detector on captured buffers and forwards its
// transitions to out. Sends block, so a slow decoder backs up into the
// capture queue, where whole buffers are dropped instead of transitions.
func pumpSamples(ctx context.Context, samples <-chan []float32, channels int, det *tone.Detector, out chan<- signal.Event) error {
	det.SetCallback(func(ev signal.Event) {
		select {
		case out <- ev:
		case <-ctx.Done():
		}
	})
	defer det.SetCallback(nil)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case buf, ok := <-samples:
			if !ok {
				return nil
			}
			// Mono analysis only; with two channels the left one keys.
			if channels > 1 {
				buf = firstChannel(buf, channels)
			}
			det.Process(buf)
		}
	}
}

func firstChannel(interleaved []float32, channels int) []float32 {
	mono := make([]float32, len(interleaved)/channels)
	for i := range mono {
		mono[i] = interleaved[i*channels]
	}
	return mono
}

// pacedProducer plays a script back in real time, re-stamped to start now.
func pacedProducer(script *replay.Script, threshold float64) session.Producer {
	return func(ctx context.Context, out chan<- signal.Event) error {
		start := time.Now()
		events, end, err := script.Resolve(start, threshold)
		if err != nil {
			return err
		}

		timer := time.NewTimer(0)
		defer timer.Stop()
		for _, ev := range events {
			timer.Reset(time.Until(ev.Timestamp))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		// Hold the source open so the last letter commits on its own timer.
		timer.Reset(time.Until(end))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}
}
