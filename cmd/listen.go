package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/portfolio-agent/internal/capture"
	"github.com/spigell/portfolio-agent/internal/stt"
	"github.com/spigell/portfolio-agent/internal/tts"
)

const stopTimeout = 2 * requestTimeout

var listenCmd = &cobra.Command{
	Use:   "listen <file.wav>",
	Short: "Transcribe a recorded conversation utterance by utterance",
	Long: "listen replays a 16-bit PCM WAV file through the voice activity monitor, " +
		"transcribes every utterance and reports whether it is ready to be submitted.",
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		listen(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(listenCmd)

	listenCmd.Flags().Bool("realtime", false, "replay the file at recording speed")
	listenCmd.Flags().Duration("trailing-silence", 2*time.Second, "silence appended after the file")
	listenCmd.Flags().Bool("echo", false, "read submitted transcripts back with text-to-speech")
}

func listen(cmd *cobra.Command, path string) {
	d := setup()
	defer d.close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	d.logger.Info("starting the portfolio-agent listener", zap.String("version", version), zap.String("file", path))

	transcriber, err := d.transcriber(ctx)
	if err != nil {
		d.fatal("building a transcriber", err, zap.String("provider", d.config.Voice.Provider))
	}

	decider, err := d.decider(ctx)
	if err != nil {
		d.fatal("building a turn decider", err, zap.String("mode", d.config.Voice.TurnMode))
	}

	processor := stt.NewProcessor(transcriber, decider, stt.ProcessorConfig{
		MinSegmentBytes: d.config.Voice.MinSegmentBytes,
		Language:        d.config.Voice.Language,
		MaxLogLength:    d.config.AI.Gemini.MaxLogLength,
	}, d.logger)

	var synth tts.Synthesizer
	if echo, _ := cmd.Flags().GetBool("echo"); echo {
		if synth, err = d.synthesizer(); err != nil {
			d.fatal("building a synthesizer", err)
		}
	}
	playback := tts.NewPlayback(d.logger)

	realtime, _ := cmd.Flags().GetBool("realtime")
	trailing, _ := cmd.Flags().GetDuration("trailing-silence")
	device := capture.NewFileDevice(path, capture.FileDeviceConfig{
		Realtime:        realtime,
		TrailingSilence: trailing,
	})

	session := capture.NewSession(device, processor, capture.Config{
		MIMETypes:     d.config.Voice.MIMETypes,
		ChunkInterval: d.config.Voice.ChunkInterval,
		Monitor: capture.MonitorConfig{
			Threshold:    d.config.Voice.Threshold,
			SilenceDelay: d.config.Voice.SilenceDelay,
		},
		OnSpeechStart: func() {
			if stopped := playback.StopAll(); stopped > 0 {
				d.logger.Info("speech detected, playback interrupted", zap.Int("stopped", stopped))
			}
		},
	}, d.logger)

	// The session outlives ctx so that an interrupt stops it gracefully and
	// the buffered audio is still flushed.
	if err := session.Start(context.Background()); err != nil {
		d.fatal("starting a capture session", err)
	}

	go func() {
		select {
		case <-ctx.Done():
		case <-session.Done():
			return
		}
		d.logger.Info("stopping the capture session", zap.String("session", session.ID()))
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if err := session.Stop(stopCtx); err != nil {
			d.logger.Warn("stopping the capture session", zap.Error(err))
		}
	}()

	submitted := 0
	for event := range session.Events() {
		if event.Err != nil {
			d.report(event.Err)
			d.logger.Warn("utterance failed", zap.Int("seq", event.Seq), zap.Error(event.Err))
			continue
		}

		d.logger.Info("transcript",
			zap.Int("seq", event.Seq),
			zap.String("text", event.Text),
			zap.Bool("should_submit", event.ShouldSubmit),
			zap.Bool("final", event.Final),
		)

		if !event.ShouldSubmit {
			continue
		}
		submitted++

		if synth != nil {
			go func(text string) {
				if err := say(ctx, synth, d.player(), playback, text, ""); err != nil {
					d.logger.Warn("reading transcript back", zap.Error(err))
				}
			}(event.Text)
		}
	}

	<-session.Done()
	playback.StopAll()

	if err := session.Err(); err != nil {
		d.fatal("capture session failed", err, zap.String("session", session.ID()))
	}
	d.logger.Info("capture session finished", zap.String("session", session.ID()), zap.Int("submitted", submitted))
}
