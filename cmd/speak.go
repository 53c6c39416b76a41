package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/portfolio-agent/internal/tts"
)

var speakCmd = &cobra.Command{
	Use:   "speak <text>...",
	Short: "Synthesize text with ElevenLabs and play it or write it to a file",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		speak(cmd, strings.Join(args, " "))
	},
}

func init() {
	rootCmd.AddCommand(speakCmd)

	speakCmd.Flags().StringP("out", "o", "", "write the mp3 to this file instead of playing it")
	speakCmd.Flags().String("voice", "", "voice id (default is elevenlabs.voice from the config)")
}

func speak(cmd *cobra.Command, text string) {
	d := setup()
	defer d.close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	synth, err := d.synthesizer()
	if err != nil {
		d.fatal("building a synthesizer", err)
	}

	voice, _ := cmd.Flags().GetString("voice")
	out, _ := cmd.Flags().GetString("out")

	if out == "" {
		if err := say(ctx, synth, d.player(), tts.NewPlayback(d.logger), text, voice); err != nil {
			d.fatal("speaking", err)
		}
		return
	}

	audio, err := synth.Synthesize(ctx, text, voice)
	if err != nil {
		d.fatal("synthesizing speech", err)
	}
	defer audio.Close()

	f, err := os.Create(out)
	if err != nil {
		d.fatal("creating an output file", err)
	}
	defer f.Close()

	n, err := io.Copy(f, audio)
	if err != nil {
		d.fatal("writing speech", err, zap.String("filename", out))
	}
	d.logger.Info("speech written", zap.String("filename", out), zap.Int64("bytes", n))
}

// say synthesizes text and pipes it into player. Playback is registered with
// registry so it can be interrupted.
func say(ctx context.Context, synth tts.Synthesizer, player tts.Command, registry *tts.Playback, text, voice string) error {
	audio, err := synth.Synthesize(ctx, text, voice)
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	defer audio.Close()

	return player.Play(ctx, registry, audio)
}
