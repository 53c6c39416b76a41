package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
)

// Command plays an audio stream by piping it into an external player such as
// "mpv -" or "ffplay -nodisp -autoexit -".
type Command struct {
	Name string
	Args []string
}

// Play starts the player and registers it with registry. It returns once
// playback has finished or was stopped.
func (c Command) Play(ctx context.Context, registry *Playback, audio io.Reader) error {
	if c.Name == "" {
		return errors.New("player command is required")
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Stdin = audio

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start player: %w", err)
	}

	h := &processHandle{cmd: cmd}
	release := registry.RegisterPlayback(h)
	defer release()

	err := cmd.Wait()
	if h.wasStopped() {
		return nil
	}
	if err != nil {
		return fmt.Errorf("player: %w", err)
	}
	return nil
}

type processHandle struct {
	cmd     *exec.Cmd
	mu      sync.Mutex
	stopped bool
}

func (h *processHandle) Stop() error {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()

	if h.cmd.Process == nil {
		return nil
	}
	return h.cmd.Process.Kill()
}

func (h *processHandle) wasStopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}
