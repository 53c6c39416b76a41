package capture

import (
	"time"

	"github.com/spigell/portfolio-agent/internal/audio"
)

const (
	DefaultThreshold    = 20.0
	DefaultSilenceDelay = 1000 * time.Millisecond
)

// Activity is the result of one monitor sample.
type Activity int

const (
	Silent Activity = iota
	Speaking
	// SpeechStarted is reported on the sample where silence turns into speech.
	SpeechStarted
	// SilenceStarted is reported on the sample where speech turns into silence.
	SilenceStarted
	// Boundary is reported once when silence has lasted the full delay.
	Boundary
)

func (a Activity) String() string {
	switch a {
	case Speaking:
		return "speaking"
	case SpeechStarted:
		return "speech-started"
	case SilenceStarted:
		return "silence-started"
	case Boundary:
		return "boundary"
	default:
		return "silent"
	}
}

type MonitorConfig struct {
	Threshold    float64
	SilenceDelay time.Duration
}

// Monitor classifies analyser samples as speech or silence and tracks the
// silence timer. It is driven by the caller's sample timestamps, so it has no
// goroutines or timers of its own.
type Monitor struct {
	analyser Analyser
	cfg      MonitorConfig

	speaking bool
	armed    bool
	deadline time.Time
}

func NewMonitor(analyser Analyser, cfg MonitorConfig) *Monitor {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.SilenceDelay <= 0 {
		cfg.SilenceDelay = DefaultSilenceDelay
	}
	return &Monitor{analyser: analyser, cfg: cfg}
}

// IsSpeaking reports whether the average magnitude of freq exceeds threshold.
func IsSpeaking(freq []byte, threshold float64) bool {
	return audio.AverageMagnitude(freq) > threshold
}

// Sample reads the analyser at now. A missing analyser reads as silence.
func (m *Monitor) Sample(now time.Time) Activity {
	speaking := false
	if m.analyser != nil {
		speaking = IsSpeaking(m.analyser.ByteFrequencyData(), m.cfg.Threshold)
	}

	switch {
	case speaking && !m.speaking:
		m.speaking = true
		m.armed = false
		return SpeechStarted
	case speaking:
		return Speaking
	case m.speaking:
		m.speaking = false
		m.armed = true
		m.deadline = now.Add(m.cfg.SilenceDelay)
		return SilenceStarted
	case m.armed && !now.Before(m.deadline):
		m.armed = false
		return Boundary
	default:
		return Silent
	}
}

// Reset cancels a pending silence timer and forgets the speaking state.
func (m *Monitor) Reset() {
	m.speaking = false
	m.armed = false
}
