// Package capture records audio from an input device, splits it into
// utterances with a voice activity monitor and hands each utterance to a
// segment processor.
package capture

import (
	"context"
	"errors"
	"time"

	"github.com/spigell/portfolio-agent/internal/audio"
)

var (
	// ErrPermissionDenied is returned when the input device refuses access.
	ErrPermissionDenied = errors.New("microphone permission denied")
	// ErrUnsupportedFormat is returned when no preferred recording format is
	// supported by the stream.
	ErrUnsupportedFormat = errors.New("no supported recording format")
	// ErrSessionActive is returned by Start on a session that is not idle.
	ErrSessionActive = errors.New("capture session already active")
)

// Constraints are requested from the device when the stream is opened.
type Constraints struct {
	SampleRate       int
	Channels         int
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

// DefaultConstraints asks for mono 16 kHz voice with the usual processing.
var DefaultConstraints = Constraints{
	SampleRate:       16000,
	Channels:         1,
	EchoCancellation: true,
	NoiseSuppression: true,
	AutoGainControl:  true,
}

// DefaultMIMETypes is the recording preference list, most compatible first.
var DefaultMIMETypes = []string{
	"audio/wav",
	"audio/mp4",
	"audio/mpeg",
	"audio/mp3",
	"audio/ogg;codecs=opus",
	"audio/webm;codecs=opus",
	"audio/webm",
}

// Device is an audio input. Open returns ErrPermissionDenied (possibly
// wrapped) when access is refused.
type Device interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is an open input. Close releases the hardware and must be safe to
// call more than once.
type Stream interface {
	// Analyser returns the frequency analyser of the stream, or nil when
	// none is available.
	Analyser() Analyser
	IsTypeSupported(mimeType string) bool
	NewRecorder(mimeType string) (Recorder, error)
	Close() error
}

// Analyser reports the current frequency-domain magnitudes on a 0-255 scale.
type Analyser interface {
	ByteFrequencyData() []byte
}

// Recorder encodes the stream into chunks. The channel returned by Start
// delivers one chunk per interval and is closed after Stop, once any
// remaining data has been delivered, or when the input ends.
type Recorder interface {
	Start(interval time.Duration) (<-chan []byte, error)
	Stop() error
	MIMEType() string
	Format() audio.Format
}

// SelectMIMEType returns the first entry of preferences that stream supports.
func SelectMIMEType(stream Stream, preferences []string) (string, error) {
	if len(preferences) == 0 {
		preferences = DefaultMIMETypes
	}

	for _, mimeType := range preferences {
		if stream.IsTypeSupported(mimeType) {
			return mimeType, nil
		}
	}

	return "", ErrUnsupportedFormat
}
