// Package stt turns captured audio segments into transcripts and decides
// whether each transcript is ready to be submitted.
package stt

import (
	"context"
	"errors"

	"github.com/spigell/portfolio-agent/internal/audio"
)

// DefaultMinSegmentBytes is the size below which a segment is treated as noise.
const DefaultMinSegmentBytes = 1000

var (
	// ErrProcessingFailed is reported to callers for any transcoding or
	// transcription failure. It is never retried automatically.
	ErrProcessingFailed = errors.New("audio processing failed")
	// ErrTooShort is returned by backends that reject a clip as too short.
	// The processor maps it to an empty transcript.
	ErrTooShort = errors.New("audio too short")
)

// Segment is one batch of captured audio, flushed at an utterance boundary.
type Segment struct {
	Data     []byte
	MIMEType string
	// Format describes headerless PCM payloads.
	Format audio.Format
	Seq    int
}

// Event is the outcome of processing one segment.
type Event struct {
	Text         string
	ShouldSubmit bool
	// Final marks the flush produced by stopping a session.
	Final bool
	Seq   int
	// Err is set by the capture session when the segment could not be
	// processed. It wraps ErrProcessingFailed.
	Err error
}

// Request is sent to a transcription backend.
type Request struct {
	Audio    []byte
	MIMEType string
	Language string
}

// Transcriber is the speech-to-text boundary.
type Transcriber interface {
	Transcribe(ctx context.Context, req Request) (string, error)
}

// Provider names.
const (
	ProviderWhisper  = "whisper"
	ProviderDeepgram = "deepgram"
	ProviderGemini   = "gemini"
)

func filename(mimeType string) string {
	switch audio.BaseMIMEType(mimeType) {
	case "audio/wav", "audio/wave", "audio/x-wav":
		return "audio.wav"
	case "audio/mp4":
		return "audio.m4a"
	case "audio/mpeg", "audio/mp3":
		return "audio.mp3"
	case "audio/ogg":
		return "audio.ogg"
	case "audio/webm":
		return "audio.webm"
	default:
		return "audio.bin"
	}
}
