package audio

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// CanonicalMIMEType is the encoding every PCM-family segment is converted to
// before it leaves the process.
const CanonicalMIMEType = "audio/wav"

// ErrEmptyAudio is returned when there is nothing to transcode.
var ErrEmptyAudio = errors.New("empty audio payload")

// passthrough lists compressed containers accepted natively by every
// transcription backend. They are forwarded untouched.
var passthrough = []string{
	"audio/mp4",
	"audio/mpeg",
	"audio/mp3",
	"audio/ogg",
	"audio/webm",
}

// BaseMIMEType strips parameters such as codecs from a MIME type.
func BaseMIMEType(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	return strings.ToLower(strings.TrimSpace(base))
}

// Transcode converts a captured segment to the canonical encoding and returns
// the payload with its resulting MIME type. Headerless WAV continuation data
// and raw PCM (audio/l16, audio/pcm) are wrapped using f.
func Transcode(data []byte, mimeType string, f Format) ([]byte, string, error) {
	if len(data) == 0 {
		return nil, "", ErrEmptyAudio
	}

	base := BaseMIMEType(mimeType)

	switch base {
	case "audio/wav", "audio/wave", "audio/x-wav", "audio/l16", "audio/pcm", "":
		if HasWAVHeader(data) {
			format, pcm, err := DecodeWAV(bytes.NewReader(data))
			if err != nil {
				return nil, "", fmt.Errorf("transcode %s: %w", base, err)
			}
			out, err := EncodeWAV(format, pcm)
			if err != nil {
				return nil, "", fmt.Errorf("transcode %s: %w", base, err)
			}
			return out, CanonicalMIMEType, nil
		}

		if !f.valid() {
			f = DefaultFormat
		}
		pcm := data[:len(data)-len(data)%f.BlockAlign()]
		out, err := EncodeWAV(f, pcm)
		if err != nil {
			return nil, "", fmt.Errorf("transcode %s: %w", base, err)
		}
		return out, CanonicalMIMEType, nil
	}

	for _, p := range passthrough {
		if base == p {
			return data, mimeType, nil
		}
	}

	return nil, "", fmt.Errorf("transcode: unsupported encoding %q", mimeType)
}
