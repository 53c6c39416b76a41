// Package audio holds the PCM and WAV plumbing shared by capture and transcription.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavHeaderSize = 44
	pcmFormatTag  = 1

	// StreamingDataSize marks a WAV header written before the data length is known.
	StreamingDataSize = 0xFFFFFFFF
)

var (
	// ErrNotWAV is returned when a payload does not start with a RIFF/WAVE header.
	ErrNotWAV = errors.New("not a RIFF/WAVE payload")
	// ErrUnsupportedWAV is returned for WAV payloads that are not 16-bit PCM.
	ErrUnsupportedWAV = errors.New("only 16-bit PCM WAV is supported")
)

// Format describes interleaved little-endian signed PCM.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// DefaultFormat is mono 16 kHz 16-bit PCM.
var DefaultFormat = Format{SampleRate: 16000, Channels: 1, BitsPerSample: 16}

// BytesPerSecond returns the PCM byte rate of the format.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * f.BitsPerSample / 8
}

// BlockAlign returns the size of one frame across all channels.
func (f Format) BlockAlign() int {
	return f.Channels * f.BitsPerSample / 8
}

func (f Format) valid() bool {
	return f.SampleRate > 0 && f.Channels > 0 && f.BitsPerSample == 16
}

// EncodeWAV wraps 16-bit PCM bytes into a canonical 44-byte-header WAV container.
func EncodeWAV(f Format, pcm []byte) ([]byte, error) {
	if !f.valid() {
		return nil, ErrUnsupportedWAV
	}

	out := &seekBuffer{data: make([]byte, 0, wavHeaderSize+len(pcm))}
	enc := wav.NewEncoder(out, f.SampleRate, f.BitsPerSample, f.Channels, pcmFormatTag)

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: f.Channels, SampleRate: f.SampleRate},
		Data:           intSamples(pcm[:len(pcm)-len(pcm)%f.BlockAlign()]),
		SourceBitDepth: f.BitsPerSample,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	return out.data, nil
}

// WAVHeader returns the canonical header for dataSize bytes of PCM. Pass
// StreamingDataSize when the length is not known yet.
func WAVHeader(f Format, dataSize uint32) ([]byte, error) {
	header, err := EncodeWAV(f, nil)
	if err != nil {
		return nil, err
	}

	riffSize := dataSize + wavHeaderSize - 8
	if dataSize == StreamingDataSize {
		riffSize = StreamingDataSize
	}
	binary.LittleEndian.PutUint32(header[4:8], riffSize)
	binary.LittleEndian.PutUint32(header[40:44], dataSize)
	return header, nil
}

// HasWAVHeader reports whether data starts with a RIFF/WAVE signature.
func HasWAVHeader(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// DecodeWAV parses a 16-bit PCM WAV payload. Unknown chunks are skipped and a
// streaming data size is treated as "until end of input".
func DecodeWAV(r io.Reader) (Format, []byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Format{}, nil, fmt.Errorf("read wav: %w", err)
	}
	if !HasWAVHeader(data) {
		return Format{}, nil, ErrNotWAV
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		return Format{}, nil, fmt.Errorf("read wav header: %w: %w", ErrUnsupportedWAV, err)
	}

	format := Format{
		SampleRate:    int(dec.SampleRate),
		Channels:      int(dec.NumChans),
		BitsPerSample: int(dec.BitDepth),
	}
	if dec.WavAudioFormat != pcmFormatTag || !format.valid() {
		return Format{}, nil, ErrUnsupportedWAV
	}

	if err := dec.FwdToPCM(); err != nil || dec.PCMChunk == nil {
		return Format{}, nil, fmt.Errorf("missing data chunk: %w", ErrUnsupportedWAV)
	}

	// The decoder stops right after the data chunk header. Its own size
	// bookkeeping pads odd sizes, which wraps a streaming size to zero, so the
	// declared size is read from the header.
	start, err := dec.Seek(0, io.SeekCurrent)
	if err != nil || start < 8 || start > int64(len(data)) {
		return Format{}, nil, fmt.Errorf("locate wav data: %w", ErrUnsupportedWAV)
	}
	size := binary.LittleEndian.Uint32(data[start-4 : start])

	end := len(data)
	if size != StreamingDataSize && start+int64(size) < int64(end) {
		end = int(start) + int(size)
	}
	pcm := data[start:end]
	pcm = pcm[:len(pcm)-len(pcm)%format.BlockAlign()]

	return format, pcm, nil
}

// Samples converts little-endian 16-bit PCM into samples of the first channel.
func Samples(f Format, pcm []byte) []int16 {
	align := f.BlockAlign()
	if align <= 0 {
		return nil
	}

	samples := make([]int16, 0, len(pcm)/align)
	for offset := 0; offset+align <= len(pcm); offset += align {
		samples = append(samples, int16(binary.LittleEndian.Uint16(pcm[offset:])))
	}
	return samples
}

func intSamples(pcm []byte) []int {
	out := make([]int, len(pcm)/2)
	for i := range out {
		out[i] = int(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
	}
	return out
}

// seekBuffer is the in-memory io.WriteSeeker the wav encoder needs to patch
// its size fields.
type seekBuffer struct {
	data []byte
	pos  int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if end := b.pos + len(p); end > len(b.data) {
		b.data = append(b.data, make([]byte, end-len(b.data))...)
	}
	copy(b.data[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	base := 0
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = b.pos
	case io.SeekEnd:
		base = len(b.data)
	default:
		return 0, fmt.Errorf("seek: invalid whence %d", whence)
	}

	pos := base + int(offset)
	if pos < 0 {
		return 0, errors.New("seek: negative position")
	}
	b.pos = pos
	return int64(pos), nil
}
