package capture

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/spigell/portfolio-agent/internal/audio"
	"github.com/spigell/portfolio-agent/internal/utils"
)

const analyserFFTSize = 512

// FileDeviceConfig controls how a recorded WAV file is replayed.
type FileDeviceConfig struct {
	// Realtime paces chunks at the recording interval. Without it the file is
	// delivered as fast as the consumer reads.
	Realtime bool
	// TrailingSilence is appended after the file so the final utterance can
	// reach a boundary before the input ends.
	TrailingSilence time.Duration
}

// FileDevice replays a 16-bit PCM WAV file as if it were a microphone.
type FileDevice struct {
	path string
	cfg  FileDeviceConfig
}

func NewFileDevice(path string, cfg FileDeviceConfig) *FileDevice {
	return &FileDevice{path: path, cfg: cfg}
}

func (d *FileDevice) Open(_ context.Context, _ Constraints) (Stream, error) {
	f, err := os.Open(d.path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, d.path)
		}
		return nil, err
	}
	defer f.Close()

	format, pcm, err := audio.DecodeWAV(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", d.path, err)
	}
	if format.BitsPerSample != 16 {
		return nil, fmt.Errorf("read %s: %w", d.path, audio.ErrUnsupportedWAV)
	}

	if d.cfg.TrailingSilence > 0 {
		silence := int(d.cfg.TrailingSilence.Seconds() * float64(format.BytesPerSecond()))
		silence -= silence % format.BlockAlign()
		pcm = append(pcm, make([]byte, silence)...)
	}

	return &fileStream{format: format, pcm: pcm, realtime: d.cfg.Realtime}, nil
}

type fileStream struct {
	format   audio.Format
	pcm      []byte
	realtime bool

	mu     sync.Mutex
	last   []int16
	closed bool
}

func (s *fileStream) Analyser() Analyser { return s }

// ByteFrequencyData analyses the most recently delivered samples.
func (s *fileStream) ByteFrequencyData() []byte {
	s.mu.Lock()
	samples := s.last
	s.mu.Unlock()

	if len(samples) > analyserFFTSize {
		samples = samples[len(samples)-analyserFFTSize:]
	}
	return audio.ByteFrequencyData(samples, analyserFFTSize/2)
}

func (s *fileStream) IsTypeSupported(mimeType string) bool {
	switch audio.BaseMIMEType(mimeType) {
	case "audio/wav", "audio/wave", "audio/x-wav", "audio/l16":
		return true
	default:
		return false
	}
}

func (s *fileStream) NewRecorder(mimeType string) (Recorder, error) {
	if !s.IsTypeSupported(mimeType) {
		return nil, ErrUnsupportedFormat
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("stream is closed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &fileRecorder{stream: s, mimeType: mimeType, ctx: ctx, cancel: cancel}, nil
}

func (s *fileStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.last = nil
	return nil
}

func (s *fileStream) observe(chunk []byte) {
	samples := audio.Samples(s.format, chunk)
	s.mu.Lock()
	s.last = samples
	s.mu.Unlock()
}

type fileRecorder struct {
	stream   *fileStream
	mimeType string
	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
}

func (r *fileRecorder) Start(interval time.Duration) (<-chan []byte, error) {
	if r.started {
		return nil, errors.New("recorder already started")
	}
	r.started = true

	size := int(interval.Seconds() * float64(r.stream.format.BytesPerSecond()))
	size -= size % r.stream.format.BlockAlign()
	if size <= 0 {
		return nil, fmt.Errorf("chunk interval %s is too short", interval)
	}

	var header []byte
	if r.mimeType != "audio/l16" {
		var err error
		if header, err = audio.WAVHeader(r.stream.format, audio.StreamingDataSize); err != nil {
			return nil, err
		}
	}

	out := make(chan []byte)
	go func() {
		defer close(out)

		pcm := r.stream.pcm
		first := true
		for offset := 0; offset < len(pcm); offset += size {
			end := min(offset+size, len(pcm))
			chunk := pcm[offset:end]
			r.stream.observe(chunk)

			if first && header != nil {
				chunk = append(header, chunk...)
			}
			first = false

			select {
			case out <- chunk:
			case <-r.ctx.Done():
				return
			}

			if r.stream.realtime {
				if err := utils.WaitFor(r.ctx, interval); err != nil {
					return
				}
			}
		}
	}()

	return out, nil
}

func (r *fileRecorder) Stop() error {
	r.cancel()
	return nil
}

func (r *fileRecorder) MIMEType() string { return r.mimeType }

func (r *fileRecorder) Format() audio.Format { return r.stream.format }
