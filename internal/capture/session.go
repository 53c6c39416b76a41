package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/portfolio-agent/internal/audio"
	"github.com/spigell/portfolio-agent/internal/logger"
	"github.com/spigell/portfolio-agent/internal/stt"
)

const (
	DefaultChunkInterval = 100 * time.Millisecond
	DefaultFrameInterval = 20 * time.Millisecond
	eventBuffer          = 16
)

// State is the lifecycle state of a Session.
type State int

const (
	StateIdle State = iota
	StateRequestingPermission
	StateRecording
	StateSpeaking
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateRequestingPermission:
		return "requesting-permission"
	case StateRecording:
		return "recording"
	case StateSpeaking:
		return "speaking"
	case StateStopping:
		return "stopping"
	default:
		return "idle"
	}
}

// Processor converts one segment into a transcript event.
type Processor interface {
	Process(ctx context.Context, seg stt.Segment) (stt.Event, error)
}

// Ticker produces sample times for the activity monitor.
type Ticker func(d time.Duration) (<-chan time.Time, func())

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

type Config struct {
	Constraints   Constraints
	MIMETypes     []string
	ChunkInterval time.Duration
	FrameInterval time.Duration
	Monitor       MonitorConfig
	// OnSpeechStart runs on the session goroutine whenever speech begins.
	OnSpeechStart func()
	Ticker        Ticker
}

// Session is one recording attempt. All buffer and flag state is owned by a
// single goroutine; Start, Stop, State and Err may be called from anywhere.
type Session struct {
	device    Device
	processor Processor
	cfg       Config
	logger    *zap.Logger

	mu     sync.Mutex
	state  State
	err    error
	id     string
	events chan stt.Event
	stop   chan struct{}
	done   chan struct{}
}

func NewSession(device Device, processor Processor, cfg Config, l *zap.Logger) *Session {
	if cfg.Constraints == (Constraints{}) {
		cfg.Constraints = DefaultConstraints
	}
	if len(cfg.MIMETypes) == 0 {
		cfg.MIMETypes = DefaultMIMETypes
	}
	if cfg.ChunkInterval <= 0 {
		cfg.ChunkInterval = DefaultChunkInterval
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = DefaultFrameInterval
	}
	if cfg.Ticker == nil {
		cfg.Ticker = realTicker
	}

	done := make(chan struct{})
	close(done)

	return &Session{
		device:    device,
		processor: processor,
		cfg:       cfg,
		logger:    logger.OrNop(l),
		done:      done,
	}
}

// Start acquires the device and begins recording. Errors leave the session
// idle with no hardware held.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrSessionActive
	}
	s.state = StateRequestingPermission
	s.err = nil
	s.mu.Unlock()

	stream, err := s.device.Open(ctx, s.cfg.Constraints)
	if err != nil {
		return s.abort(fmt.Errorf("open input: %w", err))
	}

	mimeType, err := SelectMIMEType(stream, s.cfg.MIMETypes)
	if err != nil {
		stream.Close()
		return s.abort(err)
	}

	recorder, err := stream.NewRecorder(mimeType)
	if err != nil {
		stream.Close()
		return s.abort(fmt.Errorf("create recorder: %w", err))
	}

	chunks, err := recorder.Start(s.cfg.ChunkInterval)
	if err != nil {
		stream.Close()
		return s.abort(fmt.Errorf("start recorder: %w", err))
	}

	ticks, stopTicks := s.cfg.Ticker(s.cfg.FrameInterval)

	id := uuid.NewString()
	run := &loop{
		session:   s,
		ctx:       ctx,
		stream:    stream,
		recorder:  recorder,
		chunks:    chunks,
		ticks:     ticks,
		stopTicks: stopTicks,
		monitor:   NewMonitor(stream.Analyser(), s.cfg.Monitor),
		format:    recorder.Format(),
		mimeType:  recorder.MIMEType(),
		results:   make(chan result, 1),
		logger:    logger.WithSession(s.logger, id),
	}
	run.procCtx, run.cancel = context.WithCancel(context.WithoutCancel(ctx))

	s.mu.Lock()
	s.id = id
	s.events = make(chan stt.Event, eventBuffer)
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.state = StateRecording
	run.out = s.events
	run.stopReq = s.stop
	run.done = s.done
	s.mu.Unlock()

	run.logger.Info("capture session started", zap.String("mime_type", run.mimeType))
	go run.run()

	return nil
}

func (s *Session) abort(err error) error {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		s.logger.Warn("microphone access denied", zap.Error(err))
	case errors.Is(err, ErrUnsupportedFormat):
		s.logger.Warn("no supported recording format", zap.Strings("preferences", s.cfg.MIMETypes))
	default:
		s.logger.Error("capture session failed to start", zap.Error(err))
	}

	s.mu.Lock()
	s.state = StateIdle
	s.err = err
	s.mu.Unlock()

	return err
}

// Stop ends recording, flushes buffered audio as a final segment and waits
// for the session to return to idle. Stopping an idle session is a no-op.
//
// The input stream is released before any waiting. When a transcription
// request is in flight, the final flush runs after that request returns, so
// Stop blocks for the remainder of its round trip. Pass a context with a
// deadline to bound the wait; on expiry Stop returns ctx.Err() and the
// session still settles in the background, closing Done when idle.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.mu.Unlock()

	if stop == nil {
		return nil
	}

	select {
	case stop <- struct{}{}:
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events delivers transcript events. It is closed when the session ends.
func (s *Session) Events() <-chan stt.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events
}

// Done is closed once the session has released everything and is idle.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that ended the last start attempt, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// ID returns the identifier of the current or last session.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

type result struct {
	event stt.Event
	err   error
}

// loop is the state owned by the session goroutine.
type loop struct {
	session   *Session
	ctx       context.Context
	procCtx   context.Context
	cancel    context.CancelFunc
	stream    Stream
	recorder  Recorder
	chunks    <-chan []byte
	ticks     <-chan time.Time
	stopTicks func()
	monitor   *Monitor
	format    audio.Format
	mimeType  string
	logger    *zap.Logger

	buffer   [][]byte
	seq      int
	inFlight bool
	pending  bool
	results  chan result
	queue    []stt.Event

	out     chan stt.Event
	stopReq chan struct{}
	done    chan struct{}

	releaseOnce sync.Once
}

func (l *loop) run() {
	defer l.finish()

	for {
		var out chan stt.Event
		var head stt.Event
		if len(l.queue) > 0 {
			out = l.out
			head = l.queue[0]
		}

		select {
		case now := <-l.ticks:
			l.sample(now)

		case chunk, ok := <-l.chunks:
			if !ok {
				l.logger.Info("input ended")
				l.shutdown(true)
				return
			}
			if len(chunk) > 0 {
				l.buffer = append(l.buffer, chunk)
			}

		case res := <-l.results:
			l.inFlight = false
			l.deliver(res, false)
			if l.pending {
				l.pending = false
				l.flush()
			}

		case out <- head:
			l.queue = l.queue[1:]

		case <-l.stopReq:
			l.shutdown(true)
			return

		case <-l.ctx.Done():
			l.logger.Warn("capture session context cancelled", zap.Error(l.ctx.Err()))
			l.shutdown(false)
			return
		}
	}
}

func (l *loop) sample(now time.Time) {
	switch l.monitor.Sample(now) {
	case SpeechStarted:
		l.session.setState(StateSpeaking)
		if l.session.cfg.OnSpeechStart != nil {
			l.session.cfg.OnSpeechStart()
		}
	case SilenceStarted:
		l.session.setState(StateRecording)
	case Boundary:
		l.logger.Debug("utterance boundary reached", zap.Int("chunks", len(l.buffer)))
		l.flush()
	}
}

// flush submits the whole buffer as one segment unless a request is already
// in flight, in which case the boundary is remembered and served when that
// request completes.
func (l *loop) flush() {
	if len(l.buffer) == 0 {
		return
	}
	if l.inFlight {
		l.pending = true
		return
	}

	seg := l.segment()
	l.inFlight = true
	go func() {
		event, err := l.session.processor.Process(l.procCtx, seg)
		l.results <- result{event: event, err: err}
	}()
}

func (l *loop) segment() stt.Segment {
	l.seq++
	seg := stt.Segment{
		Data:     bytes.Join(l.buffer, nil),
		MIMEType: l.mimeType,
		Format:   l.format,
		Seq:      l.seq,
	}
	l.buffer = nil
	return seg
}

func (l *loop) deliver(res result, final bool) {
	event := res.event
	event.Final = final
	if final {
		event.ShouldSubmit = false
	}

	if res.err != nil {
		l.logger.Warn("segment processing failed", zap.Int("seq", event.Seq), zap.Error(res.err))
		event.Err = res.err
	} else if event.Text == "" {
		return
	}

	l.queue = append(l.queue, event)
}

// shutdown releases the hardware first, then settles outstanding work. With
// flushRemaining the buffer is sent as one last segment after any in-flight
// request has finished; that request's own result is dropped.
func (l *loop) shutdown(flushRemaining bool) {
	l.session.setState(StateStopping)
	l.stopTicks()
	l.monitor.Reset()

	if err := l.recorder.Stop(); err != nil {
		l.logger.Warn("stop recorder", zap.Error(err))
	}
	for chunk := range l.chunks {
		if len(chunk) > 0 {
			l.buffer = append(l.buffer, chunk)
		}
	}
	l.release()

	if !flushRemaining {
		return
	}

	if l.inFlight {
		res := <-l.results
		l.inFlight = false
		l.logger.Debug("discarding late transcription result",
			zap.Int("seq", res.event.Seq),
			zap.Bool("should_submit", res.event.ShouldSubmit),
		)
	}

	if len(l.buffer) > 0 {
		seg := l.segment()
		event, err := l.session.processor.Process(l.procCtx, seg)
		l.deliver(result{event: event, err: err}, true)
	}
}

func (l *loop) release() {
	l.releaseOnce.Do(func() {
		if err := l.stream.Close(); err != nil {
			l.logger.Warn("release input stream", zap.Error(err))
		}
		l.logger.Debug("input stream released")
	})
}

func (l *loop) finish() {
	l.release()
	l.cancel()

	for _, event := range l.queue {
		select {
		case l.out <- event:
		default:
			l.logger.Warn("event buffer full, dropping event", zap.Int("seq", event.Seq))
		}
	}
	close(l.out)

	l.session.mu.Lock()
	l.session.state = StateIdle
	l.session.stop = nil
	l.session.mu.Unlock()

	close(l.done)
	l.logger.Info("capture session stopped")
}
