package tts

import (
	"sync"

	"go.uber.org/zap"

	"github.com/spigell/portfolio-agent/internal/logger"
)

// Handle is something that is playing and can be silenced.
type Handle interface {
	Stop() error
}

// Playback tracks every active playback so that a new utterance can silence
// whatever is still speaking. It is owned by the composition root and shared
// by reference.
type Playback struct {
	mu     sync.Mutex
	nextID int
	active map[int]Handle
	subs   map[int]chan int
	logger *zap.Logger
}

func NewPlayback(l *zap.Logger) *Playback {
	return &Playback{
		active: make(map[int]Handle),
		subs:   make(map[int]chan int),
		logger: logger.OrNop(l),
	}
}

// RegisterPlayback adds h to the registry. The returned func removes it and
// should be called when playback finishes on its own.
func (p *Playback) RegisterPlayback(h Handle) func() {
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.active[id] = h
	p.notifyLocked()
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if _, ok := p.active[id]; ok {
				delete(p.active, id)
				p.notifyLocked()
			}
		})
	}
}

// StopAll stops and forgets every active playback and returns how many were
// stopped.
func (p *Playback) StopAll() int {
	p.mu.Lock()
	handles := make([]Handle, 0, len(p.active))
	for id, h := range p.active {
		handles = append(handles, h)
		delete(p.active, id)
	}
	if len(handles) > 0 {
		p.notifyLocked()
	}
	p.mu.Unlock()

	for _, h := range handles {
		if err := h.Stop(); err != nil {
			p.logger.Warn("stop playback", zap.Error(err))
		}
	}
	if len(handles) > 0 {
		p.logger.Debug("stopped playback", zap.Int("count", len(handles)))
	}
	return len(handles)
}

func (p *Playback) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

func (p *Playback) IsPlaying() bool {
	return p.ActiveCount() > 0
}

// Subscribe delivers the active count after every change. Slow subscribers
// only see the latest value. The returned func unsubscribes.
func (p *Playback) Subscribe() (<-chan int, func()) {
	ch := make(chan int, 1)

	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.subs[id] = ch
	p.mu.Unlock()

	return ch, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if _, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(ch)
		}
	}
}

func (p *Playback) notifyLocked() {
	count := len(p.active)
	for _, ch := range p.subs {
		select {
		case <-ch:
		default:
		}
		ch <- count
	}
}
