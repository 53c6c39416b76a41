package stt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/portfolio-agent/internal/audio"
	"github.com/spigell/portfolio-agent/internal/logger"
	"github.com/spigell/portfolio-agent/internal/turn"
)

type ProcessorConfig struct {
	MinSegmentBytes int
	Language        string
	MaxLogLength    int
}

// Processor transcodes, transcribes and classifies one segment at a time.
type Processor struct {
	transcriber Transcriber
	decider     turn.Decider
	cfg         ProcessorConfig
	logger      *zap.Logger
}

func NewProcessor(transcriber Transcriber, decider turn.Decider, cfg ProcessorConfig, l *zap.Logger) *Processor {
	if cfg.MinSegmentBytes <= 0 {
		cfg.MinSegmentBytes = DefaultMinSegmentBytes
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.MaxLogLength <= 0 {
		cfg.MaxLogLength = 200
	}
	if decider == nil {
		decider = turn.NewRules()
	}

	return &Processor{
		transcriber: transcriber,
		decider:     decider,
		cfg:         cfg,
		logger:      logger.OrNop(l),
	}
}

// Process returns the transcript and submit decision for seg. Segments at or
// below the minimum size produce an empty event without calling the backend.
func (p *Processor) Process(ctx context.Context, seg Segment) (Event, error) {
	event := Event{Seq: seg.Seq}

	if len(seg.Data) <= p.cfg.MinSegmentBytes {
		p.logger.Debug("segment below threshold, skipping",
			zap.Int("seq", seg.Seq),
			zap.Int("bytes", len(seg.Data)),
		)
		return event, nil
	}

	data, mimeType, err := audio.Transcode(seg.Data, seg.MIMEType, seg.Format)
	if err != nil {
		return event, fmt.Errorf("%w: transcode: %w", ErrProcessingFailed, err)
	}

	text, err := p.transcriber.Transcribe(ctx, Request{
		Audio:    data,
		MIMEType: mimeType,
		Language: p.cfg.Language,
	})
	switch {
	case errors.Is(err, ErrTooShort):
		p.logger.Debug("backend rejected segment as too short", zap.Int("seq", seg.Seq))
		return event, nil
	case err != nil:
		return event, fmt.Errorf("%w: transcribe: %w", ErrProcessingFailed, err)
	}

	event.Text = strings.TrimSpace(text)
	if event.Text == "" {
		return event, nil
	}

	event.ShouldSubmit = turn.Decide(ctx, p.decider, event.Text)

	p.logger.Debug("segment transcribed",
		zap.Int("seq", seg.Seq),
		zap.String("mime_type", mimeType),
		zap.String("transcript", logger.TruncateForLog(event.Text, p.cfg.MaxLogLength)),
		zap.Bool("should_submit", event.ShouldSubmit),
	)

	return event, nil
}
