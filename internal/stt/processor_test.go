package stt

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/portfolio-agent/internal/audio"
	"github.com/spigell/portfolio-agent/internal/turn"
)

type fakeTranscriber struct {
	text     string
	err      error
	requests []Request
}

func (f *fakeTranscriber) Transcribe(_ context.Context, req Request) (string, error) {
	f.requests = append(f.requests, req)
	return f.text, f.err
}

type failingDecider struct{}

func (failingDecider) Decide(context.Context, string) (bool, error) {
	return true, errors.New("delegate down")
}

func pcm(n int) []byte {
	return bytes.Repeat([]byte{0x10, 0x00}, n/2)
}

func TestProcessSkipsSmallSegments(t *testing.T) {
	for _, size := range []int{0, 10, 999, 1000} {
		tr := &fakeTranscriber{text: "should not be used"}
		p := NewProcessor(tr, turn.NewRules(), ProcessorConfig{}, nil)

		event, err := p.Process(context.Background(), Segment{Data: pcm(size), MIMEType: "audio/wav", Seq: 3})
		require.NoError(t, err)
		assert.Empty(t, event.Text)
		assert.False(t, event.ShouldSubmit)
		assert.Equal(t, 3, event.Seq)
		assert.Empty(t, tr.requests, "no backend call for %d bytes", size)
	}
}

func TestProcessTranscodesAndDecides(t *testing.T) {
	tr := &fakeTranscriber{text: "  Could you summarize your Go experience?  "}
	p := NewProcessor(tr, turn.NewRules(), ProcessorConfig{Language: "en"}, nil)

	event, err := p.Process(context.Background(), Segment{
		Data:     pcm(4000),
		MIMEType: "audio/wav",
		Format:   audio.DefaultFormat,
	})
	require.NoError(t, err)

	assert.Equal(t, "Could you summarize your Go experience?", event.Text)
	assert.True(t, event.ShouldSubmit)

	require.Len(t, tr.requests, 1)
	req := tr.requests[0]
	assert.Equal(t, audio.CanonicalMIMEType, req.MIMEType)
	assert.Equal(t, "en", req.Language)
	assert.True(t, audio.HasWAVHeader(req.Audio))
}

func TestProcessHoldsIncompleteThought(t *testing.T) {
	tr := &fakeTranscriber{text: "I was working on the backend and"}
	p := NewProcessor(tr, turn.NewRules(), ProcessorConfig{}, nil)

	event, err := p.Process(context.Background(), Segment{Data: pcm(4000), MIMEType: "audio/wav"})
	require.NoError(t, err)
	assert.NotEmpty(t, event.Text)
	assert.False(t, event.ShouldSubmit)
}

func TestProcessDelegateErrorHolds(t *testing.T) {
	tr := &fakeTranscriber{text: "I really enjoyed that project"}
	p := NewProcessor(tr, failingDecider{}, ProcessorConfig{}, nil)

	event, err := p.Process(context.Background(), Segment{Data: pcm(4000), MIMEType: "audio/wav"})
	require.NoError(t, err)
	assert.False(t, event.ShouldSubmit)
}

func TestProcessBackendFailure(t *testing.T) {
	tr := &fakeTranscriber{err: errors.New("502 bad gateway")}
	p := NewProcessor(tr, turn.NewRules(), ProcessorConfig{}, nil)

	_, err := p.Process(context.Background(), Segment{Data: pcm(4000), MIMEType: "audio/wav"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProcessingFailed)
	assert.Len(t, tr.requests, 1, "no automatic retry")
}

func TestProcessTooShortIsEmpty(t *testing.T) {
	tr := &fakeTranscriber{err: ErrTooShort}
	p := NewProcessor(tr, turn.NewRules(), ProcessorConfig{}, nil)

	event, err := p.Process(context.Background(), Segment{Data: pcm(4000), MIMEType: "audio/wav"})
	require.NoError(t, err)
	assert.Empty(t, event.Text)
	assert.False(t, event.ShouldSubmit)
}

func TestProcessUnsupportedFormat(t *testing.T) {
	tr := &fakeTranscriber{text: "hello"}
	p := NewProcessor(tr, turn.NewRules(), ProcessorConfig{}, nil)

	_, err := p.Process(context.Background(), Segment{Data: pcm(4000), MIMEType: "video/x-matroska"})
	assert.ErrorIs(t, err, ErrProcessingFailed)
	assert.Empty(t, tr.requests)
}
