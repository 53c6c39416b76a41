package tts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElevenLabsSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/text-to-speech/voice-1", r.URL.Path)
		assert.Equal(t, "el-key", r.Header.Get("xi-api-key"))
		assert.Equal(t, "audio/mpeg", r.Header.Get("Accept"))

		var req synthesisRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Hello there.", req.Text)
		assert.Equal(t, "eleven_multilingual_v2", req.ModelID)
		assert.InDelta(t, 0.5, req.VoiceSettings.Stability, 1e-9)
		assert.InDelta(t, 0.8, req.VoiceSettings.SimilarityBoost, 1e-9)
		assert.True(t, req.VoiceSettings.UseSpeakerBoost)

		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-mp3"))
	}))
	defer srv.Close()

	el := NewElevenLabs(ElevenLabsConfig{APIKey: "el-key", BaseURL: srv.URL, DefaultVoice: "voice-1"}, nil)
	body, err := el.Synthesize(context.Background(), " Hello there. ", "")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "ID3-mp3", string(data))
}

func TestElevenLabsRejectsEmptyText(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	el := NewElevenLabs(ElevenLabsConfig{APIKey: "k", BaseURL: srv.URL, DefaultVoice: "v"}, nil)
	_, err := el.Synthesize(context.Background(), "   ", "")
	assert.True(t, errors.Is(err, ErrEmptyText))
	assert.Zero(t, calls.Load())
}

func TestElevenLabsSurfacesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	el := NewElevenLabs(ElevenLabsConfig{APIKey: "k", BaseURL: srv.URL}, nil)
	_, err := el.Synthesize(context.Background(), "hi", "voice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

type fakeHandle struct {
	stops atomic.Int32
	err   error
}

func (h *fakeHandle) Stop() error {
	h.stops.Add(1)
	return h.err
}

func TestPlaybackRegistry(t *testing.T) {
	p := NewPlayback(nil)
	updates, unsubscribe := p.Subscribe()
	defer unsubscribe()

	a, b := &fakeHandle{}, &fakeHandle{err: errors.New("already finished")}
	releaseA := p.RegisterPlayback(a)
	p.RegisterPlayback(b)

	assert.Equal(t, 2, p.ActiveCount())
	assert.True(t, p.IsPlaying())
	assert.Equal(t, 2, <-updates)

	releaseA()
	releaseA()
	assert.Equal(t, 1, p.ActiveCount())

	assert.Equal(t, 1, p.StopAll())
	assert.Equal(t, int32(0), a.stops.Load())
	assert.Equal(t, int32(1), b.stops.Load())
	assert.False(t, p.IsPlaying())
	assert.Equal(t, 0, <-updates)

	assert.Zero(t, p.StopAll())
}

func TestPlaybackUnsubscribeClosesChannel(t *testing.T) {
	p := NewPlayback(nil)
	updates, unsubscribe := p.Subscribe()
	unsubscribe()
	unsubscribe()

	_, ok := <-updates
	assert.False(t, ok)

	p.RegisterPlayback(&fakeHandle{})
	assert.Equal(t, 1, p.ActiveCount())
}
