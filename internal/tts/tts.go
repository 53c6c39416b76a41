// Package tts synthesizes speech and tracks what is currently being played.
package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/portfolio-agent/internal/apiclient"
)

const (
	elevenLabsURL   = "https://api.elevenlabs.io/v1"
	elevenLabsModel = "eleven_multilingual_v2"
	outputMIMEType  = "audio/mpeg"
)

// ErrEmptyText is returned before any request is made.
var ErrEmptyText = errors.New("text to synthesize is required")

// Synthesizer is the text-to-speech boundary.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) (io.ReadCloser, error)
}

type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

var DefaultVoiceSettings = VoiceSettings{
	Stability:       0.5,
	SimilarityBoost: 0.8,
	Style:           0,
	UseSpeakerBoost: true,
}

type ElevenLabsConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	DefaultVoice string
	Settings     *VoiceSettings
	Timeout      time.Duration
}

// ElevenLabs streams MPEG audio from the ElevenLabs API.
type ElevenLabs struct {
	client   *apiclient.Client
	model    string
	voice    string
	settings VoiceSettings
}

func NewElevenLabs(cfg ElevenLabsConfig, l *zap.Logger) *ElevenLabs {
	if cfg.BaseURL == "" {
		cfg.BaseURL = elevenLabsURL
	}
	if cfg.Model == "" {
		cfg.Model = elevenLabsModel
	}
	settings := DefaultVoiceSettings
	if cfg.Settings != nil {
		settings = *cfg.Settings
	}

	client := apiclient.New(cfg.BaseURL, apiclient.Header("xi-api-key", "", cfg.APIKey), cfg.Timeout, l)
	return &ElevenLabs{
		client:   client,
		model:    cfg.Model,
		voice:    cfg.DefaultVoice,
		settings: settings,
	}
}

type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

// Synthesize returns the audio stream for text. An empty voiceID selects the
// configured default voice. The caller closes the stream.
func (e *ElevenLabs) Synthesize(ctx context.Context, text, voiceID string) (io.ReadCloser, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if voiceID == "" {
		voiceID = e.voice
	}
	if voiceID == "" {
		return nil, errors.New("voice id is required")
	}

	body, err := e.client.PostJSONStream(ctx, "/text-to-speech/"+voiceID, synthesisRequest{
		Text:          text,
		ModelID:       e.model,
		VoiceSettings: e.settings,
	}, outputMIMEType)
	if err != nil {
		return nil, fmt.Errorf("synthesize speech: %w", err)
	}

	return body, nil
}
