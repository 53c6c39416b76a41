package stt

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/portfolio-agent/internal/apiclient"
)

const (
	whisperURL         = "https://api.openai.com/v1"
	whisperModel       = "whisper-1"
	whisperTemperature = "0.2"
)

// Whisper transcribes through the OpenAI audio transcription endpoint.
type Whisper struct {
	client *apiclient.Client
	model  string
}

type WhisperConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

func NewWhisper(cfg WhisperConfig, l *zap.Logger) *Whisper {
	if cfg.BaseURL == "" {
		cfg.BaseURL = whisperURL
	}
	if cfg.Model == "" {
		cfg.Model = whisperModel
	}

	return &Whisper{
		client: apiclient.New(cfg.BaseURL, apiclient.Bearer(cfg.APIKey), cfg.Timeout, l),
		model:  cfg.Model,
	}
}

func (w *Whisper) Transcribe(ctx context.Context, req Request) (string, error) {
	fields := map[string]string{
		"model":           w.model,
		"temperature":     whisperTemperature,
		"response_format": "json",
	}
	if req.Language != "" {
		fields["language"] = req.Language
	}

	var resp struct {
		Text string `json:"text"`
	}

	err := w.client.PostMultipart(ctx, "/audio/transcriptions", fields, apiclient.File{
		Field:       "file",
		Name:        filename(req.MIMEType),
		ContentType: req.MIMEType,
		Data:        req.Audio,
	}, &resp)
	if err != nil {
		var statusErr *apiclient.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusBadRequest &&
			strings.Contains(strings.ToLower(statusErr.Body), "too short") {
			return "", ErrTooShort
		}
		return "", err
	}

	return strings.TrimSpace(resp.Text), nil
}
