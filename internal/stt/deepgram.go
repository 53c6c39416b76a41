package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/spigell/portfolio-agent/internal/logger"
)

const (
	deepgramWSURL       = "wss://api.deepgram.com/v1/listen"
	deepgramModel       = "nova-2"
	deepgramReadTimeout = 30 * time.Second
)

var closeStreamMessage = []byte(`{"type":"CloseStream"}`)

// Deepgram transcribes one segment per streaming connection: the clip is
// written as a single binary frame, the stream is closed, and every final
// result is collected until the server hangs up.
type Deepgram struct {
	cfg    DeepgramConfig
	dialer *websocket.Dialer
	logger *zap.Logger
}

type DeepgramConfig struct {
	APIKey      string
	URL         string
	Model       string
	Punctuate   bool
	SmartFormat bool
	ReadTimeout time.Duration
}

type deepgramResponse struct {
	Type    string `json:"type"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
	IsFinal bool `json:"is_final"`
}

func NewDeepgram(cfg DeepgramConfig, l *zap.Logger) *Deepgram {
	if cfg.URL == "" {
		cfg.URL = deepgramWSURL
	}
	if cfg.Model == "" {
		cfg.Model = deepgramModel
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = deepgramReadTimeout
	}

	return &Deepgram{
		cfg:    cfg,
		dialer: websocket.DefaultDialer,
		logger: logger.WithCommonFields(logger.OrNop(l), ProviderDeepgram, cfg.Model),
	}
}

func (d *Deepgram) Transcribe(ctx context.Context, req Request) (string, error) {
	headers := http.Header{}
	headers.Set("Authorization", "Token "+d.cfg.APIKey)

	conn, _, err := d.dialer.DialContext(ctx, d.listenURL(req.Language), headers)
	if err != nil {
		return "", fmt.Errorf("connect to deepgram: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := conn.WriteMessage(websocket.BinaryMessage, req.Audio); err != nil {
		return "", fmt.Errorf("stream audio: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, closeStreamMessage); err != nil {
		return "", fmt.Errorf("close stream: %w", err)
	}

	var parts []string
	for {
		_ = conn.SetReadDeadline(time.Now().Add(d.cfg.ReadTimeout))

		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				break
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", fmt.Errorf("read error: %w", err)
		}

		var resp deepgramResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			d.logger.Debug("skipping unparseable deepgram message", zap.Error(err))
			continue
		}

		if resp.Type == "Metadata" {
			break
		}
		if resp.Type != "Results" || !resp.IsFinal || len(resp.Channel.Alternatives) == 0 {
			continue
		}

		if text := strings.TrimSpace(resp.Channel.Alternatives[0].Transcript); text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " "), nil
}

func (d *Deepgram) listenURL(language string) string {
	q := url.Values{}
	q.Set("model", d.cfg.Model)
	if language != "" {
		q.Set("language", language)
	}
	q.Set("punctuate", fmt.Sprintf("%t", d.cfg.Punctuate))
	q.Set("smart_format", fmt.Sprintf("%t", d.cfg.SmartFormat))

	return d.cfg.URL + "?" + q.Encode()
}
