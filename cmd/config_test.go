package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readConfig(t *testing.T, yaml string) (*Config, error) {
	t.Helper()

	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(yaml)))

	return decodeConfig(v)
}

func TestDecodeConfigDefaults(t *testing.T) {
	config, err := readConfig(t, "")
	require.NoError(t, err)

	assert.Equal(t, 20.0, config.Voice.Threshold)
	assert.Equal(t, time.Second, config.Voice.SilenceDelay)
	assert.Equal(t, "whisper", config.Voice.Provider)
	assert.Equal(t, "rules", config.Voice.TurnMode)
	assert.Equal(t, "http", config.Jobs.Fetcher)
	assert.Equal(t, 4, config.Jobs.Concurrency)
	assert.Equal(t, "gemini-2.5-flash", config.AI.Gemini.Model)
	assert.True(t, config.Deepgram.Punctuate)
	assert.Equal(t, []string{"mpv", "--really-quiet", "-"}, config.Player)

	require.NotNil(t, config.OpenAI)
	require.NotNil(t, config.ElevenLabs)
	require.NotNil(t, config.Firecrawl)
	assert.Empty(t, config.Sentry.DSN)
}

func TestDecodeConfigOverrides(t *testing.T) {
	config, err := readConfig(t, `
voice:
  vad-threshold: 35
  silence-delay: 1500ms
  provider: deepgram
  turn-mode: hybrid
jobs:
  fetcher: firecrawl
  extractor: firecrawl
  concurrency: 2
deepgram:
  api-key-file: /run/secrets/deepgram
  model: nova-2
  smart-format: false
elevenlabs:
  voice: custom-voice
sentry:
  dsn: https://key@o0.ingest.sentry.io/1
`)
	require.NoError(t, err)

	assert.Equal(t, 35.0, config.Voice.Threshold)
	assert.Equal(t, 1500*time.Millisecond, config.Voice.SilenceDelay)
	assert.Equal(t, "hybrid", config.Voice.TurnMode)
	assert.Equal(t, "firecrawl", config.Jobs.Extractor)
	assert.Equal(t, "/run/secrets/deepgram", config.Deepgram.APIKeyFile)
	assert.Equal(t, "nova-2", config.Deepgram.Model)
	assert.False(t, config.Deepgram.SmartFormat)
	assert.Equal(t, "custom-voice", config.ElevenLabs.Voice)
	assert.Equal(t, "https://key@o0.ingest.sentry.io/1", config.Sentry.DSN)
}

func TestDecodeConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "unknown provider", yaml: "voice:\n  provider: vosk\n"},
		{name: "unknown turn mode", yaml: "voice:\n  turn-mode: always\n"},
		{name: "threshold out of range", yaml: "voice:\n  vad-threshold: 300\n"},
		{name: "concurrency too high", yaml: "jobs:\n  concurrency: 64\n"},
		{name: "bad base url", yaml: "openai:\n  base-url: not a url\n"},
		{name: "empty model", yaml: "ai:\n  gemini:\n    model: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readConfig(t, tt.yaml)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid config")
		})
	}
}
