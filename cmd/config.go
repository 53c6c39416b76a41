package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/spigell/portfolio-agent/internal/capture"
	"github.com/spigell/portfolio-agent/internal/scrape"
	"github.com/spigell/portfolio-agent/internal/stt"
)

type Config struct {
	Voice      *VoiceConfig      `mapstructure:"voice" validate:"required"`
	Jobs       *JobsConfig       `mapstructure:"jobs" validate:"required"`
	AI         *AIConfig         `mapstructure:"ai" validate:"required"`
	OpenAI     *ServiceConfig    `mapstructure:"openai"`
	Deepgram   *DeepgramConfig   `mapstructure:"deepgram"`
	ElevenLabs *ElevenLabsConfig `mapstructure:"elevenlabs"`
	Firecrawl  *ServiceConfig    `mapstructure:"firecrawl"`
	Sentry     *SentryConfig     `mapstructure:"sentry"`
	// Player is the command audio is piped into, e.g. ["mpv", "--really-quiet", "-"].
	Player []string `mapstructure:"player"`
}

type VoiceConfig struct {
	Threshold       float64       `mapstructure:"vad-threshold" validate:"gt=0,lte=255"`
	SilenceDelay    time.Duration `mapstructure:"silence-delay" validate:"gt=0"`
	ChunkInterval   time.Duration `mapstructure:"chunk-interval" validate:"gt=0"`
	MinSegmentBytes int           `mapstructure:"min-segment-bytes" validate:"gte=0"`
	Language        string        `mapstructure:"language"`
	MIMETypes       []string      `mapstructure:"mime-types"`
	Provider        string        `mapstructure:"provider" validate:"oneof=whisper deepgram gemini"`
	TurnMode        string        `mapstructure:"turn-mode" validate:"oneof=rules model hybrid"`
}

type JobsConfig struct {
	Fetcher         string        `mapstructure:"fetcher" validate:"oneof=http firecrawl"`
	Extractor       string        `mapstructure:"extractor" validate:"oneof=gemini firecrawl"`
	Timeout         time.Duration `mapstructure:"timeout" validate:"gt=0"`
	BrowserFallback bool          `mapstructure:"browser-fallback"`
	ProfileFile     string        `mapstructure:"profile-file"`
	Concurrency     int           `mapstructure:"concurrency" validate:"gte=1,lte=16"`
	CacheProfile    bool          `mapstructure:"cache-profile"`
}

type AIConfig struct {
	Gemini *GeminiConfig `mapstructure:"gemini" validate:"required"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model" validate:"required"`
	MaxRetries   int    `mapstructure:"max-retries" validate:"gte=0"`
	MaxLogLength int    `mapstructure:"max-log-length" validate:"gte=0"`
}

// ServiceConfig is the common shape of a third-party API section.
type ServiceConfig struct {
	APIKeyFile string `mapstructure:"api-key-file"`
	BaseURL    string `mapstructure:"base-url" validate:"omitempty,url"`
	Model      string `mapstructure:"model"`
}

type DeepgramConfig struct {
	ServiceConfig `mapstructure:",squash"`
	Punctuate     bool `mapstructure:"punctuate"`
	SmartFormat   bool `mapstructure:"smart-format"`
}

type ElevenLabsConfig struct {
	ServiceConfig `mapstructure:",squash"`
	Voice         string `mapstructure:"voice"`
}

type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("voice.vad-threshold", capture.DefaultThreshold)
	v.SetDefault("voice.silence-delay", capture.DefaultSilenceDelay)
	v.SetDefault("voice.chunk-interval", capture.DefaultChunkInterval)
	v.SetDefault("voice.min-segment-bytes", stt.DefaultMinSegmentBytes)
	v.SetDefault("voice.language", "en")
	v.SetDefault("voice.mime-types", capture.DefaultMIMETypes)
	v.SetDefault("voice.provider", stt.ProviderWhisper)
	v.SetDefault("voice.turn-mode", "rules")

	v.SetDefault("jobs.fetcher", "http")
	v.SetDefault("jobs.extractor", "gemini")
	v.SetDefault("jobs.timeout", scrape.DefaultTimeout)
	v.SetDefault("jobs.browser-fallback", true)
	v.SetDefault("jobs.concurrency", 4)

	v.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	v.SetDefault("ai.gemini.max-retries", 2)
	v.SetDefault("ai.gemini.max-log-length", 200)

	v.SetDefault("deepgram.punctuate", true)
	v.SetDefault("deepgram.smart-format", true)

	v.SetDefault("player", []string{"mpv", "--really-quiet", "-"})
}

// decodeConfig unmarshals and validates the configuration held by v.
func decodeConfig(v *viper.Viper) (*Config, error) {
	var config *Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if config == nil {
		return nil, errors.New("config is empty")
	}

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if config.OpenAI == nil {
		config.OpenAI = &ServiceConfig{}
	}
	if config.Deepgram == nil {
		config.Deepgram = &DeepgramConfig{}
	}
	if config.ElevenLabs == nil {
		config.ElevenLabs = &ElevenLabsConfig{}
	}
	if config.Firecrawl == nil {
		config.Firecrawl = &ServiceConfig{}
	}
	if config.Sentry == nil {
		config.Sentry = &SentryConfig{}
	}

	return config, nil
}
