package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/portfolio-agent/internal/ai/gemini"
	"github.com/spigell/portfolio-agent/internal/jobs"
	"github.com/spigell/portfolio-agent/internal/logger"
	"github.com/spigell/portfolio-agent/internal/scrape"
	"github.com/spigell/portfolio-agent/internal/secrets"
	"github.com/spigell/portfolio-agent/internal/stt"
	"github.com/spigell/portfolio-agent/internal/tts"
	"github.com/spigell/portfolio-agent/internal/turn"
)

const (
	providerGemini  = "gemini"
	defaultVoiceID  = "21m00Tcm4TlvDq8ikWAM"
	requestTimeout  = 30 * time.Second
	sentryFlushWait = 2 * time.Second
)

// deps builds the components a command needs from the configuration. The
// Gemini generator is created on first use and shared.
type deps struct {
	config *Config
	logger *zap.Logger
	sentry bool

	generator *gemini.Generator
}

// setup creates the logger, reads the config and initialises Sentry. Any
// failure here is fatal.
func setup() *deps {
	l, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		l.Fatal("getting a config", zap.Error(err))
	}

	d := &deps{config: config, logger: l}
	d.initSentry()
	return d
}

func (d *deps) initSentry() {
	dsn := d.config.Sentry.DSN
	if dsn == "" {
		return
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: d.config.Sentry.Environment,
		Release:     app + "@" + version,
	})
	if err != nil {
		d.logger.Warn("sentry init failed", zap.Error(err))
		return
	}
	d.sentry = true
	d.logger.Debug("sentry initialized")
}

// report sends err to Sentry when it is configured.
func (d *deps) report(err error) {
	if d.sentry && err != nil {
		sentry.CaptureException(err)
	}
}

// close flushes pending Sentry events.
func (d *deps) close() {
	if d.sentry {
		sentry.Flush(sentryFlushWait)
	}
	_ = d.logger.Sync()
}

// fatal reports err, flushes and exits.
func (d *deps) fatal(msg string, err error, fields ...zap.Field) {
	d.report(err)
	if d.sentry {
		sentry.Flush(sentryFlushWait)
	}
	d.logger.Fatal(msg, append(fields, zap.Error(err))...)
}

func (d *deps) geminiGenerator(ctx context.Context) (*gemini.Generator, error) {
	if d.generator != nil {
		return d.generator, nil
	}

	cfg := d.config.AI.Gemini
	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.APIKeyFile,
		Env:  "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (or set ai.gemini.api-key-file)", err)
	}

	genLogger := logger.WithCommonFields(d.logger, providerGemini, cfg.Model).
		With(zap.Int("ai_retry_attempts", cfg.MaxRetries))

	generator, err := gemini.NewGenerator(ctx, apiKey, gemini.Options{
		Model:        cfg.Model,
		MaxRetries:   cfg.MaxRetries,
		MaxLogLength: cfg.MaxLogLength,
	}, genLogger)
	if err != nil {
		return nil, err
	}

	d.generator = generator
	return generator, nil
}

func (d *deps) transcriber(ctx context.Context) (stt.Transcriber, error) {
	switch provider := d.config.Voice.Provider; provider {
	case stt.ProviderWhisper:
		key, err := secrets.Load(secrets.Source{Name: "openai api key", File: d.config.OpenAI.APIKeyFile, Env: "OPENAI_API_KEY"})
		if err != nil {
			return nil, err
		}
		return stt.NewWhisper(stt.WhisperConfig{
			APIKey:  key,
			BaseURL: d.config.OpenAI.BaseURL,
			Model:   d.config.OpenAI.Model,
			Timeout: requestTimeout,
		}, d.logger), nil
	case stt.ProviderDeepgram:
		key, err := secrets.Load(secrets.Source{Name: "deepgram api key", File: d.config.Deepgram.APIKeyFile, Env: "DEEPGRAM_API_KEY"})
		if err != nil {
			return nil, err
		}
		return stt.NewDeepgram(stt.DeepgramConfig{
			APIKey:      key,
			URL:         d.config.Deepgram.BaseURL,
			Model:       d.config.Deepgram.Model,
			Punctuate:   d.config.Deepgram.Punctuate,
			SmartFormat: d.config.Deepgram.SmartFormat,
		}, d.logger), nil
	case stt.ProviderGemini:
		generator, err := d.geminiGenerator(ctx)
		if err != nil {
			return nil, err
		}
		return stt.NewGemini(generator), nil
	default:
		return nil, fmt.Errorf("unsupported transcription provider: %s", provider)
	}
}

func (d *deps) decider(ctx context.Context) (turn.Decider, error) {
	mode, err := turn.ParseMode(d.config.Voice.TurnMode)
	if err != nil {
		return nil, err
	}
	if mode == turn.ModeRules {
		return turn.NewRules(), nil
	}

	generator, err := d.geminiGenerator(ctx)
	if err != nil {
		return nil, fmt.Errorf("turn mode %s needs a model: %w", mode, err)
	}
	return turn.New(mode, generator, d.logger), nil
}

func (d *deps) analyzer(ctx context.Context) (*jobs.Analyzer, error) {
	cfg := d.config.Jobs

	profile, err := jobs.LoadProfile(cfg.ProfileFile)
	if err != nil {
		return nil, err
	}

	generator, err := d.geminiGenerator(ctx)
	if err != nil {
		return nil, err
	}

	var firecrawl *scrape.Firecrawl
	if cfg.Fetcher == "firecrawl" || cfg.Extractor == "firecrawl" {
		key, err := secrets.Load(secrets.Source{Name: "firecrawl api key", File: d.config.Firecrawl.APIKeyFile, Env: "FIRECRAWL_API_KEY"})
		if err != nil {
			return nil, err
		}
		firecrawl = scrape.NewFirecrawl(scrape.FirecrawlConfig{
			APIKey:  key,
			BaseURL: d.config.Firecrawl.BaseURL,
			Timeout: cfg.Timeout,
		}, d.logger)
	}

	var fetcher scrape.Fetcher = firecrawl
	if cfg.Fetcher == "http" {
		httpCfg := scrape.HTTPConfig{Timeout: cfg.Timeout}
		if cfg.BrowserFallback {
			httpCfg.Renderer = scrape.NewChromeRenderer(cfg.Timeout, d.logger)
		}
		fetcher = scrape.NewHTTPFetcher(httpCfg, d.logger)
	}

	var extractor scrape.Extractor = firecrawl
	if cfg.Extractor == providerGemini {
		extractor = scrape.NewLLMExtractor(generator, d.logger)
	}

	reasoner := jobs.NewGeminiReasoner(generator, jobs.ReasonerConfig{
		MaxLogLength: d.config.AI.Gemini.MaxLogLength,
		CacheProfile: cfg.CacheProfile,
	}, d.logger)

	return jobs.NewAnalyzer(jobs.Deps{
		Fetcher:   fetcher,
		Extractor: extractor,
		Reasoner:  reasoner,
		Profile:   profile,
		Logger:    d.logger,
		OnStageError: func(err *jobs.StageError) {
			d.report(err)
		},
	}, jobs.Config{Timeout: cfg.Timeout})
}

func (d *deps) synthesizer() (*tts.ElevenLabs, error) {
	cfg := d.config.ElevenLabs
	key, err := secrets.Load(secrets.Source{Name: "elevenlabs api key", File: cfg.APIKeyFile, Env: "ELEVENLABS_API_KEY"})
	if err != nil {
		return nil, err
	}

	voice := cfg.Voice
	if voice == "" {
		voice = defaultVoiceID
	}
	return tts.NewElevenLabs(tts.ElevenLabsConfig{
		APIKey:       key,
		BaseURL:      cfg.BaseURL,
		Model:        cfg.Model,
		DefaultVoice: voice,
		Timeout:      requestTimeout,
	}, d.logger), nil
}

func (d *deps) player() tts.Command {
	if len(d.config.Player) == 0 {
		return tts.Command{}
	}
	return tts.Command{Name: d.config.Player[0], Args: d.config.Player[1:]}
}
