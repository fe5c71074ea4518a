package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lukasbauer/tabscribe/internal/asr"
	"github.com/lukasbauer/tabscribe/internal/audio"
	"github.com/lukasbauer/tabscribe/internal/dispatch"
	"github.com/lukasbauer/tabscribe/internal/eventlog"
	"github.com/lukasbauer/tabscribe/internal/gateway"
	"github.com/lukasbauer/tabscribe/internal/notion"
	"github.com/lukasbauer/tabscribe/internal/relay"
	"github.com/lukasbauer/tabscribe/internal/segment"
	"github.com/lukasbauer/tabscribe/internal/session"
	"github.com/lukasbauer/tabscribe/internal/store"
	"github.com/lukasbauer/tabscribe/internal/summarize"
)

type App struct {
	cfg    Config
	logger *log.Logger

	db         *pgxpool.Pool
	dispatcher *dispatch.Dispatcher
	gateway    *gateway.Gateway
}

func New(ctx context.Context, cfg Config, logger *log.Logger) (*App, error) {
	format, err := audio.ParseFormat(cfg.AudioFormat)
	if err != nil {
		return nil, fmt.Errorf("AUDIO_FORMAT: %w", err)
	}

	// Persistence is optional; without DATABASE_URL the server runs in memory.
	var db *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		db, err = pgxpool.New(dbCtx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		if err := db.Ping(dbCtx); err != nil {
			db.Close()
			return nil, fmt.Errorf("database ping: %w", err)
		}
		logger.Printf("connected to database")
	} else {
		logger.Printf("DATABASE_URL not set, running without persistence")
	}

	engine, err := newEngine(cfg)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, err
	}

	var summarizer summarize.Summarizer
	if cfg.GeminiAPIKey != "" {
		gem, err := summarize.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Printf("warning: gemini init failed, summarization disabled: %v", err)
		} else {
			summarizer = gem
		}
	} else {
		logger.Printf("GEMINI_API_KEY not set, summarization disabled")
	}

	var saver relay.NotionSaver
	if cfg.NotionToken != "" && cfg.NotionParentPageID != "" {
		nc, err := notion.New(notion.Config{
			Token:        cfg.NotionToken,
			ParentPageID: cfg.NotionParentPageID,
		})
		if err != nil {
			logger.Printf("warning: notion init failed, export disabled: %v", err)
		} else {
			saver = nc
		}
	} else {
		logger.Printf("Notion credentials not set, export disabled")
	}

	dispatcher := dispatch.New(engine, dispatch.Config{
		Workers:    cfg.Workers,
		QueueSize:  cfg.QueueSize,
		SampleRate: cfg.SampleRate,
		Timeout:    cfg.ASRTimeout,
		Filter:     asr.DefaultFilterConfig(),
	}, logger)

	gw := gateway.New(gateway.Config{
		SampleRate:       cfg.SampleRate,
		Format:           format,
		SilenceThreshold: cfg.SilenceThreshold,
		Segmenter: segment.Config{
			SampleRate:           cfg.SampleRate,
			SilenceDuration:      cfg.SilenceDuration,
			MinUtteranceDuration: cfg.MinUtteranceDuration,
			MaxUtteranceDuration: cfg.MaxUtteranceDuration,
			MinAudioLevel:        cfg.MinAudioLevel,
		},
		JWTSecret: cfg.WSJWTSecret,
	}, logger, session.NewRegistry(), dispatcher,
		relay.New(summarizer, saver, logger),
		store.New(db), eventlog.New(db))

	return &App{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		dispatcher: dispatcher,
		gateway:    gw,
	}, nil
}

// newEngine selects the ASR backend from configuration.
func newEngine(cfg Config) (asr.Engine, error) {
	switch cfg.ASRProvider {
	case "openai":
		return asr.NewOpenAIClient(asr.OpenAIConfig{
			APIKey:   cfg.OpenAIAPIKey,
			Model:    cfg.OpenAIASRModel,
			Language: cfg.ASRLanguage,
			Timeout:  cfg.ASRTimeout,
		})
	case "whisper":
		return asr.NewWhisperClient(asr.WhisperConfig{
			Endpoint: cfg.WhisperEndpoint,
			APIKey:   cfg.WhisperAPIKey,
			Language: cfg.ASRLanguage,
			Timeout:  cfg.ASRTimeout,
		})
	default:
		return nil, fmt.Errorf("unknown ASR_PROVIDER %q", cfg.ASRProvider)
	}
}

// Handler returns the HTTP surface of the server.
func (a *App) Handler() http.Handler {
	return a.gateway.Handler()
}

// Run pumps transcription results to clients until ctx is cancelled.
func (a *App) Run(ctx context.Context) {
	a.gateway.Run(ctx)
}

func (a *App) Close() error {
	a.dispatcher.Stop()
	if a.db != nil {
		a.db.Close()
	}
	return nil
}
