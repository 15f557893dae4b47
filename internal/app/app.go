package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lukasbauer/scribe/internal/costs"
	"github.com/lukasbauer/scribe/internal/eventlog"
	"github.com/lukasbauer/scribe/internal/httpapi"
	"github.com/lukasbauer/scribe/internal/llm"
	"github.com/lukasbauer/scribe/internal/notifications"
	"github.com/lukasbauer/scribe/internal/readiness"
	"github.com/lukasbauer/scribe/internal/session"
	"github.com/lukasbauer/scribe/internal/stt"
	"github.com/lukasbauer/scribe/internal/templates"
)

type App struct {
	cfg      Config
	logger   *log.Logger
	db       *pgxpool.Pool
	eventLog *eventlog.Logger
	discord  *notifications.Discord
	sessions *session.Store
	gate     *readiness.Gate
	inflight *httpapi.InFlight
}

func New(cfg Config, logger *log.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var db *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var err error
		db, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.Ping(ctx); err != nil {
			db.Close()
			return nil, err
		}
		// Migrations are applied externally (migrations/*.sql).
	} else {
		logger.Printf("eventlog: DATABASE_URL not set, session events disabled")
	}

	catalog := templates.Default()
	if cfg.TemplatesPath != "" {
		c, err := templates.LoadFile(cfg.TemplatesPath)
		if err != nil {
			if db != nil {
				db.Close()
			}
			return nil, err
		}
		catalog = c
	}

	// Shared HTTP client with connection pooling for the model providers.
	// Per-call deadlines come from the request context, not the client.
	httpClient := &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	transcriber := newTranscriber(cfg, httpClient)
	summarizer := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:      cfg.LLMAPIKey,
		BaseURL:     cfg.LLMBaseURL,
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
		HTTPClient:  httpClient,
	})

	el := eventlog.New(db)
	discord := notifications.NewDiscord(cfg.DiscordWebhookURL, logger)
	var events session.EventRecorder = el
	if discord.Enabled() {
		events = session.Recorders{el, discord}
	}

	sessions := session.New(session.Config{
		Transcriber:  transcriber,
		Summarizer:   summarizer,
		Templates:    catalog,
		Events:       events,
		Rates:        costs.RatesFromEnv(cfg.STTProvider),
		ModelTimeout: cfg.ModelTimeout,
		Logger:       logger,
	})

	gate := readiness.NewGate(logger, cfg.WarmupInterval, cfg.ModelTimeout,
		readiness.Check{Name: "stt:" + cfg.STTProvider, Warmer: transcriber},
		readiness.Check{Name: "llm", Warmer: summarizer},
	)

	return &App{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		eventLog: el,
		discord:  discord,
		sessions: sessions,
		gate:     gate,
		inflight: httpapi.NewInFlight(),
	}, nil
}

func newTranscriber(cfg Config, httpClient *http.Client) stt.Transcriber {
	if cfg.STTProvider == "deepgram" {
		return stt.NewDeepgramClient(stt.DeepgramConfig{
			APIKey:    cfg.DeepgramAPIKey,
			URL:       cfg.DeepgramURL,
			Language:  cfg.STTLanguage,
			Model:     cfg.DeepgramModel,
			Punctuate: true,
		})
	}
	return stt.NewWhisperClient(stt.WhisperConfig{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.WhisperBaseURL,
		Model:      cfg.WhisperModel,
		Language:   cfg.STTLanguage,
		HTTPClient: httpClient,
	})
}

func (a *App) Router() http.Handler {
	routerCfg := httpapi.RouterConfig{
		JWTSecret:      a.cfg.JWTSecret,
		AudioDir:       a.cfg.AudioDir,
		MaxUploadBytes: int64(a.cfg.MaxUploadMB) << 20,
		Events:         a.eventLog,
	}
	return httpapi.NewRouter(routerCfg, a.logger, a.sessions, a.gate, a.inflight)
}

// Warmup runs the readiness checks until they pass or ctx ends.
func (a *App) Warmup(ctx context.Context) error {
	return a.gate.Run(ctx)
}

// Drain stops accepting session requests and waits for in-flight ones.
func (a *App) Drain(ctx context.Context) error {
	a.inflight.StartDraining()
	active := a.inflight.ActiveCount()
	if active > 0 {
		a.logger.Printf("draining: waiting for %d in-flight requests", active)
	}

	done := make(chan struct{})
	go func() {
		a.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain: %d requests still running: %w", a.inflight.ActiveCount(), ctx.Err())
	}
}

func (a *App) Close() error {
	a.eventLog.Flush()
	a.discord.Flush()
	if a.db != nil {
		a.db.Close()
	}
	return nil
}
