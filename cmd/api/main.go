package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"meeting-insights-go/internal/audio"
	"meeting-insights-go/internal/config"
	"meeting-insights-go/internal/diarization"
	"meeting-insights-go/internal/handlers"
	"meeting-insights-go/internal/language"
	"meeting-insights-go/internal/logger"
	"meeting-insights-go/internal/pipeline"
	"meeting-insights-go/internal/processor"
	"meeting-insights-go/internal/storage"
	"meeting-insights-go/internal/summarizer"
	"meeting-insights-go/internal/transcription"
)

func main() {
	_ = godotenv.Load() // loads .env

	log := logger.New()
	log.WithField("service", "meeting-insights-go").Info("starting service")

	cfgPath := envOr("CONFIG_PATH", config.DefaultPath)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	log.WithField("config_path", cfgPath).Info("config loaded")

	if disc := cfg.Discovery(); disc.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), disc.Timeout)
		ep, err := transcription.Discover(ctx, disc,
			language.NormalizePair(language.DefaultSource, language.DefaultTarget), log.Entry)
		cancel()
		if err != nil {
			log.WithError(err).Warn("pipeline discovery failed, using configured compute url")
		} else {
			cfg = cfg.WithEndpoint(ep)
		}
	}
	if cfg.Bhashini.ComputeURL == "" {
		log.Warn("no compute url configured; transcription requests will fail")
	}

	var store *storage.OutcomeDB
	if cfg.Storage.Database != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Database), 0o755); err != nil {
			log.WithError(err).Fatal("failed to create database directory")
		}
		store, err = storage.Open(cfg.Storage.Database)
		if err != nil {
			log.WithError(err).Fatal("failed to open outcome database")
		}
		defer store.Close()
		log.WithField("database", cfg.Storage.Database).Info("outcome storage ready")
	}

	diarizer := diarization.New(cfg.DiarizationClient(), log.Entry)
	orchestrator := pipeline.New(pipeline.Deps{
		Normalizer:  audio.New(audio.TargetRate, cfg.Storage.ScratchDir, log.Entry),
		Transcriber: transcription.New(cfg.Transcription(), log.Entry),
		Diarizer:    diarizer,
		Summarizer:  summarizer.New(newBackend(cfg, log), log.Entry),
	}, log.Entry)

	var procStore processor.Store
	var handlerStore handlers.Store
	if store != nil {
		procStore, handlerStore = store, store
	}
	proc := processor.New(orchestrator, procStore, processor.Options{
		MaxBytes: cfg.MaxUploadBytes(),
		Timeout:  cfg.RequestTimeout(),
	}, log.Entry)

	app := fiber.New(fiber.Config{
		BodyLimit:    int(cfg.MaxUploadBytes()) * 2,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: cfg.RequestTimeout() + 10*time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorHandler: handlers.ErrorHandler,
	})
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))

	handlers.New(handlers.Deps{
		Processor:       proc,
		Store:           handlerStore,
		SpeakerServices: diarizer.Services(),
		Health: handlers.Health{
			Status: "healthy",
			Services: map[string]string{
				"bhashini":   status(cfg.Bhashini.ComputeURL != ""),
				"summarizer": cfg.Summarizer.Provider,
				"storage":    status(store != nil),
			},
		},
		Log: log,
	}).Register(app)

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Info("shutting down gracefully")
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.WithError(err).Error("shutdown failed")
		}
	}()

	addr := cfg.Addr()
	log.WithField("addr", addr).Info("listening")
	if err := app.Listen(addr); err != nil {
		log.WithError(err).Fatal("server terminated")
	}
}

func newBackend(cfg config.Config, log *logger.Logger) summarizer.Backend {
	switch cfg.Summarizer.Provider {
	case config.ProviderOpenAI:
		return summarizer.NewOpenAI(summarizer.OpenAIConfig{
			BaseURL: cfg.Summarizer.BaseURL,
			APIKey:  cfg.Summarizer.OpenAIAPIKey,
			Model:   cfg.Summarizer.Model,
			Timeout: cfg.SummarizerTimeout(),
			Retry:   cfg.RetryPolicy(),
		}, log.Entry)
	default:
		return summarizer.NewGemini(summarizer.GeminiConfig{
			BaseURL: cfg.Summarizer.BaseURL,
			APIKey:  cfg.Summarizer.GeminiAPIKey,
			Model:   cfg.Summarizer.Model,
			Timeout: cfg.SummarizerTimeout(),
			Retry:   cfg.RetryPolicy(),
		}, log.Entry)
	}
}

func status(configured bool) string {
	if configured {
		return "configured"
	}
	return "not_configured"
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
