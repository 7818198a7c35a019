package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jbergloda1/swha-backend/internal/api"
	"github.com/jbergloda1/swha-backend/internal/auth"
	"github.com/jbergloda1/swha-backend/internal/config"
	"github.com/jbergloda1/swha-backend/internal/metrics"
	"github.com/jbergloda1/swha-backend/internal/streaming"
	"github.com/jbergloda1/swha-backend/internal/websocket"
	"github.com/jbergloda1/swha-backend/usecase"
)

var version = "dev"

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		zap.NewExample().Fatal("Failed to load configuration", zap.Error(err))
	}

	// Initialize logger
	var logger *zap.Logger
	if cfg.IsDevelopment() {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Server exited with error", zap.Error(err))
	}
	logger.Info("Server exited")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	// Initialize adapters
	p, err := newProviders(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer p.close()

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	// Initialize usecase services
	transcription := usecase.NewTranscriptionService(p.stt, p.transcripts, cfg.Streaming.Audio, cfg.Server.MaxUploadBytes, logger)
	users := usecase.NewUserService(p.users, tokens, logger)
	qa := usecase.NewQAService(p.answerer, logger)
	speech := usecase.NewSpeechService(p.tts, cfg.TTS.MaxTextChars, logger)
	videos := usecase.NewVideoService(p.videos, cfg.Server.MaxUploadBytes, logger)

	// Streaming sessions, their transport and the idle reaper
	manager := streaming.NewManager(cfg.Streaming.Session(), transcription, logger, streaming.WithObserver(m))
	hub := websocket.NewHub(manager, transcription, logger, websocket.WithAllowedOrigins(cfg.Server.CORSOrigins))
	cleanup := websocket.NewSessionCleanupService(manager, hub, cfg.Streaming.CleanupInterval, logger)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: cfg.Server.CORSOrigins}))
	e.Use(m.Middleware())

	api.InitRoutes(e, api.Dependencies{
		Users:          users,
		Transcription:  transcription,
		QA:             qa,
		Speech:         speech,
		Videos:         videos,
		Tokens:         tokens,
		Hub:            hub,
		Sessions:       manager,
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Version:        version,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Server started",
			zap.String("port", cfg.Server.Port),
			zap.String("env", cfg.Server.Env),
			zap.String("stt", cfg.STT.Provider),
			zap.String("storage", cfg.Storage.Driver))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return cleanup.Run(gctx)
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Server is shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// stop accepting upgrades before draining the hijacked connections
		err := e.Shutdown(shutdownCtx)
		if hubErr := hub.Shutdown(shutdownCtx); hubErr != nil {
			logger.Warn("Streaming connections did not drain in time", zap.Error(hubErr))
		}
		return err
	})

	return g.Wait()
}
