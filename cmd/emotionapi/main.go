package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"

	"github.com/bdougie/emotion/internal/analyzer"
	"github.com/bdougie/emotion/internal/classifier"
	"github.com/bdougie/emotion/internal/config"
	"github.com/bdougie/emotion/internal/extractor"
	"github.com/bdougie/emotion/internal/metrics"
	"github.com/bdougie/emotion/internal/server"
	"github.com/bdougie/emotion/internal/storage"
	"github.com/bdougie/emotion/internal/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", tint.Err(err))
		os.Exit(1)
	}

	// Configure logger
	logger := slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      cfg.SlogLevel(),
			TimeFormat: "15:04:05",
			NoColor:    cfg.LogNoColor,
		}),
	)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("emotion api stopped with error", tint.Err(err))
		os.Exit(1)
	}
	logger.Info("emotion api stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Tracing is optional
	if cfg.OTLPEndpoint != "" {
		tp, err := tracing.InitTracer(ctx, cfg.OTLPEndpoint)
		if err != nil {
			logger.Warn("tracing init failed, continuing without tracing", tint.Err(err))
		} else {
			defer tp.Shutdown(context.Background())
		}
	}

	workspace, err := storage.NewWorkspace(cfg.UploadDir, cfg.FramesDir, logger)
	if err != nil {
		return err
	}

	var recorder storage.Recorder = storage.NopRecorder{}
	if cfg.DatabaseURL != "" {
		pg, err := storage.NewPostgresStorage(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		recorder = pg
		logger.Info("recording analyses in postgres")
	}
	defer recorder.Close()

	cl, err := classifier.New(ctx, cfg, logger)
	if err != nil {
		return err
	}

	frames := extractor.New(extractor.Options{
		FFmpegPath: cfg.FFmpegPath,
		FramesDir:  cfg.FramesDir,
		Width:      cfg.FrameWidth,
		Step:       cfg.FrameStep,
		Timeout:    cfg.ExtractTimeout,
	}, logger)

	processor := analyzer.NewProcessor(frames, cl, analyzer.Options{
		Workers:         cfg.Workers,
		ClassifyTimeout: cfg.ClassifyTimeout,
	}, logger)

	if cfg.MetricsAddr != "" {
		metricsSrv := metrics.StartMetricsServer(ctx, cfg.MetricsAddr, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	gin.SetMode(gin.ReleaseMode)
	logger.Info("starting emotion api",
		"classifier", cfg.Classifier,
		"workers", cfg.Workers,
		"max_upload", cfg.MaxUploadLabel(),
	)

	return server.New(cfg, workspace, processor, recorder, logger).Run(ctx)
}
