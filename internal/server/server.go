package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"

	"github.com/bdougie/emotion/internal/config"
	"github.com/bdougie/emotion/internal/models"
	"github.com/bdougie/emotion/internal/storage"
)

// VideoProcessor runs the extraction and analysis pipeline for one stored video
type VideoProcessor interface {
	ProcessVideo(ctx context.Context, videoPath string) (*models.Report, string, error)
}

// Server exposes the analysis pipeline over HTTP
type Server struct {
	cfg       *config.Config
	workspace *storage.Workspace
	processor VideoProcessor
	recorder  storage.Recorder
	logger    *slog.Logger
	engine    *gin.Engine
}

func New(cfg *config.Config, workspace *storage.Workspace, processor VideoProcessor, recorder storage.Recorder, logger *slog.Logger) *Server {
	if recorder == nil {
		recorder = storage.NopRecorder{}
	}
	s := &Server{
		cfg:       cfg,
		workspace: workspace,
		processor: processor,
		recorder:  recorder,
		logger:    logger,
	}
	s.engine = s.routes()
	return s
}

// Handler returns the gin engine, mostly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(s.requestLogger(), gin.CustomRecovery(s.recoverPanic))

	if len(s.cfg.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: s.cfg.AllowedOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
			MaxAge:       12 * time.Hour,
		}))
	}

	r.GET("/", s.home)
	r.POST("/analyze-video", s.analyzeVideo)
	return r
}

// Run serves until ctx is canceled and then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client", c.ClientIP(),
		)
	}
}

func (s *Server) recoverPanic(c *gin.Context, recovered any) {
	err := fmt.Errorf("panic: %v", recovered)
	s.logger.Error("handler panicked", "path", c.Request.URL.Path, tint.Err(err))
	writeError(c, errInternal(err))
}
