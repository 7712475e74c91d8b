// Package server exposes conversions over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/go-tabgraph"
	"github.com/soundprediction/go-tabgraph/pkg/config"
	"github.com/soundprediction/go-tabgraph/pkg/metrics"
	"github.com/soundprediction/go-tabgraph/pkg/server/handlers"
	"github.com/soundprediction/go-tabgraph/pkg/store"
)

// Server is the HTTP front end of a Converter.
type Server struct {
	config    *config.Config
	converter *tabgraph.Converter
	records   store.Store
	metrics   *metrics.Registry
	logger    *slog.Logger

	router *gin.Engine
	http   *http.Server
}

// New creates a server. Call Setup before Start, Stop or Router.
func New(cfg *config.Config, converter *tabgraph.Converter, records store.Store, reg *metrics.Registry, logger *slog.Logger) *Server {
	if reg == nil {
		reg = metrics.DefaultRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:    cfg,
		converter: converter,
		records:   records,
		metrics:   reg,
		logger:    logger,
	}
}

// Setup builds the router, registers every route and prepares the listener
// configuration. It must be called before Start, Stop or Router.
func (s *Server) Setup() {
	gin.SetMode(s.config.Server.Mode)

	router := gin.New()
	router.MaxMultipartMemory = s.config.Server.MaxUploadMB << 20
	router.Use(gin.Recovery(), requestLogger(s.logger), requestMetrics(s.metrics))

	health := handlers.NewHealthHandler(map[string]string{
		"upload_dir": s.config.Server.UploadDir,
		"output_dir": s.config.Output.Dir,
	})
	conversions := handlers.NewConversionHandler(s.converter, s.records, s.metrics, s.logger,
		handlers.ConversionOptions{
			UploadDir:      s.config.Server.UploadDir,
			OutputDir:      s.config.Output.Dir,
			DefaultFormat:  s.config.Output.Format,
			PublicBaseURL:  s.config.Server.PublicBaseURL,
			MaxUploadBytes: s.config.Server.MaxUploadMB << 20,
		})
	rows := handlers.NewRowsHandler(s.converter.Normalizer())

	router.GET("/health", health.HealthCheck)
	router.GET("/ready", health.ReadinessCheck)
	router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	router.POST("/upload", conversions.Upload)
	router.GET("/download/:filename", conversions.Download)

	api := router.Group("/api")
	{
		api.GET("/conversions/:id", conversions.GetConversion)
		api.POST("/rows/normalize", rows.Normalize)
	}

	s.router = router
	s.http = &http.Server{
		Addr:              s.config.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves until Stop is called. It returns nil after a graceful stop,
// including one that happened before Start.
func (s *Server) Start() error {
	if s.http == nil {
		return errors.New("server is not set up")
	}

	s.logger.Info("server listening", "addr", s.http.Addr, "mode", s.config.Server.Mode)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Stop shuts the server down, waiting for in-flight requests until ctx ends.
func (s *Server) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
