// Package httpapi exposes the correction engine over HTTP.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/slabworks/cardlearn/internal/engine"
	"github.com/slabworks/cardlearn/internal/learning"
	"github.com/slabworks/cardlearn/internal/store"
)

// Server provides the HTTP endpoints for cardlearnd.
type Server struct {
	echo   *echo.Echo
	engine *engine.Engine
	store  store.CorrectionStore
	logger *zap.Logger
	config *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP server.
func NewServer(eng *engine.Engine, s store.CorrectionStore, logger *zap.Logger, cfg *Config) (*Server, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if s == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8480,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	srv := &Server{
		echo:   e,
		engine: eng,
		store:  s,
		logger: logger,
		config: cfg,
	}

	// Register routes
	srv.registerRoutes()

	return srv, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	// Health check and metrics
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// API v1 routes
	v1 := s.echo.Group("/api/v1")
	v1.POST("/predict", s.handlePredict)
	v1.POST("/corrections", s.handleCorrection)
	v1.POST("/retrain", s.handleRetrain)
	v1.GET("/status", s.handleStatus)
}

// PredictRequest is the request body for POST /api/v1/predict.
type PredictRequest struct {
	// Values maps field names to upstream-extracted values.
	Values map[string]string `json:"values"`
	// Context carries card-level attributes shared by all fields.
	Context map[string]string `json:"context,omitempty"`
}

// PredictResponse is the response body for POST /api/v1/predict.
type PredictResponse struct {
	Values    map[string]string `json:"values"`
	Overrides []engine.Override `json:"overrides"`
}

// CorrectionRequest is the request body for POST /api/v1/corrections.
type CorrectionRequest struct {
	Field     string            `json:"field"`
	Original  string            `json:"original"`
	Corrected string            `json:"corrected"`
	Context   map[string]string `json:"context,omitempty"`
}

// RetrainResponse is the response body for POST /api/v1/retrain.
type RetrainResponse struct {
	Version   string    `json:"version"`
	TrainedAt time.Time `json:"trained_at"`
	Fields    int       `json:"fields"`
	State     string    `json:"state"`
}

// StatusResponse is the response body for GET /api/v1/status.
type StatusResponse struct {
	State            string    `json:"state"`
	Version          string    `json:"version,omitempty"`
	TrainedAt        time.Time `json:"trained_at,omitzero"`
	CorrectionCount  int       `json:"correction_count"`
	TotalCorrections int       `json:"total_corrections"`
	Fields           []string  `json:"fields"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handlePredict runs the engine over a full field mapping and returns
// the corrected values plus provenance for every applied override.
func (s *Server) handlePredict(c echo.Context) error {
	var req PredictRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid predict request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if len(req.Values) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "values field is required")
	}

	values, overrides := s.engine.PredictAllFields(c.Request().Context(), req.Values, req.Context)

	return c.JSON(http.StatusOK, PredictResponse{
		Values:    values,
		Overrides: overrides,
	})
}

// handleCorrection appends one human correction to the log. Recording a
// correction does not retrain; models pick it up on the next run.
func (s *Server) handleCorrection(c echo.Context) error {
	var req CorrectionRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid correction request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if req.Field == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "field is required")
	}
	if !learning.Recognized(learning.Field(req.Field)) {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unrecognized field %q", req.Field))
	}

	err := s.store.Append(c.Request().Context(), learning.Field(req.Field), req.Original, req.Corrected, req.Context)
	if err != nil {
		s.logger.Error("failed to record correction",
			zap.String("field", req.Field),
			zap.Error(err),
		)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to record correction")
	}

	return c.NoContent(http.StatusAccepted)
}

// handleRetrain forces a full training run regardless of trigger policy.
func (s *Server) handleRetrain(c echo.Context) error {
	if err := s.engine.Train(c.Request().Context()); err != nil {
		s.logger.Error("manual retrain failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "retrain failed")
	}

	meta := s.engine.Meta()
	return c.JSON(http.StatusOK, RetrainResponse{
		Version:   meta.Version,
		TrainedAt: meta.TrainedAt,
		Fields:    len(meta.Fields),
		State:     string(s.engine.State()),
	})
}

// handleStatus reports the engine lifecycle state and the live model
// set's metadata.
func (s *Server) handleStatus(c echo.Context) error {
	meta := s.engine.Meta()

	total, err := s.store.TotalCorrections(c.Request().Context())
	if err != nil {
		s.logger.Error("failed to read correction count", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read correction log")
	}

	fields := make([]string, 0, len(meta.Fields))
	for _, f := range meta.Fields {
		fields = append(fields, string(f))
	}

	return c.JSON(http.StatusOK, StatusResponse{
		State:            string(s.engine.State()),
		Version:          meta.Version,
		TrainedAt:        meta.TrainedAt,
		CorrectionCount:  meta.CorrectionCount,
		TotalCorrections: total,
		Fields:           fields,
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
