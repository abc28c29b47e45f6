// Package server hosts the canvas service over HTTP: the websocket push
// transport, the MCP endpoint, the pull fallback API, and ops endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/canvas"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/collector"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/config"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/observability"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/toolserver"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/transport/ws"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/validate"
)

const (
	Version         = "0.1.0"
	WebsocketPath   = "/ws"
	shutdownTimeout = 5 * time.Second
)

type Server struct {
	cfg       config.Config
	svc       *canvas.Service
	tools     *toolserver.Server
	collector *collector.Collector
	router    *gin.Engine
	appeared  time.Time
	logger    zerolog.Logger
}

func New(cfg config.Config) (*Server, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	mode, err := canvas.ParseDeliveryMode(cfg.DeliveryMode)
	if err != nil {
		return nil, err
	}
	svc := canvas.NewService(canvas.Config{
		DeliveryMode: mode,
		Validator:    validate.NewStructural(cfg.MaxPayloadBytes),
	})

	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(cfg.Name))
	r.Use(cors.New(cors.Config{
		AllowOrigins:  normalizeOrigins(cfg.CorsOrigins),
		AllowMethods:  []string{"GET", "POST", "DELETE"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", toolserver.SessionHeader},
		ExposeHeaders: []string{toolserver.SessionHeader},
		MaxAge:        12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		cfg:    cfg,
		svc:    svc,
		tools:  toolserver.New(svc, toolserver.Config{Name: cfg.Name, Version: Version}),
		router: r,
		collector: collector.New(
			collector.LedgerPurgeTask(svc.Ledger(), cfg.PurgeInterval, cfg.PurgeMaxAge),
			collector.SessionSweepTask(svc.Sessions(), cfg.SessionSweepInterval, cfg.SessionTimeout),
		),
		appeared: time.Now(),
		logger:   log.Logger.With().Str("component", "server").Logger(),
	}
	s.registerRoutes(ws.NewHandler(svc, ws.Config{
		SendBuffer:     cfg.ClientSendBuffer,
		WriteTimeout:   cfg.WriteTimeout,
		PingInterval:   cfg.PingInterval,
		AllowedOrigins: cfg.CorsOrigins,
	}))
	return s, nil
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) Service() *canvas.Service {
	return s.svc
}

func (s *Server) Collector() *collector.Collector {
	return s.collector
}

// Run serves HTTP (and stdio MCP when configured) until ctx is canceled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.collector.Start(ctx)
	defer s.collector.Stop()

	httpServer := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 2)
	go func() {
		s.logger.Info().
			Str("addr", s.cfg.Addr).
			Str("mcp_transport", s.cfg.MCPTransport).
			Str("delivery_mode", s.cfg.DeliveryMode).
			Msg("sketchpad listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http serve: %w", err)
		}
	}()

	stdioDone := make(chan struct{})
	if strings.EqualFold(s.cfg.MCPTransport, toolserver.TransportStdio) {
		go func() {
			defer close(stdioDone)
			if err := s.tools.ServeStdio(ctx); err != nil && ctx.Err() == nil {
				errCh <- fmt.Errorf("mcp stdio: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	case <-stdioDone:
		s.logger.Info().Msg("stdio peer closed; shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("http shutdown: %w", err)
	}
	s.logger.Info().Msg("sketchpad stopped")
	return runErr
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	if len(out) == 0 {
		return []string{"http://localhost:3000"}
	}
	return out
}
