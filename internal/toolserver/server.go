// Package toolserver exposes the canvas service as MCP tools.
package toolserver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/canvas"
)

const (
	TransportHTTP  = "http"
	TransportStdio = "stdio"
	TransportNone  = "none"

	SessionHeader = "Mcp-Session-Id"
)

var ErrUnsupportedTransport = errors.New("toolserver: unsupported transport")

// Service is the canvas surface the tools drive.
type Service interface {
	Submit(ctx context.Context, payload, sessionID string) (canvas.SubmitResult, error)
	Status() canvas.Status
	OpenSession(id string) bool
	CloseSession(id string) bool
}

type Config struct {
	Name    string
	Version string
}

type Server struct {
	svc    Service
	mcp    *mcp.Server
	logger zerolog.Logger

	mu   sync.Mutex
	keys map[*mcp.ServerSession]string
}

func New(svc Service, cfg Config) *Server {
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = "canvas-sketchpad"
	}
	if strings.TrimSpace(cfg.Version) == "" {
		cfg.Version = "0.1.0"
	}
	s := &Server{
		svc:    svc,
		keys:   make(map[*mcp.ServerSession]string),
		logger: log.Logger.With().Str("component", "toolserver").Logger(),
	}
	s.mcp = mcp.NewServer(&mcp.Implementation{Name: cfg.Name, Version: cfg.Version}, &mcp.ServerOptions{
		Instructions:       "Draw on connected canvas clients. Submit one instruction per line with the draw tool.",
		InitializedHandler: s.onInitialized,
	})
	mcp.AddTool(s.mcp, DrawTool(), s.drawHandler)
	mcp.AddTool(s.mcp, StatusTool(), s.statusHandler)
	return s
}

func (s *Server) MCP() *mcp.Server {
	return s.mcp
}

// Serve runs the tool server over one transport until ctx ends or the peer leaves.
func (s *Server) Serve(ctx context.Context, transport mcp.Transport) error {
	return s.mcp.Run(ctx, transport)
}

func (s *Server) ServeStdio(ctx context.Context) error {
	return s.Serve(ctx, &mcp.StdioTransport{})
}

// HTTPHandler serves the streamable HTTP transport. A DELETE carrying a
// session header closes that canvas session immediately.
func (s *Server) HTTPHandler() http.Handler {
	streamable := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcp
	}, nil)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		streamable.ServeHTTP(w, r)
		if r.Method != http.MethodDelete {
			return
		}
		if id := strings.TrimSpace(r.Header.Get(SessionHeader)); id != "" {
			s.svc.CloseSession(id)
		}
	})
}

func (s *Server) onInitialized(_ context.Context, req *mcp.InitializedRequest) {
	if req == nil || req.Session == nil {
		return
	}
	ss := req.Session
	key := s.sessionKey(ss)
	s.svc.OpenSession(key)
	s.logger.Info().Str("session_id", key).Msg("tool session initialized")
	go func() {
		_ = ss.Wait()
		s.forget(ss)
		s.svc.CloseSession(key)
		s.logger.Info().Str("session_id", key).Msg("tool session ended")
	}()
}

// sessionKey returns the transport session id, or a generated id for
// transports without one (stdio, in-memory).
func (s *Server) sessionKey(ss *mcp.ServerSession) string {
	if ss == nil {
		return ""
	}
	if id := ss.ID(); id != "" {
		return id
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.keys[ss]
	if !ok {
		key = "session." + uuid.NewString()
		s.keys[ss] = key
	}
	return key
}

func (s *Server) forget(ss *mcp.ServerSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, ss)
}
