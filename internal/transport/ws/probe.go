package ws

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/protocol/wire"
)

var ErrProbeGaveUp = errors.New("ws: probe reconnect attempts exhausted")

// ProbeConfig configures a renderer stand-in that acknowledges every push.
type ProbeConfig struct {
	URL         string
	SessionID   string
	MaxAttempts int // 0 retries forever
	Backoff     BackoffConfig
	// ReportStatus sends command-status executed instead of command-consumed.
	ReportStatus bool
	OnCommand    func(wire.CanvasCommand)
	OnAck        func(wire.ConsumeAck)
}

type Probe struct {
	cfg    ProbeConfig
	dialer *websocket.Dialer
	rng    *rand.Rand
	logger zerolog.Logger
}

func NewProbe(cfg ProbeConfig) (*Probe, error) {
	target, err := probeURL(cfg.URL, cfg.SessionID)
	if err != nil {
		return nil, err
	}
	cfg.URL = target
	if cfg.Backoff.InitialDelay <= 0 {
		cfg.Backoff = DefaultBackoff()
	}
	return &Probe{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		logger: log.Logger.With().Str("component", "probe").Logger(),
	}, nil
}

// Run connects, acknowledges pushes, and reconnects with backoff until ctx
// ends or MaxAttempts consecutive attempts fail. An attempt fails when the
// dial fails or the session closes before any message arrives.
func (p *Probe) Run(ctx context.Context) error {
	schedule := newReconnectSchedule(p.cfg.Backoff, p.rng)
	for {
		received := 0
		conn, _, err := p.dialer.DialContext(ctx, p.cfg.URL, nil)
		if err == nil {
			p.logger.Info().Str("url", p.cfg.URL).Msg("probe connected")
			received, err = p.serve(ctx, conn)
		}
		if ctx.Err() != nil {
			return nil
		}
		failures, delay := schedule.Ended(received)
		if p.cfg.MaxAttempts > 0 && failures >= p.cfg.MaxAttempts {
			return fmt.Errorf("%w: %v", ErrProbeGaveUp, err)
		}
		p.logger.Warn().
			Err(err).
			Int("received", received).
			Int("failures", failures).
			Dur("retry_in", delay).
			Msg("probe disconnected")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// serve handles one session and returns how many server messages it read.
func (p *Probe) serve(ctx context.Context, conn *websocket.Conn) (int, error) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	received := 0
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return received, err
		}
		received++
		msg, err := wire.DecodeOutbound(raw)
		if err != nil {
			p.logger.Warn().Err(err).Msg("probe ignored message")
			continue
		}
		switch m := msg.(type) {
		case wire.CanvasCommand:
			p.logger.Info().
				Str("command_id", m.ID).
				Int("lines", strings.Count(m.Commands, "\n")+1).
				Msg("probe received command")
			if p.cfg.OnCommand != nil {
				p.cfg.OnCommand(m)
			}
			if err := p.acknowledge(conn, m.ID); err != nil {
				return received, err
			}
		case wire.ConsumeAck:
			p.logger.Debug().Str("command_id", m.CommandID).Bool("success", m.Success).Msg("probe ack")
			if p.cfg.OnAck != nil {
				p.cfg.OnAck(m)
			}
		}
	}
}

func (p *Probe) acknowledge(conn *websocket.Conn, commandID string) error {
	var ack wire.Inbound = wire.CommandConsumed{CommandID: commandID}
	if p.cfg.ReportStatus {
		ack = wire.CommandStatus{CommandID: commandID, Status: wire.StatusExecuted}
	}
	raw, err := wire.EncodeInbound(ack)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, raw)
}

func probeURL(raw, sessionID string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("ws: parse probe url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("ws: unsupported probe url scheme %q", u.Scheme)
	}
	if sessionID = strings.TrimSpace(sessionID); sessionID != "" {
		q := u.Query()
		q.Set("session", sessionID)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
