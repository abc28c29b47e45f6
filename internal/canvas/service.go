package canvas

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/broadcast"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/clients"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/ledger"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/observability"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/protocol/wire"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/sessions"
)

const (
	SubmitDelivered = "delivered"
	SubmitQueued    = "queued"
	// SubmitUndelivered is an optimistic submission no client received.
	// It is already marked sent and is never replayed.
	SubmitUndelivered = "undelivered"
)

// SubmitResult reports the outcome of one accepted submission.
type SubmitResult struct {
	CommandID        string       `json:"commandId"`
	Status           string       `json:"status"`
	Delivered        int          `json:"delivered"`
	ConnectedClients int          `json:"connectedClients"`
	Mode             DeliveryMode `json:"mode"`
	Stats            ledger.Stats `json:"stats"`
}

// Summary renders the caller-facing status line.
func (r SubmitResult) Summary() string {
	var b strings.Builder
	switch r.Status {
	case SubmitDelivered:
		fmt.Fprintf(&b, "Command %s delivered to %d of %d connected canvas client(s).",
			r.CommandID, r.Delivered, r.ConnectedClients)
	case SubmitUndelivered:
		fmt.Fprintf(&b, "Command %s marked sent but no canvas client received it (%d connected). "+
			"Optimistic delivery does not replay it to clients that connect later.",
			r.CommandID, r.ConnectedClients)
	default:
		fmt.Fprintf(&b, "Command %s queued; no canvas client received it yet (%d connected). "+
			"It will be delivered when a client connects.", r.CommandID, r.ConnectedClients)
	}
	fmt.Fprintf(&b, "\nLedger: total=%d pending=%d sent=%d executed=%d error=%d",
		r.Stats.Total, r.Stats.Pending, r.Stats.Sent, r.Stats.Executed, r.Stats.Error)
	return b.String()
}

// Status is the service-wide census.
type Status struct {
	Commands ledger.Stats `json:"commands"`
	Clients  int          `json:"clients"`
	Sessions int          `json:"sessions"`
	Mode     DeliveryMode `json:"mode"`
	Uptime   string       `json:"uptime"`
}

type Service struct {
	cfg         Config
	ledger      *ledger.Ledger
	clients     *clients.Registry
	sessions    *sessions.Registry
	broadcaster *broadcast.Broadcaster
	started     time.Time
	logger      zerolog.Logger
}

func NewService(cfg Config) *Service {
	return NewServiceWithStores(cfg, ledger.New(), sessions.NewRegistry())
}

// NewServiceWithStores builds a service over caller-provided stores.
func NewServiceWithStores(cfg Config, l *ledger.Ledger, s *sessions.Registry) *Service {
	cfg = cfg.withDefaults()
	r := clients.NewRegistry(s)
	return &Service{
		cfg:         cfg,
		ledger:      l,
		clients:     r,
		sessions:    s,
		broadcaster: broadcast.New(l, r),
		started:     time.Now(),
		logger:      log.Logger.With().Str("component", "canvas").Logger(),
	}
}

func (s *Service) Ledger() *ledger.Ledger {
	return s.ledger
}

func (s *Service) Sessions() *sessions.Registry {
	return s.sessions
}

func (s *Service) Mode() DeliveryMode {
	return s.cfg.DeliveryMode
}

// Submit validates payload, records it, and pushes it to every live client.
// A rejected payload yields *ValidationError and nothing is recorded.
func (s *Service) Submit(ctx context.Context, payload, sessionID string) (SubmitResult, error) {
	if err := ctx.Err(); err != nil {
		return SubmitResult{}, err
	}
	verdict := s.cfg.Validator.Validate(payload)
	if !verdict.Valid {
		observability.RecordRejection()
		s.logger.Info().
			Str("session_id", sessionID).
			Strs("errors", verdict.Errors).
			Msg("submission rejected")
		return SubmitResult{}, &ValidationError{Errors: verdict.Errors}
	}

	id, err := s.ledger.Enqueue(payload, sessionID)
	if err != nil {
		if errors.Is(err, ledger.ErrEmptyPayload) {
			observability.RecordRejection()
			return SubmitResult{}, &ValidationError{Errors: []string{"commands must not be empty"}}
		}
		return SubmitResult{}, fmt.Errorf("canvas: enqueue: %w", err)
	}
	observability.RecordSubmission(string(s.cfg.DeliveryMode))
	if s.cfg.DeliveryMode == DeliveryOptimistic {
		s.ledger.MarkSent(id)
	}

	delivered := 0
	if cmd, ok := s.ledger.Get(id); ok {
		delivered = s.broadcaster.Broadcast(cmd)
	}
	if sessionID = strings.TrimSpace(sessionID); sessionID != "" {
		if !s.sessions.Touch(sessionID) {
			s.sessions.Create(sessionID)
		}
	}

	res := SubmitResult{
		CommandID:        id,
		Status:           SubmitQueued,
		Delivered:        delivered,
		ConnectedClients: s.clients.Count(),
		Mode:             s.cfg.DeliveryMode,
		Stats:            s.ledger.Stats(),
	}
	switch {
	case delivered > 0:
		res.Status = SubmitDelivered
	case s.cfg.DeliveryMode == DeliveryOptimistic:
		res.Status = SubmitUndelivered
	}
	observability.SetClientsConnected(res.ConnectedClients)
	s.logger.Info().
		Str("command_id", id).
		Str("session_id", sessionID).
		Str("status", res.Status).
		Int("delivered", delivered).
		Msg("command submitted")
	return res, nil
}

// Connect registers a live client and replays the pending backlog to it.
// Submissions racing with Connect reach the client after the backlog.
// It returns the number of replayed commands.
func (s *Service) Connect(clientID string, sender clients.Sender, sessionID string) int {
	added, replayed := s.broadcaster.Attach(clientID, sender, sessionID)
	if !added {
		return 0
	}
	observability.SetClientsConnected(s.clients.Count())
	observability.SetSessionsActive(s.sessions.Count())
	s.logger.Info().
		Str("client_id", clientID).
		Str("session_id", sessionID).
		Int("replayed", replayed).
		Msg("client connected")
	return replayed
}

// Disconnect drops clientID. Ledger state is left untouched.
func (s *Service) Disconnect(clientID string) bool {
	removed := s.clients.Remove(clientID)
	if removed {
		observability.SetClientsConnected(s.clients.Count())
		s.logger.Info().Str("client_id", clientID).Msg("client disconnected")
	}
	return removed
}

// HandleClientMessage applies one inbound acknowledgment and returns the
// reply to send back, if any. Stale acks are logged, never raised.
func (s *Service) HandleClientMessage(clientID string, msg wire.Inbound) (wire.Outbound, bool) {
	switch m := msg.(type) {
	case wire.CommandConsumed:
		ok := s.ledger.RecordConsumption(m.CommandID)
		s.noteAck("consumed", clientID, m.CommandID, ok)
		return wire.ConsumeAck{CommandID: m.CommandID, Success: ok}, true
	case wire.CommandStatus:
		ok, _ := s.applyStatus(m.CommandID, m.Status, m.Error)
		s.noteAck("status", clientID, m.CommandID, ok)
		return nil, false
	default:
		s.logger.Warn().Str("client_id", clientID).Msg("unhandled client message")
		return nil, false
	}
}

// Pending lists pending commands for pull clients, oldest first.
func (s *Service) Pending() []ledger.Command {
	return s.ledger.ListPending()
}

func (s *Service) Command(id string) (ledger.Command, bool) {
	return s.ledger.Get(id)
}

// Consume is the pull-path equivalent of command-consumed.
func (s *Service) Consume(id string) bool {
	ok := s.ledger.RecordConsumption(id)
	s.noteAck("consumed", "", id, ok)
	return ok
}

// ReportStatus is the pull-path equivalent of command-status.
func (s *Service) ReportStatus(id, status, detail string) (bool, error) {
	ok, err := s.applyStatus(id, status, detail)
	if err != nil {
		return false, err
	}
	s.noteAck("status", "", id, ok)
	return ok, nil
}

// OpenSession records a session started by the tool-invocation layer.
func (s *Service) OpenSession(id string) bool {
	created := s.sessions.Create(id)
	observability.SetSessionsActive(s.sessions.Count())
	if created {
		s.logger.Info().Str("session_id", id).Msg("session opened")
	}
	return created
}

// CloseSession removes a session. Connected clients stay connected.
func (s *Service) CloseSession(id string) bool {
	removed := s.sessions.Remove(id)
	observability.SetSessionsActive(s.sessions.Count())
	if removed {
		s.logger.Info().Str("session_id", id).Msg("session closed")
	}
	return removed
}

func (s *Service) Status() Status {
	return Status{
		Commands: s.ledger.Stats(),
		Clients:  s.clients.Count(),
		Sessions: s.sessions.Count(),
		Mode:     s.cfg.DeliveryMode,
		Uptime:   time.Since(s.started).Round(time.Second).String(),
	}
}

func (s *Service) applyStatus(id, status, detail string) (bool, error) {
	switch status {
	case wire.StatusExecuted:
		return s.ledger.RecordConsumption(id), nil
	case wire.StatusError:
		if strings.TrimSpace(detail) == "" {
			detail = "client reported error"
		}
		return s.ledger.RecordError(id, detail), nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownStatus, status)
	}
}

func (s *Service) noteAck(kind, clientID, commandID string, accepted bool) {
	observability.RecordAck(kind, accepted)
	if accepted {
		s.logger.Debug().
			Str("kind", kind).
			Str("client_id", clientID).
			Str("command_id", commandID).
			Msg("ack applied")
		return
	}
	s.logger.Warn().
		Str("kind", kind).
		Str("client_id", clientID).
		Str("command_id", commandID).
		Msg("stale ack ignored")
}
