// Package broadcast fans ledger commands out to connected rendering clients
// and reconciles each delivery back into the ledger.
package broadcast

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/clients"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/ledger"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/observability"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/protocol/wire"
)

// Ledger is the slice of the command ledger the broadcaster reconciles into.
type Ledger interface {
	Get(id string) (ledger.Command, bool)
	ListPending() []ledger.Command
	RecordDelivery(id, clientID string) bool
}

// Registry is the slice of the connection registry used for fan-out.
type Registry interface {
	Add(clientID string, sender clients.Sender, sessionID string) bool
	Get(clientID string) (clients.Client, bool)
	Snapshot() []clients.Client
	Remove(clientID string) bool
}

type Broadcaster struct {
	mu      sync.Mutex
	ledger  Ledger
	clients Registry
	logger  zerolog.Logger
}

func New(l Ledger, r Registry) *Broadcaster {
	return &Broadcaster{
		ledger:  l,
		clients: r,
		logger:  log.Logger.With().Str("component", "broadcast").Logger(),
	}
}

// Broadcast pushes cmd to every client in a registry snapshot and returns
// the number of successful sends. A failed client is removed and skipped.
func (b *Broadcaster) Broadcast(cmd ledger.Command) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	current, ok := b.ledger.Get(cmd.ID)
	if !ok {
		b.logger.Debug().Str("command_id", cmd.ID).Msg("broadcast skipped: command purged")
		return 0
	}
	msg := canvasMessage(current)
	delivered := 0
	for _, c := range b.clients.Snapshot() {
		if current.DeliveredToClient(c.ID) {
			continue
		}
		if b.deliver(c, current.ID, msg) {
			delivered++
		}
	}
	b.logger.Debug().
		Str("command_id", current.ID).
		Int("delivered", delivered).
		Msg("broadcast complete")
	return delivered
}

// Attach registers a client and replays the pending backlog to it in one
// step. Broadcasts wait until the replay is done, so the client sees commands
// in ledger order. It reports whether the client was added and how many
// commands were replayed.
func (b *Broadcaster) Attach(clientID string, sender clients.Sender, sessionID string) (bool, int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.clients.Add(clientID, sender, sessionID) {
		return false, 0
	}
	return true, b.replay(clientID)
}

// Replay sends the pending backlog, oldest first, to one registered client.
// Commands already delivered to that client are skipped.
func (b *Broadcaster) Replay(clientID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.replay(clientID)
}

func (b *Broadcaster) replay(clientID string) int {
	c, ok := b.clients.Get(clientID)
	if !ok {
		return 0
	}
	backlog := make([]ledger.Command, 0)
	for _, cmd := range b.ledger.ListPending() {
		if !cmd.DeliveredToClient(c.ID) {
			backlog = append(backlog, cmd)
		}
	}
	if len(backlog) == 0 {
		return 0
	}
	if bs, ok := c.Sender.(clients.BacklogSender); ok {
		bs.Reserve(len(backlog))
	}
	delivered := 0
	for _, cmd := range backlog {
		if !b.deliver(c, cmd.ID, canvasMessage(cmd)) {
			break
		}
		delivered++
	}
	b.logger.Info().
		Str("client_id", c.ID).
		Int("replayed", delivered).
		Int("backlog", len(backlog)).
		Msg("pending backlog replayed")
	return delivered
}

func (b *Broadcaster) deliver(c clients.Client, commandID string, msg wire.CanvasCommand) bool {
	if err := c.Sender.Send(msg); err != nil {
		observability.RecordDelivery(false)
		b.logger.Warn().
			Err(err).
			Str("client_id", c.ID).
			Str("command_id", commandID).
			Msg("delivery failed; dropping client")
		b.clients.Remove(c.ID)
		return false
	}
	observability.RecordDelivery(true)
	b.ledger.RecordDelivery(commandID, c.ID)
	return true
}

func canvasMessage(cmd ledger.Command) wire.CanvasCommand {
	return wire.CanvasCommand{
		ID:        cmd.ID,
		Commands:  cmd.Payload,
		Timestamp: cmd.CreatedAt.UnixMilli(),
	}
}
