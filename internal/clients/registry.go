// Package clients is the connection registry for live rendering clients.
package clients

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zerob13/canvas-sketchpad-mcp/internal/protocol/wire"
)

var (
	ErrSendBufferFull = errors.New("clients: send buffer full")
	ErrClosed         = errors.New("clients: connection closed")
)

// Sender is the live send handle of one connection.
// Send must not block; a slow or dead peer reports an error instead.
type Sender interface {
	Send(msg wire.Outbound) error
	Close() error
}

// BacklogSender is a Sender that can make room for a burst of n messages,
// such as the pending backlog replayed to a newly attached client.
type BacklogSender interface {
	Sender
	Reserve(n int)
}

// SessionAssociator links clients to logical sessions.
type SessionAssociator interface {
	AssociateClient(sessionID, clientID string) bool
	DissociateClient(sessionID, clientID string)
}

// Client is a registry snapshot. Sender stays owned by the registry.
type Client struct {
	ID          string
	SessionID   string
	ConnectedAt time.Time
	Sender      Sender
}

type Registry struct {
	mu       sync.RWMutex
	items    map[string]Client
	sessions SessionAssociator
	now      func() time.Time
}

// NewRegistry builds a registry; sessions may be nil.
func NewRegistry(sessions SessionAssociator) *Registry {
	return &Registry{
		items:    make(map[string]Client),
		sessions: sessions,
		now:      time.Now,
	}
}

// Add registers a connection. Re-adding an id replaces and closes the old sender.
func (r *Registry) Add(clientID string, sender Sender, sessionID string) bool {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" || sender == nil {
		return false
	}
	sessionID = strings.TrimSpace(sessionID)
	c := Client{
		ID:          clientID,
		SessionID:   sessionID,
		ConnectedAt: r.now(),
		Sender:      sender,
	}

	r.mu.Lock()
	prev, replaced := r.items[clientID]
	r.items[clientID] = c
	r.mu.Unlock()

	if replaced && prev.Sender != sender {
		_ = prev.Sender.Close()
		if prev.SessionID != "" && prev.SessionID != sessionID && r.sessions != nil {
			r.sessions.DissociateClient(prev.SessionID, clientID)
		}
	}
	if sessionID != "" && r.sessions != nil {
		r.sessions.AssociateClient(sessionID, clientID)
	}
	return true
}

// Remove drops clientID and closes its sender. Only the first call reports true.
func (r *Registry) Remove(clientID string) bool {
	clientID = strings.TrimSpace(clientID)
	r.mu.Lock()
	c, ok := r.items[clientID]
	if ok {
		delete(r.items, clientID)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	_ = c.Sender.Close()
	if c.SessionID != "" && r.sessions != nil {
		r.sessions.DissociateClient(c.SessionID, clientID)
	}
	return true
}

func (r *Registry) Get(clientID string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.items[strings.TrimSpace(clientID)]
	return c, ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Snapshot copies the current clients ordered by connection time.
func (r *Registry) Snapshot() []Client {
	r.mu.RLock()
	out := make([]Client, 0, len(r.items))
	for _, c := range r.items {
		out = append(out, c)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}

// ForEach visits a snapshot, so visit may add or remove clients freely.
func (r *Registry) ForEach(visit func(Client)) {
	for _, c := range r.Snapshot() {
		visit(c)
	}
}
