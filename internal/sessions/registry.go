// Package sessions tracks logical caller sessions opened by the
// tool-invocation layer and the rendering clients attached to them.
package sessions

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Session is a snapshot of one tracked session.
type Session struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
	ClientIDs    []string  `json:"clientIds"`
}

type record struct {
	createdAt    time.Time
	lastActivity time.Time
	clients      map[string]struct{}
}

func (r *record) snapshot(id string) Session {
	clients := make([]string, 0, len(r.clients))
	for clientID := range r.clients {
		clients = append(clients, clientID)
	}
	sort.Strings(clients)
	return Session{
		ID:           id,
		CreatedAt:    r.createdAt,
		LastActivity: r.lastActivity,
		ClientIDs:    clients,
	}
}

// Registry stores sessions by id.
type Registry struct {
	mu    sync.RWMutex
	items map[string]*record
	now   func() time.Time
}

func NewRegistry() *Registry {
	return NewRegistryWithClock(time.Now)
}

func NewRegistryWithClock(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		items: make(map[string]*record),
		now:   now,
	}
}

// Create registers id, or refreshes its activity when already present.
// It reports whether a new session was created.
func (r *Registry) Create(id string) bool {
	key := strings.TrimSpace(id)
	if key == "" {
		return false
	}
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.items[key]; ok {
		rec.lastActivity = now
		return false
	}
	r.items[key] = &record{
		createdAt:    now,
		lastActivity: now,
		clients:      make(map[string]struct{}),
	}
	return true
}

func (r *Registry) Touch(id string) bool {
	key := strings.TrimSpace(id)
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.items[key]
	if !ok {
		return false
	}
	rec.lastActivity = now
	return true
}

// AssociateClient links clientID to the session and touches it.
// Unknown sessions are created; a client may attach before the
// tool-invocation layer reports the session start.
func (r *Registry) AssociateClient(id, clientID string) bool {
	key := strings.TrimSpace(id)
	clientID = strings.TrimSpace(clientID)
	if key == "" || clientID == "" {
		return false
	}
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.items[key]
	if !ok {
		rec = &record{createdAt: now, clients: make(map[string]struct{})}
		r.items[key] = rec
	}
	rec.clients[clientID] = struct{}{}
	rec.lastActivity = now
	return true
}

// DissociateClient drops clientID from the session without touching it.
func (r *Registry) DissociateClient(id, clientID string) {
	key := strings.TrimSpace(id)
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.items[key]; ok {
		delete(rec.clients, strings.TrimSpace(clientID))
	}
}

// Remove deletes id. Safe to call from the sweep and an explicit close concurrently.
func (r *Registry) Remove(id string) bool {
	key := strings.TrimSpace(id)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[key]; !ok {
		return false
	}
	delete(r.items, key)
	return true
}

// Sweep removes every session idle for longer than timeout.
func (r *Registry) Sweep(timeout time.Duration) int {
	cutoff := r.now().Add(-timeout)
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, rec := range r.items {
		if rec.lastActivity.Before(cutoff) {
			delete(r.items, id)
			removed++
		}
	}
	return removed
}

func (r *Registry) Get(id string) (Session, bool) {
	key := strings.TrimSpace(id)
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.items[key]
	if !ok {
		return Session{}, false
	}
	return rec.snapshot(key), true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// List returns all sessions ordered by id.
func (r *Registry) List() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Session, 0, len(r.items))
	for id, rec := range r.items {
		out = append(out, rec.snapshot(id))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}
