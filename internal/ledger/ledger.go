package ledger

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Option customizes a Ledger at construction.
type Option func(*Ledger)

// WithClock replaces time.Now for creation and purge age checks.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithIDGenerator replaces the UUIDv7 command id source.
func WithIDGenerator(next func() string) Option {
	return func(l *Ledger) {
		if next != nil {
			l.newID = next
		}
	}
}

// Ledger stores commands by id and preserves submission order.
type Ledger struct {
	mu    sync.RWMutex
	items map[string]*entry
	seq   uint64
	now   func() time.Time
	newID func() string
}

func New(opts ...Option) *Ledger {
	l := &Ledger{
		items: make(map[string]*entry),
		now:   time.Now,
		newID: newCommandID,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func newCommandID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Enqueue records a new pending command and returns its id.
func (l *Ledger) Enqueue(payload, originSession string) (string, error) {
	if strings.TrimSpace(payload) == "" {
		return "", ErrEmptyPayload
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.newID()
	for {
		if _, exists := l.items[id]; !exists {
			break
		}
		id = l.newID()
	}
	l.seq++
	l.items[id] = &entry{
		seq:           l.seq,
		id:            id,
		payload:       payload,
		createdAt:     now,
		updatedAt:     now,
		state:         StatePending,
		originSession: strings.TrimSpace(originSession),
		deliveredTo:   make(map[string]struct{}),
	}
	return id, nil
}

// RecordDelivery notes a successful push of id to clientID.
// The first delivery of a pending command advances it to sent.
func (l *Ledger) RecordDelivery(id, clientID string) bool {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.items[id]
	if !ok {
		return false
	}
	e.deliveredTo[clientID] = struct{}{}
	if e.state == StatePending {
		e.state = StateSent
		e.updatedAt = l.now()
	}
	return true
}

// MarkSent advances a pending command to sent without a delivery record.
func (l *Ledger) MarkSent(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.items[id]
	if !ok || e.state != StatePending {
		return false
	}
	e.state = StateSent
	e.updatedAt = l.now()
	return true
}

// RecordConsumption moves a pending or sent command to executed.
func (l *Ledger) RecordConsumption(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.items[id]
	if !ok || e.state.Terminal() {
		return false
	}
	e.state = StateExecuted
	e.updatedAt = l.now()
	return true
}

// RecordError moves a non-terminal command to error with detail.
func (l *Ledger) RecordError(id, detail string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.items[id]
	if !ok || e.state.Terminal() {
		return false
	}
	e.state = StateError
	e.errorDetail = detail
	e.updatedAt = l.now()
	return true
}

func (l *Ledger) Get(id string) (Command, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.items[id]
	if !ok {
		return Command{}, false
	}
	return e.snapshot(), true
}

// ListPending returns pending commands oldest first.
func (l *Ledger) ListPending() []Command {
	l.mu.RLock()
	pending := make([]*entry, 0)
	for _, e := range l.items {
		if e.state == StatePending {
			pending = append(pending, e)
		}
	}
	slices.SortFunc(pending, func(a, b *entry) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		default:
			return 0
		}
	})
	out := make([]Command, 0, len(pending))
	for _, e := range pending {
		out = append(out, e.snapshot())
	}
	l.mu.RUnlock()
	return out
}

func (l *Ledger) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var s Stats
	for _, e := range l.items {
		s.Total++
		switch e.state {
		case StatePending:
			s.Pending++
		case StateSent:
			s.Sent++
		case StateExecuted:
			s.Executed++
		case StateError:
			s.Error++
		}
	}
	return s
}

// Purge deletes terminal commands created more than maxAge ago.
// With no states given, executed and error entries are eligible.
// Pending and sent entries are never removed.
func (l *Ledger) Purge(maxAge time.Duration, states ...State) int {
	eligible := map[State]bool{StateExecuted: true, StateError: true}
	if len(states) > 0 {
		eligible = make(map[State]bool, len(states))
		for _, s := range states {
			if s.Terminal() {
				eligible[s] = true
			}
		}
	}
	cutoff := l.now().Add(-maxAge)

	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for id, e := range l.items {
		if !eligible[e.state] || !e.createdAt.Before(cutoff) {
			continue
		}
		delete(l.items, id)
		removed++
	}
	return removed
}
