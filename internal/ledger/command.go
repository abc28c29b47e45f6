package ledger

import (
	"errors"
	"slices"
	"time"
)

var ErrEmptyPayload = errors.New("ledger: empty payload")

// State is the lifecycle phase of one command.
type State string

const (
	StatePending  State = "pending"
	StateSent     State = "sent"
	StateExecuted State = "executed"
	StateError    State = "error"
)

// Terminal reports whether no further transition can leave s.
func (s State) Terminal() bool {
	return s == StateExecuted || s == StateError
}

// Command is a read-only snapshot of one ledger entry.
type Command struct {
	ID            string    `json:"id"`
	Payload       string    `json:"commands"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	State         State     `json:"state"`
	ErrorDetail   string    `json:"error,omitempty"`
	OriginSession string    `json:"originSession,omitempty"`
	DeliveredTo   []string  `json:"deliveredTo"`
}

// DeliveredToClient reports whether clientID already received this command.
func (c Command) DeliveredToClient(clientID string) bool {
	_, found := slices.BinarySearch(c.DeliveredTo, clientID)
	return found
}

// Stats is the per-state census of the ledger.
type Stats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Sent     int `json:"sent"`
	Executed int `json:"executed"`
	Error    int `json:"error"`
}

// entry is the mutable ledger record; only Ledger methods touch it.
type entry struct {
	seq           uint64
	id            string
	payload       string
	createdAt     time.Time
	updatedAt     time.Time
	state         State
	errorDetail   string
	originSession string
	deliveredTo   map[string]struct{}
}

func (e *entry) snapshot() Command {
	delivered := make([]string, 0, len(e.deliveredTo))
	for id := range e.deliveredTo {
		delivered = append(delivered, id)
	}
	slices.Sort(delivered)
	return Command{
		ID:            e.id,
		Payload:       e.payload,
		CreatedAt:     e.createdAt,
		UpdatedAt:     e.updatedAt,
		State:         e.state,
		ErrorDetail:   e.errorDetail,
		OriginSession: e.originSession,
		DeliveredTo:   delivered,
	}
}
