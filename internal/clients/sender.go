package clients

import (
	"sync"

	"github.com/zerob13/canvas-sketchpad-mcp/internal/protocol/wire"
)

// QueueSender is a bounded, non-blocking Sender. A transport writer waits on
// Ready and takes queued messages with Drain; Close ends the stream.
type QueueSender struct {
	mu      sync.Mutex
	pending []wire.Outbound
	limit   int
	burst   int
	ready   chan struct{}
	closed  bool
	done    chan struct{}
}

func NewQueueSender(size int) *QueueSender {
	if size <= 0 {
		size = 1
	}
	return &QueueSender{
		limit: size,
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

func (s *QueueSender) Send(msg wire.Outbound) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if len(s.pending) >= s.limit+s.burst {
		return ErrSendBufferFull
	}
	s.pending = append(s.pending, msg)
	select {
	case s.ready <- struct{}{}:
	default:
	}
	return nil
}

// Reserve guarantees room for n more messages on top of whatever is queued.
// The extra room lasts until the queue is next drained empty.
func (s *QueueSender) Reserve(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if need := len(s.pending) + n - s.limit; need > s.burst {
		s.burst = need
	}
}

// Drain removes and returns every queued message in send order.
func (s *QueueSender) Drain() []wire.Outbound {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	s.burst = 0
	return out
}

// Len reports the number of queued messages.
func (s *QueueSender) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Ready receives a signal whenever a message is queued.
func (s *QueueSender) Ready() <-chan struct{} {
	return s.ready
}

func (s *QueueSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	return nil
}

// Done is closed once the sender is closed.
func (s *QueueSender) Done() <-chan struct{} {
	return s.done
}
