package collector

import (
	"context"
	"time"

	"github.com/zerob13/canvas-sketchpad-mcp/internal/ledger"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/observability"
)

const (
	TaskLedgerPurge  = "ledger.purge"
	TaskSessionSweep = "session.sweep"

	DefaultPurgeInterval  = 30 * time.Second
	DefaultPurgeMaxAge    = 5 * time.Minute
	DefaultSweepInterval  = 30 * time.Second
	DefaultSessionTimeout = 30 * time.Minute
)

type Purger interface {
	Purge(maxAge time.Duration, states ...ledger.State) int
}

type Sweeper interface {
	Sweep(timeout time.Duration) int
	Count() int
}

// LedgerPurgeTask removes executed and error commands older than maxAge.
func LedgerPurgeTask(l Purger, interval, maxAge time.Duration) Task {
	return Task{
		Name:     TaskLedgerPurge,
		Interval: interval,
		Run: func(context.Context) int {
			return l.Purge(maxAge, ledger.StateExecuted, ledger.StateError)
		},
	}
}

// SessionSweepTask removes sessions idle longer than timeout.
func SessionSweepTask(s Sweeper, interval, timeout time.Duration) Task {
	return Task{
		Name:     TaskSessionSweep,
		Interval: interval,
		Run: func(context.Context) int {
			removed := s.Sweep(timeout)
			observability.SetSessionsActive(s.Count())
			return removed
		},
	}
}
