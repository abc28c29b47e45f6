package ws

import (
	"math"
	"math/rand"
	"time"
)

// Delay returns the reconnect delay for attempt N (1-based). Jitter scales
// the delay by 0.5 to 1.5, and the result never exceeds MaxDelay.
func (cfg BackoffConfig) Delay(attempt int, rng *rand.Rand) time.Duration {
	if cfg.InitialDelay <= 0 {
		return 0
	}
	delay := float64(cfg.InitialDelay)
	if attempt > 1 {
		delay *= math.Pow(math.Max(cfg.Multiplier, 1.0), float64(attempt-1))
	}
	if cfg.Jitter && rng != nil {
		delay *= 0.5 + rng.Float64()
	}
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}

// reconnectSchedule paces probe reconnects. A failed dial and a session that
// closed before the server pushed anything both count as failures. A session
// that carried at least one message starts the schedule over.
type reconnectSchedule struct {
	cfg      BackoffConfig
	rng      *rand.Rand
	failures int
}

func newReconnectSchedule(cfg BackoffConfig, rng *rand.Rand) *reconnectSchedule {
	return &reconnectSchedule{cfg: cfg, rng: rng}
}

// Ended records one finished dial or session that received n messages. It
// returns the consecutive failure count and the wait before the next dial.
func (s *reconnectSchedule) Ended(n int) (int, time.Duration) {
	if n > 0 {
		s.failures = 0
		return 0, s.cfg.Delay(1, s.rng)
	}
	s.failures++
	return s.failures, s.cfg.Delay(s.failures, s.rng)
}
