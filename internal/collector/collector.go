// Package collector runs periodic garbage collection tasks, each on its own
// schedule with its own stop handle.
package collector

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/observability"
)

// Task is one independently scheduled collection job. Run returns the
// number of entries it removed.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) int
}

// Handle stops one scheduled task. Stop blocks until the task loop exits.
type Handle struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (h *Handle) Name() string {
	return h.name
}

func (h *Handle) Stop() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		h.cancel()
		<-h.done
	})
}

type Collector struct {
	mu      sync.Mutex
	tasks   []Task
	handles []*Handle
	logger  zerolog.Logger
}

func New(tasks ...Task) *Collector {
	return &Collector{
		tasks:  tasks,
		logger: log.Logger.With().Str("component", "collector").Logger(),
	}
}

func (c *Collector) Tasks() []Task {
	out := make([]Task, len(c.tasks))
	copy(out, c.tasks)
	return out
}

// Schedule starts task on its own ticker. A task with a non-positive
// interval or nil Run is disabled and yields a nil handle.
func (c *Collector) Schedule(ctx context.Context, task Task) *Handle {
	if task.Interval <= 0 || task.Run == nil {
		c.logger.Info().Str("task", task.Name).Msg("gc task disabled")
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle{name: task.Name, cancel: cancel, done: make(chan struct{})}
	go c.loop(runCtx, task, h.done)
	c.logger.Info().
		Str("task", task.Name).
		Dur("interval", task.Interval).
		Msg("gc task scheduled")
	return h
}

// Start schedules every configured task and keeps their handles for Stop.
func (c *Collector) Start(ctx context.Context) []*Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, task := range c.tasks {
		if h := c.Schedule(ctx, task); h != nil {
			c.handles = append(c.handles, h)
		}
	}
	out := make([]*Handle, len(c.handles))
	copy(out, c.handles)
	return out
}

// Stop halts every task started by Start.
func (c *Collector) Stop() {
	c.mu.Lock()
	handles := c.handles
	c.handles = nil
	c.mu.Unlock()
	for _, h := range handles {
		h.Stop()
	}
}

// RunOnce runs every task synchronously, regardless of interval.
func (c *Collector) RunOnce(ctx context.Context) map[string]int {
	out := make(map[string]int, len(c.tasks))
	for _, task := range c.tasks {
		if task.Run == nil {
			continue
		}
		out[task.Name] = c.run(ctx, task)
	}
	return out
}

func (c *Collector) loop(ctx context.Context, task Task, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.run(ctx, task)
		}
	}
}

func (c *Collector) run(ctx context.Context, task Task) int {
	removed := task.Run(ctx)
	observability.RecordGCRemoved(task.Name, removed)
	if removed > 0 {
		c.logger.Info().Str("task", task.Name).Int("removed", removed).Msg("gc pass")
	}
	return removed
}
