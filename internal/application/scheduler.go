package application

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"
)

// Task is one scheduled feed with its own polling interval.
type Task struct {
	Sync     *FeedSync
	Interval time.Duration
}

// Scheduler drives one polling loop per feed. Cycles are independent: a
// stalled or failing feed never delays another, and no cycle error ever
// stops the scheduler.
type Scheduler struct {
	tasks     []Task
	jitterMax time.Duration
}

func NewScheduler(tasks []Task, jitterMax time.Duration) *Scheduler {
	return &Scheduler{tasks: tasks, jitterMax: jitterMax}
}

// Run blocks until ctx is cancelled. It always returns nil after the last
// feed task drains; per-cycle errors are logged inside the tasks.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, task := range s.tasks {
		task := task
		g.Go(func() error {
			s.runFeed(ctx, task)
			return nil
		})
	}

	return g.Wait()
}

func (s *Scheduler) runFeed(ctx context.Context, task Task) {
	log := slog.With("feed", task.Sync.Name())

	// Spread first ticks out so feeds sharing an interval do not all fetch
	// at the same instant.
	if s.jitterMax > 0 {
		jitter := time.Duration(rand.Int63n(int64(s.jitterMax)))
		select {
		case <-ctx.Done():
			return
		case <-time.After(jitter):
		}
	}

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	s.cycle(ctx, task, log)

	for {
		select {
		case <-ctx.Done():
			log.Debug("feed task stopped")
			return
		case <-ticker.C:
			s.cycle(ctx, task, log)
		}
	}
}

func (s *Scheduler) cycle(ctx context.Context, task Task, log *slog.Logger) {
	if ctx.Err() != nil {
		return
	}
	if err := task.Sync.RunCycle(ctx); err != nil {
		log.Error("cycle failed", "error", err, "next_retry", time.Now().Add(task.Interval))
	}
}
