// Package tasks runs fire-and-forget side effects (notifications, dispatch
// triggers, history writes) off the webhook response path. Unlike detached
// goroutines, every task is tracked: concurrency is bounded and Drain waits
// for in-flight work at shutdown.
package tasks

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

type Runner struct {
	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
	log    *slog.Logger
}

func NewRunner(workers int, log *slog.Logger) *Runner {
	if workers <= 0 {
		workers = 8
	}
	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	return &Runner{group: g, ctx: gctx, cancel: cancel, log: log}
}

// Go schedules a background task. Task errors are logged, never propagated:
// a failed notification must not take the group down with it. Blocks only
// when all workers are busy, which backpressures a flooding webhook.
func (r *Runner) Go(name string, fn func(ctx context.Context) error) {
	r.group.Go(func() error {
		if err := fn(r.ctx); err != nil {
			r.log.Warn("background task failed", "task", name, "error", err)
		}
		return nil
	})
}

// Drain stops accepting meaningful work and waits for in-flight tasks,
// bounded by the passed context.
func (r *Runner) Drain(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- r.group.Wait() }()
	select {
	case err := <-done:
		r.cancel()
		return err
	case <-ctx.Done():
		r.cancel()
		return ctx.Err()
	}
}
