// Package run owns a service process lifecycle: the main server, background
// loops tied to it, and ordered shutdown on SIGINT/SIGTERM.
package run

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const DefaultShutdownTimeout = 10 * time.Second

type task struct {
	name string
	fn   func(ctx context.Context)
}

type Runner struct {
	Logger          *zap.Logger
	ShutdownTimeout time.Duration
	tasks           []task
}

func New(log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{Logger: log, ShutdownTimeout: DefaultShutdownTimeout}
}

// Go registers a loop started next to the server. fn must return once its
// context is cancelled, which happens before the shutdown hooks run.
func (r *Runner) Go(name string, fn func(ctx context.Context)) *Runner {
	r.tasks = append(r.tasks, task{name: name, fn: fn})
	return r
}

// WithSignals runs start and the registered loops until start returns or a
// signal arrives, then stops the loops and calls the shutdown hooks in reverse
// order, all within ShutdownTimeout. It returns the process exit code.
func (r *Runner) WithSignals(start func(ctx context.Context) error, shutdown ...func(context.Context) error) int {
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	var wg sync.WaitGroup
	for _, t := range r.tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			t.fn(ctx)
			r.Logger.Debug("background task stopped", zap.String("task", t.name))
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- start(ctx)
	}()

	code := 0
	select {
	case <-sigCtx.Done():
		r.Logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.Logger.Error("service exited with error", zap.Error(err))
			code = 1
		}
	}
	cancel()

	timeout := r.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	sctx, scancel := context.WithTimeout(context.Background(), timeout)
	defer scancel()
	for i := len(shutdown) - 1; i >= 0; i-- {
		if err := shutdown[i](sctx); err != nil {
			r.Logger.Warn("shutdown hook failed", zap.Int("hook", i), zap.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-sctx.Done():
		r.Logger.Warn("background tasks still running at shutdown deadline", zap.Int("tasks", len(r.tasks)))
	}
	return code
}

func Exit(code int) {
	os.Exit(code)
}
