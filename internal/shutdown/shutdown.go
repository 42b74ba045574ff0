// Package shutdown cancels an in-flight discovery on SIGINT/SIGTERM and runs
// registered cleanups, newest first, before the process exits.
package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Cleanup is run once when a signal arrives.
type Cleanup func(ctx context.Context) error

// Config holds shutdown configuration.
type Config struct {
	Timeout  time.Duration // Budget for each cleanup
	Signals  []os.Signal
	OnSignal func(sig os.Signal)
	OnDone   func(errs []error)
}

// Handler ties a context to process signals.
type Handler struct {
	cfg    Config
	ctx    context.Context
	cancel context.CancelFunc

	signals chan os.Signal
	once    sync.Once

	mu       sync.Mutex
	names    []string
	cleanups []Cleanup
}

// New creates a handler whose context is derived from parent and cancelled
// when a signal arrives or Stop is called.
func New(parent context.Context, cfg Config) *Handler {
	if parent == nil {
		parent = context.Background()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if len(cfg.Signals) == 0 {
		cfg.Signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}

	ctx, cancel := context.WithCancel(parent)
	h := &Handler{
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		signals: make(chan os.Signal, 1),
	}
	signal.Notify(h.signals, cfg.Signals...)
	return h
}

// Register adds a named cleanup.
func (h *Handler) Register(name string, fn Cleanup) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.names = append(h.names, name)
	h.cleanups = append(h.cleanups, fn)
}

// Context is cancelled on the first signal.
func (h *Handler) Context() context.Context {
	return h.ctx
}

// Listen blocks until a signal arrives or the context ends. On a signal it
// cancels the context and runs the cleanups before returning.
func (h *Handler) Listen() {
	select {
	case sig := <-h.signals:
		h.interrupt(sig)
	case <-h.ctx.Done():
	}
}

// Stop detaches the handler from process signals and releases its context
// without running cleanups.
func (h *Handler) Stop() {
	signal.Stop(h.signals)
	h.cancel()
}

func (h *Handler) interrupt(sig os.Signal) {
	h.once.Do(func() {
		if h.cfg.OnSignal != nil {
			h.cfg.OnSignal(sig)
		}
		h.cancel()

		h.mu.Lock()
		names := append([]string(nil), h.names...)
		cleanups := append([]Cleanup(nil), h.cleanups...)
		h.mu.Unlock()

		var errs []error
		for i := len(cleanups) - 1; i >= 0; i-- {
			if err := h.run(names[i], cleanups[i]); err != nil {
				errs = append(errs, err)
			}
		}

		if h.cfg.OnDone != nil {
			h.cfg.OnDone(errs)
		}
	})
}

// run gives fn at most the configured timeout. A cleanup that ignores its
// context is abandoned, not waited for.
func (h *Handler) run(name string, fn Cleanup) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.Timeout)
	defer cancel()

	result := make(chan error, 1)
	go func() { result <- fn(ctx) }()

	select {
	case err := <-result:
		if err != nil {
			return fmt.Errorf("cleanup %s: %w", name, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("cleanup %s: %w", name, ctx.Err())
	}
}
