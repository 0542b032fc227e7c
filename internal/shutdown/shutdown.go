package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/glefebvre/listcatalog/internal/logger"
)

// Hook releases one resource during shutdown
type Hook func(context.Context) error

type namedHook struct {
	name string
	fn   Hook
}

// Handler runs registered hooks once a termination signal arrives. Hooks run one
// after another in reverse order of registration so the HTTP server stops accepting
// requests before the caches and connections it uses are closed.
type Handler struct {
	mu             sync.Mutex
	hooks          []namedHook
	timeout        time.Duration
	signalChan     chan os.Signal
	shutdownChan   chan struct{}
	isShuttingDown bool
}

// New creates a new shutdown handler
func New(timeout time.Duration) *Handler {
	return &Handler{
		hooks:        make([]namedHook, 0),
		timeout:      timeout,
		signalChan:   make(chan os.Signal, 1),
		shutdownChan: make(chan struct{}),
	}
}

// Register adds a named hook. Hooks run LIFO.
func (h *Handler) Register(name string, fn Hook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, namedHook{name: name, fn: fn})
}

// RegisterCloser adapts a plain Close method into a hook
func (h *Handler) RegisterCloser(name string, closeFn func() error) {
	h.Register(name, func(context.Context) error {
		return closeFn()
	})
}

// Wait blocks until a shutdown signal is received, then shuts down
func (h *Handler) Wait() error {
	signal.Notify(h.signalChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(h.signalChan)

	sig := <-h.signalChan
	logger.AppLogger().WithFields(map[string]interface{}{
		"signal": sig.String(),
	}).Info("Shutdown signal received")
	return h.Shutdown()
}

// Shutdown executes every hook within the handler's timeout. All hook errors are
// returned joined; hooks still pending at the deadline are skipped.
func (h *Handler) Shutdown() error {
	h.mu.Lock()
	if h.isShuttingDown {
		h.mu.Unlock()
		return nil
	}
	h.isShuttingDown = true
	hooks := make([]namedHook, len(h.hooks))
	copy(hooks, h.hooks)
	h.mu.Unlock()

	close(h.shutdownChan)

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		hook := hooks[i]
		if ctx.Err() != nil {
			errs = append(errs, fmt.Errorf("%s: %w", hook.name, ctx.Err()))
			continue
		}

		if err := runHook(ctx, hook); err != nil {
			logger.AppLogger().WithFields(map[string]interface{}{
				"hook": hook.name,
			}).ErrorContext(ctx, "Shutdown hook failed", err)
			errs = append(errs, fmt.Errorf("%s: %w", hook.name, err))
			continue
		}
		logger.AppLogger().WithFields(map[string]interface{}{
			"hook": hook.name,
		}).Debug("Shutdown hook completed")
	}

	return errors.Join(errs...)
}

// runHook stops waiting for a hook once the deadline passes
func runHook(ctx context.Context, hook namedHook) error {
	done := make(chan error, 1)
	go func() {
		done <- hook.fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsShuttingDown returns true if shutdown has been initiated
func (h *Handler) IsShuttingDown() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.isShuttingDown
}

// ShutdownChan returns a channel that is closed when shutdown is initiated
func (h *Handler) ShutdownChan() <-chan struct{} {
	return h.shutdownChan
}

// TriggerShutdown programmatically triggers a shutdown
func (h *Handler) TriggerShutdown() {
	select {
	case h.signalChan <- syscall.SIGTERM:
	default:
	}
}
