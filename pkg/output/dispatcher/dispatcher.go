// Package dispatcher routes scan events to writers and hooks. Writers
// persist the result stream (line output, JSONL, console); hooks feed
// live integrations (metrics, tracing, logs).
//
// The dispatcher decouples event generation in the scanner from event
// consumption.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/output/events"
)

// ErrClosed is returned by Dispatch after Close.
var ErrClosed = errors.New("dispatcher: closed")

// Writer is the interface for all output writers.
type Writer interface {
	// Write writes an event to the output.
	Write(event events.Event) error

	// Flush ensures all buffered events are written.
	Flush() error

	// Close closes the writer and releases any resources.
	Close() error

	// SupportsEvent returns true if the writer handles this event type.
	SupportsEvent(eventType events.EventType) bool
}

// Hook is the interface for event hooks.
type Hook interface {
	// OnEvent is called for each matching event.
	OnEvent(ctx context.Context, event events.Event) error

	// EventTypes returns the event types this hook handles.
	// Return nil or empty slice to receive all events.
	EventTypes() []events.EventType
}

// Dispatcher routes events to writers and hooks.
// It is safe for concurrent use.
type Dispatcher struct {
	writers []Writer
	hooks   []Hook
	mu      sync.RWMutex
	closed  bool

	async  bool
	hookWg sync.WaitGroup
	logger *slog.Logger
}

// Config configures the dispatcher behavior.
type Config struct {
	// Async runs hooks in goroutines. Writers are always synchronous so
	// the result stream keeps its order.
	Async bool

	// Logger receives hook failures (default slog.Default()).
	Logger *slog.Logger
}

// New creates a new event dispatcher with the given configuration.
func New(cfg Config) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		async:  cfg.Async,
		logger: logger,
	}
}

// RegisterWriter adds a writer to the dispatcher.
func (d *Dispatcher) RegisterWriter(w Writer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writers = append(d.writers, w)
}

// RegisterHook adds a hook to the dispatcher.
func (d *Dispatcher) RegisterHook(h Hook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks = append(d.hooks, h)
}

// Dispatch sends an event to every writer and hook that accepts it, then
// flushes the writers. Every writer sees the event even if an earlier one
// fails; writer errors are joined and returned. Hook errors are logged
// and never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, event events.Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrClosed
	}

	var errs []error
	for _, w := range d.writers {
		if !w.SupportsEvent(event.EventType()) {
			continue
		}
		if err := w.Write(event); err != nil {
			errs = append(errs, fmt.Errorf("write %s: %w", event.EventType(), err))
			continue
		}
		if err := w.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("flush %s: %w", event.EventType(), err))
		}
	}

	for _, h := range d.hooks {
		if !hookSupportsEvent(h, event.EventType()) {
			continue
		}
		if d.async {
			d.hookWg.Add(1)
			go func(hook Hook) {
				defer d.hookWg.Done()
				d.runHook(ctx, hook, event)
			}(h)
		} else {
			d.runHook(ctx, h, event)
		}
	}

	return errors.Join(errs...)
}

func (d *Dispatcher) runHook(ctx context.Context, h Hook, event events.Event) {
	if err := h.OnEvent(ctx, event); err != nil {
		d.logger.Warn("hook failed",
			slog.String("hook", fmt.Sprintf("%T", h)),
			slog.String("event", string(event.EventType())),
			slog.String("error", err.Error()))
	}
}

// hookSupportsEvent checks if a hook handles the given event type.
func hookSupportsEvent(h Hook, eventType events.EventType) bool {
	types := h.EventTypes()
	if len(types) == 0 {
		return true
	}
	for _, et := range types {
		if et == eventType {
			return true
		}
	}
	return false
}

// Flush flushes all registered writers.
func (d *Dispatcher) Flush() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var errs []error
	for _, w := range d.writers {
		if err := w.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close waits for running hooks, then flushes and closes all writers and
// any hook that implements io.Closer. Close is idempotent.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.hookWg.Wait()

	var errs []error
	for _, w := range d.writers {
		if err := w.Flush(); err != nil {
			errs = append(errs, err)
		}
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, h := range d.hooks {
		if c, ok := h.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
