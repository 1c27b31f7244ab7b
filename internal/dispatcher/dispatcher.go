package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrUnknownType is returned when no handler is registered for an event type.
var ErrUnknownType = errors.New("unknown event type")

// ErrClosed is returned when dispatching after Close.
var ErrClosed = errors.New("dispatcher closed")

// Event is something that happened during a simulation tick.
type Event struct {
	Type      string
	VehicleID uint16
	Tick      uint
	Timestamp time.Time
	Payload   any
}

// HandlerFunc processes an event.
type HandlerFunc func(Event) error

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	logged     bool
}

// Buffered makes the handler async with a queue of the given size.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered handler block when the queue is full instead of dropping.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   Logger

	// OTEL metrics
	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter
	failed    metric.Int64Counter

	// Track buffers for gauge callback and Close
	mu      sync.RWMutex
	buffers map[string]chan Event
	closed  bool
	wg      sync.WaitGroup
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		buffers:  make(map[string]chan Event),
		logger:   logger,
	}

	// Get meter from global OTel provider (returns no-op if not configured)
	m := meter()

	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Current number of events in queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for typ, buf := range d.buffers {
				o.ObserveInt64(d.queueSize, int64(len(buf)),
					metric.WithAttributes(attribute.String("type", typ)))
			}
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"dispatcher.events.processed",
		metric.WithDescription("Total events processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"dispatcher.events.dropped",
		metric.WithDescription("Total events dropped due to full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	d.failed, err = m.Int64Counter(
		"dispatcher.events.failed",
		metric.WithDescription("Total buffered events whose handler returned an error"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given event type with optional configuration.
// Registering must finish before the first Dispatch.
func (d *Dispatcher) Register(eventType string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h

	if cfg.logged {
		handler = d.withLogging(eventType, handler)
	}

	if cfg.bufferSize > 0 {
		handler = d.withBuffer(eventType, cfg.bufferSize, cfg.blocking, handler)
	}

	d.handlers[eventType] = handler
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(e Event) error {
	h, ok := d.handlers[e.Type]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownType, e.Type)
	}
	return h(e)
}

// HasHandler returns true if a handler is registered for the event type.
func (d *Dispatcher) HasHandler(eventType string) bool {
	_, ok := d.handlers[eventType]
	return ok
}

// Close stops accepting events and waits for buffered handlers to drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, buf := range d.buffers {
		close(buf)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) withBuffer(eventType string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	buffer := make(chan Event, size)

	d.mu.Lock()
	d.buffers[eventType] = buffer
	d.mu.Unlock()

	typeAttr := attribute.String("type", eventType)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for e := range buffer {
			if err := h(e); err != nil {
				d.failed.Add(context.Background(), 1, metric.WithAttributes(typeAttr))
			}
			d.processed.Add(context.Background(), 1, metric.WithAttributes(typeAttr))
		}
	}()

	if blocking {
		return func(e Event) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			if d.closed {
				return ErrClosed
			}
			buffer <- e
			return nil
		}
	}

	return func(e Event) error {
		d.mu.RLock()
		defer d.mu.RUnlock()
		if d.closed {
			return ErrClosed
		}
		select {
		case buffer <- e:
			return nil
		default:
			d.dropped.Add(context.Background(), 1, metric.WithAttributes(typeAttr))
			return fmt.Errorf("queue full: %s", eventType)
		}
	}
}

func (d *Dispatcher) withLogging(eventType string, h HandlerFunc) HandlerFunc {
	return func(e Event) error {
		start := time.Now()
		d.logger.Debug("handling event", "type", eventType, "vehicle", e.VehicleID, "tick", e.Tick)

		err := h(e)

		if err != nil {
			d.logger.Error("event failed", "type", eventType, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("event complete", "type", eventType, "duration", time.Since(start))
		}

		return err
	}
}
