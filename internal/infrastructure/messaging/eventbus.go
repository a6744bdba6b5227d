// Package messaging implements the in-process event bus that connects
// risk recomputation to the alerting pipeline. A single-instance
// deployment does not need a broker; handlers run on a bounded worker
// pool inside the service process.
package messaging

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/teamvidya/vidya-dropout/internal/domain/shared"
)

// ErrEventBusClosed is returned when operations are attempted on a closed bus.
var ErrEventBusClosed = errors.New("event bus is closed")

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// EventBus is an in-memory implementation of shared.EventPublisher.
// Handlers registered via Subscribe run asynchronously on a bounded
// worker pool so a slow alert send never blocks a recompute pass.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[shared.EventType][]shared.EventHandler
	pool     chan struct{}
	logger   *slog.Logger
	metrics  *Metrics
	timeout  time.Duration
	closed   bool
	closeCh  chan struct{}
	wg       sync.WaitGroup
}

// Config contains configuration for the EventBus.
type Config struct {
	// WorkerPoolSize is the number of concurrent handler executions.
	WorkerPoolSize int

	// HandlerTimeout bounds a single handler execution.
	HandlerTimeout time.Duration

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		WorkerPoolSize: 8,
		HandlerTimeout: 30 * time.Second,
	}
}

// NewEventBus creates a new in-memory event bus.
func NewEventBus(cfg Config) *EventBus {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = 8
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = 30 * time.Second
	}

	return &EventBus{
		handlers: make(map[shared.EventType][]shared.EventHandler),
		pool:     make(chan struct{}, cfg.WorkerPoolSize),
		logger:   cfg.Logger,
		metrics:  NewMetrics(),
		timeout:  cfg.HandlerTimeout,
		closeCh:  make(chan struct{}),
	}
}

// Subscribe registers a handler for every event type it is interested in.
func (b *EventBus) Subscribe(handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}

	for _, eventType := range handler.InterestedIn() {
		b.handlers[eventType] = append(b.handlers[eventType], handler)
		b.logger.Debug("subscribed handler", "event_type", eventType)
	}

	return nil
}

// Publish implements shared.EventPublisher. Handlers run asynchronously;
// the returned error only reflects bus state, not handler outcomes.
func (b *EventBus) Publish(ctx context.Context, event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}
	handlers := make([]shared.EventHandler, len(b.handlers[event.EventType()]))
	copy(handlers, b.handlers[event.EventType()])
	b.mu.RUnlock()

	b.metrics.RecordPublish(event.EventType())

	if len(handlers) == 0 {
		b.logger.Debug("no handlers for event", "event_type", event.EventType())
		return nil
	}

	for _, handler := range handlers {
		b.dispatch(event, handler)
	}

	return nil
}

// dispatch executes a handler on the worker pool.
func (b *EventBus) dispatch(event shared.Event, handler shared.EventHandler) {
	b.wg.Add(1)

	go func() {
		defer b.wg.Done()

		select {
		case b.pool <- struct{}{}:
			defer func() { <-b.pool }()
		case <-b.closeCh:
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		defer cancel()

		start := time.Now()
		err := handler.Handle(ctx, event)
		duration := time.Since(start)

		b.metrics.RecordHandlerExecution(event.EventType(), duration, err == nil)

		if err != nil {
			b.logger.Error("event handler failed",
				"event_type", event.EventType(),
				"aggregate_id", event.AggregateID(),
				"duration", duration,
				"error", err,
			)
		}
	}()
}

// Close stops accepting events and waits for in-flight handlers.
func (b *EventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.closeCh)
	b.mu.Unlock()

	b.wg.Wait()

	b.logger.Info("event bus closed")
	return nil
}

// Metrics returns the bus metrics tracker.
func (b *EventBus) Metrics() *Metrics {
	return b.metrics
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// Metrics tracks event bus activity.
type Metrics struct {
	mu sync.RWMutex

	published map[shared.EventType]int64

	handlerExecutions    int64
	handlerSuccesses     int64
	handlerFailures      int64
	handlerTotalDuration time.Duration
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{
		published: make(map[shared.EventType]int64),
	}
}

// RecordPublish records a published event.
func (m *Metrics) RecordPublish(eventType shared.EventType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published[eventType]++
}

// RecordHandlerExecution records one handler execution.
func (m *Metrics) RecordHandlerExecution(eventType shared.EventType, duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlerExecutions++
	m.handlerTotalDuration += duration
	if success {
		m.handlerSuccesses++
	} else {
		m.handlerFailures++
	}
}

// Snapshot returns a point-in-time copy of the metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var totalPublished int64
	for _, v := range m.published {
		totalPublished += v
	}

	avgDuration := time.Duration(0)
	if m.handlerExecutions > 0 {
		avgDuration = m.handlerTotalDuration / time.Duration(m.handlerExecutions)
	}

	successRate := 1.0
	if m.handlerExecutions > 0 {
		successRate = float64(m.handlerSuccesses) / float64(m.handlerExecutions)
	}

	return MetricsSnapshot{
		TotalPublished:         totalPublished,
		TotalHandlerExecs:      m.handlerExecutions,
		HandlerSuccessRate:     successRate,
		AverageHandlerDuration: avgDuration,
	}
}

// MetricsSnapshot is a point-in-time view of bus activity.
type MetricsSnapshot struct {
	TotalPublished         int64
	TotalHandlerExecs      int64
	HandlerSuccessRate     float64
	AverageHandlerDuration time.Duration
}
