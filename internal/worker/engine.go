package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/procura/internal/config"
	"github.com/Additional-Code/procura/internal/messaging"
)

const maxBackoff = 30 * time.Second

// HandlerRegistration subscribes a handler to one or more event types.
type HandlerRegistration struct {
	Name       string
	EventTypes []string
	Handler    messaging.Handler
}

type route struct {
	name    string
	handler messaging.Handler
}

// Params collects dependencies via Fx.
type Params struct {
	fx.In

	Client        messaging.Client
	Logger        *zap.Logger
	Config        config.Config
	Registrations []HandlerRegistration `group:"worker.handlers"`
}

// Engine consumes lifecycle events and fans each one out to the handlers
// registered for its type. A message is acknowledged only when every handler
// succeeds.
type Engine struct {
	client    messaging.Client
	logger    *zap.Logger
	cfg       config.Config
	routes    map[string][]route
	processed metric.Int64Counter

	// progress holds, per redelivered message, the handlers that already succeeded.
	mu       sync.Mutex
	progress map[string]map[string]bool

	cancel context.CancelFunc
	wg     *sync.WaitGroup
}

// NewEngine constructs the worker Engine.
func NewEngine(p Params) *Engine {
	routes := make(map[string][]route)
	for _, r := range p.Registrations {
		if r.Handler == nil {
			continue
		}
		for _, eventType := range r.EventTypes {
			routes[eventType] = append(routes[eventType], route{name: r.Name, handler: r.Handler})
		}
	}

	processed, err := otel.Meter("github.com/Additional-Code/procura/worker").Int64Counter(
		"procura.worker.messages",
		metric.WithDescription("Lifecycle events processed by the worker engine"),
	)
	if err != nil {
		p.Logger.Warn("worker metrics unavailable", zap.Error(err))
	}

	return &Engine{
		client:    p.Client,
		logger:    p.Logger,
		cfg:       p.Config,
		routes:    routes,
		processed: processed,
		progress:  make(map[string]map[string]bool),
	}
}

// Module wires the engine into Fx lifecycle.
var Module = fx.Options(
	fx.Provide(NewEngine),
	fx.Invoke(func(lc fx.Lifecycle, engine *Engine) {
		lc.Append(fx.Hook{
			OnStart: engine.Start,
			OnStop:  engine.Stop,
		})
	}),
)

// Start launches the configured number of consumers.
func (e *Engine) Start(context.Context) error {
	if !e.cfg.Messaging.Enabled || !e.cfg.Messaging.Workers.Enabled {
		e.logger.Info("worker engine disabled")
		return nil
	}
	if len(e.routes) == 0 {
		e.logger.Info("worker engine has no handlers; skipping")
		return nil
	}

	concurrency := e.cfg.Messaging.Workers.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.wg = &sync.WaitGroup{}

	for i := 0; i < concurrency; i++ {
		workerID := i
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.consumeLoop(runCtx, workerID)
		}()
	}

	e.logger.Info("worker engine started",
		zap.Int("workers", concurrency),
		zap.String("topic", e.client.Topic()),
	)
	return nil
}

// Stop cancels the consumers and waits for in-flight messages.
func (e *Engine) Stop(ctx context.Context) error {
	if e.cancel == nil {
		return nil
	}
	e.cancel()
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		e.mu.Lock()
		clear(e.progress)
		e.mu.Unlock()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		e.logger.Info("worker engine stopped")
		return nil
	}
}

// Dispatch runs every handler registered for the message's event type.
// Messages without subscribers are acknowledged. When a redelivered message
// is dispatched again, handlers that succeeded on an earlier attempt are
// skipped.
func (e *Engine) Dispatch(ctx context.Context, msg messaging.Message) error {
	eventType := msg.EventType()
	routes := e.routes[eventType]
	if len(routes) == 0 {
		e.logger.Debug("no handler for event", zap.String("event_type", eventType), zap.String("topic", msg.Topic))
		e.count(ctx, eventType, "skipped")
		return nil
	}

	id := deliveryID(msg)
	var errs []error
	for _, r := range routes {
		if e.succeeded(id, r.name) {
			continue
		}
		if err := r.handler(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.name, err))
			continue
		}
		e.markSucceeded(id, r.name)
	}
	if err := errors.Join(errs...); err != nil {
		e.count(ctx, eventType, "failed")
		return err
	}
	e.forget(id)
	e.count(ctx, eventType, "ok")
	return nil
}

func deliveryID(msg messaging.Message) string {
	return fmt.Sprintf("%s/%d/%d/%s/%s", msg.Topic, msg.Partition, msg.Offset, msg.EventType(), msg.Key)
}

func (e *Engine) succeeded(id, handler string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progress[id][handler]
}

func (e *Engine) markSucceeded(id, handler string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	done, ok := e.progress[id]
	if !ok {
		done = make(map[string]bool)
		e.progress[id] = done
	}
	done[handler] = true
}

func (e *Engine) forget(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.progress, id)
}

func (e *Engine) count(ctx context.Context, eventType, outcome string) {
	if e.processed == nil {
		return
	}
	e.processed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("outcome", outcome),
	))
}

func (e *Engine) consumeLoop(ctx context.Context, workerID int) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		err := e.client.Consume(ctx, func(msgCtx context.Context, msg messaging.Message) error {
			e.logger.Debug("processing message",
				zap.String("event_type", msg.EventType()),
				zap.Int64("offset", msg.Offset),
				zap.Int("worker", workerID),
			)
			return e.Dispatch(msgCtx, msg)
		})

		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}

		e.logger.Error("consume loop error", zap.Error(err), zap.Duration("retry_in", backoff))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}

		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}
