// Package dispatch routes decoded protocol messages to handlers by op.
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/devbridge/internal/host"
	"github.com/GriffinCanCode/devbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/devbridge/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/devbridge/internal/protocol"
	"github.com/GriffinCanCode/devbridge/internal/reload"
	"github.com/GriffinCanCode/devbridge/internal/session"
)

// Built-in ops.
const (
	OpNaming   = "naming"
	OpPing     = "ping"
	OpEval     = "eval"
	OpMessages = "messages"
	OpReload   = "reload"
)

// Handler processes one message. The return value is informational; the
// fallback handler returns the unhandled op.
type Handler func(ctx context.Context, msg *protocol.Message) interface{}

// Responder sends a response body back through a message's reply channel.
type Responder interface {
	Respond(msg *protocol.Message, body interface{}) error
}

// Evaluator runs REPL code.
type Evaluator interface {
	Eval(ctx context.Context, code string) host.EvalResult
}

// Scheduler queues reload requests.
type Scheduler interface {
	Enqueue(req reload.Request, done func(reload.Outcome))
}

// Config wires a Dispatcher to its collaborators.
type Config struct {
	Session   *session.Store
	Evaluator Evaluator
	Queue     Scheduler
	Responder Responder
	Logger    *zap.Logger
	Metrics   *monitoring.Metrics
	Tracer    *tracing.Tracer
}

// Dispatcher maps ops to handlers. Unknown ops go to the fallback, which
// never fails.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	fallback Handler

	session   *session.Store
	evaluator Evaluator
	queue     Scheduler
	responder Responder
	logger    *zap.Logger
	metrics   *monitoring.Metrics
	tracer    *tracing.Tracer
}

// New creates a dispatcher with the built-in handlers registered.
func New(cfg Config) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = monitoring.NewMetrics()
	}
	if cfg.Session == nil {
		cfg.Session = session.NewStore(nil, cfg.Logger)
	}

	d := &Dispatcher{
		handlers:  make(map[string]Handler),
		session:   cfg.Session,
		evaluator: cfg.Evaluator,
		queue:     cfg.Queue,
		responder: cfg.Responder,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		tracer:    cfg.Tracer,
	}
	d.fallback = func(_ context.Context, msg *protocol.Message) interface{} {
		return msg.Op
	}

	d.Register(OpNaming, d.handleNaming)
	d.Register(OpPing, d.handlePing)
	d.Register(OpEval, d.handleEval)
	d.Register(OpMessages, d.handleMessages)
	d.Register(OpReload, d.handleReload)
	return d
}

// Register sets the handler for op, replacing any existing one.
func (d *Dispatcher) Register(op string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[op] = h
}

// SetFallback replaces the handler for unknown ops.
func (d *Dispatcher) SetFallback(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fallback = h
}

// SetResponder sets where replies go.
func (d *Dispatcher) SetResponder(r Responder) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.responder = r
}

// Dispatch runs the handler for msg synchronously. Handler panics are
// recovered and logged.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *protocol.Message) (result interface{}) {
	if msg == nil {
		return nil
	}

	d.mu.RLock()
	h, ok := d.handlers[msg.Op]
	if !ok {
		h = d.fallback
	}
	d.mu.RUnlock()

	d.metrics.RecordDispatch(msg.Op)
	d.logger.Debug("Dispatching message", zap.String("op", msg.Op), zap.String("uuid", msg.UUID))

	var span *tracing.Span
	if d.tracer != nil {
		span, ctx = d.tracer.StartSpanWithTrace(ctx, "dispatch", tracing.TraceID(msg.UUID))
		span.SetTag("op", msg.Op)
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Message handler panicked",
				zap.String("op", msg.Op),
				zap.Any("panic", r))
			if span != nil {
				span.SetError(fmt.Errorf("handler panic: %v", r))
			}
			result = nil
		}
		if span != nil {
			span.Finish()
			d.tracer.Submit(span)
		}
	}()
	return h(ctx, msg)
}

func (d *Dispatcher) respond(msg *protocol.Message, body interface{}) {
	d.mu.RLock()
	r := d.responder
	d.mu.RUnlock()
	if r == nil {
		return
	}
	if err := r.Respond(msg, body); err != nil {
		d.logger.Warn("Failed to send response",
			zap.String("op", msg.Op),
			zap.Error(err))
	}
}
