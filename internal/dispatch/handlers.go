package dispatch

import (
	"context"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/devbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/devbridge/internal/protocol"
	"github.com/GriffinCanCode/devbridge/internal/reload"
	"github.com/GriffinCanCode/devbridge/internal/session"
)

func (d *Dispatcher) handleNaming(_ context.Context, msg *protocol.Message) interface{} {
	var patch session.Patch
	if id, ok := msg.String(protocol.KeySessionID); ok {
		patch.ID = &id
	}
	if name, ok := msg.String(protocol.KeySessionName); ok {
		patch.Name = &name
	}

	current := d.session.Apply(patch)
	d.logger.Info("Session identified",
		zap.String("session_id", current.ID),
		zap.String("session_name", current.Name))
	return current
}

func (d *Dispatcher) handlePing(_ context.Context, msg *protocol.Message) interface{} {
	pong := protocol.Pong{Pong: true}
	d.respond(msg, pong)
	return pong
}

func (d *Dispatcher) handleEval(ctx context.Context, msg *protocol.Message) interface{} {
	if d.evaluator == nil {
		d.logger.Warn("Eval requested but no evaluator is configured")
		return nil
	}

	code, _ := msg.String(protocol.KeyCode)
	timer := monitoring.NewTimer()
	result := d.evaluator.Eval(ctx, code)
	d.metrics.RecordEval(result.Status, timer.Elapsed())
	d.respond(msg, result)
	return result
}

func (d *Dispatcher) handleMessages(ctx context.Context, msg *protocol.Message) interface{} {
	httpURL, hasURL := msg.String(protocol.KeyHTTPURL)

	subs := msg.Messages()
	for _, payload := range subs {
		if hasURL {
			payload[protocol.KeyHTTPURL] = httpURL
		}
		sub := protocol.FromMap(payload)
		if sub.Reply.IsZero() {
			sub.Reply = msg.Reply
		}
		d.Dispatch(ctx, sub)
	}
	return len(subs)
}

func (d *Dispatcher) handleReload(_ context.Context, msg *protocol.Message) interface{} {
	if d.queue == nil {
		d.logger.Warn("Reload requested but no reload queue is configured")
		return nil
	}

	req := reload.Request{}
	req.RequestURL, _ = msg.String(protocol.KeyRequestURL)
	req.SourceText, _ = msg.String(protocol.KeySourceText)

	d.queue.Enqueue(req, func(o reload.Outcome) {
		d.respond(msg, protocol.ReloadReply{
			RequestURL: o.RequestURL,
			LoadedFile: o.Loaded,
		})
	})
	return req
}
