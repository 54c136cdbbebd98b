/*
Package tracing records lightweight spans for message handling.

A span covers one dispatched message or one status request. The trace ID is
the message uuid when the dev server supplied one, so a REPL round trip can be
followed across client and server logs. Finished spans are logged by a
background collector at debug level.

# Usage

	tracer := tracing.New("dispatch", logger)
	defer tracer.Close()

	span, ctx := tracer.StartSpanWithTrace(ctx, "eval", tracing.TraceID(msg.UUID))
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()
	span.SetTag("op", msg.Op)

	router.Use(tracing.HTTPMiddleware(tracer))

# Headers

Status requests propagate X-Trace-ID and X-Span-ID.
*/
package tracing
