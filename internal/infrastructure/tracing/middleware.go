package tracing

import (
	"context"

	"github.com/devicepilot/agent/internal/transport"
)

// tracedDispatcher wraps a dispatcher so every inbound envelope becomes one
// span, with the correlation id as the trace id.
type tracedDispatcher struct {
	tracer *Tracer
	next   transport.Dispatcher
}

// WrapDispatcher traces envelope dispatch. A nil tracer returns next
// unchanged.
func WrapDispatcher(tracer *Tracer, next transport.Dispatcher) transport.Dispatcher {
	if tracer == nil {
		return next
	}
	return &tracedDispatcher{tracer: tracer, next: next}
}

func (d *tracedDispatcher) Dispatch(ctx context.Context, env *transport.Envelope, r *transport.Responder) {
	ctx = WithTraceID(ctx, env.CorrelationID)
	span, ctx := d.tracer.StartSpan(ctx, "dispatch")
	span.SetTag("message_type", string(env.Type))
	if name := env.Command(); name != "" {
		span.SetTag("command", name)
	}

	d.next.Dispatch(ctx, env, r)

	span.Finish()
	d.tracer.Submit(span)
}
