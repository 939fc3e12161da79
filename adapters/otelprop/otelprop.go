// Package otelprop bridges bus.HeaderPropagator to OpenTelemetry text-map propagation,
// so exported envelopes carry the W3C trace context of the dispatch that produced them.
package otelprop

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	cbus "github.com/next-trace/scg-event-rpc/contract/bus"
)

// Propagator injects trace context into export headers.
type Propagator struct {
	tm propagation.TextMapPropagator
}

var _ cbus.HeaderPropagator = (*Propagator)(nil)

// New wraps tm. A nil tm defers to the global propagator at injection time.
func New(tm propagation.TextMapPropagator) *Propagator { return &Propagator{tm: tm} }

func (p *Propagator) Inject(ctx context.Context, headers map[string]string) {
	if headers == nil {
		return
	}

	tm := p.tm
	if tm == nil {
		tm = otel.GetTextMapPropagator()
	}

	tm.Inject(ctx, propagation.MapCarrier(headers))
}
