package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	cbus "github.com/next-trace/scg-event-rpc/contract/bus"
	berr "github.com/next-trace/scg-event-rpc/contract/errors"
)

const subjectPrefix = "events."

// Client is a minimal NATS-like publisher interface decoupled from any concrete library.
// Users can provide a wrapper around their NATS connection to satisfy this.
type Client interface {
	// Publish publishes a message to a subject with optional headers.
	Publish(subject string, data []byte, headers map[string]string) error
}

// Adapter implements cbus.EnvelopeExporter using an injected NATS-like Client.
// The message body is the JSON of the event payload, so envelopes keep their wire shape.
type Adapter struct {
	Client     Client
	Propagator cbus.HeaderPropagator // optional, for context propagation into headers
}

// Ensure Adapter implements the export contract.
var _ cbus.EnvelopeExporter = (*Adapter)(nil)

// New creates a new NATS adapter instance with the provided client.
func New(c Client) *Adapter { return &Adapter{Client: c} }

func (a *Adapter) Export(ctx context.Context, evt cbus.Event, opts cbus.ExportOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if a.Client == nil {
		return fmt.Errorf("nats export: %w", berr.ErrExportFailed)
	}

	body, err := json.Marshal(evt.Data)
	if err != nil {
		return fmt.Errorf("nats export serialize: %w", errors.Join(berr.ErrSerializationFailed, err))
	}

	headers := exportHeaders(opts)
	if a.Propagator != nil {
		a.Propagator.Inject(ctx, headers)
	}

	if err := a.Client.Publish(subjectFor(evt, opts), body, headers); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		return fmt.Errorf("nats export publish: %w", errors.Join(berr.ErrExportFailed, err))
	}

	return nil
}

// helpers

func subjectFor(evt cbus.Event, o cbus.ExportOptions) string {
	if o.Subject != "" {
		return o.Subject
	}

	return subjectPrefix + string(evt.Tag)
}

func exportHeaders(o cbus.ExportOptions) map[string]string {
	h := make(map[string]string, len(o.Headers)+1)
	for k, v := range o.Headers {
		h[k] = v
	}

	if o.Key != "" {
		h["key"] = o.Key
	}

	return h
}
