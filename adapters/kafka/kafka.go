package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	cbus "github.com/next-trace/scg-event-rpc/contract/bus"
	berr "github.com/next-trace/scg-event-rpc/contract/errors"
)

const topicPrefix = "events."

// Writer is a minimal Kafka-like writer interface.
// Users can adapt segmentio/kafka-go or any other client to this.
type Writer interface {
	Write(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// Adapter implements cbus.EnvelopeExporter using an injected Writer.
// Records are keyed by ExportOptions.Key, which Mirror sets to the requestId, so a request
// and its response land on the same partition.
type Adapter struct {
	Writer     Writer
	Propagator cbus.HeaderPropagator // optional
}

var _ cbus.EnvelopeExporter = (*Adapter)(nil)

// New creates a new Kafka adapter instance with the provided writer.
func New(w Writer) *Adapter { return &Adapter{Writer: w} }

func (a *Adapter) Export(ctx context.Context, evt cbus.Event, opts cbus.ExportOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if a.Writer == nil {
		return fmt.Errorf("kafka export: %w", berr.ErrExportFailed)
	}

	val, err := json.Marshal(evt.Data)
	if err != nil {
		return fmt.Errorf("kafka export serialize: %w", errors.Join(berr.ErrSerializationFailed, err))
	}

	headers := exportHeaders(opts)
	if a.Propagator != nil {
		a.Propagator.Inject(ctx, headers)
	}

	var key []byte
	if opts.Key != "" {
		key = []byte(opts.Key)
	}

	if err = a.Writer.Write(ctx, topicFor(evt, opts), key, val, headers); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		return fmt.Errorf("kafka export write: %w", errors.Join(berr.ErrExportFailed, err))
	}

	return nil
}

// helpers (duplicated for simplicity and test isolation)

func topicFor(evt cbus.Event, o cbus.ExportOptions) string {
	if o.Subject != "" {
		return o.Subject
	}

	return topicPrefix + string(evt.Tag)
}

func exportHeaders(o cbus.ExportOptions) map[string]string {
	h := make(map[string]string, len(o.Headers))
	for k, v := range o.Headers {
		h[k] = v
	}

	return h
}
