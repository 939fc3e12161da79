package inmemory

import (
	"context"
	"sync"

	cbus "github.com/next-trace/scg-event-rpc/contract/bus"
)

// Record is one exported event with the options it was exported under.
type Record struct {
	Event   cbus.Event
	Options cbus.ExportOptions
}

// Exporter is a thread-safe in-memory implementation of cbus.EnvelopeExporter.
// It records exported events for testing and examples.
type Exporter struct {
	mu      sync.Mutex
	records []Record
}

// Ensure Exporter implements the export contract.
var _ cbus.EnvelopeExporter = (*Exporter)(nil)

// New creates a new in-memory exporter instance.
func New() *Exporter { return &Exporter{} }

func (e *Exporter) Export(ctx context.Context, evt cbus.Event, opts cbus.ExportOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	e.records = append(e.records, Record{Event: evt, Options: opts})
	e.mu.Unlock()

	return nil
}

// Records returns a copy of everything exported so far.
func (e *Exporter) Records() []Record {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]Record(nil), e.records...)
}

// Tags returns the event keys of the exported events in export order.
func (e *Exporter) Tags() []cbus.EventKey {
	e.mu.Lock()
	defer e.mu.Unlock()

	tags := make([]cbus.EventKey, 0, len(e.records))
	for _, r := range e.records {
		tags = append(tags, r.Event.Tag)
	}

	return tags
}

// Reset drops all records.
func (e *Exporter) Reset() {
	e.mu.Lock()
	e.records = nil
	e.mu.Unlock()
}
