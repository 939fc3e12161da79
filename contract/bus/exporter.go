package bus

import "context"

// EnvelopeExporter hands a fired event to something outside the bus (a broker, a recorder).
// Exporters observe traffic only; nothing feeds exported events back into a bus.
type EnvelopeExporter interface {
	Export(ctx context.Context, evt Event, opts ExportOptions) error
}

// ExporterFunc adapts a function to EnvelopeExporter.
type ExporterFunc func(ctx context.Context, evt Event, opts ExportOptions) error

// Export calls f.
func (f ExporterFunc) Export(ctx context.Context, evt Event, opts ExportOptions) error {
	return f(ctx, evt, opts)
}
