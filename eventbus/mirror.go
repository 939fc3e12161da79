package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	cbus "github.com/next-trace/scg-event-rpc/contract/bus"
	berr "github.com/next-trace/scg-event-rpc/contract/errors"
)

// Export header names set by Mirror.
const (
	HeaderEventTag  = "x-event-tag"
	HeaderRequestID = "x-request-id"
	HeaderAPIKey    = "x-api-key"
)

// DefaultSubjectPrefix is prepended to the event key to form the export subject.
const DefaultSubjectPrefix = "events."

// DefaultExportTimeout bounds a single export inside a dispatch pass.
const DefaultExportTimeout = 2 * time.Second

type mirror struct {
	exp     cbus.EnvelopeExporter
	prefix  string
	strict  bool
	timeout time.Duration
	logger  *slog.Logger
}

// MirrorOption configures Mirror.
type MirrorOption func(*mirror)

// WithSubjectPrefix overrides DefaultSubjectPrefix.
func WithSubjectPrefix(p string) MirrorOption {
	return func(m *mirror) { m.prefix = p }
}

// StrictExport makes export failures fail the dispatch pass instead of being logged.
func StrictExport() MirrorOption {
	return func(m *mirror) { m.strict = true }
}

// WithExportTimeout overrides DefaultExportTimeout. Zero or negative disables the bound.
func WithExportTimeout(d time.Duration) MirrorOption {
	return func(m *mirror) { m.timeout = d }
}

// WithExportLogger sets the logger used for swallowed export failures.
func WithExportLogger(l *slog.Logger) MirrorOption {
	return func(m *mirror) { m.logger = l }
}

// Mirror subscribes a wildcard listener at MinPriority that hands every fired event to exp.
// Request and response envelopes are routed with their requestId as the export key.
func Mirror(b cbus.Bus, exp cbus.EnvelopeExporter, opts ...MirrorOption) cbus.Subscription { //nolint:ireturn
	m := &mirror{exp: exp, prefix: DefaultSubjectPrefix, timeout: DefaultExportTimeout}
	if bb, ok := b.(*Bus); ok {
		m.logger = bb.logger
	}

	for _, o := range opts {
		o(m)
	}

	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}

	return b.Subscribe([]cbus.EventKey{cbus.Wildcard}, m.handle, WithPriority(MinPriority))
}

func (m *mirror) handle(ctx context.Context, evt cbus.Event) error {
	if m.exp == nil {
		return nil
	}

	opts := exportOptions(m.prefix, evt)

	if m.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	if err := m.exp.Export(ctx, evt, opts); err != nil {
		if m.strict {
			return fmt.Errorf("export %s: %w", evt.Tag, errors.Join(berr.ErrExportFailed, err))
		}

		m.logger.WarnContext(ctx, "eventbus export failed", "key", evt.Tag, "subject", opts.Subject, "err", err)
	}

	return nil
}

func exportOptions(prefix string, evt cbus.Event) cbus.ExportOptions {
	h := map[string]string{HeaderEventTag: string(evt.Tag)}

	var hdr *cbus.Header

	switch v := evt.Data.(type) {
	case *cbus.RequestEnvelope:
		hdr = &v.Header
	case *cbus.ResponseEnvelope:
		hdr = &v.Header
	case cbus.RequestEnvelope:
		hdr = &v.Header
	case cbus.ResponseEnvelope:
		hdr = &v.Header
	}

	o := cbus.ExportOptions{Subject: prefix + string(evt.Tag), Headers: h}

	if hdr != nil {
		h[HeaderRequestID] = hdr.RequestID
		h[HeaderAPIKey] = string(hdr.APIKey)
		o.Key = hdr.RequestID
	}

	return o
}
