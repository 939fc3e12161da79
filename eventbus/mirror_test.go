package eventbus_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/next-trace/scg-event-rpc/adapters/inmemory"
	cbus "github.com/next-trace/scg-event-rpc/contract/bus"
	berr "github.com/next-trace/scg-event-rpc/contract/errors"
	"github.com/next-trace/scg-event-rpc/eventbus"
)

var errBroker = errors.New("broker down")

func TestMirror_ExportsAfterAllListeners(t *testing.T) {
	b := eventbus.New(nil)
	ex := inmemory.New()

	eventbus.Mirror(b, ex)

	seen := 0
	b.OnAny(func(context.Context, cbus.Event) error {
		// the tap runs at MinPriority, so nothing is exported yet
		seen = len(ex.Records())

		return nil
	})

	if err := b.Fire(t.Context(), "order.paid", 42); err != nil {
		t.Fatalf("fire: %v", err)
	}

	if seen != 0 {
		t.Fatalf("tap ran before other wildcard listeners")
	}

	recs := ex.Records()
	if len(recs) != 1 {
		t.Fatalf("records=%d", len(recs))
	}

	o := recs[0].Options
	if o.Subject != "events.order.paid" || o.Key != "" || o.Headers[eventbus.HeaderEventTag] != "order.paid" {
		t.Fatalf("options=%+v", o)
	}

	if recs[0].Event.Data != 42 {
		t.Fatalf("data=%v", recs[0].Event.Data)
	}
}

func TestMirror_EnvelopeHeaders(t *testing.T) {
	b := eventbus.New(nil)
	ex := inmemory.New()

	eventbus.Mirror(b, ex, eventbus.WithSubjectPrefix("rpc."))

	req := &cbus.RequestEnvelope{Header: cbus.Header{RequestID: "r-1", APIKey: "sum"}}
	if err := b.Fire(t.Context(), cbus.RequestEvent, req); err != nil {
		t.Fatalf("fire: %v", err)
	}

	res := cbus.ResponseEnvelope{Header: cbus.Header{RequestID: "r-1", APIKey: "sum", Success: true}}
	if err := b.Fire(t.Context(), cbus.ResponseEvent, res); err != nil {
		t.Fatalf("fire: %v", err)
	}

	recs := ex.Records()
	if len(recs) != 2 {
		t.Fatalf("records=%d", len(recs))
	}

	for i, want := range []string{"rpc.request", "rpc.response"} {
		o := recs[i].Options
		if o.Subject != want || o.Key != "r-1" {
			t.Fatalf("record %d options=%+v", i, o)
		}

		if o.Headers[eventbus.HeaderRequestID] != "r-1" || o.Headers[eventbus.HeaderAPIKey] != "sum" {
			t.Fatalf("record %d headers=%+v", i, o.Headers)
		}
	}
}

func TestMirror_FailureSwallowedByDefault(t *testing.T) {
	b := eventbus.New(nil)

	eventbus.Mirror(b, cbus.ExporterFunc(func(context.Context, cbus.Event, cbus.ExportOptions) error {
		return errBroker
	}))

	if err := b.Fire(t.Context(), "a", nil); err != nil {
		t.Fatalf("expected swallowed export error, got %v", err)
	}
}

func TestMirror_StrictExport(t *testing.T) {
	b := eventbus.New(nil)

	eventbus.Mirror(b, cbus.ExporterFunc(func(context.Context, cbus.Event, cbus.ExportOptions) error {
		return errBroker
	}), eventbus.StrictExport())

	err := b.Fire(t.Context(), "a", nil)
	if !errors.Is(err, berr.ErrExportFailed) || !errors.Is(err, errBroker) {
		t.Fatalf("expected export failure, got %v", err)
	}
}

func TestMirror_UnsubscribeStopsExport(t *testing.T) {
	b := eventbus.New(nil)
	ex := inmemory.New()

	sub := eventbus.Mirror(b, ex)
	sub.Unsubscribe()

	if err := b.Fire(t.Context(), "a", nil); err != nil {
		t.Fatalf("fire: %v", err)
	}

	if len(ex.Records()) != 0 {
		t.Fatalf("export after unsubscribe")
	}
}

func stalledExporter(ctx context.Context, _ cbus.Event, _ cbus.ExportOptions) error {
	<-ctx.Done()

	return ctx.Err()
}

func fireWithin(t *testing.T, b *eventbus.Bus, d time.Duration) error {
	t.Helper()

	done := make(chan error, 1)

	go func() { done <- b.Fire(context.Background(), "user.created", 1) }()

	select {
	case err := <-done:
		return err
	case <-time.After(d):
		t.Fatalf("fire still blocked after %s", d)

		return nil
	}
}

func TestMirror_ExportTimeoutBoundsFire(t *testing.T) {
	b := eventbus.New(nil)

	var after bool

	eventbus.Mirror(b, cbus.ExporterFunc(stalledExporter), eventbus.WithExportTimeout(20*time.Millisecond))
	b.OnAny(func(context.Context, cbus.Event) error {
		after = true

		return nil
	}, eventbus.WithPriority(eventbus.MinPriority))

	if err := fireWithin(t, b, time.Second); err != nil {
		t.Fatalf("expected swallowed timeout, got %v", err)
	}

	if !after {
		t.Fatalf("pass stopped at the stalled export")
	}
}

func TestMirror_ExportTimeoutStrict(t *testing.T) {
	b := eventbus.New(nil)

	eventbus.Mirror(b, cbus.ExporterFunc(stalledExporter),
		eventbus.WithExportTimeout(20*time.Millisecond), eventbus.StrictExport())

	err := fireWithin(t, b, time.Second)
	if !errors.Is(err, berr.ErrExportFailed) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected export deadline failure, got %v", err)
	}
}

func TestMirror_DefaultExportTimeout(t *testing.T) {
	b := eventbus.New(nil)

	var deadline time.Time

	eventbus.Mirror(b, cbus.ExporterFunc(func(ctx context.Context, _ cbus.Event, _ cbus.ExportOptions) error {
		deadline, _ = ctx.Deadline()

		return nil
	}))

	if err := b.Fire(context.Background(), "a", nil); err != nil {
		t.Fatalf("fire: %v", err)
	}

	if deadline.IsZero() || deadline.After(time.Now().Add(eventbus.DefaultExportTimeout)) {
		t.Fatalf("export ctx deadline=%v, want within %s", deadline, eventbus.DefaultExportTimeout)
	}
}
