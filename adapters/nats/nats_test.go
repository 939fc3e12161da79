package nats_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/next-trace/scg-event-rpc/adapters/nats"
	cbus "github.com/next-trace/scg-event-rpc/contract/bus"
	berr "github.com/next-trace/scg-event-rpc/contract/errors"
)

type fakeClient struct {
	calls []struct {
		subject string
		data    []byte
		headers map[string]string
	}
	err error
}

func (f *fakeClient) Publish(subject string, data []byte, headers map[string]string) error {
	f.calls = append(f.calls, struct {
		subject string
		data    []byte
		headers map[string]string
	}{subject, data, headers})

	return f.err
}

type stampPropagator struct{}

func (stampPropagator) Inject(_ context.Context, h map[string]string) { h["traceparent"] = "00-abc" }

func TestNATS_Export_EnvelopeWireShape(t *testing.T) {
	fc := &fakeClient{}
	ad := nats.New(fc)
	ad.Propagator = stampPropagator{}

	env := &cbus.RequestEnvelope{
		Data:     map[string]int{"n": 1},
		Header:   cbus.Header{Success: true, RequestID: "r-1", APIKey: "Echo"},
		UserInfo: cbus.RequestInfo{RequesterID: "B", RemoteID: "A"},
	}

	opts := cbus.ExportOptions{Subject: "events.request", Key: "r-1", Headers: map[string]string{"x-event-tag": "request"}}
	if err := ad.Export(t.Context(), cbus.Event{Tag: cbus.RequestEvent, Data: env}, opts); err != nil {
		t.Fatalf("export: %v", err)
	}

	if len(fc.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(fc.calls))
	}

	c := fc.calls[0]
	if c.subject != "events.request" {
		t.Fatalf("subject mismatch: %s", c.subject)
	}

	if c.headers["key"] != "r-1" || c.headers["x-event-tag"] != "request" || c.headers["traceparent"] != "00-abc" {
		t.Fatalf("headers missing or wrong: %+v", c.headers)
	}

	var wire map[string]map[string]any
	if err := json.Unmarshal(c.data, &wire); err != nil {
		t.Fatalf("body not json: %v", err)
	}

	if wire["header"]["requestId"] != "r-1" || wire["header"]["apiKey"] != "Echo" {
		t.Fatalf("header wire shape: %v", wire["header"])
	}

	if wire["userInfo"]["requesterId"] != "B" || wire["userInfo"]["remoteId"] != "A" {
		t.Fatalf("userInfo wire shape: %v", wire["userInfo"])
	}

	// caller headers must not be mutated
	if _, ok := opts.Headers["key"]; ok {
		t.Fatalf("caller headers mutated")
	}
}

func TestNATS_Export_DefaultSubject(t *testing.T) {
	fc := &fakeClient{}
	ad := nats.New(fc)

	if err := ad.Export(t.Context(), cbus.Event{Tag: "user.created", Data: 1}, cbus.ExportOptions{}); err != nil {
		t.Fatalf("export: %v", err)
	}

	if fc.calls[0].subject != "events.user.created" {
		t.Fatalf("subject=%v", fc.calls[0].subject)
	}
}

func TestNATS_NilClientError(t *testing.T) {
	ad := nats.New(nil)

	err := ad.Export(t.Context(), cbus.Event{Tag: "a"}, cbus.ExportOptions{})
	if !errors.Is(err, berr.ErrExportFailed) {
		t.Fatalf("expected ErrExportFailed for nil client, got %v", err)
	}
}

func TestNATS_SerializationError(t *testing.T) {
	ad := nats.New(&fakeClient{})

	err := ad.Export(t.Context(), cbus.Event{Tag: "a", Data: make(chan int)}, cbus.ExportOptions{})
	if !errors.Is(err, berr.ErrSerializationFailed) {
		t.Fatalf("want ErrSerializationFailed, got %v", err)
	}
}

func TestNATS_Publish_ErrorWrapping_And_ContextCancel(t *testing.T) {
	// client returns generic error -> should wrap
	fc := &fakeClient{err: errors.New("boom")}
	ad := nats.New(fc)

	if err := ad.Export(t.Context(), cbus.Event{Tag: "a"}, cbus.ExportOptions{}); !errors.Is(err, berr.ErrExportFailed) {
		t.Fatalf("expected wrapped error, got %v", err)
	}

	// client returns context.Canceled -> propagate as-is
	fc2 := &fakeClient{err: context.Canceled}
	ad2 := nats.New(fc2)

	err := ad2.Export(t.Context(), cbus.Event{Tag: "a"}, cbus.ExportOptions{})
	if !errors.Is(err, context.Canceled) || errors.Is(err, berr.ErrExportFailed) {
		t.Fatalf("want bare context.Canceled, got %v", err)
	}
}
