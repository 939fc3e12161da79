package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	cbus "github.com/next-trace/scg-event-rpc/contract/bus"
	berr "github.com/next-trace/scg-event-rpc/contract/errors"
	"github.com/next-trace/scg-event-rpc/eventbus"
	"github.com/next-trace/scg-event-rpc/rpc"
)

func waitRecords(t *testing.T, n *Node, want int) {
	t.Helper()

	deadline := time.Now().Add(time.Second)
	for len(n.Exported.Records()) < want {
		if time.Now().After(deadline) {
			t.Fatalf("want %d records, got %d", want, len(n.Exported.Records()))
		}

		time.Sleep(time.Millisecond)
	}
}

func TestNewMemoryNode_BasicFlow(t *testing.T) {
	n, cleanup := New(nil, rpc.WithSelfID("node-1"))
	defer cleanup()

	ctx := context.Background()

	// Plain event through the bus
	hits := 0
	n.Bus.On("user.created", func(_ context.Context, evt cbus.Event) error {
		hits++

		return nil
	})

	if err := n.Bus.Fire(ctx, "user.created", "u-1"); err != nil {
		t.Fatalf("fire: %v", err)
	}

	if hits != 1 {
		t.Fatalf("expected hits=1 got %d", hits)
	}

	// Call / respond on the same node
	rpc.RespondAs(n.RPC, "echo", func(_ context.Context, s string) (string, error) {
		return s + "!", nil
	})

	got, err := rpc.CallAs[string, string](ctx, n.RPC, "echo", "hi", rpc.WithTimeout(time.Second))
	if err != nil {
		t.Fatalf("call: %v", err)
	}

	if got != "hi!" {
		t.Fatalf("unexpected result %q", got)
	}

	// user.created, request, response
	waitRecords(t, n, 3)

	byTag := map[cbus.EventKey]cbus.ExportOptions{}
	for _, r := range n.Exported.Records() {
		byTag[r.Event.Tag] = r.Options
	}

	if byTag["user.created"].Subject != eventbus.DefaultSubjectPrefix+"user.created" {
		t.Fatalf("subject=%q", byTag["user.created"].Subject)
	}

	req, res := byTag[cbus.RequestEvent], byTag[cbus.ResponseEvent]
	if req.Key == "" || req.Key != res.Key {
		t.Fatalf("request/response keys differ: %q vs %q", req.Key, res.Key)
	}

	if res.Headers[eventbus.HeaderAPIKey] != "echo" {
		t.Fatalf("headers=%+v", res.Headers)
	}
}

func TestNewMemoryNode_Cleanup(t *testing.T) {
	n, cleanup := New(nil)
	cleanup()

	if err := n.Bus.Fire(context.Background(), "x", nil); !errors.Is(err, berr.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}

	if _, err := n.RPC.Call(context.Background(), "echo", nil); !errors.Is(err, berr.ErrClosed) {
		t.Fatalf("expected ErrClosed from call, got %v", err)
	}
}
