package memory

import (
	"log/slog"

	"github.com/next-trace/scg-event-rpc/adapters/inmemory"
	"github.com/next-trace/scg-event-rpc/eventbus"
	"github.com/next-trace/scg-event-rpc/rpc"
)

// Node is a single-process stack: a bus, a correlator attached to it and an
// in-memory export tap recording every fired event.
type Node struct {
	Bus      *eventbus.Bus
	RPC      *rpc.Correlator
	Exported *inmemory.Exporter
}

// New constructs a Node and a cleanup that detaches the tap, closes the
// correlator and then the bus. A nil logger discards log output.
func New(logger *slog.Logger, opts ...rpc.Option) (*Node, func()) {
	b := eventbus.New(logger)
	ex := inmemory.New()
	tap := eventbus.Mirror(b, ex)

	c := rpc.New(b, append([]rpc.Option{rpc.WithLogger(logger)}, opts...)...)

	cleanup := func() {
		tap.Unsubscribe()
		_ = c.Close()
		_ = b.Close()
	}

	return &Node{Bus: b, RPC: c, Exported: ex}, cleanup
}
