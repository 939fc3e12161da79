/*
Package rpc layers a call/response protocol on top of an event bus.

A Correlator fires RequestEnvelopes under bus.RequestEvent and resolves each outstanding call
from the ResponseEnvelope fired under bus.ResponseEvent that carries the same requestId and the
expected identities. Every call settles exactly once: with the matching response, or with a
TIMEOUT CallError.

	a := rpc.New(b, rpc.WithSelfID("A"))
	rpc.RespondAs(a, "Echo", func(ctx context.Context, in Ping) (Ping, error) { return in, nil })

	c := rpc.New(b, rpc.WithSelfID("B"))
	out, err := rpc.CallAs[Ping, Ping](ctx, c, "Echo", Ping{N: 1}, rpc.WithTarget("A"))
*/
package rpc
