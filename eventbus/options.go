package eventbus

import (
	"context"
	"fmt"
	"math"

	cbus "github.com/next-trace/scg-event-rpc/contract/bus"
	berr "github.com/next-trace/scg-event-rpc/contract/errors"
)

// Priority bounds. Listeners without WithPriority get DefaultPriority.
const (
	MinPriority     = math.MinInt32
	DefaultPriority = 0
	MaxPriority     = math.MaxInt32
)

// Once removes the listener right after its first invocation.
func Once() cbus.SubscribeOption {
	return func(o *cbus.SubscribeOptions) { o.Once = true }
}

// WithPriority sets the listener priority. Higher runs first.
func WithPriority(p int) cbus.SubscribeOption {
	return func(o *cbus.SubscribeOptions) { o.Priority = p }
}

// Middleware wraps handler invocation. Middlewares are executed in registration order.
type Middleware func(next cbus.Handler) cbus.Handler

// WithMiddleware registers global handler middleware via an option.
func WithMiddleware(mw ...Middleware) Option {
	return func(b *Bus) { b.mw = append(b.mw, mw...) }
}

// Listen registers a handler for key whose payload is asserted to T.
// A payload of another type fails the dispatch pass with ErrHandlerTypeMismatch.
func Listen[T any](b cbus.Bus, key cbus.EventKey, fn func(ctx context.Context, v T) error, opts ...cbus.SubscribeOption) cbus.Subscription { //nolint:ireturn
	return b.Subscribe([]cbus.EventKey{key}, func(ctx context.Context, evt cbus.Event) error {
		v, ok := evt.Data.(T)
		if !ok {
			return fmt.Errorf("listen %s: %T: %w", evt.Tag, evt.Data, berr.ErrHandlerTypeMismatch)
		}

		return fn(ctx, v)
	}, opts...)
}
