package bus

import "context"

// Bus is the minimal event bus contract the correlation layer builds on.
// The eventbus package provides the in-process implementation.
type Bus interface {
	Subscribe(keys []EventKey, h Handler, opts ...SubscribeOption) Subscription
	Unsubscribe(key EventKey, subs ...Subscription)
	Fire(ctx context.Context, key EventKey, data any) error
}

// Subscription is a handle to a registered listener.
// Unsubscribe detaches it from every key it was attached to and is idempotent.
type Subscription interface {
	Unsubscribe()
}
