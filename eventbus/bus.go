package eventbus

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	cbus "github.com/next-trace/scg-event-rpc/contract/bus"
	berr "github.com/next-trace/scg-event-rpc/contract/errors"
)

// Bus is an in-process event bus.
//
// Listener slices are copy-on-write: every mutation installs a fresh slice, so Fire can
// capture the current slices under the read lock and dispatch from that snapshot while
// other goroutines subscribe or unsubscribe.
//
// Bus is concurrency-safe and contains no global state.
type Bus struct {
	mu sync.RWMutex

	byKey map[cbus.EventKey][]*listener
	wild  []*listener

	seq    uint64
	closed bool

	// middleware wraps every handler invocation, first registered runs first
	mw []Middleware

	logger *slog.Logger
}

var _ cbus.Bus = (*Bus)(nil)

type listener struct {
	seq      uint64
	handler  cbus.Handler
	once     bool
	priority int
	keys     []cbus.EventKey

	fired atomic.Bool
}

// subscription is the handle returned by Subscribe.
type subscription struct {
	bus *Bus
	l   *listener
}

func (s *subscription) Unsubscribe() {
	if s.bus == nil || s.l == nil {
		return
	}

	s.bus.detach(s.l)
}

// Option configures a Bus instance.
type Option func(*Bus)

// New constructs an empty Bus. A nil logger discards log output.
func New(logger *slog.Logger, opts ...Option) *Bus {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	b := &Bus{
		byKey:  make(map[cbus.EventKey][]*listener),
		logger: logger,
	}

	for _, o := range opts {
		o(b)
	}

	return b
}

// Subscribe registers h for every key in keys. Wildcard in keys registers h for all events
// and supersedes the other keys, so h runs once per fire. Duplicate and empty keys are ignored. The returned Subscription removes h from every key
// it was attached to.
func (b *Bus) Subscribe(keys []cbus.EventKey, h cbus.Handler, opts ...cbus.SubscribeOption) cbus.Subscription { //nolint:ireturn
	o := cbus.SubscribeOptions{Priority: DefaultPriority}
	for _, f := range opts {
		f(&o)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || h == nil {
		return &subscription{}
	}

	b.seq++
	l := &listener{
		seq:      b.seq,
		handler:  h,
		once:     o.Once,
		priority: o.Priority,
	}

	if slices.Contains(keys, cbus.Wildcard) {
		keys = []cbus.EventKey{cbus.Wildcard}
	}

	for _, k := range keys {
		if k == "" || slices.Contains(l.keys, k) {
			continue
		}

		l.keys = append(l.keys, k)

		if k == cbus.Wildcard {
			b.wild = inserted(b.wild, l)
		} else {
			b.byKey[k] = inserted(b.byKey[k], l)
		}
	}

	b.logger.Debug("eventbus subscribe", "keys", l.keys, "priority", l.priority, "once", l.once)

	return &subscription{bus: b, l: l}
}

// On registers h for a single key.
func (b *Bus) On(key cbus.EventKey, h cbus.Handler, opts ...cbus.SubscribeOption) cbus.Subscription { //nolint:ireturn
	return b.Subscribe([]cbus.EventKey{key}, h, opts...)
}

// OnAny registers h for every event. Wildcard listeners run after the key listeners.
func (b *Bus) OnAny(h cbus.Handler, opts ...cbus.SubscribeOption) cbus.Subscription { //nolint:ireturn
	return b.Subscribe([]cbus.EventKey{cbus.Wildcard}, h, opts...)
}

// Unsubscribe removes the given subscriptions from key only. With no subscriptions it removes
// every listener of key; Wildcard addresses the wildcard listeners.
func (b *Bus) Unsubscribe(key cbus.EventKey, subs ...cbus.Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(subs) == 0 {
		if key == cbus.Wildcard {
			b.wild = nil
		} else {
			delete(b.byKey, key)
		}

		b.logger.Debug("eventbus unsubscribe all", "key", key)

		return
	}

	for _, s := range subs {
		sub, ok := s.(*subscription)
		if !ok || sub.bus != b || sub.l == nil {
			continue
		}

		b.removeLocked(key, sub.l)
	}
}

// Fire dispatches data under key. Key listeners run first, then wildcard listeners, each group
// in priority order, one at a time in the caller's goroutine. The first handler error stops the
// pass and is returned. A cancelled ctx stops the pass before the next listener.
func (b *Bus) Fire(ctx context.Context, key cbus.EventKey, data any) error {
	if key == "" || key == cbus.Wildcard {
		return fmt.Errorf("fire %q: %w", key, berr.ErrInvalidEventKey)
	}

	b.mu.RLock()
	closed := b.closed
	keyed, wild := b.byKey[key], b.wild
	b.mu.RUnlock()

	if closed {
		return fmt.Errorf("fire %s: %w", key, berr.ErrClosed)
	}

	evt := cbus.Event{Tag: key, Data: data}

	if err := b.dispatch(ctx, evt, keyed); err != nil {
		return err
	}

	return b.dispatch(ctx, evt, wild)
}

func (b *Bus) dispatch(ctx context.Context, evt cbus.Event, ls []*listener) error {
	for _, l := range ls {
		if err := ctx.Err(); err != nil {
			return err
		}

		// one-shot listeners are claimed before the call so concurrent passes cannot both run them
		if l.once && !l.fired.CompareAndSwap(false, true) {
			continue
		}

		if err := b.invoke(ctx, l, evt); err != nil {
			b.logger.Debug("eventbus handler failed", "key", evt.Tag, "err", err)

			return fmt.Errorf("fire %s: %w", evt.Tag, err)
		}
	}

	return nil
}

// invoke runs one listener. A one-shot listener is detached even if its handler panics.
func (b *Bus) invoke(ctx context.Context, l *listener, evt cbus.Event) error {
	if l.once {
		defer b.detach(l)
	}

	return b.wrap(l.handler)(ctx, evt)
}

func (b *Bus) wrap(h cbus.Handler) cbus.Handler {
	for i := len(b.mw) - 1; i >= 0; i-- {
		h = b.mw[i](h)
	}

	return h
}

// Len reports how many listeners are registered for key (Wildcard counts wildcard listeners).
func (b *Bus) Len(key cbus.EventKey) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if key == cbus.Wildcard {
		return len(b.wild)
	}

	return len(b.byKey[key])
}

// Close removes every listener. Subsequent Fire calls return ErrClosed and Subscribe
// returns an inert subscription.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.byKey = make(map[cbus.EventKey][]*listener)
	b.wild = nil

	return nil
}

func (b *Bus) detach(l *listener) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, k := range l.keys {
		b.removeLocked(k, l)
	}
}

func (b *Bus) removeLocked(key cbus.EventKey, l *listener) {
	if key == cbus.Wildcard {
		b.wild = without(b.wild, l)
		return
	}

	next := without(b.byKey[key], l)
	if len(next) == 0 {
		delete(b.byKey, key)
		return
	}

	b.byKey[key] = next
}

// inserted returns a sorted copy of ls with l added.
func inserted(ls []*listener, l *listener) []*listener {
	next := make([]*listener, 0, len(ls)+1)
	next = append(next, ls...)
	next = append(next, l)

	slices.SortFunc(next, func(x, y *listener) int {
		if c := cmp.Compare(y.priority, x.priority); c != 0 {
			return c
		}

		return cmp.Compare(x.seq, y.seq)
	})

	return next
}

// without returns a copy of ls with l removed, or ls itself when l is absent.
func without(ls []*listener, l *listener) []*listener {
	i := slices.Index(ls, l)
	if i < 0 {
		return ls
	}

	return slices.Delete(slices.Clone(ls), i, i+1)
}
