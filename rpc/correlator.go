package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	cbus "github.com/next-trace/scg-event-rpc/contract/bus"
	berr "github.com/next-trace/scg-event-rpc/contract/errors"
)

// DefaultTimeout bounds a call when neither the correlator nor the call sets one.
const DefaultTimeout = 5 * time.Second

// ErrNoAnswer is returned by a responder to send no response at all.
var ErrNoAnswer = berr.ErrNoAnswer

// Correlator issues calls and answers requests over a bus.
//
// The pending registry is keyed by requestId. An entry is removed exactly once, by the matching
// response or by the call's timeout/cancellation, and whoever removes it decides the outcome.
type Correlator struct {
	bus     cbus.Bus
	selfID  string
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[string]*pendingCall
	subs    []cbus.Subscription
	closed  bool
}

type pendingCall struct {
	requestID string
	target    string
	done      chan *cbus.ResponseEnvelope // buffered 1, written once by the remover
}

func (p *pendingCall) accepts(res *cbus.ResponseEnvelope, self string) bool {
	return res.Header.RequestID == p.requestID &&
		res.UserInfo.ReplierID == p.target &&
		res.UserInfo.RequesterID == self
}

// Option configures a Correlator.
type Option func(*Correlator)

// WithSelfID sets the correlator identity. Without it a random UUID is used.
func WithSelfID(id string) Option {
	return func(c *Correlator) { c.selfID = id }
}

// WithDefaultTimeout sets the timeout used by calls that do not pass WithTimeout.
func WithDefaultTimeout(d time.Duration) Option {
	return func(c *Correlator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l *slog.Logger) Option {
	return func(c *Correlator) { c.logger = l }
}

// New constructs a Correlator on b and installs its response listener.
func New(b cbus.Bus, opts ...Option) *Correlator {
	c := &Correlator{
		bus:     b,
		timeout: DefaultTimeout,
		pending: make(map[string]*pendingCall),
	}

	for _, o := range opts {
		o(c)
	}

	if c.selfID == "" {
		c.selfID = uuid.NewString()
	}

	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}

	c.subs = append(c.subs, b.Subscribe([]cbus.EventKey{cbus.ResponseEvent}, c.onResponse))

	return c
}

// SelfID returns the correlator identity.
func (c *Correlator) SelfID() string { return c.selfID }

// Pending reports the number of outstanding calls.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.pending)
}

type callOptions struct {
	target  string
	timeout time.Duration
}

// CallOption configures a single call.
type CallOption func(*callOptions)

// WithTarget addresses the call to another identity. Calls default to the caller itself.
func WithTarget(id string) CallOption {
	return func(o *callOptions) { o.target = id }
}

// WithTimeout bounds how long the call waits for its response.
func WithTimeout(d time.Duration) CallOption {
	return func(o *callOptions) { o.timeout = d }
}

// Call fires a request for api and waits for the matching response.
//
// The timeout clock starts before the request is fired, and the request is fired on its own
// goroutine so slow request listeners delay the call only if they delay the responder. A handler
// error from the request pass fails the call unless the response already arrived.
// On timeout Call returns a *errors.CallError with code TIMEOUT; on cancellation, ctx.Err().
func (c *Correlator) Call(ctx context.Context, api cbus.APIKey, params any, opts ...CallOption) (*cbus.ResponseEnvelope, error) {
	o := callOptions{target: c.selfID, timeout: c.timeout}
	for _, f := range opts {
		f(&o)
	}

	if o.timeout <= 0 {
		o.timeout = c.timeout
	}

	p := &pendingCall{
		requestID: uuid.NewString(),
		target:    o.target,
		done:      make(chan *cbus.ResponseEnvelope, 1),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("call %s: %w", api, berr.ErrClosed)
	}

	c.pending[p.requestID] = p
	c.mu.Unlock()

	req := &cbus.RequestEnvelope{
		Data: params,
		Header: cbus.Header{
			Success:   true,
			RequestID: p.requestID,
			APIKey:    api,
		},
		UserInfo: cbus.RequestInfo{
			RequesterID: c.selfID,
			RemoteID:    o.target,
		},
	}

	timer := time.NewTimer(o.timeout)
	defer timer.Stop()

	fired := make(chan error, 1)

	go func() { fired <- c.bus.Fire(ctx, cbus.RequestEvent, req) }()

	for {
		select {
		case res := <-p.done:
			return res, nil
		case err := <-fired:
			fired = nil

			if err == nil {
				continue
			}

			if c.settle(p.requestID) {
				return nil, fmt.Errorf("call %s: %w", api, err)
			}

			return <-p.done, nil
		case <-timer.C:
			if c.settle(p.requestID) {
				c.logger.DebugContext(ctx, "rpc call timed out", "api", api, "request_id", p.requestID, "target", o.target)

				return nil, &berr.CallError{
					Code:    berr.ErrCodeTimeout,
					Message: fmt.Sprintf("call %s to %s: no response within %s", api, o.target, o.timeout),
				}
			}

			return <-p.done, nil
		case <-ctx.Done():
			if c.settle(p.requestID) {
				return nil, ctx.Err()
			}

			return <-p.done, nil
		}
	}
}

// settle removes the pending entry and reports whether the caller removed it.
// A false result means a response won the race and is already on its way to done.
func (c *Correlator) settle(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.pending[id]; !ok {
		return false
	}

	delete(c.pending, id)

	return true
}

func (c *Correlator) onResponse(ctx context.Context, evt cbus.Event) error {
	res, ok := asResponse(evt.Data)
	if !ok {
		return nil
	}

	c.mu.Lock()
	p, ok := c.pending[res.Header.RequestID]
	if !ok || !p.accepts(res, c.selfID) {
		c.mu.Unlock()
		return nil
	}

	delete(c.pending, res.Header.RequestID)
	c.mu.Unlock()

	p.done <- res

	return nil
}

// Respond answers requests for api addressed to this correlator.
//
// The handler result is fired back as a successful response. ErrNoAnswer sends nothing and a
// Rejection sends a response with success=false; any other error propagates through the
// dispatch pass that delivered the request. After Close, Respond registers nothing.
func (c *Correlator) Respond(api cbus.APIKey, h cbus.ResponderFunc) cbus.Subscription { //nolint:ireturn
	c.mu.Lock()
	defer c.mu.Unlock()

	// a closed correlator never answers
	if c.closed {
		return nopSubscription{}
	}

	sub := c.bus.Subscribe([]cbus.EventKey{cbus.RequestEvent}, func(ctx context.Context, evt cbus.Event) error {
		req, ok := asRequest(evt.Data)
		if !ok || req.Header.APIKey != api || req.UserInfo.RemoteID != c.selfID {
			return nil
		}

		data, err := h(ctx, req)

		res := &cbus.ResponseEnvelope{
			Data: data,
			Header: cbus.Header{
				Success:   true,
				RequestID: req.Header.RequestID,
				APIKey:    req.Header.APIKey,
			},
			UserInfo: cbus.ReplyInfo{
				RequesterID: req.UserInfo.RequesterID,
				ReplierID:   c.selfID,
			},
		}

		if err != nil {
			if errors.Is(err, berr.ErrNoAnswer) {
				c.logger.DebugContext(ctx, "rpc responder sent no answer", "api", api, "request_id", req.Header.RequestID)
				return nil
			}

			var rej *Rejection
			if !errors.As(err, &rej) {
				return fmt.Errorf("respond %s: %w", api, err)
			}

			res.Data = nil
			res.Header.Success = false
			res.Header.Message = rej.Message
		}

		return c.bus.Fire(ctx, cbus.ResponseEvent, res)
	})

	c.subs = append(c.subs, sub)

	return sub
}

type nopSubscription struct{}

func (nopSubscription) Unsubscribe() {}

// Close detaches the response listener and every responder registered through c.
// Outstanding calls are left to time out; new calls fail with ErrClosed.
func (c *Correlator) Close() error {
	c.mu.Lock()
	c.closed = true
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}

	return nil
}

func asRequest(v any) (*cbus.RequestEnvelope, bool) {
	switch r := v.(type) {
	case *cbus.RequestEnvelope:
		return r, r != nil
	case cbus.RequestEnvelope:
		return &r, true
	default:
		return nil, false
	}
}

func asResponse(v any) (*cbus.ResponseEnvelope, bool) {
	switch r := v.(type) {
	case *cbus.ResponseEnvelope:
		return r, r != nil
	case cbus.ResponseEnvelope:
		return &r, true
	default:
		return nil, false
	}
}
