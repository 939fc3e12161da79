package rpc

import (
	"context"
	"fmt"

	cbus "github.com/next-trace/scg-event-rpc/contract/bus"
	berr "github.com/next-trace/scg-event-rpc/contract/errors"
)

// Rejection makes a responder answer with success=false and Message instead of data.
type Rejection struct {
	Message string
}

func (r *Rejection) Error() string { return "rejected: " + r.Message }

// Is matches errors.ErrRejected.
func (r *Rejection) Is(target error) bool { return target == berr.ErrRejected }

// Reject returns a Rejection carrying msg.
func Reject(msg string) error { return &Rejection{Message: msg} }

// CallAs is the typed form of Correlator.Call. A response with success=false becomes a
// *errors.CallError with code REJECTED; response data of another type fails with
// ErrHandlerTypeMismatch.
func CallAs[Req, Resp any](ctx context.Context, c *Correlator, api cbus.APIKey, params Req, opts ...CallOption) (Resp, error) {
	var zero Resp

	res, err := c.Call(ctx, api, params, opts...)
	if err != nil {
		return zero, err
	}

	if !res.Header.Success {
		return zero, &berr.CallError{Code: berr.ErrCodeRejected, Message: res.Header.Message}
	}

	if res.Data == nil {
		return zero, nil
	}

	r, ok := res.Data.(Resp)
	if !ok {
		return zero, fmt.Errorf("call %s: %T: %w", api, res.Data, berr.ErrHandlerTypeMismatch)
	}

	return r, nil
}

// RespondAs is the typed form of Correlator.Respond. A request carrying data of another type
// fails the dispatch pass with ErrHandlerTypeMismatch.
func RespondAs[Req, Resp any](c *Correlator, api cbus.APIKey, fn func(ctx context.Context, req Req) (Resp, error)) cbus.Subscription { //nolint:ireturn
	return c.Respond(api, func(ctx context.Context, req *cbus.RequestEnvelope) (any, error) {
		v, ok := req.Data.(Req)
		if !ok {
			return nil, fmt.Errorf("respond %s: %T: %w", api, req.Data, berr.ErrHandlerTypeMismatch)
		}

		return fn(ctx, v)
	})
}
