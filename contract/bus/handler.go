package bus

import "context"

// Handler handles one fired event. A non-nil error aborts the remaining dispatch pass
// and is returned to the caller of Fire.
type Handler func(ctx context.Context, evt Event) error

// ResponderFunc answers a request addressed to the responder's identity.
//
// Returning an error that matches ErrNoAnswer suppresses the response. Any other error
// propagates through the dispatch pass that delivered the request.
type ResponderFunc func(ctx context.Context, req *RequestEnvelope) (any, error)
