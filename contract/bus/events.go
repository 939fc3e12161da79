package bus

// EventKey is an opaque tag identifying a class of event.
type EventKey string

// Reserved event keys. RequestEvent and ResponseEvent carry the call/response
// protocol; Wildcard selects every event on Subscribe and Unsubscribe.
const (
	RequestEvent  EventKey = "request"
	ResponseEvent EventKey = "response"
	Wildcard      EventKey = "*"
)

// Event is what a handler receives: the fired payload tagged with the key it was fired under.
// Wildcard handlers switch on Tag to recover the payload type.
type Event struct {
	Tag  EventKey `json:"eventTag"`
	Data any      `json:"data"`
}
