package errors

// Error codes for the bus contracts. Keep stable; used across adapters, bus, and rpc.
const (
	ErrCodeTimeout             = "TIMEOUT"
	ErrCodeRejected            = "REJECTED"
	ErrCodeNoAnswer            = "eventbus.no_answer"
	ErrCodeInvalidEventKey     = "eventbus.invalid_event_key"
	ErrCodeClosed              = "eventbus.closed"
	ErrCodeHandlerTypeMismatch = "eventbus.handler_type_mismatch"
	ErrCodeExportFailed        = "eventbus.export_failed"
	ErrCodeSerializationFailed = "eventbus.serialization_failed"
	ErrCodeInvalidConfig       = "eventbus.invalid_config"
)

// Code returns an error value that carries only a code string.
// It implements error by returning the code string in Error().
func Code(code string) error { return codedError(code) }

type codedError string

func (e codedError) Error() string { return string(e) }

var (
	ErrTimeout             = Code(ErrCodeTimeout)
	ErrRejected            = Code(ErrCodeRejected)
	ErrNoAnswer            = Code(ErrCodeNoAnswer)
	ErrInvalidEventKey     = Code(ErrCodeInvalidEventKey)
	ErrClosed              = Code(ErrCodeClosed)
	ErrHandlerTypeMismatch = Code(ErrCodeHandlerTypeMismatch)
	ErrExportFailed        = Code(ErrCodeExportFailed)
	ErrSerializationFailed = Code(ErrCodeSerializationFailed)
	ErrInvalidConfig       = Code(ErrCodeInvalidConfig)
)

// CallError is the structured failure of a call: a stable code plus a human-readable message.
// It matches the sentinel of the same code through errors.Is.
type CallError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *CallError) Error() string {
	if e.Message == "" {
		return e.Code
	}

	return e.Code + ": " + e.Message
}

// Is reports whether target is the coded sentinel for e.Code.
func (e *CallError) Is(target error) bool {
	c, ok := target.(codedError)

	return ok && string(c) == e.Code
}
