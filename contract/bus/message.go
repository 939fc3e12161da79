package bus

// APIKey names a callable API on the request/response protocol.
type APIKey string

// Header is the correlation header shared by request and response envelopes.
type Header struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	RequestID string `json:"requestId"`
	APIKey    APIKey `json:"apiKey"`
}

// RequestInfo identifies who asked and who was asked.
type RequestInfo struct {
	RequesterID string `json:"requesterId"`
	RemoteID    string `json:"remoteId"`
}

// ReplyInfo identifies who asked and who actually answered.
type ReplyInfo struct {
	RequesterID string `json:"requesterId"`
	ReplierID   string `json:"replierId"`
}

// RequestEnvelope is fired under RequestEvent.
// The JSON layout is the canonical wire shape and must not change.
type RequestEnvelope struct {
	Data     any         `json:"data"`
	Header   Header      `json:"header"`
	UserInfo RequestInfo `json:"userInfo"`
}

// ResponseEnvelope is fired under ResponseEvent.
// The JSON layout is the canonical wire shape and must not change.
type ResponseEnvelope struct {
	Data     any       `json:"data"`
	Header   Header    `json:"header"`
	UserInfo ReplyInfo `json:"userInfo"`
}
