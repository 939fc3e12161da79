package bus

// SubscribeOptions controls how a listener is stored and invoked.
// Higher Priority runs first; ties run in subscription order.
type SubscribeOptions struct {
	Once     bool
	Priority int
}

// SubscribeOption mutates SubscribeOptions.
type SubscribeOption func(*SubscribeOptions)

// ExportOptions controls how an exporter routes one event.
// Subject is the broker subject/topic/routing key; Key is a partition or dedup key.
type ExportOptions struct {
	Subject string
	Key     string
	Headers map[string]string
}
