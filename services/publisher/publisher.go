package publisher

// AlertKey is the stream field that carries base64 JSON alerts
const AlertKey = "b64_console_deals"

// Publisher represents a service for publishing alerts
type Publisher interface {
	// Publish publishes a message to a stream under key
	Publish(key string, message []byte) error

	// TrimStreams trims all streams to the configured maximum length
	TrimStreams() error

	// Close closes the publisher connection
	Close() error
}
