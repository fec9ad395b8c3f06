package notifications

// MessageBroker carries relay events between server instances.
// Implementations include InMemoryBroker (single instance) and KafkaBroker
// (several instances sharing one catalog).
type MessageBroker interface {
	// Publish sends an event to the given topic. Subscribers registered for
	// that topic will receive the event asynchronously.
	Publish(topic string, event Event) error

	// Subscribe registers a handler that will be called for every event
	// published to the given topic. Returns a subscription ID.
	Subscribe(topic string, handler EventHandler) (string, error)

	// Close shuts down the broker. After Close returns, Publish and
	// Subscribe fail.
	Close() error
}
