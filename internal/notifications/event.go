package notifications

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TopicChannelNotifications carries notify payloads published on any
// instance.
const TopicChannelNotifications = "catalog.notifications"

// Event is one channel notification travelling between instances.
type Event struct {
	ID        string          `json:"id"`
	Origin    string          `json:"origin"`
	Channel   string          `json:"channel"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent creates an Event with a generated UUID and the current timestamp.
func NewEvent(origin, channel string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal payload: %w", err)
	}
	return Event{
		ID:        uuid.New().String(),
		Origin:    origin,
		Channel:   channel,
		Payload:   raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// EventHandler is a callback invoked when a subscribed event is received.
type EventHandler func(event Event)
