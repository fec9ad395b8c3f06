package notifications

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/metrics"
	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/protocol"
	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/ws"
)

// ChannelPublisher delivers a message to the local subscribers of a channel.
type ChannelPublisher interface {
	Publish(channel string, msg any, exclude *ws.Client) (int, error)
}

// Relay mirrors channel notifications between server instances. Local notify
// requests are published to the broker tagged with this instance's ID;
// events from other instances are delivered to the local subscribers.
type Relay struct {
	broker     MessageBroker
	local      ChannelPublisher
	instanceID string
}

// NewRelay creates a Relay. Call Start to begin receiving remote events.
func NewRelay(broker MessageBroker, local ChannelPublisher, instanceID string) *Relay {
	return &Relay{broker: broker, local: local, instanceID: instanceID}
}

// Start subscribes to the notification topic. Event handling runs
// asynchronously via the broker's subscription mechanism.
func (r *Relay) Start() error {
	if _, err := r.broker.Subscribe(TopicChannelNotifications, r.deliver); err != nil {
		return fmt.Errorf("notifications: subscribe %s: %w", TopicChannelNotifications, err)
	}
	log.Printf("notifications: relay subscribed to %s (instance=%s)", TopicChannelNotifications, r.instanceID)
	return nil
}

// Mirror publishes a notification that was already delivered locally so other
// instances can deliver it to their own subscribers.
func (r *Relay) Mirror(channel string, payload any) error {
	event, err := NewEvent(r.instanceID, channel, payload)
	if err != nil {
		return err
	}
	if err := r.broker.Publish(TopicChannelNotifications, event); err != nil {
		return fmt.Errorf("notifications: mirror %s: %w", channel, err)
	}
	metrics.RelayPublished.Inc()
	return nil
}

func (r *Relay) deliver(event Event) {
	if event.Origin == r.instanceID || event.Channel == "" {
		return
	}

	msg := protocol.Notification(event.Channel, json.RawMessage(event.Payload))
	n, err := r.local.Publish(event.Channel, msg, nil)
	if err != nil {
		log.Printf("notifications: deliver event %s on %s: %v", event.ID, event.Channel, err)
		return
	}
	metrics.RelayDelivered.Inc()
	if n > 0 {
		log.Printf("notifications: delivered remote event %s on %s to %d clients", event.ID, event.Channel, n)
	}
}
