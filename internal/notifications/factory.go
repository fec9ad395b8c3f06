package notifications

import (
	"log"

	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/config"
)

// NewBroker creates a MessageBroker based on the application configuration.
// If KAFKA_BROKERS is set, it returns a KafkaBroker; otherwise it falls back
// to an InMemoryBroker, which only reaches the local instance.
//
// Every instance must see every notification, so without an explicit
// KAFKA_CONSUMER_GROUP each instance reads with its own group.
func NewBroker(cfg *config.Config, instanceID string) (MessageBroker, error) {
	if len(cfg.KafkaBrokers) > 0 {
		group := cfg.KafkaConsumerGroup
		if group == "" {
			group = defaultConsumerGroup + "-" + instanceID
		}
		log.Printf("notifications: using KafkaBroker with brokers=%v group=%s", cfg.KafkaBrokers, group)
		return NewKafkaBroker(KafkaConfig{
			Brokers:       cfg.KafkaBrokers,
			ConsumerGroup: group,
		})
	}

	log.Println("notifications: using InMemoryBroker (KAFKA_BROKERS not set)")
	return NewInMemoryBroker(), nil
}
