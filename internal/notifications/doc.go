// Package notifications relays channel notifications between server
// instances that share one catalog. A notify handled on one instance is
// delivered to its local subscribers directly and mirrored through a
// MessageBroker so every other instance can deliver it to its own.
package notifications
