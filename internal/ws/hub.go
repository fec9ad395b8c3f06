package ws

import (
	"errors"
	"sync"
)

var (
	// ErrClientClosed is returned when a client is no longer registered or its
	// outbound queue could not take another frame.
	ErrClientClosed = errors.New("ws: client closed")

	// ErrHeartbeatTimeout is returned by a probe whose pong did not arrive in
	// time.
	ErrHeartbeatTimeout = errors.New("ws: heartbeat timeout")
)

// Hub owns the live client set and the channel memberships. The two indices
// are mutual inverses and are only touched while mu is held. It is safe for
// concurrent use.
type Hub struct {
	mu       sync.Mutex
	clients  map[*Client]map[string]struct{}
	channels map[string]map[*Client]struct{}
}

// NewHub allocates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		clients:  make(map[*Client]map[string]struct{}),
		channels: make(map[string]map[*Client]struct{}),
	}
}
