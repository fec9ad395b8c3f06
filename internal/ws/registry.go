package ws

import (
	"log"

	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/metrics"
)

// Add registers c with no channel memberships.
func (h *Hub) Add(c *Client) {
	h.mu.Lock()
	h.clients[c] = make(map[string]struct{})
	h.mu.Unlock()

	metrics.ClientsAdded.Inc()
	log.Printf("ws: client %s registered (addr=%s)", c.ID, c.RemoteAddr)
}

// Remove evicts c from the client set and from every channel it belonged to,
// then closes its outbound queue. Removing an unknown client is a no-op.
func (h *Hub) Remove(c *Client) bool {
	h.mu.Lock()
	removed := h.removeLocked(c)
	h.mu.Unlock()

	if removed {
		log.Printf("ws: client %s unregistered", c.ID)
	}
	return removed
}

func (h *Hub) removeLocked(c *Client) bool {
	subs, ok := h.clients[c]
	if !ok {
		return false
	}
	for ch := range subs {
		members := h.channels[ch]
		delete(members, c)
		if len(members) == 0 {
			delete(h.channels, ch)
		}
	}
	delete(h.clients, c)
	close(c.send)

	metrics.ClientsRemoved.Inc()
	return true
}

// List returns a snapshot of the registered clients. Entries may be removed
// by the time the caller uses them.
func (h *Hub) List() []*Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

// Count returns the number of registered clients, never less than one. Use
// Len for the raw count.
func (h *Hub) Count() int {
	return max(h.Len(), 1)
}

// Len returns the number of registered clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ChannelCount returns the number of channels with at least one subscriber.
func (h *Hub) ChannelCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.channels)
}

// CloseAll evicts every client and closes its connection. Used on shutdown.
func (h *Hub) CloseAll() {
	for _, c := range h.List() {
		h.Remove(c)
		c.Close()
	}
}
