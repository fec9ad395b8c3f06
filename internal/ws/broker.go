package ws

import (
	"fmt"
	"iter"
	"log"
	"maps"
	"slices"

	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/metrics"
	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/protocol"
)

// Subscribe adds c to channel. Subscribing twice is a no-op.
func (h *Hub) Subscribe(c *Client, channel string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.clients[c]
	if !ok {
		return ErrClientClosed
	}
	subs[channel] = struct{}{}

	members, ok := h.channels[channel]
	if !ok {
		members = make(map[*Client]struct{})
		h.channels[channel] = members
	}
	members[c] = struct{}{}
	return nil
}

// Unsubscribe removes c from channel, dropping the channel once it has no
// subscribers left.
func (h *Hub) Unsubscribe(c *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.clients[c]; ok {
		delete(subs, channel)
	}
	if members, ok := h.channels[channel]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.channels, channel)
		}
	}
}

// Publish sends msg to every subscriber of channel except exclude and returns
// the number of clients it was queued for. Subscribers whose queue is full
// are evicted.
func (h *Hub) Publish(channel string, msg any, exclude *Client) (int, error) {
	data, err := protocol.Encode(msg)
	if err != nil {
		return 0, fmt.Errorf("ws: encode publish on %s: %w", channel, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fanOutLocked(data, exclude, maps.Keys(h.channels[channel])), nil
}

// Broadcast sends msg to every registered client except exclude.
func (h *Hub) Broadcast(msg any, exclude *Client) (int, error) {
	data, err := protocol.Encode(msg)
	if err != nil {
		return 0, fmt.Errorf("ws: encode broadcast: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fanOutLocked(data, exclude, maps.Keys(h.clients)), nil
}

// fanOutLocked enqueues data for every recipient. Holding mu for the whole
// pass keeps per-subscriber delivery in issue order.
func (h *Hub) fanOutLocked(data []byte, exclude *Client, recipients iter.Seq[*Client]) int {
	var sent int
	var failed []*Client
	for c := range recipients {
		if c == exclude {
			continue
		}
		if c.enqueue(data) {
			sent++
			continue
		}
		failed = append(failed, c)
	}

	for _, c := range failed {
		metrics.SendFailures.Inc()
		log.Printf("ws: client %s send queue full, evicting", c.ID)
		h.removeLocked(c)
	}
	return sent
}

// SendTo queues msg for c alone. A full queue evicts c and returns
// ErrClientClosed.
func (h *Hub) SendTo(c *Client, msg any) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return fmt.Errorf("ws: encode reply: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return ErrClientClosed
	}
	if !c.enqueue(data) {
		metrics.SendFailures.Inc()
		log.Printf("ws: client %s send queue full, evicting", c.ID)
		h.removeLocked(c)
		return ErrClientClosed
	}
	return nil
}

// Subscribers returns a snapshot of the clients subscribed to channel.
func (h *Hub) Subscribers(channel string) []*Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]*Client, 0, len(h.channels[channel]))
	for c := range h.channels[channel] {
		out = append(out, c)
	}
	return out
}

// Channels returns the sorted channel names c is subscribed to.
func (h *Hub) Channels(c *Client) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]string, 0, len(h.clients[c]))
	for ch := range h.clients[c] {
		out = append(out, ch)
	}
	slices.Sort(out)
	return out
}
