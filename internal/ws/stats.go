package ws

import (
	"context"
	"log"
	"time"

	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/protocol"
)

// RunStats broadcasts the client and channel totals every interval until ctx
// is cancelled.
func (h *Hub) RunStats(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if _, err := h.Broadcast(h.stats(now), nil); err != nil {
				log.Printf("ws: stats broadcast failed: %v", err)
			}
		}
	}
}

// stats reads both totals under one lock. The client total shares the floor
// of Count.
func (h *Hub) stats(now time.Time) protocol.Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return protocol.NewStats(max(len(h.clients), 1), len(h.channels), now)
}

// AnnounceClients tells every client how many observers are connected.
func (h *Hub) AnnounceClients() {
	if _, err := h.Broadcast(protocol.NewClientsCount(h.Count(), time.Now()), nil); err != nil {
		log.Printf("ws: clients count broadcast failed: %v", err)
	}
}
