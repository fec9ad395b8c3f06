package ws

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/metrics"
)

// RunHeartbeat probes every client each interval and evicts the ones that do
// not answer within timeout. It returns when ctx is cancelled.
func (h *Hub) RunHeartbeat(ctx context.Context, interval, timeout time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			h.Sweep(ctx, timeout)
		}
	}
}

// Sweep probes a snapshot of the clients concurrently. Every client that
// fails is closed and removed before Sweep returns. It reports how many were
// evicted.
func (h *Hub) Sweep(ctx context.Context, timeout time.Duration) int {
	clients := h.List()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		evicted int
	)
	for _, c := range clients {
		wg.Add(1)
		go func() {
			defer wg.Done()

			err := c.probe(ctx, timeout)
			if err == nil || ctx.Err() != nil {
				return
			}

			metrics.HeartbeatFailures.Inc()
			log.Printf("ws: client %s failed heartbeat: %v", c.ID, err)
			c.Close()
			if h.Remove(c) {
				mu.Lock()
				evicted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	return evicted
}
