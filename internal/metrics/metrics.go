// Package metrics exposes the server's Prometheus-format counters and gauges.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/VictoriaMetrics/metrics"
)

var (
	ClientsAdded      = metrics.NewCounter(`catalog_ws_clients_added_total`)
	ClientsRemoved    = metrics.NewCounter(`catalog_ws_clients_removed_total`)
	SendFailures      = metrics.NewCounter(`catalog_ws_send_failures_total`)
	HeartbeatFailures = metrics.NewCounter(`catalog_ws_heartbeat_failures_total`)
	RateLimited       = metrics.NewCounter(`catalog_ws_rate_limited_total`)

	PollerPublished = metrics.NewCounter(`catalog_poller_published_total`)
	PollerErrors    = metrics.NewCounter(`catalog_poller_errors_total`)

	RelayPublished = metrics.NewCounter(`catalog_relay_published_total`)
	RelayDelivered = metrics.NewCounter(`catalog_relay_delivered_total`)
)

// Request counts one dispatched request by action name.
func Request(action string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`catalog_requests_total{action=%q}`, action)).Inc()
}

// RequestError counts one failed request by error kind.
func RequestError(kind string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`catalog_request_errors_total{kind=%q}`, kind)).Inc()
}

// RegisterGauges publishes live client and channel counts. Call it once per
// process.
func RegisterGauges(clients, channels func() int) {
	metrics.NewGauge(`catalog_ws_clients`, func() float64 { return float64(clients()) })
	metrics.NewGauge(`catalog_ws_channels`, func() float64 { return float64(channels()) })
}

// Handler serves every registered metric in Prometheus text format.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		metrics.WritePrometheus(w, true)
	})
}
