package ws

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// HandlerConfig tunes the upgrade endpoint.
type HandlerConfig struct {
	AllowedOrigins    []string
	MessagesPerSecond float64
}

// Handler upgrades HTTP connections to WebSocket and runs the client's
// pumps for the lifetime of the connection.
type Handler struct {
	hub        *Hub
	dispatcher Dispatcher
	upgrader   websocket.Upgrader
	msgRate    float64
}

func NewHandler(hub *Hub, d Dispatcher, cfg HandlerConfig) *Handler {
	return &Handler{
		hub:        hub,
		dispatcher: d,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     OriginChecker(cfg.AllowedOrigins),
		},
		msgRate: cfg.MessagesPerSecond,
	}
}

// RegisterRoutes wires the WebSocket endpoint on /ws, and on / for clients
// that connect to the bare host.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/ws", h.ServeWS).Methods(http.MethodGet)
	r.HandleFunc("/", h.ServeWS).Methods(http.MethodGet).HeadersRegexp("Upgrade", "(?i)^websocket$")
}

// ServeWS upgrades the request and blocks until the connection ends.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader already wrote the error response.
		log.Printf("ws: upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}

	client := NewClient(conn, r.RemoteAddr, h.msgRate)
	h.hub.Add(client)
	h.hub.AnnounceClients()

	go client.WritePump()
	client.ReadPump(r.Context(), h.hub, h.dispatcher)

	h.hub.AnnounceClients()
}
