package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/docs"
	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/catalog"
	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/config"
	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/httputil"
	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/metrics"
	mw "github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/middleware"
	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/protocol"
	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/ws"
)

// newRouter builds the HTTP surface. CORS wraps the entire router so OPTIONS
// preflight requests are answered before mux routing.
func newRouter(ctx context.Context, cfg *config.Config, hub *ws.Hub, store catalog.Store, d ws.Dispatcher) http.Handler {
	r := mux.NewRouter()

	r.Use(mw.RateLimitMiddleware(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst))

	r.HandleFunc("/healthz", healthzHandler).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	// API documentation
	docs.RegisterRoutes(r)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/stats", statsHandler(hub)).Methods(http.MethodGet)
	api.HandleFunc("/products", productsHandler(store, cfg.RequestTimeout)).Methods(http.MethodGet)

	ws.NewHandler(hub, d, ws.HandlerConfig{
		AllowedOrigins:    cfg.AllowedOrigins,
		MessagesPerSecond: cfg.ClientMessagesPerSecond,
	}).RegisterRoutes(r)

	return corsMiddleware(cfg.AllowedOrigins, r)
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func statsHandler(hub *ws.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]int{
			"clients":  hub.Len(),
			"channels": hub.ChannelCount(),
		})
	}
}

func productsHandler(store catalog.Store, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		records, err := store.QueryAll(ctx)
		if err != nil {
			httputil.WriteError(w, http.StatusServiceUnavailable, "failed to load products")
			return
		}
		httputil.WriteJSON(w, http.StatusOK, protocol.JSONCompatible(records))
	}
}

// corsMiddleware answers for the configured origins. An empty list or "*"
// reflects any origin.
func corsMiddleware(allowed []string, next http.Handler) http.Handler {
	origins := make(map[string]bool)
	for _, o := range allowed {
		origins[strings.ToLower(strings.TrimSpace(o))] = true
	}
	anyOrigin := len(origins) == 0 || origins["*"]

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (anyOrigin || origins[strings.ToLower(origin)]) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
