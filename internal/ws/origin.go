package ws

import (
	"net/http"
	"strings"
)

// OriginChecker returns a CheckOrigin function for a gorilla/websocket
// Upgrader that accepts the given origins. An empty list or a "*" entry
// accepts every origin.
func OriginChecker(allowed []string) func(r *http.Request) bool {
	var origins []string
	for _, o := range allowed {
		o = strings.TrimSpace(o)
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		if o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return func(*http.Request) bool { return true }
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Same-origin request or non-browser client.
			return true
		}
		for _, o := range origins {
			if strings.EqualFold(origin, o) {
				return true
			}
		}
		return false
	}
}
