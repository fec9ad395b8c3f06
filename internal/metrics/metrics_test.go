package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandler_ExposesCounters(t *testing.T) {
	ClientsAdded.Inc()
	Request("ping")
	RequestError("decode")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		"catalog_ws_clients_added_total",
		`catalog_requests_total{action="ping"}`,
		`catalog_request_errors_total{kind="decode"}`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %s in metrics output", want)
		}
	}
}
