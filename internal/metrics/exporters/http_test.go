package exporters

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/smazurov/uvcctl/internal/metrics"
)

func scrape(t *testing.T, accept string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	return rec
}

func TestHandlerServesCaptureGauges(t *testing.T) {
	metrics.SetCaptureFPS(25)
	defer metrics.ResetCaptureStats()

	body := scrape(t, "").Body.String()
	for _, want := range []string{"uvcctl_capture_fps 25", "promhttp_metric_handler_requests_total"} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape missing %q", want)
		}
	}
}

func TestHandlerNegotiatesOpenMetrics(t *testing.T) {
	rec := scrape(t, "application/openmetrics-text; version=1.0.0")
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/openmetrics-text") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.HasSuffix(strings.TrimSpace(rec.Body.String()), "# EOF") {
		t.Error("OpenMetrics body should end with # EOF")
	}
}
