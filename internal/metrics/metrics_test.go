package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordAuth(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAuth("login", OutcomeSuccess)
	c.RecordAuth("login", OutcomeSuccess)
	c.RecordAuth("login", OutcomeFailure)

	if got := testutil.ToFloat64(c.auth.WithLabelValues("login", OutcomeSuccess)); got != 2 {
		t.Errorf("login success = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.auth.WithLabelValues("login", OutcomeFailure)); got != 1 {
		t.Errorf("login failure = %v, want 1", got)
	}
}

func TestRecordRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRequest(http.MethodGet, "/auth/profile", http.StatusOK, 20*time.Millisecond)

	if got := testutil.ToFloat64(c.requests.WithLabelValues("GET", "/auth/profile", "200")); got != 1 {
		t.Errorf("requests = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(c.latency); n != 1 {
		t.Errorf("latency series = %d, want 1", n)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordAuth("register", OutcomeSuccess)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `auth_operations_total{operation="register",outcome="success"} 1`) {
		t.Errorf("metrics output missing auth counter:\n%s", body)
	}
}
