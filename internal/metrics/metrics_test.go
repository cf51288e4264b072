package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRun(t *testing.T) {
	m := NewMetrics("test_record")

	m.RecordRun("success", 2*time.Second)
	m.RecordRun("success", time.Second)
	m.RecordRun("failed", time.Second)

	if got := testutil.ToFloat64(m.SyncRuns.WithLabelValues("success")); got != 2 {
		t.Errorf("success runs = %g, want 2", got)
	}
	if got := testutil.ToFloat64(m.SyncRuns.WithLabelValues("failed")); got != 1 {
		t.Errorf("failed runs = %g, want 1", got)
	}
}

func TestCounters(t *testing.T) {
	m := NewMetrics("test_counters")

	m.ActivitiesPersisted.Add(7)
	m.KudosPersisted.Add(3)
	m.RowFailures.WithLabelValues("activities").Inc()
	m.LastWatermark.Set(1709280000)

	if got := testutil.ToFloat64(m.ActivitiesPersisted); got != 7 {
		t.Errorf("activities persisted = %g, want 7", got)
	}
	if got := testutil.ToFloat64(m.RowFailures.WithLabelValues("activities")); got != 1 {
		t.Errorf("row failures = %g, want 1", got)
	}
	if got := testutil.ToFloat64(m.LastWatermark); got != 1709280000 {
		t.Errorf("last watermark = %g", got)
	}
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := NewMetrics("test_handler")
	m.SyncRuns.WithLabelValues("success").Inc()

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "test_handler_sync_runs_total") {
		t.Error("expected sync_runs_total in exposition output")
	}
}
