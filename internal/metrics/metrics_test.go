package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveTaskCounts(t *testing.T) {
	counter := tasksTotal.WithLabelValues("test.metrics", "succeeded")
	before := testutil.ToFloat64(counter)
	TaskObserver{}.ObserveTask("test.metrics", "succeeded", 10*time.Millisecond)
	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Fatalf("expected counter to increase by 1, got %v -> %v", before, got)
	}
}

func TestObserveRegistryOutcome(t *testing.T) {
	ok := registryOpsTotal.WithLabelValues("test-op", "ok")
	failed := registryOpsTotal.WithLabelValues("test-op", "error")
	okBefore, failedBefore := testutil.ToFloat64(ok), testutil.ToFloat64(failed)
	ObserveRegistry("test-op", nil)
	ObserveRegistry("test-op", errors.New("boom"))
	if testutil.ToFloat64(ok) != okBefore+1 || testutil.ToFloat64(failed) != failedBefore+1 {
		t.Fatalf("unexpected registry counters")
	}
}

func TestHandlerServesMetricsAndHealth(t *testing.T) {
	TaskObserver{}.ObserveTask("test.http", "failed", time.Millisecond)
	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from healthz, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(body), `computeengine_tasks_total{kind="test.http",outcome="failed"}`) {
		t.Fatalf("expected task counter in metrics output")
	}
}
