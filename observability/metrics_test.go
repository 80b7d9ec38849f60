package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHTTPMetricsCounts(t *testing.T) {
	m := ModuleMetrics()
	if m != ModuleMetrics() {
		t.Fatalf("registry should be a singleton")
	}
	before := testutil.ToFloat64(m.requests.WithLabelValues("energyd", "POST", "409"))
	m.Observe("energyd", "POST", 409, 3*time.Millisecond)
	if got := testutil.ToFloat64(m.requests.WithLabelValues("energyd", "POST", "409")); got != before+1 {
		t.Fatalf("expected request counter to grow by one, got %v -> %v", before, got)
	}
	m.RecordThrottle("", "")
	if got := testutil.ToFloat64(m.throttles.WithLabelValues("unknown", "unknown")); got < 1 {
		t.Fatalf("expected throttle recorded under unknown labels")
	}
	var nilMetrics *HTTPMetrics
	nilMetrics.Observe("x", "GET", 200, time.Second)
}
