package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusCounters(t *testing.T) {
	prom := NewPrometheus()
	prom.Metrics.CyclesCompleted.Inc()
	prom.Metrics.CyclesSkipped.Inc()
	prom.Metrics.QuoteFailures.Inc()
	prom.Metrics.OrdersPlaced.Inc()
	prom.Metrics.OrdersFailed.Inc()
	prom.Metrics.RateLimitBlocks.Inc()

	assertCounter(t, prom.cyclesCompleted, 1)
	assertCounter(t, prom.cyclesSkipped, 1)
	assertCounter(t, prom.quoteFailures, 1)
	assertCounter(t, prom.ordersPlaced, 1)
	assertCounter(t, prom.ordersFailed, 1)
	assertCounter(t, prom.rateLimitBlocks, 1)
}

func TestPrometheusGauges(t *testing.T) {
	prom := NewPrometheus()
	prom.Metrics.LastSpreadPct.Set(0.0005)
	prom.Metrics.AccountBalance.Set(2500.75)

	if got := testutil.ToFloat64(prom.lastSpreadPct); got != 0.0005 {
		t.Fatalf("expected 0.0005, got %v", got)
	}
	if got := testutil.ToFloat64(prom.accountBalance); got != 2500.75 {
		t.Fatalf("expected 2500.75, got %v", got)
	}
}

func assertCounter(t *testing.T, counter prometheus.Counter, expected float64) {
	t.Helper()
	if got := testutil.ToFloat64(counter); got != expected {
		t.Fatalf("expected %v, got %v", expected, got)
	}
}
