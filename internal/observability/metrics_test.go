package observability

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.ObserveRecommendation("rule_based", true, 3, time.Millisecond)
	m.IncStrategyError("graph_based")
	m.ObserveReward("rule_based", 0.5)
	m.SetBandit("global", map[string]float64{"rule_based": 1}, 0.1)
	m.SetGraphSize(1, 2)
	m.ObserveGraphRefresh("ok", time.Second)
	m.IncWeakness("low_mastery", 2)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 503 {
		t.Fatalf("nil handler status=%d", rec.Code)
	}
}

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics()
	m.ObserveRecommendation("rule_based", false, 4, 2*time.Millisecond)
	m.ObserveRecommendation("rule_based", false, 2, time.Millisecond)
	m.IncStrategyError("collaborative")
	m.SetBandit("global", map[string]float64{"rule_based": 0.4, "graph_based": 0.6}, 0.15)
	m.SetGraphSize(12, 30)

	if got := testutil.ToFloat64(m.recommendations.WithLabelValues("rule_based", "false")); got != 2 {
		t.Fatalf("recommendations=%v want 2", got)
	}
	if got := testutil.ToFloat64(m.strategyErrors.WithLabelValues("collaborative")); got != 1 {
		t.Fatalf("strategy errors=%v want 1", got)
	}
	if got := testutil.ToFloat64(m.banditWeight.WithLabelValues("global", "graph_based")); got != 0.6 {
		t.Fatalf("weight=%v want 0.6", got)
	}
	if got := testutil.ToFloat64(m.graphNodes); got != 12 {
		t.Fatalf("graph nodes=%v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "adaptive_recommendations_total") {
		t.Fatalf("exposition missing counter")
	}
}
