package observability

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yungbote/neurobridge-adaptive/internal/platform/logger"
)

// Metrics is nil-safe: every method on a nil *Metrics is a no-op, so callers
// never branch on whether metrics are enabled.
type Metrics struct {
	registry *prometheus.Registry

	recommendations  *prometheus.CounterVec
	recommendLatency *prometheus.HistogramVec
	recommendedItems *prometheus.HistogramVec
	strategyErrors   *prometheus.CounterVec
	feedbackReward   *prometheus.HistogramVec
	banditWeight     *prometheus.GaugeVec
	explorationRate  *prometheus.GaugeVec
	graphNodes       prometheus.Gauge
	graphEdges       prometheus.Gauge
	graphRefresh     *prometheus.HistogramVec
	weaknesses       *prometheus.CounterVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

// NewMetrics registers the adaptive-engine collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		recommendations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adaptive_recommendations_total",
			Help: "Recommendation calls by selected strategy and whether the bandit explored.",
		}, []string{"strategy", "explored"}),
		recommendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "adaptive_recommend_duration_seconds",
			Help:    "Recommendation latency in seconds by selected strategy.",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"strategy"}),
		recommendedItems: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "adaptive_recommended_items",
			Help:    "Items returned per recommendation call.",
			Buckets: prometheus.LinearBuckets(0, 5, 11),
		}, []string{"strategy"}),
		strategyErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adaptive_strategy_errors_total",
			Help: "Isolated strategy failures by strategy.",
		}, []string{"strategy"}),
		feedbackReward: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "adaptive_feedback_reward",
			Help:    "Feedback reward credited to each strategy.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}, []string{"strategy"}),
		banditWeight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "adaptive_bandit_weight",
			Help: "Current bandit strategy weight by scope.",
		}, []string{"scope", "strategy"}),
		explorationRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "adaptive_bandit_exploration_rate",
			Help: "Current bandit exploration rate by scope.",
		}, []string{"scope"}),
		graphNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "adaptive_concept_graph_nodes",
			Help: "Concepts in the active dependency graph.",
		}),
		graphEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "adaptive_concept_graph_edges",
			Help: "Edges in the active dependency graph.",
		}),
		graphRefresh: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "adaptive_knowledge_base_refresh_seconds",
			Help:    "Knowledge base refresh duration by status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		weaknesses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adaptive_weaknesses_detected_total",
			Help: "Weaknesses reported by detector source.",
		}, []string{"source"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.recommendations, m.recommendLatency, m.recommendedItems, m.strategyErrors,
		m.feedbackReward, m.banditWeight, m.explorationRate,
		m.graphNodes, m.graphEdges, m.graphRefresh, m.weaknesses,
	)
	return m
}

// Init builds the process-wide metrics once. Returns nil when disabled.
func Init(log *logger.Logger, enabled bool) *Metrics {
	if !enabled {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics()
		if log != nil {
			log.Info("prometheus metrics initialized")
		}
	})
	return instance
}

func Current() *Metrics { return instance }

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer serves /metrics on addr until ctx is cancelled.
func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) ObserveRecommendation(strategy string, explored bool, items int, dur time.Duration) {
	if m == nil {
		return
	}
	m.recommendations.WithLabelValues(strategy, strconv.FormatBool(explored)).Inc()
	m.recommendLatency.WithLabelValues(strategy).Observe(dur.Seconds())
	m.recommendedItems.WithLabelValues(strategy).Observe(float64(items))
}

func (m *Metrics) IncStrategyError(strategy string) {
	if m == nil {
		return
	}
	m.strategyErrors.WithLabelValues(strategy).Inc()
}

func (m *Metrics) ObserveReward(strategy string, reward float64) {
	if m == nil {
		return
	}
	m.feedbackReward.WithLabelValues(strategy).Observe(reward)
}

// SetBandit publishes weights and exploration rate. scope is "global" or
// "learner"; per-learner keys are never used as labels.
func (m *Metrics) SetBandit(scope string, weights map[string]float64, exploration float64) {
	if m == nil {
		return
	}
	for name, w := range weights {
		m.banditWeight.WithLabelValues(scope, name).Set(w)
	}
	m.explorationRate.WithLabelValues(scope).Set(exploration)
}

func (m *Metrics) SetGraphSize(nodes, edges int) {
	if m == nil {
		return
	}
	m.graphNodes.Set(float64(nodes))
	m.graphEdges.Set(float64(edges))
}

func (m *Metrics) ObserveGraphRefresh(status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.graphRefresh.WithLabelValues(status).Observe(dur.Seconds())
}

func (m *Metrics) IncWeakness(source string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.weaknesses.WithLabelValues(source).Add(float64(n))
}
