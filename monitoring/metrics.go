package monitoring

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	chainCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chain_calls_total",
			Help: "Contract transactions by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	chainCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chain_call_duration_seconds",
			Help:    "Time from submission to confirmed receipt",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
		[]string{"action"},
	)

	reconcileOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_outcomes_total",
			Help: "Lifecycle requests by action and final outcome",
		},
		[]string{"action", "outcome"},
	)

	pendingGaps = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reconcile_pending_gaps",
			Help: "Confirmed transactions waiting for a store repair",
		},
	)
)

// GapCounter reports how many reconciliation gaps are unresolved.
type GapCounter interface {
	Len(ctx context.Context) (int64, error)
}

type Monitor struct {
	gaps     GapCounter
	interval time.Duration
}

func NewMonitor(gaps GapCounter, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{gaps: gaps, interval: interval}
}

// Run collects the pending gap gauge until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.collectGapMetrics(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.collectGapMetrics(ctx)
		}
	}
}

func (m *Monitor) collectGapMetrics(ctx context.Context) {
	n, err := m.gaps.Len(ctx)
	if err != nil {
		slog.Warn("Failed to count reconciliation gaps", "error", err)
		return
	}
	pendingGaps.Set(float64(n))
}

// Track contract calls
func (m *Monitor) ObserveChainCall(action, outcome string, duration time.Duration) {
	chainCalls.WithLabelValues(action, outcome).Inc()
	chainCallDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// Track reconciliation outcomes
func (m *Monitor) TrackReconcile(action, outcome string) {
	reconcileOutcomes.WithLabelValues(action, outcome).Inc()
}
