package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// CreditsMetrics records engine activity segmented by operation outcome.
type CreditsMetrics struct {
	purchases   *prometheus.CounterVec
	redemptions *prometheus.CounterVec
	settlements *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

var (
	creditsMetricsOnce sync.Once
	creditsRegistry    *CreditsMetrics
)

// Credits returns the lazily-initialised metrics registry used to record
// credit ledger and settlement activity. It satisfies the engine's
// MetricsSink interface.
func Credits() *CreditsMetrics {
	creditsMetricsOnce.Do(func() {
		creditsRegistry = &CreditsMetrics{
			purchases: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "credits",
				Subsystem: "engine",
				Name:      "purchases_total",
				Help:      "Total credit purchases segmented by outcome.",
			}, []string{"outcome"}),
			redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "credits",
				Subsystem: "engine",
				Name:      "redemptions_total",
				Help:      "Total credit redemptions segmented by outcome.",
			}, []string{"outcome"}),
			settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "credits",
				Subsystem: "engine",
				Name:      "settlements_total",
				Help:      "Total delegated-mint settlements segmented by outcome.",
			}, []string{"outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "credits",
				Subsystem: "engine",
				Name:      "settlement_duration_seconds",
				Help:      "Latency distribution for delegated-mint settlements.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"outcome"}),
		}
		prometheus.MustRegister(
			creditsRegistry.purchases,
			creditsRegistry.redemptions,
			creditsRegistry.settlements,
			creditsRegistry.latency,
		)
	})
	return creditsRegistry
}

// ObservePurchase records a purchase attempt.
func (m *CreditsMetrics) ObservePurchase(outcome string) {
	if m == nil {
		return
	}
	m.purchases.WithLabelValues(outcome).Inc()
}

// ObserveRedemption records a redemption attempt.
func (m *CreditsMetrics) ObserveRedemption(outcome string) {
	if m == nil {
		return
	}
	m.redemptions.WithLabelValues(outcome).Inc()
}

// ObserveSettlement records a settlement attempt and its duration.
func (m *CreditsMetrics) ObserveSettlement(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(outcome).Inc()
	m.latency.WithLabelValues(outcome).Observe(seconds)
}
