package recommendation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recommendationsGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "obimo_recommendations_generated_total",
			Help: "Total number of recommendations persisted by generation runs",
		},
	)

	generationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "obimo_generation_duration_seconds",
			Help:    "Wall time of a full recommendation generation run",
			Buckets: prometheus.DefBuckets,
		},
	)

	collectorCandidates = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "obimo_collector_candidates",
			Help:    "Candidates emitted per collector per generation",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
		},
		[]string{"collector"},
	)

	rankAdjustments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "obimo_rank_adjustments_total",
			Help: "External model re-ranking attempts by outcome",
		},
		[]string{"outcome"},
	)

	persistFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "obimo_recommendation_persist_failures_total",
			Help: "Recommendations skipped because the write failed",
		},
	)

	interactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "obimo_interactions_total",
			Help: "Recorded user interactions by type",
		},
		[]string{"type"},
	)

	mutualMatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "obimo_mutual_matches_total",
			Help: "Mutual-interest conditions detected",
		},
	)

	signalFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "obimo_training_signal_failures_total",
			Help: "Training signals that could not be stored",
		},
	)
)

func recordGeneration(persisted int, duration time.Duration) {
	recommendationsGenerated.Add(float64(persisted))
	generationDuration.Observe(duration.Seconds())
}

func recordCollectorCandidates(collector string, n int) {
	collectorCandidates.WithLabelValues(collector).Observe(float64(n))
}

func recordAdjustment(outcome string) {
	rankAdjustments.WithLabelValues(outcome).Inc()
}

func recordPersistFailure() {
	persistFailures.Inc()
}

func recordInteraction(t InteractionType) {
	interactionsTotal.WithLabelValues(string(t)).Inc()
}

func recordMutualMatch() {
	mutualMatchesTotal.Inc()
}

func recordSignalFailure() {
	signalFailures.Inc()
}
