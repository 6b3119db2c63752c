package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels scans that completed, possibly with partial pair failures.
	OutcomeSuccess = "success"
	// OutcomeError labels scans that failed outright.
	OutcomeError = "error"
)

var (
	scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "insight_engine",
			Name:      "scans_total",
			Help:      "Total number of correlation scans handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	scanDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "insight_engine",
			Name:      "scan_seconds",
			Help:      "Correlation scan latency in seconds.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	pairsEvaluatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "insight_engine",
			Name:      "pairs_evaluated_total",
			Help:      "Total number of metric pairs evaluated across all scans.",
		},
	)

	cacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "insight_engine",
			Name:      "scan_cache_total",
			Help:      "Scan cache lookups partitioned by hit/miss.",
		},
		[]string{"result"},
	)
)

// Register attaches insight-engine collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		scansTotal,
		scanDurationSeconds,
		pairsEvaluatedTotal,
		cacheHitsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveScan records a scan duration and outcome label.
func ObserveScan(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	scansTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	scanDurationSeconds.Observe(duration.Seconds())
}

// AddPairsEvaluated accumulates the pair count for one scan.
func AddPairsEvaluated(n int) {
	if n > 0 {
		pairsEvaluatedTotal.Add(float64(n))
	}
}

// ObserveCacheLookup records whether a scan cache lookup hit.
func ObserveCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheHitsTotal.WithLabelValues(result).Inc()
}
