package models

import "time"

// DataPoint is one aligned observation: both metrics had a value on Day
// (the Y value possibly fetched at Day+lag).
type DataPoint struct {
	Day    time.Time
	ValueX float64
	ValueY float64
}

// MetricRelationship carries the full aligned sample set for one metric pair
// plus the time shift (in days) applied to the Y series. Recomputed on
// demand, never persisted.
type MetricRelationship struct {
	MetricX DataMetric
	MetricY DataMetric
	Lag     int
	Points  []DataPoint
}

// Significance buckets a correlation by coefficient magnitude alone.
type Significance string

const (
	SignificanceStrong   Significance = "strong"
	SignificanceModerate Significance = "moderate"
	SignificanceWeak     Significance = "weak"
	SignificanceNone     Significance = "none"
)

// CorrelationResult summarises one evaluated metric pair. Immutable after
// creation; identity is a fresh UUID per engine run.
type CorrelationResult struct {
	ID           string
	MetricX      DataMetric
	MetricY      DataMetric
	Coefficient  float64
	Confidence   float64
	SampleSize   int
	Lag          int
	Significance Significance
	Description  string
	CreatedAt    time.Time
}

// PairKey returns the lexically ordered key pair, used as the deterministic
// tie-break in result ordering.
func (r CorrelationResult) PairKey() string {
	if r.MetricX.Key <= r.MetricY.Key {
		return r.MetricX.Key + "|" + r.MetricY.Key
	}
	return r.MetricY.Key + "|" + r.MetricX.Key
}

// PairError records a pair that could not be evaluated because a value
// provider failed. A scan continues past these.
type PairError struct {
	MetricX string
	MetricY string
	Reason  string
}
