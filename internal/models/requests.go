package models

import "time"

// DateRange bounds a scan to a window of calendar days, inclusive on both
// ends. Start and End are normalised to midnight UTC.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Days returns every calendar day in the range in ascending order.
func (r DateRange) Days() []time.Time {
	if r.Start.IsZero() || r.End.IsZero() || r.End.Before(r.Start) {
		return nil
	}
	days := make([]time.Time, 0, int(r.End.Sub(r.Start).Hours()/24)+1)
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// ScanRequest asks for correlations across the named metrics (or every
// registered metric when empty) over the trailing MinimumDays window.
type ScanRequest struct {
	MetricKeys  []string
	MinimumDays int
}

// ScanResponse bundles ranked results, the suggestions derived from them,
// and any per-pair provider failures the scan skipped over.
type ScanResponse struct {
	Results     []CorrelationResult
	Suggestions []CorrelationSuggestion
	Failures    []PairError
	GeneratedAt time.Time
}
