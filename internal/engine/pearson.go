package engine

import (
	"context"
	"math"

	"github.com/insightstack/insight-engine/internal/catalog"
	"github.com/insightstack/insight-engine/internal/models"
)

// Score holds the numeric outcome for one aligned sample set.
type Score struct {
	Coefficient float64
	Confidence  float64
}

// Computer derives Pearson correlation scores from aligned samples.
type Computer struct {
	minimumSampleSize    int
	largeSampleThreshold int
}

// NewComputer constructs a Computer, applying defaults for non-positive values.
func NewComputer(minimumSampleSize, largeSampleThreshold int) *Computer {
	if minimumSampleSize <= 0 {
		minimumSampleSize = DefaultMinimumSampleSize
	}
	if largeSampleThreshold <= 0 {
		largeSampleThreshold = DefaultLargeSampleThreshold
	}
	return &Computer{minimumSampleSize: minimumSampleSize, largeSampleThreshold: largeSampleThreshold}
}

// Score computes the Pearson product-moment coefficient and a confidence
// value for the aligned samples. The boolean is false for under-powered
// samples and for zero-variance series, where no coefficient is derivable.
func (c *Computer) Score(points []models.DataPoint) (Score, bool) {
	n := len(points)
	if n < c.minimumSampleSize {
		return Score{}, false
	}

	var sumX, sumY float64
	for _, p := range points {
		sumX += p.ValueX
		sumY += p.ValueY
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var covXY, varX, varY float64
	for _, p := range points {
		dx := p.ValueX - meanX
		dy := p.ValueY - meanY
		covXY += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return Score{}, false
	}

	coefficient := covXY / math.Sqrt(varX*varY)
	// Floating point can push a perfectly linear series a hair past 1.
	coefficient = clamp(coefficient, -1, 1)

	return Score{
		Coefficient: coefficient,
		Confidence:  c.confidence(coefficient, n),
	}, true
}

// confidence combines two monotone evidence terms and keeps the stronger:
// a t-statistic mapping that reacts to strong coefficients on small samples,
// and a large-sample ramp that saturates once sampleSize passes the
// configured threshold. Both terms land in [0,1] and rise with sample size
// and coefficient magnitude.
func (c *Computer) confidence(coefficient float64, sampleSize int) float64 {
	r := math.Abs(coefficient)

	ramp := math.Min(1, float64(sampleSize)/float64(c.largeSampleThreshold)) * (0.5 + 0.5*r)

	var tTerm float64
	if rr := r * r; rr >= 1-1e-12 {
		tTerm = 1
	} else {
		t := r * math.Sqrt(float64(sampleSize-2)/(1-rr))
		tTerm = t / (t + 2)
	}

	return clamp(math.Max(ramp, tTerm), 0, 1)
}

// SignificanceFor buckets a coefficient by magnitude alone. Boundaries are
// inclusive on the lower edge of each bucket.
func SignificanceFor(coefficient float64) models.Significance {
	r := math.Abs(coefficient)
	switch {
	case r >= 0.7:
		return models.SignificanceStrong
	case r >= 0.4:
		return models.SignificanceModerate
	case r >= 0.2:
		return models.SignificanceWeak
	default:
		return models.SignificanceNone
	}
}

// lagOutcome is the winning alignment for one metric pair.
type lagOutcome struct {
	lag    int
	points []models.DataPoint
	score  Score
}

// bestLag aligns and scores the pair at every offset and keeps the lag with
// the highest coefficient magnitude among adequately sampled lags, preferring
// the smallest lag on ties. The boolean is false when no lag produced a
// scoreable sample.
func (c *Computer) bestLag(ctx context.Context, x, y catalog.ValueProvider, dateRange models.DateRange, lags []int) (lagOutcome, bool, error) {
	var best lagOutcome
	found := false

	for _, lag := range lags {
		if err := ctx.Err(); err != nil {
			return lagOutcome{}, false, err
		}

		points, err := Align(ctx, x, y, dateRange, lag)
		if err != nil {
			return lagOutcome{}, false, err
		}
		score, ok := c.Score(points)
		if !ok {
			continue
		}

		if !found || math.Abs(score.Coefficient) > math.Abs(best.score.Coefficient) ||
			(math.Abs(score.Coefficient) == math.Abs(best.score.Coefficient) && lag < best.lag) {
			best = lagOutcome{lag: lag, points: points, score: score}
			found = true
		}
	}

	return best, found, nil
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
