package engine

import (
	"math"
	"testing"
	"time"

	"github.com/insightstack/insight-engine/internal/models"
)

func pointsFrom(xs, ys []float64) []models.DataPoint {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	points := make([]models.DataPoint, 0, len(xs))
	for i := range xs {
		points = append(points, models.DataPoint{
			Day:    base.AddDate(0, 0, i),
			ValueX: xs[i],
			ValueY: ys[i],
		})
	}
	return points
}

func TestScoreRejectsShortSamples(t *testing.T) {
	computer := NewComputer(7, 60)
	points := pointsFrom([]float64{1, 2, 3}, []float64{2, 4, 6})
	if _, ok := computer.Score(points); ok {
		t.Fatal("expected absent score for under-powered sample")
	}
	if _, ok := computer.Score(nil); ok {
		t.Fatal("expected absent score for empty sample")
	}
}

func TestScorePerfectLinearRelationships(t *testing.T) {
	computer := NewComputer(7, 60)
	xs := []float64{1, 2, 3, 4, 5, 6, 7, 8}

	positive := make([]float64, len(xs))
	negative := make([]float64, len(xs))
	for i, x := range xs {
		positive[i] = 3*x + 2
		negative[i] = -0.5*x + 10
	}

	score, ok := computer.Score(pointsFrom(xs, positive))
	if !ok {
		t.Fatal("expected a score for positive linear series")
	}
	if math.Abs(score.Coefficient-1) > 1e-9 {
		t.Fatalf("expected coefficient +1, got %v", score.Coefficient)
	}

	score, ok = computer.Score(pointsFrom(xs, negative))
	if !ok {
		t.Fatal("expected a score for negative linear series")
	}
	if math.Abs(score.Coefficient+1) > 1e-9 {
		t.Fatalf("expected coefficient -1, got %v", score.Coefficient)
	}
}

func TestScoreZeroVariance(t *testing.T) {
	computer := NewComputer(7, 60)
	flat := []float64{5, 5, 5, 5, 5, 5, 5}
	varied := []float64{1, 2, 3, 4, 5, 6, 7}

	if _, ok := computer.Score(pointsFrom(flat, varied)); ok {
		t.Fatal("expected absent score for zero variance in X")
	}
	if _, ok := computer.Score(pointsFrom(varied, flat)); ok {
		t.Fatal("expected absent score for zero variance in Y")
	}
}

func TestConfidenceMonotonicity(t *testing.T) {
	computer := NewComputer(3, 60)

	// More data at the same coefficient never lowers confidence.
	prev := 0.0
	for _, n := range []int{5, 10, 20, 40, 80, 120} {
		c := computer.confidence(0.5, n)
		if c < prev {
			t.Fatalf("confidence fell from %v to %v at n=%d", prev, c, n)
		}
		if c < 0 || c > 1 {
			t.Fatalf("confidence %v outside [0,1]", c)
		}
		prev = c
	}

	// A stronger coefficient at the same sample size never lowers confidence.
	prev = 0.0
	for _, r := range []float64{0.1, 0.3, 0.5, 0.7, 0.9, 1.0} {
		c := computer.confidence(r, 14)
		if c < prev {
			t.Fatalf("confidence fell from %v to %v at r=%v", prev, c, r)
		}
		prev = c
	}

	if c := computer.confidence(1, 7); c != 1 {
		t.Fatalf("expected confidence 1 for a perfect correlation, got %v", c)
	}
}

func TestSignificanceBoundaries(t *testing.T) {
	cases := []struct {
		coefficient float64
		want        models.Significance
	}{
		{0.70, models.SignificanceStrong},
		{0.699999, models.SignificanceModerate},
		{-0.70, models.SignificanceStrong},
		{0.40, models.SignificanceModerate},
		{0.399999, models.SignificanceWeak},
		{0.20, models.SignificanceWeak},
		{0.199999, models.SignificanceNone},
		{-0.199999, models.SignificanceNone},
		{0, models.SignificanceNone},
		{1, models.SignificanceStrong},
		{-1, models.SignificanceStrong},
	}
	for _, tc := range cases {
		if got := SignificanceFor(tc.coefficient); got != tc.want {
			t.Fatalf("SignificanceFor(%v) = %s, want %s", tc.coefficient, got, tc.want)
		}
	}
}

func TestScoreKnownCoefficient(t *testing.T) {
	computer := NewComputer(7, 60)
	sleep := []float64{7, 6, 8, 5, 7, 9, 6}
	focus := []float64{120, 90, 150, 60, 130, 180, 100}

	score, ok := computer.Score(pointsFrom(sleep, focus))
	if !ok {
		t.Fatal("expected a score")
	}
	if math.Abs(score.Coefficient-0.9927) > 1e-3 {
		t.Fatalf("expected coefficient near 0.9927, got %v", score.Coefficient)
	}
	if SignificanceFor(score.Coefficient) != models.SignificanceStrong {
		t.Fatalf("expected strong significance, got %s", SignificanceFor(score.Coefficient))
	}
}
