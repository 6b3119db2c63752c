package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/insightstack/insight-engine/internal/catalog"
	"github.com/insightstack/insight-engine/internal/models"
	"github.com/insightstack/insight-engine/internal/utils"
)

// mapProvider serves values keyed by YYYY-MM-DD, reporting absent for any
// other day.
func mapProvider(values map[string]float64) catalog.ValueProvider {
	return func(ctx context.Context, day time.Time) (float64, bool, error) {
		v, ok := values[utils.FormatDay(day)]
		return v, ok, nil
	}
}

func rangeOver(start string, days int) models.DateRange {
	s, err := utils.ParseDay(start)
	if err != nil {
		panic(err)
	}
	return models.DateRange{Start: s, End: utils.AddDays(s, days-1)}
}

func TestAlignInnerJoinSkipsMissingDays(t *testing.T) {
	x := mapProvider(map[string]float64{
		"2025-06-01": 1,
		"2025-06-02": 2,
		"2025-06-04": 4,
		"2025-06-05": 5,
	})
	y := mapProvider(map[string]float64{
		"2025-06-01": 10,
		"2025-06-03": 30,
		"2025-06-04": 40,
	})

	points, err := Align(context.Background(), x, y, rangeOver("2025-06-01", 5), 0)
	if err != nil {
		t.Fatalf("align failed: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 aligned points, got %d", len(points))
	}
	if utils.FormatDay(points[0].Day) != "2025-06-01" || utils.FormatDay(points[1].Day) != "2025-06-04" {
		t.Fatalf("unexpected aligned days: %v", points)
	}
	if points[1].ValueX != 4 || points[1].ValueY != 40 {
		t.Fatalf("unexpected values: %+v", points[1])
	}
}

func TestAlignAppliesLagToYSide(t *testing.T) {
	x := mapProvider(map[string]float64{
		"2025-06-01": 1,
		"2025-06-02": 2,
		"2025-06-03": 3,
	})
	y := mapProvider(map[string]float64{
		"2025-06-03": 30,
		"2025-06-04": 40,
		"2025-06-05": 50,
	})

	points, err := Align(context.Background(), x, y, rangeOver("2025-06-01", 3), 2)
	if err != nil {
		t.Fatalf("align failed: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("expected 3 aligned points, got %d", len(points))
	}
	for i, p := range points {
		if p.ValueY != float64((i+3)*10) {
			t.Fatalf("expected lagged Y value %d, got %v", (i+3)*10, p.ValueY)
		}
	}
}

func TestAlignEmptyRange(t *testing.T) {
	x := mapProvider(map[string]float64{"2025-06-01": 1})
	y := mapProvider(map[string]float64{"2025-06-01": 2})

	points, err := Align(context.Background(), x, y, models.DateRange{}, 0)
	if err != nil {
		t.Fatalf("align failed: %v", err)
	}
	if len(points) != 0 {
		t.Fatalf("expected no points for empty range, got %d", len(points))
	}
}

func TestAlignPropagatesProviderFailure(t *testing.T) {
	x := mapProvider(map[string]float64{"2025-06-01": 1})
	failing := func(ctx context.Context, day time.Time) (float64, bool, error) {
		return 0, false, fmt.Errorf("%w: store offline", catalog.ErrProviderUnavailable)
	}

	_, err := Align(context.Background(), x, failing, rangeOver("2025-06-01", 3), 0)
	if !errors.Is(err, catalog.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestAlignHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	x := mapProvider(map[string]float64{"2025-06-01": 1})
	_, err := Align(ctx, x, x, rangeOver("2025-06-01", 10), 0)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
