package engine

import (
	"context"
	"fmt"

	"github.com/insightstack/insight-engine/internal/catalog"
	"github.com/insightstack/insight-engine/internal/models"
	"github.com/insightstack/insight-engine/internal/utils"
)

// Align walks every calendar day in the range and keeps the days where both
// metrics have an observation, fetching the Y value lag days after the X
// value. Days with either side missing are skipped without interpolation,
// since interpolating would fabricate correlation signal. Output is ordered
// by ascending day.
func Align(ctx context.Context, x, y catalog.ValueProvider, dateRange models.DateRange, lag int) ([]models.DataPoint, error) {
	if x == nil || y == nil {
		return nil, fmt.Errorf("align: both value providers are required")
	}

	var points []models.DataPoint
	for _, day := range dateRange.Days() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		valueX, okX, err := x(ctx, day)
		if err != nil {
			return nil, fmt.Errorf("align: fetch x value on %s: %w", utils.FormatDay(day), err)
		}
		if !okX {
			continue
		}

		valueY, okY, err := y(ctx, utils.AddDays(day, lag))
		if err != nil {
			return nil, fmt.Errorf("align: fetch y value on %s: %w", utils.FormatDay(utils.AddDays(day, lag)), err)
		}
		if !okY {
			continue
		}

		points = append(points, models.DataPoint{Day: day, ValueX: valueX, ValueY: valueY})
	}
	return points, nil
}
