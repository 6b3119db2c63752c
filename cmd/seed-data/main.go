// Command seed-data fills an observation database with synthetic but
// plausibly correlated daily metrics, so a locally running insight-engine
// has something to scan.
package main

import (
	"context"
	"flag"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/insightstack/insight-engine/internal/store"
	"github.com/insightstack/insight-engine/internal/utils"
)

func main() {
	var (
		path string
		days int
		seed int64
	)
	flag.StringVar(&path, "db", "insights.db", "Path to the observation database")
	flag.IntVar(&days, "days", 90, "Number of trailing days to seed")
	flag.Int64Var(&seed, "seed", 42, "Random seed, fixed for reproducible data")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	observations, err := store.Open(path)
	if err != nil {
		logger.Error("failed to open store", slog.String("path", path), slog.Any("error", err))
		os.Exit(1)
	}
	defer observations.Close()

	rng := rand.New(rand.NewSource(seed))
	ctx := context.Background()

	end := utils.DayOf(time.Now())
	written := 0
	for offset := days; offset >= 1; offset-- {
		day := utils.AddDays(end, -offset)

		// Sleep drives mood and next-day focus; screen time works against
		// sleep. Gaussian noise keeps the correlations under 1.
		sleep := clampRange(7+1.5*rng.NormFloat64(), 3, 11)
		screen := clampRange(420-30*sleep+45*rng.NormFloat64(), 60, 600)
		steps := clampRange(8000+2500*rng.NormFloat64(), 500, 25000)
		heartRate := clampRange(72-1.2*sleep+0.0004*steps+3*rng.NormFloat64(), 45, 95)
		mood := clampRange(1+sleep*0.9+steps/8000+rng.NormFloat64(), 1, 10)
		focus := clampRange(20*sleep-0.2*(screen-300)+15*rng.NormFloat64(), 0, 360)

		values := map[string]float64{
			"sleepHours":       round1(sleep),
			"screenMinutes":    round1(screen),
			"stepsCount":       float64(int(steps)),
			"restingHeartRate": round1(heartRate),
			"moodScore":        round1(mood),
			"focusMinutes":     round1(focus),
		}

		for key, value := range values {
			// Leave occasional gaps so scans exercise missing-day handling.
			if rng.Float64() < 0.05 {
				continue
			}
			if err := observations.Put(ctx, key, day, value); err != nil {
				logger.Error("failed to write observation", slog.String("metric", key), slog.Any("error", err))
				os.Exit(1)
			}
			written++
		}
	}

	logger.Info("seeded observations",
		slog.String("path", path),
		slog.Int("days", days),
		slog.Int("observations", written),
	)
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
