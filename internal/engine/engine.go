package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/insightstack/insight-engine/internal/catalog"
	"github.com/insightstack/insight-engine/internal/models"
	"github.com/insightstack/insight-engine/internal/utils"
)

// Defaults for the correlation scan knobs.
const (
	DefaultMinimumSampleSize    = 7
	DefaultLargeSampleThreshold = 60
	DefaultMaxPairWorkers       = 4
)

// DefaultLagOffsets covers same-day and up-to-three-day delayed effects.
func DefaultLagOffsets() []int {
	return []int{0, 1, 2, 3}
}

// Config tunes the correlation engine.
type Config struct {
	MinimumSampleSize    int
	LargeSampleThreshold int
	LagOffsets           []int
	MaxPairWorkers       int
}

func (c Config) withDefaults() Config {
	if c.MinimumSampleSize <= 0 {
		c.MinimumSampleSize = DefaultMinimumSampleSize
	}
	if c.LargeSampleThreshold <= 0 {
		c.LargeSampleThreshold = DefaultLargeSampleThreshold
	}
	if len(c.LagOffsets) == 0 {
		c.LagOffsets = DefaultLagOffsets()
	}
	if c.MaxPairWorkers <= 0 {
		c.MaxPairWorkers = DefaultMaxPairWorkers
	}
	return c
}

// Engine enumerates metric pairs, scores them, and ranks the significant
// results. It is a pure computation over the catalog's providers: identical
// provider data yields identical statistical output.
type Engine struct {
	logger   *slog.Logger
	catalog  *catalog.Catalog
	computer *Computer
	cfg      Config
	now      func() time.Time
}

// New constructs an Engine over the supplied catalog.
func New(logger *slog.Logger, cat *catalog.Catalog, cfg Config) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Engine{
		logger:   logger,
		catalog:  cat,
		computer: NewComputer(cfg.MinimumSampleSize, cfg.LargeSampleThreshold),
		cfg:      cfg,
		now:      time.Now,
	}
}

// Options returns the effective configuration after defaults were applied.
func (e *Engine) Options() Config {
	return e.cfg
}

// metricPair is one unordered pair in canonical (lexical) order.
type metricPair struct {
	x models.DataMetric
	y models.DataMetric
}

type pairOutcome struct {
	index   int
	result  *models.CorrelationResult
	failure *models.PairError
}

// FindCorrelations evaluates every unordered pair from the given metrics (or
// all registered metrics when none are given) over the trailing minimumDays
// window. Results are filtered to adequately sampled, non-trivial
// correlations and ordered deterministically: confidence*|coefficient|
// descending, then sample size descending, then lexical pair key. Provider
// failures skip that pair and are reported alongside the results.
func (e *Engine) FindCorrelations(ctx context.Context, metrics []models.DataMetric, minimumDays int) ([]models.CorrelationResult, []models.PairError, error) {
	if e.catalog == nil {
		return nil, nil, fmt.Errorf("find correlations: catalog not configured")
	}
	if len(metrics) == 0 {
		metrics = e.catalog.List()
	}
	if minimumDays <= 0 {
		return nil, nil, fmt.Errorf("find correlations: minimumDays must be positive")
	}

	pairs := enumeratePairs(metrics)
	if len(pairs) == 0 {
		return nil, nil, nil
	}
	dateRange := e.trailingRange(minimumDays)

	outcomes := make([]pairOutcome, len(pairs))
	sem := make(chan struct{}, e.cfg.MaxPairWorkers)
	var wg sync.WaitGroup

	for i, pair := range pairs {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil, nil, err
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(index int, pair metricPair) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[index] = e.evaluatePair(ctx, index, pair, dateRange)
		}(i, pair)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var results []models.CorrelationResult
	var failures []models.PairError
	for _, outcome := range outcomes {
		if outcome.failure != nil {
			failures = append(failures, *outcome.failure)
		}
		if outcome.result != nil {
			results = append(results, *outcome.result)
		}
	}

	sortResults(results)
	return results, failures, nil
}

// AnalyzeRelationship exposes the raw aligned points for one pair, with the
// winning lag applied, for detail views. Returns nil when the pair is
// under-powered at every lag.
func (e *Engine) AnalyzeRelationship(ctx context.Context, xKey, yKey string, minimumDays int) (*models.MetricRelationship, error) {
	metricX, ok := e.catalog.Get(xKey)
	if !ok {
		return nil, fmt.Errorf("analyze relationship: %w: %s", catalog.ErrUnknownMetric, xKey)
	}
	metricY, ok := e.catalog.Get(yKey)
	if !ok {
		return nil, fmt.Errorf("analyze relationship: %w: %s", catalog.ErrUnknownMetric, yKey)
	}
	if minimumDays <= 0 {
		return nil, fmt.Errorf("analyze relationship: minimumDays must be positive")
	}

	providerX, err := e.catalog.Provider(xKey)
	if err != nil {
		return nil, err
	}
	providerY, err := e.catalog.Provider(yKey)
	if err != nil {
		return nil, err
	}

	best, found, err := e.computer.bestLag(ctx, providerX, providerY, e.trailingRange(minimumDays), e.cfg.LagOffsets)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	return &models.MetricRelationship{
		MetricX: metricX,
		MetricY: metricY,
		Lag:     best.lag,
		Points:  best.points,
	}, nil
}

func (e *Engine) evaluatePair(ctx context.Context, index int, pair metricPair, dateRange models.DateRange) pairOutcome {
	outcome := pairOutcome{index: index}

	providerX, err := e.catalog.Provider(pair.x.Key)
	if err != nil {
		outcome.failure = &models.PairError{MetricX: pair.x.Key, MetricY: pair.y.Key, Reason: err.Error()}
		return outcome
	}
	providerY, err := e.catalog.Provider(pair.y.Key)
	if err != nil {
		outcome.failure = &models.PairError{MetricX: pair.x.Key, MetricY: pair.y.Key, Reason: err.Error()}
		return outcome
	}

	best, found, err := e.computer.bestLag(ctx, providerX, providerY, dateRange, e.cfg.LagOffsets)
	if err != nil {
		if ctx.Err() != nil {
			return outcome
		}
		e.logger.Warn("pair evaluation failed",
			slog.String("metric_x", pair.x.Key),
			slog.String("metric_y", pair.y.Key),
			slog.Any("error", err))
		outcome.failure = &models.PairError{MetricX: pair.x.Key, MetricY: pair.y.Key, Reason: err.Error()}
		return outcome
	}
	if !found {
		return outcome
	}

	significance := SignificanceFor(best.score.Coefficient)
	if significance == models.SignificanceNone {
		return outcome
	}

	result := models.CorrelationResult{
		ID:           uuid.NewString(),
		MetricX:      pair.x,
		MetricY:      pair.y,
		Coefficient:  best.score.Coefficient,
		Confidence:   best.score.Confidence,
		SampleSize:   len(best.points),
		Lag:          best.lag,
		Significance: significance,
		Description:  describeResult(pair.x, pair.y, best.score.Coefficient, best.lag),
		CreatedAt:    e.now().UTC(),
	}
	outcome.result = &result
	return outcome
}

// trailingRange spans now-minimumDays to now, inclusive, in calendar days.
func (e *Engine) trailingRange(minimumDays int) models.DateRange {
	end := utils.DayOf(e.now())
	return models.DateRange{Start: utils.AddDays(end, -minimumDays), End: end}
}

// enumeratePairs yields each unordered pair exactly once, in canonical
// lexical order, skipping self-pairs and duplicate keys.
func enumeratePairs(metrics []models.DataMetric) []metricPair {
	unique := make([]models.DataMetric, 0, len(metrics))
	seen := make(map[string]struct{}, len(metrics))
	for _, m := range metrics {
		if m.Key == "" {
			continue
		}
		if _, ok := seen[m.Key]; ok {
			continue
		}
		seen[m.Key] = struct{}{}
		unique = append(unique, m)
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i].Key < unique[j].Key })

	var pairs []metricPair
	for i := 0; i < len(unique); i++ {
		for j := i + 1; j < len(unique); j++ {
			pairs = append(pairs, metricPair{x: unique[i], y: unique[j]})
		}
	}
	return pairs
}

func sortResults(results []models.CorrelationResult) {
	sort.SliceStable(results, func(i, j int) bool {
		si := results[i].Confidence * math.Abs(results[i].Coefficient)
		sj := results[j].Confidence * math.Abs(results[j].Coefficient)
		if si != sj {
			return si > sj
		}
		if results[i].SampleSize != results[j].SampleSize {
			return results[i].SampleSize > results[j].SampleSize
		}
		return results[i].PairKey() < results[j].PairKey()
	})
}

func describeResult(x, y models.DataMetric, coefficient float64, lag int) string {
	direction := "higher"
	if coefficient < 0 {
		direction = "lower"
	}
	when := "the same day"
	switch lag {
	case 0:
	case 1:
		when = "the next day"
	default:
		when = fmt.Sprintf("%d days later", lag)
	}
	return fmt.Sprintf("Higher %s tends to go with %s %s %s.", displayName(x), direction, displayName(y), when)
}

func displayName(m models.DataMetric) string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return m.Key
}
