package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/insightstack/insight-engine/internal/cache"
	"github.com/insightstack/insight-engine/internal/catalog"
	"github.com/insightstack/insight-engine/internal/engine"
	"github.com/insightstack/insight-engine/internal/metrics"
	"github.com/insightstack/insight-engine/internal/models"
	"github.com/insightstack/insight-engine/internal/utils"
)

// Options tunes service behaviour outside the engine's own knobs.
type Options struct {
	// DefaultScanDays is used when a request does not name a window.
	DefaultScanDays int
	// ScanTTL bounds how long a cached scan response stays valid.
	ScanTTL time.Duration
}

func (o Options) withDefaults() Options {
	if o.DefaultScanDays <= 0 {
		o.DefaultScanDays = 30
	}
	if o.ScanTTL <= 0 {
		o.ScanTTL = 5 * time.Minute
	}
	return o
}

// InsightService fronts the correlation engine for the HTTP layer. It
// resolves metric keys against the catalog, caches whole scan responses,
// and records latency and outcome metrics per scan.
type InsightService struct {
	logger    *slog.Logger
	catalog   *catalog.Catalog
	engine    *engine.Engine
	cache     cache.Provider
	opts      Options
	latencies *utils.LatencyWindow
	now       func() time.Time
}

// NewInsightService constructs the service facade.
func NewInsightService(logger *slog.Logger, cat *catalog.Catalog, eng *engine.Engine, cacheProvider cache.Provider, opts Options) *InsightService {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	return &InsightService{
		logger:    logger,
		catalog:   cat,
		engine:    eng,
		cache:     cacheProvider,
		opts:      opts.withDefaults(),
		latencies: utils.NewLatencyWindow(1024),
		now:       time.Now,
	}
}

// ListMetrics returns every registered metric sorted by key.
func (s *InsightService) ListMetrics(ctx context.Context) ([]models.DataMetric, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.catalog.List(), nil
}

// RunScan resolves the requested metrics, runs a full pairwise correlation
// scan, and derives suggestions from the significant results. Responses are
// cached keyed on the scan's inputs, so repeating a scan within the TTL is
// served without touching the providers.
func (s *InsightService) RunScan(ctx context.Context, req models.ScanRequest) (*models.ScanResponse, error) {
	scanMetrics, err := s.resolveMetrics(req.MetricKeys)
	if err != nil {
		return nil, err
	}
	minimumDays := req.MinimumDays
	if minimumDays <= 0 {
		minimumDays = s.opts.DefaultScanDays
	}

	key := s.scanCacheKey(scanMetrics, minimumDays)
	if payload, err := s.cache.Get(ctx, key); err == nil {
		var cached models.ScanResponse
		if err := json.Unmarshal(payload, &cached); err == nil {
			metrics.ObserveCacheLookup(true)
			s.logger.Debug("scan served from cache", slog.String("key", key))
			return &cached, nil
		}
		s.logger.Warn("discarding undecodable cached scan", slog.String("key", key))
	}
	metrics.ObserveCacheLookup(false)

	start := time.Now()
	results, failures, err := s.engine.FindCorrelations(ctx, scanMetrics, minimumDays)
	duration := time.Since(start)
	if err != nil {
		metrics.ObserveScan(duration, metrics.OutcomeError)
		s.logger.Error("correlation scan failed", slog.Any("error", err))
		return nil, fmt.Errorf("run scan: %w", err)
	}
	metrics.ObserveScan(duration, metrics.OutcomeSuccess)
	metrics.AddPairsEvaluated(len(scanMetrics) * (len(scanMetrics) - 1) / 2)

	s.latencies.Observe(duration)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		p95 := s.latencies.Percentile(95)
		s.logger.Info("scan latency", slog.Duration("p95", p95), slog.Int("samples", count))
	}

	resp := &models.ScanResponse{
		Results:     results,
		Suggestions: engine.GenerateSuggestions(results),
		Failures:    failures,
		GeneratedAt: s.now().UTC(),
	}

	if payload, err := json.Marshal(resp); err == nil {
		if err := s.cache.Set(ctx, key, payload, s.opts.ScanTTL); err != nil {
			s.logger.Warn("caching scan response failed", slog.Any("error", err))
		}
	}

	return resp, nil
}

// GetRelationship returns the aligned day-by-day series behind one metric
// pair, using the lag that maximises the correlation strength. It returns
// nil when the pair never reaches the minimum overlap.
func (s *InsightService) GetRelationship(ctx context.Context, xKey, yKey string, days int) (*models.MetricRelationship, error) {
	if days <= 0 {
		days = s.opts.DefaultScanDays
	}
	rel, err := s.engine.AnalyzeRelationship(ctx, xKey, yKey, days)
	if err != nil {
		return nil, err
	}
	return rel, nil
}

// resolveMetrics maps request keys onto catalog metrics, falling back to the
// full catalog when no keys were named.
func (s *InsightService) resolveMetrics(keys []string) ([]models.DataMetric, error) {
	if len(keys) == 0 {
		return s.catalog.List(), nil
	}
	resolved := make([]models.DataMetric, 0, len(keys))
	for _, key := range keys {
		metric, ok := s.catalog.Get(key)
		if !ok {
			return nil, fmt.Errorf("%w: %s", catalog.ErrUnknownMetric, key)
		}
		resolved = append(resolved, metric)
	}
	return resolved, nil
}

// scanCacheKey derives a stable key from everything that shapes a scan's
// output: metric set, trailing window anchored to today, lag offsets, and
// the minimum sample size.
func (s *InsightService) scanCacheKey(scanMetrics []models.DataMetric, minimumDays int) string {
	keys := make([]string, 0, len(scanMetrics))
	for _, m := range scanMetrics {
		keys = append(keys, m.Key)
	}
	sort.Strings(keys)

	opts := s.engine.Options()
	lags := make([]string, 0, len(opts.LagOffsets))
	for _, lag := range opts.LagOffsets {
		lags = append(lags, fmt.Sprintf("%d", lag))
	}

	return fmt.Sprintf("scan:v1:%s:%s:d%d:l%s:m%d",
		strings.Join(keys, ","),
		utils.FormatDay(utils.DayOf(s.now())),
		minimumDays,
		strings.Join(lags, ","),
		opts.MinimumSampleSize,
	)
}
