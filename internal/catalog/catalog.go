package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/insightstack/insight-engine/internal/models"
)

// ValueProvider resolves one metric observation for a calendar day. The
// boolean is false when no observation exists for that day, which is a
// normal outcome. A non-nil error means the backing source failed and
// should wrap ErrProviderUnavailable.
//
// Providers must be pure with respect to (metric, day) for the duration of
// one engine run.
type ValueProvider func(ctx context.Context, day time.Time) (float64, bool, error)

// ErrProviderUnavailable signals that a value provider failed irrecoverably
// (storage unreachable, corrupt record) rather than simply having no data.
var ErrProviderUnavailable = errors.New("value provider unavailable")

// ErrUnknownMetric signals a lookup for a metric key that was never registered.
var ErrUnknownMetric = errors.New("unknown metric")

// DuplicateMetricError reports an attempt to register a metric key twice.
type DuplicateMetricError struct {
	Key string
}

func (e *DuplicateMetricError) Error() string {
	return fmt.Sprintf("metric %q already registered", e.Key)
}

type entry struct {
	metric   models.DataMetric
	provider ValueProvider
}

// Catalog is the process-lifetime registry of known metrics and the value
// providers bound to them at registration time.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// New creates an empty Catalog.
func New() *Catalog {
	return &Catalog{entries: make(map[string]entry)}
}

// Register binds a metric to its value provider. Fails with
// DuplicateMetricError when the key already exists.
func (c *Catalog) Register(metric models.DataMetric, provider ValueProvider) error {
	if metric.Key == "" {
		return fmt.Errorf("metric key is required")
	}
	if provider == nil {
		return fmt.Errorf("metric %q: value provider is required", metric.Key)
	}
	if !models.ValidCategory(metric.Category) {
		return fmt.Errorf("metric %q: unknown category %q", metric.Key, metric.Category)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[metric.Key]; exists {
		return &DuplicateMetricError{Key: metric.Key}
	}
	c.entries[metric.Key] = entry{metric: metric, provider: provider}
	return nil
}

// List returns every registered metric, sorted by key so callers get a
// deterministic enumeration.
func (c *Catalog) List() []models.DataMetric {
	c.mu.RLock()
	defer c.mu.RUnlock()

	metrics := make([]models.DataMetric, 0, len(c.entries))
	for _, e := range c.entries {
		metrics = append(metrics, e.metric)
	}
	sort.Slice(metrics, func(i, j int) bool { return metrics[i].Key < metrics[j].Key })
	return metrics
}

// Get returns the metric registered under key.
func (c *Catalog) Get(key string) (models.DataMetric, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e.metric, ok
}

// Provider returns the value provider bound to key.
func (c *Catalog) Provider(key string) (ValueProvider, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, key)
	}
	return e.provider, nil
}

// ValueFor resolves one observation. The boolean is false when the metric
// has no value for that day.
func (c *Catalog) ValueFor(ctx context.Context, key string, day time.Time) (float64, bool, error) {
	provider, err := c.Provider(key)
	if err != nil {
		return 0, false, err
	}
	return provider(ctx, day)
}
