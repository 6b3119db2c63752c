// Package store persists raw daily metric observations. The correlation
// engine never touches it directly; it only sees the value providers this
// package hands out.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/insightstack/insight-engine/internal/catalog"
	"github.com/insightstack/insight-engine/internal/models"
	"github.com/insightstack/insight-engine/internal/utils"
)

const schema = `
CREATE TABLE IF NOT EXISTS observations (
	metric_key TEXT NOT NULL,
	day        TEXT NOT NULL,
	value      REAL NOT NULL,
	PRIMARY KEY (metric_key, day)
);
CREATE INDEX IF NOT EXISTS idx_observations_day ON observations (day);
`

// ObservationStore is a SQLite-backed day/value store for metric samples.
type ObservationStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the observation database at path. Use
// ":memory:" for an ephemeral store.
func Open(path string) (*ObservationStore, error) {
	if path == "" {
		return nil, fmt.Errorf("store: path is required")
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, utils.NewAppError("store.Open", fmt.Sprintf("open %s", path), err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, utils.NewAppError("store.Open", "apply schema", err)
	}
	return &ObservationStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *ObservationStore) Close() error {
	return s.db.Close()
}

// Put records (or replaces) one observation for a metric on a calendar day.
func (s *ObservationStore) Put(ctx context.Context, metricKey string, day time.Time, value float64) error {
	if metricKey == "" {
		return fmt.Errorf("store: metric key is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO observations (metric_key, day, value) VALUES (?, ?, ?)
		 ON CONFLICT (metric_key, day) DO UPDATE SET value = excluded.value`,
		metricKey, utils.FormatDay(day), value)
	if err != nil {
		return utils.NewAppError("store.Put", fmt.Sprintf("%s on %s", metricKey, utils.FormatDay(day)), err)
	}
	return nil
}

// ValueOn returns the observation for a metric on a day; the boolean is
// false when none was recorded.
func (s *ObservationStore) ValueOn(ctx context.Context, metricKey string, day time.Time) (float64, bool, error) {
	var value float64
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM observations WHERE metric_key = ? AND day = ?`,
		metricKey, utils.FormatDay(day)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%w: query %s on %s: %v",
			catalog.ErrProviderUnavailable, metricKey, utils.FormatDay(day), err)
	}
	return value, true, nil
}

// Provider returns a catalog.ValueProvider reading this metric's
// observations. A missing day is a normal absent value; database failures
// surface as ErrProviderUnavailable.
func (s *ObservationStore) Provider(metricKey string) catalog.ValueProvider {
	return func(ctx context.Context, day time.Time) (float64, bool, error) {
		return s.ValueOn(ctx, metricKey, day)
	}
}

// RegisterMetrics registers each metric in the catalog, bound to a provider
// backed by this store.
func (s *ObservationStore) RegisterMetrics(cat *catalog.Catalog, metrics []models.DataMetric) error {
	for _, metric := range metrics {
		if err := cat.Register(metric, s.Provider(metric.Key)); err != nil {
			return fmt.Errorf("store: register %s: %w", metric.Key, err)
		}
	}
	return nil
}
