package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/insightstack/insight-engine/internal/catalog"
	"github.com/insightstack/insight-engine/internal/models"
)

type stubService struct {
	metrics      []models.DataMetric
	scanResponse *models.ScanResponse
	scanErr      error
	relationship *models.MetricRelationship
	relErr       error

	lastScanRequest models.ScanRequest
	lastRelDays     int
}

func (s *stubService) ListMetrics(context.Context) ([]models.DataMetric, error) {
	return s.metrics, nil
}

func (s *stubService) RunScan(_ context.Context, req models.ScanRequest) (*models.ScanResponse, error) {
	s.lastScanRequest = req
	return s.scanResponse, s.scanErr
}

func (s *stubService) GetRelationship(_ context.Context, xKey, yKey string, days int) (*models.MetricRelationship, error) {
	s.lastRelDays = days
	return s.relationship, s.relErr
}

func testRouter(stub *stubService) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newRouter(logger, stub)
}

func sleepMetric() models.DataMetric {
	return models.DataMetric{Key: "sleepHours", DisplayName: "Sleep Hours", Category: models.CategorySleep, Unit: "hours"}
}

func focusMetric() models.DataMetric {
	return models.DataMetric{Key: "focusMinutes", DisplayName: "Focus Minutes", Category: models.CategoryProductivity, Unit: "minutes"}
}

func TestHealthEndpoint(t *testing.T) {
	router := testRouter(&stubService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestListMetricsEndpoint(t *testing.T) {
	router := testRouter(&stubService{metrics: []models.DataMetric{focusMetric(), sleepMetric()}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var got []metricDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	require.Equal(t, "focusMinutes", got[0].Key)
	require.Equal(t, "productivity", got[0].Category)
}

func TestScanEndpoint(t *testing.T) {
	stub := &stubService{
		scanResponse: &models.ScanResponse{
			Results: []models.CorrelationResult{{
				ID:           "res-1",
				MetricX:      sleepMetric(),
				MetricY:      focusMetric(),
				Coefficient:  0.93,
				Confidence:   0.9,
				SampleSize:   7,
				Significance: models.SignificanceStrong,
			}},
			Suggestions: []models.CorrelationSuggestion{{ID: "sug-1", ResultID: "res-1", Priority: 5}},
			Failures:    []models.PairError{{MetricX: "a", MetricY: "b", Reason: "provider down"}},
			GeneratedAt: time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC),
		},
	}
	router := testRouter(stub)

	body := bytes.NewBufferString(`{"metricKeys":["sleepHours","focusMinutes"],"minimumDays":7}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/correlations/scan", body))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"sleepHours", "focusMinutes"}, stub.lastScanRequest.MetricKeys)
	require.Equal(t, 7, stub.lastScanRequest.MinimumDays)

	var got scanResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Results, 1)
	require.Equal(t, "strong", got.Results[0].Significance)
	require.Len(t, got.Suggestions, 1)
	require.Equal(t, 5, got.Suggestions[0].Priority)
	require.Len(t, got.Failures, 1)
	require.Equal(t, "provider down", got.Failures[0].Reason)
}

func TestScanEndpointEmptyBody(t *testing.T) {
	stub := &stubService{scanResponse: &models.ScanResponse{}}
	router := testRouter(stub)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/correlations/scan", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, stub.lastScanRequest.MetricKeys)
}

func TestScanEndpointErrors(t *testing.T) {
	t.Run("malformed body", func(t *testing.T) {
		router := testRouter(&stubService{})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/correlations/scan", strings.NewReader("{not json")))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown metric", func(t *testing.T) {
		stub := &stubService{scanErr: fmt.Errorf("%w: bogus", catalog.ErrUnknownMetric)}
		router := testRouter(stub)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/correlations/scan", strings.NewReader(`{"metricKeys":["bogus"]}`)))
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("internal failure", func(t *testing.T) {
		stub := &stubService{scanErr: fmt.Errorf("store offline")}
		router := testRouter(stub)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/correlations/scan", strings.NewReader(`{}`)))
		require.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestRelationshipEndpoint(t *testing.T) {
	stub := &stubService{
		relationship: &models.MetricRelationship{
			MetricX: sleepMetric(),
			MetricY: focusMetric(),
			Lag:     2,
			Points: []models.DataPoint{
				{Day: time.Date(2025, 6, 23, 0, 0, 0, 0, time.UTC), ValueX: 7, ValueY: 120},
			},
		},
	}
	router := testRouter(stub)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/relationships/sleepHours/focusMinutes?days=14", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 14, stub.lastRelDays)

	var got relationshipDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, 2, got.Lag)
	require.Len(t, got.Points, 1)
	require.Equal(t, "2025-06-23", got.Points[0].Day)
}

func TestRelationshipEndpointErrors(t *testing.T) {
	t.Run("bad days", func(t *testing.T) {
		router := testRouter(&stubService{})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/relationships/a/b?days=soon", nil))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown metric", func(t *testing.T) {
		stub := &stubService{relErr: fmt.Errorf("%w: bogus", catalog.ErrUnknownMetric)}
		router := testRouter(stub)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/relationships/bogus/focusMinutes", nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("insufficient data", func(t *testing.T) {
		router := testRouter(&stubService{})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/relationships/sleepHours/focusMinutes", nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestSuggestionsEndpoint(t *testing.T) {
	router := testRouter(&stubService{})

	payload := []correlationResultDTO{{
		ID:           "res-1",
		MetricX:      metricDTO{Key: "sleepHours", DisplayName: "Sleep Hours", Category: "sleep"},
		MetricY:      metricDTO{Key: "focusMinutes", DisplayName: "Focus Minutes", Category: "productivity"},
		Coefficient:  0.95,
		Confidence:   1,
		SampleSize:   30,
		Significance: "strong",
	}}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/suggestions", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)

	var got []suggestionDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	require.Equal(t, "res-1", got[0].ResultID)
	require.Equal(t, 5, got[0].Priority)
	require.Contains(t, got[0].Insight, "Sleep Hours")
}
