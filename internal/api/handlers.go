package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/insightstack/insight-engine/internal/catalog"
	"github.com/insightstack/insight-engine/internal/engine"
	"github.com/insightstack/insight-engine/internal/models"
	"github.com/insightstack/insight-engine/internal/utils"
)

type handlers struct {
	logger  *slog.Logger
	service InsightProvider
}

func newHandlers(logger *slog.Logger, service InsightProvider) *handlers {
	return &handlers{logger: logger, service: service}
}

// Wire representations. The domain models stay transport-agnostic; this
// layer owns the JSON shape.

type metricDTO struct {
	Key         string `json:"key"`
	DisplayName string `json:"displayName"`
	Category    string `json:"category"`
	Unit        string `json:"unit,omitempty"`
}

type scanRequestDTO struct {
	MetricKeys  []string `json:"metricKeys,omitempty"`
	MinimumDays int      `json:"minimumDays,omitempty"`
}

type correlationResultDTO struct {
	ID           string    `json:"id"`
	MetricX      metricDTO `json:"metricX"`
	MetricY      metricDTO `json:"metricY"`
	Coefficient  float64   `json:"coefficient"`
	Confidence   float64   `json:"confidence"`
	SampleSize   int       `json:"sampleSize"`
	Lag          int       `json:"lag"`
	Significance string    `json:"significance"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"createdAt"`
}

type suggestionDTO struct {
	ID              string `json:"id"`
	ResultID        string `json:"resultId"`
	Insight         string `json:"insight"`
	SuggestedChange string `json:"suggestedChange"`
	ExpectedImpact  string `json:"expectedImpact"`
	Priority        int    `json:"priority"`
}

type pairErrorDTO struct {
	MetricX string `json:"metricX"`
	MetricY string `json:"metricY"`
	Reason  string `json:"reason"`
}

type scanResponseDTO struct {
	Results     []correlationResultDTO `json:"results"`
	Suggestions []suggestionDTO        `json:"suggestions"`
	Failures    []pairErrorDTO         `json:"failures"`
	GeneratedAt time.Time              `json:"generatedAt"`
}

type dataPointDTO struct {
	Day    string  `json:"day"`
	ValueX float64 `json:"valueX"`
	ValueY float64 `json:"valueY"`
}

type relationshipDTO struct {
	MetricX metricDTO      `json:"metricX"`
	MetricY metricDTO      `json:"metricY"`
	Lag     int            `json:"lag"`
	Points  []dataPointDTO `json:"points"`
}

type errorDTO struct {
	Error string `json:"error"`
}

func toMetricDTO(m models.DataMetric) metricDTO {
	return metricDTO{
		Key:         m.Key,
		DisplayName: m.DisplayName,
		Category:    string(m.Category),
		Unit:        m.Unit,
	}
}

func fromMetricDTO(d metricDTO) models.DataMetric {
	return models.DataMetric{
		Key:         d.Key,
		DisplayName: d.DisplayName,
		Category:    models.MetricCategory(d.Category),
		Unit:        d.Unit,
	}
}

func toResultDTO(res models.CorrelationResult) correlationResultDTO {
	return correlationResultDTO{
		ID:           res.ID,
		MetricX:      toMetricDTO(res.MetricX),
		MetricY:      toMetricDTO(res.MetricY),
		Coefficient:  res.Coefficient,
		Confidence:   res.Confidence,
		SampleSize:   res.SampleSize,
		Lag:          res.Lag,
		Significance: string(res.Significance),
		Description:  res.Description,
		CreatedAt:    res.CreatedAt,
	}
}

func fromResultDTO(d correlationResultDTO) models.CorrelationResult {
	return models.CorrelationResult{
		ID:           d.ID,
		MetricX:      fromMetricDTO(d.MetricX),
		MetricY:      fromMetricDTO(d.MetricY),
		Coefficient:  d.Coefficient,
		Confidence:   d.Confidence,
		SampleSize:   d.SampleSize,
		Lag:          d.Lag,
		Significance: models.Significance(d.Significance),
		Description:  d.Description,
		CreatedAt:    d.CreatedAt,
	}
}

func toSuggestionDTO(s models.CorrelationSuggestion) suggestionDTO {
	return suggestionDTO{
		ID:              s.ID,
		ResultID:        s.ResultID,
		Insight:         s.Insight,
		SuggestedChange: s.SuggestedChange,
		ExpectedImpact:  s.ExpectedImpact,
		Priority:        s.Priority,
	}
}

func toScanResponseDTO(resp *models.ScanResponse) scanResponseDTO {
	out := scanResponseDTO{
		Results:     make([]correlationResultDTO, 0, len(resp.Results)),
		Suggestions: make([]suggestionDTO, 0, len(resp.Suggestions)),
		Failures:    make([]pairErrorDTO, 0, len(resp.Failures)),
		GeneratedAt: resp.GeneratedAt,
	}
	for _, res := range resp.Results {
		out.Results = append(out.Results, toResultDTO(res))
	}
	for _, sug := range resp.Suggestions {
		out.Suggestions = append(out.Suggestions, toSuggestionDTO(sug))
	}
	for _, failure := range resp.Failures {
		out.Failures = append(out.Failures, pairErrorDTO{
			MetricX: failure.MetricX,
			MetricY: failure.MetricY,
			Reason:  failure.Reason,
		})
	}
	return out
}

func toRelationshipDTO(rel *models.MetricRelationship) relationshipDTO {
	out := relationshipDTO{
		MetricX: toMetricDTO(rel.MetricX),
		MetricY: toMetricDTO(rel.MetricY),
		Lag:     rel.Lag,
		Points:  make([]dataPointDTO, 0, len(rel.Points)),
	}
	for _, point := range rel.Points {
		out.Points = append(out.Points, dataPointDTO{
			Day:    utils.FormatDay(point.Day),
			ValueX: point.ValueX,
			ValueY: point.ValueY,
		})
	}
	return out
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) listMetrics(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListMetrics(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to list metrics")
		return
	}
	out := make([]metricDTO, 0, len(list))
	for _, metric := range list {
		out = append(out, toMetricDTO(metric))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *handlers) runScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequestDTO
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.MinimumDays < 0 {
		h.writeError(w, http.StatusBadRequest, "minimumDays must not be negative")
		return
	}

	resp, err := h.service.RunScan(r.Context(), models.ScanRequest{
		MetricKeys:  req.MetricKeys,
		MinimumDays: req.MinimumDays,
	})
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownMetric) {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("scan request failed", slog.Any("error", err))
		h.writeError(w, http.StatusInternalServerError, "scan failed")
		return
	}
	h.writeJSON(w, http.StatusOK, toScanResponseDTO(resp))
}

func (h *handlers) getRelationship(w http.ResponseWriter, r *http.Request) {
	xKey := chi.URLParam(r, "metricX")
	yKey := chi.URLParam(r, "metricY")

	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.writeError(w, http.StatusBadRequest, "days must be a non-negative integer")
			return
		}
		days = parsed
	}

	rel, err := h.service.GetRelationship(r.Context(), xKey, yKey, days)
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownMetric) {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("relationship request failed", slog.Any("error", err))
		h.writeError(w, http.StatusInternalServerError, "relationship lookup failed")
		return
	}
	if rel == nil {
		h.writeError(w, http.StatusNotFound, "insufficient overlapping data")
		return
	}
	h.writeJSON(w, http.StatusOK, toRelationshipDTO(rel))
}

func (h *handlers) generateSuggestions(w http.ResponseWriter, r *http.Request) {
	var resultDTOs []correlationResultDTO
	if err := json.NewDecoder(r.Body).Decode(&resultDTOs); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	results := make([]models.CorrelationResult, 0, len(resultDTOs))
	for _, d := range resultDTOs {
		results = append(results, fromResultDTO(d))
	}

	suggestions := engine.GenerateSuggestions(results)
	out := make([]suggestionDTO, 0, len(suggestions))
	for _, sug := range suggestions {
		out = append(out, toSuggestionDTO(sug))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *handlers) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("encoding response failed", slog.Any("error", err))
	}
}

func (h *handlers) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorDTO{Error: msg})
}
