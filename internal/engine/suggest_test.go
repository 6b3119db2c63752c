package engine

import (
	"strings"
	"testing"

	"github.com/insightstack/insight-engine/internal/models"
)

func resultWith(id string, coefficient, confidence float64) models.CorrelationResult {
	return models.CorrelationResult{
		ID:           id,
		MetricX:      models.DataMetric{Key: "sleepHours", DisplayName: "Sleep Hours", Category: models.CategorySleep},
		MetricY:      models.DataMetric{Key: "focusMinutes", DisplayName: "Focus Minutes", Category: models.CategoryProductivity},
		Coefficient:  coefficient,
		Confidence:   confidence,
		SampleSize:   14,
		Significance: SignificanceFor(coefficient),
	}
}

func TestGenerateSuggestionsGatesOnSignificance(t *testing.T) {
	results := []models.CorrelationResult{
		resultWith("strong", 0.85, 0.9),
		resultWith("moderate", 0.5, 0.6),
		resultWith("weak", 0.3, 0.6),
		resultWith("none", 0.1, 0.9),
	}

	suggestions := GenerateSuggestions(results)
	if len(suggestions) != 2 {
		t.Fatalf("expected 2 suggestions, got %d", len(suggestions))
	}
	for _, s := range suggestions {
		if s.ResultID == "weak" || s.ResultID == "none" {
			t.Fatalf("weak/none result produced a suggestion: %+v", s)
		}
	}
}

func TestGenerateSuggestionsPriorityOrdering(t *testing.T) {
	results := []models.CorrelationResult{
		resultWith("a", 0.45, 0.4),
		resultWith("b", 0.95, 0.95),
		resultWith("c", -0.75, 0.8),
	}

	suggestions := GenerateSuggestions(results)
	if len(suggestions) != 3 {
		t.Fatalf("expected 3 suggestions, got %d", len(suggestions))
	}
	for i := 1; i < len(suggestions); i++ {
		if suggestions[i-1].Priority < suggestions[i].Priority {
			t.Fatalf("priorities not descending: %d before %d", suggestions[i-1].Priority, suggestions[i].Priority)
		}
	}
	if suggestions[0].ResultID != "b" {
		t.Fatalf("expected strongest result first, got %s", suggestions[0].ResultID)
	}
}

func TestPriorityForBoundsAndMonotonicity(t *testing.T) {
	if got := PriorityFor(1, 1); got != 5 {
		t.Fatalf("expected priority 5 for perfect evidence, got %d", got)
	}
	if got := PriorityFor(0.4, 0.05); got != 1 {
		t.Fatalf("expected floor priority 1, got %d", got)
	}

	prev := 0
	for _, strength := range []float64{0.1, 0.25, 0.4, 0.55, 0.7, 0.85, 1.0} {
		got := PriorityFor(strength, strength)
		if got < prev {
			t.Fatalf("priority fell from %d to %d at strength %v", prev, got, strength)
		}
		if got < 1 || got > 5 {
			t.Fatalf("priority %d outside [1,5]", got)
		}
		prev = got
	}
}

func TestSuggestionTextNamesBothMetrics(t *testing.T) {
	suggestions := GenerateSuggestions([]models.CorrelationResult{resultWith("r", -0.8, 0.7)})
	if len(suggestions) != 1 {
		t.Fatalf("expected one suggestion, got %d", len(suggestions))
	}
	s := suggestions[0]
	if s.Insight == "" || s.SuggestedChange == "" || s.ExpectedImpact == "" {
		t.Fatalf("expected populated suggestion text: %+v", s)
	}
	for _, text := range []string{s.Insight, s.ExpectedImpact} {
		if !containsAll(text, "Sleep Hours", "Focus Minutes") {
			t.Fatalf("text does not name both metrics: %q", text)
		}
	}
	if s.ID == "" {
		t.Fatal("expected generated suggestion id")
	}
}

func containsAll(text string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(text, sub) {
			return false
		}
	}
	return true
}
