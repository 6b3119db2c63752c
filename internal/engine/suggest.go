package engine

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/insightstack/insight-engine/internal/models"
)

// GenerateSuggestions turns moderate and strong correlation results into
// prioritised behavioural suggestions. Weak and trivial results never
// produce one. Output is ordered by priority descending, stable on input
// order for ties, so it inherits the engine's deterministic ranking.
func GenerateSuggestions(results []models.CorrelationResult) []models.CorrelationSuggestion {
	var suggestions []models.CorrelationSuggestion
	for _, result := range results {
		if result.Significance != models.SignificanceStrong && result.Significance != models.SignificanceModerate {
			continue
		}
		suggestions = append(suggestions, buildSuggestion(result))
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Priority > suggestions[j].Priority
	})
	return suggestions
}

// PriorityFor maps correlation strength and confidence onto the 1..5 scale.
func PriorityFor(coefficient, confidence float64) int {
	priority := int(math.Round(1 + 4*confidence*math.Abs(coefficient)))
	if priority < 1 {
		priority = 1
	}
	if priority > 5 {
		priority = 5
	}
	return priority
}

func buildSuggestion(result models.CorrelationResult) models.CorrelationSuggestion {
	positive := result.Coefficient >= 0
	nameX := displayName(result.MetricX)
	nameY := displayName(result.MetricY)

	var insight string
	if positive {
		insight = fmt.Sprintf("When %s goes up, %s typically rises as well.", nameX, nameY)
	} else {
		insight = fmt.Sprintf("When %s goes up, %s typically drops.", nameX, nameY)
	}
	if result.Lag > 0 {
		insight += fmt.Sprintf(" The effect shows up about %s later.", dayPhrase(result.Lag))
	}

	change := suggestedChange(result.MetricX, positive, nameX, nameY)
	impact := fmt.Sprintf("Based on %d days of overlapping data, adjusting %s could noticeably move %s.",
		result.SampleSize, nameX, nameY)

	return models.CorrelationSuggestion{
		ID:              uuid.NewString(),
		ResultID:        result.ID,
		Insight:         insight,
		SuggestedChange: change,
		ExpectedImpact:  impact,
		Priority:        PriorityFor(result.Coefficient, result.Confidence),
	}
}

// suggestedChange templates a behavioural nudge from the driving metric's
// category and the relationship sign.
func suggestedChange(metric models.DataMetric, positive bool, nameX, nameY string) string {
	switch metric.Category {
	case models.CategorySleep:
		if positive {
			return fmt.Sprintf("Protect a consistent bedtime to keep %s up; %s should follow.", nameX, nameY)
		}
		return fmt.Sprintf("Improve %s on days when you need %s to stay low.", nameX, nameY)
	case models.CategoryActivity:
		if positive {
			return fmt.Sprintf("Schedule more %s; the data links it to better %s.", nameX, nameY)
		}
		return fmt.Sprintf("Watch how much %s you log on days %s matters.", nameX, nameY)
	case models.CategoryPhoneUsage:
		if positive {
			return fmt.Sprintf("Note that more %s tracks with more %s.", nameX, nameY)
		}
		return fmt.Sprintf("Cut back on %s to give %s room to recover.", nameX, nameY)
	case models.CategoryMood:
		if positive {
			return fmt.Sprintf("Invest in what lifts %s; %s tends to come along.", nameX, nameY)
		}
		return fmt.Sprintf("On low-%s days, plan lighter %s expectations.", nameX, nameY)
	case models.CategoryProductivity:
		if positive {
			return fmt.Sprintf("Structure your day around %s; it moves with %s.", nameX, nameY)
		}
		return fmt.Sprintf("Balance %s against %s rather than maximising one.", nameX, nameY)
	default:
		if positive {
			return fmt.Sprintf("Experiment with raising %s and watch %s respond.", nameX, nameY)
		}
		return fmt.Sprintf("Experiment with lowering %s and watch %s respond.", nameX, nameY)
	}
}

func dayPhrase(lag int) string {
	if lag == 1 {
		return "a day"
	}
	return fmt.Sprintf("%d days", lag)
}
