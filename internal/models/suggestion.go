package models

// CorrelationSuggestion is an actionable, prioritised insight derived from a
// single CorrelationResult. Priority 5 is the highest.
type CorrelationSuggestion struct {
	ID              string
	ResultID        string
	Insight         string
	SuggestedChange string
	ExpectedImpact  string
	Priority        int
}
