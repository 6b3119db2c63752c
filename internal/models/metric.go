package models

// MetricCategory groups metrics by the life domain they describe.
type MetricCategory string

const (
	CategoryHealth       MetricCategory = "health"
	CategorySleep        MetricCategory = "sleep"
	CategoryActivity     MetricCategory = "activity"
	CategoryPhoneUsage   MetricCategory = "phoneUsage"
	CategoryMood         MetricCategory = "mood"
	CategoryProductivity MetricCategory = "productivity"
)

// DataMetric identifies a registered metric. Immutable after registration.
type DataMetric struct {
	Key         string
	DisplayName string
	Category    MetricCategory
	Unit        string
}

// ValidCategory reports whether the category is one of the known domains.
func ValidCategory(c MetricCategory) bool {
	switch c {
	case CategoryHealth, CategorySleep, CategoryActivity, CategoryPhoneUsage, CategoryMood, CategoryProductivity:
		return true
	}
	return false
}
