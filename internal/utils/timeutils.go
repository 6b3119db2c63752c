package utils

import (
	"fmt"
	"time"
)

// dayLayout is the canonical storage and wire format for calendar days.
const dayLayout = "2006-01-02"

// DayOf truncates a timestamp to its calendar day in UTC.
func DayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// AddDays shifts a day by n calendar days.
func AddDays(day time.Time, n int) time.Time {
	return day.AddDate(0, 0, n)
}

// FormatDay renders a day as YYYY-MM-DD.
func FormatDay(day time.Time) string {
	return day.UTC().Format(dayLayout)
}

// ParseDay parses a YYYY-MM-DD string into a midnight-UTC day.
func ParseDay(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty day value")
	}
	t, err := time.Parse(dayLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day: %w", err)
	}
	return t.UTC(), nil
}
