package models

import (
	"time"
)

const periodLayout = "2006-01"

// CurrentPeriod formats now as a "YYYY-MM" period token in UTC.
func CurrentPeriod(now time.Time) string {
	return now.UTC().Format(periodLayout)
}

func ValidPeriod(period string) bool {
	if len(period) != len(periodLayout) {
		return false
	}
	_, err := time.Parse(periodLayout, period)
	return err == nil
}

// ValidSubmissionDate accepts RFC 3339 timestamps and plain dates.
func ValidSubmissionDate(date string) bool {
	if _, err := time.Parse(time.RFC3339, date); err == nil {
		return true
	}
	_, err := time.Parse(time.DateOnly, date)
	return err == nil
}
