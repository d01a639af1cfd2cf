// Package alerting implements the price alert evaluation and trigger engine.
// A monitoring cycle loads every active alert, fetches one quote per symbol,
// decides which alerts crossed their threshold, and fires each qualifying
// alert exactly once by winning an atomic claim in the store before anything
// is dispatched.
package alerting

import (
	"time"

	"marketgist_backend/models"
)

// Throttle windows per frequency class
const (
	MinuteWindow = 60 * time.Second
	HourlyWindow = 60 * time.Minute
	DailyWindow  = 24 * time.Hour
)

// ShouldTrigger reports whether the alert condition is met at the current
// price. Upper alerts fire at or above the threshold, lower alerts at or
// below it; both bounds are inclusive.
func ShouldTrigger(alertType string, threshold, currentPrice float64) bool {
	if alertType == models.AlertTypeUpper {
		return currentPrice >= threshold
	}
	return currentPrice <= threshold
}

// CanTrigger reports whether the throttle class permits a new trigger now.
// An alert that has never triggered may always fire. A "once" alert that has
// triggered before may never fire again. Unrecognized frequency values fail
// closed to the daily window.
func CanTrigger(frequency string, lastTriggeredAt *time.Time, now time.Time) bool {
	if lastTriggeredAt == nil {
		return true
	}

	elapsed := now.Sub(*lastTriggeredAt)
	switch frequency {
	case models.FrequencyOnce:
		return false
	case models.FrequencyMinute:
		return elapsed >= MinuteWindow
	case models.FrequencyHourly:
		return elapsed >= HourlyWindow
	default:
		return elapsed >= DailyWindow
	}
}
