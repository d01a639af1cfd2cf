package models

import (
	"fmt"
	"math"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Alert types
const (
	AlertTypeUpper = "upper"
	AlertTypeLower = "lower"
)

// Alert frequencies (throttle classes)
const (
	FrequencyOnce   = "once"
	FrequencyMinute = "minute"
	FrequencyHourly = "hourly"
	FrequencyDaily  = "daily"
)

// Alert represents a user-owned price alert rule
type Alert struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID          string             `bson:"userId" json:"user_id"`
	Symbol          string             `bson:"symbol" json:"symbol"`
	Company         string             `bson:"company" json:"company"`
	AlertName       string             `bson:"alertName" json:"alert_name"`
	AlertType       string             `bson:"alertType" json:"alert_type"` // upper, lower
	Threshold       float64            `bson:"threshold" json:"threshold"`
	Frequency       string             `bson:"frequency" json:"frequency"` // once, minute, hourly, daily
	IsActive        bool               `bson:"isActive" json:"is_active"`
	LastTriggeredAt *time.Time         `bson:"lastTriggeredAt" json:"last_triggered_at"`
	CreatedAt       time.Time          `bson:"createdAt" json:"created_at"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updated_at"`
}

// ValidAlertType reports whether t is a recognized alert type
func ValidAlertType(t string) bool {
	return t == AlertTypeUpper || t == AlertTypeLower
}

// ValidFrequency reports whether f is a recognized throttle class
func ValidFrequency(f string) bool {
	switch f {
	case FrequencyOnce, FrequencyMinute, FrequencyHourly, FrequencyDaily:
		return true
	}
	return false
}

// NormalizeAlert validates and normalizes alert fields before persistence.
// Symbol is uppercased, company and alert name are trimmed and capped at 100
// characters, and an empty frequency defaults to daily.
func NormalizeAlert(a *Alert) error {
	a.Symbol = strings.ToUpper(strings.TrimSpace(a.Symbol))
	if a.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if !ValidAlertType(a.AlertType) {
		return fmt.Errorf("alert type must be %q or %q", AlertTypeUpper, AlertTypeLower)
	}
	if a.Threshold <= 0 || math.IsNaN(a.Threshold) || math.IsInf(a.Threshold, 0) {
		return fmt.Errorf("threshold must be a positive number")
	}
	if a.Frequency == "" {
		a.Frequency = FrequencyDaily
	}
	if !ValidFrequency(a.Frequency) {
		return fmt.Errorf("frequency must be one of once, minute, hourly, daily")
	}
	a.Company = truncate(strings.TrimSpace(a.Company), 100)
	a.AlertName = truncate(strings.TrimSpace(a.AlertName), 100)
	return nil
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
