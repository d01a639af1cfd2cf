package models

import "time"

// Quote is a point-in-time price for a symbol. Quotes are fetched fresh each
// monitoring cycle and never cached by the alert engine.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// TriggerRecord describes one alert that was claimed and dispatched in a cycle
type TriggerRecord struct {
	AlertID      string  `json:"alert_id"`
	UserID       string  `json:"user_id"`
	Symbol       string  `json:"symbol"`
	Company      string  `json:"company"`
	AlertType    string  `json:"alert_type"`
	Threshold    float64 `json:"threshold"`
	CurrentPrice float64 `json:"current_price"`
}

// TriggerOutcome is the aggregated result of one monitoring cycle
type TriggerOutcome struct {
	Triggered []TriggerRecord `json:"triggered"`
	Errors    []string        `json:"errors"`
}
