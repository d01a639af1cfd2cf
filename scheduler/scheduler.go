package scheduler

// Package scheduler provides scheduled job management for the MarketGist backend.
// It handles:
// - Periodic price alert monitoring and triggering
//
// The jobs are implemented in jobs.go
