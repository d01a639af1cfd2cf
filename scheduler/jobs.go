package scheduler

import (
	"context"
	"log"
	"time"

	"marketgist_backend/services/alerting"

	"github.com/go-co-op/gocron"
)

// Scheduler manages scheduled jobs
type Scheduler struct {
	cron          *gocron.Scheduler
	monitor       *alerting.Monitor
	checkInterval time.Duration
}

// NewScheduler creates a new scheduler instance. checkMinutes is the alert
// monitoring interval.
func NewScheduler(monitor *alerting.Monitor, checkMinutes int) *Scheduler {
	if checkMinutes <= 0 {
		checkMinutes = 2
	}
	return &Scheduler{
		cron:          gocron.NewScheduler(time.UTC),
		monitor:       monitor,
		checkInterval: time.Duration(checkMinutes) * time.Minute,
	}
}

// Start starts all scheduled jobs
func (s *Scheduler) Start() {
	log.Println("Starting scheduler...")

	// Check and trigger price alerts on a fixed interval. Cycles may overlap
	// with cycles of other instances; the store's claim keeps them safe.
	s.cron.Every(s.checkInterval).Do(func() {
		s.checkAlerts()
	})

	s.cron.StartAsync()
	log.Printf("Scheduler started successfully (alert check every %s)", s.checkInterval)
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("Scheduler stopped")
}

// checkAlerts runs one alert monitoring cycle. The cycle is bounded by one
// scheduler interval so a stuck collaborator call cannot stack invocations
// indefinitely.
func (s *Scheduler) checkAlerts() {
	ctx, cancel := context.WithTimeout(context.Background(), s.checkInterval)
	defer cancel()

	started := time.Now()
	outcome, err := s.monitor.RunCycle(ctx)
	if err != nil {
		log.Printf("Error checking alerts: %v", err)
		return
	}

	log.Printf("Checked alerts in %s: %d triggered, %d errors",
		time.Since(started).Round(time.Millisecond), len(outcome.Triggered), len(outcome.Errors))
}
