package alerting

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"marketgist_backend/models"
)

func newTestMonitor(store *fakeStore, quotes *fakeQuotes, users *fakeUsers, emitter *fakeEmitter, notifications *fakeNotifications) *Monitor {
	return NewMonitor(store, quotes, users, NewDispatcher(emitter, notifications), 10)
}

func TestRunCycleEndToEnd(t *testing.T) {
	// Three AAPL alerts: only the upper/140 one should fire at price 145
	a := newTestAlert("user-1", "AAPL", models.AlertTypeUpper, 140, models.FrequencyDaily, nil)
	b := newTestAlert("user-1", "AAPL", models.AlertTypeLower, 100, models.FrequencyDaily, nil)
	c := newTestAlert("user-1", "AAPL", models.AlertTypeUpper, 200, models.FrequencyDaily, nil)

	store := &fakeStore{alerts: []models.Alert{a, b, c}}
	quotes := &fakeQuotes{prices: map[string]float64{"AAPL": 145}}
	users := &fakeUsers{contacts: map[string]string{"user-1": "user@example.com"}}
	emitter := &fakeEmitter{}
	notifications := &fakeNotifications{}

	outcome, err := newTestMonitor(store, quotes, users, emitter, notifications).RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle returned error: %v", err)
	}

	if len(outcome.Errors) != 0 {
		t.Errorf("expected no errors, got %v", outcome.Errors)
	}
	if len(outcome.Triggered) != 1 {
		t.Fatalf("expected 1 triggered alert, got %d", len(outcome.Triggered))
	}
	rec := outcome.Triggered[0]
	if rec.AlertID != a.ID.Hex() || rec.CurrentPrice != 145 || rec.Threshold != 140 {
		t.Errorf("unexpected trigger record %+v", rec)
	}

	// A is consumed, B and C remain completely untouched
	if got := store.get(a.ID); got.LastTriggeredAt == nil || !got.IsActive {
		t.Errorf("alert A should be triggered and still active, got %+v", got)
	}
	for _, untouched := range []models.Alert{b, c} {
		got := store.get(untouched.ID)
		if got.LastTriggeredAt != nil || !got.IsActive {
			t.Errorf("alert %s should be unmodified, got %+v", untouched.ID.Hex(), got)
		}
	}

	if len(emitter.events) != 1 || len(notifications.created) != 1 {
		t.Errorf("expected 1 event and 1 notification, got %d and %d",
			len(emitter.events), len(notifications.created))
	}
	if quotes.calls["AAPL"] != 1 {
		t.Errorf("expected one quote fetch for AAPL, got %d", quotes.calls["AAPL"])
	}
}

func TestOnceAlertFiresAtMostOnce(t *testing.T) {
	alert := newTestAlert("user-1", "TSLA", models.AlertTypeUpper, 300, models.FrequencyOnce, nil)

	store := &fakeStore{alerts: []models.Alert{alert}}
	quotes := &fakeQuotes{prices: map[string]float64{"TSLA": 310}}
	users := &fakeUsers{contacts: map[string]string{"user-1": "user@example.com"}}
	emitter := &fakeEmitter{}
	notifications := &fakeNotifications{}
	monitor := newTestMonitor(store, quotes, users, emitter, notifications)

	for cycle := 0; cycle < 3; cycle++ {
		if _, err := monitor.RunCycle(context.Background()); err != nil {
			t.Fatalf("cycle %d returned error: %v", cycle, err)
		}
	}

	if len(emitter.events) != 1 {
		t.Errorf("once alert fired %d times, expected exactly 1", len(emitter.events))
	}
	got := store.get(alert.ID)
	if got.IsActive {
		t.Error("once alert should be retired after firing")
	}
	if got.LastTriggeredAt == nil {
		t.Error("once alert should record its trigger time")
	}
}

func TestConcurrentClaimsYieldOneWinner(t *testing.T) {
	alert := newTestAlert("user-1", "NVDA", models.AlertTypeUpper, 500, models.FrequencyDaily, nil)
	store := &fakeStore{alerts: []models.Alert{alert}}

	const workers = 32
	now := time.Now()
	results := make([]bool, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			claimed, err := store.Claim(context.Background(), alert.ID, true, nil, now, false)
			if err != nil {
				t.Errorf("claim error: %v", err)
				return
			}
			results[i] = claimed
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, claimed := range results {
		if claimed {
			winners++
		}
	}
	if winners != 1 {
		t.Errorf("expected exactly 1 claim winner, got %d of %d", winners, workers)
	}
}

func TestOverlappingCyclesTriggerOnce(t *testing.T) {
	alert := newTestAlert("user-1", "MSFT", models.AlertTypeUpper, 400, models.FrequencyDaily, nil)
	store := &fakeStore{alerts: []models.Alert{alert}}
	quotes := &fakeQuotes{prices: map[string]float64{"MSFT": 410}}
	users := &fakeUsers{contacts: map[string]string{"user-1": "user@example.com"}}
	emitter := &fakeEmitter{}
	notifications := &fakeNotifications{}
	monitor := newTestMonitor(store, quotes, users, emitter, notifications)

	const cycles = 8
	var wg sync.WaitGroup
	for i := 0; i < cycles; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := monitor.RunCycle(context.Background()); err != nil {
				t.Errorf("RunCycle error: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(emitter.events) != 1 {
		t.Errorf("overlapping cycles produced %d events, expected exactly 1", len(emitter.events))
	}
}

func TestQuoteFailureIsIsolatedPerSymbol(t *testing.T) {
	a := newTestAlert("user-1", "AAPL", models.AlertTypeUpper, 140, models.FrequencyDaily, nil)
	b := newTestAlert("user-1", "GOOG", models.AlertTypeUpper, 150, models.FrequencyDaily, nil)

	store := &fakeStore{alerts: []models.Alert{a, b}}
	quotes := &fakeQuotes{
		prices: map[string]float64{"GOOG": 160},
		errs:   map[string]error{"AAPL": errors.New("provider timeout")},
	}
	users := &fakeUsers{contacts: map[string]string{"user-1": "user@example.com"}}
	emitter := &fakeEmitter{}
	notifications := &fakeNotifications{}

	outcome, err := newTestMonitor(store, quotes, users, emitter, notifications).RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle returned error: %v", err)
	}

	if len(outcome.Triggered) != 1 || outcome.Triggered[0].Symbol != "GOOG" {
		t.Errorf("expected GOOG to still trigger, got %+v", outcome.Triggered)
	}
	if len(outcome.Errors) != 1 || !strings.Contains(outcome.Errors[0], "AAPL") {
		t.Errorf("expected one AAPL error, got %v", outcome.Errors)
	}
	// The failed symbol's alert is left untouched for the next cycle
	if got := store.get(a.ID); got.LastTriggeredAt != nil {
		t.Errorf("AAPL alert should be unmodified, got %+v", got)
	}
}

func TestNonFinitePriceSkipsSymbol(t *testing.T) {
	alert := newTestAlert("user-1", "AAPL", models.AlertTypeUpper, 140, models.FrequencyDaily, nil)
	store := &fakeStore{alerts: []models.Alert{alert}}
	quotes := &fakeQuotes{prices: map[string]float64{"AAPL": math.NaN()}}
	users := &fakeUsers{contacts: map[string]string{"user-1": "user@example.com"}}
	emitter := &fakeEmitter{}
	notifications := &fakeNotifications{}

	outcome, err := newTestMonitor(store, quotes, users, emitter, notifications).RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle returned error: %v", err)
	}
	if len(outcome.Triggered) != 0 {
		t.Errorf("expected no triggers on non-finite price, got %+v", outcome.Triggered)
	}
	if len(outcome.Errors) != 1 || !strings.Contains(outcome.Errors[0], "non-finite") {
		t.Errorf("expected a non-finite price error, got %v", outcome.Errors)
	}
}

func TestStoreFailureAbortsCycle(t *testing.T) {
	store := &fakeStore{listErr: errors.New("connection refused")}
	quotes := &fakeQuotes{}
	users := &fakeUsers{}
	outcome, err := newTestMonitor(store, quotes, users, &fakeEmitter{}, &fakeNotifications{}).RunCycle(context.Background())
	if err == nil {
		t.Fatal("expected error when listing alerts fails")
	}
	if outcome != nil {
		t.Errorf("expected nil outcome on fatal failure, got %+v", outcome)
	}
}

func TestThrottledAlertIsNotClaimed(t *testing.T) {
	recent := time.Now().Add(-1 * time.Hour)
	alert := newTestAlert("user-1", "AAPL", models.AlertTypeUpper, 140, models.FrequencyDaily, &recent)

	store := &fakeStore{alerts: []models.Alert{alert}}
	quotes := &fakeQuotes{prices: map[string]float64{"AAPL": 145}}
	users := &fakeUsers{contacts: map[string]string{"user-1": "user@example.com"}}

	outcome, err := newTestMonitor(store, quotes, users, &fakeEmitter{}, &fakeNotifications{}).RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle returned error: %v", err)
	}
	if len(outcome.Triggered) != 0 || len(outcome.Errors) != 0 {
		t.Errorf("throttled alert should be silently skipped, got %+v", outcome)
	}
	if store.claims != 0 {
		t.Errorf("throttled alert should never reach the claim, got %d claims", store.claims)
	}
	if got := store.get(alert.ID); !got.LastTriggeredAt.Equal(recent) {
		t.Errorf("lastTriggeredAt should be unchanged, got %v", got.LastTriggeredAt)
	}
}

func TestUnknownFrequencyFailsClosed(t *testing.T) {
	recent := time.Now().Add(-2 * time.Hour)
	alert := newTestAlert("user-1", "AAPL", models.AlertTypeUpper, 140, "weekly", &recent)

	store := &fakeStore{alerts: []models.Alert{alert}}
	quotes := &fakeQuotes{prices: map[string]float64{"AAPL": 145}}
	users := &fakeUsers{contacts: map[string]string{"user-1": "user@example.com"}}

	// Two hours since the last trigger clears minute and hourly windows but
	// not the daily one the unknown class must fall back to
	outcome, err := newTestMonitor(store, quotes, users, &fakeEmitter{}, &fakeNotifications{}).RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle returned error: %v", err)
	}
	if len(outcome.Triggered) != 0 {
		t.Errorf("unknown frequency should throttle conservatively, got %+v", outcome.Triggered)
	}

	// A never-triggered alert with an unknown frequency may still fire, and
	// must not be retired as if it were a once alert
	fresh := newTestAlert("user-2", "AAPL", models.AlertTypeUpper, 140, "weekly", nil)
	store2 := &fakeStore{alerts: []models.Alert{fresh}}
	users2 := &fakeUsers{contacts: map[string]string{"user-2": "user2@example.com"}}
	outcome2, err := newTestMonitor(store2, quotes, users2, &fakeEmitter{}, &fakeNotifications{}).RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle returned error: %v", err)
	}
	if len(outcome2.Triggered) != 1 {
		t.Fatalf("never-triggered alert should fire, got %+v", outcome2)
	}
	if got := store2.get(fresh.ID); !got.IsActive {
		t.Error("unknown-frequency alert must not be retired on trigger")
	}
}

func TestUserResolutionFailureConsumesAlert(t *testing.T) {
	alert := newTestAlert("ghost", "AAPL", models.AlertTypeUpper, 140, models.FrequencyDaily, nil)

	store := &fakeStore{alerts: []models.Alert{alert}}
	quotes := &fakeQuotes{prices: map[string]float64{"AAPL": 145}}
	users := &fakeUsers{contacts: map[string]string{}}
	emitter := &fakeEmitter{}

	outcome, err := newTestMonitor(store, quotes, users, emitter, &fakeNotifications{}).RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle returned error: %v", err)
	}

	if len(outcome.Triggered) != 0 {
		t.Errorf("expected no triggered records, got %+v", outcome.Triggered)
	}
	if len(outcome.Errors) != 1 || !strings.Contains(outcome.Errors[0], "ghost") {
		t.Errorf("expected a user resolution error, got %v", outcome.Errors)
	}
	if len(emitter.events) != 0 {
		t.Errorf("expected no events, got %d", len(emitter.events))
	}
	// The claim already committed and is not rolled back; the alert stays
	// consumed even though nothing was delivered
	if got := store.get(alert.ID); got.LastTriggeredAt == nil {
		t.Error("claim should stand after user resolution failure")
	}
}

func TestEmitFailureRecordsErrorWithoutRollback(t *testing.T) {
	alert := newTestAlert("user-1", "AAPL", models.AlertTypeUpper, 140, models.FrequencyDaily, nil)

	store := &fakeStore{alerts: []models.Alert{alert}}
	quotes := &fakeQuotes{prices: map[string]float64{"AAPL": 145}}
	users := &fakeUsers{contacts: map[string]string{"user-1": "user@example.com"}}
	emitter := &fakeEmitter{err: errors.New("pipeline down")}
	notifications := &fakeNotifications{}

	outcome, err := newTestMonitor(store, quotes, users, emitter, notifications).RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle returned error: %v", err)
	}
	if len(outcome.Triggered) != 0 {
		t.Errorf("failed dispatch must not count as triggered, got %+v", outcome.Triggered)
	}
	if len(outcome.Errors) != 1 {
		t.Errorf("expected one dispatch error, got %v", outcome.Errors)
	}
	if got := store.get(alert.ID); got.LastTriggeredAt == nil {
		t.Error("claim should stand after dispatch failure")
	}
	if len(notifications.created) != 0 {
		t.Errorf("expected no notification after emit failure, got %d", len(notifications.created))
	}
}

func TestBatchingBoundsConcurrentFetches(t *testing.T) {
	// 25 symbols with batch width 10 means three sequential batches; verify
	// every symbol is fetched exactly once and all eligible alerts fire
	store := &fakeStore{}
	quotes := &fakeQuotes{prices: map[string]float64{}}
	users := &fakeUsers{contacts: map[string]string{"user-1": "user@example.com"}}
	emitter := &fakeEmitter{}

	symbols := []string{}
	for i := 0; i < 25; i++ {
		symbol := "SYM" + string(rune('A'+i)) // SYMA..SYMY
		symbols = append(symbols, symbol)
		store.alerts = append(store.alerts, newTestAlert("user-1", symbol, models.AlertTypeUpper, 100, models.FrequencyDaily, nil))
		quotes.prices[symbol] = 150
	}

	monitor := NewMonitor(store, quotes, users, NewDispatcher(emitter, &fakeNotifications{}), 10)
	outcome, err := monitor.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle returned error: %v", err)
	}

	if len(outcome.Triggered) != len(symbols) {
		t.Errorf("expected %d triggers, got %d", len(symbols), len(outcome.Triggered))
	}
	for _, symbol := range symbols {
		if quotes.calls[symbol] != 1 {
			t.Errorf("symbol %s fetched %d times, expected 1", symbol, quotes.calls[symbol])
		}
	}
}
