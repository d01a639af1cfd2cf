package alerting

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"marketgist_backend/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultBatchSize bounds how many symbols are quoted concurrently
const DefaultBatchSize = 10

// AlertStore is the persistence surface the monitor needs: the active alert
// list and the atomic claim
type AlertStore interface {
	ListActiveAlerts(ctx context.Context) ([]models.Alert, error)
	Claim(ctx context.Context, alertID primitive.ObjectID, expectedActive bool, expectedLast *time.Time, now time.Time, retireIfOnce bool) (bool, error)
}

// QuoteProvider resolves a symbol to its current price
type QuoteProvider interface {
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)
}

// UserDirectory resolves an alert's owner to a contact address
type UserDirectory interface {
	ResolveContact(ctx context.Context, userID string) (string, error)
}

// Monitor runs the alert trigger cycle. Overlapping cycles, including cycles
// in separate processes, need no coordination between themselves; the store's
// claim operation is the only arbiter of which cycle fires a given alert.
type Monitor struct {
	store      AlertStore
	quotes     QuoteProvider
	users      UserDirectory
	dispatcher *Dispatcher
	batchSize  int
}

// NewMonitor creates a monitor. batchSize bounds the number of symbols
// fetched concurrently; values below one fall back to DefaultBatchSize.
func NewMonitor(store AlertStore, quotes QuoteProvider, users UserDirectory, dispatcher *Dispatcher, batchSize int) *Monitor {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Monitor{
		store:      store,
		quotes:     quotes,
		users:      users,
		dispatcher: dispatcher,
		batchSize:  batchSize,
	}
}

// cycleResult aggregates the outcome across concurrent symbol workers
type cycleResult struct {
	mu      sync.Mutex
	outcome models.TriggerOutcome
}

func (r *cycleResult) addTriggered(rec models.TriggerRecord) {
	r.mu.Lock()
	r.outcome.Triggered = append(r.outcome.Triggered, rec)
	r.mu.Unlock()
}

func (r *cycleResult) addError(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("Alert check error: %s", msg)
	r.mu.Lock()
	r.outcome.Errors = append(r.outcome.Errors, msg)
	r.mu.Unlock()
}

// RunCycle executes one full evaluation cycle over all active alerts and
// returns the aggregated outcome. Only a failure to list the active alerts
// aborts the cycle; per-symbol and per-alert failures are isolated and
// recorded in the outcome's error list.
func (m *Monitor) RunCycle(ctx context.Context) (*models.TriggerOutcome, error) {
	alerts, err := m.store.ListActiveAlerts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active alerts: %w", err)
	}

	log.Printf("Checking %d active alerts...", len(alerts))

	// One quote serves every alert on the symbol
	bySymbol := make(map[string][]models.Alert)
	for _, alert := range alerts {
		bySymbol[alert.Symbol] = append(bySymbol[alert.Symbol], alert)
	}
	symbols := make([]string, 0, len(bySymbol))
	for symbol := range bySymbol {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	result := &cycleResult{
		outcome: models.TriggerOutcome{
			Triggered: []models.TriggerRecord{},
			Errors:    []string{},
		},
	}

	// Symbols are processed in fixed-size batches: batches run sequentially,
	// symbols inside a batch concurrently. This caps peak load on the quote
	// provider and the store without serializing the whole cycle.
	for start := 0; start < len(symbols); start += m.batchSize {
		end := start + m.batchSize
		if end > len(symbols) {
			end = len(symbols)
		}

		var wg sync.WaitGroup
		for _, symbol := range symbols[start:end] {
			wg.Add(1)
			go func(symbol string) {
				defer wg.Done()
				m.processSymbol(ctx, symbol, bySymbol[symbol], result)
			}(symbol)
		}
		wg.Wait()
	}

	log.Printf("Alert check complete: %d alerts triggered, %d errors",
		len(result.outcome.Triggered), len(result.outcome.Errors))
	return &result.outcome, nil
}

// processSymbol fetches one quote and walks every alert on the symbol through
// evaluation, throttling, claim and dispatch
func (m *Monitor) processSymbol(ctx context.Context, symbol string, alerts []models.Alert, result *cycleResult) {
	quote, err := m.quotes.GetQuote(ctx, symbol)
	if err != nil {
		result.addError("no price data available for %s: %v", symbol, err)
		return
	}
	if math.IsNaN(quote.Price) || math.IsInf(quote.Price, 0) {
		result.addError("non-finite price for %s, skipping", symbol)
		return
	}
	currentPrice := quote.Price

	for _, alert := range alerts {
		if !ShouldTrigger(alert.AlertType, alert.Threshold, currentPrice) {
			continue
		}

		now := time.Now()
		frequency := alert.Frequency
		if !models.ValidFrequency(frequency) {
			log.Printf("Warning: alert %s has unknown frequency %q, treating as daily", alert.ID.Hex(), frequency)
			frequency = models.FrequencyDaily
		}
		if !CanTrigger(frequency, alert.LastTriggeredAt, now) {
			log.Printf("Alert %s (%s) skipping due to frequency constraint (%s)", alert.AlertName, symbol, frequency)
			continue
		}

		retire := frequency == models.FrequencyOnce
		claimed, err := m.store.Claim(ctx, alert.ID, true, alert.LastTriggeredAt, now, retire)
		if err != nil {
			result.addError("failed to claim alert %s on %s: %v", alert.ID.Hex(), symbol, err)
			continue
		}
		if !claimed {
			// Another cycle or process won the race; not an error
			log.Printf("Alert %s on %s already claimed elsewhere, skipping", alert.ID.Hex(), symbol)
			continue
		}

		log.Printf("Alert triggered: %s - %s threshold %g, current: %g, frequency: %s",
			symbol, alert.AlertType, alert.Threshold, currentPrice, frequency)

		company := alert.Company
		if company == "" {
			company = symbol
		}
		record := models.TriggerRecord{
			AlertID:      alert.ID.Hex(),
			UserID:       alert.UserID,
			Symbol:       symbol,
			Company:      company,
			AlertType:    alert.AlertType,
			Threshold:    alert.Threshold,
			CurrentPrice: currentPrice,
		}

		// The claim already committed; failures past this point leave the
		// alert consumed without rolling anything back.
		recipient, err := m.users.ResolveContact(ctx, alert.UserID)
		if err != nil {
			result.addError("no email found for user %s: %v", alert.UserID, err)
			continue
		}

		if err := m.dispatcher.Dispatch(ctx, record, recipient, now); err != nil {
			result.addError("failed to dispatch alert %s for %s: %v", alert.ID.Hex(), symbol, err)
			continue
		}

		result.addTriggered(record)
	}
}
