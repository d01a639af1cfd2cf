package alerting

import (
	"context"
	"errors"
	"sync"
	"time"

	"marketgist_backend/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeStore is an in-memory AlertStore whose Claim performs the same
// compare-and-set the real store delegates to MongoDB.
type fakeStore struct {
	mu      sync.Mutex
	alerts  []models.Alert
	listErr error
	claims  int // number of Claim calls
}

func (s *fakeStore) ListActiveAlerts(ctx context.Context) ([]models.Alert, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var active []models.Alert
	for _, a := range s.alerts {
		if a.IsActive {
			active = append(active, a)
		}
	}
	return active, nil
}

func (s *fakeStore) Claim(ctx context.Context, alertID primitive.ObjectID, expectedActive bool, expectedLast *time.Time, now time.Time, retireIfOnce bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims++
	for i := range s.alerts {
		a := &s.alerts[i]
		if a.ID != alertID || a.IsActive != expectedActive || !sameTime(a.LastTriggeredAt, expectedLast) {
			continue
		}
		t := now
		a.LastTriggeredAt = &t
		if retireIfOnce {
			a.IsActive = false
		}
		return true, nil
	}
	return false, nil
}

func (s *fakeStore) get(alertID primitive.ObjectID) models.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.alerts {
		if a.ID == alertID {
			return a
		}
	}
	return models.Alert{}
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// fakeQuotes serves canned prices per symbol
type fakeQuotes struct {
	prices map[string]float64
	errs   map[string]error
	mu     sync.Mutex
	calls  map[string]int
}

func (q *fakeQuotes) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	q.mu.Lock()
	if q.calls == nil {
		q.calls = make(map[string]int)
	}
	q.calls[symbol]++
	q.mu.Unlock()

	if err, ok := q.errs[symbol]; ok {
		return nil, err
	}
	price, ok := q.prices[symbol]
	if !ok {
		return nil, errors.New("unknown symbol")
	}
	return &models.Quote{Symbol: symbol, Price: price, Timestamp: time.Now()}, nil
}

// fakeUsers maps user ids to contact emails
type fakeUsers struct {
	contacts map[string]string
}

func (u *fakeUsers) ResolveContact(ctx context.Context, userID string) (string, error) {
	email, ok := u.contacts[userID]
	if !ok {
		return "", errors.New("no contact address found for user")
	}
	return email, nil
}

// fakeEmitter records emitted events
type fakeEmitter struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (e *fakeEmitter) Emit(ctx context.Context, event Event) error {
	if e.err != nil {
		return e.err
	}
	e.mu.Lock()
	e.events = append(e.events, event)
	e.mu.Unlock()
	return nil
}

// fakeNotifications records created notification documents
type fakeNotifications struct {
	mu      sync.Mutex
	created []models.Notification
	err     error
}

func (n *fakeNotifications) CreateNotification(ctx context.Context, notification *models.Notification) error {
	if n.err != nil {
		return n.err
	}
	n.mu.Lock()
	n.created = append(n.created, *notification)
	n.mu.Unlock()
	return nil
}

// newTestAlert builds an active alert with the given shape
func newTestAlert(userID, symbol, alertType string, threshold float64, frequency string, lastTriggeredAt *time.Time) models.Alert {
	return models.Alert{
		ID:              primitive.NewObjectID(),
		UserID:          userID,
		Symbol:          symbol,
		Company:         symbol + " Inc",
		AlertName:       symbol + " " + alertType,
		AlertType:       alertType,
		Threshold:       threshold,
		Frequency:       frequency,
		IsActive:        true,
		LastTriggeredAt: lastTriggeredAt,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
}
