package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"marketgist_backend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store errors
var (
	ErrDuplicateAlert       = errors.New("similar alert already exists")
	ErrAlertNotFound        = errors.New("alert not found")
	ErrNotificationNotFound = errors.New("notification not found")
)

// AlertStore handles alert and notification persistence
type AlertStore struct {
	alerts        *mongo.Collection
	notifications *mongo.Collection
}

// NewAlertStore creates a new alert store
func NewAlertStore(client *MongoClient) *AlertStore {
	db := client.Database()
	return &AlertStore{
		alerts:        db.Collection(MongoAlertsCollection),
		notifications: db.Collection(MongoNotificationsCollection),
	}
}

// ==================== Alert Operations ====================

// CreateAlert validates, normalizes and inserts a new active alert.
// Duplicate active alerts for the same (user, symbol, type, threshold) are
// rejected, both by a pre-check and by the unique partial index catching the
// race two concurrent creates can run into.
func (s *AlertStore) CreateAlert(ctx context.Context, alert *models.Alert) error {
	if alert.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if err := models.NormalizeAlert(alert); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	count, err := s.alerts.CountDocuments(ctx, bson.M{
		"userId":    alert.UserID,
		"symbol":    alert.Symbol,
		"alertType": alert.AlertType,
		"threshold": alert.Threshold,
		"isActive":  true,
	})
	if err != nil {
		return fmt.Errorf("failed to check existing alerts: %w", err)
	}
	if count > 0 {
		return ErrDuplicateAlert
	}

	now := time.Now()
	alert.ID = primitive.NewObjectID()
	alert.IsActive = true
	alert.LastTriggeredAt = nil
	alert.CreatedAt = now
	alert.UpdatedAt = now

	if _, err := s.alerts.InsertOne(ctx, alert); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateAlert
		}
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

// ListActiveAlerts returns every alert with isActive = true
func (s *AlertStore) ListActiveAlerts(ctx context.Context) ([]models.Alert, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cursor, err := s.alerts.Find(ctx, bson.M{"isActive": true})
	if err != nil {
		return nil, fmt.Errorf("failed to list active alerts: %w", err)
	}
	defer cursor.Close(ctx)

	var alerts []models.Alert
	if err := cursor.All(ctx, &alerts); err != nil {
		return nil, fmt.Errorf("failed to decode alerts: %w", err)
	}
	return alerts, nil
}

// ListAlertsByUser returns a user's active alerts
func (s *AlertStore) ListAlertsByUser(ctx context.Context, userID string) ([]models.Alert, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cursor, err := s.alerts.Find(ctx, bson.M{"userId": userID, "isActive": true})
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts for user: %w", err)
	}
	defer cursor.Close(ctx)

	var alerts []models.Alert
	if err := cursor.All(ctx, &alerts); err != nil {
		return nil, fmt.Errorf("failed to decode alerts: %w", err)
	}
	return alerts, nil
}

// AlertUpdate holds the whitelisted fields an alert update may change
type AlertUpdate struct {
	AlertName *string  `json:"alert_name"`
	AlertType *string  `json:"alert_type"`
	Threshold *float64 `json:"threshold"`
	Frequency *string  `json:"frequency"`
}

// UpdateAlert applies a whitelisted update to one of the user's active alerts
func (s *AlertStore) UpdateAlert(ctx context.Context, alertID primitive.ObjectID, userID string, updates AlertUpdate) error {
	fields := bson.M{}

	if updates.AlertName != nil {
		name := strings.TrimSpace(*updates.AlertName)
		if len(name) > 100 {
			name = name[:100]
		}
		fields["alertName"] = name
	}
	if updates.AlertType != nil {
		if !models.ValidAlertType(*updates.AlertType) {
			return fmt.Errorf("alert type must be %q or %q", models.AlertTypeUpper, models.AlertTypeLower)
		}
		fields["alertType"] = *updates.AlertType
	}
	if updates.Threshold != nil {
		t := *updates.Threshold
		if t <= 0 || math.IsNaN(t) || math.IsInf(t, 0) {
			return fmt.Errorf("threshold must be a positive number")
		}
		fields["threshold"] = t
	}
	if updates.Frequency != nil {
		if !models.ValidFrequency(*updates.Frequency) {
			return fmt.Errorf("frequency must be one of once, minute, hourly, daily")
		}
		fields["frequency"] = *updates.Frequency
	}

	if len(fields) == 0 {
		return fmt.Errorf("no valid updates provided")
	}
	fields["updatedAt"] = time.Now()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	res, err := s.alerts.UpdateOne(ctx,
		bson.M{"_id": alertID, "userId": userID, "isActive": true},
		bson.M{"$set": fields})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateAlert
		}
		return fmt.Errorf("failed to update alert: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrAlertNotFound
	}
	return nil
}

// RemoveAlert retires an alert by flipping isActive to false. Alerts are
// never hard-deleted.
func (s *AlertStore) RemoveAlert(ctx context.Context, alertID primitive.ObjectID, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	res, err := s.alerts.UpdateOne(ctx,
		bson.M{"_id": alertID, "userId": userID, "isActive": true},
		bson.M{"$set": bson.M{"isActive": false, "updatedAt": time.Now()}})
	if err != nil {
		return fmt.Errorf("failed to remove alert: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrAlertNotFound
	}
	return nil
}

// ==================== Claim Operation ====================

// Claim attempts the atomic conditional write that grants the caller the right
// to fire an alert. The filter carries the isActive and lastTriggeredAt values
// the caller read during evaluation; a nil expectedLast marshals to BSON null,
// which matches both a null and a missing field. The store is the sole arbiter:
// of any number of concurrent callers racing with identical expectations,
// exactly one write matches and the rest see zero modified documents.
//
// Returns true when this caller won the claim. False is not an error; another
// cycle or process got there first and the alert is simply skipped.
func (s *AlertStore) Claim(ctx context.Context, alertID primitive.ObjectID, expectedActive bool, expectedLast *time.Time, now time.Time, retireIfOnce bool) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	set := bson.M{"lastTriggeredAt": now, "updatedAt": now}
	if retireIfOnce {
		set["isActive"] = false
	}

	res, err := s.alerts.UpdateOne(ctx,
		bson.M{
			"_id":             alertID,
			"isActive":        expectedActive,
			"lastTriggeredAt": expectedLast,
		},
		bson.M{"$set": set})
	if err != nil {
		return false, fmt.Errorf("failed to claim alert %s: %w", alertID.Hex(), err)
	}
	return res.ModifiedCount == 1, nil
}

// ==================== Notification Operations ====================

// CreateNotification inserts a notification record
func (s *AlertStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	now := time.Now()
	n.ID = primitive.NewObjectID()
	n.CreatedAt = now
	n.UpdatedAt = now

	if _, err := s.notifications.InsertOne(ctx, n); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ListNotifications returns a user's notifications, newest first, along with
// the unread count. A nil since returns everything up to limit.
func (s *AlertStore) ListNotifications(ctx context.Context, userID string, unreadOnly bool, since *time.Time, limit int64) ([]models.Notification, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if limit <= 0 {
		limit = 10
	}

	filter := bson.M{"userId": userID}
	if unreadOnly {
		filter["isRead"] = false
	}
	if since != nil {
		filter["createdAt"] = bson.M{"$gt": *since}
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(limit)
	cursor, err := s.notifications.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer cursor.Close(ctx)

	var notifications []models.Notification
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, 0, fmt.Errorf("failed to decode notifications: %w", err)
	}

	unread, err := s.notifications.CountDocuments(ctx, bson.M{"userId": userID, "isRead": false})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}

	return notifications, unread, nil
}

// MarkNotificationRead marks one of the user's notifications as read
func (s *AlertStore) MarkNotificationRead(ctx context.Context, notificationID primitive.ObjectID, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	res, err := s.notifications.UpdateOne(ctx,
		bson.M{"_id": notificationID, "userId": userID},
		bson.M{"$set": bson.M{"isRead": true, "updatedAt": time.Now()}})
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkAllNotificationsRead marks every unread notification of the user as read
// and returns the number updated
func (s *AlertStore) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	res, err := s.notifications.UpdateMany(ctx,
		bson.M{"userId": userID, "isRead": false},
		bson.M{"$set": bson.M{"isRead": true, "updatedAt": time.Now()}})
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return res.ModifiedCount, nil
}
