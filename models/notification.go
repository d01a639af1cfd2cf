package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification types
const (
	NotificationTypePriceAlert  = "price_alert"
	NotificationTypeVolumeAlert = "volume_alert"
	NotificationTypeNews        = "news"
	NotificationTypeSystem      = "system"
)

// Notification represents an in-app notification shown to the user.
// Created once when an alert fires; afterwards only its read flag changes.
type Notification struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    string             `bson:"userId" json:"user_id"`
	Type      string             `bson:"type" json:"type"`
	Title     string             `bson:"title" json:"title"`
	Message   string             `bson:"message" json:"message"`
	Symbol    string             `bson:"symbol,omitempty" json:"symbol,omitempty"`
	IsRead    bool               `bson:"isRead" json:"is_read"`
	CreatedAt time.Time          `bson:"createdAt" json:"created_at"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updated_at"`
}
