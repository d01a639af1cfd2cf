package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB collection names
const (
	MongoAlertsCollection        = "alerts"
	MongoNotificationsCollection = "notifications"
	MongoUsersCollection         = "user"
)

// MongoClient wraps the MongoDB connection used by the stores. It is
// constructed once by the host process and injected into every consumer;
// there is no process-wide cached handle.
type MongoClient struct {
	client   *mongo.Client
	database *mongo.Database
}

// NewMongoClient connects to MongoDB and verifies the connection with a ping
func NewMongoClient(uri, dbName string) (*MongoClient, error) {
	if uri == "" {
		return nil, fmt.Errorf("MONGODB_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetMaxPoolSize(10).
		SetMinPoolSize(2).
		SetMaxConnIdleTime(30 * time.Second).
		SetConnectTimeout(30 * time.Second).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	m := &MongoClient{
		client:   client,
		database: client.Database(dbName),
	}

	if err := m.createIndexes(); err != nil {
		log.Printf("Warning: could not create MongoDB indexes: %v", err)
	}

	log.Println("MongoDB connected successfully")
	return m, nil
}

// Database returns the underlying database handle
func (m *MongoClient) Database() *mongo.Database {
	return m.database
}

// Ping verifies the connection is still alive
func (m *MongoClient) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

// Close closes the MongoDB connection
func (m *MongoClient) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

// createIndexes creates the indexes the alert and notification collections rely on.
// The unique partial index on active alerts backs the "at most one active alert per
// (user, symbol, type, threshold)" constraint at the storage layer.
func (m *MongoClient) createIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	alerts := m.database.Collection(MongoAlertsCollection)
	_, err := alerts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "symbol", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "symbol", Value: 1}, {Key: "isActive", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "lastTriggeredAt", Value: 1}},
		},
		{
			Keys: bson.D{
				{Key: "userId", Value: 1},
				{Key: "symbol", Value: 1},
				{Key: "alertType", Value: 1},
				{Key: "threshold", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"isActive": true}).
				SetName("unique_active_alert_per_user_symbol_type_threshold"),
		},
	})
	if err != nil {
		return err
	}

	notifications := m.database.Collection(MongoNotificationsCollection)
	_, err = notifications.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "isRead", Value: 1}, {Key: "createdAt", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "symbol", Value: 1}},
		},
	})
	if err != nil {
		return err
	}

	log.Println("MongoDB indexes created")
	return nil
}
