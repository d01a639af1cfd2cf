package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrContactNotFound indicates the user has no resolvable contact address
var ErrContactNotFound = errors.New("no contact address found for user")

// UserDirectory resolves alert owners to their contact email. The auth layer
// writes user documents with a canonical string id, so lookup is a single
// query on that field; alerts always carry the same id shape.
type UserDirectory struct {
	users *mongo.Collection
}

// NewUserDirectory creates a user directory backed by the user collection
func NewUserDirectory(client *MongoClient) *UserDirectory {
	return &UserDirectory{
		users: client.Database().Collection(MongoUsersCollection),
	}
}

// ResolveContact returns the email address for a user id
func (d *UserDirectory) ResolveContact(ctx context.Context, userID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var doc struct {
		Email string `bson:"email"`
	}
	err := d.users.FindOne(ctx,
		bson.M{"id": userID},
		options.FindOne().SetProjection(bson.M{"email": 1})).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return "", fmt.Errorf("%w: %s", ErrContactNotFound, userID)
		}
		return "", fmt.Errorf("failed to look up user %s: %w", userID, err)
	}
	if doc.Email == "" {
		return "", fmt.Errorf("%w: %s", ErrContactNotFound, userID)
	}
	return doc.Email, nil
}
