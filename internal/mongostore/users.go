package mongostore

import (
	"context"
	"errors"
	"fmt"

	"tunedeck/internal/apperr"
	"tunedeck/pkg/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// InsertUser stores a new user. The unique email index turns a second
// registration into apperr.ErrDuplicateEntry.
func (s *Store) InsertUser(ctx context.Context, user models.User) error {
	user.CreatedAt = user.CreatedAt.UTC()
	if _, err := s.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("user %s: %w", user.Email, apperr.ErrDuplicateEntry)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByEmail returns the user registered with email
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"email": email}, email)
}

// GetUserByID returns the user with the given ID
func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"_id": id}, id)
}

func (s *Store) findUser(ctx context.Context, filter bson.M, key string) (*models.User, error) {
	var user models.User
	if err := s.users.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("user %s: %w", key, apperr.ErrNotFound)
		}
		return nil, err
	}
	return &user, nil
}
