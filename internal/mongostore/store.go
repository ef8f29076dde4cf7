// Package mongostore keeps songs, playlists and users in MongoDB. It satisfies
// the same repository contracts as the SQLite database.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const connectTimeout = 30 * time.Second

// Store wraps a MongoDB client and the application's collections
type Store struct {
	client    *mongo.Client
	songs     *mongo.Collection
	playlists *mongo.Collection
	users     *mongo.Collection
	logger    *logrus.Logger
}

// New connects to uri, verifies the connection and makes sure the indexes
// exist
func New(ctx context.Context, uri, database string, maxConns int, logger *logrus.Logger) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(connectTimeout).
		SetConnectTimeout(connectTimeout)
	if maxConns > 0 {
		clientOptions.SetMaxPoolSize(uint64(maxConns))
	}

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:    client,
		songs:     db.Collection("songs"),
		playlists: db.Collection("playlists"),
		users:     db.Collection("users"),
		logger:    logger,
	}

	if err := s.ensureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}

	logger.WithField("database", database).Info("Connected to MongoDB")
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	indexes := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{s.users, mongo.IndexModel{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)}},
		{s.songs, mongo.IndexModel{Keys: bson.D{{Key: "createdAt", Value: -1}}}},
		{s.songs, mongo.IndexModel{Keys: bson.D{{Key: "fileUrl", Value: 1}}}},
		{s.playlists, mongo.IndexModel{Keys: bson.D{{Key: "createdBy", Value: 1}, {Key: "updatedAt", Value: -1}}}},
	}

	for _, idx := range indexes {
		if _, err := idx.coll.Indexes().CreateOne(ctx, idx.model); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", idx.coll.Name(), err)
		}
	}
	return nil
}

// Ping checks the server is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects from the server
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// drop removes every collection; tests only
func (s *Store) drop(ctx context.Context) error {
	for _, coll := range []*mongo.Collection{s.songs, s.playlists, s.users} {
		if err := coll.Drop(ctx); err != nil {
			return err
		}
	}
	return nil
}
