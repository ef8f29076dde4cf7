package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tunedeck/internal/apperr"
	"tunedeck/pkg/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// InsertPlaylist stores a new playlist document
func (s *Store) InsertPlaylist(ctx context.Context, playlist models.Playlist) error {
	if playlist.Songs == nil {
		playlist.Songs = []string{}
	}
	playlist.CreatedAt = playlist.CreatedAt.UTC()
	playlist.UpdatedAt = playlist.UpdatedAt.UTC()

	if _, err := s.playlists.InsertOne(ctx, playlist); err != nil {
		return fmt.Errorf("insert playlist: %w", err)
	}
	return nil
}

// GetPlaylist returns a playlist with its ordered song references
func (s *Store) GetPlaylist(ctx context.Context, id string) (*models.Playlist, error) {
	var playlist models.Playlist
	if err := s.playlists.FindOne(ctx, bson.M{"_id": id}).Decode(&playlist); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("playlist %s: %w", id, apperr.ErrNotFound)
		}
		s.logger.WithError(err).WithField("playlist_id", id).Error("Failed to get playlist")
		return nil, err
	}
	return &playlist, nil
}

// ListPlaylistsByOwner returns the playlists created by owner, most recently
// updated first
func (s *Store) ListPlaylistsByOwner(ctx context.Context, owner string) ([]models.Playlist, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := s.playlists.Find(ctx, bson.M{"createdBy": owner}, opts)
	if err != nil {
		return nil, err
	}

	playlists := []models.Playlist{}
	if err := cursor.All(ctx, &playlists); err != nil {
		return nil, err
	}
	return playlists, nil
}

// UpdatePlaylistSongs replaces the song list if the stored version still
// equals expectedVersion. The filter on version makes the single-document
// update a compare-and-swap.
func (s *Store) UpdatePlaylistSongs(ctx context.Context, id string, expectedVersion int64, songs []string, updatedAt time.Time) error {
	if songs == nil {
		songs = []string{}
	}

	result, err := s.playlists.UpdateOne(ctx,
		bson.M{"_id": id, "version": expectedVersion},
		bson.M{
			"$set": bson.M{"songs": songs, "updatedAt": updatedAt.UTC()},
			"$inc": bson.M{"version": 1},
		})
	if err != nil {
		return fmt.Errorf("update playlist: %w", err)
	}

	if result.MatchedCount == 0 {
		count, err := s.playlists.CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("playlist %s: %w", id, apperr.ErrNotFound)
		}
		return fmt.Errorf("playlist %s changed since version %d: %w", id, expectedVersion, apperr.ErrConflict)
	}
	return nil
}

// DeletePlaylist removes a playlist document
func (s *Store) DeletePlaylist(ctx context.Context, id string) error {
	result, err := s.playlists.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete playlist: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("playlist %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}
