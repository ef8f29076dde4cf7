package mongostore

import (
	"context"
	"errors"
	"fmt"

	"tunedeck/internal/apperr"
	"tunedeck/pkg/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// InsertSong stores a new song document
func (s *Store) InsertSong(ctx context.Context, song models.Song) error {
	song.CreatedAt = song.CreatedAt.UTC()
	if _, err := s.songs.InsertOne(ctx, song); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("song %s: %w", song.ID, apperr.ErrDuplicateEntry)
		}
		return fmt.Errorf("insert song: %w", err)
	}
	return nil
}

// GetSong returns the song with the given ID
func (s *Store) GetSong(ctx context.Context, id string) (*models.Song, error) {
	return s.findSong(ctx, bson.M{"_id": id}, id)
}

// GetSongByFileURL returns the song stored at fileURL
func (s *Store) GetSongByFileURL(ctx context.Context, fileURL string) (*models.Song, error) {
	return s.findSong(ctx, bson.M{"fileUrl": fileURL}, fileURL)
}

func (s *Store) findSong(ctx context.Context, filter bson.M, key string) (*models.Song, error) {
	var song models.Song
	if err := s.songs.FindOne(ctx, filter).Decode(&song); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("song %s: %w", key, apperr.ErrNotFound)
		}
		s.logger.WithError(err).WithField("song", key).Error("Failed to get song")
		return nil, err
	}
	return &song, nil
}

// ListSongs returns all songs, newest first
func (s *Store) ListSongs(ctx context.Context) ([]models.Song, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	return s.findSongs(ctx, bson.M{}, opts)
}

// GetSongsByIDs returns the songs that still exist among ids
func (s *Store) GetSongsByIDs(ctx context.Context, ids []string) ([]models.Song, error) {
	if len(ids) == 0 {
		return []models.Song{}, nil
	}
	return s.findSongs(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (s *Store) findSongs(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Song, error) {
	cursor, err := s.songs.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}

	songs := []models.Song{}
	if err := cursor.All(ctx, &songs); err != nil {
		return nil, err
	}
	return songs, nil
}

// DeleteSong removes a song document. Playlists keep their references.
func (s *Store) DeleteSong(ctx context.Context, id string) error {
	result, err := s.songs.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete song: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("song %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}
