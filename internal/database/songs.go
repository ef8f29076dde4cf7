package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"tunedeck/internal/apperr"
	"tunedeck/pkg/models"

	"github.com/sirupsen/logrus"
)

const songColumns = "id, title, artist, album, duration, file_url, uploaded_by, created_at"

// InsertSong stores a new song record
func (db *Database) InsertSong(ctx context.Context, song models.Song) error {
	_, err := db.insertSongStmt.ExecContext(ctx,
		song.ID, song.Title, song.Artist, song.Album, song.Duration,
		song.FileURL, song.UploadedBy, song.CreatedAt.UTC())
	if err != nil {
		db.logger.WithError(err).WithFields(logrus.Fields{
			"song_id":  song.ID,
			"file_url": song.FileURL,
		}).Error("Failed to insert song")
		return fmt.Errorf("insert song: %w", err)
	}
	return nil
}

// GetSong returns a single song by its ID
func (db *Database) GetSong(ctx context.Context, id string) (*models.Song, error) {
	song, err := scanSong(db.getSongByIDStmt.QueryRowContext(ctx, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("song %s: %w", id, apperr.ErrNotFound)
		}
		db.logger.WithError(err).WithField("song_id", id).Error("Failed to get song by ID")
		return nil, err
	}
	return song, nil
}

// GetSongByFileURL returns the song backed by the given stored file
func (db *Database) GetSongByFileURL(ctx context.Context, fileURL string) (*models.Song, error) {
	song, err := scanSong(db.getSongByFileStmt.QueryRowContext(ctx, fileURL))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("song with file %s: %w", fileURL, apperr.ErrNotFound)
		}
		return nil, err
	}
	return song, nil
}

// ListSongs returns all songs, newest first
func (db *Database) ListSongs(ctx context.Context) ([]models.Song, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+songColumns+`
		FROM songs
		ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSongRows(rows)
}

// GetSongsByIDs returns the songs that exist among ids, in no particular order
func (db *Database) GetSongsByIDs(ctx context.Context, ids []string) ([]models.Song, error) {
	if len(ids) == 0 {
		return []models.Song{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+songColumns+`
		FROM songs
		WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSongRows(rows)
}

// DeleteSong removes a song record. Playlist references are left untouched.
func (db *Database) DeleteSong(ctx context.Context, id string) error {
	result, err := db.deleteSongStmt.ExecContext(ctx, id)
	if err != nil {
		return fmt.Errorf("delete song: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("song %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSong(row rowScanner) (*models.Song, error) {
	var song models.Song
	err := row.Scan(&song.ID, &song.Title, &song.Artist, &song.Album,
		&song.Duration, &song.FileURL, &song.UploadedBy, &song.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &song, nil
}

// scanSongRows scans song result sets. Callers must have already deferred
// rows.Close().
func scanSongRows(rows *sql.Rows) ([]models.Song, error) {
	songs := []models.Song{}
	for rows.Next() {
		song, err := scanSong(rows)
		if err != nil {
			return nil, err
		}
		songs = append(songs, *song)
	}
	return songs, rows.Err()
}
