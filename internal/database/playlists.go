package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tunedeck/internal/apperr"
	"tunedeck/pkg/models"
)

const playlistColumns = "id, name, description, is_public, created_by, version, created_at, updated_at"

// InsertPlaylist stores a new playlist together with its initial song list
func (db *Database) InsertPlaylist(ctx context.Context, playlist models.Playlist) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO playlists (id, name, description, is_public, created_by, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		playlist.ID, playlist.Name, playlist.Description, playlist.IsPublic,
		playlist.CreatedBy, playlist.Version, playlist.CreatedAt.UTC(), playlist.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert playlist: %w", err)
	}

	if err := writePlaylistSongs(ctx, tx, playlist.ID, playlist.Songs); err != nil {
		return err
	}

	return tx.Commit()
}

// GetPlaylist returns a playlist with its ordered song references
func (db *Database) GetPlaylist(ctx context.Context, id string) (*models.Playlist, error) {
	playlist, err := scanPlaylist(db.getPlaylistStmt.QueryRowContext(ctx, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("playlist %s: %w", id, apperr.ErrNotFound)
		}
		db.logger.WithError(err).WithField("playlist_id", id).Error("Failed to get playlist")
		return nil, err
	}

	if playlist.Songs, err = db.playlistSongIDs(ctx, id); err != nil {
		return nil, err
	}
	return playlist, nil
}

// ListPlaylistsByOwner returns the playlists created by owner, most recently
// updated first
func (db *Database) ListPlaylistsByOwner(ctx context.Context, owner string) ([]models.Playlist, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+playlistColumns+`
		FROM playlists
		WHERE created_by = ?
		ORDER BY updated_at DESC, rowid DESC`, owner)
	if err != nil {
		return nil, err
	}

	playlists := []models.Playlist{}
	for rows.Next() {
		playlist, err := scanPlaylist(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		playlists = append(playlists, *playlist)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range playlists {
		if playlists[i].Songs, err = db.playlistSongIDs(ctx, playlists[i].ID); err != nil {
			return nil, err
		}
	}
	return playlists, nil
}

// UpdatePlaylistSongs replaces the song list if the stored version still
// equals expectedVersion, bumping the version. A stale version yields
// apperr.ErrConflict; a missing playlist apperr.ErrNotFound.
func (db *Database) UpdatePlaylistSongs(ctx context.Context, id string, expectedVersion int64, songs []string, updatedAt time.Time) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.StmtContext(ctx, db.bumpPlaylistStmt).ExecContext(ctx, updatedAt.UTC(), id, expectedVersion)
	if err != nil {
		return fmt.Errorf("update playlist: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) > 0 FROM playlists WHERE id = ?", id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("playlist %s: %w", id, apperr.ErrNotFound)
		}
		return fmt.Errorf("playlist %s changed since version %d: %w", id, expectedVersion, apperr.ErrConflict)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM playlist_songs WHERE playlist_id = ?", id); err != nil {
		return err
	}
	if err := writePlaylistSongs(ctx, tx, id, songs); err != nil {
		return err
	}

	return tx.Commit()
}

// DeletePlaylist deletes the playlist; its song references go with it
func (db *Database) DeletePlaylist(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, "DELETE FROM playlists WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete playlist: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("playlist %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func (db *Database) playlistSongIDs(ctx context.Context, playlistID string) ([]string, error) {
	rows, err := db.playlistSongIDsStmt.QueryContext(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func writePlaylistSongs(ctx context.Context, tx *sql.Tx, playlistID string, songs []string) error {
	if len(songs) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO playlist_songs (playlist_id, song_id, position)
		VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for position, songID := range songs {
		if _, err := stmt.ExecContext(ctx, playlistID, songID, position+1); err != nil {
			return fmt.Errorf("insert playlist song: %w", err)
		}
	}
	return nil
}

func scanPlaylist(row rowScanner) (*models.Playlist, error) {
	var playlist models.Playlist
	err := row.Scan(&playlist.ID, &playlist.Name, &playlist.Description, &playlist.IsPublic,
		&playlist.CreatedBy, &playlist.Version, &playlist.CreatedAt, &playlist.UpdatedAt)
	if err != nil {
		return nil, err
	}
	playlist.Songs = []string{}
	return &playlist, nil
}
