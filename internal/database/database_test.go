package database

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"tunedeck/internal/apperr"
	"tunedeck/internal/logging"
	"tunedeck/pkg/models"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := NewDatabase(dbPath, 5, logging.Discard())
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSongs(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	older := models.Song{
		ID: "s1", Title: "First", Artist: "Artist", Duration: 180,
		FileURL: "/uploads/songs/song-1.mp3", UploadedBy: "admin", CreatedAt: base,
	}
	newer := models.Song{
		ID: "s2", Title: "Second", Artist: "Artist", Album: "Album",
		FileURL: "/uploads/songs/song-2.mp3", UploadedBy: "admin", CreatedAt: base.Add(time.Minute),
	}

	t.Run("InsertAndGetSong", func(t *testing.T) {
		for _, song := range []models.Song{older, newer} {
			if err := db.InsertSong(ctx, song); err != nil {
				t.Fatalf("Failed to insert song: %v", err)
			}
		}

		got, err := db.GetSong(ctx, "s1")
		if err != nil {
			t.Fatalf("Failed to get song: %v", err)
		}
		if got.Title != older.Title || got.Duration != 180 {
			t.Errorf("Unexpected song: %+v", got)
		}
		if !got.CreatedAt.Equal(base) {
			t.Errorf("Expected created at %v, got %v", base, got.CreatedAt)
		}
	})

	t.Run("ListSongsNewestFirst", func(t *testing.T) {
		songs, err := db.ListSongs(ctx)
		if err != nil {
			t.Fatalf("Failed to list songs: %v", err)
		}
		if len(songs) != 2 || songs[0].ID != "s2" || songs[1].ID != "s1" {
			t.Errorf("Expected [s2 s1], got %+v", songs)
		}
	})

	t.Run("GetSongByFileURL", func(t *testing.T) {
		got, err := db.GetSongByFileURL(ctx, newer.FileURL)
		if err != nil {
			t.Fatalf("Failed to get song by file: %v", err)
		}
		if got.ID != "s2" {
			t.Errorf("Expected s2, got %s", got.ID)
		}
	})

	t.Run("GetSongsByIDs", func(t *testing.T) {
		songs, err := db.GetSongsByIDs(ctx, []string{"s1", "missing"})
		if err != nil {
			t.Fatalf("Failed to get songs by IDs: %v", err)
		}
		if len(songs) != 1 || songs[0].ID != "s1" {
			t.Errorf("Expected only s1, got %+v", songs)
		}
	})

	t.Run("DeleteSong", func(t *testing.T) {
		if err := db.DeleteSong(ctx, "s1"); err != nil {
			t.Fatalf("Failed to delete song: %v", err)
		}
		if _, err := db.GetSong(ctx, "s1"); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("Expected ErrNotFound after delete, got %v", err)
		}
		if err := db.DeleteSong(ctx, "s1"); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("Expected ErrNotFound deleting twice, got %v", err)
		}
	})
}

func TestPlaylists(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	now := time.Now()

	playlist := models.Playlist{
		ID: "p1", Name: "Road Trip", CreatedBy: "u1",
		Songs: []string{}, Version: 1, CreatedAt: now, UpdatedAt: now,
	}
	if err := db.InsertPlaylist(ctx, playlist); err != nil {
		t.Fatalf("Failed to insert playlist: %v", err)
	}

	t.Run("CompareAndSwap", func(t *testing.T) {
		if err := db.UpdatePlaylistSongs(ctx, "p1", 1, []string{"s1", "s2"}, now); err != nil {
			t.Fatalf("Failed to update playlist: %v", err)
		}

		err := db.UpdatePlaylistSongs(ctx, "p1", 1, []string{"s3"}, now)
		if !errors.Is(err, apperr.ErrConflict) {
			t.Fatalf("Expected ErrConflict for stale version, got %v", err)
		}

		got, err := db.GetPlaylist(ctx, "p1")
		if err != nil {
			t.Fatalf("Failed to get playlist: %v", err)
		}
		if got.Version != 2 {
			t.Errorf("Expected version 2, got %d", got.Version)
		}
		if len(got.Songs) != 2 || got.Songs[0] != "s1" || got.Songs[1] != "s2" {
			t.Errorf("Expected ordered [s1 s2], got %v", got.Songs)
		}
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		err := db.UpdatePlaylistSongs(ctx, "nope", 1, nil, now)
		if !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ListByOwnerMostRecentlyUpdatedFirst", func(t *testing.T) {
		second := models.Playlist{
			ID: "p2", Name: "Gym", CreatedBy: "u1", Songs: []string{"s9"},
			Version: 1, CreatedAt: now, UpdatedAt: now.Add(time.Hour),
		}
		other := models.Playlist{
			ID: "p3", Name: "Other", CreatedBy: "u2", Songs: []string{},
			Version: 1, CreatedAt: now, UpdatedAt: now,
		}
		for _, p := range []models.Playlist{second, other} {
			if err := db.InsertPlaylist(ctx, p); err != nil {
				t.Fatalf("Failed to insert playlist: %v", err)
			}
		}

		playlists, err := db.ListPlaylistsByOwner(ctx, "u1")
		if err != nil {
			t.Fatalf("Failed to list playlists: %v", err)
		}
		if len(playlists) != 2 || playlists[0].ID != "p2" || playlists[1].ID != "p1" {
			t.Fatalf("Expected [p2 p1], got %+v", playlists)
		}
		if len(playlists[0].Songs) != 1 || playlists[0].Songs[0] != "s9" {
			t.Errorf("Expected songs loaded for p2, got %v", playlists[0].Songs)
		}
	})

	t.Run("DeletePlaylist", func(t *testing.T) {
		if err := db.DeletePlaylist(ctx, "p1"); err != nil {
			t.Fatalf("Failed to delete playlist: %v", err)
		}
		if _, err := db.GetPlaylist(ctx, "p1"); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
		if err := db.DeletePlaylist(ctx, "p1"); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("Expected ErrNotFound deleting twice, got %v", err)
		}
	})
}

func TestConcurrentVersionedUpdates(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	now := time.Now()

	if err := db.InsertPlaylist(ctx, models.Playlist{
		ID: "p1", Name: "Shared", CreatedBy: "u1", Songs: []string{},
		Version: 1, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("Failed to insert playlist: %v", err)
	}

	// Every writer reads version 1; exactly one swap may win.
	const writers = 4
	var wg sync.WaitGroup
	results := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results <- db.UpdatePlaylistSongs(ctx, "p1", 1, []string{string(rune('a' + i))}, now)
		}(i)
	}
	wg.Wait()
	close(results)

	wins, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, apperr.ErrConflict):
			conflicts++
		default:
			t.Errorf("Unexpected error: %v", err)
		}
	}
	if wins != 1 || conflicts != writers-1 {
		t.Errorf("Expected 1 win and %d conflicts, got %d and %d", writers-1, wins, conflicts)
	}
}

func TestUsers(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	user := models.User{
		ID: "u1", Username: "alice", Email: "alice@example.com",
		PasswordHash: "$2a$12$hash", Role: models.RoleAdmin, CreatedAt: time.Now(),
	}
	if err := db.InsertUser(ctx, user); err != nil {
		t.Fatalf("Failed to insert user: %v", err)
	}

	dup := user
	dup.ID = "u2"
	if err := db.InsertUser(ctx, dup); !errors.Is(err, apperr.ErrDuplicateEntry) {
		t.Errorf("Expected ErrDuplicateEntry for taken email, got %v", err)
	}

	got, err := db.GetUserByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("Failed to get user: %v", err)
	}
	if got.Role != models.RoleAdmin || got.PasswordHash != user.PasswordHash {
		t.Errorf("Unexpected user: %+v", got)
	}

	if _, err := db.GetUserByID(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")

	db, err := NewDatabase(dbPath, 1, logging.Discard())
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	db.Close()

	db, err = NewDatabase(dbPath, 1, logging.Discard())
	if err != nil {
		t.Fatalf("Failed to reopen database: %v", err)
	}
	defer db.Close()

	exists, err := db.columnExists("playlists", "version")
	if err != nil {
		t.Fatalf("Failed to inspect schema: %v", err)
	}
	if !exists {
		t.Error("Expected version column after migrations")
	}
}
