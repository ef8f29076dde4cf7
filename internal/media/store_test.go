package media

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tunedeck/internal/apperr"
	"tunedeck/internal/logging"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

func newTestStore(t *testing.T, maxBytes int64) *Store {
	t.Helper()

	store, err := NewStore(Options{
		Dir:          filepath.Join(t.TempDir(), "songs"),
		PublicPrefix: "/uploads/songs",
		MaxBytes:     maxBytes,
	}, logging.Discard())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

// dirEntries lists every entry in the songs dir, hidden part files included
func dirEntries(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read dir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestReceive(t *testing.T) {
	ctx := context.Background()

	t.Run("AcceptsMP3", func(t *testing.T) {
		store := newTestStore(t, 1024)

		up, err := store.Receive(ctx, strings.NewReader("fake mp3 bytes"), "audio/mpeg", "Track.MP3")
		if err != nil {
			t.Fatalf("Failed to receive upload: %v", err)
		}

		if !strings.HasPrefix(up.URL(), "/uploads/songs/song-") || !strings.HasSuffix(up.URL(), ".mp3") {
			t.Errorf("Unexpected file URL: %s", up.URL())
		}
		if up.Size() != int64(len("fake mp3 bytes")) {
			t.Errorf("Expected size %d, got %d", len("fake mp3 bytes"), up.Size())
		}
		if !store.Exists(up.URL()) {
			t.Error("Expected stored file to exist")
		}
	})

	t.Run("AcceptsWAVWithParameters", func(t *testing.T) {
		store := newTestStore(t, 1024)

		if _, err := store.Receive(ctx, strings.NewReader("RIFF"), "audio/wav; codecs=1", "a.wav"); err != nil {
			t.Fatalf("Expected wav with parameters to be accepted: %v", err)
		}
	})

	rejects := []struct {
		name     string
		mimeType string
		filename string
	}{
		{"WrongMime", "image/png", "song.mp3"},
		{"WrongExtension", "audio/mpeg", "song.flac"},
		{"NoExtension", "audio/mpeg", "song"},
		{"BadMime", "not a mime", "song.mp3"},
		{"ExtensionOnlyLooksAudio", "application/octet-stream", "song.wav"},
	}
	for _, tt := range rejects {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t, 1024)

			_, err := store.Receive(ctx, strings.NewReader("data"), tt.mimeType, tt.filename)
			if !errors.Is(err, apperr.ErrInvalidMediaType) {
				t.Fatalf("Expected ErrInvalidMediaType, got %v", err)
			}
			if got := dirEntries(t, store.Dir()); len(got) != 0 {
				t.Errorf("Expected no files on disk, found %v", got)
			}
		})
	}

	t.Run("RejectsOversized", func(t *testing.T) {
		store := newTestStore(t, 10)

		_, err := store.Receive(ctx, bytes.NewReader(make([]byte, 11)), "audio/mpeg", "big.mp3")
		if !errors.Is(err, apperr.ErrSizeLimitExceeded) {
			t.Fatalf("Expected ErrSizeLimitExceeded, got %v", err)
		}
		if got := dirEntries(t, store.Dir()); len(got) != 0 {
			t.Errorf("Expected no files on disk, found %v", got)
		}
	})

	t.Run("AcceptsExactLimit", func(t *testing.T) {
		store := newTestStore(t, 10)

		if _, err := store.Receive(ctx, bytes.NewReader(make([]byte, 10)), "audio/mpeg", "edge.mp3"); err != nil {
			t.Fatalf("Expected file at the limit to be accepted: %v", err)
		}
	})
}

func TestUploadLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("ReleaseRemovesUncommitted", func(t *testing.T) {
		store := newTestStore(t, 1024)

		up, err := store.Receive(ctx, strings.NewReader("x"), "audio/mpeg", "a.mp3")
		if err != nil {
			t.Fatalf("Failed to receive upload: %v", err)
		}
		up.Release()
		up.Release()

		if _, err := os.Stat(up.Path()); !os.IsNotExist(err) {
			t.Errorf("Expected file to be removed, stat err: %v", err)
		}
	})

	t.Run("ReleaseKeepsCommitted", func(t *testing.T) {
		store := newTestStore(t, 1024)

		up, err := store.Receive(ctx, strings.NewReader("x"), "audio/mpeg", "a.mp3")
		if err != nil {
			t.Fatalf("Failed to receive upload: %v", err)
		}
		up.Commit()
		up.Release()

		if _, err := os.Stat(up.Path()); err != nil {
			t.Errorf("Expected committed file to remain: %v", err)
		}
	})
}

func TestReleaseCleansUpByURL(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	store, err := NewStore(Options{
		Dir:          filepath.Join(t.TempDir(), "songs"),
		PublicPrefix: "/uploads/songs",
		MaxBytes:     1024,
	}, logger)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	up, err := store.Receive(context.Background(), strings.NewReader("x"), "audio/mpeg", "a.mp3")
	if err != nil {
		t.Fatalf("Failed to receive upload: %v", err)
	}
	hook.Reset()

	up.Release()

	if store.Exists(up.URL()) {
		t.Error("Expected released upload to be gone")
	}
	entry := hook.LastEntry()
	if entry == nil || entry.Message != "Cleaned up orphaned file" || entry.Data["file_url"] != up.URL() {
		t.Errorf("Expected cleanup of %s to be logged, got %+v", up.URL(), entry)
	}

	// Cleaning up a file that is already gone is quiet
	hook.Reset()
	store.Cleanup(up.URL())
	for _, e := range hook.AllEntries() {
		if e.Level <= logrus.ErrorLevel {
			t.Errorf("Unexpected error log: %s", e.Message)
		}
	}
}

func TestDeleteAndList(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 1024)

	up, err := store.Receive(ctx, strings.NewReader("x"), "audio/mpeg", "a.mp3")
	if err != nil {
		t.Fatalf("Failed to receive upload: %v", err)
	}
	up.Commit()

	// Stray part files are not stored songs
	if err := os.WriteFile(filepath.Join(store.Dir(), ".upload-1.part"), []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to write part file: %v", err)
	}

	urls, err := store.List()
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(urls) != 1 || urls[0] != up.URL() {
		t.Errorf("Expected [%s], got %v", up.URL(), urls)
	}

	if err := store.Delete(up.URL()); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if err := store.Delete(up.URL()); err != nil {
		t.Errorf("Deleting a missing file should succeed, got %v", err)
	}

	for _, bad := range []string{"/uploads/songs/../secret", "/elsewhere/a.mp3", "/uploads/songs/", "/uploads/songs/a/b.mp3"} {
		if err := store.Delete(bad); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("Expected %q to be refused, got %v", bad, err)
		}
	}
}

func TestWatcherReportsRemoval(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 1024)

	up, err := store.Receive(ctx, strings.NewReader("x"), "audio/mpeg", "a.mp3")
	if err != nil {
		t.Fatalf("Failed to receive upload: %v", err)
	}
	up.Commit()

	removed := make(chan string, 4)
	watcher := NewWatcher(store, func(fileURL string) { removed <- fileURL }, logging.Discard())
	if err := watcher.Start(); err != nil {
		t.Fatalf("Failed to start watcher: %v", err)
	}
	defer watcher.Close()

	if err := os.Remove(up.Path()); err != nil {
		t.Fatalf("Failed to remove file: %v", err)
	}

	select {
	case got := <-removed:
		if got != up.URL() {
			t.Errorf("Expected %s, got %s", up.URL(), got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for removal event")
	}
}
