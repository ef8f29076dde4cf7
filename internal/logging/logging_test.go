package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tunedeck/internal/config"

	"github.com/sirupsen/logrus"
)

func TestNewWritesToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "tunedeck.log")

	logger, closer, err := New(config.LoggingConfig{Level: "debug", Format: "json", File: logPath})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	if logger.GetLevel() != logrus.DebugLevel {
		t.Errorf("Expected debug level, got %s", logger.GetLevel())
	}

	logger.WithField("song_id", "abc").Info("Song uploaded")
	if err := closer.Close(); err != nil {
		t.Fatalf("Failed to close log file: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), `"song_id":"abc"`) {
		t.Errorf("Expected JSON log line with song_id, got %s", data)
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, _, err := New(config.LoggingConfig{Level: "loud", Format: "text"}); err == nil {
		t.Error("Expected error for unknown level")
	}
}
