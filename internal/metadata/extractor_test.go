package metadata

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"tunedeck/internal/audiotest"
	"tunedeck/internal/logging"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestDuration(t *testing.T) {
	prober := NewProber(logging.Discard())

	tests := []struct {
		name string
		file string
		data []byte
		want int
	}{
		{"MP3TenSeconds", "a.mp3", audiotest.MP3(10), 10},
		{"MP3RoundsUp", "b.mp3", audiotest.MP3Frames(58), 2}, // ~1.515s
		{"MP3RoundsDown", "c.mp3", audiotest.MP3Frames(50), 1}, // ~1.306s
		{"WAVThreeSeconds", "d.wav", audiotest.WAV(3, 8000), 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.data)

			got, err := prober.Duration(path)
			if err != nil {
				t.Fatalf("Failed to probe duration: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected duration %d, got %d", tt.want, got)
			}
		})
	}
}

func TestDurationFailures(t *testing.T) {
	prober := NewProber(logging.Discard())

	t.Run("GarbageMP3", func(t *testing.T) {
		path := writeFile(t, "junk.mp3", []byte("this is not audio at all"))
		if _, err := prober.Duration(path); err == nil {
			t.Error("Expected error for undecodable mp3")
		}
	})

	t.Run("GarbageWAV", func(t *testing.T) {
		path := writeFile(t, "junk.wav", []byte("RIFF but not really"))
		if _, err := prober.Duration(path); err == nil {
			t.Error("Expected error for invalid wav")
		}
	})

	t.Run("UnsupportedExtension", func(t *testing.T) {
		path := writeFile(t, "song.flac", []byte("fLaC"))
		if _, err := prober.Duration(path); !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
		}
	})

	t.Run("MissingFile", func(t *testing.T) {
		if _, err := prober.Duration(filepath.Join(t.TempDir(), "gone.mp3")); err == nil {
			t.Error("Expected error for missing file")
		}
	})
}

func TestTagsWithoutMetadata(t *testing.T) {
	prober := NewProber(logging.Discard())
	path := writeFile(t, "plain.mp3", audiotest.MP3(1))

	// Frames without an ID3 block carry no tags
	if _, err := prober.Tags(path); err == nil {
		t.Error("Expected error reading tags from untagged file")
	}
}

func TestGetContentType(t *testing.T) {
	cases := map[string]string{
		"a.mp3":  "audio/mpeg",
		"b.WAV":  "audio/wav",
		"c.flac": "application/octet-stream",
	}
	for file, want := range cases {
		if got := GetContentType(file); got != want {
			t.Errorf("GetContentType(%s) = %s, want %s", file, got, want)
		}
	}
}
