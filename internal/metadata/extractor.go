package metadata

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
	"github.com/sirupsen/logrus"
	"github.com/tcolgate/mp3"
)

// ErrUnsupportedFormat is returned for files that are neither MP3 nor WAV
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Tags holds the embedded metadata of an audio file
type Tags struct {
	Title  string
	Artist string
	Album  string
}

// Prober reads duration and tags from stored audio files
type Prober struct {
	logger *logrus.Logger
}

// NewProber creates a new prober
func NewProber(logger *logrus.Logger) *Prober {
	return &Prober{logger: logger}
}

// Duration returns the play length of the file in whole seconds, rounded to
// the nearest second.
func (p *Prober) Duration(filePath string) (int, error) {
	startTime := time.Now()

	var (
		secs float64
		err  error
	)
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".mp3":
		secs, err = durationMP3(filePath)
	case ".wav":
		secs, err = durationWAV(filePath)
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return 0, err
	}

	duration := int(math.Round(secs))
	p.logger.WithFields(logrus.Fields{
		"filePath":       filePath,
		"duration":       duration,
		"processingTime": time.Since(startTime),
	}).Debug("Probed audio duration")

	return duration, nil
}

// Tags reads embedded ID3/RIFF metadata
func (p *Prober) Tags(filePath string) (Tags, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return Tags{}, err
	}
	defer file.Close()

	metadata, err := tag.ReadFrom(file)
	if err != nil {
		return Tags{}, err
	}

	return Tags{
		Title:  strings.TrimSpace(metadata.Title()),
		Artist: strings.TrimSpace(metadata.Artist()),
		Album:  strings.TrimSpace(metadata.Album()),
	}, nil
}

// durationMP3 sums frame durations. A file with no decodable frame is an
// error rather than an estimate.
func durationMP3(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := mp3.NewDecoder(f)
	var total time.Duration
	var skipped int
	frames := 0
	for {
		var fr mp3.Frame
		if err := dec.Decode(&fr, &skipped); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			if frames == 0 {
				return 0, fmt.Errorf("no decodable mp3 frames: %w", err)
			}
			break // partial decode; use what we have
		}
		total += fr.Duration()
		frames++
	}

	if frames == 0 {
		return 0, fmt.Errorf("no decodable mp3 frames")
	}
	return total.Seconds(), nil
}

// durationWAV computes length from the header and the PCM payload size
func durationWAV(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("invalid wav file")
	}
	if dec.SampleRate == 0 || dec.BitDepth == 0 || dec.NumChans == 0 {
		return 0, fmt.Errorf("invalid wav header")
	}

	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	headerSize := int64(44)
	pcmBytes := st.Size() - headerSize
	if pcmBytes < 0 {
		pcmBytes = 0
	}
	bytesPerSampleFrame := int64(dec.BitDepth/8) * int64(dec.NumChans)
	if bytesPerSampleFrame <= 0 {
		return 0, fmt.Errorf("invalid sample frame size")
	}
	sampleFrames := pcmBytes / bytesPerSampleFrame
	return float64(sampleFrames) / float64(dec.SampleRate), nil
}

// GetContentType returns the MIME type served for a stored audio file
func GetContentType(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}
