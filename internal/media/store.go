package media

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"tunedeck/internal/apperr"

	"github.com/sirupsen/logrus"
)

// InvalidTypeMessage is shown to clients when an upload is not MP3 or WAV
const InvalidTypeMessage = "Only audio files (MP3, WAV) are allowed!"

// Accepted declared content types, parameters stripped
var allowedMimeTypes = []string{
	"audio/mpeg",
	"audio/mp3",
	"audio/wav",
	"audio/x-wav",
	"audio/wave",
	"audio/vnd.wave",
}

// Options configures a Store
type Options struct {
	Dir            string   // directory song files are written to
	PublicPrefix   string   // URL prefix the directory is served under, e.g. /uploads/songs
	MaxBytes       int64    // per-file size limit
	AllowedFormats []string // lower-case extensions including the dot
}

// Store persists uploaded audio files on local disk and hands out public
// file URLs for them.
type Store struct {
	dir            string
	prefix         string
	maxBytes       int64
	allowedFormats []string
	logger         *logrus.Logger
}

// NewStore creates the songs directory if needed
func NewStore(opts Options, logger *logrus.Logger) (*Store, error) {
	if opts.MaxBytes <= 0 {
		return nil, fmt.Errorf("max upload size must be positive")
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create songs directory: %w", err)
	}

	formats := opts.AllowedFormats
	if len(formats) == 0 {
		formats = []string{".mp3", ".wav"}
	}

	return &Store{
		dir:            opts.Dir,
		prefix:         strings.TrimSuffix(opts.PublicPrefix, "/"),
		maxBytes:       opts.MaxBytes,
		allowedFormats: formats,
		logger:         logger,
	}, nil
}

// Dir returns the directory files are stored in
func (s *Store) Dir() string {
	return s.dir
}

// MaxBytes returns the per-file size limit
func (s *Store) MaxBytes() int64 {
	return s.maxBytes
}

// Upload is a received file that has not yet been claimed by a song record.
// Release removes the file unless Commit was called first, so a deferred
// Release cleans up every failed path.
type Upload struct {
	store     *Store
	path      string
	url       string
	size      int64
	mu        sync.Mutex
	committed bool
	released  bool
}

// Path returns the on-disk location of the file
func (u *Upload) Path() string { return u.path }

// URL returns the public file URL
func (u *Upload) URL() string { return u.url }

// Size returns the number of bytes stored
func (u *Upload) Size() int64 { return u.size }

// Commit marks the file as owned by a persisted record
func (u *Upload) Commit() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.committed = true
}

// Release removes the file if it was never committed. Safe to call more than once.
func (u *Upload) Release() {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.committed || u.released {
		return
	}
	u.released = true
	u.store.Cleanup(u.url)
}

// Receive validates and stores an incoming audio file. Nothing visible is
// left on disk when it returns an error.
func (s *Store) Receive(ctx context.Context, src io.Reader, declaredMimeType, originalFilename string) (*Upload, error) {
	ext := strings.ToLower(filepath.Ext(originalFilename))
	if !slices.Contains(s.allowedFormats, ext) || !IsAllowedMimeType(declaredMimeType) {
		s.logger.WithFields(logrus.Fields{
			"filename":  originalFilename,
			"mime_type": declaredMimeType,
		}).Warn("Rejected upload with unsupported type")
		return nil, apperr.New(apperr.ErrInvalidMediaType, InvalidTypeMessage)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name, err := generateFilename(ext)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrStorage, "Failed to store file", err)
	}

	// Bytes land in a hidden part file first so a half written or oversized
	// upload never shows up under its final name.
	part, err := os.CreateTemp(s.dir, ".upload-*.part")
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrStorage, "Failed to store file", err)
	}
	partPath := part.Name()

	written, copyErr := io.Copy(part, io.LimitReader(src, s.maxBytes+1))
	closeErr := part.Close()

	switch {
	case copyErr != nil:
		s.remove(partPath, "Removed partial upload")
		if IsBodyTooLarge(copyErr) {
			return nil, s.sizeError()
		}
		return nil, apperr.Wrap(apperr.ErrStorage, "Failed to store file", copyErr)
	case written > s.maxBytes:
		s.remove(partPath, "Removed oversized upload")
		return nil, s.sizeError()
	case closeErr != nil:
		s.remove(partPath, "Removed partial upload")
		return nil, apperr.Wrap(apperr.ErrStorage, "Failed to store file", closeErr)
	}

	finalPath := filepath.Join(s.dir, name)
	if err := os.Rename(partPath, finalPath); err != nil {
		s.remove(partPath, "Removed partial upload")
		return nil, apperr.Wrap(apperr.ErrStorage, "Failed to store file", err)
	}

	s.logger.WithFields(logrus.Fields{
		"file": name,
		"size": written,
	}).Debug("Stored upload")

	return &Upload{
		store: s,
		path:  finalPath,
		url:   s.prefix + "/" + name,
		size:  written,
	}, nil
}

// Delete removes the file behind fileURL. A file that is already gone is not
// an error.
func (s *Store) Delete(fileURL string) error {
	filePath, err := s.resolve(fileURL)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperr.Wrap(apperr.ErrStorage, "Failed to remove file", err)
	}
	return nil
}

// Cleanup removes an orphaned file after a downstream failure, logging
// instead of returning errors.
func (s *Store) Cleanup(fileURL string) {
	if err := s.Delete(fileURL); err != nil {
		s.logger.WithError(err).WithField("file_url", fileURL).Error("Failed to clean up orphaned file")
		return
	}
	s.logger.WithField("file_url", fileURL).Debug("Cleaned up orphaned file")
}

// Exists reports whether the file behind fileURL is present
func (s *Store) Exists(fileURL string) bool {
	filePath, err := s.resolve(fileURL)
	if err != nil {
		return false
	}
	_, err = os.Stat(filePath)
	return err == nil
}

// ModTime returns when the file behind fileURL was last written
func (s *Store) ModTime(fileURL string) (time.Time, error) {
	filePath, err := s.resolve(fileURL)
	if err != nil {
		return time.Time{}, err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return time.Time{}, apperr.New(apperr.ErrNotFound, "File not found")
		}
		return time.Time{}, apperr.Wrap(apperr.ErrStorage, "Failed to stat file", err)
	}
	return info.ModTime(), nil
}

// Open opens the stored file behind fileURL for reading. In-progress part
// files are never served.
func (s *Store) Open(fileURL string) (*os.File, error) {
	filePath, err := s.resolve(fileURL)
	if err != nil || strings.HasPrefix(filepath.Base(filePath), ".") {
		return nil, apperr.New(apperr.ErrNotFound, "File not found")
	}

	file, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.New(apperr.ErrNotFound, "File not found")
		}
		return nil, apperr.Wrap(apperr.ErrStorage, "Failed to open file", err)
	}
	return file, nil
}

// List returns the file URLs of all stored songs
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrStorage, "Failed to list files", err)
	}

	urls := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		urls = append(urls, s.prefix+"/"+entry.Name())
	}
	return urls, nil
}

// URLFor returns the public URL of a file stored at filePath, if it lives in
// the songs directory.
func (s *Store) URLFor(filePath string) (string, bool) {
	if filepath.Dir(filepath.Clean(filePath)) != filepath.Clean(s.dir) {
		return "", false
	}
	return s.prefix + "/" + filepath.Base(filePath), true
}

// resolve maps a public file URL back onto the songs directory, refusing
// anything that would escape it.
func (s *Store) resolve(fileURL string) (string, error) {
	name, ok := strings.CutPrefix(fileURL, s.prefix+"/")
	if !ok || name == "" || name != path.Base(name) || name == ".." || strings.ContainsRune(name, '\\') {
		return "", apperr.New(apperr.ErrValidation, "File URL outside of the songs directory")
	}
	return filepath.Join(s.dir, name), nil
}

func (s *Store) sizeError() error {
	return apperr.New(apperr.ErrSizeLimitExceeded,
		fmt.Sprintf("File too large (max %d MB)", s.maxBytes/(1024*1024)))
}

func (s *Store) remove(filePath, msg string) {
	if err := os.Remove(filePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.WithError(err).WithField("file_path", filePath).Error("Failed to remove file")
		return
	}
	s.logger.WithField("file_path", filePath).Debug(msg)
}

// IsAllowedMimeType reports whether a declared content type is an accepted
// audio type. Parameters such as charset are ignored.
func IsAllowedMimeType(declared string) bool {
	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return false
	}
	return slices.Contains(allowedMimeTypes, strings.ToLower(mediaType))
}

// IsBodyTooLarge detects http.MaxBytesReader tripping while a request body is read
func IsBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}

// generateFilename returns song-<unix millis>-<random hex><ext>
func generateFilename(ext string) (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return fmt.Sprintf("song-%d-%s%s", time.Now().UnixMilli(), hex.EncodeToString(buf), ext), nil
}
