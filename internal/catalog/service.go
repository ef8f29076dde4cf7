package catalog

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"tunedeck/internal/apperr"
	"tunedeck/internal/auth"
	"tunedeck/internal/cache"
	"tunedeck/internal/media"
	"tunedeck/internal/metadata"
	"tunedeck/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SongRepository is the persistence the catalog needs
type SongRepository interface {
	InsertSong(ctx context.Context, song models.Song) error
	GetSong(ctx context.Context, id string) (*models.Song, error)
	GetSongByFileURL(ctx context.Context, fileURL string) (*models.Song, error)
	GetSongsByIDs(ctx context.Context, ids []string) ([]models.Song, error)
	ListSongs(ctx context.Context) ([]models.Song, error)
	DeleteSong(ctx context.Context, id string) error
}

// MediaStore stores and removes song files
type MediaStore interface {
	Receive(ctx context.Context, src io.Reader, declaredMimeType, originalFilename string) (*media.Upload, error)
	Delete(fileURL string) error
	Exists(fileURL string) bool
	ModTime(fileURL string) (time.Time, error)
	List() ([]string, error)
}

// DurationProbe reads audio properties from a stored file
type DurationProbe interface {
	Duration(filePath string) (int, error)
	Tags(filePath string) (metadata.Tags, error)
}

// UploadInput is one song upload as received from a client
type UploadInput struct {
	Title    string
	Artist   string
	Album    string
	File     io.Reader
	MimeType string
	Filename string
}

// DeleteResult reports how a song deletion went. The record is always gone
// when DeleteSong succeeds; the file may have survived.
type DeleteResult struct {
	Song        models.Song `json:"-"`
	FileRemoved bool        `json:"fileRemoved"`
	FileError   string      `json:"fileError,omitempty"`
}

// Service manages the song catalog. Only admins may add or remove songs.
type Service struct {
	songs  SongRepository
	media  MediaStore
	probe  DurationProbe
	cache  *cache.SongCache
	logger *logrus.Logger
	now    func() time.Time

	orphanGrace time.Duration
}

// NewService creates a catalog service. songCache may be nil.
func NewService(songs SongRepository, store MediaStore, probe DurationProbe, songCache *cache.SongCache, logger *logrus.Logger) *Service {
	return &Service{
		songs:  songs,
		media:  store,
		probe:  probe,
		cache:  songCache,
		logger: logger,
		now:    time.Now,

		orphanGrace: OrphanGracePeriod,
	}
}

// AuthorizeUpload checks, before any bytes are read, that requester may upload
func (s *Service) AuthorizeUpload(requester auth.Identity) error {
	return auth.RequireRole(requester, models.RoleAdmin)
}

// UploadSong stores the file, probes it and creates the song record. A file
// is never left behind without a record.
func (s *Service) UploadSong(ctx context.Context, requester auth.Identity, in UploadInput) (*models.Song, error) {
	if err := s.AuthorizeUpload(requester); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	artist := strings.TrimSpace(in.Artist)
	album := strings.TrimSpace(in.Album)
	if err := validateSongFields(title, artist, album); err != nil {
		return nil, err
	}

	upload, err := s.media.Receive(ctx, in.File, in.MimeType, in.Filename)
	if err != nil {
		return nil, err
	}
	defer upload.Release()

	duration, err := s.probe.Duration(upload.Path())
	if err != nil {
		s.logger.WithError(err).WithField("file_url", upload.URL()).Warn("Failed to probe duration, setting to 0")
		duration = 0
	}

	if album == "" {
		if tags, err := s.probe.Tags(upload.Path()); err == nil {
			album = cleanTag(tags.Album)
		}
	}

	song := models.Song{
		ID:         uuid.NewString(),
		Title:      title,
		Artist:     artist,
		Album:      album,
		Duration:   duration,
		FileURL:    upload.URL(),
		UploadedBy: requester.UserID,
		CreatedAt:  s.now(),
	}

	if err := s.songs.InsertSong(ctx, song); err != nil {
		return nil, apperr.Wrap(apperr.ErrStorage, "Failed to save song", err)
	}
	upload.Commit()
	s.invalidate()

	s.logger.WithFields(logrus.Fields{
		"song_id":  song.ID,
		"title":    song.Title,
		"artist":   song.Artist,
		"duration": song.Duration,
		"size":     upload.Size(),
	}).Info("Song uploaded")

	return &song, nil
}

// ListSongs returns every song, newest first
func (s *Service) ListSongs(ctx context.Context) ([]models.Song, error) {
	var generation uint64
	if s.cache != nil {
		if songs, ok := s.cache.GetSongs(); ok {
			return songs, nil
		}
		generation = s.cache.Generation()
	}

	songs, err := s.songs.ListSongs(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrStorage, "Failed to list songs", err)
	}

	// Skipped when an upload or delete invalidated during the read
	if s.cache != nil {
		s.cache.SetSongsIfCurrent(songs, generation)
	}
	return songs, nil
}

// GetSong returns a single song
func (s *Service) GetSong(ctx context.Context, id string) (*models.Song, error) {
	song, err := s.songs.GetSong(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.New(apperr.ErrNotFound, "Song not found")
		}
		return nil, apperr.Wrap(apperr.ErrStorage, "Failed to load song", err)
	}
	return song, nil
}

// SongsByID resolves song references; IDs without a song are absent from the map
func (s *Service) SongsByID(ctx context.Context, ids []string) (map[string]models.Song, error) {
	songs, err := s.songs.GetSongsByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrStorage, "Failed to load songs", err)
	}

	byID := make(map[string]models.Song, len(songs))
	for _, song := range songs {
		byID[song.ID] = song
	}
	return byID, nil
}

// DeleteSong removes the record and then the file. A file that cannot be
// removed is logged and reported but does not undo the deletion; playlists
// keep their reference.
func (s *Service) DeleteSong(ctx context.Context, requester auth.Identity, id string) (*DeleteResult, error) {
	if err := auth.RequireRole(requester, models.RoleAdmin); err != nil {
		return nil, err
	}

	song, err := s.GetSong(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.songs.DeleteSong(ctx, id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.New(apperr.ErrNotFound, "Song not found")
		}
		return nil, apperr.Wrap(apperr.ErrStorage, "Failed to delete song", err)
	}
	s.invalidate()

	result := &DeleteResult{Song: *song, FileRemoved: true}
	if err := s.media.Delete(song.FileURL); err != nil {
		result.FileRemoved = false
		result.FileError = apperr.Message(err)
		s.logger.WithError(err).WithFields(logrus.Fields{
			"song_id":  song.ID,
			"file_url": song.FileURL,
		}).Error("Song deleted but its file could not be removed")
	}

	s.logger.WithFields(logrus.Fields{
		"song_id":      song.ID,
		"file_removed": result.FileRemoved,
	}).Info("Song deleted")

	return result, nil
}

func (s *Service) invalidate() {
	if s.cache != nil {
		s.cache.InvalidateSongs()
	}
}

const maxFieldLength = 255

func validateSongFields(title, artist, album string) error {
	if title == "" {
		return apperr.Field(apperr.ErrValidation, "title", "Title is required")
	}
	if artist == "" {
		return apperr.Field(apperr.ErrValidation, "artist", "Artist is required")
	}

	fields := []struct{ name, value string }{
		{"title", title}, {"artist", artist}, {"album", album},
	}
	for _, f := range fields {
		if utf8.RuneCountInString(f.value) > maxFieldLength {
			return apperr.Field(apperr.ErrValidation, f.name, strings.ToUpper(f.name[:1])+f.name[1:]+" too long (max 255 characters)")
		}
		if strings.ContainsAny(f.value, "\x00\n\r") {
			return apperr.Field(apperr.ErrValidation, f.name, strings.ToUpper(f.name[:1])+f.name[1:]+" contains invalid characters")
		}
	}
	return nil
}

// cleanTag makes embedded tag text fit the rules form input is held to:
// control characters are dropped and the result is trimmed and truncated.
func cleanTag(value string) string {
	value = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, value)
	return truncate(strings.TrimSpace(value), maxFieldLength)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
