package playlist

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"tunedeck/internal/apperr"
	"tunedeck/internal/auth"
	"tunedeck/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// maxUpdateAttempts bounds the compare-and-swap retries of a song list change
const maxUpdateAttempts = 5

const (
	maxNameLength        = 255
	maxDescriptionLength = 1000
)

// MaxSongIDLength matches the limit on IDs in request paths, so every song
// that can be added can also be removed by ID.
const MaxSongIDLength = 64

// Repository is the playlist persistence
type Repository interface {
	InsertPlaylist(ctx context.Context, playlist models.Playlist) error
	GetPlaylist(ctx context.Context, id string) (*models.Playlist, error)
	ListPlaylistsByOwner(ctx context.Context, owner string) ([]models.Playlist, error)
	UpdatePlaylistSongs(ctx context.Context, id string, expectedVersion int64, songs []string, updatedAt time.Time) error
	DeletePlaylist(ctx context.Context, id string) error
}

// SongLookup resolves song references for populated views
type SongLookup interface {
	SongsByID(ctx context.Context, ids []string) (map[string]models.Song, error)
}

// CreateInput holds the fields of a new playlist
type CreateInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPublic    bool   `json:"isPublic"`
}

// Service manages playlists. Only the creator of a playlist may change it.
type Service struct {
	repo   Repository
	songs  SongLookup
	logger *logrus.Logger
	now    func() time.Time
}

// NewService creates a playlist service
func NewService(repo Repository, songs SongLookup, logger *logrus.Logger) *Service {
	return &Service{
		repo:   repo,
		songs:  songs,
		logger: logger,
		now:    time.Now,
	}
}

// Create makes an empty playlist owned by requester
func (s *Service) Create(ctx context.Context, requester auth.Identity, in CreateInput) (*models.Playlist, error) {
	if requester.UserID == "" {
		return nil, apperr.New(apperr.ErrUnauthenticated, "Not authenticated")
	}

	name := strings.TrimSpace(in.Name)
	description := strings.TrimSpace(in.Description)
	if err := validatePlaylist(name, description); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	playlist := models.Playlist{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		IsPublic:    in.IsPublic,
		CreatedBy:   requester.UserID,
		Songs:       []string{},
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.InsertPlaylist(ctx, playlist); err != nil {
		return nil, apperr.Wrap(apperr.ErrStorage, "Failed to create playlist", err)
	}

	s.logger.WithFields(logrus.Fields{
		"playlist_id": playlist.ID,
		"name":        playlist.Name,
		"owner":       playlist.CreatedBy,
	}).Info("Playlist created")

	return &playlist, nil
}

// ListMine returns the requester's playlists, most recently updated first
func (s *Service) ListMine(ctx context.Context, requester auth.Identity) ([]models.Playlist, error) {
	playlists, err := s.repo.ListPlaylistsByOwner(ctx, requester.UserID)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrStorage, "Failed to list playlists", err)
	}
	return playlists, nil
}

// Get returns a playlist visible to requester. Private playlists are visible
// to their owner only.
func (s *Service) Get(ctx context.Context, requester auth.Identity, id string) (*models.Playlist, error) {
	playlist, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if !playlist.IsPublic {
		if err := auth.RequireOwnership(requester, playlist.CreatedBy); err != nil {
			return nil, err
		}
	}
	return playlist, nil
}

// AddSong appends songID to the playlist. A song that is already present is
// rejected with apperr.ErrDuplicateEntry. The song is not checked against the
// catalog.
func (s *Service) AddSong(ctx context.Context, requester auth.Identity, playlistID, songID string) (*models.Playlist, error) {
	songID = strings.TrimSpace(songID)

	// mutate checks ownership before change runs
	return s.mutate(ctx, requester, playlistID, func(p *models.Playlist) (bool, error) {
		if err := validateSongID(songID); err != nil {
			return false, err
		}
		if p.HasSong(songID) {
			return false, apperr.New(apperr.ErrDuplicateEntry, "Song already in playlist")
		}
		p.Songs = append(p.Songs, songID)
		return true, nil
	})
}

// RemoveSong drops songID from the playlist. Removing a song that is not in
// the playlist succeeds without changing it.
func (s *Service) RemoveSong(ctx context.Context, requester auth.Identity, playlistID, songID string) (*models.Playlist, error) {
	songID = strings.TrimSpace(songID)
	return s.mutate(ctx, requester, playlistID, func(p *models.Playlist) (bool, error) {
		if !p.HasSong(songID) {
			return false, nil
		}
		p.Songs = slices.DeleteFunc(p.Songs, func(id string) bool { return id == songID })
		return true, nil
	})
}

// Delete removes a playlist owned by requester
func (s *Service) Delete(ctx context.Context, requester auth.Identity, playlistID string) error {
	playlist, err := s.load(ctx, playlistID)
	if err != nil {
		return err
	}
	if err := auth.RequireOwnership(requester, playlist.CreatedBy); err != nil {
		return err
	}

	if err := s.repo.DeletePlaylist(ctx, playlistID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.New(apperr.ErrNotFound, "Playlist not found")
		}
		return apperr.Wrap(apperr.ErrStorage, "Failed to delete playlist", err)
	}

	s.logger.WithField("playlist_id", playlistID).Info("Playlist deleted")
	return nil
}

// Populate resolves the playlist's song references. References to songs that
// no longer exist are left out of Songs.
func (s *Service) Populate(ctx context.Context, playlist *models.Playlist) (*models.PopulatedPlaylist, error) {
	populated, err := s.PopulateAll(ctx, []models.Playlist{*playlist})
	if err != nil {
		return nil, err
	}
	return &populated[0], nil
}

// PopulateAll resolves the song references of several playlists with a single
// lookup
func (s *Service) PopulateAll(ctx context.Context, playlists []models.Playlist) ([]models.PopulatedPlaylist, error) {
	var ids []string
	for _, p := range playlists {
		ids = append(ids, p.Songs...)
	}

	byID := map[string]models.Song{}
	if len(ids) > 0 {
		var err error
		if byID, err = s.songs.SongsByID(ctx, ids); err != nil {
			return nil, err
		}
	}

	result := make([]models.PopulatedPlaylist, 0, len(playlists))
	for _, p := range playlists {
		songs := make([]models.Song, 0, len(p.Songs))
		for _, id := range p.Songs {
			if song, ok := byID[id]; ok {
				songs = append(songs, song)
			}
		}

		songIDs := p.Songs
		if songIDs == nil {
			songIDs = []string{}
		}

		result = append(result, models.PopulatedPlaylist{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			IsPublic:    p.IsPublic,
			CreatedBy:   p.CreatedBy,
			Songs:       songs,
			SongIDs:     songIDs,
			Version:     p.Version,
			CreatedAt:   p.CreatedAt,
			UpdatedAt:   p.UpdatedAt,
		})
	}
	return result, nil
}

// mutate applies change to the current song list and writes it back with a
// version check, re-reading the playlist after each conflict. change reports
// whether it modified the playlist; unchanged playlists are not written.
func (s *Service) mutate(ctx context.Context, requester auth.Identity, playlistID string, change func(*models.Playlist) (bool, error)) (*models.Playlist, error) {
	for attempt := 1; ; attempt++ {
		playlist, err := s.load(ctx, playlistID)
		if err != nil {
			return nil, err
		}
		if err := auth.RequireOwnership(requester, playlist.CreatedBy); err != nil {
			return nil, err
		}

		changed, err := change(playlist)
		if err != nil {
			return nil, err
		}
		if !changed {
			return playlist, nil
		}

		updatedAt := s.now().UTC()
		err = s.repo.UpdatePlaylistSongs(ctx, playlist.ID, playlist.Version, playlist.Songs, updatedAt)
		switch {
		case err == nil:
			playlist.Version++
			playlist.UpdatedAt = updatedAt
			return playlist, nil
		case errors.Is(err, apperr.ErrNotFound):
			return nil, apperr.New(apperr.ErrNotFound, "Playlist not found")
		case errors.Is(err, apperr.ErrConflict):
			if attempt >= maxUpdateAttempts {
				s.logger.WithFields(logrus.Fields{
					"playlist_id": playlistID,
					"attempts":    attempt,
				}).Warn("Giving up on contended playlist update")
				return nil, apperr.New(apperr.ErrConflict, "Playlist was modified concurrently, please retry")
			}
			s.logger.WithFields(logrus.Fields{
				"playlist_id": playlistID,
				"attempt":     attempt,
			}).Debug("Playlist version conflict, retrying")
		default:
			return nil, apperr.Wrap(apperr.ErrStorage, "Failed to update playlist", err)
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

func (s *Service) load(ctx context.Context, id string) (*models.Playlist, error) {
	playlist, err := s.repo.GetPlaylist(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.New(apperr.ErrNotFound, "Playlist not found")
		}
		return nil, apperr.Wrap(apperr.ErrStorage, "Failed to load playlist", err)
	}
	if playlist.Songs == nil {
		playlist.Songs = []string{}
	}
	return playlist, nil
}

func validatePlaylist(name, description string) error {
	if name == "" {
		return apperr.Field(apperr.ErrValidation, "name", "Playlist name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return apperr.Field(apperr.ErrValidation, "name", "Playlist name too long (max 255 characters)")
	}
	if strings.ContainsAny(name, "\x00\n\r") {
		return apperr.Field(apperr.ErrValidation, "name", "Playlist name contains invalid characters")
	}
	if utf8.RuneCountInString(description) > maxDescriptionLength {
		return apperr.Field(apperr.ErrValidation, "description", "Description too long (max 1000 characters)")
	}
	return nil
}

func validateSongID(songID string) error {
	if songID == "" {
		return apperr.Field(apperr.ErrValidation, "songId", "Song ID is required")
	}
	if len(songID) > MaxSongIDLength {
		return apperr.Field(apperr.ErrValidation, "songId", "Song ID too long (max 64 characters)")
	}
	if strings.ContainsFunc(songID, unicode.IsControl) {
		return apperr.Field(apperr.ErrValidation, "songId", "Song ID contains invalid characters")
	}
	return nil
}
