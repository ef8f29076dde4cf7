package server

import (
	"net/http"

	"tunedeck/internal/auth"
	"tunedeck/internal/playlist"
)

type addSongRequest struct {
	SongID string `json:"songId"`
}

// handleCreatePlaylist creates a playlist owned by the caller
func (s *Server) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var req playlist.CreateInput
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}

	identity, _ := auth.IdentityFromContext(r.Context())
	created, err := s.playlists.Create(r.Context(), identity, req)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}

	s.respondJSON(w, created)
}

// handleMyPlaylists returns the caller's playlists with songs populated
func (s *Server) handleMyPlaylists(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	playlists, err := s.playlists.ListMine(r.Context(), identity)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}

	populated, err := s.playlists.PopulateAll(r.Context(), playlists)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}

	s.respondJSON(w, populated)
}

// handleGetPlaylist returns one playlist with songs populated
func (s *Server) handleGetPlaylist(w http.ResponseWriter, r *http.Request) {
	id, verr := validateID(r, "id")
	if verr != nil {
		s.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	identity, _ := auth.IdentityFromContext(r.Context())
	found, err := s.playlists.Get(r.Context(), identity, id)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}

	populated, err := s.playlists.Populate(r.Context(), found)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}

	s.respondJSON(w, populated)
}

// handleAddSong appends a song reference to the caller's playlist
func (s *Server) handleAddSong(w http.ResponseWriter, r *http.Request) {
	id, verr := validateID(r, "id")
	if verr != nil {
		s.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	var req addSongRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}

	identity, _ := auth.IdentityFromContext(r.Context())
	updated, err := s.playlists.AddSong(r.Context(), identity, id, req.SongID)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}

	s.respondJSON(w, updated)
}

// handleRemoveSong drops a song reference from the caller's playlist
func (s *Server) handleRemoveSong(w http.ResponseWriter, r *http.Request) {
	id, verr := validateID(r, "id")
	if verr != nil {
		s.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}
	songID, verr := validateID(r, "songId")
	if verr != nil {
		s.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	identity, _ := auth.IdentityFromContext(r.Context())
	updated, err := s.playlists.RemoveSong(r.Context(), identity, id, songID)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}

	s.respondJSON(w, updated)
}

// handleDeletePlaylist deletes the caller's playlist
func (s *Server) handleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
	id, verr := validateID(r, "id")
	if verr != nil {
		s.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	identity, _ := auth.IdentityFromContext(r.Context())
	if err := s.playlists.Delete(r.Context(), identity, id); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}

	s.respondJSON(w, map[string]string{"message": "Playlist removed"})
}
