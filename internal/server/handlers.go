package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"tunedeck/internal/auth"
)

// handleHome serves the UI from the configured static dir, falling back to
// index.html for client-side routes.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	staticDir := s.config.Server.StaticDir
	name := path.Clean("/" + r.URL.Path)

	if name != "/" {
		candidate := filepath.Join(staticDir, filepath.FromSlash(strings.TrimPrefix(name, "/")))
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			http.ServeFile(w, r, candidate)
			return
		}
	}

	http.ServeFile(w, r, filepath.Join(staticDir, "index.html"))
}

// handleListSongs returns the whole catalog, newest first
func (s *Server) handleListSongs(w http.ResponseWriter, r *http.Request) {
	songs, err := s.catalog.ListSongs(r.Context())
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}

	s.respondJSON(w, songs)
}

// handleGetSong returns one song
func (s *Server) handleGetSong(w http.ResponseWriter, r *http.Request) {
	id, verr := validateID(r, "id")
	if verr != nil {
		s.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	song, err := s.catalog.GetSong(r.Context(), id)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}

	s.respondJSON(w, song)
}

// handleDeleteSong removes a song and its file (admin only)
func (s *Server) handleDeleteSong(w http.ResponseWriter, r *http.Request) {
	id, verr := validateID(r, "id")
	if verr != nil {
		s.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	identity, _ := auth.IdentityFromContext(r.Context())
	result, err := s.catalog.DeleteSong(r.Context(), identity, id)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}

	response := map[string]interface{}{
		"message":     "Song removed",
		"fileRemoved": result.FileRemoved,
	}
	if result.FileError != "" {
		response["fileError"] = result.FileError
	}
	s.respondJSON(w, response)
}
