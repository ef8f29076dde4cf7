package server

import (
	"fmt"
	"net/http"

	"tunedeck/internal/metadata"

	"github.com/go-chi/chi/v5"
)

// handleServeAudio serves a stored song file for playback. Range requests
// and conditional requests are handled by http.ServeContent.
func (s *Server) handleServeAudio(w http.ResponseWriter, r *http.Request) {
	fileURL := s.config.SongsURLPrefix() + "/" + chi.URLParam(r, "file")

	file, err := s.store.Open(fileURL)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		s.respondWithError(w, r, http.StatusInternalServerError, "Error reading file info", err)
		return
	}

	// Stored names are never reused, so the content behind a URL is immutable
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("ETag", fmt.Sprintf(`"%d-%d"`, stat.ModTime().Unix(), stat.Size()))
	w.Header().Set("Content-Type", metadata.GetContentType(stat.Name()))
	w.Header().Set("Accept-Ranges", "bytes")

	http.ServeContent(w, r, stat.Name(), stat.ModTime(), file)
}
