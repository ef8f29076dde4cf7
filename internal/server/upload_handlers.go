package server

import (
	"errors"
	"fmt"
	"net/http"

	"tunedeck/internal/apperr"
	"tunedeck/internal/auth"
	"tunedeck/internal/catalog"
	"tunedeck/internal/media"
)

const (
	// Room for the text fields and multipart framing on top of the file limit
	uploadFormOverhead = 1 << 20
	// Parts above this size are buffered in temporary files while parsing
	multipartMemory = 1 << 20
)

// handleUploadSong accepts a multipart upload (title, artist, album, song)
// from an admin and creates the song
func (s *Server) handleUploadSong(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	// Reject before reading any of the body
	if err := s.catalog.AuthorizeUpload(identity); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.store.MaxBytes()+uploadFormOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if media.IsBodyTooLarge(err) {
			s.respondWithServiceError(w, r, apperr.New(apperr.ErrSizeLimitExceeded,
				fmt.Sprintf("File too large (max %d MB)", s.store.MaxBytes()/(1024*1024))))
			return
		}
		s.respondWithError(w, r, http.StatusBadRequest, "Failed to parse upload form", err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("song")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			s.respondWithValidationError(w, r, []ValidationError{{
				Field:   "song",
				Message: "No file uploaded",
				Code:    "MISSING_FILE",
			}})
			return
		}
		s.respondWithError(w, r, http.StatusBadRequest, "Failed to read uploaded file", err)
		return
	}
	defer file.Close()

	song, err := s.catalog.UploadSong(r.Context(), identity, catalog.UploadInput{
		Title:    r.FormValue("title"),
		Artist:   r.FormValue("artist"),
		Album:    r.FormValue("album"),
		File:     file,
		MimeType: header.Header.Get("Content-Type"),
		Filename: header.Filename,
	})
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}

	s.respondJSON(w, song)
}
