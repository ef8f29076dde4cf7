package server

import (
	"net/http"
)

// ConfigResponse represents the public configuration sent to the frontend
type ConfigResponse struct {
	Upload UploadConfigResponse `json:"upload"`
}

// UploadConfigResponse describes what an upload may contain
type UploadConfigResponse struct {
	MaxUploadSize  int64    `json:"max_upload_size_mb"`
	AllowedFormats []string `json:"allowed_formats"`
	SongsURL       string   `json:"songs_url"`
}

// handleGetConfig returns public configuration settings for the frontend
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, ConfigResponse{
		Upload: UploadConfigResponse{
			MaxUploadSize:  s.config.Media.MaxUploadSizeMB,
			AllowedFormats: s.config.Media.AllowedFormats,
			SongsURL:       s.config.SongsURLPrefix(),
		},
	})
}
