package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"tunedeck/internal/apperr"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// maxJSONBodyBytes limits JSON request bodies
const maxJSONBodyBytes = 64 * 1024

// ValidationError represents a validation error with details
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ValidationResult is the body of a 400 response caused by invalid input
type ValidationResult struct {
	Error   string            `json:"error"`
	Code    int               `json:"code"`
	Success bool              `json:"success"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

// respondWithValidationError sends a structured validation error response
func (s *Server) respondWithValidationError(w http.ResponseWriter, r *http.Request, errs []ValidationError) {
	s.logger.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"errors": errs,
	}).Warn("Validation failed")

	message := "Validation failed"
	if len(errs) > 0 {
		message = errs[0].Message
	}

	s.respondJSONStatus(w, http.StatusBadRequest, ValidationResult{
		Error:   message,
		Code:    http.StatusBadRequest,
		Success: false,
		Errors:  errs,
	})
}

// respondWithError sends a structured error response
func (s *Server) respondWithError(w http.ResponseWriter, r *http.Request, statusCode int, message string, err error) {
	logEntry := s.logger.WithFields(logrus.Fields{
		"method":      r.Method,
		"path":        r.URL.Path,
		"status_code": statusCode,
		"message":     message,
	})

	if err != nil {
		logEntry = logEntry.WithError(err)
	}

	if statusCode >= 500 {
		logEntry.Error("Server error")
	} else {
		logEntry.Warn("Client error")
	}

	s.respondJSONStatus(w, statusCode, map[string]interface{}{
		"error":   message,
		"code":    statusCode,
		"success": false,
	})
}

// respondWithServiceError maps an error returned by a service onto a response
func (s *Server) respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if field := apperr.FieldOf(err); field != "" && status == http.StatusBadRequest {
		s.respondWithValidationError(w, r, []ValidationError{{
			Field:   field,
			Message: apperr.Message(err),
			Code:    apperr.Code(err),
		}})
		return
	}
	s.respondWithError(w, r, status, apperr.Message(err), err)
}

func (s *Server) respondJSON(w http.ResponseWriter, v interface{}) {
	s.respondJSONStatus(w, http.StatusOK, v)
}

func (s *Server) respondJSONStatus(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

// decodeJSON reads a JSON request body into dst
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.New(apperr.ErrValidation, "Request body is required")
		}
		return apperr.Wrap(apperr.ErrValidation, "Invalid JSON", err)
	}
	return nil
}

// validateID reads and checks a path parameter holding an entity ID
func validateID(r *http.Request, param string) (string, *ValidationError) {
	id := chi.URLParam(r, param)
	if id == "" {
		return "", &ValidationError{
			Field:   param,
			Message: "ID is required",
			Code:    "MISSING_ID",
		}
	}

	if len(id) > 64 {
		return "", &ValidationError{
			Field:   param,
			Message: "ID too long (max 64 characters)",
			Code:    "ID_TOO_LONG",
		}
	}

	if strings.ContainsFunc(id, func(c rune) bool { return c < 0x20 || c == 0x7f }) {
		return "", &ValidationError{
			Field:   param,
			Message: "ID contains invalid characters",
			Code:    "INVALID_ID_CHARACTERS",
		}
	}

	return id, nil
}

// sanitizeInput sanitizes user input to prevent injection attacks
func sanitizeInput(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Trim whitespace
	input = strings.TrimSpace(input)

	return input
}
