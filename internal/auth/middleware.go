package auth

import (
	"context"
	"net/http"
	"strings"

	"tunedeck/internal/apperr"
)

type ctxIdentityKey struct{}

// ErrorResponder writes an error response for a failed authentication
type ErrorResponder func(w http.ResponseWriter, r *http.Request, err error)

// Middleware requires a valid "Authorization: Bearer <token>" header and
// stores the caller's Identity in the request context.
func (s *Service) Middleware(onError ErrorResponder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				onError(w, r, apperr.New(apperr.ErrUnauthenticated, "No token, authorization denied"))
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
				onError(w, r, apperr.New(apperr.ErrUnauthenticated, "Invalid Authorization header"))
				return
			}

			identity, err := s.Authenticate(r.Context(), strings.TrimSpace(parts[1]))
			if err != nil {
				onError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// WithIdentity returns a context carrying id
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxIdentityKey{}, id)
}

// IdentityFromContext returns the identity stored by Middleware
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxIdentityKey{}).(Identity)
	return id, ok && id.UserID != ""
}
