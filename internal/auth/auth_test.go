package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"tunedeck/internal/apperr"
	"tunedeck/internal/database"
	"tunedeck/internal/logging"
	"tunedeck/pkg/models"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-0123456789"

func newTestService(t *testing.T, clock func() time.Time) (*Service, *database.Database) {
	t.Helper()

	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "auth.db"), 2, logging.Discard())
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	svc, err := NewService(db, Options{
		Secret:     []byte(testSecret),
		TokenTTL:   time.Hour,
		BcryptCost: bcrypt.MinCost,
		Clock:      clock,
	}, logging.Discard())
	if err != nil {
		t.Fatalf("Failed to create auth service: %v", err)
	}
	return svc, db
}

func TestNewServiceRejectsShortSecret(t *testing.T) {
	_, err := NewService(nil, Options{Secret: []byte("short"), TokenTTL: time.Hour}, logging.Discard())
	if err == nil {
		t.Error("Expected error for short secret")
	}
}

func TestRegisterAndLogin(t *testing.T) {
	svc, db := newTestService(t, nil)
	ctx := context.Background()

	token, err := svc.Register(ctx, "alice", "Alice@Example.com", "hunter22")
	if err != nil {
		t.Fatalf("Failed to register: %v", err)
	}

	identity, err := svc.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("Failed to authenticate registration token: %v", err)
	}
	if identity.Role != models.RoleUser {
		t.Errorf("Expected new accounts to be users, got %s", identity.Role)
	}

	stored, err := db.GetUserByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("Expected email to be stored normalized: %v", err)
	}
	if stored.PasswordHash == "hunter22" {
		t.Error("Password stored in plaintext")
	}

	t.Run("DuplicateEmail", func(t *testing.T) {
		_, err := svc.Register(ctx, "alice2", "alice@example.com", "hunter22")
		if !errors.Is(err, apperr.ErrDuplicateEntry) {
			t.Errorf("Expected ErrDuplicateEntry, got %v", err)
		}
	})

	t.Run("Login", func(t *testing.T) {
		token, err := svc.Login(ctx, "ALICE@example.com ", "hunter22")
		if err != nil {
			t.Fatalf("Failed to log in: %v", err)
		}
		if _, err := svc.Authenticate(ctx, token); err != nil {
			t.Errorf("Login token should authenticate: %v", err)
		}
	})

	t.Run("WrongPassword", func(t *testing.T) {
		_, err := svc.Login(ctx, "alice@example.com", "wrong-password")
		if !errors.Is(err, apperr.ErrInvalidCredentials) {
			t.Errorf("Expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("UnknownEmail", func(t *testing.T) {
		_, err := svc.Login(ctx, "nobody@example.com", "hunter22")
		if !errors.Is(err, apperr.ErrInvalidCredentials) {
			t.Errorf("Expected ErrInvalidCredentials, got %v", err)
		}
	})
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		email    string
		password string
		field    string
	}{
		{"MissingUsername", "", "a@example.com", "secret1", "username"},
		{"ShortUsername", "ab", "a@example.com", "secret1", "username"},
		{"MissingEmail", "alice", "", "secret1", "email"},
		{"BadEmail", "alice", "not-an-email", "secret1", "email"},
		{"ShortPassword", "alice", "a@example.com", "123", "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.username, tt.email, tt.password)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("Expected ErrValidation, got %v", err)
			}
			if got := apperr.FieldOf(err); got != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, got)
			}
		})
	}
}

func TestTokens(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	svc, _ := newTestService(t, clock)
	ctx := context.Background()

	admin, err := svc.CreateAdmin(ctx, "admin", "admin@example.com", "admin123")
	if err != nil {
		t.Fatalf("Failed to create admin: %v", err)
	}

	token, err := svc.IssueToken(admin)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}

	t.Run("Valid", func(t *testing.T) {
		identity, err := svc.Authenticate(ctx, token)
		if err != nil {
			t.Fatalf("Failed to authenticate: %v", err)
		}
		if identity.UserID != admin.ID || !identity.IsAdmin() {
			t.Errorf("Unexpected identity: %+v", identity)
		}
	})

	t.Run("Expired", func(t *testing.T) {
		now = now.Add(2 * time.Hour)
		defer func() { now = now.Add(-2 * time.Hour) }()

		_, err := svc.Authenticate(ctx, token)
		if !errors.Is(err, apperr.ErrUnauthenticated) {
			t.Errorf("Expected ErrUnauthenticated for expired token, got %v", err)
		}
	})

	t.Run("WrongSecret", func(t *testing.T) {
		claims := &TokenClaims{
			UserID: admin.ID,
			Role:   models.RoleAdmin,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		}
		forged, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("another-secret-0123456"))

		if _, err := svc.Authenticate(ctx, forged); !errors.Is(err, apperr.ErrUnauthenticated) {
			t.Errorf("Expected ErrUnauthenticated for forged token, got %v", err)
		}
	})

	t.Run("UnknownUser", func(t *testing.T) {
		ghost, err := svc.IssueToken(&models.User{ID: "ghost", Role: models.RoleAdmin})
		if err != nil {
			t.Fatalf("Failed to issue token: %v", err)
		}
		if _, err := svc.Authenticate(ctx, ghost); !errors.Is(err, apperr.ErrUnauthenticated) {
			t.Errorf("Expected ErrUnauthenticated for deleted user, got %v", err)
		}
	})

	t.Run("Me", func(t *testing.T) {
		user, err := svc.Me(ctx, Identity{UserID: admin.ID, Role: models.RoleAdmin})
		if err != nil {
			t.Fatalf("Failed to load current user: %v", err)
		}
		if user.Email != "admin@example.com" {
			t.Errorf("Unexpected user: %+v", user)
		}
	})
}

func TestPredicates(t *testing.T) {
	admin := Identity{UserID: "a", Role: models.RoleAdmin}
	user := Identity{UserID: "u", Role: models.RoleUser}

	if err := RequireRole(admin, models.RoleAdmin); err != nil {
		t.Errorf("Admin should satisfy admin role: %v", err)
	}
	if err := RequireRole(user, models.RoleAdmin); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized for user, got %v", err)
	}
	if err := RequireRole(Identity{Role: models.RoleAdmin}, models.RoleAdmin); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized for anonymous identity, got %v", err)
	}
	if err := RequireOwnership(user, "u"); err != nil {
		t.Errorf("Owner should pass ownership check: %v", err)
	}
	// Admins get no implicit ownership
	if err := RequireOwnership(admin, "u"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized for non-owner admin, got %v", err)
	}
}

func TestMiddleware(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	token, err := svc.Register(ctx, "bob", "bob@example.com", "secret1")
	if err != nil {
		t.Fatalf("Failed to register: %v", err)
	}

	var gotErr error
	onError := func(w http.ResponseWriter, r *http.Request, err error) {
		gotErr = err
		w.WriteHeader(apperr.HTTPStatus(err))
	}

	handler := svc.Middleware(onError)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok || id.Role != models.RoleUser {
			t.Errorf("Expected user identity in context, got %+v", id)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"Missing", "", http.StatusUnauthorized},
		{"WrongScheme", "Basic " + token, http.StatusUnauthorized},
		{"Garbage", "Bearer not-a-token", http.StatusUnauthorized},
		{"Valid", "Bearer " + token, http.StatusNoContent},
		{"CaseInsensitiveScheme", "bearer " + token, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotErr = nil
			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("Expected status %d, got %d (err: %v)", tt.want, rec.Code, gotErr)
			}
		})
	}
}
