package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tunedeck/internal/apperr"
	"tunedeck/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// UserRepository is the persistence the auth service needs
type UserRepository interface {
	InsertUser(ctx context.Context, user models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Options configures a Service
type Options struct {
	Secret     []byte
	TokenTTL   time.Duration
	BcryptCost int
	Clock      func() time.Time
}

// Service provides registration, login and bearer token verification
type Service struct {
	users      UserRepository
	secret     []byte
	tokenTTL   time.Duration
	bcryptCost int
	clock      func() time.Time
	logger     *logrus.Logger
}

// NewService creates a new authentication service
func NewService(users UserRepository, opts Options, logger *logrus.Logger) (*Service, error) {
	if len(opts.Secret) < 16 {
		return nil, fmt.Errorf("jwt secret must be at least 16 bytes")
	}
	if opts.TokenTTL <= 0 {
		return nil, fmt.Errorf("token ttl must be positive")
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = DefaultBcryptCost
	}

	return &Service{
		users:      users,
		secret:     opts.Secret,
		tokenTTL:   opts.TokenTTL,
		bcryptCost: opts.BcryptCost,
		clock:      opts.Clock,
		logger:     logger,
	}, nil
}

// Register creates a regular user account and returns a token for it
func (s *Service) Register(ctx context.Context, username, email, password string) (string, error) {
	user, err := s.createUser(ctx, username, email, password, models.RoleUser)
	if err != nil {
		return "", err
	}
	return s.IssueToken(user)
}

// CreateAdmin seeds an administrator account
func (s *Service) CreateAdmin(ctx context.Context, username, email, password string) (*models.User, error) {
	return s.createUser(ctx, username, email, password, models.RoleAdmin)
}

func (s *Service) createUser(ctx context.Context, username, email, password string, role models.Role) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)
	if err := validateRegistration(username, email, password); err != nil {
		return nil, err
	}

	hash, err := hashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrStorage, "Failed to create user", err)
	}

	user := models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    s.now(),
	}

	if err := s.users.InsertUser(ctx, user); err != nil {
		if errors.Is(err, apperr.ErrDuplicateEntry) {
			return nil, apperr.Field(apperr.ErrDuplicateEntry, "email", "User already exists")
		}
		return nil, apperr.Wrap(apperr.ErrStorage, "Failed to create user", err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"role":    user.Role,
	}).Info("User created")

	return &user, nil
}

// Login checks credentials and returns a token
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return "", apperr.New(apperr.ErrInvalidCredentials, "Invalid credentials")
		}
		return "", apperr.Wrap(apperr.ErrStorage, "Failed to log in", err)
	}

	if !checkPassword(user.PasswordHash, password) {
		s.logger.WithField("user_id", user.ID).Warn("Failed login attempt")
		return "", apperr.New(apperr.ErrInvalidCredentials, "Invalid credentials")
	}

	return s.IssueToken(user)
}

// Authenticate resolves a bearer token to the identity of a still existing user
func (s *Service) Authenticate(ctx context.Context, rawToken string) (Identity, error) {
	claims, err := s.VerifyToken(rawToken)
	if err != nil {
		return Identity{}, apperr.Wrap(apperr.ErrUnauthenticated, "Token is not valid", err)
	}

	// Role comes from the stored user so demotions apply immediately
	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Identity{}, apperr.New(apperr.ErrUnauthenticated, "Token is not valid")
		}
		return Identity{}, apperr.Wrap(apperr.ErrStorage, "Failed to authenticate", err)
	}

	return Identity{UserID: user.ID, Role: user.Role}, nil
}

// Me returns the account behind an identity
func (s *Service) Me(ctx context.Context, id Identity) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.New(apperr.ErrNotFound, "User not found")
		}
		return nil, apperr.Wrap(apperr.ErrStorage, "Failed to load user", err)
	}
	return user, nil
}
