package auth

import (
	"errors"
	"fmt"
	"time"

	"tunedeck/pkg/models"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the payload of an issued bearer token
type TokenClaims struct {
	UserID string      `json:"uid"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs a bearer token for user
func (s *Service) IssueToken(user *models.User) (string, error) {
	now := s.now()

	claims := &TokenClaims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken parses and validates a bearer token
func (s *Service) VerifyToken(raw string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", errInvalidToken)
		}
		return nil, fmt.Errorf("%w: %v", errInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, errInvalidToken
	}
	return claims, nil
}

var errInvalidToken = errors.New("invalid token")

func (s *Service) now() time.Time {
	if s.clock != nil {
		return s.clock()
	}
	return time.Now()
}
