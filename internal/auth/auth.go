// Package auth issues and validates the JWT bearer tokens the API's admin
// routes require, and hashes/checks the admin password. Grounded on the
// teacher's internal/auth package (referenced throughout
// pkg/middleware/auth.go and internal/service/user_service.go as
// *auth.AuthService / auth.Claims, HashPassword/CheckPassword).
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"joborchestrator/internal/authstore"
)

const (
	// DefaultTokenTTL matches the teacher's 24h access token expiry.
	DefaultTokenTTL = 24 * time.Hour
	// LongLivedTokenTTL matches the teacher's 1-year CLI-login token
	// expiry (orchestratorctl login persists this via viper).
	LongLivedTokenTTL = 365 * 24 * time.Hour
)

// Claims is the JWT payload for an authenticated admin session.
type Claims struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// ErrInvalidToken is returned for any token that fails parsing,
// signature verification, or has expired.
var ErrInvalidToken = errors.New("auth: invalid or expired token")

// Service issues and validates JWTs for the single admin user.
type Service struct {
	secret []byte
}

// NewService builds a Service signing/verifying with the given secret
// (config.Config.JWTSecret).
func NewService(secret string) *Service {
	return &Service{secret: []byte(secret)}
}

func (s *Service) generateToken(user authstore.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// GenerateToken issues a DefaultTokenTTL (24h) access token, the one
// browser sessions receive from POST /api/auth/login.
func (s *Service) GenerateToken(user authstore.User) (string, error) {
	return s.generateToken(user, DefaultTokenTTL)
}

// GenerateLongLivedToken issues a LongLivedTokenTTL (1 year) token, the
// one orchestratorctl's login subcommand persists to its viper config so
// the CLI doesn't need to re-auth on every invocation.
func (s *Service) GenerateLongLivedToken(user authstore.User) (string, error) {
	return s.generateToken(user, LongLivedTokenTTL)
}

// ValidateToken parses and verifies a bearer token, returning its claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// HashPassword bcrypt-hashes a plaintext password for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored bcrypt hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
