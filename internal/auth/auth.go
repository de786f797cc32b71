package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/haasonsaas/aisopod/pkg/models"
)

var (
	ErrAuthDisabled = errors.New("auth disabled")
	ErrInvalidToken = errors.New("invalid token")
	ErrInvalidKey   = errors.New("invalid api key")
)

// Config configures authentication helpers.
type Config struct {
	JWTSecret   string
	TokenExpiry time.Duration
	APIKeys     []APIKeyConfig
}

// APIKeyConfig declares a static API key and associated identity.
type APIKeyConfig struct {
	Key    string
	UserID string
	Email  string
	Name   string

	// Role and Scopes carry the RPC operator grants this key resolves to;
	// Authenticate surfaces them unchanged so the gateway can build a
	// connection's rpc.ConnState from them.
	Role   string
	Scopes []string
}

type apiKeyPrincipal struct {
	user   *models.User
	role   string
	scopes []string
}

// Service validates JWTs and API keys.
type Service struct {
	mu        sync.RWMutex
	jwt       *JWTService
	apiKeys   map[string]apiKeyPrincipal
	users     UserStore
	providers map[string]OAuthProvider
}

// NewService constructs an auth service from static configuration.
func NewService(cfg Config) *Service {
	service := &Service{}
	if strings.TrimSpace(cfg.JWTSecret) != "" {
		service.jwt = NewJWTService(cfg.JWTSecret, cfg.TokenExpiry)
	}
	service.apiKeys = buildAPIKeyMap(cfg.APIKeys)
	service.providers = map[string]OAuthProvider{}
	return service
}

// Enabled reports whether auth checks should run.
func (s *Service) Enabled() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jwt != nil || len(s.apiKeys) > 0
}

// GenerateJWT issues a signed token for the given user.
func (s *Service) GenerateJWT(user *models.User) (string, error) {
	if s == nil {
		return "", ErrAuthDisabled
	}
	s.mu.RLock()
	jwt := s.jwt
	s.mu.RUnlock()
	if jwt == nil {
		return "", ErrAuthDisabled
	}
	return jwt.Generate(user)
}

// ValidateJWT validates a JWT and returns the associated user.
func (s *Service) ValidateJWT(token string) (*models.User, error) {
	if s == nil {
		return nil, ErrAuthDisabled
	}
	s.mu.RLock()
	jwt := s.jwt
	s.mu.RUnlock()
	if jwt == nil {
		return nil, ErrAuthDisabled
	}
	return jwt.Validate(token)
}

// ValidateAPIKey validates an API key and returns the associated user.
// Uses constant-time comparison to prevent timing attacks.
func (s *Service) ValidateAPIKey(key string) (*models.User, error) {
	principal, err := s.lookupAPIKey(key)
	if err != nil {
		return nil, err
	}
	return principal.user, nil
}

// Authenticate resolves a bearer token against JWTs first, then the static
// API key table, returning the resolved user alongside the role/scopes the
// gateway should grant the connection.
func (s *Service) Authenticate(token string) (user *models.User, role string, scopes []string, err error) {
	if s == nil {
		return nil, "", nil, ErrAuthDisabled
	}
	if claims, jwtErr := s.ValidateClaimsJWT(token); jwtErr == nil {
		return &models.User{ID: claims.Subject, Email: claims.Email, Name: claims.Name}, claims.Role, claims.Scopes, nil
	}
	principal, keyErr := s.lookupAPIKey(token)
	if keyErr != nil {
		return nil, "", nil, ErrInvalidToken
	}
	return principal.user, principal.role, principal.scopes, nil
}

// ValidateClaimsJWT exposes the full JWT claim set, used by Authenticate.
func (s *Service) ValidateClaimsJWT(token string) (*Claims, error) {
	if s == nil {
		return nil, ErrAuthDisabled
	}
	s.mu.RLock()
	jwt := s.jwt
	s.mu.RUnlock()
	if jwt == nil {
		return nil, ErrAuthDisabled
	}
	return jwt.ValidateClaims(token)
}

func (s *Service) lookupAPIKey(key string) (apiKeyPrincipal, error) {
	if s == nil {
		return apiKeyPrincipal{}, ErrAuthDisabled
	}
	s.mu.RLock()
	apiKeys := s.apiKeys
	s.mu.RUnlock()

	if len(apiKeys) == 0 {
		return apiKeyPrincipal{}, ErrAuthDisabled
	}
	inputKey := strings.TrimSpace(key)
	// Iterate through all keys using constant-time comparison
	// to prevent timing attacks that could reveal valid keys.
	var matched apiKeyPrincipal
	var found bool
	for storedKey, principal := range apiKeys {
		if subtle.ConstantTimeCompare([]byte(inputKey), []byte(storedKey)) == 1 {
			matched = principal
			found = true
		}
	}
	if !found {
		return apiKeyPrincipal{}, ErrInvalidKey
	}
	return matched, nil
}

func buildAPIKeyMap(keys []APIKeyConfig) map[string]apiKeyPrincipal {
	out := map[string]apiKeyPrincipal{}
	for _, entry := range keys {
		key := strings.TrimSpace(entry.Key)
		if key == "" {
			continue
		}
		userID := strings.TrimSpace(entry.UserID)
		if userID == "" {
			sum := sha256.Sum256([]byte(key))
			userID = "api_" + hex.EncodeToString(sum[:8])
		}
		out[key] = apiKeyPrincipal{
			user: &models.User{
				ID:    userID,
				Email: strings.TrimSpace(entry.Email),
				Name:  strings.TrimSpace(entry.Name),
			},
			role:   entry.Role,
			scopes: entry.Scopes,
		}
	}
	return out
}
