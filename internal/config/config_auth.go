package config

import (
	"time"

	"github.com/haasonsaas/aisopod/pkg/models"
)

type AuthConfig struct {
	JWTSecret   models.Sensitive[string] `yaml:"jwt_secret"`
	TokenExpiry time.Duration            `yaml:"token_expiry"`
	APIKeys     []APIKeyConfig           `yaml:"api_keys"`
	OAuth       OAuthConfig              `yaml:"oauth"`
}

type APIKeyConfig struct {
	Key    string `yaml:"key"`
	UserID string `yaml:"user_id"`
	Email  string `yaml:"email"`
	Name   string `yaml:"name"`

	// Role labels the connection in logs and audit trails; it carries no
	// authorization weight on its own.
	Role string `yaml:"role,omitempty"`

	// Scopes grants this key operator.* capabilities over the JSON-RPC
	// gateway surface. Empty means the key carries no RPC scopes at all.
	Scopes []string `yaml:"scopes,omitempty"`
}

type OAuthConfig struct {
	Google OAuthProviderConfig `yaml:"google"`
	GitHub OAuthProviderConfig `yaml:"github"`
}

type OAuthProviderConfig struct {
	ClientID     string                   `yaml:"client_id"`
	ClientSecret models.Sensitive[string] `yaml:"client_secret"`
	RedirectURL  string                   `yaml:"redirect_url"`
}
