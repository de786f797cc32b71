package gateway

import (
	"net/http"
	"strings"

	"github.com/haasonsaas/aisopod/internal/auth"
	"github.com/haasonsaas/aisopod/internal/config"
	"github.com/haasonsaas/aisopod/internal/rpc"
)

// NewConfigAuthenticator builds an rpc.Authenticator backed by auth.Service,
// which checks a bearer token against the configured JWT secret first and
// the static api_keys table second. A connection's role/scopes come from
// whichever of the two resolved it.
func NewConfigAuthenticator(cfg config.AuthConfig) rpc.Authenticator {
	keys := make([]auth.APIKeyConfig, 0, len(cfg.APIKeys))
	for _, key := range cfg.APIKeys {
		if key.Key == "" {
			continue
		}
		keys = append(keys, auth.APIKeyConfig{
			Key:    key.Key,
			UserID: key.UserID,
			Email:  key.Email,
			Name:   key.Name,
			Role:   key.Role,
			Scopes: key.Scopes,
		})
	}
	service := auth.NewService(auth.Config{
		JWTSecret:   cfg.JWTSecret.Reveal(),
		TokenExpiry: cfg.TokenExpiry,
		APIKeys:     keys,
	})

	return rpc.AuthenticatorFunc(func(token string) (*rpc.ConnState, error) {
		if !service.Enabled() {
			return nil, rpc.ErrUnauthorized
		}
		user, role, scopes, err := service.Authenticate(token)
		if err != nil {
			return nil, rpc.ErrUnauthorized
		}
		if role == "" && user != nil {
			role = user.ID
		}
		return &rpc.ConnState{Role: role, Scopes: rpc.NewScopeSet(scopes...)}, nil
	})
}

// tokenFromRequest extracts a bearer/API-key token from the upgrade
// request's headers, checked before the WebSocket handshake completes.
func tokenFromRequest(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		return strings.TrimSpace(authHeader[len("bearer "):])
	}
	if token := r.Header.Get("X-Aisopod-Token"); token != "" {
		return token
	}
	return r.URL.Query().Get("token")
}
