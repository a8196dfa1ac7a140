// Package auth provides JWT authentication for the rmirror API.
package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenUse indicates what a token is issued for.
type TokenUse string

const (
	// TokenUseAccess is a short-lived token for interactive API sessions.
	TokenUseAccess TokenUse = "access"
	// TokenUseRefresh is a long-lived token for obtaining new access tokens.
	TokenUseRefresh TokenUse = "refresh"
	// TokenUseAgent is a 30-day token issued to device agents. Agents cannot
	// practically run an interactive refresh flow, so they get one long-lived
	// bearer credential instead of a pair.
	TokenUseAgent TokenUse = "agent"
)

// Claims represents JWT claims for rmirror authentication.
type Claims struct {
	jwt.RegisteredClaims

	// UserID is the unique identifier (UUID) for the user.
	UserID string `json:"uid"`

	// Email is the user's login email.
	Email string `json:"email"`

	// Role is the user's role ("admin" or "user").
	Role string `json:"role"`

	// TokenUse indicates access, refresh or agent.
	TokenUse TokenUse `json:"token_use"`
}

// IsAccessToken returns true for interactive access tokens.
func (c *Claims) IsAccessToken() bool {
	return c.TokenUse == TokenUseAccess
}

// IsRefreshToken returns true for refresh tokens.
func (c *Claims) IsRefreshToken() bool {
	return c.TokenUse == TokenUseRefresh
}

// IsAgentToken returns true for device agent tokens.
func (c *Claims) IsAgentToken() bool {
	return c.TokenUse == TokenUseAgent
}

// Bearer reports whether the token authorizes API calls (access or agent).
func (c *Claims) Bearer() bool {
	return c.IsAccessToken() || c.IsAgentToken()
}

// IsAdmin returns true if the user has admin role.
func (c *Claims) IsAdmin() bool {
	return c.Role == "admin"
}
