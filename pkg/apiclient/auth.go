package apiclient

import (
	"time"
)

// LoginRequest represents a login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse represents the token pair from login/refresh endpoints.
type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"` // seconds
	ExpiresAt    time.Time `json:"expires_at"`
}

// ExpiresInDuration returns ExpiresIn as a time.Duration.
func (t *TokenResponse) ExpiresInDuration() time.Duration {
	return time.Duration(t.ExpiresIn) * time.Second
}

// AgentTokenResponse is the long-lived credential minted for device agents.
type AgentTokenResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// User is the account behind the current token.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Login authenticates with the server and returns tokens.
func (c *Client) Login(email, password string) (*TokenResponse, error) {
	req := LoginRequest{
		Email:    email,
		Password: password,
	}

	var resp TokenResponse
	if err := c.post("/v1/auth/login", req, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// RefreshToken refreshes the access token using the refresh token.
func (c *Client) RefreshToken(refreshToken string) (*TokenResponse, error) {
	req := struct {
		RefreshToken string `json:"refresh_token"`
	}{
		RefreshToken: refreshToken,
	}

	var resp TokenResponse
	if err := c.post("/v1/auth/refresh", req, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// AgentToken mints a long-lived agent credential for the current user.
// Requires an authenticated client.
func (c *Client) AgentToken() (*AgentTokenResponse, error) {
	var resp AgentTokenResponse
	if err := c.post("/v1/auth/agent-token", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Me returns the account behind the current token.
func (c *Client) Me() (*User, error) {
	return getResource[User](c, "/v1/auth/me")
}
