package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	tokenFileName = "token.json"

	// Token files hold a 30-day bearer credential; owner-only access.
	tokenFilePermissions = 0600
	stateDirPermissions  = 0700
)

// ErrNotLoggedIn indicates no stored agent token exists.
var ErrNotLoggedIn = errors.New("not logged in - run 'rmirror-agent login' first")

// StoredToken is the persisted agent credential.
type StoredToken struct {
	ServerURL string    `json:"server_url"`
	Email     string    `json:"email,omitempty"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the token is past (or within a minute of) expiry.
func (t *StoredToken) Expired() bool {
	if t.ExpiresAt.IsZero() {
		return true
	}
	return time.Now().Add(time.Minute).After(t.ExpiresAt)
}

// TokenStore persists the agent token in the state directory.
type TokenStore struct {
	path string
}

// NewTokenStore creates a token store rooted at stateDir.
func NewTokenStore(stateDir string) *TokenStore {
	return &TokenStore{path: filepath.Join(stateDir, tokenFileName)}
}

// Load reads the stored token.
func (s *TokenStore) Load() (*StoredToken, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotLoggedIn
		}
		return nil, fmt.Errorf("reading token file: %w", err)
	}

	var token StoredToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("corrupt token file %s: %w", s.path, err)
	}
	if token.Token == "" {
		return nil, ErrNotLoggedIn
	}
	return &token, nil
}

// Save writes the token with owner-only permissions.
func (s *TokenStore) Save(token *StoredToken) error {
	if err := os.MkdirAll(filepath.Dir(s.path), stateDirPermissions); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, tokenFilePermissions)
}

// Clear removes the stored token (logout).
func (s *TokenStore) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Path returns the token file location.
func (s *TokenStore) Path() string {
	return s.path
}
