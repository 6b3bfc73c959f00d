package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Tokens are the OAuth2 credentials returned by a refresh.
type Tokens struct {
	AccessToken  string    `yaml:"access_token" json:"access_token"`
	RefreshToken string    `yaml:"refresh_token" json:"refresh_token"`
	ExpiresIn    int       `yaml:"expires_in,omitempty" json:"expires_in,omitempty"`
	Endpoint     string    `yaml:"endpoint,omitempty" json:"-"`
	SavedAt      time.Time `yaml:"saved_at,omitempty" json:"-"`
}

// TokenCache persists Tokens to a YAML file readable only by the owner.
type TokenCache struct {
	Path string
}

// NewTokenCache returns a cache at path. An empty path disables the cache.
func NewTokenCache(path string) *TokenCache {
	return &TokenCache{Path: path}
}

// Load returns the cached tokens. ok is false when the cache is disabled or
// the file does not exist.
func (tc *TokenCache) Load() (tokens *Tokens, ok bool, err error) {
	if tc == nil || tc.Path == "" {
		return nil, false, nil
	}
	data, err := os.ReadFile(tc.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read token cache: %w", err)
	}
	var t Tokens
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, false, fmt.Errorf("failed to parse token cache %s: %w", tc.Path, err)
	}
	return &t, true, nil
}

// Save writes tokens with mode 0600.
func (tc *TokenCache) Save(t *Tokens) error {
	if tc == nil || tc.Path == "" {
		return nil
	}
	if t.SavedAt.IsZero() {
		t.SavedAt = time.Now().UTC()
	}
	data, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode token cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(tc.Path), 0o700); err != nil {
		return fmt.Errorf("failed to create token cache directory: %w", err)
	}
	if err := os.WriteFile(tc.Path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token cache: %w", err)
	}
	return nil
}
