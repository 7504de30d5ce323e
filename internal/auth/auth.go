// Package auth resolves the bearer token sent to the school API.
package auth

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/campusdesk/campus/internal/config"
	"github.com/campusdesk/campus/internal/output"
)

// TokenEnv overrides any stored token.
const TokenEnv = "CAMPUS_TOKEN"

// Manager looks up and stores tokens per backend origin.
type Manager struct {
	cfg   *config.Config
	store *Store

	mu sync.Mutex
}

// NewManager creates a manager using the global config directory as the
// keyring fallback location.
func NewManager(cfg *config.Config) *Manager {
	return NewManagerWithStore(cfg, NewStore(config.GlobalConfigDir()))
}

// NewManagerWithStore creates a manager over an explicit store.
func NewManagerWithStore(cfg *config.Config, store *Store) *Manager {
	return &Manager{cfg: cfg, store: store}
}

func (m *Manager) origin() string {
	return config.NormalizeBaseURL(m.cfg.BaseURL)
}

// Token returns the token for the configured base URL.
func (m *Manager) Token(_ context.Context) (string, error) {
	if token := os.Getenv(TokenEnv); token != "" {
		return token, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	creds, err := m.store.Load(m.origin())
	if err != nil || creds.Token == "" {
		return "", output.ErrAuth("Not authenticated")
	}
	return creds.Token, nil
}

// IsAuthenticated reports whether a token is available.
func (m *Manager) IsAuthenticated() bool {
	token, err := m.Token(context.Background())
	return err == nil && token != ""
}

// SetToken stores token for the configured base URL.
func (m *Manager) SetToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return output.ErrUsage("Token must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Save(m.origin(), &Credentials{Token: token, SavedAt: time.Now().UTC()})
}

// ClearToken removes the stored token for the configured base URL.
func (m *Manager) ClearToken() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Delete(m.origin())
}

// Store returns the underlying credential store.
func (m *Manager) Store() *Store {
	return m.store
}
