// Package credentials resolves the language-model API key from the
// environment, the OS keyring, or an interactive prompt, in that order.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/99designs/keyring"

	"github.com/sqlassist/sqlassist/internal/config"
)

const (
	ServiceName = "sqlassist"
	KeyAPIKey   = "llm_api_key"
)

var ErrNotFound = errors.New("credential not found")

// ErrNoPassword is returned by the file backend when it needs a password and
// the process has no terminal to ask on.
var ErrNoPassword = errors.New("keyring file password unavailable: set SQLASSIST_KEYRING_PASSWORD")

type Store struct {
	mu   sync.RWMutex
	ring keyring.Keyring
}

func Open(cfg config.KeyringConfig) (*Store, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("keyring is disabled")
	}
	ringCfg := keyring.Config{
		ServiceName:      ServiceName,
		FileDir:          expandHome(cfg.FileDir),
		FilePasswordFunc: passwordFunc(cfg),
		PassPrefix:       ServiceName,
		WinCredPrefix:    ServiceName,
	}
	if backend := strings.TrimSpace(cfg.Backend); backend != "" {
		ringCfg.AllowedBackends = []keyring.BackendType{keyring.BackendType(backend)}
	}

	ring, err := keyring.Open(ringCfg)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	return NewStore(ring), nil
}

// passwordFunc prefers a configured password, then a terminal prompt for
// interactive callers. Services fail instead of blocking on stdin.
func passwordFunc(cfg config.KeyringConfig) keyring.PromptFunc {
	switch {
	case cfg.FilePassword != "":
		return keyring.FixedStringPrompt(cfg.FilePassword)
	case cfg.Interactive:
		return keyring.TerminalPrompt
	default:
		return func(string) (string, error) { return "", ErrNoPassword }
	}
}

func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

func (s *Store) APIKey() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, err := s.ring.Get(KeyAPIKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read api key: %w", err)
	}
	key := strings.TrimSpace(string(item.Data))
	if key == "" {
		return "", ErrNotFound
	}
	return key, nil
}

func (s *Store) SaveAPIKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("api key is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ring.Set(keyring.Item{
		Key:         KeyAPIKey,
		Data:        []byte(key),
		Label:       "sqlassist language model API key",
		Description: "API key for the OpenAI-compatible completion endpoint",
	}); err != nil {
		return fmt.Errorf("save api key: %w", err)
	}
	return nil
}

// ClearAPIKey removes the stored key. Clearing an absent key is not an error.
func (s *Store) ClearAPIKey() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.ring.Remove(KeyAPIKey)
	if err == nil || errors.Is(err, keyring.ErrKeyNotFound) {
		return nil
	}
	return fmt.Errorf("remove api key: %w", err)
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
