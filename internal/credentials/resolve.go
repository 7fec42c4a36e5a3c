package credentials

import (
	"errors"
	"fmt"
	"strings"
)

type Source string

const (
	SourceNone    Source = ""
	SourceEnv     Source = "env"
	SourceKeyring Source = "keyring"
	SourcePrompt  Source = "prompt"
)

// PromptFunc asks the user for a key. An empty answer means none was given.
type PromptFunc func() (string, error)

type Resolver struct {
	EnvKey string
	Store  *Store
	Prompt PromptFunc
	// Remember saves a prompted key to Store.
	Remember bool
}

// Resolve returns ErrNotFound when no source yields a key. Keyring read
// failures are skipped so a broken keyring never blocks the prompt.
func (r Resolver) Resolve() (string, Source, error) {
	if key := strings.TrimSpace(r.EnvKey); key != "" {
		return key, SourceEnv, nil
	}
	if r.Store != nil {
		if key, err := r.Store.APIKey(); err == nil {
			return key, SourceKeyring, nil
		}
	}
	if r.Prompt == nil {
		return "", SourceNone, ErrNotFound
	}

	key, err := r.Prompt()
	if err != nil {
		return "", SourceNone, fmt.Errorf("prompt for api key: %w", err)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", SourceNone, ErrNotFound
	}
	if r.Remember && r.Store != nil {
		if err := r.Store.SaveAPIKey(key); err != nil {
			return key, SourcePrompt, errors.Join(errRememberFailed, err)
		}
	}
	return key, SourcePrompt, nil
}

var errRememberFailed = errors.New("api key accepted but not saved")

// IsRememberFailure reports whether Resolve returned a usable key that could
// not be written to the keyring.
func IsRememberFailure(err error) bool {
	return errors.Is(err, errRememberFailed)
}
