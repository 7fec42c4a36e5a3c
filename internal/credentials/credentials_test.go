package credentials

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"

	"github.com/sqlassist/sqlassist/internal/config"
)

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(keyring.NewArrayKeyring(nil))

	if _, err := store.APIKey(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("APIKey() on empty store = %v", err)
	}
	if err := store.SaveAPIKey("  gsk-123  "); err != nil {
		t.Fatalf("SaveAPIKey() error = %v", err)
	}
	key, err := store.APIKey()
	if err != nil || key != "gsk-123" {
		t.Fatalf("APIKey() = %q, %v", key, err)
	}
	if err := store.ClearAPIKey(); err != nil {
		t.Fatalf("ClearAPIKey() error = %v", err)
	}
	if err := store.ClearAPIKey(); err != nil {
		t.Fatalf("ClearAPIKey() twice error = %v", err)
	}
	if _, err := store.APIKey(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("APIKey() after clear = %v", err)
	}
}

func TestSaveAPIKeyRejectsBlank(t *testing.T) {
	if err := NewStore(keyring.NewArrayKeyring(nil)).SaveAPIKey(" "); err == nil {
		t.Fatal("expected error for blank key")
	}
}

func TestOpenDisabledKeyring(t *testing.T) {
	if _, err := Open(config.KeyringConfig{Enabled: false}); err == nil {
		t.Fatal("expected error when keyring disabled")
	}
}

func TestResolvePrefersEnvironment(t *testing.T) {
	store := NewStore(keyring.NewArrayKeyring([]keyring.Item{{Key: KeyAPIKey, Data: []byte("from-ring")}}))
	prompted := false
	key, source, err := Resolver{
		EnvKey: "from-env",
		Store:  store,
		Prompt: func() (string, error) { prompted = true; return "x", nil },
	}.Resolve()
	if err != nil || key != "from-env" || source != SourceEnv || prompted {
		t.Fatalf("Resolve() = %q, %q, %v (prompted=%v)", key, source, err, prompted)
	}
}

func TestResolveFallsBackToKeyring(t *testing.T) {
	store := NewStore(keyring.NewArrayKeyring([]keyring.Item{{Key: KeyAPIKey, Data: []byte("from-ring")}}))
	key, source, err := Resolver{Store: store}.Resolve()
	if err != nil || key != "from-ring" || source != SourceKeyring {
		t.Fatalf("Resolve() = %q, %q, %v", key, source, err)
	}
}

func TestResolvePromptsAndRemembers(t *testing.T) {
	store := NewStore(keyring.NewArrayKeyring(nil))
	key, source, err := Resolver{
		Store:    store,
		Prompt:   func() (string, error) { return " typed ", nil },
		Remember: true,
	}.Resolve()
	if err != nil || key != "typed" || source != SourcePrompt {
		t.Fatalf("Resolve() = %q, %q, %v", key, source, err)
	}
	if saved, _ := store.APIKey(); saved != "typed" {
		t.Fatalf("saved key = %q", saved)
	}
}

func TestResolveWithoutAnySource(t *testing.T) {
	if _, _, err := (Resolver{}).Resolve(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Resolve() = %v", err)
	}
	_, _, err := Resolver{Prompt: func() (string, error) { return "", nil }}.Resolve()
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Resolve() with blank prompt = %v", err)
	}
	_, _, err = Resolver{Prompt: func() (string, error) { return "", errors.New("eof") }}.Resolve()
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("Resolve() with prompt failure = %v", err)
	}
}

func TestIsRememberFailure(t *testing.T) {
	if !IsRememberFailure(errors.Join(errRememberFailed, errors.New("locked"))) {
		t.Fatal("expected remember failure")
	}
	if IsRememberFailure(ErrNotFound) {
		t.Fatal("unexpected remember failure")
	}
}

func TestPasswordFuncNonInteractiveFails(t *testing.T) {
	prompt := passwordFunc(config.KeyringConfig{Enabled: true})
	if _, err := prompt("Password"); !errors.Is(err, ErrNoPassword) {
		t.Fatalf("prompt() error = %v, want ErrNoPassword", err)
	}
}

func TestPasswordFuncUsesConfiguredPassword(t *testing.T) {
	for _, interactive := range []bool{false, true} {
		prompt := passwordFunc(config.KeyringConfig{FilePassword: "hunter2", Interactive: interactive})
		got, err := prompt("Password")
		if err != nil || got != "hunter2" {
			t.Fatalf("prompt(interactive=%v) = %q, %v", interactive, got, err)
		}
	}
}

func TestOpenFileBackendWithoutTerminal(t *testing.T) {
	store, err := Open(config.KeyringConfig{
		Enabled: true,
		Backend: string(keyring.FileBackend),
		FileDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := store.SaveAPIKey("gsk-123"); !errors.Is(err, ErrNoPassword) {
		t.Fatalf("SaveAPIKey() error = %v, want ErrNoPassword", err)
	}
}
