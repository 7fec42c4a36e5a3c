package sqlassistcmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/99designs/keyring"
	"github.com/pterm/pterm"

	"github.com/sqlassist/sqlassist/internal/config"
	"github.com/sqlassist/sqlassist/internal/credentials"
	"github.com/sqlassist/sqlassist/internal/database"
)

func TestSeedCommandLoadsSampleRows(t *testing.T) {
	pterm.DisableStyling()
	dbPath := filepath.Join(t.TempDir(), "seed.db")
	out, err := execute(t, Options{Lookup: testLookup(map[string]string{"SQLASSIST_DB_PATH": dbPath})}, "seed")
	if err != nil {
		t.Fatalf("seed error = %v", err)
	}
	if !strings.Contains(out, "Seeded 4 rows") {
		t.Fatalf("output = %q", out)
	}

	db, err := database.Open(context.Background(), database.DBConfig{Driver: config.DriverSQLite, DSN: dbPath})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = db.Close() }()
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM employees").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 4 {
		t.Fatalf("count = %d, want 4", count)
	}
}

func TestFlagOverridesAreValidated(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "flags.db")
	_, err := execute(t, Options{Lookup: testLookup(nil)}, "--db-path", dbPath, "--max-tokens", "50", "seed")
	if err == nil || !strings.Contains(err.Error(), "max tokens") {
		t.Fatalf("expected max tokens error, got %v", err)
	}
}

func TestAskCommandPrintsResultTable(t *testing.T) {
	pterm.DisableStyling()
	srv := completionServer(t, "```sql\nSELECT * FROM employees ORDER BY id;\n```")
	defer srv.Close()

	out, err := execute(t, Options{Lookup: testLookup(map[string]string{
		"SQLASSIST_DB_PATH":      filepath.Join(t.TempDir(), "ask.db"),
		"SQLASSIST_LLM_API_KEY":  "k1",
		"SQLASSIST_LLM_BASE_URL": srv.URL + "/v1",
		"SQLASSIST_LLM_STREAM":   "false",
	})}, "ask", "show", "all", "employees")
	if err != nil {
		t.Fatalf("ask error = %v", err)
	}
	for _, want := range []string{"Generated SQL:", "SELECT * FROM employees ORDER BY id", "John Doe", "Alice Brown"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestAskCommandRefusalIsNotAProcessError(t *testing.T) {
	pterm.DisableStyling()
	out, err := execute(t, Options{Lookup: testLookup(map[string]string{
		"SQLASSIST_DB_PATH":      filepath.Join(t.TempDir(), "refuse.db"),
		"SQLASSIST_LLM_API_KEY":  "k1",
		"SQLASSIST_LLM_BASE_URL": "http://127.0.0.1:1/v1",
	})}, "ask", "delete employee with id 1")
	if err != nil {
		t.Fatalf("ask error = %v", err)
	}
	if !strings.Contains(out, "Please confirm destructive operation by starting query with 'YES'") {
		t.Fatalf("output = %q", out)
	}
}

func TestAskCommandRequiresCredential(t *testing.T) {
	_, err := execute(t, Options{Lookup: testLookup(map[string]string{
		"SQLASSIST_DB_PATH": filepath.Join(t.TempDir(), "nokey.db"),
	})}, "ask", "show all employees")
	if err == nil || !strings.Contains(err.Error(), "no API key configured") {
		t.Fatalf("expected missing key error, got %v", err)
	}
}

func TestChatCommandRunsTurnsFromInput(t *testing.T) {
	pterm.DisableStyling()
	srv := completionServer(t, "SELECT name FROM employees WHERE id = 2")
	defer srv.Close()

	out, err := execute(t, Options{
		Lookup: testLookup(map[string]string{
			"SQLASSIST_DB_PATH":      filepath.Join(t.TempDir(), "chat.db"),
			"SQLASSIST_LLM_API_KEY":  "k1",
			"SQLASSIST_LLM_BASE_URL": srv.URL + "/v1",
			"SQLASSIST_LLM_STREAM":   "false",
		}),
		In: strings.NewReader("who is employee 2\n/history\n/quit\n"),
	}, "chat")
	if err != nil {
		t.Fatalf("chat error = %v", err)
	}
	if !strings.Contains(out, "Jane Smith") || !strings.Contains(out, "who is employee 2") {
		t.Fatalf("output = %s", out)
	}
}

func TestCredentialSetAndClear(t *testing.T) {
	pterm.DisableStyling()
	store := credentials.NewStore(keyring.NewArrayKeyring(nil))
	opts := Options{
		Lookup:    testLookup(nil),
		In:        strings.NewReader("gsk-secret\n"),
		OpenStore: func(config.KeyringConfig) (*credentials.Store, error) { return store, nil },
	}

	if _, err := execute(t, opts, "credential", "set", "--stdin"); err != nil {
		t.Fatalf("credential set error = %v", err)
	}
	key, err := store.APIKey()
	if err != nil || key != "gsk-secret" {
		t.Fatalf("APIKey() = %q, %v", key, err)
	}

	if _, err := execute(t, opts, "credential", "clear"); err != nil {
		t.Fatalf("credential clear error = %v", err)
	}
	if _, err := store.APIKey(); !errors.Is(err, credentials.ErrNotFound) {
		t.Fatalf("APIKey() after clear error = %v", err)
	}
}

func TestCredentialSetRejectsEmptyKey(t *testing.T) {
	store := credentials.NewStore(keyring.NewArrayKeyring(nil))
	_, err := execute(t, Options{
		Lookup:    testLookup(nil),
		Prompt:    func() (string, error) { return "  ", nil },
		OpenStore: func(config.KeyringConfig) (*credentials.Store, error) { return store, nil },
	}, "credential", "set")
	if err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestTerminalCommandsOpenKeyringInteractively(t *testing.T) {
	var got config.KeyringConfig
	store := credentials.NewStore(keyring.NewArrayKeyring(nil))
	_, err := execute(t, Options{
		Lookup: testLookup(nil),
		OpenStore: func(cfg config.KeyringConfig) (*credentials.Store, error) {
			got = cfg
			return store, nil
		},
	}, "credential", "clear")
	if err != nil {
		t.Fatalf("credential clear error = %v", err)
	}
	if !got.Interactive || !got.Enabled {
		t.Fatalf("keyring config = %+v", got)
	}
}

func execute(t *testing.T, opts Options, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand(opts)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func testLookup(env map[string]string) config.LookupFunc {
	values := map[string]string{"SQLASSIST_PROFILE": "test"}
	for key, value := range env {
		values[key] = value
	}
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func completionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		payload := map[string]any{
			"id":     "c1",
			"object": "chat.completion",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Errorf("encode completion: %v", err)
		}
	}))
}
