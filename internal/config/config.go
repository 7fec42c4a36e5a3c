package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

const (
	DriverSQLite   = "sqlite"
	DriverDuckDB   = "duckdb"
	DriverPostgres = "postgres"
)

const (
	MinMaxTokens = 100
	MaxMaxTokens = 2000
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Database      DatabaseConfig
	LLM           LLMConfig
	Gate          GateConfig
	Keyring       KeyringConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Driver         string
	Path           string
	SeedSampleData bool
	DefaultTable   string
}

type LLMConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Stream      bool
}

type GateConfig struct {
	Triggers     []string
	ConfirmToken string
	ReadOnly     bool
}

type KeyringConfig struct {
	Enabled bool
	Backend string
	FileDir string
	// FilePassword unlocks the encrypted file backend without a prompt.
	FilePassword string
	// Interactive is set by terminal entry points; it is never read from the
	// environment.
	Interactive bool
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

func LoadFromEnv(serviceName string) (Config, error) {
	lookup, err := EnvLookup()
	if err != nil {
		return Config{}, err
	}
	return Load(serviceName, lookup)
}

// EnvLookup reads the process environment, falling back to the dotenv file
// named by SQLASSIST_ENV_FILE (default .env).
func EnvLookup() (LookupFunc, error) {
	envFile := ".env"
	if raw, ok := os.LookupEnv("SQLASSIST_ENV_FILE"); ok && strings.TrimSpace(raw) != "" {
		envFile = strings.TrimSpace(raw)
	}
	dotenv, err := LoadDotEnv(envFile)
	if err != nil {
		return nil, err
	}
	return ChainLookup(os.LookupEnv, dotenv), nil
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("SQLASSIST_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid SQLASSIST_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	if err := applyString(lookup, "SQLASSIST_SERVICE_NAME", &cfg.Service.Name); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLASSIST_HTTP_ADDR", &cfg.HTTP.Address); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLASSIST_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLASSIST_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLASSIST_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLASSIST_DB_DRIVER", &cfg.Database.Driver); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLASSIST_DB_PATH", &cfg.Database.Path); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLASSIST_DB_SEED_SAMPLE_DATA", &cfg.Database.SeedSampleData); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLASSIST_DB_DEFAULT_TABLE", &cfg.Database.DefaultTable); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLASSIST_LLM_BASE_URL", &cfg.LLM.BaseURL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "GROQ_API_KEY", &cfg.LLM.APIKey); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLASSIST_LLM_API_KEY", &cfg.LLM.APIKey); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLASSIST_LLM_MODEL", &cfg.LLM.Model); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SQLASSIST_LLM_MAX_TOKENS", &cfg.LLM.MaxTokens); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLASSIST_LLM_TIMEOUT", &cfg.LLM.Timeout); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLASSIST_LLM_STREAM", &cfg.LLM.Stream); err != nil {
		return Config{}, err
	}
	if err := applyList(lookup, "SQLASSIST_GATE_TRIGGERS", &cfg.Gate.Triggers); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLASSIST_GATE_CONFIRM_TOKEN", &cfg.Gate.ConfirmToken); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLASSIST_GATE_READ_ONLY", &cfg.Gate.ReadOnly); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLASSIST_KEYRING_ENABLED", &cfg.Keyring.Enabled); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLASSIST_KEYRING_BACKEND", &cfg.Keyring.Backend); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLASSIST_KEYRING_FILE_DIR", &cfg.Keyring.FileDir); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLASSIST_KEYRING_PASSWORD", &cfg.Keyring.FilePassword); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLASSIST_LOG_JSON", &cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "SQLASSIST_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the invariants every entry point relies on. Flag overrides
// applied after Load must call it again.
func (c Config) Validate() error {
	if c.Service.Name == "" {
		return fmt.Errorf("service name is required")
	}
	if c.HTTP.Address == "" {
		return fmt.Errorf("http address is required")
	}
	switch c.Database.Driver {
	case DriverSQLite, DriverDuckDB, DriverPostgres:
	default:
		return fmt.Errorf("invalid database driver: %q", c.Database.Driver)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.LLM.MaxTokens < MinMaxTokens || c.LLM.MaxTokens > MaxMaxTokens {
		return fmt.Errorf("max tokens must be within [%d, %d], got %d", MinMaxTokens, MaxMaxTokens, c.LLM.MaxTokens)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm model is required")
	}
	if len(c.Gate.Triggers) == 0 {
		return fmt.Errorf("at least one gate trigger word is required")
	}
	if c.Gate.ConfirmToken == "" {
		return fmt.Errorf("gate confirm token is required")
	}
	return nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "sqlassist"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:         DriverSQLite,
			Path:           "my_database.db",
			SeedSampleData: true,
			DefaultTable:   "employees",
		},
		LLM: LLMConfig{
			BaseURL:     "https://api.groq.com/openai/v1",
			Model:       "llama3-8b-8192",
			Temperature: 0.1,
			MaxTokens:   500,
			Timeout:     60 * time.Second,
			Stream:      true,
		},
		Gate: GateConfig{
			Triggers:     []string{"delete", "drop", "truncate", "update", "insert"},
			ConfirmToken: "YES",
			ReadOnly:     false,
		},
		Keyring: KeyringConfig{
			Enabled: true,
			Backend: "",
			FileDir: "~/.sqlassist/keyring",
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  false,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Database.Path = "file::memory:?cache=shared"
		cfg.Keyring.Enabled = false
		cfg.Observability.LogLevel = slog.LevelWarn
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Observability.LogJSON = true
		cfg.Database.SeedSampleData = false
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil
	}
	*dst = value
	return nil
}

func applyList(lookup LookupFunc, key string, dst *[]string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	items := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			items = append(items, part)
		}
	}
	if len(items) == 0 {
		return fmt.Errorf("invalid %s: empty list", key)
	}
	*dst = items
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
