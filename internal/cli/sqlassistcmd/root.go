// Package sqlassistcmd builds the sqlassist command tree: interactive chat,
// one-shot ask, sample-data seeding and API key management.
package sqlassistcmd

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/sqlassist/sqlassist/internal/config"
	"github.com/sqlassist/sqlassist/internal/credentials"
	"github.com/sqlassist/sqlassist/internal/observability"
)

// Options carries the process surroundings so commands can run under test.
type Options struct {
	Lookup config.LookupFunc
	In     io.Reader
	// Prompt asks for the API key. Nil disables interactive prompting.
	Prompt credentials.PromptFunc
	// OpenStore overrides keyring access.
	OpenStore func(config.KeyringConfig) (*credentials.Store, error)
}

type globalFlags struct {
	dbPath    string
	seed      bool
	maxTokens int
	readOnly  bool
	verbose   bool
}

func NewRootCommand(opts Options) *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "sqlassist",
		Short:         "Ask questions about a SQL database in plain language",
		Long:          "sqlassist turns natural-language requests into SQL, runs them against a local database and shows the results. Data-modifying requests must start with YES.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.dbPath, "db-path", "", "database file path or DSN (overrides SQLASSIST_DB_PATH)")
	root.PersistentFlags().BoolVar(&flags.seed, "seed", true, "replace employees rows with sample data on start")
	root.PersistentFlags().IntVar(&flags.maxTokens, "max-tokens", 0, fmt.Sprintf("completion token limit, %d-%d", config.MinMaxTokens, config.MaxMaxTokens))
	root.PersistentFlags().BoolVar(&flags.readOnly, "read-only", false, "refuse all data-modifying statements")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log at the configured level instead of warnings only")

	root.AddCommand(
		newChatCommand(opts, flags),
		newAskCommand(opts, flags),
		newSeedCommand(opts, flags),
		newCredentialCommand(opts, flags),
	)
	return root
}

// loadConfig applies flag overrides on top of the environment and validates
// the result again.
func loadConfig(cmd *cobra.Command, opts Options, flags *globalFlags) (config.Config, error) {
	lookup := opts.Lookup
	if lookup == nil {
		var err error
		if lookup, err = config.EnvLookup(); err != nil {
			return config.Config{}, err
		}
	}
	cfg, err := config.Load("sqlassist", lookup)
	if err != nil {
		return config.Config{}, err
	}

	changed := cmd.Flags().Changed
	if changed("db-path") {
		cfg.Database.Path = strings.TrimSpace(flags.dbPath)
	}
	if changed("seed") {
		cfg.Database.SeedSampleData = flags.seed
	}
	if changed("max-tokens") {
		cfg.LLM.MaxTokens = flags.maxTokens
	}
	if changed("read-only") {
		cfg.Gate.ReadOnly = flags.readOnly
	}
	cfg.Keyring.Interactive = true
	if !flags.verbose && cfg.Observability.LogLevel < slog.LevelWarn {
		cfg.Observability.LogLevel = slog.LevelWarn
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg config.Config) *slog.Logger {
	return observability.NewLogger(cfg, cmd.ErrOrStderr())
}

func openStore(opts Options, cfg config.KeyringConfig) (*credentials.Store, error) {
	if opts.OpenStore != nil {
		return opts.OpenStore(cfg)
	}
	return credentials.Open(cfg)
}

// TerminalPrompt reads a masked API key from the terminal.
func TerminalPrompt() (string, error) {
	return pterm.DefaultInteractiveTextInput.WithMask("*").Show("Enter your language model API key")
}
