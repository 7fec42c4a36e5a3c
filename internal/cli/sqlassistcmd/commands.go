package sqlassistcmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/sqlassist/sqlassist/internal/app"
	"github.com/sqlassist/sqlassist/internal/cli/chat"
	"github.com/sqlassist/sqlassist/internal/credentials"
	"github.com/sqlassist/sqlassist/internal/database"
)

func newChatCommand(opts Options, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, opts, flags)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			out := cmd.OutOrStdout()
			if _, err := a.Connect(opts.Prompt); err != nil {
				if !app.IsMissingCredential(err) {
					return err
				}
				_, _ = fmt.Fprintln(out, pterm.Warning.Sprint("No API key configured yet. You will be asked for one with your first request."))
			}

			in := opts.In
			if in == nil {
				in = cmd.InOrStdin()
			}
			return chat.Run(cmd.Context(), a.Session, chat.Options{
				In:      in,
				Out:     out,
				Connect: a.Connect,
				Prompt:  opts.Prompt,
				Stream:  a.Config.LLM.Stream,
			})
		},
	}
}

func newAskCommand(opts Options, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <request>",
		Short: "Run a single request and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			request := strings.TrimSpace(strings.Join(args, " "))
			if request == "" {
				return errors.New("request text is empty")
			}
			a, err := openApp(cmd, opts, flags)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if _, err := a.Connect(opts.Prompt); err != nil {
				if app.IsMissingCredential(err) {
					return errors.New("no API key configured: set SQLASSIST_LLM_API_KEY or run `sqlassist credential set`")
				}
				return err
			}

			reply, err := a.Session.Handle(cmd.Context(), request, nil)
			if err != nil {
				return err
			}
			// Turn failures are part of the conversation, not process errors.
			chat.RenderReply(cmd.OutOrStdout(), reply, false)
			return nil
		},
	}
}

func newSeedCommand(opts Options, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the sample employees table and load its four rows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts, flags)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			db, err := database.Open(ctx, database.FromConfig(cfg.Database))
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			if _, err := database.Bootstrap(ctx, db); err != nil {
				return err
			}
			rows, err := database.Seed(ctx, db, cfg.Database.Driver)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), pterm.Success.Sprintf("Seeded %d rows into employees (%s)", rows, cfg.Database.Path))
			return nil
		},
	}
}

func newCredentialCommand(opts Options, flags *globalFlags) *cobra.Command {
	parent := &cobra.Command{
		Use:   "credential",
		Short: "Manage the API key stored in the OS keyring",
	}

	var fromStdin bool
	set := &cobra.Command{
		Use:   "set",
		Short: "Save an API key to the keyring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := credentialStore(cmd, opts, flags)
			if err != nil {
				return err
			}
			var key string
			if fromStdin {
				in := opts.In
				if in == nil {
					in = cmd.InOrStdin()
				}
				key, err = readLine(in)
			} else if opts.Prompt != nil {
				key, err = opts.Prompt()
			} else {
				return errors.New("no interactive prompt available; use --stdin")
			}
			if err != nil {
				return fmt.Errorf("read api key: %w", err)
			}
			if strings.TrimSpace(key) == "" {
				return errors.New("api key is empty")
			}
			if err := store.SaveAPIKey(key); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), pterm.Success.Sprint("API key saved to keyring"))
			return nil
		},
	}
	set.Flags().BoolVar(&fromStdin, "stdin", false, "read the key from standard input")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := credentialStore(cmd, opts, flags)
			if err != nil {
				return err
			}
			if err := store.ClearAPIKey(); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), pterm.Success.Sprint("API key removed from keyring"))
			return nil
		},
	}

	parent.AddCommand(set, clearCmd)
	return parent
}

func openApp(cmd *cobra.Command, opts Options, flags *globalFlags) (*app.App, error) {
	cfg, err := loadConfig(cmd, opts, flags)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cmd, cfg)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if opts.OpenStore != nil {
		store, err := opts.OpenStore(cfg.Keyring)
		if err != nil {
			logger.Warn("keyring unavailable", slog.Any("error", err))
		} else {
			a.Credentials = store
		}
	}
	return a, nil
}

func credentialStore(cmd *cobra.Command, opts Options, flags *globalFlags) (*credentials.Store, error) {
	cfg, err := loadConfig(cmd, opts, flags)
	if err != nil {
		return nil, err
	}
	keyringCfg := cfg.Keyring
	// The command exists to manage the keyring, so it ignores the toggle.
	keyringCfg.Enabled = true
	return openStore(opts, keyringCfg)
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Execute runs the command tree against the real terminal and returns the
// process exit code.
func Execute(ctx context.Context) int {
	root := NewRootCommand(Options{Prompt: TerminalPrompt})
	if err := root.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, pterm.Error.Sprint(err.Error()))
		return 1
	}
	return 0
}
