// Package chat is the terminal front end: a line-oriented loop that feeds
// each request through an assistant session and renders the reply with pterm.
package chat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"

	"github.com/sqlassist/sqlassist/internal/assistant"
	"github.com/sqlassist/sqlassist/internal/conversation"
	"github.com/sqlassist/sqlassist/internal/credentials"
	"github.com/sqlassist/sqlassist/internal/schema"
)

type Conversation interface {
	Handle(ctx context.Context, input string, onDelta func(string)) (assistant.Reply, error)
	History() []conversation.Turn
	Schema(ctx context.Context) (schema.Description, error)
	HasTranslator() bool
	ReadOnly() bool
}

// ConnectFunc installs a translator on the conversation, asking through
// prompt when no stored key exists.
type ConnectFunc func(prompt credentials.PromptFunc) (credentials.Source, error)

type Options struct {
	In      io.Reader
	Out     io.Writer
	Connect ConnectFunc
	Prompt  credentials.PromptFunc
	// Stream prints model output as it arrives.
	Stream bool
}

const helpText = `Commands:
  /schema    show tables and sample commands
  /history   show this conversation
  /help      show this help
  /quit      leave the chat
Start a request with YES to confirm data-modifying operations.`

// Run reads requests until EOF, /quit or ctx is cancelled. Turn failures are
// rendered and the loop continues.
func Run(ctx context.Context, session Conversation, opts Options) error {
	if session == nil {
		return fmt.Errorf("chat session is required")
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	if opts.In == nil {
		return fmt.Errorf("chat input is required")
	}

	_, _ = fmt.Fprintln(out, pterm.NewStyle(pterm.FgLightCyan, pterm.Bold).Sprint("SQL Assistant"))
	_, _ = fmt.Fprintln(out, "Ask about your data in plain language. Type /help for commands.")
	showSchema(ctx, out, session)

	scanner := bufio.NewScanner(opts.In)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		_, _ = fmt.Fprint(out, pterm.NewStyle(pterm.FgLightBlue, pterm.Bold).Sprint("> "))
		if !scanner.Scan() {
			_, _ = fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/help":
			_, _ = fmt.Fprintln(out, helpText)
			continue
		case "/schema":
			showSchema(ctx, out, session)
			continue
		case "/history":
			RenderHistory(out, session.History())
			continue
		}

		if !session.HasTranslator() && opts.Connect != nil {
			if _, err := opts.Connect(opts.Prompt); err != nil {
				renderConnectError(out, err)
				continue
			}
		}

		streamed := false
		var onDelta func(string)
		if opts.Stream {
			onDelta = func(delta string) {
				streamed = true
				_, _ = fmt.Fprint(out, pterm.NewStyle(pterm.FgGray).Sprint(delta))
			}
		}
		reply, err := session.Handle(ctx, line, onDelta)
		if err != nil {
			_, _ = fmt.Fprintln(out, pterm.Error.Sprint(err.Error()))
			continue
		}
		RenderReply(out, reply, streamed)
	}
}

func showSchema(ctx context.Context, out io.Writer, session Conversation) {
	description, err := session.Schema(ctx)
	RenderSchema(out, description, err, session.ReadOnly())
}

func renderConnectError(out io.Writer, err error) {
	if errors.Is(err, credentials.ErrNotFound) {
		_, _ = fmt.Fprintln(out, pterm.Warning.Sprint("An API key is required. Set SQLASSIST_LLM_API_KEY or run `sqlassist credential set`."))
		return
	}
	_, _ = fmt.Fprintln(out, pterm.Error.Sprint("Could not configure the language model: "+err.Error()))
}
