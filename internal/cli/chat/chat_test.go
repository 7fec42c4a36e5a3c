package chat

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pterm/pterm"

	"github.com/sqlassist/sqlassist/internal/assistant"
	"github.com/sqlassist/sqlassist/internal/conversation"
	"github.com/sqlassist/sqlassist/internal/credentials"
	"github.com/sqlassist/sqlassist/internal/gate"
	"github.com/sqlassist/sqlassist/internal/observability"
	"github.com/sqlassist/sqlassist/internal/query"
	"github.com/sqlassist/sqlassist/internal/schema"
)

type fakeConversation struct {
	inputs     []string
	reply      assistant.Reply
	translator bool
	readOnly   bool
	schemaErr  error
	log        *conversation.Log
	deltas     []string
}

func (f *fakeConversation) Handle(_ context.Context, input string, onDelta func(string)) (assistant.Reply, error) {
	f.inputs = append(f.inputs, input)
	if onDelta != nil {
		for _, delta := range f.deltas {
			onDelta(delta)
		}
	}
	reply := f.reply
	reply.User, reply.Assistant = f.log.Append(input, reply.Assistant.Content, reply.Outcome != observability.OutcomeSuccess)
	return reply, nil
}

func (f *fakeConversation) History() []conversation.Turn { return f.log.Turns() }

func (f *fakeConversation) Schema(context.Context) (schema.Description, error) {
	return schema.Fallback(), f.schemaErr
}

func (f *fakeConversation) HasTranslator() bool { return f.translator }
func (f *fakeConversation) ReadOnly() bool      { return f.readOnly }

func newFakeConversation(reply assistant.Reply) *fakeConversation {
	return &fakeConversation{reply: reply, translator: true, log: conversation.NewLog()}
}

func successReply() assistant.Reply {
	return assistant.Reply{
		Outcome:   observability.OutcomeSuccess,
		Assistant: conversation.Turn{Content: assistant.SuccessContent("SELECT * FROM employees")},
		Result: &query.Outcome{
			Kind:   query.KindRead,
			Result: &query.Result{
				Columns: []string{"id", "name"},
				Rows:    [][]any{{int64(1), "John Doe"}, {int64(2), nil}},
			},
		},
	}
}

func TestRunRendersSchemaAndResultTable(t *testing.T) {
	pterm.DisableStyling()
	session := newFakeConversation(successReply())

	var out bytes.Buffer
	err := Run(context.Background(), session, Options{In: strings.NewReader("show all employees\n/quit\n"), Out: &out})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(session.inputs) != 1 || session.inputs[0] != "show all employees" {
		t.Fatalf("inputs = %#v", session.inputs)
	}
	text := out.String()
	for _, want := range []string{"Table: employees", "Show all employees", "Generated SQL:", "John Doe", "NULL"} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
}

func TestRunHandlesCommandsWithoutCallingSession(t *testing.T) {
	pterm.DisableStyling()
	session := newFakeConversation(successReply())
	session.log.Append("earlier request", "Error: boom", true)

	var out bytes.Buffer
	input := "/help\n/history\n/schema\n\n"
	if err := Run(context.Background(), session, Options{In: strings.NewReader(input), Out: &out}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(session.inputs) != 0 {
		t.Fatalf("session received %#v", session.inputs)
	}
	text := out.String()
	if !strings.Contains(text, "/quit") || !strings.Contains(text, "earlier request") || !strings.Contains(text, "Error: boom") {
		t.Fatalf("output = %s", text)
	}
	if strings.Count(text, "Table: employees") != 2 {
		t.Fatalf("expected schema twice, got:\n%s", text)
	}
}

func TestRunRendersRefusalAndKeepsGoing(t *testing.T) {
	pterm.DisableStyling()
	session := newFakeConversation(assistant.Reply{
		Outcome:   observability.OutcomeRefused,
		Assistant: conversation.Turn{Content: gate.RefusalMessage},
	})

	var out bytes.Buffer
	input := "delete employee 1\ndelete employee 2\n"
	if err := Run(context.Background(), session, Options{In: strings.NewReader(input), Out: &out}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(session.inputs) != 2 {
		t.Fatalf("inputs = %#v", session.inputs)
	}
	if strings.Count(out.String(), gate.RefusalMessage) != 2 {
		t.Fatalf("output = %s", out.String())
	}
	if len(session.History()) != 4 {
		t.Fatalf("history = %d turns", len(session.History()))
	}
}

func TestRunConnectsBeforeFirstTurn(t *testing.T) {
	pterm.DisableStyling()
	session := newFakeConversation(successReply())
	session.translator = false

	calls := 0
	connect := func(prompt credentials.PromptFunc) (credentials.Source, error) {
		calls++
		if calls == 1 {
			return credentials.SourceNone, credentials.ErrNotFound
		}
		key, err := prompt()
		if err != nil || key != "typed" {
			t.Fatalf("prompt() = %q, %v", key, err)
		}
		session.translator = true
		return credentials.SourcePrompt, nil
	}

	var out bytes.Buffer
	err := Run(context.Background(), session, Options{
		In:      strings.NewReader("first\nsecond\nthird\n"),
		Out:     &out,
		Connect: connect,
		Prompt:  func() (string, error) { return "typed", nil },
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if calls != 2 {
		t.Fatalf("connect calls = %d, want 2", calls)
	}
	if len(session.inputs) != 2 || session.inputs[0] != "second" {
		t.Fatalf("inputs = %#v", session.inputs)
	}
	if !strings.Contains(out.String(), "An API key is required") {
		t.Fatalf("output = %s", out.String())
	}
}

func TestRunStreamsDeltas(t *testing.T) {
	pterm.DisableStyling()
	session := newFakeConversation(successReply())
	session.deltas = []string{"SELECT ", "* FROM employees"}

	var out bytes.Buffer
	if err := Run(context.Background(), session, Options{In: strings.NewReader("list\n"), Out: &out, Stream: true}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	text := out.String()
	streamAt := strings.Index(text, "SELECT * FROM employees\n")
	contentAt := strings.Index(text, "Generated SQL:")
	if streamAt < 0 || contentAt < 0 || streamAt > contentAt {
		t.Fatalf("stream not rendered before reply:\n%s", text)
	}
}

func TestRunShowsSchemaFallbackWarning(t *testing.T) {
	pterm.DisableStyling()
	session := newFakeConversation(successReply())
	session.schemaErr = errors.New("no such database")
	session.readOnly = true

	var out bytes.Buffer
	if err := Run(context.Background(), session, Options{In: strings.NewReader(""), Out: &out}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(out.String(), "no such database") || !strings.Contains(out.String(), "Read-only mode") {
		t.Fatalf("output = %s", out.String())
	}
}

func TestRenderOutcomeForWrite(t *testing.T) {
	pterm.DisableStyling()
	var out bytes.Buffer
	RenderOutcome(&out, query.Outcome{
		Kind:          query.KindWrite,
		Message:       query.MessageCommandSucceeded,
		AffectedTable: "employees",
		View: &query.Result{
			Columns: []string{"id", "name"},
			Rows:    [][]any{{int64(2), "Jane Smith"}},
		},
	})
	text := out.String()
	if !strings.Contains(text, query.MessageCommandSucceeded) || !strings.Contains(text, "Updated employees") || !strings.Contains(text, "Jane Smith") {
		t.Fatalf("output = %s", text)
	}

	out.Reset()
	RenderOutcome(&out, query.Outcome{
		Kind:    query.KindWrite,
		Message: query.MessageCommandSucceeded,
		Warning: query.TableViewWarning(errors.New("no such table: staff")),
	})
	if !strings.Contains(out.String(), "Could not show updated table: no such table: staff") {
		t.Fatalf("output = %s", out.String())
	}
}

func TestRunRequiresInput(t *testing.T) {
	if err := Run(context.Background(), newFakeConversation(successReply()), Options{}); err == nil {
		t.Fatal("expected error without input")
	}
}
