package nl2sql

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeClient struct {
	reply      string
	err        error
	prompts    []string
	streamed   bool
	deltaParts []string
}

func (f *fakeClient) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func (f *fakeClient) Stream(_ context.Context, prompt string, onDelta func(string)) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.streamed = true
	for _, part := range f.deltaParts {
		onDelta(part)
	}
	return f.reply, f.err
}

func TestLLMTranslatorExtractsStatement(t *testing.T) {
	client := &fakeClient{reply: "```sql\nSELECT * FROM employees;\n```"}
	translator := NewLLMTranslator(client, false)

	result, err := translator.Translate(context.Background(), Request{Schema: "Table: employees\n", NaturalLanguage: "Show all employees"})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if result.SQL != "SELECT * FROM employees" {
		t.Fatalf("SQL = %q", result.SQL)
	}
	if len(client.prompts) != 1 || !strings.Contains(client.prompts[0], "Command: Show all employees") {
		t.Fatalf("prompts = %#v", client.prompts)
	}
	if client.streamed {
		t.Fatal("expected single-shot delivery")
	}
}

func TestLLMTranslatorStreamsWhenCallbackSet(t *testing.T) {
	client := &fakeClient{reply: "SELECT 1", deltaParts: []string{"SELECT ", "1"}}
	translator := NewLLMTranslator(client, true)

	var got strings.Builder
	result, err := translator.Translate(context.Background(), Request{
		NaturalLanguage: "one",
		OnDelta:         func(delta string) { got.WriteString(delta) },
	})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if !client.streamed || got.String() != "SELECT 1" || result.SQL != "SELECT 1" {
		t.Fatalf("streamed=%v deltas=%q sql=%q", client.streamed, got.String(), result.SQL)
	}
}

func TestLLMTranslatorPropagatesClientError(t *testing.T) {
	client := &fakeClient{err: ErrAuthentication}
	_, err := NewLLMTranslator(client, false).Translate(context.Background(), Request{NaturalLanguage: "x"})
	if !errors.Is(err, ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication, got %v", err)
	}
}

func TestLLMTranslatorWithoutClient(t *testing.T) {
	_, err := NewLLMTranslator(nil, false).Translate(context.Background(), Request{NaturalLanguage: "x"})
	if !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
}

func TestLLMTranslatorRejectsBlankReply(t *testing.T) {
	client := &fakeClient{reply: "```sql\n```"}
	if _, err := NewLLMTranslator(client, false).Translate(context.Background(), Request{NaturalLanguage: "x"}); err == nil {
		t.Fatal("expected empty SQL error")
	}
}
