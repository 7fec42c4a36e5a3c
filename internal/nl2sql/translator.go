package nl2sql

import (
	"context"
	"fmt"
	"strings"
)

type Request struct {
	Schema          string `json:"schema"`
	NaturalLanguage string `json:"natural_language"`
	// OnDelta switches delivery to streaming when set.
	OnDelta func(string) `json:"-"`
}

type Result struct {
	Prompt string `json:"-"`
	Raw    string `json:"raw"`
	SQL    string `json:"sql"`
}

type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}

type LLMTranslator struct {
	client Client
	stream bool
}

// NewLLMTranslator streams only when stream is true and the caller supplies a
// delta callback.
func NewLLMTranslator(client Client, stream bool) *LLMTranslator {
	return &LLMTranslator{client: client, stream: stream}
}

func (t *LLMTranslator) Translate(ctx context.Context, req Request) (Result, error) {
	if t == nil || t.client == nil {
		return Result{}, ErrMissingCredential
	}
	prompt := BuildPrompt(req.Schema, req.NaturalLanguage)

	var (
		raw string
		err error
	)
	if t.stream && req.OnDelta != nil {
		raw, err = t.client.Stream(ctx, prompt, req.OnDelta)
	} else {
		raw, err = t.client.Complete(ctx, prompt)
	}
	if err != nil {
		return Result{Prompt: prompt}, err
	}

	sql := ExtractStatement(raw)
	if strings.TrimSpace(sql) == "" {
		return Result{Prompt: prompt, Raw: raw}, fmt.Errorf("model returned empty SQL")
	}
	return Result{Prompt: prompt, Raw: raw, SQL: sql}, nil
}
