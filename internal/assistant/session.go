package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sqlassist/sqlassist/internal/conversation"
	"github.com/sqlassist/sqlassist/internal/gate"
	"github.com/sqlassist/sqlassist/internal/nl2sql"
	"github.com/sqlassist/sqlassist/internal/observability"
	"github.com/sqlassist/sqlassist/internal/query"
	"github.com/sqlassist/sqlassist/internal/schema"
)

var ErrEmptyInput = errors.New("request text is empty")

// SampleCommands are shown next to the schema as starting points.
var SampleCommands = []string{
	"Show all employees",
	"YES Delete employee with id 1",
	"YES Update salary to 90000 for Bob Johnson",
	"YES Insert a new employee named 'Mike Ross' in Engineering with salary 70000",
}

type SchemaSource interface {
	DescribeOrFallback(ctx context.Context) (schema.Description, error)
}

type Dependencies struct {
	Schema     SchemaSource
	Translator nl2sql.Translator
	Gate       *gate.Gate
	Engine     query.Engine
	Log        *conversation.Log
	Logger     *slog.Logger
}

// Reply is the full result of one turn. Outcome is one of the
// observability.Outcome* values.
type Reply struct {
	User      conversation.Turn `json:"user"`
	Assistant conversation.Turn `json:"assistant"`
	Outcome   string            `json:"outcome"`
	SQL       string            `json:"sql,omitempty"`
	Decision  gate.Decision     `json:"decision"`
	Result    *query.Outcome    `json:"result,omitempty"`
	Fallback  bool              `json:"schema_fallback,omitempty"`
	Err       error             `json:"-"`
}

// Session owns one conversation. Turns are serialised; a second caller waits
// until the current turn has been appended to the log.
type Session struct {
	id     string
	deps   Dependencies
	logger *slog.Logger

	// turnMu serialises Handle. translatorMu only guards translator so
	// readiness checks never wait behind an in-flight model call.
	turnMu       sync.Mutex
	translatorMu sync.RWMutex
	translator   nl2sql.Translator
}

func NewSession(deps Dependencies) (*Session, error) {
	if deps.Schema == nil {
		return nil, fmt.Errorf("schema source is required")
	}
	if deps.Gate == nil {
		return nil, fmt.Errorf("gate is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("query engine is required")
	}
	if deps.Log == nil {
		deps.Log = conversation.NewLog()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	id := uuid.NewString()
	return &Session{
		id:         id,
		deps:       deps,
		logger:     logger.With(slog.String("session_id", id)),
		translator: deps.Translator,
	}, nil
}

func (s *Session) ID() string { return s.id }

// SetTranslator installs a translator once a credential becomes available.
func (s *Session) SetTranslator(translator nl2sql.Translator) {
	s.translatorMu.Lock()
	defer s.translatorMu.Unlock()
	s.translator = translator
}

func (s *Session) HasTranslator() bool {
	return s.currentTranslator() != nil
}

func (s *Session) currentTranslator() nl2sql.Translator {
	s.translatorMu.RLock()
	defer s.translatorMu.RUnlock()
	return s.translator
}

func (s *Session) History() []conversation.Turn {
	return s.deps.Log.Turns()
}

func (s *Session) Schema(ctx context.Context) (schema.Description, error) {
	return s.deps.Schema.DescribeOrFallback(ctx)
}

func (s *Session) ReadOnly() bool {
	return s.deps.Gate.ReadOnly()
}

// Handle runs one request through the pipeline. Every failure is recorded as
// an assistant entry in the log; only empty input is returned as an error.
// onDelta, when set, receives model output as it streams in.
func (s *Session) Handle(ctx context.Context, input string, onDelta func(string)) (Reply, error) {
	if strings.TrimSpace(input) == "" {
		return Reply{}, ErrEmptyInput
	}

	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	ctx = observability.ContextWithSessionID(ctx, s.id)
	start := time.Now()
	reply := s.run(ctx, input, onDelta)

	content := reply.Assistant.Content
	reply.User, reply.Assistant = s.deps.Log.Append(input, content, reply.Err != nil)

	elapsed := time.Since(start)
	observability.ObserveTurn(reply.Outcome, elapsed)
	attrs := []any{
		slog.String("outcome", reply.Outcome),
		slog.String("gate_state", string(reply.Decision.State)),
		slog.Int64("duration_ms", elapsed.Milliseconds()),
	}
	if reply.Result != nil {
		attrs = append(attrs, slog.String("statement_kind", string(reply.Result.Kind)))
	}
	if reply.Err != nil {
		attrs = append(attrs, slog.String("error", reply.Err.Error()))
	}
	s.logger.InfoContext(ctx, "turn_completed", attrs...)
	return reply, nil
}

func (s *Session) run(ctx context.Context, input string, onDelta func(string)) Reply {
	g := s.deps.Gate
	confirmation := g.ParseConfirmation(input)

	// Checked on the raw request first so an unconfirmed destructive request
	// never costs a model call.
	if decision := g.Check(input, confirmation); !decision.State.Allowed() {
		return refused(decision)
	}

	translator := s.currentTranslator()
	if translator == nil {
		return failed(observability.OutcomeConfig, nl2sql.ErrMissingCredential)
	}

	desc, err := s.deps.Schema.DescribeOrFallback(ctx)
	fallback := err != nil
	if fallback {
		observability.IncrementSchemaFallback()
		s.logger.WarnContext(ctx, "schema introspection failed, using fallback", slog.String("error", err.Error()))
	}

	llmStart := time.Now()
	result, err := translator.Translate(ctx, nl2sql.Request{
		Schema:          desc.String(),
		NaturalLanguage: confirmation.Request,
		OnDelta:         onDelta,
	})
	observability.ObserveLLMLatency(time.Since(llmStart))
	if err != nil {
		outcome := observability.OutcomeLLMError
		if errors.Is(err, nl2sql.ErrMissingCredential) || errors.Is(err, nl2sql.ErrAuthentication) {
			outcome = observability.OutcomeConfig
		}
		reply := failed(outcome, err)
		reply.Fallback = fallback
		return reply
	}
	s.logger.DebugContext(ctx, "generated_sql", slog.String("sql", result.SQL))

	decision := g.CheckStatement(result.SQL, confirmation)
	if !decision.State.Allowed() {
		reply := refused(decision)
		reply.SQL = result.SQL
		reply.Fallback = fallback
		return reply
	}

	outcome, err := s.deps.Engine.Execute(ctx, result.SQL)
	if err != nil {
		reply := failed(observability.OutcomeExecError, err)
		reply.SQL = result.SQL
		reply.Decision = decision
		reply.Fallback = fallback
		return reply
	}
	observability.IncrementStatements(string(outcome.Kind))
	if outcome.Warning != "" {
		s.logger.WarnContext(ctx, "post-write view unavailable", slog.String("warning", outcome.Warning))
	}

	return Reply{
		Assistant: conversation.Turn{Content: SuccessContent(result.SQL)},
		Outcome:   observability.OutcomeSuccess,
		SQL:       result.SQL,
		Decision:  decision,
		Result:    &outcome,
		Fallback:  fallback,
	}
}

// SuccessContent is the assistant log entry for an executed statement.
func SuccessContent(sql string) string {
	return "Generated SQL: ```sql\n" + sql + "\n```\n\nQuery executed successfully."
}

// ErrorContent is the assistant log entry for a failed turn.
func ErrorContent(err error) string {
	return "Error: " + err.Error()
}

func refused(decision gate.Decision) Reply {
	return Reply{
		Assistant: conversation.Turn{Content: decision.Message},
		Outcome:   observability.OutcomeRefused,
		Decision:  decision,
	}
}

func failed(outcome string, err error) Reply {
	return Reply{
		Assistant: conversation.Turn{Content: ErrorContent(err)},
		Outcome:   outcome,
		Err:       err,
	}
}
