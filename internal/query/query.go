package query

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Kind string

const (
	KindRead  Kind = "read"
	KindWrite Kind = "write"
)

const (
	MessageNoResults        = "No results found."
	MessageNoResultSet      = "Query executed (no results to display)."
	MessageCommandSucceeded = "Command executed successfully!"
	warningTableViewPrefix  = "Could not show updated table: "
)

var readKeywords = []string{"select", "pragma", "explain"}

type Result struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Outcome describes a statement that ran to completion. For writes, View
// holds the affected table after commit, or Warning explains why it is
// missing.
type Outcome struct {
	Statement     string        `json:"statement"`
	Kind          Kind          `json:"kind"`
	Result        *Result       `json:"result,omitempty"`
	Message       string        `json:"message"`
	RowsAffected  int64         `json:"rows_affected,omitempty"`
	AffectedTable string        `json:"affected_table,omitempty"`
	View          *Result       `json:"view,omitempty"`
	Warning       string        `json:"warning,omitempty"`
	Duration      time.Duration `json:"duration_ns"`
}

// ExecError carries the database error for a statement that was rolled back.
// Its message is the driver's message, unchanged.
type ExecError struct {
	Statement string
	Err       error
}

func (e *ExecError) Error() string { return e.Err.Error() }

func (e *ExecError) Unwrap() error { return e.Err }

type Engine interface {
	Execute(ctx context.Context, statement string) (Outcome, error)
}

// Classify picks the execution path from the statement's leading keyword.
func Classify(statement string) Kind {
	lower := strings.ToLower(strings.TrimSpace(statement))
	for _, keyword := range readKeywords {
		if strings.HasPrefix(lower, keyword) {
			return KindRead
		}
	}
	return KindWrite
}

// AffectedTable finds the table a write touched from the first token after
// "into ", then "update ", then "from ". It is a plain text split; quoted or
// schema-qualified names are not understood. Without any marker it returns
// defaultTable. A marker followed by nothing is an error.
func AffectedTable(statement, defaultTable string) (string, error) {
	// Statements arrive trimmed, so a marker may end the text.
	lower := strings.ToLower(statement) + " "
	for _, marker := range []string{"into ", "update ", "from "} {
		idx := strings.Index(lower, marker)
		if idx < 0 {
			continue
		}
		fields := strings.Fields(lower[idx+len(marker):])
		if len(fields) == 0 {
			return "", fmt.Errorf("no table name after %q", strings.TrimSpace(marker))
		}
		return fields[0], nil
	}
	return defaultTable, nil
}

func TableViewWarning(err error) string {
	return warningTableViewPrefix + err.Error()
}
