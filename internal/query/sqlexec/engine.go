package sqlexec

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sqlassist/sqlassist/internal/query"
)

type Engine struct {
	db           *sql.DB
	defaultTable string
}

// NewEngine runs statements on db. defaultTable is shown after writes whose
// target table cannot be read from the statement text.
func NewEngine(db *sql.DB, defaultTable string) *Engine {
	if strings.TrimSpace(defaultTable) == "" {
		defaultTable = "employees"
	}
	return &Engine{db: db, defaultTable: defaultTable}
}

func (e *Engine) Execute(ctx context.Context, statement string) (query.Outcome, error) {
	sqlText := stripTrailingSemicolons(statement)
	if sqlText == "" {
		return query.Outcome{}, fmt.Errorf("sql is required")
	}
	if e.db == nil {
		return query.Outcome{}, fmt.Errorf("database is not configured")
	}

	start := time.Now()
	var (
		outcome query.Outcome
		err     error
	)
	if query.Classify(sqlText) == query.KindRead {
		outcome, err = e.read(ctx, sqlText)
	} else {
		outcome, err = e.write(ctx, sqlText)
	}
	if err != nil {
		return query.Outcome{}, err
	}
	outcome.Statement = sqlText
	outcome.Duration = time.Since(start)
	return outcome, nil
}

func (e *Engine) read(ctx context.Context, sqlText string) (query.Outcome, error) {
	result, err := e.queryRows(ctx, sqlText)
	if err != nil {
		return query.Outcome{}, &query.ExecError{Statement: sqlText, Err: err}
	}

	outcome := query.Outcome{Kind: query.KindRead}
	switch {
	case len(result.Columns) == 0:
		outcome.Message = query.MessageNoResultSet
	case len(result.Rows) == 0:
		outcome.Message = query.MessageNoResults
	default:
		outcome.Result = &result
		outcome.Message = fmt.Sprintf("%d row(s)", len(result.Rows))
	}
	return outcome, nil
}

func (e *Engine) write(ctx context.Context, sqlText string) (query.Outcome, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return query.Outcome{}, &query.ExecError{Statement: sqlText, Err: err}
	}

	res, err := tx.ExecContext(ctx, sqlText)
	if err != nil {
		_ = tx.Rollback()
		return query.Outcome{}, &query.ExecError{Statement: sqlText, Err: err}
	}
	if err := tx.Commit(); err != nil {
		_ = tx.Rollback()
		return query.Outcome{}, &query.ExecError{Statement: sqlText, Err: err}
	}

	outcome := query.Outcome{Kind: query.KindWrite, Message: query.MessageCommandSucceeded}
	if affected, err := res.RowsAffected(); err == nil {
		outcome.RowsAffected = affected
	}

	// The statement is committed at this point; the follow-up view only
	// downgrades to a warning.
	table, err := query.AffectedTable(sqlText, e.defaultTable)
	if err != nil {
		outcome.Warning = query.TableViewWarning(err)
		return outcome, nil
	}
	outcome.AffectedTable = table
	view, err := e.queryRows(ctx, "SELECT * FROM "+table)
	if err != nil {
		outcome.Warning = query.TableViewWarning(err)
		return outcome, nil
	}
	outcome.View = &view
	return outcome, nil
}

func (e *Engine) queryRows(ctx context.Context, sqlText string) (query.Result, error) {
	rows, err := e.db.QueryContext(ctx, sqlText)
	if err != nil {
		return query.Result{}, err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, err
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.Result{}, err
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return query.Result{}, err
	}
	return query.Result{Columns: columns, Rows: resultRows}, nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
