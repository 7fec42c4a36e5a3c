package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sqlassist/sqlassist/internal/config"
)

type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Description lists tables and their columns in catalog order.
type Description struct {
	Tables []Table `json:"tables"`
}

// String renders the description in the block format the prompt expects:
//
//	Table: employees
//	- id (INTEGER)
//
// with a blank line after each table.
func (d Description) String() string {
	var b strings.Builder
	for _, table := range d.Tables {
		b.WriteString("Table: ")
		b.WriteString(table.Name)
		b.WriteString("\n")
		for _, column := range table.Columns {
			fmt.Fprintf(&b, "- %s (%s)\n", column.Name, column.Type)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Fallback is substituted when the catalog cannot be read. It mirrors the
// bootstrap table so generation can still proceed.
func Fallback() Description {
	return Description{Tables: []Table{{
		Name: "employees",
		Columns: []Column{
			{Name: "id", Type: "INTEGER"},
			{Name: "name", Type: "TEXT"},
			{Name: "department", Type: "TEXT"},
			{Name: "salary", Type: "REAL"},
			{Name: "hire_date", Type: "TEXT"},
		},
	}}}
}

type Introspector struct {
	db     *sql.DB
	driver string
}

func NewIntrospector(db *sql.DB, driver string) *Introspector {
	return &Introspector{db: db, driver: driver}
}

func (i *Introspector) Describe(ctx context.Context) (Description, error) {
	if i == nil || i.db == nil {
		return Description{}, fmt.Errorf("introspector database is not configured")
	}
	switch i.driver {
	case config.DriverSQLite:
		return i.describeSQLite(ctx)
	case config.DriverDuckDB, config.DriverPostgres:
		return i.describeInformationSchema(ctx)
	default:
		return Description{}, fmt.Errorf("unsupported database driver %q", i.driver)
	}
}

// DescribeOrFallback always returns a usable description. A non-nil error
// means Fallback was substituted for the catalog.
func (i *Introspector) DescribeOrFallback(ctx context.Context) (Description, error) {
	desc, err := i.Describe(ctx)
	if err != nil {
		return Fallback(), err
	}
	return desc, nil
}

func (i *Introspector) describeSQLite(ctx context.Context) (Description, error) {
	names, err := queryStrings(ctx, i.db, `SELECT name FROM sqlite_master WHERE type = 'table'`)
	if err != nil {
		return Description{}, fmt.Errorf("list tables: %w", err)
	}

	tables := make([]Table, 0, len(names))
	for _, name := range names {
		columns, err := i.sqliteColumns(ctx, name)
		if err != nil {
			return Description{}, err
		}
		tables = append(tables, Table{Name: name, Columns: columns})
	}
	return Description{Tables: tables}, nil
}

func (i *Introspector) sqliteColumns(ctx context.Context, table string) ([]Column, error) {
	rows, err := i.db.QueryContext(ctx, `PRAGMA table_info(`+quoteIdent(table)+`)`)
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	columns := make([]Column, 0)
	for rows.Next() {
		var (
			cid      int
			name     string
			colType  string
			notNull  int
			defValue sql.NullString
			pk       int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defValue, &pk); err != nil {
			return nil, fmt.Errorf("scan table info %s: %w", table, err)
		}
		columns = append(columns, Column{Name: name, Type: colType})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("table info rows %s: %w", table, err)
	}
	return columns, nil
}

func (i *Introspector) describeInformationSchema(ctx context.Context) (Description, error) {
	rows, err := i.db.QueryContext(ctx, `
SELECT c.table_name, c.column_name, c.data_type
FROM information_schema.columns c
JOIN information_schema.tables t
  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
WHERE c.table_schema = current_schema() AND t.table_type = 'BASE TABLE'
ORDER BY c.table_name, c.ordinal_position`)
	if err != nil {
		return Description{}, fmt.Errorf("query information schema: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tables := make([]Table, 0)
	for rows.Next() {
		var tableName, column, dataType string
		if err := rows.Scan(&tableName, &column, &dataType); err != nil {
			return Description{}, fmt.Errorf("scan column: %w", err)
		}
		if len(tables) == 0 || tables[len(tables)-1].Name != tableName {
			tables = append(tables, Table{Name: tableName})
		}
		last := &tables[len(tables)-1]
		last.Columns = append(last.Columns, Column{Name: column, Type: strings.ToUpper(dataType)})
	}
	if err := rows.Err(); err != nil {
		return Description{}, fmt.Errorf("information schema rows: %w", err)
	}
	return Description{Tables: tables}, nil
}

func queryStrings(ctx context.Context, db *sql.DB, query string) ([]string, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make([]string, 0)
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	return out, rows.Err()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
