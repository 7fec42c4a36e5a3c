package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strings"
)

//go:embed sql/*.sql
var embeddedFS embed.FS

var scriptNamePattern = regexp.MustCompile(`^([0-9]+)_.+\.sql$`)

type Employee struct {
	ID         int64
	Name       string
	Department string
	Salary     float64
	HireDate   string
}

// SampleEmployees is the demo data set written by Seed.
var SampleEmployees = []Employee{
	{ID: 1, Name: "John Doe", Department: "Engineering", Salary: 75000, HireDate: "2023-01-15"},
	{ID: 2, Name: "Jane Smith", Department: "Marketing", Salary: 65000, HireDate: "2022-06-20"},
	{ID: 3, Name: "Bob Johnson", Department: "Engineering", Salary: 80000, HireDate: "2021-09-01"},
	{ID: 4, Name: "Alice Brown", Department: "HR", Salary: 60000, HireDate: "2023-03-10"},
}

// Bootstrap creates the demo schema if it is missing. Scripts are idempotent
// and run in file-name order.
func Bootstrap(ctx context.Context, db *sql.DB) (int, error) {
	return runScripts(ctx, db, embeddedFS)
}

// Seed replaces the employees table contents with SampleEmployees in one
// transaction.
func Seed(ctx context.Context, db *sql.DB, driver string) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM employees`); err != nil {
		return 0, fmt.Errorf("clear employees: %w", err)
	}
	insert := fmt.Sprintf(
		`INSERT INTO employees (id, name, department, salary, hire_date) VALUES (%s, %s, %s, %s, %s)`,
		Placeholder(driver, 1), Placeholder(driver, 2), Placeholder(driver, 3), Placeholder(driver, 4), Placeholder(driver, 5),
	)
	for _, row := range SampleEmployees {
		if _, err := tx.ExecContext(ctx, insert, row.ID, row.Name, row.Department, row.Salary, row.HireDate); err != nil {
			return 0, fmt.Errorf("insert employee %d: %w", row.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit seed: %w", err)
	}
	return len(SampleEmployees), nil
}

func runScripts(ctx context.Context, db *sql.DB, fsys fs.FS) (int, error) {
	scripts, err := loadScripts(fsys)
	if err != nil {
		return 0, err
	}
	for i, script := range scripts {
		if _, err := db.ExecContext(ctx, script); err != nil {
			return i, fmt.Errorf("apply bootstrap script %d: %w", i+1, err)
		}
	}
	return len(scripts), nil
}

func loadScripts(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, "sql")
	if err != nil {
		return nil, fmt.Errorf("read bootstrap dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !scriptNamePattern.MatchString(path.Base(entry.Name())) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	scripts := make([]string, 0, len(names))
	for _, name := range names {
		body, err := fs.ReadFile(fsys, path.Join("sql", name))
		if err != nil {
			return nil, fmt.Errorf("read bootstrap script %q: %w", name, err)
		}
		if strings.TrimSpace(string(body)) == "" {
			return nil, fmt.Errorf("bootstrap script %q is empty", name)
		}
		scripts = append(scripts, string(body))
	}
	return scripts, nil
}
