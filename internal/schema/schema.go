// Package schema applies declarative column and enumerated-type changes to a
// relational schema. It hides the differences between PostgreSQL, which has
// native enum types and ALTER COLUMN, and SQLite, which has neither.
package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Dialect names a supported SQL dialect.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// ErrUnknownDialect is returned for dialect names ParseDialect does not know.
var ErrUnknownDialect = errors.New("unknown dialect")

// ErrColumnNotFound is returned when an operation targets a missing column.
var ErrColumnNotFound = errors.New("column not found")

// ParseDialect maps a user-facing name to a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDialect, name)
}

// Validate reports ErrUnknownDialect for anything but Postgres and SQLite.
func (d Dialect) Validate() error {
	switch d {
	case Postgres, SQLite:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownDialect, string(d))
}

// DriverName returns the database/sql driver registered for the dialect, or
// "" for an unknown dialect.
func (d Dialect) DriverName() string {
	switch d {
	case Postgres:
		return "pgx"
	case SQLite:
		return "sqlite"
	}
	return ""
}

// Enum is a named, closed set of string values backing one or more columns.
type Enum struct {
	Name   string
	Values []string
}

// Column describes the desired state of one column.
type Column struct {
	Table    string
	Name     string
	Type     string // declared SQL type, TEXT is assumed for enum columns without one
	Nullable bool
	Default  string // SQL expression, empty means no default
	Enum     *Enum
}

// ColumnInfo is what an Inspector reports about an existing column.
type ColumnInfo struct {
	Type     string
	Nullable bool
	Default  string
	// Values holds the allowed values when the column is backed by an enum.
	Values []string
}

// Querier is satisfied by *sql.DB, *sql.Tx, *sql.Conn and *sqlx.DB.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Inspector reads the current shape of the schema.
type Inspector interface {
	// Column reports the column, or ok=false if it does not exist.
	Column(ctx context.Context, table, column string) (info ColumnInfo, ok bool, err error)
	// EnumValues reports the values of a named enum, or ok=false if absent.
	EnumValues(ctx context.Context, name string) (values []string, ok bool, err error)
}

// Editor is the handle a migration unit receives. Every operation runs
// immediately against the underlying Querier and returns the database error
// unchanged apart from wrapping.
type Editor interface {
	Inspector

	Dialect() Dialect

	// AddColumn adds c. An enum attached to c is created first if missing.
	AddColumn(ctx context.Context, c Column) error
	// ChangeColumn makes the existing column match c exactly: type,
	// nullability and default.
	ChangeColumn(ctx context.Context, c Column) error
	RemoveColumn(ctx context.Context, table, column string) error

	// CreateEnum fails if the enum already exists.
	CreateEnum(ctx context.Context, e Enum) error
	// DropEnum is a no-op when the enum does not exist.
	DropEnum(ctx context.Context, name string) error

	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// NewEditor returns the Editor for d operating through q.
func NewEditor(d Dialect, q Querier) (Editor, error) {
	switch d {
	case Postgres:
		return &postgresEditor{q: q}, nil
	case SQLite:
		return &sqliteEditor{q: q}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, string(d))
}

// Literal renders s as a single-quoted SQL string literal.
func Literal(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func literalList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = Literal(v)
	}
	return strings.Join(quoted, ", ")
}

// execAll runs statements in order and stops at the first failure.
func execAll(ctx context.Context, q Querier, stmts ...string) error {
	for _, stmt := range stmts {
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
