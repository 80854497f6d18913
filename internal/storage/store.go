package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/mfenderov/ledgerkit/internal/schema"
	"github.com/mfenderov/ledgerkit/internal/storage/migrations"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store manages the ledger database.
type Store struct {
	db         *sqlx.DB
	dialect    schema.Dialect
	logger     *log.Logger
	migrations migrations.Options
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for migration progress.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMigrationOptions sets the revert policy and backfill behaviour of the
// migration units.
func WithMigrationOptions(o migrations.Options) Option {
	return func(s *Store) { s.migrations = o }
}

// NewStore opens (creating if needed) a SQLite database at path.
func NewStore(path string, opts ...Option) (*Store, error) {
	return Open(schema.SQLite, path, opts...)
}

// Open connects to a database of the given dialect. For SQLite dsn is a file
// path or ":memory:"; for Postgres it is a pgx connection string.
func Open(d schema.Dialect, dsn string, opts ...Option) (*Store, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if d == schema.SQLite {
		dsn = sqliteDSN(dsn)
	}
	db, err := sqlx.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if d == schema.SQLite {
		// One connection serializes writes and keeps per-connection pragmas
		// stable across a migration run.
		db.SetMaxOpenConns(1)
		if strings.HasPrefix(dsn, ":memory:") {
			if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
			}
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return NewWithDB(db, d, opts...), nil
}

// NewWithDB wraps an already opened database.
func NewWithDB(db *sqlx.DB, d schema.Dialect, opts ...Option) *Store {
	s := &Store{db: db, dialect: d, logger: log.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if s.migrations.Logger == nil {
		s.migrations.Logger = s.logger
	}
	return s
}

func sqliteDSN(path string) string {
	if path == ":memory:" {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dialect reports which SQL dialect the store speaks.
func (s *Store) Dialect() schema.Dialect {
	return s.dialect
}

// Editor returns a schema editor bound to the store's connection pool.
func (s *Store) Editor() (schema.Editor, error) {
	return schema.NewEditor(s.dialect, s.db)
}

// ListTables returns all table names in the database.
func (s *Store) ListTables(ctx context.Context) ([]string, error) {
	query := `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`
	if s.dialect == schema.Postgres {
		query = `
			SELECT table_name FROM information_schema.tables
			WHERE table_schema = current_schema()
			ORDER BY table_name
		`
	}

	var tables []string
	if err := s.db.SelectContext(ctx, &tables, query); err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return tables, nil
}
