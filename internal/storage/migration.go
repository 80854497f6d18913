package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mfenderov/ledgerkit/internal/schema"
	"github.com/mfenderov/ledgerkit/internal/storage/migrations"
	"github.com/pressly/goose/v3"
)

// ErrNothingToRevert is returned by Rollback and Redo when no migration has
// been applied.
var ErrNothingToRevert = errors.New("no applied migration to revert")

// MigrationStatus describes one migration unit as seen by the database.
type MigrationStatus struct {
	Version   int64
	Name      string
	Applied   bool
	AppliedAt time.Time
}

func (s *Store) provider() (*goose.Provider, error) {
	dialect := goose.DialectSQLite3
	if s.dialect == schema.Postgres {
		dialect = goose.DialectPostgres
	}
	p, err := goose.NewProvider(dialect, s.db.DB, nil,
		goose.WithDisableGlobalRegistry(true),
		goose.WithGoMigrations(migrations.Build(s.dialect, s.migrations)...),
		goose.WithLogger(s.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}
	// The provider is not closed: Close would close the store's database.
	return p, nil
}

// Migrate applies all pending migrations.
func (s *Store) Migrate(ctx context.Context) error {
	return s.run(ctx, "migrate", func(p *goose.Provider) ([]*goose.MigrationResult, error) {
		return p.Up(ctx)
	})
}

// MigrateTo applies pending migrations up to and including version.
func (s *Store) MigrateTo(ctx context.Context, version int64) error {
	return s.run(ctx, "migrate", func(p *goose.Provider) ([]*goose.MigrationResult, error) {
		return p.UpTo(ctx, version)
	})
}

// Rollback reverts the most recently applied migration.
func (s *Store) Rollback(ctx context.Context) error {
	return s.run(ctx, "roll back", func(p *goose.Provider) ([]*goose.MigrationResult, error) {
		return down(ctx, p)
	})
}

// RollbackTo reverts applied migrations down to, but not including, version.
// Version 0 reverts everything.
func (s *Store) RollbackTo(ctx context.Context, version int64) error {
	return s.run(ctx, "roll back", func(p *goose.Provider) ([]*goose.MigrationResult, error) {
		return p.DownTo(ctx, version)
	})
}

// Redo reverts the most recently applied migration and applies it again.
func (s *Store) Redo(ctx context.Context) error {
	return s.run(ctx, "redo", func(p *goose.Provider) ([]*goose.MigrationResult, error) {
		reverted, err := down(ctx, p)
		if err != nil {
			return reverted, err
		}
		res, err := p.UpByOne(ctx)
		if err != nil {
			return reverted, err
		}
		return append(reverted, res), nil
	})
}

func down(ctx context.Context, p *goose.Provider) ([]*goose.MigrationResult, error) {
	res, err := p.Down(ctx)
	if errors.Is(err, goose.ErrNoNextVersion) {
		return nil, ErrNothingToRevert
	}
	if err != nil {
		return nil, err
	}
	return []*goose.MigrationResult{res}, nil
}

// Status lists every known migration and whether it has been applied.
func (s *Store) Status(ctx context.Context) ([]MigrationStatus, error) {
	p, err := s.provider()
	if err != nil {
		return nil, err
	}
	statuses, err := p.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration status: %w", err)
	}

	out := make([]MigrationStatus, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, MigrationStatus{
			Version:   st.Source.Version,
			Name:      migrations.Name(st.Source.Version),
			Applied:   st.State == goose.StateApplied,
			AppliedAt: st.AppliedAt,
		})
	}
	return out, nil
}

// GetSchemaVersion returns the current schema version, 0 for an empty
// database.
func (s *Store) GetSchemaVersion(ctx context.Context) (int64, error) {
	p, err := s.provider()
	if err != nil {
		return 0, err
	}
	v, err := p.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return v, nil
}

func (s *Store) run(ctx context.Context, verb string, fn func(*goose.Provider) ([]*goose.MigrationResult, error)) error {
	p, err := s.provider()
	if err != nil {
		return err
	}
	restore, err := s.suspendForeignKeys(ctx)
	if err != nil {
		return err
	}

	results, err := fn(p)
	s.logResults(results)
	if err != nil {
		var partial *goose.PartialError
		if errors.As(err, &partial) {
			s.logResults(partial.Applied)
			s.logger.Error("Migration failed",
				"version", partial.Failed.Source.Version,
				"name", migrations.Name(partial.Failed.Source.Version),
				"direction", partial.Failed.Direction,
				"err", partial.Err)
		}
		return errors.Join(fmt.Errorf("failed to %s: %w", verb, err), restore(ctx))
	}
	return restore(ctx)
}

func (s *Store) logResults(results []*goose.MigrationResult) {
	for _, r := range results {
		if r == nil {
			continue
		}
		s.logger.Info("Migration "+r.Direction,
			"version", r.Source.Version,
			"name", migrations.Name(r.Source.Version),
			"duration", r.Duration.Round(time.Microsecond))
	}
}

// suspendForeignKeys turns SQLite foreign key enforcement off for the length
// of a run; table rebuilds would otherwise cascade deletes. The returned
// function turns it back on and fails if the run left dangling references.
func (s *Store) suspendForeignKeys(ctx context.Context) (func(context.Context) error, error) {
	if s.dialect != schema.SQLite {
		return func(context.Context) error { return nil }, nil
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys=OFF"); err != nil {
		return nil, fmt.Errorf("failed to disable foreign keys: %w", err)
	}

	return func(ctx context.Context) error {
		if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
			return fmt.Errorf("failed to enable foreign keys: %w", err)
		}
		rows, err := s.db.QueryxContext(ctx, "PRAGMA foreign_key_check")
		if err != nil {
			return fmt.Errorf("failed to check foreign keys: %w", err)
		}
		defer rows.Close()

		var violations int
		for rows.Next() {
			row := map[string]any{}
			if err := rows.MapScan(row); err != nil {
				return fmt.Errorf("failed to check foreign keys: %w", err)
			}
			s.logger.Warn("Foreign key violation", "table", row["table"], "rowid", row["rowid"], "parent", row["parent"])
			violations++
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("failed to check foreign keys: %w", err)
		}
		if violations > 0 {
			return fmt.Errorf("migration left %d foreign key violations", violations)
		}
		return nil
	}, nil
}
