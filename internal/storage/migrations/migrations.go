// Package migrations holds the schema migration units. Each unit is a paired
// up/down function over a schema.Editor; Build turns them into goose Go
// migrations for one dialect.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/mfenderov/ledgerkit/internal/schema"
	"github.com/pressly/goose/v3"
)

// RevertPolicy decides whether reverting a unit also drops enumerated types
// the unit left behind as written.
type RevertPolicy string

const (
	// RevertAsAuthored reverts each unit exactly as written: the auth type
	// enum outlives its column.
	RevertAsAuthored RevertPolicy = "authored"
	// RevertComplete drops every enumerated type a unit introduced.
	RevertComplete RevertPolicy = "complete"
)

// ParseRevertPolicy accepts "authored" (the default for "") or "complete".
func ParseRevertPolicy(s string) (RevertPolicy, error) {
	switch RevertPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", RevertAsAuthored:
		return RevertAsAuthored, nil
	case RevertComplete:
		return RevertComplete, nil
	}
	return "", fmt.Errorf("unknown revert policy %q (want %q or %q)", s, RevertAsAuthored, RevertComplete)
}

// Options tune how units behave.
type Options struct {
	Revert RevertPolicy
	// SkipBackfill disables the balance_type backfill statement.
	SkipBackfill bool
	Logger       *log.Logger
}

func (o Options) logger() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.Default()
}

type unitFunc func(ctx context.Context, ed schema.Editor, opts Options) error

type unit struct {
	version int64
	name    string
	up      unitFunc
	down    unitFunc
}

var units []unit

func register(version int64, name string, up, down unitFunc) {
	units = append(units, unit{version: version, name: name, up: up, down: down})
}

func sortedUnits() []unit {
	return slices.SortedFunc(slices.Values(units), func(a, b unit) int {
		return int(a.version - b.version)
	})
}

// Build returns every unit as a goose migration bound to dialect d.
func Build(d schema.Dialect, opts Options) []*goose.Migration {
	sorted := sortedUnits()
	out := make([]*goose.Migration, 0, len(sorted))
	for _, u := range sorted {
		out = append(out, goose.NewGoMigration(
			u.version,
			&goose.GoFunc{RunTx: bind(d, opts, u.up)},
			&goose.GoFunc{RunTx: bind(d, opts, u.down)},
		))
	}
	return out
}

func bind(d schema.Dialect, opts Options, fn unitFunc) func(context.Context, *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		ed, err := schema.NewEditor(d, tx)
		if err != nil {
			return err
		}
		return fn(ctx, ed, opts)
	}
}

// Name returns the descriptive name of a unit, or "" for unknown versions.
func Name(version int64) string {
	for _, u := range units {
		if u.version == version {
			return u.name
		}
	}
	return ""
}

// Latest returns the highest unit version.
func Latest() int64 {
	var latest int64
	for _, u := range units {
		latest = max(latest, u.version)
	}
	return latest
}

// textType is the declared type of a bounded string column.
func textType(d schema.Dialect, size int) string {
	if d == schema.Postgres {
		return fmt.Sprintf("VARCHAR(%d)", size)
	}
	return "TEXT"
}

func execStatements(ctx context.Context, ed schema.Editor, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := ed.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
