package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

type postgresEditor struct {
	q Querier
}

func (e *postgresEditor) Dialect() Dialect { return Postgres }

func (e *postgresEditor) columnType(c Column) string {
	if c.Enum != nil {
		return quoteIdent(c.Enum.Name)
	}
	return c.Type
}

func (e *postgresEditor) AddColumn(ctx context.Context, c Column) error {
	if c.Enum != nil {
		// Same as an ORM add-column on an enum: create the type unless a
		// previous revert left it behind.
		stmt := fmt.Sprintf(
			"DO $$ BEGIN CREATE TYPE %s AS ENUM (%s); EXCEPTION WHEN duplicate_object THEN null; END $$",
			quoteIdent(c.Enum.Name), literalList(c.Enum.Values))
		if _, err := e.q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create enum %s: %w", c.Enum.Name, err)
		}
	}

	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
		quoteIdent(c.Table), quoteIdent(c.Name), e.columnType(c))
	if !c.Nullable {
		stmt += " NOT NULL"
	}
	if c.Default != "" {
		stmt += " DEFAULT " + c.Default
	}
	if _, err := e.q.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("add column %s.%s: %w", c.Table, c.Name, err)
	}
	return nil
}

func (e *postgresEditor) ChangeColumn(ctx context.Context, c Column) error {
	col := quoteIdent(c.Name)
	typ := "ALTER COLUMN " + col + " TYPE " + e.columnType(c)
	if c.Enum != nil {
		typ += " USING " + col + "::text::" + quoteIdent(c.Enum.Name)
	}
	actions := []string{typ}

	if c.Nullable {
		actions = append(actions, "ALTER COLUMN "+col+" DROP NOT NULL")
	} else {
		actions = append(actions, "ALTER COLUMN "+col+" SET NOT NULL")
	}
	if c.Default != "" {
		actions = append(actions, "ALTER COLUMN "+col+" SET DEFAULT "+c.Default)
	} else {
		actions = append(actions, "ALTER COLUMN "+col+" DROP DEFAULT")
	}

	stmt := "ALTER TABLE " + quoteIdent(c.Table) + " " + strings.Join(actions, ", ")
	if _, err := e.q.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("change column %s.%s: %w", c.Table, c.Name, err)
	}
	return nil
}

func (e *postgresEditor) RemoveColumn(ctx context.Context, table, column string) error {
	stmt := fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", quoteIdent(table), quoteIdent(column))
	if _, err := e.q.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("remove column %s.%s: %w", table, column, err)
	}
	return nil
}

func (e *postgresEditor) CreateEnum(ctx context.Context, en Enum) error {
	stmt := fmt.Sprintf("CREATE TYPE %s AS ENUM (%s)", quoteIdent(en.Name), literalList(en.Values))
	if _, err := e.q.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create enum %s: %w", en.Name, err)
	}
	return nil
}

func (e *postgresEditor) DropEnum(ctx context.Context, name string) error {
	if _, err := e.q.ExecContext(ctx, "DROP TYPE IF EXISTS "+quoteIdent(name)); err != nil {
		return fmt.Errorf("drop enum %s: %w", name, err)
	}
	return nil
}

func (e *postgresEditor) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return e.q.ExecContext(ctx, query, args...)
}

func (e *postgresEditor) Column(ctx context.Context, table, column string) (ColumnInfo, bool, error) {
	var (
		dataType, udtName, isNullable string
		def                           sql.NullString
	)
	err := e.q.QueryRowContext(ctx, `
		SELECT data_type, udt_name, is_nullable, column_default
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1 AND column_name = $2
	`, table, column).Scan(&dataType, &udtName, &isNullable, &def)
	if errors.Is(err, sql.ErrNoRows) {
		return ColumnInfo{}, false, nil
	}
	if err != nil {
		return ColumnInfo{}, false, fmt.Errorf("inspect column %s.%s: %w", table, column, err)
	}

	info := ColumnInfo{
		Type:     dataType,
		Nullable: isNullable == "YES",
		Default:  def.String,
	}
	if dataType == "USER-DEFINED" {
		info.Type = udtName
		values, _, err := e.EnumValues(ctx, udtName)
		if err != nil {
			return ColumnInfo{}, false, err
		}
		info.Values = values
	}
	return info, true, nil
}

func (e *postgresEditor) EnumValues(ctx context.Context, name string) ([]string, bool, error) {
	rows, err := e.q.QueryContext(ctx, `
		SELECT e.enumlabel
		FROM pg_type t
		JOIN pg_enum e ON e.enumtypid = t.oid
		WHERE t.typname = $1
		ORDER BY e.enumsortorder
	`, name)
	if err != nil {
		return nil, false, fmt.Errorf("inspect enum %s: %w", name, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, false, fmt.Errorf("inspect enum %s: %w", name, err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("inspect enum %s: %w", name, err)
	}
	return values, len(values) > 0, nil
}
