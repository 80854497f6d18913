package schema

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// enumTable records the enum types SQLite cannot represent natively. Columns
// using an enum carry a CHECK constraint; this table gives the type itself a
// create/drop lifecycle.
const enumTable = "_enum_types"

type sqliteEditor struct {
	q Querier
}

func (e *sqliteEditor) Dialect() Dialect { return SQLite }

func (e *sqliteEditor) definition(c Column) string {
	typ := c.Type
	if typ == "" && c.Enum != nil {
		typ = "TEXT"
	}

	var b strings.Builder
	b.WriteString(quoteIdent(c.Name))
	b.WriteString(" ")
	b.WriteString(typ)
	if !c.Nullable {
		b.WriteString(" NOT NULL")
	}
	if c.Default != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(c.Default)
	}
	if c.Enum != nil {
		fmt.Fprintf(&b, " CHECK (%s IN (%s))", quoteIdent(c.Name), literalList(c.Enum.Values))
	}
	return b.String()
}

func (e *sqliteEditor) ensureEnumTable(ctx context.Context) error {
	_, err := e.q.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+enumTable+` (
		name TEXT PRIMARY KEY,
		vals TEXT NOT NULL
	)`)
	return err
}

func (e *sqliteEditor) insertEnum(ctx context.Context, en Enum, verb string) error {
	if err := e.ensureEnumTable(ctx); err != nil {
		return err
	}
	vals, err := json.Marshal(en.Values)
	if err != nil {
		return err
	}
	_, err = e.q.ExecContext(ctx, verb+" INTO "+enumTable+" (name, vals) VALUES (?, ?)", en.Name, string(vals))
	return err
}

func (e *sqliteEditor) AddColumn(ctx context.Context, c Column) error {
	if c.Enum != nil {
		if err := e.insertEnum(ctx, *c.Enum, "INSERT OR IGNORE"); err != nil {
			return fmt.Errorf("create enum %s: %w", c.Enum.Name, err)
		}
	}

	stmt := "ALTER TABLE " + quoteIdent(c.Table) + " ADD COLUMN " + e.definition(c)
	if _, err := e.q.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("add column %s.%s: %w", c.Table, c.Name, err)
	}
	return nil
}

// ChangeColumn follows SQLite's generalized ALTER TABLE procedure: the table
// is recreated with the one column definition replaced. The caller must run
// it on a single connection or transaction with foreign key enforcement off.
func (e *sqliteEditor) ChangeColumn(ctx context.Context, c Column) error {
	if err := e.rebuild(ctx, c.Table, c.Name, e.definition(c)); err != nil {
		return fmt.Errorf("change column %s.%s: %w", c.Table, c.Name, err)
	}
	return nil
}

func (e *sqliteEditor) RemoveColumn(ctx context.Context, table, column string) error {
	stmt := fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", quoteIdent(table), quoteIdent(column))
	if _, err := e.q.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("remove column %s.%s: %w", table, column, err)
	}
	return nil
}

func (e *sqliteEditor) CreateEnum(ctx context.Context, en Enum) error {
	if err := e.insertEnum(ctx, en, "INSERT"); err != nil {
		return fmt.Errorf("create enum %s: %w", en.Name, err)
	}
	return nil
}

func (e *sqliteEditor) DropEnum(ctx context.Context, name string) error {
	if err := e.ensureEnumTable(ctx); err != nil {
		return fmt.Errorf("drop enum %s: %w", name, err)
	}
	if _, err := e.q.ExecContext(ctx, "DELETE FROM "+enumTable+" WHERE name = ?", name); err != nil {
		return fmt.Errorf("drop enum %s: %w", name, err)
	}
	return nil
}

func (e *sqliteEditor) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return e.q.ExecContext(ctx, query, args...)
}

func (e *sqliteEditor) Column(ctx context.Context, table, column string) (ColumnInfo, bool, error) {
	var (
		typ     string
		notNull bool
		def     sql.NullString
	)
	err := e.q.QueryRowContext(ctx, `
		SELECT type, "notnull", dflt_value FROM pragma_table_info(?)
		WHERE name = ? COLLATE NOCASE
	`, table, column).Scan(&typ, &notNull, &def)
	if errors.Is(err, sql.ErrNoRows) {
		return ColumnInfo{}, false, nil
	}
	if err != nil {
		return ColumnInfo{}, false, fmt.Errorf("inspect column %s.%s: %w", table, column, err)
	}

	info := ColumnInfo{Type: typ, Nullable: !notNull, Default: def.String}

	createSQL, err := e.tableSQL(ctx, table)
	if err != nil {
		return ColumnInfo{}, false, fmt.Errorf("inspect column %s.%s: %w", table, column, err)
	}
	defs, _, err := splitTableDefinition(createSQL)
	if err != nil {
		return ColumnInfo{}, false, fmt.Errorf("inspect column %s.%s: %w", table, column, err)
	}
	if i := findColumn(defs, column); i >= 0 {
		info.Values = checkValues(defs[i])
	}
	return info, true, nil
}

func (e *sqliteEditor) EnumValues(ctx context.Context, name string) ([]string, bool, error) {
	var tables int
	err := e.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, enumTable,
	).Scan(&tables)
	if err != nil {
		return nil, false, fmt.Errorf("inspect enum %s: %w", name, err)
	}
	if tables == 0 {
		return nil, false, nil
	}

	var raw string
	err = e.q.QueryRowContext(ctx, "SELECT vals FROM "+enumTable+" WHERE name = ?", name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("inspect enum %s: %w", name, err)
	}

	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, false, fmt.Errorf("decode enum %s: %w", name, err)
	}
	return values, true, nil
}

func (e *sqliteEditor) tableSQL(ctx context.Context, table string) (string, error) {
	var createSQL string
	err := e.q.QueryRowContext(ctx,
		`SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
	).Scan(&createSQL)
	if err != nil {
		return "", fmt.Errorf("read definition of %s: %w", table, err)
	}
	return createSQL, nil
}

func (e *sqliteEditor) columnNames(ctx context.Context, table string) ([]string, error) {
	rows, err := e.q.QueryContext(ctx, `SELECT name FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, quoteIdent(name))
	}
	return names, rows.Err()
}

// auxiliarySQL returns the CREATE statements of indexes and triggers that a
// DROP TABLE would take with it. Automatic indexes have no SQL and are
// recreated by the table definition itself.
func (e *sqliteEditor) auxiliarySQL(ctx context.Context, table string) ([]string, error) {
	rows, err := e.q.QueryContext(ctx, `
		SELECT sql FROM sqlite_master
		WHERE tbl_name = ? AND type IN ('index', 'trigger') AND sql IS NOT NULL
	`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stmts []string
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, rows.Err()
}

func (e *sqliteEditor) rebuild(ctx context.Context, table, column, definition string) error {
	createSQL, err := e.tableSQL(ctx, table)
	if err != nil {
		return err
	}
	defs, tail, err := splitTableDefinition(createSQL)
	if err != nil {
		return err
	}
	i := findColumn(defs, column)
	if i < 0 {
		return fmt.Errorf("%w: %s.%s", ErrColumnNotFound, table, column)
	}
	defs[i] = definition

	cols, err := e.columnNames(ctx, table)
	if err != nil {
		return err
	}
	aux, err := e.auxiliarySQL(ctx, table)
	if err != nil {
		return err
	}

	shadow := quoteIdent(table + "__rebuild")
	colList := strings.Join(cols, ", ")
	stmts := []string{
		"CREATE TABLE " + shadow + " (\n\t" + strings.Join(defs, ",\n\t") + "\n)" + tail,
		"INSERT INTO " + shadow + " (" + colList + ") SELECT " + colList + " FROM " + quoteIdent(table),
		"DROP TABLE " + quoteIdent(table),
		"ALTER TABLE " + shadow + " RENAME TO " + quoteIdent(table),
	}

	// The savepoint keeps a failed copy from leaving the shadow table behind
	// when no outer transaction exists.
	if _, err := e.q.ExecContext(ctx, "SAVEPOINT rebuild"); err != nil {
		return err
	}
	if err := execAll(ctx, e.q, append(stmts, aux...)...); err != nil {
		_, _ = e.q.ExecContext(ctx, "ROLLBACK TO rebuild")
		_, _ = e.q.ExecContext(ctx, "RELEASE rebuild")
		return err
	}
	_, err = e.q.ExecContext(ctx, "RELEASE rebuild")
	return err
}

// splitTableDefinition cuts a CREATE TABLE statement into its top-level
// column and constraint definitions and whatever follows the closing
// parenthesis (table options such as STRICT).
func splitTableDefinition(createSQL string) ([]string, string, error) {
	var (
		defs  []string
		depth int
		start int
		quote byte
	)
	for i := 0; i < len(createSQL); i++ {
		ch := createSQL[i]
		if quote != 0 {
			if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '\'', '"', '`':
			quote = ch
		case '[':
			quote = ']'
		case '-':
			if i+1 < len(createSQL) && createSQL[i+1] == '-' {
				if nl := strings.IndexByte(createSQL[i:], '\n'); nl >= 0 {
					i += nl
				} else {
					i = len(createSQL)
				}
			}
		case '(':
			depth++
			if depth == 1 {
				start = i + 1
			}
		case ')':
			depth--
			if depth == 0 {
				defs = append(defs, strings.TrimSpace(createSQL[start:i]))
				return defs, createSQL[i+1:], nil
			}
		case ',':
			if depth == 1 {
				defs = append(defs, strings.TrimSpace(createSQL[start:i]))
				start = i + 1
			}
		}
	}
	return nil, "", fmt.Errorf("malformed table definition: %q", createSQL)
}

var tableConstraints = map[string]bool{
	"CONSTRAINT": true,
	"PRIMARY":    true,
	"UNIQUE":     true,
	"CHECK":      true,
	"FOREIGN":    true,
}

// definitionName returns the column a definition declares; ok is false for
// table constraints.
func definitionName(def string) (string, bool) {
	def = strings.TrimSpace(def)
	for strings.HasPrefix(def, "--") {
		nl := strings.IndexByte(def, '\n')
		if nl < 0 {
			return "", false
		}
		def = strings.TrimSpace(def[nl+1:])
	}
	if def == "" {
		return "", false
	}
	switch def[0] {
	case '"', '`', '\'':
		if end := strings.IndexByte(def[1:], def[0]); end >= 0 {
			return def[1 : 1+end], true
		}
		return "", false
	case '[':
		if end := strings.IndexByte(def, ']'); end >= 0 {
			return def[1:end], true
		}
		return "", false
	}

	end := strings.IndexFunc(def, func(r rune) bool { return unicode.IsSpace(r) || r == '(' })
	if end < 0 {
		end = len(def)
	}
	name := def[:end]
	if tableConstraints[strings.ToUpper(name)] {
		return "", false
	}
	return name, true
}

func findColumn(defs []string, column string) int {
	for i, def := range defs {
		if name, ok := definitionName(def); ok && strings.EqualFold(name, column) {
			return i
		}
	}
	return -1
}

var (
	checkInRe = regexp.MustCompile(`(?is)\bCHECK\s*\(.*?\bIN\s*\(([^)]*)\)`)
	literalRe = regexp.MustCompile(`'((?:[^']|'')*)'`)
)

// checkValues extracts the allowed values of a CHECK (col IN (...)) clause.
func checkValues(def string) []string {
	m := checkInRe.FindStringSubmatch(def)
	if m == nil {
		return nil
	}
	var values []string
	for _, lit := range literalRe.FindAllStringSubmatch(m[1], -1) {
		values = append(values, strings.ReplaceAll(lit[1], "''", "'"))
	}
	return values
}
