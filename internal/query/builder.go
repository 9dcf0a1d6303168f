// Package query builds and executes parameterized analytic SQL against the
// allow-listed schema. The one invariant everything here preserves: every
// interpolated identifier has passed the allow-list, every value travels as
// a bound parameter.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/caperr"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/schema"
)

// DBTX is the subset of database/sql both *sql.DB and *sql.Tx satisfy.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// quoteIdent double-quotes a validated identifier. The charset rule
// excludes quote characters, so no escaping is needed; quoting preserves
// mixed-case column names against Postgres case folding.
func quoteIdent(s string) string {
	return `"` + s + `"`
}

// WhereClause renders a flat equality-filter map as a parameterized WHERE
// clause. Filter keys are validated against the table's columns; values
// become $n placeholders. Keys are sorted so generated SQL is stable.
func WhereClause(cat *schema.Catalog, table string, filters map[string]any, startIdx int) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conds := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for _, k := range keys {
		if err := cat.ValidateColumn(table, k); err != nil {
			return "", nil, err
		}
		v := filters[k]
		if v == nil {
			conds = append(conds, quoteIdent(k)+" IS NULL")
			continue
		}
		conds = append(conds, fmt.Sprintf("%s = $%d", quoteIdent(k), startIdx+len(args)))
		args = append(args, v)
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// AggregateTerm is one requested metric: an aggregate function applied to a
// column. Count may omit the column.
type AggregateTerm struct {
	Func   string `json:"function"`
	Column string `json:"field"`
}

// aggregateFuncs is the closed set of supported aggregate functions.
var aggregateFuncs = map[string]string{
	"count": "count",
	"sum":   "sum",
	"avg":   "avg",
	"min":   "min",
	"max":   "max",
}

// Alias returns the output column name for a term, e.g. avg_solarOutput.
func (t AggregateTerm) Alias() string {
	if t.Column == "" || t.Column == "*" {
		return t.Func
	}
	return t.Func + "_" + t.Column
}

// renderAggregate validates a term and renders its SQL expression. The
// function name comes from the closed map, never from caller input.
func renderAggregate(cat *schema.Catalog, table string, t AggregateTerm) (string, error) {
	fn, ok := aggregateFuncs[strings.ToLower(t.Func)]
	if !ok {
		return "", caperr.Queryf("unsupported aggregate function %q", t.Func)
	}
	if t.Column == "" || t.Column == "*" {
		if fn != "count" {
			return "", caperr.Queryf("aggregate %q requires a field", t.Func)
		}
		return `count(*) AS ` + quoteIdent(t.Alias()), nil
	}
	if err := cat.ValidateColumn(table, t.Column); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s(%s) AS %s", fn, quoteIdent(t.Column), quoteIdent(t.Alias())), nil
}

// Options carries limit/offset/ordering for analytic queries.
type Options struct {
	Limit   int    `json:"limit,omitempty"`
	Offset  int    `json:"offset,omitempty"`
	OrderBy string `json:"orderBy,omitempty"`
	Desc    bool   `json:"desc,omitempty"`
}

// orderLimitClause renders ORDER BY / LIMIT / OFFSET. orderable restricts
// ORDER BY targets to the projected aliases or validated columns.
func orderLimitClause(cat *schema.Catalog, table string, opts Options, aliases map[string]bool) (string, error) {
	var b strings.Builder
	if opts.OrderBy != "" {
		if !aliases[opts.OrderBy] {
			if err := cat.ValidateColumn(table, opts.OrderBy); err != nil {
				return "", err
			}
		}
		b.WriteString(" ORDER BY " + quoteIdent(opts.OrderBy))
		if opts.Desc {
			b.WriteString(" DESC")
		}
	}
	if opts.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", opts.Limit)
	}
	if opts.Offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", opts.Offset)
	}
	return b.String(), nil
}

// scanRows materializes *sql.Rows as ordered field maps. []byte values are
// converted to string so results JSON-encode cleanly.
func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		record := make(map[string]any, len(cols))
		for i, name := range cols {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			record[name] = v
		}
		out = append(out, record)
	}
	return out, rows.Err()
}
