package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/access"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/caperr"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/schema"
	"go.uber.org/zap"
)

// Engine executes analytic operations against allow-listed tables. Every
// operation re-checks the caller's table permission before emitting SQL.
type Engine struct {
	db      DBTX
	catalog schema.Provider
	access  *access.Evaluator
	logger  *zap.Logger
}

// EngineConfig configures an Engine.
type EngineConfig struct {
	DB      DBTX
	Catalog schema.Provider
	Access  *access.Evaluator
	Logger  *zap.Logger
}

// NewEngine creates an Engine.
func NewEngine(cfg EngineConfig) *Engine {
	return &Engine{
		db:      cfg.DB,
		catalog: cfg.Catalog,
		access:  cfg.Access,
		logger:  cfg.Logger,
	}
}

// WithDB returns a copy of the engine bound to a different executor,
// typically a transaction.
func (e *Engine) WithDB(db DBTX) *Engine {
	clone := *e
	clone.db = db
	return &clone
}

// checkRead validates the table identifier and the role's read permission.
func (e *Engine) checkRead(table string, role access.Role) (*schema.Catalog, error) {
	cat := e.catalog.Catalog()
	if err := cat.ValidateTable(table); err != nil {
		return nil, err
	}
	if !e.access.HasTablePermission(table, role, access.OpRead) {
		return nil, caperr.Permissionf("role %q may not read table %q", role, table)
	}
	return cat, nil
}

// Aggregate computes the requested metrics over the filtered rows,
// optionally grouped by dimension columns.
func (e *Engine) Aggregate(ctx context.Context, role access.Role, table string, terms []AggregateTerm, groupBy []string, filters map[string]any, opts Options) ([]map[string]any, error) {
	cat, err := e.checkRead(table, role)
	if err != nil {
		return nil, err
	}
	if len(terms) == 0 {
		return nil, caperr.Queryf("aggregate requires at least one metric")
	}
	if err := cat.ValidateColumns(table, groupBy); err != nil {
		return nil, err
	}

	projections := make([]string, 0, len(groupBy)+len(terms))
	aliases := make(map[string]bool, len(terms))
	for _, g := range groupBy {
		projections = append(projections, quoteIdent(g))
	}
	for _, t := range terms {
		expr, err := renderAggregate(cat, table, t)
		if err != nil {
			return nil, err
		}
		projections = append(projections, expr)
		aliases[t.Alias()] = true
	}

	where, args, err := WhereClause(cat, table, filters, 1)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s%s", strings.Join(projections, ", "), quoteIdent(table), where)
	if len(groupBy) > 0 {
		quoted := make([]string, len(groupBy))
		for i, g := range groupBy {
			quoted[i] = quoteIdent(g)
		}
		b.WriteString(" GROUP BY " + strings.Join(quoted, ", "))
	}
	tail, err := orderLimitClause(cat, table, opts, aliases)
	if err != nil {
		return nil, err
	}
	b.WriteString(tail)

	rows, err := e.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, caperr.Wrap(caperr.KindQuery, err, "aggregate over %q failed", table)
	}
	defer rows.Close()

	records, err := scanRows(rows)
	if err != nil {
		return nil, caperr.Wrap(caperr.KindQuery, err, "aggregate over %q failed", table)
	}
	return records, nil
}

// timeBuckets is the closed set of date_trunc granularities. The SQL
// literal always comes from this map, never from caller input.
var timeBuckets = map[string]string{
	"hour":  "hour",
	"day":   "day",
	"week":  "week",
	"month": "month",
	"year":  "year",
}

// TimeSeries buckets a timestamp column to the given granularity and
// groups the requested metrics per bucket, ordered by bucket.
func (e *Engine) TimeSeries(ctx context.Context, role access.Role, table, timeColumn, bucket string, terms []AggregateTerm, filters map[string]any, opts Options) ([]map[string]any, error) {
	cat, err := e.checkRead(table, role)
	if err != nil {
		return nil, err
	}
	granularity, ok := timeBuckets[strings.ToLower(bucket)]
	if !ok {
		return nil, caperr.Queryf("unsupported time bucket %q", bucket)
	}
	if err := cat.ValidateColumn(table, timeColumn); err != nil {
		return nil, err
	}
	if len(terms) == 0 {
		return nil, caperr.Queryf("time series requires at least one metric")
	}

	projections := make([]string, 0, len(terms)+1)
	projections = append(projections,
		fmt.Sprintf("date_trunc('%s', %s) AS bucket", granularity, quoteIdent(timeColumn)))
	for _, t := range terms {
		expr, err := renderAggregate(cat, table, t)
		if err != nil {
			return nil, err
		}
		projections = append(projections, expr)
	}

	where, args, err := WhereClause(cat, table, filters, 1)
	if err != nil {
		return nil, err
	}

	order := " ORDER BY bucket"
	if opts.Desc {
		order = " ORDER BY bucket DESC"
	}
	q := fmt.Sprintf("SELECT %s FROM %s%s GROUP BY bucket%s",
		strings.Join(projections, ", "), quoteIdent(table), where, order)
	if opts.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}

	rows, err := e.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, caperr.Wrap(caperr.KindQuery, err, "time series over %q failed", table)
	}
	defer rows.Close()

	records, err := scanRows(rows)
	if err != nil {
		return nil, caperr.Wrap(caperr.KindQuery, err, "time series over %q failed", table)
	}
	return records, nil
}

// Count returns the number of rows matching the filters.
func (e *Engine) Count(ctx context.Context, role access.Role, table string, filters map[string]any) (int64, error) {
	cat, err := e.checkRead(table, role)
	if err != nil {
		return 0, err
	}
	where, args, err := WhereClause(cat, table, filters, 1)
	if err != nil {
		return 0, err
	}
	var n int64
	q := fmt.Sprintf("SELECT count(*) FROM %s%s", quoteIdent(table), where)
	if err := e.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, caperr.Wrap(caperr.KindQuery, err, "count over %q failed", table)
	}
	return n, nil
}

// Select returns filtered rows with optional column projection and
// pagination. The workhorse behind the sandbox facade's reads.
func (e *Engine) Select(ctx context.Context, role access.Role, table string, columns []string, filters map[string]any, opts Options) ([]map[string]any, error) {
	cat, err := e.checkRead(table, role)
	if err != nil {
		return nil, err
	}

	projection := "*"
	if len(columns) > 0 {
		if err := cat.ValidateColumns(table, columns); err != nil {
			return nil, err
		}
		quoted := make([]string, len(columns))
		for i, c := range columns {
			quoted[i] = quoteIdent(c)
		}
		projection = strings.Join(quoted, ", ")
	}

	where, args, err := WhereClause(cat, table, filters, 1)
	if err != nil {
		return nil, err
	}
	tail, err := orderLimitClause(cat, table, opts, nil)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf("SELECT %s FROM %s%s%s", projection, quoteIdent(table), where, tail)
	rows, err := e.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, caperr.Wrap(caperr.KindQuery, err, "select from %q failed", table)
	}
	defer rows.Close()

	records, err := scanRows(rows)
	if err != nil {
		return nil, caperr.Wrap(caperr.KindQuery, err, "select from %q failed", table)
	}
	return records, nil
}
