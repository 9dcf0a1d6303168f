// Package sandbox runs capability implementations behind a restricted,
// permission-filtered data-access facade. Handlers never see a raw
// database handle, raw SQL execution, or process access; everything goes
// through the facade, and the facade re-checks table permission and
// identifier safety before building any SQL.
package sandbox

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/access"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/caperr"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/query"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/schema"
	"go.uber.org/zap"
)

// Caller identifies who the facade is scoped to. Supplied per call, never
// persisted by this core.
type Caller struct {
	ID             int64
	Role           access.Role
	ConversationID int64
}

// Facade is the only data-access surface a capability implementation
// receives. Scoped to one caller role; safe for the duration of a single
// invocation.
type Facade struct {
	db      query.DBTX
	sqldb   *sql.DB // nil inside a transaction
	engine  *query.Engine
	catalog schema.Provider
	access  *access.Evaluator
	caller  Caller
	retry   RetryPolicy
	logger  *zap.Logger
}

// FacadeConfig configures a Facade.
type FacadeConfig struct {
	DB      *sql.DB
	Catalog schema.Provider
	Access  *access.Evaluator
	Caller  Caller
	Retry   RetryPolicy // zero value means DefaultRetryPolicy
	Logger  *zap.Logger
}

// NewFacade creates a Facade scoped to the caller's role.
func NewFacade(cfg FacadeConfig) *Facade {
	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryPolicy()
	}
	return &Facade{
		db:    cfg.DB,
		sqldb: cfg.DB,
		engine: query.NewEngine(query.EngineConfig{
			DB:      cfg.DB,
			Catalog: cfg.Catalog,
			Access:  cfg.Access,
			Logger:  cfg.Logger,
		}),
		catalog: cfg.Catalog,
		access:  cfg.Access,
		caller:  cfg.Caller,
		retry:   retry,
		logger:  cfg.Logger,
	}
}

// Caller returns the identity this facade is scoped to.
func (f *Facade) Caller() Caller {
	return f.caller
}

// checkWrite validates the table and the role's permission for a mutating
// operation.
func (f *Facade) checkWrite(table string, op access.Op) (*schema.Catalog, error) {
	cat := f.catalog.Catalog()
	if err := cat.ValidateTable(table); err != nil {
		return nil, err
	}
	if !f.access.HasTablePermission(table, f.caller.Role, op) {
		return nil, caperr.Permissionf("role %q may not %s table %q", f.caller.Role, op, table)
	}
	return cat, nil
}

// Find returns rows matching the equality filters.
func (f *Facade) Find(ctx context.Context, table string, filters map[string]any, opts query.Options) ([]map[string]any, error) {
	return f.engine.Select(ctx, f.caller.Role, table, nil, filters, opts)
}

// Get returns the first row matching the filters, or nil.
func (f *Facade) Get(ctx context.Context, table string, filters map[string]any) (map[string]any, error) {
	rows, err := f.engine.Select(ctx, f.caller.Role, table, nil, filters, query.Options{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Count returns the number of rows matching the filters.
func (f *Facade) Count(ctx context.Context, table string, filters map[string]any) (int64, error) {
	return f.engine.Count(ctx, f.caller.Role, table, filters)
}

// Insert adds a single row and returns the affected row count.
func (f *Facade) Insert(ctx context.Context, table string, values map[string]any) (int64, error) {
	n, err := f.BulkInsert(ctx, table, []map[string]any{values})
	return n, err
}

// BulkInsert adds rows in one statement. Every row must carry the same
// column set as the first.
func (f *Facade) BulkInsert(ctx context.Context, table string, rows []map[string]any) (int64, error) {
	cat, err := f.checkWrite(table, access.OpWrite)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	columns := make([]string, 0, len(rows[0]))
	for col := range rows[0] {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	if err := cat.ValidateColumns(table, columns); err != nil {
		return 0, err
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
	}

	args := make([]any, 0, len(rows)*len(columns))
	tuples := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) != len(columns) {
			return 0, caperr.Queryf("bulk insert rows must share one column set on %q", table)
		}
		placeholders := make([]string, len(columns))
		for i, col := range columns {
			v, ok := row[col]
			if !ok {
				return 0, caperr.Queryf("bulk insert rows must share one column set on %q", table)
			}
			placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
			args = append(args, v)
		}
		tuples = append(tuples, "("+strings.Join(placeholders, ", ")+")")
	}

	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		quoteIdent(table), strings.Join(quoted, ", "), strings.Join(tuples, ", "))
	res, err := f.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, caperr.Wrap(caperr.KindQuery, err, "insert into %q failed", table)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Update modifies matching rows and returns the affected count. An empty
// filter set is rejected so a handler bug cannot rewrite a whole table.
func (f *Facade) Update(ctx context.Context, table string, values, filters map[string]any) (int64, error) {
	cat, err := f.checkWrite(table, access.OpWrite)
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, caperr.Queryf("update on %q requires values", table)
	}
	if len(filters) == 0 {
		return 0, caperr.Queryf("update on %q requires filters", table)
	}

	cols := make([]string, 0, len(values))
	for col := range values {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	if err := cat.ValidateColumns(table, cols); err != nil {
		return 0, err
	}

	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+len(filters))
	for i, col := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", quoteIdent(col), len(args)+1)
		args = append(args, values[col])
	}

	where, whereArgs, err := query.WhereClause(cat, table, filters, len(args)+1)
	if err != nil {
		return 0, err
	}
	args = append(args, whereArgs...)

	q := fmt.Sprintf("UPDATE %s SET %s%s", quoteIdent(table), strings.Join(sets, ", "), where)
	res, err := f.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, caperr.Wrap(caperr.KindQuery, err, "update on %q failed", table)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Delete removes matching rows and returns the affected count. An empty
// filter set is rejected.
func (f *Facade) Delete(ctx context.Context, table string, filters map[string]any) (int64, error) {
	cat, err := f.checkWrite(table, access.OpDelete)
	if err != nil {
		return 0, err
	}
	if len(filters) == 0 {
		return 0, caperr.Queryf("delete on %q requires filters", table)
	}

	where, args, err := query.WhereClause(cat, table, filters, 1)
	if err != nil {
		return 0, err
	}

	q := fmt.Sprintf("DELETE FROM %s%s", quoteIdent(table), where)
	res, err := f.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, caperr.Wrap(caperr.KindQuery, err, "delete on %q failed", table)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Aggregate computes metrics over filtered rows, optionally grouped.
func (f *Facade) Aggregate(ctx context.Context, table string, terms []query.AggregateTerm, groupBy []string, filters map[string]any, opts query.Options) ([]map[string]any, error) {
	return f.engine.Aggregate(ctx, f.caller.Role, table, terms, groupBy, filters, opts)
}

// TimeSeries buckets metrics by a truncated timestamp column.
func (f *Facade) TimeSeries(ctx context.Context, table, timeColumn, bucket string, terms []query.AggregateTerm, filters map[string]any, opts query.Options) ([]map[string]any, error) {
	return f.engine.TimeSeries(ctx, f.caller.Role, table, timeColumn, bucket, terms, filters, opts)
}

// Correlate computes pairwise Pearson coefficients.
func (f *Facade) Correlate(ctx context.Context, table string, columns []string, filters map[string]any) ([]query.CorrelationPair, error) {
	return f.engine.Correlate(ctx, f.caller.Role, table, columns, filters)
}

// DetectAnomalies flags rows by z-score.
func (f *Facade) DetectAnomalies(ctx context.Context, table, valueColumn string, opts query.AnomalyOptions) (*query.AnomalyReport, error) {
	return f.engine.DetectAnomalies(ctx, f.caller.Role, table, valueColumn, opts)
}

// Describe returns descriptive statistics per column.
func (f *Facade) Describe(ctx context.Context, table string, columns []string, filters map[string]any) (map[string]query.ColumnStats, error) {
	return f.engine.Describe(ctx, f.caller.Role, table, columns, filters)
}

// DescribeTable returns column and constraint metadata.
func (f *Facade) DescribeTable(ctx context.Context, table string) (*query.TableSchema, error) {
	return f.engine.DescribeTable(ctx, f.caller.Role, table)
}

// ListTables returns the directory of tables the caller may read.
func (f *Facade) ListTables(ctx context.Context) []query.TableInfo {
	return f.engine.ListTables(ctx, f.caller.Role)
}

// WithTx runs fn inside a database transaction, handing it a facade bound
// to the transaction. Rolls back on error or panic; commits otherwise.
// Nested transactions are rejected.
func (f *Facade) WithTx(ctx context.Context, fn func(tx *Facade) error) error {
	if f.sqldb == nil {
		return caperr.Executionf("nested transactions are not supported")
	}
	tx, err := f.sqldb.BeginTx(ctx, nil)
	if err != nil {
		return caperr.Wrap(caperr.KindQuery, err, "begin transaction failed")
	}

	txFacade := &Facade{
		db:      tx,
		sqldb:   nil,
		engine:  f.engine.WithDB(tx),
		catalog: f.catalog,
		access:  f.access,
		caller:  f.caller,
		retry:   f.retry,
		logger:  f.logger,
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(txFacade); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			f.logger.Warn("transaction rollback failed",
				zap.Int64("caller_id", f.caller.ID),
				zap.Error(rbErr),
			)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return caperr.Wrap(caperr.KindQuery, err, "commit failed")
	}
	return nil
}

// WithRetry runs fn with bounded exponential backoff. Only transient
// data-access failures are retried; permission and validation failures
// surface immediately.
func (f *Facade) WithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= f.retry.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !caperr.Retryable(lastErr) || !isTransient(lastErr) {
			return lastErr
		}
		if attempt == f.retry.MaxAttempts {
			break
		}
		delay := f.retry.backoff(attempt)
		f.logger.Debug("retrying after transient failure",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(lastErr),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

func quoteIdent(s string) string {
	return `"` + s + `"`
}
