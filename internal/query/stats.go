package query

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/access"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/caperr"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/schema"
)

// CorrelationPair is the Pearson coefficient for one unordered column pair.
type CorrelationPair struct {
	ColumnA     string  `json:"columnA"`
	ColumnB     string  `json:"columnB"`
	Coefficient float64 `json:"coefficient"`
}

// Correlate computes the Pearson correlation coefficient for every
// unordered pair among the requested numeric columns. Pairs whose
// coefficient is undefined (zero variance, no overlapping rows) are
// omitted from the result, not reported as zero.
func (e *Engine) Correlate(ctx context.Context, role access.Role, table string, columns []string, filters map[string]any) ([]CorrelationPair, error) {
	cat, err := e.checkRead(table, role)
	if err != nil {
		return nil, err
	}
	if len(columns) < 2 {
		return nil, caperr.Queryf("correlation requires at least two columns")
	}
	if err := cat.ValidateColumns(table, columns); err != nil {
		return nil, err
	}

	type pair struct{ a, b string }
	var pairs []pair
	var exprs []string
	for i := 0; i < len(columns); i++ {
		for j := i + 1; j < len(columns); j++ {
			pairs = append(pairs, pair{columns[i], columns[j]})
			exprs = append(exprs, fmt.Sprintf("corr(%s::double precision, %s::double precision)",
				quoteIdent(columns[i]), quoteIdent(columns[j])))
		}
	}

	where, args, err := WhereClause(cat, table, filters, 1)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf("SELECT %s FROM %s%s", strings.Join(exprs, ", "), quoteIdent(table), where)
	values := make([]sql.NullFloat64, len(pairs))
	ptrs := make([]any, len(pairs))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := e.db.QueryRowContext(ctx, q, args...).Scan(ptrs...); err != nil {
		return nil, caperr.Wrap(caperr.KindQuery, err, "correlation over %q failed", table)
	}

	out := make([]CorrelationPair, 0, len(pairs))
	for i, p := range pairs {
		v := values[i]
		if !v.Valid || math.IsNaN(v.Float64) {
			continue
		}
		out = append(out, CorrelationPair{ColumnA: p.a, ColumnB: p.b, Coefficient: v.Float64})
	}
	return out, nil
}

// AnomalyOptions tunes z-score anomaly detection.
type AnomalyOptions struct {
	// Threshold is the |z| cutoff; 0 means the default of 2.0.
	Threshold float64
	// Filters restricts the analyzed rows by equality.
	Filters map[string]any
	// TimeColumn with From/To restricts to a date range.
	TimeColumn string
	From, To   *time.Time
	// Limit caps the number of scanned rows (0 = no cap).
	Limit int
}

// DefaultAnomalyThreshold is the |z| cutoff applied when none is given.
const DefaultAnomalyThreshold = 2.0

// Anomaly is one flagged row.
type Anomaly struct {
	Value  float64        `json:"value"`
	ZScore float64        `json:"zScore"`
	Row    map[string]any `json:"row"`
}

// AnomalyReport is the outcome of a detection run.
type AnomalyReport struct {
	Table     string    `json:"table"`
	Column    string    `json:"column"`
	RowCount  int64     `json:"rowCount"`
	Mean      float64   `json:"mean"`
	StdDev    float64   `json:"stdDev"`
	Threshold float64   `json:"threshold"`
	Anomalies []Anomaly `json:"anomalies"`
}

// DetectAnomalies flags rows whose value deviates from the mean by more
// than threshold standard deviations. A zero standard deviation means no
// row can be anomalous; the report comes back empty rather than dividing
// by zero.
func (e *Engine) DetectAnomalies(ctx context.Context, role access.Role, table, valueColumn string, opts AnomalyOptions) (*AnomalyReport, error) {
	cat, err := e.checkRead(table, role)
	if err != nil {
		return nil, err
	}
	if err := cat.ValidateColumn(table, valueColumn); err != nil {
		return nil, err
	}

	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultAnomalyThreshold
	}

	where, args, err := WhereClause(cat, table, opts.Filters, 1)
	if err != nil {
		return nil, err
	}
	where, args, err = e.appendDateRange(cat, table, where, args, opts)
	if err != nil {
		return nil, err
	}

	col := quoteIdent(valueColumn)
	statsQ := fmt.Sprintf(
		"SELECT count(%s), avg(%s::double precision), stddev_pop(%s::double precision) FROM %s%s",
		col, col, col, quoteIdent(table), where)

	var count int64
	var mean, stddev sql.NullFloat64
	if err := e.db.QueryRowContext(ctx, statsQ, args...).Scan(&count, &mean, &stddev); err != nil {
		return nil, caperr.Wrap(caperr.KindQuery, err, "anomaly stats over %q failed", table)
	}

	report := &AnomalyReport{
		Table:     table,
		Column:    valueColumn,
		RowCount:  count,
		Mean:      mean.Float64,
		StdDev:    stddev.Float64,
		Threshold: threshold,
		Anomalies: []Anomaly{},
	}
	if count == 0 || !stddev.Valid || stddev.Float64 == 0 {
		return report, nil
	}

	rowsQ := fmt.Sprintf("SELECT * FROM %s%s", quoteIdent(table), where)
	if opts.Limit > 0 {
		rowsQ += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	rows, err := e.db.QueryContext(ctx, rowsQ, args...)
	if err != nil {
		return nil, caperr.Wrap(caperr.KindQuery, err, "anomaly scan over %q failed", table)
	}
	defer rows.Close()
	records, err := scanRows(rows)
	if err != nil {
		return nil, caperr.Wrap(caperr.KindQuery, err, "anomaly scan over %q failed", table)
	}

	for _, record := range records {
		v, ok := toFloat(record[valueColumn])
		if !ok {
			continue
		}
		z := (v - report.Mean) / report.StdDev
		if math.Abs(z) > threshold {
			report.Anomalies = append(report.Anomalies, Anomaly{Value: v, ZScore: z, Row: record})
		}
	}
	return report, nil
}

// appendDateRange adds TimeColumn bounds to an existing WHERE clause.
func (e *Engine) appendDateRange(cat *schema.Catalog, table, where string, args []any, opts AnomalyOptions) (string, []any, error) {
	if opts.TimeColumn == "" || (opts.From == nil && opts.To == nil) {
		return where, args, nil
	}
	if err := cat.ValidateColumn(table, opts.TimeColumn); err != nil {
		return "", nil, err
	}
	var conds []string
	if opts.From != nil {
		conds = append(conds, fmt.Sprintf("%s >= $%d", quoteIdent(opts.TimeColumn), len(args)+1))
		args = append(args, *opts.From)
	}
	if opts.To != nil {
		conds = append(conds, fmt.Sprintf("%s <= $%d", quoteIdent(opts.TimeColumn), len(args)+1))
		args = append(args, *opts.To)
	}
	joined := strings.Join(conds, " AND ")
	if where == "" {
		return " WHERE " + joined, args, nil
	}
	return where + " AND " + joined, args, nil
}

// ColumnStats is the descriptive statistics summary of one column.
type ColumnStats struct {
	Count  int64   `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	P25    float64 `json:"p25"`
	P50    float64 `json:"p50"`
	P75    float64 `json:"p75"`
}

// Describe returns count, mean, standard deviation, min, max, and the
// 25th/50th/75th percentiles for each requested column.
func (e *Engine) Describe(ctx context.Context, role access.Role, table string, columns []string, filters map[string]any) (map[string]ColumnStats, error) {
	cat, err := e.checkRead(table, role)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, caperr.Queryf("describe requires at least one column")
	}
	if err := cat.ValidateColumns(table, columns); err != nil {
		return nil, err
	}

	where, args, err := WhereClause(cat, table, filters, 1)
	if err != nil {
		return nil, err
	}

	out := make(map[string]ColumnStats, len(columns))
	for _, column := range columns {
		col := quoteIdent(column) + "::double precision"
		q := fmt.Sprintf(`SELECT count(%s), avg(%s), stddev_pop(%s), min(%s), max(%s),
			percentile_cont(0.25) WITHIN GROUP (ORDER BY %s),
			percentile_cont(0.5) WITHIN GROUP (ORDER BY %s),
			percentile_cont(0.75) WITHIN GROUP (ORDER BY %s)
			FROM %s%s`,
			quoteIdent(column), col, col, col, col, col, col, col,
			quoteIdent(table), where)

		var count int64
		var mean, stddev, min, max, p25, p50, p75 sql.NullFloat64
		if err := e.db.QueryRowContext(ctx, q, args...).Scan(
			&count, &mean, &stddev, &min, &max, &p25, &p50, &p75,
		); err != nil {
			return nil, caperr.Wrap(caperr.KindQuery, err, "describe %q.%q failed", table, column)
		}
		out[column] = ColumnStats{
			Count:  count,
			Mean:   mean.Float64,
			StdDev: stddev.Float64,
			Min:    min.Float64,
			Max:    max.Float64,
			P25:    p25.Float64,
			P50:    p50.Float64,
			P75:    p75.Float64,
		}
	}
	return out, nil
}

// toFloat coerces scanned SQL values to float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
