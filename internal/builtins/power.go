package builtins

import (
	"context"

	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/access"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/caperr"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/capability"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/params"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/query"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/sandbox"
)

func powerCapabilities() []*capability.Spec {
	metricsProp := params.Property{
		Type:        "array",
		Description: "Metrics as {function, field} pairs; function is one of count, sum, avg, min, max",
	}
	filtersProp := params.Property{
		Type:        "object",
		Description: "Flat equality filters keyed by column name",
	}

	return []*capability.Spec{
		{
			Name:        "aggregatePowerData",
			Description: "Aggregate power readings, optionally grouped by dimension columns.",
			Module:      "power",
			AccessLevel: access.LevelUser,
			ReturnHint:  "array of aggregate rows",
			Tags:        []string{"power", "analytics"},
			Parameters: params.Schema{
				Type: "object",
				Properties: map[string]params.Property{
					"metrics": metricsProp,
					"groupBy": {Type: "array", Description: "Dimension columns to group by"},
					"filters": filtersProp,
					"limit":   {Type: "number", Description: "Maximum rows to return"},
				},
				Required: []string{"metrics"},
			},
			Handler: aggregatePowerData,
		},
		{
			Name:        "getPowerTimeSeries",
			Description: "Bucket power metrics by hour, day, week, month, or year.",
			Module:      "power",
			AccessLevel: access.LevelUser,
			ReturnHint:  "array of {bucket, metrics} rows ordered by bucket",
			Tags:        []string{"power", "analytics"},
			Parameters: params.Schema{
				Type: "object",
				Properties: map[string]params.Property{
					"metrics":    metricsProp,
					"bucket":     {Type: "string", Description: "Bucket granularity", Enum: []string{"hour", "day", "week", "month", "year"}},
					"timeColumn": {Type: "string", Description: "Timestamp column to truncate", Default: "timestamp"},
					"filters":    filtersProp,
					"desc":       {Type: "boolean", Description: "Order buckets descending", Default: false},
					"limit":      {Type: "number", Description: "Maximum buckets to return"},
				},
				Required: []string{"metrics", "bucket"},
			},
			Handler: getPowerTimeSeries,
		},
		{
			Name:        "getPowerStats",
			Description: "Descriptive statistics (count, mean, stddev, min, max, quartiles) for power columns.",
			Module:      "power",
			AccessLevel: access.LevelUser,
			ReturnHint:  "object keyed by column with statistics",
			Tags:        []string{"power", "analytics"},
			Parameters: params.Schema{
				Type: "object",
				Properties: map[string]params.Property{
					"fields":  {Type: "array", Description: "Numeric columns to describe"},
					"filters": filtersProp,
				},
				Required: []string{"fields"},
			},
			Handler: getPowerStats,
		},
		{
			Name:        "detectPowerAnomalies",
			Description: "Flag power readings whose z-score magnitude exceeds a threshold.",
			Module:      "power",
			AccessLevel: access.LevelManager,
			ReturnHint:  "anomaly report with flagged rows",
			Tags:        []string{"power", "analytics", "anomaly"},
			Parameters: params.Schema{
				Type: "object",
				Properties: map[string]params.Property{
					"field":     {Type: "string", Description: "Numeric column to analyze"},
					"threshold": {Type: "number", Description: "Z-score cutoff", Default: query.DefaultAnomalyThreshold},
					"filters":   filtersProp,
					"limit":     {Type: "number", Description: "Maximum rows to scan"},
				},
				Required: []string{"field"},
			},
			Handler: detectPowerAnomalies,
		},
		{
			Name:        "correlatePowerMetrics",
			Description: "Pearson correlation for each pair among the requested numeric columns.",
			Module:      "power",
			AccessLevel: access.LevelManager,
			ReturnHint:  "array of {columnA, columnB, coefficient}",
			Tags:        []string{"power", "analytics"},
			Parameters: params.Schema{
				Type: "object",
				Properties: map[string]params.Property{
					"fields":  {Type: "array", Description: "Numeric columns to correlate (two or more)"},
					"filters": filtersProp,
				},
				Required: []string{"fields"},
			},
			Handler: correlatePowerMetrics,
		},
		{
			Name:        "importPowerReadings",
			Description: "Bulk-import power readings. Reserved for data backfill jobs.",
			Module:      "power",
			AccessLevel: access.LevelRestricted,
			ReturnHint:  "object with inserted row count",
			Tags:        []string{"power", "write", "bulk"},
			Parameters: params.Schema{
				Type: "object",
				Properties: map[string]params.Property{
					"rows": {Type: "array", Description: "Readings as column→value objects sharing one column set"},
				},
				Required: []string{"rows"},
			},
			Handler: importPowerReadings,
		},
	}
}

func aggregatePowerData(ctx context.Context, db *sandbox.Facade, args map[string]any) (any, error) {
	terms, err := argMetrics(args, "metrics")
	if err != nil {
		return nil, err
	}
	groupBy, _ := argStrings(args, "groupBy")
	return db.Aggregate(ctx, "power_data", terms, groupBy, argFilters(args, "filters"),
		query.Options{Limit: argLimit(args)})
}

func getPowerTimeSeries(ctx context.Context, db *sandbox.Facade, args map[string]any) (any, error) {
	terms, err := argMetrics(args, "metrics")
	if err != nil {
		return nil, err
	}
	bucket, _ := argString(args, "bucket")
	timeColumn, _ := argString(args, "timeColumn")
	desc, _ := args["desc"].(bool)
	return db.TimeSeries(ctx, "power_data", timeColumn, bucket, terms,
		argFilters(args, "filters"), query.Options{Limit: argLimit(args), Desc: desc})
}

func getPowerStats(ctx context.Context, db *sandbox.Facade, args map[string]any) (any, error) {
	fields, ok := argStrings(args, "fields")
	if !ok || len(fields) == 0 {
		return nil, caperr.Validationf("fields must be a non-empty array of column names")
	}
	return db.Describe(ctx, "power_data", fields, argFilters(args, "filters"))
}

func detectPowerAnomalies(ctx context.Context, db *sandbox.Facade, args map[string]any) (any, error) {
	field, ok := argString(args, "field")
	if !ok || field == "" {
		return nil, caperr.Validationf("field must be a column name")
	}
	threshold, _ := argNumber(args, "threshold")
	return db.DetectAnomalies(ctx, "power_data", field, query.AnomalyOptions{
		Threshold: threshold,
		Filters:   argFilters(args, "filters"),
		Limit:     argLimit(args),
	})
}

func correlatePowerMetrics(ctx context.Context, db *sandbox.Facade, args map[string]any) (any, error) {
	fields, ok := argStrings(args, "fields")
	if !ok || len(fields) < 2 {
		return nil, caperr.Validationf("fields must list at least two column names")
	}
	return db.Correlate(ctx, "power_data", fields, argFilters(args, "filters"))
}

func importPowerReadings(ctx context.Context, db *sandbox.Facade, args map[string]any) (any, error) {
	raw, ok := args["rows"].([]any)
	if !ok || len(raw) == 0 {
		return nil, caperr.Validationf("rows must be a non-empty array of objects")
	}
	rows := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, caperr.Validationf("rows must contain only objects")
		}
		rows = append(rows, m)
	}
	n, err := db.BulkInsert(ctx, "power_data", rows)
	if err != nil {
		return nil, err
	}
	return map[string]any{"inserted": n}, nil
}
