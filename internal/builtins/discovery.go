package builtins

import (
	"context"

	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/access"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/caperr"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/capability"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/params"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/sandbox"
)

// Schema discovery capabilities. The agent uses these to learn what it may
// query; the listing is derived from the allow-list itself, so discovery
// can never widen access.
func schemaCapabilities() []*capability.Spec {
	return []*capability.Spec{
		{
			Name:        "listTables",
			Description: "Directory of tables the caller may read.",
			Module:      "schema",
			AccessLevel: access.LevelUser,
			ReturnHint:  "array of {name, columnCount}",
			Tags:        []string{"schema", "discovery"},
			Parameters:  params.Schema{Type: "object"},
			Handler:     listTables,
		},
		{
			Name:        "describeTable",
			Description: "Column types, nullability, and foreign keys of one table.",
			Module:      "schema",
			AccessLevel: access.LevelUser,
			ReturnHint:  "table schema object",
			Tags:        []string{"schema", "discovery"},
			Parameters: params.Schema{
				Type: "object",
				Properties: map[string]params.Property{
					"tableName": {Type: "string", Description: "Table to describe"},
				},
				Required: []string{"tableName"},
			},
			Handler: describeTable,
		},
	}
}

func listTables(ctx context.Context, db *sandbox.Facade, _ map[string]any) (any, error) {
	return db.ListTables(ctx), nil
}

func describeTable(ctx context.Context, db *sandbox.Facade, args map[string]any) (any, error) {
	name, ok := argString(args, "tableName")
	if !ok || name == "" {
		return nil, caperr.Validationf("tableName must be a string")
	}
	return db.DescribeTable(ctx, name)
}
