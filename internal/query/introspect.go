package query

import (
	"context"

	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/access"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/schema"
)

// TableSchema is the introspection result for one table.
type TableSchema struct {
	Table       string             `json:"table"`
	Columns     []schema.Column    `json:"columns"`
	ForeignKeys []schema.ForeignKey `json:"foreignKeys"`
}

// TableInfo is one entry in the table directory.
type TableInfo struct {
	Name        string `json:"name"`
	ColumnCount int    `json:"columnCount"`
}

// DescribeTable returns column and constraint metadata for an allow-listed
// table. The metadata comes from the catalog itself, so discovery can never
// reach past the allow-list.
func (e *Engine) DescribeTable(ctx context.Context, role access.Role, table string) (*TableSchema, error) {
	cat, err := e.checkRead(table, role)
	if err != nil {
		return nil, err
	}
	return &TableSchema{
		Table:       table,
		Columns:     cat.Columns(table),
		ForeignKeys: cat.ForeignKeys(table),
	}, nil
}

// ListTables returns the directory of tables the role may read.
func (e *Engine) ListTables(ctx context.Context, role access.Role) []TableInfo {
	cat := e.catalog.Catalog()
	readable := e.access.ReadableTables(role, cat.Tables())
	out := make([]TableInfo, 0, len(readable))
	for _, name := range readable {
		out = append(out, TableInfo{Name: name, ColumnCount: len(cat.Columns(name))})
	}
	return out
}
