// Package schema holds the table allow-list derived from the persistence
// schema. Every identifier interpolated into generated SQL must pass
// through this catalog; values never do.
package schema

import (
	"regexp"
	"sort"

	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/caperr"
)

// identPattern is the full charset an identifier may use. Anything outside
// it is rejected before the allow-list is even consulted.
var identPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidIdent reports whether s is a syntactically safe identifier.
func ValidIdent(s string) bool {
	return s != "" && identPattern.MatchString(s)
}

// Column describes one column of an allow-listed table.
type Column struct {
	Name     string `json:"name"`
	DataType string `json:"dataType"`
	Nullable bool   `json:"nullable"`
}

// ForeignKey describes a single-column foreign key constraint.
type ForeignKey struct {
	ConstraintName   string `json:"constraintName"`
	Column           string `json:"column"`
	ReferencedTable  string `json:"referencedTable"`
	ReferencedColumn string `json:"referencedColumn"`
}

// Table is one allow-listed table with its columns.
type Table struct {
	Name    string
	Columns []Column
}

// Catalog is the authoritative identifier allow-list. Immutable after
// construction; safe for concurrent use. Reloading is done by building a
// fresh Catalog and swapping it through a Provider.
type Catalog struct {
	tables map[string]Table
	fks    map[string][]ForeignKey
	names  []string
}

// NewCatalog builds a Catalog from static table definitions. Tables or
// columns with unsafe names are skipped rather than trusted.
func NewCatalog(tables []Table, fks map[string][]ForeignKey) *Catalog {
	c := &Catalog{
		tables: make(map[string]Table, len(tables)),
		fks:    make(map[string][]ForeignKey, len(fks)),
	}
	for _, t := range tables {
		if !ValidIdent(t.Name) {
			continue
		}
		cols := make([]Column, 0, len(t.Columns))
		for _, col := range t.Columns {
			if ValidIdent(col.Name) {
				cols = append(cols, col)
			}
		}
		c.tables[t.Name] = Table{Name: t.Name, Columns: cols}
		c.names = append(c.names, t.Name)
	}
	sort.Strings(c.names)
	for table, keys := range fks {
		if _, ok := c.tables[table]; ok {
			c.fks[table] = keys
		}
	}
	return c
}

// Tables returns the sorted directory of allow-listed table names.
func (c *Catalog) Tables() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Table returns an allow-listed table by name.
func (c *Catalog) Table(name string) (Table, bool) {
	t, ok := c.tables[name]
	return t, ok
}

// Columns returns the column definitions of a table, nil if unknown.
func (c *Catalog) Columns(table string) []Column {
	t, ok := c.tables[table]
	if !ok {
		return nil
	}
	out := make([]Column, len(t.Columns))
	copy(out, t.Columns)
	return out
}

// ForeignKeys returns the foreign key constraints of a table.
func (c *Catalog) ForeignKeys(table string) []ForeignKey {
	src := c.fks[table]
	out := make([]ForeignKey, len(src))
	copy(out, src)
	return out
}

// ValidateTable checks a table identifier against the charset rule and the
// allow-list. Charset violations are query errors (nothing was ever going
// to execute); clean-but-unknown names are not-found.
func (c *Catalog) ValidateTable(name string) error {
	if !ValidIdent(name) {
		return caperr.Queryf("unsafe table identifier %q", name)
	}
	if _, ok := c.tables[name]; !ok {
		return caperr.NotFoundf("unknown table %q", name)
	}
	return nil
}

// ValidateColumn checks a column identifier within an allow-listed table.
func (c *Catalog) ValidateColumn(table, column string) error {
	if err := c.ValidateTable(table); err != nil {
		return err
	}
	if !ValidIdent(column) {
		return caperr.Queryf("unsafe column identifier %q", column)
	}
	t := c.tables[table]
	for _, col := range t.Columns {
		if col.Name == column {
			return nil
		}
	}
	return caperr.Queryf("unknown column %q on table %q", column, table)
}

// ValidateColumns checks a list of column identifiers within a table.
func (c *Catalog) ValidateColumns(table string, columns []string) error {
	for _, col := range columns {
		if err := c.ValidateColumn(table, col); err != nil {
			return err
		}
	}
	return nil
}

// Provider hands out the current Catalog. The static implementation never
// changes; the reloadable one swaps atomically on an explicit refresh.
type Provider interface {
	Catalog() *Catalog
}

// StaticProvider wraps a fixed Catalog.
type StaticProvider struct {
	cat *Catalog
}

// NewStaticProvider creates a Provider over an immutable Catalog.
func NewStaticProvider(cat *Catalog) *StaticProvider {
	return &StaticProvider{cat: cat}
}

func (p *StaticProvider) Catalog() *Catalog {
	return p.cat
}
