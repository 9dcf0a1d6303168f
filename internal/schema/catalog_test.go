package schema

import (
	"testing"

	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/caperr"
)

func testCatalog() *Catalog {
	return NewCatalog([]Table{
		{
			Name: "power_data",
			Columns: []Column{
				{Name: "id", DataType: "bigint"},
				{Name: "timestamp", DataType: "timestamp with time zone"},
				{Name: "solarOutput", DataType: "double precision", Nullable: true},
			},
		},
		{
			Name: "equipment",
			Columns: []Column{
				{Name: "id", DataType: "bigint"},
				{Name: "name", DataType: "text"},
				{Name: "status", DataType: "text"},
			},
		},
	}, map[string][]ForeignKey{
		"power_data": {
			{ConstraintName: "power_data_equipment_fk", Column: "id", ReferencedTable: "equipment", ReferencedColumn: "id"},
		},
	})
}

func TestValidIdent(t *testing.T) {
	valid := []string{"power_data", "solarOutput", "a", "T2", "__x"}
	for _, s := range valid {
		if !ValidIdent(s) {
			t.Errorf("expected %q to be valid", s)
		}
	}

	invalid := []string{"", "users; DROP TABLE users;", "a-b", "a b", `a"b`, "tbl'", "日志"}
	for _, s := range invalid {
		if ValidIdent(s) {
			t.Errorf("expected %q to be rejected", s)
		}
	}
}

func TestValidateTable(t *testing.T) {
	c := testCatalog()

	if err := c.ValidateTable("power_data"); err != nil {
		t.Fatalf("expected power_data to validate, got %v", err)
	}

	err := c.ValidateTable("users; DROP TABLE users;")
	if err == nil {
		t.Fatal("expected injection attempt to be rejected")
	}
	if !caperr.IsKind(err, caperr.KindQuery) {
		t.Fatalf("expected query_error for unsafe identifier, got %v", caperr.KindOf(err))
	}

	err = c.ValidateTable("nonexistent")
	if err == nil {
		t.Fatal("expected unknown table to be rejected")
	}
	if !caperr.IsKind(err, caperr.KindNotFound) {
		t.Fatalf("expected not_found for unknown table, got %v", caperr.KindOf(err))
	}
}

func TestValidateColumn(t *testing.T) {
	c := testCatalog()

	if err := c.ValidateColumn("power_data", "solarOutput"); err != nil {
		t.Fatalf("expected solarOutput to validate, got %v", err)
	}
	if err := c.ValidateColumn("power_data", "id; --"); !caperr.IsKind(err, caperr.KindQuery) {
		t.Fatalf("expected query_error for unsafe column, got %v", err)
	}
	if err := c.ValidateColumn("power_data", "name"); !caperr.IsKind(err, caperr.KindQuery) {
		t.Fatalf("expected query_error for column of another table, got %v", err)
	}
}

func TestCatalog_SkipsUnsafeDefinitions(t *testing.T) {
	c := NewCatalog([]Table{
		{Name: "bad;name", Columns: []Column{{Name: "id"}}},
		{Name: "good", Columns: []Column{{Name: "id"}, {Name: "un safe"}}},
	}, nil)

	if _, ok := c.Table("bad;name"); ok {
		t.Fatal("unsafe table name must not enter the allow-list")
	}
	cols := c.Columns("good")
	if len(cols) != 1 || cols[0].Name != "id" {
		t.Fatalf("unsafe column must be dropped, got %v", cols)
	}
}

func TestCatalog_TablesSorted(t *testing.T) {
	c := testCatalog()
	tables := c.Tables()
	if len(tables) != 2 || tables[0] != "equipment" || tables[1] != "power_data" {
		t.Fatalf("expected sorted directory, got %v", tables)
	}
}

func TestCatalog_ForeignKeys(t *testing.T) {
	c := testCatalog()
	fks := c.ForeignKeys("power_data")
	if len(fks) != 1 || fks[0].ReferencedTable != "equipment" {
		t.Fatalf("unexpected foreign keys: %v", fks)
	}
	if len(c.ForeignKeys("equipment")) != 0 {
		t.Fatal("expected no foreign keys on equipment")
	}
}
