package schema

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
)

// introspectStore abstracts the information_schema queries for testability.
type introspectStore interface {
	ListColumns(ctx context.Context) ([]columnRow, error)
	ListForeignKeys(ctx context.Context) ([]fkRow, error)
}

type columnRow struct {
	Table    string
	Column   string
	DataType string
	Nullable bool
}

type fkRow struct {
	Table            string
	ConstraintName   string
	Column           string
	ReferencedTable  string
	ReferencedColumn string
}

// sqlIntrospectStore is the real implementation using *sql.DB.
type sqlIntrospectStore struct {
	db         *sql.DB
	schemaName string
}

func (s *sqlIntrospectStore) ListColumns(ctx context.Context) ([]columnRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT table_name, column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = $1
		ORDER BY table_name, ordinal_position
	`, s.schemaName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []columnRow
	for rows.Next() {
		var r columnRow
		var nullable string
		if err := rows.Scan(&r.Table, &r.Column, &r.DataType, &nullable); err != nil {
			return nil, err
		}
		r.Nullable = nullable == "YES"
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqlIntrospectStore) ListForeignKeys(ctx context.Context) ([]fkRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tc.table_name, tc.constraint_name, kcu.column_name,
		       ccu.table_name, ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
		  ON tc.constraint_name = ccu.constraint_name
		 AND tc.table_schema = ccu.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = $1
		ORDER BY tc.table_name, tc.constraint_name
	`, s.schemaName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []fkRow
	for rows.Next() {
		var r fkRow
		if err := rows.Scan(&r.Table, &r.ConstraintName, &r.Column,
			&r.ReferencedTable, &r.ReferencedColumn); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PostgresProvider derives the allow-list from a live Postgres schema.
// The catalog is loaded once at startup and swapped atomically on an
// explicit Reload; agent-initiated calls never mutate it.
type PostgresProvider struct {
	store  introspectStore
	logger *zap.Logger
	cat    atomic.Pointer[Catalog]
}

// PostgresProviderConfig configures a PostgresProvider.
type PostgresProviderConfig struct {
	DB         *sql.DB
	SchemaName string // defaults to "public"
	Logger     *zap.Logger
}

// NewPostgresProvider creates the provider and performs the initial load.
func NewPostgresProvider(ctx context.Context, cfg PostgresProviderConfig) (*PostgresProvider, error) {
	name := cfg.SchemaName
	if name == "" {
		name = "public"
	}
	p := &PostgresProvider{
		store:  &sqlIntrospectStore{db: cfg.DB, schemaName: name},
		logger: cfg.Logger,
	}
	if err := p.Reload(ctx); err != nil {
		return nil, fmt.Errorf("NewPostgresProvider: %w", err)
	}
	return p, nil
}

// newPostgresProviderWithStore creates a provider with a custom store (for testing).
func newPostgresProviderWithStore(ctx context.Context, store introspectStore, logger *zap.Logger) (*PostgresProvider, error) {
	p := &PostgresProvider{store: store, logger: logger}
	if err := p.Reload(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// Catalog returns the current allow-list snapshot.
func (p *PostgresProvider) Catalog() *Catalog {
	return p.cat.Load()
}

// Reload re-reads the schema and swaps in a fresh catalog. Administrative
// path only.
func (p *PostgresProvider) Reload(ctx context.Context) error {
	cols, err := p.store.ListColumns(ctx)
	if err != nil {
		return fmt.Errorf("Reload: columns: %w", err)
	}
	fkRows, err := p.store.ListForeignKeys(ctx)
	if err != nil {
		return fmt.Errorf("Reload: foreign keys: %w", err)
	}

	byTable := make(map[string]*Table)
	var order []string
	for _, r := range cols {
		t, ok := byTable[r.Table]
		if !ok {
			t = &Table{Name: r.Table}
			byTable[r.Table] = t
			order = append(order, r.Table)
		}
		t.Columns = append(t.Columns, Column{
			Name:     r.Column,
			DataType: r.DataType,
			Nullable: r.Nullable,
		})
	}

	tables := make([]Table, 0, len(order))
	for _, name := range order {
		tables = append(tables, *byTable[name])
	}

	fks := make(map[string][]ForeignKey)
	for _, r := range fkRows {
		fks[r.Table] = append(fks[r.Table], ForeignKey{
			ConstraintName:   r.ConstraintName,
			Column:           r.Column,
			ReferencedTable:  r.ReferencedTable,
			ReferencedColumn: r.ReferencedColumn,
		})
	}

	cat := NewCatalog(tables, fks)
	p.cat.Store(cat)
	p.logger.Info("schema catalog loaded",
		zap.Int("tables", len(cat.Tables())),
	)
	return nil
}
