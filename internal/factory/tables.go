package factory

import (
	"fmt"

	"github.com/pgschema/pgaudit/internal/entity"
	"github.com/pgschema/pgaudit/internal/operation"
	"github.com/pgschema/pgaudit/internal/sqlparse"
	"github.com/pgschema/pgaudit/internal/template"
)

// Audit table names
const (
	TransactionTableName = "pga_transaction"
	ActivityTableName    = "pga_activity"
)

// AuditTables renders the transaction and activity tables the create_activity
// trigger function writes to.
func (f *Factories) AuditTables(ctx Context) ([]operation.Table, error) {
	if ctx.Schema == "" {
		return nil, &template.Error{Template: template.TransactionTable, Err: fmt.Errorf("missing template variable %q", "schema_name")}
	}

	var tables []operation.Table
	for _, name := range []string{template.TransactionTable, template.ActivityTable} {
		ddl, err := f.renderer.Render(name, ctx.TemplateParams())
		if err != nil {
			return nil, err
		}
		parsed, err := TablesFromSQL(ddl)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", name, err)
		}
		tables = append(tables, parsed...)
	}

	// The exclusion constraint on native_transaction_id needs btree_gist
	for i := range tables {
		if tables[i].Name == TransactionTableName {
			tables[i].Requires = append(tables[i].Requires, entity.DefaultSchema+".btree_gist")
		}
	}
	return tables, nil
}

// TablesFromSQL parses CREATE TABLE statements into declared tables
func TablesFromSQL(sql string) ([]operation.Table, error) {
	parsed, err := sqlparse.ParseTables(sql)
	if err != nil {
		return nil, err
	}

	tables := make([]operation.Table, 0, len(parsed))
	for _, t := range parsed {
		tables = append(tables, operation.Table{
			Schema:     t.Schema,
			Name:       t.Name,
			Definition: t.SQL,
			References: t.References,
		})
	}
	return tables, nil
}
