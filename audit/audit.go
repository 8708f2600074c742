// Package audit provides a programmatic API for generating audit trail
// migrations: the audit schema, its functions and tables, and the per-table
// triggers, ordered so that nothing is created before what it depends on.
package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pgschema/pgaudit/internal/catalog"
	"github.com/pgschema/pgaudit/internal/config"
	"github.com/pgschema/pgaudit/internal/entity"
	"github.com/pgschema/pgaudit/internal/factory"
	"github.com/pgschema/pgaudit/internal/pipeline"
	"github.com/pgschema/pgaudit/internal/plan"
	"github.com/pgschema/pgaudit/internal/template"
)

// Options configures one autogeneration pass.
type Options struct {
	TargetSchema   string         // Schema holding the audit objects (default: "audit")
	Tables         []AuditTable   // Tables to audit
	DeclaredTables []Table        // Tables this migration creates, if missing
	Params         map[string]any // Extra template parameters
	SinglePass     bool           // Use the one-pass dependency scan
	Logger         *slog.Logger   // Defaults to the global logger
}

func (o Options) migrationContext() MigrationContext {
	schema := o.TargetSchema
	if schema == "" {
		schema = config.DefaultTargetSchema
	}
	params := make(template.Params, len(o.Params))
	for k, v := range o.Params {
		params[k] = v
	}
	return MigrationContext{Schema: schema, Params: params}
}

// Setup builds a fresh registry holding the audit functions, the extension
// they need and the triggers of every audited table. It also returns the
// audit tables the trigger function writes to.
func Setup(mctx MigrationContext, tables []AuditTable) (*Registry, []Table, error) {
	f := factory.New(template.MustNewRenderer())

	core, err := f.CoreEntities(mctx)
	if err != nil {
		return nil, nil, err
	}
	triggers, err := f.AuditTriggers(mctx, tables)
	if err != nil {
		return nil, nil, err
	}
	auditTables, err := f.AuditTables(mctx)
	if err != nil {
		return nil, nil, err
	}

	registry := entity.NewRegistry()
	registry.Register(core...)
	registry.Register(triggers...)
	return registry, auditTables, nil
}

// Autogenerate compares the audit setup described by opts with the database
// behind db and returns the operations bringing the database up to date.
func Autogenerate(ctx context.Context, db catalog.Queryer, opts Options) (*UpgradeOps, error) {
	mctx := opts.migrationContext()

	registry, auditTables, err := Setup(mctx, opts.Tables)
	if err != nil {
		return nil, fmt.Errorf("failed to build audit objects: %w", err)
	}

	tables := make([]Table, 0, len(opts.DeclaredTables)+len(auditTables))
	tables = append(tables, opts.DeclaredTables...)
	tables = append(tables, auditTables...)

	actx := &pipeline.AutogenContext{
		Catalog:      catalog.New(db),
		TargetSchema: mctx.Schema,
		Registry:     registry,
		Tables:       tables,
		SinglePass:   opts.SinglePass,
		SchemaParams: mctx.Params,
		Logger:       opts.Logger,
	}
	return pipeline.Default().Run(ctx, actx)
}

// GeneratePlan runs Autogenerate and wraps the result in a renderable plan.
func GeneratePlan(ctx context.Context, db catalog.Queryer, opts Options) (*Plan, error) {
	ops, err := Autogenerate(ctx, db, opts)
	if err != nil {
		return nil, err
	}
	return plan.New(ops, template.MustNewRenderer(), opts.migrationContext().Schema), nil
}

// TablesFromSQL parses CREATE TABLE statements into declared tables.
func TablesFromSQL(sql string) ([]Table, error) {
	return factory.TablesFromSQL(sql)
}
