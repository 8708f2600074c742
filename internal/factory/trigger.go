package factory

import (
	"fmt"
	"strings"

	"github.com/pgschema/pgaudit/internal/entity"
	"github.com/pgschema/pgaudit/internal/template"
	"github.com/pgschema/pgaudit/internal/util"
)

// AuditTable is the audit configuration of one table
type AuditTable struct {
	// Name is the table name, optionally schema qualified
	Name string `mapstructure:"name" json:"name"`
	// ExcludedColumns are never written into activity snapshots
	ExcludedColumns []string `mapstructure:"exclude" json:"exclude,omitempty"`
}

type triggerDef struct {
	template string
	name     string
}

var (
	triggerInsertDef = triggerDef{template: template.TriggerInsert, name: "audit_trigger_insert"}
	triggerUpdateDef = triggerDef{template: template.TriggerUpdate, name: "audit_trigger_update"}
	triggerDeleteDef = triggerDef{template: template.TriggerDelete, name: "audit_trigger_delete"}
)

func (f *Factories) trigger(ctx Context, def triggerDef) (entity.SchemaObject, error) {
	table, err := ctx.stringParam(def.template, "table_name")
	if err != nil {
		return entity.SchemaObject{}, err
	}
	if ctx.Schema == "" {
		return entity.SchemaObject{}, &template.Error{Template: def.template, Err: fmt.Errorf("missing template variable %q", "schema_name")}
	}

	definition, err := f.renderer.Render(def.template, ctx.TemplateParams())
	if err != nil {
		return entity.SchemaObject{}, err
	}

	// Triggers live in the schema of the table they fire on
	qualified := entity.QualifyTable(table)
	tableSchema, _ := entity.SplitQualified(qualified)

	return entity.SchemaObject{
		Kind:       entity.KindTrigger,
		Schema:     tableSchema,
		Name:       def.name,
		Table:      qualified,
		Definition: definition,
		DependsOn: []string{
			qualified,
			ctx.Schema + "." + createActivityDef.name,
			ctx.Schema + "." + getSettingDef.name,
		},
	}, nil
}

// TriggerInsert renders the AFTER INSERT audit trigger for ctx's table_name
func (f *Factories) TriggerInsert(ctx Context) (entity.SchemaObject, error) {
	return f.trigger(ctx, triggerInsertDef)
}

// TriggerUpdate renders the AFTER UPDATE audit trigger for ctx's table_name
func (f *Factories) TriggerUpdate(ctx Context) (entity.SchemaObject, error) {
	return f.trigger(ctx, triggerUpdateDef)
}

// TriggerDelete renders the AFTER DELETE audit trigger for ctx's table_name
func (f *Factories) TriggerDelete(ctx Context) (entity.SchemaObject, error) {
	return f.trigger(ctx, triggerDeleteDef)
}

// AuditTriggers builds the insert, update and delete triggers of every table.
// Results are deduplicated by identity; a later duplicate overwrites the earlier
// one in place.
func (f *Factories) AuditTriggers(ctx Context, tables []AuditTable) ([]entity.SchemaObject, error) {
	seen := make(map[string]int)
	var triggers []entity.SchemaObject

	for _, table := range tables {
		if strings.TrimSpace(table.Name) == "" {
			return nil, fmt.Errorf("audited table is missing a name")
		}

		tableCtx := ctx.
			With("table_name", table.Name).
			With("excluded_columns", util.ArrayLiteral(table.ExcludedColumns))

		for _, build := range []func(Context) (entity.SchemaObject, error){
			f.TriggerInsert,
			f.TriggerUpdate,
			f.TriggerDelete,
		} {
			trigger, err := build(tableCtx)
			if err != nil {
				return nil, fmt.Errorf("table %s: %w", table.Name, err)
			}
			if idx, dup := seen[trigger.Identity()]; dup {
				triggers[idx] = trigger
				continue
			}
			seen[trigger.Identity()] = len(triggers)
			triggers = append(triggers, trigger)
		}
	}

	return triggers, nil
}
