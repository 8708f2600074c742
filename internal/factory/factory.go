// Package factory builds the schema objects pgaudit registers: the extension
// and functions backing the audit schema and the per-table audit triggers.
package factory

import (
	"fmt"

	"github.com/pgschema/pgaudit/internal/entity"
	"github.com/pgschema/pgaudit/internal/template"
)

// Context is the configuration shared by every factory in one run
type Context struct {
	// Schema is the schema the audit functions and tables live in
	Schema string
	// Params are extra template parameters; schema_name is always set from Schema
	Params template.Params
}

// With returns a copy of the context with key set
func (c Context) With(key string, value any) Context {
	params := make(template.Params, len(c.Params)+1)
	for k, v := range c.Params {
		params[k] = v
	}
	params[key] = value
	return Context{Schema: c.Schema, Params: params}
}

// TemplateParams returns the parameters passed to templates
func (c Context) TemplateParams() template.Params {
	params := make(template.Params, len(c.Params)+1)
	for k, v := range c.Params {
		params[k] = v
	}
	if c.Schema != "" {
		params["schema_name"] = c.Schema
	}
	return params
}

func (c Context) stringParam(templateName, key string) (string, error) {
	value, ok := c.Params[key]
	if !ok {
		return "", &template.Error{Template: templateName, Err: fmt.Errorf("missing template variable %q", key)}
	}
	s, ok := value.(string)
	if !ok || s == "" {
		return "", &template.Error{Template: templateName, Err: fmt.Errorf("template variable %q must be a non-empty string", key)}
	}
	return s, nil
}

// Factories renders schema objects through a template renderer
type Factories struct {
	renderer *template.Renderer
}

// New creates factories rendering through r
func New(r *template.Renderer) *Factories {
	return &Factories{renderer: r}
}

// functionDef describes a function rendered from a template into the audit schema
type functionDef struct {
	template  string
	name      string
	arguments string   // as reported by pg_get_function_identity_arguments
	calls     []string // other audit schema functions the body calls
	tables    []string // audit schema tables the body writes to
}

var (
	getSettingDef = functionDef{
		template:  template.GetSetting,
		name:      "get_setting",
		arguments: "setting text, fallback text",
	}
	jsonbSubtractDef = functionDef{
		template:  template.JSONBSubtract,
		name:      "jsonb_subtract",
		arguments: "arg1 jsonb, arg2 jsonb",
	}
	createActivityDef = functionDef{
		template: template.CreateActivity,
		name:     "create_activity",
		calls:    []string{"get_setting", "jsonb_subtract"},
		tables:   []string{TransactionTableName, ActivityTableName},
	}
)

func (f *Factories) function(ctx Context, def functionDef) (entity.SchemaObject, error) {
	if ctx.Schema == "" {
		return entity.SchemaObject{}, &template.Error{Template: def.template, Err: fmt.Errorf("missing template variable %q", "schema_name")}
	}

	definition, err := f.renderer.Render(def.template, ctx.TemplateParams())
	if err != nil {
		return entity.SchemaObject{}, err
	}

	var dependsOn []string
	for _, name := range def.calls {
		dependsOn = append(dependsOn, ctx.Schema+"."+name)
	}
	for _, name := range def.tables {
		dependsOn = append(dependsOn, ctx.Schema+"."+name)
	}

	return entity.SchemaObject{
		Kind:       entity.KindFunction,
		Schema:     ctx.Schema,
		Name:       def.name,
		Arguments:  def.arguments,
		Definition: definition,
		DependsOn:  dependsOn,
	}, nil
}

// GetSetting renders the get_setting(setting, fallback) helper
func (f *Factories) GetSetting(ctx Context) (entity.SchemaObject, error) {
	return f.function(ctx, getSettingDef)
}

// JSONBSubtract renders the jsonb_subtract(arg1, arg2) helper
func (f *Factories) JSONBSubtract(ctx Context) (entity.SchemaObject, error) {
	return f.function(ctx, jsonbSubtractDef)
}

// CreateActivity renders the trigger function writing activity rows
func (f *Factories) CreateActivity(ctx Context) (entity.SchemaObject, error) {
	return f.function(ctx, createActivityDef)
}

// BtreeGist renders the btree_gist extension the transaction table's exclusion
// constraint needs. It always lives in the default schema.
func (f *Factories) BtreeGist(ctx Context) (entity.SchemaObject, error) {
	params := ctx.TemplateParams()
	params["extension_name"] = "btree_gist"
	params["extension_schema"] = entity.DefaultSchema

	definition, err := f.renderer.Render(template.Extension, params)
	if err != nil {
		return entity.SchemaObject{}, err
	}
	return entity.SchemaObject{
		Kind:       entity.KindExtension,
		Schema:     entity.DefaultSchema,
		Name:       "btree_gist",
		Definition: definition,
	}, nil
}

// CoreEntities returns the extension and functions every audited database needs
func (f *Factories) CoreEntities(ctx Context) ([]entity.SchemaObject, error) {
	builders := []func(Context) (entity.SchemaObject, error){
		f.BtreeGist,
		f.GetSetting,
		f.JSONBSubtract,
		f.CreateActivity,
	}

	objects := make([]entity.SchemaObject, 0, len(builders))
	for _, build := range builders {
		obj, err := build(ctx)
		if err != nil {
			return nil, err
		}
		objects = append(objects, obj)
	}
	return objects, nil
}
