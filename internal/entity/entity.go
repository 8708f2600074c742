// Package entity holds the schema objects pgaudit manages and the registry of
// objects that should exist after a migration.
package entity

import (
	"fmt"
	"strings"
)

// DefaultSchema is the namespace objects live in when none is given.
const DefaultSchema = "public"

// Kind identifies the type of a schema object
type Kind string

const (
	KindExtension Kind = "extension"
	KindFunction  Kind = "function"
	KindTrigger   Kind = "trigger"
)

// SchemaObject is a database object (extension, function or trigger) managed
// declaratively. Values are never mutated after construction.
type SchemaObject struct {
	Kind       Kind     `json:"kind"`
	Schema     string   `json:"schema"`
	Name       string   `json:"name"`
	Arguments  string   `json:"arguments,omitempty"` // function identity arguments, e.g. "setting text, fallback text"
	Table      string   `json:"table,omitempty"`     // schema qualified table a trigger fires on
	Definition string   `json:"definition"`
	DependsOn  []string `json:"depends_on,omitempty"` // declared reference signatures
}

// SchemaName returns the object's schema, falling back to the default schema.
func (o SchemaObject) SchemaName() string {
	if o.Schema == "" {
		return DefaultSchema
	}
	return o.Schema
}

// QualifiedName returns schema.name
func (o SchemaObject) QualifiedName() string {
	return o.SchemaName() + "." + o.Name
}

// Identity returns the stable key of the object across runs.
//
//	function:audit.get_setting(setting text, fallback text)
//	trigger:public.audit_trigger_insert on public.orders
//	extension:public.btree_gist
func (o SchemaObject) Identity() string {
	switch o.Kind {
	case KindFunction:
		return fmt.Sprintf("%s:%s(%s)", o.Kind, o.QualifiedName(), o.Arguments)
	case KindTrigger:
		return fmt.Sprintf("%s:%s on %s", o.Kind, o.QualifiedName(), QualifyTable(o.Table))
	default:
		return fmt.Sprintf("%s:%s", o.Kind, o.QualifiedName())
	}
}

// Signatures returns the textual forms other definitions use to reference this
// object: schema.name, plus the bare name when the object lives in the default schema.
func (o SchemaObject) Signatures() []string {
	return ReferenceSignatures(o.SchemaName(), o.Name)
}

// ReferenceSignatures returns schema.name and, for the default schema, name.
func ReferenceSignatures(schema, name string) []string {
	if schema == "" {
		schema = DefaultSchema
	}
	sigs := []string{schema + "." + name}
	if schema == DefaultSchema {
		sigs = append(sigs, name)
	}
	return sigs
}

// QualifyTable returns a schema qualified table name, adding the default schema
// to bare names.
func QualifyTable(table string) string {
	if table == "" || strings.Contains(table, ".") {
		return table
	}
	return DefaultSchema + "." + table
}

// SplitQualified splits "schema.name" into its parts. Bare names get the default schema.
func SplitQualified(qualified string) (schema, name string) {
	if idx := strings.LastIndex(qualified, "."); idx >= 0 {
		return qualified[:idx], qualified[idx+1:]
	}
	return DefaultSchema, qualified
}

func (o SchemaObject) String() string {
	return o.Identity()
}
