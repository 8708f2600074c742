// Package operation defines the migration operations pgaudit emits and the
// ordered upgrade list comparators build.
package operation

import (
	"fmt"

	"github.com/pgschema/pgaudit/internal/entity"
	"github.com/pgschema/pgaudit/internal/template"
	"github.com/pgschema/pgaudit/internal/util"
)

// Action is the kind of change an operation makes
type Action string

const (
	ActionCreate Action = "create"
	ActionDrop   Action = "drop"
)

// ObjectType is the type of database object an operation touches
type ObjectType string

const (
	ObjectTypeSchema    ObjectType = "schema"
	ObjectTypeTable     ObjectType = "table"
	ObjectTypeExtension ObjectType = "extension"
	ObjectTypeFunction  ObjectType = "function"
	ObjectTypeTrigger   ObjectType = "trigger"
)

// Operation is a single step of a generated migration
type Operation interface {
	Action() Action
	ObjectType() ObjectType
	// Address identifies the touched object, e.g. "audit" or "public.orders"
	Address() string
	// SQL renders the statement the execution engine runs
	SQL(r *template.Renderer) (string, error)
	// Reverse returns the operation undoing this one, used for downgrades
	Reverse() Operation
}

// SchemaCreate creates the audit schema from the create_schema template
type SchemaCreate struct {
	Schema string
	Params template.Params
}

func (op SchemaCreate) Action() Action         { return ActionCreate }
func (op SchemaCreate) ObjectType() ObjectType { return ObjectTypeSchema }
func (op SchemaCreate) Address() string        { return op.Schema }

func (op SchemaCreate) SQL(r *template.Renderer) (string, error) {
	return r.Render(template.CreateSchema, schemaParams(op.Schema, op.Params))
}

func (op SchemaCreate) Reverse() Operation {
	return SchemaRemove(op)
}

// SchemaRemove drops the audit schema from the drop_schema template
type SchemaRemove struct {
	Schema string
	Params template.Params
}

func (op SchemaRemove) Action() Action         { return ActionDrop }
func (op SchemaRemove) ObjectType() ObjectType { return ObjectTypeSchema }
func (op SchemaRemove) Address() string        { return op.Schema }

func (op SchemaRemove) SQL(r *template.Renderer) (string, error) {
	return r.Render(template.DropSchema, schemaParams(op.Schema, op.Params))
}

func (op SchemaRemove) Reverse() Operation {
	return SchemaCreate(op)
}

func schemaParams(schema string, params template.Params) template.Params {
	merged := make(template.Params, len(params)+1)
	for k, v := range params {
		merged[k] = v
	}
	merged["schema_name"] = schema
	return merged
}

// Table is a table declared in DDL
type Table struct {
	Schema     string
	Name       string
	Definition string
	// Requires lists reference signatures of registry objects that must exist
	// before the table can be created (e.g. an extension backing a constraint)
	Requires []string
	// References lists tables this table has foreign keys to
	References []string
}

// QualifiedName returns schema.name
func (t Table) QualifiedName() string {
	return t.Schema + "." + t.Name
}

// Signatures returns the forms other definitions use to reference this table
func (t Table) Signatures() []string {
	return entity.ReferenceSignatures(t.Schema, t.Name)
}

// TableCreate creates a table staged by the table comparator
type TableCreate struct {
	Table Table
}

func (op TableCreate) Action() Action         { return ActionCreate }
func (op TableCreate) ObjectType() ObjectType { return ObjectTypeTable }
func (op TableCreate) Address() string        { return op.Table.QualifiedName() }

func (op TableCreate) SQL(*template.Renderer) (string, error) {
	return op.Table.Definition, nil
}

func (op TableCreate) Reverse() Operation {
	return TableDrop(op)
}

// TableDrop drops a table
type TableDrop struct {
	Table Table
}

func (op TableDrop) Action() Action         { return ActionDrop }
func (op TableDrop) ObjectType() ObjectType { return ObjectTypeTable }
func (op TableDrop) Address() string        { return op.Table.QualifiedName() }

func (op TableDrop) SQL(*template.Renderer) (string, error) {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s.%s;",
		util.QuoteIdentifier(op.Table.Schema), util.QuoteIdentifier(op.Table.Name)), nil
}

func (op TableDrop) Reverse() Operation {
	return TableCreate(op)
}

// EntityCreate creates a registered schema object from its definition
type EntityCreate struct {
	Object entity.SchemaObject
}

func (op EntityCreate) Action() Action         { return ActionCreate }
func (op EntityCreate) ObjectType() ObjectType { return objectType(op.Object.Kind) }
func (op EntityCreate) Address() string        { return op.Object.Identity() }

func (op EntityCreate) SQL(*template.Renderer) (string, error) {
	return op.Object.Definition, nil
}

func (op EntityCreate) Reverse() Operation {
	return EntityDrop(op)
}

// EntityDrop drops a registered schema object
type EntityDrop struct {
	Object entity.SchemaObject
}

func (op EntityDrop) Action() Action         { return ActionDrop }
func (op EntityDrop) ObjectType() ObjectType { return objectType(op.Object.Kind) }
func (op EntityDrop) Address() string        { return op.Object.Identity() }

func (op EntityDrop) SQL(*template.Renderer) (string, error) {
	obj := op.Object
	name := util.QuoteIdentifier(obj.SchemaName()) + "." + util.QuoteIdentifier(obj.Name)
	switch obj.Kind {
	case entity.KindFunction:
		return fmt.Sprintf("DROP FUNCTION IF EXISTS %s(%s);", name, obj.Arguments), nil
	case entity.KindTrigger:
		return fmt.Sprintf("DROP TRIGGER IF EXISTS %s ON %s;",
			util.QuoteIdentifier(obj.Name), util.QuoteQualified(entity.QualifyTable(obj.Table))), nil
	case entity.KindExtension:
		return fmt.Sprintf("DROP EXTENSION IF EXISTS %s;", util.QuoteIdentifier(obj.Name)), nil
	default:
		return "", fmt.Errorf("unsupported entity kind %q", obj.Kind)
	}
}

func (op EntityDrop) Reverse() Operation {
	return EntityCreate(op)
}

func objectType(kind entity.Kind) ObjectType {
	switch kind {
	case entity.KindExtension:
		return ObjectTypeExtension
	case entity.KindTrigger:
		return ObjectTypeTrigger
	default:
		return ObjectTypeFunction
	}
}
