package audit

import (
	"github.com/pgschema/pgaudit/internal/entity"
	"github.com/pgschema/pgaudit/internal/factory"
	"github.com/pgschema/pgaudit/internal/operation"
	"github.com/pgschema/pgaudit/internal/plan"
)

// Re-export important types for external consumption

// Plan is a rendered migration with its downgrade.
type Plan = plan.Plan

// UpgradeOps is the ordered list of operations of one migration.
type UpgradeOps = operation.UpgradeOps

// Operation is a single migration step.
type Operation = operation.Operation

// Table is a table declared in DDL.
type Table = operation.Table

// AuditTable is the audit configuration of one table.
type AuditTable = factory.AuditTable

// MigrationContext is the target schema and template parameters shared by
// every factory in one pass.
type MigrationContext = factory.Context

// Registry holds the schema objects that should exist after a migration.
type Registry = entity.Registry

// SchemaObject is a managed extension, function or trigger.
type SchemaObject = entity.SchemaObject
