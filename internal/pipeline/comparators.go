package pipeline

import (
	"context"
	"fmt"
	"slices"

	"github.com/pgschema/pgaudit/internal/entity"
	"github.com/pgschema/pgaudit/internal/graph"
	"github.com/pgschema/pgaudit/internal/operation"
	"github.com/pgschema/pgaudit/internal/resolver"
)

// CompareTables stages a TableCreate for every declared table missing from the
// database. Tables are ordered so that foreign key targets come first.
func CompareTables(ctx context.Context, actx *AutogenContext, ops *operation.UpgradeOps) error {
	log := actx.logger()

	g := graph.New()
	missing := make(map[string]operation.Table)
	for _, table := range actx.Tables {
		exists, err := actx.Catalog.TableExists(ctx, table.Schema, table.Name)
		if err != nil {
			return fmt.Errorf("failed to check table %s: %w", table.QualifiedName(), err)
		}
		if exists {
			log.Debug("Table exists, nothing to do", "table", table.QualifiedName())
			continue
		}
		missing[table.QualifiedName()] = table
		g.AddNode(table.QualifiedName())
	}

	for name, table := range missing {
		for _, ref := range table.References {
			g.AddEdge(entity.QualifyTable(ref), name)
		}
	}

	for _, name := range g.Sort() {
		ops.Append(operation.TableCreate{Table: missing[name]})
		log.Info("Detected added table", "table", name)
	}
	return nil
}

// ResolveDependencies runs the migration dependency resolver over the registry
func ResolveDependencies(ctx context.Context, actx *AutogenContext, ops *operation.UpgradeOps) error {
	opts := []resolver.Option{
		resolver.WithLogger(actx.logger()),
		resolver.WithSchemaParams(actx.SchemaParams),
	}
	if actx.SinglePass {
		opts = append(opts, resolver.WithSinglePass())
	}

	_, err := resolver.New(actx.Catalog, actx.Registry, actx.TargetSchema, opts...).Resolve(ctx, ops)
	return err
}

// CompareEntities emits an EntityCreate for every object still registered that
// does not exist in the database, dependencies first. Existing objects are
// left untouched.
func CompareEntities(ctx context.Context, actx *AutogenContext, ops *operation.UpgradeOps) error {
	log := actx.logger()

	g := graph.New()
	missing := make(map[string]entity.SchemaObject)
	for _, entry := range actx.Registry.Snapshot() {
		obj := entry.Object
		existing, err := actx.Catalog.ExistingIdentities(ctx, obj.Kind, obj.SchemaName())
		if err != nil {
			return fmt.Errorf("failed to introspect %s objects in schema %s: %w", obj.Kind, obj.SchemaName(), err)
		}
		if slices.Contains(existing, entry.Identity) {
			log.Debug("Object exists, nothing to do", "identity", entry.Identity)
			continue
		}
		missing[entry.Identity] = obj
		g.AddNode(entry.Identity)
	}

	for id, obj := range missing {
		for otherID, other := range missing {
			if otherID == id {
				continue
			}
			for _, sig := range other.Signatures() {
				if slices.Contains(obj.DependsOn, sig) {
					g.AddEdge(otherID, id)
					break
				}
			}
		}
	}

	for _, id := range g.Sort() {
		ops.Append(operation.EntityCreate{Object: missing[id]})
		log.Info("Detected added object", "identity", id)
	}
	return nil
}
