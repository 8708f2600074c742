// Package resolver decides which registered schema objects must be created
// explicitly, and in which order, when they depend on objects that do not yet
// exist in the target database.
//
// The resolver runs ahead of the default entity comparator. Every object it
// classifies is removed from the registry, so the default comparator only sees
// objects with no unmet dependencies.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/pgschema/pgaudit/internal/entity"
	"github.com/pgschema/pgaudit/internal/graph"
	"github.com/pgschema/pgaudit/internal/logger"
	"github.com/pgschema/pgaudit/internal/operation"
	"github.com/pgschema/pgaudit/internal/template"
)

// Catalog is the live database state the resolver consults
type Catalog interface {
	SchemaExists(ctx context.Context, schema string) (bool, error)
	ExistingIdentities(ctx context.Context, kind entity.Kind, schema string) ([]string, error)
}

// Option configures a Resolver
type Option func(*Resolver)

// WithSinglePass makes the dependency scan a single forward pass over the
// registry. Only references to objects deferred earlier in registry order are
// detected.
func WithSinglePass() Option {
	return func(r *Resolver) {
		r.singlePass = true
	}
}

// WithLogger sets the logger; the global logger is used otherwise
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// WithSchemaParams sets extra template parameters carried by the schema create operation
func WithSchemaParams(params template.Params) Option {
	return func(r *Resolver) {
		r.schemaParams = params
	}
}

// Resolver computes deferred objects for one autogeneration pass
type Resolver struct {
	catalog      Catalog
	registry     *entity.Registry
	targetSchema string
	singlePass   bool
	schemaParams template.Params
	logger       *slog.Logger
}

// New creates a resolver for registry against the target schema
func New(catalog Catalog, registry *entity.Registry, targetSchema string, opts ...Option) *Resolver {
	r := &Resolver{
		catalog:      catalog,
		registry:     registry,
		targetSchema: targetSchema,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get()
	}
	return r
}

// Result summarises what one resolution pass did
type Result struct {
	// SchemaCreated is set when a SchemaCreate operation was inserted
	SchemaCreated bool
	// Deferred holds the identities of deferred objects in emission order
	Deferred []string
	// Prerequisites holds identities pulled ahead of the tables requiring them
	Prerequisites []string
	// Created holds identities for which an EntityCreate was emitted
	Created []string
	// Existing holds identities skipped because they already exist
	Existing []string
}

// Resolve runs the resolution pass, mutating ops and the registry in place.
// Any database error aborts the pass; ops may then be partially modified and
// must be discarded by the caller.
func (r *Resolver) Resolve(ctx context.Context, ops *operation.UpgradeOps) (*Result, error) {
	result := &Result{}
	snapshot := r.registry.Snapshot()
	scan := newDependencyScan(snapshot, r.logger)

	// 1. Schema existence check
	exists, err := r.catalog.SchemaExists(ctx, r.targetSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to check schema %s: %w", r.targetSchema, err)
	}
	if !exists {
		ops.Insert(0, operation.SchemaCreate{Schema: r.targetSchema, Params: r.schemaParams})
		result.SchemaCreated = true
		for _, entry := range snapshot {
			if entry.Object.SchemaName() == r.targetSchema {
				scan.deferObject(entry.Identity)
			}
		}
	}

	// 2. Tables created in this migration
	for _, tc := range ops.TableCreates() {
		scan.seed(tc.Table.Signatures()...)
	}

	// 3. Everything referencing a deferred signature is deferred too
	scan.run(r.singlePass)

	r.logger.Debug("Dependency scan complete",
		"target_schema", r.targetSchema,
		"deferred", len(scan.deferred),
		"signatures", scan.signatures.items,
	)

	// Objects a new table requires go right before that table
	if err := r.resolvePrerequisites(ctx, ops, scan, result); err != nil {
		return nil, err
	}

	// 4. Remaining deferred objects, dependencies first
	for _, identity := range scan.order() {
		created, err := r.resolveObject(ctx, identity, func(op operation.Operation) {
			ops.Append(op)
		})
		if err != nil {
			return nil, err
		}
		result.Deferred = append(result.Deferred, identity)
		if created {
			result.Created = append(result.Created, identity)
		} else {
			result.Existing = append(result.Existing, identity)
		}
	}

	r.logger.Info("Resolved audit object dependencies",
		"schema_created", result.SchemaCreated,
		"deferred", len(result.Deferred),
		"created", len(result.Created),
		"existing", len(result.Existing),
	)
	return result, nil
}

// resolvePrerequisites emits registry objects listed in a staged table's
// Requires immediately before the first table requiring them
func (r *Resolver) resolvePrerequisites(ctx context.Context, ops *operation.UpgradeOps, scan *dependencyScan, result *Result) error {
	for _, tc := range ops.TableCreates() {
		for _, required := range tc.Table.Requires {
			for _, entry := range scan.entries {
				if scan.handled[entry.Identity] || !slices.Contains(entry.Object.Signatures(), required) {
					continue
				}
				scan.handled[entry.Identity] = true

				index := ops.IndexOf(func(op operation.Operation) bool {
					other, ok := op.(operation.TableCreate)
					return ok && other.Table.QualifiedName() == tc.Table.QualifiedName()
				})
				created, err := r.resolveObject(ctx, entry.Identity, func(op operation.Operation) {
					ops.Insert(index, op)
				})
				if err != nil {
					return err
				}
				result.Prerequisites = append(result.Prerequisites, entry.Identity)
				if created {
					result.Created = append(result.Created, entry.Identity)
				} else {
					result.Existing = append(result.Existing, entry.Identity)
				}
			}
		}
	}
	return nil
}

// resolveObject removes identity from the registry and emits a create
// operation through emit unless the object already exists
func (r *Resolver) resolveObject(ctx context.Context, identity string, emit func(operation.Operation)) (bool, error) {
	obj, err := r.registry.Remove(identity)
	if err != nil {
		return false, err
	}

	existing, err := r.catalog.ExistingIdentities(ctx, obj.Kind, obj.SchemaName())
	if err != nil {
		return false, fmt.Errorf("failed to introspect %s objects in schema %s: %w", obj.Kind, obj.SchemaName(), err)
	}

	if slices.Contains(existing, identity) {
		// The definition is not compared; an altered object is left as is.
		r.logger.Warn("Deferred object already exists; definition not compared",
			"identity", identity,
		)
		return false, nil
	}

	emit(operation.EntityCreate{Object: obj})
	r.logger.Debug("Deferred object scheduled for creation", "identity", identity)
	return true, nil
}

// dependencyScan tracks the deferred set and the deferred-signature list
type dependencyScan struct {
	entries    []entity.Entry
	refs       map[string][]string
	deferred   map[string]bool
	deferOrder []string
	handled    map[string]bool
	signatures *signatureList
}

func newDependencyScan(entries []entity.Entry, log *slog.Logger) *dependencyScan {
	s := &dependencyScan{
		entries:    entries,
		refs:       make(map[string][]string, len(entries)),
		deferred:   make(map[string]bool),
		handled:    make(map[string]bool),
		signatures: newSignatureList(),
	}
	for _, entry := range entries {
		s.refs[entry.Identity] = references(entry.Object, log)
	}
	return s
}

func (s *dependencyScan) seed(signatures ...string) {
	s.signatures.add(signatures...)
}

func (s *dependencyScan) deferObject(identity string) {
	if s.deferred[identity] {
		return
	}
	s.deferred[identity] = true
	s.deferOrder = append(s.deferOrder, identity)
	for _, entry := range s.entries {
		if entry.Identity == identity {
			s.signatures.add(entry.Object.Signatures()...)
			return
		}
	}
}

// run defers every object that references a deferred signature. With
// singlePass the registry is walked once; otherwise until nothing changes.
func (s *dependencyScan) run(singlePass bool) {
	for {
		changed := false
		for _, entry := range s.entries {
			if s.deferred[entry.Identity] {
				continue
			}
			if s.dependsOnDeferred(entry) {
				s.deferObject(entry.Identity)
				changed = true
			}
		}
		if singlePass || !changed {
			return
		}
	}
}

func (s *dependencyScan) dependsOnDeferred(entry entity.Entry) bool {
	for _, ref := range s.refs[entry.Identity] {
		if s.signatures.contains(ref) {
			return true
		}
	}
	return s.signatures.matchText(entry.Object.Definition, entry.Object.Signatures())
}

// order returns the deferred identities not yet handled, dependencies first
func (s *dependencyScan) order() []string {
	g := graph.New()
	objects := make(map[string]entity.SchemaObject)
	for _, entry := range s.entries {
		if s.deferred[entry.Identity] && !s.handled[entry.Identity] {
			g.AddNode(entry.Identity)
			objects[entry.Identity] = entry.Object
		}
	}

	for _, entry := range s.entries {
		if !g.Has(entry.Identity) {
			continue
		}
		for _, other := range s.entries {
			if other.Identity == entry.Identity || !g.Has(other.Identity) {
				continue
			}
			if refersTo(entry.Object, s.refs[entry.Identity], objects[other.Identity]) {
				g.AddEdge(other.Identity, entry.Identity)
			}
		}
	}

	return g.Sort()
}
