// Package pipeline runs the comparators of one autogeneration pass in a
// declared order and collects the operations they emit.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pgschema/pgaudit/internal/entity"
	"github.com/pgschema/pgaudit/internal/logger"
	"github.com/pgschema/pgaudit/internal/operation"
	"github.com/pgschema/pgaudit/internal/resolver"
	"github.com/pgschema/pgaudit/internal/template"
)

// Built-in comparator priorities. Lower runs first.
const (
	PriorityTables             = 100
	PriorityDependencyResolver = 200
	PriorityEntities           = 300
)

// Built-in comparator names
const (
	TablesComparator             = "tables"
	DependencyResolverComparator = "dependency_resolver"
	EntitiesComparator           = "entities"
)

var (
	ErrDuplicateComparator = errors.New("comparator already registered")
	ErrUnknownComparator   = errors.New("unknown comparator")
)

// Catalog is the live database state comparators consult
type Catalog interface {
	resolver.Catalog
	TableExists(ctx context.Context, schema, table string) (bool, error)
}

// AutogenContext is the state shared by the comparators of one pass
type AutogenContext struct {
	Catalog      Catalog
	TargetSchema string
	Registry     *entity.Registry
	// Tables are the declared tables the table comparator stages when missing
	Tables []operation.Table
	// SinglePass selects the one-pass dependency scan
	SinglePass   bool
	SchemaParams template.Params
	Logger       *slog.Logger
}

func (a *AutogenContext) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return logger.Get()
}

// Comparator inspects the declared and live state and mutates ops
type Comparator func(ctx context.Context, actx *AutogenContext, ops *operation.UpgradeOps) error

type registration struct {
	name     string
	priority int
	fn       Comparator
}

// Pipeline is an ordered list of comparators
type Pipeline struct {
	comparators []registration
}

// New creates an empty pipeline
func New() *Pipeline {
	return &Pipeline{}
}

// Default returns a pipeline with the table, dependency resolver and entity
// comparators registered at their built-in priorities.
func Default() *Pipeline {
	p := New()
	// Names are distinct, registration cannot fail
	_ = p.Register(TablesComparator, PriorityTables, CompareTables)
	_ = p.Register(DependencyResolverComparator, PriorityDependencyResolver, ResolveDependencies)
	_ = p.Register(EntitiesComparator, PriorityEntities, CompareEntities)
	return p
}

// Register adds a comparator. Comparators run in ascending priority;
// comparators with equal priority run in registration order.
func (p *Pipeline) Register(name string, priority int, fn Comparator) error {
	if p.index(name) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateComparator, name)
	}

	pos := len(p.comparators)
	for i, c := range p.comparators {
		if c.priority > priority {
			pos = i
			break
		}
	}
	p.insert(pos, registration{name: name, priority: priority, fn: fn})
	return nil
}

// RegisterBefore adds a comparator that runs immediately before anchor
func (p *Pipeline) RegisterBefore(name, anchor string, fn Comparator) error {
	if p.index(name) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateComparator, name)
	}
	pos := p.index(anchor)
	if pos < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownComparator, anchor)
	}
	p.insert(pos, registration{name: name, priority: p.comparators[pos].priority, fn: fn})
	return nil
}

// Names returns the comparator names in run order
func (p *Pipeline) Names() []string {
	names := make([]string, 0, len(p.comparators))
	for _, c := range p.comparators {
		names = append(names, c.name)
	}
	return names
}

// Run executes every comparator in order against a fresh operation list.
// The first error aborts the pass.
func (p *Pipeline) Run(ctx context.Context, actx *AutogenContext) (*operation.UpgradeOps, error) {
	ops := operation.NewUpgradeOps()
	log := actx.logger()

	for _, c := range p.comparators {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		before := ops.Len()
		if err := c.fn(ctx, actx, ops); err != nil {
			return nil, fmt.Errorf("comparator %s: %w", c.name, err)
		}
		log.Debug("Comparator finished", "comparator", c.name, "operations", ops.Len()-before)
	}
	return ops, nil
}

func (p *Pipeline) index(name string) int {
	for i, c := range p.comparators {
		if c.name == name {
			return i
		}
	}
	return -1
}

func (p *Pipeline) insert(pos int, r registration) {
	p.comparators = append(p.comparators, registration{})
	copy(p.comparators[pos+1:], p.comparators[pos:])
	p.comparators[pos] = r
}
