// Package catalog reads the live state of the objects pgaudit manages from the
// database catalogs.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pgschema/pgaudit/internal/entity"
	"github.com/pgschema/pgaudit/internal/logger"
)

// Queryer is satisfied by *sql.DB, *sql.Conn and *sql.Tx
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Catalog answers existence questions against one database connection
type Catalog struct {
	db Queryer
}

// New creates a catalog reading through db
func New(db Queryer) *Catalog {
	return &Catalog{db: db}
}

const (
	schemaExistsQuery = `
		SELECT TRUE
		FROM information_schema.schemata
		WHERE schema_name = $1`

	tableExistsQuery = `
		SELECT TRUE
		FROM information_schema.tables
		WHERE table_schema = $1
		  AND table_name = $2`

	functionsQuery = `
		SELECT p.proname, pg_get_function_identity_arguments(p.oid)
		FROM pg_proc p
		JOIN pg_namespace n ON n.oid = p.pronamespace
		WHERE n.nspname = $1
		  AND p.prokind = 'f'
		ORDER BY p.proname, 2`

	triggersQuery = `
		SELECT c.relname, t.tgname
		FROM pg_trigger t
		JOIN pg_class c ON c.oid = t.tgrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1
		  AND NOT t.tgisinternal
		ORDER BY c.relname, t.tgname`

	extensionsQuery = `
		SELECT e.extname
		FROM pg_extension e
		JOIN pg_namespace n ON n.oid = e.extnamespace
		WHERE n.nspname = $1
		ORDER BY e.extname`
)

// SchemaExists reports whether schema is present in information_schema.schemata
func (c *Catalog) SchemaExists(ctx context.Context, schema string) (bool, error) {
	return c.exists(ctx, "schema exists", schemaExistsQuery, schema)
}

// TableExists reports whether schema.table is present in information_schema.tables
func (c *Catalog) TableExists(ctx context.Context, schema, table string) (bool, error) {
	return c.exists(ctx, "table exists", tableExistsQuery, schema, table)
}

func (c *Catalog) exists(ctx context.Context, description, query string, args ...any) (bool, error) {
	logQuery(description, query, args...)

	var found bool
	err := c.db.QueryRowContext(ctx, query, args...).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check %s %v: %w", description, args, err)
	}
	return found, nil
}

// Objects returns the existing objects of kind in schema. Only the identifying
// fields are populated; definitions are not read back.
func (c *Catalog) Objects(ctx context.Context, kind entity.Kind, schema string) ([]entity.SchemaObject, error) {
	switch kind {
	case entity.KindFunction:
		return c.queryObjects(ctx, functionsQuery, schema, func(rows *sql.Rows) (entity.SchemaObject, error) {
			obj := entity.SchemaObject{Kind: entity.KindFunction, Schema: schema}
			err := rows.Scan(&obj.Name, &obj.Arguments)
			return obj, err
		})
	case entity.KindTrigger:
		return c.queryObjects(ctx, triggersQuery, schema, func(rows *sql.Rows) (entity.SchemaObject, error) {
			var table string
			obj := entity.SchemaObject{Kind: entity.KindTrigger, Schema: schema}
			err := rows.Scan(&table, &obj.Name)
			obj.Table = schema + "." + table
			return obj, err
		})
	case entity.KindExtension:
		return c.queryObjects(ctx, extensionsQuery, schema, func(rows *sql.Rows) (entity.SchemaObject, error) {
			obj := entity.SchemaObject{Kind: entity.KindExtension, Schema: schema}
			err := rows.Scan(&obj.Name)
			return obj, err
		})
	default:
		return nil, fmt.Errorf("unsupported object kind %q", kind)
	}
}

// ExistingIdentities returns the identities of the existing objects of kind in schema
func (c *Catalog) ExistingIdentities(ctx context.Context, kind entity.Kind, schema string) ([]string, error) {
	objects, err := c.Objects(ctx, kind, schema)
	if err != nil {
		return nil, err
	}
	identities := make([]string, 0, len(objects))
	for _, obj := range objects {
		identities = append(identities, obj.Identity())
	}
	return identities, nil
}

func (c *Catalog) queryObjects(ctx context.Context, query, schema string, scan func(*sql.Rows) (entity.SchemaObject, error)) ([]entity.SchemaObject, error) {
	logQuery("list objects", query, schema)

	rows, err := c.db.QueryContext(ctx, query, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to query objects in schema %s: %w", schema, err)
	}
	defer rows.Close()

	var objects []entity.SchemaObject
	for rows.Next() {
		obj, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan object in schema %s: %w", schema, err)
		}
		objects = append(objects, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read objects in schema %s: %w", schema, err)
	}
	return objects, nil
}

// State is the existing state of a set of schemas
type State struct {
	Schemas    map[string]bool
	identities map[string]bool
	Objects    []entity.SchemaObject
}

// NewState builds a state from known schemas and objects
func NewState(schemas map[string]bool, objects ...entity.SchemaObject) *State {
	s := &State{
		Schemas:    make(map[string]bool, len(schemas)),
		identities: make(map[string]bool, len(objects)),
	}
	for schema, exists := range schemas {
		s.Schemas[schema] = exists
	}
	for _, obj := range objects {
		s.add(obj)
	}
	return s
}

func (s *State) add(obj entity.SchemaObject) {
	s.Objects = append(s.Objects, obj)
	s.identities[obj.Identity()] = true
}

// Exists reports whether an object with identity exists
func (s *State) Exists(identity string) bool {
	return s.identities[identity]
}

// Snapshot loads every managed kind of object in schemas concurrently
func (c *Catalog) Snapshot(ctx context.Context, schemas []string) (*State, error) {
	state := NewState(nil)

	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)

	for _, schema := range schemas {
		eg.Go(func() error {
			exists, err := c.SchemaExists(egCtx, schema)
			if err != nil {
				return err
			}
			mu.Lock()
			state.Schemas[schema] = exists
			mu.Unlock()
			return nil
		})

		for _, kind := range []entity.Kind{entity.KindExtension, entity.KindFunction, entity.KindTrigger} {
			eg.Go(func() error {
				objects, err := c.Objects(egCtx, kind, schema)
				if err != nil {
					return fmt.Errorf("%s: %w", kind, err)
				}
				mu.Lock()
				defer mu.Unlock()
				for _, obj := range objects {
					state.add(obj)
				}
				return nil
			})
		}
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(state.Objects, func(i, j int) bool {
		return state.Objects[i].Identity() < state.Objects[j].Identity()
	})
	return state, nil
}

func logQuery(description, query string, args ...any) {
	if logger.IsDebug() {
		logger.Get().Debug("Executing catalog query", "description", description, "sql", query, "args", args)
	}
}
