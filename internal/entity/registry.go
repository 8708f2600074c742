package entity

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an identity is not registered
var ErrNotFound = errors.New("entity not found")

// Entry is a single registry item as returned by Snapshot
type Entry struct {
	Identity string
	Object   SchemaObject
}

// Registry maps identity to the schema objects that should exist. A registry is
// owned by a single autogeneration pass and is not safe for concurrent use.
type Registry struct {
	objects map[string]SchemaObject
	order   []string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		objects: make(map[string]SchemaObject),
	}
}

// Register adds objects by identity. Re-registering an identity overwrites the
// previous definition but keeps its original position.
func (r *Registry) Register(objs ...SchemaObject) {
	for _, obj := range objs {
		id := obj.Identity()
		if _, exists := r.objects[id]; !exists {
			r.order = append(r.order, id)
		}
		r.objects[id] = obj
	}
}

// Remove pops the object registered under identity
func (r *Registry) Remove(identity string) (SchemaObject, error) {
	obj, exists := r.objects[identity]
	if !exists {
		return SchemaObject{}, fmt.Errorf("remove %s: %w", identity, ErrNotFound)
	}
	delete(r.objects, identity)
	for i, id := range r.order {
		if id == identity {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return obj, nil
}

// Get returns the object registered under identity
func (r *Registry) Get(identity string) (SchemaObject, bool) {
	obj, ok := r.objects[identity]
	return obj, ok
}

// Len returns the number of registered objects
func (r *Registry) Len() int {
	return len(r.objects)
}

// Snapshot returns a copy of the registry in registration order. Callers may
// mutate the registry while iterating the snapshot.
func (r *Registry) Snapshot() []Entry {
	entries := make([]Entry, 0, len(r.order))
	for _, id := range r.order {
		entries = append(entries, Entry{Identity: id, Object: r.objects[id]})
	}
	return entries
}
