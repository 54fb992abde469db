// Package memory provides an in-memory document store for tests and
// ephemeral deployments.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/artpar/recordbase/domain/query"
	"github.com/artpar/recordbase/domain/record"
	"github.com/artpar/recordbase/pkg/apierror"
	"github.com/artpar/recordbase/ports"
)

type collection struct {
	records map[string]record.Record        // by id
	order   []string                        // insertion order
	indexes map[string]ports.IndexOptions   // field -> options
}

// Store is an in-memory implementation of ports.Store.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{collections: map[string]*collection{}}
}

func (s *Store) collectionLocked(name string) *collection {
	c, ok := s.collections[name]
	if !ok {
		c = &collection{
			records: map[string]record.Record{},
			indexes: map[string]ports.IndexOptions{},
		}
		s.collections[name] = c
	}
	return c
}

// SetIndex declares an index. Only unique indexes change behavior here;
// lookup stays a scan either way.
func (s *Store) SetIndex(ctx context.Context, collection, field string, opts ports.IndexOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collectionLocked(collection).indexes[field] = opts
	return nil
}

// Find returns matching records in insertion order.
func (s *Store) Find(ctx context.Context, name string, q query.Query, opts ports.FindOptions) ([]record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := s.matchesLocked(name, q)
	if opts.Skip > 0 {
		if opts.Skip >= len(matches) {
			return []record.Record{}, nil
		}
		matches = matches[opts.Skip:]
	}
	if opts.Limit > 0 && opts.Limit < len(matches) {
		matches = matches[:opts.Limit]
	}

	out := make([]record.Record, len(matches))
	for i, r := range matches {
		out[i] = r.Clone()
	}
	return out, nil
}

// Count returns the number of matching records.
func (s *Store) Count(ctx context.Context, name string, q query.Query) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.matchesLocked(name, q)), nil
}

// Each iterates matching records. The set of visited ids is snapshotted
// before the first callback, so records inserted during iteration are not
// observed.
func (s *Store) Each(ctx context.Context, name string, q query.Query, opts ports.EachOptions, fn func(record.Record) error) error {
	s.mu.RLock()
	ids := make([]string, 0)
	for _, r := range s.matchesLocked(name, q) {
		ids = append(ids, r.ID())
	}
	s.mu.RUnlock()

	for _, id := range ids {
		s.mu.RLock()
		c := s.collections[name]
		var r record.Record
		if c != nil {
			if current, ok := c.records[id]; ok {
				r = current.Clone()
			}
		}
		s.mu.RUnlock()

		if r == nil {
			continue // removed mid-iteration
		}
		if err := fn(r); err != nil {
			return err
		}
		if !opts.Multi {
			return nil
		}
	}
	return nil
}

// Insert stores a new record, enforcing unique indexes.
func (s *Store) Insert(ctx context.Context, name string, r record.Record) (record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.collectionLocked(name)
	if field, ok := s.uniqueViolationLocked(c, r, r.ID()); !ok {
		return nil, apierror.Conflict(field)
	}

	stored := r.Clone()
	c.records[stored.ID()] = stored
	c.order = append(c.order, stored.ID())
	return stored.Clone(), nil
}

// Update applies the operations to matching records.
func (s *Store) Update(ctx context.Context, name string, q query.Query, ops query.Operations, opts ports.UpdateOptions) ([]record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.collectionLocked(name)
	var updated []record.Record
	for _, r := range s.matchesLocked(name, q) {
		next := ops.Apply(r)
		if field, ok := s.uniqueViolationLocked(c, next, r.ID()); !ok {
			return nil, apierror.Conflict(field)
		}
		c.records[r.ID()] = next
		updated = append(updated, next.Clone())
		if !opts.Multi {
			break
		}
	}
	return updated, nil
}

// Remove deletes matching records.
func (s *Store) Remove(ctx context.Context, name string, q query.Query, opts ports.RemoveOptions) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.collectionLocked(name)
	removed := 0
	for _, r := range s.matchesLocked(name, q) {
		delete(c.records, r.ID())
		removed++
		if !opts.Multi {
			break
		}
	}
	if removed > 0 {
		kept := c.order[:0]
		for _, id := range c.order {
			if _, ok := c.records[id]; ok {
				kept = append(kept, id)
			}
		}
		c.order = kept
	}
	return removed, nil
}

// Ready always succeeds; the store is usable from construction.
func (s *Store) Ready(ctx context.Context) error {
	return nil
}

// Close clears all collections.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections = map[string]*collection{}
	return nil
}

func (s *Store) matchesLocked(name string, q query.Query) []record.Record {
	c, ok := s.collections[name]
	if !ok {
		return nil
	}
	var out []record.Record
	for _, id := range c.order {
		r, ok := c.records[id]
		if !ok {
			continue
		}
		if q.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// uniqueViolationLocked checks r against every unique index, ignoring the
// record with selfID. Returns the violated field and false on conflict.
func (s *Store) uniqueViolationLocked(c *collection, r record.Record, selfID string) (string, bool) {
	fields := make([]string, 0, len(c.indexes))
	for field, opts := range c.indexes {
		if opts.Unique {
			fields = append(fields, field)
		}
	}
	sort.Strings(fields)

	for _, field := range fields {
		value, ok := r[field]
		if !ok || value == nil {
			continue
		}
		for id, existing := range c.records {
			if id == selfID {
				continue
			}
			if (query.Query{field: value}).Match(existing) {
				return field, false
			}
		}
	}
	return "", true
}
