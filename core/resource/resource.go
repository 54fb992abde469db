// Package resource implements the central Resource entity: the binding of
// a name, a Schema, a storage adapter, an attachment store and an
// execution context, exposing validated CRUD, pagination, hook execution
// and the attachment lifecycle.
package resource

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/artpar/recordbase/core/schema"
	"github.com/artpar/recordbase/domain/query"
	"github.com/artpar/recordbase/domain/record"
	"github.com/artpar/recordbase/pkg/apierror"
	"github.com/artpar/recordbase/ports"
)

// Options carries the collaborators every resource shares.
type Options struct {
	Store ports.Store
	Blobs ports.BlobStore
	Clock ports.Clock
	IDs   ports.IDGenerator

	Logger zerolog.Logger

	// TestMode unlocks destructive helpers (Drop). Off in production.
	TestMode bool
}

// Resource is the sole gateway to a named collection.
type Resource struct {
	Name string

	schema *schema.Schema
	store  ports.Store
	blobs  ports.BlobStore
	clock  ports.Clock
	ids    ports.IDGenerator
	logger zerolog.Logger

	testMode bool
	hctx     *schema.Context
}

// New binds a resource and declares its schema indexes on the store.
func New(ctx context.Context, name string, s *schema.Schema, opts Options) (*Resource, error) {
	r := &Resource{
		Name:     name,
		schema:   s,
		store:    opts.Store,
		blobs:    opts.Blobs,
		clock:    opts.Clock,
		ids:      opts.IDs,
		logger:   opts.Logger.With().Str("resource", name).Logger(),
		testMode: opts.TestMode,
	}
	if err := r.store.Ready(ctx); err != nil {
		return nil, err
	}
	for _, idx := range s.Indices() {
		if err := r.store.SetIndex(ctx, name, idx.Field, ports.IndexOptions{Unique: idx.Unique}); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Schema returns the resource's schema. Hooks and permissions registered
// on it are shared by every context-bound clone.
func (r *Resource) Schema() *schema.Schema {
	return r.schema
}

// WithContext returns a clone sharing schema, store and attachments but
// carrying a distinct execution context, so hooks see the acting user.
// Hooks belong to the shared Schema and are never copied.
func (r *Resource) WithContext(hctx *schema.Context) *Resource {
	clone := *r
	clone.hctx = hctx
	return &clone
}

// Context returns the execution context, which may be nil.
func (r *Resource) Context() *schema.Context {
	return r.hctx
}

// Validate checks the payload against the schema, running the validate
// hook families. A non-empty error list becomes a 400 with the joined
// message list.
func (r *Resource) Validate(ctx context.Context, payload record.Record, isUpdate bool) (record.Record, error) {
	errs, data, err := r.schema.Validate(ctx, r.hctx, payload, schema.ValidateOptions{IgnoreRequired: isUpdate})
	if err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		return nil, apierror.BadRequest(strings.Join(errs, "\n"))
	}
	return data, nil
}

// FindOptions paginates a find. Pages are 1-indexed; a PageSize without a
// Page defaults to page 1. PageSize 0 disables pagination.
type FindOptions struct {
	Page     int
	PageSize int
}

// Meta carries pagination metadata for the transport layer's headers.
type Meta struct {
	Page       int
	PageSize   int
	Total      int
	TotalPages int
}

// Find returns records matching the query, bracketed by the find and read
// hook families. Meta is nil for unpaginated calls.
func (r *Resource) Find(ctx context.Context, q query.Query, opts FindOptions) ([]record.Record, *Meta, error) {
	if err := r.store.Ready(ctx); err != nil {
		return nil, nil, err
	}
	if q == nil {
		q = query.Query{}
	}

	if err := r.schema.RunBefore(ctx, r.hctx, &schema.Event{Name: schema.EventFind, Query: q}, schema.EventRead); err != nil {
		return nil, nil, err
	}

	var params ports.FindOptions
	var meta *Meta
	if opts.PageSize > 0 {
		page := opts.Page
		if page < 1 {
			page = 1
		}
		params.Skip = (page - 1) * opts.PageSize
		params.Limit = opts.PageSize
		meta = &Meta{Page: page, PageSize: opts.PageSize}
	}

	records, err := r.store.Find(ctx, r.Name, q, params)
	if err != nil {
		return nil, nil, err
	}

	if meta != nil {
		total, err := r.store.Count(ctx, r.Name, q)
		if err != nil {
			return nil, nil, err
		}
		meta.Total = total
		meta.TotalPages = (total + meta.PageSize - 1) / meta.PageSize
	}

	for i := range records {
		records[i] = r.schema.Compute(records[i])
	}

	if err := r.schema.RunAfter(ctx, r.hctx, &schema.Event{Name: schema.EventFind, Records: records, Query: q}, schema.EventRead); err != nil {
		return nil, nil, err
	}

	return records, meta, nil
}

// FindOne returns the first record matching the query, or nil.
func (r *Resource) FindOne(ctx context.Context, q query.Query) (record.Record, error) {
	records, _, err := r.Find(ctx, q, FindOptions{Page: 1, PageSize: 1})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// Get returns a record by id, or nil.
func (r *Resource) Get(ctx context.Context, id string) (record.Record, error) {
	return r.FindOne(ctx, query.ByID(id))
}

// CreateOptions tunes a create.
type CreateOptions struct {
	// UserID overrides the context user as the record owner.
	UserID string

	// SkipValidation bypasses schema validation (internal callers only).
	SkipValidation bool
}

// Create validates the payload, stamps the reserved properties and
// inserts. Both the create and save hook families fire, in that order,
// so cross-cutting save hooks apply uniformly to create and update.
func (r *Resource) Create(ctx context.Context, payload record.Record, opts CreateOptions) (record.Record, error) {
	if err := r.store.Ready(ctx); err != nil {
		return nil, err
	}

	userID := opts.UserID
	if userID == "" && r.hctx != nil && r.hctx.User != nil {
		userID = r.hctx.User.ID
	}

	data := r.schema.ApplyDefaults(payload.Clone())
	if !opts.SkipValidation {
		var err error
		data, err = r.Validate(ctx, data, false)
		if err != nil {
			return nil, err
		}
	}

	if err := r.schema.RunBefore(ctx, r.hctx, &schema.Event{Name: schema.EventCreate, Record: data}, schema.EventSave); err != nil {
		return nil, err
	}

	now := r.clock.Now().UnixMilli()
	data[record.FieldID] = r.ids.New()
	data[record.FieldCreatedAt] = now
	data[record.FieldUpdatedAt] = now
	data[record.FieldAttachments] = []any{}
	if userID != "" {
		data[record.FieldCreatedBy] = userID
	} else {
		data[record.FieldCreatedBy] = nil
	}

	stored, err := r.store.Insert(ctx, r.Name, data)
	if err != nil {
		return nil, err
	}

	stored = r.schema.Compute(stored)

	// The record is persisted at this point; an after-hook failure aborts
	// the call but not the write (at-least-persisted, not transactional).
	if err := r.schema.RunAfter(ctx, r.hctx, &schema.Event{Name: schema.EventCreate, Record: stored}, schema.EventSave); err != nil {
		return nil, err
	}

	return stored, nil
}

// UpdateOptions controls how many matches an update touches.
type UpdateOptions struct {
	Multi bool
}

// Update applies partial-update operations to matching records. Each
// touched record gets a fresh _updatedAt stamp and flows through the save
// hooks individually; the update hooks bracket the whole call.
func (r *Resource) Update(ctx context.Context, q query.Query, ops query.Operations, opts UpdateOptions) ([]record.Record, error) {
	if err := r.store.Ready(ctx); err != nil {
		return nil, err
	}

	if err := r.schema.RunBefore(ctx, r.hctx, &schema.Event{Name: schema.EventUpdate, Query: q, Operations: ops}); err != nil {
		return nil, err
	}

	var updated []record.Record
	err := r.store.Each(ctx, r.Name, q, ports.EachOptions{Multi: opts.Multi}, func(old record.Record) error {
		next := ops.Apply(old)
		next[record.FieldUpdatedAt] = r.clock.Now().UnixMilli()

		if err := r.schema.RunBefore(ctx, r.hctx, &schema.Event{Name: schema.EventSave, Record: next, OldRecord: old}); err != nil {
			return err
		}

		results, err := r.store.Update(ctx, r.Name, query.ByID(old.ID()), query.Set(next), ports.UpdateOptions{Multi: false})
		if err != nil {
			return err
		}
		if len(results) > 0 {
			next = results[0]
		}

		if err := r.schema.RunAfter(ctx, r.hctx, &schema.Event{Name: schema.EventUpdate, Record: next, Query: q, Operations: ops}, schema.EventSave); err != nil {
			return err
		}

		updated = append(updated, next)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateOne updates the record with the given id, verifying existence
// first, and returns the refreshed record.
func (r *Resource) UpdateOne(ctx context.Context, id string, ops query.Operations) (record.Record, error) {
	existing, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, apierror.ErrResourceNotFound
	}
	if _, err := r.Update(ctx, query.ByID(id), ops, UpdateOptions{Multi: false}); err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

// MergeOptions tunes a merge.
type MergeOptions struct {
	SkipValidation bool
}

// MergeOne merges the payload into the record with the given id. The
// payload is validated as a partial update (required checks suppressed).
func (r *Resource) MergeOne(ctx context.Context, id string, payload record.Record, opts MergeOptions) (record.Record, error) {
	data := payload
	if !opts.SkipValidation {
		var err error
		data, err = r.Validate(ctx, payload, true)
		if err != nil {
			return nil, err
		}
	}
	return r.UpdateOne(ctx, id, query.Set(data))
}

// Upsert updates every match, or creates a new record when nothing
// matches.
func (r *Resource) Upsert(ctx context.Context, q query.Query, payload record.Record) ([]record.Record, error) {
	existing, err := r.FindOne(ctx, q)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return r.Update(ctx, q, query.Set(payload), UpdateOptions{Multi: true})
	}
	created, err := r.Create(ctx, payload, CreateOptions{})
	if err != nil {
		return nil, err
	}
	return []record.Record{created}, nil
}

// UpsertOne updates the first match, or creates a new record.
func (r *Resource) UpsertOne(ctx context.Context, q query.Query, payload record.Record) (record.Record, error) {
	existing, err := r.FindOne(ctx, q)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return r.UpdateOne(ctx, existing.ID(), query.Set(payload))
	}
	return r.Create(ctx, payload, CreateOptions{})
}

// RemoveOptions controls how many matches a remove deletes.
type RemoveOptions struct {
	Multi bool
}

// Remove deletes matching records, bracketed by the remove hooks. The
// after hook receives the removed count.
func (r *Resource) Remove(ctx context.Context, q query.Query, opts RemoveOptions) (int, error) {
	if err := r.store.Ready(ctx); err != nil {
		return 0, err
	}

	if err := r.schema.RunBefore(ctx, r.hctx, &schema.Event{Name: schema.EventRemove, Query: q}); err != nil {
		return 0, err
	}

	removed, err := r.store.Remove(ctx, r.Name, q, ports.RemoveOptions{Multi: opts.Multi})
	if err != nil {
		return removed, err
	}

	if err := r.schema.RunAfter(ctx, r.hctx, &schema.Event{Name: schema.EventRemove, Query: q, RemovedCount: removed}); err != nil {
		return removed, err
	}

	return removed, nil
}

// RemoveOne deletes a record by id.
func (r *Resource) RemoveOne(ctx context.Context, id string) (int, error) {
	return r.Remove(ctx, query.ByID(id), RemoveOptions{Multi: false})
}

// Drop wipes the whole collection. Only permitted in test mode; anywhere
// else this is fatal misconfiguration, not a soft failure.
func (r *Resource) Drop(ctx context.Context) error {
	if !r.testMode {
		return apierror.New(500, "dropping a collection is only allowed in test mode")
	}
	if err := r.store.Ready(ctx); err != nil {
		return err
	}
	_, err := r.store.Remove(ctx, r.Name, query.Query{}, ports.RemoveOptions{Multi: true})
	return err
}
