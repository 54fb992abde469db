// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"io"
	"time"

	"github.com/artpar/recordbase/domain/query"
	"github.com/artpar/recordbase/domain/record"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// Hasher provides password hashing.
type Hasher interface {
	// Hash generates a hash from a plaintext value.
	Hash(plaintext string) ([]byte, error)

	// Compare checks if plaintext matches hash.
	Compare(hash []byte, plaintext string) bool
}

// -----------------------------------------------------------------------------
// Document Store Port
// -----------------------------------------------------------------------------

// IndexOptions configures a field index.
type IndexOptions struct {
	Unique bool
}

// FindOptions paginates a find. Limit <= 0 means no limit.
type FindOptions struct {
	Skip  int
	Limit int
}

// UpdateOptions controls how many matches an update touches.
type UpdateOptions struct {
	Multi bool
}

// RemoveOptions controls how many matches a remove deletes.
type RemoveOptions struct {
	Multi bool
}

// EachOptions controls bulk iteration.
type EachOptions struct {
	Multi bool
}

// Store is a pluggable document store. All operations are scoped to a named
// collection; collections spring into existence on first use.
//
// Unique-index violations on Insert and Update must surface as an
// apierror 409 conflict naming the field, not a generic failure.
type Store interface {
	// SetIndex declares an index on a collection field.
	SetIndex(ctx context.Context, collection, field string, opts IndexOptions) error

	// Find returns records matching the query.
	Find(ctx context.Context, collection string, q query.Query, opts FindOptions) ([]record.Record, error)

	// Count returns the number of records matching the query.
	Count(ctx context.Context, collection string, q query.Query) (int, error)

	// Each invokes fn once per matching record without materializing the
	// full result set. Consistency during iteration is adapter-specific:
	// the disk and memory adapters snapshot matching ids at iteration
	// start, the cassandra adapter pages a live cursor whose later pages
	// may observe newer writes. A fn error aborts the iteration.
	Each(ctx context.Context, collection string, q query.Query, opts EachOptions, fn func(record.Record) error) error

	// Insert stores a new record and returns the stored form.
	Insert(ctx context.Context, collection string, r record.Record) (record.Record, error)

	// Update applies partial-update operations to matching records and
	// returns the updated records.
	Update(ctx context.Context, collection string, q query.Query, ops query.Operations, opts UpdateOptions) ([]record.Record, error)

	// Remove deletes matching records and returns the removed count.
	Remove(ctx context.Context, collection string, q query.Query, opts RemoveOptions) (int, error)

	// Ready blocks until the adapter is connected and usable.
	Ready(ctx context.Context) error

	// Close releases the adapter's resources.
	Close() error
}

// -----------------------------------------------------------------------------
// Blob Store Port
// -----------------------------------------------------------------------------

// BlobInfo describes a stored blob.
type BlobInfo struct {
	File      string // storage identifier, unique per blob
	MimeType  string
	Size      int64
	CreatedAt int64 // epoch milliseconds
}

// BlobStore persists attachment content, addressed by the File identifier
// returned from Save. It is independent of the document Store; a crash
// between a blob write and the record update referencing it can orphan the
// blob (documented failure mode, no automatic garbage collection).
type BlobStore interface {
	// Save stores the stream under a collision-safe name derived from name.
	Save(ctx context.Context, name string, r io.Reader) (BlobInfo, error)

	// Stream opens the blob for reading. The caller closes it.
	Stream(ctx context.Context, fileID string) (io.ReadCloser, error)

	// Delete removes the blob.
	Delete(ctx context.Context, fileID string) error

	// Ready blocks until the store is usable.
	Ready(ctx context.Context) error

	// Close releases the store's resources.
	Close() error
}
