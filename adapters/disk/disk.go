// Package disk provides the embedded document store: one SQLite file per
// collection under the configured data directory, each holding a single
// table of JSON documents. Unique fields are enforced by the engine
// through json_extract expression indexes.
package disk

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/artpar/recordbase/domain/query"
	"github.com/artpar/recordbase/domain/record"
	"github.com/artpar/recordbase/pkg/apierror"
	"github.com/artpar/recordbase/ports"
)

var fieldNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store is a disk-backed implementation of ports.Store.
type Store struct {
	mu      sync.Mutex
	dataDir string
	dbs     map[string]*sql.DB
	logger  zerolog.Logger
}

// Open creates the data directory if needed and returns the store.
// Collection files open lazily on first use.
func Open(dataDir string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{
		dataDir: dataDir,
		dbs:     map[string]*sql.DB{},
		logger:  logger,
	}, nil
}

func (s *Store) db(collection string) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if db, ok := s.dbs[collection]; ok {
		return db, nil
	}

	path := filepath.Join(s.dataDir, collection+".db")
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open collection %s: %w", collection, err)
	}

	// Set pragmas for performance
	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			id  TEXT PRIMARY KEY,
			doc TEXT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create records table: %w", err)
	}

	s.dbs[collection] = db
	return db, nil
}

// SetIndex creates a (unique) expression index over the JSON field.
func (s *Store) SetIndex(ctx context.Context, collection, field string, opts ports.IndexOptions) error {
	if !fieldNamePattern.MatchString(field) {
		return fmt.Errorf("invalid index field name %q", field)
	}
	db, err := s.db(collection)
	if err != nil {
		return err
	}

	unique := ""
	if opts.Unique {
		unique = "UNIQUE "
	}
	stmt := fmt.Sprintf(
		"CREATE %sINDEX IF NOT EXISTS idx_records_%s ON records(json_extract(doc, '$.%s'))",
		unique, field, field,
	)
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create index on %s.%s: %w", collection, field, err)
	}
	return nil
}

// Find returns matching records in insertion order. Plain id lookups hit
// the primary key; everything else scans and matches client-side.
func (s *Store) Find(ctx context.Context, collection string, q query.Query, opts ports.FindOptions) ([]record.Record, error) {
	matches, err := s.matches(ctx, collection, q)
	if err != nil {
		return nil, err
	}
	if opts.Skip > 0 {
		if opts.Skip >= len(matches) {
			return []record.Record{}, nil
		}
		matches = matches[opts.Skip:]
	}
	if opts.Limit > 0 && opts.Limit < len(matches) {
		matches = matches[:opts.Limit]
	}
	return matches, nil
}

// Count returns the number of matching records.
func (s *Store) Count(ctx context.Context, collection string, q query.Query) (int, error) {
	matches, err := s.matches(ctx, collection, q)
	if err != nil {
		return 0, err
	}
	return len(matches), nil
}

// Each iterates matching records. The set of matching ids is snapshotted
// at iteration start, so the callback observes the state as of that
// moment even while it mutates the collection.
func (s *Store) Each(ctx context.Context, collection string, q query.Query, opts ports.EachOptions, fn func(record.Record) error) error {
	matches, err := s.matches(ctx, collection, q)
	if err != nil {
		return err
	}
	for _, r := range matches {
		current, err := s.get(ctx, collection, r.ID())
		if err != nil {
			return err
		}
		if current == nil {
			continue // removed mid-iteration
		}
		if err := fn(current); err != nil {
			return err
		}
		if !opts.Multi {
			return nil
		}
	}
	return nil
}

// Insert stores a new record.
func (s *Store) Insert(ctx context.Context, collection string, r record.Record) (record.Record, error) {
	db, err := s.db(collection)
	if err != nil {
		return nil, err
	}
	doc, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	_, err = db.ExecContext(ctx, "INSERT INTO records (id, doc) VALUES (?, ?)", r.ID(), string(doc))
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, apierror.Conflict(violatedField(err))
		}
		return nil, fmt.Errorf("insert into %s: %w", collection, err)
	}
	return s.get(ctx, collection, r.ID())
}

// Update applies the operations to matching records one at a time.
func (s *Store) Update(ctx context.Context, collection string, q query.Query, ops query.Operations, opts ports.UpdateOptions) ([]record.Record, error) {
	db, err := s.db(collection)
	if err != nil {
		return nil, err
	}
	matches, err := s.matches(ctx, collection, q)
	if err != nil {
		return nil, err
	}

	var updated []record.Record
	for _, r := range matches {
		next := ops.Apply(r)
		doc, err := json.Marshal(next)
		if err != nil {
			return nil, fmt.Errorf("marshal record: %w", err)
		}
		_, err = db.ExecContext(ctx, "UPDATE records SET doc = ? WHERE id = ?", string(doc), r.ID())
		if err != nil {
			if isUniqueConstraintError(err) {
				return nil, apierror.Conflict(violatedField(err))
			}
			return nil, fmt.Errorf("update %s: %w", collection, err)
		}
		updated = append(updated, next)
		if !opts.Multi {
			break
		}
	}
	return updated, nil
}

// Remove deletes matching records.
func (s *Store) Remove(ctx context.Context, collection string, q query.Query, opts ports.RemoveOptions) (int, error) {
	db, err := s.db(collection)
	if err != nil {
		return 0, err
	}
	matches, err := s.matches(ctx, collection, q)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, r := range matches {
		res, err := db.ExecContext(ctx, "DELETE FROM records WHERE id = ?", r.ID())
		if err != nil {
			return removed, fmt.Errorf("delete from %s: %w", collection, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			removed++
		}
		if !opts.Multi {
			break
		}
	}
	return removed, nil
}

// Ready reports the store usable; files open lazily.
func (s *Store) Ready(ctx context.Context) error {
	return nil
}

// Close closes every open collection file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for name, db := range s.dbs {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.dbs, name)
	}
	return firstErr
}

func (s *Store) get(ctx context.Context, collection, id string) (record.Record, error) {
	db, err := s.db(collection)
	if err != nil {
		return nil, err
	}
	var doc string
	err = db.QueryRowContext(ctx, "SELECT doc FROM records WHERE id = ?", id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return unmarshalRecord(doc)
}

func (s *Store) matches(ctx context.Context, collection string, q query.Query) ([]record.Record, error) {
	if id := q.ID(); id != "" {
		r, err := s.get(ctx, collection, id)
		if err != nil || r == nil {
			return nil, err
		}
		return []record.Record{r}, nil
	}

	db, err := s.db(collection)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, "SELECT doc FROM records ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", collection, err)
	}
	defer rows.Close()

	var out []record.Record
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r, err := unmarshalRecord(doc)
		if err != nil {
			return nil, err
		}
		if q.Match(r) {
			out = append(out, r)
		}
	}
	return out, rows.Err()
}

func unmarshalRecord(doc string) (record.Record, error) {
	var r record.Record
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return r, nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var indexNamePattern = regexp.MustCompile(`idx_records_([A-Za-z0-9_]+)`)

// violatedField recovers the field name from the violated index so the
// conflict error can name it.
func violatedField(err error) string {
	if m := indexNamePattern.FindStringSubmatch(err.Error()); m != nil {
		return m[1]
	}
	if strings.Contains(err.Error(), "records.id") {
		return record.FieldID
	}
	return "value"
}
