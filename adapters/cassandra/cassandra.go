// Package cassandra provides the remote document-database implementation
// of ports.Store. Each collection maps to a table of (id, doc) rows plus a
// claims table enforcing unique fields through lightweight transactions,
// since the database has no unique indexes of its own.
package cassandra

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gocql/gocql"
	"github.com/rs/zerolog"

	"github.com/artpar/recordbase/domain/query"
	"github.com/artpar/recordbase/domain/record"
	"github.com/artpar/recordbase/pkg/apierror"
	"github.com/artpar/recordbase/ports"
)

var identPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Config holds the connection settings.
type Config struct {
	Hosts    []string
	Keyspace string
	Timeout  time.Duration
}

// Store is a Cassandra-backed implementation of ports.Store.
type Store struct {
	session  *gocql.Session
	keyspace string
	logger   zerolog.Logger

	mu      sync.Mutex
	tables  map[string]bool            // ensured collections
	uniques map[string]map[string]bool // collection -> unique fields
}

// Connect establishes the session, creating the keyspace if absent.
func Connect(cfg Config, logger zerolog.Logger) (*Store, error) {
	if len(cfg.Hosts) == 0 {
		return nil, fmt.Errorf("cassandra: no hosts configured")
	}
	if !identPattern.MatchString(cfg.Keyspace) {
		return nil, fmt.Errorf("cassandra: invalid keyspace %q", cfg.Keyspace)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	// Keyspace bootstrap needs a session without a default keyspace.
	boot := gocql.NewCluster(cfg.Hosts...)
	boot.Timeout = timeout
	bootSession, err := boot.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("cassandra: connect: %w", err)
	}
	err = bootSession.Query(fmt.Sprintf(
		"CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': 1}",
		cfg.Keyspace,
	)).Exec()
	bootSession.Close()
	if err != nil {
		return nil, fmt.Errorf("cassandra: create keyspace: %w", err)
	}

	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Timeout = timeout
	cluster.Consistency = gocql.Quorum
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("cassandra: connect keyspace: %w", err)
	}

	return &Store{
		session:  session,
		keyspace: cfg.Keyspace,
		logger:   logger,
		tables:   map[string]bool{},
		uniques:  map[string]map[string]bool{},
	}, nil
}

func tableName(collection string) string {
	// Reserved collections start with an underscore, which is not a legal
	// leading character for an unquoted identifier.
	return "c_" + collection
}

func claimsName(collection string) string {
	return "u_" + collection
}

func (s *Store) ensureTable(ctx context.Context, collection string) error {
	if !identPattern.MatchString(strings.TrimPrefix(collection, "_")) {
		return fmt.Errorf("cassandra: invalid collection name %q", collection)
	}

	s.mu.Lock()
	ensured := s.tables[collection]
	s.mu.Unlock()
	if ensured {
		return nil
	}

	stmts := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id text PRIMARY KEY, doc text)", tableName(collection)),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (field text, value text, id text, PRIMARY KEY ((field, value)))", claimsName(collection)),
	}
	for _, stmt := range stmts {
		if err := s.session.Query(stmt).WithContext(ctx).Exec(); err != nil {
			return fmt.Errorf("cassandra: ensure %s: %w", collection, err)
		}
	}

	s.mu.Lock()
	s.tables[collection] = true
	s.mu.Unlock()
	return nil
}

// SetIndex records the field as unique. Non-unique indexes are a no-op:
// lookups are client-side matches over a table scan either way.
func (s *Store) SetIndex(ctx context.Context, collection, field string, opts ports.IndexOptions) error {
	if err := s.ensureTable(ctx, collection); err != nil {
		return err
	}
	if !opts.Unique {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uniques[collection] == nil {
		s.uniques[collection] = map[string]bool{}
	}
	s.uniques[collection][field] = true
	return nil
}

func (s *Store) uniqueFields(collection string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for field := range s.uniques[collection] {
		out = append(out, field)
	}
	return out
}

// claim reserves (field, value) for id through a lightweight transaction.
func (s *Store) claim(ctx context.Context, collection, field string, value any, id string) error {
	applied, err := s.session.Query(
		fmt.Sprintf("INSERT INTO %s (field, value, id) VALUES (?, ?, ?) IF NOT EXISTS", claimsName(collection)),
		field, claimKey(value), id,
	).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return fmt.Errorf("cassandra: claim %s.%s: %w", collection, field, err)
	}
	if !applied {
		// The claim may be our own (idempotent retry).
		var owner string
		err := s.session.Query(
			fmt.Sprintf("SELECT id FROM %s WHERE field = ? AND value = ?", claimsName(collection)),
			field, claimKey(value),
		).WithContext(ctx).Scan(&owner)
		if err == nil && owner == id {
			return nil
		}
		return apierror.Conflict(field)
	}
	return nil
}

func (s *Store) release(ctx context.Context, collection, field string, value any) {
	err := s.session.Query(
		fmt.Sprintf("DELETE FROM %s WHERE field = ? AND value = ?", claimsName(collection)),
		field, claimKey(value),
	).WithContext(ctx).Exec()
	if err != nil {
		s.logger.Warn().Err(err).Str("collection", collection).Str("field", field).
			Msg("failed to release unique claim")
	}
}

func claimKey(value any) string {
	return fmt.Sprintf("%v", value)
}

// Find returns matching records.
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

// Each pages through the collection with a live cursor: later pages may
// observe writes made after iteration started. This differs from the disk
// adapter's snapshot semantics and is accepted, not hidden.
func (s *Store) Each(ctx context.Context, collection string, q query.Query, opts ports.EachOptions, fn func(record.Record) error) error {
	if err := s.ensureTable(ctx, collection); err != nil {
		return err
	}
	iter := s.session.Query(
		fmt.Sprintf("SELECT doc FROM %s", tableName(collection)),
	).WithContext(ctx).PageSize(100).Iter()

	var doc string
	for iter.Scan(&doc) {
		r, err := unmarshalRecord(doc)
		if err != nil {
			iter.Close()
			return err
		}
		if !q.Match(r) {
			continue
		}
		if err := fn(r); err != nil {
			iter.Close()
			return err
		}
		if !opts.Multi {
			break
		}
	}
	return iter.Close()
}

// Insert stores a new record, claiming unique values first.
func (s *Store) Insert(ctx context.Context, collection string, r record.Record) (record.Record, error) {
	if err := s.ensureTable(ctx, collection); err != nil {
		return nil, err
	}

	var claimed []string
	for _, field := range s.uniqueFields(collection) {
		value, ok := r[field]
		if !ok || value == nil {
			continue
		}
		if err := s.claim(ctx, collection, field, value, r.ID()); err != nil {
			for _, c := range claimed {
				s.release(ctx, collection, c, r[c])
			}
			return nil, err
		}
		claimed = append(claimed, field)
	}

	doc, err := marshalRecord(r)
	if err != nil {
		return nil, err
	}
	err = s.session.Query(
		fmt.Sprintf("INSERT INTO %s (id, doc) VALUES (?, ?)", tableName(collection)),
		r.ID(), doc,
	).WithContext(ctx).Exec()
	if err != nil {
		for _, c := range claimed {
			s.release(ctx, collection, c, r[c])
		}
		return nil, fmt.Errorf("cassandra: insert into %s: %w", collection, err)
	}
	return r.Clone(), nil
}

// Update applies the operations to matching records one at a time,
// migrating unique claims when an indexed value changes.
func (s *Store) Update(ctx context.Context, collection string, q query.Query, ops query.Operations, opts ports.UpdateOptions) ([]record.Record, error) {
	matches, err := s.matches(ctx, collection, q)
	if err != nil {
		return nil, err
	}

	var updated []record.Record
	for _, r := range matches {
		next := ops.Apply(r)

		for _, field := range s.uniqueFields(collection) {
			oldValue, newValue := r[field], next[field]
			if newValue == nil || claimKey(oldValue) == claimKey(newValue) {
				continue
			}
			if err := s.claim(ctx, collection, field, newValue, r.ID()); err != nil {
				return nil, err
			}
			if oldValue != nil {
				s.release(ctx, collection, field, oldValue)
			}
		}

		doc, err := marshalRecord(next)
		if err != nil {
			return nil, err
		}
		err = s.session.Query(
			fmt.Sprintf("UPDATE %s SET doc = ? WHERE id = ?", tableName(collection)),
			doc, r.ID(),
		).WithContext(ctx).Exec()
		if err != nil {
			return nil, fmt.Errorf("cassandra: update %s: %w", collection, err)
		}
		updated = append(updated, next)
		if !opts.Multi {
			break
		}
	}
	return updated, nil
}

// Remove deletes matching records and releases their unique claims.
func (s *Store) Remove(ctx context.Context, collection string, q query.Query, opts ports.RemoveOptions) (int, error) {
	matches, err := s.matches(ctx, collection, q)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, r := range matches {
		for _, field := range s.uniqueFields(collection) {
			if value := r[field]; value != nil {
				s.release(ctx, collection, field, value)
			}
		}
		err := s.session.Query(
			fmt.Sprintf("DELETE FROM %s WHERE id = ?", tableName(collection)),
			r.ID(),
		).WithContext(ctx).Exec()
		if err != nil {
			return removed, fmt.Errorf("cassandra: delete from %s: %w", collection, err)
		}
		removed++
		if !opts.Multi {
			break
		}
	}
	return removed, nil
}

// Ready verifies the session is still usable.
func (s *Store) Ready(ctx context.Context) error {
	if s.session.Closed() {
		return fmt.Errorf("cassandra: session closed")
	}
	return nil
}

// Close releases the session.
func (s *Store) Close() error {
	s.session.Close()
	return nil
}

func (s *Store) matches(ctx context.Context, collection string, q query.Query) ([]record.Record, error) {
	if err := s.ensureTable(ctx, collection); err != nil {
		return nil, err
	}

	if id := q.ID(); id != "" {
		var doc string
		err := s.session.Query(
			fmt.Sprintf("SELECT doc FROM %s WHERE id = ?", tableName(collection)),
			id,
		).WithContext(ctx).Scan(&doc)
		if err == gocql.ErrNotFound {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("cassandra: get %s/%s: %w", collection, id, err)
		}
		r, err := unmarshalRecord(doc)
		if err != nil {
			return nil, err
		}
		return []record.Record{r}, nil
	}

	iter := s.session.Query(
		fmt.Sprintf("SELECT doc FROM %s", tableName(collection)),
	).WithContext(ctx).Iter()

	var out []record.Record
	var doc string
	for iter.Scan(&doc) {
		r, err := unmarshalRecord(doc)
		if err != nil {
			iter.Close()
			return nil, err
		}
		if q.Match(r) {
			out = append(out, r)
		}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("cassandra: scan %s: %w", collection, err)
	}
	return out, nil
}
