package memory_test

import (
	"context"
	"testing"

	"github.com/artpar/recordbase/adapters/memory"
	"github.com/artpar/recordbase/domain/query"
	"github.com/artpar/recordbase/domain/record"
	"github.com/artpar/recordbase/pkg/apierror"
	"github.com/artpar/recordbase/ports"
)

func insertN(t *testing.T, s *memory.Store, name string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := s.Insert(context.Background(), name, record.Record{
			"_id": string(rune('a' + i)),
			"n":   i,
		})
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
}

func TestFind_InsertionOrderAndPagination(t *testing.T) {
	s := memory.New()
	insertN(t, s, "items", 5)

	all, err := s.Find(context.Background(), "items", query.Query{}, ports.FindOptions{})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("len = %d, want 5", len(all))
	}
	if all[0].ID() != "a" || all[4].ID() != "e" {
		t.Error("records should come back in insertion order")
	}

	page, err := s.Find(context.Background(), "items", query.Query{}, ports.FindOptions{Skip: 2, Limit: 2})
	if err != nil {
		t.Fatalf("Find paged: %v", err)
	}
	if len(page) != 2 || page[0].ID() != "c" || page[1].ID() != "d" {
		t.Errorf("page = %v, want c,d", page)
	}

	empty, err := s.Find(context.Background(), "items", query.Query{}, ports.FindOptions{Skip: 10, Limit: 2})
	if err != nil {
		t.Fatalf("Find past end: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("past-end page len = %d, want 0", len(empty))
	}
}

func TestFind_ReturnsCopies(t *testing.T) {
	s := memory.New()
	insertN(t, s, "items", 1)

	out, _ := s.Find(context.Background(), "items", query.ByID("a"), ports.FindOptions{})
	out[0]["n"] = 99

	again, _ := s.Find(context.Background(), "items", query.ByID("a"), ports.FindOptions{})
	if again[0]["n"] == 99 {
		t.Error("mutating a result must not leak into the store")
	}
}

func TestCount(t *testing.T) {
	s := memory.New()
	insertN(t, s, "items", 4)

	n, err := s.Count(context.Background(), "items", query.Query{"n": 2})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}

	n, _ = s.Count(context.Background(), "missing", query.Query{})
	if n != 0 {
		t.Errorf("Count on unknown collection = %d, want 0", n)
	}
}

func TestInsert_UniqueConflict(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	if err := s.SetIndex(ctx, "users", "username", ports.IndexOptions{Unique: true}); err != nil {
		t.Fatalf("SetIndex: %v", err)
	}
	if _, err := s.Insert(ctx, "users", record.Record{"_id": "1", "username": "alice"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	_, err := s.Insert(ctx, "users", record.Record{"_id": "2", "username": "alice"})
	if !apierror.IsConflict(err) {
		t.Fatalf("err = %v, want 409 conflict", err)
	}
	if err.Error() != "username is already in use" {
		t.Errorf("message = %q", err.Error())
	}
}

func TestUpdate_UniqueConflictAndSelfUpdate(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	s.SetIndex(ctx, "users", "username", ports.IndexOptions{Unique: true})
	s.Insert(ctx, "users", record.Record{"_id": "1", "username": "alice"})
	s.Insert(ctx, "users", record.Record{"_id": "2", "username": "bob"})

	// Updating a record to its own current value is not a conflict.
	if _, err := s.Update(ctx, "users", query.ByID("1"), query.Set(record.Record{"username": "alice"}), ports.UpdateOptions{}); err != nil {
		t.Fatalf("self update: %v", err)
	}

	_, err := s.Update(ctx, "users", query.ByID("2"), query.Set(record.Record{"username": "alice"}), ports.UpdateOptions{})
	if !apierror.IsConflict(err) {
		t.Fatalf("err = %v, want conflict", err)
	}
}

func TestUpdate_MultiControlsFanout(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	insertN(t, s, "items", 3)

	one, err := s.Update(ctx, "items", query.Query{}, query.Set(record.Record{"seen": true}), ports.UpdateOptions{Multi: false})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(one) != 1 {
		t.Errorf("single update touched %d records, want 1", len(one))
	}

	all, err := s.Update(ctx, "items", query.Query{}, query.Set(record.Record{"seen": true}), ports.UpdateOptions{Multi: true})
	if err != nil {
		t.Fatalf("Update multi: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("multi update touched %d records, want 3", len(all))
	}
}

func TestRemove(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	insertN(t, s, "items", 3)

	n, err := s.Remove(ctx, "items", query.Query{}, ports.RemoveOptions{Multi: false})
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if n != 1 {
		t.Errorf("single remove = %d, want 1", n)
	}

	n, _ = s.Remove(ctx, "items", query.Query{}, ports.RemoveOptions{Multi: true})
	if n != 2 {
		t.Errorf("multi remove = %d, want 2", n)
	}

	left, _ := s.Count(ctx, "items", query.Query{})
	if left != 0 {
		t.Errorf("count after removal = %d, want 0", left)
	}
}

func TestEach_SnapshotSkipsConcurrentRemovals(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	insertN(t, s, "items", 3)

	var visited []string
	err := s.Each(ctx, "items", query.Query{}, ports.EachOptions{Multi: true}, func(r record.Record) error {
		visited = append(visited, r.ID())
		if r.ID() == "a" {
			// Remove a later record mid-iteration; it must be skipped.
			if _, err := s.Remove(ctx, "items", query.ByID("c"), ports.RemoveOptions{}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Each: %v", err)
	}
	if len(visited) != 2 || visited[0] != "a" || visited[1] != "b" {
		t.Errorf("visited = %v, want [a b]", visited)
	}
}

func TestEach_SingleStopsAfterFirst(t *testing.T) {
	s := memory.New()
	insertN(t, s, "items", 3)

	count := 0
	s.Each(context.Background(), "items", query.Query{}, ports.EachOptions{Multi: false}, func(record.Record) error {
		count++
		return nil
	})
	if count != 1 {
		t.Errorf("visited %d records, want 1", count)
	}
}
