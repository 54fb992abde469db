package resource_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/artpar/recordbase/core/resource"
	"github.com/artpar/recordbase/core/schema"
	"github.com/artpar/recordbase/domain/query"
	"github.com/artpar/recordbase/domain/record"
)

func traceHook(trace *[]string, label string) schema.Hook {
	return func(ctx context.Context, e *schema.Event) error {
		*trace = append(*trace, label)
		return nil
	}
}

func TestCreate_FiresCreateThenSaveHooks(t *testing.T) {
	s := schema.MustNew(noteFields())
	var trace []string
	s.Before(schema.EventCreate, traceHook(&trace, "before:create"))
	s.Before(schema.EventSave, traceHook(&trace, "before:save"))
	s.After(schema.EventCreate, traceHook(&trace, "after:create"))
	s.After(schema.EventSave, traceHook(&trace, "after:save"))

	f := newFixture(t)
	r, err := resource.New(context.Background(), "things", s, f.opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := r.Create(context.Background(), record.Record{"title": "x"}, resource.CreateOptions{}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	want := []string{"before:create", "before:save", "after:create", "after:save"}
	if !reflect.DeepEqual(trace, want) {
		t.Errorf("trace = %v, want %v", trace, want)
	}
}

func TestUpdate_SaveHooksSeeOldAndNew(t *testing.T) {
	s := schema.MustNew(noteFields())

	var oldTitle, newTitle any
	s.Before(schema.EventSave, func(ctx context.Context, e *schema.Event) error {
		if e.OldRecord != nil {
			oldTitle = e.OldRecord["title"]
			newTitle = e.Record["title"]
		}
		return nil
	})

	f := newFixture(t)
	r, _ := resource.New(context.Background(), "things", s, f.opts)
	ctx := context.Background()

	rec, _ := r.Create(ctx, record.Record{"title": "v1"}, resource.CreateOptions{})
	if _, err := r.UpdateOne(ctx, rec.ID(), query.Set(record.Record{"title": "v2"})); err != nil {
		t.Fatalf("UpdateOne: %v", err)
	}

	if oldTitle != "v1" || newTitle != "v2" {
		t.Errorf("save hook saw old=%v new=%v, want v1/v2", oldTitle, newTitle)
	}
}

func TestUpdate_BeforeHookMutationPersists(t *testing.T) {
	s := schema.MustNew(schema.Fields{
		"title":    {Type: schema.FieldTypeText, Required: true},
		"revision": {Type: schema.FieldTypeNumber},
	})
	s.Before(schema.EventSave, func(ctx context.Context, e *schema.Event) error {
		if e.OldRecord == nil {
			return nil
		}
		prev, _ := e.OldRecord["revision"].(int)
		e.Record["revision"] = prev + 1
		return nil
	})

	f := newFixture(t)
	r, _ := resource.New(context.Background(), "things", s, f.opts)
	ctx := context.Background()

	rec, _ := r.Create(ctx, record.Record{"title": "x", "revision": 0}, resource.CreateOptions{})
	updated, err := r.UpdateOne(ctx, rec.ID(), query.Set(record.Record{"title": "y"}))
	if err != nil {
		t.Fatalf("UpdateOne: %v", err)
	}
	if updated["revision"] != 1 {
		t.Errorf("revision = %v, want 1 (hook mutation must be stored)", updated["revision"])
	}
}

func TestRemove_AfterHookReceivesCount(t *testing.T) {
	s := schema.MustNew(noteFields())

	var count int
	s.After(schema.EventRemove, func(ctx context.Context, e *schema.Event) error {
		count = e.RemovedCount
		return nil
	})

	f := newFixture(t)
	r, _ := resource.New(context.Background(), "things", s, f.opts)
	ctx := context.Background()

	r.Create(ctx, record.Record{"title": "a"}, resource.CreateOptions{})
	r.Create(ctx, record.Record{"title": "b"}, resource.CreateOptions{})
	if _, err := r.Remove(ctx, query.Query{}, resource.RemoveOptions{Multi: true}); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if count != 2 {
		t.Errorf("after(remove) count = %d, want 2", count)
	}
}

func TestFind_HookErrorAborts(t *testing.T) {
	s := schema.MustNew(noteFields())
	s.Before(schema.EventFind, func(ctx context.Context, e *schema.Event) error {
		return context.Canceled
	})

	f := newFixture(t)
	r, _ := resource.New(context.Background(), "things", s, f.opts)

	if _, _, err := r.Find(context.Background(), query.Query{}, resource.FindOptions{}); err == nil {
		t.Fatal("hook error must abort the find")
	}
}
