package query_test

import (
	"reflect"
	"testing"

	"github.com/artpar/recordbase/domain/query"
	"github.com/artpar/recordbase/domain/record"
)

func TestApply_Set(t *testing.T) {
	r := record.Record{"_id": "1", "name": "old", "kept": true}

	out := query.Set(record.Record{"name": "new"}).Apply(r)

	if out["name"] != "new" {
		t.Errorf("name = %v, want new", out["name"])
	}
	if out["kept"] != true {
		t.Error("untouched field should survive $set")
	}
	if r["name"] != "old" {
		t.Error("Apply must not mutate the input record")
	}
}

func TestApply_WholeDocumentReplacement(t *testing.T) {
	r := record.Record{"_id": "1", "_createdAt": int64(5), "name": "old", "extra": 1}

	out := query.Operations{"name": "new"}.Apply(r)

	if out["name"] != "new" {
		t.Errorf("name = %v, want new", out["name"])
	}
	if _, ok := out["extra"]; ok {
		t.Error("replacement should drop user fields not in the document")
	}
	if out["_id"] != "1" || out["_createdAt"] != int64(5) {
		t.Error("replacement must keep reserved properties")
	}
}

func TestApply_Push(t *testing.T) {
	r := record.Record{"tags": []any{"a"}}

	out := query.Operations{"$push": map[string]any{"tags": "b"}}.Apply(r)

	want := []any{"a", "b"}
	if !reflect.DeepEqual(out["tags"], want) {
		t.Errorf("tags = %v, want %v", out["tags"], want)
	}
}

func TestApply_PushToMissingFieldCreatesList(t *testing.T) {
	out := query.Operations{"$push": map[string]any{"tags": "a"}}.Apply(record.Record{})

	want := []any{"a"}
	if !reflect.DeepEqual(out["tags"], want) {
		t.Errorf("tags = %v, want %v", out["tags"], want)
	}
}

func TestApply_PullScalar(t *testing.T) {
	r := record.Record{"tags": []any{"a", "b", "a"}}

	out := query.Operations{"$pull": map[string]any{"tags": "a"}}.Apply(r)

	want := []any{"b"}
	if !reflect.DeepEqual(out["tags"], want) {
		t.Errorf("tags = %v, want %v", out["tags"], want)
	}
}

func TestApply_PullBySubdocumentMatch(t *testing.T) {
	r := record.Record{"_attachments": []any{
		map[string]any{"id": "f1", "name": "one.txt"},
		map[string]any{"id": "f2", "name": "two.txt"},
	}}

	out := query.Operations{"$pull": map[string]any{"_attachments": map[string]any{"id": "f1"}}}.Apply(r)

	list, _ := out["_attachments"].([]any)
	if len(list) != 1 {
		t.Fatalf("len(_attachments) = %d, want 1", len(list))
	}
	if m := list[0].(map[string]any); m["id"] != "f2" {
		t.Errorf("remaining attachment id = %v, want f2", m["id"])
	}
}

func TestApply_UnknownOperatorIgnored(t *testing.T) {
	r := record.Record{"n": 1}

	out := query.Operations{
		"$set": map[string]any{"n": 2},
		"$inc": map[string]any{"n": 5},
	}.Apply(r)

	if got, _ := out["n"].(int); got != 2 {
		t.Errorf("n = %v, want 2 ($inc must be ignored)", out["n"])
	}
}
