package schema_test

import (
	"context"
	"strings"
	"testing"

	"github.com/artpar/recordbase/core/schema"
	"github.com/artpar/recordbase/domain/record"
)

func TestNew_ResolvesAliases(t *testing.T) {
	s, err := schema.New(schema.Fields{
		"title": {Type: "string"},
		"meta":  {Type: "json"},
		"kind":  {Type: "enum", Options: []string{"a", "b"}},
		"tags":  {Type: "list", Items: &schema.Field{Type: "string"}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	want := map[string]schema.FieldType{
		"title": schema.FieldTypeText,
		"meta":  schema.FieldTypeObject,
		"kind":  schema.FieldTypeSelect,
		"tags":  schema.FieldTypeArray,
	}
	for name, typ := range want {
		f, ok := s.Field(name)
		if !ok {
			t.Fatalf("field %s missing", name)
		}
		if f.Type != typ {
			t.Errorf("field %s type = %s, want %s", name, f.Type, typ)
		}
	}
	if f, _ := s.Field("tags"); f.Items.Type != schema.FieldTypeText {
		t.Errorf("tags items type = %s, want text", f.Items.Type)
	}
}

func TestNew_UnknownTypeFailsAtDefinitionTime(t *testing.T) {
	_, err := schema.New(schema.Fields{"x": {Type: "widget"}})
	if err == nil {
		t.Fatal("expected error for unknown field type")
	}
	if !strings.Contains(err.Error(), "widget") {
		t.Errorf("error %q should name the offending type", err)
	}
}

func TestIndices(t *testing.T) {
	s := schema.MustNew(schema.Fields{
		"a": {Type: schema.FieldTypeText, Unique: true},
		"b": {Type: schema.FieldTypeText, Index: true},
		"c": {Type: schema.FieldTypeText},
	})

	indices := s.Indices()
	if len(indices) != 2 {
		t.Fatalf("len(Indices) = %d, want 2", len(indices))
	}
	if indices[0].Field != "a" || !indices[0].Unique {
		t.Errorf("indices[0] = %+v, want unique a", indices[0])
	}
	if indices[1].Field != "b" || indices[1].Unique {
		t.Errorf("indices[1] = %+v, want non-unique b", indices[1])
	}
}

func TestValidate_ReservedPropertiesBypassValidation(t *testing.T) {
	s := schema.MustNew(schema.Fields{"name": {Type: schema.FieldTypeText, Required: true}})

	errs, out, err := s.Validate(context.Background(), nil, record.Record{
		"_id":        "keep",
		"_createdAt": int64(7),
		"name":       "x",
	}, schema.ValidateOptions{})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(errs) != 0 {
		t.Fatalf("errs = %v, want none", errs)
	}
	if out.ID() != "keep" || out["_createdAt"] != int64(7) {
		t.Error("reserved properties must be reattached untouched")
	}
}

func TestValidate_ErrorMessages(t *testing.T) {
	s := schema.MustNew(schema.Fields{
		"name":  {Type: schema.FieldTypeText, Required: true},
		"age":   {Type: schema.FieldTypeNumber},
		"email": {Type: schema.FieldTypeEmail},
	})

	tests := []struct {
		name string
		data record.Record
		opts schema.ValidateOptions
		want []string
	}{
		{
			"missing required",
			record.Record{},
			schema.ValidateOptions{},
			[]string{"name is required"},
		},
		{
			"ignore required on update",
			record.Record{},
			schema.ValidateOptions{IgnoreRequired: true},
			nil,
		},
		{
			"wrong type",
			record.Record{"name": "x", "age": "old"},
			schema.ValidateOptions{},
			[]string{"age is not of a type(s) number"},
		},
		{
			"unknown property",
			record.Record{"name": "x", "surprise": 1},
			schema.ValidateOptions{},
			[]string{"surprise is not allowed"},
		},
		{
			"bad email format",
			record.Record{"name": "x", "email": "not-an-email"},
			schema.ValidateOptions{},
			[]string{`email does not conform to the "email" format`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs, _, err := s.Validate(context.Background(), nil, tt.data, tt.opts)
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if len(errs) != len(tt.want) {
				t.Fatalf("errs = %v, want %v", errs, tt.want)
			}
			for i := range tt.want {
				if errs[i] != tt.want[i] {
					t.Errorf("errs[%d] = %q, want %q", i, errs[i], tt.want[i])
				}
			}
		})
	}
}

func TestValidate_NestedObjectPaths(t *testing.T) {
	s := schema.MustNew(schema.Fields{
		"profile": {Type: schema.FieldTypeObject, Schema: schema.Fields{
			"city": {Type: schema.FieldTypeText},
		}},
	})

	errs, _, err := s.Validate(context.Background(), nil, record.Record{
		"profile": map[string]any{"city": 42},
	}, schema.ValidateOptions{})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(errs) != 1 || errs[0] != "profile.city is not of a type(s) string" {
		t.Errorf("errs = %v, want nested dotted path", errs)
	}
}

func TestAllowAdditionalProperties(t *testing.T) {
	s := schema.MustNew(schema.Fields{
		"name": {Type: schema.FieldTypeText, Required: true},
	}).AllowAdditionalProperties()

	errs, _, err := s.Validate(context.Background(), nil, record.Record{
		"name":  "x",
		"extra": map[string]any{"anything": true},
	}, schema.ValidateOptions{})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(errs) != 0 {
		t.Fatalf("errs = %v, want unknown fields accepted", errs)
	}

	// Declared fields keep their validation.
	errs, _, err = s.Validate(context.Background(), nil, record.Record{
		"name": 42,
	}, schema.ValidateOptions{})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(errs) != 1 || errs[0] != "name is not of a type(s) string" {
		t.Errorf("errs = %v, want declared-field type error", errs)
	}
}

func TestValidate_IgnoreRequiredIsRootOnly(t *testing.T) {
	s := schema.MustNew(schema.Fields{
		"title": {Type: schema.FieldTypeText, Required: true},
		"profile": {Type: schema.FieldTypeObject, Schema: schema.Fields{
			"age": {Type: schema.FieldTypeNumber, Required: true},
		}},
	})

	// A partial update may omit top-level fields entirely...
	errs, _, err := s.Validate(context.Background(), nil, record.Record{},
		schema.ValidateOptions{IgnoreRequired: true})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(errs) != 0 {
		t.Fatalf("errs = %v, want none for an empty partial update", errs)
	}

	// ...but a nested object it supplies must still be complete.
	errs, _, err = s.Validate(context.Background(), nil, record.Record{
		"profile": map[string]any{},
	}, schema.ValidateOptions{IgnoreRequired: true})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(errs) != 1 || errs[0] != "profile.age is required" {
		t.Errorf("errs = %v, want nested required error", errs)
	}
}

func TestApplyDefaultsAndCompute(t *testing.T) {
	s := schema.MustNew(schema.Fields{
		"status": {Type: schema.FieldTypeText, Default: "draft"},
		"label": {Type: schema.FieldTypeText, Compute: func(r record.Record) any {
			name, _ := r["status"].(string)
			return "status:" + name
		}},
	})

	out := s.ApplyDefaults(record.Record{})
	if out["status"] != "draft" {
		t.Errorf("default status = %v, want draft", out["status"])
	}

	out = s.ApplyDefaults(record.Record{"status": "live"})
	if out["status"] != "live" {
		t.Error("defaults must not override provided values")
	}

	computed := s.Compute(record.Record{"status": "live"})
	if computed["label"] != "status:live" {
		t.Errorf("computed label = %v, want status:live", computed["label"])
	}
}

func TestPermissions_WildcardOverrides(t *testing.T) {
	s := schema.MustNew(schema.Fields{"x": {Type: schema.FieldTypeText}})
	s.Allow("editors", "read", "update")
	s.Allow("*", "read")

	if !s.GroupIsAllowed("editors", schema.ActionUpdate) {
		t.Error("editors should be allowed update")
	}
	if !s.GroupIsAllowed("strangers", schema.ActionRead) {
		t.Error("wildcard grant should apply to any group")
	}
	if s.GroupIsAllowed("strangers", schema.ActionUpdate) {
		t.Error("strangers should not update")
	}

	// Deny on the specific group does not defeat the wildcard grant.
	s.Deny("editors", "read")
	if !s.GroupIsAllowed("editors", schema.ActionRead) {
		t.Error("wildcard read should still win after group-level deny")
	}
}

func TestPermissions_AliasesAndUnknownActions(t *testing.T) {
	s := schema.MustNew(schema.Fields{"x": {Type: schema.FieldTypeText}})
	s.Allow("g", "DELETE", "get", "fly")

	if !s.GroupIsAllowed("g", schema.ActionRemove) {
		t.Error("delete should alias to remove")
	}
	if !s.GroupIsAllowed("g", schema.ActionRead) {
		t.Error("get should alias to read")
	}
	if s.UserIsAllowed([]string{"g"}, schema.Action("fly")) {
		t.Error("unknown action must be dropped, not granted")
	}
}
