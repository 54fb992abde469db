package schema_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/artpar/recordbase/core/schema"
	"github.com/artpar/recordbase/domain/record"
	"github.com/artpar/recordbase/domain/user"
)

func TestHooks_RunInRegistrationOrder(t *testing.T) {
	s := schema.MustNew(schema.Fields{"x": {Type: schema.FieldTypeText}})

	var order []string
	s.Before(schema.EventCreate, func(ctx context.Context, e *schema.Event) error {
		order = append(order, "first")
		return nil
	})
	s.Before(schema.EventCreate, func(ctx context.Context, e *schema.Event) error {
		order = append(order, "second")
		return nil
	})
	s.Before(schema.EventSave, func(ctx context.Context, e *schema.Event) error {
		order = append(order, "save")
		return nil
	})

	err := s.RunBefore(context.Background(), nil, &schema.Event{Name: schema.EventCreate}, schema.EventSave)
	if err != nil {
		t.Fatalf("RunBefore: %v", err)
	}
	want := []string{"first", "second", "save"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestHooks_ErrorAbortsChain(t *testing.T) {
	s := schema.MustNew(schema.Fields{"x": {Type: schema.FieldTypeText}})
	boom := errors.New("boom")

	ran := false
	s.Before(schema.EventCreate, func(ctx context.Context, e *schema.Event) error { return boom })
	s.Before(schema.EventCreate, func(ctx context.Context, e *schema.Event) error { ran = true; return nil })

	err := s.RunBefore(context.Background(), nil, &schema.Event{Name: schema.EventCreate})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if ran {
		t.Error("hooks after a failure must not run")
	}
}

func TestHooks_MutationsAreVisibleDownstream(t *testing.T) {
	s := schema.MustNew(schema.Fields{"x": {Type: schema.FieldTypeText}})

	s.Before(schema.EventSave, func(ctx context.Context, e *schema.Event) error {
		e.Record["x"] = "mutated"
		return nil
	})

	e := &schema.Event{Name: schema.EventSave, Record: record.Record{"x": "orig"}}
	if err := s.RunBefore(context.Background(), nil, e); err != nil {
		t.Fatalf("RunBefore: %v", err)
	}
	if e.Record["x"] != "mutated" {
		t.Error("hook mutation should be visible on the event record")
	}
}

func TestHooks_ContextCarriesUser(t *testing.T) {
	s := schema.MustNew(schema.Fields{"x": {Type: schema.FieldTypeText}})

	var seen *user.User
	s.After(schema.EventRead, func(ctx context.Context, e *schema.Event) error {
		seen = e.Ctx.User
		return nil
	})

	u := &user.User{ID: "u1", Username: "alice"}
	err := s.RunAfter(context.Background(), &schema.Context{User: u}, &schema.Event{Name: schema.EventRead})
	if err != nil {
		t.Fatalf("RunAfter: %v", err)
	}
	if seen != u {
		t.Error("hook should observe the execution context user")
	}
}

func TestHooks_ValidateReceivesErrorList(t *testing.T) {
	s := schema.MustNew(schema.Fields{"name": {Type: schema.FieldTypeText, Required: true}})

	var captured []string
	s.After(schema.EventValidate, func(ctx context.Context, e *schema.Event) error {
		captured = append(captured, *e.Errors...)
		return nil
	})

	errs, _, err := s.Validate(context.Background(), nil, record.Record{}, schema.ValidateOptions{})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !reflect.DeepEqual(captured, errs) {
		t.Errorf("captured = %v, want %v", captured, errs)
	}
}
