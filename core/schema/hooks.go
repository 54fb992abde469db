package schema

import (
	"context"

	"github.com/artpar/recordbase/domain/query"
	"github.com/artpar/recordbase/domain/record"
	"github.com/artpar/recordbase/domain/user"
)

// EventName identifies a lifecycle event hooks attach to.
type EventName string

const (
	EventValidate EventName = "validate"
	EventFind     EventName = "find"
	EventRead     EventName = "read"
	EventCreate   EventName = "create"
	EventUpdate   EventName = "update"
	EventRemove   EventName = "remove"
	EventSave     EventName = "save"
)

// Context is the execution context a resource carries and passes to every
// hook, so hooks can see the acting user.
type Context struct {
	User *user.User

	// Values carries request-scoped flags, e.g. the user manager's
	// rawRecords switch that disables hash stripping on reads.
	Values map[string]any
}

// Value returns a context value, or nil.
func (c *Context) Value(key string) any {
	if c == nil || c.Values == nil {
		return nil
	}
	return c.Values[key]
}

// Event is the mutable payload passed to hooks. Which fields are set
// depends on the lifecycle event; hooks may mutate Record and Records,
// and the mutations are visible to subsequent hooks and to the stored or
// returned value.
type Event struct {
	Name EventName

	// Ctx is the resource's execution context.
	Ctx *Context

	Record    record.Record
	OldRecord record.Record
	Records   []record.Record

	Query      query.Query
	Operations query.Operations

	// Errors is the accumulated validation error list, set for
	// after(validate) hooks.
	Errors *[]string

	// RemovedCount is set for after(remove) hooks.
	RemovedCount int
}

// Hook is a lifecycle callback. Returning an error aborts the remaining
// chain for that call and propagates to the enclosing operation.
type Hook func(ctx context.Context, e *Event) error

type hookRegistry struct {
	before map[EventName][]Hook
	after  map[EventName][]Hook
}

func newHookRegistry() hookRegistry {
	return hookRegistry{
		before: map[EventName][]Hook{},
		after:  map[EventName][]Hook{},
	}
}

// Before registers a hook running before the named lifecycle event.
// Handlers run sequentially in registration order.
func (s *Schema) Before(event EventName, h Hook) *Schema {
	s.hooks.before[event] = append(s.hooks.before[event], h)
	return s
}

// After registers a hook running after the named lifecycle event.
func (s *Schema) After(event EventName, h Hook) *Schema {
	s.hooks.after[event] = append(s.hooks.after[event], h)
	return s
}

// RunBefore runs the before hooks for the event named in e, then for any
// additional event names, sequentially. The same Event payload flows
// through the whole chain.
func (s *Schema) RunBefore(ctx context.Context, hctx *Context, e *Event, also ...EventName) error {
	return s.run(ctx, s.hooks.before, hctx, e, also)
}

// RunAfter runs the after hooks for the event named in e, then for any
// additional event names.
func (s *Schema) RunAfter(ctx context.Context, hctx *Context, e *Event, also ...EventName) error {
	return s.run(ctx, s.hooks.after, hctx, e, also)
}

func (s *Schema) run(ctx context.Context, table map[EventName][]Hook, hctx *Context, e *Event, also []EventName) error {
	e.Ctx = hctx
	events := append([]EventName{e.Name}, also...)
	for _, name := range events {
		for _, h := range table[name] {
			if err := h(ctx, e); err != nil {
				return err
			}
		}
	}
	return nil
}
