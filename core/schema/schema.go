package schema

import (
	"context"
	"sort"
	"strings"

	"github.com/artpar/recordbase/domain/record"
)

// Action is a permissible operation on a resource.
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionRemove Action = "remove"
)

// actionAliases folds alternate action spellings onto the canonical set.
var actionAliases = map[string]Action{
	"delete": ActionRemove,
	"insert": ActionCreate,
	"add":    ActionCreate,
	"get":    ActionRead,
}

var allowedActions = map[Action]bool{
	ActionRead:   true,
	ActionCreate: true,
	ActionUpdate: true,
	ActionRemove: true,
}

// ParseAction normalizes an action name (case-insensitive, alias-aware).
// Unrecognized actions report ok=false and are dropped by callers.
func ParseAction(name string) (Action, bool) {
	lower := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := actionAliases[lower]; ok {
		return alias, true
	}
	a := Action(lower)
	return a, allowedActions[a]
}

// WildcardGroup is the group name whose permissions apply globally as an
// override, not merely a default.
const WildcardGroup = "*"

// Schema owns field definitions, the derived validation schema, the
// per-group permission table and the hook registry. Hooks and permissions
// mutate after creation (at setup time, not concurrently with traffic);
// the field set is immutable.
type Schema struct {
	fields      Fields
	compiled    *JSONSchema
	permissions map[string]map[Action]bool
	hooks       hookRegistry
}

// New normalizes the field map, derives the validation schema and returns
// the Schema. Unknown field types fail here, at definition time.
func New(fields Fields) (*Schema, error) {
	normalized, err := fields.normalize("")
	if err != nil {
		return nil, err
	}
	compiled, err := BuildSchema(normalized)
	if err != nil {
		return nil, err
	}
	return &Schema{
		fields:      normalized,
		compiled:    compiled,
		permissions: map[string]map[Action]bool{},
		hooks:       newHookRegistry(),
	}, nil
}

// MustNew is New for schemas built from literals; it panics on error.
func MustNew(fields Fields) *Schema {
	s, err := New(fields)
	if err != nil {
		panic(err)
	}
	return s
}

// AllowAdditionalProperties opens the root object to fields outside the
// declared set. Declared fields keep their validation; unknown ones pass
// through untyped. Returns the schema for chaining.
func (s *Schema) AllowAdditionalProperties() *Schema {
	s.compiled.AllowAdditional = true
	return s
}

// Fields returns the normalized field map. Callers must not mutate it.
func (s *Schema) Fields() Fields {
	return s.fields
}

// Field returns the descriptor for the named field.
func (s *Schema) Field(name string) (Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}

// JSONSchema returns the derived validation schema.
func (s *Schema) JSONSchema() *JSONSchema {
	return s.compiled
}

// Indices returns the indexed fields, unique ones flagged. Consumed once
// by resource construction to instruct the storage adapter.
func (s *Schema) Indices() []Index {
	var out []Index
	for name, f := range s.fields {
		if f.Index || f.Unique {
			out = append(out, Index{Field: name, Unique: f.Unique})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

// ValidateOptions tunes a validation pass.
type ValidateOptions struct {
	// IgnoreRequired suppresses required-field checks, supporting partial
	// updates.
	IgnoreRequired bool
}

// Validate strips reserved properties, runs before(validate) hooks (which
// may mutate the working record), checks the remainder against the derived
// schema, runs after(validate) hooks (which receive the error list and may
// still mutate), and returns the error messages together with the record,
// reserved properties reattached. Turning a non-empty error list into a
// rejection is the caller's job.
func (s *Schema) Validate(ctx context.Context, hctx *Context, data record.Record, opts ValidateOptions) ([]string, record.Record, error) {
	reserved, working := data.Split()

	if err := s.RunBefore(ctx, hctx, &Event{Name: EventValidate, Record: working}); err != nil {
		return nil, nil, err
	}

	var errs []string
	validateObject(&errs, "", working, s.compiled, opts.IgnoreRequired)

	result := working.Merge(reserved)

	if err := s.RunAfter(ctx, hctx, &Event{Name: EventValidate, Record: result, Errors: &errs}); err != nil {
		return nil, nil, err
	}

	return errs, result, nil
}

// ApplyDefaults fills absent fields that declare a default value.
func (s *Schema) ApplyDefaults(data record.Record) record.Record {
	for name, f := range s.fields {
		if f.Default == nil {
			continue
		}
		if _, ok := data[name]; !ok {
			data[name] = f.Default
		}
	}
	return data
}

// Compute evaluates computed fields into the record.
func (s *Schema) Compute(r record.Record) record.Record {
	for name, f := range s.fields {
		if f.Compute != nil {
			r[name] = f.Compute(r)
		}
	}
	return r
}

// -----------------------------------------------------------------------------
// Permissions
// -----------------------------------------------------------------------------

// Allow grants actions to a group. Unrecognized action names are dropped.
func (s *Schema) Allow(group string, actions ...string) *Schema {
	rights := s.permissions[group]
	if rights == nil {
		rights = map[Action]bool{}
		s.permissions[group] = rights
	}
	for _, name := range actions {
		if action, ok := ParseAction(name); ok {
			rights[action] = true
		}
	}
	return s
}

// Deny revokes actions from a group.
func (s *Schema) Deny(group string, actions ...string) *Schema {
	rights := s.permissions[group]
	if rights == nil {
		return s
	}
	for _, name := range actions {
		if action, ok := ParseAction(name); ok {
			delete(rights, action)
		}
	}
	return s
}

// GroupIsAllowed reports whether the group may perform the action. The
// wildcard group is checked first and short-circuits to true regardless of
// the specific group's entry.
func (s *Schema) GroupIsAllowed(group string, action Action) bool {
	if group != WildcardGroup && s.GroupIsAllowed(WildcardGroup, action) {
		return true
	}
	return s.permissions[group][action]
}

// UserIsAllowed reports whether any of the user's groups is allowed.
func (s *Schema) UserIsAllowed(groups []string, action Action) bool {
	for _, g := range groups {
		if s.GroupIsAllowed(g, action) {
			return true
		}
	}
	return false
}
