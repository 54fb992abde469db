// Package schema provides declarative field definitions, the derived
// structural validation schema, per-group permissions and the lifecycle
// hook registry. A Schema is created once at resource-registration time;
// its field set is immutable afterwards.
package schema

import (
	"fmt"

	"github.com/artpar/recordbase/domain/record"
)

// FieldType is the closed enumeration of declarable field types. The
// mapper dispatches exhaustively over it, so every canonical type has a
// validation-schema translation by construction.
type FieldType string

const (
	FieldTypeText        FieldType = "text"
	FieldTypeNumber      FieldType = "number"
	FieldTypeBoolean     FieldType = "boolean"
	FieldTypeSelect      FieldType = "select"
	FieldTypeMultiSelect FieldType = "multiselect"
	FieldTypeObject      FieldType = "object"
	FieldTypeArray       FieldType = "array"
	FieldTypeMap         FieldType = "map"
	FieldTypeDate        FieldType = "date"
	FieldTypeTime        FieldType = "time"
	FieldTypeDateTime    FieldType = "datetime"
	FieldTypeTimestamp   FieldType = "timestamp"
	FieldTypePassword    FieldType = "password"
	FieldTypeEmail       FieldType = "email"
	FieldTypeColor       FieldType = "color"
	FieldTypeCheckbox    FieldType = "checkbox"
)

// fieldTypeAliases folds convenience names onto canonical types.
var fieldTypeAliases = map[FieldType]FieldType{
	"string": FieldTypeText,
	"json":   FieldTypeObject,
	"enum":   FieldTypeSelect,
	"list":   FieldTypeArray,
}

var canonicalTypes = map[FieldType]bool{
	FieldTypeText:        true,
	FieldTypeNumber:      true,
	FieldTypeBoolean:     true,
	FieldTypeSelect:      true,
	FieldTypeMultiSelect: true,
	FieldTypeObject:      true,
	FieldTypeArray:       true,
	FieldTypeMap:         true,
	FieldTypeDate:        true,
	FieldTypeTime:        true,
	FieldTypeDateTime:    true,
	FieldTypeTimestamp:   true,
	FieldTypePassword:    true,
	FieldTypeEmail:       true,
	FieldTypeColor:       true,
	FieldTypeCheckbox:    true,
}

// Canonical resolves aliases and reports whether the type is known.
func (t FieldType) Canonical() (FieldType, bool) {
	if alias, ok := fieldTypeAliases[t]; ok {
		return alias, true
	}
	if canonicalTypes[t] {
		return t, true
	}
	return t, false
}

// ComputeFunc derives a field value from the record it belongs to.
type ComputeFunc func(r record.Record) any

// Field describes one schema field.
type Field struct {
	// Type is the field type. Aliases (string, json, enum, list) fold to
	// canonical types at schema creation.
	Type FieldType `yaml:"type" json:"type"`

	// Required makes the field mandatory on create. Partial updates are
	// validated with required checks suppressed.
	Required bool `yaml:"required,omitempty" json:"required,omitempty"`

	// Index creates a storage index on this field.
	Index bool `yaml:"index,omitempty" json:"index,omitempty"`

	// Unique makes values unique across the collection. Implies Index.
	Unique bool `yaml:"unique,omitempty" json:"unique,omitempty"`

	// Default value applied on create when the field is absent.
	Default any `yaml:"default,omitempty" json:"default,omitempty"`

	// Compute derives the field on read. Computed fields are not stored.
	Compute ComputeFunc `yaml:"-" json:"-"`

	// MaxLength caps text length (0 = unbounded).
	MaxLength int `yaml:"maxLength,omitempty" json:"maxLength,omitempty"`

	// MinItems is the minimum array length.
	MinItems int `yaml:"minItems,omitempty" json:"minItems,omitempty"`

	// Items types the elements of an array or the values of a map.
	Items *Field `yaml:"items,omitempty" json:"items,omitempty"`

	// Schema nests field definitions for object fields.
	Schema Fields `yaml:"schema,omitempty" json:"schema,omitempty"`

	// Options enumerates legal values for select and multiselect.
	Options []string `yaml:"options,omitempty" json:"options,omitempty"`
}

// Fields maps field names to their descriptors. Insertion order is
// irrelevant.
type Fields map[string]Field

// normalize resolves type aliases recursively. Unknown types are a
// definition-time error.
func (f Field) normalize(path string) (Field, error) {
	canonical, ok := f.Type.Canonical()
	if !ok {
		return f, fmt.Errorf("field %s: unknown type %q", path, f.Type)
	}
	f.Type = canonical

	if f.Items != nil {
		items, err := f.Items.normalize(path + ".items")
		if err != nil {
			return f, err
		}
		f.Items = &items
	}
	if f.Schema != nil {
		nested, err := f.Schema.normalize(path + ".")
		if err != nil {
			return f, err
		}
		f.Schema = nested
	}
	return f, nil
}

func (fields Fields) normalize(prefix string) (Fields, error) {
	out := make(Fields, len(fields))
	for name, f := range fields {
		normalized, err := f.normalize(prefix + name)
		if err != nil {
			return nil, err
		}
		out[name] = normalized
	}
	return out, nil
}

// Index identifies an indexed field, consumed once by resource
// construction to instruct the storage adapter.
type Index struct {
	Field  string
	Unique bool
}
