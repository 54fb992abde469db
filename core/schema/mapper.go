package schema

import "fmt"

// JSONSchema is the structural validation schema derived from a field map.
// It is a small JSON-Schema-like subset: just enough structure for the
// validator and the OpenAPI generator to walk.
type JSONSchema struct {
	Type       string                 `json:"type,omitempty"`
	Format     string                 `json:"format,omitempty"`
	Properties map[string]*JSONSchema `json:"properties,omitempty"`
	Required   []string               `json:"required,omitempty"`
	Items      *JSONSchema            `json:"items,omitempty"`
	Enum       []string               `json:"enum,omitempty"`
	MinLength  int                    `json:"minLength,omitempty"`
	MaxLength  int                    `json:"maxLength,omitempty"`
	MinItems   int                    `json:"minItems,omitempty"`

	// AdditionalProperties types map values. Nil with AllowAdditional
	// false means unknown properties are rejected.
	AdditionalProperties *JSONSchema `json:"additionalProperties,omitempty"`
	AllowAdditional      bool        `json:"-"`
}

// BuildSchema translates a normalized field map into its validation
// schema. Fields must already be normalized; the dispatch over the field
// type enumeration is exhaustive.
func BuildSchema(fields Fields) (*JSONSchema, error) {
	root := &JSONSchema{
		Type:       "object",
		Properties: map[string]*JSONSchema{},
	}
	for name, field := range fields {
		prop, err := buildField(field)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		root.Properties[name] = prop
		if field.Required {
			root.Required = append(root.Required, name)
		}
	}
	return root, nil
}

func buildField(f Field) (*JSONSchema, error) {
	switch f.Type {
	case FieldTypeText, FieldTypePassword, FieldTypeColor:
		s := &JSONSchema{Type: "string", MinLength: 1}
		if f.MaxLength > 0 {
			s.MaxLength = f.MaxLength
		}
		if f.Type == FieldTypeColor {
			s.Format = "color"
		}
		return s, nil

	case FieldTypeEmail:
		return &JSONSchema{Type: "string", Format: "email"}, nil

	case FieldTypeDate:
		return &JSONSchema{Type: "string", Format: "date"}, nil

	case FieldTypeTime:
		return &JSONSchema{Type: "string", Format: "time"}, nil

	case FieldTypeDateTime:
		return &JSONSchema{Type: "string", Format: "date-time"}, nil

	case FieldTypeNumber, FieldTypeTimestamp:
		return &JSONSchema{Type: "number"}, nil

	case FieldTypeBoolean, FieldTypeCheckbox:
		return &JSONSchema{Type: "boolean"}, nil

	case FieldTypeSelect:
		return &JSONSchema{Type: "string", Enum: f.Options}, nil

	case FieldTypeMultiSelect:
		return &JSONSchema{
			Type:  "array",
			Items: &JSONSchema{Type: "string", Enum: f.Options},
		}, nil

	case FieldTypeObject:
		if f.Schema != nil {
			return BuildSchema(f.Schema)
		}
		return &JSONSchema{Type: "object", AllowAdditional: true}, nil

	case FieldTypeArray:
		s := &JSONSchema{Type: "array"}
		if f.MinItems > 0 {
			s.MinItems = f.MinItems
		}
		if f.Items != nil {
			items, err := buildField(*f.Items)
			if err != nil {
				return nil, err
			}
			s.Items = items
		}
		return s, nil

	case FieldTypeMap:
		s := &JSONSchema{Type: "object", AllowAdditional: true}
		if f.Items != nil {
			values, err := buildField(*f.Items)
			if err != nil {
				return nil, err
			}
			s.AdditionalProperties = values
		}
		return s, nil
	}

	// Unreachable for normalized fields; kept so a missed normalization
	// fails fast instead of validating nothing.
	return nil, fmt.Errorf("unknown type %q", f.Type)
}
