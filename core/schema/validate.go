package schema

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
)

var colorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// validateValue appends "<property> <message>" strings for every
// structural mismatch between value and s. Property paths use dot
// notation for nested objects. Required suppression applies only to the
// root object: a partial update may omit top-level fields, but any nested
// object it does supply must be complete.
func validateValue(errs *[]string, property string, value any, s *JSONSchema) {
	if s == nil {
		return
	}
	switch s.Type {
	case "string":
		str, ok := value.(string)
		if !ok {
			add(errs, property, "is not of a type(s) string")
			return
		}
		if s.MinLength > 0 && len(str) < s.MinLength {
			add(errs, property, fmt.Sprintf("does not meet minimum length of %d", s.MinLength))
		}
		if s.MaxLength > 0 && len(str) > s.MaxLength {
			add(errs, property, fmt.Sprintf("does not meet maximum length of %d", s.MaxLength))
		}
		if len(s.Enum) > 0 && !containsString(s.Enum, str) {
			add(errs, property, "is not one of enum values: "+strings.Join(s.Enum, ","))
		}
		validateFormat(errs, property, str, s.Format)

	case "number":
		if _, ok := toNumber(value); !ok {
			add(errs, property, "is not of a type(s) number")
		}

	case "boolean":
		if _, ok := value.(bool); !ok {
			add(errs, property, "is not of a type(s) boolean")
		}

	case "array":
		items, ok := toSlice(value)
		if !ok {
			add(errs, property, "is not of a type(s) array")
			return
		}
		if s.MinItems > 0 && len(items) < s.MinItems {
			add(errs, property, fmt.Sprintf("does not meet minimum length of %d", s.MinItems))
		}
		if s.Items != nil {
			for i, item := range items {
				validateValue(errs, fmt.Sprintf("%s[%d]", property, i), item, s.Items)
			}
		}

	case "object":
		obj, ok := toMap(value)
		if !ok {
			add(errs, property, "is not of a type(s) object")
			return
		}
		validateObject(errs, property, obj, s, false)
	}
}

func validateObject(errs *[]string, prefix string, data map[string]any, s *JSONSchema, ignoreRequired bool) {
	if !ignoreRequired {
		for _, name := range s.Required {
			if _, ok := data[name]; !ok {
				add(errs, joinPath(prefix, name), "is required")
			}
		}
	}

	for name, value := range data {
		prop, known := s.Properties[name]
		if known {
			if value != nil {
				validateValue(errs, joinPath(prefix, name), value, prop)
			}
			continue
		}
		if s.AdditionalProperties != nil {
			if value != nil {
				validateValue(errs, joinPath(prefix, name), value, s.AdditionalProperties)
			}
			continue
		}
		if !s.AllowAdditional {
			add(errs, joinPath(prefix, name), "is not allowed")
		}
	}
}

func validateFormat(errs *[]string, property, value, format string) {
	switch format {
	case "email":
		if _, err := mail.ParseAddress(value); err != nil {
			add(errs, property, "does not conform to the \"email\" format")
		}
	case "date":
		if _, err := time.Parse("2006-01-02", value); err != nil {
			add(errs, property, "does not conform to the \"date\" format")
		}
	case "time":
		if !isValidTime(value) {
			add(errs, property, "does not conform to the \"time\" format")
		}
	case "date-time":
		if _, err := time.Parse(time.RFC3339, value); err != nil {
			add(errs, property, "does not conform to the \"date-time\" format")
		}
	case "color":
		if !colorPattern.MatchString(value) {
			add(errs, property, "does not conform to the \"color\" format")
		}
	}
}

func isValidTime(value string) bool {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if _, err := time.Parse(layout, value); err == nil {
			return true
		}
	}
	return false
}

func add(errs *[]string, property, message string) {
	*errs = append(*errs, property+" "+message)
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func toSlice(v any) ([]any, bool) {
	switch items := v.(type) {
	case []any:
		return items, true
	case []string:
		out := make([]any, len(items))
		for i, s := range items {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

func toMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	}
	return nil, false
}
