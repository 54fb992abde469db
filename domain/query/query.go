// Package query provides document matching and partial-update operators
// shared by all storage adapters. Queries use a small MongoDB-style
// vocabulary; anything an adapter cannot push down to its backend is
// evaluated here, client-side.
package query

import (
	"reflect"
	"strings"

	"github.com/artpar/recordbase/domain/record"
)

// Query matches records by field value. A plain value means equality; a
// nested map may use the operators $ne, $in, $exists and $elemMatch.
type Query map[string]any

// ByID builds a query matching a single record id.
func ByID(id string) Query {
	return Query{record.FieldID: id}
}

// ID returns the id an equality query pins down, or "" when the query is
// not a plain id lookup. Adapters use this to hit primary keys directly.
func (q Query) ID() string {
	if len(q) != 1 {
		return ""
	}
	id, _ := q[record.FieldID].(string)
	return id
}

// Match reports whether the record satisfies every clause of the query.
func (q Query) Match(r record.Record) bool {
	for field, cond := range q {
		if !matchField(r[field], cond) {
			return false
		}
	}
	return true
}

func matchField(value, cond any) bool {
	ops, ok := cond.(map[string]any)
	if !ok || !hasOperator(ops) {
		return equal(value, cond)
	}

	for op, arg := range ops {
		switch op {
		case "$ne":
			if equal(value, arg) {
				return false
			}
		case "$exists":
			want, _ := arg.(bool)
			if (value != nil) != want {
				return false
			}
		case "$in":
			if !containsValue(arg, value) {
				return false
			}
		case "$elemMatch":
			if !elemMatch(value, arg) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func hasOperator(m map[string]any) bool {
	for k := range m {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

func elemMatch(value, arg any) bool {
	items, ok := value.([]any)
	if !ok {
		// Typed slices survive until the first JSON round trip.
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Slice {
			return false
		}
		for i := 0; i < rv.Len(); i++ {
			items = append(items, rv.Index(i).Interface())
		}
	}
	for _, item := range items {
		if equal(item, arg) {
			return true
		}
	}
	return false
}

func containsValue(list, value any) bool {
	rv := reflect.ValueOf(list)
	if rv.Kind() != reflect.Slice {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if equal(rv.Index(i).Interface(), value) {
			return true
		}
	}
	return false
}

// equal compares values with numeric coercion, since records coming back
// from a JSON round trip carry float64 where the caller wrote int.
func equal(a, b any) bool {
	if na, ok := toFloat(a); ok {
		if nb, ok := toFloat(b); ok {
			return na == nb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
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
