package query

import "github.com/artpar/recordbase/domain/record"

// Operations is a partial-update document: operator -> {field: argument}.
// Supported operators are $set, $push and $pull. A document without any
// operator keys replaces the matched record's user fields wholesale.
type Operations map[string]any

// Set builds a $set operation from the given fields.
func Set(fields record.Record) Operations {
	return Operations{"$set": map[string]any(fields)}
}

// Apply returns a copy of r with the operations applied. Unknown operators
// are ignored; reserved properties may be touched (the resource layer
// relies on this for _attachments and _updatedAt stamping).
func (ops Operations) Apply(r record.Record) record.Record {
	out := r.Clone()

	if !ops.hasOperator() {
		// Whole-document replacement keeps reserved properties.
		reserved, _ := out.Split()
		out = reserved
		for k, v := range ops {
			out[k] = v
		}
		return out
	}

	for op, arg := range ops {
		fields, ok := arg.(map[string]any)
		if !ok {
			continue
		}
		switch op {
		case "$set":
			for field, value := range fields {
				out[field] = value
			}
		case "$push":
			for field, value := range fields {
				list, _ := out[field].([]any)
				out[field] = append(list, value)
			}
		case "$pull":
			for field, value := range fields {
				list, ok := out[field].([]any)
				if !ok {
					continue
				}
				kept := make([]any, 0, len(list))
				for _, item := range list {
					if !pullMatches(item, value) {
						kept = append(kept, item)
					}
				}
				out[field] = kept
			}
		}
	}
	return out
}

// pullMatches decides whether a list element is removed by $pull. A map
// argument without operators acts as a subdocument query, so entries like
// {"id": attachmentID} match attachment objects by id.
func pullMatches(item, arg any) bool {
	cond, ok := arg.(map[string]any)
	if !ok || hasOperator(cond) {
		return equal(item, arg) || matchField(item, arg)
	}
	doc, ok := item.(map[string]any)
	if !ok {
		return false
	}
	return Query(cond).Match(record.Record(doc))
}

func (ops Operations) hasOperator() bool {
	for k := range ops {
		switch k {
		case "$set", "$push", "$pull":
			return true
		}
	}
	return false
}
