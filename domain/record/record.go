// Package record provides the Record value type and its reserved system
// properties. This package has NO dependencies on I/O or external packages.
package record

// Reserved system properties. They are managed by the resource layer,
// stripped before validation and never subject to user-supplied schemas.
const (
	FieldID          = "_id"
	FieldCreatedAt   = "_createdAt"
	FieldUpdatedAt   = "_updatedAt"
	FieldCreatedBy   = "_createdBy"
	FieldAttachments = "_attachments"
)

// ReservedProperties lists every reserved system property.
var ReservedProperties = []string{
	FieldID,
	FieldCreatedAt,
	FieldUpdatedAt,
	FieldCreatedBy,
	FieldAttachments,
}

// IsReserved reports whether name is a reserved system property.
func IsReserved(name string) bool {
	for _, p := range ReservedProperties {
		if p == name {
			return true
		}
	}
	return false
}

// Record is a stored document: field name -> value, plus the reserved
// system properties once persisted.
type Record map[string]any

// ID returns the record identifier, or "" if the record is unsaved.
func (r Record) ID() string {
	id, _ := r[FieldID].(string)
	return id
}

// CreatedBy returns the owning user id, or "" when the record was created
// without an acting user.
func (r Record) CreatedBy() string {
	id, _ := r[FieldCreatedBy].(string)
	return id
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Split partitions the record into its reserved properties and the
// user-owned remainder. Both returned records are copies.
func (r Record) Split() (reserved Record, rest Record) {
	reserved = Record{}
	rest = Record{}
	for k, v := range r {
		if IsReserved(k) {
			reserved[k] = v
		} else {
			rest[k] = v
		}
	}
	return reserved, rest
}

// Merge copies every field of other into r and returns r.
func (r Record) Merge(other Record) Record {
	for k, v := range other {
		r[k] = v
	}
	return r
}

// Attachment describes one binary blob associated with a record. The File
// field is the blob store identifier; ID doubles as the stable attachment
// id exposed through the API.
type Attachment struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	File      string `json:"file"`
	MimeType  string `json:"mimeType"`
	Size      int64  `json:"size"`
	CreatedAt int64  `json:"createdAt"`
}

// AsMap converts the attachment into the generic form stored inside a
// record's _attachments list.
func (a Attachment) AsMap() map[string]any {
	return map[string]any{
		"id":        a.ID,
		"name":      a.Name,
		"file":      a.File,
		"mimeType":  a.MimeType,
		"size":      a.Size,
		"createdAt": a.CreatedAt,
	}
}

// AttachmentFromMap rebuilds an Attachment from its stored form.
func AttachmentFromMap(m map[string]any) Attachment {
	a := Attachment{}
	a.ID, _ = m["id"].(string)
	a.Name, _ = m["name"].(string)
	a.File, _ = m["file"].(string)
	a.MimeType, _ = m["mimeType"].(string)
	a.Size = toInt64(m["size"])
	a.CreatedAt = toInt64(m["createdAt"])
	return a
}

// Attachments returns the record's attachment list. Entries persisted
// through a JSON round trip come back as map[string]any.
func (r Record) Attachments() []Attachment {
	raw, ok := r[FieldAttachments].([]any)
	if !ok {
		return nil
	}
	out := make([]Attachment, 0, len(raw))
	for _, entry := range raw {
		if m, ok := entry.(map[string]any); ok {
			out = append(out, AttachmentFromMap(m))
		}
	}
	return out
}

// Attachment returns the attachment with the given id, if present.
func (r Record) Attachment(id string) (Attachment, bool) {
	for _, a := range r.Attachments() {
		if a.ID == id {
			return a, true
		}
	}
	return Attachment{}, false
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}
