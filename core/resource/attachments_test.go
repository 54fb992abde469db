package resource_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/artpar/recordbase/core/resource"
	"github.com/artpar/recordbase/domain/record"
	"github.com/artpar/recordbase/pkg/apierror"
)

func TestAttach_AppendsEntryAndStoresContent(t *testing.T) {
	r := newResource(t, noteFields())
	ctx := context.Background()

	rec, _ := r.Create(ctx, record.Record{"title": "x"}, resource.CreateOptions{})

	updated, err := r.Attach(ctx, rec.ID(), "readme.txt", strings.NewReader("attachment body"))
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}

	atts := updated.Attachments()
	if len(atts) != 1 {
		t.Fatalf("len(attachments) = %d, want 1", len(atts))
	}
	att := atts[0]
	if att.Name != "readme.txt" {
		t.Errorf("Name = %q, want readme.txt", att.Name)
	}
	if att.Size != int64(len("attachment body")) {
		t.Errorf("Size = %d", att.Size)
	}
	if att.CreatedAt != testTime.UnixMilli() {
		t.Errorf("CreatedAt = %d, want fixture time", att.CreatedAt)
	}

	stream, err := r.ReadAttachment(ctx, att.File)
	if err != nil {
		t.Fatalf("ReadAttachment: %v", err)
	}
	body, _ := io.ReadAll(stream)
	stream.Close()
	if string(body) != "attachment body" {
		t.Errorf("content = %q", body)
	}
}

func TestAttach_UnknownRecordIs404(t *testing.T) {
	r := newResource(t, noteFields())

	_, err := r.Attach(context.Background(), "ghost", "f.txt", strings.NewReader("x"))
	if !apierror.IsNotFound(err) {
		t.Fatalf("err = %v, want 404", err)
	}
}

func TestDeleteAttachment(t *testing.T) {
	r := newResource(t, noteFields())
	ctx := context.Background()

	rec, _ := r.Create(ctx, record.Record{"title": "x"}, resource.CreateOptions{})
	withAtt, _ := r.Attach(ctx, rec.ID(), "f.txt", strings.NewReader("data"))
	att := withAtt.Attachments()[0]

	after, err := r.DeleteAttachment(ctx, rec.ID(), att.ID)
	if err != nil {
		t.Fatalf("DeleteAttachment: %v", err)
	}
	if len(after.Attachments()) != 0 {
		t.Errorf("attachments = %v, want none", after.Attachments())
	}
	if _, err := r.ReadAttachment(ctx, att.File); !apierror.IsNotFound(err) {
		t.Errorf("blob should be gone, got %v", err)
	}
}

func TestDeleteAttachment_MissingEntryIsNoOp(t *testing.T) {
	r := newResource(t, noteFields())
	ctx := context.Background()

	rec, _ := r.Create(ctx, record.Record{"title": "x"}, resource.CreateOptions{})

	out, err := r.DeleteAttachment(ctx, rec.ID(), "never-attached")
	if err != nil {
		t.Fatalf("DeleteAttachment: %v", err)
	}
	if out.ID() != rec.ID() {
		t.Error("no-op delete should return the record")
	}

	if _, err := r.DeleteAttachment(ctx, "ghost", "any"); !apierror.IsNotFound(err) {
		t.Errorf("missing record = %v, want 404", err)
	}
}
