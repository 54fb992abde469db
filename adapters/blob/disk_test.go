package blob_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/artpar/recordbase/adapters/blob"
	"github.com/artpar/recordbase/pkg/apierror"
)

func TestSaveStreamDelete(t *testing.T) {
	d, err := blob.OpenDisk(t.TempDir())
	if err != nil {
		t.Fatalf("OpenDisk: %v", err)
	}
	ctx := context.Background()

	info, err := d.Save(ctx, "note.txt", strings.NewReader("hello world"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if info.Size != 11 {
		t.Errorf("Size = %d, want 11", info.Size)
	}
	if info.MimeType != "text/plain" {
		t.Errorf("MimeType = %q, want text/plain", info.MimeType)
	}
	if !strings.HasSuffix(info.File, "-note.txt") {
		t.Errorf("File = %q, should keep the original name after the random prefix", info.File)
	}

	r, err := d.Stream(ctx, info.File)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	data, _ := io.ReadAll(r)
	r.Close()
	if string(data) != "hello world" {
		t.Errorf("content = %q", data)
	}

	if err := d.Delete(ctx, info.File); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := d.Stream(ctx, info.File); !apierror.IsNotFound(err) {
		t.Errorf("Stream after delete = %v, want 404", err)
	}
}

func TestSave_IdenticalNamesDoNotCollide(t *testing.T) {
	d, _ := blob.OpenDisk(t.TempDir())
	ctx := context.Background()

	a, err := d.Save(ctx, "same.txt", strings.NewReader("first"))
	if err != nil {
		t.Fatalf("Save a: %v", err)
	}
	b, err := d.Save(ctx, "same.txt", strings.NewReader("second"))
	if err != nil {
		t.Fatalf("Save b: %v", err)
	}
	if a.File == b.File {
		t.Error("two uploads of the same name must get distinct ids")
	}
}

func TestSave_SniffsUnknownExtensions(t *testing.T) {
	d, _ := blob.OpenDisk(t.TempDir())

	info, err := d.Save(context.Background(), "payload.unknownext", strings.NewReader("plain text content"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasPrefix(info.MimeType, "text/plain") {
		t.Errorf("MimeType = %q, want sniffed text/plain", info.MimeType)
	}
}

func TestDelete_MissingIsNoError(t *testing.T) {
	d, _ := blob.OpenDisk(t.TempDir())
	if err := d.Delete(context.Background(), "never-existed"); err != nil {
		t.Errorf("Delete missing = %v, want nil", err)
	}
}
