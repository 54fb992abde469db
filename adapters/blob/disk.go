// Package blob provides attachment content storage. The disk store writes
// each blob under the configured upload directory with a random prefix so
// identical filenames never collide.
package blob

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/artpar/recordbase/pkg/apierror"
	"github.com/artpar/recordbase/ports"
)

// Disk is a filesystem implementation of ports.BlobStore.
type Disk struct {
	uploadDir string
}

// OpenDisk creates the upload directory if needed.
func OpenDisk(uploadDir string) (*Disk, error) {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Disk{uploadDir: uploadDir}, nil
}

// stampName prefixes the filename with a random id, keeping the original
// name visible for operators poking at the upload directory.
func stampName(name string) string {
	return uuid.New().String() + "-" + filepath.Base(name)
}

// Save writes the stream to disk and returns the blob metadata. The mime
// type comes from the file extension when known, else from content
// sniffing.
func (d *Disk) Save(ctx context.Context, name string, r io.Reader) (ports.BlobInfo, error) {
	fileID := stampName(name)
	path := filepath.Join(d.uploadDir, fileID)

	f, err := os.Create(path)
	if err != nil {
		return ports.BlobInfo{}, fmt.Errorf("create blob: %w", err)
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return ports.BlobInfo{}, fmt.Errorf("write blob: %w", err)
	}

	mimeType, err := d.detectMimeType(path, name)
	if err != nil {
		return ports.BlobInfo{}, err
	}

	return ports.BlobInfo{
		File:      fileID,
		MimeType:  mimeType,
		Size:      size,
		CreatedAt: time.Now().UnixMilli(),
	}, nil
}

func (d *Disk) detectMimeType(path, name string) (string, error) {
	if byExt := mime.TypeByExtension(filepath.Ext(name)); byExt != "" {
		if i := strings.IndexByte(byExt, ';'); i > 0 {
			byExt = byExt[:i]
		}
		return byExt, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("sniff blob: %w", err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := f.Read(head)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("sniff blob: %w", err)
	}
	contentType := http.DetectContentType(head[:n])
	if i := strings.IndexByte(contentType, ';'); i > 0 {
		contentType = contentType[:i]
	}
	return contentType, nil
}

// Stream opens the blob for reading.
func (d *Disk) Stream(ctx context.Context, fileID string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(d.uploadDir, filepath.Base(fileID)))
	if os.IsNotExist(err) {
		return nil, apierror.NotFound("Attachment not found")
	}
	if err != nil {
		return nil, fmt.Errorf("open blob: %w", err)
	}
	return f, nil
}

// Delete removes the blob. Deleting a missing blob is not an error.
func (d *Disk) Delete(ctx context.Context, fileID string) error {
	err := os.Remove(filepath.Join(d.uploadDir, filepath.Base(fileID)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// Ready reports the store usable; the directory exists from construction.
func (d *Disk) Ready(ctx context.Context) error {
	return nil
}

// Close is a no-op for the disk store.
func (d *Disk) Close() error {
	return nil
}

// Ensure interface compliance.
var _ ports.BlobStore = (*Disk)(nil)
