package resource

import (
	"context"
	"io"

	"github.com/artpar/recordbase/domain/query"
	"github.com/artpar/recordbase/domain/record"
	"github.com/artpar/recordbase/pkg/apierror"
)

// errAttachmentsDisabled is returned when the resource was built without a
// blob store.
var errAttachmentsDisabled = apierror.New(500, "attachments are not configured for this resource")

// Attach stores the stream in the blob store and appends an attachment
// entry to the record's _attachments list. Returns the refreshed record.
func (r *Resource) Attach(ctx context.Context, recordID, name string, body io.Reader) (record.Record, error) {
	if r.blobs == nil {
		return nil, errAttachmentsDisabled
	}
	if err := r.blobs.Ready(ctx); err != nil {
		return nil, err
	}

	existing, err := r.Get(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, apierror.ErrResourceNotFound
	}

	info, err := r.blobs.Save(ctx, name, body)
	if err != nil {
		return nil, err
	}

	att := record.Attachment{
		ID:        info.File,
		Name:      name,
		File:      info.File,
		MimeType:  info.MimeType,
		Size:      info.Size,
		CreatedAt: r.clock.Now().UnixMilli(),
	}

	updated, err := r.UpdateOne(ctx, recordID, query.Operations{
		"$push": map[string]any{record.FieldAttachments: att.AsMap()},
	})
	if err != nil {
		// The blob is already written; drop it rather than leak it.
		_ = r.blobs.Delete(ctx, info.File)
		return nil, err
	}
	return updated, nil
}

// DeleteAttachment removes the attachment entry and its blob. A missing
// attachment id is a no-op; a missing record is an error.
func (r *Resource) DeleteAttachment(ctx context.Context, recordID, attachmentID string) (record.Record, error) {
	if r.blobs == nil {
		return nil, errAttachmentsDisabled
	}

	existing, err := r.Get(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, apierror.ErrResourceNotFound
	}

	att, ok := existing.Attachment(attachmentID)
	if !ok {
		return existing, nil
	}

	// Blob first: if deletion fails the record still references the blob
	// and the operation can be retried.
	if err := r.blobs.Delete(ctx, att.File); err != nil {
		return nil, err
	}

	return r.UpdateOne(ctx, recordID, query.Operations{
		"$pull": map[string]any{record.FieldAttachments: map[string]any{"id": attachmentID}},
	})
}

// ReadAttachment opens the stored blob for reading. The caller closes it.
func (r *Resource) ReadAttachment(ctx context.Context, attachmentID string) (io.ReadCloser, error) {
	if r.blobs == nil {
		return nil, errAttachmentsDisabled
	}
	return r.blobs.Stream(ctx, attachmentID)
}
