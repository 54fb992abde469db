package web

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/artpar/recordbase/core/resource"
	"github.com/artpar/recordbase/core/schema"
	"github.com/artpar/recordbase/domain/query"
	"github.com/artpar/recordbase/domain/record"
	"github.com/artpar/recordbase/pkg/apierror"
)

// defaultPageSize applies when the client asks for a page without sizing
// it.
const defaultPageSize = 50

// maxUploadMemory bounds the in-memory part of multipart parsing.
const maxUploadMemory = 32 << 20

// resourceFor resolves the route's resource, runs the access check for the
// action and returns the resource bound to the caller's context.
func (h *Handler) resourceFor(r *http.Request, action schema.Action) (*resource.Resource, error) {
	name := chi.URLParam(r, "resource")
	res := h.registry.Get(name)
	if res == nil {
		return nil, apierror.ErrResourceNotFound
	}
	if err := h.access.Check(currentUser(r), action, name); err != nil {
		return nil, err
	}
	return res.WithContext(&schema.Context{User: currentUser(r)}), nil
}

func (h *Handler) countOperation(resourceName string, action schema.Action, err error) {
	if h.metrics == nil {
		return
	}
	if err != nil {
		h.metrics.OperationErrors.WithLabelValues(resourceName, strconv.Itoa(apierror.Code(err))).Inc()
		return
	}
	h.metrics.RecordOperations.WithLabelValues(resourceName, string(action)).Inc()
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	res, err := h.resourceFor(r, schema.ActionRead)
	if err != nil {
		writeError(w, err)
		return
	}

	q := query.Query{}
	params := r.URL.Query()
	for key, values := range params {
		if key == "page" || key == "pageSize" || key == "token" {
			continue
		}
		if len(values) > 0 {
			q[key] = values[0]
		}
	}

	var opts resource.FindOptions
	if params.Get("page") != "" || params.Get("pageSize") != "" {
		opts.Page, _ = strconv.Atoi(params.Get("page"))
		opts.PageSize, _ = strconv.Atoi(params.Get("pageSize"))
		if opts.PageSize <= 0 {
			opts.PageSize = defaultPageSize
		}
	}

	records, meta, err := res.Find(r.Context(), q, opts)
	h.countOperation(res.Name, schema.ActionRead, err)
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []record.Record{}
	}

	if meta != nil {
		w.Header().Set("X-Page", strconv.Itoa(meta.Page))
		w.Header().Set("X-Per-Page", strconv.Itoa(meta.PageSize))
		w.Header().Set("X-Total-Pages", strconv.Itoa(meta.TotalPages))
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	res, err := h.resourceFor(r, schema.ActionRead)
	if err != nil {
		writeError(w, err)
		return
	}

	rec, err := res.Get(r.Context(), chi.URLParam(r, "id"))
	h.countOperation(res.Name, schema.ActionRead, err)
	if err != nil {
		writeError(w, err)
		return
	}
	if rec == nil {
		writeError(w, apierror.ErrResourceNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	res, err := h.resourceFor(r, schema.ActionCreate)
	if err != nil {
		writeError(w, err)
		return
	}

	var payload record.Record
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	rec, err := res.Create(r.Context(), payload, resource.CreateOptions{})
	h.countOperation(res.Name, schema.ActionCreate, err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	res, err := h.resourceFor(r, schema.ActionUpdate)
	if err != nil {
		writeError(w, err)
		return
	}

	var payload record.Record
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	rec, err := res.MergeOne(r.Context(), chi.URLParam(r, "id"), payload, resource.MergeOptions{})
	h.countOperation(res.Name, schema.ActionUpdate, err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	res, err := h.resourceFor(r, schema.ActionRemove)
	if err != nil {
		writeError(w, err)
		return
	}

	removed, err := res.RemoveOne(r.Context(), chi.URLParam(r, "id"))
	h.countOperation(res.Name, schema.ActionRemove, err)
	if err != nil {
		writeError(w, err)
		return
	}
	if removed == 0 {
		writeError(w, apierror.ErrResourceNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

// -----------------------------------------------------------------------------
// Attachments
// -----------------------------------------------------------------------------

func (h *Handler) handleAttach(w http.ResponseWriter, r *http.Request) {
	res, err := h.resourceFor(r, schema.ActionUpdate)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, apierror.ErrMissingFile)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, apierror.ErrMissingFile)
		return
	}
	defer file.Close()

	rec, err := res.Attach(r.Context(), chi.URLParam(r, "id"), header.Filename, file)
	h.countOperation(res.Name, schema.ActionUpdate, err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	res, err := h.resourceFor(r, schema.ActionRead)
	if err != nil {
		writeError(w, err)
		return
	}

	rec, err := res.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if rec == nil {
		writeError(w, apierror.ErrResourceNotFound)
		return
	}

	att, ok := rec.Attachment(chi.URLParam(r, "attachmentID"))
	if !ok {
		writeError(w, apierror.NotFound("Attachment not found"))
		return
	}

	stream, err := res.ReadAttachment(r.Context(), att.File)
	h.countOperation(res.Name, schema.ActionRead, err)
	if err != nil {
		writeError(w, err)
		return
	}
	defer stream.Close()

	if att.MimeType != "" {
		w.Header().Set("Content-Type", att.MimeType)
	}
	if att.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(att.Size, 10))
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.Name))
	_, _ = io.Copy(w, stream)
}

func (h *Handler) handleDeleteAttachment(w http.ResponseWriter, r *http.Request) {
	res, err := h.resourceFor(r, schema.ActionUpdate)
	if err != nil {
		writeError(w, err)
		return
	}

	rec, err := res.DeleteAttachment(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "attachmentID"))
	h.countOperation(res.Name, schema.ActionUpdate, err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
