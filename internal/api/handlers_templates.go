package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zysolutions/octodash/internal/pkg/httputil"
	"github.com/zysolutions/octodash/internal/pkg/logger"
	"github.com/zysolutions/octodash/internal/quota"
	"github.com/zysolutions/octodash/internal/templates"
)

func (h *Handlers) templatesReady(w http.ResponseWriter) bool {
	if h.templates == nil {
		httputil.ServiceUnavailable(w, "template storage not configured")
		return false
	}
	return true
}

func respondTemplateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, templates.ErrNotFound):
		httputil.NotFound(w, "template not found")
	case errors.Is(err, templates.ErrInvalid):
		httputil.BadRequest(w, err.Error())
	default:
		respondSafeError(w, http.StatusInternalServerError, err, safeErrorMessage(http.StatusInternalServerError, err))
	}
}

// ListTemplates returns the caller's active templates, newest first.
//
//	GET /api/templates
func (h *Handlers) ListTemplates(w http.ResponseWriter, r *http.Request) {
	if !h.templatesReady(w) {
		return
	}
	list, err := h.templates.List(r.Context(), userID(r))
	if err != nil {
		respondTemplateError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"templates": list, "count": len(list)})
}

// GetTemplate returns one template.
//
//	GET /api/templates/{templateID}
func (h *Handlers) GetTemplate(w http.ResponseWriter, r *http.Request) {
	if !h.templatesReady(w) {
		return
	}
	t, err := h.templates.Get(r.Context(), userID(r), chi.URLParam(r, "templateID"))
	if err != nil {
		respondTemplateError(w, err)
		return
	}
	httputil.OK(w, t)
}

// CreateTemplate stores a new template and charges the template allowance.
//
//	POST /api/templates
func (h *Handlers) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	if !h.templatesReady(w) {
		return
	}
	var in templates.Input
	if !httputil.Decode(w, r, &in) {
		return
	}
	if err := in.Validate(); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if !h.reserve(w, r, quota.TemplatesCreated, 1) {
		return
	}

	t, err := h.templates.Create(r.Context(), userID(r), in)
	if err != nil {
		h.release(r, quota.TemplatesCreated, 1)
		respondTemplateError(w, err)
		return
	}
	httputil.Created(w, t)
}

// UpdateTemplate replaces the editable fields of a template.
//
//	PUT /api/templates/{templateID}
func (h *Handlers) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	if !h.templatesReady(w) {
		return
	}
	var in templates.Input
	if !httputil.Decode(w, r, &in) {
		return
	}
	t, err := h.templates.Update(r.Context(), userID(r), chi.URLParam(r, "templateID"), in)
	if err != nil {
		respondTemplateError(w, err)
		return
	}
	httputil.OK(w, t)
}

// DeleteTemplate deactivates a template.
//
//	DELETE /api/templates/{templateID}
func (h *Handlers) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if !h.templatesReady(w) {
		return
	}
	if err := h.templates.Delete(r.Context(), userID(r), chi.URLParam(r, "templateID")); err != nil {
		respondTemplateError(w, err)
		return
	}
	httputil.NoContent(w)
}

type previewRequest struct {
	Variables map[string]interface{} `json:"variables"`
	// RecordUse counts the preview as a use of the template.
	RecordUse bool `json:"record_use"`
}

// PreviewTemplate renders a template with sample variables.
//
//	POST /api/templates/{templateID}/preview
func (h *Handlers) PreviewTemplate(w http.ResponseWriter, r *http.Request) {
	if !h.templatesReady(w) {
		return
	}
	var req previewRequest
	if r.ContentLength != 0 && !httputil.Decode(w, r, &req) {
		return
	}

	id := chi.URLParam(r, "templateID")
	t, err := h.templates.Get(r.Context(), userID(r), id)
	if err != nil {
		respondTemplateError(w, err)
		return
	}
	out, err := h.renderer.Render(t, req.Variables)
	if err != nil {
		httputil.JSON(w, http.StatusUnprocessableEntity, httputil.ErrorResponse{
			Error: err.Error(),
			Code:  "render_failed",
		})
		return
	}

	if req.RecordUse {
		if err := h.templates.IncrementUsage(r.Context(), userID(r), id); err != nil {
			logger.Warn("Templates: usage count not updated", "template", id, "error", err)
		}
	}
	httputil.OK(w, out)
}
