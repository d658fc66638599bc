package api

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zysolutions/octodash/internal/emailoctopus"
	"github.com/zysolutions/octodash/internal/pkg/httputil"
	"github.com/zysolutions/octodash/internal/pkg/logger"
	"github.com/zysolutions/octodash/internal/quota"
)

// maxImportContacts bounds one import request.
const maxImportContacts = 1000

// reserve charges n of kind to the caller's allowance before anything is
// sent upstream. It writes a 403 and returns false when the allowance is
// exhausted. Without a tracker everything is allowed.
func (h *Handlers) reserve(w http.ResponseWriter, r *http.Request, kind quota.Kind, n int64) bool {
	if h.quota == nil || n <= 0 {
		return true
	}
	err := h.quota.Increment(r.Context(), userID(r), kind, n)
	if errors.Is(err, quota.ErrLimitExceeded) {
		httputil.JSON(w, http.StatusForbidden, httputil.ErrorResponse{
			Error: "monthly limit reached for " + string(kind),
			Code:  "quota_exceeded",
		})
		return false
	}
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "quota check failed")
		return false
	}
	return true
}

// release hands back n reserved units of kind that were never used upstream.
// It runs after the response may have been cancelled, so it ignores the
// request's cancellation and only logs failures.
func (h *Handlers) release(r *http.Request, kind quota.Kind, n int64) {
	if h.quota == nil || n <= 0 {
		return
	}
	ctx := context.WithoutCancel(r.Context())
	if err := h.quota.Release(ctx, userID(r), kind, n); err != nil {
		logger.Warn("Quota: release failed", "kind", kind, "n", n, "error", err)
	}
}

// GetLists returns every list with its contact counts.
//
//	GET /api/lists
func (h *Handlers) GetLists(w http.ResponseWriter, r *http.Request) {
	lists, err := h.octopus.GetLists(r.Context())
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"lists": lists, "count": len(lists)})
}

type createListRequest struct {
	Name string `json:"name"`
}

// CreateList creates a list with the default name fields.
//
//	POST /api/lists
func (h *Handlers) CreateList(w http.ResponseWriter, r *http.Request) {
	var req createListRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		httputil.BadRequest(w, "name is required")
		return
	}

	list, err := h.octopus.CreateList(r.Context(), req.Name)
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	httputil.Created(w, list)
}

// GetContacts returns the contacts of one list.
//
//	GET /api/lists/{listID}/contacts
func (h *Handlers) GetContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.octopus.GetContacts(r.Context(), chi.URLParam(r, "listID"))
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"contacts": contacts, "count": len(contacts)})
}

func normalizeContact(in emailoctopus.ContactInput) (emailoctopus.ContactInput, bool) {
	in.Email = strings.TrimSpace(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return in, false
	}
	return in, true
}

// CreateContact subscribes one contact to a list.
//
//	POST /api/lists/{listID}/contacts
func (h *Handlers) CreateContact(w http.ResponseWriter, r *http.Request) {
	var in emailoctopus.ContactInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	in, ok := normalizeContact(in)
	if !ok {
		httputil.BadRequest(w, "a valid email is required")
		return
	}
	if !h.reserve(w, r, quota.ContactsImported, 1) {
		return
	}

	contact, err := h.octopus.CreateContact(r.Context(), chi.URLParam(r, "listID"), in)
	if err != nil {
		h.release(r, quota.ContactsImported, 1)
		respondUpstreamError(w, err)
		return
	}
	h.invalidateUsage()
	httputil.Created(w, contact)
}

// DeleteContact removes a contact from a list.
//
//	DELETE /api/lists/{listID}/contacts/{contactID}
func (h *Handlers) DeleteContact(w http.ResponseWriter, r *http.Request) {
	err := h.octopus.DeleteContact(r.Context(), chi.URLParam(r, "listID"), chi.URLParam(r, "contactID"))
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	h.invalidateUsage()
	httputil.NoContent(w)
}

type importRequest struct {
	Contacts []emailoctopus.ContactInput `json:"contacts"`
}

type importResponse struct {
	*emailoctopus.ImportResult
	Invalid []string `json:"invalid,omitempty"`
}

// ImportContacts adds contacts one at a time. Rows without a valid email
// are rejected before anything is sent upstream.
//
//	POST /api/lists/{listID}/import
func (h *Handlers) ImportContacts(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if len(req.Contacts) == 0 {
		httputil.BadRequest(w, "contacts is required")
		return
	}
	if len(req.Contacts) > maxImportContacts {
		httputil.BadRequest(w, "too many contacts in one import")
		return
	}

	valid := make([]emailoctopus.ContactInput, 0, len(req.Contacts))
	var invalid []string
	for _, c := range req.Contacts {
		if nc, ok := normalizeContact(c); ok {
			valid = append(valid, nc)
		} else {
			invalid = append(invalid, c.Email)
		}
	}
	if len(valid) == 0 {
		httputil.ErrorWithDetails(w, http.StatusBadRequest, "no valid contacts", map[string]interface{}{"invalid": invalid})
		return
	}
	reserved := int64(len(valid))
	if !h.reserve(w, r, quota.ContactsImported, reserved) {
		return
	}

	listID := chi.URLParam(r, "listID")
	result, err := h.octopus.ImportContacts(r.Context(), listID, valid)
	var imported int64
	if result != nil {
		imported = int64(result.Success)
	}
	// Only contacts that actually landed upstream stay charged.
	h.release(r, quota.ContactsImported, reserved-imported)
	if imported > 0 {
		h.invalidateUsage()
	}
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	logger.Info("EmailOctopus: import finished", "list", listID,
		"success", result.Success, "failed", result.Failed, "invalid", len(invalid))
	httputil.OK(w, importResponse{ImportResult: result, Invalid: invalid})
}
