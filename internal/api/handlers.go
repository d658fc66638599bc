package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/zysolutions/octodash/internal/auth"
	"github.com/zysolutions/octodash/internal/emailoctopus"
	"github.com/zysolutions/octodash/internal/images"
	"github.com/zysolutions/octodash/internal/quota"
	"github.com/zysolutions/octodash/internal/sheets"
	"github.com/zysolutions/octodash/internal/templates"
	"github.com/zysolutions/octodash/internal/usage"
)

// OctopusAPI is the EmailOctopus client surface the handlers use.
type OctopusAPI interface {
	Call(ctx context.Context, endpoint, method string, body interface{}) (json.RawMessage, error)
	GetLists(ctx context.Context) ([]emailoctopus.List, error)
	CreateList(ctx context.Context, name string) (*emailoctopus.List, error)
	GetContacts(ctx context.Context, listID string) ([]emailoctopus.Contact, error)
	CreateContact(ctx context.Context, listID string, in emailoctopus.ContactInput) (*emailoctopus.Contact, error)
	DeleteContact(ctx context.Context, listID, contactID string) error
	ImportContacts(ctx context.Context, listID string, contacts []emailoctopus.ContactInput) (*emailoctopus.ImportResult, error)
	GetCampaigns(ctx context.Context) ([]emailoctopus.Campaign, error)
	GetCampaign(ctx context.Context, campaignID string) (*emailoctopus.Campaign, error)
	GetCampaignReport(ctx context.Context, campaignID string) (*emailoctopus.CampaignReport, error)
	SendCampaignNow(ctx context.Context, campaignID string) (*emailoctopus.SendCheck, error)
}

// UsageCache serves the usage snapshot. *usage.Cache implements it.
type UsageCache interface {
	Get(ctx context.Context) usage.Snapshot
	Refresh(ctx context.Context) usage.Snapshot
	Clear()
}

// QuotaTracker enforces the per-user monthly allowance. *quota.Tracker implements it.
type QuotaTracker interface {
	Summary(ctx context.Context, userID string) (quota.Summary, error)
	Increment(ctx context.Context, userID string, kind quota.Kind, n int64) error
	Release(ctx context.Context, userID string, kind quota.Kind, n int64) error
}

// TemplateStore persists templates. *templates.Store implements it.
type TemplateStore interface {
	List(ctx context.Context, userID string) ([]templates.Template, error)
	Get(ctx context.Context, userID, id string) (*templates.Template, error)
	Create(ctx context.Context, userID string, in templates.Input) (*templates.Template, error)
	Update(ctx context.Context, userID, id string, in templates.Input) (*templates.Template, error)
	Delete(ctx context.Context, userID, id string) error
	IncrementUsage(ctx context.Context, userID, id string) error
}

// ImageUploader stores uploaded images. *images.Store implements it.
type ImageUploader interface {
	Upload(ctx context.Context, userID string, r io.Reader) (*images.Image, error)
	MaxBytes() int64
}

// SheetCampaigns reads campaign rows recorded in the spreadsheet.
type SheetCampaigns interface {
	CampaignsFor(ctx context.Context, email string) ([]sheets.Campaign, error)
}

// Handlers contains all HTTP handlers
type Handlers struct {
	octopus   OctopusAPI
	usage     UsageCache
	quota     QuotaTracker
	templates TemplateStore
	renderer  *templates.Renderer
	images    ImageUploader
	sheets    SheetCampaigns
	now       func() time.Time
}

// NewHandlers creates a new Handlers instance
func NewHandlers(octopus OctopusAPI, usageCache UsageCache) *Handlers {
	return &Handlers{
		octopus:  octopus,
		usage:    usageCache,
		renderer: templates.NewRenderer(),
		now:      time.Now,
	}
}

// SetQuotaTracker sets the monthly allowance tracker
func (h *Handlers) SetQuotaTracker(t QuotaTracker) {
	h.quota = t
}

// SetTemplateStore sets the template store
func (h *Handlers) SetTemplateStore(s TemplateStore) {
	h.templates = s
}

// SetImageUploader sets the image store
func (h *Handlers) SetImageUploader(u ImageUploader) {
	h.images = u
}

// SetSheetCampaigns sets the spreadsheet campaign reader
func (h *Handlers) SetSheetCampaigns(s SheetCampaigns) {
	h.sheets = s
}

// localUser owns data when the server runs with auth disabled.
const localUser = "local"

func userID(r *http.Request) string {
	if s := auth.SessionFromContext(r.Context()); s != nil {
		return s.Email
	}
	return localUser
}
