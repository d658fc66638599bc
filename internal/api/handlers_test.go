package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zysolutions/octodash/internal/config"
	"github.com/zysolutions/octodash/internal/emailoctopus"
	"github.com/zysolutions/octodash/internal/quota"
	"github.com/zysolutions/octodash/internal/templates"
	"github.com/zysolutions/octodash/internal/usage"
)

// fakeOctopus implements OctopusAPI with canned data.
type fakeOctopus struct {
	mu        sync.Mutex
	lists     []emailoctopus.List
	campaigns map[string]emailoctopus.Campaign
	reports   map[string]emailoctopus.CampaignReport
	sendCheck *emailoctopus.SendCheck
	err       error

	// onCreate runs inside CreateContact before it returns.
	onCreate func()
	// importFailures is how many contacts of an import fail upstream.
	importFailures int

	created  []emailoctopus.ContactInput
	imported []emailoctopus.ContactInput
	sent     []string
}

func (f *fakeOctopus) Call(ctx context.Context, endpoint, method string, body interface{}) (json.RawMessage, error) {
	return json.RawMessage(`{}`), f.err
}

func (f *fakeOctopus) GetLists(ctx context.Context) ([]emailoctopus.List, error) {
	return f.lists, f.err
}

func (f *fakeOctopus) CreateList(ctx context.Context, name string) (*emailoctopus.List, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &emailoctopus.List{ID: "new", Name: name}, nil
}

func (f *fakeOctopus) GetContacts(ctx context.Context, listID string) ([]emailoctopus.Contact, error) {
	return nil, f.err
}

func (f *fakeOctopus) CreateContact(ctx context.Context, listID string, in emailoctopus.ContactInput) (*emailoctopus.Contact, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.onCreate != nil {
		f.onCreate()
	}
	f.mu.Lock()
	f.created = append(f.created, in)
	f.mu.Unlock()
	return &emailoctopus.Contact{ID: "c1", EmailAddress: in.Email}, nil
}

func (f *fakeOctopus) DeleteContact(ctx context.Context, listID, contactID string) error {
	return f.err
}

func (f *fakeOctopus) ImportContacts(ctx context.Context, listID string, contacts []emailoctopus.ContactInput) (*emailoctopus.ImportResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	f.imported = append(f.imported, contacts...)
	f.mu.Unlock()
	return &emailoctopus.ImportResult{
		Success: len(contacts) - f.importFailures,
		Failed:  f.importFailures,
	}, nil
}

func (f *fakeOctopus) GetCampaigns(ctx context.Context) ([]emailoctopus.Campaign, error) {
	var out []emailoctopus.Campaign
	for _, c := range f.campaigns {
		out = append(out, c)
	}
	return out, f.err
}

func (f *fakeOctopus) GetCampaign(ctx context.Context, campaignID string) (*emailoctopus.Campaign, error) {
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.campaigns[campaignID]
	if !ok {
		return nil, &emailoctopus.APIError{StatusCode: http.StatusNotFound, Endpoint: "/campaigns/" + campaignID}
	}
	return &c, nil
}

func (f *fakeOctopus) GetCampaignReport(ctx context.Context, campaignID string) (*emailoctopus.CampaignReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.reports[campaignID]
	if !ok {
		return nil, &emailoctopus.APIError{StatusCode: http.StatusNotFound}
	}
	return &r, nil
}

func (f *fakeOctopus) SendCampaignNow(ctx context.Context, campaignID string) (*emailoctopus.SendCheck, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.sendCheck != nil && !f.sendCheck.CanSend {
		return f.sendCheck, nil
	}
	f.mu.Lock()
	f.sent = append(f.sent, campaignID)
	f.mu.Unlock()
	return &emailoctopus.SendCheck{CanSend: true}, nil
}

// fakeUsage implements UsageCache.
type fakeUsage struct {
	snapshot  usage.Snapshot
	refreshes int
	clears    int
}

func (f *fakeUsage) Get(ctx context.Context) usage.Snapshot { return f.snapshot }

func (f *fakeUsage) Refresh(ctx context.Context) usage.Snapshot {
	f.refreshes++
	return f.snapshot
}

func (f *fakeUsage) Clear() { f.clears++ }

// fakeTemplates implements TemplateStore in memory.
type fakeTemplates struct {
	items map[string]*templates.Template
	uses  int
}

func (f *fakeTemplates) List(ctx context.Context, userID string) ([]templates.Template, error) {
	var out []templates.Template
	for _, t := range f.items {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTemplates) Get(ctx context.Context, userID, id string) (*templates.Template, error) {
	t, ok := f.items[id]
	if !ok || t.UserID != userID {
		return nil, templates.ErrNotFound
	}
	return t, nil
}

func (f *fakeTemplates) Create(ctx context.Context, userID string, in templates.Input) (*templates.Template, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	t := &templates.Template{ID: "t-new", UserID: userID, Name: in.Name, Subject: in.Subject,
		Category: in.Category, Content: in.Content, HTMLContent: in.HTMLContent, IsActive: true}
	f.items[t.ID] = t
	return t, nil
}

func (f *fakeTemplates) Update(ctx context.Context, userID, id string, in templates.Input) (*templates.Template, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	t, err := f.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	t.Name, t.Subject = in.Name, in.Subject
	return t, nil
}

func (f *fakeTemplates) Delete(ctx context.Context, userID, id string) error {
	if _, err := f.Get(ctx, userID, id); err != nil {
		return err
	}
	delete(f.items, id)
	return nil
}

func (f *fakeTemplates) IncrementUsage(ctx context.Context, userID, id string) error {
	f.uses++
	return nil
}

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	handlers  *Handlers
	octopus   *fakeOctopus
	usage     *fakeUsage
	tracker   *quota.Tracker
	templates *fakeTemplates
	router    http.Handler
}

func newTestEnv(t *testing.T, limits quota.Limits) *testEnv {
	t.Helper()
	octo := &fakeOctopus{
		lists: []emailoctopus.List{
			{ID: "l1", Name: "Clientes", Counts: emailoctopus.ListCounts{Subscribed: 120}},
			{ID: "l2", Name: "Leads", Counts: emailoctopus.ListCounts{Subscribed: 30}},
		},
		campaigns: map[string]emailoctopus.Campaign{
			"c1": {ID: "c1", Status: emailoctopus.StatusDraft, Name: "Promo Marzo", Subject: "Hola", To: []string{"l1"}},
			"c2": {ID: "c2", Status: emailoctopus.StatusSent, Name: "Newsletter Febrero", Subject: "News", To: []string{"l1", "l2"}},
		},
		reports: map[string]emailoctopus.CampaignReport{
			"c2": {
				Sent:      200,
				Delivered: 190,
				Bounced:   emailoctopus.Bounces{Hard: 6, Soft: 4},
				Opened:    emailoctopus.TotalUnique{Total: 120, Unique: 80},
				Clicked:   emailoctopus.TotalUnique{Total: 30, Unique: 20},
			},
		},
	}
	fu := &fakeUsage{snapshot: usage.NewSnapshot(500, 350, 2, usage.DefaultLimits, usage.Performance{}, testNow)}
	tracker := quota.NewTracker(quota.NewMemoryStore(), limits, clockwork.NewFakeClockAt(testNow))
	ft := &fakeTemplates{items: map[string]*templates.Template{
		"t1": {ID: "t1", UserID: localUser, Name: "Bienvenida", Subject: "Hola {{ first_name }}",
			Content: "Gracias {{ first_name }}", HTMLContent: "<p>Gracias {{ first_name }}</p>", IsActive: true},
	}}

	h := NewHandlers(octo, fu)
	h.SetQuotaTracker(tracker)
	h.SetTemplateStore(ft)
	h.now = func() time.Time { return testNow }

	return &testEnv{
		handlers:  h,
		octopus:   octo,
		usage:     fu,
		tracker:   tracker,
		templates: ft,
		router:    SetupRoutes(h, config.ServerConfig{AllowedOrigins: []string{"http://localhost:5173"}}, Options{}),
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestGetUsage(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/usage", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	emails := body["emails"].(map[string]interface{})
	assert.Equal(t, float64(500), emails["sent"])
	assert.Equal(t, float64(9500), emails["remaining"])
	contacts := body["contacts"].(map[string]interface{})
	assert.Equal(t, float64(350), contacts["total"])

	pct := body["percentages"].(map[string]interface{})
	assert.Equal(t, float64(5), pct["emails"])
	assert.Equal(t, float64(14), pct["contacts"])
	assert.Equal(t, float64(4), pct["campaigns"])
	assert.Contains(t, body, "lastUpdated")
}

func TestRefreshUsage(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/usage/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, env.usage.refreshes)
}

func TestUsageNotConfigured(t *testing.T) {
	h := NewHandlers(&fakeOctopus{}, nil)
	router := SetupRoutes(h, config.ServerConfig{}, Options{})

	for _, path := range []string{"/api/usage", "/api/performance", "/api/usage/limits"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
}

func TestGetUsageLimits(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, env.tracker.Increment(context.Background(), localUser, quota.EmailsSent, 2555))

	rec := env.do(t, http.MethodGet, "/api/usage/limits", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	kinds := body["kinds"].(map[string]interface{})
	emails := kinds["emails_sent"].(map[string]interface{})
	assert.Equal(t, float64(2555), emails["used"])
	assert.Equal(t, float64(26), emails["percentage"])
	assert.Equal(t, float64(22), body["days_until_reset"])
}

func TestCreateContact(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/lists/l1/contacts",
		`{"email":" ana@example.com ","first_name":"Ana"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	require.Len(t, env.octopus.created, 1)
	assert.Equal(t, "ana@example.com", env.octopus.created[0].Email)
	assert.Equal(t, 1, env.usage.clears)

	u, err := env.tracker.Current(context.Background(), localUser)
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.Counts[quota.ContactsImported])
}

func TestCreateContactInvalidEmail(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/lists/l1/contacts", `{"email":"not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, env.octopus.created)
}

func TestCreateContactOverQuota(t *testing.T) {
	limits := quota.Limits{
		quota.EmailsSent:       10000,
		quota.ContactsImported: 1,
		quota.CampaignsCreated: 50,
		quota.TemplatesCreated: 20,
	}
	env := newTestEnv(t, limits)
	require.NoError(t, env.tracker.Increment(context.Background(), localUser, quota.ContactsImported, 1))

	rec := env.do(t, http.MethodPost, "/api/lists/l1/contacts", `{"email":"ana@example.com"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "quota_exceeded", decodeBody(t, rec)["code"])
	assert.Empty(t, env.octopus.created)
}

func TestImportContactsSkipsInvalid(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/lists/l1/import", `{"contacts":[
		{"email":"a@example.com"},
		{"email":"broken"},
		{"email":"b@example.com","last_name":"Ruiz"}
	]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, float64(2), body["success"])
	assert.Equal(t, []interface{}{"broken"}, body["invalid"])
	assert.Len(t, env.octopus.imported, 2)

	u, err := env.tracker.Current(context.Background(), localUser)
	require.NoError(t, err)
	assert.Equal(t, int64(2), u.Counts[quota.ContactsImported])
}

func TestImportContactsEmpty(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodPost, "/api/lists/l1/import", `{"contacts":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendCampaignChargesRecipients(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/campaigns/c1/send", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, float64(120), body["recipients"])
	assert.Equal(t, []string{"c1"}, env.octopus.sent)
	assert.Equal(t, 1, env.usage.clears)

	u, err := env.tracker.Current(context.Background(), localUser)
	require.NoError(t, err)
	assert.Equal(t, int64(120), u.Counts[quota.EmailsSent])
	assert.Equal(t, int64(1), u.Counts[quota.CampaignsCreated])
}

func TestSendCampaignNotSendable(t *testing.T) {
	env := newTestEnv(t, nil)
	env.octopus.sendCheck = &emailoctopus.SendCheck{CanSend: false, Reason: "campaign has no subject"}

	rec := env.do(t, http.MethodPost, "/api/campaigns/c1/send", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "campaign has no subject", decodeBody(t, rec)["error"])
	assert.Empty(t, env.octopus.sent)
	assert.Equal(t, 0, env.usage.clears)
}

func TestSendCampaignOverEmailQuota(t *testing.T) {
	limits := quota.Limits{
		quota.EmailsSent:       100,
		quota.ContactsImported: 2400,
		quota.CampaignsCreated: 50,
		quota.TemplatesCreated: 20,
	}
	env := newTestEnv(t, limits)

	rec := env.do(t, http.MethodPost, "/api/campaigns/c1/send", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, env.octopus.sent)
}

func TestCampaignNotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/api/campaigns/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpstreamErrorIsBadGateway(t *testing.T) {
	env := newTestEnv(t, nil)
	env.octopus.err = &emailoctopus.APIError{StatusCode: http.StatusUnauthorized, Body: `{"error":{"code":"INVALID_API_KEY"}}`}

	rec := env.do(t, http.MethodGet, "/api/lists", "")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "EmailOctopus API error: 401", body["error"])
}

func TestGetCampaignReport(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/campaigns/c2/report", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "Newsletter Febrero", body["campaign_name"])
	rates := body["rates"].(map[string]interface{})
	assert.Equal(t, float64(40), rates["open_rate"])
	assert.Equal(t, float64(25), rates["click_to_open_rate"])
}

func TestDownloadCampaignReport(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/campaigns/c2/report.csv", "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="report_Newsletter_Febrero_2026-03-10.csv"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\ufeffMetric,Value,Rate\r\n")))
}

func TestTemplatesCRUD(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/templates", `{"name":"Promo","subject":"Oferta","content":"Hola"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody(t, rec)
	assert.Equal(t, "general", created["category"])
	assert.Equal(t, "Hola", created["html_content"])

	u, err := env.tracker.Current(context.Background(), localUser)
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.Counts[quota.TemplatesCreated])

	rec = env.do(t, http.MethodGet, "/api/templates", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decodeBody(t, rec)["count"])

	rec = env.do(t, http.MethodPut, "/api/templates/t-new", `{"name":"Promo 2","subject":"Oferta"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Promo 2", decodeBody(t, rec)["name"])

	rec = env.do(t, http.MethodDelete, "/api/templates/t-new", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/templates/t-new", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateTemplateValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/templates", `{"name":"","subject":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	u, err := env.tracker.Current(context.Background(), localUser)
	require.NoError(t, err)
	assert.Zero(t, u.Counts[quota.TemplatesCreated])
}

func TestPreviewTemplate(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/templates/t1/preview",
		`{"variables":{"first_name":"Lucía"},"record_use":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, "Hola Lucía", body["subject"])
	assert.Equal(t, "<p>Gracias Lucía</p>", body["html"])
	assert.Equal(t, 1, env.templates.uses)
}

func TestPreviewTemplateWithoutBody(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/templates/t1/preview", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Hola ", decodeBody(t, rec)["subject"])
	assert.Equal(t, 0, env.templates.uses)
}

func TestTemplatesNotConfigured(t *testing.T) {
	h := NewHandlers(&fakeOctopus{}, &fakeUsage{})
	router := SetupRoutes(h, config.ServerConfig{}, Options{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/templates", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func limitsWith(kind quota.Kind, max int64) quota.Limits {
	limits := quota.Limits{}
	for k, v := range quota.DefaultLimits {
		limits[k] = v
	}
	limits[kind] = max
	return limits
}

func used(t *testing.T, env *testEnv, kind quota.Kind) int64 {
	t.Helper()
	u, err := env.tracker.Current(context.Background(), localUser)
	require.NoError(t, err)
	return u.Counts[kind]
}

func TestCreateContactOverlappingRequestsRespectQuota(t *testing.T) {
	env := newTestEnv(t, limitsWith(quota.ContactsImported, 1))

	inFlight := make(chan struct{})
	proceed := make(chan struct{})
	env.octopus.onCreate = func() {
		close(inFlight)
		<-proceed
	}

	first := make(chan int)
	go func() {
		first <- env.do(t, http.MethodPost, "/api/lists/l1/contacts", `{"email":"ana@example.com"}`).Code
	}()
	<-inFlight

	rec := env.do(t, http.MethodPost, "/api/lists/l1/contacts", `{"email":"luis@example.com"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "quota_exceeded", decodeBody(t, rec)["code"])

	close(proceed)
	assert.Equal(t, http.StatusCreated, <-first)

	env.octopus.mu.Lock()
	assert.Len(t, env.octopus.created, 1)
	env.octopus.mu.Unlock()
	assert.Equal(t, int64(1), used(t, env, quota.ContactsImported))
}

func TestCreateContactUpstreamFailureRefunds(t *testing.T) {
	env := newTestEnv(t, limitsWith(quota.ContactsImported, 1))
	env.octopus.err = &emailoctopus.APIError{StatusCode: http.StatusInternalServerError}

	rec := env.do(t, http.MethodPost, "/api/lists/l1/contacts", `{"email":"ana@example.com"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Zero(t, used(t, env, quota.ContactsImported))

	env.octopus.err = nil
	rec = env.do(t, http.MethodPost, "/api/lists/l1/contacts", `{"email":"ana@example.com"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestImportContactsChargesOnlySuccesses(t *testing.T) {
	env := newTestEnv(t, nil)
	env.octopus.importFailures = 1

	rec := env.do(t, http.MethodPost, "/api/lists/l1/import", `{"contacts":[
		{"email":"a@example.com"},
		{"email":"b@example.com"},
		{"email":"c@example.com"}
	]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(2), used(t, env, quota.ContactsImported))
	assert.Equal(t, 1, env.usage.clears)
}

func TestImportContactsOverQuotaSendsNothing(t *testing.T) {
	env := newTestEnv(t, limitsWith(quota.ContactsImported, 2))

	rec := env.do(t, http.MethodPost, "/api/lists/l1/import", `{"contacts":[
		{"email":"a@example.com"},
		{"email":"b@example.com"},
		{"email":"c@example.com"}
	]}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, env.octopus.imported)
	assert.Zero(t, used(t, env, quota.ContactsImported))
}

func TestSendCampaignRefusalRefundsCampaign(t *testing.T) {
	env := newTestEnv(t, limitsWith(quota.EmailsSent, 100))

	rec := env.do(t, http.MethodPost, "/api/campaigns/c1/send", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, used(t, env, quota.CampaignsCreated))
	assert.Zero(t, used(t, env, quota.EmailsSent))
}

func TestSendCampaignNotSendableRefunds(t *testing.T) {
	env := newTestEnv(t, nil)
	env.octopus.sendCheck = &emailoctopus.SendCheck{CanSend: false, Reason: "campaign has no subject"}

	rec := env.do(t, http.MethodPost, "/api/campaigns/c1/send", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Zero(t, used(t, env, quota.CampaignsCreated))
	assert.Zero(t, used(t, env, quota.EmailsSent))
}
