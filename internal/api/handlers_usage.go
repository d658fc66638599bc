package api

import (
	"net/http"

	"github.com/zysolutions/octodash/internal/pkg/httputil"
	"github.com/zysolutions/octodash/internal/usage"
)

// usagePercentages is how full each allowance is, 0-100.
type usagePercentages struct {
	Emails    int `json:"emails"`
	Contacts  int `json:"contacts"`
	Campaigns int `json:"campaigns"`
}

type usageResponse struct {
	usage.Snapshot
	Percentages usagePercentages `json:"percentages"`
}

func newUsageResponse(s usage.Snapshot) usageResponse {
	return usageResponse{
		Snapshot: s,
		Percentages: usagePercentages{
			Emails:    usage.Percent(s.Emails.Sent, s.Emails.Limit),
			Contacts:  usage.Percent(s.Contacts.Total, s.Contacts.Limit),
			Campaigns: usage.Percent(s.Campaigns.Created, s.Campaigns.Limit),
		},
	}
}

// GetUsage returns the cached account usage snapshot.
//
//	GET /api/usage
func (h *Handlers) GetUsage(w http.ResponseWriter, r *http.Request) {
	if h.usage == nil {
		httputil.ServiceUnavailable(w, "usage not configured")
		return
	}
	httputil.OK(w, newUsageResponse(h.usage.Get(r.Context())))
}

// RefreshUsage drops the cached snapshot and recomputes it.
//
//	POST /api/usage/refresh
func (h *Handlers) RefreshUsage(w http.ResponseWriter, r *http.Request) {
	if h.usage == nil {
		httputil.ServiceUnavailable(w, "usage not configured")
		return
	}
	httputil.OK(w, newUsageResponse(h.usage.Refresh(r.Context())))
}

// GetPerformance returns aggregate engagement over sent campaigns.
//
//	GET /api/performance
func (h *Handlers) GetPerformance(w http.ResponseWriter, r *http.Request) {
	if h.usage == nil {
		httputil.ServiceUnavailable(w, "usage not configured")
		return
	}
	s := h.usage.Get(r.Context())
	httputil.OK(w, map[string]interface{}{
		"performance": s.Performance,
		"lastUpdated": s.LastUpdated,
	})
}

// GetUsageLimits returns the caller's monthly allowance counters.
//
//	GET /api/usage/limits
func (h *Handlers) GetUsageLimits(w http.ResponseWriter, r *http.Request) {
	if h.quota == nil {
		httputil.ServiceUnavailable(w, "quota tracking not configured")
		return
	}
	summary, err := h.quota.Summary(r.Context(), userID(r))
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, safeErrorMessage(http.StatusInternalServerError, err))
		return
	}
	httputil.OK(w, summary)
}

// invalidateUsage marks the usage snapshot stale after a mutation.
func (h *Handlers) invalidateUsage() {
	if h.usage != nil {
		h.usage.Clear()
	}
}
