package api

import (
	"net/http"

	"github.com/zysolutions/octodash/internal/pkg/httputil"
)

// GetSheetCampaigns returns the campaign rows recorded for the caller in
// the spreadsheet.
//
//	GET /api/sheets/campaigns
func (h *Handlers) GetSheetCampaigns(w http.ResponseWriter, r *http.Request) {
	if h.sheets == nil {
		httputil.ServiceUnavailable(w, "google sheets not configured")
		return
	}
	campaigns, err := h.sheets.CampaignsFor(r.Context(), userID(r))
	if err != nil {
		respondSafeError(w, http.StatusBadGateway, err, safeErrorMessage(http.StatusBadGateway, err))
		return
	}
	httputil.OK(w, map[string]interface{}{"campaigns": campaigns, "count": len(campaigns)})
}
