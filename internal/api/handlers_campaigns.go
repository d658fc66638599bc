package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/zysolutions/octodash/internal/emailoctopus"
	"github.com/zysolutions/octodash/internal/pkg/httputil"
	"github.com/zysolutions/octodash/internal/pkg/logger"
	"github.com/zysolutions/octodash/internal/quota"
	"github.com/zysolutions/octodash/internal/reports"
)

// GetCampaigns returns every campaign.
//
//	GET /api/campaigns
func (h *Handlers) GetCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := h.octopus.GetCampaigns(r.Context())
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"campaigns": campaigns, "count": len(campaigns)})
}

// GetCampaign returns one campaign.
//
//	GET /api/campaigns/{campaignID}
func (h *Handlers) GetCampaign(w http.ResponseWriter, r *http.Request) {
	campaign, err := h.octopus.GetCampaign(r.Context(), chi.URLParam(r, "campaignID"))
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	httputil.OK(w, campaign)
}

// buildReport fetches a campaign and its summary in parallel.
func (h *Handlers) buildReport(ctx context.Context, campaignID string) (reports.CampaignReport, error) {
	var (
		campaign *emailoctopus.Campaign
		summary  *emailoctopus.CampaignReport
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		campaign, err = h.octopus.GetCampaign(gctx, campaignID)
		return err
	})
	g.Go(func() error {
		var err error
		summary, err = h.octopus.GetCampaignReport(gctx, campaignID)
		return err
	})
	if err := g.Wait(); err != nil {
		return reports.CampaignReport{}, err
	}
	return reports.Build(*campaign, *summary), nil
}

// GetCampaignReport returns a campaign summary with derived rates.
//
//	GET /api/campaigns/{campaignID}/report
func (h *Handlers) GetCampaignReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.buildReport(r.Context(), chi.URLParam(r, "campaignID"))
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	httputil.OK(w, rep)
}

// DownloadCampaignReport returns the report as a CSV attachment.
//
//	GET /api/campaigns/{campaignID}/report.csv
func (h *Handlers) DownloadCampaignReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.buildReport(r.Context(), chi.URLParam(r, "campaignID"))
	if err != nil {
		respondUpstreamError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := reports.WriteCSV(&buf, rep); err != nil {
		httputil.InternalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", reports.FileName(rep, h.now())))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// recipients sums subscribed contacts across the lists a campaign targets.
func (h *Handlers) recipients(ctx context.Context, listIDs []string) (int64, error) {
	if len(listIDs) == 0 {
		return 0, nil
	}
	lists, err := h.octopus.GetLists(ctx)
	if err != nil {
		return 0, err
	}
	targeted := make(map[string]bool, len(listIDs))
	for _, id := range listIDs {
		targeted[id] = true
	}
	var n int64
	for _, l := range lists {
		if targeted[l.ID] {
			n += l.Counts.Subscribed
		}
	}
	return n, nil
}

// SendCampaign validates a draft and sends it. The send is charged
// against the caller's monthly email and campaign allowances.
//
//	POST /api/campaigns/{campaignID}/send
func (h *Handlers) SendCampaign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	campaignID := chi.URLParam(r, "campaignID")

	campaign, err := h.octopus.GetCampaign(ctx, campaignID)
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	n, err := h.recipients(ctx, campaign.To)
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	if !h.reserve(w, r, quota.CampaignsCreated, 1) {
		return
	}
	if !h.reserve(w, r, quota.EmailsSent, n) {
		h.release(r, quota.CampaignsCreated, 1)
		return
	}
	refund := func() {
		h.release(r, quota.CampaignsCreated, 1)
		h.release(r, quota.EmailsSent, n)
	}

	check, err := h.octopus.SendCampaignNow(ctx, campaignID)
	if err != nil {
		refund()
		respondUpstreamError(w, err)
		return
	}
	if !check.CanSend {
		refund()
		httputil.JSON(w, http.StatusUnprocessableEntity, httputil.ErrorResponse{
			Error: check.Reason,
			Code:  "not_sendable",
		})
		return
	}

	logger.Info("EmailOctopus: campaign sent", "campaign", campaignID, "recipients", n)
	h.invalidateUsage()
	httputil.OK(w, map[string]interface{}{
		"sent":       true,
		"campaign":   campaignID,
		"recipients": n,
	})
}
