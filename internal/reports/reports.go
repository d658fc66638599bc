// Package reports turns EmailOctopus campaign summaries into the rate
// breakdown shown on the reports page and its CSV export.
package reports

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/zysolutions/octodash/internal/emailoctopus"
)

// Rates are percentages of sent, except ClickToOpen which is clicks over opens.
// All are rounded to two decimals and zero when the denominator is zero.
type Rates struct {
	Delivery    float64 `json:"delivery_rate"`
	Open        float64 `json:"open_rate"`
	Click       float64 `json:"click_rate"`
	ClickToOpen float64 `json:"click_to_open_rate"`
	Unsubscribe float64 `json:"unsubscribe_rate"`
	Bounce      float64 `json:"bounce_rate"`
	Complaint   float64 `json:"complaint_rate"`
}

// CampaignReport pairs a campaign with its summary and derived rates.
type CampaignReport struct {
	CampaignID   string                      `json:"campaign_id"`
	CampaignName string                      `json:"campaign_name"`
	Subject      string                      `json:"subject"`
	SentAt       *string                     `json:"sent_at,omitempty"`
	Summary      emailoctopus.CampaignReport `json:"summary"`
	Rates        Rates                       `json:"rates"`
}

func rate(n, d int64) float64 {
	if d == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(d)*100*100) / 100
}

// delivered falls back to sent minus bounces when the API omits it.
func delivered(r emailoctopus.CampaignReport) int64 {
	if r.Delivered > 0 || r.Sent == 0 {
		return r.Delivered
	}
	d := r.Sent - r.Bounced.Total()
	if d < 0 {
		return 0
	}
	return d
}

// ComputeRates derives every rate from a summary.
func ComputeRates(r emailoctopus.CampaignReport) Rates {
	return Rates{
		Delivery:    rate(delivered(r), r.Sent),
		Open:        rate(r.Opened.Unique, r.Sent),
		Click:       rate(r.Clicked.Unique, r.Sent),
		ClickToOpen: rate(r.Clicked.Unique, r.Opened.Unique),
		Unsubscribe: rate(r.Unsubscribed, r.Sent),
		Bounce:      rate(r.Bounced.Total(), r.Sent),
		Complaint:   rate(r.Complained, r.Sent),
	}
}

// Build assembles the report view for a campaign.
func Build(c emailoctopus.Campaign, r emailoctopus.CampaignReport) CampaignReport {
	r.Delivered = delivered(r)
	return CampaignReport{
		CampaignID:   c.ID,
		CampaignName: c.Name,
		Subject:      c.Subject,
		SentAt:       c.SentAt,
		Summary:      r,
		Rates:        ComputeRates(r),
	}
}

func pct(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64) + "%"
}

// WriteCSV writes the metric table with a UTF-8 BOM and CRLF line endings
// so spreadsheet apps open it with the right encoding.
func WriteCSV(w io.Writer, rep CampaignReport) error {
	if _, err := io.WriteString(w, "\ufeff"); err != nil {
		return err
	}

	s := rep.Summary
	rows := [][]string{
		{"Metric", "Value", "Rate"},
		{"Sent", strconv.FormatInt(s.Sent, 10), "100%"},
		{"Delivered", strconv.FormatInt(s.Delivered, 10), pct(rep.Rates.Delivery)},
		{"Unique opens", strconv.FormatInt(s.Opened.Unique, 10), pct(rep.Rates.Open)},
		{"Total opens", strconv.FormatInt(s.Opened.Total, 10), "-"},
		{"Unique clicks", strconv.FormatInt(s.Clicked.Unique, 10), pct(rep.Rates.Click)},
		{"Total clicks", strconv.FormatInt(s.Clicked.Total, 10), "-"},
		{"Click-to-open", strconv.FormatInt(s.Clicked.Unique, 10), pct(rep.Rates.ClickToOpen)},
		{"Unsubscribed", strconv.FormatInt(s.Unsubscribed, 10), pct(rep.Rates.Unsubscribe)},
		{"Hard bounces", strconv.FormatInt(s.Bounced.Hard, 10), pct(rate(s.Bounced.Hard, s.Sent))},
		{"Soft bounces", strconv.FormatInt(s.Bounced.Soft, 10), pct(rate(s.Bounced.Soft, s.Sent))},
		{"Complaints", strconv.FormatInt(s.Complained, 10), pct(rep.Rates.Complaint)},
	}

	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

var unsafeName = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)

// FileName returns report_<campaign>_<yyyy-mm-dd>.csv.
func FileName(rep CampaignReport, now time.Time) string {
	name := unsafeName.ReplaceAllString(rep.CampaignName, "")
	name = strings.Join(strings.Fields(name), "_")
	if name == "" {
		name = rep.CampaignID
	}
	return fmt.Sprintf("report_%s_%s.csv", name, now.UTC().Format("2006-01-02"))
}
