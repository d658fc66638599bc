package usage

import (
	"math"

	"github.com/zysolutions/octodash/internal/emailoctopus"
)

// Performance totals engagement across sent campaigns with a report.
type Performance struct {
	TotalSent         int64 `json:"totalSent"`
	TotalOpened       int64 `json:"totalOpened"`
	TotalClicked      int64 `json:"totalClicked"`
	TotalUnsubscribed int64 `json:"totalUnsubscribed"`
	TotalBounced      int64 `json:"totalBounced"`
	OpenRate          int   `json:"openRate"`
	ClickRate         int   `json:"clickRate"`
	UnsubscribeRate   int   `json:"unsubscribeRate"`
	BounceRate        int   `json:"bounceRate"`
	Campaigns         int   `json:"campaigns"`
}

// Add folds one campaign report into the totals. Rates are not updated
// until Finalize.
func (p *Performance) Add(r *emailoctopus.CampaignReport) {
	p.TotalSent += r.Sent
	p.TotalOpened += r.Opened.Unique
	p.TotalClicked += r.Clicked.Unique
	p.TotalUnsubscribed += r.Unsubscribed
	p.TotalBounced += r.Bounced.Total()
	p.Campaigns++
}

// Finalize computes the rounded percentages from the totals.
func (p *Performance) Finalize() {
	p.OpenRate = ratePercent(p.TotalOpened, p.TotalSent)
	p.ClickRate = ratePercent(p.TotalClicked, p.TotalSent)
	p.UnsubscribeRate = ratePercent(p.TotalUnsubscribed, p.TotalSent)
	p.BounceRate = ratePercent(p.TotalBounced, p.TotalSent)
}

func ratePercent(n, sent int64) int {
	if sent == 0 {
		return 0
	}
	return int(math.Round(float64(n) / float64(sent) * 100))
}
