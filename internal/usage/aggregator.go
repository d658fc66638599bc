package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/zysolutions/octodash/internal/emailoctopus"
	"github.com/zysolutions/octodash/internal/metrics"
	"github.com/zysolutions/octodash/internal/pkg/logger"
)

// Source is the subset of the EmailOctopus client the Aggregator reads from.
type Source interface {
	GetLists(ctx context.Context) ([]emailoctopus.List, error)
	GetCampaigns(ctx context.Context) ([]emailoctopus.Campaign, error)
	GetCampaignReport(ctx context.Context, campaignID string) (*emailoctopus.CampaignReport, error)
}

// DefaultFanOut caps concurrent report fetches.
const DefaultFanOut = 5

// Aggregator computes a Snapshot from the current upstream state.
type Aggregator struct {
	source Source
	limits Limits
	fanOut int
	clock  clockwork.Clock
}

// NewAggregator creates an Aggregator. A nil clock uses the wall clock.
func NewAggregator(source Source, limits Limits, fanOut int, clock clockwork.Clock) *Aggregator {
	if fanOut <= 0 {
		fanOut = DefaultFanOut
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Aggregator{source: source, limits: limits, fanOut: fanOut, clock: clock}
}

// Limits returns the plan limits the Aggregator derives remaining counts from.
func (a *Aggregator) Limits() Limits {
	return a.limits
}

// Compute fetches lists and campaigns concurrently, then the report of every
// SENT campaign through a bounded pool. A failed list or campaign fetch fails
// the whole computation. A failed report is logged and skipped.
func (a *Aggregator) Compute(ctx context.Context) (Snapshot, error) {
	var (
		lists     []emailoctopus.List
		campaigns []emailoctopus.Campaign
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lists, err = a.source.GetLists(gctx)
		if err != nil {
			return fmt.Errorf("failed to fetch lists: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		campaigns, err = a.source.GetCampaigns(gctx)
		if err != nil {
			return fmt.Errorf("failed to fetch campaigns: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	var contacts int64
	for _, l := range lists {
		contacts += l.Counts.Subscribed
	}

	var sentIDs []string
	for _, c := range campaigns {
		if c.Status == emailoctopus.StatusSent {
			sentIDs = append(sentIDs, c.ID)
		}
	}

	reports := a.fetchReports(ctx, sentIDs)
	if err := ctx.Err(); err != nil {
		// Skipped reports would be indistinguishable from real failures.
		return Snapshot{}, fmt.Errorf("usage computation interrupted: %w", err)
	}

	// Summed in campaign order so the result does not depend on completion order.
	var sent int64
	var perf Performance
	for _, r := range reports {
		if r == nil {
			continue
		}
		sent += r.Sent
		perf.Add(r)
	}
	perf.Finalize()

	return NewSnapshot(sent, contacts, int64(len(campaigns)), a.limits, perf, a.clock.Now()), nil
}

// fetchReports returns one slot per campaign ID; failed fetches leave nil.
func (a *Aggregator) fetchReports(ctx context.Context, ids []string) []*emailoctopus.CampaignReport {
	reports := make([]*emailoctopus.CampaignReport, len(ids))

	var g errgroup.Group
	g.SetLimit(a.fanOut)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			start := time.Now()
			report, err := a.source.GetCampaignReport(ctx, id)
			if err != nil {
				metrics.ReportFetchFailures.Inc()
				logger.Warn("Usage: skipping campaign report", "campaign_id", id,
					"error", err.Error(), "elapsed", time.Since(start))
				return nil
			}
			reports[i] = report
			return nil
		})
	}
	_ = g.Wait()

	return reports
}
