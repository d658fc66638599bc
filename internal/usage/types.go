// Package usage computes the account usage snapshot shown on the dashboard
// and keeps it cached for a short freshness window.
package usage

import "time"

// Limits are the plan allowances. EmailOctopus exposes no plan endpoint,
// so they come from configuration.
type Limits struct {
	Emails    int64 `json:"emails"`
	Contacts  int64 `json:"contacts"`
	Campaigns int64 `json:"campaigns"`
}

// DefaultLimits matches the free plan.
var DefaultLimits = Limits{Emails: 10000, Contacts: 2500, Campaigns: 50}

// EmailUsage counts emails delivered by sent campaigns.
type EmailUsage struct {
	Sent      int64 `json:"sent"`
	Remaining int64 `json:"remaining"`
	Limit     int64 `json:"limit"`
}

// ContactUsage counts subscribed contacts across all lists.
type ContactUsage struct {
	Total     int64 `json:"total"`
	Remaining int64 `json:"remaining"`
	Limit     int64 `json:"limit"`
}

// CampaignUsage counts campaigns regardless of status.
type CampaignUsage struct {
	Created   int64 `json:"created"`
	Remaining int64 `json:"remaining"`
	Limit     int64 `json:"limit"`
}

// Snapshot is the usage computed at one point in time. It is never mutated
// after construction; a refresh replaces it.
type Snapshot struct {
	Emails      EmailUsage    `json:"emails"`
	Contacts    ContactUsage  `json:"contacts"`
	Campaigns   CampaignUsage `json:"campaigns"`
	Performance Performance   `json:"performance"`
	LastUpdated time.Time     `json:"lastUpdated"`
}

// Percent returns used/limit as a rounded percentage, capped at 100.
func Percent(used, limit int64) int {
	if limit <= 0 {
		return 0
	}
	p := int((used*100 + limit/2) / limit)
	if p > 100 {
		p = 100
	}
	return p
}

func remaining(limit, used int64) int64 {
	if used >= limit {
		return 0
	}
	return limit - used
}

// NewSnapshot derives remaining counts from usage and limits.
func NewSnapshot(sent, contacts, campaigns int64, limits Limits, perf Performance, at time.Time) Snapshot {
	return Snapshot{
		Emails:      EmailUsage{Sent: sent, Remaining: remaining(limits.Emails, sent), Limit: limits.Emails},
		Contacts:    ContactUsage{Total: contacts, Remaining: remaining(limits.Contacts, contacts), Limit: limits.Contacts},
		Campaigns:   CampaignUsage{Created: campaigns, Remaining: remaining(limits.Campaigns, campaigns), Limit: limits.Campaigns},
		Performance: perf,
		LastUpdated: at,
	}
}

// ZeroSnapshot is served when nothing has ever been computed: no usage,
// full allowance remaining, and a zero LastUpdated.
func ZeroSnapshot(limits Limits) Snapshot {
	return NewSnapshot(0, 0, 0, limits, Performance{}, time.Time{})
}
