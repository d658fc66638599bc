// Package quota tracks per-user monthly allowances for emails, contacts,
// campaigns and templates.
package quota

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/zysolutions/octodash/internal/metrics"
	"github.com/zysolutions/octodash/internal/pkg/logger"
)

// Kind names a counted resource.
type Kind string

const (
	EmailsSent       Kind = "emails_sent"
	ContactsImported Kind = "contacts_imported"
	CampaignsCreated Kind = "campaigns_created"
	TemplatesCreated Kind = "templates_created"
)

// Kinds lists every counted resource in display order.
var Kinds = []Kind{EmailsSent, ContactsImported, CampaignsCreated, TemplatesCreated}

var (
	// ErrLimitExceeded is returned when an increment would pass the allowance.
	ErrLimitExceeded = errors.New("quota: monthly limit exceeded")
	// ErrUnknownKind is returned for a Kind not in Kinds.
	ErrUnknownKind = errors.New("quota: unknown kind")
)

// Limits maps each kind to its monthly maximum.
type Limits map[Kind]int64

// DefaultLimits is the free-plan allowance.
var DefaultLimits = Limits{
	EmailsSent:       10000,
	ContactsImported: 2400,
	CampaignsCreated: 50,
	TemplatesCreated: 20,
}

// Usage is one user's counters for the current period.
type Usage struct {
	Counts    map[Kind]int64 `json:"counts"`
	ResetDate time.Time      `json:"reset_date"`
}

// Store persists counters. Rollover and Add must each be atomic.
type Store interface {
	Get(ctx context.Context, userID string) (Usage, error)
	// Rollover zeroes every counter and stores next as the reset date when
	// the stored reset date is missing or not after now. It reports whether
	// the counters were reset.
	Rollover(ctx context.Context, userID string, now, next time.Time) (bool, error)
	// Add increments kind by n unless the result would exceed max. A
	// negative n releases units and never takes the counter below zero. It
	// returns the counter after the call and whether the change applied.
	Add(ctx context.Context, userID string, kind Kind, n, max int64) (int64, bool, error)
}

// Tracker applies limits and the monthly reset on top of a Store.
type Tracker struct {
	store  Store
	limits Limits
	clock  clockwork.Clock
}

// NewTracker creates a Tracker. A nil clock uses the wall clock.
func NewTracker(store Store, limits Limits, clock clockwork.Clock) *Tracker {
	if limits == nil {
		limits = DefaultLimits
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Tracker{store: store, limits: limits, clock: clock}
}

// NextReset returns midnight UTC on the first day of the month after t.
func NextReset(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

// Current returns the user's counters, resetting them first when the
// period has rolled over.
func (t *Tracker) Current(ctx context.Context, userID string) (Usage, error) {
	if err := t.rollover(ctx, userID); err != nil {
		return Usage{}, err
	}
	u, err := t.store.Get(ctx, userID)
	if err != nil {
		return Usage{}, fmt.Errorf("failed to load usage for %s: %w", userID, err)
	}
	if u.Counts == nil {
		u.Counts = map[Kind]int64{}
	}
	return u, nil
}

func (t *Tracker) rollover(ctx context.Context, userID string) error {
	now := t.clock.Now()
	reset, err := t.store.Rollover(ctx, userID, now, NextReset(now))
	if err != nil {
		return fmt.Errorf("failed to reset usage for %s: %w", userID, err)
	}
	if reset {
		logger.Debug("Quota: monthly counters reset", "user", userID, "next_reset", NextReset(now))
	}
	return nil
}

func (t *Tracker) limit(kind Kind) (int64, error) {
	max, ok := t.limits[kind]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return max, nil
}

// Increment adds n to kind, refusing with ErrLimitExceeded when used+n
// would exceed the maximum.
func (t *Tracker) Increment(ctx context.Context, userID string, kind Kind, n int64) error {
	max, err := t.limit(kind)
	if err != nil {
		return err
	}
	if n <= 0 {
		return fmt.Errorf("quota: increment must be positive, got %d", n)
	}
	if err := t.rollover(ctx, userID); err != nil {
		return err
	}

	used, ok, err := t.store.Add(ctx, userID, kind, n, max)
	if err != nil {
		return fmt.Errorf("failed to increment %s: %w", kind, err)
	}
	if !ok {
		metrics.QuotaRejections.WithLabelValues(string(kind)).Inc()
		return fmt.Errorf("%w: %s used %d of %d, requested %d", ErrLimitExceeded, kind, used, max, n)
	}
	return nil
}

// Release returns n previously incremented units of kind, for work that was
// reserved but never happened upstream.
func (t *Tracker) Release(ctx context.Context, userID string, kind Kind, n int64) error {
	if n <= 0 {
		return nil
	}
	max, err := t.limit(kind)
	if err != nil {
		return err
	}
	if _, _, err := t.store.Add(ctx, userID, kind, -n, max); err != nil {
		return fmt.Errorf("failed to release %s: %w", kind, err)
	}
	return nil
}

// CanUse reports whether n more units of kind fit in the allowance.
func (t *Tracker) CanUse(ctx context.Context, userID string, kind Kind, n int64) (bool, error) {
	max, err := t.limit(kind)
	if err != nil {
		return false, err
	}
	u, err := t.Current(ctx, userID)
	if err != nil {
		return false, err
	}
	return u.Counts[kind]+n <= max, nil
}

// KindSummary describes one counter.
type KindSummary struct {
	Used       int64 `json:"used"`
	Max        int64 `json:"max"`
	Remaining  int64 `json:"remaining"`
	Percentage int   `json:"percentage"`
}

// Summary is the full allowance view for a user.
type Summary struct {
	Kinds          map[Kind]KindSummary `json:"kinds"`
	ResetDate      time.Time            `json:"reset_date"`
	DaysUntilReset int                  `json:"days_until_reset"`
}

// Percentage returns used/max rounded to the nearest integer percent.
func Percentage(used, max int64) int {
	if max <= 0 {
		return 0
	}
	return int(math.Round(float64(used) / float64(max) * 100))
}

// Remaining returns max-used, never negative.
func Remaining(used, max int64) int64 {
	if used >= max {
		return 0
	}
	return max - used
}

// DaysUntil returns the whole days left before reset, rounded up, never negative.
func DaysUntil(now, reset time.Time) int {
	d := reset.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Hours() / 24))
}

// Summary returns every counter with its limit and the reset countdown.
func (t *Tracker) Summary(ctx context.Context, userID string) (Summary, error) {
	u, err := t.Current(ctx, userID)
	if err != nil {
		return Summary{}, err
	}

	s := Summary{
		Kinds:          make(map[Kind]KindSummary, len(Kinds)),
		ResetDate:      u.ResetDate,
		DaysUntilReset: DaysUntil(t.clock.Now(), u.ResetDate),
	}
	for _, k := range Kinds {
		max := t.limits[k]
		used := u.Counts[k]
		s.Kinds[k] = KindSummary{
			Used:       used,
			Max:        max,
			Remaining:  Remaining(used, max),
			Percentage: Percentage(used, max),
		}
	}
	return s, nil
}
