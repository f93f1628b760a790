package budget

import (
	"fmt"
	"sync"
	"time"

	"hectar-intel/internal/eximpedia"
	"hectar-intel/internal/logger"
)

// Default plan limits: 100 calls/day split 60 for scheduled harvests and 40
// reserved for on-demand searches.
const (
	DefaultDailyLimit    = 100
	DefaultHarvestBudget = 60
	DefaultSearchBudget  = 40
	defaultCreditAllot   = 3_000_000
)

// Status is a snapshot of the tracker for the budget endpoint.
type Status struct {
	Day                  string `json:"day"`
	DailyCallsUsed       int    `json:"daily_calls_used"`
	DailyCallsLimit      int    `json:"daily_calls_limit"`
	DailyCallsRemaining  int    `json:"daily_calls_remaining"`
	HarvestCallsUsed     int    `json:"harvest_calls_used"`
	HarvestBudget        int    `json:"harvest_budget"`
	SearchCallsUsed      int    `json:"search_calls_used"`
	SearchBudget         int    `json:"search_budget"`
	CreditsConsumed      int64  `json:"credits_consumed"`
	CreditsRemaining     int64  `json:"credits_remaining"`
}

// Tracker counts upstream API calls against the daily plan limits. One
// instance per process; counters reset on the first access of a new UTC day.
type Tracker struct {
	dailyLimit    int
	harvestBudget int
	searchBudget  int

	mu              sync.Mutex
	dayKey          string
	callsToday      int
	harvestCalls    int
	searchCalls     int
	creditsConsumed int64
	creditsAlloted  int64

	// now is injectable for tests.
	now func() time.Time
}

// NewTracker creates a tracker with the default plan limits.
func NewTracker() *Tracker {
	t := &Tracker{
		dailyLimit:     DefaultDailyLimit,
		harvestBudget:  DefaultHarvestBudget,
		searchBudget:   DefaultSearchBudget,
		creditsAlloted: defaultCreditAllot,
		now:            time.Now,
	}
	t.dayKey = t.currentDayKey()
	return t
}

func (t *Tracker) currentDayKey() string {
	return t.now().UTC().Format("2006-01-02")
}

// maybeResetLocked zeroes the counters when a new UTC day has started.
// Caller holds t.mu.
func (t *Tracker) maybeResetLocked() {
	key := t.currentDayKey()
	if key == t.dayKey {
		return
	}
	logger.Info("Budget", fmt.Sprintf("New day (%s). Resetting API budget; yesterday: %d calls used.", key, t.callsToday))
	t.callsToday = 0
	t.harvestCalls = 0
	t.searchCalls = 0
	t.dayKey = key
}

// RecordCall counts one upstream call of the given kind against the daily
// totals. Unknown kinds count as searches.
func (t *Tracker) RecordCall(kind string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.maybeResetLocked()
	t.callsToday++
	if kind == eximpedia.CallHarvest {
		t.harvestCalls++
	} else {
		t.searchCalls++
	}
}

// CanHarvest reports whether the harvest sub-budget has room.
func (t *Tracker) CanHarvest() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.maybeResetLocked()
	return t.harvestCalls < t.harvestBudget
}

// CanSearch reports whether the on-demand search sub-budget has room.
func (t *Tracker) CanSearch() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.maybeResetLocked()
	return t.searchCalls < t.searchBudget
}

// UpdateFromToken synchronizes against the authoritative counters carried in
// the token payload. The tracker keeps the maximum of local and remote
// counts, so a restart never under-counts.
func (t *Tracker) UpdateFromToken(pc *eximpedia.PlanConstraints) {
	if pc == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.maybeResetLocked()

	t.creditsConsumed = pc.CreditPoints.TotalConsumedCredits
	if pc.CreditPoints.TotalAllotedCredits > 0 {
		t.creditsAlloted = pc.CreditPoints.TotalAllotedCredits
	}
	if consumed := pc.DailyLimitAPI.ConsumedDailyLimitAPI; consumed > t.callsToday {
		t.callsToday = consumed
	}
}

// Snapshot returns the current budget status.
func (t *Tracker) Snapshot() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.maybeResetLocked()

	remaining := t.dailyLimit - t.callsToday
	if remaining < 0 {
		remaining = 0
	}
	creditsRemaining := t.creditsAlloted - t.creditsConsumed
	if creditsRemaining < 0 {
		creditsRemaining = 0
	}
	return Status{
		Day:                 t.dayKey,
		DailyCallsUsed:      t.callsToday,
		DailyCallsLimit:     t.dailyLimit,
		DailyCallsRemaining: remaining,
		HarvestCallsUsed:    t.harvestCalls,
		HarvestBudget:       t.harvestBudget,
		SearchCallsUsed:     t.searchCalls,
		SearchBudget:        t.searchBudget,
		CreditsConsumed:     t.creditsConsumed,
		CreditsRemaining:    creditsRemaining,
	}
}
