package budget

import (
	"testing"
	"time"

	"hectar-intel/internal/eximpedia"
)

func fixedTracker(t0 time.Time) (*Tracker, *time.Time) {
	now := t0
	tr := NewTracker()
	tr.now = func() time.Time { return now }
	tr.dayKey = tr.currentDayKey()
	return tr, &now
}

func TestTracker_SubBudgets(t *testing.T) {
	tr, _ := fixedTracker(time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC))

	for i := 0; i < DefaultHarvestBudget; i++ {
		if !tr.CanHarvest() {
			t.Fatalf("CanHarvest false at call %d", i)
		}
		tr.RecordCall(eximpedia.CallHarvest)
	}
	if tr.CanHarvest() {
		t.Error("CanHarvest true after budget exhausted")
	}
	// Search budget is independent of harvest.
	if !tr.CanSearch() {
		t.Error("CanSearch false with untouched search budget")
	}
	tr.RecordCall(eximpedia.CallSearch)

	s := tr.Snapshot()
	if s.DailyCallsUsed != DefaultHarvestBudget+1 {
		t.Errorf("DailyCallsUsed = %d, want %d", s.DailyCallsUsed, DefaultHarvestBudget+1)
	}
	if s.HarvestCallsUsed != DefaultHarvestBudget || s.SearchCallsUsed != 1 {
		t.Errorf("sub counters = %d/%d", s.HarvestCallsUsed, s.SearchCallsUsed)
	}
}

func TestTracker_MonotoneWithinDayAndResetOnNewDay(t *testing.T) {
	tr, now := fixedTracker(time.Date(2026, 2, 1, 23, 0, 0, 0, time.UTC))

	prev := 0
	for i := 0; i < 5; i++ {
		tr.RecordCall(eximpedia.CallHarvest)
		used := tr.Snapshot().DailyCallsUsed
		if used < prev {
			t.Fatalf("counter decreased within the day: %d -> %d", prev, used)
		}
		prev = used
	}

	// Cross midnight UTC.
	*now = now.Add(2 * time.Hour)
	s := tr.Snapshot()
	if s.DailyCallsUsed != 0 || s.HarvestCallsUsed != 0 || s.SearchCallsUsed != 0 {
		t.Errorf("counters not reset on day change: %+v", s)
	}
	if s.Day != "2026-02-02" {
		t.Errorf("Day = %q, want 2026-02-02", s.Day)
	}
}

func TestTracker_UpdateFromToken_TakesMax(t *testing.T) {
	tr, _ := fixedTracker(time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC))
	tr.RecordCall(eximpedia.CallHarvest)
	tr.RecordCall(eximpedia.CallHarvest)

	pc := &eximpedia.PlanConstraints{}
	pc.DailyLimitAPI.ConsumedDailyLimitAPI = 30
	pc.CreditPoints.TotalConsumedCredits = 50_000
	pc.CreditPoints.TotalAllotedCredits = 3_000_000
	tr.UpdateFromToken(pc)

	s := tr.Snapshot()
	if s.DailyCallsUsed != 30 {
		t.Errorf("DailyCallsUsed = %d, want 30 (remote max)", s.DailyCallsUsed)
	}
	if s.CreditsRemaining != 2_950_000 {
		t.Errorf("CreditsRemaining = %d, want 2950000", s.CreditsRemaining)
	}

	// A remote count below local must not regress the local counter.
	pc.DailyLimitAPI.ConsumedDailyLimitAPI = 5
	tr.UpdateFromToken(pc)
	if got := tr.Snapshot().DailyCallsUsed; got != 30 {
		t.Errorf("DailyCallsUsed = %d, want 30 (local max kept)", got)
	}
}
