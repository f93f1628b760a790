package intel

import (
	"math"
	"testing"
	"time"

	"hectar-intel/internal/normalize"
)

func flowRec(date, origin string, qty, value float64) *normalize.Shipment {
	s := volRec(date, qty)
	s.OriginCountry = origin
	s.TradeType = "IMPORT"
	if value > 0 {
		s.FOBUSDTotal = fp(value)
	}
	return s
}

func TestCumulativeFlows(t *testing.T) {
	start, end := day("2025-03-01"), day("2025-03-05")
	records := []*normalize.Shipment{
		flowRec("2025-03-01", "IVORY COAST", 100, 150000),
		flowRec("2025-03-03", "IVORY COAST", 200, 300000),
		flowRec("2025-03-03", "GHANA", 100, 140000),
		flowRec("2025-02-01", "GHANA", 500, 700000), // outside period
	}
	flows := NewSupplyDemand().ComputeCumulativeFlows(records, start, end, "")

	if flows.TotalVolumeMT != 400 {
		t.Errorf("TotalVolumeMT = %v, want 400", flows.TotalVolumeMT)
	}
	if flows.TotalValueUSD != 590000 {
		t.Errorf("TotalValueUSD = %v, want 590000", flows.TotalValueUSD)
	}
	if flows.RecordCount != 3 {
		t.Errorf("RecordCount = %d, want 3", flows.RecordCount)
	}
	if flows.AvgPricePerMT == nil || *flows.AvgPricePerMT != 1475 {
		t.Errorf("AvgPricePerMT = %v, want 1475", flows.AvgPricePerMT)
	}

	if len(flows.CountryBreakdown) != 2 {
		t.Fatalf("breakdown = %v", flows.CountryBreakdown)
	}
	if flows.CountryBreakdown[0].Country != "IVORY COAST" || flows.CountryBreakdown[0].VolumeMT != 300 {
		t.Errorf("top country = %+v", flows.CountryBreakdown[0])
	}
	if flows.CountryBreakdown[0].SharePct != 75 {
		t.Errorf("share = %v, want 75", flows.CountryBreakdown[0].SharePct)
	}

	if len(flows.DailySeries) != 5 {
		t.Fatalf("daily series length = %d, want 5", len(flows.DailySeries))
	}
	last := flows.DailySeries[len(flows.DailySeries)-1]
	if last.CumulativeVolumeMT != 400 {
		t.Errorf("final cumulative = %v, want 400", last.CumulativeVolumeMT)
	}
	// Running cumulative is nondecreasing.
	prev := 0.0
	for _, d := range flows.DailySeries {
		if d.CumulativeVolumeMT < prev {
			t.Errorf("cumulative decreased at %s", d.Date)
		}
		prev = d.CumulativeVolumeMT
	}
}

func TestSDDelta_UnderShipping(t *testing.T) {
	// Consensus 100000 MT, crop year from 2025-01-01, target 2025-04-01:
	// progress = 90/365 ≈ 0.2466, expected ≈ 24657. Actual 20000 →
	// delta ≈ −18.9%, UNDER_SHIPPING.
	cropStart := day("2025-01-01")
	target := day("2025-04-01")
	records := []*normalize.Shipment{
		flowRec("2025-02-01", "IVORY COAST", 12000, 0),
		flowRec("2025-03-01", "IVORY COAST", 8000, 0),
	}
	result := NewSupplyDemand().ComputeSDDelta(records, 100000, cropStart, target)

	if math.Abs(result.ExpectedCumulativeMT-24657.53) > 0.1 {
		t.Errorf("Expected = %v, want ≈24657.53", result.ExpectedCumulativeMT)
	}
	if result.ActualCumulativeMT != 20000 {
		t.Errorf("Actual = %v, want 20000", result.ActualCumulativeMT)
	}
	if math.Abs(result.DeltaPct-(-18.9)) > 0.05 {
		t.Errorf("DeltaPct = %v, want −18.9", result.DeltaPct)
	}
	if result.Signal != SDUnderShipping {
		t.Errorf("Signal = %q, want UNDER_SHIPPING", result.Signal)
	}
	if result.Implication != sdImplications[SDUnderShipping] {
		t.Errorf("Implication = %q", result.Implication)
	}
	if math.Abs(result.CropYearProgressPct-24.7) > 0.05 {
		t.Errorf("Progress = %v, want 24.7", result.CropYearProgressPct)
	}
}

func TestSDDelta_SignalThresholds(t *testing.T) {
	cropStart := day("2025-01-01")
	// Exactly 36.5 days in: progress 0.1, expected = consensus × 0.1.
	target := cropStart.Add(time.Duration(36.5 * 24 * float64(time.Hour)))

	cases := []struct {
		actual float64
		want   string
	}{
		{11500, SDOverShipping},  // +15%
		{10700, SDSlightlyOver},  // +7%
		{10000, SDOnTrack},       // 0%
		{9300, SDSlightlyUnder},  // −7%
		{8500, SDUnderShipping},  // −15%
	}
	for _, tc := range cases {
		records := []*normalize.Shipment{flowRec("2025-01-15", "NIGERIA", tc.actual, 0)}
		got := NewSupplyDemand().ComputeSDDelta(records, 100000, cropStart, target)
		if got.Signal != tc.want {
			t.Errorf("actual %v: Signal = %q, want %q (delta %v%%)", tc.actual, got.Signal, tc.want, got.DeltaPct)
		}
	}
}

func TestSDDelta_EmptyIsOnTrack(t *testing.T) {
	// Zero expected (target at crop-year start): delta 0, ON_TRACK.
	cropStart := day("2025-01-01")
	result := NewSupplyDemand().ComputeSDDelta(nil, 100000, cropStart, cropStart)
	if result.Signal != SDOnTrack {
		t.Errorf("Signal = %q, want ON_TRACK", result.Signal)
	}
	if result.DeltaPct != 0 {
		t.Errorf("DeltaPct = %v, want 0", result.DeltaPct)
	}
}

func TestYoYComparison(t *testing.T) {
	current := []*normalize.Shipment{flowRec("2025-03-01", "INDIA", 1200, 1800000)}
	previous := []*normalize.Shipment{flowRec("2024-03-01", "INDIA", 1000, 1500000)}

	result := NewSupplyDemand().ComputeYoYComparison(current, previous, day("2025-02-01"), day("2025-03-31"))
	if result.YoYVolumeChangePct == nil || *result.YoYVolumeChangePct != 20 {
		t.Errorf("YoY volume = %v, want 20", result.YoYVolumeChangePct)
	}
	if result.YoYValueChangePct == nil || *result.YoYValueChangePct != 20 {
		t.Errorf("YoY value = %v, want 20", result.YoYValueChangePct)
	}

	// No previous data: change is nil, not zero.
	empty := NewSupplyDemand().ComputeYoYComparison(current, nil, day("2025-02-01"), day("2025-03-31"))
	if empty.YoYVolumeChangePct != nil {
		t.Errorf("YoY volume with no baseline = %v, want nil", empty.YoYVolumeChangePct)
	}
}
