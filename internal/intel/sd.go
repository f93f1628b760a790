package intel

import (
	"fmt"
	"math"
	"sort"
	"time"

	"hectar-intel/internal/normalize"
)

// S&D delta signals with their trader-facing implications.
const (
	SDOverShipping  = "OVER_SHIPPING"
	SDSlightlyOver  = "SLIGHTLY_OVER"
	SDOnTrack       = "ON_TRACK"
	SDSlightlyUnder = "SLIGHTLY_UNDER"
	SDUnderShipping = "UNDER_SHIPPING"
)

var sdImplications = map[string]string{
	SDOverShipping:  "Supply more ample than market expects. Bearish.",
	SDSlightlyOver:  "Marginally above expectations. Watch for trend.",
	SDUnderShipping: "Supply tighter than market expects. Bullish.",
	SDSlightlyUnder: "Marginally below expectations. Watch for trend.",
	SDOnTrack:       "Flows in line with consensus.",
}

// CountryVolume is one origin's share of a cumulative flow.
type CountryVolume struct {
	Country  string  `json:"country"`
	VolumeMT float64 `json:"volume_mt"`
	SharePct float64 `json:"share_pct"`
}

// DailyFlow is one day of a cumulative flow series.
type DailyFlow struct {
	Date               string  `json:"date"`
	DailyVolumeMT      float64 `json:"daily_volume_mt"`
	CumulativeVolumeMT float64 `json:"cumulative_volume_mt"`
}

// FlowSummary aggregates shipments over a period.
type FlowSummary struct {
	TotalVolumeMT    float64         `json:"total_volume_mt"`
	TotalValueUSD    float64         `json:"total_value_usd"`
	RecordCount      int             `json:"record_count"`
	AvgPricePerMT    *float64        `json:"avg_price_per_mt"`
	CountryBreakdown []CountryVolume `json:"country_breakdown"`
	DailySeries      []DailyFlow     `json:"daily_series"`
	Period           string          `json:"period"`
}

// SDDeltaResult is the deviation of actual flow from the consensus pro-rata
// expectation at a point in the crop year.
type SDDeltaResult struct {
	ActualCumulativeMT   float64         `json:"actual_cumulative_mt"`
	ExpectedCumulativeMT float64         `json:"expected_cumulative_mt"`
	DeltaMT              float64         `json:"delta_mt"`
	DeltaPct             float64         `json:"delta_pct"`
	ConsensusAnnualMT    float64         `json:"consensus_annual_mt"`
	CropYearProgressPct  float64         `json:"crop_year_progress_pct"`
	Signal               string          `json:"signal"`
	Implication          string          `json:"implication"`
	CountryBreakdown     []CountryVolume `json:"country_breakdown"`
	RecordCount          int             `json:"record_count"`
}

// YoYComparison compares a period's flows against the same calendar window a
// year earlier.
type YoYComparison struct {
	CurrentPeriod      FlowSummary `json:"current_period"`
	PreviousPeriod     FlowSummary `json:"previous_period"`
	YoYVolumeChangePct *float64    `json:"yoy_volume_change_pct"`
	YoYValueChangePct  *float64    `json:"yoy_value_change_pct"`
}

// SupplyDemand tracks cumulative flows against consensus estimates. The gap
// between what the market expects and what is actually shipping is the
// highest-alpha signal this system produces.
type SupplyDemand struct{}

// NewSupplyDemand returns a tracker.
func NewSupplyDemand() *SupplyDemand {
	return &SupplyDemand{}
}

// ComputeCumulativeFlows aggregates volume and value over [start, end],
// grouped by origin country, with a running daily series. tradeType filters
// to IMPORT or EXPORT when non-empty.
func (sd *SupplyDemand) ComputeCumulativeFlows(records []*normalize.Shipment, start, end time.Time, tradeType string) FlowSummary {
	daily := map[string]float64{}
	byCountry := map[string]float64{}
	totalVolume, totalValue := 0.0, 0.0
	count := 0

	for _, r := range records {
		d, ok := r.Date()
		if !ok || d.Before(start) || d.After(end) {
			continue
		}
		if tradeType != "" && r.TradeType != tradeType {
			continue
		}
		if r.QuantityMT == nil || *r.QuantityMT <= 0 {
			continue
		}
		qty := *r.QuantityMT
		daily[d.Format("2006-01-02")] += qty

		origin := r.OriginCountry
		if origin == "" {
			origin = r.DestinationCountry
		}
		if origin == "" {
			origin = "UNKNOWN"
		}
		byCountry[origin] += qty

		totalVolume += qty
		if r.FOBUSDTotal != nil {
			totalValue += *r.FOBUSDTotal
		}
		count++
	}

	var series []DailyFlow
	running := 0.0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := d.Format("2006-01-02")
		running += daily[key]
		series = append(series, DailyFlow{
			Date:               key,
			DailyVolumeMT:      round2(daily[key]),
			CumulativeVolumeMT: round2(running),
		})
	}

	breakdown := make([]CountryVolume, 0, len(byCountry))
	for country, vol := range byCountry {
		share := 0.0
		if totalVolume > 0 {
			share = round1(vol / totalVolume * 100)
		}
		breakdown = append(breakdown, CountryVolume{Country: country, VolumeMT: round2(vol), SharePct: share})
	}
	sort.Slice(breakdown, func(i, j int) bool {
		if breakdown[i].VolumeMT != breakdown[j].VolumeMT {
			return breakdown[i].VolumeMT > breakdown[j].VolumeMT
		}
		return breakdown[i].Country < breakdown[j].Country
	})

	var avgPrice *float64
	if totalVolume > 0 {
		avgPrice = fptr(round2(totalValue / totalVolume))
	}

	return FlowSummary{
		TotalVolumeMT:    round2(totalVolume),
		TotalValueUSD:    round2(totalValue),
		RecordCount:      count,
		AvgPricePerMT:    avgPrice,
		CountryBreakdown: breakdown,
		DailySeries:      series,
		Period:           fmt.Sprintf("%s to %s", start.Format("2006-01-02"), end.Format("2006-01-02")),
	}
}

// ComputeSDDelta measures actual cumulative flow against the pro-rata share
// of the consensus annual estimate at target.
func (sd *SupplyDemand) ComputeSDDelta(records []*normalize.Shipment, consensusAnnualMT float64, cropYearStart, target time.Time) SDDeltaResult {
	if target.IsZero() {
		target = time.Now().UTC().Truncate(24 * time.Hour)
	}
	cropYearEnd := cropYearStart.AddDate(1, 0, 0)

	daysElapsed := target.Sub(cropYearStart).Hours() / 24
	daysTotal := cropYearEnd.Sub(cropYearStart).Hours() / 24
	progress := 0.0
	if daysTotal > 0 {
		progress = daysElapsed / daysTotal
	}

	expected := consensusAnnualMT * progress

	flows := sd.ComputeCumulativeFlows(records, cropYearStart, target, "")
	actual := flows.TotalVolumeMT

	delta := actual - expected
	deltaPct := 0.0
	if expected > 0 {
		deltaPct = delta / expected * 100
	}

	signal := SDOnTrack
	switch {
	case deltaPct > 10:
		signal = SDOverShipping
	case deltaPct > 5:
		signal = SDSlightlyOver
	case deltaPct < -10:
		signal = SDUnderShipping
	case deltaPct < -5:
		signal = SDSlightlyUnder
	}

	return SDDeltaResult{
		ActualCumulativeMT:   round2(actual),
		ExpectedCumulativeMT: round2(expected),
		DeltaMT:              round2(delta),
		DeltaPct:             round1(deltaPct),
		ConsensusAnnualMT:    consensusAnnualMT,
		CropYearProgressPct:  round1(progress * 100),
		Signal:               signal,
		Implication:          sdImplications[signal],
		CountryBreakdown:     flows.CountryBreakdown,
		RecordCount:          flows.RecordCount,
	}
}

// ComputeYoYComparison compares current-period flows with the same calendar
// window one year earlier.
func (sd *SupplyDemand) ComputeYoYComparison(current, previous []*normalize.Shipment, periodStart, periodEnd time.Time) YoYComparison {
	curr := sd.ComputeCumulativeFlows(current, periodStart, periodEnd, "")
	prev := sd.ComputeCumulativeFlows(previous, periodStart.AddDate(-1, 0, 0), periodEnd.AddDate(-1, 0, 0), "")

	out := YoYComparison{CurrentPeriod: curr, PreviousPeriod: prev}
	if prev.TotalVolumeMT > 0 {
		out.YoYVolumeChangePct = fptr(round1((curr.TotalVolumeMT - prev.TotalVolumeMT) / prev.TotalVolumeMT * 100))
	}
	if prev.TotalValueUSD > 0 {
		out.YoYValueChangePct = fptr(round1((curr.TotalValueUSD - prev.TotalValueUSD) / prev.TotalValueUSD * 100))
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
