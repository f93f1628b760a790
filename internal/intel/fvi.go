package intel

import (
	"fmt"
	"math"
	"time"

	"hectar-intel/internal/normalize"
	"hectar-intel/internal/refdata"
)

// Flow velocity signals.
const (
	FlowStrongAcceleration   = "STRONG_ACCELERATION"
	FlowModerateAcceleration = "MODERATE_ACCELERATION"
	FlowNormal               = "NORMAL"
	FlowModerateDeceleration = "MODERATE_DECELERATION"
	FlowSevereDeceleration   = "SEVERE_DECELERATION"
	FlowNoData               = "NO_DATA"
	FlowNoBaseline           = "NO_BASELINE"
	FlowUnknown              = "UNKNOWN"
)

// FVIResult is a flow-velocity reading: the ratio of recent shipped volume to
// a baseline window a month earlier. Values above 1 mean flows accelerating.
type FVIResult struct {
	FVIRaw           *float64 `json:"fvi_raw"`
	Signal           string   `json:"signal"`
	VolumeRecentMT   float64  `json:"volume_recent_mt"`
	VolumeBaselineMT float64  `json:"volume_baseline_mt"`
	RecentWindow     string   `json:"recent_window,omitempty"`
	BaselineWindow   string   `json:"baseline_window,omitempty"`
	NRecordsRecent   int      `json:"n_records_recent"`
	NRecordsBaseline int      `json:"n_records_baseline"`

	// Seasonal adjustment (only set by ComputeSeasonallyAdjusted)
	FVIAdjusted    *float64 `json:"fvi_adjusted,omitempty"`
	SeasonalFactor *float64 `json:"seasonal_factor,omitempty"`
	SignalAdjusted string   `json:"signal_adjusted,omitempty"`

	Date string `json:"date,omitempty"` // set by time series
}

// FlowVelocity computes flow velocity indices for commodity corridors.
// Flow changes lead price changes, which makes this a leading indicator.
type FlowVelocity struct {
	RecentWindowDays int
	BaselineOffset   int
}

// NewFlowVelocity returns an index with the standard 7-day window against a
// 30-day-offset baseline.
func NewFlowVelocity() *FlowVelocity {
	return &FlowVelocity{RecentWindowDays: 7, BaselineOffset: 30}
}

// Compute calculates the raw FVI at target (today when zero).
func (f *FlowVelocity) Compute(records []*normalize.Shipment, target time.Time) FVIResult {
	if len(records) == 0 {
		return FVIResult{Signal: FlowNoData}
	}
	if target.IsZero() {
		target = time.Now().UTC().Truncate(24 * time.Hour)
	}

	recentStart := target.AddDate(0, 0, -f.RecentWindowDays)
	recentEnd := target
	baselineEnd := target.AddDate(0, 0, -f.BaselineOffset)
	baselineStart := baselineEnd.AddDate(0, 0, -f.RecentWindowDays)

	recentVol, recentN := sumVolume(records, recentStart, recentEnd)
	baselineVol, baselineN := sumVolume(records, baselineStart, baselineEnd)

	result := FVIResult{
		VolumeRecentMT:   round2(recentVol),
		VolumeBaselineMT: round2(baselineVol),
		RecentWindow:     fmt.Sprintf("%s to %s", recentStart.Format("2006-01-02"), recentEnd.Format("2006-01-02")),
		BaselineWindow:   fmt.Sprintf("%s to %s", baselineStart.Format("2006-01-02"), baselineEnd.Format("2006-01-02")),
		NRecordsRecent:   recentN,
		NRecordsBaseline: baselineN,
	}

	if baselineVol <= 0 {
		result.Signal = FlowNoBaseline
		return result
	}

	raw := round4(recentVol / baselineVol)
	result.FVIRaw = fptr(raw)
	result.Signal = interpretFVI(raw)
	return result
}

// ComputeSeasonallyAdjusted divides the raw FVI by the expected seasonal
// ratio so normal harvest-cycle acceleration does not read as a signal.
func (f *FlowVelocity) ComputeSeasonallyAdjusted(records []*normalize.Shipment, hctID string, target time.Time) FVIResult {
	result := f.Compute(records, target)
	if result.FVIRaw == nil {
		return result
	}
	if target.IsZero() {
		target = time.Now().UTC().Truncate(24 * time.Hour)
	}

	currentWeight, ok := refdata.MonthlyWeight(hctID, target.Month())
	if !ok {
		// No seasonal table: the raw reading stands.
		result.FVIAdjusted = result.FVIRaw
		result.SeasonalFactor = fptr(1.0)
		result.SignalAdjusted = result.Signal
		return result
	}
	baselineWeight, _ := refdata.MonthlyWeight(hctID, target.AddDate(0, 0, -f.BaselineOffset).Month())

	factor := 1.0
	if baselineWeight > 0 {
		factor = currentWeight / baselineWeight
	}
	result.SeasonalFactor = fptr(round4(factor))

	if factor > 0 {
		adjusted := round4(*result.FVIRaw / factor)
		result.FVIAdjusted = fptr(adjusted)
		result.SignalAdjusted = interpretFVI(adjusted)
	} else {
		result.SignalAdjusted = FlowUnknown
	}
	return result
}

// ComputeTimeSeries calculates the FVI for every day in [start, end],
// seasonally adjusted when hctID is non-empty.
func (f *FlowVelocity) ComputeTimeSeries(records []*normalize.Shipment, start, end time.Time, hctID string) []FVIResult {
	var series []FVIResult
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		var point FVIResult
		if hctID != "" {
			point = f.ComputeSeasonallyAdjusted(records, hctID, d)
		} else {
			point = f.Compute(records, d)
		}
		point.Date = d.Format("2006-01-02")
		series = append(series, point)
	}
	return series
}

func interpretFVI(fvi float64) string {
	switch {
	case fvi > 1.30:
		return FlowStrongAcceleration
	case fvi > 1.10:
		return FlowModerateAcceleration
	case fvi >= 0.90:
		return FlowNormal
	case fvi >= 0.70:
		return FlowModerateDeceleration
	default:
		return FlowSevereDeceleration
	}
}

func sumVolume(records []*normalize.Shipment, start, end time.Time) (float64, int) {
	total := 0.0
	count := 0
	for _, r := range records {
		d, ok := r.Date()
		if !ok || d.Before(start) || d.After(end) {
			continue
		}
		count++
		if r.QuantityMT != nil && *r.QuantityMT > 0 {
			total += *r.QuantityMT
		}
	}
	return total, count
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
