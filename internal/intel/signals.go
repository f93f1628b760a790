package intel

import (
	"fmt"
	"math"
	"sort"
)

// Signal types.
const (
	SignalPriceMovement = "PRICE_MOVEMENT"
	SignalFlowVelocity  = "FLOW_VELOCITY"
	SignalSDDelta       = "SD_DELTA"
)

// Price movement thresholds in percent.
const (
	priceMoveMinPct  = 2.0
	priceMoveHighPct = 5.0
)

// Signal is the uniform envelope every analytic converts into. The feed
// sorts by severity then recency.
type Signal struct {
	SignalType string                 `json:"signal_type"`
	Severity   string                 `json:"severity"`
	Headline   string                 `json:"headline"`
	Detail     map[string]interface{} `json:"detail"`
	Timestamp  string                 `json:"timestamp,omitempty"`
	HctID      string                 `json:"hct_id,omitempty"`
}

// SignalGenerator translates analytic outputs into actionable alerts. Every
// signal is quantified and implies a position decision.
type SignalGenerator struct{}

// NewSignalGenerator returns a generator.
func NewSignalGenerator() *SignalGenerator {
	return &SignalGenerator{}
}

// FromFVI converts a flow-velocity result into a signal, or nil when the
// reading is normal or unusable.
func (g *SignalGenerator) FromFVI(result FVIResult, corridorName string) *Signal {
	fvi := result.FVIAdjusted
	if fvi == nil {
		fvi = result.FVIRaw
	}
	signalType := result.SignalAdjusted
	if signalType == "" {
		signalType = result.Signal
	}

	switch signalType {
	case FlowNormal, FlowNoData, FlowNoBaseline, FlowUnknown:
		return nil
	}

	severity := SeverityLow
	switch signalType {
	case FlowStrongAcceleration, FlowSevereDeceleration:
		severity = SeverityHigh
	case FlowModerateAcceleration, FlowModerateDeceleration:
		severity = SeverityMedium
	}

	changePct := 0.0
	if fvi != nil {
		changePct = round1((*fvi - 1.0) * 100)
	}

	direction := "up"
	implication := "Demand surge or supply rush. Potential price support."
	word := "UP"
	if changePct < 0 {
		direction = "down"
		word = "DOWN"
		implication = "Demand pullback or supply shortage. Watch for price pressure."
	}
	headline := fmt.Sprintf("%s: flows %s %g%% vs 30d ago (%.0f MT recent vs %.0f MT baseline)",
		corridorName, word, math.Abs(changePct), result.VolumeRecentMT, result.VolumeBaselineMT)

	return &Signal{
		SignalType: SignalFlowVelocity,
		Severity:   severity,
		Headline:   headline,
		Detail: map[string]interface{}{
			"corridor":    corridorName,
			"fvi":         deref(fvi),
			"direction":   direction,
			"change_pct":  changePct,
			"implication": implication,
		},
	}
}

// FromSDDelta converts an S&D delta into a signal, or nil when flows are on
// track.
func (g *SignalGenerator) FromSDDelta(result SDDeltaResult, commodityName string) *Signal {
	if result.Signal == SDOnTrack {
		return nil
	}

	severity := SeverityLow
	switch result.Signal {
	case SDUnderShipping:
		severity = SeverityHigh
	case SDOverShipping, SDSlightlyUnder:
		severity = SeverityMedium
	case SDSlightlyOver:
		severity = SeverityLow
	}

	relation := "above"
	if result.DeltaPct < 0 {
		relation = "below"
	}
	headline := fmt.Sprintf("%s: cumulative flow %.1f%% %s consensus (%.0f MT actual vs %.0f MT expected)",
		commodityName, math.Abs(result.DeltaPct), relation,
		result.ActualCumulativeMT, result.ExpectedCumulativeMT)

	return &Signal{
		SignalType: SignalSDDelta,
		Severity:   severity,
		Headline:   headline,
		Detail: map[string]interface{}{
			"commodity":   commodityName,
			"delta_pct":   result.DeltaPct,
			"signal":      result.Signal,
			"implication": result.Implication,
		},
	}
}

// FromIPCChange compares two IPC points a week apart and signals moves of 2%
// or more. Severity goes HIGH above 5%.
func (g *SignalGenerator) FromIPCChange(current, previous IPCResult, commodityName, origin string) *Signal {
	if current.PriceUSDPerMT == nil || previous.PriceUSDPerMT == nil || *previous.PriceUSDPerMT == 0 {
		return nil
	}
	curr := *current.PriceUSDPerMT
	prev := *previous.PriceUSDPerMT

	changePct := (curr - prev) / prev * 100
	if math.Abs(changePct) < priceMoveMinPct {
		return nil
	}

	severity := SeverityMedium
	if math.Abs(changePct) > priceMoveHighPct {
		severity = SeverityHigh
	}
	direction := "up"
	arrow := "↑"
	if changePct < 0 {
		direction = "down"
		arrow = "↓"
	}

	headline := fmt.Sprintf("%s from %s: implied FOB %s %.1f%% to $%.0f/MT",
		commodityName, origin, arrow, math.Abs(changePct), curr)

	return &Signal{
		SignalType: SignalPriceMovement,
		Severity:   severity,
		Headline:   headline,
		Detail: map[string]interface{}{
			"commodity":      commodityName,
			"origin":         origin,
			"current_price":  curr,
			"previous_price": prev,
			"change_pct":     round1(changePct),
			"direction":      direction,
			"confidence":     current.Confidence,
		},
	}
}

// FromCounterpartyAnomaly wraps an anomaly in the signal envelope, passing
// its severity through.
func (g *SignalGenerator) FromCounterpartyAnomaly(a Anomaly) *Signal {
	return &Signal{
		SignalType: "COUNTERPARTY_" + a.Type,
		Severity:   a.Severity,
		Headline:   a.Detail,
		Detail: map[string]interface{}{
			"type":                 a.Type,
			"entity":               a.Entity,
			"volume_mt":            a.VolumeMT,
			"market_share_pct":     a.MarketSharePct,
			"historical_share_pct": a.HistoricalSharePct,
			"multiplier":           a.Multiplier,
		},
	}
}

// SortSignals orders a feed by severity then recency (newest first within a
// tier) and truncates to limit.
func SortSignals(signals []*Signal, limit int) []*Signal {
	sort.SliceStable(signals, func(i, j int) bool {
		ri, rj := rankSeverity(signals[i].Severity), rankSeverity(signals[j].Severity)
		if ri != rj {
			return ri < rj
		}
		return signals[i].Timestamp > signals[j].Timestamp
	})
	if limit > 0 && len(signals) > limit {
		signals = signals[:limit]
	}
	return signals
}

func rankSeverity(s string) int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return 3
}

func deref(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
