package intel

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"hectar-intel/internal/normalize"
)

// Anomaly types and severities.
const (
	AnomalyNewEntrant  = "NEW_ENTRANT"
	AnomalyWithdrawal  = "WITHDRAWAL"
	AnomalyVolumeSurge = "VOLUME_SURGE"

	SeverityHigh   = "HIGH"
	SeverityMedium = "MEDIUM"
	SeverityLow    = "LOW"
)

// severityRank orders severities for sorting (HIGH first).
var severityRank = map[string]int{
	SeverityHigh:   0,
	SeverityMedium: 1,
	SeverityLow:    2,
}

// Party fields a counterparty analysis can group on.
const (
	PartyConsignee = "consignee"
	PartyConsignor = "consignor"
)

// EntityShare is one counterparty's position in a market-share breakdown.
type EntityShare struct {
	Entity         string   `json:"entity"`
	VolumeMT       float64  `json:"volume_mt"`
	ValueUSD       float64  `json:"value_usd"`
	Shipments      int      `json:"shipments"`
	MarketSharePct float64  `json:"market_share_pct"`
	AvgPricePerMT  *float64 `json:"avg_price_per_mt"`
}

// MarketShares is the full breakdown for one party side of a market.
type MarketShares struct {
	PartyType      string        `json:"party_type"`
	TotalVolumeMT  float64       `json:"total_volume_mt"`
	UniqueEntities int           `json:"unique_entities"`
	HHI            float64       `json:"hhi"`
	Concentration  string        `json:"concentration"`
	TopEntities    []EntityShare `json:"top_entities"`
}

// Anomaly is a counterparty behaving differently than its history.
type Anomaly struct {
	Type               string  `json:"type"`
	Entity             string  `json:"entity"`
	Severity           string  `json:"severity"`
	Detail             string  `json:"detail"`
	VolumeMT           float64 `json:"volume_mt,omitempty"`
	MarketSharePct     float64 `json:"market_share_pct,omitempty"`
	HistoricalSharePct float64 `json:"historical_share_pct,omitempty"`
	CurrentVolumeMT    float64 `json:"current_volume_mt,omitempty"`
	HistoricalMonthly  float64 `json:"historical_monthly_mt,omitempty"`
	Multiplier         float64 `json:"multiplier,omitempty"`
}

// OriginSwitch reports whether a party's origin mix changed across the two
// halves of a window.
type OriginSwitch struct {
	Entity            string             `json:"entity"`
	RecentOrigins     map[string]float64 `json:"recent_origins"`
	EarlierOrigins    map[string]float64 `json:"earlier_origins"`
	SwitchingDetected bool               `json:"switching_detected"`
}

// Counterparty analyzes buyer/seller behaviour from shipment records. A
// major player shifting behaviour is one of the strongest leading indicators
// in opaque markets.
type Counterparty struct{}

// NewCounterparty returns an analyzer.
func NewCounterparty() *Counterparty {
	return &Counterparty{}
}

// entityAliases resolves the trading majors across their many registered
// names and regional subsidiaries.
var entityAliases = []struct {
	Canonical string
	Aliases   []string
}{
	{"Olam Group", []string{"OLAM", "OLAM INTERNATIONAL", "OLAM AGRI", "OLAM FOOD", "OLAM NIGERIA", "OLAM GHANA", "OLAM VIETNAM", "OLAM IVORY"}},
	{"Louis Dreyfus", []string{"LOUIS DREYFUS", "LDC", "LD COMMODITIES"}},
	{"Cargill", []string{"CARGILL", "CARGILL INC", "CARGILL INDIA", "CARGILL WEST AFRICA"}},
	{"ADM", []string{"ARCHER DANIELS", "ADM", "A.D.M"}},
	{"Bunge", []string{"BUNGE", "BUNGE LIMITED"}},
	{"Wilmar", []string{"WILMAR", "WILMAR INTERNATIONAL"}},
}

// ResolveEntity maps a raw party name onto its canonical entity. Unmatched
// names pass through trimmed; empty names become UNKNOWN.
func (c *Counterparty) ResolveEntity(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "UNKNOWN"
	}
	upper := strings.ToUpper(trimmed)
	for _, e := range entityAliases {
		for _, alias := range e.Aliases {
			if strings.Contains(upper, alias) {
				return e.Canonical
			}
		}
	}
	return trimmed
}

func partyName(r *normalize.Shipment, field string) string {
	if field == PartyConsignor {
		return r.Consignor
	}
	return r.Consignee
}

// ComputeMarketShares groups shipments by resolved entity over an optional
// window and returns the top N by volume, with the Herfindahl concentration
// index over the returned set.
func (c *Counterparty) ComputeMarketShares(records []*normalize.Shipment, field string, start, end time.Time, topN int) MarketShares {
	if topN <= 0 {
		topN = 20
	}
	type agg struct {
		volume    float64
		value     float64
		shipments int
	}
	entities := map[string]*agg{}
	totalVolume := 0.0

	for _, r := range records {
		if d, ok := r.Date(); ok {
			if !start.IsZero() && d.Before(start) {
				continue
			}
			if !end.IsZero() && d.After(end) {
				continue
			}
		}
		if r.QuantityMT == nil || *r.QuantityMT <= 0 {
			continue
		}
		entity := c.ResolveEntity(partyName(r, field))
		a := entities[entity]
		if a == nil {
			a = &agg{}
			entities[entity] = a
		}
		a.volume += *r.QuantityMT
		if r.FOBUSDTotal != nil {
			a.value += *r.FOBUSDTotal
		}
		a.shipments++
		totalVolume += *r.QuantityMT
	}

	names := make([]string, 0, len(entities))
	for name := range entities {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if entities[names[i]].volume != entities[names[j]].volume {
			return entities[names[i]].volume > entities[names[j]].volume
		}
		return names[i] < names[j]
	})
	if len(names) > topN {
		names = names[:topN]
	}

	top := make([]EntityShare, 0, len(names))
	hhi := 0.0
	for _, name := range names {
		a := entities[name]
		share := 0.0
		if totalVolume > 0 {
			share = round1(a.volume / totalVolume * 100)
		}
		var avgPrice *float64
		if a.volume > 0 {
			avgPrice = fptr(round2(a.value / a.volume))
		}
		top = append(top, EntityShare{
			Entity:         name,
			VolumeMT:       round2(a.volume),
			ValueUSD:       round2(a.value),
			Shipments:      a.shipments,
			MarketSharePct: share,
			AvgPricePerMT:  avgPrice,
		})
		hhi += (share / 100) * (share / 100)
	}

	concentration := "LOW"
	switch {
	case hhi > 0.25:
		concentration = "HIGH"
	case hhi > 0.15:
		concentration = "MODERATE"
	}

	return MarketShares{
		PartyType:      field,
		TotalVolumeMT:  round2(totalVolume),
		UniqueEntities: len(entities),
		HHI:            round4(hhi),
		Concentration:  concentration,
		TopEntities:    top,
	}
}

// DetectAnomalies compares the last-30-day window against the prior
// lookbackMonths and flags new entrants, withdrawals, and volume surges,
// sorted most severe first.
func (c *Counterparty) DetectAnomalies(current, historical []*normalize.Shipment, field string, lookbackMonths int, today time.Time) []Anomaly {
	if lookbackMonths <= 0 {
		lookbackMonths = 12
	}
	if today.IsZero() {
		today = time.Now().UTC().Truncate(24 * time.Hour)
	}
	currentStart := today.AddDate(0, 0, -30)
	historicalStart := today.AddDate(0, 0, -lookbackMonths*30)

	currentShares := c.ComputeMarketShares(current, field, currentStart, today, 20)
	historicalShares := c.ComputeMarketShares(historical, field, historicalStart, currentStart, 20)

	currentByName := map[string]EntityShare{}
	for _, e := range currentShares.TopEntities {
		currentByName[e.Entity] = e
	}
	historicalByName := map[string]EntityShare{}
	for _, e := range historicalShares.TopEntities {
		historicalByName[e.Entity] = e
	}

	var anomalies []Anomaly

	for _, e := range currentShares.TopEntities {
		if _, ok := historicalByName[e.Entity]; ok || e.VolumeMT <= 0 {
			continue
		}
		severity := SeverityMedium
		if e.MarketSharePct > 5 {
			severity = SeverityHigh
		}
		anomalies = append(anomalies, Anomaly{
			Type:     AnomalyNewEntrant,
			Entity:   e.Entity,
			Severity: severity,
			Detail: fmt.Sprintf("New %s detected: %s with %g MT (%d shipments)",
				field, e.Entity, e.VolumeMT, e.Shipments),
			VolumeMT:       e.VolumeMT,
			MarketSharePct: e.MarketSharePct,
		})
	}

	for _, h := range historicalShares.TopEntities {
		if _, ok := currentByName[h.Entity]; ok || h.MarketSharePct <= 3 {
			continue
		}
		severity := SeverityMedium
		if h.MarketSharePct > 10 {
			severity = SeverityHigh
		}
		anomalies = append(anomalies, Anomaly{
			Type:     AnomalyWithdrawal,
			Entity:   h.Entity,
			Severity: severity,
			Detail: fmt.Sprintf("%s absent from recent period. Was %g%% of market historically.",
				h.Entity, h.MarketSharePct),
			HistoricalSharePct: h.MarketSharePct,
		})
	}

	for _, e := range currentShares.TopEntities {
		h, ok := historicalByName[e.Entity]
		if !ok {
			continue
		}
		histMonthly := h.VolumeMT / float64(lookbackMonths)
		if histMonthly <= 0 || e.VolumeMT <= 2*histMonthly {
			continue
		}
		multiplier := e.VolumeMT / histMonthly
		anomalies = append(anomalies, Anomaly{
			Type:     AnomalyVolumeSurge,
			Entity:   e.Entity,
			Severity: SeverityHigh,
			Detail: fmt.Sprintf("%s volume %.0f MT in last 30d vs avg %.0f MT/month historically (%.1fx normal)",
				e.Entity, e.VolumeMT, histMonthly, multiplier),
			CurrentVolumeMT:   e.VolumeMT,
			HistoricalMonthly: round2(histMonthly),
			Multiplier:        round1(multiplier),
		})
	}

	sort.SliceStable(anomalies, func(i, j int) bool {
		return severityRank[anomalies[i].Severity] < severityRank[anomalies[j].Severity]
	})
	return anomalies
}

// ComputeOriginSwitching splits a party's shipments at the midpoint of the
// last `months` and reports whether its origin-country set changed.
func (c *Counterparty) ComputeOriginSwitching(records []*normalize.Shipment, entity string, months int, today time.Time) OriginSwitch {
	if months <= 0 {
		months = 6
	}
	if today.IsZero() {
		today = time.Now().UTC().Truncate(24 * time.Hour)
	}
	mid := today.AddDate(0, 0, -months*15)
	windowStart := today.AddDate(0, 0, -months*30)

	recent := map[string]float64{}
	earlier := map[string]float64{}

	for _, r := range records {
		d, ok := r.Date()
		if !ok {
			continue
		}
		name := r.Consignee
		if name == "" {
			name = r.Consignor
		}
		if c.ResolveEntity(name) != entity {
			continue
		}
		if r.QuantityMT == nil || *r.QuantityMT <= 0 {
			continue
		}
		origin := r.OriginCountry
		if origin == "" {
			origin = "UNKNOWN"
		}
		switch {
		case !d.Before(mid):
			recent[origin] += *r.QuantityMT
		case !d.Before(windowStart):
			earlier[origin] += *r.QuantityMT
		}
	}

	return OriginSwitch{
		Entity:            entity,
		RecentOrigins:     recent,
		EarlierOrigins:    earlier,
		SwitchingDetected: !sameKeys(recent, earlier),
	}
}

func sameKeys(a, b map[string]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
