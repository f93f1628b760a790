package api

import (
	"fmt"
	"math"
	"net/http"
	"sort"

	"hectar-intel/internal/normalize"
	"hectar-intel/internal/refdata"
)

type deepDiveRequest struct {
	HctID                string   `json:"hct_id"`
	StartDate            string   `json:"start_date"`
	EndDate              string   `json:"end_date"`
	OriginCountries      []string `json:"origin_countries,omitempty"`
	DestinationCountries []string `json:"destination_countries,omitempty"`
}

type gradeSegment struct {
	grade     string
	origin    string
	totalMT   float64
	totalUSD  float64
	shipments int
	prices    []float64
}

// handleCommodityDeepDive assembles the full trader view for one commodity:
// price by grade × origin, week-over-week volume momentum, enriched top
// buyers and sellers, the IPC series, and the flow summary.
func (s *Server) handleCommodityDeepDive(w http.ResponseWriter, r *http.Request) {
	var req deepDiveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	start, okStart := normalize.ParseDate(req.StartDate)
	end, okEnd := normalize.ParseDate(req.EndDate)
	if req.HctID == "" || !okStart || !okEnd || end.Before(start) {
		writeError(w, http.StatusBadRequest, "hct_id and a valid start_date/end_date range are required")
		return
	}

	records := filterOrigins(s.records.Records(req.HctID), req.OriginCountries)
	if len(req.DestinationCountries) > 0 {
		want := map[string]bool{}
		for _, c := range req.DestinationCountries {
			want[c] = true
		}
		var filtered []*normalize.Shipment
		for _, rec := range records {
			if want[rec.DestinationCountry] {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	entry := refdata.Taxonomy[req.HctID]
	periodStart := start.Format("2006-01-02")
	periodEnd := end.Format("2006-01-02")

	// Price by grade × origin.
	segments := map[[2]string]*gradeSegment{}
	for _, rec := range records {
		if rec.TradeDate < periodStart || rec.TradeDate > periodEnd {
			continue
		}
		grade := rec.QualityEstimate.Grade
		if grade == "" {
			grade = "Unknown"
		}
		origin := rec.OriginCountry
		if origin == "" {
			origin = "Unknown"
		}
		key := [2]string{grade, origin}
		seg := segments[key]
		if seg == nil {
			seg = &gradeSegment{grade: grade, origin: origin}
			segments[key] = seg
		}
		if rec.QuantityMT != nil {
			seg.totalMT += *rec.QuantityMT
		}
		if rec.FOBUSDTotal != nil {
			seg.totalUSD += *rec.FOBUSDTotal
		}
		seg.shipments++
		if rec.FOBUSDPerMT != nil && rec.PriceStatus == normalize.PriceNormal {
			seg.prices = append(seg.prices, *rec.FOBUSDPerMT)
		}
	}

	segList := make([]*gradeSegment, 0, len(segments))
	for _, seg := range segments {
		segList = append(segList, seg)
	}
	sort.Slice(segList, func(i, j int) bool {
		if segList[i].totalMT != segList[j].totalMT {
			return segList[i].totalMT > segList[j].totalMT
		}
		return segList[i].grade+segList[i].origin < segList[j].grade+segList[j].origin
	})

	priceByGrade := make([]map[string]interface{}, 0, len(segList))
	for _, seg := range segList {
		var avgPrice interface{}
		switch {
		case seg.totalMT > 0 && seg.totalUSD > 0:
			avgPrice = round2(seg.totalUSD / seg.totalMT)
		case len(seg.prices) > 0:
			avgPrice = round2(mean(seg.prices))
		}
		var priceRange interface{}
		if len(seg.prices) >= 2 {
			lo, hi := seg.prices[0], seg.prices[0]
			for _, p := range seg.prices {
				lo = math.Min(lo, p)
				hi = math.Max(hi, p)
			}
			priceRange = map[string]float64{"min": round2(lo), "max": round2(hi)}
		}
		priceByGrade = append(priceByGrade, map[string]interface{}{
			"grade":          seg.grade,
			"origin":         seg.origin,
			"fob_usd_per_mt": avgPrice,
			"volume_mt":      round2(seg.totalMT),
			"shipments":      seg.shipments,
			"price_range":    priceRange,
		})
	}

	// Volume momentum: last 7 days vs the 7 before.
	recentCutoff := end.AddDate(0, 0, -7).Format("2006-01-02")
	priorStart := end.AddDate(0, 0, -14).Format("2006-01-02")
	volRecent, volPrior := 0.0, 0.0
	shipRecent, shipPrior := 0, 0
	for _, rec := range records {
		qty := 0.0
		if rec.QuantityMT != nil {
			qty = *rec.QuantityMT
		}
		switch {
		case rec.TradeDate > recentCutoff && rec.TradeDate <= periodEnd:
			volRecent += qty
			shipRecent++
		case rec.TradeDate > priorStart && rec.TradeDate <= recentCutoff:
			volPrior += qty
			shipPrior++
		}
	}

	var momentumPct interface{}
	momentumSignal := "INSUFFICIENT_DATA"
	momentumText := "Not enough data to compare week-over-week"
	if volPrior > 0 {
		pct := round1((volRecent - volPrior) / volPrior * 100)
		momentumPct = pct
		switch {
		case pct > 20:
			momentumSignal = "ACCELERATING"
			momentumText = fmt.Sprintf("Shipments surging — up %g%% vs prior week", pct)
		case pct > 5:
			momentumSignal = "PICKING_UP"
			momentumText = fmt.Sprintf("Shipments picking up — %g%% above prior week", pct)
		case pct > -5:
			momentumSignal = "STEADY"
			momentumText = "Shipment pace steady week-over-week"
		case pct > -20:
			momentumSignal = "SLOWING"
			momentumText = fmt.Sprintf("Shipments slowing — down %g%% vs prior week", math.Abs(pct))
		default:
			momentumSignal = "DROPPING"
			momentumText = fmt.Sprintf("Shipments dropping — down %g%% vs prior week", math.Abs(pct))
		}
	}

	volumeMomentum := map[string]interface{}{
		"recent_7d_mt":        round1(volRecent),
		"prior_7d_mt":         round1(volPrior),
		"recent_7d_shipments": shipRecent,
		"prior_7d_shipments":  shipPrior,
		"change_pct":          momentumPct,
		"signal":              momentumSignal,
		"description":         momentumText,
		"recent_period":       fmt.Sprintf("%s to %s", recentCutoff, periodEnd),
		"prior_period":        fmt.Sprintf("%s to %s", priorStart, recentCutoff),
	}

	writeJSON(w, map[string]interface{}{
		"commodity": map[string]string{
			"hct_id":    req.HctID,
			"hct_name":  entry.HctName,
			"hct_group": entry.HctGroup,
		},
		"period":          map[string]string{"start": periodStart, "end": periodEnd},
		"price_by_grade":  priceByGrade,
		"volume_momentum": volumeMomentum,
		"top_buyers":      s.enrichCounterparties(records, periodStart, periodEnd, false),
		"top_sellers":     s.enrichCounterparties(records, periodStart, periodEnd, true),
		"current_ipc":     s.ipc.Compute(records, end),
		"ipc_series":      s.ipc.ComputeTimeSeries(records, start, end),
		"volume_summary":  s.sd.ComputeCumulativeFlows(records, start, end, ""),
	})
}

type partyProfile struct {
	entity    string
	volumeMT  float64
	valueUSD  float64
	shipments int
	prices    []float64
	grades    map[string]int
	origins   map[string]float64
}

// enrichCounterparties ranks parties with the quality grades and origins
// they trade, for the deep-dive buyer/seller tables.
func (s *Server) enrichCounterparties(records []*normalize.Shipment, periodStart, periodEnd string, sellers bool) []map[string]interface{} {
	parties := map[string]*partyProfile{}
	for _, rec := range records {
		if rec.TradeDate < periodStart || rec.TradeDate > periodEnd {
			continue
		}
		name := rec.Consignee
		if sellers {
			name = rec.Consignor
		}
		if name == "" {
			name = "Unknown"
		}
		p := parties[name]
		if p == nil {
			p = &partyProfile{entity: name, grades: map[string]int{}, origins: map[string]float64{}}
			parties[name] = p
		}
		qty := 0.0
		if rec.QuantityMT != nil {
			qty = *rec.QuantityMT
		}
		p.volumeMT += qty
		if rec.FOBUSDTotal != nil {
			p.valueUSD += *rec.FOBUSDTotal
		}
		p.shipments++
		if rec.FOBUSDPerMT != nil && rec.PriceStatus == normalize.PriceNormal {
			p.prices = append(p.prices, *rec.FOBUSDPerMT)
		}
		if g := rec.QualityEstimate.Grade; g != "" {
			p.grades[g]++
		}
		if rec.OriginCountry != "" {
			p.origins[rec.OriginCountry] += qty
		}
	}

	totalVol := 0.0
	list := make([]*partyProfile, 0, len(parties))
	for _, p := range parties {
		totalVol += p.volumeMT
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].volumeMT != list[j].volumeMT {
			return list[i].volumeMT > list[j].volumeMT
		}
		return list[i].entity < list[j].entity
	})
	if len(list) > 10 {
		list = list[:10]
	}

	out := make([]map[string]interface{}, 0, len(list))
	for _, p := range list {
		var avgPrice interface{}
		switch {
		case p.volumeMT > 0 && p.valueUSD > 0:
			avgPrice = round2(p.valueUSD / p.volumeMT)
		case len(p.prices) > 0:
			avgPrice = round2(mean(p.prices))
		}
		share := 0.0
		if totalVol > 0 {
			share = round1(p.volumeMT / totalVol * 100)
		}
		out = append(out, map[string]interface{}{
			"entity":           p.entity,
			"volume_mt":        round2(p.volumeMT),
			"value_usd":        round2(p.valueUSD),
			"shipments":        p.shipments,
			"market_share_pct": share,
			"avg_price_per_mt": avgPrice,
			"top_grades":       topCounts(p.grades, 3),
			"top_origins":      topVolumes(p.origins, 3),
		})
	}
	return out
}

func topCounts(m map[string]int, n int) []map[string]interface{} {
	type kv struct {
		k string
		v int
	}
	list := make([]kv, 0, len(m))
	for k, v := range m {
		list = append(list, kv{k, v})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].v != list[j].v {
			return list[i].v > list[j].v
		}
		return list[i].k < list[j].k
	})
	if len(list) > n {
		list = list[:n]
	}
	out := make([]map[string]interface{}, len(list))
	for i, e := range list {
		out[i] = map[string]interface{}{"grade": e.k, "count": e.v}
	}
	return out
}

func topVolumes(m map[string]float64, n int) []map[string]interface{} {
	type kv struct {
		k string
		v float64
	}
	list := make([]kv, 0, len(m))
	for k, v := range m {
		list = append(list, kv{k, v})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].v != list[j].v {
			return list[i].v > list[j].v
		}
		return list[i].k < list[j].k
	})
	if len(list) > n {
		list = list[:n]
	}
	out := make([]map[string]interface{}, len(list))
	for i, e := range list {
		out[i] = map[string]interface{}{"country": e.k, "volume_mt": round1(e.v)}
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round1(v float64) float64 { return math.Round(v*10) / 10 }
