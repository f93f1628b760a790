package api

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"hectar-intel/internal/eximpedia"
	"hectar-intel/internal/intel"
	"hectar-intel/internal/normalize"
)

// Hunger signal thresholds on the recent/older monthly volume ratio.
const (
	hungerIncreasing = 1.3
	hungerDecreasing = 0.7
)

// handleCounterpartySearch builds an intelligence profile for a company
// name: cached shipments first, then a budget-gated upstream fetch when the
// local data is thin.
func (s *Server) handleCounterpartySearch(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if len(name) < 2 {
		writeError(w, http.StatusBadRequest, "name must be at least 2 characters")
		return
	}
	tradeCountry := strings.ToUpper(r.URL.Query().Get("trade_country"))
	if tradeCountry == "" {
		tradeCountry = "INDIA"
	}
	tradeType := strings.ToUpper(r.URL.Query().Get("trade_type"))
	if tradeType == "" {
		tradeType = "IMPORT"
	}
	if !validTradeType(tradeType) {
		writeError(w, http.StatusBadRequest, "trade_type must be IMPORT or EXPORT")
		return
	}
	months := queryInt(r, "months", 6, 12)

	nameUpper := strings.ToUpper(name)
	today := s.now().UTC().Truncate(24 * time.Hour)
	start := today.AddDate(0, 0, -months*30)

	partyField := intel.PartyConsignee
	if tradeType == "EXPORT" {
		partyField = intel.PartyConsignor
	}

	// Step 1: scan the cache.
	var matches []*normalize.Shipment
	for _, hctID := range s.records.CommodityIDs() {
		for _, rec := range s.records.Records(hctID) {
			party := rec.Consignee
			if partyField == intel.PartyConsignor {
				party = rec.Consignor
			}
			if strings.Contains(strings.ToUpper(party), nameUpper) {
				matches = append(matches, rec)
			}
		}
	}

	// Step 2: thin local data — fetch upstream if the search budget allows.
	dataSource := "cache"
	if len(matches) < 10 && s.upstream != nil && s.budget.CanSearch() {
		filter := "CONSIGNEE"
		if partyField == intel.PartyConsignor {
			filter = "CONSIGNOR"
		}
		q := eximpedia.ShipmentQuery{
			DateRange:    eximpedia.DateRange{StartDate: start.Format("2006-01-02"), EndDate: today.Format("2006-01-02")},
			TradeType:    tradeType,
			TradeCountry: tradeCountry,
			PageSize:     eximpedia.MaxPageSize,
			PageNo:       1,
			Sort:         "DATE",
			SortType:     "desc",
			PrimarySearch: &eximpedia.SearchFilter{
				Filter:     filter,
				Values:     []string{nameUpper},
				SearchType: "CONTAIN",
			},
		}
		if resp, err := s.upstream.TradeShipment(r.Context(), q, eximpedia.CallSearch); err == nil {
			for _, raw := range resp.Data {
				if len(raw) == 0 {
					continue
				}
				sh := s.normalizer.Normalize(raw, tradeType, tradeCountry)
				matches = append(matches, sh)
				if sh.HctID != "" {
					s.records.Append(sh.HctID, []*normalize.Shipment{sh})
				}
			}
			dataSource = "api"
		}
	}

	if len(matches) == 0 {
		writeJSON(w, map[string]interface{}{
			"status":  "NOT_FOUND",
			"query":   name,
			"message": "No shipments found for '" + name + "' in " + tradeCountry + " " + tradeType,
			"budget":  s.budget.Snapshot(),
		})
		return
	}

	// Step 3: profile. Newest first.
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].TradeDate > matches[j].TradeDate })

	totalVolume, totalValue := 0.0, 0.0
	var prices []float64
	var priceSeries []map[string]interface{}
	volumeByMonth := map[string]float64{}
	commodityAgg := map[string]*struct {
		name      string
		volume    float64
		value     float64
		shipments int
	}{}
	geoVolumes := map[string]float64{}
	qualityCounts := map[string]int{}

	geoField := func(rec *normalize.Shipment) string {
		if tradeType == "IMPORT" {
			return rec.OriginCountry
		}
		return rec.DestinationCountry
	}

	for _, rec := range matches {
		qty := 0.0
		if rec.QuantityMT != nil {
			qty = *rec.QuantityMT
		}
		totalVolume += qty
		if rec.FOBUSDTotal != nil {
			totalValue += *rec.FOBUSDTotal
		}
		if rec.FOBUSDPerMT != nil && rec.TradeDate != "" {
			prices = append(prices, *rec.FOBUSDPerMT)
			priceSeries = append(priceSeries, map[string]interface{}{
				"date":             rec.TradeDate,
				"price_usd_per_mt": round2(*rec.FOBUSDPerMT),
			})
		}
		if len(rec.TradeDate) >= 7 {
			volumeByMonth[rec.TradeDate[:7]] += qty
		}
		cid := rec.HctID
		if cid == "" {
			cid = "UNKNOWN"
		}
		agg := commodityAgg[cid]
		if agg == nil {
			cname := rec.HctName
			if cname == "" {
				cname = "Unknown"
			}
			agg = &struct {
				name      string
				volume    float64
				value     float64
				shipments int
			}{name: cname}
			commodityAgg[cid] = agg
		}
		agg.volume += qty
		if rec.FOBUSDTotal != nil {
			agg.value += *rec.FOBUSDTotal
		}
		agg.shipments++

		geo := geoField(rec)
		if geo == "" {
			geo = "UNKNOWN"
		}
		geoVolumes[geo] += qty

		grade := rec.QualityEstimate.Grade
		if grade == "" {
			grade = "Unknown"
		}
		qualityCounts[grade]++
	}

	var avgPrice interface{}
	if len(prices) > 0 {
		avgPrice = round2(mean(prices))
	}

	var volumeSeries []map[string]interface{}
	var monthKeys []string
	for m := range volumeByMonth {
		monthKeys = append(monthKeys, m)
	}
	sort.Strings(monthKeys)
	for _, m := range monthKeys {
		volumeSeries = append(volumeSeries, map[string]interface{}{
			"month": m, "volume_mt": round2(volumeByMonth[m]),
		})
	}

	// Hunger signal: recent two months against the rest.
	hunger := "STABLE"
	if len(volumeSeries) >= 3 {
		recentAvg := (volumeByMonth[monthKeys[len(monthKeys)-1]] + volumeByMonth[monthKeys[len(monthKeys)-2]]) / 2
		olderSum := 0.0
		for _, m := range monthKeys[:len(monthKeys)-2] {
			olderSum += volumeByMonth[m]
		}
		olderAvg := olderSum / float64(len(monthKeys)-2)
		if olderAvg > 0 {
			switch ratio := recentAvg / olderAvg; {
			case ratio > hungerIncreasing:
				hunger = "INCREASING"
			case ratio < hungerDecreasing:
				hunger = "DECREASING"
			}
		}
	}

	type commodityRow struct {
		HctID     string  `json:"hct_id"`
		Name      string  `json:"name"`
		VolumeMT  float64 `json:"volume_mt"`
		ValueUSD  float64 `json:"value_usd"`
		Shipments int     `json:"shipments"`
	}
	var commodityBreakdown []commodityRow
	for cid, agg := range commodityAgg {
		commodityBreakdown = append(commodityBreakdown, commodityRow{
			HctID: cid, Name: agg.name,
			VolumeMT: round2(agg.volume), ValueUSD: round2(agg.value), Shipments: agg.shipments,
		})
	}
	sort.Slice(commodityBreakdown, func(i, j int) bool {
		if commodityBreakdown[i].VolumeMT != commodityBreakdown[j].VolumeMT {
			return commodityBreakdown[i].VolumeMT > commodityBreakdown[j].VolumeMT
		}
		return commodityBreakdown[i].HctID < commodityBreakdown[j].HctID
	})

	var geoBreakdown []map[string]interface{}
	var geoNames []string
	for g := range geoVolumes {
		geoNames = append(geoNames, g)
	}
	sort.Slice(geoNames, func(i, j int) bool {
		if geoVolumes[geoNames[i]] != geoVolumes[geoNames[j]] {
			return geoVolumes[geoNames[i]] > geoVolumes[geoNames[j]]
		}
		return geoNames[i] < geoNames[j]
	})
	for _, g := range geoNames {
		share := 0.0
		if totalVolume > 0 {
			share = round1(geoVolumes[g] / totalVolume * 100)
		}
		geoBreakdown = append(geoBreakdown, map[string]interface{}{
			"country": g, "volume_mt": round2(geoVolumes[g]), "share_pct": share,
		})
	}

	// Market comparison: this party's average vs the market IPC for the
	// commodity of its most recent classified shipment whose market IPC has
	// a price.
	var marketComparison []map[string]interface{}
	for _, rec := range matches {
		if rec.HctID == "" {
			continue
		}
		mkt := s.records.Records(rec.HctID)
		if len(mkt) == 0 {
			continue
		}
		ipc := s.ipc.Compute(mkt, time.Time{})
		if ipc.PriceUSDPerMT != nil {
			marketComparison = append(marketComparison, map[string]interface{}{
				"commodity":       rec.HctName,
				"hct_id":          rec.HctID,
				"market_price":    *ipc.PriceUSDPerMT,
				"party_avg_price": avgPrice,
			})
			break
		}
	}

	recent := matches
	if len(recent) > 20 {
		recent = recent[:20]
	}
	recentShipments := make([]map[string]interface{}, 0, len(recent))
	for _, rec := range recent {
		port := rec.OriginPort
		if port == "" {
			port = rec.DestinationPort
		}
		recentShipments = append(recentShipments, map[string]interface{}{
			"date":           rec.TradeDate,
			"commodity":      rec.HctName,
			"origin":         rec.OriginCountry,
			"destination":    rec.DestinationCountry,
			"quantity_mt":    rec.QuantityMT,
			"fob_usd_per_mt": rec.FOBUSDPerMT,
			"quality":        rec.QualityEstimate,
			"port":           port,
		})
	}

	counterpartyName := name
	if len(matches) > 0 {
		if p := partyOf(matches[0], partyField); p != "" {
			counterpartyName = p
		}
	}

	var qualityBreakdown []map[string]interface{}
	var gradeNames []string
	for g := range qualityCounts {
		gradeNames = append(gradeNames, g)
	}
	sort.Slice(gradeNames, func(i, j int) bool {
		if qualityCounts[gradeNames[i]] != qualityCounts[gradeNames[j]] {
			return qualityCounts[gradeNames[i]] > qualityCounts[gradeNames[j]]
		}
		return gradeNames[i] < gradeNames[j]
	})
	for _, g := range gradeNames {
		qualityBreakdown = append(qualityBreakdown, map[string]interface{}{"grade": g, "count": qualityCounts[g]})
	}

	writeJSON(w, map[string]interface{}{
		"status":            "SUCCESS",
		"query":             name,
		"counterparty_name": counterpartyName,
		"trade_type":        tradeType,
		"trade_country":     tradeCountry,
		"data_source":       dataSource,
		"summary": map[string]interface{}{
			"total_shipments":  len(matches),
			"total_volume_mt":  round2(totalVolume),
			"total_value_usd":  round2(totalValue),
			"avg_price_per_mt": avgPrice,
			"date_range": map[string]string{
				"earliest": matches[len(matches)-1].TradeDate,
				"latest":   matches[0].TradeDate,
			},
			"hunger_signal": hunger,
		},
		"price_series":        priceSeries,
		"volume_series":       volumeSeries,
		"commodity_breakdown": commodityBreakdown,
		"geography_breakdown": geoBreakdown,
		"quality_breakdown":   qualityBreakdown,
		"market_comparison":   marketComparison,
		"recent_shipments":    recentShipments,
		"budget":              s.budget.Snapshot(),
	})
}

func partyOf(rec *normalize.Shipment, field string) string {
	if field == intel.PartyConsignor {
		return rec.Consignor
	}
	return rec.Consignee
}
