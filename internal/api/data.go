package api

import (
	"fmt"
	"net/http"
	"strings"

	"hectar-intel/internal/eximpedia"
	"hectar-intel/internal/harvest"
	"hectar-intel/internal/normalize"
	"hectar-intel/internal/refdata"
	"hectar-intel/internal/store"
)

type shipmentQueryRequest struct {
	StartDate            string   `json:"start_date"`
	EndDate              string   `json:"end_date"`
	TradeType            string   `json:"trade_type"`
	TradeCountry         string   `json:"trade_country"`
	HSCodes              []string `json:"hs_codes,omitempty"`
	Products             []string `json:"products,omitempty"`
	OriginCountries      []string `json:"origin_countries,omitempty"`
	DestinationCountries []string `json:"destination_countries,omitempty"`
	PageSize             int      `json:"page_size"`
	PageNo               int      `json:"page_no"`
}

// handleQueryShipments runs a direct single-page upstream query, normalizes
// the results, and stores anything classifiable.
func (s *Server) handleQueryShipments(w http.ResponseWriter, r *http.Request) {
	var req shipmentQueryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.TradeType = strings.ToUpper(req.TradeType)
	if !validTradeType(req.TradeType) {
		writeError(w, http.StatusBadRequest, "trade_type must be IMPORT or EXPORT")
		return
	}
	if req.TradeCountry == "" || req.StartDate == "" || req.EndDate == "" {
		writeError(w, http.StatusBadRequest, "trade_country, start_date and end_date are required")
		return
	}
	if s.upstream == nil {
		writeError(w, http.StatusServiceUnavailable, "upstream client not configured")
		return
	}

	q := eximpedia.BuildShipmentQuery(eximpedia.QueryParams{
		StartDate:            req.StartDate,
		EndDate:              req.EndDate,
		TradeType:            req.TradeType,
		TradeCountry:         req.TradeCountry,
		HSCodes:              req.HSCodes,
		Products:             req.Products,
		OriginCountries:      req.OriginCountries,
		DestinationCountries: req.DestinationCountries,
		PageSize:             req.PageSize,
		PageNo:               req.PageNo,
	})

	resp, err := s.upstream.TradeShipment(r.Context(), q, eximpedia.CallSearch)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	normalized := make([]*normalize.Shipment, 0, len(resp.Data))
	for _, raw := range resp.Data {
		if len(raw) == 0 {
			continue
		}
		sh := s.normalizer.Normalize(raw, req.TradeType, req.TradeCountry)
		normalized = append(normalized, sh)
		if sh.HctID != "" {
			s.records.Append(sh.HctID, []*normalize.Shipment{sh})
		}
	}

	writeJSON(w, map[string]interface{}{
		"total_records":    resp.Total(),
		"page":             q.PageNo,
		"raw_count":        len(resp.Data),
		"normalized_count": len(normalized),
		"records":          normalized,
	})
}

type harvestRunRequest struct {
	JobName  string `json:"job_name,omitempty"`
	Priority int    `json:"priority,omitempty"`
}

// handleRunHarvest executes one catalog job or every job at a priority
// level. Normalized records are stored; the response carries summaries only.
func (s *Server) handleRunHarvest(w http.ResponseWriter, r *http.Request) {
	var req harvestRunRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var results []harvest.Result
	if req.JobName != "" {
		job, ok := harvest.FindJob(req.JobName)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Sprintf("job %q not found", req.JobName))
			return
		}
		results = []harvest.Result{s.harvester.RunJob(r.Context(), job)}
	} else {
		results = s.harvester.RunAllJobs(r.Context(), req.Priority)
	}

	writeJSON(w, map[string]interface{}{"harvest_results": results})
}

func (s *Server) handleListHarvestJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{"jobs": harvest.Jobs})
}

// handleHarvestSearch resolves a commodity by name and harvests it: matching
// catalog jobs when they exist, otherwise an ad-hoc fan-out over the top
// trading countries with a 60-day lookback.
func (s *Server) handleHarvestSearch(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("commodity_name"))
	if len(name) < 2 {
		writeError(w, http.StatusBadRequest, "commodity_name must be at least 2 characters")
		return
	}

	matches := refdata.FindCommoditiesByName(name)
	if len(matches) == 0 {
		var available []string
		for _, id := range refdata.TaxonomyIDs() {
			available = append(available, refdata.Taxonomy[id].HctName)
		}
		writeJSON(w, map[string]interface{}{
			"status":    "NOT_FOUND",
			"message":   fmt.Sprintf("No commodity matching %q found", name),
			"available": available,
		})
		return
	}

	var results []harvest.Result
	var matchedNames []string
	for _, hctID := range matches {
		entry := refdata.Taxonomy[hctID]
		matchedNames = append(matchedNames, entry.HctName)

		// Broaden to 4-digit HS prefixes for the search.
		hsSet := map[string]bool{}
		for _, m := range entry.HSMappings {
			hs := m.HSCode
			if len(hs) > 4 {
				hs = hs[:4]
			}
			hsSet[hs] = true
		}
		var hsCodes []string
		for hs := range hsSet {
			hsCodes = append(hsCodes, hs)
		}

		jobs := matchingCatalogJobs(hsSet)
		if len(jobs) > 0 {
			for _, job := range jobs {
				results = append(results, s.harvester.RunJob(r.Context(), job))
			}
			continue
		}

		// No pre-configured lane: fan out over the top countries.
		for _, country := range harvest.SearchCountries[:5] {
			for _, tradeType := range []string{"IMPORT", "EXPORT"} {
				adhoc := harvest.Job{
					Name:         strings.ToLower(fmt.Sprintf("search_%s_%s_%s", hctID, country, tradeType)),
					TradeType:    tradeType,
					TradeCountry: country,
					HSCodes:      hsCodes,
					LookbackDays: 60,
				}
				result := s.harvester.RunJob(r.Context(), adhoc)
				if result.Status == harvest.StatusSuccess && result.NormalizedCount > 0 {
					results = append(results, result)
				}
			}
		}
	}

	total := 0
	for _, res := range results {
		total += res.NormalizedCount
	}
	writeJSON(w, map[string]interface{}{
		"status":               "SUCCESS",
		"commodity_query":      name,
		"commodities_matched":  matchedNames,
		"jobs_executed":        len(results),
		"total_records_loaded": total,
		"results":              results,
	})
}

func matchingCatalogJobs(hsSet map[string]bool) []harvest.Job {
	var out []harvest.Job
	for _, job := range harvest.Jobs {
		for _, hs := range job.HSCodes {
			prefix := hs
			if len(prefix) > 4 {
				prefix = prefix[:4]
			}
			if hsSet[prefix] {
				out = append(out, job)
				break
			}
		}
	}
	return out
}

// handleHarvestStatus reports loading progress per commodity.
func (s *Server) handleHarvestStatus(w http.ResponseWriter, r *http.Request) {
	perCommodity := map[string]interface{}{}
	total := 0
	loaded := 0
	for _, hctID := range refdata.TaxonomyIDs() {
		count := s.records.Count(hctID)
		if count == 0 {
			continue
		}
		loaded++
		total += count
		perCommodity[hctID] = map[string]interface{}{
			"name":  refdata.Taxonomy[hctID].HctName,
			"count": count,
		}
	}
	writeJSON(w, map[string]interface{}{
		"total_records":      total,
		"commodities_loaded": loaded,
		"total_commodities":  len(refdata.Taxonomy),
		"loading_complete":   loaded > 0,
		"per_commodity":      perCommodity,
	})
}

func (s *Server) handleSubmitGroundPrice(w http.ResponseWriter, r *http.Request) {
	var price store.GroundPrice
	if !decodeBody(w, r, &price) {
		return
	}
	if price.HctID == "" || price.Price <= 0 || price.Location == "" || price.SourceType == "" || price.ObservationDate == "" {
		writeError(w, http.StatusBadRequest, "hct_id, price, location, source_type and observation_date are required")
		return
	}
	if _, ok := normalize.ParseDate(price.ObservationDate); !ok {
		writeError(w, http.StatusBadRequest, "observation_date must be YYYY-MM-DD")
		return
	}
	stored := s.ground.Add(price)
	writeJSON(w, map[string]interface{}{"status": "accepted", "observation": stored})
}

func (s *Server) handleListGroundPrices(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50, 200)
	prices, total := s.ground.List(r.URL.Query().Get("hct_id"), r.URL.Query().Get("location"), limit)
	if prices == nil {
		prices = []store.GroundPrice{}
	}
	writeJSON(w, map[string]interface{}{"prices": prices, "total": total})
}

// handleRecordStats summarizes the record store per commodity.
func (s *Server) handleRecordStats(w http.ResponseWriter, r *http.Request) {
	var stats []map[string]interface{}
	total := 0
	for _, hctID := range refdata.TaxonomyIDs() {
		records := s.records.Records(hctID)
		if len(records) == 0 {
			continue
		}
		var earliest, latest string
		origins := map[string]bool{}
		for _, rec := range records {
			if rec.TradeDate != "" {
				if earliest == "" || rec.TradeDate < earliest {
					earliest = rec.TradeDate
				}
				if rec.TradeDate > latest {
					latest = rec.TradeDate
				}
			}
			if rec.OriginCountry != "" {
				origins[rec.OriginCountry] = true
			}
		}
		originList := make([]string, 0, len(origins))
		for o := range origins {
			originList = append(originList, o)
		}
		total += len(records)
		stats = append(stats, map[string]interface{}{
			"hct_id":       hctID,
			"hct_name":     refdata.Taxonomy[hctID].HctName,
			"record_count": len(records),
			"date_range":   map[string]string{"earliest": earliest, "latest": latest},
			"origins":      originList,
		})
	}
	writeJSON(w, map[string]interface{}{"record_stats": stats, "total_records": total})
}
