package api

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"hectar-intel/internal/harvest"
	"hectar-intel/internal/intel"
	"hectar-intel/internal/normalize"
	"hectar-intel/internal/refdata"
)

// handleGetSignals builds the aggregated trading signal feed: IPC price
// moves per commodity × origin, and FVI readings per priority corridor.
// Concurrent requests share one computation via singleflight.
func (s *Server) handleGetSignals(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20, 100)

	v, _, _ := s.signalGroup.Do("signals", func() (interface{}, error) {
		return s.buildSignalFeed(), nil
	})
	all := v.([]*intel.Signal)

	sorted := intel.SortSignals(append([]*intel.Signal{}, all...), limit)
	writeJSON(w, map[string]interface{}{"signals": sorted, "total": len(all)})
}

func (s *Server) buildSignalFeed() []*intel.Signal {
	today := s.now().UTC().Truncate(24 * time.Hour)
	weekAgo := today.AddDate(0, 0, -7)
	stamp := today.Format("2006-01-02")

	var all []*intel.Signal

	for _, hctID := range refdata.TaxonomyIDs() {
		records := s.records.Records(hctID)
		if len(records) == 0 {
			continue
		}
		entry := refdata.Taxonomy[hctID]

		// Price movement per origin.
		origins := map[string]bool{}
		for _, rec := range records {
			if rec.OriginCountry != "" {
				origins[rec.OriginCountry] = true
			}
		}
		originList := make([]string, 0, len(origins))
		for o := range origins {
			originList = append(originList, o)
		}
		sort.Strings(originList)

		for _, origin := range originList {
			var originRecords []*normalize.Shipment
			for _, rec := range records {
				if rec.OriginCountry == origin {
					originRecords = append(originRecords, rec)
				}
			}
			curr := s.ipc.Compute(originRecords, today)
			prev := s.ipc.Compute(originRecords, weekAgo)
			if sig := s.signals.FromIPCChange(curr, prev, entry.HctName, origin); sig != nil {
				sig.Timestamp = stamp
				sig.HctID = hctID
				all = append(all, sig)
			}
		}

		// Flow velocity per priority corridor.
		for _, corridor := range harvest.PriorityCorridors {
			if corridor.Commodity != hctID {
				continue
			}
			var corridorRecords []*normalize.Shipment
			for _, rec := range records {
				for _, origin := range corridor.Origins {
					if rec.OriginCountry == origin {
						corridorRecords = append(corridorRecords, rec)
						break
					}
				}
			}
			fviResult := s.fvi.ComputeSeasonallyAdjusted(corridorRecords, hctID, today)
			if sig := s.signals.FromFVI(fviResult, corridor.Name); sig != nil {
				sig.Timestamp = stamp
				sig.HctID = hctID
				all = append(all, sig)
			}
		}
	}

	return all
}

// handleListCommodities returns every taxonomy entry with quick stats.
func (s *Server) handleListCommodities(w http.ResponseWriter, r *http.Request) {
	today := s.now().UTC().Truncate(24 * time.Hour)
	var out []map[string]interface{}
	for _, hctID := range refdata.TaxonomyIDs() {
		entry := refdata.Taxonomy[hctID]
		records := s.records.Records(hctID)

		item := map[string]interface{}{
			"hct_id":            hctID,
			"hct_name":          entry.HctName,
			"hct_group":         entry.HctGroup,
			"hct_supergroup":    entry.HctSupergroup,
			"record_count":      len(records),
			"current_price_usd": nil,
			"price_confidence":  intel.ConfidenceNone,
			"quality_grades":    entry.QualityGrades,
		}
		if len(records) > 0 {
			ipc := s.ipc.Compute(records, today)
			item["current_price_usd"] = ipc.PriceUSDPerMT
			item["price_confidence"] = ipc.Confidence
		}
		out = append(out, item)
	}
	writeJSON(w, map[string]interface{}{"commodities": out})
}

type corridorRequest struct {
	HctID         string `json:"hct_id"`
	OriginCountry string `json:"origin_country"`
	OriginPort    string `json:"origin_port"`
	DestPort      string `json:"dest_port"`
	TargetDate    string `json:"target_date,omitempty"`
}

func (s *Server) handleAnalyzeCorridor(w http.ResponseWriter, r *http.Request) {
	var req corridorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.HctID == "" || req.OriginCountry == "" {
		writeError(w, http.StatusBadRequest, "hct_id and origin_country are required")
		return
	}
	records := s.records.Records(req.HctID)
	target := parseDateOr(req.TargetDate, time.Time{})
	writeJSON(w, s.corridor.ComputeFAB(records, req.OriginCountry, req.OriginPort, req.DestPort, target))
}

type corridorCompareRequest struct {
	HctID      string             `json:"hct_id"`
	Origins    []intel.OriginSpec `json:"origins"`
	DestPort   string             `json:"dest_port"`
	TargetDate string             `json:"target_date,omitempty"`
}

func (s *Server) handleCompareCorridors(w http.ResponseWriter, r *http.Request) {
	var req corridorCompareRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.HctID == "" || len(req.Origins) == 0 {
		writeError(w, http.StatusBadRequest, "hct_id and origins are required")
		return
	}
	records := s.records.Records(req.HctID)
	target := parseDateOr(req.TargetDate, time.Time{})
	writeJSON(w, s.corridor.CompareOrigins(records, req.Origins, req.DestPort, target))
}

// handleListCorridors returns the priority corridors with current prices.
func (s *Server) handleListCorridors(w http.ResponseWriter, r *http.Request) {
	var out []map[string]interface{}
	for _, corridor := range harvest.PriorityCorridors {
		records := s.records.Records(corridor.Commodity)
		var corridorRecords []*normalize.Shipment
		for _, rec := range records {
			for _, origin := range corridor.Origins {
				if rec.OriginCountry == origin {
					corridorRecords = append(corridorRecords, rec)
					break
				}
			}
		}

		item := map[string]interface{}{
			"name":             corridor.Name,
			"commodity":        corridor.Commodity,
			"origins":          corridor.Origins,
			"origin_port":      corridor.OriginPort,
			"dest_port":        corridor.DestPort,
			"record_count":     len(corridorRecords),
			"current_fob":      nil,
			"price_confidence": intel.ConfidenceNone,
		}
		if len(corridorRecords) > 0 {
			ipc := s.ipc.Compute(corridorRecords, time.Time{})
			item["current_fob"] = ipc.PriceUSDPerMT
			item["price_confidence"] = ipc.Confidence
		}
		out = append(out, item)
	}
	writeJSON(w, map[string]interface{}{"corridors": out})
}

type counterpartyRequest struct {
	HctID     string `json:"hct_id"`
	PartyType string `json:"party_type"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	TopN      int    `json:"top_n"`
}

func (s *Server) counterpartyReq(w http.ResponseWriter, r *http.Request) (*counterpartyRequest, bool) {
	var req counterpartyRequest
	if !decodeBody(w, r, &req) {
		return nil, false
	}
	if req.HctID == "" {
		writeError(w, http.StatusBadRequest, "hct_id is required")
		return nil, false
	}
	if req.PartyType == "" {
		req.PartyType = intel.PartyConsignee
	}
	if req.PartyType != intel.PartyConsignee && req.PartyType != intel.PartyConsignor {
		writeError(w, http.StatusBadRequest, "party_type must be consignee or consignor")
		return nil, false
	}
	if req.TopN <= 0 {
		req.TopN = 20
	}
	if req.TopN > 50 {
		req.TopN = 50
	}
	return &req, true
}

func (s *Server) handleCounterpartyMarketShares(w http.ResponseWriter, r *http.Request) {
	req, ok := s.counterpartyReq(w, r)
	if !ok {
		return
	}
	records := s.records.Records(req.HctID)
	start := parseDateOr(req.StartDate, time.Time{})
	end := parseDateOr(req.EndDate, time.Time{})
	writeJSON(w, s.counterparty.ComputeMarketShares(records, req.PartyType, start, end, req.TopN))
}

func (s *Server) handleCounterpartyAnomalies(w http.ResponseWriter, r *http.Request) {
	req, ok := s.counterpartyReq(w, r)
	if !ok {
		return
	}
	records := s.records.Records(req.HctID)
	today := s.now().UTC().Truncate(24 * time.Hour)
	anomalies := s.counterparty.DetectAnomalies(records, records, req.PartyType, 12, today)
	if anomalies == nil {
		anomalies = []intel.Anomaly{}
	}
	writeJSON(w, map[string]interface{}{"anomalies": anomalies})
}

type sdDeltaRequest struct {
	HctID             string  `json:"hct_id"`
	ConsensusAnnualMT float64 `json:"consensus_annual_mt"`
	CropYearStart     string  `json:"crop_year_start"`
	TargetDate        string  `json:"target_date,omitempty"`
}

func (s *Server) handleSDDelta(w http.ResponseWriter, r *http.Request) {
	var req sdDeltaRequest
	if !decodeBody(w, r, &req) {
		return
	}
	cropStart, ok := normalize.ParseDate(req.CropYearStart)
	if req.HctID == "" || req.ConsensusAnnualMT <= 0 || !ok {
		writeError(w, http.StatusBadRequest, "hct_id, consensus_annual_mt and crop_year_start are required")
		return
	}
	records := s.records.Records(req.HctID)
	target := parseDateOr(req.TargetDate, s.now().UTC().Truncate(24*time.Hour))
	writeJSON(w, s.sd.ComputeSDDelta(records, req.ConsensusAnnualMT, cropStart, target))
}

type flowsRequest struct {
	HctID           string   `json:"hct_id"`
	StartDate       string   `json:"start_date"`
	EndDate         string   `json:"end_date"`
	OriginCountries []string `json:"origin_countries,omitempty"`
}

func (s *Server) handleSDFlows(w http.ResponseWriter, r *http.Request) {
	var req flowsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	start, okStart := normalize.ParseDate(req.StartDate)
	end, okEnd := normalize.ParseDate(req.EndDate)
	if req.HctID == "" || !okStart || !okEnd {
		writeError(w, http.StatusBadRequest, "hct_id, start_date and end_date are required")
		return
	}
	records := filterOrigins(s.records.Records(req.HctID), req.OriginCountries)
	writeJSON(w, s.sd.ComputeCumulativeFlows(records, start, end, ""))
}

// handleArbitrageScan scans origin pairs of a commodity's priority corridors.
func (s *Server) handleArbitrageScan(w http.ResponseWriter, r *http.Request) {
	hctID := r.PathValue("hctID")
	records := s.records.Records(hctID)

	var origins []string
	for _, corridor := range harvest.PriorityCorridors {
		if corridor.Commodity != hctID {
			continue
		}
		origins = append(origins, corridor.Origins...)
	}

	arbs := s.corridor.FindArbitrage(records, origins, time.Time{})
	if arbs == nil {
		arbs = []intel.ArbOpportunity{}
	}
	writeJSON(w, map[string]interface{}{"commodity": hctID, "opportunities": arbs})
}

func filterOrigins(records []*normalize.Shipment, origins []string) []*normalize.Shipment {
	if len(origins) == 0 {
		return records
	}
	want := map[string]bool{}
	for _, o := range origins {
		want[strings.ToUpper(o)] = true
	}
	var out []*normalize.Shipment
	for _, rec := range records {
		if want[rec.OriginCountry] {
			out = append(out, rec)
		}
	}
	return out
}
