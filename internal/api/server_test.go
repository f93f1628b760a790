package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hectar-intel/internal/budget"
	"hectar-intel/internal/config"
	"hectar-intel/internal/eximpedia"
	"hectar-intel/internal/harvest"
	"hectar-intel/internal/normalize"
	"hectar-intel/internal/store"
)

// stubFetcher feeds the harvest engine canned raw records.
type stubFetcher struct {
	records []map[string]interface{}
}

func (f *stubFetcher) TradeShipmentAll(ctx context.Context, q eximpedia.ShipmentQuery, kind string) ([]map[string]interface{}, error) {
	return f.records, nil
}

// stubUpstream serves single-page queries.
type stubUpstream struct {
	resp *eximpedia.ShipmentResponse
	err  error
}

func (u *stubUpstream) TradeShipment(ctx context.Context, q eximpedia.ShipmentQuery, kind string) (*eximpedia.ShipmentResponse, error) {
	return u.resp, u.err
}

func testServer(t *testing.T, upstream Upstream, fetcherRecords []map[string]interface{}) (*Server, store.RecordStore) {
	t.Helper()
	records := store.NewMemoryStore()
	tracker := budget.NewTracker()
	harvester := harvest.NewEngine(&stubFetcher{records: fetcherRecords}, records, nil)
	s := NewServer(config.Default(), upstream, tracker, records, store.NewGroundPriceStore(), harvester)
	s.now = func() time.Time { return time.Date(2025, 4, 15, 12, 0, 0, 0, time.UTC) }
	return s, records
}

func seedShipments(records store.RecordStore) {
	p := &normalize.Pipeline{Now: func() time.Time { return time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC) }}
	raws := []normalize.RawRecord{
		{"DECLARATION_NO": "D1", "ITEM_NO": "1", "HS_CODE": "08013100", "FOB_USD": 150000.0,
			"QUANTITY": 100.0, "UNIT": "MTS", "EXP_DATE": "2025-04-14", "ORIGIN_COUNTRY": "IVORY COAST",
			"CONSIGNEE": "OLAM AGRI", "PRODUCT": "RAW CASHEW NUTS OUTTURN 47 LBS"},
		{"DECLARATION_NO": "D2", "ITEM_NO": "1", "HS_CODE": "08013100", "FOB_USD": 160000.0,
			"QUANTITY": 100.0, "UNIT": "MTS", "EXP_DATE": "2025-04-13", "ORIGIN_COUNTRY": "GHANA",
			"CONSIGNEE": "CARGILL INDIA", "PRODUCT": "RAW CASHEW NUTS"},
		{"DECLARATION_NO": "D3", "ITEM_NO": "1", "HS_CODE": "08013100", "FOB_USD": 145000.0,
			"QUANTITY": 100.0, "UNIT": "MTS", "EXP_DATE": "2025-04-12", "ORIGIN_COUNTRY": "IVORY COAST",
			"CONSIGNEE": "SHREE EXPORTS", "PRODUCT": "RAW CASHEW NUTS IN SHELL"},
	}
	for _, raw := range raws {
		sh := p.Normalize(raw, "IMPORT", "INDIA")
		records.Append(sh.HctID, []*normalize.Shipment{sh})
	}
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &out)
	return rec.Code, out
}

func TestRootAndHealth(t *testing.T) {
	s, _ := testServer(t, nil, nil)
	h := s.Handler()

	code, body := doJSON(t, h, "GET", "/", nil)
	if code != 200 || body["status"] != "operational" {
		t.Errorf("root = %d %v", code, body)
	}
	code, body = doJSON(t, h, "GET", "/health", nil)
	if code != 200 || body["status"] != "healthy" {
		t.Errorf("health = %d %v", code, body)
	}
}

func TestListCommodities(t *testing.T) {
	s, records := testServer(t, nil, nil)
	seedShipments(records)

	code, body := doJSON(t, s.Handler(), "GET", "/api/v1/intelligence/commodities", nil)
	if code != 200 {
		t.Fatalf("code = %d", code)
	}
	commodities := body["commodities"].([]interface{})
	if len(commodities) != 10 {
		t.Fatalf("commodities = %d, want full taxonomy", len(commodities))
	}
	first := commodities[0].(map[string]interface{})
	if first["hct_id"] != "HCT-0801-RCN-INSHELL" {
		t.Errorf("first commodity = %v", first["hct_id"])
	}
	if first["record_count"].(float64) != 3 {
		t.Errorf("record_count = %v, want 3", first["record_count"])
	}
	if first["current_price_usd"] == nil {
		t.Error("current_price_usd missing for loaded commodity")
	}
}

func TestRecordStatsAndHarvestStatus(t *testing.T) {
	s, records := testServer(t, nil, nil)
	seedShipments(records)
	h := s.Handler()

	code, body := doJSON(t, h, "GET", "/api/v1/data/records/stats", nil)
	if code != 200 || body["total_records"].(float64) != 3 {
		t.Errorf("stats = %d %v", code, body)
	}

	code, body = doJSON(t, h, "GET", "/api/v1/data/harvest/status", nil)
	if code != 200 || body["loading_complete"] != true {
		t.Errorf("status = %d %v", code, body)
	}
	if body["commodities_loaded"].(float64) != 1 {
		t.Errorf("commodities_loaded = %v", body["commodities_loaded"])
	}
}

func TestGroundPriceRoundTrip(t *testing.T) {
	s, _ := testServer(t, nil, nil)
	h := s.Handler()

	code, body := doJSON(t, h, "POST", "/api/v1/data/ground-price", map[string]interface{}{
		"hct_id":           "HCT-0801-RCN-INSHELL",
		"price":            1450.0,
		"location":         "Abidjan",
		"source_type":      "broker",
		"observation_date": "2025-04-10",
	})
	if code != 200 || body["status"] != "accepted" {
		t.Fatalf("submit = %d %v", code, body)
	}

	code, body = doJSON(t, h, "GET", "/api/v1/data/ground-prices?hct_id=HCT-0801-RCN-INSHELL", nil)
	if code != 200 || body["total"].(float64) != 1 {
		t.Errorf("list = %d %v", code, body)
	}

	// Validation: missing fields rejected.
	code, _ = doJSON(t, h, "POST", "/api/v1/data/ground-price", map[string]interface{}{"hct_id": "X"})
	if code != 400 {
		t.Errorf("invalid submit code = %d, want 400", code)
	}
}

func TestSDFlowsAndDelta(t *testing.T) {
	s, records := testServer(t, nil, nil)
	seedShipments(records)
	h := s.Handler()

	code, body := doJSON(t, h, "POST", "/api/v1/intelligence/sd/flows", map[string]interface{}{
		"hct_id":     "HCT-0801-RCN-INSHELL",
		"start_date": "2025-04-01",
		"end_date":   "2025-04-15",
	})
	if code != 200 {
		t.Fatalf("flows code = %d %v", code, body)
	}
	if body["total_volume_mt"].(float64) != 300 {
		t.Errorf("total volume = %v, want 300", body["total_volume_mt"])
	}

	code, body = doJSON(t, h, "POST", "/api/v1/intelligence/sd/delta", map[string]interface{}{
		"hct_id":              "HCT-0801-RCN-INSHELL",
		"consensus_annual_mt": 100000.0,
		"crop_year_start":     "2025-02-01",
	})
	if code != 200 || body["signal"] == nil {
		t.Errorf("delta = %d %v", code, body)
	}

	// Missing consensus rejected.
	code, _ = doJSON(t, h, "POST", "/api/v1/intelligence/sd/delta", map[string]interface{}{"hct_id": "X"})
	if code != 400 {
		t.Errorf("invalid delta code = %d, want 400", code)
	}
}

func TestCounterpartyMarketSharesEndpoint(t *testing.T) {
	s, records := testServer(t, nil, nil)
	seedShipments(records)

	code, body := doJSON(t, s.Handler(), "POST", "/api/v1/intelligence/counterparty/market-shares", map[string]interface{}{
		"hct_id":     "HCT-0801-RCN-INSHELL",
		"party_type": "consignee",
	})
	if code != 200 {
		t.Fatalf("code = %d %v", code, body)
	}
	top := body["top_entities"].([]interface{})
	if len(top) != 3 {
		t.Errorf("top entities = %d, want 3", len(top))
	}

	code, _ = doJSON(t, s.Handler(), "POST", "/api/v1/intelligence/counterparty/market-shares", map[string]interface{}{
		"hct_id":     "HCT-0801-RCN-INSHELL",
		"party_type": "shipper",
	})
	if code != 400 {
		t.Errorf("bad party_type code = %d, want 400", code)
	}
}

func TestCorridorAnalyzeEndpoint(t *testing.T) {
	s, records := testServer(t, nil, nil)
	seedShipments(records)

	code, body := doJSON(t, s.Handler(), "POST", "/api/v1/intelligence/corridor/analyze", map[string]interface{}{
		"hct_id":         "HCT-0801-RCN-INSHELL",
		"origin_country": "IVORY COAST",
		"origin_port":    "ABIDJAN",
		"dest_port":      "TUTICORIN",
		"target_date":    "2025-04-15",
	})
	if code != 200 {
		t.Fatalf("code = %d %v", code, body)
	}
	if body["fob_usd_per_mt"] == nil || body["implied_cif_usd_per_mt"] == nil {
		t.Errorf("FAB incomplete: %v", body)
	}
	if body["freight_usd_per_mt"].(float64) != 42.5 {
		t.Errorf("freight = %v, want 42.5", body["freight_usd_per_mt"])
	}
}

func TestArbitrageEndpoint(t *testing.T) {
	s, records := testServer(t, nil, nil)
	seedShipments(records)

	code, body := doJSON(t, s.Handler(), "GET", "/api/v1/intelligence/arbitrage/HCT-0801-RCN-INSHELL", nil)
	if code != 200 {
		t.Fatalf("code = %d", code)
	}
	if body["commodity"] != "HCT-0801-RCN-INSHELL" {
		t.Errorf("commodity = %v", body["commodity"])
	}
	// Ivory Coast weighted median 1450 vs Ghana 1600: spread ≈ 10.3% → one pair.
	opportunities := body["opportunities"].([]interface{})
	if len(opportunities) != 1 {
		t.Errorf("opportunities = %d, want 1 (%v)", len(opportunities), body)
	}
}

func TestSignalsEndpoint(t *testing.T) {
	s, records := testServer(t, nil, nil)
	seedShipments(records)

	code, body := doJSON(t, s.Handler(), "GET", "/api/v1/intelligence/signals?limit=5", nil)
	if code != 200 {
		t.Fatalf("code = %d", code)
	}
	if _, ok := body["signals"]; !ok {
		t.Errorf("signals missing: %v", body)
	}
}

func TestBudgetEndpoint(t *testing.T) {
	s, _ := testServer(t, nil, nil)
	code, body := doJSON(t, s.Handler(), "GET", "/api/v1/intelligence/budget", nil)
	if code != 200 {
		t.Fatalf("code = %d", code)
	}
	if body["daily_calls_limit"].(float64) != 100 {
		t.Errorf("daily limit = %v, want 100", body["daily_calls_limit"])
	}
	if body["harvest_budget"].(float64) != 60 || body["search_budget"].(float64) != 40 {
		t.Errorf("sub budgets = %v/%v", body["harvest_budget"], body["search_budget"])
	}
}

func TestQueryShipments(t *testing.T) {
	total := 1
	upstream := &stubUpstream{resp: &eximpedia.ShipmentResponse{
		Data: []map[string]interface{}{
			{"DECLARATION_NO": "Q1", "ITEM_NO": "1", "HS_CODE": "08013100", "FOB_USD": 150000.0,
				"QUANTITY": 100.0, "UNIT": "MTS", "EXP_DATE": "2025-04-14"},
		},
		TotalRecords: &total,
	}}
	s, records := testServer(t, upstream, nil)

	code, body := doJSON(t, s.Handler(), "POST", "/api/v1/data/query/shipments", map[string]interface{}{
		"start_date":    "2025-04-01",
		"end_date":      "2025-04-15",
		"trade_type":    "IMPORT",
		"trade_country": "INDIA",
		"hs_codes":      []string{"0801"},
	})
	if code != 200 {
		t.Fatalf("code = %d %v", code, body)
	}
	if body["normalized_count"].(float64) != 1 {
		t.Errorf("normalized_count = %v", body["normalized_count"])
	}
	// Classified records land in the store.
	if got := records.Count("HCT-0801-RCN-INSHELL"); got != 1 {
		t.Errorf("stored = %d, want 1", got)
	}

	code, _ = doJSON(t, s.Handler(), "POST", "/api/v1/data/query/shipments", map[string]interface{}{
		"start_date": "2025-04-01", "end_date": "2025-04-15",
		"trade_type": "BOTH", "trade_country": "INDIA",
	})
	if code != 400 {
		t.Errorf("invalid trade_type code = %d, want 400", code)
	}
}

func TestRunHarvestEndpoint(t *testing.T) {
	raw := []map[string]interface{}{
		{"DECLARATION_NO": "H1", "ITEM_NO": "1", "HS_CODE": "08013100", "FOB_USD": 150000.0,
			"QUANTITY": 100.0, "UNIT": "MTS", "IMP_DATE": "2025-04-10"},
	}
	s, records := testServer(t, nil, raw)

	code, body := doJSON(t, s.Handler(), "POST", "/api/v1/data/harvest/run", map[string]interface{}{
		"job_name": "rcn_india_imports",
	})
	if code != 200 {
		t.Fatalf("code = %d %v", code, body)
	}
	results := body["harvest_results"].([]interface{})
	if len(results) != 1 {
		t.Fatalf("results = %d", len(results))
	}
	r := results[0].(map[string]interface{})
	if r["status"] != "SUCCESS" || r["normalized_count"].(float64) != 1 {
		t.Errorf("result = %v", r)
	}
	if got := records.Count("HCT-0801-RCN-INSHELL"); got != 1 {
		t.Errorf("stored = %d, want 1", got)
	}

	code, _ = doJSON(t, s.Handler(), "POST", "/api/v1/data/harvest/run", map[string]interface{}{
		"job_name": "no_such_job",
	})
	if code != 404 {
		t.Errorf("unknown job code = %d, want 404", code)
	}
}

func TestHarvestJobsEndpoint(t *testing.T) {
	s, _ := testServer(t, nil, nil)
	code, body := doJSON(t, s.Handler(), "GET", "/api/v1/data/harvest/jobs", nil)
	if code != 200 {
		t.Fatalf("code = %d", code)
	}
	jobs := body["jobs"].([]interface{})
	if len(jobs) != len(harvest.Jobs) {
		t.Errorf("jobs = %d, want %d", len(jobs), len(harvest.Jobs))
	}
}

func TestCounterpartySearch_CacheHit(t *testing.T) {
	s, records := testServer(t, nil, nil)
	seedShipments(records)

	code, body := doJSON(t, s.Handler(), "GET", "/api/v1/intelligence/counterparty/search?name=OLAM&trade_type=IMPORT", nil)
	if code != 200 {
		t.Fatalf("code = %d", code)
	}
	if body["status"] != "SUCCESS" {
		t.Fatalf("status = %v", body["status"])
	}
	if body["data_source"] != "cache" {
		t.Errorf("data_source = %v, want cache (no upstream wired)", body["data_source"])
	}
	summary := body["summary"].(map[string]interface{})
	if summary["total_shipments"].(float64) != 1 {
		t.Errorf("total_shipments = %v, want 1", summary["total_shipments"])
	}
}

func TestCounterpartySearch_NotFound(t *testing.T) {
	s, _ := testServer(t, nil, nil)
	code, body := doJSON(t, s.Handler(), "GET", "/api/v1/intelligence/counterparty/search?name=NOBODY", nil)
	if code != 200 || body["status"] != "NOT_FOUND" {
		t.Errorf("resp = %d %v", code, body)
	}
}

func TestCommodityDeepDive(t *testing.T) {
	s, records := testServer(t, nil, nil)
	seedShipments(records)

	code, body := doJSON(t, s.Handler(), "POST", "/api/v1/intelligence/commodity/deep-dive", map[string]interface{}{
		"hct_id":     "HCT-0801-RCN-INSHELL",
		"start_date": "2025-04-01",
		"end_date":   "2025-04-15",
	})
	if code != 200 {
		t.Fatalf("code = %d %v", code, body)
	}
	for _, key := range []string{"price_by_grade", "volume_momentum", "top_buyers", "top_sellers", "current_ipc", "ipc_series", "volume_summary"} {
		if _, ok := body[key]; !ok {
			t.Errorf("deep dive missing %q", key)
		}
	}
	buyers := body["top_buyers"].([]interface{})
	if len(buyers) != 3 {
		t.Errorf("top_buyers = %d, want 3", len(buyers))
	}
}
