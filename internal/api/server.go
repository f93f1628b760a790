package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"hectar-intel/internal/budget"
	"hectar-intel/internal/config"
	"hectar-intel/internal/eximpedia"
	"hectar-intel/internal/harvest"
	"hectar-intel/internal/intel"
	"hectar-intel/internal/normalize"
	"hectar-intel/internal/store"
)

// Upstream is the slice of the eximpedia client the server calls directly
// (single-page queries for exploration and counterparty search).
type Upstream interface {
	TradeShipment(ctx context.Context, q eximpedia.ShipmentQuery, kind string) (*eximpedia.ShipmentResponse, error)
}

// Server is the HTTP dispatch surface wiring the harvester, record store,
// and intelligence engines together.
type Server struct {
	cfg        *config.Config
	upstream   Upstream // may be nil when credentials are absent
	budget     *budget.Tracker
	records    store.RecordStore
	ground     *store.GroundPriceStore
	harvester  *harvest.Engine
	normalizer *normalize.Pipeline

	ipc          *intel.PriceCurve
	fvi          *intel.FlowVelocity
	sd           *intel.SupplyDemand
	counterparty *intel.Counterparty
	corridor     *intel.Corridor
	signals      *intel.SignalGenerator

	// Concurrent signal-feed requests collapse into one computation.
	signalGroup singleflight.Group

	// now is injectable for tests.
	now func() time.Time
}

// NewServer wires the dispatch surface.
func NewServer(cfg *config.Config, upstream Upstream, tracker *budget.Tracker, records store.RecordStore, ground *store.GroundPriceStore, harvester *harvest.Engine) *Server {
	ipc := intel.NewPriceCurve()
	return &Server{
		cfg:          cfg,
		upstream:     upstream,
		budget:       tracker,
		records:      records,
		ground:       ground,
		harvester:    harvester,
		normalizer:   normalize.NewPipeline(),
		ipc:          ipc,
		fvi:          intel.NewFlowVelocity(),
		sd:           intel.NewSupplyDemand(),
		counterparty: intel.NewCounterparty(),
		corridor:     intel.NewCorridor(ipc),
		signals:      intel.NewSignalGenerator(),
		now:          time.Now,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /api/v1/data/query/shipments", s.handleQueryShipments)
	mux.HandleFunc("POST /api/v1/data/harvest/run", s.handleRunHarvest)
	mux.HandleFunc("GET /api/v1/data/harvest/jobs", s.handleListHarvestJobs)
	mux.HandleFunc("POST /api/v1/data/harvest/search", s.handleHarvestSearch)
	mux.HandleFunc("GET /api/v1/data/harvest/status", s.handleHarvestStatus)
	mux.HandleFunc("POST /api/v1/data/ground-price", s.handleSubmitGroundPrice)
	mux.HandleFunc("GET /api/v1/data/ground-prices", s.handleListGroundPrices)
	mux.HandleFunc("GET /api/v1/data/records/stats", s.handleRecordStats)

	mux.HandleFunc("GET /api/v1/intelligence/signals", s.handleGetSignals)
	mux.HandleFunc("GET /api/v1/intelligence/commodities", s.handleListCommodities)
	mux.HandleFunc("POST /api/v1/intelligence/commodity/deep-dive", s.handleCommodityDeepDive)
	mux.HandleFunc("GET /api/v1/intelligence/corridors", s.handleListCorridors)
	mux.HandleFunc("POST /api/v1/intelligence/corridor/analyze", s.handleAnalyzeCorridor)
	mux.HandleFunc("POST /api/v1/intelligence/corridor/compare", s.handleCompareCorridors)
	mux.HandleFunc("POST /api/v1/intelligence/counterparty/market-shares", s.handleCounterpartyMarketShares)
	mux.HandleFunc("POST /api/v1/intelligence/counterparty/anomalies", s.handleCounterpartyAnomalies)
	mux.HandleFunc("GET /api/v1/intelligence/counterparty/search", s.handleCounterpartySearch)
	mux.HandleFunc("POST /api/v1/intelligence/sd/delta", s.handleSDDelta)
	mux.HandleFunc("POST /api/v1/intelligence/sd/flows", s.handleSDFlows)
	mux.HandleFunc("GET /api/v1/intelligence/arbitrage/{hctID}", s.handleArbitrageScan)
	mux.HandleFunc("GET /api/v1/intelligence/budget", s.handleBudget)

	return mux
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, map[string]interface{}{
		"name":    s.cfg.AppName,
		"version": s.cfg.AppVersion,
		"status":  "operational",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "healthy"})
}

func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.budget.Snapshot())
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func queryInt(r *http.Request, key string, def, max int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	if max > 0 && n > max {
		return max
	}
	return n
}

func parseDateOr(v string, fallback time.Time) time.Time {
	if d, ok := normalize.ParseDate(v); ok {
		return d
	}
	return fallback
}

func validTradeType(tt string) bool {
	return tt == "IMPORT" || tt == "EXPORT"
}
