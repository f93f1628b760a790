package harvest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"hectar-intel/internal/eximpedia"
	"hectar-intel/internal/logger"
	"hectar-intel/internal/normalize"
	"hectar-intel/internal/store"
)

// Job result statuses.
const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
	StatusSkipped = "SKIPPED"
)

// Gap between job submissions in the second bootstrap phase.
const bootstrapJobGap = 2 * time.Second

// Fetcher is the slice of the upstream client the engine needs.
type Fetcher interface {
	TradeShipmentAll(ctx context.Context, q eximpedia.ShipmentQuery, kind string) ([]map[string]interface{}, error)
}

// BudgetGate reports whether the harvest sub-budget still has room.
type BudgetGate interface {
	CanHarvest() bool
}

// Result summarizes one harvest job run.
type Result struct {
	JobName           string                `json:"job_name"`
	Status            string                `json:"status"`
	Error             string                `json:"error,omitempty"`
	RawCount          int                   `json:"raw_count"`
	UniqueCount       int                   `json:"unique_count"`
	NormalizedCount   int                   `json:"normalized_count"`
	ErrorCount        int                   `json:"error_count"`
	DateRange         string                `json:"date_range,omitempty"`
	NormalizedRecords []*normalize.Shipment `json:"-"`
}

// Engine orchestrates harvest jobs: window computation, paginated fetch with
// the date-range fallback, process-lifetime dedup, normalization, and store
// insertion.
type Engine struct {
	fetcher    Fetcher
	normalizer *normalize.Pipeline
	records    store.RecordStore
	budget     BudgetGate // may be nil

	mu   sync.Mutex
	seen map[string]bool

	// now and sleep are injectable for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewEngine creates an engine. budget may be nil to disable gating.
func NewEngine(fetcher Fetcher, records store.RecordStore, budget BudgetGate) *Engine {
	return &Engine{
		fetcher:    fetcher,
		normalizer: normalize.NewPipeline(),
		records:    records,
		budget:     budget,
		seen:       make(map[string]bool),
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

// RunJob executes a single harvest job and stores what it normalizes.
func (e *Engine) RunJob(ctx context.Context, job Job) Result {
	lookback := job.LookbackDays
	if lookback <= 0 {
		lookback = 30
	}
	end := e.now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -lookback)
	dateRange := fmt.Sprintf("%s to %s", start.Format("2006-01-02"), end.Format("2006-01-02"))

	if e.fetcher == nil {
		return Result{JobName: job.Name, Status: StatusFailed, Error: "upstream client not configured", DateRange: dateRange}
	}

	logger.Info("Harvest", fmt.Sprintf("Starting job %s (%s)", job.Name, dateRange))

	raw, err := e.fetchWithDateFallback(ctx, job, start, end)
	if err != nil {
		logger.Error("Harvest", fmt.Sprintf("Job %s failed: %v", job.Name, err))
		return Result{JobName: job.Name, Status: StatusFailed, Error: err.Error(), DateRange: dateRange}
	}

	unique := e.dedup(raw)

	normalized := make([]*normalize.Shipment, 0, len(unique))
	errCount := 0
	for _, r := range unique {
		if len(r) == 0 {
			errCount++
			continue
		}
		normalized = append(normalized, e.normalizer.Normalize(r, job.TradeType, job.TradeCountry))
	}

	if e.records != nil {
		byHct := map[string][]*normalize.Shipment{}
		for _, sh := range normalized {
			if sh.HctID != "" {
				byHct[sh.HctID] = append(byHct[sh.HctID], sh)
			}
		}
		for hctID, batch := range byHct {
			e.records.Append(hctID, batch)
		}
	}

	logger.Info("Harvest", fmt.Sprintf("Job %s: %d raw → %d unique → %d normalized (%d errors)",
		job.Name, len(raw), len(unique), len(normalized), errCount))

	return Result{
		JobName:           job.Name,
		Status:            StatusSuccess,
		RawCount:          len(raw),
		UniqueCount:       len(unique),
		NormalizedCount:   len(normalized),
		ErrorCount:        errCount,
		DateRange:         dateRange,
		NormalizedRecords: normalized,
	}
}

// dedup drops records whose DECLARATION_NO:ITEM_NO id was already seen this
// process. Records without a declaration number pass through.
func (e *Engine) dedup(raw []map[string]interface{}) []normalize.RawRecord {
	e.mu.Lock()
	defer e.mu.Unlock()

	unique := make([]normalize.RawRecord, 0, len(raw))
	for _, r := range raw {
		rr := normalize.RawRecord(r)
		decl := rr.Str("DECLARATION_NO")
		if decl == "" {
			unique = append(unique, rr)
			continue
		}
		id := decl + ":" + rr.Str("ITEM_NO")
		if e.seen[id] {
			continue
		}
		e.seen[id] = true
		unique = append(unique, rr)
	}
	return unique
}

// fetchWithDateFallback fetches all pages, and when the upstream rejects the
// window with a 400 naming its available range, clamps the request to the
// intersection and retries exactly once.
func (e *Engine) fetchWithDateFallback(ctx context.Context, job Job, start, end time.Time) ([]map[string]interface{}, error) {
	build := func(s, en time.Time) eximpedia.ShipmentQuery {
		return eximpedia.BuildShipmentQuery(eximpedia.QueryParams{
			StartDate:            s.Format("2006-01-02"),
			EndDate:              en.Format("2006-01-02"),
			TradeType:            job.TradeType,
			TradeCountry:         job.TradeCountry,
			HSCodes:              job.HSCodes,
			Products:             job.Products,
			OriginCountries:      job.OriginCountries,
			DestinationCountries: job.DestinationCountries,
		})
	}

	records, err := e.fetcher.TradeShipmentAll(ctx, build(start, end), eximpedia.CallHarvest)
	if err == nil {
		return records, nil
	}

	var apiErr *eximpedia.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 400 {
		return nil, err
	}
	availStart, availEnd, ok := eximpedia.ParseAvailableWindow(apiErr.Body)
	if !ok {
		return nil, err
	}

	validStart, _ := normalize.ParseDate(availStart)
	validEnd, _ := normalize.ParseDate(availEnd)
	clampedStart := start
	if validStart.After(clampedStart) {
		clampedStart = validStart
	}
	clampedEnd := end
	if validEnd.Before(clampedEnd) {
		clampedEnd = validEnd
	}

	logger.Info("Harvest", fmt.Sprintf("Date range adjusted to %s → %s",
		clampedStart.Format("2006-01-02"), clampedEnd.Format("2006-01-02")))
	return e.fetcher.TradeShipmentAll(ctx, build(clampedStart, clampedEnd), eximpedia.CallHarvest)
}

// RunAllJobs executes the catalog sequentially, optionally filtered to jobs
// at or above the given priority (0 = all). A failed job never stops the
// ones behind it.
func (e *Engine) RunAllJobs(ctx context.Context, priority int) []Result {
	jobs := JobsByPriority(priority)
	results := make([]Result, 0, len(jobs))
	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		results = append(results, e.runGated(ctx, job))
	}
	return results
}

// runGated consults the budget before running a job, returning a skip
// rather than a failure when the harvest sub-budget is spent.
func (e *Engine) runGated(ctx context.Context, job Job) Result {
	if e.budget != nil && !e.budget.CanHarvest() {
		logger.Warn("Harvest", fmt.Sprintf("Skipping job %s: harvest budget exhausted", job.Name))
		return Result{JobName: job.Name, Status: StatusSkipped, Error: "harvest budget exhausted"}
	}
	return e.RunJob(ctx, job)
}

// Bootstrap runs the initial two-phase harvest: phase 1 pulls the priority-1
// India lanes for the fastest path to first data, phase 2 the remaining
// priority-1 lanes with a gap between submissions. Both phases skip jobs
// once the harvest sub-budget is exhausted.
func (e *Engine) Bootstrap(ctx context.Context) []Result {
	var results []Result

	logger.Section("Bootstrap harvest")

	var phase2 []Job
	for _, job := range Jobs {
		if job.Priority != 1 {
			continue
		}
		if job.TradeCountry == "INDIA" {
			if ctx.Err() != nil {
				return results
			}
			results = append(results, e.runGated(ctx, job))
		} else {
			phase2 = append(phase2, job)
		}
	}

	for i, job := range phase2 {
		if ctx.Err() != nil {
			return results
		}
		if i > 0 {
			if err := e.sleep(ctx, bootstrapJobGap); err != nil {
				return results
			}
		}
		results = append(results, e.runGated(ctx, job))
	}

	loaded := 0
	for _, r := range results {
		loaded += r.NormalizedCount
	}
	logger.Stats("jobs", len(results))
	logger.Stats("records", loaded)
	return results
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
