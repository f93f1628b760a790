package intel

import (
	"math"
	"sort"
	"time"

	"hectar-intel/internal/normalize"
)

// Confidence tiers for computed prices.
const (
	ConfidenceHigh   = "HIGH"
	ConfidenceMedium = "MEDIUM"
	ConfidenceLow    = "LOW"
	ConfidenceNone   = "NONE"
)

// confidenceRank orders confidence tiers for comparisons (NONE lowest).
var confidenceRank = map[string]int{
	ConfidenceNone:   0,
	ConfidenceLow:    1,
	ConfidenceMedium: 2,
	ConfidenceHigh:   3,
}

// IPCResult is one implied-price-curve point.
type IPCResult struct {
	PriceUSDPerMT *float64 `json:"price_usd_per_mt"`
	Confidence    string   `json:"confidence"`
	NRecords      int      `json:"n_records"`
	VolumeMT      float64  `json:"volume_mt"`
	PriceIQR      *float64 `json:"price_iqr"`
	PriceMin      *float64 `json:"price_min"`
	PriceMax      *float64 `json:"price_max"`
	PriceMean     *float64 `json:"price_mean"`
	WindowStart   string   `json:"window_start,omitempty"`
	WindowEnd     string   `json:"window_end,omitempty"`
	Date          string   `json:"date,omitempty"` // set by time series
}

// PriceCurve computes volume-weighted median prices from shipment records.
// For commodities with no published benchmark this implied curve is the
// price discovery mechanism.
type PriceCurve struct {
	WindowDays       int
	MinRecordsHigh   int
	MinRecordsMedium int
	MaxDispersion    float64
}

// NewPriceCurve returns a curve with the standard window and confidence
// thresholds.
func NewPriceCurve() *PriceCurve {
	return &PriceCurve{
		WindowDays:       5,
		MinRecordsHigh:   20,
		MinRecordsMedium: 5,
		MaxDispersion:    0.15,
	}
}

// Compute calculates the IPC for records on target. A zero target uses the
// latest trade date present. Only records with NORMAL price status and a
// positive per-MT price inside the rolling window participate; each is
// weighted by tonnage (1.0 when unknown).
func (c *PriceCurve) Compute(records []*normalize.Shipment, target time.Time) IPCResult {
	if len(records) == 0 {
		return emptyIPC("", "")
	}

	if target.IsZero() {
		for _, r := range records {
			if d, ok := r.Date(); ok && d.After(target) {
				target = d
			}
		}
		if target.IsZero() {
			target = time.Now().UTC().Truncate(24 * time.Hour)
		}
	}

	windowStart := target.AddDate(0, 0, -c.WindowDays)
	windowEnd := target

	type weighted struct {
		price  float64
		weight float64
	}
	var window []weighted
	for _, r := range records {
		d, ok := r.Date()
		if !ok || d.Before(windowStart) || d.After(windowEnd) {
			continue
		}
		if r.PriceStatus != normalize.PriceNormal || r.FOBUSDPerMT == nil || *r.FOBUSDPerMT <= 0 {
			continue
		}
		w := 1.0
		if r.QuantityMT != nil && *r.QuantityMT > 0 {
			w = *r.QuantityMT
		}
		window = append(window, weighted{price: *r.FOBUSDPerMT, weight: w})
	}

	ws := windowStart.Format("2006-01-02")
	we := windowEnd.Format("2006-01-02")
	if len(window) == 0 {
		return emptyIPC(ws, we)
	}

	sort.Slice(window, func(i, j int) bool { return window[i].price < window[j].price })

	totalWeight := 0.0
	prices := make([]float64, len(window))
	for i, w := range window {
		totalWeight += w.weight
		prices[i] = w.price
	}

	// Weighted median: walk cumulatively by weight until crossing half the
	// total, return that price.
	median := window[len(window)-1].price
	cumulative := 0.0
	for _, w := range window {
		cumulative += w.weight
		if cumulative >= totalWeight/2 {
			median = w.price
			break
		}
	}

	n := len(prices)
	iqr := 0.0
	if n > 1 {
		q1 := prices[max(0, n/4-1)]
		q3 := prices[min(n-1, 3*n/4)]
		iqr = q3 - q1
	}

	dispersion := 1.0
	if median > 0 {
		dispersion = iqr / median
	}
	confidence := ConfidenceLow
	switch {
	case n >= c.MinRecordsHigh && dispersion < c.MaxDispersion:
		confidence = ConfidenceHigh
	case n >= c.MinRecordsMedium:
		confidence = ConfidenceMedium
	}

	mean := 0.0
	for _, p := range prices {
		mean += p
	}
	mean /= float64(n)

	return IPCResult{
		PriceUSDPerMT: fptr(round2(median)),
		Confidence:    confidence,
		NRecords:      n,
		VolumeMT:      round2(totalWeight),
		PriceIQR:      fptr(round2(iqr)),
		PriceMin:      fptr(round2(prices[0])),
		PriceMax:      fptr(round2(prices[n-1])),
		PriceMean:     fptr(round2(mean)),
		WindowStart:   ws,
		WindowEnd:     we,
	}
}

// ComputeTimeSeries calculates the IPC for every day in [start, end].
func (c *PriceCurve) ComputeTimeSeries(records []*normalize.Shipment, start, end time.Time) []IPCResult {
	var series []IPCResult
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		point := c.Compute(records, d)
		point.Date = d.Format("2006-01-02")
		series = append(series, point)
	}
	return series
}

func emptyIPC(ws, we string) IPCResult {
	return IPCResult{
		Confidence:  ConfidenceNone,
		WindowStart: ws,
		WindowEnd:   we,
	}
}

func fptr(v float64) *float64 { return &v }

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
