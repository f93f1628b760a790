package intel

import (
	"sort"
	"strings"
	"time"

	"hectar-intel/internal/normalize"
	"hectar-intel/internal/refdata"
)

// Minimum spread between two origins before a basis play is worth flagging.
const arbMinSpreadPct = 3.0

// FABResult is the freight-adjusted basis for one corridor:
// FOB(origin) + freight + insurance + port charges = implied CIF(destination).
type FABResult struct {
	Origin              string   `json:"origin"`
	OriginPort          string   `json:"origin_port"`
	DestPort            string   `json:"dest_port"`
	FOBUSDPerMT         *float64 `json:"fob_usd_per_mt"`
	FreightUSDPerMT     *float64 `json:"freight_usd_per_mt"`
	InsuranceUSDPerMT   *float64 `json:"insurance_usd_per_mt"`
	PortChargesUSDPerMT *float64 `json:"port_charges_usd_per_mt"`
	ImpliedCIFUSDPerMT  *float64 `json:"implied_cif_usd_per_mt"`
	IPCConfidence       string   `json:"ipc_confidence"`
	IPCNRecords         int      `json:"ipc_n_records,omitempty"`
	Note                string   `json:"note,omitempty"`
}

// OriginSpec names one candidate origin for a comparison.
type OriginSpec struct {
	Country string `json:"country"`
	Port    string `json:"port"`
}

// OriginComparison ranks origins by delivered cost to a common destination.
type OriginComparison struct {
	DestinationPort  string      `json:"destination_port"`
	Comparisons      []FABResult `json:"comparisons"`
	CheapestOrigin   string      `json:"cheapest_origin,omitempty"`
	OriginSpreadUSD  *float64    `json:"origin_spread_usd"`
	NOriginsWithData int         `json:"n_origins_with_data"`
}

// ArbOpportunity is a pair of origins whose FOB spread exceeds the threshold.
type ArbOpportunity struct {
	CheaperOrigin   string  `json:"cheaper_origin"`
	ExpensiveOrigin string  `json:"expensive_origin"`
	CheaperFOB      float64 `json:"cheaper_fob"`
	ExpensiveFOB    float64 `json:"expensive_fob"`
	SpreadUSD       float64 `json:"spread_usd"`
	SpreadPct       float64 `json:"spread_pct"`
	Confidence      string  `json:"confidence"`
}

// Corridor answers the trader's routing questions: which origin is cheapest
// right now, what the delivered cost to a destination is, and whether a
// basis play exists between corridors.
type Corridor struct {
	ipc *PriceCurve
}

// NewCorridor returns an analyzer backed by the given price curve.
func NewCorridor(ipc *PriceCurve) *Corridor {
	if ipc == nil {
		ipc = NewPriceCurve()
	}
	return &Corridor{ipc: ipc}
}

func filterByOrigin(records []*normalize.Shipment, originCountry string) []*normalize.Shipment {
	want := strings.ToUpper(strings.TrimSpace(originCountry))
	var out []*normalize.Shipment
	for _, r := range records {
		if strings.ToUpper(r.OriginCountry) == want {
			out = append(out, r)
		}
	}
	return out
}

// ComputeFAB derives the freight-adjusted basis for a corridor at target.
func (c *Corridor) ComputeFAB(records []*normalize.Shipment, originCountry, originPort, destPort string, target time.Time) FABResult {
	ipc := c.ipc.Compute(filterByOrigin(records, originCountry), target)

	result := FABResult{
		Origin:        originCountry,
		OriginPort:    originPort,
		DestPort:      destPort,
		IPCConfidence: ipc.Confidence,
	}
	if ipc.PriceUSDPerMT == nil {
		result.Note = "Insufficient price data"
		return result
	}

	fob := *ipc.PriceUSDPerMT
	freight, _ := refdata.LookupFreight(originPort, destPort)
	insurance := fob * (refdata.InsuranceBaseRate + refdata.WarRiskLoading(originPort, destPort))
	portCharges := refdata.LookupPortCharges(destPort)

	impliedCIF := fob + freight + insurance + portCharges

	result.FOBUSDPerMT = fptr(round2(fob))
	result.FreightUSDPerMT = fptr(round2(freight))
	result.InsuranceUSDPerMT = fptr(round2(insurance))
	result.PortChargesUSDPerMT = fptr(round2(portCharges))
	result.ImpliedCIFUSDPerMT = fptr(round2(impliedCIF))
	result.IPCNRecords = ipc.NRecords
	return result
}

// CompareOrigins runs the FAB for each origin against a common destination
// and ranks them by implied CIF, cheapest first.
func (c *Corridor) CompareOrigins(records []*normalize.Shipment, origins []OriginSpec, destPort string, target time.Time) OriginComparison {
	comparisons := make([]FABResult, 0, len(origins))
	for _, o := range origins {
		comparisons = append(comparisons, c.ComputeFAB(records, o.Country, o.Port, destPort, target))
	}

	var valid []FABResult
	for _, cmp := range comparisons {
		if cmp.ImpliedCIFUSDPerMT != nil {
			valid = append(valid, cmp)
		}
	}
	sort.Slice(valid, func(i, j int) bool {
		return *valid[i].ImpliedCIFUSDPerMT < *valid[j].ImpliedCIFUSDPerMT
	})

	out := OriginComparison{
		DestinationPort:  destPort,
		Comparisons:      comparisons,
		NOriginsWithData: len(valid),
	}
	if len(valid) > 0 {
		cheapest := valid[0]
		mostExpensive := valid[len(valid)-1]
		out.CheapestOrigin = cheapest.Origin
		out.OriginSpreadUSD = fptr(round2(*mostExpensive.ImpliedCIFUSDPerMT - *cheapest.ImpliedCIFUSDPerMT))
	}
	return out
}

// FindArbitrage scans all origin pairs with a known IPC and emits those whose
// FOB spread exceeds the threshold, widest first. A pair's confidence is the
// weaker of its two IPC confidences.
func (c *Corridor) FindArbitrage(records []*normalize.Shipment, origins []string, target time.Time) []ArbOpportunity {
	type priced struct {
		origin     string
		fob        float64
		confidence string
	}
	var known []priced
	seen := map[string]bool{}
	for _, origin := range origins {
		if origin == "" || seen[origin] {
			continue
		}
		seen[origin] = true
		ipc := c.ipc.Compute(filterByOrigin(records, origin), target)
		if ipc.PriceUSDPerMT == nil {
			continue
		}
		known = append(known, priced{origin: origin, fob: *ipc.PriceUSDPerMT, confidence: ipc.Confidence})
	}

	var arbs []ArbOpportunity
	for i := 0; i < len(known); i++ {
		for j := i + 1; j < len(known); j++ {
			a, b := known[i], known[j]
			lo, hi := a, b
			if b.fob < a.fob {
				lo, hi = b, a
			}
			spread := hi.fob - lo.fob
			if lo.fob <= 0 {
				continue
			}
			spreadPct := spread / lo.fob * 100
			if spreadPct <= arbMinSpreadPct {
				continue
			}
			confidence := a.confidence
			if confidenceRank[b.confidence] < confidenceRank[confidence] {
				confidence = b.confidence
			}
			arbs = append(arbs, ArbOpportunity{
				CheaperOrigin:   lo.origin,
				ExpensiveOrigin: hi.origin,
				CheaperFOB:      round2(lo.fob),
				ExpensiveFOB:    round2(hi.fob),
				SpreadUSD:       round2(spread),
				SpreadPct:       round1(spreadPct),
				Confidence:      confidence,
			})
		}
	}

	sort.Slice(arbs, func(i, j int) bool { return arbs[i].SpreadPct > arbs[j].SpreadPct })
	return arbs
}
