package refdata

import "strings"

// FreightRate is one ocean freight reference entry in USD per metric tonne.
type FreightRate struct {
	RouteID         string  `json:"route_id"`
	OriginPort      string  `json:"origin_port"`
	DestinationPort string  `json:"destination_port"`
	VesselClass     string  `json:"vessel_class"`
	RatePerMT       float64 `json:"rate_per_mt"`
}

// FreightRates lists the known bulk corridors. Ordered; lookup takes the
// first match.
var FreightRates = []FreightRate{
	{RouteID: "ABIDJAN-TUTICORIN", OriginPort: "ABIDJAN", DestinationPort: "TUTICORIN", VesselClass: "HANDYSIZE", RatePerMT: 42.50},
	{RouteID: "ABIDJAN-MANGALORE", OriginPort: "ABIDJAN", DestinationPort: "MANGALORE", VesselClass: "HANDYSIZE", RatePerMT: 44.00},
	{RouteID: "TEMA-TUTICORIN", OriginPort: "TEMA", DestinationPort: "TUTICORIN", VesselClass: "HANDYSIZE", RatePerMT: 40.00},
	{RouteID: "LAGOS-TUTICORIN", OriginPort: "LAGOS", DestinationPort: "TUTICORIN", VesselClass: "HANDYSIZE", RatePerMT: 45.00},
	{RouteID: "DAR-TUTICORIN", OriginPort: "DAR ES SALAAM", DestinationPort: "TUTICORIN", VesselClass: "HANDYSIZE", RatePerMT: 35.00},
	{RouteID: "ABIDJAN-HOCHIMINH", OriginPort: "ABIDJAN", DestinationPort: "HO CHI MINH", VesselClass: "HANDYSIZE", RatePerMT: 55.00},
	{RouteID: "TEMA-HOCHIMINH", OriginPort: "TEMA", DestinationPort: "HO CHI MINH", VesselClass: "HANDYSIZE", RatePerMT: 53.00},
	{RouteID: "DJIBOUTI-KANDLA", OriginPort: "DJIBOUTI", DestinationPort: "KANDLA", VesselClass: "HANDYSIZE", RatePerMT: 28.00},
	{RouteID: "LAGOS-TIANJIN", OriginPort: "LAGOS", DestinationPort: "TIANJIN", VesselClass: "HANDYSIZE", RatePerMT: 60.00},
	{RouteID: "LAGOS-QINGDAO", OriginPort: "LAGOS", DestinationPort: "QINGDAO", VesselClass: "HANDYSIZE", RatePerMT: 58.00},
	{RouteID: "KAKINADA-LAGOS", OriginPort: "KAKINADA", DestinationPort: "LAGOS", VesselClass: "SUPRAMAX", RatePerMT: 48.00},
	{RouteID: "KANDLA-LAGOS", OriginPort: "KANDLA", DestinationPort: "LAGOS", VesselClass: "SUPRAMAX", RatePerMT: 46.00},
	{RouteID: "KAKINADA-TEMA", OriginPort: "KAKINADA", DestinationPort: "TEMA", VesselClass: "SUPRAMAX", RatePerMT: 47.00},
}

// LookupFreight finds the USD/MT rate for a port pair. Port names from customs
// records are messy ("TUTICORIN SEA", "NHAVA SHEVA/ABIDJAN"), so matching is
// by substring in both directions. Returns (0, false) when no route is known.
func LookupFreight(originPort, destPort string) (float64, bool) {
	if originPort == "" || destPort == "" {
		return 0, false
	}
	o := strings.ToUpper(strings.TrimSpace(originPort))
	d := strings.ToUpper(strings.TrimSpace(destPort))
	for _, e := range FreightRates {
		if strings.Contains(o, e.OriginPort) && strings.Contains(d, e.DestinationPort) {
			return e.RatePerMT, true
		}
		if strings.Contains(e.OriginPort, o) && strings.Contains(e.DestinationPort, d) {
			return e.RatePerMT, true
		}
	}
	return 0, false
}

// Marine insurance: base cargo rate plus a war-risk loading for designated
// high-risk zones.
const (
	InsuranceBaseRate    = 0.0015
	WarRiskGulfOfGuinea  = 0.0025
	WarRiskRedSea        = 0.005
	DefaultPortChargeUSD = 4.0
)

// HighRiskPorts designates the war-risk zones. The Gulf-of-Guinea list covers
// the Lagos–Cotonou piracy zone.
var HighRiskPorts = map[string][]string{
	"gulf_of_guinea": {"LAGOS", "APAPA", "TEMA", "LOME", "COTONOU"},
	"red_sea":        {"ADEN", "HODEIDAH", "DJIBOUTI", "PORT SUDAN"},
}

// WarRiskLoading returns the war-risk premium rate for a voyage touching the
// given ports, or 0 when neither port is in a designated zone.
func WarRiskLoading(originPort, destPort string) float64 {
	for _, port := range []string{originPort, destPort} {
		p := strings.ToUpper(port)
		for _, risk := range HighRiskPorts["red_sea"] {
			if risk != "" && strings.Contains(p, risk) {
				return WarRiskRedSea
			}
		}
		for _, risk := range HighRiskPorts["gulf_of_guinea"] {
			if risk != "" && strings.Contains(p, risk) {
				return WarRiskGulfOfGuinea
			}
		}
	}
	return 0
}

// CalcInsurance computes the insurance cost in USD for a cargo value.
func CalcInsurance(cargoValueUSD float64, originPort, destPort string) float64 {
	return cargoValueUSD * (InsuranceBaseRate + WarRiskLoading(originPort, destPort))
}

// PortCharges maps ports to handling charges in USD per MT.
var PortCharges = map[string]float64{
	"TUTICORIN":     4.70,
	"MANGALORE":     4.20,
	"KOCHI":         4.50,
	"KANDLA":        3.80,
	"MUMBAI":        5.20,
	"CHENNAI":       4.80,
	"KAKINADA":      3.50,
	"KRISHNAPATNAM": 3.80,
	"HO CHI MINH":   5.00,
	"HAI PHONG":     4.50,
	"LAGOS":         8.50,
	"APAPA":         8.50,
	"TEMA":          6.00,
	"ABIDJAN":       5.50,
	"DAR ES SALAAM": 6.50,
	"DJIBOUTI":      7.00,
	"TIANJIN":       4.00,
	"QINGDAO":       3.80,
	"SHANGHAI":      3.50,
}

// LookupPortCharges returns handling charges for a port in USD/MT, falling
// back to a conservative default for unknown ports.
func LookupPortCharges(port string) float64 {
	if port == "" {
		return 0
	}
	p := strings.ToUpper(strings.TrimSpace(port))
	for name, charge := range PortCharges {
		if strings.Contains(p, name) || strings.Contains(name, p) {
			return charge
		}
	}
	return DefaultPortChargeUSD
}

// UnitStatus describes how a quantity was converted to metric tonnes.
type UnitStatus string

const (
	UnitOK               UnitStatus = "OK"
	UnitAssumedKG        UnitStatus = "ASSUMED_KG"
	UnitAssumedMT        UnitStatus = "ASSUMED_MT"
	UnitAssumedBagWeight UnitStatus = "ASSUMED_BAG_WEIGHT"
	UnitUnresolvable     UnitStatus = "UNRESOLVABLE"
	UnitMissing          UnitStatus = "MISSING"
)

// UnitConversions maps customs unit strings to a factor into metric tonnes.
var UnitConversions = map[string]float64{
	"KGS":       0.001,
	"KG":        0.001,
	"MTS":       1.0,
	"MT":        1.0,
	"TON":       1.0,
	"TONS":      1.0,
	"TONNE":     1.0,
	"TONNES":    1.0,
	"LONG TON":  1.01605,
	"SHORT TON": 0.907185,
	"LBS":       0.000453592,
	"QUINTAL":   0.1,
	"QTL":       0.1,
}

// Commodity-specific bag weights in MT per bag.
const (
	bagCashewMT  = 0.08 // 80 kg
	bagRiceMT    = 0.05 // 50 kg
	bagCocoaMT   = 0.06 // 60 kg
	bagDefaultMT = 0.05
)

// ConvertToMT converts a raw quantity to metric tonnes. commodityHint is the
// HCT commodity name, used to pick bag weights. Returns the converted
// quantity (0 when unresolved) and a status.
func ConvertToMT(quantity float64, unit, commodityHint string) (float64, UnitStatus) {
	if quantity <= 0 {
		return 0, UnitMissing
	}

	if strings.TrimSpace(unit) == "" {
		// Magnitude heuristic: bulk shipments recorded without a unit are
		// almost always KG above 5000 and MT below 200.
		switch {
		case quantity > 5000:
			return quantity * 0.001, UnitAssumedKG
		case quantity < 200:
			return quantity, UnitAssumedMT
		default:
			return 0, UnitUnresolvable
		}
	}

	u := strings.ToUpper(strings.TrimSpace(unit))

	if factor, ok := UnitConversions[u]; ok {
		return quantity * factor, UnitOK
	}

	if u == "BAGS" || u == "BAG" {
		hint := strings.ToLower(commodityHint)
		switch {
		case strings.Contains(hint, "cashew"):
			return quantity * bagCashewMT, UnitOK
		case strings.Contains(hint, "rice"):
			return quantity * bagRiceMT, UnitOK
		case strings.Contains(hint, "cocoa"):
			return quantity * bagCocoaMT, UnitOK
		}
		return quantity * bagDefaultMT, UnitAssumedBagWeight
	}

	return 0, UnitUnresolvable
}

// Incoterm is a declared trade basis.
type Incoterm string

const (
	IncotermFOB Incoterm = "FOB"
	IncotermCIF Incoterm = "CIF"
)

type incotermKey struct {
	TradeType    string
	TradeCountry string
}

// incotermMap records the customs-declared valuation basis per trade lane.
var incotermMap = map[incotermKey]Incoterm{
	{"EXPORT", "INDIA"}:       IncotermFOB,
	{"IMPORT", "INDIA"}:       IncotermCIF,
	{"EXPORT", "BRAZIL"}:      IncotermFOB,
	{"IMPORT", "BANGLADESH"}:  IncotermCIF,
	{"IMPORT", "VIETNAM"}:     IncotermCIF,
	{"EXPORT", "VIETNAM"}:     IncotermFOB,
	{"IMPORT", "NIGERIA"}:     IncotermCIF,
	{"EXPORT", "NIGERIA"}:     IncotermFOB,
	{"EXPORT", "ETHIOPIA"}:    IncotermFOB,
	{"EXPORT", "IVORY COAST"}: IncotermFOB,
	{"EXPORT", "GHANA"}:       IncotermFOB,
	{"EXPORT", "TANZANIA"}:    IncotermFOB,
	{"IMPORT", "USA"}:         IncotermCIF,
	{"IMPORT", "INDONESIA"}:   IncotermCIF,
	{"EXPORT", "INDONESIA"}:   IncotermFOB,
	{"IMPORT", "PAKISTAN"}:    IncotermCIF,
	{"EXPORT", "PAKISTAN"}:    IncotermFOB,
	{"IMPORT", "SRI LANKA"}:   IncotermCIF,
	{"IMPORT", "KENYA"}:       IncotermCIF,
	{"IMPORT", "MEXICO"}:      IncotermCIF,
	{"EXPORT", "MEXICO"}:      IncotermFOB,
	{"IMPORT", "ARGENTINA"}:   IncotermCIF,
	{"EXPORT", "ARGENTINA"}:   IncotermFOB,
	{"IMPORT", "COLOMBIA"}:    IncotermCIF,
	{"EXPORT", "COLOMBIA"}:    IncotermFOB,
	{"IMPORT", "CHILE"}:       IncotermCIF,
	{"EXPORT", "CHILE"}:       IncotermFOB,
	{"IMPORT", "PHILIPPINES"}: IncotermCIF,
	{"EXPORT", "PERU"}:        IncotermFOB,
	{"IMPORT", "TURKEY"}:      IncotermCIF,
	{"EXPORT", "TURKEY"}:      IncotermFOB,
	{"IMPORT", "KAZAKHSTAN"}:  IncotermCIF,
	{"EXPORT", "KAZAKHSTAN"}:  IncotermFOB,
	{"IMPORT", "URUGUAY"}:     IncotermCIF,
	{"EXPORT", "URUGUAY"}:     IncotermFOB,
	{"IMPORT", "CAMEROON"}:    IncotermCIF,
	{"EXPORT", "CAMEROON"}:    IncotermFOB,
}

// InferIncoterm determines the declared valuation basis for a trade lane.
// Unknown lanes default to FOB for exports and CIF for imports.
func InferIncoterm(tradeType, tradeCountry string) Incoterm {
	key := incotermKey{strings.ToUpper(tradeType), strings.ToUpper(tradeCountry)}
	if term, ok := incotermMap[key]; ok {
		return term
	}
	if key.TradeType == "EXPORT" {
		return IncotermFOB
	}
	return IncotermCIF
}
