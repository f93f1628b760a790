package normalize

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"hectar-intel/internal/refdata"
)

func fixedPipeline() *Pipeline {
	return &Pipeline{Now: func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	}}
}

// --- FOB pass-through (Indian export) ---

func TestNormalize_FOBPassThrough(t *testing.T) {
	raw := RawRecord{
		"FOB_USD":  1500000.0,
		"QUANTITY": 1000.0,
		"UNIT":     "MTS",
		"HS_CODE":  8013100.0, // numeric upstream, leading zero stripped
		"EXP_DATE": "2025-03-10T00:00:00Z",
	}
	s := fixedPipeline().Normalize(raw, "EXPORT", "INDIA")

	if s.HctID != "HCT-0801-RCN-INSHELL" {
		t.Errorf("HctID = %q, want HCT-0801-RCN-INSHELL", s.HctID)
	}
	if s.HSCode != "08013100" {
		t.Errorf("HSCode = %q, want 08013100", s.HSCode)
	}
	if s.QuantityMT == nil || *s.QuantityMT != 1000 {
		t.Errorf("QuantityMT = %v, want 1000", s.QuantityMT)
	}
	if s.FOBUSDTotal == nil || *s.FOBUSDTotal != 1500000 {
		t.Errorf("FOBUSDTotal = %v, want 1500000", s.FOBUSDTotal)
	}
	if s.FOBUSDPerMT == nil || math.Abs(*s.FOBUSDPerMT-1500) > 1e-6 {
		t.Errorf("FOBUSDPerMT = %v, want 1500", s.FOBUSDPerMT)
	}
	if s.PriceStatus != PriceNormal {
		t.Errorf("PriceStatus = %v, want NORMAL", s.PriceStatus)
	}
	if s.PriceSource != SourceFOBUSD {
		t.Errorf("PriceSource = %q, want FOB_USD", s.PriceSource)
	}
	if s.DeclaredIncoterm != refdata.IncotermFOB {
		t.Errorf("DeclaredIncoterm = %v, want FOB", s.DeclaredIncoterm)
	}
	if s.TradeDate != "2025-03-10" {
		t.Errorf("TradeDate = %q, want 2025-03-10", s.TradeDate)
	}
}

// --- CIF derivation (Indian import from Abidjan) ---

func TestNormalize_CIFDerivation(t *testing.T) {
	raw := RawRecord{
		"TOTAL_ASSESS_USD": 1600000.0,
		"QUANTITY":         1000.0,
		"UNIT":             "MTS",
		"HS_CODE":          "08013100",
		"ORIGIN_COUNTRY":   "IVORY COAST",
		"PORT_OF_SHIPMENT": "ABIDJAN",
		"INDIAN_PORT":      "TUTICORIN",
		"IMP_DATE":         "2025-04-02",
	}
	s := fixedPipeline().Normalize(raw, "IMPORT", "INDIA")

	// Freight 42.50/MT × 1000 = 42500; insurance 1.6M × 0.0015 = 2400;
	// port charges 4.70/MT × 1000 = 4700. FOB = 1600000 − 49600 = 1550400.
	if s.FOBUSDTotal == nil || math.Abs(*s.FOBUSDTotal-1550400) > 1e-6 {
		t.Errorf("FOBUSDTotal = %v, want 1550400", s.FOBUSDTotal)
	}
	if s.FOBUSDPerMT == nil || math.Abs(*s.FOBUSDPerMT-1550.40) > 1e-6 {
		t.Errorf("FOBUSDPerMT = %v, want 1550.40", s.FOBUSDPerMT)
	}
	if s.PriceSource != SourceDerivedFromCIF {
		t.Errorf("PriceSource = %q, want derived_from_cif", s.PriceSource)
	}
	if s.DeclaredIncoterm != refdata.IncotermCIF {
		t.Errorf("DeclaredIncoterm = %v, want CIF", s.DeclaredIncoterm)
	}
	if s.OriginPort != "ABIDJAN" || s.DestinationPort != "TUTICORIN" {
		t.Errorf("ports = %q → %q", s.OriginPort, s.DestinationPort)
	}
	if s.FreightDeducted == nil || *s.FreightDeducted != 42.50 {
		t.Errorf("FreightDeducted = %v, want 42.50", s.FreightDeducted)
	}
	if s.InsuranceDeducted == nil || math.Abs(*s.InsuranceDeducted-2400) > 1e-9 {
		t.Errorf("InsuranceDeducted = %v, want 2400", s.InsuranceDeducted)
	}
	if s.PortChargesDeducted == nil || *s.PortChargesDeducted != 4.70 {
		t.Errorf("PortChargesDeducted = %v, want 4.70", s.PortChargesDeducted)
	}
	if s.TradeDate != "2025-04-02" {
		t.Errorf("TradeDate = %q, want 2025-04-02", s.TradeDate)
	}
}

// --- Price ladder ---

func TestExtractPrice_LadderOrder(t *testing.T) {
	cases := []struct {
		name   string
		raw    RawRecord
		want   float64
		source string
	}{
		{"fob_usd_wins", RawRecord{"FOB_USD": 100.0, "TOTAL_ASSESS_USD": 200.0}, 100, SourceFOBUSD},
		{"total_assess", RawRecord{"TOTAL_ASSESS_USD": 200.0}, 200, SourceTotalAssessUSD},
		{"std_unit_price", RawRecord{"STD_UNIT_PRICE_USD": 2.0, "STD_QUANTITY": 50.0}, 100, SourceStdUnitPriceUSD},
		{"unit_price", RawRecord{"UNIT_PRICE_USD": 3.0, "QUANTITY": 10.0}, 30, SourceUnitPriceUSD},
		{"fob_inr", RawRecord{"FOB_INR": 8300.0, "USD_EXCHANGE_RATE": 83.0}, 100, SourceFOBINR},
		{"item_rate", RawRecord{"ITEM_RATE_INR": 83.0, "QUANTITY": 10.0, "USD_EXCHANGE_RATE": 83.0}, 10, SourceItemRateINR},
		{"assessable_inr", RawRecord{"TOTAL_ASSESSABLE_VALUE_INR": 830.0, "USD_EXCHANGE_RATE": 83.0}, 10, SourceTotalAssessINR},
	}
	for _, tc := range cases {
		got, ok, source := extractPrice(tc.raw)
		if !ok || math.Abs(got-tc.want) > 1e-9 || source != tc.source {
			t.Errorf("%s: extractPrice = (%v, %v, %q), want (%v, true, %q)",
				tc.name, got, ok, source, tc.want, tc.source)
		}
	}
}

func TestExtractPrice_Missing(t *testing.T) {
	_, ok, source := extractPrice(RawRecord{"FOB_USD": 0.0, "SOMETHING": "else"})
	if ok || source != SourceMissing {
		t.Errorf("extractPrice = (%v, %q), want (false, MISSING)", ok, source)
	}
	// Numeric strings are accepted.
	got, ok, _ := extractPrice(RawRecord{"FOB_USD": "1,250.50"})
	if !ok || math.Abs(got-1250.50) > 1e-9 {
		t.Errorf("extractPrice(string) = %v, %v", got, ok)
	}
}

// --- Boundaries ---

func TestNormalize_MissingUnitAssumedKG(t *testing.T) {
	raw := RawRecord{
		"FOB_USD":  20000.0,
		"QUANTITY": 10000.0,
		"HS_CODE":  "12074000",
	}
	s := fixedPipeline().Normalize(raw, "EXPORT", "INDIA")
	if s.UnitStatus != refdata.UnitAssumedKG {
		t.Errorf("UnitStatus = %v, want ASSUMED_KG", s.UnitStatus)
	}
	if s.QuantityMT == nil || math.Abs(*s.QuantityMT-10.0) > 1e-9 {
		t.Errorf("QuantityMT = %v, want 10.0", s.QuantityMT)
	}
}

func TestNormalize_UnresolvableUnitLeavesQuantityNil(t *testing.T) {
	raw := RawRecord{
		"FOB_USD":  1000.0,
		"QUANTITY": 10.0,
		"UNIT":     "NOS",
		"HS_CODE":  "08013100",
	}
	s := fixedPipeline().Normalize(raw, "EXPORT", "INDIA")
	if s.UnitStatus != refdata.UnitUnresolvable {
		t.Errorf("UnitStatus = %v, want UNRESOLVABLE", s.UnitStatus)
	}
	if s.QuantityMT != nil {
		t.Errorf("QuantityMT = %v, want nil", *s.QuantityMT)
	}
	if s.FOBUSDPerMT != nil {
		t.Errorf("FOBUSDPerMT = %v, want nil", *s.FOBUSDPerMT)
	}
}

func TestNormalize_StdQuantityFallback(t *testing.T) {
	raw := RawRecord{
		"FOB_USD":      5000.0,
		"QUANTITY":     10.0,
		"UNIT":         "NOS", // unresolvable
		"STD_QUANTITY": 20.0,
		"STD_UNIT":     "MTS",
		"HS_CODE":      "08013100",
	}
	s := fixedPipeline().Normalize(raw, "EXPORT", "INDIA")
	if s.UnitStatus != refdata.UnitOK {
		t.Errorf("UnitStatus = %v, want OK after STD fallback", s.UnitStatus)
	}
	if s.QuantityMT == nil || *s.QuantityMT != 20 {
		t.Errorf("QuantityMT = %v, want 20", s.QuantityMT)
	}
}

func TestNormalize_PriceStatusFlags(t *testing.T) {
	// 500 USD for 100 MT = 5 USD/MT: suspiciously low.
	low := fixedPipeline().Normalize(RawRecord{
		"FOB_USD": 500.0, "QUANTITY": 100.0, "UNIT": "MTS", "HS_CODE": "08013100",
	}, "EXPORT", "INDIA")
	if low.PriceStatus != PriceSuspectLow {
		t.Errorf("PriceStatus = %v, want SUSPECT_LOW", low.PriceStatus)
	}

	// 60M USD for 1000 MT = 60000 USD/MT: suspiciously high.
	high := fixedPipeline().Normalize(RawRecord{
		"FOB_USD": 60000000.0, "QUANTITY": 1000.0, "UNIT": "MTS", "HS_CODE": "08013100",
	}, "EXPORT", "INDIA")
	if high.PriceStatus != PriceSuspectHigh {
		t.Errorf("PriceStatus = %v, want SUSPECT_HIGH", high.PriceStatus)
	}

	missing := fixedPipeline().Normalize(RawRecord{
		"QUANTITY": 100.0, "UNIT": "MTS", "HS_CODE": "08013100",
	}, "EXPORT", "INDIA")
	if missing.PriceStatus != PriceMissing {
		t.Errorf("PriceStatus = %v, want MISSING", missing.PriceStatus)
	}
	if missing.PriceSource != SourceMissing {
		t.Errorf("PriceSource = %q, want MISSING", missing.PriceSource)
	}
}

// --- Invariants ---

func TestNormalize_PerMTInvariant(t *testing.T) {
	raws := []RawRecord{
		{"FOB_USD": 1500000.0, "QUANTITY": 1000.0, "UNIT": "MTS", "HS_CODE": "08013100"},
		{"TOTAL_ASSESS_USD": 99000.0, "QUANTITY": 66.0, "UNIT": "MTS", "HS_CODE": "12074000",
			"PORT_OF_SHIPMENT": "LAGOS", "INDIAN_PORT": "MUMBAI"},
		{"UNIT_PRICE_USD": 1.25, "QUANTITY": 40000.0, "UNIT": "KGS", "HS_CODE": "10063020"},
	}
	p := fixedPipeline()
	for i, raw := range raws {
		for _, tt := range []string{"IMPORT", "EXPORT"} {
			s := p.Normalize(raw, tt, "INDIA")
			if s.FOBUSDTotal == nil || s.QuantityMT == nil || *s.QuantityMT <= 0 {
				continue
			}
			want := *s.FOBUSDTotal / *s.QuantityMT
			if math.Abs(*s.FOBUSDPerMT-want) > 1e-6 {
				t.Errorf("record %d %s: per_mt = %v, want %v", i, tt, *s.FOBUSDPerMT, want)
			}
		}
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	raw := RawRecord{
		"TOTAL_ASSESS_USD": 1600000.0,
		"QUANTITY":         1000.0,
		"UNIT":             "MTS",
		"HS_CODE":          "08013100",
		"ORIGIN_COUNTRY":   "IVORY COAST",
		"PORT_OF_SHIPMENT": "ABIDJAN",
		"INDIAN_PORT":      "TUTICORIN",
		"IMP_DATE":         "2025-04-02",
		"PRODUCT":          "RAW CASHEW NUTS OUTTURN 47 LBS IVORY COAST ORIGIN",
		"DECLARATION_NO":   "D-991",
		"ITEM_NO":          "3",
	}
	p := fixedPipeline()
	a := p.Normalize(raw, "IMPORT", "INDIA")
	b := p.Normalize(raw, "IMPORT", "INDIA")

	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	if string(ja) != string(jb) {
		t.Errorf("normalizer not deterministic:\n%s\n%s", ja, jb)
	}
	if a.RecordID != "D-991:3" {
		t.Errorf("RecordID = %q, want D-991:3", a.RecordID)
	}
}

// --- Quality parsing through the pipeline ---

func TestNormalize_QualityDispatch(t *testing.T) {
	raw := RawRecord{
		"FOB_USD":  1500000.0,
		"QUANTITY": 1000.0,
		"UNIT":     "MTS",
		"HS_CODE":  "08013100",
		"PRODUCT":  "RAW CASHEW NUTS IN SHELL OUTTURN: 48 LBS, 190 NUTS/KG, IVORY COAST",
	}
	s := fixedPipeline().Normalize(raw, "EXPORT", "INDIA")
	q := s.QualityEstimate
	if q.Grade != "Premium" {
		t.Errorf("Grade = %q, want Premium", q.Grade)
	}
	// Three signals: outturn, nut count, origin claim → 0.3 + 3×0.2 = 0.9.
	if math.Abs(q.Confidence-0.9) > 1e-9 {
		t.Errorf("Confidence = %v, want 0.9", q.Confidence)
	}
	if len(q.SignalsUsed) != 3 {
		t.Errorf("SignalsUsed = %v, want 3 signals", q.SignalsUsed)
	}
}
