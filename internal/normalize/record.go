package normalize

import (
	"strconv"
	"strings"
	"time"

	"hectar-intel/internal/refdata"
)

// RawRecord is an upstream shipment record: an opaque key→value mapping whose
// field names and types vary by trade type and country. Raw records are never
// trusted for semantics; they only feed the normalization pipeline.
type RawRecord map[string]interface{}

// Str returns the first non-empty string value among the given keys.
func (r RawRecord) Str(keys ...string) string {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		switch s := v.(type) {
		case string:
			if strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		case float64:
			// Numeric codes arrive as JSON numbers; render without exponent.
			return strconv.FormatFloat(s, 'f', -1, 64)
		case int:
			return strconv.Itoa(s)
		case int64:
			return strconv.FormatInt(s, 10)
		}
	}
	return ""
}

// Num returns the first parseable number among the given keys; the sign is
// not checked. Upstream mixes JSON numbers and numeric strings freely.
func (r RawRecord) Num(keys ...string) (float64, bool) {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n, true
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(n, ",", ""))
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// PriceStatus flags per-MT prices that fall outside plausible bounds.
type PriceStatus string

const (
	PriceNormal      PriceStatus = "NORMAL"
	PriceMissing     PriceStatus = "MISSING"
	PriceSuspectLow  PriceStatus = "SUSPECT_LOW"
	PriceSuspectHigh PriceStatus = "SUSPECT_HIGH"
)

// Per-MT sanity bounds for the price status flags.
const (
	suspectLowUSDPerMT  = 10.0
	suspectHighUSDPerMT = 50000.0
)

// QualityEstimate is the parsed quality profile of a shipment.
type QualityEstimate struct {
	Grade       string   `json:"grade"`
	Confidence  float64  `json:"confidence"`
	SignalsUsed []string `json:"signals_used"`
	Details     string   `json:"details"`
}

// Shipment is the canonical, immutable record every raw record is projected
// onto. All downstream analytics consume only this shape. Nullable numeric
// fields are pointers; an empty HctID means unclassified.
type Shipment struct {
	// Identifiers
	RecordID      string `json:"record_id,omitempty"`
	DeclarationNo string `json:"declaration_no,omitempty"`
	BillNo        string `json:"bill_no,omitempty"` // opaque, uniqueness not guaranteed

	// Temporal
	TradeDate    string `json:"trade_date,omitempty"` // YYYY-MM-DD
	TradeType    string `json:"trade_type"`
	TradeCountry string `json:"trade_country"`

	// Parties
	Consignee string `json:"consignee,omitempty"`
	Consignor string `json:"consignor,omitempty"`

	// Location
	OriginCountry      string `json:"origin_country,omitempty"`
	OriginPort         string `json:"origin_port,omitempty"`
	DestinationCountry string `json:"destination_country,omitempty"`
	DestinationPort    string `json:"destination_port,omitempty"`

	// Commodity
	HSCode             string `json:"hs_code,omitempty"`
	HSCode2            string `json:"hs_code_2,omitempty"`
	HSCode4            string `json:"hs_code_4,omitempty"`
	HctID              string `json:"hct_id,omitempty"`
	HctName            string `json:"hct_name,omitempty"`
	HctGroup           string `json:"hct_group,omitempty"`
	ProductDescription string `json:"product_description,omitempty"`

	// Quantity
	QuantityMT       *float64           `json:"quantity_mt,omitempty"`
	QuantityOriginal *float64           `json:"quantity_original,omitempty"`
	UnitOriginal     string             `json:"unit_original,omitempty"`
	UnitStatus       refdata.UnitStatus `json:"unit_status"`

	// Price
	FOBUSDTotal      *float64         `json:"fob_usd_total,omitempty"`
	FOBUSDPerMT      *float64         `json:"fob_usd_per_mt,omitempty"`
	DeclaredIncoterm refdata.Incoterm `json:"declared_incoterm"`
	PriceSource      string           `json:"price_source"`
	PriceStatus      PriceStatus      `json:"price_status"`
	CurrencyOriginal string           `json:"currency_original,omitempty"`

	// Quality
	QualityEstimate QualityEstimate `json:"quality_estimate"`

	// FOB derivation audit trail
	FreightDeducted     *float64 `json:"freight_deducted,omitempty"`
	InsuranceDeducted   *float64 `json:"insurance_deducted,omitempty"`
	PortChargesDeducted *float64 `json:"port_charges_deducted,omitempty"`

	NormalizedAt         string `json:"normalized_at,omitempty"`
	NormalizationVersion string `json:"normalization_version"`
}

// Date parses the shipment's trade date, or returns ok=false when absent or
// malformed.
func (s *Shipment) Date() (time.Time, bool) {
	return ParseDate(s.TradeDate)
}

// ParseDate parses the leading YYYY-MM-DD of a date string (timestamps like
// "2025-03-10T00:00:00Z" are truncated to their date part).
func ParseDate(v string) (time.Time, bool) {
	if len(v) < 10 {
		return time.Time{}, false
	}
	d, err := time.Parse("2006-01-02", v[:10])
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

func fptr(v float64) *float64 { return &v }
