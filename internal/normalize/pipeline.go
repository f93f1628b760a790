package normalize

import (
	"strings"
	"time"

	"hectar-intel/internal/refdata"
)

// Version stamped onto every normalized record.
const Version = "1.0"

// Price extraction sources, in ladder order, plus the post-derivation tags.
const (
	SourceFOBUSD           = "FOB_USD"
	SourceTotalAssessUSD   = "TOTAL_ASSESS_USD"
	SourceStdUnitPriceUSD  = "STD_UNIT_PRICE_x_STD_QTY"
	SourceUnitPriceUSD     = "UNIT_PRICE_x_QTY"
	SourceFOBINR           = "FOB_INR_converted"
	SourceItemRateINR      = "ITEM_RATE_INR_converted"
	SourceTotalAssessINR   = "TOTAL_ASSESSABLE_VALUE_INR_converted"
	SourceMissing          = "MISSING"
	SourceDerivedFromCIF   = "derived_from_cif"
	SourceAssumedUnknown   = "assumed_unknown_basis"
)

// Pipeline normalizes raw upstream records into canonical shipments.
// It is pure and deterministic: identical raw input and reference data yield
// an identical shipment. Now is injectable so the normalized_at stamp does
// not break that property under test.
type Pipeline struct {
	Now func() time.Time
}

// NewPipeline returns a pipeline using the wall clock.
func NewPipeline() *Pipeline {
	return &Pipeline{Now: time.Now}
}

// Normalize projects one raw record onto the canonical shipment shape.
//
// Steps:
//  1. Incoterm basis from (trade type, trade country)
//  2. USD price extraction via the priority ladder
//  3. HS code normalization
//  4. Commodity classification (HCT)
//  5. Quantity standardization to metric tonnes
//  6. Port determination
//  7. FOB USD derivation (CIF deduction when needed)
//  8. Quality parse from the product description
//  9. Price status flags
func (p *Pipeline) Normalize(raw RawRecord, tradeType, tradeCountry string) *Shipment {
	tradeType = strings.ToUpper(strings.TrimSpace(tradeType))
	tradeCountry = strings.ToUpper(strings.TrimSpace(tradeCountry))

	// Step 1: incoterm basis
	incoterm := refdata.InferIncoterm(tradeType, tradeCountry)

	// Step 2: price extraction
	priceUSD, priceOK, priceSource := extractPrice(raw)

	// Step 3: HS normalization
	hsCode := refdata.NormalizeHSCode(raw.Str("HS_CODE"))

	// Step 4: commodity classification
	var hctID, hctName, hctGroup string
	hctName = "Unclassified"
	hctGroup = "Unknown"
	if c := refdata.ClassifyByHSCode(hsCode, tradeCountry); c != nil {
		hctID = c.HctID
		hctName = c.HctName
		hctGroup = c.HctGroup
	}

	// Step 5: quantity standardization (STD_* pair as the one fallback)
	qtyRaw, qtyOK := raw.Num("QUANTITY", "STD_QUANTITY")
	unitRaw := raw.Str("UNIT", "STD_UNIT")
	var quantityMT *float64
	unitStatus := refdata.UnitMissing
	if qtyOK {
		mt, status := refdata.ConvertToMT(qtyRaw, unitRaw, hctName)
		if status == refdata.UnitUnresolvable {
			if stdQty, ok := raw.Num("STD_QUANTITY"); ok {
				if stdUnit := raw.Str("STD_UNIT"); stdUnit != "" {
					mt, status = refdata.ConvertToMT(stdQty, stdUnit, hctName)
				}
			}
		}
		unitStatus = status
		if status == refdata.UnitOK || status == refdata.UnitAssumedKG ||
			status == refdata.UnitAssumedMT || status == refdata.UnitAssumedBagWeight {
			quantityMT = fptr(mt)
		}
	}

	// Step 6: port determination
	var originPort, destPort string
	if tradeType == "IMPORT" {
		originPort = raw.Str("ORIGIN_PORT", "PORT_OF_SHIPMENT", "FOREIGN_PORT")
		destPort = raw.Str("DESTINATION_PORT", "INDIAN_PORT")
	} else {
		originPort = raw.Str("ORIGIN_PORT", "INDIAN_PORT", "PORT_OF_SHIPMENT")
		destPort = raw.Str("DESTINATION_PORT", "FOREIGN_PORT")
	}
	originPort = strings.ToUpper(originPort)
	destPort = strings.ToUpper(destPort)

	// Step 7: FOB USD derivation
	var fobUSD *float64
	var freightUsed, insuranceUsed, portChargesUsed *float64
	fobSource := priceSource
	switch {
	case !priceOK:
		fobSource = SourceMissing
	case incoterm == refdata.IncotermFOB:
		fobUSD = fptr(priceUSD)
	case incoterm == refdata.IncotermCIF:
		freightRate, freightOK := refdata.LookupFreight(originPort, destPort)
		insurance := refdata.CalcInsurance(priceUSD, originPort, destPort)
		portRate := refdata.LookupPortCharges(destPort)

		// Freight and port charges are per-MT rates; scale to totals when the
		// tonnage is known, otherwise deduct the rates as-is.
		deductions := insurance + portRate
		if freightOK {
			deductions += freightRate
		}
		if freightOK && quantityMT != nil && *quantityMT > 0 {
			qty := *quantityMT
			deductions = freightRate*qty + insurance + portRate*qty
		}

		fob := priceUSD - deductions
		if fob < 0 {
			fob = 0
		}
		fobUSD = fptr(fob)
		fobSource = SourceDerivedFromCIF
		if freightOK {
			freightUsed = fptr(freightRate)
		}
		insuranceUsed = fptr(insurance)
		portChargesUsed = fptr(portRate)
	default:
		fobUSD = fptr(priceUSD)
		fobSource = SourceAssumedUnknown
	}

	// Unit price
	var fobPerMT *float64
	if fobUSD != nil && quantityMT != nil && *quantityMT > 0 {
		fobPerMT = fptr(*fobUSD / *quantityMT)
	}

	// Step 8: quality inference
	productText := raw.Str("PRODUCT", "PRODUCT_DESCRIPTION")
	quality := ParseQuality(productText, hctID)

	// Step 9: price status
	status := PriceNormal
	switch {
	case fobUSD == nil || *fobUSD == 0:
		status = PriceMissing
	case fobPerMT != nil && *fobPerMT < suspectLowUSDPerMT:
		status = PriceSuspectLow
	case fobPerMT != nil && *fobPerMT > suspectHighUSDPerMT:
		status = PriceSuspectHigh
	}

	// Trade date (timestamps truncated to the date part)
	tradeDate := raw.Str("DATE", "EXP_DATE", "IMP_DATE", "TRADE_DATE")
	if len(tradeDate) > 10 {
		tradeDate = tradeDate[:10]
	}

	recordID := raw.Str("RECORD_ID")
	declNo := raw.Str("DECLARATION_NO")
	if recordID == "" && declNo != "" {
		recordID = declNo + ":" + raw.Str("ITEM_NO")
	}

	var qtyOriginal *float64
	if v, ok := raw.Num("QUANTITY"); ok {
		qtyOriginal = fptr(v)
	}

	hs2 := raw.Str("HS_CODE_2")
	hs4 := raw.Str("HS_CODE_4")
	if hsCode != "" {
		if hs2 == "" && len(hsCode) >= 2 {
			hs2 = hsCode[:2]
		}
		if hs4 == "" && len(hsCode) >= 4 {
			hs4 = hsCode[:4]
		}
	}

	return &Shipment{
		RecordID:      recordID,
		DeclarationNo: declNo,
		BillNo:        raw.Str("BILL_NO"),

		TradeDate:    tradeDate,
		TradeType:    tradeType,
		TradeCountry: tradeCountry,

		Consignee: raw.Str("CONSIGNEE", "BUYER_NAME"),
		Consignor: raw.Str("CONSIGNOR", "EXPORTER_NAME"),

		OriginCountry:      strings.ToUpper(raw.Str("ORIGIN_COUNTRY")),
		OriginPort:         originPort,
		DestinationCountry: strings.ToUpper(raw.Str("DESTINATION_COUNTRY")),
		DestinationPort:    destPort,

		HSCode:             hsCode,
		HSCode2:            hs2,
		HSCode4:            hs4,
		HctID:              hctID,
		HctName:            hctName,
		HctGroup:           hctGroup,
		ProductDescription: productText,

		QuantityMT:       quantityMT,
		QuantityOriginal: qtyOriginal,
		UnitOriginal:     raw.Str("UNIT"),
		UnitStatus:       unitStatus,

		FOBUSDTotal:      fobUSD,
		FOBUSDPerMT:      fobPerMT,
		DeclaredIncoterm: incoterm,
		PriceSource:      fobSource,
		PriceStatus:      status,
		CurrencyOriginal: raw.Str("CURRENCY"),

		QualityEstimate: quality,

		FreightDeducted:     freightUsed,
		InsuranceDeducted:   insuranceUsed,
		PortChargesDeducted: portChargesUsed,

		NormalizedAt:         p.Now().UTC().Format(time.RFC3339),
		NormalizationVersion: Version,
	}
}

// extractPrice walks the USD price ladder and returns the first rung that
// yields a positive number, together with the rung's name.
func extractPrice(raw RawRecord) (float64, bool, string) {
	if v, ok := raw.Num("FOB_USD"); ok && v > 0 {
		return v, true, SourceFOBUSD
	}
	if v, ok := raw.Num("TOTAL_ASSESS_USD"); ok && v > 0 {
		return v, true, SourceTotalAssessUSD
	}
	if unit, ok := raw.Num("STD_UNIT_PRICE_USD"); ok && unit > 0 {
		if qty, ok := raw.Num("STD_QUANTITY"); ok && qty > 0 {
			return unit * qty, true, SourceStdUnitPriceUSD
		}
	}
	if unit, ok := raw.Num("UNIT_PRICE_USD"); ok && unit > 0 {
		if qty, ok := raw.Num("QUANTITY"); ok && qty > 0 {
			return unit * qty, true, SourceUnitPriceUSD
		}
	}
	fx, fxOK := raw.Num("USD_EXCHANGE_RATE")
	if fxOK && fx > 0 {
		if v, ok := raw.Num("FOB_INR"); ok && v > 0 {
			return v / fx, true, SourceFOBINR
		}
		if rate, ok := raw.Num("ITEM_RATE_INR", "STD_ITEM_RATE_INR"); ok && rate > 0 {
			if qty, ok := raw.Num("QUANTITY"); ok && qty > 0 {
				return rate * qty / fx, true, SourceItemRateINR
			}
		}
		if v, ok := raw.Num("TOTAL_ASSESSABLE_VALUE_INR"); ok && v > 0 {
			return v / fx, true, SourceTotalAssessINR
		}
	}
	return 0, false, SourceMissing
}
