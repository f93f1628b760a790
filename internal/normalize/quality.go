package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Commodity-specific quality parsers. Customs product descriptions are free
// text; these extract the structured signals (outturn, kernel grade, purity,
// broken percentage, protein, ...) that reveal what actually shipped.

var (
	reOutturn  = regexp.MustCompile(`OUTTURN\s*[:\-]?\s*(\d+\.?\d*)\s*(?:LBS|#)?`)
	reNutCount = regexp.MustCompile(`(\d+)\s*(?:NUTS?|NUT)\s*/?\s*KG`)
	reKernel   = regexp.MustCompile(`(W\s?180|W\s?210|W\s?240|W\s?320|W\s?450|WW\d+|SW\d+|LWP|SWP|BB|SS)`)
	rePurity   = regexp.MustCompile(`(\d{2}\.?\d*)\s*%\s*(?:PURITY|PURE)`)
	reBroken   = regexp.MustCompile(`(\d+)\s*%?\s*(?:BROKEN|BRKN|PCT)`)
	reProtein  = regexp.MustCompile(`(\d+\.?\d*)\s*%?\s*PROTEIN`)
	reMoisture = regexp.MustCompile(`(\d+\.?\d*)\s*%?\s*MOISTURE`)
)

var rcnOriginClaims = []string{
	"IVORY COAST", "GHANA", "NIGERIA", "TANZANIA", "MOZAMBIQUE",
	"GUINEA BISSAU", "BENIN", "COTE D'IVOIRE",
}

// ParseQuality dispatches on the commodity family and parses the product
// description into a structured quality estimate. Unknown families get a
// Standard grade at base confidence.
func ParseQuality(productText, hctID string) QualityEstimate {
	if strings.TrimSpace(productText) == "" {
		return QualityEstimate{Grade: "Unknown", Confidence: 0, SignalsUsed: []string{}, Details: "No description"}
	}
	text := strings.ToUpper(strings.TrimSpace(productText))

	switch {
	case strings.Contains(hctID, "RCN"):
		return parseCashewRCN(text)
	case strings.Contains(hctID, "KERNEL"):
		return parseCashewKernel(text)
	case strings.Contains(hctID, "SESAME"):
		return parseSesame(text)
	case strings.Contains(hctID, "RICE"):
		return parseRice(text)
	case strings.Contains(hctID, "SOYBEAN"):
		return parseSoybean(text)
	}
	return QualityEstimate{Grade: "Standard", Confidence: 0.3, SignalsUsed: []string{}, Details: ""}
}

func confidence(base, step float64, signals int) float64 {
	c := base + step*float64(signals)
	if c > 0.95 {
		return 0.95
	}
	return c
}

func parseCashewRCN(text string) QualityEstimate {
	var signals []string
	var details []string
	grade := "Standard"

	state := "raw_in_shell"
	if strings.Contains(text, "KERNEL") || strings.Contains(text, "W180") ||
		strings.Contains(text, "W240") || strings.Contains(text, "W320") ||
		strings.Contains(text, "W450") {
		state = "kernel"
	} else if strings.Contains(text, "SHELLED") {
		state = "shelled"
	}
	details = append(details, "state="+state)

	// Outturn (KOR) is the critical RCN quality indicator.
	if m := reOutturn.FindStringSubmatch(text); m != nil {
		outturn, _ := strconv.ParseFloat(m[1], 64)
		signals = append(signals, "outturn_detected")
		details = append(details, fmt.Sprintf("outturn=%g lbs", outturn))
		switch {
		case outturn >= 48:
			grade = "Premium"
		case outturn >= 44:
			grade = "Grade A"
		default:
			grade = "Grade B"
		}
	}

	if m := reNutCount.FindStringSubmatch(text); m != nil {
		count, _ := strconv.Atoi(m[1])
		signals = append(signals, "nut_count_detected")
		details = append(details, fmt.Sprintf("nut_count=%d/kg", count))
	}

	for _, origin := range rcnOriginClaims {
		if strings.Contains(text, origin) {
			signals = append(signals, "origin_claim")
			details = append(details, "origin="+origin)
			break
		}
	}

	return QualityEstimate{
		Grade:       grade,
		Confidence:  confidence(0.3, 0.2, len(signals)),
		SignalsUsed: ensureSignals(signals),
		Details:     strings.Join(details, "; "),
	}
}

func parseCashewKernel(text string) QualityEstimate {
	var signals []string
	var details []string
	grade := "Standard"

	if m := reKernel.FindStringSubmatch(text); m != nil {
		grade = strings.ReplaceAll(m[1], " ", "")
		signals = append(signals, "kernel_grade_detected")
		details = append(details, "grade="+grade)
	}
	if strings.Contains(text, "SCORCHED") {
		signals = append(signals, "processing_note")
		details = append(details, "scorched")
	}
	if strings.Contains(text, "DESSERT") {
		signals = append(signals, "processing_note")
		details = append(details, "dessert")
	}

	return QualityEstimate{
		Grade:       grade,
		Confidence:  confidence(0.4, 0.25, len(signals)),
		SignalsUsed: ensureSignals(signals),
		Details:     strings.Join(details, "; "),
	}
}

func parseSesame(text string) QualityEstimate {
	var signals []string
	var details []string
	grade := "Standard"

	if m := rePurity.FindStringSubmatch(text); m != nil {
		purity, _ := strconv.ParseFloat(m[1], 64)
		signals = append(signals, "purity_detected")
		details = append(details, fmt.Sprintf("purity=%g%%", purity))
		switch {
		case purity >= 99.95:
			grade = "Premium Hulled"
		case purity >= 99.90:
			grade = "Hulled"
		}
	}

	if strings.Contains(text, "HULLED") && !strings.Contains(text, "UNHULLED") {
		signals = append(signals, "processing_state")
		details = append(details, "hulled")
		if grade == "Standard" {
			grade = "Hulled"
		}
	} else if strings.Contains(text, "NATURAL") || strings.Contains(text, "UNHULLED") {
		signals = append(signals, "processing_state")
		details = append(details, "natural/unhulled")
		grade = "Natural"
	}

	if strings.Contains(text, "AFLATOXIN") && strings.Contains(text, "FREE") {
		signals = append(signals, "quality_certification")
		details = append(details, "aflatoxin-free")
	}

	for _, color := range []string{"WHITE", "BLACK", "BROWN", "MIXED"} {
		if strings.Contains(text, color) {
			signals = append(signals, "color_detected")
			details = append(details, "color="+strings.ToLower(color))
			break
		}
	}

	return QualityEstimate{
		Grade:       grade,
		Confidence:  confidence(0.3, 0.2, len(signals)),
		SignalsUsed: ensureSignals(signals),
		Details:     strings.Join(details, "; "),
	}
}

func parseRice(text string) QualityEstimate {
	var signals []string
	var details []string
	grade := "Standard"

	if m := reBroken.FindStringSubmatch(text); m != nil {
		pct, _ := strconv.Atoi(m[1])
		signals = append(signals, "broken_pct_detected")
		details = append(details, fmt.Sprintf("broken=%d%%", pct))
		switch {
		case pct <= 5:
			grade = "5% Broken (Premium)"
		case pct <= 15:
			grade = fmt.Sprintf("%d%% Broken (Mid)", pct)
		case pct <= 25:
			grade = "25% Broken (Standard)"
		default:
			grade = "100% Broken (Value)"
		}
	}

	if strings.Contains(text, "BASMATI") {
		grade = "Basmati"
		signals = append(signals, "variety_detected")
		if strings.Contains(text, "1121") {
			details = append(details, "variety=1121")
		}
		if strings.Contains(text, "SELLA") {
			details = append(details, "processing=sella/parboiled")
		}
		if strings.Contains(text, "STEAM") {
			details = append(details, "processing=steamed")
		}
	}

	if strings.Contains(text, "LONG GRAIN") {
		signals = append(signals, "type_detected")
		details = append(details, "long grain")
	}
	if strings.Contains(text, "PARBOILED") && !strings.Contains(text, "BASMATI") {
		signals = append(signals, "processing_detected")
		details = append(details, "parboiled")
	}

	for _, variety := range []string{"PONNI", "SONA MASURI", "SONA MASOORI", "SUGANDHA", "PUSA"} {
		if strings.Contains(text, variety) {
			signals = append(signals, "variety_detected")
			details = append(details, "variety="+variety)
			break
		}
	}

	return QualityEstimate{
		Grade:       grade,
		Confidence:  confidence(0.3, 0.2, len(signals)),
		SignalsUsed: ensureSignals(signals),
		Details:     strings.Join(details, "; "),
	}
}

func parseSoybean(text string) QualityEstimate {
	var signals []string
	var details []string
	grade := "Standard"

	if strings.Contains(text, "FEED") {
		grade = "Feed Grade"
		signals = append(signals, "grade_detected")
		details = append(details, "feed grade")
	}
	if strings.Contains(text, "NON-GMO") || strings.Contains(text, "NON GMO") {
		signals = append(signals, "gmo_status")
		details = append(details, "non-GMO")
	}
	if m := reProtein.FindStringSubmatch(text); m != nil {
		prot, _ := strconv.ParseFloat(m[1], 64)
		signals = append(signals, "protein_detected")
		details = append(details, fmt.Sprintf("protein=%g%%", prot))
	}
	if m := reMoisture.FindStringSubmatch(text); m != nil {
		moist, _ := strconv.ParseFloat(m[1], 64)
		signals = append(signals, "moisture_detected")
		details = append(details, fmt.Sprintf("moisture=%g%%", moist))
	}

	return QualityEstimate{
		Grade:       grade,
		Confidence:  confidence(0.3, 0.2, len(signals)),
		SignalsUsed: ensureSignals(signals),
		Details:     strings.Join(details, "; "),
	}
}

func ensureSignals(signals []string) []string {
	if signals == nil {
		return []string{}
	}
	return signals
}
