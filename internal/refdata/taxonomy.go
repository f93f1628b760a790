package refdata

import "strings"

// HSMapping links a national HS code prefix to an HCT commodity.
// Country "*" matches any customs regime.
type HSMapping struct {
	Country    string `json:"country"`
	HSCode     string `json:"hs_code"`
	Confidence string `json:"confidence"` // HIGH | MEDIUM | LOW
}

// Commodity is one entry of the Hectar Commodity Taxonomy (HCT).
type Commodity struct {
	HctName       string      `json:"hct_name"`
	HctGroup      string      `json:"hct_group"`
	HctSupergroup string      `json:"hct_supergroup"`
	StandardUnit  string      `json:"standard_unit"`
	HSMappings    []HSMapping `json:"hs_mappings"`
	QualityGrades []string    `json:"quality_grades"`
}

// Classification is the result of resolving an HS code against the taxonomy.
type Classification struct {
	HctID           string `json:"hct_id"`
	HctName         string `json:"hct_name"`
	HctGroup        string `json:"hct_group"`
	HctSupergroup   string `json:"hct_supergroup"`
	MatchedHS       string `json:"matched_hs"`
	MatchConfidence string `json:"match_confidence"`
}

// Taxonomy maps HCT ids to commodity entries. Read-only for the process lifetime.
var Taxonomy = map[string]Commodity{
	"HCT-0801-RCN-INSHELL": {
		HctName:       "Raw Cashew Nuts (In Shell)",
		HctGroup:      "Cashew Complex",
		HctSupergroup: "Tree Nuts",
		StandardUnit:  "MT",
		HSMappings: []HSMapping{
			{Country: "*", HSCode: "080131", Confidence: "HIGH"},
			{Country: "INDIA", HSCode: "08013110", Confidence: "HIGH"},
			{Country: "INDIA", HSCode: "08013120", Confidence: "HIGH"},
			{Country: "VIETNAM", HSCode: "08013100", Confidence: "HIGH"},
			{Country: "IVORY COAST", HSCode: "080131", Confidence: "HIGH"},
		},
		QualityGrades: []string{"Grade A (180+ nuts/kg)", "Grade B (180-210)", "Grade C (210+)"},
	},
	"HCT-0801-CASHEW-KERNEL": {
		HctName:       "Cashew Kernels (Processed)",
		HctGroup:      "Cashew Complex",
		HctSupergroup: "Tree Nuts",
		StandardUnit:  "MT",
		HSMappings: []HSMapping{
			{Country: "*", HSCode: "080132", Confidence: "HIGH"},
			{Country: "INDIA", HSCode: "08013200", Confidence: "HIGH"},
			{Country: "VIETNAM", HSCode: "08013200", Confidence: "HIGH"},
		},
		QualityGrades: []string{"W180", "W210", "W240", "W320", "W450", "SW", "LWP", "SWP"},
	},
	"HCT-1207-SESAME": {
		HctName:       "Sesame Seeds",
		HctGroup:      "Sesame",
		HctSupergroup: "Oilseeds",
		StandardUnit:  "MT",
		HSMappings: []HSMapping{
			{Country: "*", HSCode: "120740", Confidence: "HIGH"},
			{Country: "INDIA", HSCode: "12074000", Confidence: "HIGH"},
			{Country: "ETHIOPIA", HSCode: "120740", Confidence: "HIGH"},
			{Country: "NIGERIA", HSCode: "120740", Confidence: "HIGH"},
		},
		QualityGrades: []string{"Hulled 99.95%", "Hulled 99.90%", "Natural (unhulled)", "Mixed"},
	},
	"HCT-1006-RICE-NONBASMATI": {
		HctName:       "Rice (Non-Basmati)",
		HctGroup:      "Rice",
		HctSupergroup: "Grains & Cereals",
		StandardUnit:  "MT",
		HSMappings: []HSMapping{
			{Country: "*", HSCode: "1006", Confidence: "MEDIUM"},
			{Country: "INDIA", HSCode: "10063010", Confidence: "HIGH"},
			{Country: "INDIA", HSCode: "10063090", Confidence: "HIGH"},
			{Country: "VIETNAM", HSCode: "100630", Confidence: "HIGH"},
			{Country: "THAILAND", HSCode: "100630", Confidence: "HIGH"},
		},
		QualityGrades: []string{"5% Broken", "10% Broken", "15% Broken", "25% Broken", "100% Broken", "Parboiled", "Long Grain White"},
	},
	"HCT-1006-RICE-BASMATI": {
		HctName:       "Basmati Rice",
		HctGroup:      "Rice",
		HctSupergroup: "Grains & Cereals",
		StandardUnit:  "MT",
		HSMappings: []HSMapping{
			{Country: "INDIA", HSCode: "10063020", Confidence: "HIGH"},
			{Country: "PAKISTAN", HSCode: "100630", Confidence: "MEDIUM"},
		},
		QualityGrades: []string{"1121 Sella", "1121 Steam", "Sugandha", "Pusa", "Traditional"},
	},
	"HCT-1201-SOYBEAN": {
		HctName:       "Soybeans",
		HctGroup:      "Soybeans",
		HctSupergroup: "Oilseeds",
		StandardUnit:  "MT",
		HSMappings: []HSMapping{
			{Country: "*", HSCode: "120190", Confidence: "HIGH"},
			{Country: "NIGERIA", HSCode: "12019000", Confidence: "HIGH"},
			{Country: "INDIA", HSCode: "12019000", Confidence: "HIGH"},
		},
		QualityGrades: []string{"Grade 1", "Grade 2", "Feed Grade"},
	},
	"HCT-1801-COCOA": {
		HctName:       "Cocoa Beans",
		HctGroup:      "Cocoa",
		HctSupergroup: "Cocoa",
		StandardUnit:  "MT",
		HSMappings: []HSMapping{
			{Country: "*", HSCode: "180100", Confidence: "HIGH"},
		},
		QualityGrades: []string{"Grade I", "Grade II", "Sub-Grade"},
	},
	"HCT-1207-SHEA": {
		HctName:       "Shea Nuts/Butter",
		HctGroup:      "Shea",
		HctSupergroup: "Oilseeds",
		StandardUnit:  "MT",
		HSMappings: []HSMapping{
			{Country: "*", HSCode: "120799", Confidence: "MEDIUM"},
		},
		QualityGrades: []string{"Nuts", "Crude Butter", "Refined Butter"},
	},
	"HCT-1511-PALMOIL": {
		HctName:       "Palm Oil",
		HctGroup:      "Palm Oil",
		HctSupergroup: "Vegetable Oils",
		StandardUnit:  "MT",
		HSMappings: []HSMapping{
			{Country: "*", HSCode: "151110", Confidence: "HIGH"},
			{Country: "*", HSCode: "151190", Confidence: "HIGH"},
		},
		QualityGrades: []string{"Crude (CPO)", "Refined (RPO)", "Olein", "Stearin"},
	},
	"HCT-5201-COTTON": {
		HctName:       "Raw Cotton",
		HctGroup:      "Cotton",
		HctSupergroup: "Cotton",
		StandardUnit:  "MT",
		HSMappings: []HSMapping{
			{Country: "*", HSCode: "520100", Confidence: "HIGH"},
		},
		QualityGrades: []string{"S-6", "J-34", "MCU-5", "Shankar-6", "CIS"},
	},
}

// taxonomyOrder fixes iteration order for deterministic classification and
// stable API output (map iteration order is randomized in Go).
var taxonomyOrder = []string{
	"HCT-0801-RCN-INSHELL",
	"HCT-0801-CASHEW-KERNEL",
	"HCT-1207-SESAME",
	"HCT-1006-RICE-NONBASMATI",
	"HCT-1006-RICE-BASMATI",
	"HCT-1201-SOYBEAN",
	"HCT-1801-COCOA",
	"HCT-1207-SHEA",
	"HCT-1511-PALMOIL",
	"HCT-5201-COTTON",
}

// TaxonomyIDs returns all HCT ids in canonical order.
func TaxonomyIDs() []string {
	out := make([]string, len(taxonomyOrder))
	copy(out, taxonomyOrder)
	return out
}

// NormalizeHSCode stringifies and repairs an HS code. Upstream systems strip
// leading zeros, turning e.g. 08013100 into "8013100"; a purely numeric code
// of odd length below 8 digits gets the zero restored.
func NormalizeHSCode(hs string) string {
	hs = strings.TrimSpace(hs)
	if hs == "" {
		return ""
	}
	digits := true
	for _, r := range hs {
		if r < '0' || r > '9' {
			digits = false
			break
		}
	}
	if digits && len(hs)%2 == 1 && len(hs) < 8 {
		return "0" + hs
	}
	return hs
}

// ClassifyByHSCode resolves an HS code to an HCT commodity. Country-specific
// mappings are tried first, then wildcard mappings. A mapping matches when its
// HS code is a prefix of the record's code.
func ClassifyByHSCode(hsCode, country string) *Classification {
	hsCode = strings.TrimSpace(hsCode)
	if hsCode == "" {
		return nil
	}
	country = strings.ToUpper(strings.TrimSpace(country))

	for _, hctID := range taxonomyOrder {
		entry := Taxonomy[hctID]
		for _, m := range entry.HSMappings {
			if m.Country == country && strings.HasPrefix(hsCode, m.HSCode) {
				return classification(hctID, entry, m)
			}
		}
	}
	for _, hctID := range taxonomyOrder {
		entry := Taxonomy[hctID]
		for _, m := range entry.HSMappings {
			if m.Country == "*" && strings.HasPrefix(hsCode, m.HSCode) {
				return classification(hctID, entry, m)
			}
		}
	}
	return nil
}

func classification(hctID string, entry Commodity, m HSMapping) *Classification {
	return &Classification{
		HctID:           hctID,
		HctName:         entry.HctName,
		HctGroup:        entry.HctGroup,
		HctSupergroup:   entry.HctSupergroup,
		MatchedHS:       m.HSCode,
		MatchConfidence: m.Confidence,
	}
}

// FindCommoditiesByName matches a free-text query against commodity names,
// groups, and ids. Used by the harvest-by-name search.
func FindCommoditiesByName(query string) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var matches []string
	for _, hctID := range taxonomyOrder {
		entry := Taxonomy[hctID]
		if strings.Contains(strings.ToLower(entry.HctName), q) ||
			strings.Contains(strings.ToLower(entry.HctGroup), q) ||
			strings.Contains(strings.ToLower(hctID), q) {
			matches = append(matches, hctID)
		}
	}
	return matches
}
