package refdata

import "time"

// CropYear describes one harvest window for a commodity.
type CropYear struct {
	Name       string   `json:"name"`
	StartMonth int      `json:"start_month"`
	EndMonth   int      `json:"end_month"`
	PeakMonths []int    `json:"peak_months"`
	Origins    []string `json:"origins"`
}

// SeasonalPattern carries crop-year windows and twelve monthly flow weights
// (summing to 1.0) for a commodity.
type SeasonalPattern struct {
	CropYears      []CropYear           `json:"crop_years"`
	MonthlyWeights map[time.Month]float64 `json:"monthly_weights"`
}

// SeasonalPatterns maps HCT ids to their seasonal flow profiles. Commodities
// without an entry are treated as unseasonal.
var SeasonalPatterns = map[string]SeasonalPattern{
	"HCT-0801-RCN-INSHELL": {
		CropYears: []CropYear{
			{Name: "West African Main Crop", StartMonth: 2, EndMonth: 7, PeakMonths: []int{3, 4, 5},
				Origins: []string{"IVORY COAST", "GHANA", "GUINEA BISSAU", "BENIN"}},
			{Name: "East African Crop", StartMonth: 10, EndMonth: 1, PeakMonths: []int{11, 12},
				Origins: []string{"TANZANIA", "MOZAMBIQUE"}},
		},
		MonthlyWeights: map[time.Month]float64{
			1: 0.06, 2: 0.08, 3: 0.14, 4: 0.16, 5: 0.14,
			6: 0.10, 7: 0.07, 8: 0.05, 9: 0.04, 10: 0.05,
			11: 0.06, 12: 0.05,
		},
	},
	"HCT-1207-SESAME": {
		CropYears: []CropYear{
			{Name: "Sudan/Ethiopia Main", StartMonth: 10, EndMonth: 3, PeakMonths: []int{11, 12, 1},
				Origins: []string{"SUDAN", "ETHIOPIA"}},
			{Name: "Nigeria Multi-crop", StartMonth: 4, EndMonth: 9, PeakMonths: []int{6, 7, 8},
				Origins: []string{"NIGERIA"}},
			{Name: "India Rabi", StartMonth: 2, EndMonth: 5, PeakMonths: []int{3, 4},
				Origins: []string{"INDIA"}},
		},
		MonthlyWeights: map[time.Month]float64{
			1: 0.10, 2: 0.09, 3: 0.09, 4: 0.08, 5: 0.06,
			6: 0.07, 7: 0.08, 8: 0.08, 9: 0.07, 10: 0.08,
			11: 0.10, 12: 0.10,
		},
	},
	"HCT-1201-SOYBEAN": {
		CropYears: []CropYear{
			{Name: "Nigeria Main", StartMonth: 10, EndMonth: 3, PeakMonths: []int{11, 12, 1},
				Origins: []string{"NIGERIA"}},
		},
		MonthlyWeights: map[time.Month]float64{
			1: 0.10, 2: 0.09, 3: 0.08, 4: 0.07, 5: 0.06,
			6: 0.06, 7: 0.07, 8: 0.07, 9: 0.08, 10: 0.09,
			11: 0.12, 12: 0.11,
		},
	},
	"HCT-1006-RICE-NONBASMATI": {
		CropYears: []CropYear{
			{Name: "India Kharif", StartMonth: 10, EndMonth: 9, PeakMonths: []int{1, 2, 3, 4},
				Origins: []string{"INDIA"}},
			{Name: "Vietnam Winter-Spring", StartMonth: 2, EndMonth: 5, PeakMonths: []int{3, 4, 5},
				Origins: []string{"VIETNAM"}},
		},
		MonthlyWeights: map[time.Month]float64{
			1: 0.10, 2: 0.10, 3: 0.10, 4: 0.09, 5: 0.08,
			6: 0.07, 7: 0.07, 8: 0.07, 9: 0.07, 10: 0.08,
			11: 0.08, 12: 0.09,
		},
	},
}

// MonthlyWeight returns the seasonal flow weight for a commodity and month.
// The second return is false when the commodity has no seasonal table.
func MonthlyWeight(hctID string, month time.Month) (float64, bool) {
	pattern, ok := SeasonalPatterns[hctID]
	if !ok || pattern.MonthlyWeights == nil {
		return 0, false
	}
	w, ok := pattern.MonthlyWeights[month]
	if !ok {
		return 1.0 / 12.0, true
	}
	return w, true
}
