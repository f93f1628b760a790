package harvest

// Job is a declarative harvest task: one trade lane, one commodity filter,
// one lookback window.
type Job struct {
	Name                 string   `json:"name"`
	TradeType            string   `json:"trade_type"`
	TradeCountry         string   `json:"trade_country"`
	HSCodes              []string `json:"hs_codes,omitempty"`
	Products             []string `json:"products,omitempty"`
	LookbackDays         int      `json:"lookback_days"`
	OriginCountries      []string `json:"origin_countries,omitempty"`
	DestinationCountries []string `json:"destination_countries,omitempty"`
	Priority             int      `json:"priority"`
}

// Jobs is the harvest catalog. Priority 1 lanes feed the signal dashboard on
// startup; priority 2 lanes fill in on the background refresh.
var Jobs = []Job{
	{
		Name:         "rcn_india_imports",
		TradeType:    "IMPORT",
		TradeCountry: "INDIA",
		HSCodes:      []string{"080131"},
		LookbackDays: 30,
		OriginCountries: []string{
			"IVORY COAST", "GHANA", "TANZANIA", "GUINEA BISSAU", "BENIN",
		},
		Priority: 1,
	},
	{
		Name:         "cashew_kernel_india_exports",
		TradeType:    "EXPORT",
		TradeCountry: "INDIA",
		HSCodes:      []string{"080132"},
		LookbackDays: 30,
		Priority:     1,
	},
	{
		Name:         "sesame_india_exports",
		TradeType:    "EXPORT",
		TradeCountry: "INDIA",
		HSCodes:      []string{"120740"},
		LookbackDays: 30,
		Priority:     1,
	},
	{
		Name:         "rice_india_exports",
		TradeType:    "EXPORT",
		TradeCountry: "INDIA",
		HSCodes:      []string{"1006"},
		LookbackDays: 30,
		Priority:     1,
	},
	{
		Name:         "rcn_vietnam_imports",
		TradeType:    "IMPORT",
		TradeCountry: "VIETNAM",
		HSCodes:      []string{"080131"},
		LookbackDays: 30,
		OriginCountries: []string{
			"IVORY COAST", "GHANA", "NIGERIA", "TANZANIA", "CAMBODIA",
		},
		Priority: 1,
	},
	{
		Name:         "sesame_nigeria_exports",
		TradeType:    "EXPORT",
		TradeCountry: "NIGERIA",
		HSCodes:      []string{"120740"},
		LookbackDays: 45,
		Priority:     2,
	},
	{
		Name:         "soybean_nigeria_exports",
		TradeType:    "EXPORT",
		TradeCountry: "NIGERIA",
		HSCodes:      []string{"120190"},
		LookbackDays: 45,
		Priority:     2,
	},
	{
		Name:         "cocoa_ivory_coast_exports",
		TradeType:    "EXPORT",
		TradeCountry: "IVORY COAST",
		HSCodes:      []string{"180100"},
		LookbackDays: 60,
		Priority:     2,
	},
	{
		Name:         "rcn_tanzania_exports",
		TradeType:    "EXPORT",
		TradeCountry: "TANZANIA",
		HSCodes:      []string{"080131"},
		LookbackDays: 60,
		Priority:     2,
	},
	{
		Name:         "basmati_india_exports",
		TradeType:    "EXPORT",
		TradeCountry: "INDIA",
		HSCodes:      []string{"10063020"},
		LookbackDays: 30,
		Priority:     2,
	},
}

// FindJob returns the catalog job with the given name.
func FindJob(name string) (Job, bool) {
	for _, j := range Jobs {
		if j.Name == name {
			return j, true
		}
	}
	return Job{}, false
}

// JobsByPriority returns catalog jobs with priority at or above the given
// level (numerically ≤ priority). priority 0 returns everything.
func JobsByPriority(priority int) []Job {
	if priority <= 0 {
		out := make([]Job, len(Jobs))
		copy(out, Jobs)
		return out
	}
	var out []Job
	for _, j := range Jobs {
		if j.Priority <= priority {
			out = append(out, j)
		}
	}
	return out
}

// Corridor names one tracked trade route for the signal feed and the
// corridor explorer.
type Corridor struct {
	Name       string   `json:"name"`
	Commodity  string   `json:"commodity"`
	Origins    []string `json:"origins"`
	OriginPort string   `json:"origin_port"`
	DestPort   string   `json:"dest_port"`
}

// PriorityCorridors are the routes the signal feed watches.
var PriorityCorridors = []Corridor{
	{
		Name:       "RCN West Africa → India",
		Commodity:  "HCT-0801-RCN-INSHELL",
		Origins:    []string{"IVORY COAST", "GHANA", "GUINEA BISSAU", "BENIN"},
		OriginPort: "ABIDJAN",
		DestPort:   "TUTICORIN",
	},
	{
		Name:       "RCN East Africa → India",
		Commodity:  "HCT-0801-RCN-INSHELL",
		Origins:    []string{"TANZANIA", "MOZAMBIQUE"},
		OriginPort: "DAR ES SALAAM",
		DestPort:   "TUTICORIN",
	},
	{
		Name:       "RCN West Africa → Vietnam",
		Commodity:  "HCT-0801-RCN-INSHELL",
		Origins:    []string{"IVORY COAST", "GHANA"},
		OriginPort: "ABIDJAN",
		DestPort:   "HO CHI MINH",
	},
	{
		Name:       "Sesame Nigeria → China",
		Commodity:  "HCT-1207-SESAME",
		Origins:    []string{"NIGERIA"},
		OriginPort: "LAGOS",
		DestPort:   "QINGDAO",
	},
	{
		Name:       "Rice India → West Africa",
		Commodity:  "HCT-1006-RICE-NONBASMATI",
		Origins:    []string{"INDIA"},
		OriginPort: "KAKINADA",
		DestPort:   "LAGOS",
	},
	{
		Name:       "Soybean Nigeria → India",
		Commodity:  "HCT-1201-SOYBEAN",
		Origins:    []string{"NIGERIA"},
		OriginPort: "LAGOS",
		DestPort:   "TUTICORIN",
	},
}

// SearchCountries are the trade countries ad-hoc commodity searches fan out
// over when no pre-configured job matches.
var SearchCountries = []string{
	"INDIA", "VIETNAM", "IVORY COAST", "GHANA", "NIGERIA",
	"TANZANIA", "ETHIOPIA", "INDONESIA", "MALAYSIA", "THAILAND",
	"CHINA", "BRAZIL", "MOZAMBIQUE",
}
