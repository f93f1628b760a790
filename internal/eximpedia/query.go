package eximpedia

import (
	"strings"
)

// Upstream filter limits.
const (
	MaxFilterValues = 5
	MaxPageSize     = 1000
)

// DateRange is the query window in ISO dates.
type DateRange struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// SearchFilter is one primary or advance search clause.
type SearchFilter struct {
	Filter     string   `json:"FILTER"`
	Values     []string `json:"VALUES"`
	SearchType string   `json:"SearchType,omitempty"`
	Operator   string   `json:"OPERATOR,omitempty"`
}

// ShipmentQuery is the upstream /trade/shipment payload.
type ShipmentQuery struct {
	DateRange     DateRange      `json:"DateRange"`
	TradeType     string         `json:"TradeType"`
	TradeCountry  string         `json:"TradeCountry"`
	PageSize      int            `json:"page_size"`
	PageNo        int            `json:"page_no"`
	Sort          string         `json:"sort,omitempty"`
	SortType      string         `json:"sort_type,omitempty"`
	PrimarySearch *SearchFilter  `json:"PrimarySearch,omitempty"`
	AdvanceSearch []SearchFilter `json:"AdvanceSearch,omitempty"`
	Exclude       string         `json:"exclude,omitempty"`
}

// QueryParams are the high-level parameters a shipment query is built from.
type QueryParams struct {
	StartDate            string
	EndDate              string
	TradeType            string
	TradeCountry         string
	HSCodes              []string
	Products             []string
	OriginCountries      []string
	DestinationCountries []string
	OriginPorts          []string
	DestinationPorts     []string
	Consignees           []string
	Consignors           []string
	PageSize             int
	PageNo               int
	Sort                 string
	SortType             string
}

// BuildShipmentQuery constructs a well-formed shipment payload: filter values
// capped at 5, page size capped at 1000, HS codes zero-padded to at least 4
// digits, advance filters combined with AND.
func BuildShipmentQuery(p QueryParams) ShipmentQuery {
	q := ShipmentQuery{
		DateRange:    DateRange{StartDate: p.StartDate, EndDate: p.EndDate},
		TradeType:    strings.ToUpper(p.TradeType),
		TradeCountry: strings.ToUpper(p.TradeCountry),
		PageSize:     clampPageSize(p.PageSize),
		PageNo:       p.PageNo,
		Sort:         p.Sort,
		SortType:     p.SortType,
	}
	if q.PageNo < 1 {
		q.PageNo = 1
	}
	if q.Sort == "" {
		q.Sort = "DATE"
	}
	if q.SortType == "" {
		q.SortType = "desc"
	}

	if len(p.HSCodes) > 0 {
		q.PrimarySearch = &SearchFilter{
			Filter:     "HS_CODE",
			Values:     padHSCodes(cap5(p.HSCodes)),
			SearchType: "CONTAIN",
		}
	} else if len(p.Products) > 0 {
		q.PrimarySearch = &SearchFilter{
			Filter:     "PRODUCT",
			Values:     cap5(p.Products),
			SearchType: "CONTAIN",
		}
	}

	advance := []struct {
		filter string
		values []string
	}{
		{"ORIGIN_COUNTRY", p.OriginCountries},
		{"DESTINATION_COUNTRY", p.DestinationCountries},
		{"ORIGIN_PORT", p.OriginPorts},
		{"DESTINATION_PORT", p.DestinationPorts},
		{"CONSIGNEE", p.Consignees},
		{"CONSIGNOR", p.Consignors},
	}
	for _, a := range advance {
		if len(a.values) == 0 {
			continue
		}
		q.AdvanceSearch = append(q.AdvanceSearch, SearchFilter{
			Filter:   a.filter,
			Values:   upperAll(cap5(a.values)),
			Operator: "AND",
		})
	}

	return q
}

// BuildSummaryQuery constructs a payload for the importer/exporter summary
// endpoints.
func BuildSummaryQuery(p QueryParams, exclude string) ShipmentQuery {
	q := BuildShipmentQuery(p)
	q.Sort = ""
	q.SortType = ""
	q.Exclude = exclude
	return q
}

func clampPageSize(n int) int {
	if n <= 0 {
		return MaxPageSize
	}
	if n > MaxPageSize {
		return MaxPageSize
	}
	return n
}

func cap5(values []string) []string {
	if len(values) > MaxFilterValues {
		return values[:MaxFilterValues]
	}
	return values
}

func upperAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToUpper(v)
	}
	return out
}

// padHSCodes left-pads numeric HS codes with zeros to at least 4 digits, as
// the upstream requires string codes with leading zeros intact.
func padHSCodes(codes []string) []string {
	out := make([]string, len(codes))
	for i, c := range codes {
		c = strings.TrimSpace(c)
		for len(c) < 4 {
			c = "0" + c
		}
		out[i] = c
	}
	return out
}
