package store

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// GroundPrice is a price observation collected outside the customs feed —
// a broker quote, a mandi price, a trader's own deal.
type GroundPrice struct {
	ObservationID   string  `json:"observation_id"`
	HctID           string  `json:"hct_id"`
	Price           float64 `json:"price"`
	Currency        string  `json:"currency"`
	Unit            string  `json:"unit"`
	Incoterm        string  `json:"incoterm"`
	Location        string  `json:"location"`
	QualityGrade    string  `json:"quality_grade,omitempty"`
	SourceType      string  `json:"source_type"`
	SourceName      string  `json:"source_name,omitempty"`
	ObservationDate string  `json:"observation_date"`
	Notes           string  `json:"notes,omitempty"`
	Verified        bool    `json:"verified"`
}

// GroundPriceStore is an append-only in-process list of ground observations.
type GroundPriceStore struct {
	mu     sync.RWMutex
	prices []GroundPrice
}

// NewGroundPriceStore creates an empty store.
func NewGroundPriceStore() *GroundPriceStore {
	return &GroundPriceStore{}
}

// Add assigns an observation id and stores the price. Returns the stored
// observation.
func (g *GroundPriceStore) Add(p GroundPrice) GroundPrice {
	p.ObservationID = "GP-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	p.Verified = false
	if p.Currency == "" {
		p.Currency = "USD"
	}
	if p.Unit == "" {
		p.Unit = "MT"
	}
	if p.Incoterm == "" {
		p.Incoterm = "FOB"
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.prices = append(g.prices, p)
	return p
}

// List returns up to limit observations matching the optional hct and
// location filters, most recent submissions last.
func (g *GroundPriceStore) List(hctID, location string, limit int) ([]GroundPrice, int) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var filtered []GroundPrice
	for _, p := range g.prices {
		if hctID != "" && p.HctID != hctID {
			continue
		}
		if location != "" && !strings.Contains(strings.ToUpper(p.Location), strings.ToUpper(location)) {
			continue
		}
		filtered = append(filtered, p)
	}
	total := len(filtered)
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	return filtered, total
}
