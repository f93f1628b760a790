package store

import (
	"path/filepath"
	"strings"
	"testing"

	"hectar-intel/internal/normalize"
)

func ship(recordID, date string) *normalize.Shipment {
	return &normalize.Shipment{RecordID: recordID, TradeDate: date, TradeType: "IMPORT", TradeCountry: "INDIA"}
}

func testStoreContract(t *testing.T, s RecordStore) {
	t.Helper()

	batch := []*normalize.Shipment{
		ship("A:1", "2025-03-01"),
		ship("A:2", "2025-03-02"),
		ship("A:1", "2025-03-03"), // duplicate id, first wins
	}
	if got := s.Append("HCT-0801-RCN-INSHELL", batch); got != 2 {
		t.Errorf("Append = %d inserted, want 2", got)
	}

	// Idempotent under batch repeat.
	if got := s.Append("HCT-0801-RCN-INSHELL", batch); got != 0 {
		t.Errorf("repeat Append = %d inserted, want 0", got)
	}
	if got := s.Count("HCT-0801-RCN-INSHELL"); got != 2 {
		t.Errorf("Count = %d, want 2", got)
	}

	records := s.Records("HCT-0801-RCN-INSHELL")
	if len(records) != 2 {
		t.Fatalf("Records = %d, want 2", len(records))
	}
	// First-wins: the duplicate's trade date must be the original.
	var first *normalize.Shipment
	for _, r := range records {
		if r.RecordID == "A:1" {
			first = r
		}
	}
	if first == nil || first.TradeDate != "2025-03-01" {
		t.Errorf("duplicate record id did not keep the first record: %+v", first)
	}

	// Separate commodities do not interfere.
	s.Append("HCT-1207-SESAME", []*normalize.Shipment{ship("A:1", "2025-04-01")})
	if got := s.Count("HCT-1207-SESAME"); got != 1 {
		t.Errorf("sesame Count = %d, want 1", got)
	}

	ids := s.CommodityIDs()
	if len(ids) != 2 {
		t.Errorf("CommodityIDs = %v, want 2 entries", ids)
	}
}

func TestMemoryStore_Contract(t *testing.T) {
	testStoreContract(t, NewMemoryStore())
}

func TestSQLiteStore_Contract(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intel.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()
	testStoreContract(t, s)
}

func TestMemoryStore_EmptyAndAnonymousRecords(t *testing.T) {
	s := NewMemoryStore()
	if got := s.Append("", []*normalize.Shipment{ship("X", "2025-01-01")}); got != 0 {
		t.Errorf("Append with empty hct = %d, want 0", got)
	}
	// Records without an id cannot be deduplicated and are all kept.
	anon := []*normalize.Shipment{ship("", "2025-01-01"), ship("", "2025-01-02")}
	if got := s.Append("HCT-1801-COCOA", anon); got != 2 {
		t.Errorf("anonymous Append = %d, want 2", got)
	}
	if got := s.Records("HCT-MISSING"); len(got) != 0 {
		t.Errorf("Records(unknown) = %d, want 0", len(got))
	}
}

func TestGroundPriceStore_AddAndFilter(t *testing.T) {
	g := NewGroundPriceStore()
	p := g.Add(GroundPrice{
		HctID:           "HCT-0801-RCN-INSHELL",
		Price:           1450,
		Location:        "Abidjan",
		SourceType:      "broker",
		ObservationDate: "2025-03-10",
	})
	if !strings.HasPrefix(p.ObservationID, "GP-") || len(p.ObservationID) != 15 {
		t.Errorf("ObservationID = %q, want GP-<12 hex>", p.ObservationID)
	}
	if p.Currency != "USD" || p.Unit != "MT" || p.Incoterm != "FOB" {
		t.Errorf("defaults not applied: %+v", p)
	}
	if p.Verified {
		t.Error("new observation must start unverified")
	}

	g.Add(GroundPrice{HctID: "HCT-1207-SESAME", Price: 2100, Location: "Lagos", SourceType: "mandi", ObservationDate: "2025-03-11"})

	got, total := g.List("HCT-0801-RCN-INSHELL", "", 50)
	if total != 1 || len(got) != 1 || got[0].Price != 1450 {
		t.Errorf("List by hct = %v (total %d)", got, total)
	}
	got, _ = g.List("", "lag", 50)
	if len(got) != 1 || got[0].Location != "Lagos" {
		t.Errorf("List by location = %v", got)
	}
	got, total = g.List("", "", 1)
	if total != 2 || len(got) != 1 {
		t.Errorf("List limit: len=%d total=%d, want 1/2", len(got), total)
	}
}
