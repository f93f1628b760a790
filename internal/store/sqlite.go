package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	_ "modernc.org/sqlite"

	"hectar-intel/internal/logger"
	"hectar-intel/internal/normalize"
)

// SQLiteStore is a durable RecordStore adapter. It satisfies the same
// contract as MemoryStore: append-only by commodity, dedup by record id,
// full-range scans, stored shipments never rewritten.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and runs migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	logger.Success("DB", fmt.Sprintf("Opened %s", path))
	return s, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS shipments (
			hct_id    TEXT NOT NULL,
			record_id TEXT NOT NULL,
			seq       INTEGER PRIMARY KEY AUTOINCREMENT,
			payload   TEXT NOT NULL,
			UNIQUE (hct_id, record_id)
		);
		CREATE INDEX IF NOT EXISTS idx_shipments_hct ON shipments(hct_id);

		CREATE TABLE IF NOT EXISTS ground_prices (
			observation_id TEXT PRIMARY KEY,
			hct_id         TEXT NOT NULL,
			payload        TEXT NOT NULL
		);
	`)
	return err
}

// Append implements RecordStore. Inserts run in one transaction so a
// cancelled harvest never leaves a page half-applied; duplicates are dropped
// by the (hct_id, record_id) uniqueness constraint.
func (s *SQLiteStore) Append(hctID string, shipments []*normalize.Shipment) int {
	if hctID == "" || len(shipments) == 0 {
		return 0
	}
	tx, err := s.db.Begin()
	if err != nil {
		log.Printf("[DB] begin append: %v", err)
		return 0
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO shipments (hct_id, record_id, payload) VALUES (?, ?, ?)`)
	if err != nil {
		log.Printf("[DB] prepare append: %v", err)
		return 0
	}
	defer stmt.Close()

	inserted := 0
	synthetic := 0
	for _, sh := range shipments {
		if sh == nil {
			continue
		}
		payload, err := json.Marshal(sh)
		if err != nil {
			continue
		}
		recordID := sh.RecordID
		if recordID == "" {
			// Records without an id cannot be deduplicated; store them under
			// a per-batch synthetic key so they are kept, matching the
			// in-memory store.
			synthetic++
			recordID = fmt.Sprintf("_anon:%d:%d", countRows(tx, hctID), synthetic)
		}
		res, err := stmt.Exec(hctID, recordID, string(payload))
		if err != nil {
			continue
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	if err := tx.Commit(); err != nil {
		log.Printf("[DB] commit append: %v", err)
		return 0
	}
	return inserted
}

func countRows(tx *sql.Tx, hctID string) int {
	var n int
	tx.QueryRow(`SELECT COUNT(*) FROM shipments WHERE hct_id = ?`, hctID).Scan(&n)
	return n
}

// Records implements RecordStore, scanning in insertion order.
func (s *SQLiteStore) Records(hctID string) []*normalize.Shipment {
	rows, err := s.db.Query(`SELECT payload FROM shipments WHERE hct_id = ? ORDER BY seq`, hctID)
	if err != nil {
		log.Printf("[DB] records scan: %v", err)
		return nil
	}
	defer rows.Close()

	var out []*normalize.Shipment
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			continue
		}
		var sh normalize.Shipment
		if err := json.Unmarshal([]byte(payload), &sh); err != nil {
			continue
		}
		out = append(out, &sh)
	}
	return out
}

// Count implements RecordStore.
func (s *SQLiteStore) Count(hctID string) int {
	var n int
	s.db.QueryRow(`SELECT COUNT(*) FROM shipments WHERE hct_id = ?`, hctID).Scan(&n)
	return n
}

// CommodityIDs implements RecordStore.
func (s *SQLiteStore) CommodityIDs() []string {
	rows, err := s.db.Query(`SELECT DISTINCT hct_id FROM shipments`)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
