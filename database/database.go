// Package database persists registered items in sqlite.
package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"clothdna/dna"
	"clothdna/logging"
	"clothdna/types"

	_ "github.com/mattn/go-sqlite3"
)

// Store is a sqlite-backed item repository. Puts are last-write-wins per
// item id.
type Store struct {
	db *sql.DB
}

// InitDatabase opens dbPath, creating the schema when needed.
func InitDatabase(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS items (
		item_id TEXT PRIMARY KEY,
		hash TEXT NOT NULL,
		hash_policy TEXT NOT NULL,
		hash_algorithm TEXT NOT NULL,
		timestamp_utc TEXT NOT NULL,
		summary TEXT NOT NULL,
		dna BLOB NOT NULL,
		source_path TEXT,
		stored_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_hash ON items(hash);
	CREATE INDEX IF NOT EXISTS idx_source_path ON items(source_path);`

	if _, err = db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, err
	}

	// run_id was added after the first schema; older files lack it.
	var hasRunIDColumn bool
	err = db.QueryRow("SELECT COUNT(*) FROM pragma_table_info('items') WHERE name='run_id'").Scan(&hasRunIDColumn)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("error checking for run_id column: %v", err)
	}
	if !hasRunIDColumn {
		if _, err = db.Exec("ALTER TABLE items ADD COLUMN run_id TEXT;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("error adding run_id column: %v", err)
		}
		logging.DebugLog("added run_id column to items table")
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores item, replacing any earlier item with the same id.
func (s *Store) Put(item types.StoredItem) error {
	if item.DNA.ItemID == "" {
		return types.ErrInvalidItem
	}
	blob, err := dna.EncodeArchive(item.DNA)
	if err != nil {
		return err
	}
	summary, err := json.Marshal(item.Record.FeatureSummary)
	if err != nil {
		return fmt.Errorf("cannot encode summary for %s: %v", item.DNA.ItemID, err)
	}

	stmt, err := s.db.Prepare(`
		INSERT OR REPLACE INTO items (
			item_id, hash, hash_policy, hash_algorithm, timestamp_utc, summary, dna, source_path, stored_at, run_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("cannot prepare statement for %s: %v", item.DNA.ItemID, err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(
		item.DNA.ItemID,
		item.Record.HashHex,
		item.Record.HashPolicy,
		item.Record.HashAlgorithm,
		item.Record.TimestampUTC,
		string(summary),
		blob,
		item.SourcePath,
		time.Now().UTC().Format(time.RFC3339),
		item.RunID,
	)
	if err != nil {
		return fmt.Errorf("cannot insert data for %s: %v", item.DNA.ItemID, err)
	}
	return nil
}

const selectColumns = `item_id, hash, hash_policy, hash_algorithm, timestamp_utc, summary, dna,
	COALESCE(source_path, ''), COALESCE(run_id, '')`

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (types.StoredItem, error) {
	var (
		item    types.StoredItem
		summary string
		blob    []byte
	)
	err := row.Scan(
		&item.Record.ItemID,
		&item.Record.HashHex,
		&item.Record.HashPolicy,
		&item.Record.HashAlgorithm,
		&item.Record.TimestampUTC,
		&summary,
		&blob,
		&item.SourcePath,
		&item.RunID,
	)
	if err != nil {
		return types.StoredItem{}, err
	}
	if err := json.Unmarshal([]byte(summary), &item.Record.FeatureSummary); err != nil {
		return types.StoredItem{}, fmt.Errorf("cannot decode summary for %s: %v", item.Record.ItemID, err)
	}
	item.DNA, err = dna.DecodeArchive(blob)
	if err != nil {
		return types.StoredItem{}, fmt.Errorf("cannot decode dna for %s: %w", item.Record.ItemID, err)
	}
	return item, nil
}

// Get returns the item stored under itemID. ok is false when there is none.
func (s *Store) Get(itemID string) (types.StoredItem, bool, error) {
	row := s.db.QueryRow("SELECT "+selectColumns+" FROM items WHERE item_id = ?", itemID)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.StoredItem{}, false, nil
	}
	if err != nil {
		return types.StoredItem{}, false, fmt.Errorf("database error for %s: %w", itemID, err)
	}
	return item, true, nil
}

// Exists reports whether an item with itemID is stored.
func (s *Store) Exists(itemID string) (bool, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM items WHERE item_id = ?", itemID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("database error for %s: %v", itemID, err)
	}
	return count > 0, nil
}

// List returns every stored item ordered by id.
func (s *Store) List() ([]types.StoredItem, error) {
	rows, err := s.db.Query("SELECT " + selectColumns + " FROM items ORDER BY item_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []types.StoredItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ScanStats contains statistics about stored items
type ScanStats struct {
	TotalItems   int
	UniqueHashes int
}

// GetScanStats counts stored items, optionally restricted to one scan run.
func (s *Store) GetScanStats(runID string) (*ScanStats, error) {
	var stats ScanStats

	where := ""
	var args []interface{}
	if runID != "" {
		where = " WHERE run_id = ?"
		args = append(args, runID)
	}

	err := s.db.QueryRow("SELECT COUNT(*) FROM items"+where, args...).Scan(&stats.TotalItems)
	if err != nil {
		return nil, fmt.Errorf("failed to get total items: %v", err)
	}
	err = s.db.QueryRow("SELECT COUNT(DISTINCT hash) FROM items"+where, args...).Scan(&stats.UniqueHashes)
	if err != nil {
		return nil, fmt.Errorf("failed to get unique hashes: %v", err)
	}
	return &stats, nil
}
