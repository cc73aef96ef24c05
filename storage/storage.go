// Package storage writes the per-item JSON documents: the full DigitalDNA
// and its AuthenticityRecord.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"clothdna/dna"
	"clothdna/logging"
	"clothdna/types"
)

const (
	fullDataSuffix = "_full_data.json"
	recordSuffix   = "_authenticity_record.json"
	lockName       = ".clothdna.lock"
)

// DocumentStore writes documents into one directory. Writes are atomic and
// serialized across goroutines and processes sharing the directory.
type DocumentStore struct {
	dir  string
	mu   sync.Mutex
	lock *flock.Flock
}

// NewDocumentStore creates dir if needed.
func NewDocumentStore(dir string) (*DocumentStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &DocumentStore{
		dir:  dir,
		lock: flock.New(filepath.Join(dir, lockName)),
	}, nil
}

// Dir returns the output directory.
func (s *DocumentStore) Dir() string { return s.dir }

// FullDataPath returns the DNA document path for itemID.
func (s *DocumentStore) FullDataPath(itemID string) string {
	return filepath.Join(s.dir, itemID+fullDataSuffix)
}

// RecordPath returns the authenticity record path for itemID.
func (s *DocumentStore) RecordPath(itemID string) string {
	return filepath.Join(s.dir, itemID+recordSuffix)
}

func checkID(itemID string) error {
	if itemID == "" {
		return types.ErrInvalidItem
	}
	if itemID == "." || itemID == ".." || strings.ContainsAny(itemID, `/\`) {
		return fmt.Errorf("item id %q cannot be used as a file name", itemID)
	}
	return nil
}

// Write stores both documents for result.
func (s *DocumentStore) Write(result types.ProcessingResult) error {
	id := result.DNA.ItemID
	if err := checkID(id); err != nil {
		return err
	}

	canonical, err := dna.Canonical(result.DNA)
	if err != nil {
		return err
	}
	full, err := dna.Indent(canonical)
	if err != nil {
		return err
	}
	record, err := json.MarshalIndent(result.Record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	record = append(record, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock output dir: %w", err)
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			logging.LogWarning("failed to release output dir lock", "error", err)
		}
	}()

	if err := writeFileAtomic(s.FullDataPath(id), full, 0o644); err != nil {
		return err
	}
	if err := writeFileAtomic(s.RecordPath(id), record, 0o644); err != nil {
		return err
	}
	logging.DebugLog("documents written", "item", id, "dir", s.dir)
	return nil
}

// ReadDNA loads the DNA document for itemID.
func (s *DocumentStore) ReadDNA(itemID string) (types.DigitalDNA, error) {
	if err := checkID(itemID); err != nil {
		return types.DigitalDNA{}, err
	}
	data, err := os.ReadFile(s.FullDataPath(itemID))
	if err != nil {
		return types.DigitalDNA{}, err
	}
	return dna.Parse(data)
}

// ReadRecord loads the authenticity record for itemID.
func (s *DocumentStore) ReadRecord(itemID string) (types.AuthenticityRecord, error) {
	if err := checkID(itemID); err != nil {
		return types.AuthenticityRecord{}, err
	}
	data, err := os.ReadFile(s.RecordPath(itemID))
	if err != nil {
		return types.AuthenticityRecord{}, err
	}
	var rec types.AuthenticityRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return types.AuthenticityRecord{}, fmt.Errorf("decode record %s: %w", itemID, err)
	}
	return rec, nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "doc-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
