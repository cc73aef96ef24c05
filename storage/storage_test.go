package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"clothdna/dna"
	"clothdna/types"
)

func result(t *testing.T, id string) types.ProcessingResult {
	t.Helper()
	hist := make([]float64, types.Channels*types.HistogramBins)
	hist[10], hist[42], hist[80] = 50176, 50176, 50176
	d, err := dna.Build([3]int{224, 224, 3}, types.FeatureRecord{
		ColorMeans:     [3]float64{80.1, 70.2, 60.3},
		ColorHistogram: hist,
		KeypointCount:  17,
		Contrast:       0.123456,
	}, id, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	return types.ProcessingResult{
		DNA:  d,
		Hash: strings.Repeat("ab", 32),
		Record: types.AuthenticityRecord{
			ItemID:        id,
			HashHex:       strings.Repeat("ab", 32),
			TimestampUTC:  d.TimestampUTC,
			HashPolicy:    "content",
			HashAlgorithm: "sha256",
		},
	}
}

func TestWriteAndRead(t *testing.T) {
	s, err := NewDocumentStore(filepath.Join(t.TempDir(), "out"))
	if err != nil {
		t.Fatal(err)
	}
	res := result(t, "dress_01")
	if err := s.Write(res); err != nil {
		t.Fatalf("Write: %v", err)
	}

	for _, name := range []string{"dress_01_full_data.json", "dress_01_authenticity_record.json"} {
		if _, err := os.Stat(filepath.Join(s.Dir(), name)); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}

	gotDNA, err := s.ReadDNA("dress_01")
	if err != nil {
		t.Fatalf("ReadDNA: %v", err)
	}
	if !reflect.DeepEqual(gotDNA, res.DNA) {
		t.Errorf("DNA mismatch:\n%+v\n%+v", gotDNA, res.DNA)
	}
	gotRec, err := s.ReadRecord("dress_01")
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if gotRec != res.Record {
		t.Errorf("record mismatch: %+v", gotRec)
	}

	leftovers, _ := filepath.Glob(filepath.Join(s.Dir(), "*.tmp"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestWriteRejectsUnsafeIDs(t *testing.T) {
	s, err := NewDocumentStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"", "..", "a/b", `a\b`} {
		res := result(t, "x")
		res.DNA.ItemID = id
		if err := s.Write(res); err == nil {
			t.Errorf("Write(%q) succeeded", id)
		}
	}
}

func TestConcurrentWrites(t *testing.T) {
	s, err := NewDocumentStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	results := make([]types.ProcessingResult, 8)
	for i := range results {
		results[i] = result(t, fmt.Sprintf("item_%d", i%3))
	}
	var wg sync.WaitGroup
	for _, res := range results {
		wg.Add(1)
		go func(res types.ProcessingResult) {
			defer wg.Done()
			if err := s.Write(res); err != nil {
				t.Error(err)
			}
		}(res)
	}
	wg.Wait()

	docs, _ := filepath.Glob(filepath.Join(s.Dir(), "*_full_data.json"))
	if len(docs) != 3 {
		t.Errorf("found %d documents, want 3", len(docs))
	}
}
