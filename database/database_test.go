package database

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"clothdna/dna"
	"clothdna/types"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := InitDatabase(filepath.Join(t.TempDir(), "items.db"))
	if err != nil {
		t.Fatalf("InitDatabase: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func storedItem(t *testing.T, id, hash string, keypoints int) types.StoredItem {
	t.Helper()
	hist := make([]float64, types.Channels*types.HistogramBins)
	hist[0], hist[32], hist[64] = 50176, 50176, 50176
	d, err := dna.Build([3]int{224, 224, 3}, types.FeatureRecord{
		ColorMeans:     [3]float64{1.5, 2.25, 3.125},
		ColorHistogram: hist,
		KeypointCount:  keypoints,
		EdgeDensity:    0.1,
	}, id, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	return types.StoredItem{
		DNA: d,
		Record: types.AuthenticityRecord{
			ItemID:        id,
			HashHex:       hash,
			TimestampUTC:  d.TimestampUTC,
			HashPolicy:    "content",
			HashAlgorithm: "sha256",
			FeatureSummary: types.FeatureSummary{
				TraditionalFeatureCount: 10,
				FeatureValueCount:       109,
				KeypointCount:           keypoints,
				ImageSize:               d.ImageDimensions,
			},
		},
		SourcePath: "/photos/" + id + ".jpg",
		RunID:      "run-1",
	}
}

func TestPutGet(t *testing.T) {
	s := openStore(t)
	want := storedItem(t, "jacket", "aa", 7)
	if err := s.Put(want); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := s.Get("jacket")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Get mismatch:\n%+v\n%+v", got, want)
	}

	_, ok, err = s.Get("missing")
	if err != nil || ok {
		t.Errorf("Get(missing) ok=%v err=%v", ok, err)
	}
}

func TestPutLastWriteWins(t *testing.T) {
	s := openStore(t)
	if err := s.Put(storedItem(t, "jacket", "aa", 7)); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(storedItem(t, "jacket", "bb", 9)); err != nil {
		t.Fatal(err)
	}
	got, _, err := s.Get("jacket")
	if err != nil {
		t.Fatal(err)
	}
	if got.Record.HashHex != "bb" || got.DNA.Features.KeypointCount != 9 {
		t.Errorf("got %+v", got.Record)
	}
	items, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Errorf("List returned %d items", len(items))
	}
}

func TestPutRejectsMissingID(t *testing.T) {
	s := openStore(t)
	if err := s.Put(types.StoredItem{}); !errors.Is(err, types.ErrInvalidItem) {
		t.Errorf("err = %v", err)
	}
}

func TestScanStatsAndExists(t *testing.T) {
	s := openStore(t)
	for _, it := range []types.StoredItem{
		storedItem(t, "a", "h1", 1),
		storedItem(t, "b", "h1", 1),
		storedItem(t, "c", "h2", 1),
	} {
		if err := s.Put(it); err != nil {
			t.Fatal(err)
		}
	}
	other := storedItem(t, "d", "h3", 1)
	other.RunID = "run-2"
	if err := s.Put(other); err != nil {
		t.Fatal(err)
	}

	all, err := s.GetScanStats("")
	if err != nil {
		t.Fatal(err)
	}
	if all.TotalItems != 4 || all.UniqueHashes != 3 {
		t.Errorf("all stats = %+v", all)
	}
	run1, err := s.GetScanStats("run-1")
	if err != nil {
		t.Fatal(err)
	}
	if run1.TotalItems != 3 || run1.UniqueHashes != 2 {
		t.Errorf("run-1 stats = %+v", run1)
	}

	if ok, err := s.Exists("c"); err != nil || !ok {
		t.Errorf("Exists(c) = %v, %v", ok, err)
	}
	if ok, _ := s.Exists("z"); ok {
		t.Error("Exists(z) = true")
	}
}

func TestReopenKeepsItems(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.db")
	s, err := InitDatabase(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(storedItem(t, "hat", "cc", 3)); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = InitDatabase(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if _, ok, err := s.Get("hat"); err != nil || !ok {
		t.Errorf("Get after reopen ok=%v err=%v", ok, err)
	}
}
