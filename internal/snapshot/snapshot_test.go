package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"symvea.dev/store/internal/coordination"
	"symvea.dev/store/internal/corpus"
	"symvea.dev/store/internal/objectstore"
	"symvea.dev/store/internal/symbolstore"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	dataDir := t.TempDir()
	coord := coordination.New(dataDir)
	symbols := symbolstore.New(dataDir, coord)
	corpusStore := corpus.New(dataDir)
	return New(dataDir, symbols, corpusStore), dataDir
}

func TestCreateAndLoadLatestSnapshot(t *testing.T) {
	m, _ := newTestManager(t)

	if err := m.Symbols.StoreSymbol("aaaa", []byte("hello")); err != nil {
		t.Fatalf("StoreSymbol: %v", err)
	}
	if err := m.Corpus.StoreFileMetadata("k1", objectstore.NewObjectMetadata(
		"k1", "hash1", "hash1", "mutable", 5, 5, 0, nil, nil, 0, objectstore.ObjectMetadata{}.TokenBreakdown,
	)); err != nil {
		t.Fatalf("StoreFileMetadata: %v", err)
	}
	if _, err := m.Corpus.RebuildIndex(1, 5); err != nil {
		t.Fatalf("RebuildIndex: %v", err)
	}

	snap, err := m.Create(100)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(snap.Symbols) != 1 || snap.Symbols[0].Hash != "aaaa" {
		t.Fatalf("unexpected symbol refs: %+v", snap.Symbols)
	}
	if len(snap.Files) != 1 || snap.Files[0].Key != "k1" {
		t.Fatalf("unexpected file refs: %+v", snap.Files)
	}

	if _, err := m.Create(200); err != nil {
		t.Fatalf("Create (second epoch): %v", err)
	}

	latest, ok, err := m.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if !ok || latest.Epoch != 200 {
		t.Fatalf("expected latest epoch 200, got ok=%v epoch=%d", ok, latest.Epoch)
	}
}

func TestLoadLatestWithNoSnapshots(t *testing.T) {
	m, _ := newTestManager(t)
	_, ok, err := m.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if ok {
		t.Fatalf("expected no snapshot to be found")
	}
}

func TestListReturnsEpochsAscending(t *testing.T) {
	m, _ := newTestManager(t)
	for _, epoch := range []int64{300, 100, 200} {
		if _, err := m.Create(epoch); err != nil {
			t.Fatalf("Create(%d): %v", epoch, err)
		}
	}
	epochs, err := m.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(epochs) != 3 || epochs[0] != 100 || epochs[1] != 200 || epochs[2] != 300 {
		t.Fatalf("expected ascending [100 200 300], got %v", epochs)
	}
}

func TestRestoreReportsMissingSymbols(t *testing.T) {
	m, dataDir := newTestManager(t)
	if err := m.Symbols.StoreSymbol("present", []byte("x")); err != nil {
		t.Fatal(err)
	}
	snap := Snapshot{
		Epoch: 50,
		Symbols: []SymbolRef{
			{ID: "sym:present", Hash: "present", Size: 1},
			{ID: "sym:gone", Hash: "gone", Size: 1},
		},
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dataDir, "snapshots"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, "snapshots", "snapshot_50.json"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	report, err := m.Restore(50)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if report.SymbolCount != 2 {
		t.Fatalf("expected symbol count 2, got %d", report.SymbolCount)
	}
	if len(report.MissingSymbols) != 1 || report.MissingSymbols[0] != "gone" {
		t.Fatalf("expected only 'gone' reported missing, got %v", report.MissingSymbols)
	}
}
