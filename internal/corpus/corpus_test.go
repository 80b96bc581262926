package corpus

import (
	"testing"

	"symvea.dev/store/internal/codec"
	"symvea.dev/store/internal/objectstore"
)

func TestStoreFileMetadataAndRebuildIndex(t *testing.T) {
	s := New(t.TempDir())
	meta := objectstore.NewObjectMetadata("hello", "objhash", "orighash", "mutable", 23, 12, 1000, nil,
		[]codec.SymbolInfo{{Hash: "sym1", Bytes: 5}}, 0.5, codec.TokenBreakdown{SymbolBytes: 10, LiteralBytes: 13})

	if err := s.StoreFileMetadata("hello", meta); err != nil {
		t.Fatalf("StoreFileMetadata: %v", err)
	}
	n, err := s.CountFiles()
	if err != nil {
		t.Fatalf("CountFiles: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 file entry, got %d", n)
	}

	index, err := s.RebuildIndex(3, 1024)
	if err != nil {
		t.Fatalf("RebuildIndex: %v", err)
	}
	if len(index.Files) != 1 {
		t.Fatalf("expected 1 file in index, got %d", len(index.Files))
	}
	if index.Files[0].Key != "hello" || index.Files[0].OriginalHash != "orighash" {
		t.Fatalf("unexpected file entry: %+v", index.Files[0])
	}
	if len(index.Files[0].Symbols) != 1 || index.Files[0].Symbols[0] != "sym1" {
		t.Fatalf("unexpected symbols: %v", index.Files[0].Symbols)
	}
	if index.SymbolCount != 3 || index.TotalSize != 1024 {
		t.Fatalf("unexpected index rollup: %+v", index)
	}
}

func TestLoadIndexMissingReturnsEmpty(t *testing.T) {
	s := New(t.TempDir())
	index, err := s.LoadIndex()
	if err != nil {
		t.Fatalf("LoadIndex: %v", err)
	}
	if len(index.Files) != 0 {
		t.Fatalf("expected empty index, got %+v", index)
	}
}

func TestRebuildIndexPersistsAndReloads(t *testing.T) {
	s := New(t.TempDir())
	meta := objectstore.NewObjectMetadata("k", "oh", "orh", "mutable", 1, 1, 1, nil, nil, 0, codec.TokenBreakdown{})
	if err := s.StoreFileMetadata("k", meta); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RebuildIndex(1, 10); err != nil {
		t.Fatalf("RebuildIndex: %v", err)
	}
	loaded, err := s.LoadIndex()
	if err != nil {
		t.Fatalf("LoadIndex: %v", err)
	}
	if loaded.SymbolCount != 1 || loaded.TotalSize != 10 {
		t.Fatalf("unexpected reloaded index: %+v", loaded)
	}
}
