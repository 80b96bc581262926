package symbolstore

import (
	"os"
	"path/filepath"
	"testing"

	"symvea.dev/store/internal/coordination"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	return New(dir, coordination.New(dir))
}

func TestStoreAndLoadSymbol(t *testing.T) {
	s := newTestStore(t)
	if err := s.StoreSymbol("abc123", []byte("hello")); err != nil {
		t.Fatalf("StoreSymbol: %v", err)
	}
	meta, data, err := s.LoadSymbol("abc123")
	if err != nil {
		t.Fatalf("LoadSymbol: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("got %q want %q", data, "hello")
	}
	if meta.Size != 5 {
		t.Fatalf("expected size 5, got %d", meta.Size)
	}
}

func TestStoreSymbolWriteOnce(t *testing.T) {
	s := newTestStore(t)
	if err := s.StoreSymbol("h", []byte("original")); err != nil {
		t.Fatalf("StoreSymbol: %v", err)
	}
	if err := s.StoreSymbol("h", []byte("different")); err != nil {
		t.Fatalf("StoreSymbol (second call): %v", err)
	}
	_, data, err := s.LoadSymbol("h")
	if err != nil {
		t.Fatalf("LoadSymbol: %v", err)
	}
	if string(data) != "original" {
		t.Fatalf("expected immutable first write to survive, got %q", data)
	}
}

func TestLoadSymbolLegacyFallback(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, coordination.New(dir))
	if err := os.MkdirAll(filepath.Join(dir, "symbols"), 0o755); err != nil {
		t.Fatal(err)
	}
	legacyPath := filepath.Join(dir, "symbols", "legacyhash")
	if err := os.WriteFile(legacyPath, []byte("legacy bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	meta, data, err := s.LoadSymbol("legacyhash")
	if err != nil {
		t.Fatalf("LoadSymbol legacy: %v", err)
	}
	if string(data) != "legacy bytes" {
		t.Fatalf("got %q", data)
	}
	if meta.Hash != "legacyhash" {
		t.Fatalf("expected reconstructed hash field, got %q", meta.Hash)
	}
}

func TestRecordUsageConsistency(t *testing.T) {
	s := newTestStore(t)
	if err := s.RecordUsage("h1", "obj-a", 5, 3); err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}
	if err := s.RecordUsage("h1", "obj-b", 5, 2); err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}
	usage, err := s.GetUsage("h1")
	if err != nil {
		t.Fatalf("GetUsage: %v", err)
	}
	if usage.TotalOccurrences != 5 {
		t.Fatalf("expected total occurrences 5, got %d", usage.TotalOccurrences)
	}
	if usage.TotalBytesContributed != 25 {
		t.Fatalf("expected total bytes contributed 25, got %d", usage.TotalBytesContributed)
	}
	var sum int64
	for _, c := range usage.Objects {
		sum += c
	}
	if sum != usage.TotalOccurrences {
		t.Fatalf("usage consistency invariant violated: sum(objects)=%d total=%d", sum, usage.TotalOccurrences)
	}
}

func TestSymbolUsageBinaryRoundTrip(t *testing.T) {
	u := SymbolUsage{
		SymbolHash:            "deadbeef",
		SymbolSize:            7,
		TotalOccurrences:      9,
		TotalBytesContributed: 63,
		Objects:               map[string]int64{"obj-a": 4, "obj-b": 5},
	}
	got, err := UnmarshalSymbolUsage(u.Marshal())
	if err != nil {
		t.Fatalf("UnmarshalSymbolUsage: %v", err)
	}
	if got.SymbolHash != u.SymbolHash || got.SymbolSize != u.SymbolSize ||
		got.TotalOccurrences != u.TotalOccurrences || got.TotalBytesContributed != u.TotalBytesContributed {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, u)
	}
	if len(got.Objects) != 2 || got.Objects["obj-a"] != 4 || got.Objects["obj-b"] != 5 {
		t.Fatalf("objects mismatch: %v", got.Objects)
	}
}

func TestSymbolUsageMarshalDeterministic(t *testing.T) {
	u := SymbolUsage{SymbolHash: "h", SymbolSize: 1, Objects: map[string]int64{"b": 2, "a": 1, "c": 3}}
	first := u.Marshal()
	for i := 0; i < 5; i++ {
		if string(u.Marshal()) != string(first) {
			t.Fatalf("marshal must be byte-stable regardless of map iteration order")
		}
	}
}

func TestUnmarshalSymbolUsageRejectsTruncated(t *testing.T) {
	u := SymbolUsage{SymbolHash: "h", SymbolSize: 1, Objects: map[string]int64{"k": 1}}
	data := u.Marshal()
	if _, err := UnmarshalSymbolUsage(data[:len(data)-1]); err == nil {
		t.Fatalf("expected truncated record to be rejected")
	}
}

func TestRecordUsageRejectsSizeMismatch(t *testing.T) {
	s := newTestStore(t)
	if err := s.RecordUsage("h1", "obj-a", 5, 1); err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}
	if err := s.RecordUsage("h1", "obj-b", 9, 1); err == nil {
		t.Fatalf("expected error on conflicting size for same symbol hash")
	}
}

func TestRecordUsageRefreshesStoredUsageCount(t *testing.T) {
	s := newTestStore(t)
	if err := s.StoreSymbol("h1", []byte("abcde")); err != nil {
		t.Fatalf("StoreSymbol: %v", err)
	}
	if err := s.RecordUsage("h1", "obj-a", 5, 3); err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}
	if err := s.RecordUsage("h1", "obj-b", 5, 4); err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}
	meta, _, err := s.LoadSymbol("h1")
	if err != nil {
		t.Fatalf("LoadSymbol: %v", err)
	}
	if meta.UsageCount != 7 {
		t.Fatalf("expected metadata usage count 7, got %d", meta.UsageCount)
	}
}

func TestVerifyAllDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, coordination.New(dir))
	if err := s.StoreSymbol("goodhash", []byte("clean data")); err != nil {
		t.Fatalf("StoreSymbol: %v", err)
	}
	if err := s.VerifyAll(); err != nil {
		t.Fatalf("expected clean VerifyAll, got %v", err)
	}

	binPath := filepath.Join(dir, "symbols", "sym_goodhash.bin")
	if err := os.WriteFile(binPath, []byte("tampered!!!"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.VerifyAll(); err == nil {
		t.Fatalf("expected VerifyAll to detect tampering")
	}
}

func TestCountSymbols(t *testing.T) {
	s := newTestStore(t)
	if err := s.StoreSymbol("a", []byte("1")); err != nil {
		t.Fatal(err)
	}
	if err := s.StoreSymbol("b", []byte("2")); err != nil {
		t.Fatal(err)
	}
	n, err := s.CountSymbols()
	if err != nil {
		t.Fatalf("CountSymbols: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 symbols, got %d", n)
	}
}

func TestLayeredFallsThroughToMounts(t *testing.T) {
	writable := newTestStore(t)
	mount := newTestStore(t)
	if err := mount.StoreSymbol("archived", []byte("old data")); err != nil {
		t.Fatal(err)
	}
	l := &Layered{Writable: writable, ReadOnlyMounts: []*Store{mount}}

	_, data, err := l.LoadSymbol("archived")
	if err != nil {
		t.Fatalf("LoadSymbol via mount: %v", err)
	}
	if string(data) != "old data" {
		t.Fatalf("got %q", data)
	}

	if err := l.StoreSymbol("fresh", []byte("new data")); err != nil {
		t.Fatalf("StoreSymbol: %v", err)
	}
	if _, _, err := mount.LoadSymbol("fresh"); err == nil {
		t.Fatalf("expected writes to never land on a read-only mount")
	}
}

func TestLayeredListSymbolsUnionsAndDedups(t *testing.T) {
	writable := newTestStore(t)
	mount := newTestStore(t)
	if err := writable.StoreSymbol("shared", []byte("v1")); err != nil {
		t.Fatal(err)
	}
	if err := mount.StoreSymbol("shared", []byte("v1")); err != nil {
		t.Fatal(err)
	}
	if err := mount.StoreSymbol("mount-only", []byte("v2")); err != nil {
		t.Fatal(err)
	}
	l := &Layered{Writable: writable, ReadOnlyMounts: []*Store{mount}}
	hashes, err := l.ListSymbols()
	if err != nil {
		t.Fatalf("ListSymbols: %v", err)
	}
	if len(hashes) != 2 {
		t.Fatalf("expected 2 deduplicated hashes, got %d: %v", len(hashes), hashes)
	}
}
