package symbolhistory

import "testing"

func TestAddVersionSkipsUnchangedContent(t *testing.T) {
	s := New(t.TempDir())

	if err := s.AddVersion("sym1", []byte("hello"), 100); err != nil {
		t.Fatalf("AddVersion: %v", err)
	}
	if err := s.AddVersion("sym1", []byte("hello"), 200); err != nil {
		t.Fatalf("AddVersion (unchanged): %v", err)
	}

	h, err := s.LoadHistory("sym1")
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if len(h.Versions) != 1 {
		t.Fatalf("expected 1 version after repeating identical content, got %d", len(h.Versions))
	}
}

func TestAddVersionAppendsOnChange(t *testing.T) {
	s := New(t.TempDir())

	if err := s.AddVersion("sym1", []byte("hello"), 100); err != nil {
		t.Fatalf("AddVersion: %v", err)
	}
	if err := s.AddVersion("sym1", []byte("world"), 200); err != nil {
		t.Fatalf("AddVersion: %v", err)
	}

	h, err := s.LoadHistory("sym1")
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if len(h.Versions) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(h.Versions))
	}
	if h.Versions[1].VersionID != 1 {
		t.Fatalf("expected second version id 1, got %d", h.Versions[1].VersionID)
	}
	if h.Versions[1].ParentSum != h.Versions[0].ContentSum {
		t.Fatalf("expected parent sum to chain to the prior version")
	}
	if h.Stability.TotalVersions != 2 {
		t.Fatalf("expected stability.TotalVersions 2, got %d", h.Stability.TotalVersions)
	}
	if h.Stability.StabilityScore != 50.0 {
		t.Fatalf("unexpected stability score: %f", h.Stability.StabilityScore)
	}
}

func TestComputeDominance(t *testing.T) {
	graph := map[string][]string{
		"a": {"b", "c"},
		"b": {"c"},
		"c": {},
	}
	d := ComputeDominance("c", graph)
	if d.InboundLinks != 2 {
		t.Fatalf("expected 2 inbound links to c, got %d", d.InboundLinks)
	}
	if d.OutboundLinks != 0 {
		t.Fatalf("expected 0 outbound links from c, got %d", d.OutboundLinks)
	}
	if d.DominanceScore != 2 {
		t.Fatalf("expected dominance score 2, got %d", d.DominanceScore)
	}
}

func TestListSymbolIDsSortedAndEmpty(t *testing.T) {
	s := New(t.TempDir())
	ids, err := s.ListSymbolIDs()
	if err != nil {
		t.Fatalf("ListSymbolIDs on empty store: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no symbol ids, got %v", ids)
	}

	if err := s.AddVersion("zzz", []byte("1"), 1); err != nil {
		t.Fatal(err)
	}
	if err := s.AddVersion("aaa", []byte("1"), 1); err != nil {
		t.Fatal(err)
	}

	ids, err = s.ListSymbolIDs()
	if err != nil {
		t.Fatalf("ListSymbolIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != "aaa" || ids[1] != "zzz" {
		t.Fatalf("expected sorted [aaa zzz], got %v", ids)
	}
}
