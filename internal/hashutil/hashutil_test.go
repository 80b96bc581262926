package hashutil

import "testing"

func TestSymbolHashLength(t *testing.T) {
	h := SymbolHash([]byte("hello world"))
	if len(h) != 32 {
		t.Fatalf("expected 32 hex chars, got %d (%s)", len(h), h)
	}
}

func TestSymbolHashDeterministic(t *testing.T) {
	a := SymbolHash([]byte("the quick brown fox"))
	b := SymbolHash([]byte("the quick brown fox"))
	if a != b {
		t.Fatalf("expected identical hash for identical content: %s != %s", a, b)
	}
	c := SymbolHash([]byte("the quick brown dog"))
	if a == c {
		t.Fatalf("expected different hash for different content")
	}
}

func TestChecksumRoundTrip(t *testing.T) {
	payload := []byte("frame payload bytes")
	sum := Checksum(payload)
	if !VerifyChecksum(payload, sum) {
		t.Fatalf("expected checksum to verify")
	}
	if VerifyChecksum(payload, sum^1) {
		t.Fatalf("expected single-bit corruption to fail verification")
	}
}

func TestFileIDDeterministic(t *testing.T) {
	a := FileID("hello")
	b := FileID("hello")
	if a != b {
		t.Fatalf("expected deterministic file id")
	}
	if len(a) != 8 {
		t.Fatalf("expected 8 hex chars (u32), got %d", len(a))
	}
}
