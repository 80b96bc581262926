package symbol

import "testing"

func TestNewComputesHash(t *testing.T) {
	s := New([]byte("abcdef"), 256, 10)
	if len(s.Hash) != 32 {
		t.Fatalf("expected 32-char hash, got %d", len(s.Hash))
	}
	if s.ID() != "sym:"+s.Hash {
		t.Fatalf("unexpected ID: %s", s.ID())
	}
}

func TestNewCopiesBytes(t *testing.T) {
	original := []byte("mutate me")
	s := New(original, 256, 1)
	original[0] = 'X'
	if s.Bytes[0] == 'X' {
		t.Fatalf("Symbol.Bytes should be independent of caller's slice")
	}
}

func TestIdenticalContentSameHash(t *testing.T) {
	a := New([]byte("repeat"), 256, 1)
	b := New([]byte("repeat"), 257, 5)
	if a.Hash != b.Hash {
		t.Fatalf("identical content must hash identically regardless of token/gain")
	}
}
