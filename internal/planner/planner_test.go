package planner

import (
	"bytes"
	"strings"
	"testing"
)

func TestPlanFindsRepeatedSubstring(t *testing.T) {
	data := []byte(strings.Repeat("abcd", 50))
	candidates := Plan(data, 16, 256)
	if len(candidates) == 0 {
		t.Fatalf("expected at least one candidate for highly repetitive input")
	}
	found := false
	for _, c := range candidates {
		if string(c.Bytes) == "abcd" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected 'abcd' among candidates: %+v", candidates)
	}
}

func TestPlanTokensAssignedSequentially(t *testing.T) {
	data := []byte(strings.Repeat("xyz", 30))
	candidates := Plan(data, 16, 500)
	for i, c := range candidates {
		want := uint32(500 + i)
		if c.Token != want {
			t.Fatalf("candidate %d: token %d, want %d", i, c.Token, want)
		}
	}
}

func TestPlanSortedDescendingByGain(t *testing.T) {
	data := []byte(strings.Repeat("aa", 20) + strings.Repeat("bbbb", 20))
	candidates := Plan(data, 16, 256)
	for i := 1; i < len(candidates); i++ {
		if candidates[i].Gain > candidates[i-1].Gain {
			t.Fatalf("candidates not sorted descending by gain at index %d", i)
		}
	}
}

func TestPlanCapsAt1000(t *testing.T) {
	// Build an input with many distinct 2-byte substrings of positive gain.
	var buf bytes.Buffer
	for i := 0; i < 2000; i++ {
		buf.WriteByte(byte(i % 256))
		buf.WriteByte(byte((i * 7) % 256))
		buf.WriteByte(byte(i % 256))
		buf.WriteByte(byte((i * 7) % 256))
	}
	candidates := Plan(buf.Bytes(), 16, 256)
	if len(candidates) > MaxCandidates {
		t.Fatalf("expected at most %d candidates, got %d", MaxCandidates, len(candidates))
	}
}

func TestPlanUniqueBytesKeepsOnlyPositiveGain(t *testing.T) {
	// Every substring occurs once, so gain = len - 2: 2-byte substrings
	// (gain 0) are dropped and each of the 27-L substrings of length
	// L = 3..16 is kept, 245 in all.
	data := []byte("abcdefghijklmnopqrstuvwxyz")
	candidates := Plan(data, 16, 256)
	if len(candidates) != 245 {
		t.Fatalf("expected 245 candidates for non-repeating input, got %d", len(candidates))
	}
	for _, c := range candidates {
		if len(c.Bytes) < 3 {
			t.Fatalf("zero-gain substring %q returned as a candidate", c.Bytes)
		}
	}
}

func TestPlanSamplesLargeInput(t *testing.T) {
	// Build >1MiB of data where a repeated pattern only occurs after the
	// sampled prefix; it must not be discovered.
	large := make([]byte, (1<<20)+1024)
	for i := range large {
		large[i] = byte(i % 251) // mostly non-repeating filler
	}
	marker := []byte("ZZUNIQUEMARKERZZ")
	copy(large[len(large)-len(marker)*4:], bytes.Repeat(marker, 4))

	candidates := Plan(large, 16, 256)
	for _, c := range candidates {
		if string(c.Bytes) == string(marker) {
			t.Fatalf("planner should not see patterns beyond the sampled prefix")
		}
	}
}

func TestPlanRespectsEffectiveMaxLen(t *testing.T) {
	data := []byte(strings.Repeat("abcdefghijklmnopqrstuvwxyz", 10))
	candidates := Plan(data, 64, 256)
	for _, c := range candidates {
		if len(c.Bytes) > MaxEffectiveLen {
			t.Fatalf("candidate exceeds effective max length 16: %d", len(c.Bytes))
		}
	}
}
