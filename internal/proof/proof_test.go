package proof

import (
	"os"
	"path/filepath"
	"testing"

	"symvea.dev/store/internal/coordination"
	"symvea.dev/store/internal/corpus"
	"symvea.dev/store/internal/symbolstore"
)

func newTestVerifier(t *testing.T, dictID string) (*Verifier, string) {
	t.Helper()
	dataDir := t.TempDir()
	coord := coordination.New(dataDir)
	symbols := symbolstore.New(dataDir, coord)
	corpusStore := corpus.New(dataDir)
	return New(symbols, corpusStore, dictID), dataDir
}

func TestGenerateReportAllVerifiedWhenClean(t *testing.T) {
	v, _ := newTestVerifier(t, "mutable")
	if err := v.Symbols.StoreSymbol("h1", []byte("one")); err != nil {
		t.Fatal(err)
	}
	if err := v.Symbols.StoreSymbol("h2", []byte("two")); err != nil {
		t.Fatal(err)
	}

	report, err := v.GenerateReport()
	if err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}
	if report.TotalSymbols != 2 || report.VerifiedSymbols != 2 {
		t.Fatalf("expected all 2 symbols verified, got %+v", report)
	}
	if len(report.CorruptedSymbols) != 0 {
		t.Fatalf("expected no corrupted symbols, got %v", report.CorruptedSymbols)
	}
	if report.IntegrityScore != 100.0 {
		t.Fatalf("expected integrity score 100, got %f", report.IntegrityScore)
	}
	if report.AttestationDigest == "" {
		t.Fatalf("expected a non-empty attestation digest")
	}
}

func TestGenerateReportDetectsCorruption(t *testing.T) {
	v, dataDir := newTestVerifier(t, "mutable")
	if err := v.Symbols.StoreSymbol("h1", []byte("original content")); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dataDir, "symbols", "sym_h1.bin"), []byte("corrupted"), 0o644); err != nil {
		t.Fatal(err)
	}

	report, err := v.GenerateReport()
	if err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}
	if report.VerifiedSymbols != 0 {
		t.Fatalf("expected 0 verified after corruption, got %d", report.VerifiedSymbols)
	}
	if len(report.CorruptedSymbols) != 1 || report.CorruptedSymbols[0] != "h1" {
		t.Fatalf("expected h1 reported corrupted, got %v", report.CorruptedSymbols)
	}
	if report.IntegrityScore != 0.0 {
		t.Fatalf("expected integrity score 0, got %f", report.IntegrityScore)
	}
}

func TestGenerateReportEmptyCorpusScoresFull(t *testing.T) {
	v, _ := newTestVerifier(t, "mutable")
	report, err := v.GenerateReport()
	if err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}
	if report.TotalSymbols != 0 || report.IntegrityScore != 100.0 {
		t.Fatalf("expected an empty corpus to score 100, got %+v", report)
	}
}

func TestAttestationDigestChangesWithDictID(t *testing.T) {
	v1, _ := newTestVerifier(t, "mutable")
	v2, _ := newTestVerifier(t, "frozen-abc")

	r1, err := v1.GenerateReport()
	if err != nil {
		t.Fatal(err)
	}
	r2, err := v2.GenerateReport()
	if err != nil {
		t.Fatal(err)
	}
	if r1.AttestationDigest == r2.AttestationDigest {
		t.Fatalf("expected different dict ids to produce different digests")
	}
}
