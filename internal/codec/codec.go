// Package codec is the upload/download glue: plan-or-tokenize, advance the
// dictionary, build the per-object entropy table, and expand tokens back
// to bytes on the way out. Callers are responsible for holding the
// dictionary mutex across one full Compress or Decompress call, per the
// concurrency model: the codec itself does no locking.
package codec

import (
	"fmt"

	"symvea.dev/store/internal/dictionary"
	"symvea.dev/store/internal/entropy"
	"symvea.dev/store/internal/hashutil"
	"symvea.dev/store/internal/planner"
	"symvea.dev/store/internal/tokenizer"
)

// plannerMaxLen is the max_len argument passed to the planner; the planner
// itself clamps the effective value to 16.
const plannerMaxLen = 16

// SymbolSink receives newly-planned symbol blobs and usage updates during
// compression. Implementations are expected to make StoreSymbol idempotent
// (write-once), and RecordUsage to replace the count recorded for the
// (symbol, object) pair and keep the symbol's totals consistent with it.
type SymbolSink interface {
	StoreSymbol(hash string, bytes []byte) error
	RecordUsage(hash string, objectKey string, size int, occurrences int64) error
}

// SymbolInfo mirrors the per-object metadata record of a symbol this
// object's token stream referenced.
type SymbolInfo struct {
	Hash  string
	Bytes uint64
}

// TokenBreakdown covers an object's original bytes exactly:
// SymbolBytes + LiteralBytes == original size.
type TokenBreakdown struct {
	SymbolBytes   uint64
	LiteralBytes  uint64
	LiteralReason string
}

// Result is everything the compressor produces for one object.
type Result struct {
	Payload        []byte
	Symbols        []SymbolInfo
	ExplainedRatio float64
	Breakdown      TokenBreakdown
}

// Compress encodes input against dict, mining new symbols if dict is
// mutable or recording real usage counts if it is frozen, then emits the
// per-object entropy-coded payload.
func Compress(input []byte, dict *dictionary.Dictionary, sink SymbolSink, objectKey string) (*Result, error) {
	if !dict.Frozen() {
		candidates := planner.Plan(input, plannerMaxLen, dict.NextToken())
		for _, s := range candidates {
			if err := sink.StoreSymbol(s.Hash, s.Bytes); err != nil {
				return nil, fmt.Errorf("codec: store symbol %s: %w", s.Hash, err)
			}
			if err := sink.RecordUsage(s.Hash, objectKey, len(s.Bytes), 1); err != nil {
				return nil, fmt.Errorf("codec: record usage %s: %w", s.Hash, err)
			}
			dict.Insert(s.Bytes, s.Token)
		}
	} else {
		snapshot := dict.Snapshot()
		automaton := tokenizer.GetOrBuild(snapshot)
		toks := tokenizer.Tokenize(input, automaton)
		counts := make(map[uint32]int64)
		for _, t := range toks {
			if t >= 256 {
				counts[t]++
			}
		}
		for tok, c := range counts {
			b, ok := dict.Decode(tok)
			if !ok {
				continue
			}
			hash := hashutil.SymbolHash(b)
			if err := sink.RecordUsage(hash, objectKey, len(b), c); err != nil {
				return nil, fmt.Errorf("codec: record usage %s: %w", hash, err)
			}
		}
	}

	snapshot := dict.Snapshot()
	automaton := tokenizer.GetOrBuild(snapshot)
	tokens := tokenizer.Tokenize(input, automaton)

	var explainedBytes, literalBytes uint64
	seen := make(map[string]bool)
	var symbols []SymbolInfo
	for _, t := range tokens {
		if b, ok := dict.Decode(t); ok {
			explainedBytes += uint64(len(b))
			hash := hashutil.SymbolHash(b)
			if !seen[hash] {
				seen[hash] = true
				symbols = append(symbols, SymbolInfo{Hash: hash, Bytes: uint64(len(b))})
			}
		} else {
			literalBytes++
		}
	}

	explainedRatio := 0.0
	if len(input) > 0 {
		explainedRatio = float64(explainedBytes) / float64(len(input))
	}

	breakdown := TokenBreakdown{SymbolBytes: explainedBytes, LiteralBytes: literalBytes}
	if literalBytes > 0 {
		breakdown.LiteralReason = "Below promotion threshold"
	}

	payload := entropy.Encode(tokens)

	return &Result{
		Payload:        payload,
		Symbols:        symbols,
		ExplainedRatio: explainedRatio,
		Breakdown:      breakdown,
	}, nil
}

// Decompress parses payload (as produced by Compress) and expands its
// token stream back through dict to the original bytes. Tokens with no
// dictionary entry that fall outside 0..255 are dropped defensively: the
// round-trip invariant implies this is unreachable with a consistent
// dictionary.
func Decompress(payload []byte, dict *dictionary.Dictionary) ([]byte, error) {
	tokens, err := entropy.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("codec: decode entropy stream: %w", err)
	}
	out := make([]byte, 0, len(tokens))
	for _, t := range tokens {
		if b, ok := dict.Decode(t); ok {
			out = append(out, b...)
		} else if t <= 255 {
			out = append(out, byte(t))
		}
	}
	return out, nil
}
