// Package planner mines high-gain byte sequences from an object's content
// so they can be installed into the shared dictionary as new symbols.
package planner

import (
	"sort"

	"symvea.dev/store/internal/symbol"
)

// MaxCandidates bounds the number of candidates returned.
const MaxCandidates = 1000

// MaxEffectiveLen is the hard cap on substring length considered,
// regardless of the caller-supplied maxLen.
const MaxEffectiveLen = 16

// largeInputThreshold is the input size above which planning samples a
// representative prefix instead of scanning the whole input.
const largeInputThreshold = 1 << 20 // 1 MiB

// sampleDivisor and sampleCap implement the sampled-prefix policy: for
// inputs over largeInputThreshold, sample min(len/sampleDivisor, sampleCap)
// bytes from the front.
const (
	sampleDivisor = 20
	sampleCap     = 256 * 1024 // 256 KiB
)

// Plan mines data for candidate symbols, starting fresh token assignment at
// startToken. maxLen bounds substring length before the MaxEffectiveLen
// clamp is applied. Candidates are sorted by descending gain and capped at
// MaxCandidates; ties break by the order in which the scan first saw each
// substring (all 2-byte substrings by position, then all 3-byte ones, and
// so on), so results are deterministic for a given input.
func Plan(data []byte, maxLen int, startToken uint32) []symbol.Symbol {
	effectiveMaxLen := maxLen
	if effectiveMaxLen > MaxEffectiveLen {
		effectiveMaxLen = MaxEffectiveLen
	}
	if effectiveMaxLen < 2 {
		return nil
	}

	sample := data
	if len(data) > largeInputThreshold {
		n := len(data) / sampleDivisor
		if n > sampleCap {
			n = sampleCap
		}
		sample = data[:n]
	}

	counts := make(map[string]int64)
	order := make(map[string]int)
	var seq []string

	for length := 2; length <= effectiveMaxLen; length++ {
		if length > len(sample) {
			break
		}
		for i := 0; i+length <= len(sample); i++ {
			s := string(sample[i : i+length])
			if _, ok := counts[s]; !ok {
				order[s] = len(seq)
				seq = append(seq, s)
			}
			counts[s]++
		}
	}

	type candidate struct {
		s     string
		count int64
		gain  int64
		order int
	}
	candidates := make([]candidate, 0, len(seq))
	for _, s := range seq {
		c := counts[s]
		gain := c*int64(len(s)) - 2*c
		if gain > 0 {
			candidates = append(candidates, candidate{s: s, count: c, gain: gain, order: order[s]})
		}
	}

	// Sort by descending gain, ties broken by first-occurrence order, so
	// results are deterministic for a given input.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].gain != candidates[j].gain {
			return candidates[i].gain > candidates[j].gain
		}
		return candidates[i].order < candidates[j].order
	})

	if len(candidates) > MaxCandidates {
		candidates = candidates[:MaxCandidates]
	}

	out := make([]symbol.Symbol, 0, len(candidates))
	token := startToken
	for _, c := range candidates {
		out = append(out, symbol.New([]byte(c.s), token, c.gain))
		token++
	}
	return out
}
