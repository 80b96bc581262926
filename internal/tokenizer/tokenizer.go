// Package tokenizer implements greedy longest-match segmentation of a byte
// stream into dictionary tokens. Per the design notes, the naive
// scan-every-symbol-at-every-position approach does not scale, so matching
// runs against a precompiled trie; one compiled trie is cached per distinct
// dictionary snapshot so repeated encodes against an unchanged dictionary
// don't pay to rebuild it.
package tokenizer

import (
	"sort"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"symvea.dev/store/internal/hashutil"
)

// cacheSize bounds how many distinct dictionary snapshots keep a compiled
// automaton resident; one entry per observed snapshot is enough for the
// common case of a single shared dictionary moving through a handful of
// states over a server's lifetime.
const cacheSize = 8

type trieNode struct {
	children map[byte]*trieNode
	token    uint32
	length   int
	isLeaf   bool
}

// Automaton is a compiled view of a dictionary snapshot, ready for
// repeated greedy longest-match tokenization.
type Automaton struct {
	root *trieNode
}

// Build compiles snapshot (bytes->token, as produced by Dictionary.Snapshot)
// into a trie for longest-prefix matching.
func Build(snapshot map[string]uint32) *Automaton {
	root := &trieNode{children: make(map[byte]*trieNode)}
	for s, tok := range snapshot {
		cur := root
		for i := 0; i < len(s); i++ {
			b := s[i]
			next, ok := cur.children[b]
			if !ok {
				next = &trieNode{children: make(map[byte]*trieNode)}
				cur.children[b] = next
			}
			cur = next
		}
		cur.isLeaf = true
		cur.token = tok
		cur.length = len(s)
	}
	return &Automaton{root: root}
}

var cache *lru.Cache[string, *Automaton]

func init() {
	c, err := lru.New[string, *Automaton](cacheSize)
	if err != nil {
		panic(err) // only fails for a non-positive size, which cacheSize never is
	}
	cache = c
}

// Fingerprint derives a stable identity for a dictionary snapshot so equal
// snapshots share a cached automaton. Snapshots are captured under the
// dictionary mutex, so computing the fingerprint here is safe against
// concurrent mutation.
func Fingerprint(snapshot map[string]uint32) string {
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte(0)
		b.WriteString(strconv.FormatUint(uint64(snapshot[k]), 10))
		b.WriteByte(0)
	}
	return hashutil.SymbolHash([]byte(b.String()))
}

// GetOrBuild returns the cached automaton for this snapshot's fingerprint,
// compiling and caching it on first use.
func GetOrBuild(snapshot map[string]uint32) *Automaton {
	fp := Fingerprint(snapshot)
	if a, ok := cache.Get(fp); ok {
		return a
	}
	a := Build(snapshot)
	cache.Add(fp, a)
	return a
}

// Tokenize segments data against automaton using greedy longest-match: at
// each position, the longest installed symbol prefixing the remaining
// input is emitted; if none matches, the byte itself is emitted as a
// literal token (0..255).
func Tokenize(data []byte, automaton *Automaton) []uint32 {
	out := make([]uint32, 0, len(data))
	for i := 0; i < len(data); {
		tok, length, ok := automaton.longestMatch(data[i:])
		if !ok {
			out = append(out, uint32(data[i]))
			i++
			continue
		}
		out = append(out, tok)
		i += length
	}
	return out
}

func (a *Automaton) longestMatch(data []byte) (token uint32, length int, ok bool) {
	cur := a.root
	bestTok, bestLen, found := uint32(0), 0, false
	for i := 0; i < len(data); i++ {
		next, exists := cur.children[data[i]]
		if !exists {
			break
		}
		cur = next
		if cur.isLeaf {
			bestTok, bestLen, found = cur.token, cur.length, true
		}
	}
	return bestTok, bestLen, found
}
