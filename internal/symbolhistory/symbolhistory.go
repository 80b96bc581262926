// Package symbolhistory tracks how a symbol's content has evolved over
// successive freezes and derives stability/dominance scores from that
// history. Core compression treats every symbol as a single immutable
// record; this package is the opt-in side channel that supplements it
// for CLI inspection.
package symbolhistory

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Version is one recorded state of a symbol's content.
type Version struct {
	VersionID  uint64 `json:"version_id"`
	ContentSum string `json:"content_sum"`
	Timestamp  int64  `json:"timestamp"`
	ParentSum  string `json:"parent_sum,omitempty"`
}

// Stability summarizes how often a symbol's content has changed.
type Stability struct {
	TotalVersions   uint64  `json:"total_versions"`
	LastChangeEpoch int64   `json:"last_change_epoch"`
	StabilityScore  float64 `json:"stability_score"`
}

// Dominance summarizes how central a symbol is in a reference graph.
type Dominance struct {
	InboundLinks   uint64 `json:"inbound_links"`
	OutboundLinks  uint64 `json:"outbound_links"`
	DominanceScore uint64 `json:"dominance_score"`
}

// History is the full recorded record for one symbol.
type History struct {
	SymbolID  string    `json:"symbol_id"`
	Versions  []Version `json:"versions"`
	Stability Stability `json:"stability"`
	Dominance Dominance `json:"dominance"`
}

// Store manages the symbol_versions/ subtree of a data root.
type Store struct {
	DataDir string
}

// New returns a Store rooted at dataDir.
func New(dataDir string) *Store {
	return &Store{DataDir: dataDir}
}

func (s *Store) versionsDir() string { return filepath.Join(s.DataDir, "symbol_versions") }
func (s *Store) path(symbolID string) string {
	return filepath.Join(s.versionsDir(), symbolID+".json")
}

// contentSum fingerprints content with SHA3-256, kept deliberately distinct
// from the SHA-256 content hash the core round-trip invariant depends on.
func contentSum(content []byte) string {
	sum := sha3.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// AddVersion appends a new version if content differs from the symbol's
// latest recorded version; a no-op if content is unchanged. now is the
// caller-supplied current epoch, keeping this package clock-free.
func (s *Store) AddVersion(symbolID string, content []byte, now int64) error {
	if err := os.MkdirAll(s.versionsDir(), 0o755); err != nil {
		return fmt.Errorf("symbolhistory: create versions dir: %w", err)
	}
	history, err := s.LoadHistory(symbolID)
	if err != nil {
		history = History{SymbolID: symbolID}
	}

	sum := contentSum(content)
	var parentSum string
	if len(history.Versions) > 0 {
		latest := history.Versions[len(history.Versions)-1]
		if latest.ContentSum == sum {
			return nil
		}
		parentSum = latest.ContentSum
	}

	history.Versions = append(history.Versions, Version{
		VersionID:  uint64(len(history.Versions)),
		ContentSum: sum,
		Timestamp:  now,
		ParentSum:  parentSum,
	})
	history.Stability = computeStability(history.Versions, now)

	return s.storeHistory(history)
}

// computeStability scores age_in_epochs / (1 + mutations), the first
// version counting as zero mutations.
func computeStability(versions []Version, now int64) Stability {
	if len(versions) == 0 {
		return Stability{LastChangeEpoch: now}
	}
	firstEpoch := versions[0].Timestamp
	lastChange := versions[len(versions)-1].Timestamp
	age := now - firstEpoch
	if age < 0 {
		age = 0
	}
	mutations := uint64(len(versions) - 1)
	return Stability{
		TotalVersions:   uint64(len(versions)),
		LastChangeEpoch: lastChange,
		StabilityScore:  float64(age) / (1.0 + float64(mutations)),
	}
}

// ComputeDominance scores symbolID against a reference graph mapping a
// symbol id to the ids of symbols its stored bytes reference.
func ComputeDominance(symbolID string, graph map[string][]string) Dominance {
	var inbound uint64
	for _, deps := range graph {
		for _, dep := range deps {
			if dep == symbolID {
				inbound++
			}
		}
	}
	outbound := uint64(len(graph[symbolID]))
	return Dominance{
		InboundLinks:   inbound,
		OutboundLinks:  outbound,
		DominanceScore: inbound + outbound,
	}
}

// LoadHistory reads the persisted history for symbolID.
func (s *Store) LoadHistory(symbolID string) (History, error) {
	raw, err := os.ReadFile(s.path(symbolID))
	if err != nil {
		return History{}, fmt.Errorf("symbolhistory: read %s: %w", symbolID, err)
	}
	var h History
	if err := json.Unmarshal(raw, &h); err != nil {
		return History{}, fmt.Errorf("symbolhistory: unmarshal %s: %w", symbolID, err)
	}
	return h, nil
}

func (s *Store) storeHistory(h History) error {
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("symbolhistory: marshal %s: %w", h.SymbolID, err)
	}
	return os.WriteFile(s.path(h.SymbolID), data, 0o644)
}

// ListSymbolIDs returns every symbol id with a recorded history, sorted.
func (s *Store) ListSymbolIDs() ([]string, error) {
	entries, err := os.ReadDir(s.versionsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("symbolhistory: read versions dir: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}
