// Package explanation builds a per-object breakdown of which symbols
// contributed how many bytes to a stored object, grounded on the
// original explanation graph's bytes-contributed/percent-of-total model.
package explanation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"symvea.dev/store/internal/hashutil"
)

// Contribution is one symbol's share of an object's decompressed bytes.
type Contribution struct {
	SymbolID         string  `json:"symbol_id"`
	BytesContributed uint64  `json:"bytes_contributed"`
	PercentOfTotal   float64 `json:"percent_of_total"`
}

// Graph is the full contribution breakdown for one object.
type Graph struct {
	FileHash           string            `json:"file_hash"`
	TotalBytes         uint64            `json:"total_bytes"`
	ExplainedBytes     uint64            `json:"explained_bytes"`
	UnexplainedBytes   uint64            `json:"unexplained_bytes"`
	Contributions      []Contribution    `json:"contributions"`
	SymbolVersionsUsed map[string]uint64 `json:"symbol_versions_used"`
	SnapshotEpoch      int64             `json:"snapshot_epoch"`
}

// NewGraph returns an empty graph for an object of totalBytes bytes.
func NewGraph(fileHash string, totalBytes uint64, snapshotEpoch int64) *Graph {
	return &Graph{
		FileHash:           fileHash,
		TotalBytes:         totalBytes,
		UnexplainedBytes:   totalBytes,
		SymbolVersionsUsed: make(map[string]uint64),
		SnapshotEpoch:      snapshotEpoch,
	}
}

// AddContribution records that symbolID accounts for bytesContributed
// bytes of the object, at the given symbol version. It errors rather
// than panicking if the running total would exceed the object's size,
// since a caller-supplied breakdown is untrusted input, not an internal
// invariant violation.
func (g *Graph) AddContribution(symbolID string, bytesContributed, versionID uint64) error {
	if g.ExplainedBytes+bytesContributed > g.TotalBytes {
		return fmt.Errorf("explanation: contribution from %s would explain %d bytes of a %d byte object",
			symbolID, g.ExplainedBytes+bytesContributed, g.TotalBytes)
	}

	percent := 0.0
	if g.TotalBytes > 0 {
		percent = float64(bytesContributed) / float64(g.TotalBytes) * 100.0
	}

	g.Contributions = append(g.Contributions, Contribution{
		SymbolID:         symbolID,
		BytesContributed: bytesContributed,
		PercentOfTotal:   percent,
	})
	g.SymbolVersionsUsed[symbolID] = versionID
	g.ExplainedBytes += bytesContributed
	g.UnexplainedBytes = g.TotalBytes - g.ExplainedBytes
	return nil
}

// Finalize sorts contributions by bytes contributed, descending, and
// rejects a graph whose percentages sum past what floating-point error
// can account for.
func (g *Graph) Finalize() error {
	sort.Slice(g.Contributions, func(i, j int) bool {
		return g.Contributions[i].BytesContributed > g.Contributions[j].BytesContributed
	})

	var total float64
	for _, c := range g.Contributions {
		total += c.PercentOfTotal
	}
	if total > 100.1 {
		return fmt.Errorf("explanation: contributions sum to %.2f%% of object, exceeds 100%%", total)
	}
	return nil
}

// ByStability returns g.Contributions ordered by score(symbol_id)
// descending, for a caller-supplied stability score lookup.
func (g *Graph) ByStability(score map[string]float64) []Contribution {
	return sortedByScore(g.Contributions, score)
}

// ByDominance returns g.Contributions ordered by score(symbol_id)
// descending, for a caller-supplied dominance score lookup.
func (g *Graph) ByDominance(score map[string]uint64) []Contribution {
	scoreF := make(map[string]float64, len(score))
	for k, v := range score {
		scoreF[k] = float64(v)
	}
	return sortedByScore(g.Contributions, scoreF)
}

func sortedByScore(contributions []Contribution, score map[string]float64) []Contribution {
	out := make([]Contribution, len(contributions))
	copy(out, contributions)
	sort.SliceStable(out, func(i, j int) bool {
		return score[out[i].SymbolID] > score[out[j].SymbolID]
	})
	return out
}

// Engine persists explanation graphs under the explanations/ subtree of
// a data root.
type Engine struct {
	DataDir string
}

// NewEngine returns an Engine rooted at dataDir.
func NewEngine(dataDir string) *Engine {
	return &Engine{DataDir: dataDir}
}

func (e *Engine) dir() string { return filepath.Join(e.DataDir, "explanations") }
func (e *Engine) path(fileKey string) string {
	return filepath.Join(e.dir(), fileKey+".json")
}

// Contribution as accepted from a caller assembling a graph from a
// codec's per-symbol token breakdown.
type RawContribution struct {
	SymbolID         string
	BytesContributed uint64
	VersionID        uint64
}

// CreateExplanation builds, finalizes, and persists a graph for fileKey
// from fileData and its symbol contributions.
func (e *Engine) CreateExplanation(fileKey string, fileData []byte, contributions []RawContribution, snapshotEpoch int64) (*Graph, error) {
	sum := hashutil.ContentHash(fileData)
	g := NewGraph(fmt.Sprintf("%x", sum), uint64(len(fileData)), snapshotEpoch)

	for _, c := range contributions {
		if err := g.AddContribution(c.SymbolID, c.BytesContributed, c.VersionID); err != nil {
			return nil, err
		}
	}
	if err := g.Finalize(); err != nil {
		return nil, err
	}
	if err := e.store(fileKey, g); err != nil {
		return nil, err
	}
	return g, nil
}

// Load reads the persisted graph for fileKey.
func (e *Engine) Load(fileKey string) (*Graph, error) {
	raw, err := os.ReadFile(e.path(fileKey))
	if err != nil {
		return nil, fmt.Errorf("explanation: read %s: %w", fileKey, err)
	}
	var g Graph
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("explanation: unmarshal %s: %w", fileKey, err)
	}
	return &g, nil
}

func (e *Engine) store(fileKey string, g *Graph) error {
	if err := os.MkdirAll(e.dir(), 0o755); err != nil {
		return fmt.Errorf("explanation: create explanations dir: %w", err)
	}
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("explanation: marshal %s: %w", fileKey, err)
	}
	return os.WriteFile(e.path(fileKey), data, 0o644)
}

// VerifyReproducible reports whether fileData's content hash still
// matches the file_hash recorded in fileKey's stored graph.
func (e *Engine) VerifyReproducible(fileKey string, fileData []byte) (bool, error) {
	g, err := e.Load(fileKey)
	if err != nil {
		return false, err
	}
	sum := hashutil.ContentHash(fileData)
	return fmt.Sprintf("%x", sum) == g.FileHash, nil
}
