// Package snapshot exports a point-in-time view of the corpus and symbol
// table to snapshots/snapshot_<epoch>.json, and cross-checks a recorded
// snapshot against the live symbol store without writing to it, grounded
// on the original SnapshotManager's create/load-latest/restore trio.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"symvea.dev/store/internal/corpus"
	"symvea.dev/store/internal/symbolstore"
)

// SymbolRef is one symbol's identity as recorded in a snapshot.
type SymbolRef struct {
	ID   string `json:"id"`
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// FileRef is one stored object's identity as recorded in a snapshot.
type FileRef struct {
	Key          string   `json:"key"`
	Symbols      []string `json:"symbols"`
	OriginalHash string   `json:"original_hash"`
}

// Snapshot is the full exported state at one epoch.
type Snapshot struct {
	Epoch     int64       `json:"epoch"`
	Timestamp int64       `json:"timestamp"`
	Symbols   []SymbolRef `json:"symbols"`
	Files     []FileRef   `json:"files"`
}

// Manager exports, lists, and restores snapshots under a data root.
type Manager struct {
	DataDir string
	Symbols *symbolstore.Store
	Corpus  *corpus.Store
}

// New returns a Manager rooted at dataDir, reading symbols and corpus
// entries through the given stores.
func New(dataDir string, symbols *symbolstore.Store, corpusStore *corpus.Store) *Manager {
	return &Manager{DataDir: dataDir, Symbols: symbols, Corpus: corpusStore}
}

func (m *Manager) dir() string { return filepath.Join(m.DataDir, "snapshots") }
func (m *Manager) path(epoch int64) string {
	return filepath.Join(m.dir(), fmt.Sprintf("snapshot_%d.json", epoch))
}

// Create builds a snapshot of the current corpus and symbol table at the
// caller-supplied epoch and persists it.
func (m *Manager) Create(epoch int64) (Snapshot, error) {
	symbolRefs, err := m.collectSymbolRefs()
	if err != nil {
		return Snapshot{}, err
	}
	fileRefs, err := m.collectFileRefs()
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Epoch:     epoch,
		Timestamp: epoch,
		Symbols:   symbolRefs,
		Files:     fileRefs,
	}

	if err := os.MkdirAll(m.dir(), 0o755); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: create snapshots dir: %w", err)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: marshal epoch %d: %w", epoch, err)
	}
	if err := os.WriteFile(m.path(epoch), data, 0o644); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: write epoch %d: %w", epoch, err)
	}
	return snap, nil
}

func (m *Manager) collectSymbolRefs() ([]SymbolRef, error) {
	hashes, err := m.Symbols.ListSymbols()
	if err != nil {
		return nil, fmt.Errorf("snapshot: list symbols: %w", err)
	}
	refs := make([]SymbolRef, 0, len(hashes))
	for _, hash := range hashes {
		meta, _, err := m.Symbols.LoadSymbol(hash)
		if err != nil {
			return nil, fmt.Errorf("snapshot: load symbol %s: %w", hash, err)
		}
		shortID := hash
		if len(shortID) > 8 {
			shortID = shortID[:8]
		}
		refs = append(refs, SymbolRef{
			ID:   "sym:" + shortID,
			Hash: hash,
			Size: int64(meta.Size),
		})
	}
	return refs, nil
}

func (m *Manager) collectFileRefs() ([]FileRef, error) {
	index, err := m.Corpus.LoadIndex()
	if err != nil {
		return nil, fmt.Errorf("snapshot: load corpus index: %w", err)
	}
	refs := make([]FileRef, 0, len(index.Files))
	for _, f := range index.Files {
		refs = append(refs, FileRef{
			Key:          f.Key,
			Symbols:      f.Symbols,
			OriginalHash: f.OriginalHash,
		})
	}
	return refs, nil
}

// LoadLatest returns the highest-epoch snapshot on disk, or ok=false if
// none exist.
func (m *Manager) LoadLatest() (Snapshot, bool, error) {
	entries, err := os.ReadDir(m.dir())
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, fmt.Errorf("snapshot: read snapshots dir: %w", err)
	}

	var latestEpoch int64 = -1
	var latestName string
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "snapshot_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		epochStr := strings.TrimSuffix(strings.TrimPrefix(name, "snapshot_"), ".json")
		epoch, err := strconv.ParseInt(epochStr, 10, 64)
		if err != nil {
			continue
		}
		if epoch > latestEpoch {
			latestEpoch = epoch
			latestName = name
		}
	}
	if latestName == "" {
		return Snapshot{}, false, nil
	}

	snap, err := m.loadFile(filepath.Join(m.dir(), latestName))
	if err != nil {
		return Snapshot{}, false, err
	}
	return snap, true, nil
}

// Load reads a specific snapshot by epoch.
func (m *Manager) Load(epoch int64) (Snapshot, error) {
	return m.loadFile(m.path(epoch))
}

func (m *Manager) loadFile(path string) (Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: read %s: %w", path, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: unmarshal %s: %w", path, err)
	}
	return snap, nil
}

// List returns every recorded epoch on disk, ascending.
func (m *Manager) List() ([]int64, error) {
	entries, err := os.ReadDir(m.dir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("snapshot: read snapshots dir: %w", err)
	}
	var epochs []int64
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "snapshot_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		epochStr := strings.TrimSuffix(strings.TrimPrefix(name, "snapshot_"), ".json")
		epoch, err := strconv.ParseInt(epochStr, 10, 64)
		if err != nil {
			continue
		}
		epochs = append(epochs, epoch)
	}
	for i := 1; i < len(epochs); i++ {
		for j := i; j > 0 && epochs[j-1] > epochs[j]; j-- {
			epochs[j-1], epochs[j] = epochs[j], epochs[j-1]
		}
	}
	return epochs, nil
}

// RestoreReport is what Restore found while cross-checking a snapshot
// against the symbol store currently on disk. Full restore (recreating
// missing symbol blobs from nothing) isn't possible, since a snapshot
// records identity, not content; this instead validates that every
// symbol it names still exists and reports what's missing.
type RestoreReport struct {
	Epoch          int64    `json:"epoch"`
	SymbolCount    int      `json:"symbol_count"`
	FileCount      int      `json:"file_count"`
	MissingSymbols []string `json:"missing_symbols,omitempty"`
}

// Restore loads the snapshot at epoch and cross-checks that every symbol
// it references is still present in the current symbol store.
func (m *Manager) Restore(epoch int64) (RestoreReport, error) {
	snap, err := m.Load(epoch)
	if err != nil {
		return RestoreReport{}, err
	}

	report := RestoreReport{
		Epoch:       snap.Epoch,
		SymbolCount: len(snap.Symbols),
		FileCount:   len(snap.Files),
	}
	for _, ref := range snap.Symbols {
		if _, _, err := m.Symbols.LoadSymbol(ref.Hash); err != nil {
			report.MissingSymbols = append(report.MissingSymbols, ref.Hash)
		}
	}
	return report, nil
}
