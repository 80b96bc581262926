// Package corpus maintains the aggregate corpus-wide index derived from
// per-object metadata: one FileEntry per uploaded key, rolled up into a
// CorpusIndex written to corpus/index.json.
package corpus

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"symvea.dev/store/internal/hashutil"
	"symvea.dev/store/internal/objectstore"
)

// FileEntry is the corpus-level summary of one stored object.
type FileEntry struct {
	Key          string   `json:"key"`
	FileID       string   `json:"file_id"`
	OriginalHash string   `json:"original_hash"`
	Symbols      []string `json:"symbols"`
}

// Index is the aggregate corpus-wide index.
type Index struct {
	Version     int         `json:"version"`
	Files       []FileEntry `json:"files"`
	SymbolCount int         `json:"symbol_count"`
	TotalSize   uint64      `json:"total_size"`
}

// IndexVersion is the current corpus index schema version.
const IndexVersion = 1

// Store manages the corpus/ subtree of a data root.
type Store struct {
	DataDir string
}

// New returns a Store rooted at dataDir.
func New(dataDir string) *Store {
	return &Store{DataDir: dataDir}
}

func (s *Store) filesDir() string { return filepath.Join(s.DataDir, "corpus", "files") }
func (s *Store) indexPath() string { return filepath.Join(s.DataDir, "corpus", "index.json") }

// StoreFileMetadata writes the per-file corpus record for key, derived
// from the object's stored metadata, at corpus/files/<fileid>.meta.json
// where fileid = hex(CRC32(key)).
func (s *Store) StoreFileMetadata(key string, meta objectstore.ObjectMetadata) error {
	if err := os.MkdirAll(s.filesDir(), 0o755); err != nil {
		return fmt.Errorf("corpus: create files dir: %w", err)
	}
	symbols := make([]string, 0, len(meta.Symbols))
	for _, sym := range meta.Symbols {
		symbols = append(symbols, sym.Hash)
	}
	entry := FileEntry{
		Key:          key,
		FileID:       hashutil.FileID(key),
		OriginalHash: meta.OriginalHash,
		Symbols:      symbols,
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("corpus: marshal file entry for %s: %w", key, err)
	}
	path := filepath.Join(s.filesDir(), entry.FileID+".meta.json")
	return os.WriteFile(path, data, 0o644)
}

// RebuildIndex walks corpus/files, reads every FileEntry, and writes the
// aggregate corpus/index.json with the given symbolCount and totalSize
// (supplied by the caller, which has the symbol store and object store at
// hand to compute them).
func (s *Store) RebuildIndex(symbolCount int, totalSize uint64) (Index, error) {
	entries, err := os.ReadDir(s.filesDir())
	if err != nil {
		if os.IsNotExist(err) {
			entries = nil
		} else {
			return Index{}, fmt.Errorf("corpus: read files dir: %w", err)
		}
	}

	var files []FileEntry
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(s.filesDir(), e.Name()))
		if err != nil {
			return Index{}, fmt.Errorf("corpus: read file entry %s: %w", e.Name(), err)
		}
		var fe FileEntry
		if err := json.Unmarshal(raw, &fe); err != nil {
			return Index{}, fmt.Errorf("corpus: unmarshal file entry %s: %w", e.Name(), err)
		}
		files = append(files, fe)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Key < files[j].Key })

	index := Index{
		Version:     IndexVersion,
		Files:       files,
		SymbolCount: symbolCount,
		TotalSize:   totalSize,
	}
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return Index{}, fmt.Errorf("corpus: marshal index: %w", err)
	}
	if err := os.MkdirAll(s.DataDir, 0o755); err != nil {
		return Index{}, fmt.Errorf("corpus: create data dir: %w", err)
	}
	if err := os.WriteFile(s.indexPath(), data, 0o644); err != nil {
		return Index{}, fmt.Errorf("corpus: write index: %w", err)
	}
	return index, nil
}

// LoadIndex reads the persisted corpus/index.json, if present.
func (s *Store) LoadIndex() (Index, error) {
	raw, err := os.ReadFile(s.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return Index{Version: IndexVersion}, nil
		}
		return Index{}, fmt.Errorf("corpus: read index: %w", err)
	}
	var index Index
	if err := json.Unmarshal(raw, &index); err != nil {
		return Index{}, fmt.Errorf("corpus: unmarshal index: %w", err)
	}
	return index, nil
}

// CountFiles reports how many file entries exist in the corpus.
func (s *Store) CountFiles() (int, error) {
	entries, err := os.ReadDir(s.filesDir())
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("corpus: read files dir: %w", err)
	}
	count := 0
	for _, e := range entries {
		if !e.IsDir() {
			count++
		}
	}
	return count, nil
}
