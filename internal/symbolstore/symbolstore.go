// Package symbolstore implements the content-addressed symbol blob store
// and its per-symbol usage index: write-once blobs under symbols/, whose
// first writes are guarded by the coordination package's advisory locks,
// and usage rollups under symbol_usage/, which are written without a lock.
package symbolstore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"symvea.dev/store/internal/bitio"
	"symvea.dev/store/internal/coordination"
)

// StoredSymbol is the on-disk record accompanying a symbol blob.
type StoredSymbol struct {
	Hash        string `json:"hash"`
	Size        int    `json:"size"`
	FirstSeen   int64  `json:"first_seen"`
	UsageCount  int64  `json:"usage_count"`
	ContentHash string `json:"content_hash"`
}

// SymbolUsage is the per-symbol corpus usage index. SymbolSize is carried
// so TotalBytesContributed can be recomputed and so conflicting sizes for
// the same hash (impossible for immutable symbols) fail loud instead of
// being overwritten.
type SymbolUsage struct {
	SymbolHash            string
	SymbolSize            int64
	TotalOccurrences      int64
	TotalBytesContributed int64
	Objects               map[string]int64
}

// Marshal encodes u as the stable length-prefixed binary record stored
// under symbol_usage/: varint-framed fields, object entries sorted by key
// so the byte layout is reproducible across processes.
func (u SymbolUsage) Marshal() []byte {
	out := bitio.EncodeVarint(nil, uint64(len(u.SymbolHash)))
	out = append(out, u.SymbolHash...)
	out = bitio.EncodeVarint(out, uint64(u.SymbolSize))
	out = bitio.EncodeVarint(out, uint64(u.TotalOccurrences))
	out = bitio.EncodeVarint(out, uint64(u.TotalBytesContributed))

	keys := make([]string, 0, len(u.Objects))
	for k := range u.Objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out = bitio.EncodeVarint(out, uint64(len(keys)))
	for _, k := range keys {
		out = bitio.EncodeVarint(out, uint64(len(k)))
		out = append(out, k...)
		out = bitio.EncodeVarint(out, uint64(u.Objects[k]))
	}
	return out
}

// UnmarshalSymbolUsage decodes a record produced by Marshal.
func UnmarshalSymbolUsage(data []byte) (SymbolUsage, error) {
	var u SymbolUsage
	next := func() (uint64, error) {
		v, n := bitio.DecodeVarint(data)
		if n == 0 {
			return 0, fmt.Errorf("symbolstore: truncated usage record")
		}
		data = data[n:]
		return v, nil
	}
	takeString := func() (string, error) {
		n, err := next()
		if err != nil {
			return "", err
		}
		if uint64(len(data)) < n {
			return "", fmt.Errorf("symbolstore: truncated usage record")
		}
		s := string(data[:n])
		data = data[n:]
		return s, nil
	}

	var err error
	if u.SymbolHash, err = takeString(); err != nil {
		return SymbolUsage{}, err
	}
	size, err := next()
	if err != nil {
		return SymbolUsage{}, err
	}
	total, err := next()
	if err != nil {
		return SymbolUsage{}, err
	}
	contributed, err := next()
	if err != nil {
		return SymbolUsage{}, err
	}
	count, err := next()
	if err != nil {
		return SymbolUsage{}, err
	}
	u.SymbolSize = int64(size)
	u.TotalOccurrences = int64(total)
	u.TotalBytesContributed = int64(contributed)
	u.Objects = make(map[string]int64, count)
	for i := uint64(0); i < count; i++ {
		key, err := takeString()
		if err != nil {
			return SymbolUsage{}, err
		}
		occ, err := next()
		if err != nil {
			return SymbolUsage{}, err
		}
		u.Objects[key] = int64(occ)
	}
	return u, nil
}

// Store is a content-addressed symbol store rooted at DataDir.
type Store struct {
	DataDir string
	coord   *coordination.Manager
}

// New returns a Store rooted at dataDir, using coord to serialize
// concurrent first-writes of the same symbol hash.
func New(dataDir string, coord *coordination.Manager) *Store {
	return &Store{DataDir: dataDir, coord: coord}
}

func (s *Store) symbolsDir() string { return filepath.Join(s.DataDir, "symbols") }
func (s *Store) usageDir() string   { return filepath.Join(s.DataDir, "symbol_usage") }

func (s *Store) binPath(hash string) string  { return filepath.Join(s.symbolsDir(), "sym_"+hash+".bin") }
func (s *Store) metaPath(hash string) string { return filepath.Join(s.symbolsDir(), "sym_"+hash+".meta.json") }
func (s *Store) legacyPath(hash string) string { return filepath.Join(s.symbolsDir(), hash) }

// StoreSymbol writes the symbol blob and its metadata if absent. Per the
// immutability invariant, a write-once existence check is the correctness
// anchor; the per-hash advisory lock only guards against the torn-write
// race between the check and the write.
func (s *Store) StoreSymbol(hash string, bytes []byte) error {
	if _, err := os.Stat(s.binPath(hash)); err == nil {
		return nil
	}
	lock := func(fn func() error) error {
		if s.coord == nil {
			return fn()
		}
		return s.coord.WithSymbolLock(hash, fn)
	}
	return lock(func() error {
		if _, err := os.Stat(s.binPath(hash)); err == nil {
			return nil
		}
		if err := os.MkdirAll(s.symbolsDir(), 0o755); err != nil {
			return fmt.Errorf("symbolstore: create symbols dir: %w", err)
		}
		if err := os.WriteFile(s.binPath(hash), bytes, 0o644); err != nil {
			return fmt.Errorf("symbolstore: write blob %s: %w", hash, err)
		}
		sum := sha256.Sum256(bytes)
		meta := StoredSymbol{
			Hash:        hash,
			Size:        len(bytes),
			FirstSeen:   time.Now().Unix(),
			UsageCount:  0,
			ContentHash: hex.EncodeToString(sum[:]),
		}
		data, err := json.MarshalIndent(meta, "", "  ")
		if err != nil {
			return fmt.Errorf("symbolstore: marshal meta %s: %w", hash, err)
		}
		if err := os.WriteFile(s.metaPath(hash), data, 0o644); err != nil {
			return fmt.Errorf("symbolstore: write meta %s: %w", hash, err)
		}
		return nil
	})
}

// LoadSymbol reads the stored metadata record and blob for hash, falling
// back to reconstructing a minimal record from a legacy bare-hash file if
// the new sym_<hash>.bin/.meta.json pair is absent.
func (s *Store) LoadSymbol(hash string) (StoredSymbol, []byte, error) {
	if data, err := os.ReadFile(s.binPath(hash)); err == nil {
		metaRaw, err := os.ReadFile(s.metaPath(hash))
		if err != nil {
			return StoredSymbol{}, nil, fmt.Errorf("symbolstore: read meta %s: %w", hash, err)
		}
		var meta StoredSymbol
		if err := json.Unmarshal(metaRaw, &meta); err != nil {
			return StoredSymbol{}, nil, fmt.Errorf("symbolstore: unmarshal meta %s: %w", hash, err)
		}
		return meta, data, nil
	}

	data, err := os.ReadFile(s.legacyPath(hash))
	if err != nil {
		return StoredSymbol{}, nil, fmt.Errorf("symbolstore: symbol %s not found: %w", hash, err)
	}
	sum := sha256.Sum256(data)
	meta := StoredSymbol{
		Hash:        hash,
		Size:        len(data),
		ContentHash: hex.EncodeToString(sum[:]),
	}
	return meta, data, nil
}

// RecordUsage applies one object's reference to a symbol, recomputing the
// corpus-wide totals from the full objects map. If a previous update
// reported a different size for the same hash, that is a caller error
// (symbols are immutable, so sizes must agree) and is returned rather than
// silently overwritten.
func (s *Store) RecordUsage(hash, objectKey string, size int, occurrences int64) error {
	path := filepath.Join(s.usageDir(), hash)
	usage := SymbolUsage{SymbolHash: hash, Objects: make(map[string]int64)}
	if raw, err := os.ReadFile(path); err == nil {
		decoded, err := UnmarshalSymbolUsage(raw)
		if err != nil {
			return fmt.Errorf("symbolstore: decode usage %s: %w", hash, err)
		}
		usage = decoded
	}

	if usage.SymbolSize != 0 && usage.SymbolSize != int64(size) {
		return fmt.Errorf("symbolstore: size mismatch for symbol %s: stored %d, got %d", hash, usage.SymbolSize, size)
	}
	usage.SymbolSize = int64(size)
	usage.Objects[objectKey] = occurrences

	var total int64
	for _, c := range usage.Objects {
		total += c
	}
	usage.TotalOccurrences = total
	usage.TotalBytesContributed = total * usage.SymbolSize

	if err := os.MkdirAll(s.usageDir(), 0o755); err != nil {
		return fmt.Errorf("symbolstore: create usage dir: %w", err)
	}
	if err := os.WriteFile(path, usage.Marshal(), 0o644); err != nil {
		return fmt.Errorf("symbolstore: write usage %s: %w", hash, err)
	}
	return s.refreshUsageCount(hash, usage.TotalOccurrences)
}

// refreshUsageCount mirrors the corpus-wide occurrence total into the
// symbol's metadata record. The blob itself is never touched; a symbol
// whose blob lives only on a read-only mount has no local metadata, which
// is fine — the usage index is authoritative.
func (s *Store) refreshUsageCount(hash string, total int64) error {
	raw, err := os.ReadFile(s.metaPath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("symbolstore: read meta %s: %w", hash, err)
	}
	var meta StoredSymbol
	if err := json.Unmarshal(raw, &meta); err != nil {
		return fmt.Errorf("symbolstore: unmarshal meta %s: %w", hash, err)
	}
	if meta.UsageCount == total {
		return nil
	}
	meta.UsageCount = total
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("symbolstore: marshal meta %s: %w", hash, err)
	}
	if err := os.WriteFile(s.metaPath(hash), data, 0o644); err != nil {
		return fmt.Errorf("symbolstore: write meta %s: %w", hash, err)
	}
	return nil
}

// GetUsage returns the recorded usage for hash, or a zero usage record if
// none has been recorded yet.
func (s *Store) GetUsage(hash string) (SymbolUsage, error) {
	raw, err := os.ReadFile(filepath.Join(s.usageDir(), hash))
	if err != nil {
		if os.IsNotExist(err) {
			return SymbolUsage{SymbolHash: hash, Objects: make(map[string]int64)}, nil
		}
		return SymbolUsage{}, fmt.Errorf("symbolstore: read usage %s: %w", hash, err)
	}
	usage, err := UnmarshalSymbolUsage(raw)
	if err != nil {
		return SymbolUsage{}, fmt.Errorf("symbolstore: decode usage %s: %w", hash, err)
	}
	return usage, nil
}

// ListSymbols returns every known symbol hash, recognizing both the
// canonical sym_<hash>.bin files and legacy bare-hash files.
func (s *Store) ListSymbols() ([]string, error) {
	entries, err := os.ReadDir(s.symbolsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("symbolstore: read symbols dir: %w", err)
	}
	seen := make(map[string]bool)
	var hashes []string
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasPrefix(name, "sym_") && strings.HasSuffix(name, ".bin"):
			hash := strings.TrimSuffix(strings.TrimPrefix(name, "sym_"), ".bin")
			if !seen[hash] {
				seen[hash] = true
				hashes = append(hashes, hash)
			}
		case len(name) == 32 && !strings.Contains(name, "."):
			if !seen[name] {
				seen[name] = true
				hashes = append(hashes, name)
			}
		}
	}
	sort.Strings(hashes)
	return hashes, nil
}

// CountSymbols reports the number of distinct known symbols.
func (s *Store) CountSymbols() (int, error) {
	hashes, err := s.ListSymbols()
	if err != nil {
		return 0, err
	}
	return len(hashes), nil
}

// VerifyAll recomputes SHA-256 over every stored blob and compares it to
// the recorded content hash. A mismatch is reported as an error; callers
// in internal/startup treat any such error as fatal.
func (s *Store) VerifyAll() error {
	hashes, err := s.ListSymbols()
	if err != nil {
		return err
	}
	for _, hash := range hashes {
		meta, data, err := s.LoadSymbol(hash)
		if err != nil {
			return fmt.Errorf("symbolstore: load %s during verification: %w", hash, err)
		}
		sum := sha256.Sum256(data)
		got := hex.EncodeToString(sum[:])
		if got != meta.ContentHash {
			return fmt.Errorf("symbolstore: corruption detected for symbol %s: content hash mismatch (want %s, got %s)", hash, meta.ContentHash, got)
		}
	}
	return nil
}
