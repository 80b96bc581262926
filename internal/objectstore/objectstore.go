// Package objectstore persists compressed object payloads alongside their
// metadata records: files/<key> and files/<key>.meta, written atomically
// from the caller's perspective via a write-to-temp-then-rename.
package objectstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"symvea.dev/store/internal/codec"
	"symvea.dev/store/internal/dictionary"
)

// CodecVersion is embedded in every stored object's metadata.
const CodecVersion uint16 = 1

// ObjectMetadata is the per-upload record described in the data model:
// hashes anchoring the round-trip invariant, the dictionary state in
// effect at encode time, and the symbol/token breakdown the compressor
// computed.
type ObjectMetadata struct {
	Key            string             `json:"key"`
	ObjectHash     string             `json:"object_hash"`
	OriginalHash   string             `json:"original_hash"`
	DictID         string             `json:"dict_id"`
	EngineVersion  string             `json:"engine_version"`
	CodecVersion   uint16             `json:"codec_version"`
	OriginalSize   uint64             `json:"original_size"`
	CompressedSize uint64             `json:"compressed_size"`
	StoredAt       int64              `json:"stored_at"`
	UserID         *string            `json:"user_id,omitempty"`
	Symbols        []codec.SymbolInfo `json:"symbols"`
	ExplainedRatio float64            `json:"explained_ratio"`
	TokenBreakdown codec.TokenBreakdown `json:"token_breakdown"`
}

// NewObjectMetadata builds a metadata record with the standard engine and
// codec version stamped in.
func NewObjectMetadata(key, objectHash, originalHash, dictID string, originalSize, compressedSize uint64, storedAt int64, userID *string, symbols []codec.SymbolInfo, explainedRatio float64, breakdown codec.TokenBreakdown) ObjectMetadata {
	return ObjectMetadata{
		Key:            key,
		ObjectHash:     objectHash,
		OriginalHash:   originalHash,
		DictID:         dictID,
		EngineVersion:  dictionary.EngineVersion,
		CodecVersion:   CodecVersion,
		OriginalSize:   originalSize,
		CompressedSize: compressedSize,
		StoredAt:       storedAt,
		UserID:         userID,
		Symbols:        symbols,
		ExplainedRatio: explainedRatio,
		TokenBreakdown: breakdown,
	}
}

// Engine is the storage backend contract shared by Local and Remote.
type Engine interface {
	Put(key string, payload []byte, meta ObjectMetadata) error
	Get(key string) ([]byte, ObjectMetadata, bool, error)
	Delete(key string) error
}

// Local is the filesystem-backed object store.
type Local struct {
	DataDir string
}

// NewLocal returns a Local store rooted at dataDir.
func NewLocal(dataDir string) *Local {
	return &Local{DataDir: dataDir}
}

func (l *Local) filesDir() string        { return filepath.Join(l.DataDir, "files") }
func (l *Local) dataPath(key string) string { return filepath.Join(l.filesDir(), key) }
func (l *Local) metaPath(key string) string { return l.dataPath(key) + ".meta" }

// Put writes payload and meta atomically: both are written to temp files
// in the target directory and renamed into place.
func (l *Local) Put(key string, payload []byte, meta ObjectMetadata) error {
	if err := os.MkdirAll(l.filesDir(), 0o755); err != nil {
		return fmt.Errorf("objectstore: create files dir: %w", err)
	}
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("objectstore: marshal metadata for %s: %w", key, err)
	}
	if err := writeAtomic(l.dataPath(key), payload); err != nil {
		return fmt.Errorf("objectstore: write payload for %s: %w", key, err)
	}
	if err := writeAtomic(l.metaPath(key), metaJSON); err != nil {
		return fmt.Errorf("objectstore: write metadata for %s: %w", key, err)
	}
	return nil
}

// Get returns the payload and metadata for key, or ok=false if either file
// is missing.
func (l *Local) Get(key string) ([]byte, ObjectMetadata, bool, error) {
	payload, err := os.ReadFile(l.dataPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ObjectMetadata{}, false, nil
		}
		return nil, ObjectMetadata{}, false, fmt.Errorf("objectstore: read payload for %s: %w", key, err)
	}
	metaRaw, err := os.ReadFile(l.metaPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ObjectMetadata{}, false, nil
		}
		return nil, ObjectMetadata{}, false, fmt.Errorf("objectstore: read metadata for %s: %w", key, err)
	}
	var meta ObjectMetadata
	if err := json.Unmarshal(metaRaw, &meta); err != nil {
		return nil, ObjectMetadata{}, false, fmt.Errorf("objectstore: unmarshal metadata for %s: %w", key, err)
	}
	return payload, meta, true, nil
}

// Delete removes both files for key; missing-file errors are swallowed.
func (l *Local) Delete(key string) error {
	if err := os.Remove(l.dataPath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("objectstore: delete payload for %s: %w", key, err)
	}
	if err := os.Remove(l.metaPath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("objectstore: delete metadata for %s: %w", key, err)
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Remote is the disabled remote-blob backend: every method refuses
// service. It exists so the Engine interface has a documented second
// implementation.
type Remote struct{}

var errRemoteDisabled = errors.New("remote backend disabled")

func (*Remote) Put(string, []byte, ObjectMetadata) error        { return errRemoteDisabled }
func (*Remote) Get(string) ([]byte, ObjectMetadata, bool, error) { return nil, ObjectMetadata{}, false, errRemoteDisabled }
func (*Remote) Delete(string) error                               { return errRemoteDisabled }
