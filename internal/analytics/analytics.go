// Package analytics caches corpus-wide pattern statistics in a bbolt
// database, one bucket per concern: pattern frequency, temporal
// stability, and file coverage.
package analytics

import (
	"encoding/binary"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"symvea.dev/store/internal/corpus"
	"symvea.dev/store/internal/symbolstore"
)

var (
	bucketFrequency = []byte("pattern_frequency")
	bucketStability = []byte("temporal_stability")
	bucketCoverage  = []byte("coverage_analysis")
)

// DB is a cached view of per-symbol pattern analytics, persisted so
// repeated `analytics` CLI invocations don't re-walk the whole corpus.
type DB struct {
	bolt *bolt.DB
}

// Open opens (creating if absent) the analytics cache at
// <dataDir>/analytics.db, with all three buckets ensured to exist.
func Open(dataDir string) (*DB, error) {
	path := filepath.Join(dataDir, "analytics.db")
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("analytics: open bbolt: %w", err)
	}

	if err := bdb.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketFrequency, bucketStability, bucketCoverage} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", string(b), err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, err
	}

	return &DB{bolt: bdb}, nil
}

// Close releases the underlying bbolt handle.
func (d *DB) Close() error { return d.bolt.Close() }

// Refresh re-walks the symbol store and corpus, recomputing every
// symbol's frequency/stability/coverage score and overwriting the cache.
func (d *DB) Refresh(symbols *symbolstore.Store, corpusStore *corpus.Store, now int64) error {
	hashes, err := symbols.ListSymbols()
	if err != nil {
		return fmt.Errorf("analytics: list symbols: %w", err)
	}
	totalFiles, err := corpusStore.CountFiles()
	if err != nil {
		return fmt.Errorf("analytics: count files: %w", err)
	}

	return d.bolt.Update(func(tx *bolt.Tx) error {
		freq := tx.Bucket(bucketFrequency)
		stab := tx.Bucket(bucketStability)
		cov := tx.Bucket(bucketCoverage)

		for _, hash := range hashes {
			usage, err := symbols.GetUsage(hash)
			if err != nil {
				return fmt.Errorf("get usage %s: %w", hash, err)
			}
			meta, _, err := symbols.LoadSymbol(hash)
			if err != nil {
				return fmt.Errorf("load symbol %s: %w", hash, err)
			}

			if err := freq.Put([]byte(hash), encodeUint64(uint64(usage.TotalOccurrences))); err != nil {
				return err
			}

			daysOld := uint64(0)
			if meta.FirstSeen > 0 && now > meta.FirstSeen {
				daysOld = uint64((now - meta.FirstSeen) / 86400)
			}
			if err := stab.Put([]byte(hash), encodeUint64(daysOld)); err != nil {
				return err
			}

			coverage := 0.0
			if totalFiles > 0 {
				coverage = float64(len(usage.Objects)) / float64(totalFiles) * 100.0
			}
			if err := cov.Put([]byte(hash), encodeFloat64(coverage)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Snapshot is the cached analytics read back out, keyed by symbol hash.
type Snapshot struct {
	PatternFrequency  map[string]uint64
	TemporalStability map[string]uint64
	CoverageAnalysis  map[string]float64
}

// Load reads the entire cached analytics snapshot.
func (d *DB) Load() (Snapshot, error) {
	snap := Snapshot{
		PatternFrequency:  make(map[string]uint64),
		TemporalStability: make(map[string]uint64),
		CoverageAnalysis:  make(map[string]float64),
	}
	err := d.bolt.View(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketFrequency).ForEach(func(k, v []byte) error {
			snap.PatternFrequency[string(k)] = decodeUint64(v)
			return nil
		}); err != nil {
			return err
		}
		if err := tx.Bucket(bucketStability).ForEach(func(k, v []byte) error {
			snap.TemporalStability[string(k)] = decodeUint64(v)
			return nil
		}); err != nil {
			return err
		}
		return tx.Bucket(bucketCoverage).ForEach(func(k, v []byte) error {
			snap.CoverageAnalysis[string(k)] = decodeFloat64(v)
			return nil
		})
	})
	return snap, err
}

// Insights derives a handful of human-readable observations from the
// snapshot, mirroring get_insights: the most frequent pattern, the
// oldest pattern past a one-year threshold, and the highest-coverage
// pattern.
func (s Snapshot) Insights() []string {
	var insights []string

	if hash, count, ok := maxUint64(s.PatternFrequency); ok {
		insights = append(insights, fmt.Sprintf("symbol %s appears in %d occurrences", hash, count))
	}

	if hash, days, ok := maxUint64(s.TemporalStability); ok && days > 365 {
		years := days / 365
		insights = append(insights, fmt.Sprintf("symbol %s hasn't changed in %d years", hash, years))
	}

	if hash, coverage, ok := maxFloat64(s.CoverageAnalysis); ok {
		insights = append(insights, fmt.Sprintf("symbol %s explains %.0f%% of files", hash, coverage))
	}

	return insights
}

func maxUint64(m map[string]uint64) (string, uint64, bool) {
	keys := sortedKeys(m)
	var bestKey string
	var bestVal uint64
	found := false
	for _, k := range keys {
		if !found || m[k] > bestVal {
			bestKey, bestVal, found = k, m[k], true
		}
	}
	return bestKey, bestVal, found
}

func maxFloat64(m map[string]float64) (string, float64, bool) {
	keys := sortedKeys(m)
	var bestKey string
	var bestVal float64
	found := false
	for _, k := range keys {
		if !found || m[k] > bestVal {
			bestKey, bestVal, found = k, m[k], true
		}
	}
	return bestKey, bestVal, found
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func encodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func decodeUint64(b []byte) uint64 {
	if len(b) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func encodeFloat64(v float64) []byte {
	return encodeUint64(math.Float64bits(v))
}

func decodeFloat64(b []byte) float64 {
	return math.Float64frombits(decodeUint64(b))
}
