package symbolstore

import "fmt"

// Layered composes a writable symbol store with an ordered list of
// read-only mounts (archival tiers). Writes always go to Writable;
// lookups fall through the mounts in order. There is no write path into a
// mount.
type Layered struct {
	Writable       *Store
	ReadOnlyMounts []*Store
}

// StoreSymbol writes only to the writable tier.
func (l *Layered) StoreSymbol(hash string, bytes []byte) error {
	return l.Writable.StoreSymbol(hash, bytes)
}

// RecordUsage records usage only against the writable tier; read-only
// mounts carry no usage index of their own.
func (l *Layered) RecordUsage(hash, objectKey string, size int, occurrences int64) error {
	return l.Writable.RecordUsage(hash, objectKey, size, occurrences)
}

// LoadSymbol tries the writable tier first, then each read-only mount in
// order.
func (l *Layered) LoadSymbol(hash string) (StoredSymbol, []byte, error) {
	if meta, data, err := l.Writable.LoadSymbol(hash); err == nil {
		return meta, data, nil
	}
	for _, mount := range l.ReadOnlyMounts {
		if meta, data, err := mount.LoadSymbol(hash); err == nil {
			return meta, data, nil
		}
	}
	return StoredSymbol{}, nil, fmt.Errorf("symbolstore: symbol %s not found in writable store or any read-only mount", hash)
}

// ListSymbols returns the union of hashes across the writable tier and
// every read-only mount, deduplicated.
func (l *Layered) ListSymbols() ([]string, error) {
	seen := make(map[string]bool)
	var all []string
	add := func(hashes []string) {
		for _, h := range hashes {
			if !seen[h] {
				seen[h] = true
				all = append(all, h)
			}
		}
	}
	hashes, err := l.Writable.ListSymbols()
	if err != nil {
		return nil, err
	}
	add(hashes)
	for _, mount := range l.ReadOnlyMounts {
		hashes, err := mount.ListSymbols()
		if err != nil {
			return nil, err
		}
		add(hashes)
	}
	return all, nil
}

// CountSymbols reports the deduplicated count across all tiers.
func (l *Layered) CountSymbols() (int, error) {
	hashes, err := l.ListSymbols()
	if err != nil {
		return 0, err
	}
	return len(hashes), nil
}
