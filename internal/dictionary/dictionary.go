// Package dictionary implements the bidirectional {bytes<->token} mapping
// shared by every session: created mutable, grown by inserts while
// mutable, and frozen exactly once into a content-addressed snapshot.
//
// A Dictionary is a plain value type; it carries no lock of its own. Per
// the concurrency model, the single process-wide instance is guarded by a
// caller-held mutex for the full duration of one object's encode, never
// split across planning, insertion and tokenization.
package dictionary

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"crypto/sha256"
)

// EngineVersion is embedded in every serialized dictionary and every
// ObjectMetadata record.
const EngineVersion = "symvea-engine@1.0.0"

// Dictionary is the bidirectional symbol<->token mapping. Tokens 0..255 are
// implicit literal pass-throughs and are never stored in encode/decode.
type Dictionary struct {
	ID            string
	encode        map[string]uint32
	decode        map[uint32][]byte
	frozen        bool
	createdAt     int64
	frozenAt      int64
	engineVersion string
	nextToken     uint32
}

// New creates a mutable dictionary named id, created at createdAt (unix
// epoch seconds, supplied by the caller so this package stays deterministic
// and testable without wall-clock access).
func New(id string, createdAt int64) *Dictionary {
	return &Dictionary{
		ID:            id,
		encode:        make(map[string]uint32),
		decode:        make(map[uint32][]byte),
		createdAt:     createdAt,
		engineVersion: EngineVersion,
		nextToken:     256,
	}
}

// Frozen reports whether the dictionary has been frozen.
func (d *Dictionary) Frozen() bool { return d.frozen }

// CreatedAt returns the creation timestamp.
func (d *Dictionary) CreatedAt() int64 { return d.createdAt }

// FrozenAt returns the freeze timestamp, or 0 if not yet frozen.
func (d *Dictionary) FrozenAt() int64 { return d.frozenAt }

// Contains reports whether b is already an installed symbol, returning its
// token.
func (d *Dictionary) Contains(b []byte) (uint32, bool) {
	t, ok := d.encode[string(b)]
	return t, ok
}

// Decode returns the bytes for token t, if t is an installed symbol token
// (not a literal token in 0..255).
func (d *Dictionary) Decode(t uint32) ([]byte, bool) {
	b, ok := d.decode[t]
	return b, ok
}

// Insert installs b at token t. It is a silent no-op if the dictionary is
// frozen or b is already present.
func (d *Dictionary) Insert(b []byte, t uint32) {
	if d.frozen {
		return
	}
	if _, exists := d.encode[string(b)]; exists {
		return
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	d.encode[string(cp)] = t
	d.decode[t] = cp
	if t >= d.nextToken {
		d.nextToken = t + 1
	}
}

// NextToken returns the next unassigned token, for planners minting fresh
// symbol tokens.
func (d *Dictionary) NextToken() uint32 {
	return d.nextToken
}

// Snapshot returns a read-only copy of the current encode table, suitable
// for building a tokenizer automaton outside the dictionary lock.
func (d *Dictionary) Snapshot() map[string]uint32 {
	cp := make(map[string]uint32, len(d.encode))
	for k, v := range d.encode {
		cp[k] = v
	}
	return cp
}

// Len reports the number of installed symbols.
func (d *Dictionary) Len() int { return len(d.encode) }

// Freeze transitions the dictionary to frozen, assigning a content-hash id.
// Idempotent: calling Freeze again returns the same id and does not alter
// serialized content or frozenAt.
func (d *Dictionary) Freeze(frozenAt int64) string {
	if d.frozen {
		return d.ID
	}
	d.frozen = true
	d.frozenAt = frozenAt
	d.ID = d.computeHash()
	return d.ID
}

func (d *Dictionary) computeHash() string {
	sum := sha256.Sum256(d.Serialize())
	return hex.EncodeToString(sum[:16])
}

// Serialize produces a stable, length-prefixed binary encoding of the
// dictionary: entries sorted by token so that two in-memory dictionaries
// with identical content always serialize identically, which is the
// property id computation depends on.
func (d *Dictionary) Serialize() []byte {
	type entry struct {
		token uint32
		bytes []byte
	}
	entries := make([]entry, 0, len(d.decode))
	for t, b := range d.decode {
		entries = append(entries, entry{t, b})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].token < entries[j].token })

	var buf bytes.Buffer
	writeString(&buf, d.engineVersion)
	writeUint32(&buf, uint32(len(entries)))
	for _, e := range entries {
		writeUint32(&buf, e.token)
		writeUint32(&buf, uint32(len(e.bytes)))
		buf.Write(e.bytes)
	}
	return buf.Bytes()
}

// Deserialize rebuilds a mutable (unfrozen) dictionary named id from bytes
// produced by Serialize. The caller is responsible for freezing it again
// if the snapshot being loaded was frozen (frozen dictionaries are loaded
// via LoadFrozen, which preserves the id).
func Deserialize(id string, data []byte, createdAt int64) (*Dictionary, error) {
	r := bytes.NewReader(data)
	engineVersion, err := readString(r)
	if err != nil {
		return nil, fmt.Errorf("dictionary: read engine version: %w", err)
	}
	count, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("dictionary: read entry count: %w", err)
	}
	d := New(id, createdAt)
	d.engineVersion = engineVersion
	for i := uint32(0); i < count; i++ {
		token, err := readUint32(r)
		if err != nil {
			return nil, fmt.Errorf("dictionary: read token %d: %w", i, err)
		}
		n, err := readUint32(r)
		if err != nil {
			return nil, fmt.Errorf("dictionary: read length %d: %w", i, err)
		}
		b := make([]byte, n)
		if _, err := r.Read(b); err != nil {
			return nil, fmt.Errorf("dictionary: read bytes %d: %w", i, err)
		}
		d.Insert(b, token)
	}
	return d, nil
}

// LoadFrozen rebuilds a frozen dictionary, preserving id and frozenAt
// rather than recomputing them, for loading persisted snapshots.
func LoadFrozen(id string, data []byte, createdAt, frozenAt int64) (*Dictionary, error) {
	d, err := Deserialize(id, data, createdAt)
	if err != nil {
		return nil, err
	}
	d.frozen = true
	d.frozenAt = frozenAt
	d.ID = id
	return d, nil
}

// snapshotFile is the on-disk envelope for a frozen dictionary, written as
// dictionary_<id>.json. The table itself stays in Serialize's stable binary
// form (hex-encoded here) so the content hash a dictionary carries always
// matches what FreezeDictionary computed in memory.
type snapshotFile struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"created_at"`
	FrozenAt  int64  `json:"frozen_at"`
	Table     string `json:"table"`
}

// SaveFrozen writes a frozen dictionary's snapshot to path as JSON. It is an
// error to call this on a dictionary that has not been frozen.
func (d *Dictionary) SaveFrozen(path string) error {
	if !d.frozen {
		return fmt.Errorf("dictionary: cannot save an unfrozen dictionary")
	}
	snap := snapshotFile{
		ID:        d.ID,
		CreatedAt: d.createdAt,
		FrozenAt:  d.frozenAt,
		Table:     hex.EncodeToString(d.Serialize()),
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("dictionary: marshal snapshot: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("dictionary: write snapshot: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadFrozenFile reads a frozen dictionary snapshot written by SaveFrozen.
func LoadFrozenFile(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dictionary: read snapshot: %w", err)
	}
	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("dictionary: unmarshal snapshot: %w", err)
	}
	table, err := hex.DecodeString(snap.Table)
	if err != nil {
		return nil, fmt.Errorf("dictionary: decode snapshot table: %w", err)
	}
	return LoadFrozen(snap.ID, table, snap.CreatedAt, snap.FrozenAt)
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := r.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func writeString(buf *bytes.Buffer, s string) {
	writeUint32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := r.Read(b); err != nil {
		return "", err
	}
	return string(b), nil
}
