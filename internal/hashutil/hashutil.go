// Package hashutil provides the two checksum algorithms named as invariants
// by the wire protocol and data model: SHA-256 content hashes and CRC-32
// frame checksums.
package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"hash/crc32"
)

// ContentHash returns the full SHA-256 digest of b.
func ContentHash(b []byte) [32]byte {
	return sha256.Sum256(b)
}

// SymbolHash returns the symbol identity hash: hex(SHA256(bytes)[0:16]),
// i.e. the first 16 bytes of the digest, hex-encoded (32 hex characters).
func SymbolHash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:16])
}

// Checksum computes the CRC-32 (IEEE) of payload, used as the frame
// checksum field.
func Checksum(payload []byte) uint32 {
	return crc32.ChecksumIEEE(payload)
}

// VerifyChecksum reports whether payload's CRC-32 matches want.
func VerifyChecksum(payload []byte, want uint32) bool {
	return Checksum(payload) == want
}

// FileID derives the corpus file-id used for corpus/files/<fileid>.meta.json
// from an object key: hex(CRC32(key)).
func FileID(key string) string {
	sum := crc32.ChecksumIEEE([]byte(key))
	var buf [4]byte
	buf[0] = byte(sum >> 24)
	buf[1] = byte(sum >> 16)
	buf[2] = byte(sum >> 8)
	buf[3] = byte(sum)
	return hex.EncodeToString(buf[:])
}
