package wire

import (
	"encoding/binary"
	"fmt"
)

// EncodeUpload builds an Upload frame payload: u32 key_len, key, object.
func EncodeUpload(key string, object []byte) []byte {
	buf := make([]byte, 0, 4+len(key)+len(object))
	buf = appendU32(buf, uint32(len(key)))
	buf = append(buf, key...)
	buf = append(buf, object...)
	return buf
}

// DecodeUpload parses an Upload frame payload.
func DecodeUpload(payload []byte) (key string, object []byte, err error) {
	k, rest, err := readKeyPrefixed(payload)
	if err != nil {
		return "", nil, fmt.Errorf("wire: decode upload: %w", err)
	}
	return k, rest, nil
}

// EncodeDownload builds a Download frame payload: the key, whole.
func EncodeDownload(key string) []byte {
	return []byte(key)
}

// DecodeDownload parses a Download frame payload.
func DecodeDownload(payload []byte) (key string, err error) {
	return string(payload), nil
}

// EncodeAck builds an Ack frame payload.
func EncodeAck(key string, originalSize, compressedSize uint64) []byte {
	buf := make([]byte, 0, 4+len(key)+16)
	buf = appendU32(buf, uint32(len(key)))
	buf = append(buf, key...)
	buf = appendU64(buf, originalSize)
	buf = appendU64(buf, compressedSize)
	return buf
}

// DecodeAck parses an Ack frame payload.
func DecodeAck(payload []byte) (key string, originalSize, compressedSize uint64, err error) {
	k, rest, err := readKeyPrefixed(payload)
	if err != nil {
		return "", 0, 0, fmt.Errorf("wire: decode ack: %w", err)
	}
	if len(rest) != 16 {
		return "", 0, 0, fmt.Errorf("wire: decode ack: expected 16 trailing bytes, got %d", len(rest))
	}
	return k, binary.BigEndian.Uint64(rest[0:8]), binary.BigEndian.Uint64(rest[8:16]), nil
}

// EncodeData builds a Data frame payload.
func EncodeData(key string, object []byte) []byte {
	buf := make([]byte, 0, 4+len(key)+len(object))
	buf = appendU32(buf, uint32(len(key)))
	buf = append(buf, key...)
	buf = append(buf, object...)
	return buf
}

// DecodeData parses a Data frame payload.
func DecodeData(payload []byte) (key string, object []byte, err error) {
	k, rest, err := readKeyPrefixed(payload)
	if err != nil {
		return "", nil, fmt.Errorf("wire: decode data: %w", err)
	}
	return k, rest, nil
}

// EncodeNotFound builds a NotFound frame payload.
func EncodeNotFound(key string) []byte {
	buf := make([]byte, 0, 4+len(key))
	buf = appendU32(buf, uint32(len(key)))
	buf = append(buf, key...)
	return buf
}

// DecodeNotFound parses a NotFound frame payload.
func DecodeNotFound(payload []byte) (key string, err error) {
	k, rest, err := readKeyPrefixed(payload)
	if err != nil {
		return "", fmt.Errorf("wire: decode not-found: %w", err)
	}
	if len(rest) != 0 {
		return "", fmt.Errorf("wire: decode not-found: unexpected trailing bytes")
	}
	return k, nil
}

// EncodeVerify builds a Verify frame payload: the key, whole.
func EncodeVerify(key string) []byte {
	return []byte(key)
}

// DecodeVerify parses a Verify frame payload.
func DecodeVerify(payload []byte) (key string, err error) {
	return string(payload), nil
}

// EncodeVerified builds a Verified frame payload.
func EncodeVerified(key string, hashMatch bool) []byte {
	buf := make([]byte, 0, 4+len(key)+1)
	buf = appendU32(buf, uint32(len(key)))
	buf = append(buf, key...)
	if hashMatch {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

// DecodeVerified parses a Verified frame payload.
func DecodeVerified(payload []byte) (key string, hashMatch bool, err error) {
	k, rest, err := readKeyPrefixed(payload)
	if err != nil {
		return "", false, fmt.Errorf("wire: decode verified: %w", err)
	}
	if len(rest) != 1 {
		return "", false, fmt.Errorf("wire: decode verified: expected 1 trailing byte, got %d", len(rest))
	}
	return k, rest[0] != 0, nil
}

// EncodeChunkStart builds a ChunkStart frame payload.
func EncodeChunkStart(key string, totalSize uint64, chunkCount uint32) []byte {
	buf := make([]byte, 0, 4+len(key)+12)
	buf = appendU32(buf, uint32(len(key)))
	buf = append(buf, key...)
	buf = appendU64(buf, totalSize)
	buf = appendU32(buf, chunkCount)
	return buf
}

// DecodeChunkStart parses a ChunkStart frame payload.
func DecodeChunkStart(payload []byte) (key string, totalSize uint64, chunkCount uint32, err error) {
	k, rest, err := readKeyPrefixed(payload)
	if err != nil {
		return "", 0, 0, fmt.Errorf("wire: decode chunk-start: %w", err)
	}
	if len(rest) != 12 {
		return "", 0, 0, fmt.Errorf("wire: decode chunk-start: expected 12 trailing bytes, got %d", len(rest))
	}
	return k, binary.BigEndian.Uint64(rest[0:8]), binary.BigEndian.Uint32(rest[8:12]), nil
}

// EncodeChunkData builds a ChunkData frame payload.
func EncodeChunkData(key string, chunkIndex uint32, chunk []byte) []byte {
	buf := make([]byte, 0, 4+len(key)+4+len(chunk))
	buf = appendU32(buf, uint32(len(key)))
	buf = append(buf, key...)
	buf = appendU32(buf, chunkIndex)
	buf = append(buf, chunk...)
	return buf
}

// DecodeChunkData parses a ChunkData frame payload.
func DecodeChunkData(payload []byte) (key string, chunkIndex uint32, chunk []byte, err error) {
	k, rest, err := readKeyPrefixed(payload)
	if err != nil {
		return "", 0, nil, fmt.Errorf("wire: decode chunk-data: %w", err)
	}
	if len(rest) < 4 {
		return "", 0, nil, fmt.Errorf("wire: decode chunk-data: truncated chunk index")
	}
	return k, binary.BigEndian.Uint32(rest[0:4]), rest[4:], nil
}

// EncodeChunkEnd builds a ChunkEnd frame payload: the key, whole (advisory).
func EncodeChunkEnd(key string) []byte {
	return []byte(key)
}

// DecodeChunkEnd parses a ChunkEnd frame payload.
func DecodeChunkEnd(payload []byte) (key string, err error) {
	return string(payload), nil
}

func appendU32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func appendU64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func readKeyPrefixed(payload []byte) (key string, rest []byte, err error) {
	if len(payload) < 4 {
		return "", nil, fmt.Errorf("truncated key length")
	}
	keyLen := binary.BigEndian.Uint32(payload[0:4])
	if uint64(4+keyLen) > uint64(len(payload)) {
		return "", nil, fmt.Errorf("truncated key: declared length %d exceeds payload", keyLen)
	}
	key = string(payload[4 : 4+keyLen])
	rest = payload[4+keyLen:]
	return key, rest, nil
}
