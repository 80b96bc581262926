package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"symvea.dev/store/internal/hashutil"
)

// Frame type identifiers.
const (
	FrameUpload           = 0x01
	FrameDownload         = 0x02
	FrameFreezeDictionary = 0x03
	FrameClose            = 0x04
	FrameAck              = 0x05
	FrameData             = 0x06
	FrameNotFound         = 0x07
	FrameVerify           = 0x08
	FrameVerified         = 0x09
	FrameChunkStart       = 0x10
	FrameChunkData        = 0x11
	FrameChunkEnd         = 0x12
)

// FrameHeaderSize is the fixed wire size of a frame header.
const FrameHeaderSize = 12

// FrameHeader precedes every frame's payload.
type FrameHeader struct {
	Type       byte
	Flags      byte
	HeaderLen  uint16
	PayloadLen uint32
	Checksum   uint32
}

// Encode serializes the header to its fixed 12-byte wire form.
func (h FrameHeader) Encode() []byte {
	buf := make([]byte, FrameHeaderSize)
	buf[0] = h.Type
	buf[1] = h.Flags
	binary.BigEndian.PutUint16(buf[2:4], h.HeaderLen)
	binary.BigEndian.PutUint32(buf[4:8], h.PayloadLen)
	binary.BigEndian.PutUint32(buf[8:12], h.Checksum)
	return buf
}

// DecodeFrameHeader parses a 12-byte frame header.
func DecodeFrameHeader(buf []byte) (FrameHeader, error) {
	if len(buf) != FrameHeaderSize {
		return FrameHeader{}, fmt.Errorf("wire: frame header must be %d bytes, got %d", FrameHeaderSize, len(buf))
	}
	return FrameHeader{
		Type:       buf[0],
		Flags:      buf[1],
		HeaderLen:  binary.BigEndian.Uint16(buf[2:4]),
		PayloadLen: binary.BigEndian.Uint32(buf[4:8]),
		Checksum:   binary.BigEndian.Uint32(buf[8:12]),
	}, nil
}

// WriteFrame writes frameType and payload as a complete frame: header then
// payload, with the checksum computed over payload.
func WriteFrame(w io.Writer, frameType byte, payload []byte) error {
	header := FrameHeader{
		Type:       frameType,
		HeaderLen:  FrameHeaderSize,
		PayloadLen: uint32(len(payload)),
		Checksum:   hashutil.Checksum(payload),
	}
	if _, err := w.Write(header.Encode()); err != nil {
		return fmt.Errorf("wire: write frame header: %w", err)
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("wire: write frame payload: %w", err)
		}
	}
	return nil
}

// ReadFrame reads one complete frame from r, verifying the checksum. A
// frame whose declared payload_len exceeds maxPayload is rejected without
// reading the payload, matching the resource-error class for oversized
// uploads (0 means unbounded).
func ReadFrame(r io.Reader, maxPayload uint32) (byte, []byte, error) {
	headerBuf := make([]byte, FrameHeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return 0, nil, fmt.Errorf("wire: read frame header: %w", err)
	}
	header, err := DecodeFrameHeader(headerBuf)
	if err != nil {
		return 0, nil, err
	}
	if maxPayload > 0 && header.PayloadLen > maxPayload {
		return 0, nil, fmt.Errorf("wire: payload length %d exceeds max_file_size %d", header.PayloadLen, maxPayload)
	}
	payload := make([]byte, header.PayloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, fmt.Errorf("wire: read frame payload: %w", err)
	}
	if !hashutil.VerifyChecksum(payload, header.Checksum) {
		return 0, nil, fmt.Errorf("wire: checksum mismatch for frame type 0x%02x", header.Type)
	}
	return header.Type, payload, nil
}
