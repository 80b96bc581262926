// Package wire implements the fixed 12-byte handshake and 12-byte frame
// header described in the wire protocol, plus the payload layouts for
// every frame type.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Magic identifies the protocol at the start of a handshake.
const Magic = "SYMV"

// ProtocolVersion is the only version this implementation speaks.
const ProtocolVersion uint16 = 1

// HandshakeSize is the fixed wire size of a Handshake.
const HandshakeSize = 12

// Handshake is exchanged once per connection in both directions before any
// frame. flags and capabilities are reserved: always emitted as zero and
// ignored on receive.
type Handshake struct {
	Version      uint16
	Flags        uint16
	Capabilities uint32
}

// Encode serializes h to its fixed 12-byte wire form.
func (h Handshake) Encode() []byte {
	buf := make([]byte, HandshakeSize)
	copy(buf[0:4], Magic)
	binary.BigEndian.PutUint16(buf[4:6], h.Version)
	binary.BigEndian.PutUint16(buf[6:8], h.Flags)
	binary.BigEndian.PutUint32(buf[8:12], h.Capabilities)
	return buf
}

// DecodeHandshake parses a 12-byte handshake, validating the magic and
// version.
func DecodeHandshake(buf []byte) (Handshake, error) {
	if len(buf) != HandshakeSize {
		return Handshake{}, fmt.Errorf("wire: handshake must be %d bytes, got %d", HandshakeSize, len(buf))
	}
	if string(buf[0:4]) != Magic {
		return Handshake{}, fmt.Errorf("wire: invalid magic %q", buf[0:4])
	}
	h := Handshake{
		Version:      binary.BigEndian.Uint16(buf[4:6]),
		Flags:        binary.BigEndian.Uint16(buf[6:8]),
		Capabilities: binary.BigEndian.Uint32(buf[8:12]),
	}
	if h.Version != ProtocolVersion {
		return Handshake{}, fmt.Errorf("wire: unsupported version %d", h.Version)
	}
	return h, nil
}

// WriteHandshake writes the standard handshake (version 1, flags and
// capabilities zero) to w.
func WriteHandshake(w io.Writer) error {
	h := Handshake{Version: ProtocolVersion}
	_, err := w.Write(h.Encode())
	if err != nil {
		return fmt.Errorf("wire: write handshake: %w", err)
	}
	return nil
}

// ReadHandshake reads and validates a handshake from r.
func ReadHandshake(r io.Reader) (Handshake, error) {
	buf := make([]byte, HandshakeSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Handshake{}, fmt.Errorf("wire: read handshake: %w", err)
	}
	return DecodeHandshake(buf)
}
