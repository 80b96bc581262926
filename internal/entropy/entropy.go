// Package entropy implements the per-object canonical prefix code described
// in the wire format: a self-describing compressed blob built fresh for
// each object from its own token frequencies, carrying its own code table
// so decoding needs no state beyond the bytes themselves.
package entropy

import (
	"bytes"
	"container/heap"
	"encoding/binary"
	"fmt"

	"symvea.dev/store/internal/bitio"
)

type code struct {
	bits   uint64
	length uint8
}

type treeNode struct {
	freq   int64
	token  uint32
	isLeaf bool
	left   *treeNode
	right  *treeNode
	insIdx int
}

// nodeHeap is a min-heap over (freq, insertion index), giving a
// deterministic combine order for equal-frequency nodes.
type nodeHeap []*treeNode

func (h nodeHeap) Len() int { return len(h) }
func (h nodeHeap) Less(i, j int) bool {
	if h[i].freq != h[j].freq {
		return h[i].freq < h[j].freq
	}
	return h[i].insIdx < h[j].insIdx
}
func (h nodeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x any)        { *h = append(*h, x.(*treeNode)) }
func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Encode builds the per-object canonical prefix code table for tokens and
// emits the full self-describing payload specified by the wire format:
// a table of (token, code) entries followed by the packed bit stream.
func Encode(tokens []uint32) []byte {
	order, freqs := orderedFrequencies(tokens)

	codes := buildCodes(order, freqs)

	w := bitio.NewWriter()
	for _, tok := range tokens {
		c := codes[tok]
		w.WriteBits(c.bits, c.length)
	}
	bitstream, tailBits := w.Bytes()

	var buf bytes.Buffer
	writeU32(&buf, uint32(len(order)))
	for _, tok := range order {
		c := codes[tok]
		byteLen := (c.length + 7) / 8
		writeU32(&buf, tok)
		buf.WriteByte(c.length)
		buf.WriteByte(byteLen)
		buf.Write(packCode(c, byteLen))
	}

	streamLen := 1 + len(bitstream) // tail_bits byte + packed codes
	writeU32(&buf, uint32(streamLen))
	buf.WriteByte(tailBits)
	buf.Write(bitstream)

	return buf.Bytes()
}

// Decode parses a payload produced by Encode and returns the original
// token sequence.
func Decode(data []byte) ([]uint32, error) {
	r := bytes.NewReader(data)

	tableLen, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("entropy: read table length: %w", err)
	}

	entries := make([]tableEntry, 0, tableLen)
	for i := uint32(0); i < tableLen; i++ {
		tok, err := readU32(r)
		if err != nil {
			return nil, fmt.Errorf("entropy: read token %d: %w", i, err)
		}
		bitLen, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("entropy: read code_bit_length %d: %w", i, err)
		}
		byteLen, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("entropy: read code_byte_length %d: %w", i, err)
		}
		codeBytes := make([]byte, byteLen)
		if _, err := readFull(r, codeBytes); err != nil {
			return nil, fmt.Errorf("entropy: read code bytes %d: %w", i, err)
		}
		entries = append(entries, tableEntry{token: tok, bitLen: bitLen, byteLen: byteLen, bytes: codeBytes})
	}

	streamLen, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("entropy: read compressed_bit_stream_length: %w", err)
	}
	if streamLen == 0 {
		return nil, fmt.Errorf("entropy: compressed_bit_stream_length must be at least 1 (tail_bits byte)")
	}
	tailBits, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("entropy: read tail_bits: %w", err)
	}
	bitstream := make([]byte, streamLen-1)
	if _, err := readFull(r, bitstream); err != nil {
		return nil, fmt.Errorf("entropy: read bit stream: %w", err)
	}

	if tableLen == 0 {
		return []uint32{}, nil
	}

	root := rebuildTree(entries)

	br := bitio.NewReader(bitstream, tailBits)
	var out []uint32
	if len(entries) == 1 {
		// Single-symbol special case: one bit per occurrence, all zero.
		for {
			_, ok := br.ReadBit()
			if !ok {
				break
			}
			out = append(out, entries[0].token)
		}
		return out, nil
	}

	cur := root
	for {
		bit, ok := br.ReadBit()
		if !ok {
			break
		}
		if bit == 0 {
			cur = cur.left
		} else {
			cur = cur.right
		}
		if cur == nil {
			return nil, fmt.Errorf("entropy: bit stream diverged from code tree")
		}
		if cur.isLeaf {
			out = append(out, cur.token)
			cur = root
		}
	}
	if cur != root {
		return nil, fmt.Errorf("entropy: bit stream ended mid-code")
	}
	return out, nil
}

// orderedFrequencies counts token frequencies, preserving first-occurrence
// order so tree construction is deterministic for a given input.
func orderedFrequencies(tokens []uint32) ([]uint32, map[uint32]int64) {
	freqs := make(map[uint32]int64)
	var order []uint32
	for _, t := range tokens {
		if _, ok := freqs[t]; !ok {
			order = append(order, t)
		}
		freqs[t]++
	}
	return order, freqs
}

func buildCodes(order []uint32, freqs map[uint32]int64) map[uint32]code {
	codes := make(map[uint32]code, len(order))
	if len(order) == 0 {
		return codes
	}
	if len(order) == 1 {
		codes[order[0]] = code{bits: 0, length: 1}
		return codes
	}

	h := make(nodeHeap, 0, len(order))
	insIdx := 0
	for _, tok := range order {
		h = append(h, &treeNode{freq: freqs[tok], token: tok, isLeaf: true, insIdx: insIdx})
		insIdx++
	}
	heap.Init(&h)

	for h.Len() > 1 {
		a := heap.Pop(&h).(*treeNode)
		b := heap.Pop(&h).(*treeNode)
		parent := &treeNode{freq: a.freq + b.freq, left: a, right: b, insIdx: insIdx}
		insIdx++
		heap.Push(&h, parent)
	}
	root := h[0]

	var walk func(n *treeNode, bits uint64, length uint8)
	walk = func(n *treeNode, bits uint64, length uint8) {
		if n.isLeaf {
			codes[n.token] = code{bits: bits, length: length}
			return
		}
		walk(n.left, bits<<1, length+1)
		walk(n.right, (bits<<1)|1, length+1)
	}
	walk(root, 0, 0)
	return codes
}

type tableEntry struct {
	token   uint32
	bitLen  uint8
	byteLen uint8
	bytes   []byte
}

func rebuildTree(entries []tableEntry) *treeNode {
	root := &treeNode{}
	for _, e := range entries {
		cur := root
		for i := uint8(0); i < e.bitLen; i++ {
			bit := bitAt(e.bytes, i)
			if bit == 0 {
				if cur.left == nil {
					cur.left = &treeNode{}
				}
				cur = cur.left
			} else {
				if cur.right == nil {
					cur.right = &treeNode{}
				}
				cur = cur.right
			}
		}
		cur.isLeaf = true
		cur.token = e.token
	}
	return root
}

func bitAt(data []byte, i uint8) byte {
	byteIdx := i / 8
	bitIdx := 7 - (i % 8)
	return (data[byteIdx] >> bitIdx) & 1
}

// packCode packs a code's `length` significant bits (LSB-aligned in bits)
// into byteLen bytes, MSB-first, zero-padded.
func packCode(c code, byteLen uint8) []byte {
	w := bitio.NewWriter()
	w.WriteBits(c.bits, c.length)
	packed, _ := w.Bytes()
	if uint8(len(packed)) < byteLen {
		packed = append(packed, make([]byte, int(byteLen)-len(packed))...)
	}
	return packed
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func readU32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := readFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readFull(r *bytes.Reader, b []byte) (int, error) {
	total := 0
	for total < len(b) {
		n, err := r.Read(b[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, fmt.Errorf("unexpected end of data")
		}
	}
	return total, nil
}
