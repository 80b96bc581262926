// Package symbol defines the unit of dictionary compression: an immutable
// byte sequence identified by the hash of its content, paired with the
// integer token that stands in for it once installed in a dictionary.
package symbol

import "symvea.dev/store/internal/hashutil"

// MaxLen is the largest byte sequence a symbol may carry.
const MaxLen = 64

// MinLen is the smallest byte sequence a symbol may carry.
const MinLen = 1

// FirstAssignableToken is the first token value available for symbols.
// Tokens below this are reserved as literal byte pass-throughs.
const FirstAssignableToken = 256

// Symbol is a candidate or installed dictionary entry: a byte sequence,
// the token it occupies (or will occupy) in a dictionary, and its
// content-derived identity.
type Symbol struct {
	Bytes []byte
	Token uint32
	Hash  string
	Gain  int64
}

// New builds a Symbol from bytes, token and predicted gain, computing the
// content hash as hex(SHA256(bytes)[0:16]).
func New(bytes []byte, token uint32, gain int64) Symbol {
	cp := make([]byte, len(bytes))
	copy(cp, bytes)
	return Symbol{
		Bytes: cp,
		Token: token,
		Hash:  hashutil.SymbolHash(cp),
		Gain:  gain,
	}
}

// ID returns the symbol's identity string, "sym:<hash>".
func (s Symbol) ID() string {
	return "sym:" + s.Hash
}
