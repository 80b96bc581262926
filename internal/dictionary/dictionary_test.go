package dictionary

import (
	"path/filepath"
	"testing"
)

func TestInsertAndInverse(t *testing.T) {
	d := New("mutable", 1000)
	d.Insert([]byte("hello"), 256)
	d.Insert([]byte("world"), 257)

	for _, tc := range []struct {
		b []byte
		t uint32
	}{{[]byte("hello"), 256}, {[]byte("world"), 257}} {
		gotTok, ok := d.Contains(tc.b)
		if !ok || gotTok != tc.t {
			t.Fatalf("Contains(%s): got (%d,%v) want (%d,true)", tc.b, gotTok, ok, tc.t)
		}
		gotBytes, ok := d.Decode(tc.t)
		if !ok || string(gotBytes) != string(tc.b) {
			t.Fatalf("Decode(%d): got (%s,%v) want (%s,true)", tc.t, gotBytes, ok, tc.b)
		}
	}
}

func TestInsertWhileFrozenIsNoop(t *testing.T) {
	d := New("mutable", 1000)
	d.Freeze(2000)
	d.Insert([]byte("late"), 256)
	if _, ok := d.Contains([]byte("late")); ok {
		t.Fatalf("expected insert into frozen dictionary to be a no-op")
	}
}

func TestFreezeIdempotent(t *testing.T) {
	d := New("mutable", 1000)
	d.Insert([]byte("abc"), 256)
	id1 := d.Freeze(2000)
	serialized1 := d.Serialize()
	id2 := d.Freeze(3000) // second call must not move frozenAt or id
	if id1 != id2 {
		t.Fatalf("freeze not idempotent: %s != %s", id1, id2)
	}
	if d.FrozenAt() != 2000 {
		t.Fatalf("second freeze call must not change frozenAt, got %d", d.FrozenAt())
	}
	if string(d.Serialize()) != string(serialized1) {
		t.Fatalf("serialized content changed across idempotent freeze calls")
	}
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	d := New("mutable", 1000)
	d.Insert([]byte("hello"), 256)
	d.Insert([]byte("world"), 257)
	d.Insert([]byte("x"), 258)

	data := d.Serialize()
	d2, err := Deserialize("mutable", data, 1000)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if d2.Len() != d.Len() {
		t.Fatalf("length mismatch: %d != %d", d2.Len(), d.Len())
	}
	for _, b := range [][]byte{[]byte("hello"), []byte("world"), []byte("x")} {
		tok1, _ := d.Contains(b)
		tok2, ok := d2.Contains(b)
		if !ok || tok1 != tok2 {
			t.Fatalf("token mismatch for %s: %d vs %d", b, tok1, tok2)
		}
	}
}

func TestSerializeDeterministicRegardlessOfInsertOrder(t *testing.T) {
	d1 := New("mutable", 1000)
	d1.Insert([]byte("a"), 256)
	d1.Insert([]byte("b"), 257)

	d2 := New("mutable", 1000)
	d2.Insert([]byte("b"), 257)
	d2.Insert([]byte("a"), 256)

	if string(d1.Serialize()) != string(d2.Serialize()) {
		t.Fatalf("serialization must be stable (sorted by token) regardless of insert order")
	}
}

func TestFreezeAssignsContentHashID(t *testing.T) {
	d := New("mutable", 1000)
	d.Insert([]byte("same"), 256)
	id := d.Freeze(2000)
	if len(id) != 32 {
		t.Fatalf("expected 32-char content-hash id, got %q", id)
	}

	d2 := New("mutable", 1000)
	d2.Insert([]byte("same"), 256)
	id2 := d2.Freeze(9999) // different frozenAt, same content
	if id != id2 {
		t.Fatalf("freeze id must depend only on content, not frozenAt: %s != %s", id, id2)
	}
}

func TestNextTokenAdvances(t *testing.T) {
	d := New("mutable", 1000)
	if d.NextToken() != 256 {
		t.Fatalf("expected initial next token 256, got %d", d.NextToken())
	}
	d.Insert([]byte("a"), 256)
	d.Insert([]byte("b"), 300)
	if d.NextToken() != 301 {
		t.Fatalf("expected next token 301 after inserting up to 300, got %d", d.NextToken())
	}
}

func TestSaveLoadFrozenSnapshot(t *testing.T) {
	d := New("mutable", 1000)
	d.Insert([]byte("hello"), 256)
	d.Insert([]byte("world"), 257)
	id := d.Freeze(2000)

	path := filepath.Join(t.TempDir(), "dictionary_"+id+".json")
	if err := d.SaveFrozen(path); err != nil {
		t.Fatalf("SaveFrozen: %v", err)
	}

	loaded, err := LoadFrozenFile(path)
	if err != nil {
		t.Fatalf("LoadFrozenFile: %v", err)
	}
	if loaded.ID != id || !loaded.Frozen() || loaded.FrozenAt() != 2000 {
		t.Fatalf("loaded snapshot mismatch: id=%s frozen=%v frozenAt=%d", loaded.ID, loaded.Frozen(), loaded.FrozenAt())
	}
	tok, ok := loaded.Contains([]byte("hello"))
	if !ok || tok != 256 {
		t.Fatalf("expected hello->256 to survive round trip, got (%d,%v)", tok, ok)
	}
}

func TestSaveFrozenRejectsUnfrozenDictionary(t *testing.T) {
	d := New("mutable", 1000)
	if err := d.SaveFrozen(filepath.Join(t.TempDir(), "dictionary_x.json")); err == nil {
		t.Fatalf("expected error saving an unfrozen dictionary")
	}
}
