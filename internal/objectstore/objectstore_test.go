package objectstore

import (
	"testing"

	"symvea.dev/store/internal/codec"
)

func TestPutGetRoundTrip(t *testing.T) {
	l := NewLocal(t.TempDir())
	meta := NewObjectMetadata("hello", "objhash", "orighash", "mutable", 23, 12, 1000, nil, nil, 0.5, codec.TokenBreakdown{SymbolBytes: 10, LiteralBytes: 13})

	if err := l.Put("hello", []byte("payload bytes"), meta); err != nil {
		t.Fatalf("Put: %v", err)
	}
	payload, got, ok, err := l.Get("hello")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected object to be found")
	}
	if string(payload) != "payload bytes" {
		t.Fatalf("got %q", payload)
	}
	if got.OriginalSize != 23 || got.CompressedSize != 12 {
		t.Fatalf("unexpected metadata: %+v", got)
	}
}

func TestGetMissingReturnsNotOk(t *testing.T) {
	l := NewLocal(t.TempDir())
	_, _, ok, err := l.Get("nonexistent")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false for missing object")
	}
}

func TestPutOverwritesAtomically(t *testing.T) {
	l := NewLocal(t.TempDir())
	meta1 := NewObjectMetadata("k", "h1", "o1", "mutable", 1, 1, 1, nil, nil, 0, codec.TokenBreakdown{})
	meta2 := NewObjectMetadata("k", "h2", "o2", "mutable", 2, 2, 2, nil, nil, 0, codec.TokenBreakdown{})

	if err := l.Put("k", []byte("v1"), meta1); err != nil {
		t.Fatal(err)
	}
	if err := l.Put("k", []byte("v2"), meta2); err != nil {
		t.Fatal(err)
	}
	payload, got, ok, err := l.Get("k")
	if err != nil || !ok {
		t.Fatalf("Get: %v %v", err, ok)
	}
	if string(payload) != "v2" || got.ObjectHash != "h2" {
		t.Fatalf("expected replacement to win: %q %+v", payload, got)
	}
}

func TestDeleteSwallowsMissing(t *testing.T) {
	l := NewLocal(t.TempDir())
	if err := l.Delete("never-existed"); err != nil {
		t.Fatalf("expected missing-file delete to succeed, got %v", err)
	}
}

func TestDeleteRemovesBothFiles(t *testing.T) {
	l := NewLocal(t.TempDir())
	meta := NewObjectMetadata("k", "h", "o", "mutable", 1, 1, 1, nil, nil, 0, codec.TokenBreakdown{})
	if err := l.Put("k", []byte("v"), meta); err != nil {
		t.Fatal(err)
	}
	if err := l.Delete("k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, _, ok, err := l.Get("k")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatalf("expected object removed")
	}
}

func TestRemoteBackendDisabled(t *testing.T) {
	r := &Remote{}
	if err := r.Put("k", nil, ObjectMetadata{}); err == nil {
		t.Fatalf("expected remote backend to refuse Put")
	}
	if _, _, _, err := r.Get("k"); err == nil {
		t.Fatalf("expected remote backend to refuse Get")
	}
	if err := r.Delete("k"); err == nil {
		t.Fatalf("expected remote backend to refuse Delete")
	}
}
