package merge

import (
	"bytes"
	"testing"

	"github.com/RoaringBitmap/roaring"
	"github.com/blevesearch/vellum"

	"github.com/go-mizu/tabidx/internal/keyspace"
)

func bitmapBytes(t *testing.T, ids ...uint32) []byte {
	t.Helper()
	bm := roaring.BitmapOf(ids...)
	b, err := bm.ToBytes()
	if err != nil {
		t.Fatalf("serialize bitmap: %v", err)
	}
	return b
}

func TestPostingsUnionsBitmapKeys(t *testing.T) {
	key := keyspace.WordDocidsKey([]byte("hello"))
	values := [][]byte{bitmapBytes(t, 1, 2), bitmapBytes(t, 2, 3)}

	merged, err := Postings(key, values)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	bm := roaring.New()
	if err := bm.UnmarshalBinary(merged); err != nil {
		t.Fatalf("deserialize merged bitmap: %v", err)
	}
	if !bm.Contains(1) || !bm.Contains(2) || !bm.Contains(3) {
		t.Fatalf("expected union {1,2,3}, got %v", bm.ToArray())
	}
}

func TestPostingsAssertsEqualityForPositionalPostings(t *testing.T) {
	key := keyspace.WordPositionsKey(0, []byte("hello"))
	values := [][]byte{[]byte("same"), []byte("same")}

	merged, err := Postings(key, values)
	if err != nil {
		t.Fatalf("expected equal values to merge cleanly: %v", err)
	}
	if string(merged) != "same" {
		t.Fatalf("expected %q, got %q", "same", merged)
	}

	if _, err := Postings(key, [][]byte{[]byte("a"), []byte("b")}); err == nil {
		t.Fatal("expected conflicting positional postings to error")
	}
}

func TestPostingsRejectsUnknownPrefix(t *testing.T) {
	if _, err := Postings([]byte{0x7f}, [][]byte{{1}}); err == nil {
		t.Fatal("expected unknown key class to error")
	}
}

func TestDocumentsRejectsCollision(t *testing.T) {
	if _, err := Documents([]byte{0, 0, 0, 1}, [][]byte{[]byte("a"), []byte("b")}); err == nil {
		t.Fatal("expected a document id collision to error")
	}
	got, err := Documents([]byte{0, 0, 0, 1}, [][]byte{[]byte("solo")})
	if err != nil {
		t.Fatalf("expected a single value to merge cleanly: %v", err)
	}
	if string(got) != "solo" {
		t.Fatalf("expected %q, got %q", "solo", got)
	}
}

func buildFST(t *testing.T, words ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	builder, err := vellum.New(&buf, nil)
	if err != nil {
		t.Fatalf("new fst builder: %v", err)
	}
	for _, w := range words {
		if err := builder.Insert([]byte(w), 0); err != nil {
			t.Fatalf("insert %q: %v", w, err)
		}
	}
	if err := builder.Close(); err != nil {
		t.Fatalf("close builder: %v", err)
	}
	return buf.Bytes()
}

func TestPostingsUnionsFSTSentinel(t *testing.T) {
	a := buildFST(t, "bar", "foo")
	b := buildFST(t, "baz", "foo")

	merged, err := Postings(keyspace.WordsFSTKey(), [][]byte{a, b})
	if err != nil {
		t.Fatalf("merge fsts: %v", err)
	}

	fst, err := vellum.Load(merged)
	if err != nil {
		t.Fatalf("load merged fst: %v", err)
	}
	for _, w := range []string{"bar", "baz", "foo"} {
		if ok, _, err := fst.Get([]byte(w)); err != nil || !ok {
			t.Fatalf("expected merged fst to contain %q", w)
		}
	}
	if ok, _, _ := fst.Get([]byte("nope")); ok {
		t.Fatal("expected merged fst not to contain an absent word")
	}
}
