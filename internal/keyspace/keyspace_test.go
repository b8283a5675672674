package keyspace

import (
	"bytes"
	"strings"
	"testing"
)

func TestWordDocidsKeyRoundTrip(t *testing.T) {
	key := WordDocidsKey([]byte("hello"))
	if key[0] != byte(PrefixWordDocids) {
		t.Fatalf("expected prefix 0x%02x, got 0x%02x", PrefixWordDocids, key[0])
	}
	if string(key[1:]) != "hello" {
		t.Fatalf("expected word body %q, got %q", "hello", key[1:])
	}
}

func TestWordPositionsKeySplitDocID(t *testing.T) {
	key := WordPositionsKey(42, []byte("world"))
	docID, word := SplitDocID(key[1:])
	if docID != 42 {
		t.Fatalf("expected docid 42, got %d", docID)
	}
	if string(word) != "world" {
		t.Fatalf("expected word %q, got %q", "world", word)
	}
}

func TestWordPairProximityKeySplit(t *testing.T) {
	key := WordPairProximityKey([]byte("foo"), []byte("bar"), 3)
	if key[0] != byte(PrefixWordPairProximity) {
		t.Fatalf("expected prefix 0x%02x, got 0x%02x", PrefixWordPairProximity, key[0])
	}
	w1, w2, prox := SplitWordPair(key[1:])
	if string(w1) != "foo" || string(w2) != "bar" || prox != 3 {
		t.Fatalf("expected (foo, bar, 3), got (%q, %q, %d)", w1, w2, prox)
	}
}

func TestValidSizeClampsAt511(t *testing.T) {
	ok := WordDocidsKey([]byte(strings.Repeat("a", 510)))
	if !ValidSize(ok) {
		t.Fatalf("expected %d-byte key to be valid", len(ok))
	}
	tooBig := WordDocidsKey([]byte(strings.Repeat("a", 511)))
	if ValidSize(tooBig) {
		t.Fatalf("expected %d-byte key to exceed the 511-byte limit", len(tooBig))
	}
}

func TestSentinelKeysAreSingleByte(t *testing.T) {
	for _, k := range [][]byte{HeadersKey(), DocumentsIdsKey(), WordsFSTKey()} {
		if len(k) != 1 {
			t.Fatalf("expected single-byte sentinel key, got %x", k)
		}
	}
	if bytes.Equal(HeadersKey(), DocumentsIdsKey()) {
		t.Fatal("expected distinct sentinel keys")
	}
}
