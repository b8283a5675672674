package sortedrun

import (
	"os"
	"testing"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "sstable-*")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	defer f.Close()

	entries := []kv{
		{key: []byte("a"), value: []byte("1")},
		{key: []byte("b"), value: []byte("2")},
		{key: []byte("c"), value: []byte("3")},
	}

	w := NewWriter(f, Snappy, nil)
	for _, e := range entries {
		if err := w.Append(e.key, e.value); err != nil {
			t.Fatalf("append %q: %v", e.key, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	if _, err := f.Seek(0, 0); err != nil {
		t.Fatalf("seek: %v", err)
	}

	r := NewReader(f, Snappy)
	var got []kv
	for {
		k, v, ok := r.Next()
		if !ok {
			break
		}
		got = append(got, kv{key: append([]byte(nil), k...), value: append([]byte(nil), v...)})
	}
	if err := r.Err(); err != nil {
		t.Fatalf("reader error: %v", err)
	}

	if len(got) != len(entries) {
		t.Fatalf("expected %d entries, got %d", len(entries), len(got))
	}
	for i, e := range entries {
		if string(got[i].key) != string(e.key) || string(got[i].value) != string(e.value) {
			t.Fatalf("entry %d: expected %q=%q, got %q=%q", i, e.key, e.value, got[i].key, got[i].value)
		}
	}
}

func TestReaderDetectsCorruptBlock(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "sstable-*")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	defer f.Close()

	w := NewWriter(f, Snappy, nil)
	if err := w.Append([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Flip a byte in the compressed payload, past the 8-byte header.
	if _, err := f.WriteAt([]byte{0xff}, 9); err != nil {
		t.Fatalf("corrupt file: %v", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		t.Fatalf("seek: %v", err)
	}

	r := NewReader(f, Snappy)
	for {
		if _, _, ok := r.Next(); !ok {
			break
		}
	}
	if r.Err() == nil {
		t.Fatal("expected a checksum error after corrupting the block")
	}
}
