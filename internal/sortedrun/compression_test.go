package sortedrun

import (
	"bytes"
	"testing"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 200)

	for _, typ := range []CompressionType{Snappy, Zlib, LZ4, LZ4HC, Zstd} {
		compressed, err := compressBlock(typ, nil, payload)
		if err != nil {
			t.Fatalf("compress type %v: %v", typ, err)
		}
		got, err := decompressBlock(typ, compressed)
		if err != nil {
			t.Fatalf("decompress type %v: %v", typ, err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("round trip mismatch for type %v", typ)
		}
	}
}

func TestCompressWithExplicitLevel(t *testing.T) {
	payload := bytes.Repeat([]byte("abc"), 1000)
	level := 5
	for _, typ := range []CompressionType{Zlib, LZ4, Zstd} {
		compressed, err := compressBlock(typ, &level, payload)
		if err != nil {
			t.Fatalf("compress type %v at level %d: %v", typ, level, err)
		}
		got, err := decompressBlock(typ, compressed)
		if err != nil {
			t.Fatalf("decompress type %v: %v", typ, err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("round trip mismatch for type %v at level %d", typ, level)
		}
	}
}

func TestParseCompressionType(t *testing.T) {
	cases := map[string]CompressionType{
		"snappy": Snappy,
		"zlib":   Zlib,
		"lz4":    LZ4,
		"lz4hc":  LZ4HC,
		"zstd":   Zstd,
	}
	for name, want := range cases {
		got, err := ParseCompressionType(name)
		if err != nil {
			t.Fatalf("parse %q: %v", name, err)
		}
		if got != want {
			t.Fatalf("parse %q: expected %v, got %v", name, want, got)
		}
	}

	if _, err := ParseCompressionType("bogus"); err == nil {
		t.Fatal("expected an error for an unknown compression algorithm")
	}
}
