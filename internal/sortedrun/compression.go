package sortedrun

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionType selects the block compression codec used by spill
// chunks.
type CompressionType byte

const (
	Snappy CompressionType = iota
	Zlib
	LZ4
	LZ4HC
	Zstd
)

// ParseCompressionType maps the CLI's --chunk-compression-type value to
// a CompressionType, returning a configuration error for unknown names.
func ParseCompressionType(name string) (CompressionType, error) {
	switch name {
	case "snappy":
		return Snappy, nil
	case "zlib":
		return Zlib, nil
	case "lz4":
		return LZ4, nil
	case "lz4hc":
		return LZ4HC, nil
	case "zstd":
		return Zstd, nil
	default:
		return 0, fmt.Errorf("invalid compression algorithm %q", name)
	}
}

// compressBlock compresses src using typ, applying level when the codec
// supports a tunable level and level is non-nil.
func compressBlock(typ CompressionType, level *int, src []byte) ([]byte, error) {
	var buf bytes.Buffer
	switch typ {
	case Snappy:
		w := snappy.NewBufferedWriter(&buf)
		if _, err := w.Write(src); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}

	case Zlib:
		var w *zlib.Writer
		var err error
		if level != nil {
			w, err = zlib.NewWriterLevel(&buf, *level)
		} else {
			w = zlib.NewWriter(&buf)
		}
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(src); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}

	case LZ4, LZ4HC:
		w := lz4.NewWriter(&buf)
		if level != nil {
			// lz4 levels are Fast (0) and Level1..Level9, which are 1<<9..1<<17.
			lvl := lz4.Fast
			if *level > 0 {
				lvl = lz4.CompressionLevel(1 << (8 + *level))
			}
			if err := w.Apply(lz4.CompressionLevelOption(lvl)); err != nil {
				return nil, err
			}
		} else if typ == LZ4HC {
			_ = w.Apply(lz4.CompressionLevelOption(lz4.Level9))
		}
		if _, err := w.Write(src); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}

	case Zstd:
		opts := []zstd.EOption{}
		if level != nil {
			opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(*level)))
		}
		w, err := zstd.NewWriter(&buf, opts...)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(src); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("invalid compression algorithm %d", typ)
	}
	return buf.Bytes(), nil
}

// decompressBlock is the inverse of compressBlock.
func decompressBlock(typ CompressionType, compressed []byte) ([]byte, error) {
	r, err := decompressReader(typ, bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

func decompressReader(typ CompressionType, r io.Reader) (io.Reader, error) {
	switch typ {
	case Snappy:
		return snappy.NewReader(r), nil
	case Zlib:
		zr, err := zlib.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr, nil
	case LZ4, LZ4HC:
		return lz4.NewReader(r), nil
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("invalid compression algorithm %d", typ)
	}
}
