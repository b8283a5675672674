// Package sortedrun is the pipeline's external sort driver: it accepts
// key/value pairs in arbitrary order, spills sorted,
// compressed, block-structured runs to temporary files, and exposes a
// monotone merged iterator with a caller-supplied merge callback.
//
// This stands in for the Rust original's oxidized_mtbl dependency,
// which has no pre-built Go equivalent; the block layout below is
// grounded on the same data-block/footer shape a classical SSTable
// writer uses (length-prefixed entries, a CRC per block), simplified
// to scan-only: the pipeline never does a point lookup against a spill
// file, only ordered scans and k-way merges, so no key index or bloom
// filter is kept.
package sortedrun

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
)

var errCorruptBlock = errors.New("sortedrun: corrupt block")

// targetBlockSize is the approximate uncompressed size of one block
// before it is compressed and flushed.
const targetBlockSize = 64 * 1024

// Writer appends sorted entries to a single on-disk chunk file as a
// sequence of independently compressed blocks.
type Writer struct {
	f       *os.File
	bw      *bufio.Writer
	typ     CompressionType
	level   *int
	pending []kv
	pendLen int
}

// NewWriter creates a writer over file f (which the caller owns and
// will close/remove after Close).
func NewWriter(f *os.File, typ CompressionType, level *int) *Writer {
	return &Writer{f: f, bw: bufio.NewWriterSize(f, 256*1024), typ: typ, level: level}
}

// Append adds one already-ordered entry. Entries passed to Append must
// already be globally sorted and merge-deduplicated by the caller;
// Writer only groups them into blocks.
func (w *Writer) Append(key, value []byte) error {
	w.pending = append(w.pending, kv{key: key, value: value})
	w.pendLen += len(key) + len(value)
	if w.pendLen >= targetBlockSize {
		return w.flushBlock()
	}
	return nil
}

func (w *Writer) flushBlock() error {
	if len(w.pending) == 0 {
		return nil
	}
	payload := encodeBlock(w.pending)
	compressed, err := compressBlock(w.typ, w.level, payload)
	if err != nil {
		return fmt.Errorf("sortedrun: compress block: %w", err)
	}

	var header [8]byte
	binary.LittleEndian.PutUint32(header[0:4], uint32(len(compressed)))
	binary.LittleEndian.PutUint32(header[4:8], crc32.ChecksumIEEE(compressed))
	if _, err := w.bw.Write(header[:]); err != nil {
		return err
	}
	if _, err := w.bw.Write(compressed); err != nil {
		return err
	}

	w.pending = w.pending[:0]
	w.pendLen = 0
	return nil
}

// Close flushes any buffered entries and the underlying file writer. It
// does not close the underlying *os.File; the caller owns its lifetime.
func (w *Writer) Close() error {
	if err := w.flushBlock(); err != nil {
		return err
	}
	return w.bw.Flush()
}

// Reader sequentially reads the blocks written by Writer, yielding
// entries in the order they were appended (ascending key order, since
// Writer is only ever fed pre-sorted input).
type Reader struct {
	r       io.Reader
	typ     CompressionType
	current []kv
	pos     int
	err     error
}

// NewReader opens a sequential reader over r.
func NewReader(r io.Reader, typ CompressionType) *Reader {
	return &Reader{r: r, typ: typ}
}

// Next advances to the next entry, returning (key, value, true) on
// success or (nil, nil, false) at clean EOF. Check Err after a false
// return to distinguish EOF from a read error.
func (r *Reader) Next() ([]byte, []byte, bool) {
	for r.pos >= len(r.current) {
		if !r.loadBlock() {
			return nil, nil, false
		}
	}
	e := r.current[r.pos]
	r.pos++
	return e.key, e.value, true
}

func (r *Reader) loadBlock() bool {
	var header [8]byte
	if _, err := io.ReadFull(r.r, header[:]); err != nil {
		if err != io.EOF {
			r.err = err
		}
		return false
	}
	clen := binary.LittleEndian.Uint32(header[0:4])
	wantCRC := binary.LittleEndian.Uint32(header[4:8])

	compressed := make([]byte, clen)
	if _, err := io.ReadFull(r.r, compressed); err != nil {
		r.err = fmt.Errorf("sortedrun: truncated block: %w", err)
		return false
	}
	if crc32.ChecksumIEEE(compressed) != wantCRC {
		r.err = fmt.Errorf("sortedrun: block checksum mismatch")
		return false
	}

	payload, err := decompressBlock(r.typ, compressed)
	if err != nil {
		r.err = fmt.Errorf("sortedrun: decompress block: %w", err)
		return false
	}
	entries, err := decodeBlock(payload)
	if err != nil {
		r.err = err
		return false
	}
	r.current = entries
	r.pos = 0
	return true
}

// Err returns the first error encountered, if any.
func (r *Reader) Err() error { return r.err }
