package sortedrun

import (
	"encoding/binary"
)

// kv is one sorted key/value entry as held in memory before a block is
// flushed.
type kv struct {
	key   []byte
	value []byte
}

// encodeBlock serializes a run of already-sorted, already-merged
// entries into a single uncompressed block payload: a sequence of
// varint-length-prefixed (key, value) pairs. The block's own boundary
// comes from the enclosing compressed-chunk framing (the length field
// of the 8-byte header Writer.flushBlock writes), so no entry count or
// terminator is needed here.
func encodeBlock(entries []kv) []byte {
	size := 0
	for _, e := range entries {
		size += binary.MaxVarintLen64*2 + len(e.key) + len(e.value)
	}
	buf := make([]byte, 0, size)
	var tmp [binary.MaxVarintLen64]byte
	for _, e := range entries {
		n := binary.PutUvarint(tmp[:], uint64(len(e.key)))
		buf = append(buf, tmp[:n]...)
		buf = append(buf, e.key...)
		n = binary.PutUvarint(tmp[:], uint64(len(e.value)))
		buf = append(buf, tmp[:n]...)
		buf = append(buf, e.value...)
	}
	return buf
}

// decodeBlock parses a block payload produced by encodeBlock back into
// entries.
func decodeBlock(payload []byte) ([]kv, error) {
	var entries []kv
	off := 0
	for off < len(payload) {
		klen, n := binary.Uvarint(payload[off:])
		if n <= 0 {
			return nil, errCorruptBlock
		}
		off += n
		key := payload[off : off+int(klen)]
		off += int(klen)

		vlen, n := binary.Uvarint(payload[off:])
		if n <= 0 {
			return nil, errCorruptBlock
		}
		off += n
		val := payload[off : off+int(vlen)]
		off += int(vlen)

		entries = append(entries, kv{key: key, value: val})
	}
	return entries, nil
}
