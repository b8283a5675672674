package indexer

import (
	"encoding/binary"
	"fmt"
)

// EncodeRecord encodes a CSV record (or header row) as a fixed byte
// layout preserving column order: a field count followed by
// length-prefixed fields.
func EncodeRecord(fields []string) []byte {
	size := 4
	for _, f := range fields {
		size += 4 + len(f)
	}
	buf := make([]byte, 0, size)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(fields)))
	for _, f := range fields {
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(f)))
		buf = append(buf, f...)
	}
	return buf
}

// DecodeRecord is the inverse of EncodeRecord.
func DecodeRecord(data []byte) ([]string, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("indexer: truncated record: missing field count")
	}
	count := binary.BigEndian.Uint32(data)
	off := 4
	fields := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		if off+4 > len(data) {
			return nil, fmt.Errorf("indexer: truncated record: missing field %d length", i)
		}
		flen := binary.BigEndian.Uint32(data[off:])
		off += 4
		if off+int(flen) > len(data) {
			return nil, fmt.Errorf("indexer: truncated record: missing field %d body", i)
		}
		fields = append(fields, string(data[off:off+int(flen)]))
		off += int(flen)
	}
	return fields, nil
}
