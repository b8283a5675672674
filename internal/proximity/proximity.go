// Package proximity computes the distance between two token positions
// within the same record.
package proximity

import "github.com/go-mizu/tabidx/internal/docid"

// outOfRange is returned for positions in different attributes, whose
// distance must never be stored. The same position twice yields 0,
// which is also out of range.
const outOfRange = 8

// Between returns the proximity between two encoded positions. Only
// values in [1, 7] are meaningful to callers; anything else (0 or >=8)
// must be discarded.
func Between(p1, p2 uint32) uint32 {
	attr1, idx1 := docid.DecodePosition(p1)
	attr2, idx2 := docid.DecodePosition(p2)
	if attr1 != attr2 {
		return outOfRange
	}
	if idx1 < idx2 {
		return uint32(idx2 - idx1)
	}
	return uint32(idx1 - idx2)
}

// InRange reports whether a proximity value belongs in a word-pair
// proximity key.
func InRange(prox uint32) bool {
	return prox >= 1 && prox <= 7
}
