package indexer

import (
	"github.com/RoaringBitmap/roaring"

	"github.com/go-mizu/tabidx/internal/proximity"
)

// wordPair identifies an ordered pair of distinct-or-equal words
// observed in the same record. The pair is asymmetric: (w1, w2) and
// (w2, w1) are stored as distinct keys, as observed.
type wordPair struct{ w1, w2 string }

// computeWordPairProximities computes, for every ordered pair of words
// present in one record, the set of in-range distances between their
// positions. Intra-record only, never cross-record.
func computeWordPairProximities(wordPositions map[string]*roaring.Bitmap) map[wordPair]*roaring.Bitmap {
	out := make(map[wordPair]*roaring.Bitmap)

	for w1, bm1 := range wordPositions {
		positions1 := bm1.ToArray()
		for w2, bm2 := range wordPositions {
			positions2 := bm2.ToArray()

			var distances *roaring.Bitmap
			for _, p1 := range positions1 {
				for _, p2 := range positions2 {
					prox := proximity.Between(p1, p2)
					if proximity.InRange(prox) {
						if distances == nil {
							distances = roaring.New()
						}
						distances.Add(prox)
					}
				}
			}
			if distances != nil && !distances.IsEmpty() {
				out[wordPair{w1: w1, w2: w2}] = distances
			}
		}
	}
	return out
}
