package indexer

import (
	"testing"

	"github.com/RoaringBitmap/roaring"

	"github.com/go-mizu/tabidx/internal/docid"
)

func TestComputeWordPairProximitiesWithinAttribute(t *testing.T) {
	fooPos, _ := docid.EncodePosition(0, 0)
	barPos, _ := docid.EncodePosition(0, 1)

	wordPositions := map[string]*roaring.Bitmap{
		"foo": roaring.BitmapOf(fooPos),
		"bar": roaring.BitmapOf(barPos),
	}

	pairs := computeWordPairProximities(wordPositions)

	distances, ok := pairs[wordPair{w1: "foo", w2: "bar"}]
	if !ok {
		t.Fatal("expected a (foo, bar) proximity pair")
	}
	if !distances.Contains(1) {
		t.Fatalf("expected distance 1, got %v", distances.ToArray())
	}
}

func TestComputeWordPairProximitiesAcrossAttributesIsExcluded(t *testing.T) {
	fooPos, _ := docid.EncodePosition(0, 0) // column 0
	barPos, _ := docid.EncodePosition(1, 0) // column 1

	wordPositions := map[string]*roaring.Bitmap{
		"foo": roaring.BitmapOf(fooPos),
		"bar": roaring.BitmapOf(barPos),
	}

	pairs := computeWordPairProximities(wordPositions)
	if _, ok := pairs[wordPair{w1: "foo", w2: "bar"}]; ok {
		t.Fatal("expected no proximity pair across attribute boundaries")
	}
}

func TestComputeWordPairProximitiesIsOrderedAsObserved(t *testing.T) {
	p0, _ := docid.EncodePosition(0, 0)
	p1, _ := docid.EncodePosition(0, 1)

	wordPositions := map[string]*roaring.Bitmap{
		"foo": roaring.BitmapOf(p0),
		"bar": roaring.BitmapOf(p1),
	}

	pairs := computeWordPairProximities(wordPositions)
	if _, ok := pairs[wordPair{w1: "foo", w2: "bar"}]; !ok {
		t.Fatal("expected (foo, bar) pair")
	}
	if _, ok := pairs[wordPair{w1: "bar", w2: "foo"}]; !ok {
		t.Fatal("expected (bar, foo) pair stored separately, proximity pairs are asymmetric")
	}
}
