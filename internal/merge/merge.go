// Package merge implements the value-type-aware merge callback used
// when collapsing a key's list of observed values: a single dispatch
// function, keyed on the first byte of the key.
package merge

import (
	"bytes"
	"container/heap"
	"fmt"

	"github.com/RoaringBitmap/roaring"
	"github.com/blevesearch/vellum"

	"github.com/go-mizu/tabidx/internal/keyspace"
)

// Postings is the merge callback used by the postings sorter (words,
// positional postings, proximities, metadata, and the words FST
// sentinel). It is also the callback used by the global k-way merge
// over all workers' postings SSTables, since union and equality are
// both order-insensitive.
func Postings(key []byte, values [][]byte) ([]byte, error) {
	if bytes.Equal(key, keyspace.WordsFSTKey()) {
		return unionFSTs(values)
	}

	switch keyspace.Prefix(key[0]) {
	case keyspace.PrefixHeaders, keyspace.PrefixWordPositions:
		for _, v := range values[1:] {
			if !bytes.Equal(v, values[0]) {
				return nil, fmt.Errorf("merge: conflicting values for key class 0x%02x: equality invariant violated", key[0])
			}
		}
		return values[0], nil

	case keyspace.PrefixDocumentsIds, keyspace.PrefixWordDocids, keyspace.PrefixWordPairProximity:
		return unionBitmaps(values)

	default:
		return nil, fmt.Errorf("merge: unknown key class 0x%02x: programming error", key[0])
	}
}

// Documents is the "conflict is fatal" merge callback used by the
// documents sorter: any collision on a document-id key indicates
// duplicate ids.
func Documents(key []byte, values [][]byte) ([]byte, error) {
	if len(values) > 1 {
		return nil, fmt.Errorf("merge: document id collision on key %x: duplicate document ids are a programming error", key)
	}
	return values[0], nil
}

func unionBitmaps(values [][]byte) ([]byte, error) {
	head := roaring.New()
	if err := head.UnmarshalBinary(values[0]); err != nil {
		return nil, fmt.Errorf("merge: deserialize bitmap: %w", err)
	}
	for _, v := range values[1:] {
		other := roaring.New()
		if err := other.UnmarshalBinary(v); err != nil {
			return nil, fmt.Errorf("merge: deserialize bitmap: %w", err)
		}
		head.Or(other)
	}
	return head.ToBytes()
}

type fstHeapItem struct {
	key []byte
	val uint64
	src int
}

type fstHeap []fstHeapItem

func (h fstHeap) Len() int            { return len(h) }
func (h fstHeap) Less(i, j int) bool  { return bytes.Compare(h[i].key, h[j].key) < 0 }
func (h fstHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *fstHeap) Push(x interface{}) { *h = append(*h, x.(fstHeapItem)) }
func (h *fstHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// unionFSTs merges N serialized, already-sorted FSTs into one, via a
// k-way merge over their iterators with duplicate keys collapsed, in
// the manner bleve's zap segment merger unions per-field FSTs.
func unionFSTs(blobs [][]byte) ([]byte, error) {
	type source struct{ itr vellum.Iterator }
	var sources []*source

	for _, b := range blobs {
		f, err := vellum.Load(b)
		if err != nil {
			return nil, fmt.Errorf("merge: load fst: %w", err)
		}
		itr, err := f.Iterator(nil, nil)
		if err != nil && err != vellum.ErrIteratorDone {
			return nil, err
		}
		if err == nil {
			sources = append(sources, &source{itr: itr})
		}
	}

	var buf bytes.Buffer
	builder, err := vellum.New(&buf, nil)
	if err != nil {
		return nil, err
	}

	var h fstHeap
	for i, s := range sources {
		k, v := s.itr.Current()
		heap.Push(&h, fstHeapItem{key: append([]byte(nil), k...), val: v, src: i})
	}
	heap.Init(&h)

	var prev []byte
	for h.Len() > 0 {
		it := heap.Pop(&h).(fstHeapItem)
		if !bytes.Equal(it.key, prev) {
			if err := builder.Insert(it.key, it.val); err != nil {
				return nil, err
			}
			prev = it.key
		}

		if err := sources[it.src].itr.Next(); err == nil {
			k, v := sources[it.src].itr.Current()
			heap.Push(&h, fstHeapItem{key: append([]byte(nil), k...), val: v, src: it.src})
		} else if err != vellum.ErrIteratorDone {
			return nil, err
		}
	}

	if err := builder.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
