// Package arccache implements an Adaptive Replacement Cache (ARC) over
// word -> docids bitmap. ARC balances a recency list (T1) and a
// frequency list (T2), each shadowed by a ghost list of recently
// evicted keys (B1, B2), and adapts the split between T1 and T2 based
// on which ghost list is taking the hits.
package arccache

import (
	"container/list"

	"github.com/RoaringBitmap/roaring"
)

// Eviction is a word/bitmap pair pushed out of the cache on Insert,
// ready to be spilled by the caller.
type Eviction struct {
	Word   string
	Bitmap *roaring.Bitmap
}

type location int

const (
	inT1 location = iota
	inT2
	inB1
	inB2
)

type entry struct {
	word   string
	bitmap *roaring.Bitmap // nil for ghost (B1/B2) entries
	where  location
}

// Cache is an ARC cache with a fixed target capacity (the combined size
// of the two resident lists T1+T2; the ghost lists B1+B2 are bounded to
// the same capacity independently).
type Cache struct {
	capacity int
	p        int // adaptive target size of T1

	t1, t2, b1, b2 *list.List
	index          map[string]*list.Element // word -> element, across all four lists
}

// New creates an ARC cache with the given capacity. A capacity of zero
// or less is treated as 1 (an ARC cache needs room for at least one
// resident entry to be useful).
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		t1:       list.New(),
		t2:       list.New(),
		b1:       list.New(),
		b2:       list.New(),
		index:    make(map[string]*list.Element),
	}
}

func (c *Cache) listFor(loc location) *list.List {
	switch loc {
	case inT1:
		return c.t1
	case inT2:
		return c.t2
	case inB1:
		return c.b1
	default:
		return c.b2
	}
}

// Insert records an observation of word (the singleton bitmap passed as
// ids). On a hit in the resident lists, the existing bitmap is unioned
// with ids in place. It returns the entries evicted to make room, if
// any; the caller is responsible for spilling them.
func (c *Cache) Insert(word string, ids *roaring.Bitmap) []Eviction {
	if el, ok := c.index[word]; ok {
		return c.hit(word, el, ids)
	}
	return c.miss(word, ids)
}

func (c *Cache) hit(word string, el *list.Element, ids *roaring.Bitmap) []Eviction {
	e := el.Value.(*entry)

	switch e.where {
	case inT1, inT2:
		e.bitmap.Or(ids)
		c.listFor(e.where).Remove(el)
		e.where = inT2
		c.index[word] = c.t2.PushFront(e)
		return nil

	case inB1:
		delta := 1
		if c.b2.Len() > c.b1.Len() {
			delta = c.b2.Len() / c.b1.Len()
		}
		c.p = minInt(c.p+delta, c.capacity)
		c.b1.Remove(el)
		delete(c.index, word)
		evicted := c.replace(false)
		e2 := &entry{word: word, bitmap: ids.Clone(), where: inT2}
		c.index[word] = c.t2.PushFront(e2)
		return evicted

	default: // inB2
		delta := 1
		if c.b1.Len() > c.b2.Len() {
			delta = c.b1.Len() / c.b2.Len()
		}
		c.p = maxInt(c.p-delta, 0)
		c.b2.Remove(el)
		delete(c.index, word)
		evicted := c.replace(true)
		e2 := &entry{word: word, bitmap: ids.Clone(), where: inT2}
		c.index[word] = c.t2.PushFront(e2)
		return evicted
	}
}

func (c *Cache) miss(word string, ids *roaring.Bitmap) []Eviction {
	var evicted []Eviction

	switch {
	case c.t1.Len()+c.b1.Len() == c.capacity:
		if c.t1.Len() < c.capacity {
			c.popGhost(c.b1)
			evicted = c.replace(false)
		} else {
			el := c.t1.Back()
			oldest := el.Value.(*entry)
			evicted = append(evicted, Eviction{Word: oldest.word, Bitmap: oldest.bitmap})
			c.t1.Remove(el)
			delete(c.index, oldest.word)
		}

	case c.t1.Len()+c.t2.Len()+c.b1.Len()+c.b2.Len() >= c.capacity:
		if c.t1.Len()+c.t2.Len()+c.b1.Len()+c.b2.Len() == 2*c.capacity {
			c.popGhost(c.b2)
		}
		evicted = c.replace(false)
	}

	e := &entry{word: word, bitmap: ids.Clone(), where: inT1}
	c.index[word] = c.t1.PushFront(e)
	return evicted
}

// replace evicts one entry from T1 or T2 into its ghost list, per the
// ARC REPLACE(x, p) procedure, returning it as a caller-visible
// eviction. ghostHitB2 marks the case where the current access was a
// B2 ghost hit, which biases the choice towards evicting from T1.
func (c *Cache) replace(ghostHitB2 bool) []Eviction {
	if c.t1.Len() >= 1 && (c.t1.Len() > c.p || (ghostHitB2 && c.t1.Len() == c.p)) {
		el := c.t1.Back()
		e := el.Value.(*entry)
		c.t1.Remove(el)
		out := Eviction{Word: e.word, Bitmap: e.bitmap}
		c.index[e.word] = c.b1.PushFront(&entry{word: e.word, where: inB1})
		return []Eviction{out}
	}
	if c.t2.Len() >= 1 {
		el := c.t2.Back()
		e := el.Value.(*entry)
		c.t2.Remove(el)
		out := Eviction{Word: e.word, Bitmap: e.bitmap}
		c.index[e.word] = c.b2.PushFront(&entry{word: e.word, where: inB2})
		return []Eviction{out}
	}
	return nil
}

func (c *Cache) popGhost(ghost *list.List) {
	if ghost.Len() == 0 {
		return
	}
	el := ghost.Back()
	e := el.Value.(*entry)
	ghost.Remove(el)
	delete(c.index, e.word)
}

// Drain empties every resident entry (T1 and T2) as evictions, leaving
// the cache empty. Ghost entries are discarded. Used at worker
// finalization.
func (c *Cache) Drain() []Eviction {
	var out []Eviction
	for _, l := range []*list.List{c.t1, c.t2} {
		for el := l.Front(); el != nil; el = el.Next() {
			e := el.Value.(*entry)
			out = append(out, Eviction{Word: e.word, Bitmap: e.bitmap})
		}
	}
	c.t1.Init()
	c.t2.Init()
	c.b1.Init()
	c.b2.Init()
	c.index = make(map[string]*list.Element)
	c.p = 0
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
