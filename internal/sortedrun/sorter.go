package sortedrun

import (
	"bytes"
	"container/heap"
	"fmt"
	"os"
	"sort"
)

// MergeFunc collapses the list of values observed for one key into a
// single value. It must not retain or mutate the slices passed to it
// beyond the call.
type MergeFunc func(key []byte, values [][]byte) ([]byte, error)

// Options configures a Sorter's spill behavior.
type Options struct {
	MaxMemory        int // bytes of buffered entries before a forced spill; 0 means a built-in default
	MaxChunks        int // compact existing chunks once more than this many accumulate; 0 means unbounded
	CompressionType  CompressionType
	CompressionLevel *int
	TempDir          string
}

const defaultMaxMemory = 64 * 1024 * 1024

// Sorter buffers arbitrary-order key/value pairs in memory, spilling
// sorted runs to temporary chunk files, and exposes the merged,
// monotone result through Iterator. This is the pipeline's external
// sort driver.
type Sorter struct {
	opts    Options
	mergeFn MergeFunc

	buf     []kv
	bufSize int

	chunks []string // temp file paths, oldest first
}

// New creates a Sorter. mergeFn is applied both when the in-memory
// buffer collapses duplicate keys before a spill, and again across
// chunks during the final merge.
func New(mergeFn MergeFunc, opts Options) *Sorter {
	if opts.MaxMemory <= 0 {
		opts.MaxMemory = defaultMaxMemory
	}
	return &Sorter{opts: opts, mergeFn: mergeFn}
}

// Insert adds one key/value observation in arbitrary order. Ownership
// of key and value passes to the Sorter; callers must not mutate them
// afterward.
func (s *Sorter) Insert(key, value []byte) error {
	s.buf = append(s.buf, kv{key: key, value: value})
	s.bufSize += len(key) + len(value)
	if s.bufSize >= s.opts.MaxMemory {
		return s.spill()
	}
	return nil
}

// spill sorts the in-memory buffer, applies mergeFn across runs of
// equal keys, and writes the result as one new chunk file.
func (s *Sorter) spill() error {
	if len(s.buf) == 0 {
		return nil
	}

	sort.Slice(s.buf, func(i, j int) bool { return bytes.Compare(s.buf[i].key, s.buf[j].key) < 0 })

	f, err := os.CreateTemp(s.opts.TempDir, "tabidx-chunk-*")
	if err != nil {
		return fmt.Errorf("sortedrun: create chunk file: %w", err)
	}
	defer f.Close()

	w := NewWriter(f, s.opts.CompressionType, s.opts.CompressionLevel)

	i := 0
	for i < len(s.buf) {
		j := i + 1
		for j < len(s.buf) && bytes.Equal(s.buf[j].key, s.buf[i].key) {
			j++
		}
		values := make([][]byte, j-i)
		for k := i; k < j; k++ {
			values[k-i] = s.buf[k].value
		}
		merged, err := s.mergeFn(s.buf[i].key, values)
		if err != nil {
			return err
		}
		if err := w.Append(s.buf[i].key, merged); err != nil {
			return err
		}
		i = j
	}
	if err := w.Close(); err != nil {
		return err
	}

	s.chunks = append(s.chunks, f.Name())
	s.buf = nil
	s.bufSize = 0

	if s.opts.MaxChunks > 0 && len(s.chunks) > s.opts.MaxChunks {
		return s.compact()
	}
	return nil
}

// compact merges all current chunks down to one, bounding the number
// of open chunk files (--max-nb-chunks).
func (s *Sorter) compact() error {
	merged, err := s.mergeChunks(s.chunks)
	if err != nil {
		return err
	}

	f, err := os.CreateTemp(s.opts.TempDir, "tabidx-chunk-*")
	if err != nil {
		return err
	}
	defer f.Close()

	w := NewWriter(f, s.opts.CompressionType, s.opts.CompressionLevel)
	for {
		key, value, ok := merged.Next()
		if !ok {
			break
		}
		if err := w.Append(key, value); err != nil {
			return err
		}
	}
	if err := merged.Err(); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	old := s.chunks
	s.chunks = []string{f.Name()}
	for _, p := range old {
		os.Remove(p)
	}
	return nil
}

// Iterator flushes any remaining buffered entries and returns a
// MergeIter over every chunk, yielding the globally sorted,
// merge-deduplicated stream.
func (s *Sorter) Iterator() (*MergeIter, error) {
	if err := s.spill(); err != nil {
		return nil, err
	}
	return s.mergeChunks(s.chunks)
}

func (s *Sorter) mergeChunks(paths []string) (*MergeIter, error) {
	readers := make([]*Reader, 0, len(paths))
	files := make([]*os.File, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			for _, f2 := range files {
				f2.Close()
			}
			return nil, fmt.Errorf("sortedrun: open chunk: %w", err)
		}
		files = append(files, f)
		readers = append(readers, NewReader(f, s.opts.CompressionType))
	}
	return newMergeIter(readers, files, s.mergeFn), nil
}

// Cleanup removes every temporary chunk file. Call after the Iterator
// returned by Iterator has been fully consumed.
func (s *Sorter) Cleanup() {
	for _, p := range s.chunks {
		os.Remove(p)
	}
	s.chunks = nil
}

// MergeFiles opens a set of already-sorted SSTables (worker outputs,
// merged once during the global merge phase) and returns a MergeIter
// over all of them. The caller owns cleanup of the files themselves;
// Close only releases the open handles.
func MergeFiles(paths []string, typ CompressionType, mergeFn MergeFunc) (*MergeIter, error) {
	readers := make([]*Reader, 0, len(paths))
	files := make([]*os.File, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			for _, f2 := range files {
				f2.Close()
			}
			return nil, fmt.Errorf("sortedrun: open sstable %s: %w", p, err)
		}
		files = append(files, f)
		readers = append(readers, NewReader(f, typ))
	}
	return newMergeIter(readers, files, mergeFn), nil
}

// heapItem is one entry in the k-way merge heap.
type heapItem struct {
	key    []byte
	value  []byte
	source int
}

type itemHeap []heapItem

func (h itemHeap) Len() int            { return len(h) }
func (h itemHeap) Less(i, j int) bool  { return bytes.Compare(h[i].key, h[j].key) < 0 }
func (h itemHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *itemHeap) Push(x interface{}) { *h = append(*h, x.(heapItem)) }
func (h *itemHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// MergeIter is a k-way merge over a set of Readers, applying mergeFn to
// every group of equal keys across sources so the caller only ever
// sees one value per distinct key, in ascending order.
type MergeIter struct {
	readers []*Reader
	files   []*os.File
	mergeFn MergeFunc
	h       itemHeap
	err     error
}

func newMergeIter(readers []*Reader, files []*os.File, mergeFn MergeFunc) *MergeIter {
	m := &MergeIter{readers: readers, files: files, mergeFn: mergeFn}
	for i, r := range readers {
		if k, v, ok := r.Next(); ok {
			heap.Push(&m.h, heapItem{key: k, value: v, source: i})
		} else if err := r.Err(); err != nil {
			m.err = err
		}
	}
	heap.Init(&m.h)
	return m
}

// Next returns the next distinct key and its merged value, or
// (nil, nil, false) once every source is exhausted.
func (m *MergeIter) Next() ([]byte, []byte, bool) {
	if m.err != nil || m.h.Len() == 0 {
		return nil, nil, false
	}

	first := heap.Pop(&m.h).(heapItem)
	key := first.key
	values := [][]byte{first.value}
	m.advance(first.source)

	for m.h.Len() > 0 && bytes.Equal(m.h[0].key, key) {
		item := heap.Pop(&m.h).(heapItem)
		values = append(values, item.value)
		m.advance(item.source)
	}

	merged, err := m.mergeFn(key, values)
	if err != nil {
		m.err = err
		return nil, nil, false
	}
	return key, merged, true
}

func (m *MergeIter) advance(source int) {
	if k, v, ok := m.readers[source].Next(); ok {
		heap.Push(&m.h, heapItem{key: k, value: v, source: source})
	} else if err := m.readers[source].Err(); err != nil {
		m.err = err
	}
}

// Err returns the first error encountered during iteration.
func (m *MergeIter) Err() error { return m.err }

// Close releases the underlying chunk file handles.
func (m *MergeIter) Close() error {
	var first error
	for _, f := range m.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
