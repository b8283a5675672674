// Package indexer holds the per-worker accumulator: it consumes
// records assigned to one worker, extracts per-record word positions
// and word-pair proximities, and spills two sorted local SSTables
// (postings and documents) ready for the global merge.
package indexer

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/RoaringBitmap/roaring"
	"github.com/blevesearch/vellum"

	"github.com/go-mizu/tabidx/internal/arccache"
	"github.com/go-mizu/tabidx/internal/docid"
	"github.com/go-mizu/tabidx/internal/keyspace"
	"github.com/go-mizu/tabidx/internal/merge"
	"github.com/go-mizu/tabidx/internal/sortedrun"
	"github.com/go-mizu/tabidx/internal/tokenize"
)

// Config parameterizes a worker Store.
type Config struct {
	ArcCacheSize int

	MaxNbChunks int
	MaxMemory   int

	CompressionType  sortedrun.CompressionType
	CompressionLevel *int

	TempDir string
}

const defaultArcCacheSize = 43690

// Store is one worker's in-memory accumulator and local spill sorters.
type Store struct {
	cfg Config

	cache        *arccache.Cache
	documentsIDs *roaring.Bitmap

	postings  *sortedrun.Sorter
	documents *sortedrun.Sorter

	headersWritten bool

	// reused per-record scratch space, cleared after every Ingest.
	wordPositions map[string]*roaring.Bitmap
}

// New creates a worker Store.
func New(cfg Config) *Store {
	if cfg.ArcCacheSize <= 0 {
		cfg.ArcCacheSize = defaultArcCacheSize
	}

	sorterOpts := sortedrun.Options{
		MaxMemory:        cfg.MaxMemory,
		MaxChunks:        cfg.MaxNbChunks,
		CompressionType:  cfg.CompressionType,
		CompressionLevel: cfg.CompressionLevel,
		TempDir:          cfg.TempDir,
	}

	return &Store{
		cfg:           cfg,
		cache:         arccache.New(cfg.ArcCacheSize),
		documentsIDs:  roaring.New(),
		postings:      sortedrun.New(merge.Postings, sorterOpts),
		documents:     sortedrun.New(merge.Documents, sorterOpts),
		wordPositions: make(map[string]*roaring.Bitmap),
	}
}

// WriteHeaders idempotently inserts the headers sentinel. Every worker
// calls this with the same row; the merge's equality check verifies
// that at global-merge time.
func (s *Store) WriteHeaders(headers []string) error {
	if s.headersWritten {
		return nil
	}
	s.headersWritten = true
	return s.postings.Insert(keyspace.HeadersKey(), EncodeRecord(headers))
}

// Ingest processes one record already assigned to this worker (the
// caller applies the round-robin shard predicate before calling this).
func (s *Store) Ingest(id docid.ID, record []string) error {
	for k := range s.wordPositions {
		delete(s.wordPositions, k)
	}

	for attr, field := range record {
		if attr >= docid.MaxAttributes {
			break
		}
		for _, tok := range tokenize.Words(field) {
			pos, ok := docid.EncodePosition(attr, tok.Index)
			if !ok {
				continue
			}
			bm := s.wordPositions[tok.Word]
			if bm == nil {
				bm = roaring.New()
				s.wordPositions[tok.Word] = bm
			}
			bm.Add(pos)
		}
	}

	pairs := computeWordPairProximities(s.wordPositions)
	if err := s.writeWordPairProximities(id, pairs); err != nil {
		return err
	}

	return s.writeDocument(id, record)
}

func (s *Store) writeWordPairProximities(id docid.ID, pairs map[wordPair]*roaring.Bitmap) error {
	singleton := roaring.BitmapOf(id)
	value, err := singleton.ToBytes()
	if err != nil {
		return fmt.Errorf("indexer: serialize proximity docid: %w", err)
	}

	for pair, distances := range pairs {
		it := distances.Iterator()
		for it.HasNext() {
			prox := it.Next()
			key := keyspace.WordPairProximityKey([]byte(pair.w1), []byte(pair.w2), uint8(prox))
			if !keyspace.ValidSize(key) {
				continue // silently dropped, never a failure
			}
			if err := s.postings.Insert(key, value); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) writeDocument(id docid.ID, record []string) error {
	for word, positions := range s.wordPositions {
		key := keyspace.WordPositionsKey(id, []byte(word))
		if keyspace.ValidSize(key) {
			value, err := positions.ToBytes()
			if err != nil {
				return fmt.Errorf("indexer: serialize positions: %w", err)
			}
			if err := s.postings.Insert(key, value); err != nil {
				return err
			}
		}

		if err := s.insertWordDocid(word, id); err != nil {
			return err
		}
	}

	s.documentsIDs.Add(id)

	var docKey [4]byte
	binary.BigEndian.PutUint32(docKey[:], id)
	return s.documents.Insert(docKey[:], EncodeRecord(record))
}

// insertWordDocid records that word occurs in document id, through the
// ARC cache, spilling anything the cache evicts.
func (s *Store) insertWordDocid(word string, id docid.ID) error {
	evicted := s.cache.Insert(word, roaring.BitmapOf(id))
	return s.spillWordDocids(evicted)
}

func (s *Store) spillWordDocids(evictions []arccache.Eviction) error {
	for _, e := range evictions {
		key := keyspace.WordDocidsKey([]byte(e.Word))
		if !keyspace.ValidSize(key) {
			continue
		}
		value, err := e.Bitmap.ToBytes()
		if err != nil {
			return fmt.Errorf("indexer: serialize word docids: %w", err)
		}
		if err := s.postings.Insert(key, value); err != nil {
			return err
		}
	}
	return nil
}

// Result holds the two memory-mapped-ready local SSTables a worker
// produces at finalization.
type Result struct {
	PostingsPath  string
	DocumentsPath string
}

// Finalize drains the word-docids cache, writes the documents-ids
// bitmap, streams the postings sorter into one compressed SSTable while
// building the words FST from every 0x02 key's word body, and flushes
// the documents sorter into its own SSTable.
func (s *Store) Finalize() (Result, error) {
	if err := s.spillWordDocids(s.cache.Drain()); err != nil {
		return Result{}, err
	}

	idsBytes, err := s.documentsIDs.ToBytes()
	if err != nil {
		return Result{}, fmt.Errorf("indexer: serialize documents-ids: %w", err)
	}
	if err := s.postings.Insert(keyspace.DocumentsIdsKey(), idsBytes); err != nil {
		return Result{}, err
	}

	postingsPath, err := s.writePostingsSSTable()
	if err != nil {
		return Result{}, err
	}

	documentsPath, err := s.writeDocumentsSSTable()
	if err != nil {
		return Result{}, err
	}

	return Result{PostingsPath: postingsPath, DocumentsPath: documentsPath}, nil
}

func (s *Store) writePostingsSSTable() (string, error) {
	it, err := s.postings.Iterator()
	if err != nil {
		return "", err
	}
	defer it.Close()
	defer s.postings.Cleanup()

	f, err := os.CreateTemp(s.cfg.TempDir, "tabidx-postings-*")
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := sortedrun.NewWriter(f, s.cfg.CompressionType, s.cfg.CompressionLevel)

	var fstBuf fstBuffer
	builder, err := vellum.New(&fstBuf, nil)
	if err != nil {
		return "", err
	}

	wordDocidsPrefix := []byte{byte(keyspace.PrefixWordDocids)}
	for {
		key, value, ok := it.Next()
		if !ok {
			break
		}
		if len(key) > 0 && key[0] == wordDocidsPrefix[0] {
			if err := builder.Insert(key[1:], 0); err != nil {
				return "", fmt.Errorf("indexer: build words fst: %w", err)
			}
		}
		if err := w.Append(key, value); err != nil {
			return "", err
		}
	}
	if err := it.Err(); err != nil {
		return "", err
	}

	if err := builder.Close(); err != nil {
		return "", fmt.Errorf("indexer: close words fst: %w", err)
	}
	if err := w.Append(keyspace.WordsFSTKey(), fstBuf.Bytes()); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	return f.Name(), nil
}

func (s *Store) writeDocumentsSSTable() (string, error) {
	it, err := s.documents.Iterator()
	if err != nil {
		return "", err
	}
	defer it.Close()
	defer s.documents.Cleanup()

	f, err := os.CreateTemp(s.cfg.TempDir, "tabidx-documents-*")
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := sortedrun.NewWriter(f, s.cfg.CompressionType, s.cfg.CompressionLevel)
	for {
		key, value, ok := it.Next()
		if !ok {
			break
		}
		if err := w.Append(key, value); err != nil {
			return "", err
		}
	}
	if err := it.Err(); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return f.Name(), nil
}

// fstBuffer is a minimal growable byte buffer satisfying io.Writer, used
// so vellum can build directly in memory without an extra dependency.
type fstBuffer struct{ b []byte }

func (f *fstBuffer) Write(p []byte) (int, error) {
	f.b = append(f.b, p...)
	return len(p), nil
}

func (f *fstBuffer) Bytes() []byte { return f.b }
