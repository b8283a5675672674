// Package store is the persistent key-value store the pipeline commits
// into: a go.etcd.io/bbolt database standing in for the original
// indexer's LMDB-backed heed::Env, with the same shape: named bucket
// sub-stores, a single atomic write transaction, no partial commit
// possible.
package store

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
)

const (
	bucketMain                   = "main"
	bucketWordDocids             = "word_docids"
	bucketDocidWordPositions     = "docid_word_positions"
	bucketWordPairProximityDocs  = "word_pair_proximity_docids"
	bucketDocuments              = "documents"

	mainKeyHeaders     = "headers"
	mainKeyDocumentsIds = "documents-ids"
	mainKeyWordsFST     = "words-fst"
)

// Store wraps the on-disk database opened at one path.
type Store struct {
	db *bbolt.DB
}

// Open creates the database directory if absent and opens the database
// file inside it. mapSize is accepted but not applied: bbolt grows its
// memory map on demand and has no fixed map-size ceiling.
func Open(path string, mapSize int64) (*Store, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("store: create directory %s: %w", path, err)
	}
	db, err := bbolt.Open(filepath.Join(path, "data.db"), 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.MaxBatchSize = bbolt.DefaultMaxBatchSize
	db.NoGrowSync = false
	_ = mapSize // bbolt grows its mmap automatically; a ceiling isn't a separate dial like LMDB's map_size

	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketMain, bucketWordDocids, bucketDocidWordPositions, bucketWordPairProximityDocs, bucketDocuments} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create buckets: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// BE32 encodes a document id as the big-endian key the documents bucket
// is keyed by.
func BE32(id uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], id)
	return b[:]
}

// Writer accumulates puts across a single write transaction, committed
// once at the end of the global merge: all writes occur inside one
// write transaction, committed once at the end.
type Writer struct {
	tx *bbolt.Tx

	main                  *bbolt.Bucket
	wordDocids            *bbolt.Bucket
	docidWordPositions    *bbolt.Bucket
	wordPairProximityDocs *bbolt.Bucket
	documents             *bbolt.Bucket
}

// BeginWrite opens the single write transaction used for the whole run.
// A crash before Commit leaves the database unchanged.
func (s *Store) BeginWrite() (*Writer, error) {
	tx, err := s.db.Begin(true)
	if err != nil {
		return nil, fmt.Errorf("store: begin write transaction: %w", err)
	}
	return &Writer{
		tx:                    tx,
		main:                  tx.Bucket([]byte(bucketMain)),
		wordDocids:            tx.Bucket([]byte(bucketWordDocids)),
		docidWordPositions:    tx.Bucket([]byte(bucketDocidWordPositions)),
		wordPairProximityDocs: tx.Bucket([]byte(bucketWordPairProximityDocs)),
		documents:             tx.Bucket([]byte(bucketDocuments)),
	}, nil
}

// PutHeaders stores the encoded CSV header row under main["headers"].
func (w *Writer) PutHeaders(value []byte) error {
	return w.main.Put([]byte(mainKeyHeaders), value)
}

// PutDocumentsIds stores the serialized documents-ids bitmap.
func (w *Writer) PutDocumentsIds(value []byte) error {
	return w.main.Put([]byte(mainKeyDocumentsIds), value)
}

// PutWordsFST stores the serialized words FST.
func (w *Writer) PutWordsFST(value []byte) error {
	return w.main.Put([]byte(mainKeyWordsFST), value)
}

// PutWordDocids inserts a word_docids[word] entry.
func (w *Writer) PutWordDocids(word, value []byte) error {
	return w.wordDocids.Put(word, value)
}

// PutWordPositions inserts a docid_word_positions[docid||word] entry.
func (w *Writer) PutWordPositions(docidAndWord, value []byte) error {
	return w.docidWordPositions.Put(docidAndWord, value)
}

// PutWordPairProximity inserts a word_pair_proximity_docids entry.
func (w *Writer) PutWordPairProximity(key, value []byte) error {
	return w.wordPairProximityDocs.Put(key, value)
}

// PutDocument inserts a documents[docid] entry, failing if the key
// already exists: a collision means duplicate document ids, a fatal
// programming error.
func (w *Writer) PutDocument(id uint32, record []byte) error {
	key := BE32(id)
	if existing := w.documents.Get(key); existing != nil {
		return fmt.Errorf("store: document id %d already present: duplicate document ids are a programming error", id)
	}
	return w.documents.Put(key, record)
}

// NumberOfDocuments returns the number of entries in the documents
// sub-store as seen by this transaction, including puts not yet
// committed. Call it before Commit.
func (w *Writer) NumberOfDocuments() int {
	n := 0
	c := w.documents.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}
	return n
}

// Commit finalizes the single write transaction.
func (w *Writer) Commit() error {
	if err := w.tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Rollback aborts the write transaction, leaving the database
// unchanged.
func (w *Writer) Rollback() error { return w.tx.Rollback() }

// get reads one value straight out of the committed database, for
// dumps and tests. bucket is one of the bucket name constants' values;
// callers outside this package use the Get* helpers below instead of
// bucket names directly.
func (s *Store) get(bucket, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if v := b.Get([]byte(key)); v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	return value, err
}

func (s *Store) getBytes(bucket string, key []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if v := b.Get(key); v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	return value, err
}

// GetHeaders returns main["headers"], or nil if absent.
func (s *Store) GetHeaders() ([]byte, error) { return s.get(bucketMain, mainKeyHeaders) }

// GetDocumentsIds returns main["documents-ids"], or nil if absent.
func (s *Store) GetDocumentsIds() ([]byte, error) { return s.get(bucketMain, mainKeyDocumentsIds) }

// GetWordsFST returns main["words-fst"], or nil if absent.
func (s *Store) GetWordsFST() ([]byte, error) { return s.get(bucketMain, mainKeyWordsFST) }

// GetWordDocids returns word_docids[word], or nil if absent.
func (s *Store) GetWordDocids(word []byte) ([]byte, error) {
	return s.getBytes(bucketWordDocids, word)
}

// GetWordPositions returns docid_word_positions[docid‖word], or nil if
// absent.
func (s *Store) GetWordPositions(docidAndWord []byte) ([]byte, error) {
	return s.getBytes(bucketDocidWordPositions, docidAndWord)
}

// GetWordPairProximity returns word_pair_proximity_docids[key], or nil
// if absent.
func (s *Store) GetWordPairProximity(key []byte) ([]byte, error) {
	return s.getBytes(bucketWordPairProximityDocs, key)
}

// GetDocument returns documents[docid], or nil if absent.
func (s *Store) GetDocument(id uint32) ([]byte, error) {
	return s.getBytes(bucketDocuments, BE32(id))
}

// Dump walks every bucket and returns a flat key->value snapshot, for
// byte-identical comparisons across runs.
func (s *Store) Dump() (map[string]map[string][]byte, error) {
	out := map[string]map[string][]byte{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketMain, bucketWordDocids, bucketDocidWordPositions, bucketWordPairProximityDocs, bucketDocuments} {
			b := tx.Bucket([]byte(name))
			vals := map[string][]byte{}
			if err := b.ForEach(func(k, v []byte) error {
				vals[string(k)] = append([]byte(nil), v...)
				return nil
			}); err != nil {
				return err
			}
			out[name] = vals
		}
		return nil
	})
	return out, err
}
