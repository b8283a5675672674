// Package keyspace defines the one-byte-prefixed key layout shared by
// the external sorter and the persistent store.
package keyspace

import "encoding/binary"

// Prefix identifies a key's value class. The numeric ordering of the
// prefix bytes groups a sorted stream by class first, then by suffix.
type Prefix byte

const (
	PrefixHeaders            Prefix = 0x00
	PrefixWordPositions      Prefix = 0x01
	PrefixWordDocids         Prefix = 0x02
	PrefixDocumentsIds       Prefix = 0x04
	PrefixWordPairProximity  Prefix = 0x05
	PrefixWordsFST           Prefix = 0x06
)

// MaxKeySize is the underlying store's maximum key length (511 bytes,
// after prefixing). Keys that would exceed it are silently dropped at
// emission time.
const MaxKeySize = 511

// HeadersKey is the fixed sentinel key for the one headers record.
func HeadersKey() []byte { return []byte{byte(PrefixHeaders)} }

// DocumentsIdsKey is the fixed sentinel key for the documents-ids bitmap.
func DocumentsIdsKey() []byte { return []byte{byte(PrefixDocumentsIds)} }

// WordsFSTKey is the fixed sentinel key for the serialized words FST.
func WordsFSTKey() []byte { return []byte{byte(PrefixWordsFST)} }

// WordDocidsKey builds a 0x02-prefixed word->docids key.
func WordDocidsKey(word []byte) []byte {
	k := make([]byte, 0, 1+len(word))
	k = append(k, byte(PrefixWordDocids))
	return append(k, word...)
}

// WordPositionsKey builds a 0x01-prefixed docid+word key.
func WordPositionsKey(docID uint32, word []byte) []byte {
	k := make([]byte, 0, 5+len(word))
	k = append(k, byte(PrefixWordPositions))
	k = binary.BigEndian.AppendUint32(k, docID)
	return append(k, word...)
}

// WordPairProximityKey builds a 0x05-prefixed w1<NUL>w2<prox> key.
func WordPairProximityKey(w1, w2 []byte, prox uint8) []byte {
	k := make([]byte, 0, 3+len(w1)+len(w2))
	k = append(k, byte(PrefixWordPairProximity))
	k = append(k, w1...)
	k = append(k, 0)
	k = append(k, w2...)
	k = append(k, prox)
	return k
}

// ValidSize reports whether key is non-empty and within MaxKeySize.
func ValidSize(key []byte) bool {
	return len(key) > 0 && len(key) <= MaxKeySize
}

// SplitDocID parses the docid and word body out of a 0x01-prefixed key
// (the caller has already checked the prefix byte).
func SplitDocID(keyBody []byte) (docID uint32, word []byte) {
	docID = binary.BigEndian.Uint32(keyBody[:4])
	word = keyBody[4:]
	return
}

// SplitWordPair parses w1, w2 and the proximity byte out of a
// 0x05-prefixed key body (caller has already stripped the prefix byte).
func SplitWordPair(keyBody []byte) (w1, w2 []byte, prox uint8) {
	nul := -1
	for i, b := range keyBody {
		if b == 0 {
			nul = i
			break
		}
	}
	w1 = keyBody[:nul]
	rest := keyBody[nul+1:]
	w2 = rest[:len(rest)-1]
	prox = rest[len(rest)-1]
	return
}
