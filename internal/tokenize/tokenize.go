// Package tokenize is the pipeline's tokenizer: a pure function from
// text to a sequence of (position, normalized word) pairs. Word-boundary
// detection is grounded on the same Unicode segmenter bleve itself uses
// rather than a hand-rolled one.
package tokenize

import (
	"bytes"
	"strings"

	"github.com/blevesearch/segment"
)

// Token is a single normalized word found at a zero-based index within
// the field it was extracted from.
type Token struct {
	Index int
	Word  string
}

// Words splits content into lowercased word tokens in order, skipping
// punctuation and whitespace runs. Only segments bleve's segmenter
// classifies as word-like (anything but segment.None) are emitted.
func Words(content string) []Token {
	if content == "" {
		return nil
	}

	seg := segment.NewWordSegmenter(bytes.NewReader([]byte(content)))
	var tokens []Token
	index := 0
	for seg.Segment() {
		if seg.Type() == segment.None {
			continue
		}
		word := strings.ToLower(string(seg.Bytes()))
		if word == "" {
			continue
		}
		tokens = append(tokens, Token{Index: index, Word: word})
		index++
	}
	return tokens
}
