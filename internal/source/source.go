// Package source turns one CSV input (a file path or standard input)
// into N independent, sequential record streams, one per worker.
package source

import (
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Stream is one worker's view of the CSV input: the header row, read
// once, and a Next method yielding subsequent records in order.
type Stream struct {
	Header []string

	reader io.Reader
	csv    *csv.Reader
	closer func() error
}

// Next returns the next record, or io.EOF when the stream is exhausted.
func (s *Stream) Next() ([]string, error) {
	return s.csv.Read()
}

// Close releases the stream's underlying handles.
func (s *Stream) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	return cr
}

func isGzipName(path string) bool {
	return strings.HasSuffix(path, ".gz") || strings.HasSuffix(path, ".gzip")
}

// OpenFile implements file-mode fan-out: the path is opened N
// independent times so every worker can scan the full stream on its
// own file descriptor, discarding records not assigned to it. This
// trades N times the raw I/O for zero coordination between workers.
func OpenFile(path string, n int) ([]*Stream, error) {
	streams := make([]*Stream, 0, n)
	for i := 0; i < n; i++ {
		f, err := os.Open(path)
		if err != nil {
			for _, s := range streams {
				s.Close()
			}
			return nil, fmt.Errorf("source: open %s (worker %d/%d): %w", path, i, n, err)
		}

		var r io.Reader = f
		closer := f.Close

		if isGzipName(path) {
			gz, err := gzip.NewReader(f)
			if err != nil {
				f.Close()
				for _, s := range streams {
					s.Close()
				}
				return nil, fmt.Errorf("source: open gzip stream %s (worker %d/%d): %w", path, i, n, err)
			}
			r = gz
			closer = func() error {
				gz.Close()
				return f.Close()
			}
		}

		cr := newCSVReader(r)
		header, err := cr.Read()
		if err != nil {
			closer()
			for _, s := range streams {
				s.Close()
			}
			return nil, fmt.Errorf("source: read header from %s (worker %d/%d): %w", path, i, n, err)
		}

		streams = append(streams, &Stream{
			Header: append([]string(nil), header...),
			reader: r,
			csv:    cr,
			closer: closer,
		})
	}
	return streams, nil
}

// OpenStdin implements stdin-mode fan-out: a single producer goroutine
// reads fixed-size blocks from r and replicates each block, in
// order, to N in-memory pipes, one per worker. The producer closes every
// writer on EOF (or on its own read error, which is then surfaced to
// every worker as that same error).
func OpenStdin(r io.Reader, n int) ([]*Stream, error) {
	const blockSize = 64 * 1024

	pipeReaders := make([]*io.PipeReader, n)
	pipeWriters := make([]*io.PipeWriter, n)
	for i := 0; i < n; i++ {
		pr, pw := io.Pipe()
		pipeReaders[i] = pr
		pipeWriters[i] = pw
	}

	go func() {
		buf := make([]byte, blockSize)
		for {
			nRead, err := r.Read(buf)
			if nRead > 0 {
				// Write to every pipe concurrently: a reader that stops
				// partway through a block (e.g. after its header row) must
				// not keep the other readers from receiving that block.
				var wg sync.WaitGroup
				for _, pw := range pipeWriters {
					wg.Add(1)
					go func(pw *io.PipeWriter) {
						defer wg.Done()
						_, _ = pw.Write(buf[:nRead])
					}(pw)
				}
				wg.Wait()
			}
			if err != nil {
				for _, pw := range pipeWriters {
					if err == io.EOF {
						pw.Close()
					} else {
						pw.CloseWithError(err)
					}
				}
				return
			}
		}
	}()

	streams := make([]*Stream, n)
	for i := range streams {
		cr := newCSVReader(pipeReaders[i])
		header, err := cr.Read()
		if err != nil {
			for _, pr := range pipeReaders {
				pr.Close()
			}
			return nil, fmt.Errorf("source: read header from stdin (worker %d/%d): %w", i, n, err)
		}
		streams[i] = &Stream{
			Header: append([]string(nil), header...),
			reader: pipeReaders[i],
			csv:    cr,
			closer: pipeReaders[i].Close,
		}
	}
	return streams, nil
}

// Open dispatches to OpenFile or OpenStdin depending on whether a path
// was given.
func Open(path string, stdin io.Reader, n int) ([]*Stream, error) {
	if path == "" {
		return OpenStdin(stdin, n)
	}
	return OpenFile(path, n)
}
