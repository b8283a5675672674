// Package pipeline wires the fan-out, worker, and global-merge stages
// together: N workers run independently and in parallel over disjoint
// document-id residue classes, then a single final phase merges their
// SSTables into the persistent store.
package pipeline

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/go-mizu/tabidx/internal/docid"
	"github.com/go-mizu/tabidx/internal/indexer"
	"github.com/go-mizu/tabidx/internal/keyspace"
	"github.com/go-mizu/tabidx/internal/merge"
	"github.com/go-mizu/tabidx/internal/sortedrun"
	"github.com/go-mizu/tabidx/internal/source"
	"github.com/go-mizu/tabidx/internal/store"
)

// Config is the full set of knobs the CLI exposes.
type Config struct {
	CSVPath string // empty means read from Stdin

	Jobs int // 0 means runtime.GOMAXPROCS(0)

	ArcCacheSize int
	MaxNbChunks  int
	MaxMemory    int

	CompressionType  sortedrun.CompressionType
	CompressionLevel *int

	TempDir string
}

// jobs returns the effective worker count, defaulting to hardware
// parallelism.
func (c Config) jobs() int {
	if c.Jobs > 0 {
		return c.Jobs
	}
	return runtime.GOMAXPROCS(0)
}

// Stats summarizes a successful run, for the CLI's final log line.
type Stats struct {
	Documents int
	Workers   int
}

// Run drives the entire pipeline: fan-out, N parallel worker
// accumulators, and the single-threaded global merge into the store
// opened at dbPath. On any error, the store is left unchanged.
func Run(cfg Config, dbPath string, dbSize int64, stdin io.Reader) (Stats, error) {
	n := cfg.jobs()
	if n < 1 {
		n = 1
	}

	streams, err := source.Open(cfg.CSVPath, stdin, n)
	if err != nil {
		return Stats{}, err
	}
	defer func() {
		for _, s := range streams {
			s.Close()
		}
	}()

	results := make([]indexer.Result, n)

	g := new(errgroup.Group)
	for w := 0; w < n; w++ {
		w := w
		g.Go(func() error {
			res, err := runWorker(cfg, w, n, streams[w])
			if err != nil {
				return fmt.Errorf("pipeline: worker %d: %w", w, err)
			}
			results[w] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	st, err := store.Open(dbPath, dbSize)
	if err != nil {
		return Stats{}, err
	}
	defer st.Close()

	docCount, err := globalMerge(st, cfg, results)
	if err != nil {
		return Stats{}, err
	}

	return Stats{Documents: docCount, Workers: n}, nil
}

// runWorker consumes one stream end to end, applying the
// record_index mod N shard predicate against the global round-robin
// document-id index.
func runWorker(cfg Config, workerIndex, n int, stream *source.Stream) (indexer.Result, error) {
	st := indexer.New(indexer.Config{
		ArcCacheSize:     cfg.ArcCacheSize,
		MaxNbChunks:      cfg.MaxNbChunks,
		MaxMemory:        cfg.MaxMemory,
		CompressionType:  cfg.CompressionType,
		CompressionLevel: cfg.CompressionLevel,
		TempDir:          cfg.TempDir,
	})

	if err := st.WriteHeaders(stream.Header); err != nil {
		return indexer.Result{}, err
	}

	for recordIndex := 0; ; recordIndex++ {
		record, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return indexer.Result{}, fmt.Errorf("pipeline: read record %d: %w", recordIndex, err)
		}

		if recordIndex%n != workerIndex {
			continue
		}

		id, err := docid.FromRecordIndex(uint64(recordIndex))
		if err != nil {
			return indexer.Result{}, fmt.Errorf("pipeline: %w", err)
		}

		if err := st.Ingest(id, record); err != nil {
			return indexer.Result{}, fmt.Errorf("pipeline: ingest record %d: %w", recordIndex, err)
		}

		if seen := recordIndex/n + 1; seen%1_000_000 == 0 {
			log.Debug().Int("worker", workerIndex).Msgf("We have seen %dm documents so far", seen/1_000_000)
		}
	}

	return st.Finalize()
}

// globalMerge performs a k-way merge over all workers' postings
// SSTables, and a separate one over their documents SSTables, both
// flushed into a single write transaction that commits atomically at
// the end.
func globalMerge(st *store.Store, cfg Config, results []indexer.Result) (int, error) {
	postingsPaths := make([]string, len(results))
	documentsPaths := make([]string, len(results))
	for i, r := range results {
		postingsPaths[i] = r.PostingsPath
		documentsPaths[i] = r.DocumentsPath
	}
	defer func() {
		for _, p := range postingsPaths {
			os.Remove(p)
		}
		for _, p := range documentsPaths {
			os.Remove(p)
		}
	}()

	w, err := st.BeginWrite()
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			w.Rollback()
		}
	}()

	pit, err := sortedrun.MergeFiles(postingsPaths, cfg.CompressionType, merge.Postings)
	if err != nil {
		return 0, err
	}
	defer pit.Close()

	for {
		key, value, ok := pit.Next()
		if !ok {
			break
		}
		if err := applyPostingsEntry(w, key, value); err != nil {
			return 0, err
		}
	}
	if err := pit.Err(); err != nil {
		return 0, fmt.Errorf("pipeline: merge postings: %w", err)
	}

	dit, err := sortedrun.MergeFiles(documentsPaths, cfg.CompressionType, merge.Documents)
	if err != nil {
		return 0, err
	}
	defer dit.Close()

	for {
		key, value, ok := dit.Next()
		if !ok {
			break
		}
		id, err := docIDFromKey(key)
		if err != nil {
			return 0, err
		}
		if err := w.PutDocument(id, value); err != nil {
			return 0, fmt.Errorf("pipeline: %w", err)
		}
	}
	if err := dit.Err(); err != nil {
		return 0, fmt.Errorf("pipeline: merge documents: %w", err)
	}

	docCount := w.NumberOfDocuments()

	if err := w.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return docCount, nil
}

func docIDFromKey(key []byte) (uint32, error) {
	if len(key) != 4 {
		return 0, fmt.Errorf("pipeline: malformed document key %x", key)
	}
	return binary.BigEndian.Uint32(key), nil
}

func applyPostingsEntry(w *store.Writer, key, value []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("pipeline: empty postings key")
	}

	switch keyspace.Prefix(key[0]) {
	case keyspace.PrefixWordsFST:
		return w.PutWordsFST(value)
	case keyspace.PrefixHeaders:
		return w.PutHeaders(value)
	case keyspace.PrefixDocumentsIds:
		return w.PutDocumentsIds(value)
	case keyspace.PrefixWordDocids:
		return w.PutWordDocids(key[1:], value)
	case keyspace.PrefixWordPositions:
		return w.PutWordPositions(key[1:], value)
	case keyspace.PrefixWordPairProximity:
		return w.PutWordPairProximity(key[1:], value)
	default:
		return fmt.Errorf("pipeline: unknown postings key class 0x%02x", key[0])
	}
}
