// Package cli is the tabidx command-line surface: a single root
// command that runs the full indexing pipeline against one CSV input
// and commits the result to a persistent store.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/go-mizu/tabidx/internal/config"
	"github.com/go-mizu/tabidx/internal/pipeline"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Execute runs the tabidx CLI.
func Execute(ctx context.Context) error {
	var flags config.Flags

	root := &cobra.Command{
		Use:   "tabidx [CSV_FILE]",
		Short: "Build a full-text search index from a CSV file",
		Long: `tabidx reads a CSV file (or standard input) and builds a full-text
search index: one sorted key/value store indexed by word, by
document-word position, and by word-pair proximity, committed
atomically to a persistent database directory.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				flags.CSVFile = args[0]
			}
			return run(cmd.Context(), flags)
		},
	}

	root.Flags().StringVar(&flags.DB, "db", "", "directory for the persistent store (required)")
	root.Flags().Int64Var(&flags.DBSize, "db-size", config.DefaultDBSize, "map size of the persistent store, in bytes (checked against the OS page size; not applied to the store)")
	root.Flags().IntVar(&flags.Jobs, "jobs", 0, "number of worker threads (default: hardware parallelism)")
	root.Flags().IntVar(&flags.MaxNbChunks, "max-nb-chunks", 0, "external sorter max chunk count (0: unbounded)")
	root.Flags().IntVar(&flags.MaxMemory, "max-memory", 0, "external sorter max in-memory buffer size, in bytes")
	root.Flags().IntVar(&flags.ArcCacheSize, "arc-cache-size", config.DefaultArcCacheSize, "per-worker word-docids cache capacity")
	root.Flags().StringVar(&flags.CompressionType, "chunk-compression-type", "snappy", "spill chunk compression: snappy|zlib|lz4|lz4hc|zstd")
	root.Flags().IntVar(&flags.CompressionLevel, "chunk-compression-level", 0, "spill chunk compression level (requires --chunk-compression-type)")
	root.Flags().CountVarP(&flags.Verbosity, "verbose", "v", "increase log verbosity (repeatable)")

	root.PreRunE = func(cmd *cobra.Command, args []string) error {
		flags.CompressionTypeSet = cmd.Flags().Changed("chunk-compression-type")
		flags.CompressionLevelSet = cmd.Flags().Changed("chunk-compression-level")
		return nil
	}

	root.Version = Version

	if err := fang.Execute(ctx, root, fang.WithVersion(Version)); err != nil {
		fmt.Fprintln(os.Stderr, "tabidx: "+err.Error())
		return err
	}
	return nil
}

func run(ctx context.Context, flags config.Flags) error {
	cfg, err := config.Resolve(flags)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Verbosity)

	start := time.Now()
	logger.Info().Str("db", cfg.DBPath).Msg("starting index build")

	stats, err := pipeline.Run(cfg.Pipeline, cfg.DBPath, cfg.DBSize, os.Stdin)
	if err != nil {
		logger.Error().Err(err).Msg("index build failed")
		return err
	}

	logger.Info().
		Int("documents", stats.Documents).
		Int("workers", stats.Workers).
		Dur("elapsed", time.Since(start)).
		Msg("index build committed")
	return nil
}

func newLogger(verbosity int) zerolog.Logger {
	level := zerolog.WarnLevel
	switch {
	case verbosity >= 2:
		level = zerolog.DebugLevel
	case verbosity == 1:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
}
