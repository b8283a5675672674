// Package config validates and resolves the command-line surface into
// the structures internal/pipeline and internal/store consume.
package config

import (
	"fmt"
	"os"

	"github.com/go-mizu/tabidx/internal/pipeline"
	"github.com/go-mizu/tabidx/internal/sortedrun"
)

// DefaultDBSize is the persistent store's default map size (100 GiB).
const DefaultDBSize int64 = 107_374_182_400

// DefaultArcCacheSize is the per-worker word-docids cache capacity.
const DefaultArcCacheSize = 43690

// Flags mirrors the raw CLI surface before validation, one field per
// flag. CompressionTypeSet distinguishes "left at its default" from
// "explicitly passed", which the requires relationship below needs to
// enforce.
type Flags struct {
	DB      string
	DBSize  int64
	Jobs    int
	CSVFile string

	MaxNbChunks int
	MaxMemory   int

	ArcCacheSize int

	CompressionType    string
	CompressionTypeSet bool
	CompressionLevel   int
	CompressionLevelSet bool

	Verbosity int
}

// Config is the fully validated, resolved configuration.
type Config struct {
	DBPath string
	DBSize int64

	Pipeline pipeline.Config

	Verbosity int
}

// Resolve validates f and builds a Config, applying every defaulting
// rule and cross-field constraint the CLI surface requires.
func Resolve(f Flags) (Config, error) {
	if f.DB == "" {
		return Config{}, fmt.Errorf("config: --db is required")
	}

	dbSize := f.DBSize
	if dbSize <= 0 {
		dbSize = DefaultDBSize
	}
	pageSize := int64(os.Getpagesize())
	if dbSize%pageSize != 0 {
		return Config{}, fmt.Errorf("config: --db-size %d is not a multiple of the OS page size (%d)", dbSize, pageSize)
	}

	if f.CompressionLevelSet && !f.CompressionTypeSet {
		return Config{}, fmt.Errorf("config: --chunk-compression-level requires --chunk-compression-type")
	}

	typeName := f.CompressionType
	if typeName == "" {
		typeName = "snappy"
	}
	compType, err := sortedrun.ParseCompressionType(typeName)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	var level *int
	if f.CompressionLevelSet {
		l := f.CompressionLevel
		level = &l
	}

	arcCacheSize := f.ArcCacheSize
	if arcCacheSize <= 0 {
		arcCacheSize = DefaultArcCacheSize
	}

	if f.CSVFile != "" {
		if _, err := os.Stat(f.CSVFile); err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
	}

	return Config{
		DBPath: f.DB,
		DBSize: dbSize,
		Pipeline: pipeline.Config{
			CSVPath:          f.CSVFile,
			Jobs:             f.Jobs,
			ArcCacheSize:     arcCacheSize,
			MaxNbChunks:      f.MaxNbChunks,
			MaxMemory:        f.MaxMemory,
			CompressionType:  compType,
			CompressionLevel: level,
		},
		Verbosity: f.Verbosity,
	}, nil
}
