package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveRequiresDB(t *testing.T) {
	if _, err := Resolve(Flags{}); err == nil {
		t.Fatal("expected --db to be required")
	}
}

func TestResolveAppliesDefaults(t *testing.T) {
	cfg, err := Resolve(Flags{DB: t.TempDir()})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.DBSize != DefaultDBSize {
		t.Fatalf("expected default db size %d, got %d", DefaultDBSize, cfg.DBSize)
	}
	if cfg.Pipeline.ArcCacheSize != DefaultArcCacheSize {
		t.Fatalf("expected default arc cache size %d, got %d", DefaultArcCacheSize, cfg.Pipeline.ArcCacheSize)
	}
}

func TestResolveRejectsDBSizeNotAPageMultiple(t *testing.T) {
	pageSize := int64(os.Getpagesize())
	_, err := Resolve(Flags{DB: t.TempDir(), DBSize: pageSize + 1})
	if err == nil {
		t.Fatal("expected a non-page-multiple db size to be rejected")
	}
}

func TestResolveRequiresCompressionTypeWhenLevelSet(t *testing.T) {
	_, err := Resolve(Flags{
		DB:                  t.TempDir(),
		CompressionLevelSet: true,
		CompressionLevel:    5,
	})
	if err == nil {
		t.Fatal("expected --chunk-compression-level without --chunk-compression-type to be rejected")
	}

	_, err = Resolve(Flags{
		DB:                  t.TempDir(),
		CompressionType:     "zstd",
		CompressionTypeSet:  true,
		CompressionLevel:    5,
		CompressionLevelSet: true,
	})
	if err != nil {
		t.Fatalf("expected level with an explicit type to be accepted: %v", err)
	}
}

func TestResolveRejectsUnknownCompressionType(t *testing.T) {
	_, err := Resolve(Flags{DB: t.TempDir(), CompressionType: "bogus", CompressionTypeSet: true})
	if err == nil {
		t.Fatal("expected an unknown compression algorithm to be rejected")
	}
}

func TestResolveRejectsMissingCSVFile(t *testing.T) {
	_, err := Resolve(Flags{DB: t.TempDir(), CSVFile: filepath.Join(t.TempDir(), "missing.csv")})
	if err == nil {
		t.Fatal("expected a missing CSV file to be rejected")
	}
}
