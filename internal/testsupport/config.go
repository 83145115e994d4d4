package testsupport

import (
	"path/filepath"
	"testing"

	"slayer/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.AutoSave.IntervalSeconds = 5

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithStoreQuota overrides the backup store quota on the test config.
func WithStoreQuota(bytes int64) ConfigOption {
	return func(cfg *config.Config) {
		cfg.AutoSave.StoreQuotaBytes = bytes
	}
}

// WithChunking overrides the chunked-collection limits on the test config.
func WithChunking(itemThreshold, pageLimit int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Save.ChunkItemThreshold = itemThreshold
		cfg.Save.ChunkPageLimit = pageLimit
	}
}

// WithCompressionThreshold overrides the envelope compression threshold.
func WithCompressionThreshold(bytes int64) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Save.CompressionThresholdBytes = bytes
	}
}
