package config

const (
	defaultDataDir = "~/.local/share/slayer"
	defaultLogDir  = "~/.local/share/slayer/logs"

	defaultAutoSaveIntervalSeconds = 300
	defaultStoreQuotaBytes         = 5 << 20
	defaultPruneMaxAgeDays         = 30

	defaultCompressionThresholdBytes = 1 << 20
	defaultChunkItemThreshold        = 500
	defaultChunkPageLimit            = 3

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		AutoSave: AutoSave{
			IntervalSeconds: defaultAutoSaveIntervalSeconds,
			StoreQuotaBytes: defaultStoreQuotaBytes,
			PruneMaxAgeDays: defaultPruneMaxAgeDays,
		},
		Save: Save{
			CompressionThresholdBytes: defaultCompressionThresholdBytes,
			ChunkItemThreshold:        defaultChunkItemThreshold,
			ChunkPageLimit:            defaultChunkPageLimit,
			WorkerOffload:             true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
