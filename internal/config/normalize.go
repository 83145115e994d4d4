package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAutoSave()
	c.normalizeSave()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAutoSave() {
	if c.AutoSave.IntervalSeconds <= 0 {
		c.AutoSave.IntervalSeconds = defaultAutoSaveIntervalSeconds
	}
	if c.AutoSave.StoreQuotaBytes <= 0 {
		c.AutoSave.StoreQuotaBytes = defaultStoreQuotaBytes
	}
	if c.AutoSave.PruneMaxAgeDays < 0 {
		c.AutoSave.PruneMaxAgeDays = 0
	}
}

func (c *Config) normalizeSave() {
	if c.Save.CompressionThresholdBytes <= 0 {
		c.Save.CompressionThresholdBytes = defaultCompressionThresholdBytes
	}
	if c.Save.ChunkItemThreshold <= 0 {
		c.Save.ChunkItemThreshold = defaultChunkItemThreshold
	}
	if c.Save.ChunkPageLimit <= 0 {
		c.Save.ChunkPageLimit = defaultChunkPageLimit
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
