package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateAutoSave(); err != nil {
		return err
	}
	if err := c.validateSave(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	return nil
}

func (c *Config) validateAutoSave() error {
	if c.AutoSave.IntervalSeconds < 5 {
		return fmt.Errorf("autosave.interval_seconds must be at least 5, got %d", c.AutoSave.IntervalSeconds)
	}
	if c.AutoSave.StoreQuotaBytes < 1024 {
		return fmt.Errorf("autosave.store_quota_bytes must be at least 1024, got %d", c.AutoSave.StoreQuotaBytes)
	}
	return nil
}

func (c *Config) validateSave() error {
	if c.Save.CompressionThresholdBytes < 1024 {
		return fmt.Errorf("save.compression_threshold_bytes must be at least 1024, got %d", c.Save.CompressionThresholdBytes)
	}
	if c.Save.ChunkPageLimit < 1 {
		return errors.New("save.chunk_page_limit must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "text", "json":
	default:
		return fmt.Errorf("logging.format must be console, text, or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
