package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeDataset(); err != nil {
		return err
	}
	c.normalizeInference()
	c.normalizeGeneration()
	c.normalizeFilter()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDataset() error {
	var err error
	if strings.TrimSpace(c.Dataset.Path) == "" {
		c.Dataset.Path = defaultDatasetPath
	}
	if c.Dataset.Path, err = expandPath(c.Dataset.Path); err != nil {
		return fmt.Errorf("dataset.path: %w", err)
	}
	c.Dataset.SnapshotURL = strings.TrimSpace(c.Dataset.SnapshotURL)
	if c.Dataset.FetchTimeout <= 0 {
		c.Dataset.FetchTimeout = defaultFetchTimeout
	}
	return nil
}

func (c *Config) normalizeInference() {
	if c.Inference.APIKey == "" {
		if value, ok := os.LookupEnv("CCBENCH_API_KEY"); ok {
			c.Inference.APIKey = value
		}
	}
	c.Inference.BaseURL = strings.TrimSpace(c.Inference.BaseURL)
	if c.Inference.BaseURL == "" {
		c.Inference.BaseURL = defaultInferenceBaseURL
	}
	if c.Inference.TimeoutSeconds <= 0 {
		c.Inference.TimeoutSeconds = defaultInferenceTimeout
	}
	if c.Inference.MaxNewTokens <= 0 {
		c.Inference.MaxNewTokens = defaultMaxNewTokens
	}
	if c.Inference.RetryAttempts <= 0 {
		c.Inference.RetryAttempts = defaultRetryAttempts
	}
}

func (c *Config) normalizeGeneration() {
	if c.Generation.NumWorkers <= 0 {
		c.Generation.NumWorkers = defaultNumWorkers
	}
	if c.Generation.RepetitionPenalty <= 0 {
		c.Generation.RepetitionPenalty = defaultRepetitionPenalty
	}
	c.Generation.DevicePrefix = strings.TrimSpace(c.Generation.DevicePrefix)
	if c.Generation.DevicePrefix == "" {
		c.Generation.DevicePrefix = defaultDevicePrefix
	}
}

func (c *Config) normalizeFilter() {
	if strings.TrimSpace(c.Filter.Input) == "" {
		c.Filter.Input = defaultFilterInput
	}
	if strings.TrimSpace(c.Filter.Output) == "" {
		c.Filter.Output = defaultFilterOutput
	}
	if c.Filter.NumWorkers <= 0 {
		c.Filter.NumWorkers = defaultNumWorkers
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
