package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateInference(); err != nil {
		return err
	}
	if err := c.validateGeneration(); err != nil {
		return err
	}
	if err := c.validateFilter(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateInference() error {
	parsed, err := url.Parse(c.Inference.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("inference.base_url must be an absolute URL, got %q", c.Inference.BaseURL)
	}
	if c.Dataset.SnapshotURL != "" {
		snap, err := url.Parse(c.Dataset.SnapshotURL)
		if err != nil || snap.Scheme == "" || snap.Host == "" {
			return fmt.Errorf("dataset.snapshot_url must be an absolute URL, got %q", c.Dataset.SnapshotURL)
		}
	}
	return nil
}

func (c *Config) validateGeneration() error {
	if c.Generation.NumWorkers < 1 {
		return errors.New("generation.num_workers must be at least 1")
	}
	if c.Generation.RepetitionPenalty < 1 {
		return errors.New("generation.repetition_penalty must be at least 1")
	}
	return nil
}

func (c *Config) validateFilter() error {
	if c.Filter.NumWorkers < 1 {
		return errors.New("filter.num_workers must be at least 1")
	}
	if c.Filter.Input == c.Filter.Output {
		return errors.New("filter.input and filter.output must differ")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
