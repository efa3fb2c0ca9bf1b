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
	if err := c.validateChunking(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
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
	if c.Paths.DocumentsDir == "" {
		return errors.New("paths.documents_dir must be set")
	}
	if c.Paths.ArtifactsDir == "" {
		return errors.New("paths.artifacts_dir must be set")
	}
	return nil
}

func (c *Config) validateChunking() error {
	return ensurePositiveMap(map[string]int{
		"chunking.threshold_bytes": c.Chunking.ThresholdBytes,
		"chunking.token_budget":    c.Chunking.TokenBudget,
		"chunking.head_units":      c.Chunking.HeadUnits,
		"chunking.tail_units":      c.Chunking.TailUnits,
		"chunking.body_samples":    c.Chunking.BodySamples,
		"chunking.window_bytes":    c.Chunking.WindowBytes,
		"chunking.flat_windows":    c.Chunking.FlatWindows,
	})
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
		"workflow.lease_seconds":        c.Workflow.LeaseSeconds,
		"workflow.lease_renew_interval": c.Workflow.LeaseRenewInterval,
		"workflow.reclaim_interval":     c.Workflow.ReclaimInterval,
		"workflow.max_attempts":         c.Workflow.MaxAttempts,
		"workflow.backoff_base_seconds": c.Workflow.BackoffBaseSeconds,
		"workflow.backoff_max_seconds":  c.Workflow.BackoffMaxSeconds,
		"workflow.extract_concurrency":  c.Workflow.ExtractConcurrency,
		"workflow.generate_concurrency": c.Workflow.GenerateConcurrency,
		"workflow.optimize_concurrency": c.Workflow.OptimizeConcurrency,
	}); err != nil {
		return err
	}
	if c.Workflow.LeaseRenewInterval >= c.Workflow.LeaseSeconds {
		return errors.New("workflow.lease_renew_interval must be smaller than workflow.lease_seconds")
	}
	if c.Workflow.BackoffBaseSeconds > c.Workflow.BackoffMaxSeconds {
		return errors.New("workflow.backoff_base_seconds must not exceed workflow.backoff_max_seconds")
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

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", key, value)
		}
	}
	return nil
}
