package config

import (
	"errors"
	"fmt"
	"strings"

	"ritualsync/internal/ritual"
	"ritualsync/internal/services"
)

// Validate ensures the configuration is usable. Every failure is tagged with
// services.ErrConfiguration.
func (c *Config) Validate() error {
	for _, check := range []func() error{
		c.validateExternal,
		c.validateEnrichment,
		c.validateSync,
	} {
		if err := check(); err != nil {
			return services.Wrap(services.ErrConfiguration, "config", "validate", "", err)
		}
	}
	return nil
}

// RequireLLM reports a configuration error when enrichment cannot reach the
// chat completion API. Commands that do not enrich skip this check.
func (c *Config) RequireLLM() error {
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return services.Wrap(services.ErrConfiguration, "config", "validate", "",
			errors.New("llm.api_key is required for enrichment. Set OPENROUTER_API_KEY (or OPENAI_API_KEY) or edit the config file"))
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return services.Wrap(services.ErrConfiguration, "config", "validate", "", errors.New("llm.model must be set"))
	}
	return nil
}

func (c *Config) validateExternal() error {
	switch c.External.Backend {
	case BackendAirtable:
		if c.External.APIToken == "" {
			defaultPath, err := DefaultConfigPath()
			if err != nil {
				defaultPath = defaultConfigPath
			}
			return fmt.Errorf("external.api_token is required. Set AIRTABLE_TOKEN env var or edit %s (create with 'ritualsync config init')", defaultPath)
		}
		if c.External.BaseID == "" {
			return errors.New("external.base_id is required when external.backend is airtable (or set AIRTABLE_BASE_ID)")
		}
		if c.External.Table == "" {
			return errors.New("external.table must be set")
		}
	case BackendSQLite:
		if strings.TrimSpace(c.External.SQLitePath) == "" {
			return errors.New("external.sqlite_path must be set when external.backend is sqlite")
		}
	default:
		return fmt.Errorf("external.backend: unsupported value %q (want %q or %q)", c.External.Backend, BackendAirtable, BackendSQLite)
	}
	if c.External.PageSize > maxPageSize {
		return fmt.Errorf("external.page_size must be between 1 and %d", maxPageSize)
	}
	if c.External.BatchSize > maxExternalBatchSize {
		return fmt.Errorf("external.batch_size must be between 1 and %d", maxExternalBatchSize)
	}
	return ensurePositiveMap(map[string]int{
		"external.page_size":           c.External.PageSize,
		"external.batch_size":          c.External.BatchSize,
		"external.requests_per_second": c.External.RequestsPerSecond,
		"external.timeout_seconds":     c.External.TimeoutSeconds,
	})
}

func (c *Config) validateEnrichment() error {
	if c.Enrichment.BatchSize <= 0 {
		return errors.New("enrichment.batch_size must be positive")
	}
	status, err := ritual.ParseStatus(c.Enrichment.FailureStatus)
	if err != nil || (status != ritual.StatusError && status != ritual.StatusGenerate) {
		return fmt.Errorf("enrichment.failure_status must be ERROR or GENERATE, got %q", c.Enrichment.FailureStatus)
	}
	switch c.Enrichment.Selection {
	case SelectionStatus, SelectionMissingSteps:
	default:
		return fmt.Errorf("enrichment.selection must be %q or %q, got %q", SelectionStatus, SelectionMissingSteps, c.Enrichment.Selection)
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.PublishStatus == "" {
		return nil
	}
	if _, err := ritual.ParseStatus(c.Sync.PublishStatus); err != nil {
		return fmt.Errorf("sync.publish_status: %w", err)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
