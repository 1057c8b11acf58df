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
	if err := c.normalizeExternal(); err != nil {
		return err
	}
	c.normalizeLLM()
	if err := c.normalizeEnrichment(); err != nil {
		return err
	}
	c.normalizeSync()
	c.normalizeNotifications()
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
	if strings.TrimSpace(c.Paths.LocalStore) == "" {
		c.Paths.LocalStore = defaultUnder(c.Paths.DataDir, defaultLocalStoreName)
	}
	if c.Paths.LocalStore, err = expandPath(c.Paths.LocalStore); err != nil {
		return fmt.Errorf("paths.local_store: %w", err)
	}
	if strings.TrimSpace(c.Paths.AuditLog) == "" {
		c.Paths.AuditLog = defaultUnder(c.Paths.DataDir, defaultAuditLogName)
	}
	if c.Paths.AuditLog, err = expandPath(c.Paths.AuditLog); err != nil {
		return fmt.Errorf("paths.audit_log: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultUnder(c.Paths.DataDir, defaultLogDirName)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeExternal() error {
	c.External.Backend = strings.ToLower(strings.TrimSpace(c.External.Backend))
	if c.External.Backend == "" {
		c.External.Backend = defaultExternalBackend
	}
	c.External.APIToken = strings.TrimSpace(c.External.APIToken)
	if c.External.APIToken == "" {
		if value, ok := os.LookupEnv("AIRTABLE_TOKEN"); ok {
			c.External.APIToken = strings.TrimSpace(value)
		}
	}
	c.External.BaseID = strings.TrimSpace(c.External.BaseID)
	if c.External.BaseID == "" {
		if value, ok := os.LookupEnv("AIRTABLE_BASE_ID"); ok {
			c.External.BaseID = strings.TrimSpace(value)
		}
	}
	c.External.Table = strings.TrimSpace(c.External.Table)
	if c.External.Table == "" {
		c.External.Table = defaultAirtableTable
	}
	c.External.View = strings.TrimSpace(c.External.View)
	c.External.BaseURL = strings.TrimRight(strings.TrimSpace(c.External.BaseURL), "/")
	if c.External.BaseURL == "" {
		c.External.BaseURL = defaultAirtableBaseURL
	}
	if c.External.PageSize <= 0 {
		c.External.PageSize = defaultPageSize
	}
	if c.External.BatchSize <= 0 {
		c.External.BatchSize = defaultExternalBatchSize
	}
	if c.External.RequestsPerSecond <= 0 {
		c.External.RequestsPerSecond = defaultRequestsPerSecond
	}
	if c.External.TimeoutSeconds <= 0 {
		c.External.TimeoutSeconds = defaultExternalTimeoutSec
	}
	if strings.TrimSpace(c.External.SQLitePath) == "" {
		c.External.SQLitePath = defaultUnder(c.Paths.DataDir, defaultSQLiteName)
	}
	var err error
	if c.External.SQLitePath, err = expandPath(c.External.SQLitePath); err != nil {
		return fmt.Errorf("external.sqlite_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		if value, ok := os.LookupEnv("OPENAI_API_MODEL"); ok && strings.TrimSpace(value) != "" {
			c.LLM.Model = strings.TrimSpace(value)
		} else {
			c.LLM.Model = defaultLLMModel
		}
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	if c.LLM.Referer == "" {
		c.LLM.Referer = defaultLLMReferer
	}
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.Title == "" {
		c.LLM.Title = defaultLLMTitle
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeEnrichment() error {
	if c.Enrichment.BatchSize <= 0 {
		c.Enrichment.BatchSize = defaultEnrichmentBatchSize
	}
	if c.Enrichment.PacingMillis < 0 {
		c.Enrichment.PacingMillis = 0
	}
	c.Enrichment.FailureStatus = strings.ToUpper(strings.TrimSpace(c.Enrichment.FailureStatus))
	if c.Enrichment.FailureStatus == "" {
		c.Enrichment.FailureStatus = defaultFailureStatus
	}
	c.Enrichment.Selection = strings.ToLower(strings.TrimSpace(c.Enrichment.Selection))
	if c.Enrichment.Selection == "" {
		c.Enrichment.Selection = defaultSelection
	}
	c.Enrichment.PromptVariant = strings.TrimSpace(c.Enrichment.PromptVariant)
	if c.Enrichment.PromptVariant == "" {
		c.Enrichment.PromptVariant = defaultPromptVariant
	}
	if strings.TrimSpace(c.Enrichment.SystemPromptPath) != "" {
		var err error
		if c.Enrichment.SystemPromptPath, err = expandPath(strings.TrimSpace(c.Enrichment.SystemPromptPath)); err != nil {
			return fmt.Errorf("enrichment.system_prompt_path: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeSync() {
	c.Sync.PublishStatus = strings.ToUpper(strings.TrimSpace(c.Sync.PublishStatus))
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = 10
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
