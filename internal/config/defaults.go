package config

import "path/filepath"

const (
	defaultConfigPath = "~/.config/ritualsync/config.toml"
	defaultDataDir    = "~/.local/share/ritualsync"

	defaultLocalStoreName = "rituals.json"
	defaultAuditLogName   = "enrichment_audit.json"
	defaultSQLiteName     = "staging.db"
	defaultLogDirName     = "logs"

	// BackendAirtable selects the Airtable REST store.
	BackendAirtable = "airtable"
	// BackendSQLite selects the local SQLite staging store.
	BackendSQLite = "sqlite"

	defaultExternalBackend    = BackendAirtable
	defaultAirtableBaseURL    = "https://api.airtable.com/v0"
	defaultAirtableTable      = "Rituals"
	defaultAirtableView       = "View1"
	defaultPageSize           = 100
	maxPageSize               = 100
	defaultExternalBatchSize  = 10
	maxExternalBatchSize      = 10
	defaultRequestsPerSecond  = 5
	defaultExternalTimeoutSec = 30

	defaultLLMBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel          = "openai/gpt-4o-mini"
	defaultLLMReferer        = "https://github.com/ritualsync/ritualsync"
	defaultLLMTitle          = "Ritualsync Enrichment"
	defaultLLMTimeoutSeconds = 120

	defaultEnrichmentBatchSize = 10
	defaultPacingMillis        = 200
	defaultFailureStatus       = "ERROR"
	defaultSelection           = SelectionStatus
	defaultPromptVariant       = "ritual_details_v2"

	// SelectionStatus selects records whose sync status is GENERATE.
	SelectionStatus = "status"
	// SelectionMissingSteps selects records without steps.
	SelectionMissingSteps = "missing_steps"

	defaultPublishStatus = "PUBLISHED"

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
		},
		External: External{
			Backend:           defaultExternalBackend,
			BaseURL:           defaultAirtableBaseURL,
			Table:             defaultAirtableTable,
			View:              defaultAirtableView,
			PageSize:          defaultPageSize,
			BatchSize:         defaultExternalBatchSize,
			RequestsPerSecond: defaultRequestsPerSecond,
			TimeoutSeconds:    defaultExternalTimeoutSec,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Enrichment: Enrichment{
			BatchSize:     defaultEnrichmentBatchSize,
			PacingMillis:  defaultPacingMillis,
			FailureStatus: defaultFailureStatus,
			Selection:     defaultSelection,
			PromptVariant: defaultPromptVariant,
		},
		Sync: Sync{
			PublishStatus: defaultPublishStatus,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			Sync:           true,
			Enrichment:     true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

func defaultUnder(dir, name string) string {
	return filepath.Join(dir, name)
}
