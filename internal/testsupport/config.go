package testsupport

import (
	"path/filepath"
	"testing"

	"ritualsync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The external store defaults to SQLite under the temp dir and enrichment
// pacing is disabled.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = base
	cfgVal.Paths.LocalStore = filepath.Join(base, "rituals.json")
	cfgVal.Paths.AuditLog = filepath.Join(base, "enrichment_audit.json")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.External.Backend = config.BackendSQLite
	cfgVal.External.SQLitePath = filepath.Join(base, "staging.db")
	cfgVal.LLM.APIKey = "test"
	cfgVal.Enrichment.PacingMillis = 0
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithLLMEndpoint points the chat completion client at url.
func WithLLMEndpoint(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.BaseURL = url
	}
}

// WithAirtable switches the backend to Airtable at url.
func WithAirtable(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.External.Backend = config.BackendAirtable
		b.cfg.External.BaseURL = url
		b.cfg.External.APIToken = "test-token"
		b.cfg.External.BaseID = "appTest"
		b.cfg.External.RequestsPerSecond = 1000
	}
}

// WithNtfy sets the notification topic.
func WithNtfy(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = url
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return cfg.Paths.DataDir
}
