package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	path := writeConfig(t, `
app:
  name: insight-agents
llm:
  model: gpt-4o-mini
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 3, cfg.LLM.MaxAttempts)
	assert.Equal(t, 1000, cfg.LLM.InitialBackoff)
	assert.Equal(t, 0.1, cfg.LLM.ClassifierTemperature)
	assert.Equal(t, 10, cfg.Analytics.DefaultLimit)
	assert.Equal(t, "7daysAgo", cfg.Analytics.DefaultStartDate)
	assert.Equal(t, DefaultSEOKeywords, cfg.Classifier.SEOKeywords)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSAllowedOrigins)
}

func TestLoadFromFile_EnvExpansionAndOverride(t *testing.T) {
	t.Setenv("TEST_SHEET_ID", "sheet-from-env")
	t.Setenv("LLM_MODEL", "gpt-4.1")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	path := writeConfig(t, `
google:
  default_spreadsheet_id: ${TEST_SHEET_ID}
classifier:
  seo_keywords: ["seo", "robots"]
workers:
  orchestrate-analytics-query:
    enabled: true
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "sheet-from-env", cfg.Google.DefaultSpreadsheetID)
	assert.Equal(t, "gpt-4.1", cfg.LLM.Model)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, []string{"seo", "robots"}, cfg.Classifier.SEOKeywords)

	wcfg := GetWorkerConfig(cfg, "orchestrate-analytics-query")
	assert.True(t, wcfg.Enabled)
	assert.Equal(t, 5, wcfg.MaxJobsActive)
	assert.Equal(t, 3, wcfg.MaxRetries)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name: "camunda enabled without broker",
			body: `
camunda:
  enabled: true
`,
			wantErr: "camunda.broker_address",
		},
		{
			name: "cache enabled without redis address",
			body: `
cache:
  enabled: true
`,
			wantErr: "database.redis.address",
		},
		{
			name: "postgres enabled without host",
			body: `
database:
  postgres:
    enabled: true
    database: insight
    user: insight
`,
			wantErr: "database.postgres.host",
		},
		{
			name: "default limit above max",
			body: `
analytics:
  default_limit: 500
  max_limit: 50
`,
			wantErr: "analytics.default_limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestServerAddrAndDuration(t *testing.T) {
	s := ServerConfig{Host: "0.0.0.0", Port: 8081}
	assert.Equal(t, "0.0.0.0:8081", s.Addr())
	assert.Equal(t, "1.5s", GetDuration(1500).String())
}

func TestIsWorkerEnabled(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{"off": {Enabled: false}}}
	assert.False(t, IsWorkerEnabled(cfg, "off"))
	assert.True(t, IsWorkerEnabled(cfg, "unknown"))
}
