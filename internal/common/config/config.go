// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App        AppConfig               `mapstructure:"app"`
	Server     ServerConfig            `mapstructure:"server"`
	LLM        LLMConfig               `mapstructure:"llm"`
	Google     GoogleConfig            `mapstructure:"google"`
	Analytics  AnalyticsConfig         `mapstructure:"analytics"`
	Classifier ClassifierConfig        `mapstructure:"classifier"`
	Cache      CacheConfig             `mapstructure:"cache"`
	Database   DatabaseConfig          `mapstructure:"database"`
	Camunda    CamundaConfig           `mapstructure:"camunda"`
	Workers    map[string]WorkerConfig `mapstructure:"workers"`
	Logging    LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Host               string   `mapstructure:"host"`
	Port               int      `mapstructure:"port"`
	ReadTimeout        int      `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout       int      `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout    int      `mapstructure:"shutdown_timeout"` // milliseconds
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the settings applicable to every zeebe job worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- Agent Configuration ---

// LLMConfig configures the chat-completions gateway.
type LLMConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	Timeout        int    `mapstructure:"timeout"` // milliseconds
	MaxAttempts    int    `mapstructure:"max_attempts"`
	InitialBackoff int    `mapstructure:"initial_backoff"` // milliseconds
	MaxTokens      int    `mapstructure:"max_tokens"`

	ClassifierTemperature    float64 `mapstructure:"classifier_temperature"`
	PlannerTemperature       float64 `mapstructure:"planner_temperature"`
	SheetsPlannerTemperature float64 `mapstructure:"sheets_planner_temperature"`
	ExplainTemperature       float64 `mapstructure:"explain_temperature"`
}

// GoogleConfig holds credentials and endpoints for the Analytics Data and Sheets APIs.
type GoogleConfig struct {
	CredentialsFile      string `mapstructure:"credentials_file"`
	CredentialsJSON      string `mapstructure:"credentials_json"`
	AnalyticsEndpoint    string `mapstructure:"analytics_endpoint"`
	SheetsEndpoint       string `mapstructure:"sheets_endpoint"`
	DefaultSpreadsheetID string `mapstructure:"default_spreadsheet_id"`
}

type AnalyticsConfig struct {
	DefaultLimit     int    `mapstructure:"default_limit"`
	MaxLimit         int    `mapstructure:"max_limit"`
	DefaultStartDate string `mapstructure:"default_start_date"`
	DefaultEndDate   string `mapstructure:"default_end_date"`
}

type ClassifierConfig struct {
	SEOKeywords []string `mapstructure:"seo_keywords"`
}

type CacheConfig struct {
	Enabled  bool `mapstructure:"enabled"`
	SheetTTL int  `mapstructure:"sheet_ttl"` // milliseconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
