package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	errs "enricher/pkg/errors"
)

// Config holds all configuration options for the enrichment pipeline
type Config struct {
	// Tabular data source holding the company roster
	Airtable AirtableConfig `yaml:"airtable" json:"airtable"`

	// Profile scraping service
	Apify ApifyConfig `yaml:"apify" json:"apify"`

	// LLM completion endpoint used for trait extraction
	Completion CompletionConfig `yaml:"completion" json:"completion"`

	Traits  TraitsConfig  `yaml:"traits" json:"traits"`
	Updater UpdaterConfig `yaml:"updater" json:"updater"`

	// File layout of the intermediate stage outputs
	Paths PathsConfig `yaml:"paths" json:"paths"`

	// HTTP job-control service
	Server ServerConfig `yaml:"server" json:"server"`

	// Adapter-level retry policy for transient failures
	Retry RetryConfig `yaml:"retry" json:"retry"`

	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// AirtableConfig holds Airtable connection and filter settings
type AirtableConfig struct {
	APIKey            string        `yaml:"api_key" json:"api_key"`
	BaseID            string        `yaml:"base_id" json:"base_id"`
	TableID           string        `yaml:"table_id" json:"table_id"`
	BaseURL           string        `yaml:"base_url" json:"base_url"`
	LinkedInFields    []string      `yaml:"linkedin_fields" json:"linkedin_fields"`
	EventField        string        `yaml:"event_field" json:"event_field"`
	EventFilter       string        `yaml:"event_filter" json:"event_filter"`
	Top100Field       string        `yaml:"top_100_field" json:"top_100_field"`
	Top100Filter      bool          `yaml:"top_100_filter" json:"top_100_filter"`
	PageSize          int           `yaml:"page_size" json:"page_size"`
	RequestsPerSecond int           `yaml:"requests_per_second" json:"requests_per_second"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
}

// ApifyConfig holds scraping service settings
type ApifyConfig struct {
	Token         string        `yaml:"token" json:"token"`
	BaseURL       string        `yaml:"base_url" json:"base_url"`
	ActorID       string        `yaml:"actor_id" json:"actor_id"`
	BatchSize     int           `yaml:"batch_size" json:"batch_size"`
	BatchDelay    time.Duration `yaml:"batch_delay" json:"batch_delay"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	TestMode      bool          `yaml:"test_mode" json:"test_mode"`
	TestNumURLs   int           `yaml:"test_num_urls" json:"test_num_urls"`
	TestBatchSize int           `yaml:"test_batch_size" json:"test_batch_size"`
}

// CompletionConfig holds LLM endpoint settings
type CompletionConfig struct {
	APIKey            string        `yaml:"api_key" json:"api_key"`
	BaseURL           string        `yaml:"base_url" json:"base_url"`
	Model             string        `yaml:"model" json:"model"`
	Temperature       float64       `yaml:"temperature" json:"temperature"`
	MaxTokens         int           `yaml:"max_tokens" json:"max_tokens"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
}

// TraitsConfig controls a trait extraction session
type TraitsConfig struct {
	// MaxProfiles caps the profiles extracted per session, -1 for all.
	MaxProfiles       int           `yaml:"max_profiles" json:"max_profiles"`
	ForceReextraction bool          `yaml:"force_reextraction" json:"force_reextraction"`
	Delay             time.Duration `yaml:"delay_between_calls" json:"delay_between_calls"`
	MaxAttempts       int           `yaml:"max_attempts" json:"max_attempts"`
	BackoffBase       time.Duration `yaml:"backoff_base" json:"backoff_base"`
}

// UpdaterConfig controls the write-back stage
type UpdaterConfig struct {
	Delay      time.Duration `yaml:"delay_between_updates" json:"delay_between_updates"`
	FieldDelay time.Duration `yaml:"delay_between_fields" json:"delay_between_fields"`
}

// PathsConfig holds the directories and file prefix of stage outputs
type PathsConfig struct {
	Prefix        string `yaml:"prefix" json:"prefix"`
	ExtractionDir string `yaml:"extraction_dir" json:"extraction_dir"`
	ProfilesDir   string `yaml:"profiles_dir" json:"profiles_dir"`
	CleanedDir    string `yaml:"cleaned_dir" json:"cleaned_dir"`
	TraitsDir     string `yaml:"traits_dir" json:"traits_dir"`
}

// ServerConfig holds HTTP service settings
type ServerConfig struct {
	Host            string        `yaml:"host" json:"host"`
	Port            int           `yaml:"port" json:"port"`
	AllowedOrigins  []string      `yaml:"allowed_origins" json:"allowed_origins"`
	MaxLogs         int           `yaml:"max_logs" json:"max_logs"`
	Workers         int           `yaml:"workers" json:"workers"`
	HardCancel      bool          `yaml:"hard_cancel" json:"hard_cancel"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// RetryConfig holds retry settings for external HTTP calls
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier  float64       `yaml:"multiplier" json:"multiplier"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	Format  string `yaml:"format" json:"format"`
	File    string `yaml:"file" json:"file"`
	NoColor bool   `yaml:"no_color" json:"no_color"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Airtable: AirtableConfig{
			BaseURL:           "https://api.airtable.com",
			LinkedInFields:    []string{"4. CEO LinkedIn"},
			EventField:        "Event",
			EventFilter:       "S25",
			Top100Field:       "Top 100",
			Top100Filter:      true,
			PageSize:          100,
			RequestsPerSecond: 5,
			Timeout:           30 * time.Second,
		},
		Apify: ApifyConfig{
			BaseURL:       "https://api.apify.com",
			ActorID:       "2SyF0bVxmgGr8IVCZ",
			BatchSize:     50,
			BatchDelay:    5 * time.Second,
			Timeout:       10 * time.Minute,
			TestNumURLs:   10,
			TestBatchSize: 2,
		},
		Completion: CompletionConfig{
			Model:             "claude-3-5-haiku-latest",
			Temperature:       0.1,
			MaxTokens:         4000,
			MaxRetries:        2,
			RequestsPerMinute: 50,
			Timeout:           2 * time.Minute,
		},
		Traits: TraitsConfig{
			MaxProfiles: -1,
			Delay:       time.Second,
			MaxAttempts: 2,
			BackoffBase: time.Second,
		},
		Updater: UpdaterConfig{
			Delay:      500 * time.Millisecond,
			FieldDelay: 500 * time.Millisecond,
		},
		Paths: PathsConfig{
			Prefix:        "S25Top100",
			ExtractionDir: "airtable-extractions",
			ProfilesDir:   "apify-profile-data",
			CleanedDir:    "cleaned-profile-data",
			TraitsDir:     "final-trait-extractions",
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			AllowedOrigins:  []string{"http://localhost:3000"},
			MaxLogs:         1000,
			Workers:         4,
			ShutdownTimeout: 10 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			MaxDelay:    30 * time.Second,
			Multiplier:  2.0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	// Credentials keep the names the services document
	envString("AIRTABLE_API_KEY", &c.Airtable.APIKey)
	envString("ENRICHER_AIRTABLE_API_KEY", &c.Airtable.APIKey)
	envString("AIRTABLE_BASE_ID", &c.Airtable.BaseID)
	envString("AIRTABLE_TABLE_ID", &c.Airtable.TableID)
	envString("APIFY_API_KEY", &c.Apify.Token)
	envString("ENRICHER_APIFY_TOKEN", &c.Apify.Token)
	envString("ANTHROPIC_API_KEY", &c.Completion.APIKey)
	envString("ENRICHER_COMPLETION_API_KEY", &c.Completion.APIKey)

	envString("ENRICHER_MODEL", &c.Completion.Model)
	envString("ENRICHER_PREFIX", &c.Paths.Prefix)
	envInt("ENRICHER_BATCH_SIZE", &c.Apify.BatchSize)
	envInt("ENRICHER_MAX_PROFILES", &c.Traits.MaxProfiles)
	envInt("ENRICHER_PORT", &c.Server.Port)
	envInt("ENRICHER_WORKERS", &c.Server.Workers)

	if testMode := os.Getenv("ENRICHER_TEST_MODE"); testMode != "" {
		c.Apify.TestMode = strings.ToLower(testMode) == "true"
	}
	if origins := os.Getenv("ENRICHER_ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = strings.Split(origins, ",")
	}

	// Logging level
	envString("ENRICHER_LOG_LEVEL", &c.Logging.Level)
	envString("ENRICHER_LOG_FORMAT", &c.Logging.Format)

	return nil
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// envInt keeps dst when the variable is unset or not a number.
func envInt(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var val int
	if _, err := fmt.Sscanf(v, "%d", &val); err == nil {
		*dst = val
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".enricher.yaml",
		".enricher.yml",
		filepath.Join(home, ".config", "enricher", "config.yaml"),
		filepath.Join(home, ".config", "enricher", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks settings that every command depends on. Credentials are
// checked per stage by the Require methods.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Airtable.LinkedInFields) == 0 {
		errs = append(errs, errors.New("at least one LinkedIn field is required"))
	}
	if c.Airtable.PageSize <= 0 || c.Airtable.PageSize > 100 {
		errs = append(errs, errors.New("airtable page size must be between 1 and 100"))
	}
	if c.Airtable.Timeout <= 0 {
		errs = append(errs, errors.New("airtable timeout must be positive"))
	}

	if c.Apify.BatchSize <= 0 {
		errs = append(errs, errors.New("apify batch size must be positive"))
	}
	if c.Apify.BatchDelay < 0 {
		errs = append(errs, errors.New("apify batch delay cannot be negative"))
	}
	if c.Apify.TestMode && c.Apify.TestNumURLs <= 0 {
		errs = append(errs, errors.New("test mode requires a positive number of URLs"))
	}

	if c.Completion.MaxTokens <= 0 {
		errs = append(errs, errors.New("completion max tokens must be positive"))
	}
	if c.Completion.Temperature < 0 || c.Completion.Temperature > 1 {
		errs = append(errs, errors.New("completion temperature must be between 0 and 1"))
	}

	if c.Traits.MaxProfiles == 0 || c.Traits.MaxProfiles < -1 {
		errs = append(errs, errors.New("max profiles must be positive or -1 for all"))
	}
	if c.Traits.MaxAttempts <= 0 {
		errs = append(errs, errors.New("trait extraction attempts must be positive"))
	}
	if c.Traits.Delay < 0 || c.Updater.Delay < 0 || c.Updater.FieldDelay < 0 {
		errs = append(errs, errors.New("delays cannot be negative"))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, errors.New("server port must be between 1 and 65535"))
	}
	if c.Server.MaxLogs <= 0 {
		errs = append(errs, errors.New("max logs must be positive"))
	}
	if c.Server.Workers <= 0 {
		errs = append(errs, errors.New("worker count must be positive"))
	}

	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, errors.New("retry attempts must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}
	if f := strings.ToLower(c.Logging.Format); f != "console" && f != "json" {
		errs = append(errs, errors.New("log format must be console or json"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// RequireAirtable reports a configuration error when Airtable cannot be reached.
func (c *Config) RequireAirtable() error {
	switch {
	case c.Airtable.APIKey == "":
		return errs.Config("AIRTABLE_API_KEY environment variable not set")
	case c.Airtable.BaseID == "":
		return errs.Config("airtable base id is required")
	case c.Airtable.TableID == "":
		return errs.Config("airtable table id is required")
	}
	return nil
}

// RequireApify reports a configuration error when no Apify token is set.
func (c *Config) RequireApify() error {
	if c.Apify.Token == "" {
		return errs.Config("APIFY_API_KEY environment variable not set")
	}
	return nil
}

// RequireCompletion reports a configuration error when no completion key is set.
func (c *Config) RequireCompletion() error {
	if c.Completion.APIKey == "" {
		return errs.Config("ANTHROPIC_API_KEY environment variable not set")
	}
	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Config may hold API keys
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Zero values are ignored so unset flags never override file or env values.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if format, ok := flags["log-format"].(string); ok && format != "" {
		c.Logging.Format = format
	}
	if prefix, ok := flags["prefix"].(string); ok && prefix != "" {
		c.Paths.Prefix = prefix
	}
	if batchSize, ok := flags["batch-size"].(int); ok && batchSize > 0 {
		c.Apify.BatchSize = batchSize
	}
	if testMode, ok := flags["test-mode"].(bool); ok && testMode {
		c.Apify.TestMode = true
	}
	if testURLs, ok := flags["test-urls"].(int); ok && testURLs > 0 {
		c.Apify.TestNumURLs = testURLs
	}
	if maxProfiles, ok := flags["max-profiles"].(int); ok && maxProfiles != 0 {
		c.Traits.MaxProfiles = maxProfiles
	}
	if force, ok := flags["force"].(bool); ok && force {
		c.Traits.ForceReextraction = true
	}
	if model, ok := flags["model"].(string); ok && model != "" {
		c.Completion.Model = model
	}
	if host, ok := flags["host"].(string); ok && host != "" {
		c.Server.Host = host
	}
	if port, ok := flags["port"].(int); ok && port > 0 {
		c.Server.Port = port
	}
	if workers, ok := flags["workers"].(int); ok && workers > 0 {
		c.Server.Workers = workers
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Missing .env files are fine
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".enricher.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
