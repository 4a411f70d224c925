package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	errs "enricher/pkg/errors"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, []string{"4. CEO LinkedIn"}, cfg.Airtable.LinkedInFields)
	assert.Equal(t, "S25", cfg.Airtable.EventFilter)
	assert.True(t, cfg.Airtable.Top100Filter)
	assert.Equal(t, 50, cfg.Apify.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Apify.BatchDelay)
	assert.Equal(t, "2SyF0bVxmgGr8IVCZ", cfg.Apify.ActorID)
	assert.Equal(t, -1, cfg.Traits.MaxProfiles)
	assert.Equal(t, 500*time.Millisecond, cfg.Updater.Delay)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 1000, cfg.Server.MaxLogs)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)

	require.NoError(t, cfg.Validate(), "defaults must validate without credentials")
}

func TestPaths(t *testing.T) {
	p := DefaultConfig().Paths

	assert.Equal(t, filepath.Join("airtable-extractions", "S25Top100airtable_url_mapping.json"), p.URLMappingFile())
	assert.Equal(t, filepath.Join("airtable-extractions", "S25Top100linkedin_urls_for_apify.json"), p.URLsFile())
	assert.Equal(t, filepath.Join("airtable-extractions", "S25Top100airtable_extraction_results.json"), p.ExtractionResultsFile())
	assert.Equal(t, filepath.Join("apify-profile-data", "S25Top100linkedin_profile_data.json"), p.ProfilesFile())
	assert.Equal(t, filepath.Join("apify-profile-data", "test_linkedin_profiles_3_urls.json"), p.TestProfilesFile(3))
	assert.Equal(t, filepath.Join("cleaned-profile-data", "S25Top100cleaned_linkedin_data.json"), p.CleanedFile())
	assert.Equal(t, filepath.Join("final-trait-extractions", "S25Top100_comprehensive_traits.json"), p.TraitsFile())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("AIRTABLE_API_KEY", "pat-123")
	t.Setenv("AIRTABLE_BASE_ID", "appBase")
	t.Setenv("AIRTABLE_TABLE_ID", "tblTable")
	t.Setenv("APIFY_API_KEY", "apify-123")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("ENRICHER_BATCH_SIZE", "25")
	t.Setenv("ENRICHER_MAX_PROFILES", "30")
	t.Setenv("ENRICHER_TEST_MODE", "TRUE")
	t.Setenv("ENRICHER_PORT", "not-a-number")
	t.Setenv("ENRICHER_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "pat-123", cfg.Airtable.APIKey)
	assert.Equal(t, "appBase", cfg.Airtable.BaseID)
	assert.Equal(t, "tblTable", cfg.Airtable.TableID)
	assert.Equal(t, "apify-123", cfg.Apify.Token)
	assert.Equal(t, "sk-ant", cfg.Completion.APIKey)
	assert.Equal(t, 25, cfg.Apify.BatchSize)
	assert.Equal(t, 30, cfg.Traits.MaxProfiles)
	assert.True(t, cfg.Apify.TestMode)
	assert.Equal(t, 8080, cfg.Server.Port, "unparseable value keeps the default")
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromFile(t *testing.T) {
	t.Run("valid yaml file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := `
airtable:
  base_id: appFile
  linkedin_fields: ["CEO LinkedIn", "Founder LinkedIn"]
  event_filter: W26
apify:
  batch_size: 10
  batch_delay: 2s
traits:
  max_profiles: 30
  delay_between_calls: 250ms
server:
  port: 9090
logging:
  level: warn
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0600))

		cfg := DefaultConfig()
		require.NoError(t, cfg.LoadFromFile(path))

		assert.Equal(t, "appFile", cfg.Airtable.BaseID)
		assert.Equal(t, []string{"CEO LinkedIn", "Founder LinkedIn"}, cfg.Airtable.LinkedInFields)
		assert.Equal(t, "W26", cfg.Airtable.EventFilter)
		assert.Equal(t, 10, cfg.Apify.BatchSize)
		assert.Equal(t, 2*time.Second, cfg.Apify.BatchDelay)
		assert.Equal(t, 30, cfg.Traits.MaxProfiles)
		assert.Equal(t, 250*time.Millisecond, cfg.Traits.Delay)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "warn", cfg.Logging.Level)
		// untouched sections keep defaults
		assert.Equal(t, "2SyF0bVxmgGr8IVCZ", cfg.Apify.ActorID)
	})

	t.Run("missing file", func(t *testing.T) {
		cfg := DefaultConfig()
		assert.Error(t, cfg.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")))
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("apify: [unclosed"), 0600))
		cfg := DefaultConfig()
		assert.Error(t, cfg.LoadFromFile(path))
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero batch size", func(c *Config) { c.Apify.BatchSize = 0 }, "apify batch size must be positive"},
		{"max profiles zero", func(c *Config) { c.Traits.MaxProfiles = 0 }, "max profiles must be positive or -1"},
		{"negative delay", func(c *Config) { c.Updater.Delay = -time.Second }, "delays cannot be negative"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server port"},
		{"no fields", func(c *Config) { c.Airtable.LinkedInFields = nil }, "at least one LinkedIn field"},
		{"page size", func(c *Config) { c.Airtable.PageSize = 500 }, "page size"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "invalid log level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "log format"},
		{"temperature", func(c *Config) { c.Completion.Temperature = 2 }, "temperature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("errors are aggregated", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Apify.BatchSize = 0
		cfg.Server.MaxLogs = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "batch size")
		assert.Contains(t, err.Error(), "max logs")
	})
}

func TestRequireCredentials(t *testing.T) {
	cfg := DefaultConfig()

	err := cfg.RequireAirtable()
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeConfig))
	assert.Contains(t, err.Error(), "AIRTABLE_API_KEY")

	cfg.Airtable.APIKey = "pat"
	assert.ErrorContains(t, cfg.RequireAirtable(), "base id")
	cfg.Airtable.BaseID = "app"
	assert.ErrorContains(t, cfg.RequireAirtable(), "table id")
	cfg.Airtable.TableID = "tbl"
	assert.NoError(t, cfg.RequireAirtable())

	assert.True(t, errs.Is(cfg.RequireApify(), errs.ErrorTypeConfig))
	cfg.Apify.Token = "tok"
	assert.NoError(t, cfg.RequireApify())

	assert.True(t, errs.Is(cfg.RequireCompletion(), errs.ErrorTypeConfig))
	cfg.Completion.APIKey = "key"
	assert.NoError(t, cfg.RequireCompletion())
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"log-level":    "debug",
		"prefix":       "W26",
		"batch-size":   5,
		"test-mode":    true,
		"test-urls":    3,
		"max-profiles": 12,
		"force":        true,
		"port":         9000,
		"workers":      0,
	})

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "W26", cfg.Paths.Prefix)
	assert.Equal(t, 5, cfg.Apify.BatchSize)
	assert.True(t, cfg.Apify.TestMode)
	assert.Equal(t, 3, cfg.Apify.TestNumURLs)
	assert.Equal(t, 12, cfg.Traits.MaxProfiles)
	assert.True(t, cfg.Traits.ForceReextraction)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Server.Workers, "zero flag values are ignored")
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	original := DefaultConfig()
	original.Airtable.BaseID = "appSaved"
	original.Apify.BatchDelay = 3 * time.Second
	require.NoError(t, original.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	cfg, err := Load(path, map[string]interface{}{"batch-size": 7})
	require.NoError(t, err)
	assert.Equal(t, "appSaved", cfg.Airtable.BaseID)
	assert.Equal(t, 3*time.Second, cfg.Apify.BatchDelay)
	assert.Equal(t, 7, cfg.Apify.BatchSize, "flags override file values")
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: -1\n"), 0600))

	_, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
}

func TestDurationRoundTrip(t *testing.T) {
	original := DefaultConfig()
	data, err := yaml.Marshal(original)
	require.NoError(t, err)

	var loaded Config
	require.NoError(t, yaml.Unmarshal(data, &loaded))
	assert.Equal(t, original.Apify.BatchDelay, loaded.Apify.BatchDelay)
	assert.Equal(t, original.Server.ShutdownTimeout, loaded.Server.ShutdownTimeout)
}
