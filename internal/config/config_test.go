package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToml = `
[development]
port = 9000
use_local_storage = true
local_storage_path = "testdata"

[production]
port = 8080
storage_backend = "gdrive"
storage_container = "runs"
per_page = 50
login_enabled = true
redis_host = "redis"
workflow_poll_interval_seconds = 5
`

func TestParse_Environments(t *testing.T) {
	dev, err := Parse("dev", testToml)
	require.NoError(t, err)
	assert.Equal(t, 9000, dev.Port)
	assert.True(t, dev.UseLocalStorage)
	assert.Equal(t, "testdata", dev.LocalStoragePath)
	// defaults
	assert.Equal(t, 200, dev.PerPage)
	assert.Equal(t, StorageBackendAzure, dev.StorageBackend)
	assert.Equal(t, "strava", dev.StorageContainer)
	assert.Equal(t, "https://www.strava.com/api/v3", dev.StravaBaseURL)
	assert.Equal(t, 30*time.Second, dev.HTTPTimeout())

	prod, err := Parse("production", testToml)
	require.NoError(t, err)
	assert.Equal(t, 8080, prod.Port)
	assert.Equal(t, StorageBackendGDrive, prod.StorageBackend)
	assert.Equal(t, "runs", prod.StorageContainer)
	assert.Equal(t, 50, prod.PerPage)
	assert.Equal(t, 5*time.Second, prod.WorkflowPollInterval())
	assert.Equal(t, 15*time.Minute, prod.WorkflowTimeout())
}

func TestParse_UnknownEnv(t *testing.T) {
	_, err := Parse("staging", testToml)
	assert.EqualError(t, err, "unknown env: staging")

	_, err = Parse("prod", "[development]\nport = 1\n")
	assert.Error(t, err)
}

func TestValidate_CombinesErrors(t *testing.T) {
	cfg, err := Parse("dev", "[development]\nport = 1\n")
	require.NoError(t, err)

	cfg.PerPage = 500
	cfg.StorageBackend = "s3"
	cfg.LoginEnabled = true
	cfg.RedisHost = ""

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "per_page must be in [1, 200], got 500")
	assert.Contains(t, err.Error(), "unknown storage backend: s3")
	assert.Contains(t, err.Error(), "login gate needs redis_host")
}

func TestParse_NonPositiveWorkflowDurations(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "negative poll interval",
			content: "[development]\nworkflow_poll_interval_seconds = -5\n",
			wantErr: "workflow_poll_interval_seconds must be positive, got -5",
		},
		{
			name:    "negative timeout",
			content: "[development]\nworkflow_timeout_seconds = -1\n",
			wantErr: "workflow_timeout_seconds must be positive, got -1",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Parse("dev", tc.content)
			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}

	cfg, err := Parse("dev", "[development]\nport = 1\n")
	require.NoError(t, err)
	cfg.WorkflowPollIntervalSeconds = 0
	assert.ErrorContains(t, cfg.Validate(), "workflow_poll_interval_seconds must be positive, got 0")
}

func TestLoad_RepoConfig(t *testing.T) {
	cfg, err := Load("development", filepath.Join("..", "..", "config.toml"))
	require.NoError(t, err)
	assert.True(t, cfg.UseLocalStorage)
	assert.Equal(t, 200, cfg.PerPage)
	assert.Contains(t, cfg.AllowedOrigins, "http://localhost:8501")

	_, err = Load("development", "/nonexistent/config.toml")
	assert.Error(t, err)
}

func TestLoadSecrets(t *testing.T) {
	secrets, err := loadSecrets(context.Background(), envconfig.MapLookuper(map[string]string{
		"CLIENT_ID":              "12345",
		"CLIENT_SECRET":          "shh",
		"REFRESH_TOKEN":          "refresh-me",
		"BLOB_CONNECTION_STRING": "UseDevelopmentStorage=true",
	}))
	require.NoError(t, err)
	assert.Equal(t, "12345", secrets.ClientID)
	assert.Equal(t, "refresh-me", secrets.RefreshToken)
	assert.NoError(t, secrets.RequireStrava())

	cfg := &Config{StorageBackend: StorageBackendAzure}
	assert.NoError(t, secrets.RequireStorage(cfg))
	cfg.StorageBackend = StorageBackendGDrive
	assert.EqualError(t, secrets.RequireStorage(cfg), "GDRIVE_CREDENTIALS_FILE not set")
	cfg.UseLocalStorage = true
	assert.NoError(t, secrets.RequireStorage(cfg))

	cfg.LoginEnabled = true
	err = secrets.RequireLogin(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APP_USERNAME not set")
	assert.Contains(t, err.Error(), "APP_PASSWORD_HASH not set")
}

func TestSecrets_RequireStrava_Missing(t *testing.T) {
	secrets, err := loadSecrets(context.Background(), envconfig.MapLookuper(map[string]string{}))
	require.NoError(t, err)
	err = secrets.RequireStrava()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CLIENT_ID not set")
	assert.Contains(t, err.Error(), "CLIENT_SECRET not set")
}

func TestLoadDotEnv(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))

	envPath := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("STRAVADASH_TEST_VAR=from-dotenv\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("STRAVADASH_TEST_VAR") })

	require.NoError(t, LoadDotEnv(envPath))
	assert.Equal(t, "from-dotenv", os.Getenv("STRAVADASH_TEST_VAR"))
}
