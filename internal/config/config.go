package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/multierr"
)

const (
	StorageBackendAzure  = "azure"
	StorageBackendGDrive = "gdrive"
)

type Config struct {
	Environment string `toml:"environment"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	// browser origins allowed by CORS
	AllowedOrigins []string `toml:"allowed_origins"`

	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`

	// metrics
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`

	// strava api
	StravaBaseURL      string `toml:"strava_base_url"`
	StravaAuthURL      string `toml:"strava_auth_url"`
	StravaTokenURL     string `toml:"strava_token_url"`
	StravaRedirectURL  string `toml:"strava_redirect_url"`
	PerPage            int    `toml:"per_page"`
	HTTPTimeoutSeconds int    `toml:"http_timeout_seconds"`
	MaxRetries         uint64 `toml:"max_retries"`

	// storage
	UseLocalStorage  bool   `toml:"use_local_storage"`
	LocalStoragePath string `toml:"local_storage_path"`
	StorageBackend   string `toml:"storage_backend"`
	StorageContainer string `toml:"storage_container"`
	CacheSizeMB      int    `toml:"cache_size_mb"`
	CacheTTLSeconds  int    `toml:"cache_ttl_seconds"`

	// refresh token persistence; empty redis host means file store
	TokenFilePath string `toml:"token_file_path"`

	// login gate
	LoginEnabled                bool   `toml:"login_enabled"`
	RedisHost                   string `toml:"redis_host"`
	RedisPort                   string `toml:"redis_port"`
	LoginRateLimitAllowedPerMin int    `toml:"login_rate_limit_allowed_per_min"`

	// update job
	UpdateCron string `toml:"update_cron"`

	// github actions workflow running the update job
	WorkflowRepo                string `toml:"workflow_repo"`
	WorkflowFile                string `toml:"workflow_file"`
	WorkflowRef                 string `toml:"workflow_ref"`
	WorkflowPollIntervalSeconds int    `toml:"workflow_poll_interval_seconds"`
	WorkflowTimeoutSeconds      int    `toml:"workflow_timeout_seconds"`
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	var cfg *Config
	switch strings.ToLower(env) {
	case "dev", "development":
		cfg = t.Development
	case "prod", "production":
		cfg = t.Production
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
	if cfg == nil {
		return nil, fmt.Errorf("env [%s] missing in config", env)
	}
	return cfg, nil
}

// Load reads the TOML file at path and returns the config for env, with
// defaults applied and validated.
func Load(env, path string) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}
	return fromToml(&t, env)
}

// Parse is Load for an in-memory TOML document.
func Parse(env, content string) (*Config, error) {
	var t Toml
	if _, err := toml.Decode(content, &t); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return fromToml(&t, env)
}

func fromToml(t *Toml, env string) (*Config, error) {
	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.StravaBaseURL == "" {
		c.StravaBaseURL = "https://www.strava.com/api/v3"
	}
	if c.StravaAuthURL == "" {
		c.StravaAuthURL = "https://www.strava.com/oauth/authorize"
	}
	if c.StravaTokenURL == "" {
		c.StravaTokenURL = "https://www.strava.com/oauth/token"
	}
	if c.StravaRedirectURL == "" {
		c.StravaRedirectURL = "http://localhost/exchange_token"
	}
	if c.PerPage == 0 {
		c.PerPage = 200
	}
	if c.HTTPTimeoutSeconds == 0 {
		c.HTTPTimeoutSeconds = 30
	}
	if c.LocalStoragePath == "" {
		c.LocalStoragePath = "data"
	}
	if c.StorageBackend == "" {
		c.StorageBackend = StorageBackendAzure
	}
	if c.StorageContainer == "" {
		c.StorageContainer = "strava"
	}
	if c.CacheTTLSeconds == 0 {
		c.CacheTTLSeconds = 300
	}
	if c.LoginRateLimitAllowedPerMin == 0 {
		c.LoginRateLimitAllowedPerMin = 15
	}
	if c.WorkflowRef == "" {
		c.WorkflowRef = "main"
	}
	if c.WorkflowPollIntervalSeconds == 0 {
		c.WorkflowPollIntervalSeconds = 10
	}
	if c.WorkflowTimeoutSeconds == 0 {
		c.WorkflowTimeoutSeconds = 900
	}
}

func (c *Config) Validate() error {
	var err error
	if c.Port < 0 || c.Port > 65535 {
		err = multierr.Append(err, fmt.Errorf("invalid port: %d", c.Port))
	}
	if c.PerPage < 1 || c.PerPage > 200 {
		err = multierr.Append(err, fmt.Errorf("per_page must be in [1, 200], got %d", c.PerPage))
	}
	if c.HTTPTimeoutSeconds < 0 {
		err = multierr.Append(err, errors.New("http_timeout_seconds must not be negative"))
	}
	if c.StorageBackend != StorageBackendAzure && c.StorageBackend != StorageBackendGDrive {
		err = multierr.Append(err, fmt.Errorf("unknown storage backend: %s", c.StorageBackend))
	}
	if c.CacheSizeMB < 0 {
		err = multierr.Append(err, errors.New("cache_size_mb must not be negative"))
	}
	if c.WorkflowPollIntervalSeconds <= 0 {
		err = multierr.Append(err, fmt.Errorf("workflow_poll_interval_seconds must be positive, got %d", c.WorkflowPollIntervalSeconds))
	}
	if c.WorkflowTimeoutSeconds <= 0 {
		err = multierr.Append(err, fmt.Errorf("workflow_timeout_seconds must be positive, got %d", c.WorkflowTimeoutSeconds))
	}
	if c.LoginEnabled && c.RedisHost == "" {
		err = multierr.Append(err, errors.New("login gate needs redis_host"))
	}
	return err
}

func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

func (c *Config) WorkflowPollInterval() time.Duration {
	return time.Duration(c.WorkflowPollIntervalSeconds) * time.Second
}

func (c *Config) WorkflowTimeout() time.Duration {
	return time.Duration(c.WorkflowTimeoutSeconds) * time.Second
}
