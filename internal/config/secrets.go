package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	"go.uber.org/multierr"

	"github.com/2beens/stravadash/pkg"
)

// Secrets are never kept in the TOML file.
type Secrets struct {
	ClientID              string `env:"CLIENT_ID"`
	ClientSecret          string `env:"CLIENT_SECRET"`
	RefreshToken          string `env:"REFRESH_TOKEN"`
	BlobConnectionString  string `env:"BLOB_CONNECTION_STRING"`
	GDriveCredentialsFile string `env:"GDRIVE_CREDENTIALS_FILE"`
	AppUsername           string `env:"APP_USERNAME"`
	AppPasswordHash       string `env:"APP_PASSWORD_HASH"`
	RedisPassword         string `env:"REDIS_PASS"`
	GithubToken           string `env:"GITHUB_TOKEN"`
	SentryDSN             string `env:"SENTRY_DSN"`
}

// LoadDotEnv seeds the process environment from a .env file, if one exists.
// Variables already set in the environment win.
func LoadDotEnv(path string) error {
	exists, err := pkg.PathExists(path, false)
	if err != nil {
		return fmt.Errorf("check dotenv file: %w", err)
	}
	if !exists {
		return nil
	}
	return godotenv.Load(path)
}

func LoadSecrets(ctx context.Context) (*Secrets, error) {
	return loadSecrets(ctx, envconfig.OsLookuper())
}

func loadSecrets(ctx context.Context, lookuper envconfig.Lookuper) (*Secrets, error) {
	var s Secrets
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &s,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("process env secrets: %w", err)
	}
	return &s, nil
}

// RequireStrava checks the secrets needed to talk to the Strava API.
func (s *Secrets) RequireStrava() error {
	var err error
	if s.ClientID == "" {
		err = multierr.Append(err, errors.New("CLIENT_ID not set"))
	}
	if s.ClientSecret == "" {
		err = multierr.Append(err, errors.New("CLIENT_SECRET not set"))
	}
	return err
}

// RequireStorage checks the secrets needed by the configured remote backend.
func (s *Secrets) RequireStorage(cfg *Config) error {
	if cfg.UseLocalStorage {
		return nil
	}
	switch cfg.StorageBackend {
	case StorageBackendAzure:
		if s.BlobConnectionString == "" {
			return errors.New("BLOB_CONNECTION_STRING not set")
		}
	case StorageBackendGDrive:
		if s.GDriveCredentialsFile == "" {
			return errors.New("GDRIVE_CREDENTIALS_FILE not set")
		}
	}
	return nil
}

// RequireLogin checks the admin credentials used by the login gate.
func (s *Secrets) RequireLogin(cfg *Config) error {
	if !cfg.LoginEnabled {
		return nil
	}
	var err error
	if s.AppUsername == "" {
		err = multierr.Append(err, errors.New("APP_USERNAME not set"))
	}
	if s.AppPasswordHash == "" {
		err = multierr.Append(err, errors.New("APP_PASSWORD_HASH not set"))
	}
	return err
}
