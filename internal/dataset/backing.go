package dataset

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/2beens/stravadash/internal/config"
	"github.com/2beens/stravadash/internal/storage"
)

const megabyte = 1024 * 1024

// OpenStore returns the blob store and container selected by the config.
// Local mode is a disk store rooted at the local data dir, with no
// container. Remote stores get a read cache when cache_size_mb > 0.
func OpenStore(ctx context.Context, cfg *config.Config, secrets *config.Secrets) (storage.BlobStore, string, error) {
	if cfg.UseLocalStorage {
		log.Debugf("dataset: local storage at %s", cfg.LocalStoragePath)
		store, err := storage.NewDiskStore(cfg.LocalStoragePath)
		if err != nil {
			return nil, "", err
		}
		return store, "", nil
	}

	if err := secrets.RequireStorage(cfg); err != nil {
		return nil, "", err
	}

	var (
		store storage.BlobStore
		err   error
	)
	switch cfg.StorageBackend {
	case config.StorageBackendAzure:
		store, err = storage.NewAzureStore(secrets.BlobConnectionString)
	case config.StorageBackendGDrive:
		var credentials []byte
		credentials, err = os.ReadFile(secrets.GDriveCredentialsFile)
		if err != nil {
			return nil, "", fmt.Errorf("read drive credentials: %w", err)
		}
		store, err = storage.NewDriveStore(ctx, credentials)
	default:
		err = fmt.Errorf("unknown storage backend: %s", cfg.StorageBackend)
	}
	if err != nil {
		return nil, "", err
	}

	log.Debugf("dataset: %s storage, container %s", cfg.StorageBackend, cfg.StorageContainer)
	if cfg.CacheSizeMB > 0 {
		store = storage.NewCachedStore(store, cfg.CacheSizeMB*megabyte, cfg.CacheTTL())
	}
	return store, cfg.StorageContainer, nil
}

// NewReaderFromConfig opens the configured backing and returns a reader on it.
func NewReaderFromConfig(ctx context.Context, cfg *config.Config, secrets *config.Secrets) (*Reader, error) {
	store, container, err := OpenStore(ctx, cfg, secrets)
	if err != nil {
		return nil, err
	}
	return NewReader(store, container), nil
}
