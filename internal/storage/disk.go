package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/stravadash/internal/telemetry/tracing"
)

var _ BlobStore = (*DiskStore)(nil)

// DiskStore keeps blobs as files under rootPath; a container is a
// sub-directory, the empty container is the root itself.
type DiskStore struct {
	rootPath string
}

func NewDiskStore(rootPath string) (*DiskStore, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root %s: %w", rootPath, err)
	}
	return &DiskStore{rootPath: rootPath}, nil
}

func (ds *DiskStore) RootPath() string {
	return ds.rootPath
}

func (ds *DiskStore) path(container, key string) (string, error) {
	if key == "" || filepath.IsAbs(key) {
		return "", ErrInvalidKey
	}
	rel := filepath.Clean(filepath.Join(container, key))
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrInvalidKey
	}
	return filepath.Join(ds.rootPath, rel), nil
}

// Put writes data to a temp file next to the target and renames it into
// place, so readers never see a partially written blob.
func (ds *DiskStore) Put(ctx context.Context, container, key string, data []byte, _ string) (err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "diskStore.put")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(
		attribute.String("blob.key", key),
		attribute.Int("blob.size", len(data)),
	)

	target, err := ds.path(container, key)
	if err != nil {
		return newPersistenceError("put", container, key, err)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return newPersistenceError("put", container, key, err)
	}

	tmp := target + ".tmp-" + uuid.NewString()
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return newPersistenceError("put", container, key, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		if rmErr := os.Remove(tmp); rmErr != nil {
			log.Warnf("disk store: remove temp file %s: %s", tmp, rmErr)
		}
		return newPersistenceError("put", container, key, err)
	}

	log.Tracef("disk store: wrote %s (%d bytes)", target, len(data))
	return nil
}

func (ds *DiskStore) Get(ctx context.Context, container, key string) (_ []byte, err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "diskStore.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("blob.key", key))

	target, err := ds.path(container, key)
	if err != nil {
		return nil, newPersistenceError("get", container, key, err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, newPersistenceError("get", container, key, ErrNotFound)
		}
		return nil, newPersistenceError("get", container, key, err)
	}
	return data, nil
}
