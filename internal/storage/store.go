package storage

import (
	"context"
	"errors"
	"fmt"
)

//go:generate mockgen -source=store.go -destination=store_mock.go -package=storage

var (
	ErrPersistenceFailure = errors.New("persistence failure")
	ErrNotFound           = errors.New("blob not found")
	ErrInvalidKey         = errors.New("invalid blob key")
)

// BlobStore reads and writes whole blobs addressed by (container, key).
// Put overwrites any existing blob under the same key.
type BlobStore interface {
	Put(ctx context.Context, container, key string, data []byte, contentType string) error
	Get(ctx context.Context, container, key string) ([]byte, error)
}

// PersistenceError wraps every backend failure, so callers can match on
// ErrPersistenceFailure regardless of the backend in use.
type PersistenceError struct {
	Op        string
	Container string
	Key       string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s/%s: %s", e.Op, e.Container, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistenceFailure
}

func newPersistenceError(op, container, key string, err error) error {
	return &PersistenceError{Op: op, Container: container, Key: key, Err: err}
}
