package storage

import (
	"context"
	"errors"
	"time"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
)

const minCacheSize = 512 * 1024

var _ BlobStore = (*CachedStore)(nil)

// CachedStore is a read-through cache in front of a (remote) BlobStore.
// A Put invalidates the cached entry once the inner write succeeded.
type CachedStore struct {
	inner BlobStore
	cache *freecache.Cache
	ttl   time.Duration
}

func NewCachedStore(inner BlobStore, sizeBytes int, ttl time.Duration) *CachedStore {
	if sizeBytes < minCacheSize {
		sizeBytes = minCacheSize
	}
	return &CachedStore{
		inner: inner,
		cache: freecache.NewCache(sizeBytes),
		ttl:   ttl,
	}
}

func cacheKey(container, key string) []byte {
	return []byte(container + "::" + key)
}

func (cs *CachedStore) Put(ctx context.Context, container, key string, data []byte, contentType string) error {
	if err := cs.inner.Put(ctx, container, key, data, contentType); err != nil {
		return err
	}
	cs.cache.Del(cacheKey(container, key))
	return nil
}

func (cs *CachedStore) Get(ctx context.Context, container, key string) ([]byte, error) {
	ck := cacheKey(container, key)
	if data, err := cs.cache.Get(ck); err == nil {
		log.Tracef("cached store: hit %s/%s", container, key)
		return data, nil
	} else if !errors.Is(err, freecache.ErrNotFound) {
		log.Warnf("cached store: get %s/%s: %s", container, key, err)
	}

	data, err := cs.inner.Get(ctx, container, key)
	if err != nil {
		return nil, err
	}

	if err := cs.cache.Set(ck, data, int(cs.ttl.Seconds())); err != nil {
		// entries above 1/1024 of the cache size are rejected; serve uncached
		log.Debugf("cached store: set %s/%s: %s", container, key, err)
	}
	return data, nil
}
