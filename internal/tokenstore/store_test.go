package tokenstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/2beens/stravadash/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreAnyFunction(
			"github.com/go-redis/redis/v8/internal/pool.(*ConnPool).reaper",
		),
	)
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	rdb, mock := redismock.NewClientMock()
	defer rdb.Close()

	store := NewRedisStore(rdb, "")

	mock.ExpectGet(DefaultRedisKey).RedisNil()
	token, err := store.Load(ctx)
	assert.ErrorIs(t, err, ErrNoToken)
	assert.Empty(t, token)

	mock.ExpectSet(DefaultRedisKey, "rotated-1", 0).SetVal("OK")
	require.NoError(t, store.Save(ctx, "rotated-1"))

	mock.ExpectGet(DefaultRedisKey).SetVal("rotated-1")
	token, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "rotated-1", token)

	mock.ExpectSet(DefaultRedisKey, "rotated-2", 0).SetErr(errors.New("READONLY"))
	assert.EqualError(t, store.Save(ctx, "rotated-2"), "redis set refresh token: READONLY")

	mock.ExpectGet(DefaultRedisKey).SetErr(errors.New("connection refused"))
	_, err = store.Load(ctx)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoToken)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "secrets", "refresh_token")
	store := NewFileStore(path)

	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, ErrNoToken)

	require.NoError(t, store.Save(ctx, "rotated-1"))
	require.NoError(t, store.Save(ctx, "rotated-2"))

	token, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "rotated-2", token)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o600))
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestOpen(t *testing.T) {
	t.Run("nothing configured", func(t *testing.T) {
		store, closeFn := Open(&config.Config{}, "")
		assert.Nil(t, store)
		assert.NoError(t, closeFn())
	})

	t.Run("token file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "refresh_token")
		store, closeFn := Open(&config.Config{TokenFilePath: path}, "")
		defer func() {
			assert.NoError(t, closeFn())
		}()
		require.IsType(t, &FileStore{}, store)

		require.NoError(t, store.Save(context.Background(), "rt-1"))
		got, err := store.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "rt-1", got)
	})

	t.Run("file wins over redis", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "refresh_token")
		store, closeFn := Open(&config.Config{
			RedisHost:     "localhost",
			RedisPort:     "6379",
			TokenFilePath: path,
		}, "pass")
		assert.IsType(t, &FileStore{}, store)
		assert.NoError(t, closeFn())
	})

	t.Run("redis", func(t *testing.T) {
		store, closeFn := Open(&config.Config{
			RedisHost: "localhost",
			RedisPort: "6379",
		}, "pass")
		assert.IsType(t, &RedisStore{}, store)
		assert.NoError(t, closeFn())
	})

	t.Run("repo development config", func(t *testing.T) {
		cfg, err := config.Load("development", filepath.Join("..", "..", "config.toml"))
		require.NoError(t, err)
		assert.Empty(t, cfg.RedisHost)

		store, closeFn := Open(cfg, "")
		defer func() {
			assert.NoError(t, closeFn())
		}()
		assert.IsType(t, &FileStore{}, store)
	})
}
