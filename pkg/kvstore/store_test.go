package kvstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/shopfront/storefront/pkg/db/models"
	pkgerrors "github.com/shopfront/storefront/pkg/errors"
	"github.com/shopfront/storefront/pkg/redis"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Get(ctx, "shopfront_cart")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, "shopfront_cart", []byte(`{"products":[]}`)))
	got, err := store.Get(ctx, "shopfront_cart")
	require.NoError(t, err)
	require.JSONEq(t, `{"products":[]}`, string(got))

	require.NoError(t, store.Set(ctx, "shopfront_cart", []byte(`{"products":[{"id":1}]}`)))
	got, err = store.Get(ctx, "shopfront_cart")
	require.NoError(t, err)
	require.JSONEq(t, `{"products":[{"id":1}]}`, string(got))

	require.NoError(t, store.Delete(ctx, "shopfront_cart"))
	_, err = store.Get(ctx, "shopfront_cart")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Delete(ctx, "missing"))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	store := NewMemory()
	value := []byte("abc")
	require.NoError(t, store.Set(context.Background(), "k", value))
	value[0] = 'z'
	got, err := store.Get(context.Background(), "k")
	require.NoError(t, err)
	require.Equal(t, "abc", string(got))
}

func TestSQLStore(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "kv.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.KVRecord{}))

	store := NewSQL(conn)
	store.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	exerciseStore(t, store)
}

func TestSQLStoreWrapsStorageErrors(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "bare.db")), &gorm.Config{})
	require.NoError(t, err)

	_, err = NewSQL(conn).Get(context.Background(), "k")
	require.Error(t, err)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStorage))
}

func TestRedisStore(t *testing.T) {
	fake := newFakeRedis()
	exerciseStore(t, NewRedis(fake))

	require.NoError(t, NewRedis(fake).Set(context.Background(), "shopfront_orders", []byte("[]")))
	_, ok := fake.data["shopfront:state:shopfront_orders"]
	require.True(t, ok, "expected namespaced key")
}

func TestRedisStoreWrapsErrors(t *testing.T) {
	fake := newFakeRedis()
	fake.err = errors.New("connection refused")
	_, err := NewRedis(fake).Get(context.Background(), "k")
	require.Error(t, err)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStorage))
}

type fakeRedis struct {
	data map[string]string
	err  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string)}
}

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	value, ok := f.data[key]
	if !ok {
		return "", redis.ErrNil
	}
	return value, nil
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, _ time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.data[key] = fmt.Sprint(value)
	return nil
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	if f.err != nil {
		return f.err
	}
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeRedis) StateKey(name string) string {
	return "shopfront:state:" + name
}
