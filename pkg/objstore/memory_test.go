package objstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragmcp/ragmcp/pkg/config"
)

func TestMemoryStorePutGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Put(ctx, "kb-data/tools.jsonl", []byte("hello")))

	data, err := store.Get(ctx, "kb-data/tools.jsonl")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	_, err = store.Get(ctx, "missing")
	require.Error(t, err)
}

func TestMemoryStoreListByPrefix(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Put(ctx, "kb-data/a.jsonl", []byte("a")))
	require.NoError(t, store.Put(ctx, "kb-data/b.jsonl", []byte("b")))
	require.NoError(t, store.Put(ctx, "other/c.jsonl", []byte("c")))

	keys, err := store.List(ctx, "kb-data/")
	require.NoError(t, err)
	assert.Equal(t, []string{"kb-data/a.jsonl", "kb-data/b.jsonl"}, keys)

	keys, err = store.List(ctx, "nope/")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestMemoryStoreDeleteBatch(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Put(ctx, "a", []byte("a")))
	require.NoError(t, store.Put(ctx, "b", []byte("b")))

	require.NoError(t, store.DeleteBatch(ctx, []string{"a", "b", "never-existed"}))

	keys, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestMemoryStoreWaiters(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.Error(t, store.WaitExists(ctx, "k"))
	require.NoError(t, store.WaitAbsent(ctx, "k"))

	require.NoError(t, store.Put(ctx, "k", []byte("v")))
	require.NoError(t, store.WaitExists(ctx, "k"))
	require.Error(t, store.WaitAbsent(ctx, "k"))
}

func TestMemoryStoreCopiesData(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	buf := []byte("original")
	require.NoError(t, store.Put(ctx, "k", buf))
	buf[0] = 'X'

	data, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
}

func TestNewSelectsBackend(t *testing.T) {
	store, err := New(config.ObjectStoreConfig{Backend: config.ObjectStoreMemory})
	require.NoError(t, err)
	_, ok := store.(*MemoryStore)
	assert.True(t, ok)

	_, err = New(config.ObjectStoreConfig{Backend: "carrier-pigeon"})
	require.Error(t, err)
}
