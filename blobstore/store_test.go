package blobstore

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]BlobStore {
	t.Helper()
	return map[string]BlobStore{
		"memory": NewMemoryStore(),
		"local":  NewLocalStore(t.TempDir()),
	}
}

func TestStore_PutOpen(t *testing.T) {
	ctx := context.Background()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			data := []byte("snapshot payload")
			require.NoError(t, store.Put(ctx, "idx/shard.rskv", data))

			blob, err := store.Open(ctx, "idx/shard.rskv")
			require.NoError(t, err)
			defer blob.Close()

			assert.Equal(t, int64(len(data)), blob.Size())

			buf := make([]byte, 8)
			n, err := blob.ReadAt(ctx, buf, 9)
			assert.Equal(t, 7, n)
			assert.ErrorIs(t, err, io.EOF)
			assert.Equal(t, "payload", string(buf[:n]))

			rc, err := blob.ReadRange(ctx, 0, 8)
			require.NoError(t, err)
			got, err := io.ReadAll(rc)
			require.NoError(t, rc.Close())
			require.NoError(t, err)
			assert.Equal(t, "snapshot", string(got))

			all, err := ReadAll(ctx, blob)
			require.NoError(t, err)
			assert.Equal(t, data, all)
		})
	}
}

func TestStore_OpenMissing(t *testing.T) {
	ctx := context.Background()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Open(ctx, "missing")
			assert.True(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestStore_CreateVisibleAfterClose(t *testing.T) {
	ctx := context.Background()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			w, err := store.Create(ctx, "a.rskv")
			require.NoError(t, err)

			_, err = w.Write([]byte("part1-"))
			require.NoError(t, err)

			_, err = store.Open(ctx, "a.rskv")
			assert.ErrorIs(t, err, ErrNotFound)

			_, err = w.Write([]byte("part2"))
			require.NoError(t, err)
			require.NoError(t, w.Sync())
			require.NoError(t, w.Close())
			assert.Error(t, w.Close())

			blob, err := store.Open(ctx, "a.rskv")
			require.NoError(t, err)
			defer blob.Close()

			all, err := ReadAll(ctx, blob)
			require.NoError(t, err)
			assert.Equal(t, "part1-part2", string(all))
		})
	}
}

func TestStore_ListDelete(t *testing.T) {
	ctx := context.Background()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			names, err := store.List(ctx, "")
			require.NoError(t, err)
			assert.Empty(t, names)

			for _, n := range []string{"b/2", "a/1", "b/1", "c"} {
				require.NoError(t, store.Put(ctx, n, []byte(n)))
			}

			names, err = store.List(ctx, "")
			require.NoError(t, err)
			assert.Equal(t, []string{"a/1", "b/1", "b/2", "c"}, names)

			names, err = store.List(ctx, "b/")
			require.NoError(t, err)
			assert.Equal(t, []string{"b/1", "b/2"}, names)

			require.NoError(t, store.Delete(ctx, "b/1"))
			require.NoError(t, store.Delete(ctx, "b/1"))

			names, err = store.List(ctx, "b")
			require.NoError(t, err)
			assert.Equal(t, []string{"b/2"}, names)
		})
	}
}

func TestStore_EmptyBlob(t *testing.T) {
	ctx := context.Background()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Put(ctx, "empty", nil))

			blob, err := store.Open(ctx, "empty")
			require.NoError(t, err)
			defer blob.Close()

			assert.Zero(t, blob.Size())
			all, err := ReadAll(ctx, blob)
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

func TestMemoryStore_PutCopiesInput(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	data := []byte("abc")
	require.NoError(t, store.Put(ctx, "k", data))
	data[0] = 'x'

	blob, err := store.Open(ctx, "k")
	require.NoError(t, err)
	all, err := ReadAll(ctx, blob)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(all))
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewMemoryStore()
	assert.ErrorIs(t, store.Put(ctx, "k", []byte("v")), context.Canceled)

	_, err := store.Open(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}
