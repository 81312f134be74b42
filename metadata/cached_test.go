package metadata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingHelper struct {
	Helper
	calls int
}

func (h *countingHelper) IsIndexed(ctx context.Context, field string, datatypes []string) (bool, error) {
	h.calls++
	return h.Helper.IsIndexed(ctx, field, datatypes)
}

func (h *countingHelper) AllFields(ctx context.Context, datatypes []string) ([]string, error) {
	h.calls++
	return h.Helper.AllFields(ctx, datatypes)
}

func TestCached(t *testing.T) {
	ctx := context.Background()
	store := NewStore(
		Field{Name: "COLOR", Indexed: true},
		Field{Name: "BODY", IndexOnly: true, Datatypes: []string{"email"}},
	)
	inner := &countingHelper{Helper: store}
	c := NewCached(inner, 64)

	for range 3 {
		ok, err := c.IsIndexed(ctx, "COLOR", []string{"email", "chat"})
		require.NoError(t, err)
		assert.True(t, ok)
	}
	// Datatype order does not matter.
	_, err := c.IsIndexed(ctx, "COLOR", []string{"chat", "email"})
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)

	ok, err := c.IsIndexOnly(ctx, "BODY", []string{"email"})
	require.NoError(t, err)
	assert.True(t, ok)

	fields, err := c.AllFields(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"BODY", "COLOR"}, fields)
	_, err = c.AllFields(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)

	hits, misses := c.Stats()
	assert.Equal(t, int64(4), hits)
	assert.Equal(t, int64(3), misses)
}

func TestCached_Forget(t *testing.T) {
	ctx := context.Background()
	store := NewStore(Field{Name: "COLOR"})
	c := NewCached(store, 64)

	ok, err := c.IsIndexed(ctx, "COLOR", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	store.Put(Field{Name: "COLOR", Indexed: true})
	ok, _ = c.IsIndexed(ctx, "COLOR", nil)
	assert.False(t, ok, "stale until forgotten")

	c.Forget("COLOR")
	ok, err = c.IsIndexed(ctx, "COLOR", nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCached_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	store := NewStore(Field{Name: "COLOR", Indexed: true})
	store.Drop()
	c := NewCached(store, 64)

	_, err := c.IsIndexed(ctx, "COLOR", nil)
	require.ErrorIs(t, err, ErrTableNotFound)
	_, err = c.AllFields(ctx, nil)
	require.ErrorIs(t, err, ErrTableNotFound)

	store.Put(Field{Name: "COLOR", Indexed: true})
	ok, err := c.IsIndexed(ctx, "COLOR", nil)
	require.NoError(t, err)
	assert.True(t, ok)
}
