package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRNG_UIDs(t *testing.T) {
	rng := NewRNG(4711)

	ids := rng.UIDs(10, 20)
	require.Len(t, ids, 10)
	for i := 1; i < len(ids); i++ {
		assert.Less(t, ids[i-1], ids[i])
	}
	assert.Len(t, rng.UIDs(50, 5), 5)
}

func TestRNG_Reset(t *testing.T) {
	rng := NewRNG(4711)
	a := rng.UIDs(5, 100)
	rng.Reset()
	assert.Equal(t, a, rng.UIDs(5, 100))
	assert.Equal(t, int64(4711), rng.Seed())
}

func TestDays(t *testing.T) {
	assert.Equal(t, []string{"20240228", "20240229", "20240301"}, Days("20240228", 3))
}

func TestFixture(t *testing.T) {
	fx := NewFixture(t).
		Add("NAME", "alice", "20240101_0", "person", 1, 2).
		Add("NAME", "alice", "20240101_0", "person", 3).
		Add("NAME", "bob", "20240102_1", "person", 7).
		Unindexed("BODY", "email")

	assert.Equal(t, 2, fx.Table().Len())
	assert.Len(t, fx.Term("NAME", "alice"), 3)
	assert.Len(t, fx.Docs("NAME", func(string) bool { return true }), 4)

	md := fx.Metadata()
	ok, err := md.IsIndexed(t.Context(), "NAME", nil)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = md.IsIndexed(t.Context(), "BODY", []string{"email"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRandom(t *testing.T) {
	fx := Random(t, NewRNG(7), RandomConfig{
		Fields:         []string{"A", "B"},
		Values:         10,
		Days:           Days("20240101", 3),
		ShardsPerDay:   4,
		Datatypes:      []string{"dt"},
		UIDsPerPosting: 5,
		Postings:       200,
	})
	assert.Positive(t, fx.Table().Len())
	assert.NotEmpty(t, fx.Docs("A", func(string) bool { return true }))
}
