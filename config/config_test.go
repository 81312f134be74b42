package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
begin_date: "20240101"
end_date: "20240103"
index_table: idx
datatypes: [email]
max_depth: 50
collapse_uids: true
log_level: debug
index_holes:
  - start_date: "20240101"
    end_date: "20240102"
    lower: s
    upper: t
  - field: COLOR
    start_date: "20240101"
    end_date: "20240102"
    lower: b
    upper: c
`

func TestParse(t *testing.T) {
	q, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "idx", q.IndexTable)
	assert.Equal(t, 50, q.MaxDepth)
	assert.True(t, q.CollapseUIDs)
	assert.True(t, q.CondenseUIDs, "defaults survive decoding")
	assert.Equal(t, 20, q.MaxUIDsPerShard)
	assert.Equal(t, []string{"20240101", "20240102", "20240103"}, q.Days())
	assert.True(t, q.HasDatatype("email"))
	assert.False(t, q.HasDatatype("chat"))

	require.Len(t, q.IndexHoles, 2)
	assert.Equal(t, "b", q.IndexHoles[0].Lower, "holes are sorted by lower bound")

	level, err := q.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "query.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	q, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "20240101", q.BeginDate)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(q *Query)
	}{
		{"bad begin", func(q *Query) { q.BeginDate = "2024-01-01" }},
		{"inverted dates", func(q *Query) { q.BeginDate, q.EndDate = "20240105", "20240101" }},
		{"no table", func(q *Query) { q.IndexTable = "" }},
		{"zero depth", func(q *Query) { q.MaxDepth = 0 }},
		{"bad level", func(q *Query) { q.LogLevel = "loud" }},
		{"inverted hole", func(q *Query) {
			q.IndexHoles = []IndexHole{{StartDate: "20240101", EndDate: "20240101", Lower: "z", Upper: "a"}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Defaults()
			q.BeginDate, q.EndDate = "20240101", "20240102"
			require.NoError(t, q.Validate())
			tt.mutate(q)
			err := q.Validate()
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestIndexHole(t *testing.T) {
	h := IndexHole{Field: "COLOR", StartDate: "20240102", EndDate: "20240103", Lower: "b", Upper: "d"}

	assert.True(t, h.AppliesTo("COLOR"))
	assert.False(t, h.AppliesTo("SHAPE"))
	assert.True(t, IndexHole{}.AppliesTo("SHAPE"))

	assert.True(t, h.Overlaps("20240101", "20240102", "c"))
	assert.False(t, h.Overlaps("20240104", "20240105", "c"), "outside the date window")
	assert.False(t, h.Overlaps("20240101", "20240102", "e"))

	assert.True(t, h.OverlapsRange("20240101", "20240110", "a", "b"))
	assert.False(t, h.OverlapsRange("20240101", "20240110", "da", "e"))

	assert.True(t, h.After("a"))
	assert.False(t, h.After("b"))
}
