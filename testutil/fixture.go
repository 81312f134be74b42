package testutil

import (
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rangestream/index"
	"github.com/hupe1980/rangestream/kv"
	"github.com/hupe1980/rangestream/metadata"
)

// Table is the table name fixtures register their index under.
const Table = "shardIndex"

// Doc identifies one document.
type Doc struct {
	Shard string
	UID   uint64
}

// Fixture is an index table with a record of every posting written to it.
type Fixture struct {
	tb     testing.TB
	table  *kv.Table
	writer *index.Writer
	fields map[string]*metadata.Field
	// postings[field][value][shard] holds the ids written.
	postings map[string]map[string]map[string]*roaring64.Bitmap
}

// NewFixture returns an empty fixture.
func NewFixture(tb testing.TB) *Fixture {
	tb.Helper()
	t := kv.NewTable()
	return &Fixture{
		tb:       tb,
		table:    t,
		writer:   index.NewWriter(t),
		fields:   make(map[string]*metadata.Field),
		postings: make(map[string]map[string]map[string]*roaring64.Bitmap),
	}
}

// Add indexes value of field for uids in shard.
func (f *Fixture) Add(field, value, shard, datatype string, uids ...uint64) *Fixture {
	f.tb.Helper()
	require.NoError(f.tb, f.writer.Add(field, value, shard, datatype, uids...))
	f.observe(field, datatype, true)

	values, ok := f.postings[field]
	if !ok {
		values = make(map[string]map[string]*roaring64.Bitmap)
		f.postings[field] = values
	}
	shards, ok := values[value]
	if !ok {
		shards = make(map[string]*roaring64.Bitmap)
		values[value] = shards
	}
	if b, ok := shards[shard]; ok {
		b.AddMany(uids)
	} else {
		shards[shard] = roaring64.BitmapOf(uids...)
	}
	return f
}

// Unindexed records field as known but not indexed.
func (f *Fixture) Unindexed(field string, datatypes ...string) *Fixture {
	if len(datatypes) == 0 {
		f.observe(field, "", false)
	}
	for _, dt := range datatypes {
		f.observe(field, dt, false)
	}
	return f
}

// IndexOnly marks an indexed field as index-only.
func (f *Fixture) IndexOnly(field string) *Fixture {
	f.observe(field, "", true)
	f.fields[field].IndexOnly = true
	return f
}

func (f *Fixture) observe(field, datatype string, indexed bool) {
	m, ok := f.fields[field]
	if !ok {
		m = &metadata.Field{Name: field}
		f.fields[field] = m
	}
	m.Indexed = m.Indexed || indexed
	if datatype != "" && !slices.Contains(m.Datatypes, datatype) {
		m.Datatypes = append(m.Datatypes, datatype)
	}
}

// Table returns the index table.
func (f *Fixture) Table() *kv.Table { return f.table }

// Scanners returns a scanner factory with the index registered under Table.
func (f *Fixture) Scanners(opts ...index.ScannersOption) *index.Scanners {
	s := index.NewScanners(opts...)
	s.Register(Table, f.table)
	return s
}

// Metadata returns a metadata store describing every field seen so far.
func (f *Fixture) Metadata() *metadata.Store {
	s := metadata.NewStore()
	for _, m := range f.fields {
		s.Put(*m)
	}
	return s
}

// Docs returns every document holding a value of field accepted by match.
func (f *Fixture) Docs(field string, match func(value string) bool) map[Doc]struct{} {
	out := make(map[Doc]struct{})
	for value, shards := range f.postings[field] {
		if !match(value) {
			continue
		}
		for shard, uids := range shards {
			it := uids.Iterator()
			for it.HasNext() {
				out[Doc{Shard: shard, UID: it.Next()}] = struct{}{}
			}
		}
	}
	return out
}

// Term returns the documents holding value in field.
func (f *Fixture) Term(field, value string) map[Doc]struct{} {
	return f.Docs(field, func(v string) bool { return v == value })
}

// Days returns n consecutive days starting at begin, formatted yyyyMMdd.
func Days(begin string, n int) []string {
	day, err := time.Parse("20060102", begin)
	if err != nil {
		panic(fmt.Sprintf("testutil: bad day %q", begin))
	}
	out := make([]string, n)
	for i := range out {
		out[i] = day.AddDate(0, 0, i).Format("20060102")
	}
	return out
}

// RandomConfig shapes a random fixture.
type RandomConfig struct {
	Fields       []string
	Values       int
	Days         []string
	ShardsPerDay int
	Datatypes    []string
	// UIDsPerPosting is the largest id set written per posting.
	UIDsPerPosting int
	Postings       int
}

// Random fills a fixture with Zipf-distributed postings.
func Random(tb testing.TB, rng *RNG, cfg RandomConfig) *Fixture {
	tb.Helper()
	f := NewFixture(tb)
	for range cfg.Postings {
		field := cfg.Fields[rng.Intn(len(cfg.Fields))]
		value := fmt.Sprintf("v%03d", rng.Zipf(cfg.Values, 1.2))
		shard := fmt.Sprintf("%s_%d", cfg.Days[rng.Intn(len(cfg.Days))], rng.Intn(cfg.ShardsPerDay))
		dt := cfg.Datatypes[rng.Intn(len(cfg.Datatypes))]
		f.Add(field, value, shard, dt, rng.UIDs(1+rng.Intn(cfg.UIDsPerPosting), 64)...)
	}
	return f
}
