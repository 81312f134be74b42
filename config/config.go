// Package config holds the per-query planning configuration.
//
// A Query is usually loaded from YAML:
//
//	id: 6f1c2f5e-8d0a-4a7e-9d55-2c1f3f3b9a10
//	begin_date: "20240101"
//	end_date: "20240107"
//	index_table: shardIndex
//	datatypes: [email, chat]
//	max_depth: 2500
//	index_lookup_threads: 8
//	index_holes:
//	  - field: COLOR
//	    start_date: "20240103"
//	    end_date: "20240104"
//	    lower: r
//	    upper: s
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// DayFormat is the layout of day keys and configured dates.
const DayFormat = "20060102"

// ErrInvalidConfig is returned when a Query fails validation.
var ErrInvalidConfig = errors.New("invalid query configuration")

// Query configures one planning session.
type Query struct {
	// ID tags the scans issued on behalf of the query.
	ID uuid.UUID `yaml:"id"`

	// BeginDate and EndDate bound the query, inclusive, as yyyyMMdd.
	BeginDate string `yaml:"begin_date"`
	EndDate   string `yaml:"end_date"`

	// IndexTable names the table holding the forward index.
	IndexTable string `yaml:"index_table"`

	// Datatypes restricts matches to these record types. Empty means all.
	Datatypes []string `yaml:"datatypes,omitempty"`

	// Authorizations are passed to every scan.
	Authorizations []string `yaml:"authorizations,omitempty"`

	// IndexHoles lists known gaps in the index.
	IndexHoles []IndexHole `yaml:"index_holes,omitempty"`

	// MaxDepth is the deepest predicate tree accepted for planning.
	MaxDepth int `yaml:"max_depth"`

	// MaxValueExpansion caps the distinct values a range or regex scan may
	// match before it degrades to a full scan of each day.
	MaxValueExpansion int `yaml:"max_value_expansion"`

	// ShardsPerDayThreshold is the number of shards in a day above which the
	// day is reported instead of its shards.
	ShardsPerDayThreshold int `yaml:"shards_per_day_threshold"`

	// MaxUIDsPerShard is the largest record-id set kept per shard. Larger
	// sets are reported by count only.
	MaxUIDsPerShard int `yaml:"max_uids_per_shard"`

	// ScanBatchSize is the number of entries fetched per scan round trip.
	ScanBatchSize int `yaml:"scan_batch_size"`

	// IndexLookupThreads sizes the worker pools of a planning session.
	IndexLookupThreads int `yaml:"index_lookup_threads"`

	// MaxConcurrentScans bounds simultaneous scan fetches. Zero means no bound.
	MaxConcurrentScans int `yaml:"max_concurrent_scans"`

	// ScanEntriesPerSecond throttles index entries read. Zero means no limit.
	ScanEntriesPerSecond float64 `yaml:"scan_entries_per_second"`

	CollapseUIDs                    bool `yaml:"collapse_uids"`
	CondenseUIDs                    bool `yaml:"condense_uids"`
	FullTableScanEnabled            bool `yaml:"full_table_scan_enabled"`
	CanHandleExceededValueThreshold bool `yaml:"can_handle_exceeded_value_threshold"`

	// LogLevel is one of debug, info, warn or error.
	LogLevel string `yaml:"log_level"`
}

// Defaults returns a Query populated with default values.
func Defaults() *Query {
	return &Query{
		ID:                    uuid.New(),
		IndexTable:            "shardIndex",
		MaxDepth:              2500,
		MaxValueExpansion:     5000,
		ShardsPerDayThreshold: 10,
		MaxUIDsPerShard:       20,
		ScanBatchSize:         100,
		IndexLookupThreads:    4,
		CondenseUIDs:          true,
		LogLevel:              "info",
	}
}

// Load reads a Query from a YAML file.
func Load(path string) (*Query, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of Defaults and validates the result.
func Parse(data []byte) (*Query, error) {
	q := Defaults()
	if err := yaml.Unmarshal(data, q); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return q, nil
}

// Validate checks the query and normalizes its index holes.
func (q *Query) Validate() error {
	begin, err := time.Parse(DayFormat, q.BeginDate)
	if err != nil {
		return fmt.Errorf("%w: begin_date %q", ErrInvalidConfig, q.BeginDate)
	}
	end, err := time.Parse(DayFormat, q.EndDate)
	if err != nil {
		return fmt.Errorf("%w: end_date %q", ErrInvalidConfig, q.EndDate)
	}
	if end.Before(begin) {
		return fmt.Errorf("%w: end_date %s before begin_date %s", ErrInvalidConfig, q.EndDate, q.BeginDate)
	}
	if q.IndexTable == "" {
		return fmt.Errorf("%w: index_table is required", ErrInvalidConfig)
	}
	if q.MaxDepth <= 0 {
		return fmt.Errorf("%w: max_depth must be positive", ErrInvalidConfig)
	}
	if q.ScanBatchSize <= 0 {
		return fmt.Errorf("%w: scan_batch_size must be positive", ErrInvalidConfig)
	}
	for i, h := range q.IndexHoles {
		if h.StartDate > h.EndDate || h.Lower > h.Upper {
			return fmt.Errorf("%w: index_holes[%d] has inverted bounds", ErrInvalidConfig, i)
		}
	}
	if _, err := q.Level(); err != nil {
		return err
	}
	SortHoles(q.IndexHoles)
	return nil
}

// Level parses LogLevel.
func (q *Query) Level() (slog.Level, error) {
	var l slog.Level
	if q.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(strings.ToUpper(q.LogLevel))); err != nil {
		return 0, fmt.Errorf("%w: log_level %q", ErrInvalidConfig, q.LogLevel)
	}
	return l, nil
}

// Parallelism returns IndexLookupThreads, at least 1.
func (q *Query) Parallelism() int {
	return max(q.IndexLookupThreads, 1)
}

// Days returns every day of the query window as yyyyMMdd, ascending.
func (q *Query) Days() []string {
	begin, err1 := time.Parse(DayFormat, q.BeginDate)
	end, err2 := time.Parse(DayFormat, q.EndDate)
	if err1 != nil || err2 != nil {
		return nil
	}
	var days []string
	for d := begin; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(DayFormat))
	}
	return days
}

// HasDatatype reports whether records of type dt are in scope.
func (q *Query) HasDatatype(dt string) bool {
	return len(q.Datatypes) == 0 || slices.Contains(q.Datatypes, dt)
}
