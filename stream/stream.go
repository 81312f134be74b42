package stream

import (
	"context"
	"errors"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/rangestream/expr"
)

// ErrValueThresholdExceeded is returned by a Source whose range or pattern
// matched more distinct values than allowed.
var ErrValueThresholdExceeded = errors.New("value expansion threshold exceeded")

// ErrValueThresholdUnsupported is returned when a lookup over an index-only
// field exceeds the value threshold and cannot fall back to day scans.
var ErrValueThresholdUnsupported = errors.New("value expansion exceeded system limits for index-only field")

// Tuple is one element of an index stream.
type Tuple struct {
	Key  string
	Info *IndexInfo
}

// IndexStream is a forward-only sequence of tuples in strictly ascending key
// order.
type IndexStream interface {
	// Context classifies the stream. It does not change once a tuple has
	// been produced.
	Context() Context
	// CurrentNode is the subtree the stream represents after any rewriting.
	CurrentNode() *expr.Node
	// Peek returns the next tuple without consuming it.
	Peek(ctx context.Context) (Tuple, bool, error)
	// Next consumes and returns the next tuple.
	Next(ctx context.Context) (Tuple, bool, error)
	// ContextDebug describes the stream and its children, one per line.
	ContextDebug() string
	// Close releases every scan held by the stream. It is idempotent.
	Close() error
}

// Posting is one aggregated index entry as delivered by a scan.
type Posting struct {
	Key   string
	Count int64
	// UIDs is nil when the scan reports counts only.
	UIDs *roaring64.Bitmap
}

// Source is an open scan session over an index table.
type Source interface {
	Next(ctx context.Context) (Posting, bool, error)
	Close() error
}

// Scheduler runs tasks on a bounded pool of workers.
type Scheduler interface {
	Submit(ctx context.Context, task func()) error
}

// LookupKind selects how a scan matches values.
type LookupKind uint8

const (
	// LookupTerm matches one exact value.
	LookupTerm LookupKind = iota
	// LookupRange matches values between two bounds.
	LookupRange
	// LookupPattern matches values against a regex.
	LookupPattern
)

// Aggregation configures how raw postings are folded per shard.
type Aggregation struct {
	// CollapseUIDs drops record ids and reports counts only.
	CollapseUIDs bool
	// Condense reports a day instead of its shards when the day has more
	// than ShardsPerDay shards.
	Condense     bool
	ShardsPerDay int
	// MaxUIDs is the largest id set kept per shard. Zero means no limit.
	MaxUIDs int
	// MaxValues caps distinct values of range and pattern scans. Zero means
	// no limit.
	MaxValues int
}

// ScanRequest describes one index lookup.
type ScanRequest struct {
	QueryID string
	Table   string
	Field   string
	Kind    LookupKind
	// Value is the term of a LookupTerm and the pattern of a LookupPattern.
	Value string
	// Lower and Upper bound a LookupRange, and the leading-literal range of
	// a LookupPattern. An empty Upper is unbounded.
	Lower, Upper   string
	LowerInclusive bool
	UpperInclusive bool

	BeginDay, EndDay string
	Datatypes        []string
	Authorizations   []string
	Aggregation      Aggregation
	BatchSize        int
	// RejectExceeded makes exceeding Aggregation.MaxValues fatal instead of
	// degrading the leaf to day scans.
	RejectExceeded bool
	// Prefetch, when set, runs background batch fetches.
	Prefetch Scheduler
}

// ScannerFactory opens scans against the index.
type ScannerFactory interface {
	Open(ctx context.Context, req ScanRequest) (Source, error)
}

// ScannerFactoryFunc adapts a function to ScannerFactory.
type ScannerFactoryFunc func(ctx context.Context, req ScanRequest) (Source, error)

// Open implements ScannerFactory.
func (f ScannerFactoryFunc) Open(ctx context.Context, req ScanRequest) (Source, error) {
	return f(ctx, req)
}

// DayTuples returns one tuple of unknown cardinality per day.
func DayTuples(days []string, node *expr.Node) []Tuple {
	out := make([]Tuple, len(days))
	for i, d := range days {
		out[i] = Tuple{Key: d, Info: UnknownInfo(node)}
	}
	return out
}

// Drain consumes s and returns its remaining tuples.
func Drain(ctx context.Context, s IndexStream) ([]Tuple, error) {
	var out []Tuple
	for {
		t, ok, err := s.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, t)
	}
}
