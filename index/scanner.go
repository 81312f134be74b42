package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hupe1980/rangestream/expr"
	"github.com/hupe1980/rangestream/internal/resource"
	"github.com/hupe1980/rangestream/kv"
	"github.com/hupe1980/rangestream/stream"
)

// ErrUnknownTable is returned when a scan names a table that was never
// registered.
var ErrUnknownTable = errors.New("index: unknown table")

// ScannersOption configures Scanners.
type ScannersOption func(*Scanners)

// WithLimits bounds the scans opened by Scanners.
func WithLimits(rc *resource.Controller) ScannersOption {
	return func(s *Scanners) { s.limits = rc }
}

// WithLogger sets the logger scans report to.
func WithLogger(l *slog.Logger) ScannersOption {
	return func(s *Scanners) {
		if l != nil {
			s.logger = l
		}
	}
}

// Scanners opens scans against registered index tables.
type Scanners struct {
	mu     sync.RWMutex
	tables map[string]*kv.Table
	limits *resource.Controller
	logger *slog.Logger
}

var _ stream.ScannerFactory = (*Scanners)(nil)

// NewScanners returns a factory without tables.
func NewScanners(opts ...ScannersOption) *Scanners {
	s := &Scanners{
		tables: make(map[string]*kv.Table),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, fn := range opts {
		fn(s)
	}
	return s
}

// Register makes t available under name, replacing any earlier table.
func (s *Scanners) Register(name string, t *kv.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[name] = t
}

// Table returns the table registered under name.
func (s *Scanners) Table(name string) (*kv.Table, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	return t, ok
}

// Open implements stream.ScannerFactory. The returned source reads and
// aggregates the whole lookup on its first Next.
func (s *Scanners) Open(ctx context.Context, req stream.ScanRequest) (stream.Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, ok := s.Table(req.Table)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, req.Table)
	}

	rng, its, err := lookup(req)
	if err != nil {
		return nil, err
	}
	its = append(its, DateFilter(req.BeginDay, req.EndDay), DatatypeFilter(req.Datatypes))

	opts := []kv.SessionOption{
		kv.WithBatchSize(req.BatchSize),
		kv.WithLimits(s.limits),
		kv.WithIterators(its...),
	}
	if req.Prefetch != nil {
		opts = append(opts, kv.WithPrefetch(req.Prefetch))
	}

	s.logger.Debug("open scan",
		slog.String("query", req.QueryID),
		slog.String("table", req.Table),
		slog.String("field", req.Field),
		slog.String("range", rng.String()))

	return &source{
		session: t.NewSession(ctx, rng, opts...),
		agg:     NewUIDAggregator(req.Aggregation),
		req:     req,
		logger:  s.logger,
	}, nil
}

// lookup translates a request into the range to read and the iterators
// selecting matching entries within it.
func lookup(req stream.ScanRequest) (kv.Range, []kv.Iterator, error) {
	switch req.Kind {
	case stream.LookupTerm:
		return kv.FamilyRange(req.Value, req.Field), nil, nil
	case stream.LookupRange:
		var r kv.Range
		if req.LowerInclusive {
			r.Start = kv.Key{Row: req.Lower}
		} else {
			r.Start = kv.Key{Row: req.Lower + "\x00"}
		}
		if req.Upper != "" {
			if req.UpperInclusive {
				r.End = kv.Key{Row: req.Upper + "\x00"}
			} else {
				r.End = kv.Key{Row: req.Upper}
			}
		}
		return r, []kv.Iterator{kv.FamilyFilter(req.Field)}, nil
	case stream.LookupPattern:
		re, err := expr.CompileValuePattern(req.Value)
		if err != nil {
			return kv.Range{}, nil, err
		}
		r := kv.Range{Start: kv.Key{Row: req.Lower}}
		if req.Upper != "" {
			r.End = kv.Key{Row: req.Upper}
		}
		return r, []kv.Iterator{kv.FamilyFilter(req.Field), ValueFilter(re)}, nil
	}
	return kv.Range{}, nil, fmt.Errorf("index: unknown lookup kind %d", req.Kind)
}

type source struct {
	session *kv.Session
	agg     *UIDAggregator
	req     stream.ScanRequest
	logger  *slog.Logger

	postings []stream.Posting
	loaded   bool
	closed   bool
}

func (s *source) Next(ctx context.Context) (stream.Posting, bool, error) {
	if s.closed {
		return stream.Posting{}, false, kv.ErrSessionClosed
	}
	if !s.loaded {
		if err := s.load(ctx); err != nil {
			return stream.Posting{}, false, err
		}
	}
	if len(s.postings) == 0 {
		return stream.Posting{}, false, nil
	}
	p := s.postings[0]
	s.postings = s.postings[1:]
	return p, true, nil
}

func (s *source) load(ctx context.Context) error {
	for e, err := range s.session.All(ctx) {
		if err != nil {
			return err
		}
		if err := s.agg.Add(e); err != nil {
			if errors.Is(err, stream.ErrValueThresholdExceeded) {
				s.logger.Debug("value threshold exceeded",
					slog.String("query", s.req.QueryID),
					slog.String("field", s.req.Field),
					slog.Int("max_values", s.req.Aggregation.MaxValues))
			}
			return err
		}
	}
	s.loaded = true
	s.postings = s.agg.Postings()

	stats := s.session.Stats()
	s.logger.Debug("scan complete",
		slog.String("query", s.req.QueryID),
		slog.String("field", s.req.Field),
		slog.Int64("batches", stats.Batches),
		slog.Int64("entries", stats.Emitted),
		slog.Int("postings", len(s.postings)))
	return s.session.Close()
}

func (s *source) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.postings = nil
	return s.session.Close()
}
