package kv

import (
	"context"
	"errors"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/rangestream/internal/resource"
)

// DefaultBatchSize is the number of entries fetched per batch when none is
// configured.
const DefaultBatchSize = 100

// ErrSessionClosed is returned by Next after Close.
var ErrSessionClosed = errors.New("kv: session closed")

// Scheduler runs background fetches.
type Scheduler interface {
	Submit(ctx context.Context, task func()) error
}

type sessionOptions struct {
	batchSize int
	prefetch  Scheduler
	limits    *resource.Controller
	iterators []Iterator
}

// SessionOption configures a Session.
type SessionOption func(*sessionOptions)

// WithBatchSize sets how many entries one fetch reads.
func WithBatchSize(n int) SessionOption {
	return func(o *sessionOptions) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithPrefetch fetches the next batch on s while the current one is consumed.
func WithPrefetch(s Scheduler) SessionOption {
	return func(o *sessionOptions) { o.prefetch = s }
}

// WithLimits bounds concurrent fetches and the entry read rate.
func WithLimits(rc *resource.Controller) SessionOption {
	return func(o *sessionOptions) { o.limits = rc }
}

// WithIterators appends iterators to the session's stack.
func WithIterators(its ...Iterator) SessionOption {
	return func(o *sessionOptions) { o.iterators = append(o.iterators, its...) }
}

// SessionStats counts the work a session did.
type SessionStats struct {
	Batches int64
	Fetched int64
	Emitted int64
}

type batch struct {
	entries []Entry
	more    bool
	err     error
}

// Session is a batched scan over one Range of a Table.
//
// Fetches run against a context owned by the session, so a batch prefetched
// in the background is not lost when the context that opened the session
// ends. Close cancels it. A Session is not safe for concurrent use.
type Session struct {
	table *Table
	rng   Range
	opts  sessionOptions

	ctx    context.Context
	cancel context.CancelFunc

	next func() (Entry, bool)
	stop func()
	err  error

	batches atomic.Int64
	fetched atomic.Int64
	emitted int64

	closeOnce sync.Once
	closed    bool
}

// NewSession opens a scan of r.
func (t *Table) NewSession(ctx context.Context, r Range, opts ...SessionOption) *Session {
	o := sessionOptions{batchSize: DefaultBatchSize}
	for _, fn := range opts {
		fn(&o)
	}

	s := &Session{table: t, rng: r, opts: o}
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.next, s.stop = iter.Pull(Stack(o.iterators...)(s.raw()))
	return s
}

// Next returns the next entry that passed the iterator stack.
func (s *Session) Next(ctx context.Context) (Entry, bool, error) {
	if s.closed {
		return Entry{}, false, ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return Entry{}, false, err
	}
	e, ok := s.next()
	if !ok {
		return Entry{}, false, s.err
	}
	s.emitted++
	return e, true, nil
}

// All returns the remaining entries as a sequence. Iteration stops at the
// first error, which is yielded once.
func (s *Session) All(ctx context.Context) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		for {
			e, ok, err := s.Next(ctx)
			if err != nil {
				yield(Entry{}, err)
				return
			}
			if !ok || !yield(e, nil) {
				return
			}
		}
	}
}

// Stats returns the session's counters.
func (s *Session) Stats() SessionStats {
	return SessionStats{
		Batches: s.batches.Load(),
		Fetched: s.fetched.Load(),
		Emitted: s.emitted,
	}
}

// Close stops the scan and any prefetch in flight. It is idempotent.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed = true
		s.cancel()
		s.stop()
	})
	return nil
}

// raw yields the entries of the range batch by batch.
func (s *Session) raw() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		var (
			after   *Key
			pending chan batch
		)
		for {
			var b batch
			if pending != nil {
				select {
				case b = <-pending:
				case <-s.ctx.Done():
					s.err = s.ctx.Err()
					return
				}
			} else {
				b = s.fetch(after)
			}
			if b.err != nil {
				s.err = b.err
				return
			}

			pending = nil
			if b.more && len(b.entries) > 0 {
				last := b.entries[len(b.entries)-1].Key
				after = &last
				pending = s.prefetch(after)
			}

			for _, e := range b.entries {
				if !yield(e) {
					return
				}
			}
			if !b.more {
				return
			}
		}
	}
}

// prefetch starts fetching the batch after after in the background. It
// returns nil when no scheduler is configured or it refused the task, in
// which case the next batch is fetched inline.
func (s *Session) prefetch(after *Key) chan batch {
	if s.opts.prefetch == nil {
		return nil
	}
	ch := make(chan batch, 1)
	if err := s.opts.prefetch.Submit(s.ctx, func() { ch <- s.fetch(after) }); err != nil {
		return nil
	}
	return ch
}

func (s *Session) fetch(after *Key) batch {
	rc := s.opts.limits
	if err := rc.AcquireScan(s.ctx); err != nil {
		return batch{err: err}
	}
	defer rc.ReleaseScan()

	entries, more := s.table.batch(s.rng, after, s.opts.batchSize)
	if err := rc.AcquireEntries(s.ctx, len(entries)); err != nil {
		return batch{err: err}
	}

	s.batches.Add(1)
	s.fetched.Add(int64(len(entries)))
	return batch{entries: entries, more: more}
}
