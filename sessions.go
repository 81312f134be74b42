package rangestream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hupe1980/rangestream/stream"
)

// sessions tracks every scan opened on behalf of one planning session so
// Close can release scans that were never drained.
type sessions struct {
	factory stream.ScannerFactory
	metrics MetricsCollector

	mu     sync.Mutex
	open   map[*trackedSource]struct{}
	closed bool
}

var _ stream.ScannerFactory = (*sessions)(nil)

func newSessions(factory stream.ScannerFactory, metrics MetricsCollector) *sessions {
	return &sessions{
		factory: factory,
		metrics: metrics,
		open:    make(map[*trackedSource]struct{}),
	}
}

func (s *sessions) Open(ctx context.Context, req stream.ScanRequest) (stream.Source, error) {
	start := time.Now()
	src, err := s.factory.Open(ctx, req)
	s.metrics.RecordScanOpened(time.Since(start), err)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.Join(ErrClosed, src.Close())
	}
	t := &trackedSource{Source: src, owner: s}
	s.open[t] = struct{}{}
	return t, nil
}

// Len returns the number of scans still open.
func (s *sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.open)
}

// closeAll closes every open scan. Later Opens fail when final is set.
func (s *sessions) closeAll(final bool) error {
	s.mu.Lock()
	open := make([]*trackedSource, 0, len(s.open))
	for t := range s.open {
		open = append(open, t)
	}
	if final {
		s.closed = true
	}
	s.mu.Unlock()

	var errs []error
	for _, t := range open {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *sessions) remove(t *trackedSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.open, t)
}

type trackedSource struct {
	stream.Source
	owner *sessions

	once sync.Once
	err  error
}

func (t *trackedSource) Close() error {
	t.once.Do(func() {
		t.err = t.Source.Close()
		t.owner.remove(t)
	})
	return t.err
}
