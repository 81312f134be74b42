package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MaxConcurrentScans is the maximum number of scan batches fetched at
	// the same time. If 0, fetches are not bounded.
	MaxConcurrentScans int64

	// ScanEntriesPerSecond throttles index entries read by scans.
	// If 0, unlimited.
	ScanEntriesPerSecond float64

	// IOLimitBytesPerSec throttles snapshot reads.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller enforces a Config. A nil *Controller enforces nothing.
type Controller struct {
	cfg Config

	scanSem  *semaphore.Weighted // nil if unlimited
	inFlight atomic.Int64

	entryLimiter *rate.Limiter
	ioLimiter    *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}

	if cfg.MaxConcurrentScans > 0 {
		c.scanSem = semaphore.NewWeighted(cfg.MaxConcurrentScans)
	}

	if cfg.ScanEntriesPerSecond > 0 {
		c.entryLimiter = rate.NewLimiter(rate.Limit(cfg.ScanEntriesPerSecond), max(int(cfg.ScanEntriesPerSecond), 1))
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// AcquireScan reserves a fetch slot, blocking while all are busy.
func (c *Controller) AcquireScan(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if c.scanSem != nil {
		if err := c.scanSem.Acquire(ctx, 1); err != nil {
			return err
		}
	}
	c.inFlight.Add(1)
	return nil
}

// TryAcquireScan reserves a fetch slot without blocking.
func (c *Controller) TryAcquireScan() bool {
	if c == nil {
		return true
	}
	if c.scanSem != nil && !c.scanSem.TryAcquire(1) {
		return false
	}
	c.inFlight.Add(1)
	return true
}

// ReleaseScan releases a fetch slot.
func (c *Controller) ReleaseScan() {
	if c == nil {
		return
	}
	if c.scanSem != nil {
		c.scanSem.Release(1)
	}
	c.inFlight.Add(-1)
}

// ScansInFlight returns the number of reserved fetch slots.
func (c *Controller) ScansInFlight() int64 {
	if c == nil {
		return 0
	}
	return c.inFlight.Load()
}

// AcquireEntries waits until n more index entries may be read.
func (c *Controller) AcquireEntries(ctx context.Context, n int) error {
	if c == nil {
		return nil
	}
	return waitN(ctx, c.entryLimiter, n)
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil {
		return nil
	}
	return waitN(ctx, c.ioLimiter, bytes)
}

// waitN splits n into bursts the limiter accepts.
func waitN(ctx context.Context, l *rate.Limiter, n int) error {
	if l == nil {
		return nil
	}
	for n > 0 {
		step := min(n, l.Burst())
		if err := l.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}
