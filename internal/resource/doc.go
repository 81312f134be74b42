// Package resource governs how hard a planning session may lean on the index.
//
// The Controller manages three limits:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│                        Controller                           │
//	├─────────────────┬─────────────────┬─────────────────────────┤
//	│  Scan sessions  │  Entry rate     │  IO rate                │
//	│  (semaphore)    │  (token bucket) │  (token bucket)         │
//	├─────────────────┼─────────────────┼─────────────────────────┤
//	│  AcquireScan    │  AcquireEntries │  AcquireIO              │
//	│  TryAcquireScan │                 │  RateLimitedReader      │
//	│  ReleaseScan    │                 │                         │
//	└─────────────────┴─────────────────┴─────────────────────────┘
//
// Scan sessions bound how many batch fetches run against the index at once.
// The entry rate throttles how many index entries per second are read, and
// the IO rate throttles snapshot loading from a blob store:
//
//	rc := resource.NewController(resource.Config{
//	    MaxConcurrentScans:   8,
//	    ScanEntriesPerSecond: 50_000,
//	})
//
//	if err := rc.AcquireScan(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseScan()
//
// All methods are safe for concurrent use, and a nil *Controller imposes no
// limits.
package resource
