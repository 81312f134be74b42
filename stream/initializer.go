package stream

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Initialize pulls the first tuple of every INITIALIZED stream in parallel on
// sched and waits for all of them. The first failure stops resolutions that
// have not started yet and is returned. Resolved streams settle on their
// final context in place; the returned slice holds the same streams.
func Initialize(ctx context.Context, sched Scheduler, streams []IndexStream) ([]IndexStream, error) {
	var pending []IndexStream
	for _, s := range streams {
		if s.Context() == Initialized {
			pending = append(pending, s)
		}
	}
	if len(pending) == 0 {
		return streams, nil
	}
	if sched == nil {
		for _, s := range pending {
			if _, _, err := s.Peek(ctx); err != nil {
				return nil, err
			}
		}
		return streams, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range pending {
		g.Go(func() error {
			done := make(chan error, 1)
			err := sched.Submit(gctx, func() {
				if err := gctx.Err(); err != nil {
					done <- err
					return
				}
				_, _, err := s.Peek(ctx)
				done <- err
			})
			if err != nil {
				return err
			}
			// wait even after cancellation so no stream is touched once
			// Initialize has returned
			return <-done
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return streams, nil
}
