package rangestream

import "context"

// Close releases the resources held by the session: every scan still open,
// the stream tree and both worker pools.
//
// Failures to close a scan are logged and do not fail Close. Close is
// idempotent.
func (rs *RangeStream) Close() error {
	if rs == nil {
		return nil
	}
	rs.closeOnce.Do(func() {
		rs.closed = true
		ctx := context.Background()

		if rs.root != nil {
			if err := rs.root.Close(); err != nil {
				rs.closeFailed(ctx, "stream", err)
			}
		}
		if err := rs.sessions.closeAll(true); err != nil {
			rs.closeFailed(ctx, "scan", err)
		}
		rs.lookups.Close()
		rs.prefetch.Close()
	})
	return nil
}
