package resource

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Scans(t *testing.T) {
	c := NewController(Config{MaxConcurrentScans: 2})

	require.NoError(t, c.AcquireScan(context.Background()))
	require.NoError(t, c.AcquireScan(context.Background()))
	assert.Equal(t, int64(2), c.ScansInFlight())

	assert.False(t, c.TryAcquireScan())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireScan(ctx), context.DeadlineExceeded)

	c.ReleaseScan()
	assert.True(t, c.TryAcquireScan())
	assert.Equal(t, int64(2), c.ScansInFlight())
}

func TestController_Unlimited(t *testing.T) {
	c := NewController(Config{})
	for i := 0; i < 100; i++ {
		require.NoError(t, c.AcquireScan(context.Background()))
	}
	require.NoError(t, c.AcquireEntries(context.Background(), 1_000_000))
	require.NoError(t, c.AcquireIO(context.Background(), 1_000_000))
}

func TestController_Nil(t *testing.T) {
	var c *Controller
	require.NoError(t, c.AcquireScan(context.Background()))
	c.ReleaseScan()
	assert.True(t, c.TryAcquireScan())
	require.NoError(t, c.AcquireEntries(context.Background(), 10))
	assert.Zero(t, c.ScansInFlight())
}

func TestController_EntriesLargerThanBurst(t *testing.T) {
	c := NewController(Config{ScanEntriesPerSecond: 1000})
	start := time.Now()
	require.NoError(t, c.AcquireEntries(context.Background(), 1500))
	assert.GreaterOrEqual(t, time.Since(start), 400*time.Millisecond)
}

func TestRateLimitedReader(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})
	data := bytes.Repeat([]byte("x"), 4096)
	r := NewRateLimitedReader(context.Background(), bytes.NewReader(data), c)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}
