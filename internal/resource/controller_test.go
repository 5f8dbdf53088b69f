package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Concurrency(t *testing.T) {
	c := NewController(Config{MaxBackgroundWorkers: 2})

	// Acquire 2
	require.NoError(t, c.AcquireBackground(t.Context()))
	require.NoError(t, c.AcquireBackground(t.Context()))
	assert.Equal(t, int64(2), c.InFlight())

	// A third flush waits for a slot and honours the context.
	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireBackground(ctx), context.DeadlineExceeded)

	// Release 1
	c.ReleaseBackground()
	assert.Equal(t, int64(1), c.InFlight())

	require.NoError(t, c.AcquireBackground(t.Context()))
	assert.Equal(t, int64(2), c.InFlight())
}

func TestController_DefaultWorkers(t *testing.T) {
	c := NewController(Config{})
	assert.Positive(t, c.Config().MaxBackgroundWorkers)
}

func TestController_IO(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})

	// A request above the burst is split rather than rejected.
	require.NoError(t, c.AcquireIO(t.Context(), 1<<20+10))
	assert.Equal(t, int64(1<<20+10), c.IOBytes())

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	assert.Error(t, c.AcquireIO(ctx, 1<<20))
}

func TestController_Nil(t *testing.T) {
	var c *Controller
	require.NoError(t, c.AcquireBackground(t.Context()))
	c.ReleaseBackground()
	require.NoError(t, c.AcquireIO(t.Context(), 100))
	assert.Zero(t, c.InFlight())
	assert.Zero(t, c.IOBytes())
	assert.Equal(t, Config{}, c.Config())
}
