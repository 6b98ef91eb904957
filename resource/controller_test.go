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

func TestController_Memory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	require.NoError(t, c.AcquireMemory(60))
	assert.Equal(t, int64(60), c.MemoryUsage())

	assert.ErrorIs(t, c.AcquireMemory(50), ErrMemoryLimitExceeded)
	assert.Equal(t, int64(60), c.MemoryUsage())

	c.ReleaseMemory(60)
	require.NoError(t, c.AcquireMemory(100))
	assert.Equal(t, int64(100), c.MemoryUsage())
	assert.Equal(t, int64(100), c.MemoryPeak())
	assert.Equal(t, int64(100), c.MemoryLimit())
}

func TestController_UnlimitedMemoryTracksUsage(t *testing.T) {
	c := NewController(Config{})

	require.NoError(t, c.AcquireMemory(1<<40))
	require.NoError(t, c.AcquireMemory(1<<40))
	assert.Equal(t, int64(2<<40), c.MemoryUsage())

	c.ReleaseMemory(1 << 40)
	assert.Equal(t, int64(1<<40), c.MemoryUsage())
	assert.Equal(t, int64(2<<40), c.MemoryPeak())
}

func TestController_Loads(t *testing.T) {
	c := NewController(Config{MaxConcurrentLoads: 2})
	assert.Equal(t, 2, c.MaxConcurrentLoads())

	ctx := context.Background()
	require.NoError(t, c.AcquireLoad(ctx))
	require.NoError(t, c.AcquireLoad(ctx))

	blocked, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.Error(t, c.AcquireLoad(blocked))

	c.ReleaseLoad()
	require.NoError(t, c.AcquireLoad(ctx))
}

func TestController_DefaultLoadsIsSequential(t *testing.T) {
	assert.Equal(t, 1, NewController(Config{}).MaxConcurrentLoads())
}

func TestController_NilIsUnlimited(t *testing.T) {
	var c *Controller

	require.NoError(t, c.AcquireMemory(1<<50))
	c.ReleaseMemory(1 << 50)
	require.NoError(t, c.AcquireLoad(context.Background()))
	c.ReleaseLoad()
	require.NoError(t, c.AcquireIO(context.Background(), 1<<20))
	assert.Equal(t, int64(0), c.MemoryUsage())
	assert.Equal(t, 1, c.MaxConcurrentLoads())
}

func TestRateLimitedReader(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})
	data := bytes.Repeat([]byte{7}, 4096)

	r := NewRateLimitedReader(context.Background(), bytes.NewReader(data), c)
	got, err := io.ReadAll(r)
	require.NoError(t, err)

	assert.Equal(t, data, got)
	assert.Equal(t, int64(len(data)), c.BytesRead())
}

func TestRateLimitedReader_Canceled(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRateLimitedReader(ctx, bytes.NewReader(make([]byte, 64)), c)
	_, err := io.ReadAll(r)
	assert.ErrorIs(t, err, context.Canceled)
}
