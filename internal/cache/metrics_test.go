package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollbook/internal/attendance"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemory(time.Minute)
	c.now = func() time.Time { return now }

	_, ok, err := c.Get(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, ok)

	want := attendance.Metrics{OverallPercentage: 75, Total: 4, Present: 3, Absent: 1}
	require.NoError(t, c.Set(ctx, "s1", want))
	got, ok, err := c.Get(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)

	require.NoError(t, c.Invalidate(ctx, "s1", "unknown"))
	_, ok, _ = c.Get(ctx, "s1")
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "s2", want))
	now = now.Add(2 * time.Minute)
	_, ok, _ = c.Get(ctx, "s2")
	assert.False(t, ok, "entry expires after ttl")
}

func TestRedisKey(t *testing.T) {
	c := NewRedis(nil, time.Minute)
	assert.Equal(t, "rollbook:metrics:abc", c.key("abc"))
	assert.NoError(t, c.Invalidate(context.Background()))
}
