package cache

import (
	"context"
	"os"
	"testing"
	"time"

	assert_ "github.com/stretchr/testify/assert"
	require_ "github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	assert := assert_.New(t)
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	_, ok := m.Get(ctx, "handle:alice")
	assert.False(ok)

	assert.Nil(m.Set(ctx, "handle:alice", "did:plc:alice", time.Minute))
	assert.Nil(m.Set(ctx, "forever", "x", 0))
	v, ok := m.Get(ctx, "handle:alice")
	assert.True(ok)
	assert.Equal("did:plc:alice", v)

	now = now.Add(time.Minute)
	_, ok = m.Get(ctx, "handle:alice")
	assert.False(ok, "entry should expire")
	_, ok = m.Get(ctx, "forever")
	assert.True(ok)

	assert.Nil(m.Close())
	_, ok = m.Get(ctx, "forever")
	assert.False(ok)
}

// Runs against a real server when BSKY_VIDEO_DL_TEST_REDIS is set, e.g. "localhost:6379".
func TestRedis(t *testing.T) {
	addr := os.Getenv("BSKY_VIDEO_DL_TEST_REDIS")
	if addr == "" {
		t.Skip("BSKY_VIDEO_DL_TEST_REDIS not set")
	}
	require := require_.New(t)
	ctx := context.Background()

	c, err := NewRedis(ctx, addr)
	require.NoError(err)
	defer c.Close()
	c.prefix = "bsky-video-dl-test:" + t.Name() + ":"

	require.NoError(c.Set(ctx, "k", "v", time.Minute))
	v, ok := c.Get(ctx, "k")
	require.True(ok)
	require.Equal("v", v)
	_, ok = c.Get(ctx, "missing")
	require.False(ok)
}
