package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/model"
)

func newTestCache(t *testing.T) (*TranscriptCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewTranscriptCache(client, time.Minute, 5*time.Second), mr
}

func TestTranscriptCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	_, hit, err := c.Get(ctx, 1, "doc1")
	require.NoError(t, err)
	assert.False(t, hit)

	turns := []model.ChatTurn{
		{ID: 1, UserID: 1, DocumentID: "doc1", Role: model.RoleHuman, Message: "What is the refund policy?"},
	}
	require.NoError(t, c.Set(ctx, 1, "doc1", turns))

	got, hit, err := c.Get(ctx, 1, "doc1")
	require.NoError(t, err)
	assert.True(t, hit)
	require.Len(t, got, 1)
	assert.Equal(t, "What is the refund policy?", got[0].Message)

	_, hit, err = c.Get(ctx, 2, "doc1")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestTranscriptCacheInvalidateMarksDirty(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)

	require.NoError(t, c.Set(ctx, 1, "doc1", []model.ChatTurn{{ID: 1}}))
	require.NoError(t, c.Invalidate(ctx, 1, "doc1"))

	_, hit, err := c.Get(ctx, 1, "doc1")
	require.NoError(t, err)
	assert.False(t, hit)

	dirty, err := c.IsDirty(ctx, 1, "doc1")
	require.NoError(t, err)
	assert.True(t, dirty)

	mr.FastForward(6 * time.Second)
	dirty, err = c.IsDirty(ctx, 1, "doc1")
	require.NoError(t, err)
	assert.False(t, dirty)
}
