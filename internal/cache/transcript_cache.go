package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"docchat/internal/model"
)

// TranscriptCache keeps the ordered transcript of one (user, document)
// conversation in Redis. Writers invalidate the entry and set a short-lived
// dirty marker so readers skip the cache while a write may still be
// settling.
type TranscriptCache struct {
	client         *redisv9.Client
	transcriptTTL  time.Duration
	dirtyMarkerTTL time.Duration
}

func NewTranscriptCache(client *redisv9.Client, transcriptTTL, dirtyMarkerTTL time.Duration) *TranscriptCache {
	if transcriptTTL <= 0 {
		transcriptTTL = 60 * time.Second
	}
	if dirtyMarkerTTL <= 0 {
		dirtyMarkerTTL = 5 * time.Second
	}
	return &TranscriptCache{
		client:         client,
		transcriptTTL:  transcriptTTL,
		dirtyMarkerTTL: dirtyMarkerTTL,
	}
}

func (c *TranscriptCache) Get(ctx context.Context, userID uint, documentID string) ([]model.ChatTurn, bool, error) {
	raw, err := c.client.Get(ctx, c.transcriptKey(userID, documentID)).Result()
	if errors.Is(err, redisv9.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get transcript failed: %w", err)
	}

	var turns []model.ChatTurn
	if err := json.Unmarshal([]byte(raw), &turns); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached transcript failed: %w", err)
	}
	return turns, true, nil
}

func (c *TranscriptCache) Set(ctx context.Context, userID uint, documentID string, turns []model.ChatTurn) error {
	payload, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("marshal transcript cache failed: %w", err)
	}
	if err := c.client.Set(ctx, c.transcriptKey(userID, documentID), payload, c.transcriptTTL).Err(); err != nil {
		return fmt.Errorf("redis set transcript failed: %w", err)
	}
	return nil
}

// Invalidate drops the cached transcript and marks it dirty in one round trip.
func (c *TranscriptCache) Invalidate(ctx context.Context, userID uint, documentID string) error {
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, c.transcriptKey(userID, documentID))
	pipe.Set(ctx, c.dirtyKey(userID, documentID), "1", c.dirtyMarkerTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis invalidate transcript failed: %w", err)
	}
	return nil
}

func (c *TranscriptCache) IsDirty(ctx context.Context, userID uint, documentID string) (bool, error) {
	exists, err := c.client.Exists(ctx, c.dirtyKey(userID, documentID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis check dirty marker failed: %w", err)
	}
	return exists > 0, nil
}

func (c *TranscriptCache) transcriptKey(userID uint, documentID string) string {
	return fmt.Sprintf("docchat:transcript:%d:%s", userID, documentID)
}

func (c *TranscriptCache) dirtyKey(userID uint, documentID string) string {
	return fmt.Sprintf("docchat:transcript:dirty:%d:%s", userID, documentID)
}
