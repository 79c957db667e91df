package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/model"
)

func TestTranscriptStore_AppendAndList(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store, _ := newTestTranscript(t, db, newTestRedis(t))

	require.NoError(t, store.Append(ctx, &model.ChatTurn{UserID: 1, DocumentID: "doc1", Role: model.RoleHuman, Message: "hi"}))
	first, err := store.List(ctx, 1, "doc1")
	require.NoError(t, err)
	require.Len(t, first, 1)

	require.NoError(t, store.Append(ctx, &model.ChatTurn{UserID: 1, DocumentID: "doc1", Role: model.RoleAI, Message: "hello"}))
	second, err := store.List(ctx, 1, "doc1")
	require.NoError(t, err)
	require.Len(t, second, 2, "a stale cached transcript must not be served")
	assert.Equal(t, "hello", second[1].Message)

	other, err := store.List(ctx, 2, "doc1")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestTranscriptStore_AppendValidates(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestTranscript(t, newTestDB(t), nil)

	err := store.Append(ctx, &model.ChatTurn{DocumentID: "doc1", Role: model.RoleHuman, Message: "x"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	err = store.Append(ctx, &model.ChatTurn{UserID: 1, DocumentID: "doc1", Role: "system", Message: "x"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestTranscriptStore_RecentNewestFirst(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestTranscript(t, newTestDB(t), nil)
	for _, msg := range []string{"one", "two", "three"} {
		require.NoError(t, store.Append(ctx, &model.ChatTurn{UserID: 1, DocumentID: "doc1", Role: model.RoleHuman, Message: msg}))
	}

	recent, err := store.Recent(ctx, 1, "doc1", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "three", recent[0].Message)
	assert.Equal(t, "two", recent[1].Message)
}

func TestTranscriptStore_SubscribeRequiresNotifier(t *testing.T) {
	store, _ := newTestTranscript(t, newTestDB(t), nil)
	_, err := store.Subscribe(context.Background(), 1, "doc1")
	assert.ErrorIs(t, err, ErrUpstream)
}
