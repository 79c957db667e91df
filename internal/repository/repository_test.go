package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"docchat/internal/model"
	"docchat/internal/platform/sqlite"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Document{}, &model.ChatTurn{}))
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestUserRepositoryLookups(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))

	user := &model.User{Username: "alice", Email: "alice@example.com", PasswordHash: "x"}
	require.NoError(t, repo.Create(ctx, user))
	require.NotZero(t, user.ID)

	byName, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, user.ID, byName.ID)

	byEmail, err := repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)

	missing, err := repo.GetByID(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDocumentRepositoryScopesByOwner(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository(newTestDB(t))

	doc := &model.Document{ID: "doc1", UserID: 1, Name: "handbook.pdf", StoragePath: "users/1/files/doc1"}
	require.NoError(t, repo.Create(ctx, doc))

	got, err := repo.GetByUserAndID(ctx, 1, "doc1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "handbook.pdf", got.Name)

	other, err := repo.GetByUserAndID(ctx, 2, "doc1")
	require.NoError(t, err)
	assert.Nil(t, other)

	list, err := repo.ListByUser(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestChatTurnRepositoryOrdering(t *testing.T) {
	ctx := context.Background()
	repo := NewChatTurnRepository(newTestDB(t))

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	// Inserted out of order; the same timestamp on the last two is broken by id.
	turns := []model.ChatTurn{
		{DocumentID: "doc1", UserID: 1, Role: model.RoleAI, Message: "second", CreatedAt: base.Add(time.Second)},
		{DocumentID: "doc1", UserID: 1, Role: model.RoleHuman, Message: "first", CreatedAt: base},
		{DocumentID: "doc1", UserID: 1, Role: model.RoleHuman, Message: "third", CreatedAt: base.Add(2 * time.Second)},
		{DocumentID: "doc1", UserID: 1, Role: model.RoleAI, Message: "fourth", CreatedAt: base.Add(2 * time.Second)},
		{DocumentID: "doc2", UserID: 1, Role: model.RoleHuman, Message: "elsewhere", CreatedAt: base},
		{DocumentID: "doc1", UserID: 2, Role: model.RoleHuman, Message: "stranger", CreatedAt: base},
	}
	for i := range turns {
		require.NoError(t, repo.Create(ctx, &turns[i]))
	}

	asc, err := repo.ListAscending(ctx, 1, "doc1")
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third", "fourth"}, messages(asc))

	recent, err := repo.ListRecent(ctx, 1, "doc1", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"fourth", "third"}, messages(recent))

	humans, err := repo.CountByRole(ctx, 1, "doc1", model.RoleHuman)
	require.NoError(t, err)
	assert.Equal(t, int64(2), humans)
}

func messages(turns []model.ChatTurn) []string {
	out := make([]string, 0, len(turns))
	for _, t := range turns {
		out = append(out, t.Message)
	}
	return out
}

func TestChatTurnRepositoryListsLongConversationsInFull(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewChatTurnRepository(db)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	total := maxRecentTurns + 2
	turns := make([]model.ChatTurn, total)
	for i := range turns {
		role := model.RoleHuman
		if i%2 == 1 {
			role = model.RoleAI
		}
		turns[i] = model.ChatTurn{
			DocumentID: "doc1",
			UserID:     1,
			Role:       role,
			Message:    "turn",
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		}
	}
	require.NoError(t, db.CreateInBatches(turns, 200).Error)

	listed, err := repo.ListAscending(ctx, 1, "doc1")
	require.NoError(t, err)
	require.Len(t, listed, total)
	assert.True(t, listed[total-1].CreatedAt.Equal(base.Add(time.Duration(total-1)*time.Second)),
		"newest turn must be present")

	recent, err := repo.ListRecent(ctx, 1, "doc1", 0)
	require.NoError(t, err)
	require.Len(t, recent, maxRecentTurns)
	assert.Equal(t, listed[total-1].ID, recent[0].ID)
}
