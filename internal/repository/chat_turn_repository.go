package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"docchat/internal/model"
)

// maxRecentTurns caps history reads; the full transcript is never capped.
const maxRecentTurns = 1000

type ChatTurnRepository struct {
	db *gorm.DB
}

func NewChatTurnRepository(db *gorm.DB) *ChatTurnRepository {
	return &ChatTurnRepository{db: db}
}

func (r *ChatTurnRepository) Create(ctx context.Context, turn *model.ChatTurn) error {
	if err := r.db.WithContext(ctx).Create(turn).Error; err != nil {
		return fmt.Errorf("create chat turn failed: %w", err)
	}
	return nil
}

// ListAscending returns the whole conversation, oldest first.
func (r *ChatTurnRepository) ListAscending(ctx context.Context, userID uint, documentID string) ([]model.ChatTurn, error) {
	var turns []model.ChatTurn
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND document_id = ?", userID, documentID).
		Order("created_at ASC").Order("id ASC").
		Find(&turns).Error
	if err != nil {
		return nil, fmt.Errorf("list chat turns failed: %w", err)
	}
	return turns, nil
}

// ListRecent returns at most limit turns, newest first.
func (r *ChatTurnRepository) ListRecent(ctx context.Context, userID uint, documentID string, limit int) ([]model.ChatTurn, error) {
	if limit <= 0 || limit > maxRecentTurns {
		limit = maxRecentTurns
	}

	var turns []model.ChatTurn
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND document_id = ?", userID, documentID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&turns).Error
	if err != nil {
		return nil, fmt.Errorf("list recent chat turns failed: %w", err)
	}
	return turns, nil
}

func (r *ChatTurnRepository) CountByRole(ctx context.Context, userID uint, documentID, role string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.ChatTurn{}).
		Where("user_id = ? AND document_id = ? AND role = ?", userID, documentID, role).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count chat turns failed: %w", err)
	}
	return n, nil
}
