package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"docchat/internal/logging"
	"docchat/internal/model"
)

// TranscriptStore is the append-only log of chat turns per (user, document).
// The database is authoritative; the Redis cache and change notifications
// are best effort and never fail a write.
type TranscriptStore struct {
	turns    TurnRepository
	cache    TranscriptCache
	notifier ChangeNotifier
	now      func() time.Time
}

func NewTranscriptStore(turns TurnRepository, cache TranscriptCache, notifier ChangeNotifier) *TranscriptStore {
	return &TranscriptStore{
		turns:    turns,
		cache:    cache,
		notifier: notifier,
		now:      time.Now,
	}
}

func (s *TranscriptStore) Append(ctx context.Context, turn *model.ChatTurn) error {
	if turn.UserID == 0 || strings.TrimSpace(turn.DocumentID) == "" {
		return fmt.Errorf("%w: turn owner is required", ErrInvalidInput)
	}
	if turn.Role != model.RoleHuman && turn.Role != model.RoleAI {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, turn.Role)
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = s.now()
	}
	if err := s.turns.Create(ctx, turn); err != nil {
		return fmt.Errorf("%w: append turn: %w", ErrUpstream, err)
	}

	log := logging.FromContext(ctx)
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, turn.UserID, turn.DocumentID); err != nil {
			log.Warn("invalidate transcript cache failed", "document_id", turn.DocumentID, "error", err)
		}
	}
	if s.notifier != nil {
		if err := s.notifier.Publish(ctx, turn.UserID, turn.DocumentID); err != nil {
			log.Warn("publish transcript change failed", "document_id", turn.DocumentID, "error", err)
		}
	}
	return nil
}

// List returns the whole transcript oldest first.
func (s *TranscriptStore) List(ctx context.Context, userID uint, documentID string) ([]model.ChatTurn, error) {
	if s.cache != nil {
		dirty, err := s.cache.IsDirty(ctx, userID, documentID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.cache.Get(ctx, userID, documentID); cacheErr == nil && hit {
				return cached, nil
			}
		}
	}

	turns, err := s.turns.ListAscending(ctx, userID, documentID)
	if err != nil {
		return nil, fmt.Errorf("%w: list transcript: %w", ErrUpstream, err)
	}
	if s.cache != nil {
		if dirty, err := s.cache.IsDirty(ctx, userID, documentID); err == nil && !dirty {
			_ = s.cache.Set(ctx, userID, documentID, turns)
		}
	}
	return turns, nil
}

// Recent returns at most limit turns, newest first.
func (s *TranscriptStore) Recent(ctx context.Context, userID uint, documentID string, limit int) ([]model.ChatTurn, error) {
	turns, err := s.turns.ListRecent(ctx, userID, documentID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list recent turns: %w", ErrUpstream, err)
	}
	return turns, nil
}

func (s *TranscriptStore) CountByRole(ctx context.Context, userID uint, documentID, role string) (int64, error) {
	n, err := s.turns.CountByRole(ctx, userID, documentID, role)
	if err != nil {
		return 0, fmt.Errorf("%w: count turns: %w", ErrUpstream, err)
	}
	return n, nil
}

// Subscribe emits the current transcript immediately and a fresh snapshot
// after every append. The channel closes when ctx ends.
func (s *TranscriptStore) Subscribe(ctx context.Context, userID uint, documentID string) (<-chan []model.ChatTurn, error) {
	if s.notifier == nil {
		return nil, fmt.Errorf("%w: live transcript updates are not configured", ErrUpstream)
	}
	changes, err := s.notifier.Subscribe(ctx, userID, documentID)
	if err != nil {
		return nil, fmt.Errorf("%w: subscribe transcript: %w", ErrUpstream, err)
	}
	initial, err := s.List(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}

	out := make(chan []model.ChatTurn, 1)
	out <- initial
	go func() {
		defer close(out)
		log := logging.FromContext(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				snapshot, err := s.List(ctx, userID, documentID)
				if err != nil {
					log.Warn("reload transcript snapshot failed", "document_id", documentID, "error", err)
					continue
				}
				select {
				case out <- snapshot:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
