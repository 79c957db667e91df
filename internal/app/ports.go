package app

import (
	"context"
	"io"
	"time"

	"docchat/internal/lock"
	"docchat/internal/model"
	"docchat/internal/pkg/textsplit"
	"docchat/internal/vectorindex"
)

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uint) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

type DocumentStore interface {
	Create(ctx context.Context, doc *model.Document) error
	GetByUserAndID(ctx context.Context, userID uint, id string) (*model.Document, error)
	ListByUser(ctx context.Context, userID uint) ([]model.Document, error)
}

type TurnRepository interface {
	Create(ctx context.Context, turn *model.ChatTurn) error
	ListAscending(ctx context.Context, userID uint, documentID string) ([]model.ChatTurn, error)
	ListRecent(ctx context.Context, userID uint, documentID string, limit int) ([]model.ChatTurn, error)
	CountByRole(ctx context.Context, userID uint, documentID, role string) (int64, error)
}

type TranscriptCache interface {
	Get(ctx context.Context, userID uint, documentID string) ([]model.ChatTurn, bool, error)
	Set(ctx context.Context, userID uint, documentID string, turns []model.ChatTurn) error
	Invalidate(ctx context.Context, userID uint, documentID string) error
	IsDirty(ctx context.Context, userID uint, documentID string) (bool, error)
}

type ChangeNotifier interface {
	Publish(ctx context.Context, userID uint, documentID string) error
	Subscribe(ctx context.Context, userID uint, documentID string) (<-chan struct{}, error)
}

type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (lock.ReleaseFunc, error)
}

type ObjectStore interface {
	Save(ctx context.Context, objectPath string, r io.Reader) (downloadURL string, written int64, err error)
}

type ProvisionJobPublisher interface {
	PublishProvision(ctx context.Context, job model.ProvisionJob) error
}

// ChunkLoader turns a stored document into embeddable chunks.
type ChunkLoader interface {
	Load(ctx context.Context, doc *model.Document) ([]textsplit.Chunk, error)
}

type EmbeddingProvisioner interface {
	EnsureEmbeddings(ctx context.Context, userID uint, documentID string) (*vectorindex.Handle, error)
}

type Answerer interface {
	Answer(ctx context.Context, userID uint, documentID, question string) (*Answer, error)
}
