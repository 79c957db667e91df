package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/prometheus/client_golang/prometheus"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"docchat/internal/cache"
	"docchat/internal/lock"
	"docchat/internal/metrics"
	"docchat/internal/model"
	"docchat/internal/pkg/textsplit"
	"docchat/internal/platform/sqlite"
	"docchat/internal/pubsub"
	"docchat/internal/repository"
)

func newTestMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Document{}, &model.ChatTurn{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newTestRedis(t *testing.T) *redisv9.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// newTestTranscript builds a transcript store over SQLite and, when rdb is
// non-nil, the Redis cache and notifier.
func newTestTranscript(t *testing.T, db *gorm.DB, rdb *redisv9.Client) (*TranscriptStore, *repository.ChatTurnRepository) {
	t.Helper()
	repo := repository.NewChatTurnRepository(db)
	if rdb == nil {
		return NewTranscriptStore(repo, nil, nil), repo
	}
	return NewTranscriptStore(repo,
		cache.NewTranscriptCache(rdb, time.Minute, 5*time.Second),
		pubsub.NewRedisNotifier(rdb),
	), repo
}

func seedDocument(t *testing.T, db *gorm.DB, userID uint, id string) *model.Document {
	t.Helper()
	doc := &model.Document{
		ID:          id,
		UserID:      userID,
		Name:        "handbook.pdf",
		StoragePath: "users/1/files/" + id,
		DownloadURL: "http://files.local/users/1/files/" + id,
		ContentType: "application/pdf",
	}
	require.NoError(t, repository.NewDocumentRepository(db).Create(context.Background(), doc))
	return doc
}

type fakeLoader struct {
	calls  atomic.Int32
	chunks []textsplit.Chunk
	err    error
	delay  time.Duration
}

func (f *fakeLoader) Load(ctx context.Context, doc *model.Document) ([]textsplit.Chunk, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.chunks, f.err
}

// keywordEmbedder maps text onto a 3-dimensional space so that retrieval in
// tests is predictable: refunds, shipping, everything else.
type keywordEmbedder struct {
	docCalls   atomic.Int32
	queryCalls atomic.Int32
	err        error
}

func keywordVector(text string) []float32 {
	t := strings.ToLower(text)
	v := []float32{0, 0, 0.1}
	if strings.Contains(t, "refund") {
		v[0] = 1
	}
	if strings.Contains(t, "ship") {
		v[1] = 1
	}
	return v
}

func (e *keywordEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.docCalls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = keywordVector(t)
	}
	return out, nil
}

func (e *keywordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.queryCalls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	return keywordVector(text), nil
}

// scriptedModel answers rewrite prompts with rewriteReply and everything
// else with answerReply, recording every prompt it sees.
type scriptedModel struct {
	mu           sync.Mutex
	prompts      [][]*schema.Message
	rewriteReply string
	answerReply  string
	answerErr    error
}

func (m *scriptedModel) Generate(_ context.Context, input []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, input)
	m.mu.Unlock()

	if isRewritePrompt(input) {
		return schema.AssistantMessage(m.rewriteReply, nil), nil
	}
	if m.answerErr != nil {
		return nil, m.answerErr
	}
	return schema.AssistantMessage(m.answerReply, nil), nil
}

func (m *scriptedModel) Stream(context.Context, []*schema.Message, ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported")
}

func (m *scriptedModel) recorded() [][]*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]*schema.Message, len(m.prompts))
	copy(out, m.prompts)
	return out
}

func isRewritePrompt(msgs []*schema.Message) bool {
	return len(msgs) > 0 && msgs[len(msgs)-1].Content == rewriteInstruction
}

type countingLocker struct {
	inner    *lock.RedisLocker
	acquired atomic.Int32
}

func (l *countingLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (lock.ReleaseFunc, error) {
	release, err := l.inner.Acquire(ctx, key, ttl)
	if err == nil {
		l.acquired.Add(1)
	}
	return release, err
}

type fakePublisher struct {
	jobs []model.ProvisionJob
	err  error
}

func (p *fakePublisher) PublishProvision(_ context.Context, job model.ProvisionJob) error {
	if p.err != nil {
		return p.err
	}
	p.jobs = append(p.jobs, job)
	return nil
}
