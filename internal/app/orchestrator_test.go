package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"docchat/internal/metrics"
	"docchat/internal/model"
	"docchat/internal/repository"
	"docchat/internal/vectorindex"
)

type ragStack struct {
	db           *gorm.DB
	transcript   *TranscriptStore
	loader       *fakeLoader
	model        *scriptedModel
	metrics      *metrics.Metrics
	orchestrator *Orchestrator
	chat         *ChatService
}

func newRAGStack(t *testing.T, cfg OrchestratorConfig, maxQuestions int) *ragStack {
	t.Helper()
	db := newTestDB(t)
	seedDocument(t, db, 1, "doc1")

	docs := repository.NewDocumentRepository(db)
	transcript, _ := newTestTranscript(t, db, nil)
	clock := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	transcript.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	loader := &fakeLoader{chunks: handbookChunks()}
	chatModel := &scriptedModel{rewriteReply: "shipping time", answerReply: "It takes 5 business days."}
	m := newTestMetrics()
	provisioner := NewProvisioner(docs, loader, &keywordEmbedder{}, vectorindex.NewMemoryIndex(3), nil, time.Minute, m)
	orchestrator := NewOrchestrator(provisioner, transcript, chatModel, cfg, m)

	return &ragStack{
		db:           db,
		transcript:   transcript,
		loader:       loader,
		model:        chatModel,
		metrics:      m,
		orchestrator: orchestrator,
		chat:         NewChatService(docs, transcript, orchestrator, maxQuestions),
	}
}

func (s *ragStack) appendTurn(t *testing.T, role, text string) {
	t.Helper()
	require.NoError(t, s.transcript.Append(context.Background(), &model.ChatTurn{
		UserID: 1, DocumentID: "doc1", Role: role, Message: text,
	}))
}

func contents(msgs []*schema.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

func TestOrchestrator_FirstQuestionSkipsRewrite(t *testing.T) {
	s := newRAGStack(t, OrchestratorConfig{TopK: 2}, 0)
	s.model.answerReply = "Within 30 days."

	answer, err := s.orchestrator.Answer(context.Background(), 1, "doc1", "What is the refund policy?")
	require.NoError(t, err)

	assert.Equal(t, "Within 30 days.", answer.Text)
	assert.Equal(t, "What is the refund policy?", answer.SearchQuery)
	require.NotEmpty(t, answer.Sources)
	assert.Contains(t, answer.Sources[0].Text, "Refunds")
	assert.Len(t, answer.Sources, 2)

	prompts := s.model.recorded()
	require.Len(t, prompts, 1, "only the answer prompt is sent without history")
	final := prompts[0]
	require.Len(t, final, 2)
	assert.Equal(t, schema.System, final[0].Role)
	assert.Contains(t, final[0].Content, "Refunds are available within 30 days")
	assert.Equal(t, schema.User, final[1].Role)
	assert.Equal(t, "What is the refund policy?", final[1].Content)
}

func TestOrchestrator_UsesHistoryForRewriteAndAnswer(t *testing.T) {
	s := newRAGStack(t, OrchestratorConfig{TopK: 1}, 0)
	s.appendTurn(t, model.RoleHuman, "What is the refund policy?")
	s.appendTurn(t, model.RoleAI, "Refunds are available within 30 days.")
	// The controller persists the question before asking for an answer.
	s.appendTurn(t, model.RoleHuman, "And how long does it take?")

	answer, err := s.orchestrator.Answer(context.Background(), 1, "doc1", "And how long does it take?")
	require.NoError(t, err)
	assert.Equal(t, "shipping time", answer.SearchQuery)
	require.Len(t, answer.Sources, 1)
	assert.Contains(t, answer.Sources[0].Text, "Shipping")

	prompts := s.model.recorded()
	require.Len(t, prompts, 2)

	rewrite := prompts[0]
	assert.Equal(t, []string{
		"What is the refund policy?",
		"Refunds are available within 30 days.",
		"And how long does it take?",
		rewriteInstruction,
	}, contents(rewrite))
	assert.Equal(t, schema.User, rewrite[0].Role)
	assert.Equal(t, schema.Assistant, rewrite[1].Role)

	final := prompts[1]
	assert.Equal(t, schema.System, final[0].Role)
	assert.Contains(t, final[0].Content, "Shipping takes 5 business days.")
	assert.Equal(t, []string{
		"What is the refund policy?",
		"Refunds are available within 30 days.",
		"And how long does it take?",
	}, contents(final[1:]))
	assert.Equal(t, schema.User, final[len(final)-1].Role, "the original question closes the prompt, not the rewrite")
}

func TestOrchestrator_EmptyRewriteFallsBackToQuestion(t *testing.T) {
	s := newRAGStack(t, OrchestratorConfig{TopK: 1}, 0)
	s.model.rewriteReply = "   "
	s.appendTurn(t, model.RoleHuman, "hello")
	s.appendTurn(t, model.RoleAI, "hi")

	answer, err := s.orchestrator.Answer(context.Background(), 1, "doc1", "Tell me about refunds")
	require.NoError(t, err)
	assert.Equal(t, "Tell me about refunds", answer.SearchQuery)
	assert.Contains(t, answer.Sources[0].Text, "Refunds")
}

func TestOrchestrator_EmptyAnswerUsesNotice(t *testing.T) {
	s := newRAGStack(t, OrchestratorConfig{}, 0)
	s.model.answerReply = ""

	answer, err := s.orchestrator.Answer(context.Background(), 1, "doc1", "anything")
	require.NoError(t, err)
	assert.Equal(t, emptyAnswerNotice, answer.Text)
}

func TestOrchestrator_HistoryWindow(t *testing.T) {
	s := newRAGStack(t, OrchestratorConfig{HistoryMaxTurns: 2}, 0)
	for i := 0; i < 3; i++ {
		s.appendTurn(t, model.RoleHuman, "question "+string(rune('a'+i)))
		s.appendTurn(t, model.RoleAI, "answer "+string(rune('a'+i)))
	}

	_, err := s.orchestrator.Answer(context.Background(), 1, "doc1", "refund?")
	require.NoError(t, err)

	prompts := s.model.recorded()
	require.Len(t, prompts, 2)
	final := prompts[1]
	assert.Equal(t, []string{"question c", "answer c", "refund?"}, contents(final[1:]))
}

func TestOrchestrator_ModelFailure(t *testing.T) {
	s := newRAGStack(t, OrchestratorConfig{}, 0)
	s.model.answerErr = errors.New("503 from provider")

	_, err := s.orchestrator.Answer(context.Background(), 1, "doc1", "refund?")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.AnswerTotal.WithLabelValues("error")))
}

func TestOrchestrator_Validation(t *testing.T) {
	s := newRAGStack(t, OrchestratorConfig{}, 0)
	ctx := context.Background()

	_, err := s.orchestrator.Answer(ctx, 0, "doc1", "q")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = s.orchestrator.Answer(ctx, 1, "doc1", "  ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.orchestrator.Answer(ctx, 1, "nope", "q")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Empty(t, s.model.recorded())
	assert.Equal(t, 3.0, testutil.ToFloat64(s.metrics.AnswerTotal.WithLabelValues("rejected")))
}

func TestWindowHistory_TokenBudgetDropsOldest(t *testing.T) {
	msgs := []*schema.Message{
		schema.UserMessage(strings.Repeat("a", 400)),
		schema.AssistantMessage(strings.Repeat("b", 400), nil),
		schema.UserMessage("short"),
	}
	got := windowHistory(msgs, 0, 120)
	assert.Equal(t, []string{strings.Repeat("b", 400), "short"}, contents(got))

	assert.Len(t, windowHistory(msgs, 0, 0), 3)
	assert.Len(t, windowHistory(msgs, 1, 0), 1)
}
