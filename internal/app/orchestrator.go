package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"docchat/internal/logging"
	"docchat/internal/metrics"
	"docchat/internal/model"
	"docchat/internal/vectorindex"
)

type OrchestratorConfig struct {
	TopK             int
	HistoryMaxTurns  int
	HistoryMaxTokens int
}

type Answer struct {
	Text        string              `json:"text"`
	SearchQuery string              `json:"search_query"`
	Sources     []vectorindex.Match `json:"sources"`
}

type recentTurnReader interface {
	Recent(ctx context.Context, userID uint, documentID string, limit int) ([]model.ChatTurn, error)
}

// Orchestrator answers a question about one document using the prior
// conversation twice: once to rewrite the question into a standalone search
// query, and once as context for the final answer. It never persists turns.
type Orchestrator struct {
	provisioner EmbeddingProvisioner
	transcript  recentTurnReader
	chatModel   einomodel.BaseChatModel
	cfg         OrchestratorConfig
	metrics     *metrics.Metrics

	rewriteTemplate prompt.ChatTemplate
	answerTemplate  prompt.ChatTemplate
}

func NewOrchestrator(
	provisioner EmbeddingProvisioner,
	transcript recentTurnReader,
	chatModel einomodel.BaseChatModel,
	cfg OrchestratorConfig,
	m *metrics.Metrics,
) *Orchestrator {
	if cfg.TopK <= 0 {
		cfg.TopK = 4
	}
	return &Orchestrator{
		provisioner:     provisioner,
		transcript:      transcript,
		chatModel:       chatModel,
		cfg:             cfg,
		metrics:         m,
		rewriteTemplate: newRewriteTemplate(),
		answerTemplate:  newAnswerTemplate(),
	}
}

func (o *Orchestrator) Answer(ctx context.Context, userID uint, documentID, question string) (answer *Answer, err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		switch {
		case err == nil:
		case IsClientError(err):
			outcome = "rejected"
		default:
			outcome = "error"
		}
		o.metrics.AnswerTotal.WithLabelValues(outcome).Inc()
		o.metrics.AnswerDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", ErrInvalidInput)
	}

	handle, err := o.provisioner.EnsureEmbeddings(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}

	history, err := o.loadHistory(ctx, userID, documentID, question)
	if err != nil {
		return nil, err
	}

	searchQuery, err := o.rewriteQuery(ctx, history, question)
	if err != nil {
		return nil, err
	}

	matches, err := handle.Search(ctx, searchQuery, o.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("%w: retrieve context: %w", ErrUpstream, err)
	}

	msgs, err := o.answerTemplate.Format(ctx, map[string]any{
		"context": joinContext(matches),
		"history": history,
		"input":   question,
	})
	if err != nil {
		return nil, fmt.Errorf("format answer prompt failed: %w", err)
	}
	reply, err := o.chatModel.Generate(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("%w: generate answer: %w", ErrUpstream, err)
	}

	text := strings.TrimSpace(reply.Content)
	if text == "" {
		text = emptyAnswerNotice
	}
	logging.FromContext(ctx).Info("answer generated",
		"document_id", documentID,
		"history_messages", len(history),
		"sources", len(matches),
	)
	return &Answer{Text: text, SearchQuery: searchQuery, Sources: matches}, nil
}

// loadHistory returns the prior conversation, oldest first, without the
// human turn that carries the question being answered right now.
func (o *Orchestrator) loadHistory(ctx context.Context, userID uint, documentID, question string) ([]*schema.Message, error) {
	limit := o.cfg.HistoryMaxTurns
	if limit > 0 {
		limit++
	}
	recent, err := o.transcript.Recent(ctx, userID, documentID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: load transcript: %w", ErrUpstream, err)
	}

	turns := chronological(recent)
	if n := len(turns); n > 0 {
		last := turns[n-1]
		if last.Role == model.RoleHuman && strings.TrimSpace(last.Message) == question {
			turns = turns[:n-1]
		}
	}
	return windowHistory(toSchemaMessages(turns), o.cfg.HistoryMaxTurns, o.cfg.HistoryMaxTokens), nil
}

func (o *Orchestrator) rewriteQuery(ctx context.Context, history []*schema.Message, question string) (string, error) {
	if len(history) == 0 {
		return question, nil
	}

	msgs, err := o.rewriteTemplate.Format(ctx, map[string]any{
		"history": history,
		"input":   question,
	})
	if err != nil {
		return "", fmt.Errorf("format rewrite prompt failed: %w", err)
	}
	reply, err := o.chatModel.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("%w: rewrite query: %w", ErrUpstream, err)
	}
	if q := strings.TrimSpace(reply.Content); q != "" {
		return q, nil
	}
	return question, nil
}

func joinContext(matches []vectorindex.Match) string {
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		parts = append(parts, m.Text)
	}
	return strings.Join(parts, "\n\n")
}
