package app

import (
	"context"
	"fmt"
	"strings"

	"docchat/internal/logging"
	"docchat/internal/model"
	"docchat/internal/vectorindex"
)

type ChatService struct {
	docs         DocumentStore
	transcript   *TranscriptStore
	answerer     Answerer
	maxQuestions int
}

type AskResult struct {
	Human       model.ChatTurn      `json:"human"`
	AI          model.ChatTurn      `json:"ai"`
	SearchQuery string              `json:"search_query"`
	Sources     []vectorindex.Match `json:"sources"`
}

// NewChatService wires the server half of a document conversation.
// maxQuestions caps human turns per document; zero means unlimited.
func NewChatService(docs DocumentStore, transcript *TranscriptStore, answerer Answerer, maxQuestions int) *ChatService {
	return &ChatService{
		docs:         docs,
		transcript:   transcript,
		answerer:     answerer,
		maxQuestions: maxQuestions,
	}
}

// Ask persists the question, answers it and persists the answer. When the
// answer fails the question stays in the transcript and no AI turn is
// written.
func (s *ChatService) Ask(ctx context.Context, userID uint, documentID, question string) (*AskResult, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", ErrInvalidInput)
	}
	if err := s.ensureOwned(ctx, userID, documentID); err != nil {
		return nil, err
	}

	if s.maxQuestions > 0 {
		asked, err := s.transcript.CountByRole(ctx, userID, documentID, model.RoleHuman)
		if err != nil {
			return nil, err
		}
		if asked >= int64(s.maxQuestions) {
			return nil, fmt.Errorf("%w: %d of %d questions used", ErrQuotaExceeded, asked, s.maxQuestions)
		}
	}

	human := model.ChatTurn{
		DocumentID: documentID,
		UserID:     userID,
		Role:       model.RoleHuman,
		Message:    question,
	}
	if err := s.transcript.Append(ctx, &human); err != nil {
		return nil, err
	}

	answer, err := s.answerer.Answer(ctx, userID, documentID, question)
	if err != nil {
		logging.FromContext(ctx).Error("answer question failed", "document_id", documentID, "error", err)
		return nil, err
	}

	reply := model.ChatTurn{
		DocumentID: documentID,
		UserID:     userID,
		Role:       model.RoleAI,
		Message:    answer.Text,
	}
	if err := s.transcript.Append(ctx, &reply); err != nil {
		return nil, err
	}

	return &AskResult{
		Human:       human,
		AI:          reply,
		SearchQuery: answer.SearchQuery,
		Sources:     answer.Sources,
	}, nil
}

func (s *ChatService) Transcript(ctx context.Context, userID uint, documentID string) ([]model.ChatTurn, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	if err := s.ensureOwned(ctx, userID, documentID); err != nil {
		return nil, err
	}
	return s.transcript.List(ctx, userID, documentID)
}

func (s *ChatService) Subscribe(ctx context.Context, userID uint, documentID string) (<-chan []model.ChatTurn, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	if err := s.ensureOwned(ctx, userID, documentID); err != nil {
		return nil, err
	}
	return s.transcript.Subscribe(ctx, userID, documentID)
}

func (s *ChatService) ensureOwned(ctx context.Context, userID uint, documentID string) error {
	if strings.TrimSpace(documentID) == "" {
		return fmt.Errorf("%w: document id is required", ErrInvalidInput)
	}
	doc, err := s.docs.GetByUserAndID(ctx, userID, documentID)
	if err != nil {
		return fmt.Errorf("%w: load document: %w", ErrUpstream, err)
	}
	if doc == nil {
		return fmt.Errorf("%w: document %s", ErrNotFound, documentID)
	}
	return nil
}
