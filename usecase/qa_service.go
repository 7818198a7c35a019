package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jbergloda1/swha-backend/domain/repositories"
)

const (
	maxQuestionChars = 1000
	maxContextChars  = 20000
	maxBatchSize     = 10
	batchConcurrency = 4
)

// QAService answers questions about a caller-supplied passage
type QAService struct {
	answerer repositories.QuestionAnswerer
	logger   *zap.Logger
}

// NewQAService creates a new question answering service
func NewQAService(answerer repositories.QuestionAnswerer, logger *zap.Logger) *QAService {
	return &QAService{answerer: answerer, logger: logger}
}

// Question is one question/context pair
type Question struct {
	Question string `json:"question"`
	Context  string `json:"context"`
}

// QAResult is the answer to a single question
type QAResult struct {
	Question         string `json:"question"`
	Answer           string `json:"answer"`
	IsAnswerable     bool   `json:"is_answerable"`
	ProcessingTimeMs int64  `json:"processing_time_ms"`
	Error            string `json:"error,omitempty"`
}

// Answer answers a single question
func (s *QAService) Answer(ctx context.Context, q Question) (*QAResult, error) {
	if err := validateQuestion(q); err != nil {
		return nil, err
	}

	start := time.Now()
	answer, err := s.answerer.Answer(ctx, q.Question, q.Context)
	if err != nil {
		s.logger.Error("Question answering failed",
			zap.Int("questionLength", len(q.Question)),
			zap.Error(err))
		return nil, fmt.Errorf("failed to answer question: %w", err)
	}

	return &QAResult{
		Question:         q.Question,
		Answer:           answer.Text,
		IsAnswerable:     answer.Answerable,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

// AnswerBatch answers up to maxBatchSize questions concurrently. A failing
// item carries its error in the result instead of failing the batch.
func (s *QAService) AnswerBatch(ctx context.Context, questions []Question) ([]QAResult, error) {
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: at least one question is required", ErrInvalidInput)
	}
	if len(questions) > maxBatchSize {
		return nil, fmt.Errorf("%w: at most %d questions per batch", ErrInvalidInput, maxBatchSize)
	}
	for i, q := range questions {
		if err := validateQuestion(q); err != nil {
			return nil, fmt.Errorf("question %d: %w", i, err)
		}
	}

	results := make([]QAResult, len(questions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, q := range questions {
		g.Go(func() error {
			result, err := s.Answer(gctx, q)
			if err != nil {
				results[i] = QAResult{Question: q.Question, Error: err.Error()}
				return nil
			}
			results[i] = *result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Info("Answered question batch", zap.Int("questions", len(questions)))
	return results, nil
}

func validateQuestion(q Question) error {
	question := strings.TrimSpace(q.Question)
	passage := strings.TrimSpace(q.Context)
	switch {
	case question == "":
		return fmt.Errorf("%w: question cannot be empty", ErrInvalidInput)
	case passage == "":
		return fmt.Errorf("%w: context cannot be empty", ErrInvalidInput)
	case len(question) > maxQuestionChars:
		return fmt.Errorf("%w: question exceeds %d characters", ErrInvalidInput, maxQuestionChars)
	case len(passage) > maxContextChars:
		return fmt.Errorf("%w: context exceeds %d characters", ErrInvalidInput, maxContextChars)
	}
	return nil
}
