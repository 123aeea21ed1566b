package app

import (
	"context"
	"strings"

	"studynotes-client/internal/domain"
)

type FeedbackBackend interface {
	SubmitFeedback(ctx context.Context, req domain.FeedbackRequest) (domain.Feedback, error)
	Feedback(ctx context.Context, contentType domain.ContentType, contentID string) ([]domain.Feedback, error)
}

// FeedbackService rates summaries and quizzes.
type FeedbackService struct {
	backend FeedbackBackend
}

func NewFeedbackService(backend FeedbackBackend) *FeedbackService {
	return &FeedbackService{backend: backend}
}

// Submit validates req before it reaches the backend. Validation failures wrap ErrInvalidFeedback.
func (s *FeedbackService) Submit(ctx context.Context, req domain.FeedbackRequest) (domain.Feedback, error) {
	req.Comment = strings.TrimSpace(req.Comment)
	if err := validate.Struct(req); err != nil {
		return domain.Feedback{}, validationError(domain.ErrInvalidFeedback, err)
	}
	return s.backend.SubmitFeedback(ctx, req)
}

func (s *FeedbackService) List(ctx context.Context, contentType domain.ContentType, contentID string) ([]domain.Feedback, error) {
	if err := validate.Var(string(contentType), "required,oneof=summary quiz"); err != nil {
		return nil, validationError(domain.ErrInvalidFeedback, err)
	}
	if contentID == "" {
		return nil, validationError(domain.ErrInvalidFeedback, validate.Var(contentID, "required"))
	}
	return s.backend.Feedback(ctx, contentType, contentID)
}
