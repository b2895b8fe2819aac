package services

import (
	"context"
	"strings"

	"budgeteer/internal/core"
	"budgeteer/internal/storage"
)

type FeedbackService struct {
	repo  storage.Repository
	clock Clock
}

func (s *FeedbackService) Submit(ctx context.Context, userID, message string, rating int) (core.Feedback, error) {
	f := core.Feedback{
		ID:        newID(),
		UserID:    userID,
		Message:   strings.TrimSpace(message),
		Rating:    rating,
		CreatedAt: s.clock().UTC(),
	}
	if err := f.Validate(); err != nil {
		return core.Feedback{}, err
	}
	if err := s.repo.CreateFeedback(ctx, f); err != nil {
		return core.Feedback{}, err
	}
	return f, nil
}

func (s *FeedbackService) List(ctx context.Context, userID string) ([]core.Feedback, error) {
	return s.repo.ListFeedback(ctx, userID)
}
