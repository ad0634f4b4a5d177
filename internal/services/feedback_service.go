package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/keypass/internal/models"
)

// FeedbackRepository defines the interface for feedback storage
type FeedbackRepository interface {
	Create(ctx context.Context, feedback *models.Feedback) (*models.Feedback, error)
}

// FeedbackService records user feedback
type FeedbackService struct {
	repo   FeedbackRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewFeedbackService creates a new FeedbackService
func NewFeedbackService(repo FeedbackRepository, logger *slog.Logger) *FeedbackService {
	return &FeedbackService{repo: repo, logger: logger, now: time.Now}
}

// Send stores feedback from user. ownerID must name the caller.
func (s *FeedbackService) Send(ctx context.Context, user *models.User, ownerID, content string) (*models.Feedback, error) {
	if ownerID != user.ID {
		return nil, fmt.Errorf("%w: user not matched", models.ErrForbidden)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: feedback cannot be empty", models.ErrValidation)
	}

	feedback, err := s.repo.Create(ctx, &models.Feedback{
		OwnerID:   user.ID,
		Content:   content,
		CreatedAt: s.now(),
	})
	if err != nil {
		s.logger.Error("failed to store feedback", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("feedback received", slog.String("user_id", user.ID))
	return feedback, nil
}
