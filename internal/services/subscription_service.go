package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SubscriptionService demotes premium users whose subscription ran out
type SubscriptionService struct {
	repo     UserRepository
	notifier *Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewSubscriptionService creates a new SubscriptionService
func NewSubscriptionService(repo UserRepository, notifier *Notifier, logger *slog.Logger) *SubscriptionService {
	return &SubscriptionService{
		repo:     repo,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock overrides the time source
func (s *SubscriptionService) SetClock(now func() time.Time) {
	s.now = now
}

// DemoteExpired moves expired premium users back to free and returns the count.
// Failures are logged only.
func (s *SubscriptionService) DemoteExpired(ctx context.Context) int64 {
	demoted, err := s.repo.DemoteExpiredSubscriptions(ctx, s.now())
	if err != nil {
		s.logger.Error("subscription sweep failed", slog.Any("error", err))
		return 0
	}

	if demoted == 0 {
		s.logger.Info("no expired subscriptions")
		return 0
	}

	s.logger.Info("expired subscriptions demoted", slog.Int64("users", demoted))
	s.notifier.NotifyAdmin(ctx, "Subscription Alert",
		fmt.Sprintf("Updated %d users whose subscriptions have expired", demoted))

	return demoted
}
