package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/keypass/internal/models"
	pkgauth "github.com/BradenHooton/keypass/pkg/auth"
	pkglogger "github.com/BradenHooton/keypass/pkg/logger"
)

// UserRepository defines the interface for user data access. Writes touch
// only the columns they name, so a caller holding an older copy of the user
// cannot overwrite a newer session or pending code.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	Delete(ctx context.Context, id string) error
	DemoteExpiredSubscriptions(ctx context.Context, now time.Time) (int64, error)

	SetVerificationCode(ctx context.Context, id, code string, expiresAt time.Time) (*models.User, error)
	SetResendAfter(ctx context.Context, id string, at time.Time) error
	StartSession(ctx context.Context, id, token string) (*models.User, error)
	ResetPin(ctx context.Context, id, pinHash string) error

	UpdateProfile(ctx context.Context, id, fullName string) (*models.User, error)
	UpdatePin(ctx context.Context, id, pinHash string) (*models.User, error)
	UpdateSubscription(ctx context.Context, id, plan, duration string, expiry *time.Time) (*models.User, error)
	UpdatePhrase(ctx context.Context, id string, phrase models.RecoveryPhrase) (*models.User, error)
}

// Detail types accepted by ChangeDetail
const (
	DetailName = "name"
	DetailPin  = "pin"
)

// PhraseInput carries the recovery material set by the client
type PhraseInput struct {
	PhraseDigest     string
	AnswerDigest     string
	EncryptedPhrase  string
	SecurityQuestion string
}

// ChangeDetailInput selects which account detail to change
type ChangeDetailInput struct {
	DetailType string
	FullName   string
	OldPin     string
	NewPin     string
}

// UserService handles account management for an authenticated user
type UserService struct {
	repo        UserRepository
	records     RecordRepository
	hasher      *pkgauth.Hasher
	payments    PaymentVerifier
	notifier    *Notifier
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	monthLength time.Duration
	now         func() time.Time
}

// NewUserService creates a new UserService
func NewUserService(
	repo UserRepository,
	records RecordRepository,
	hasher *pkgauth.Hasher,
	payments PaymentVerifier,
	notifier *Notifier,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
	monthLength time.Duration,
) *UserService {
	return &UserService{
		repo:        repo,
		records:     records,
		hasher:      hasher,
		payments:    payments,
		notifier:    notifier,
		logger:      logger,
		auditLogger: auditLogger,
		monthLength: monthLength,
		now:         time.Now,
	}
}

// SetClock overrides the time source used for subscription expiry
func (s *UserService) SetClock(now func() time.Time) {
	s.now = now
}

// SubscriptionLength converts a duration name into a length of time
func SubscriptionLength(duration string, month time.Duration) (time.Duration, bool) {
	switch duration {
	case models.DurationOneMonth:
		return month, true
	case models.DurationSixMonth:
		return 6 * month, true
	case models.DurationOneYear:
		return 12 * month, true
	}
	return 0, false
}

// SetPhrase stores server-side hashes of the client's phrase and answer digests
func (s *UserService) SetPhrase(ctx context.Context, user *models.User, input PhraseInput) (*models.User, error) {
	if input.PhraseDigest == "" || input.AnswerDigest == "" {
		return nil, fmt.Errorf("%w: phrase and answer digests are required", models.ErrValidation)
	}

	hashedPhrase, err := s.hasher.Hash(input.PhraseDigest)
	if err != nil {
		s.logger.Error("failed to hash phrase digest", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	hashedAnswer, err := s.hasher.Hash(input.AnswerDigest)
	if err != nil {
		s.logger.Error("failed to hash answer digest", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	updated, err := s.repo.UpdatePhrase(ctx, user.ID, models.RecoveryPhrase{
		HashedPhrase:     hashedPhrase,
		HashedAnswer:     hashedAnswer,
		EncryptedPhrase:  input.EncryptedPhrase,
		SecurityQuestion: input.SecurityQuestion,
	})
	if err != nil {
		return nil, s.storeError(user.ID, err)
	}

	s.auditLogger.LogAccountAction(ctx, pkglogger.EventSetPhrase, user.ID, nil)
	return updated, nil
}

// ChangeDetail updates either the display name or the PIN
func (s *UserService) ChangeDetail(ctx context.Context, user *models.User, input ChangeDetailInput) (*models.User, error) {
	var (
		updated *models.User
		err     error
	)

	switch input.DetailType {
	case DetailName:
		fullName := strings.TrimSpace(input.FullName)
		if fullName == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", models.ErrValidation)
		}
		updated, err = s.repo.UpdateProfile(ctx, user.ID, fullName)

	case DetailPin:
		if !s.hasher.Verify(input.OldPin, user.PinHash) {
			s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
				EventType:     pkglogger.EventChangePin,
				UserID:        user.ID,
				FailureReason: "invalid_pin",
			})
			return nil, fmt.Errorf("%w: pin does not match", models.ErrUnauthorized)
		}
		if err := pkgauth.ValidatePin(input.NewPin); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrValidation, err)
		}
		pinHash, hashErr := s.hasher.Hash(input.NewPin)
		if hashErr != nil {
			s.logger.Error("failed to hash pin", slog.Any("error", hashErr))
			return nil, models.ErrInternalServer
		}
		updated, err = s.repo.UpdatePin(ctx, user.ID, pinHash)

	default:
		return nil, fmt.Errorf("%w: unknown detail type %q", models.ErrValidation, input.DetailType)
	}
	if err != nil {
		return nil, s.storeError(user.ID, err)
	}

	if input.DetailType == DetailPin {
		s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
			EventType: pkglogger.EventChangePin,
			UserID:    user.ID,
			Success:   true,
		})
	}
	return updated, nil
}

// Subscribe upgrades the user to premium once the payment reference verifies
func (s *UserService) Subscribe(ctx context.Context, user *models.User, duration, reference string) (*models.User, error) {
	length, ok := SubscriptionLength(duration, s.monthLength)
	if !ok {
		return nil, fmt.Errorf("%w: unknown subscription duration %q", models.ErrValidation, duration)
	}

	if _, err := s.payments.Verify(ctx, reference); err != nil {
		s.logger.Warn("payment verification failed", slog.String("user_id", user.ID), slog.Any("error", err))
		if errors.Is(err, models.ErrPaymentVerification) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", models.ErrPaymentVerification, err)
	}

	expiry := s.now().Add(length)
	updated, err := s.repo.UpdateSubscription(ctx, user.ID, models.PlanPremium, duration, &expiry)
	if err != nil {
		return nil, s.storeError(user.ID, err)
	}

	s.logger.Info("user subscribed", slog.String("user_id", user.ID), slog.String("duration", duration))
	s.auditLogger.LogAccountAction(ctx, pkglogger.EventSubscribe, user.ID, map[string]string{"duration": duration})
	s.notifier.NotifyAdmin(ctx, "New Subscriber",
		fmt.Sprintf("%s just subscribed to a %s plan", user.FullName, duration))

	return updated, nil
}

// DeleteAccount removes every record of the user and then the user. If the
// records are gone but the user row survives, the error wraps
// models.ErrPartialDeletion. It returns how many records were deleted.
func (s *UserService) DeleteAccount(ctx context.Context, user *models.User, pin, reason string) (int64, error) {
	if !s.hasher.Verify(pin, user.PinHash) {
		s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventDeleteAccount,
			UserID:        user.ID,
			FailureReason: "invalid_pin",
		})
		return 0, fmt.Errorf("%w: pin does not match", models.ErrUnauthorized)
	}

	deleted, err := s.records.DeleteByOwner(ctx, user.ID)
	if err != nil {
		s.logger.Error("failed to delete user records", slog.String("user_id", user.ID), slog.Any("error", err))
		return 0, models.ErrInternalServer
	}

	remaining, err := s.records.ListByOwner(ctx, user.ID)
	if err != nil {
		s.logger.Error("failed to confirm record deletion", slog.String("user_id", user.ID), slog.Any("error", err))
		return deleted, models.ErrInternalServer
	}
	if len(remaining) > 0 {
		return deleted, fmt.Errorf("%w: %d records could not be deleted", models.ErrPartialDeletion, len(remaining))
	}

	if err := s.repo.Delete(ctx, user.ID); err != nil {
		s.logger.Error("records deleted but user delete failed",
			slog.String("user_id", user.ID),
			slog.Int64("records_deleted", deleted),
			slog.Any("error", err))
		return deleted, fmt.Errorf("%w: %d records removed, user remains: %v", models.ErrPartialDeletion, deleted, err)
	}

	s.logger.Info("account deleted", slog.String("user_id", user.ID), slog.Int64("records_deleted", deleted))
	s.auditLogger.LogAccountAction(ctx, pkglogger.EventDeleteAccount, user.ID, map[string]string{
		"records_deleted": strconv.FormatInt(deleted, 10),
	})
	s.notifier.NotifyAdmin(ctx, "User Account Deleted",
		fmt.Sprintf("%s just deleted their account because %s. %d records associated with this user were also deleted",
			user.FullName, reason, deleted))

	return deleted, nil
}

func (s *UserService) storeError(userID string, err error) error {
	if errors.Is(err, models.ErrNotFound) {
		return models.ErrNotFound
	}
	s.logger.Error("failed to update user", slog.String("user_id", userID), slog.Any("error", err))
	return models.ErrInternalServer
}
