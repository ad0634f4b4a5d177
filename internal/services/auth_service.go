package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/keypass/internal/auth"
	"github.com/BradenHooton/keypass/internal/models"
	pkgauth "github.com/BradenHooton/keypass/pkg/auth"
	pkglogger "github.com/BradenHooton/keypass/pkg/logger"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// CodeGenerator produces one-time email codes
type CodeGenerator interface {
	Generate() (string, error)
}

// AuthSettings holds the timing rules of the OTP flow
type AuthSettings struct {
	OTPTTL         time.Duration
	ResendCooldown time.Duration
}

// RegisterInput carries the fields accepted by Register
type RegisterInput struct {
	FullName string
	Email    string
	Pin      string
	Salt     string
}

// AuthService drives a user from registration through OTP verification to a session.
type AuthService struct {
	repo        UserRepository
	hasher      *pkgauth.Hasher
	codes       CodeGenerator
	tm          *auth.TokenManager
	guest       *auth.GuestPolicy
	notifier    *Notifier
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	settings    AuthSettings
	now         func() time.Time
}

// NewAuthService creates a new AuthService
func NewAuthService(
	repo UserRepository,
	hasher *pkgauth.Hasher,
	codes CodeGenerator,
	tm *auth.TokenManager,
	guest *auth.GuestPolicy,
	notifier *Notifier,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
	settings AuthSettings,
) *AuthService {
	return &AuthService{
		repo:        repo,
		hasher:      hasher,
		codes:       codes,
		tm:          tm,
		guest:       guest,
		notifier:    notifier,
		logger:      logger,
		auditLogger: auditLogger,
		settings:    settings,
		now:         time.Now,
	}
}

// SetClock overrides the time source used for code expiry and cooldowns
func (s *AuthService) SetClock(now func() time.Time) {
	s.now = now
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an unverified user and emails the first code.
// A failed email does not undo the registration: the user is returned
// together with an error wrapping models.ErrDelivery.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	fullName := strings.TrimSpace(input.FullName)
	if fullName == "" {
		return nil, fmt.Errorf("%w: name cannot be empty", models.ErrValidation)
	}

	email := normalizeEmail(input.Email)
	if err := validate.Var(email, "required,email"); err != nil {
		return nil, fmt.Errorf("%w: this is not a valid email", models.ErrValidation)
	}

	if err := pkgauth.ValidatePin(input.Pin); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventRegister,
			Email:         email,
			FailureReason: "email_taken",
		})
		return nil, fmt.Errorf("%w: email already registered", models.ErrConflict)
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check existing email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	pinHash, err := s.hasher.Hash(input.Pin)
	if err != nil {
		s.logger.Error("failed to hash pin", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	code, err := s.codes.Generate()
	if err != nil {
		s.logger.Error("failed to generate verification code", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	now := s.now()
	user := &models.User{
		FullName:        fullName,
		Email:           email,
		PinHash:         pinHash,
		Salt:            input.Salt,
		Plan:            models.PlanFree,
		LastOtpSentTime: now,
		CreatedAt:       now,
	}
	user.SetVerificationCode(code, now.Add(s.settings.OTPTTL))

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, fmt.Errorf("%w: email already registered", models.ErrConflict)
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user registered", slog.String("user_id", created.ID))
	s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventRegister,
		UserID:    created.ID,
		Success:   true,
	})

	if err := s.notifier.SendVerificationCode(ctx, email, code, s.settings.OTPTTL); err != nil {
		return created, fmt.Errorf("%w: %v", models.ErrDelivery, err)
	}

	return created, nil
}

// Login checks the PIN and issues a fresh code. The returned user carries the
// pending code fields.
func (s *AuthService) Login(ctx context.Context, email, pin string) (*models.User, error) {
	user, err := s.lookupByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
				EventType:     pkglogger.EventLogin,
				Email:         email,
				FailureReason: "unknown_email",
			})
		}
		return nil, err
	}

	if !s.hasher.Verify(pin, user.PinHash) {
		s.logger.Info("login failed: invalid pin", slog.String("user_id", user.ID))
		s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventLogin,
			UserID:        user.ID,
			FailureReason: "invalid_pin",
		})
		return nil, models.ErrUnauthorized
	}

	updated, _, err := s.issueCode(ctx, user)
	if err != nil {
		return nil, err
	}

	s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventLogin,
		UserID:    user.ID,
		Success:   true,
	})

	return updated, nil
}

// VerifyEmail consumes the pending code and starts a new session, replacing
// whatever session the user had before.
func (s *AuthService) VerifyEmail(ctx context.Context, email, otp string) (*models.User, error) {
	user, err := s.lookupByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if err := s.checkCode(user, otp); err != nil {
		s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventVerifyEmail,
			UserID:        user.ID,
			FailureReason: codeFailureReason(err),
		})
		return nil, err
	}

	token, _, err := s.tm.GenerateSessionToken(user.ID)
	if err != nil {
		s.logger.Error("failed to generate session token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	updated, err := s.repo.StartSession(ctx, user.ID, token)
	if err != nil {
		s.logger.Error("failed to store session", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("session started", slog.String("user_id", user.ID))
	s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventVerifyEmail,
		UserID:    user.ID,
		Success:   true,
	})

	return updated, nil
}

// ResendCode issues a new code unless the resend cooldown is still running
func (s *AuthService) ResendCode(ctx context.Context, email string) error {
	user, err := s.lookupByEmail(ctx, email)
	if err != nil {
		return err
	}

	if s.now().Before(user.LastOtpSentTime) {
		return fmt.Errorf("%w: wait a few minutes before requesting a new code", models.ErrThrottled)
	}

	updated, sent, err := s.issueCode(ctx, user)
	if err != nil {
		return err
	}

	if sent {
		if err := s.repo.SetResendAfter(ctx, updated.ID, s.now().Add(s.settings.ResendCooldown)); err != nil {
			s.logger.Error("failed to record resend time", slog.String("user_id", user.ID), slog.Any("error", err))
			return models.ErrInternalServer
		}
	}

	s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventResendCode,
		UserID:    user.ID,
		Success:   true,
	})

	return nil
}

// ResetPin replaces the PIN after the emailed code is confirmed
func (s *AuthService) ResetPin(ctx context.Context, email, otp, newPin string) error {
	if err := pkgauth.ValidatePin(newPin); err != nil {
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}

	user, err := s.lookupByEmail(ctx, email)
	if err != nil {
		return err
	}

	if err := s.checkCode(user, otp); err != nil {
		s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventResetPin,
			UserID:        user.ID,
			FailureReason: codeFailureReason(err),
		})
		return err
	}

	pinHash, err := s.hasher.Hash(newPin)
	if err != nil {
		s.logger.Error("failed to hash pin", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.repo.ResetPin(ctx, user.ID, pinHash); err != nil {
		s.logger.Error("failed to reset pin", slog.String("user_id", user.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventResetPin,
		UserID:    user.ID,
		Success:   true,
	})

	return nil
}

// VerifyPin checks the PIN of an authenticated user without changing anything
func (s *AuthService) VerifyPin(ctx context.Context, user *models.User, pin string) error {
	ok := s.hasher.Verify(pin, user.PinHash)
	s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType:     pkglogger.EventVerifyPin,
		UserID:        user.ID,
		Success:       ok,
		FailureReason: failureIf(!ok, "invalid_pin"),
	})
	if !ok {
		return fmt.Errorf("%w: pin does not match", models.ErrUnauthorized)
	}
	return nil
}

// VerifyPhrase compares a client-side digest of the recovery phrase with the stored hash
func (s *AuthService) VerifyPhrase(ctx context.Context, user *models.User, phraseDigest string) error {
	return s.verifyDigest(ctx, user, phraseDigest, user.HashedPhrase, pkglogger.EventVerifyPhrase, "phrase not matched")
}

// VerifyAnswer compares a client-side digest of the security answer with the stored hash
func (s *AuthService) VerifyAnswer(ctx context.Context, user *models.User, answerDigest string) error {
	return s.verifyDigest(ctx, user, answerDigest, user.HashedAnswer, pkglogger.EventVerifyAnswer, "answer not matched")
}

func (s *AuthService) verifyDigest(ctx context.Context, user *models.User, digest, stored, event, reason string) error {
	ok := stored != "" && s.hasher.Verify(digest, stored)
	s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType:     event,
		UserID:        user.ID,
		Success:       ok,
		FailureReason: failureIf(!ok, "digest_mismatch"),
	})
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrVerificationFailed, reason)
	}
	return nil
}

func (s *AuthService) lookupByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: no user found", models.ErrNotFound)
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return user, nil
}

// issueCode stores a new pending code and emails it. Guest accounts get the
// fixed code with the longer expiry and no email; sent reports whether an
// email went out.
func (s *AuthService) issueCode(ctx context.Context, user *models.User) (updated *models.User, sent bool, err error) {
	isGuest := s.guest.IsGuest(user.Email)

	code, ttl := "", s.settings.OTPTTL
	if isGuest {
		code, ttl = s.guest.Code(), s.guest.TTL()
	} else {
		code, err = s.codes.Generate()
		if err != nil {
			s.logger.Error("failed to generate verification code", slog.Any("error", err))
			return nil, false, models.ErrInternalServer
		}
	}

	updated, err = s.repo.SetVerificationCode(ctx, user.ID, code, s.now().Add(ttl))
	if err != nil {
		s.logger.Error("failed to store verification code", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, false, models.ErrInternalServer
	}

	if isGuest {
		s.logger.Info("guest code issued", slog.String("user_id", user.ID))
		return updated, false, nil
	}

	if err := s.notifier.SendVerificationCode(ctx, user.Email, code, ttl); err != nil {
		return nil, false, fmt.Errorf("%w: %v", models.ErrDelivery, err)
	}

	return updated, true, nil
}

// checkCode applies the pending-code checks in order: present, matching, unexpired.
// An expiry equal to now is still valid.
func (s *AuthService) checkCode(user *models.User, otp string) error {
	if !user.HasPendingCode() {
		return fmt.Errorf("%w: no pending verification code", models.ErrValidation)
	}

	if subtle.ConstantTimeCompare([]byte(otp), []byte(*user.VerificationCode)) != 1 {
		return fmt.Errorf("%w: invalid otp code", models.ErrInvalidCode)
	}

	if s.now().After(*user.VerificationCodeExpiry) {
		return fmt.Errorf("%w: otp code expired", models.ErrCodeExpired)
	}

	return nil
}

func codeFailureReason(err error) string {
	switch {
	case errors.Is(err, models.ErrInvalidCode):
		return "invalid_code"
	case errors.Is(err, models.ErrCodeExpired):
		return "code_expired"
	default:
		return "no_pending_code"
	}
}

func failureIf(failed bool, reason string) string {
	if failed {
		return reason
	}
	return ""
}
