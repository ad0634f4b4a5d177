package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BradenHooton/keypass/internal/database"
	"github.com/BradenHooton/keypass/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, full_name, email, pin_hash, salt, plan, subscription_duration, subscription_expiry,
	verification_code, verification_code_expiry, last_otp_sent_time, session_token,
	hashed_phrase, hashed_answer, security_question, encrypted_phrase, is_phrase_set,
	created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

// rowScanner interface for scanning rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUserRow populates a User model from a database row
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User

	err := scanner.Scan(
		&user.ID, &user.FullName, &user.Email, &user.PinHash, &user.Salt,
		&user.Plan, &user.SubscriptionDuration, &user.SubscriptionExpiry,
		&user.VerificationCode, &user.VerificationCodeExpiry, &user.LastOtpSentTime, &user.SessionToken,
		&user.HashedPhrase, &user.HashedAnswer, &user.SecurityQuestion, &user.EncryptedPhrase, &user.IsPhraseSet,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrNotFound
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`

	return scanUserRow(r.pool.QueryRow(ctx, query, strings.TrimSpace(email)))
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = user.CreatedAt

	if user.Plan == "" {
		user.Plan = models.PlanFree
	}

	if user.LastOtpSentTime.IsZero() {
		user.LastOtpSentTime = user.CreatedAt
	}

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING ` + userColumns

	createdUser, err := scanUserRow(r.pool.QueryRow(ctx, query,
		user.ID, user.FullName, user.Email, user.PinHash, user.Salt,
		user.Plan, user.SubscriptionDuration, user.SubscriptionExpiry,
		user.VerificationCode, user.VerificationCodeExpiry, user.LastOtpSentTime, user.SessionToken,
		user.HashedPhrase, user.HashedAnswer, user.SecurityQuestion, user.EncryptedPhrase, user.IsPhraseSet,
		user.CreatedAt, user.UpdatedAt,
	))
	if err != nil {
		return nil, err
	}

	return createdUser, nil
}

// updateColumns applies set to a single user row and returns the stored
// result. Placeholders in set start at $2; $1 is the user id.
func (r *UserRepository) updateColumns(ctx context.Context, id, set string, args ...any) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrNotFound
	}

	query := `UPDATE users SET ` + set + `, updated_at = NOW() WHERE id = $1 RETURNING ` + userColumns

	return scanUserRow(r.pool.QueryRow(ctx, query, append([]any{id}, args...)...))
}

// SetVerificationCode stores a pending code and its expiry
func (r *UserRepository) SetVerificationCode(ctx context.Context, id, code string, expiresAt time.Time) (*models.User, error) {
	return r.updateColumns(ctx, id, `verification_code = $2, verification_code_expiry = $3`, code, expiresAt)
}

// SetResendAfter records the earliest time another code may be sent
func (r *UserRepository) SetResendAfter(ctx context.Context, id string, at time.Time) error {
	_, err := r.updateColumns(ctx, id, `last_otp_sent_time = $2`, at)
	return err
}

// StartSession stores the new session token and consumes the pending code
func (r *UserRepository) StartSession(ctx context.Context, id, token string) (*models.User, error) {
	return r.updateColumns(ctx, id,
		`session_token = $2, verification_code = NULL, verification_code_expiry = NULL`, token)
}

// ResetPin replaces the PIN hash and consumes the pending code
func (r *UserRepository) ResetPin(ctx context.Context, id, pinHash string) error {
	_, err := r.updateColumns(ctx, id,
		`pin_hash = $2, verification_code = NULL, verification_code_expiry = NULL`, pinHash)
	return err
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id, fullName string) (*models.User, error) {
	return r.updateColumns(ctx, id, `full_name = $2`, fullName)
}

func (r *UserRepository) UpdatePin(ctx context.Context, id, pinHash string) (*models.User, error) {
	return r.updateColumns(ctx, id, `pin_hash = $2`, pinHash)
}

func (r *UserRepository) UpdateSubscription(ctx context.Context, id, plan, duration string, expiry *time.Time) (*models.User, error) {
	return r.updateColumns(ctx, id,
		`plan = $2, subscription_duration = $3, subscription_expiry = $4`, plan, duration, expiry)
}

// UpdatePhrase stores the recovery phrase material and marks it as set
func (r *UserRepository) UpdatePhrase(ctx context.Context, id string, phrase models.RecoveryPhrase) (*models.User, error) {
	return r.updateColumns(ctx, id,
		`hashed_phrase = $2, hashed_answer = $3, encrypted_phrase = $4, security_question = $5, is_phrase_set = TRUE`,
		phrase.HashedPhrase, phrase.HashedAnswer, phrase.EncryptedPhrase, phrase.SecurityQuestion)
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return models.ErrNotFound
	}

	result, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// DemoteExpiredSubscriptions moves every premium user whose subscription
// expired at or before now back to the free plan and returns how many changed.
func (r *UserRepository) DemoteExpiredSubscriptions(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE users
		SET plan = 'free', subscription_expiry = NULL, updated_at = $1
		WHERE plan = 'premium' AND subscription_expiry IS NOT NULL AND subscription_expiry <= $1
	`

	result, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to demote expired subscriptions: %w", err)
	}

	return result.RowsAffected(), nil
}
