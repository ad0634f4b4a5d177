package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/keypass/internal/models"
)

// RecordRepository defines the interface for record data access
type RecordRepository interface {
	Create(ctx context.Context, record *models.Record) (*models.Record, error)
	GetByID(ctx context.Context, id string) (*models.Record, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.Record, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Record, error)
	ListActiveByOwner(ctx context.Context, ownerID string) ([]*models.Record, error)
	CountActiveByOwner(ctx context.Context, ownerID string) (int, error)
	UpdateContent(ctx context.Context, record *models.Record) (*models.Record, error)
	SetStatus(ctx context.Context, ids []string, status string, recycleExpiry *time.Time) (int64, error)
	UpdatePlans(ctx context.Context, ownerID string, freeIDs, premiumIDs []string) error
	Delete(ctx context.Context, ids []string) (int64, error)
	DeleteByOwner(ctx context.Context, ownerID string) (int64, error)
	DeleteExpiredRecycled(ctx context.Context, now time.Time) (int64, error)
}

// RecordSettings holds the quota and retention rules
type RecordSettings struct {
	FreeQuota        int
	RecycleRetention time.Duration
	// StrictBulkOwnership makes bulk operations reject ids owned by someone else.
	// When false, bulk operations act on the ids as given.
	StrictBulkOwnership bool
}

// CreateRecordInput carries the fields of a new record
type CreateRecordInput struct {
	Title         string
	EncryptedData string
	Salt          string
	Category      string
}

// EditRecordInput carries the editable fields of a record
type EditRecordInput struct {
	ID            string
	Title         string
	EncryptedData string
	Salt          string
}

// RecordService enforces ownership, the free quota and the recycle bin rules
type RecordService struct {
	repo     RecordRepository
	logger   *slog.Logger
	settings RecordSettings
	now      func() time.Time
}

// NewRecordService creates a new RecordService
func NewRecordService(repo RecordRepository, logger *slog.Logger, settings RecordSettings) *RecordService {
	return &RecordService{
		repo:     repo,
		logger:   logger,
		settings: settings,
		now:      time.Now,
	}
}

// SetClock overrides the time source used for creation order and recycle expiry
func (s *RecordService) SetClock(now func() time.Time) {
	s.now = now
}

// Create stores a new active record. Free users are limited to FreeQuota active records.
func (s *RecordService) Create(ctx context.Context, owner *models.User, input CreateRecordInput) (*models.Record, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", models.ErrValidation)
	}
	if input.EncryptedData == "" {
		return nil, fmt.Errorf("%w: encrypted data is required", models.ErrValidation)
	}
	if !models.ValidCategory(input.Category) {
		return nil, fmt.Errorf("%w: unknown category %q", models.ErrValidation, input.Category)
	}

	count, err := s.repo.CountActiveByOwner(ctx, owner.ID)
	if err != nil {
		s.logger.Error("failed to count active records", slog.String("user_id", owner.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if count >= s.settings.FreeQuota && !owner.IsPremium() {
		return nil, fmt.Errorf("%w: free plan allows %d active records", models.ErrQuotaExceeded, s.settings.FreeQuota)
	}

	record, err := s.repo.Create(ctx, &models.Record{
		OwnerID:       owner.ID,
		Title:         input.Title,
		EncryptedData: input.EncryptedData,
		Salt:          input.Salt,
		Category:      input.Category,
		Status:        models.StatusActive,
		Plan:          models.PlanFree,
		CreatedAt:     s.now(),
	})
	if err != nil {
		s.logger.Error("failed to create record", slog.String("user_id", owner.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.RetagPlans(ctx, owner.ID); err != nil {
		return nil, err
	}

	// The tagging pass may have moved the new record past the free quota
	tagged, err := s.repo.GetByID(ctx, record.ID)
	if err != nil {
		s.logger.Error("failed to reload record", slog.String("record_id", record.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("record created", slog.String("user_id", owner.ID), slog.String("record_id", record.ID))
	return tagged, nil
}

// Edit replaces the title, encrypted data and salt of an owned record
func (s *RecordService) Edit(ctx context.Context, owner *models.User, input EditRecordInput) (*models.Record, error) {
	record, err := s.ownedRecord(ctx, owner, input.ID)
	if err != nil {
		return nil, err
	}

	record.Title = input.Title
	record.EncryptedData = input.EncryptedData
	record.Salt = input.Salt

	updated, err := s.repo.UpdateContent(ctx, record)
	if err != nil {
		s.logger.Error("failed to edit record", slog.String("record_id", record.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return updated, nil
}

// List returns every record of the owner, newest first
func (s *RecordService) List(ctx context.Context, owner *models.User) ([]*models.Record, error) {
	records, err := s.repo.ListByOwner(ctx, owner.ID)
	if err != nil {
		s.logger.Error("failed to list records", slog.String("user_id", owner.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return records, nil
}

// ChangeStatus moves one owned record between active and recycle
func (s *RecordService) ChangeStatus(ctx context.Context, owner *models.User, id, status string) ([]*models.Record, error) {
	if _, err := s.ownedRecord(ctx, owner, id); err != nil {
		return nil, err
	}

	if err := s.checkStatusChange(owner, status); err != nil {
		return nil, err
	}

	if _, err := s.repo.SetStatus(ctx, []string{id}, status, s.recycleExpiry(status)); err != nil {
		s.logger.Error("failed to change record status", slog.String("record_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return s.afterMutation(ctx, owner)
}

// ChangeStatusBulk moves several records at once. Unless strict bulk ownership
// is enabled the ids are not checked against the owner.
func (s *RecordService) ChangeStatusBulk(ctx context.Context, owner *models.User, ids []string, status string) ([]*models.Record, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no records selected", models.ErrValidation)
	}
	if err := s.checkStatusChange(owner, status); err != nil {
		return nil, err
	}
	if err := s.checkBulkOwnership(ctx, owner, ids); err != nil {
		return nil, err
	}

	changed, err := s.repo.SetStatus(ctx, ids, status, s.recycleExpiry(status))
	if err != nil {
		s.logger.Error("failed to change record statuses", slog.String("user_id", owner.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if changed == 0 {
		return nil, fmt.Errorf("%w: no data was changed", models.ErrNothingChanged)
	}

	return s.afterMutation(ctx, owner)
}

// Delete removes one owned record
func (s *RecordService) Delete(ctx context.Context, owner *models.User, id string) ([]*models.Record, error) {
	if _, err := s.ownedRecord(ctx, owner, id); err != nil {
		return nil, err
	}

	if _, err := s.repo.Delete(ctx, []string{id}); err != nil {
		s.logger.Error("failed to delete record", slog.String("record_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return s.afterMutation(ctx, owner)
}

// DeleteBulk removes several records at once, with the same ownership rule as ChangeStatusBulk
func (s *RecordService) DeleteBulk(ctx context.Context, owner *models.User, ids []string) ([]*models.Record, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no records selected", models.ErrValidation)
	}
	if err := s.checkBulkOwnership(ctx, owner, ids); err != nil {
		return nil, err
	}

	deleted, err := s.repo.Delete(ctx, ids)
	if err != nil {
		s.logger.Error("failed to delete records", slog.String("user_id", owner.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if deleted == 0 {
		return nil, fmt.Errorf("%w: no data was deleted", models.ErrNothingChanged)
	}

	return s.afterMutation(ctx, owner)
}

// RetagPlans recomputes the plan tag of every active record of the owner:
// the first FreeQuota by creation time are free, the rest premium.
func (s *RecordService) RetagPlans(ctx context.Context, ownerID string) error {
	active, err := s.repo.ListActiveByOwner(ctx, ownerID)
	if err != nil {
		s.logger.Error("failed to load active records", slog.String("user_id", ownerID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	freeIDs, premiumIDs := partitionPlans(active, s.settings.FreeQuota)

	if err := s.repo.UpdatePlans(ctx, ownerID, freeIDs, premiumIDs); err != nil {
		s.logger.Error("failed to update plan tags", slog.String("user_id", ownerID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	return nil
}

// SweepExpired purges recycled records past their retention. Errors are
// logged, never returned; the result is the number of records removed.
func (s *RecordService) SweepExpired(ctx context.Context) int64 {
	deleted, err := s.repo.DeleteExpiredRecycled(ctx, s.now())
	if err != nil {
		s.logger.Error("recycle sweep failed", slog.Any("error", err))
		return 0
	}

	if deleted == 0 {
		s.logger.Info("no expired records")
	} else {
		s.logger.Info("recycle sweep completed", slog.Int64("deleted", deleted))
	}
	return deleted
}

// partitionPlans splits active records, oldest first, into free and premium ids
func partitionPlans(active []*models.Record, quota int) (freeIDs, premiumIDs []string) {
	freeIDs = make([]string, 0, min(len(active), quota))
	for i, record := range active {
		if i < quota {
			freeIDs = append(freeIDs, record.ID)
		} else {
			premiumIDs = append(premiumIDs, record.ID)
		}
	}
	return freeIDs, premiumIDs
}

func (s *RecordService) ownedRecord(ctx context.Context, owner *models.User, id string) (*models.Record, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: no data found", models.ErrNotFound)
		}
		s.logger.Error("failed to get record", slog.String("record_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if record.OwnerID != owner.ID {
		s.logger.Warn("record ownership mismatch", slog.String("user_id", owner.ID), slog.String("record_id", id))
		return nil, fmt.Errorf("%w: data unauthorized access", models.ErrForbidden)
	}

	return record, nil
}

func (s *RecordService) checkStatusChange(owner *models.User, status string) error {
	if !models.ValidStatus(status) {
		return fmt.Errorf("%w: unknown status %q", models.ErrValidation, status)
	}
	if status == models.StatusRecycle && !owner.IsPremium() {
		return fmt.Errorf("%w: only premium users can move data to the recycle bin", models.ErrPremiumRequired)
	}
	return nil
}

func (s *RecordService) checkBulkOwnership(ctx context.Context, owner *models.User, ids []string) error {
	if !s.settings.StrictBulkOwnership {
		return nil
	}

	records, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("failed to load records", slog.String("user_id", owner.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	for _, record := range records {
		if record.OwnerID != owner.ID {
			s.logger.Warn("bulk request touches foreign record", slog.String("user_id", owner.ID), slog.String("record_id", record.ID))
			return fmt.Errorf("%w: data unauthorized access", models.ErrForbidden)
		}
	}
	return nil
}

func (s *RecordService) recycleExpiry(status string) *time.Time {
	if status != models.StatusRecycle {
		return nil
	}
	expiry := s.now().Add(s.settings.RecycleRetention)
	return &expiry
}

func (s *RecordService) afterMutation(ctx context.Context, owner *models.User) ([]*models.Record, error) {
	if err := s.RetagPlans(ctx, owner.ID); err != nil {
		return nil, err
	}
	return s.List(ctx, owner)
}
