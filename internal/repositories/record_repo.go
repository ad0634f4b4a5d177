package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/keypass/internal/database"
	"github.com/BradenHooton/keypass/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const recordColumns = `id, owner_id, title, encrypted_data, salt, category, status, plan,
	data_recycle_expiry, created_at, updated_at`

// RecordRepository persists encrypted records. Multi-row changes are issued as
// set-membership updates rather than per-row round trips.
type RecordRepository struct {
	db   *database.DB
	pool *pgxpool.Pool
}

func NewRecordRepository(db *database.DB) *RecordRepository {
	return &RecordRepository{db: db, pool: db.Pool}
}

func scanRecordRow(scanner rowScanner) (*models.Record, error) {
	var record models.Record

	err := scanner.Scan(
		&record.ID, &record.OwnerID, &record.Title, &record.EncryptedData, &record.Salt,
		&record.Category, &record.Status, &record.Plan,
		&record.DataRecycleExpiry, &record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &record, nil
}

func scanRecordRows(rows pgx.Rows) ([]*models.Record, error) {
	defer rows.Close()

	records := make([]*models.Record, 0)

	for rows.Next() {
		record, err := scanRecordRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

// validIDs drops ids that cannot exist because they are not UUIDs
func validIDs(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	return valid
}

func (r *RecordRepository) Create(ctx context.Context, record *models.Record) (*models.Record, error) {
	record.ID = uuid.New().String()

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	record.UpdatedAt = record.CreatedAt

	if record.Status == "" {
		record.Status = models.StatusActive
	}
	if record.Plan == "" {
		record.Plan = models.PlanFree
	}

	query := `
		INSERT INTO records (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + recordColumns

	return scanRecordRow(r.pool.QueryRow(ctx, query,
		record.ID, record.OwnerID, record.Title, record.EncryptedData, record.Salt,
		record.Category, record.Status, record.Plan,
		record.DataRecycleExpiry, record.CreatedAt, record.UpdatedAt,
	))
}

func (r *RecordRepository) GetByID(ctx context.Context, id string) (*models.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrNotFound
	}

	query := `SELECT ` + recordColumns + ` FROM records WHERE id = $1`

	return scanRecordRow(r.pool.QueryRow(ctx, query, id))
}

func (r *RecordRepository) GetByIDs(ctx context.Context, ids []string) ([]*models.Record, error) {
	ids = validIDs(ids)
	if len(ids) == 0 {
		return []*models.Record{}, nil
	}

	query := `SELECT ` + recordColumns + ` FROM records WHERE id = ANY($1::uuid[])`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}

	return scanRecordRows(rows)
}

// ListByOwner returns every record of the owner, newest first
func (r *RecordRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE owner_id = $1 ORDER BY created_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}

	return scanRecordRows(rows)
}

// ListActiveByOwner returns the owner's active records, oldest first
func (r *RecordRepository) ListActiveByOwner(ctx context.Context, ownerID string) ([]*models.Record, error) {
	query := `
		SELECT ` + recordColumns + ` FROM records
		WHERE owner_id = $1 AND status = 'active'
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active records: %w", err)
	}

	return scanRecordRows(rows)
}

func (r *RecordRepository) CountActiveByOwner(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM records WHERE owner_id = $1 AND status = 'active'`, ownerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active records: %w", err)
	}

	return count, nil
}

// UpdateContent replaces the editable fields of a record
func (r *RecordRepository) UpdateContent(ctx context.Context, record *models.Record) (*models.Record, error) {
	if _, err := uuid.Parse(record.ID); err != nil {
		return nil, models.ErrNotFound
	}

	query := `
		UPDATE records SET title = $2, encrypted_data = $3, salt = $4, updated_at = $5
		WHERE id = $1
		RETURNING ` + recordColumns

	return scanRecordRow(r.pool.QueryRow(ctx, query,
		record.ID, record.Title, record.EncryptedData, record.Salt, time.Now(),
	))
}

// SetStatus moves the given records to status. recycleExpiry is stored as-is,
// so callers pass nil when restoring records to active.
func (r *RecordRepository) SetStatus(ctx context.Context, ids []string, status string, recycleExpiry *time.Time) (int64, error) {
	ids = validIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}

	query := `
		UPDATE records SET status = $2, data_recycle_expiry = $3, updated_at = NOW()
		WHERE id = ANY($1::uuid[])
	`

	result, err := r.pool.Exec(ctx, query, ids, status, recycleExpiry)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}

// UpdatePlans writes the plan tags computed for an owner's active records in one transaction
func (r *RecordRepository) UpdatePlans(ctx context.Context, ownerID string, freeIDs, premiumIDs []string) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		query := `UPDATE records SET plan = $1 WHERE owner_id = $2 AND id = ANY($3::uuid[]) AND plan <> $1`

		if len(freeIDs) > 0 {
			if _, err := tx.Exec(ctx, query, models.PlanFree, ownerID, freeIDs); err != nil {
				return fmt.Errorf("failed to tag free records: %w", err)
			}
		}
		if len(premiumIDs) > 0 {
			if _, err := tx.Exec(ctx, query, models.PlanPremium, ownerID, premiumIDs); err != nil {
				return fmt.Errorf("failed to tag premium records: %w", err)
			}
		}
		return nil
	})
}

func (r *RecordRepository) Delete(ctx context.Context, ids []string) (int64, error) {
	ids = validIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}

	result, err := r.pool.Exec(ctx, `DELETE FROM records WHERE id = ANY($1::uuid[])`, ids)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}

func (r *RecordRepository) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM records WHERE owner_id = $1`, ownerID)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}

// DeleteExpiredRecycled purges recycled records whose retention ended at or before now
func (r *RecordRepository) DeleteExpiredRecycled(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM records
		WHERE status = 'recycle' AND data_recycle_expiry IS NOT NULL AND data_recycle_expiry <= $1
	`

	result, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired records: %w", err)
	}

	return result.RowsAffected(), nil
}
