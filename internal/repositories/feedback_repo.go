package repositories

import (
	"context"
	"time"

	"github.com/BradenHooton/keypass/internal/database"
	"github.com/BradenHooton/keypass/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type FeedbackRepository struct {
	pool *pgxpool.Pool
}

func NewFeedbackRepository(db *database.DB) *FeedbackRepository {
	return &FeedbackRepository{pool: db.Pool}
}

func (r *FeedbackRepository) Create(ctx context.Context, feedback *models.Feedback) (*models.Feedback, error) {
	feedback.ID = uuid.New().String()
	if feedback.CreatedAt.IsZero() {
		feedback.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO feedback (id, owner_id, content, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, owner_id, content, created_at
	`

	var created models.Feedback
	err := r.pool.QueryRow(ctx, query, feedback.ID, feedback.OwnerID, feedback.Content, feedback.CreatedAt).
		Scan(&created.ID, &created.OwnerID, &created.Content, &created.CreatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &created, nil
}
