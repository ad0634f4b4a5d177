package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/BradenHooton/keypass/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// sqlStateErrors translates Postgres SQLSTATE codes into domain errors.
var sqlStateErrors = map[string]error{
	"23505": models.ErrConflict,   // unique_violation
	"40001": models.ErrConflict,   // serialization_failure
	"23503": models.ErrBadRequest, // foreign_key_violation
	"23502": models.ErrBadRequest, // not_null_violation
	"22P02": models.ErrBadRequest, // invalid_text_representation
	"23514": models.ErrValidation, // check_violation
}

// MapPostgresError converts driver errors into the models sentinel errors.
// Unknown errors are returned untouched. Mapped errors keep the constraint
// name in their message and still match with errors.Is.
func MapPostgresError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	mapped, ok := sqlStateErrors[pgErr.Code]
	if !ok {
		return err
	}
	if pgErr.ConstraintName != "" {
		return fmt.Errorf("%w: %s", mapped, pgErr.ConstraintName)
	}
	return mapped
}

// WithTransaction runs fn in a single transaction. The transaction commits
// when fn returns nil and rolls back otherwise, re-panicking after rollback.
func (db *DB) WithTransaction(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		_ = tx.Rollback(ctx)
		if p := recover(); p != nil {
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}
