//go:build integration

package integration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/BradenHooton/keypass/internal/database"
	"github.com/BradenHooton/keypass/internal/models"
	"github.com/BradenHooton/keypass/internal/repositories"
	pkgauth "github.com/BradenHooton/keypass/pkg/auth"
)

// TestDB manages the PostgreSQL testcontainer and its pool
type TestDB struct {
	Container  testcontainers.Container
	ConnString string
	Pool       *pgxpool.Pool
	DB         *database.DB
}

// SetupTestDatabase starts PostgreSQL, applies the embedded migrations and returns TestDB
func SetupTestDatabase(ctx context.Context) (*TestDB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("keypass"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	if err := database.Migrate(ctx, connStr, "up"); err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return &TestDB{
		Container:  container,
		ConnString: connStr,
		Pool:       pool,
		DB:         database.NewFromPool(pool, slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, nil
}

// Teardown closes the pool and stops the container
func (db *TestDB) Teardown(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// CleanupTables empties every table, children first
func (db *TestDB) CleanupTables(ctx context.Context) error {
	for _, table := range []string{"feedback", "records", "users"} {
		if _, err := db.Pool.Exec(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clean table %s: %w", table, err)
		}
	}
	return nil
}

// SeedUser inserts a verified user holding the given pin
func SeedUser(ctx context.Context, db *database.DB, email, pin string) (*models.User, error) {
	hash, err := pkgauth.NewHasher(4).Hash(pin)
	if err != nil {
		return nil, fmt.Errorf("failed to hash pin: %w", err)
	}

	user, err := repositories.NewUserRepository(db).Create(ctx, &models.User{
		FullName: "Seeded User",
		Email:    email,
		PinHash:  hash,
		Salt:     "seed-salt",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return user, nil
}

// SeedRecord inserts a record owned by ownerID created at createdAt
func SeedRecord(ctx context.Context, db *database.DB, ownerID, title string, createdAt time.Time) (*models.Record, error) {
	record, err := repositories.NewRecordRepository(db).Create(ctx, &models.Record{
		OwnerID:       ownerID,
		Title:         title,
		EncryptedData: "cipher-" + title,
		Category:      models.CategoryNote,
		Status:        models.StatusActive,
		Plan:          models.PlanFree,
		CreatedAt:     createdAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert record: %w", err)
	}
	return record, nil
}
