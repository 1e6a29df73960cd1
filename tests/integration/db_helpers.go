package integration

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/BradenHooton/bastion/internal/database"
	"github.com/BradenHooton/bastion/internal/models"
	"github.com/BradenHooton/bastion/pkg/auth"
)

// TestDB manages PostgreSQL testcontainer and database operations
type TestDB struct {
	Container  testcontainers.Container
	ConnString string
	Pool       *pgxpool.Pool
	DB         *database.DB
}

// SetupTestDatabase creates a PostgreSQL testcontainer, runs migrations, returns TestDB
func SetupTestDatabase(ctx context.Context) (*TestDB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("bastion"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &TestDB{
		Container:  container,
		ConnString: connStr,
		Pool:       pool,
		DB:         &database.DB{Pool: pool},
	}, nil
}

// runMigrations executes all goose migrations
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir, err := filepath.Abs("../../migrations")
	if err != nil {
		return fmt.Errorf("failed to get migrations path: %w", err)
	}

	goose.SetLogger(log.New(nil, "", 0))

	// Goose needs a stdlib DB connection
	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()

	if err := goose.UpContext(ctx, sqlDB, migrationsDir); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

// Teardown stops the container and closes the connection pool
func (db *TestDB) Teardown(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// CleanupTables truncates all tables for test isolation
func (db *TestDB) CleanupTables(ctx context.Context) error {
	tables := []string{
		"sessions",
		"principals",
	}

	for _, table := range tables {
		if _, err := db.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return nil
}

// SeedPrincipal inserts an active principal with a hashed password
func SeedPrincipal(ctx context.Context, pool *pgxpool.Pool, id, email, password, role string) (*models.Principal, error) {
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	query := `
		INSERT INTO principals (id, email, password_hash, name, role, status, created_at, updated_at)
		VALUES ($1, $2, $3, 'Test Principal', $4, 'active', NOW(), NOW())
		RETURNING id, email, role, status, failed_login_attempts, account_locked, created_at, updated_at
	`

	var p models.Principal
	err = pool.QueryRow(ctx, query, id, email, hashedPassword, role).Scan(
		&p.ID,
		&p.Email,
		&p.Role,
		&p.Status,
		&p.FailedLoginAttempts,
		&p.AccountLocked,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert principal: %w", err)
	}

	p.PasswordHash = hashedPassword
	return &p, nil
}

// GetLockState reads the lockout columns straight from storage
func GetLockState(ctx context.Context, pool *pgxpool.Pool, principalID string) (attempts int, locked bool, lockedUntil *time.Time, err error) {
	query := `SELECT failed_login_attempts, account_locked, locked_until FROM principals WHERE id = $1`
	err = pool.QueryRow(ctx, query, principalID).Scan(&attempts, &locked, &lockedUntil)
	return
}

// ExpireLock backdates a principal's locked_until so the next check sees
// the lock as lapsed, without waiting out the real lock duration.
func ExpireLock(ctx context.Context, pool *pgxpool.Pool, principalID string) error {
	_, err := pool.Exec(ctx,
		`UPDATE principals SET locked_until = NOW() - INTERVAL '1 minute' WHERE id = $1`,
		principalID)
	return err
}

// CountActiveSessions counts the active sessions for a principal
func CountActiveSessions(ctx context.Context, pool *pgxpool.Pool, principalID string) (int, error) {
	var count int
	err := pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM sessions WHERE principal_id = $1 AND is_active = true`,
		principalID).Scan(&count)
	return count, err
}
