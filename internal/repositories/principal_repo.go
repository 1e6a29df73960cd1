package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/bastion/internal/database"
	"github.com/BradenHooton/bastion/internal/models"
	"github.com/google/uuid"
)

type PrincipalRepository struct {
	db *database.DB
}

func NewPrincipalRepository(db *database.DB) *PrincipalRepository {
	return &PrincipalRepository{db: db}
}

// rowScanner interface for scanning principal rows (single row or rows iterator)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

const principalColumns = `id, email, password_hash, name, role, status, failed_login_attempts, account_locked, locked_until, lock_reason, created_at, updated_at`

// scanPrincipalRow handles nullable fields and populates a Principal model
func scanPrincipalRow(scanner rowScanner) (*models.Principal, error) {
	var p models.Principal
	var passwordHash, lockReason *string
	var lockedUntil *time.Time

	err := scanner.Scan(
		&p.ID, &p.Email, &passwordHash, &p.Name,
		&p.Role, &p.Status, &p.FailedLoginAttempts, &p.AccountLocked,
		&lockedUntil, &lockReason,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if passwordHash != nil {
		p.PasswordHash = *passwordHash
	}
	if lockReason != nil {
		p.LockReason = *lockReason
	}
	p.LockedUntil = lockedUntil

	return &p, nil
}

func (r *PrincipalRepository) GetByID(ctx context.Context, id string) (*models.Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM principals WHERE id = $1`

	return scanPrincipalRow(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *PrincipalRepository) GetByEmail(ctx context.Context, email string) (*models.Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM principals WHERE email = $1`

	return scanPrincipalRow(r.db.Pool.QueryRow(ctx, query, email))
}

func (r *PrincipalRepository) Create(ctx context.Context, p *models.Principal) (*models.Principal, error) {
	p.ID = uuid.New().String()

	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	if p.Role == "" {
		p.Role = "user"
	}
	if p.Status == "" {
		p.Status = "active"
	}

	query := `
		INSERT INTO principals (id, email, password_hash, name, role, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + principalColumns

	var passwordHash *string
	if p.PasswordHash != "" {
		passwordHash = &p.PasswordHash
	}

	return scanPrincipalRow(r.db.Pool.QueryRow(ctx, query,
		p.ID, p.Email, passwordHash, p.Name, p.Role, p.Status, p.CreatedAt, p.UpdatedAt,
	))
}

// RecordFailure increments the failed-attempt counter and, when the new
// count reaches the threshold on an account that is not effectively locked,
// sets the lock in the same statement. The read-increment-compare-write
// happens entirely inside Postgres, so two concurrent failures can never
// both observe count=4 and neither trigger the lock.
//
// "Effectively locked" means account_locked with locked_until either NULL
// (permanent) or still in the future. The raw flag alone is not enough: a
// timed lock lifts lazily, so after expiry the stale flag must not block a
// fresh lock from being applied with a new locked_until.
func (r *PrincipalRepository) RecordFailure(ctx context.Context, id string, threshold int, lockUntil time.Time, reason string) (*models.LockoutDecision, error) {
	query := `
		WITH prior AS (
			SELECT account_locked AND (locked_until IS NULL OR locked_until > NOW()) AS locked
			FROM principals
			WHERE id = $1
		)
		UPDATE principals p SET
			failed_login_attempts = p.failed_login_attempts + 1,
			account_locked = prior.locked OR (p.failed_login_attempts + 1 >= $2),
			locked_until = CASE
				WHEN NOT prior.locked AND p.failed_login_attempts + 1 >= $2 THEN $3
				ELSE p.locked_until
			END,
			lock_reason = CASE
				WHEN NOT prior.locked AND p.failed_login_attempts + 1 >= $2 THEN $4
				ELSE p.lock_reason
			END,
			updated_at = NOW()
		FROM prior
		WHERE p.id = $1
		RETURNING p.failed_login_attempts, p.account_locked, p.locked_until,
			NOT prior.locked AND p.account_locked
	`

	var decision models.LockoutDecision
	err := r.db.Pool.QueryRow(ctx, query, id, threshold, lockUntil, reason).Scan(
		&decision.FailedAttempts, &decision.Locked, &decision.LockedUntil, &decision.CausedLock,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &decision, nil
}

// ResetFailures zeroes the failed-attempt counter. It deliberately leaves
// account_locked and locked_until untouched: a lock lifts only by time
// expiry (evaluated at check time) or explicit unlock.
func (r *PrincipalRepository) ResetFailures(ctx context.Context, id string) error {
	query := `UPDATE principals SET failed_login_attempts = 0, updated_at = NOW() WHERE id = $1`

	result, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// SetLock applies an administrative lock. A nil until makes it permanent.
func (r *PrincipalRepository) SetLock(ctx context.Context, id string, until *time.Time, reason string) error {
	query := `
		UPDATE principals
		SET account_locked = true, locked_until = $2, lock_reason = $3, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.Pool.Exec(ctx, query, id, until, reason)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ClearLock removes any lock and resets the failure counter.
func (r *PrincipalRepository) ClearLock(ctx context.Context, id string) error {
	query := `
		UPDATE principals
		SET account_locked = false, locked_until = NULL, lock_reason = '',
		    failed_login_attempts = 0, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *PrincipalRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM principals WHERE id = $1`

	result, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *PrincipalRepository) List(ctx context.Context, limit, offset int) ([]*models.Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM principals ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query principals: %w", err)
	}
	defer rows.Close()

	principals := make([]*models.Principal, 0)
	for rows.Next() {
		p, err := scanPrincipalRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan principal: %w", err)
		}
		principals = append(principals, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return principals, nil
}
