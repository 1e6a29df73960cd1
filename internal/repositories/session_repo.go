package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/bastion/internal/database"
	"github.com/BradenHooton/bastion/internal/models"
	"github.com/jackc/pgx/v5"
)

type SessionRepository struct {
	db *database.DB
}

func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, principal_id, device_type, ip_address, user_agent, created_at, last_activity_at, expires_at, is_active, terminated_at, termination_reason`

func scanSessionRow(scanner rowScanner) (*models.Session, error) {
	var s models.Session
	var terminatedAt *time.Time
	var terminationReason *string

	err := scanner.Scan(
		&s.ID, &s.PrincipalID, &s.DeviceType, &s.IPAddress, &s.UserAgent,
		&s.CreatedAt, &s.LastActivityAt, &s.ExpiresAt, &s.IsActive,
		&terminatedAt, &terminationReason,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	s.TerminatedAt = terminatedAt
	if terminationReason != nil {
		s.TerminationReason = *terminationReason
	}

	return &s, nil
}

func scanSessionRows(rows pgx.Rows) ([]*models.Session, error) {
	defer rows.Close()

	sessions := make([]*models.Session, 0)
	for rows.Next() {
		s, err := scanSessionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return sessions, nil
}

// AdmitSession inserts the session and evicts the oldest active sessions
// beyond the cap as one atomic unit of work. The row lock on the principal
// serializes concurrent admissions for the same principal, so admitting a
// 6th session always evicts exactly the single oldest, never more, never
// zero - even when two logins race. Different principals do not block each
// other.
//
// Returns the evicted sessions so the caller can audit them.
func (r *SessionRepository) AdmitSession(ctx context.Context, session *models.Session, cap int) ([]*models.Session, error) {
	var evicted []*models.Session

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		// Serialize per principal id.
		var principalID string
		err := tx.QueryRow(ctx,
			`SELECT id FROM principals WHERE id = $1 FOR UPDATE`,
			session.PrincipalID,
		).Scan(&principalID)
		if err != nil {
			return database.MapPostgresError(err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO sessions (id, principal_id, device_type, ip_address, user_agent, created_at, last_activity_at, expires_at, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true)
		`,
			session.ID, session.PrincipalID, session.DeviceType, session.IPAddress,
			session.UserAgent, session.CreatedAt, session.LastActivityAt, session.ExpiresAt,
		)
		if err != nil {
			return database.MapPostgresError(err)
		}

		var activeCount int
		err = tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM sessions WHERE principal_id = $1 AND is_active = true`,
			session.PrincipalID,
		).Scan(&activeCount)
		if err != nil {
			return database.MapPostgresError(err)
		}

		if activeCount <= cap {
			return nil
		}

		// Oldest first, id ascending for a deterministic tiebreak. The new
		// session is excluded so a cap of 1 still admits it.
		rows, err := tx.Query(ctx, `
			UPDATE sessions
			SET is_active = false, terminated_at = NOW(), termination_reason = $3
			WHERE id IN (
				SELECT id FROM sessions
				WHERE principal_id = $1 AND is_active = true AND id <> $2
				ORDER BY created_at ASC, id ASC
				LIMIT $4
			)
			RETURNING `+sessionColumns,
			session.PrincipalID, session.ID, models.TerminationReasonLimitExceeded, activeCount-cap,
		)
		if err != nil {
			return database.MapPostgresError(err)
		}

		evicted, err = scanSessionRows(rows)
		return err
	})

	if err != nil {
		return nil, err
	}

	return evicted, nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	return scanSessionRow(r.db.Pool.QueryRow(ctx, query, id))
}

// ListActive returns the principal's active sessions ordered by creation
// time ascending. is_current is a presentation concern computed by callers.
func (r *SessionRepository) ListActive(ctx context.Context, principalID string) ([]*models.Session, error) {
	query := `
		SELECT ` + sessionColumns + ` FROM sessions
		WHERE principal_id = $1 AND is_active = true
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}

	return scanSessionRows(rows)
}

// Terminate marks a session inactive, stamping terminated_at and the reason.
// An already-inactive session is left untouched: its original terminated_at
// and reason are preserved and no error is returned.
func (r *SessionRepository) Terminate(ctx context.Context, sessionID, reason string) error {
	query := `
		UPDATE sessions
		SET is_active = false, terminated_at = NOW(), termination_reason = $2
		WHERE id = $1 AND is_active = true
	`

	_, err := r.db.Pool.Exec(ctx, query, sessionID, reason)
	return database.MapPostgresError(err)
}

// TerminateOwned is Terminate scoped to a principal, so callers cannot
// terminate other principals' sessions through the API.
func (r *SessionRepository) TerminateOwned(ctx context.Context, sessionID, principalID, reason string) error {
	query := `
		UPDATE sessions
		SET is_active = false, terminated_at = NOW(), termination_reason = $3
		WHERE id = $1 AND principal_id = $2 AND is_active = true
	`

	_, err := r.db.Pool.Exec(ctx, query, sessionID, principalID, reason)
	return database.MapPostgresError(err)
}

// TerminateAllExcept terminates every other active session for the
// principal, leaving exactly keepID active. Returns the number terminated.
func (r *SessionRepository) TerminateAllExcept(ctx context.Context, principalID, keepID, reason string) (int, error) {
	query := `
		UPDATE sessions
		SET is_active = false, terminated_at = NOW(), termination_reason = $3
		WHERE principal_id = $1 AND id <> $2 AND is_active = true
	`

	result, err := r.db.Pool.Exec(ctx, query, principalID, keepID, reason)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return int(result.RowsAffected()), nil
}

// TerminateAll terminates every active session for the principal.
func (r *SessionRepository) TerminateAll(ctx context.Context, principalID, reason string) (int, error) {
	query := `
		UPDATE sessions
		SET is_active = false, terminated_at = NOW(), termination_reason = $2
		WHERE principal_id = $1 AND is_active = true
	`

	result, err := r.db.Pool.Exec(ctx, query, principalID, reason)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return int(result.RowsAffected()), nil
}

// Touch updates the last-activity timestamp on an active session.
func (r *SessionRepository) Touch(ctx context.Context, sessionID string) error {
	query := `UPDATE sessions SET last_activity_at = NOW() WHERE id = $1 AND is_active = true`

	_, err := r.db.Pool.Exec(ctx, query, sessionID)
	return database.MapPostgresError(err)
}

// TerminateExpired sweeps sessions whose fixed TTL has elapsed. Run
// periodically by the background cleanup manager.
func (r *SessionRepository) TerminateExpired(ctx context.Context) (int64, error) {
	query := `
		UPDATE sessions
		SET is_active = false, terminated_at = NOW(), termination_reason = $1
		WHERE is_active = true AND expires_at <= NOW()
	`

	result, err := r.db.Pool.Exec(ctx, query, models.TerminationReasonExpired)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}

// DeleteTerminatedBefore removes long-dead session rows to keep the table
// bounded. Terminated sessions are kept for a retention period for audit.
func (r *SessionRepository) DeleteTerminatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM sessions WHERE is_active = false AND terminated_at < $1`

	result, err := r.db.Pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}
