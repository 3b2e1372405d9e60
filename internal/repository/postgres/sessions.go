package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/medicore/auth-service/internal/core/domain"
	"github.com/medicore/auth-service/internal/core/port"
	"github.com/medicore/auth-service/internal/repository"
)

var sessionColumns = []string{
	"id",
	"account_id",
	"role",
	"access_token_hash",
	"refresh_token_hash",
	"session_type",
	"created_at",
	"access_expires_at",
	"expires_at",
	"revoked_at",
	"revoke_reason",
}

// SessionRepository implements port.SessionRepository for PostgreSQL.
type SessionRepository struct {
	db      DB
	builder squirrel.StatementBuilderType
}

var _ port.SessionRepository = (*SessionRepository)(nil)

// NewSessionRepository constructs a SessionRepository.
func NewSessionRepository(db DB) *SessionRepository {
	return &SessionRepository{
		db:      db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// accountLockSQL serializes session writes per account. Plain READ COMMITTED
// is not enough: two concurrent transactions can each deactivate the rows
// visible in their own snapshot and then both insert, leaving two active
// sessions. The advisory lock is released automatically at commit/rollback.
const accountLockSQL = "SELECT pg_advisory_xact_lock(hashtext($1))"

func lockAccountSessions(ctx context.Context, tx pgx.Tx, accountID string) error {
	if _, err := tx.Exec(ctx, accountLockSQL, accountID); err != nil {
		return fmt.Errorf("acquire account session lock: %w", err)
	}
	return nil
}

// CreateActive deactivates every active session for the account and inserts
// the new one inside a single transaction. The per-account advisory lock
// makes the deactivate+insert pair atomic against concurrent logins and
// against RevokeAllForAccount, so at most one active row survives.
func (r *SessionRepository) CreateActive(ctx context.Context, session domain.Session) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create session tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockAccountSessions(ctx, tx, session.AccountID); err != nil {
		return err
	}

	deactivate, deactivateArgs, err := r.builder.Update("sessions").
		Set("session_type", domain.SessionTypeLogout).
		Set("revoked_at", session.CreatedAt).
		Set("revoke_reason", "superseded_by_login").
		Where(squirrel.Eq{"account_id": session.AccountID}).
		Where("revoked_at IS NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("build deactivate sessions sql: %w", err)
	}

	if _, err := tx.Exec(ctx, deactivate, deactivateArgs...); err != nil {
		return fmt.Errorf("deactivate prior sessions: %w", err)
	}

	insert, insertArgs, err := r.builder.Insert("sessions").
		Columns(sessionColumns...).
		Values(
			session.ID,
			session.AccountID,
			session.Role,
			session.AccessTokenHash,
			session.RefreshTokenHash,
			session.SessionType,
			session.CreatedAt,
			session.AccessExpiresAt,
			session.ExpiresAt,
			session.RevokedAt,
			session.RevokeReason,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert session sql: %w", err)
	}

	if _, err := tx.Exec(ctx, insert, insertArgs...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("insert session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create session tx: %w", err)
	}

	return nil
}

// GetByAccessTokenHash returns the session owning the access token.
func (r *SessionRepository) GetByAccessTokenHash(ctx context.Context, hash string) (*domain.Session, error) {
	return r.getByColumn(ctx, "access_token_hash", hash)
}

// GetByRefreshTokenHash returns the session owning the refresh token.
func (r *SessionRepository) GetByRefreshTokenHash(ctx context.Context, hash string) (*domain.Session, error) {
	return r.getByColumn(ctx, "refresh_token_hash", hash)
}

// RotateAccessToken swaps the access token hash in place. The revoked_at
// guard turns a race against Revoke/RevokeAllForAccount into ErrConflict
// instead of silently resurrecting an invalidated session.
func (r *SessionRepository) RotateAccessToken(ctx context.Context, sessionID string, accessTokenHash string, accessExpiresAt time.Time) error {
	sql, args, err := r.builder.Update("sessions").
		Set("access_token_hash", accessTokenHash).
		Set("access_expires_at", accessExpiresAt).
		Where(squirrel.Eq{"id": sessionID}).
		Where("revoked_at IS NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("build rotate access token sql: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("rotate access token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrConflict
	}

	return nil
}

// Revoke marks a session terminated.
func (r *SessionRepository) Revoke(ctx context.Context, sessionID string, reason string, at time.Time) error {
	sql, args, err := r.builder.Update("sessions").
		Set("session_type", domain.SessionTypeLogout).
		Set("revoked_at", at).
		Set("revoke_reason", reason).
		Where(squirrel.Eq{"id": sessionID}).
		Where("revoked_at IS NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("build revoke session sql: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// RevokeAllForAccount revokes every active session for the account and
// reports how many rows changed. It takes the same per-account advisory lock
// as CreateActive so a reset racing a login cannot leave behind an active
// session the reset never saw.
func (r *SessionRepository) RevokeAllForAccount(ctx context.Context, accountID string, reason string, at time.Time) (int, error) {
	sql, args, err := r.builder.Update("sessions").
		Set("session_type", domain.SessionTypeLogout).
		Set("revoked_at", at).
		Set("revoke_reason", reason).
		Where(squirrel.Eq{"account_id": accountID}).
		Where("revoked_at IS NULL").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build revoke all sessions sql: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin revoke all tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockAccountSessions(ctx, tx, accountID); err != nil {
		return 0, err
	}

	tag, err := tx.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions for account: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit revoke all tx: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// ListByAccount returns all sessions owned by the account, newest first.
func (r *SessionRepository) ListByAccount(ctx context.Context, accountID string) ([]domain.Session, error) {
	sql, args, err := r.builder.
		Select(sessionColumns...).
		From("sessions").
		Where(squirrel.Eq{"account_id": accountID}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list sessions sql: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

func (r *SessionRepository) getByColumn(ctx context.Context, column, value string) (*domain.Session, error) {
	sql, args, err := r.builder.
		Select(sessionColumns...).
		From("sessions").
		Where(squirrel.Eq{column: value}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select session sql: %w", err)
	}

	session, err := scanSession(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return session, nil
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var session domain.Session
	if err := row.Scan(
		&session.ID,
		&session.AccountID,
		&session.Role,
		&session.AccessTokenHash,
		&session.RefreshTokenHash,
		&session.SessionType,
		&session.CreatedAt,
		&session.AccessExpiresAt,
		&session.ExpiresAt,
		&session.RevokedAt,
		&session.RevokeReason,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	return &session, nil
}
