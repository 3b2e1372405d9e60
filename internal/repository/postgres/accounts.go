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

var accountColumns = []string{
	"id",
	"username",
	"email",
	"secondary_email",
	"password_hash",
	"security_code_hash",
	"role",
	"status",
	"registered_at",
	"verified_at",
	"last_login",
	"last_password_change",
}

// AccountRepository implements port.AccountRepository for PostgreSQL.
type AccountRepository struct {
	db      DB
	builder squirrel.StatementBuilderType
}

var _ port.AccountRepository = (*AccountRepository)(nil)

// NewAccountRepository constructs an AccountRepository.
func NewAccountRepository(db DB) *AccountRepository {
	return &AccountRepository{
		db:      db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts an account record. Unique constraint violations on
// username or email surface as repository.ErrConflict.
func (r *AccountRepository) Create(ctx context.Context, account domain.Account) error {
	sql, args, err := r.builder.Insert("accounts").
		Columns(accountColumns...).
		Values(
			account.ID,
			account.Username,
			account.Email,
			account.SecondaryEmail,
			account.PasswordHash,
			account.SecurityCodeHash,
			account.Role,
			account.Status,
			account.RegisteredAt,
			account.VerifiedAt,
			account.LastLogin,
			account.LastPasswordChange,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert account sql: %w", err)
	}

	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("insert account: %w", err)
	}

	return nil
}

// GetByID returns an account by identifier.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	sql, args, err := r.builder.
		Select(accountColumns...).
		From("accounts").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account by id sql: %w", err)
	}

	return r.scanOne(ctx, sql, args)
}

// GetByIdentifier resolves an account by username, index number, or either
// email address.
func (r *AccountRepository) GetByIdentifier(ctx context.Context, identifier string) (*domain.Account, error) {
	sql, args, err := r.builder.
		Select(accountColumns...).
		From("accounts").
		Where(squirrel.Or{
			squirrel.Eq{"username": identifier},
			squirrel.Eq{"email": identifier},
			squirrel.Eq{"secondary_email": identifier},
		}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account by identifier sql: %w", err)
	}

	return r.scanOne(ctx, sql, args)
}

// MarkVerified flips a pending account to active exactly once. The status
// guard in the WHERE clause makes the transition idempotence-safe: a second
// call matches zero rows and reports ErrNotFound.
func (r *AccountRepository) MarkVerified(ctx context.Context, id string, at time.Time) error {
	sql, args, err := r.builder.Update("accounts").
		Set("status", domain.AccountStatusActive).
		Set("verified_at", at).
		Where(squirrel.Eq{"id": id, "status": domain.AccountStatusPending}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark verified sql: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("mark account verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdatePassword replaces the stored password hash.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id string, passwordHash string, changedAt time.Time) error {
	sql, args, err := r.builder.Update("accounts").
		Set("password_hash", passwordHash).
		Set("last_password_change", changedAt).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update password sql: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdateSecurityCode replaces the stored security code hash.
func (r *AccountRepository) UpdateSecurityCode(ctx context.Context, id string, securityCodeHash string) error {
	sql, args, err := r.builder.Update("accounts").
		Set("security_code_hash", securityCodeHash).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update security code sql: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update security code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// RecordLogin stamps the account's last successful login.
func (r *AccountRepository) RecordLogin(ctx context.Context, id string, at time.Time) error {
	sql, args, err := r.builder.Update("accounts").
		Set("last_login", at).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build record login sql: %w", err)
	}

	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("record login: %w", err)
	}

	return nil
}

func (r *AccountRepository) scanOne(ctx context.Context, sql string, args []any) (*domain.Account, error) {
	row := r.db.QueryRow(ctx, sql, args...)

	var account domain.Account
	if err := row.Scan(
		&account.ID,
		&account.Username,
		&account.Email,
		&account.SecondaryEmail,
		&account.PasswordHash,
		&account.SecurityCodeHash,
		&account.Role,
		&account.Status,
		&account.RegisteredAt,
		&account.VerifiedAt,
		&account.LastLogin,
		&account.LastPasswordChange,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}

	return &account, nil
}
