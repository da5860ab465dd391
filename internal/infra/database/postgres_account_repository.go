package database

import (
	"context"
	"database/sql"
	"fmt"

	"community_activity_backend/internal/domain/account"
)

type PostgresAccountRepository struct {
	db *sql.DB
}

func NewPostgresAccountRepository(db *sql.DB) *PostgresAccountRepository {
	return &PostgresAccountRepository{db: db}
}

const accountColumns = `id, username, email, password_hash, role, is_active, is_verified, verification_token, push_token, created_at, updated_at`

func scanAccount(row *sql.Row) (*account.Account, error) {
	a := account.Account{}
	err := row.Scan(
		&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.Role,
		&a.IsActive, &a.IsVerified, &a.VerificationToken, &a.PushToken,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("error scanning account row: %w", err)
	}
	return &a, nil
}

func (r *PostgresAccountRepository) Create(ctx context.Context, a *account.Account) error {
	query := `INSERT INTO accounts (username, email, password_hash, role, is_active, is_verified, verification_token, push_token)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
               RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		a.Username, a.Email, a.PasswordHash, a.Role, a.IsActive, a.IsVerified, a.VerificationToken, a.PushToken,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "accounts_email_key") {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("error creating account: %w", err)
	}
	return nil
}

func (r *PostgresAccountRepository) GetByID(ctx context.Context, id int64) (*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresAccountRepository) GetByEmail(ctx context.Context, email string) (*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return scanAccount(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresAccountRepository) GetByVerificationToken(ctx context.Context, token string) (*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE verification_token = $1`
	return scanAccount(r.db.QueryRowContext(ctx, query, token))
}

func (r *PostgresAccountRepository) Update(ctx context.Context, a *account.Account) error {
	query := `UPDATE accounts
               SET username = $1, email = $2, password_hash = $3, role = $4,
                   is_active = $5, is_verified = $6, verification_token = $7, push_token = $8,
                   updated_at = NOW()
               WHERE id = $9
               RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query,
		a.Username, a.Email, a.PasswordHash, a.Role, a.IsActive, a.IsVerified, a.VerificationToken, a.PushToken, a.ID,
	).Scan(&a.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrAccountNotFound
		}
		if isUniqueViolation(err, "accounts_email_key") {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("error updating account: %w", err)
	}
	return nil
}
