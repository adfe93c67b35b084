package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/englishadventure/user-service/internal/core/domain"
)

const uniqueViolation = "23505"

const accountColumns = `id, username, email, password_hash, avatar_url, character_name,
	language_level, level, experience, coins, version, created_at, updated_at`

// AccountRepository stores accounts in the accounts table.
type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	a := &domain.Account{}
	err := row.Scan(
		&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.AvatarURL, &a.CharacterName,
		&a.LanguageLevel, &a.Level, &a.Experience, &a.Coins, &a.Version, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (r *AccountRepository) Create(ctx context.Context, a *domain.Account) (*domain.Account, error) {
	query := `INSERT INTO accounts (username, email, password_hash, avatar_url, character_name,
		language_level, level, experience, coins, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`

	created := *a
	err := r.db.QueryRowContext(ctx, query,
		a.Username, a.Email, a.PasswordHash, a.AvatarURL, a.CharacterName,
		a.LanguageLevel, a.Level, a.Experience, a.Coins, a.Version,
		a.CreatedAt.UTC(), a.UpdatedAt.UTC(),
	).Scan(&created.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrAccountExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &created, nil
}

func (r *AccountRepository) FindByID(ctx context.Context, id int64) (*domain.Account, error) {
	return r.findOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
}

func (r *AccountRepository) FindByUsername(ctx context.Context, username string) (*domain.Account, error) {
	return r.findOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE username = $1`, username)
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
}

func (r *AccountRepository) findOne(ctx context.Context, query string, arg any) (*domain.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

// Update writes the mutable columns guarded by the version column.
func (r *AccountRepository) Update(ctx context.Context, a *domain.Account) error {
	query := `UPDATE accounts SET username = $1, email = $2, avatar_url = $3, character_name = $4,
		language_level = $5, level = $6, experience = $7, coins = $8,
		version = version + 1, updated_at = $9
		WHERE id = $10 AND version = $11`

	res, err := r.db.ExecContext(ctx, query,
		a.Username, a.Email, a.AvatarURL, a.CharacterName,
		a.LanguageLevel, a.Level, a.Experience, a.Coins,
		a.UpdatedAt.UTC(), a.ID, a.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAccountExists
		}
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, a.ID).Scan(&exists); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if !exists {
			return domain.ErrAccountNotFound
		}
		return domain.ErrVersionConflict
	}

	a.Version++
	return nil
}

func (r *AccountRepository) TopByExperience(ctx context.Context, limit int) ([]*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY experience DESC, id ASC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
