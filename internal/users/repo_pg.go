package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PGRepo stores accounts in the users table.
type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) RecordLogin(ctx context.Context, acct Account) (Account, error) {
	const query = `
INSERT INTO users (id, provider, email, name, picture_url, created_at, last_login_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
ON CONFLICT (id) DO UPDATE SET
  email = EXCLUDED.email,
  name = EXCLUDED.name,
  picture_url = EXCLUDED.picture_url,
  last_login_at = EXCLUDED.last_login_at
RETURNING created_at`
	err := r.DB.QueryRowContext(ctx, query,
		acct.ID,
		acct.Provider,
		acct.Email,
		nullString(acct.Name),
		nullString(acct.PictureURL),
		acct.LastLoginAt,
	).Scan(&acct.CreatedAt)
	if err != nil {
		return Account{}, fmt.Errorf("record login id=%s: %w", acct.ID, err)
	}
	return acct, nil
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (Account, error) {
	const query = `
SELECT id, provider, email, name, picture_url, created_at, last_login_at
FROM users
WHERE id = $1`
	var (
		acct    Account
		name    sql.NullString
		picture sql.NullString
	)
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&acct.ID,
		&acct.Provider,
		&acct.Email,
		&name,
		&picture,
		&acct.CreatedAt,
		&acct.LastLoginAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	acct.Name = name.String
	acct.PictureURL = picture.String
	return acct, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
