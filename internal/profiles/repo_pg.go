package profiles

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PGRepo implements Repo using Postgres. Profile content lives in one JSONB
// column.
type PGRepo struct {
	DB *sql.DB
}

// Get returns the profile of a user.
func (r *PGRepo) Get(ctx context.Context, userID string) (Profile, error) {
	const query = `
SELECT user_id, data, photo_path, created_at, updated_at
FROM profiles
WHERE user_id = $1
LIMIT 1`
	var (
		p         Profile
		raw       []byte
		photoPath sql.NullString
	)
	err := r.DB.QueryRowContext(ctx, query, userID).Scan(&p.UserID, &raw, &photoPath, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p.Data); err != nil {
			return Profile{}, fmt.Errorf("decode profile user=%s: %w", userID, err)
		}
	}
	p.Data = p.Data.normalized()
	if photoPath.Valid {
		p.PhotoPath = photoPath.String
	}
	return p, nil
}

// Save upserts the profile row.
func (r *PGRepo) Save(ctx context.Context, p Profile) error {
	raw, err := json.Marshal(p.Data.normalized())
	if err != nil {
		return err
	}
	var photoPath sql.NullString
	if p.PhotoPath != "" {
		photoPath = sql.NullString{String: p.PhotoPath, Valid: true}
	}
	const query = `
INSERT INTO profiles (user_id, data, photo_path, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id) DO UPDATE
SET data = EXCLUDED.data, photo_path = EXCLUDED.photo_path, updated_at = EXCLUDED.updated_at`
	_, err = r.DB.ExecContext(ctx, query, p.UserID, raw, photoPath, p.CreatedAt, p.UpdatedAt)
	return err
}

var _ Repo = (*PGRepo)(nil)
