package cvs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const recordColumns = `id, user_id, name, job_description, summary, generation_data, artifact_path, status, generated_at, created_at, updated_at`

// Create inserts a CV record.
func (r *PGRepo) Create(ctx context.Context, rec Record) error {
	data, err := marshalData(rec.GenerationData)
	if err != nil {
		return err
	}
	const query = `
INSERT INTO cv_records (
    id, user_id, name, job_description, summary, generation_data, artifact_path, status, generated_at, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err = r.DB.ExecContext(ctx, query,
		rec.ID,
		rec.UserID,
		nullString(rec.Name),
		rec.JobDescription,
		rec.Summary,
		data,
		nullString(rec.ArtifactPath),
		string(statusOrPending(rec.Status)),
		nullTime(rec.GeneratedAt),
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	return err
}

// GetByID returns a record by ID for a user.
func (r *PGRepo) GetByID(ctx context.Context, userID, id string) (Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Record{}, ErrNotFound
	}
	query := `
SELECT ` + recordColumns + `
FROM cv_records
WHERE id = $1
LIMIT 1`
	rec, err := scanRecord(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	if rec.UserID != userID {
		return Record{}, ErrForbidden
	}
	return rec, nil
}

// GetByName returns the newest record with the given name for a user.
func (r *PGRepo) GetByName(ctx context.Context, userID, name string) (Record, error) {
	query := `
SELECT ` + recordColumns + `
FROM cv_records
WHERE user_id = $1 AND name = $2
ORDER BY created_at DESC
LIMIT 1`
	rec, err := scanRecord(r.DB.QueryRowContext(ctx, query, userID, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

// ListByUser lists named records ordered newest-first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	query := `
SELECT ` + recordColumns + `
FROM cv_records
WHERE user_id = $1 AND name IS NOT NULL AND btrim(name) <> ''
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Update overwrites the editable fields of a record.
func (r *PGRepo) Update(ctx context.Context, rec Record) error {
	data, err := marshalData(rec.GenerationData)
	if err != nil {
		return err
	}
	const query = `
UPDATE cv_records
SET name = $3, job_description = $4, summary = $5, generation_data = $6, updated_at = $7
WHERE id = $1 AND user_id = $2`
	res, err := r.DB.ExecContext(ctx, query,
		rec.ID,
		rec.UserID,
		nullString(rec.Name),
		rec.JobDescription,
		rec.Summary,
		data,
		rec.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// MarkReady records a successful generation and the artifact it produced.
func (r *PGRepo) MarkReady(ctx context.Context, userID, id, artifactPath string, at time.Time) error {
	const query = `
UPDATE cv_records
SET status = 'ready', artifact_path = $3, generated_at = $4, updated_at = $4
WHERE id = $1 AND user_id = $2`
	res, err := r.DB.ExecContext(ctx, query, id, userID, artifactPath, at)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// MarkFailed records a failed generation.
func (r *PGRepo) MarkFailed(ctx context.Context, userID, id string, at time.Time) error {
	const query = `
UPDATE cv_records
SET status = 'failed', updated_at = $3
WHERE id = $1 AND user_id = $2`
	res, err := r.DB.ExecContext(ctx, query, id, userID, at)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// Delete removes a record.
func (r *PGRepo) Delete(ctx context.Context, userID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	const query = `DELETE FROM cv_records WHERE id = $1 AND user_id = $2`
	res, err := r.DB.ExecContext(ctx, query, id, userID)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec          Record
		name         sql.NullString
		artifactPath sql.NullString
		status       string
		data         []byte
		generatedAt  sql.NullTime
	)
	if err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&name,
		&rec.JobDescription,
		&rec.Summary,
		&data,
		&artifactPath,
		&status,
		&generatedAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return Record{}, err
	}
	rec.Name = name.String
	rec.ArtifactPath = artifactPath.String
	rec.Status = Status(status)
	if generatedAt.Valid {
		t := generatedAt.Time
		rec.GeneratedAt = &t
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &rec.GenerationData); err != nil {
			return Record{}, fmt.Errorf("decode generation_data: %w", err)
		}
	}
	return rec, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func marshalData(data map[string]any) ([]byte, error) {
	if data == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode generation_data: %w", err)
	}
	return b, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func statusOrPending(s Status) Status {
	if s == "" {
		return StatusPending
	}
	return s
}

var _ Repo = (*PGRepo)(nil)
