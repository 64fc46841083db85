package cvs

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores CV records in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Record
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Record)}
}

// Create stores the record.
func (r *MemoryRepo) Create(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[rec.ID] = cloneRecord(rec)
	return nil
}

// GetByID returns a record by ID for a user.
func (r *MemoryRepo) GetByID(ctx context.Context, userID, id string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byID[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	if rec.UserID != userID {
		return Record{}, ErrForbidden
	}
	return cloneRecord(rec), nil
}

// GetByName returns the newest record with the given name.
func (r *MemoryRepo) GetByName(ctx context.Context, userID, name string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found *Record
	for _, rec := range r.byID {
		if rec.UserID != userID || rec.Name != name {
			continue
		}
		if found == nil || rec.CreatedAt.After(found.CreatedAt) {
			c := rec
			found = &c
		}
	}
	if found == nil {
		return Record{}, ErrNotFound
	}
	return cloneRecord(*found), nil
}

// ListByUser returns visible records for a user, newest first, with limit/offset.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}

	r.mu.RLock()
	var recs []Record
	for _, rec := range r.byID {
		if rec.UserID == userID && rec.Visible() {
			recs = append(recs, cloneRecord(rec))
		}
	}
	r.mu.RUnlock()

	if offset >= len(recs) {
		return []Record{}, nil
	}
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
	end := len(recs)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return recs[offset:end], nil
}

// Update overwrites the mutable fields of an existing record.
func (r *MemoryRepo) Update(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.byID[rec.ID]
	if !ok {
		return ErrNotFound
	}
	if existing.UserID != rec.UserID {
		return ErrForbidden
	}
	rec.CreatedAt = existing.CreatedAt
	r.byID[rec.ID] = cloneRecord(rec)
	return nil
}

// MarkReady records a successful generation.
func (r *MemoryRepo) MarkReady(ctx context.Context, userID, id, artifactPath string, at time.Time) error {
	return r.mutate(ctx, userID, id, func(rec *Record) {
		rec.Status = StatusReady
		rec.ArtifactPath = artifactPath
		t := at
		rec.GeneratedAt = &t
		rec.UpdatedAt = at
	})
}

// MarkFailed records a failed generation without touching a previous artifact.
func (r *MemoryRepo) MarkFailed(ctx context.Context, userID, id string, at time.Time) error {
	return r.mutate(ctx, userID, id, func(rec *Record) {
		rec.Status = StatusFailed
		rec.UpdatedAt = at
	})
}

// Delete removes the record.
func (r *MemoryRepo) Delete(ctx context.Context, userID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	if rec.UserID != userID {
		return ErrForbidden
	}
	delete(r.byID, id)
	return nil
}

func (r *MemoryRepo) mutate(ctx context.Context, userID, id string, fn func(*Record)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	if rec.UserID != userID {
		return ErrForbidden
	}
	fn(&rec)
	r.byID[id] = rec
	return nil
}

func cloneRecord(rec Record) Record {
	if rec.GenerationData != nil {
		data := make(map[string]any, len(rec.GenerationData))
		for k, v := range rec.GenerationData {
			data[k] = v
		}
		rec.GenerationData = data
	}
	if rec.GeneratedAt != nil {
		t := *rec.GeneratedAt
		rec.GeneratedAt = &t
	}
	return rec
}

var _ Repo = (*MemoryRepo)(nil)
