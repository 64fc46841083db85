package profiles

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Profile
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]Profile)}
}

// Get returns the profile of a user.
func (r *MemoryRepo) Get(ctx context.Context, userID string) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.data[userID]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return cloneProfile(p), nil
}

// Save stores p, replacing any previous profile.
func (r *MemoryRepo) Save(ctx context.Context, p Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.data[p.UserID]; ok && !prev.CreatedAt.IsZero() {
		p.CreatedAt = prev.CreatedAt
	}
	r.data[p.UserID] = cloneProfile(p)
	return nil
}

func cloneProfile(p Profile) Profile {
	p.Data.Experiences = append([]Experience(nil), p.Data.Experiences...)
	p.Data.Educations = append([]Education(nil), p.Data.Educations...)
	p.Data = p.Data.normalized()
	return p
}

var _ Repo = (*MemoryRepo)(nil)
