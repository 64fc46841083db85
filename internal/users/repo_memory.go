package users

import (
	"context"
	"sync"
)

// MemoryRepo keeps accounts in process memory.
type MemoryRepo struct {
	mu       sync.RWMutex
	accounts map[string]Account
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{accounts: make(map[string]Account)}
}

func (r *MemoryRepo) RecordLogin(ctx context.Context, acct Account) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.accounts[acct.ID]; ok {
		acct.CreatedAt = existing.CreatedAt
	} else {
		acct.CreatedAt = acct.LastLoginAt
	}
	r.accounts[acct.ID] = acct
	return acct, nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	acct, ok := r.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return acct, nil
}
