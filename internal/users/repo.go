package users

import (
	"context"
	"errors"
)

var (
	ErrNotFound     = errors.New("account not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Repo persists accounts.
type Repo interface {
	// RecordLogin creates the account or refreshes its profile fields and
	// last login time. It returns the stored account.
	RecordLogin(ctx context.Context, acct Account) (Account, error)
	GetByID(ctx context.Context, id string) (Account, error)
}
