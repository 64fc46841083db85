package users

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Service manages accounts created at sign-in.
type Service struct {
	Repo Repo
	Now  func() time.Time
}

func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// SignIn records a login for id and returns the account it resolves to.
func (s *Service) SignIn(ctx context.Context, id Identity) (Account, error) {
	if strings.TrimSpace(id.Provider) == "" || strings.TrimSpace(id.Subject) == "" {
		return Account{}, fmt.Errorf("%w: provider and subject are required", ErrInvalidInput)
	}
	email := strings.ToLower(strings.TrimSpace(id.Email))
	if email == "" {
		return Account{}, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	return s.Repo.RecordLogin(ctx, Account{
		ID:          id.OwnerID(),
		Provider:    strings.ToLower(strings.TrimSpace(id.Provider)),
		Email:       email,
		Name:        strings.TrimSpace(id.Name),
		PictureURL:  id.PictureURL,
		LastLoginAt: s.now(),
	})
}

func (s *Service) Get(ctx context.Context, id string) (Account, error) {
	if strings.TrimSpace(id) == "" {
		return Account{}, fmt.Errorf("%w: account id is required", ErrInvalidInput)
	}
	return s.Repo.GetByID(ctx, id)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
