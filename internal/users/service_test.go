package users

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSignInKeepsCreatedAtAcrossLogins(t *testing.T) {
	first := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)
	clock := first
	svc := &Service{Repo: NewMemoryRepo(), Now: func() time.Time { return clock }}
	ctx := context.Background()

	acct, err := svc.SignIn(ctx, Identity{Provider: "Google", Subject: "42", Email: " Ada@Example.com "})
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if acct.ID != "google:42" || acct.Email != "ada@example.com" {
		t.Fatalf("unexpected account %+v", acct)
	}

	clock = first.Add(48 * time.Hour)
	acct, err = svc.SignIn(ctx, Identity{Provider: "google", Subject: "42", Email: "ada@example.com", Name: "Ada"})
	if err != nil {
		t.Fatalf("second SignIn: %v", err)
	}
	if !acct.CreatedAt.Equal(first) || !acct.LastLoginAt.Equal(clock) || acct.Name != "Ada" {
		t.Fatalf("unexpected account after relogin %+v", acct)
	}
}

func TestSignInRejectsIncompleteIdentity(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	for _, id := range []Identity{
		{Subject: "1", Email: "a@b.c"},
		{Provider: "google", Email: "a@b.c"},
		{Provider: "google", Subject: "1"},
	} {
		if _, err := svc.SignIn(context.Background(), id); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("identity %+v: expected ErrInvalidInput, got %v", id, err)
		}
	}
	if _, err := svc.Get(context.Background(), "google:missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
