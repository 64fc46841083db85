package profiles

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"cvbuilder-backend/internal/generation"
	"cvbuilder-backend/internal/shared/storage/object/local"
)

const pngHeader = "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"

type stubGenerator struct {
	profile json.RawMessage
	err     error
	tokens  []string
}

func (g *stubGenerator) GenerateCV(context.Context, string, generation.Request) (generation.Result, error) {
	return generation.Result{}, errors.New("not used")
}

func (g *stubGenerator) GenerateProfile(_ context.Context, token string) (json.RawMessage, error) {
	g.tokens = append(g.tokens, token)
	return g.profile, g.err
}

type stubTokens struct {
	forced int
	err    error
}

func (s *stubTokens) Token(_ context.Context, ownerID string, force bool) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if force {
		s.forced++
	}
	return "token-" + ownerID, nil
}

func newTestService(t *testing.T) (*Service, *stubGenerator, *stubTokens) {
	t.Helper()
	gen := &stubGenerator{}
	toks := &stubTokens{}
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &Service{
		Repo:      NewMemoryRepo(),
		Store:     local.New(t.TempDir()),
		Generator: gen,
		Tokens:    toks,
		Now:       func() time.Time { return now },
	}, gen, toks
}

func TestGetCreatesTemplateOnce(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.UserID != "u1" || p.Data.Experiences == nil || p.Data.Educations == nil {
		t.Fatalf("unexpected template: %+v", p)
	}
	if _, err := svc.Repo.Get(ctx, "u1"); err != nil {
		t.Fatalf("template was not persisted: %v", err)
	}

	if _, err := svc.Get(ctx, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestUpdateLeavesNilFieldsUntouched(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	skills := "Go, Postgres"
	if _, err := svc.Update(ctx, "u1", Patch{Skills: &skills, Head: &Head{Name: "Ada"}}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	exps := []Experience{{Title: "Engineer", Company: "Acme"}}
	p, err := svc.Update(ctx, "u1", Patch{Experiences: &exps})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if p.Data.Skills != skills || p.Data.Head.Name != "Ada" {
		t.Fatalf("earlier fields were lost: %+v", p.Data)
	}
	if len(p.Data.Experiences) != 1 || p.Data.Experiences[0].Company != "Acme" {
		t.Fatalf("experiences not applied: %+v", p.Data.Experiences)
	}
}

func TestUploadPhotoAndSignedURL(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.PhotoURL(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before upload, got %v", err)
	}

	p, err := svc.UploadPhoto(ctx, "u1", strings.NewReader(pngHeader+strings.Repeat("x", 64)))
	if err != nil {
		t.Fatalf("UploadPhoto: %v", err)
	}
	if p.PhotoPath != "u1/profil/photo.jpg" {
		t.Fatalf("unexpected photo path %q", p.PhotoPath)
	}
	url, err := svc.PhotoURL(ctx, "u1")
	if err != nil {
		t.Fatalf("PhotoURL: %v", err)
	}
	if !strings.Contains(url, "photo.jpg") || !strings.Contains(url, "v=") {
		t.Fatalf("unexpected photo url %q", url)
	}
}

func TestOversizedPhotoKeepsPreviousPhoto(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.UploadPhoto(ctx, "u1", strings.NewReader(pngHeader+"small")); err != nil {
		t.Fatalf("UploadPhoto: %v", err)
	}
	big := pngHeader + strings.Repeat("x", maxPhotoBytes+10)
	if _, err := svc.UploadPhoto(ctx, "u1", strings.NewReader(big)); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for oversized photo, got %v", err)
	}
	if _, err := svc.PhotoURL(ctx, "u1"); err != nil {
		t.Fatalf("previous photo should still resolve: %v", err)
	}
	info, err := svc.Store.Stat(ctx, "u1/profil/photo.jpg")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size != int64(len(pngHeader+"small")) {
		t.Fatalf("previous photo overwritten, size %d", info.Size)
	}
}

func TestUploadPhotoRejectsNonImage(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.UploadPhoto(context.Background(), "u1", strings.NewReader("just some text"))
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestGenerateFromSourcesKeepsPhoto(t *testing.T) {
	svc, gen, toks := newTestService(t)
	ctx := context.Background()
	if _, err := svc.UploadPhoto(ctx, "u1", strings.NewReader(pngHeader)); err != nil {
		t.Fatalf("UploadPhoto: %v", err)
	}

	gen.profile = json.RawMessage(`{"head":{"name":"Ada Lovelace","title":"Engineer"},"experiences":[{"title":"Analyst","company":"Engine"}],"skills":"Mathematics"}`)
	p, err := svc.GenerateFromSources(ctx, "u1")
	if err != nil {
		t.Fatalf("GenerateFromSources: %v", err)
	}
	if p.Data.Head.Name != "Ada Lovelace" || len(p.Data.Experiences) != 1 || p.Data.Educations == nil {
		t.Fatalf("unexpected generated profile: %+v", p.Data)
	}
	if p.PhotoPath == "" {
		t.Fatal("photo path was dropped by generation")
	}
	if toks.forced != 1 || len(gen.tokens) != 1 || gen.tokens[0] != "token-u1" {
		t.Fatalf("expected one forced token, got forced=%d tokens=%v", toks.forced, gen.tokens)
	}
}

func TestGenerateFromSourcesErrors(t *testing.T) {
	tests := []struct {
		name    string
		profile string
		genErr  error
		tokErr  error
		want    error
	}{
		{name: "service failure", genErr: generation.ServiceError("no sources uploaded", 422), want: generation.ErrServiceError},
		{name: "malformed profile", profile: `{"experiences":"oops"}`, want: generation.ErrServiceError},
		{name: "token failure", tokErr: errors.New("no secret"), want: generation.ErrAuthRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, gen, toks := newTestService(t)
			gen.profile = json.RawMessage(tt.profile)
			gen.err = tt.genErr
			toks.err = tt.tokErr

			_, err := svc.GenerateFromSources(context.Background(), "u1")
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
