package cvs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"cvbuilder-backend/internal/shared/storage/object/local"
)

func seed(t *testing.T, repo *MemoryRepo, rec Record) Record {
	t.Helper()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.UpdatedAt = rec.CreatedAt
	if err := repo.Create(context.Background(), rec); err != nil {
		t.Fatalf("create: %v", err)
	}
	return rec
}

func TestNormalizeName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "trims", in: "  Backend  ", want: "Backend"},
		{name: "empty", in: "   ", wantErr: true},
		{name: "slash", in: "a/b", wantErr: true},
		{name: "backslash", in: `a\b`, wantErr: true},
		{name: "traversal", in: "..", wantErr: true},
		{name: "control", in: "a\nb", wantErr: true},
		{name: "too long", in: strings.Repeat("x", 121), wantErr: true},
		{name: "unicode", in: "Développeur Go", want: "Développeur Go"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := NormalizeName(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Fatalf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("NormalizeName(%q) = %q, %v", tt.in, got, err)
			}
		})
	}
}

func TestDefaultName(t *testing.T) {
	at := time.Date(2025, 3, 4, 9, 7, 0, 0, time.UTC)
	got := DefaultName(at)
	if !strings.HasPrefix(got, "CV_2025-03-04_09-07-00_") || len(got) != len("CV_2025-03-04_09-07-00_")+6 {
		t.Fatalf("unexpected default name %q", got)
	}
	if other := DefaultName(at); other == got {
		t.Fatalf("default names collided: %q", got)
	}
	if _, err := NormalizeName(got); err != nil {
		t.Fatalf("default name rejected: %v", err)
	}
}

func TestListHidesUnnamedRecords(t *testing.T) {
	repo := NewMemoryRepo()
	base := time.Now().UTC()
	seed(t, repo, Record{ID: "a", UserID: "u1", Name: "First", CreatedAt: base})
	seed(t, repo, Record{ID: "b", UserID: "u1", CreatedAt: base.Add(time.Second)})
	seed(t, repo, Record{ID: "c", UserID: "u1", Name: "Second", CreatedAt: base.Add(2 * time.Second)})
	seed(t, repo, Record{ID: "d", UserID: "u2", Name: "Other", CreatedAt: base})

	svc := &Service{Repo: repo}
	recs, err := svc.List(context.Background(), "u1", 20, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 2 || recs[0].ID != "c" || recs[1].ID != "a" {
		t.Fatalf("unexpected list: %+v", recs)
	}
}

func TestUpdateRenamesAndKeepsArtifactPath(t *testing.T) {
	repo := NewMemoryRepo()
	seed(t, repo, Record{ID: "a", UserID: "u1", Name: "Old", ArtifactPath: "u1/cvs/Old.pdf", Status: StatusReady})
	svc := &Service{Repo: repo}

	name := " New "
	rec, err := svc.Update(context.Background(), "u1", "a", Patch{Name: &name})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if rec.Name != "New" || rec.ArtifactPath != "u1/cvs/Old.pdf" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	bad := "../etc"
	if _, err := svc.Update(context.Background(), "u1", "a", Patch{Name: &bad}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.Update(context.Background(), "u2", "a", Patch{Name: &name}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestDeleteRemovesStoredAndDerivedArtifacts(t *testing.T) {
	ctx := context.Background()
	store := local.New(t.TempDir())
	for _, key := range []string{"u1/cvs/Old.pdf", "u1/cvs/New.pdf", "u1/cvs/Keep.pdf"} {
		if _, err := store.Put(ctx, key, "application/pdf", strings.NewReader("%PDF-1.4")); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}

	repo := NewMemoryRepo()
	seed(t, repo, Record{ID: "a", UserID: "u1", Name: "New", ArtifactPath: "u1/cvs/Old.pdf"})
	svc := &Service{Repo: repo, Store: store}

	if err := svc.Delete(ctx, "u1", "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	for _, key := range []string{"u1/cvs/Old.pdf", "u1/cvs/New.pdf"} {
		if _, err := store.Stat(ctx, key); err == nil {
			t.Fatalf("expected %s to be deleted", key)
		}
	}
	if _, err := store.Stat(ctx, "u1/cvs/Keep.pdf"); err != nil {
		t.Fatalf("unrelated artifact removed: %v", err)
	}
	if _, err := repo.GetByID(ctx, "u1", "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected record gone, got %v", err)
	}
}

func TestDeleteWithoutArtifactSucceeds(t *testing.T) {
	repo := NewMemoryRepo()
	seed(t, repo, Record{ID: "a", UserID: "u1", Name: "Never generated"})
	svc := &Service{Repo: repo, Store: local.New(t.TempDir())}

	if err := svc.Delete(context.Background(), "u1", "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestDeletePendingRecordKeepsSiblingArtifact(t *testing.T) {
	ctx := context.Background()
	store := local.New(t.TempDir())
	const name = "CV_2024-05-06_07-08"
	if _, err := store.Put(ctx, "u1/cvs/"+name+".pdf", "application/pdf", strings.NewReader("%PDF-1.4")); err != nil {
		t.Fatalf("put: %v", err)
	}

	repo := NewMemoryRepo()
	base := time.Now().UTC()
	seed(t, repo, Record{ID: "a", UserID: "u1", Name: name, Status: StatusPending, CreatedAt: base})
	seed(t, repo, Record{ID: "b", UserID: "u1", Name: name, Status: StatusReady, ArtifactPath: "u1/cvs/" + name + ".pdf", CreatedAt: base.Add(-time.Second)})
	svc := &Service{Repo: repo, Store: store}

	if err := svc.Delete(ctx, "u1", "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Stat(ctx, "u1/cvs/"+name+".pdf"); err != nil {
		t.Fatalf("artifact of record b removed: %v", err)
	}

	if err := svc.Delete(ctx, "u1", "b"); err != nil {
		t.Fatalf("Delete b: %v", err)
	}
	if _, err := store.Stat(ctx, "u1/cvs/"+name+".pdf"); err == nil {
		t.Fatalf("expected artifact deleted with its last record")
	}
}

func TestArtifactPathsPrefersStored(t *testing.T) {
	got := ArtifactPaths(Record{UserID: "u1", Name: "B", ArtifactPath: "u1/cvs/A.pdf"})
	if len(got) != 2 || got[0] != "u1/cvs/A.pdf" || got[1] != "u1/cvs/B.pdf" {
		t.Fatalf("unexpected paths %v", got)
	}
	same := ArtifactPaths(Record{UserID: "u1", Name: "A", ArtifactPath: "u1/cvs/A.pdf"})
	if len(same) != 1 {
		t.Fatalf("expected de-duplicated paths, got %v", same)
	}
}
