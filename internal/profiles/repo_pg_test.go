package profiles

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func TestPGRepoSaveUpserts(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	p := Template("user-1", now)
	p.PhotoPath = "user-1/profil/photo.jpg"

	mock.ExpectExec("INSERT INTO profiles").
		WithArgs("user-1", sqlmock.AnyArg(), "user-1/profil/photo.jpg", now, now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Save(context.Background(), p); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetDecodesData(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"user_id", "data", "photo_path", "created_at", "updated_at"}).
		AddRow("user-1", []byte(`{"head":{"name":"Ada"},"skills":"Go"}`), nil, now, now)
	mock.ExpectQuery("SELECT user_id, data, photo_path").WithArgs("user-1").WillReturnRows(rows)

	p, err := repo.Get(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.Data.Head.Name != "Ada" || p.Data.Skills != "Go" || p.PhotoPath != "" {
		t.Fatalf("unexpected profile: %+v", p)
	}
	if p.Data.Experiences == nil {
		t.Fatal("expected empty experiences, got nil")
	}
}

func TestPGRepoGetMissing(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT user_id, data, photo_path").WithArgs("user-2").WillReturnError(sql.ErrNoRows)

	if _, err := repo.Get(context.Background(), "user-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
