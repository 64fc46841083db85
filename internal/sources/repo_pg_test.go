package sources

import (
	"context"
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

const docID = "0b7a3a76-5c55-4b8e-9a4e-0f7c1b2f9d10"

func TestPGRepoCreate(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	doc := Document{
		ID:         docID,
		UserID:     "user-1",
		FileName:   "cv.pdf",
		MimeType:   "application/pdf",
		SizeBytes:  42,
		StorageKey: "user-1/sources/" + docID + "-cv.pdf",
		CreatedAt:  now,
	}

	mock.ExpectExec("INSERT INTO source_documents").
		WithArgs(doc.ID, doc.UserID, doc.FileName, doc.MimeType, doc.SizeBytes, doc.StorageKey, nil, now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoListByUserClampsLimit(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "user_id", "file_name", "mime_type", "size_bytes", "storage_key", "extracted_text_key", "created_at"}).
		AddRow(docID, "user-1", "cv.pdf", "application/pdf", int64(42), "user-1/sources/x", "user-1/sources/x.extracted.txt", now)
	mock.ExpectQuery("FROM source_documents").WithArgs("user-1", 100, 0).WillReturnRows(rows)

	docs, err := repo.ListByUser(context.Background(), "user-1", 1000, -5)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(docs) != 1 || docs[0].ExtractedTextKey == "" {
		t.Fatalf("unexpected docs %+v", docs)
	}
}

func TestPGRepoDeleteMissing(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("DELETE FROM source_documents").
		WithArgs("user-1", docID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), "user-1", docID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.Delete(context.Background(), "user-1", "not-a-uuid"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for invalid id, got %v", err)
	}
}
