package sources

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"cvbuilder-backend/internal/extract"
	"cvbuilder-backend/internal/shared/storage/object"
	"cvbuilder-backend/internal/shared/storage/object/local"
)

type presigningStore struct {
	*local.Store
	keys []string
}

func (p *presigningStore) PresignPut(_ context.Context, key, contentType string, ttl time.Duration) (string, error) {
	p.keys = append(p.keys, key)
	return "https://uploads.example/" + key + "?X-Amz-Signature=abc", nil
}

func docxBytes(t *testing.T, text string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	_, _ = w.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>` + text + `</w:t></w:r></w:p></w:body></w:document>`))
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	return &Service{Repo: NewMemoryRepo(), Store: local.New(t.TempDir())}
}

func TestUploadExtractsDocxText(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	doc, err := svc.Upload(ctx, "u1", "old cv.docx", "application/octet-stream", bytes.NewReader(docxBytes(t, "Staff Engineer")))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if doc.MimeType != extract.MimeDOCX {
		t.Fatalf("expected docx mime, got %s", doc.MimeType)
	}
	if !strings.HasPrefix(doc.StorageKey, "u1/sources/"+doc.ID+"-") {
		t.Fatalf("unexpected storage key %s", doc.StorageKey)
	}
	if doc.ExtractedTextKey != doc.StorageKey+".extracted.txt" {
		t.Fatalf("unexpected extracted key %s", doc.ExtractedTextKey)
	}
	stored, err := svc.Repo.GetByID(ctx, "u1", doc.ID)
	if err != nil || stored.ExtractedTextKey == "" {
		t.Fatalf("extraction not recorded: %+v %v", stored, err)
	}
}

func TestUploadPlainTextSkipsExtraction(t *testing.T) {
	svc := newTestService(t)
	doc, err := svc.Upload(context.Background(), "u1", "notes.txt", "", strings.NewReader("Led a team of five"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if doc.MimeType != "text/plain" || doc.ExtractedTextKey != "" {
		t.Fatalf("unexpected document %+v", doc)
	}
}

func TestUploadRejectsDisallowedTypes(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Upload(context.Background(), "u1", "me.png", "image/png", strings.NewReader("\x89PNG\r\n\x1a\n"))
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestDeleteRemovesBothObjects(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	doc, err := svc.Upload(ctx, "u1", "cv.docx", extract.MimeDOCX, bytes.NewReader(docxBytes(t, "Go")))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if err := svc.Delete(ctx, "u1", doc.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	for _, key := range []string{doc.StorageKey, doc.ExtractedTextKey} {
		if _, err := svc.Store.Stat(ctx, key); !errors.Is(err, object.ErrNotFound) {
			t.Fatalf("expected %s to be deleted, got %v", key, err)
		}
	}
	if err := svc.Delete(ctx, "u1", doc.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestPresignAndRegister(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Presign(ctx, "u1", "cv.pdf", extract.MimePDF, 1024); !errors.Is(err, ErrPresignUnsupported) {
		t.Fatalf("expected ErrPresignUnsupported for local store, got %v", err)
	}

	store := &presigningStore{Store: local.New(t.TempDir())}
	svc.Store = store
	slot, err := svc.Presign(ctx, "u1", "cv.txt", "text/plain", 1024)
	if err != nil {
		t.Fatalf("Presign: %v", err)
	}
	if !strings.HasPrefix(slot.Key, "u1/sources/") || slot.ExpiresInSeconds != 900 {
		t.Fatalf("unexpected slot %+v", slot)
	}

	// The client PUTs to the URL; simulate it by writing the object.
	if _, err := store.Put(ctx, slot.Key, "text/plain", strings.NewReader("hello")); err != nil {
		t.Fatalf("put: %v", err)
	}
	doc, err := svc.Register(ctx, "u1", slot.Key, "cv.txt", "text/plain")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if doc.SizeBytes != 5 || doc.FileName != "cv.txt" {
		t.Fatalf("unexpected registered document %+v", doc)
	}

	if _, err := svc.Register(ctx, "u2", slot.Key, "cv.txt", "text/plain"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected foreign key to be rejected, got %v", err)
	}
}
