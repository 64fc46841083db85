package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"cvbuilder-backend/internal/artifacts"
	"cvbuilder-backend/internal/extract"
	"cvbuilder-backend/internal/shared/storage/object"
	"cvbuilder-backend/internal/shared/telemetry"
	"cvbuilder-backend/internal/shared/util"
)

const (
	maxUploadBytes = 10 << 20
	presignExpires = 15 * time.Minute
)

var allowedContentTypes = map[string]struct{}{
	extract.MimePDF:      {},
	extract.MimeDOCX:     {},
	"application/msword": {},
	"text/plain":         {},
}

// Service contains business logic for source documents.
type Service struct {
	Repo  Repo
	Store object.ObjectStore
	Now   func() time.Time
}

// Presigned is a direct upload slot issued to a client.
type Presigned struct {
	UploadURL        string `json:"uploadUrl"`
	Key              string `json:"key"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
}

// Upload stores the file, records it and extracts its text when possible.
func (s *Service) Upload(ctx context.Context, userID, fileName, contentType string, r io.Reader) (Document, error) {
	if userID == "" {
		return Document{}, fmt.Errorf("%w: user id required", ErrInvalidInput)
	}
	sniffed, body, err := object.Sniff(r)
	if err != nil {
		return Document{}, err
	}
	mimeType := chooseMime(contentType, sniffed, fileName)
	if !allowed(mimeType) {
		return Document{}, fmt.Errorf("%w: content type %s is not allowed", ErrInvalidInput, mimeType)
	}

	id := uuid.NewString()
	key, name, err := sourceKey(userID, id, fileName)
	if err != nil {
		return Document{}, err
	}
	size, err := s.Store.Put(ctx, key, mimeType, io.LimitReader(body, maxUploadBytes+1))
	if err != nil {
		return Document{}, fmt.Errorf("store source user=%s: %w", userID, err)
	}
	if size > maxUploadBytes {
		_ = s.Store.Delete(ctx, key)
		return Document{}, fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidInput, maxUploadBytes)
	}

	return s.record(ctx, Document{
		ID:         id,
		UserID:     userID,
		FileName:   name,
		MimeType:   mimeType,
		SizeBytes:  size,
		StorageKey: key,
		CreatedAt:  s.now(),
	})
}

// Presign issues a direct upload URL. The client registers the upload with
// Register once the PUT succeeds.
func (s *Service) Presign(ctx context.Context, userID, fileName, contentType string, sizeBytes int64) (Presigned, error) {
	presigner, ok := s.Store.(object.UploadPresigner)
	if !ok {
		return Presigned{}, ErrPresignUnsupported
	}
	if userID == "" {
		return Presigned{}, fmt.Errorf("%w: user id required", ErrInvalidInput)
	}
	if !allowed(contentType) {
		return Presigned{}, fmt.Errorf("%w: content type %s is not allowed", ErrInvalidInput, contentType)
	}
	if sizeBytes <= 0 || sizeBytes > maxUploadBytes {
		return Presigned{}, fmt.Errorf("%w: sizeBytes exceeds limit", ErrInvalidInput)
	}
	key, _, err := sourceKey(userID, uuid.NewString(), fileName)
	if err != nil {
		return Presigned{}, err
	}
	url, err := presigner.PresignPut(ctx, key, contentType, presignExpires)
	if err != nil {
		telemetry.Error("sources.presign.failed", map[string]any{
			"err":         err.Error(),
			"key":         key,
			"contentType": contentType,
			"sizeBytes":   sizeBytes,
		})
		return Presigned{}, err
	}
	return Presigned{UploadURL: url, Key: key, ExpiresInSeconds: int64(presignExpires.Seconds())}, nil
}

// Register records an object the client uploaded directly.
func (s *Service) Register(ctx context.Context, userID, key, fileName, contentType string) (Document, error) {
	clean, err := object.CleanKey(key)
	if err != nil || !strings.HasPrefix(clean, artifacts.SourcePath(userID, "")) {
		return Document{}, fmt.Errorf("%w: key does not belong to user", ErrInvalidInput)
	}
	info, err := s.Store.Stat(ctx, clean)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return Document{}, fmt.Errorf("%w: upload not found", ErrInvalidInput)
		}
		return Document{}, err
	}
	name := strings.TrimSpace(fileName)
	if name == "" {
		name = clean[strings.LastIndex(clean, "/")+1:]
	}
	if contentType == "" {
		contentType = info.ContentType
	}
	return s.record(ctx, Document{
		ID:         uuid.NewString(),
		UserID:     userID,
		FileName:   name,
		MimeType:   contentType,
		SizeBytes:  info.Size,
		StorageKey: clean,
		CreatedAt:  s.now(),
	})
}

// List returns documents of a user, newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Document, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id required", ErrInvalidInput)
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

// Delete removes a document and its objects. Missing objects are ignored.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	doc, err := s.Repo.GetByID(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, userID, id); err != nil {
		return err
	}
	for _, key := range []string{doc.StorageKey, doc.ExtractedTextKey} {
		if key == "" {
			continue
		}
		if err := s.Store.Delete(ctx, key); err != nil && !errors.Is(err, object.ErrNotFound) {
			telemetry.Warn("sources.delete.object_failed", map[string]any{
				"user_id": userID,
				"key":     key,
				"err":     err.Error(),
			})
		}
	}
	return nil
}

func (s *Service) record(ctx context.Context, doc Document) (Document, error) {
	if err := s.Repo.Create(ctx, doc); err != nil {
		return Document{}, err
	}
	if !extract.Supported(doc.MimeType, doc.FileName) {
		return doc, nil
	}

	res, err := extract.FromStore(ctx, s.Store, doc.StorageKey, doc.MimeType, doc.FileName)
	if err != nil {
		telemetry.Warn("sources.extract.failed", map[string]any{
			"user_id":     doc.UserID,
			"document_id": doc.ID,
			"err":         err.Error(),
		})
		return doc, nil
	}
	if err := s.Repo.SetExtractedKey(ctx, doc.UserID, doc.ID, res.Key); err != nil {
		return doc, err
	}
	doc.ExtractedTextKey = res.Key
	telemetry.Info("sources.extract.completed", map[string]any{
		"user_id":     doc.UserID,
		"document_id": doc.ID,
		"chars":       len(res.Text),
	})
	return doc, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// sourceKey prefixes the file name with the document id so two uploads of
// the same file never share an object.
func sourceKey(userID, id, fileName string) (string, string, error) {
	name, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return artifacts.SourcePath(userID, id+"-"+name), name, nil
}

func chooseMime(declared, sniffed, fileName string) string {
	declared = strings.ToLower(strings.TrimSpace(strings.Split(declared, ";")[0]))
	if allowed(declared) {
		return declared
	}
	if n := extract.Normalize(declared, fileName, nil); allowed(n) {
		return n
	}
	return strings.Split(sniffed, ";")[0]
}

func allowed(mimeType string) bool {
	_, ok := allowedContentTypes[mimeType]
	return ok
}
