package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"cvbuilder-backend/internal/shared/storage/object"
)

const defaultPublicBase = "https://storage.googleapis.com"

// Store implements ObjectStore on a Google Cloud Storage (Firebase) bucket.
type Store struct {
	client        *storage.Client
	bucket        string
	publicBaseURL string
	emulatorHost  string
}

// Options configures a GCS store.
type Options struct {
	Bucket        string
	PublicBaseURL string
}

// New creates a GCS-backed object store. When STORAGE_EMULATOR_HOST is set the
// client talks to the emulator without credentials.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}

	emulator := strings.TrimRight(strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST")), "/")
	var clientOpts []option.ClientOption
	if emulator != "" {
		clientOpts = append(clientOpts, option.WithoutAuthentication())
	} else {
		clientOpts = append(clientOpts, option.WithScopes(storage.ScopeReadWrite))
	}
	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	base := strings.TrimRight(opts.PublicBaseURL, "/")
	if base == "" && emulator != "" {
		base = emulator
	}
	return &Store{client: client, bucket: opts.Bucket, publicBaseURL: base, emulatorHost: emulator}, nil
}

// Put writes r to key, replacing any existing object.
func (s *Store) Put(ctx context.Context, key string, contentType string, r io.Reader) (int64, error) {
	clean, err := object.CleanKey(key)
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(clean).NewWriter(ctx)
	w.ContentType = contentType
	n, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return 0, fmt.Errorf("gcs write bucket=%s key=%s: %w", s.bucket, clean, err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("gcs close writer bucket=%s key=%s: %w", s.bucket, clean, err)
	}
	return n, nil
}

// Open returns a reader for the object.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := s.client.Bucket(s.bucket).Object(strings.TrimLeft(key, "/")).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, object.ErrNotFound
		}
		return nil, fmt.Errorf("gcs open bucket=%s key=%s: %w", s.bucket, key, err)
	}
	return rc, nil
}

// Stat returns the object's attributes.
func (s *Store) Stat(ctx context.Context, key string) (object.Info, error) {
	attrs, err := s.client.Bucket(s.bucket).Object(strings.TrimLeft(key, "/")).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return object.Info{}, object.ErrNotFound
		}
		return object.Info{}, fmt.Errorf("gcs attrs bucket=%s key=%s: %w", s.bucket, key, err)
	}
	return object.Info{
		Key:         attrs.Name,
		Size:        attrs.Size,
		ContentType: attrs.ContentType,
		UpdatedAt:   attrs.Updated.UTC(),
	}, nil
}

// Delete removes the object; a missing object is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.client.Bucket(s.bucket).Object(strings.TrimLeft(key, "/")).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("gcs delete bucket=%s key=%s: %w", s.bucket, key, err)
	}
	return nil
}

// List returns every object under prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]object.Info, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: strings.TrimLeft(prefix, "/")})
	var out []object.Info
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gcs list bucket=%s prefix=%s: %w", s.bucket, prefix, err)
		}
		out = append(out, object.Info{Key: attrs.Name, Size: attrs.Size, ContentType: attrs.ContentType, UpdatedAt: attrs.Updated.UTC()})
	}
	return out, nil
}

// SignedURL returns a V4 signed GET URL after confirming the object exists.
// The emulator cannot sign, so it gets the public URL instead.
func (s *Store) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	info, err := s.Stat(ctx, key)
	if err != nil {
		return "", err
	}
	if s.emulatorHost != "" {
		return s.PublicURL(info.Key), nil
	}
	signed, err := s.client.Bucket(s.bucket).SignedURL(info.Key, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("gcs sign bucket=%s key=%s: %w", s.bucket, info.Key, err)
	}
	return signed, nil
}

// PresignPut returns a V4 signed PUT URL for direct uploads.
func (s *Store) PresignPut(ctx context.Context, key string, contentType string, ttl time.Duration) (string, error) {
	clean, err := object.CleanKey(key)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	signed, err := s.client.Bucket(s.bucket).SignedURL(clean, &storage.SignedURLOptions{
		Scheme:      storage.SigningSchemeV4,
		Method:      http.MethodPut,
		ContentType: contentType,
		Expires:     time.Now().Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("gcs sign put bucket=%s key=%s: %w", s.bucket, clean, err)
	}
	return signed, nil
}

// SignsQuery reports whether signed URLs cover the query string. Emulator
// URLs are unsigned.
func (s *Store) SignsQuery() bool { return s.emulatorHost == "" }

// PublicURL returns the unsigned object URL.
func (s *Store) PublicURL(key string) string {
	return publicURL(s.publicBaseURL, s.bucket, key)
}

func publicURL(base, bucket, key string) string {
	if base == "" {
		base = defaultPublicBase
	}
	parts := strings.Split(strings.TrimLeft(key, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(base, "/"), bucket, strings.Join(parts, "/"))
}

var (
	_ object.ObjectStore     = (*Store)(nil)
	_ object.UploadPresigner = (*Store)(nil)
)
