package object

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"
	"time"
)

// ErrNotFound is returned when an object does not exist at the given key.
var ErrNotFound = errors.New("object not found")

// ErrInvalidKey is returned for keys that escape the store namespace.
var ErrInvalidKey = errors.New("invalid storage key")

// Info describes a stored object.
type Info struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
}

// ObjectStore defines the contract for saving and retrieving binary objects
// under caller-chosen keys.
type ObjectStore interface {
	Put(ctx context.Context, key string, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (Info, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]Info, error)
	// SignedURL returns a time-limited read URL. It returns ErrNotFound when
	// the object is absent.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	// PublicURL returns the unsigned URL the object would have if readable.
	PublicURL(key string) string
}

// UploadPresigner is implemented by stores that support direct client uploads.
type UploadPresigner interface {
	PresignPut(ctx context.Context, key string, contentType string, ttl time.Duration) (string, error)
}

// CleanKey normalizes a storage key and rejects traversal.
func CleanKey(key string) (string, error) {
	trimmed := strings.TrimLeft(strings.TrimSpace(key), "/")
	if trimmed == "" {
		return "", ErrInvalidKey
	}
	clean := path.Clean(trimmed)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrInvalidKey
	}
	return clean, nil
}

// Sniff reads the first bytes of r to detect its content type and returns a
// reader that replays them.
func Sniff(r io.Reader) (string, io.Reader, error) {
	var sniff [512]byte
	n, err := io.ReadFull(r, sniff[:])
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", nil, err
	}
	head := append([]byte(nil), sniff[:n]...)
	return http.DetectContentType(head), io.MultiReader(bytes.NewReader(head), r), nil
}

// QuerySigner is implemented by stores whose signed URLs cover the full query
// string, so extra parameters would invalidate the signature.
type QuerySigner interface {
	SignsQuery() bool
}

// SignsQuery reports whether store's signed URLs reject added query parameters.
func SignsQuery(store ObjectStore) bool {
	qs, ok := store.(QuerySigner)
	return ok && qs.SignsQuery()
}
