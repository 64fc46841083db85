package local

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"cvbuilder-backend/internal/shared/storage/object"
)

// RoutePrefix is where the API serves local objects.
const RoutePrefix = "/api/v1/objects/"

// Store implements ObjectStore using the local filesystem.
type Store struct {
	baseDir    string
	baseURL    string
	signingKey []byte
	publicRead bool
	now        func() time.Time
}

// Options configures URL generation for the local store.
type Options struct {
	PublicBaseURL string
	SigningKey    string
	PublicRead    bool
}

// New creates a new local object store rooted at baseDir.
func New(baseDir string, opts ...Options) *Store {
	s := &Store{baseDir: baseDir, baseURL: "http://localhost:8080", signingKey: []byte("dev-object-key"), now: time.Now}
	if len(opts) > 0 {
		o := opts[0]
		if o.PublicBaseURL != "" {
			s.baseURL = strings.TrimRight(o.PublicBaseURL, "/")
		}
		if o.SigningKey != "" {
			s.signingKey = []byte(o.SigningKey)
		}
		s.publicRead = o.PublicRead
	}
	return s
}

// Put writes the reader to disk at the given key, replacing any previous object.
func (s *Store) Put(ctx context.Context, key string, contentType string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	fullPath, err := s.resolve(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return 0, fmt.Errorf("mkdir: %w", err)
	}

	// Write to a temp file and rename so readers never see a partial object.
	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("open file: %w", err)
	}
	written, copyErr := io.Copy(tmp, r)
	closeErr := tmp.Close()
	if copyErr != nil {
		_ = os.Remove(tmp.Name())
		return 0, fmt.Errorf("write body: %w", copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmp.Name())
		return 0, fmt.Errorf("close file: %w", closeErr)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		_ = os.Remove(tmp.Name())
		return 0, fmt.Errorf("rename: %w", err)
	}
	if err := writeContentType(fullPath, contentType); err != nil {
		return 0, err
	}
	return written, nil
}

// Content types live in a hidden sidecar file next to the object.
const contentTypePrefix = ".ct-"

func contentTypePath(fullPath string) string {
	return filepath.Join(filepath.Dir(fullPath), contentTypePrefix+filepath.Base(fullPath))
}

func writeContentType(fullPath, contentType string) error {
	sidecar := contentTypePath(fullPath)
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		if err := os.Remove(sidecar); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove content type: %w", err)
		}
		return nil
	}
	if err := os.WriteFile(sidecar, []byte(contentType), 0o644); err != nil {
		return fmt.Errorf("write content type: %w", err)
	}
	return nil
}

func readContentType(fullPath string) string {
	if b, err := os.ReadFile(contentTypePath(fullPath)); err == nil {
		if ct := strings.TrimSpace(string(b)); ct != "" {
			return ct
		}
	}
	return mime.TypeByExtension(filepath.Ext(fullPath))
}

// Open opens a stored object for reading.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fullPath, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, object.ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// Stat returns object metadata.
func (s *Store) Stat(ctx context.Context, key string) (object.Info, error) {
	if err := ctx.Err(); err != nil {
		return object.Info{}, err
	}
	clean, err := object.CleanKey(key)
	if err != nil {
		return object.Info{}, err
	}
	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(clean))
	fi, err := os.Stat(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return object.Info{}, object.ErrNotFound
		}
		return object.Info{}, err
	}
	if fi.IsDir() {
		return object.Info{}, object.ErrNotFound
	}
	return object.Info{
		Key:         clean,
		Size:        fi.Size(),
		ContentType: readContentType(fullPath),
		UpdatedAt:   fi.ModTime().UTC(),
	}, nil
}

// Delete removes the object. Missing objects are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fullPath, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	_ = os.Remove(contentTypePath(fullPath))
	return nil
}

// List returns objects whose key starts with prefix, sorted by key.
func (s *Store) List(ctx context.Context, prefix string) ([]object.Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	root := s.baseDir
	cleanPrefix := strings.TrimLeft(prefix, "/")
	var out []object.Info
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") || strings.HasPrefix(d.Name(), contentTypePrefix) {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, cleanPrefix) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, object.Info{Key: key, Size: fi.Size(), ContentType: readContentType(p), UpdatedAt: fi.ModTime().UTC()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// SignedURL returns an HMAC-signed download URL served by the API.
func (s *Store) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	info, err := s.Stat(ctx, key)
	if err != nil {
		return "", err
	}
	expires := s.now().Add(ttl).Unix()
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("sig", s.sign(info.Key, expires))
	return s.PublicURL(info.Key) + "?" + q.Encode(), nil
}

// PublicURL returns the unsigned download URL for key.
func (s *Store) PublicURL(key string) string {
	clean := strings.TrimLeft(key, "/")
	segments := strings.Split(clean, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.baseURL + RoutePrefix + strings.Join(segments, "/")
}

// Authorize reports whether a download request for key may be served.
func (s *Store) Authorize(key, expiresRaw, sig string) bool {
	if sig == "" {
		return s.publicRead
	}
	expires, err := strconv.ParseInt(expiresRaw, 10, 64)
	if err != nil || s.now().Unix() > expires {
		return false
	}
	clean, err := object.CleanKey(key)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(sig), []byte(s.sign(clean, expires)))
}

func (s *Store) sign(key string, expires int64) string {
	mac := hmac.New(sha256.New, s.signingKey)
	mac.Write([]byte(key))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Store) resolve(key string) (string, error) {
	clean, err := object.CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.baseDir, filepath.FromSlash(clean)), nil
}

var (
	_ object.ObjectStore = (*Store)(nil)
)
