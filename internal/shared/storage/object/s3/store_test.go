package s3

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "user/file.pdf", want: "user/file.pdf"},
		{name: "simple prefix", prefix: "root", key: "user/file.pdf", want: "root/user/file.pdf"},
		{name: "prefix trailing slash", prefix: "root/", key: "user/file.pdf", want: "root/user/file.pdf"},
		{name: "prefix and key slashes", prefix: "/root/", key: "/user/file.pdf", want: "root/user/file.pdf"},
		{name: "nested prefix", prefix: "root/sub", key: "user/file.pdf", want: "root/sub/user/file.pdf"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}

func TestStripPrefix(t *testing.T) {
	t.Parallel()

	if got := stripPrefix("root", "root/u/cvs/a.pdf"); got != "u/cvs/a.pdf" {
		t.Fatalf("stripPrefix = %q", got)
	}
	if got := stripPrefix("", "u/cvs/a.pdf"); got != "u/cvs/a.pdf" {
		t.Fatalf("stripPrefix without prefix = %q", got)
	}
}

func TestPublicURL(t *testing.T) {
	t.Parallel()

	s := &Store{bucket: "cvs-bucket", region: "eu-west-1", prefix: "prod"}
	if got := s.PublicURL("u1/cvs/My CV.pdf"); got != "https://cvs-bucket.s3.eu-west-1.amazonaws.com/prod/u1/cvs/My%20CV.pdf" {
		t.Fatalf("unexpected public url %s", got)
	}

	cdn := &Store{bucket: "b", publicBaseURL: "https://cdn.example.com"}
	if got := cdn.PublicURL("u1/cvs/a.pdf"); got != "https://cdn.example.com/u1/cvs/a.pdf" {
		t.Fatalf("unexpected cdn url %s", got)
	}
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "no such key", err: &s3types.NoSuchKey{}, want: true},
		{name: "head not found", err: &s3types.NotFound{}, want: true},
		{name: "generic api", err: &smithy.GenericAPIError{Code: "NotFound"}, want: true},
		{name: "access denied", err: &smithy.GenericAPIError{Code: "AccessDenied"}, want: false},
		{name: "plain", err: errors.New("boom"), want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isNotFound(tt.err); got != tt.want {
				t.Fatalf("isNotFound(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func offlineStore(opts Options) *Store {
	cfg := aws.Config{
		Region:      "eu-west-1",
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider("AKID", "SECRET", "")),
	}
	return newWithConfig(cfg, opts)
}

func TestPresignPutSignsPrefixedKey(t *testing.T) {
	t.Parallel()

	s := offlineStore(Options{Bucket: "cvs-bucket", Prefix: "prod"})
	raw, err := s.PresignPut(context.Background(), "u1/sources/id-cv.pdf", "application/pdf", 15*time.Minute)
	if err != nil {
		t.Fatalf("PresignPut: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !strings.HasSuffix(u.Path, "/prod/u1/sources/id-cv.pdf") {
		t.Fatalf("unexpected path %s", u.Path)
	}
	q := u.Query()
	if q.Get("X-Amz-Signature") == "" || q.Get("X-Amz-Expires") != "900" {
		t.Fatalf("expected signed url with 900s expiry, got %s", raw)
	}
	if _, err := s.PresignPut(context.Background(), "../escape", "application/pdf", time.Minute); err == nil {
		t.Fatalf("expected traversal key to be rejected")
	}
}

func TestCustomEndpointUsesPathStyle(t *testing.T) {
	t.Parallel()

	s := offlineStore(Options{Bucket: "local-bucket", Endpoint: "http://localhost:9000/"})
	raw, err := s.PresignPut(context.Background(), "u1/profil/photo.jpg", "image/jpeg", time.Minute)
	if err != nil {
		t.Fatalf("PresignPut: %v", err)
	}
	if !strings.HasPrefix(raw, "http://localhost:9000/local-bucket/u1/profil/photo.jpg") {
		t.Fatalf("expected path-style url, got %s", raw)
	}
	if got := s.PublicURL("u1/profil/photo.jpg"); got != "http://localhost:9000/local-bucket/u1/profil/photo.jpg" {
		t.Fatalf("unexpected public url %s", got)
	}
}
