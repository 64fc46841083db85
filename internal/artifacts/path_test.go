package artifacts

import (
	"net/url"
	"testing"
	"time"
)

func TestPathIsDeterministic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		owner string
		name  string
		want  string
	}{
		{owner: "user-1", name: "CV_2024", want: "user-1/cvs/CV_2024.pdf"},
		{owner: "user-1", name: "Backend role", want: "user-1/cvs/Backend role.pdf"},
		{owner: "abc", name: "CV_2024-05-01_10-30", want: "abc/cvs/CV_2024-05-01_10-30.pdf"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			first := Path(tt.owner, tt.name)
			for i := 0; i < 3; i++ {
				if got := Path(tt.owner, tt.name); got != first {
					t.Fatalf("Path not stable: %q vs %q", got, first)
				}
			}
			if first != tt.want {
				t.Fatalf("Path(%q, %q) = %q, want %q", tt.owner, tt.name, first, tt.want)
			}
			if name, ok := NameFromPath(tt.owner, first); !ok || name != tt.name {
				t.Fatalf("NameFromPath(%q) = %q, %v", first, name, ok)
			}
		})
	}
}

func TestOtherPaths(t *testing.T) {
	if got := PhotoPath("u1"); got != "u1/profil/photo.jpg" {
		t.Fatalf("PhotoPath = %q", got)
	}
	if got := SourcePath("u1", "resume.pdf"); got != "u1/sources/resume.pdf" {
		t.Fatalf("SourcePath = %q", got)
	}
}

func TestNameFromPathRejectsForeignKeys(t *testing.T) {
	for _, key := range []string{"u2/cvs/A.pdf", "u1/profil/photo.jpg", "u1/cvs/.pdf", "u1/cvs/a/b.pdf", "u1/cvs/A.docx"} {
		if name, ok := NameFromPath("u1", key); ok {
			t.Fatalf("NameFromPath(%q) = %q, want rejection", key, name)
		}
	}
}

func TestCacheBust(t *testing.T) {
	at := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	got := CacheBust("http://api.test/api/v1/objects/u/cvs/a.pdf?expires=1&sig=abc", at)
	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	q := u.Query()
	if q.Get("v") == "" || q.Get("sig") != "abc" || q.Get("expires") != "1" {
		t.Fatalf("unexpected query %v", q)
	}

	again := CacheBust(got, at.Add(time.Second))
	u2, _ := url.Parse(again)
	if len(u2.Query()["v"]) != 1 {
		t.Fatalf("expected single v param, got %v", u2.Query()["v"])
	}
	if u2.Query().Get("v") == q.Get("v") {
		t.Fatalf("expected a new token")
	}

	if CacheBust("", at) != "" {
		t.Fatalf("expected empty url to stay empty")
	}
}
