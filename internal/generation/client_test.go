package generation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPClientGenerateCV(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantSuccess bool
		wantURL     string
		wantMessage string
	}{
		{name: "success with url", status: http.StatusOK, body: `{"success":true,"pdfUrl":"https://cdn/x.pdf"}`, wantSuccess: true, wantURL: "https://cdn/x.pdf"},
		{name: "success without url", status: http.StatusOK, body: `{"success":true}`, wantSuccess: true},
		{name: "explicit failure", status: http.StatusOK, body: `{"success":false,"message":"quota exceeded"}`, wantMessage: "quota exceeded"},
		{name: "upstream 500 without body", status: http.StatusInternalServerError, body: ``, wantMessage: "Internal Server Error"},
		{name: "upstream 502 html", status: http.StatusBadGateway, body: `<html>bad gateway</html>`, wantMessage: "Bad Gateway"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Request
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/generate-cv" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if r.Header.Get("Authorization") != "Bearer tok" {
					t.Errorf("missing bearer token")
				}
				_ = json.NewDecoder(r.Body).Decode(&got)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewHTTPClient(srv.URL+"/", time.Second)
			res, err := c.GenerateCV(context.Background(), "tok", Request{CVName: "CV_2024", CVID: "id-1"})
			if err != nil {
				t.Fatalf("GenerateCV: %v", err)
			}
			if got.CVName != "CV_2024" || got.CVID != "id-1" {
				t.Fatalf("unexpected request body %+v", got)
			}
			if res.Success != tt.wantSuccess || res.PDFURL != tt.wantURL || res.Status != tt.status {
				t.Fatalf("unexpected result %+v", res)
			}
			if tt.wantMessage != "" && res.Message != tt.wantMessage {
				t.Fatalf("expected message %q, got %q", tt.wantMessage, res.Message)
			}
		})
	}
}

func TestHTTPClientTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	if _, err := NewHTTPClient(url, time.Second).GenerateCV(context.Background(), "tok", Request{CVName: "x"}); err == nil {
		t.Fatalf("expected transport error")
	}
}

func TestHTTPClientGenerateProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/generate-profile" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"profile":{"skills":"Go"}}`))
	}))
	defer srv.Close()

	raw, err := NewHTTPClient(srv.URL, time.Second).GenerateProfile(context.Background(), "tok")
	if err != nil {
		t.Fatalf("GenerateProfile: %v", err)
	}
	var p map[string]string
	if err := json.Unmarshal(raw, &p); err != nil || p["skills"] != "Go" {
		t.Fatalf("unexpected profile %s (%v)", raw, err)
	}
}

func TestUnconfiguredFailsAsServiceError(t *testing.T) {
	res, err := Unconfigured{}.GenerateCV(context.Background(), "", Request{})
	if err != nil || res.Success || res.Status != http.StatusServiceUnavailable {
		t.Fatalf("unexpected result %+v, %v", res, err)
	}
	if _, err := (Unconfigured{}).GenerateProfile(context.Background(), ""); !errors.Is(err, ErrServiceError) {
		t.Fatalf("expected service error, got %v", err)
	}
}
