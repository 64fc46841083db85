package cvs

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newTestRouter(svc *Service, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("userId", userID)
		c.Next()
	})
	NewHandler(svc).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func TestHandlerListAndGet(t *testing.T) {
	repo := NewMemoryRepo()
	_ = repo.Create(context.Background(), Record{ID: "a", UserID: "u1", Name: "Backend", CreatedAt: time.Now().UTC()})
	router := newTestRouter(&Service{Repo: repo}, "u1")

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/cvs?limit=500", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var list struct {
		Items []RecordResponse `json:"items"`
		Limit int              `json:"limit"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].Status != StatusPending || list.Limit != 50 {
		t.Fatalf("unexpected list: %+v", list)
	}

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/cvs/missing", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestHandlerOtherOwnerSeesNotFound(t *testing.T) {
	repo := NewMemoryRepo()
	_ = repo.Create(context.Background(), Record{ID: "a", UserID: "u1", Name: "Backend"})
	router := newTestRouter(&Service{Repo: repo}, "u2")

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/cvs/a", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestHandlerPatchValidatesName(t *testing.T) {
	repo := NewMemoryRepo()
	_ = repo.Create(context.Background(), Record{ID: "a", UserID: "u1", Name: "Backend"})
	router := newTestRouter(&Service{Repo: repo}, "u1")

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "rename", body: `{"name":"Platform"}`, want: http.StatusOK},
		{name: "invalid name", body: `{"name":"a/b"}`, want: http.StatusBadRequest},
		{name: "bad json", body: `{`, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPatch, "/api/v1/cvs/a", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)
			if resp.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, resp.Code, resp.Body.String())
			}
		})
	}
}

func TestHandlerDelete(t *testing.T) {
	repo := NewMemoryRepo()
	_ = repo.Create(context.Background(), Record{ID: "a", UserID: "u1", Name: "Backend"})
	router := newTestRouter(&Service{Repo: repo}, "u1")

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodDelete, "/api/v1/cvs/a", nil))
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodDelete, "/api/v1/cvs/a", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", resp.Code)
	}
}
