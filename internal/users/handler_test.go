package users

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestMeReturnsStoredAccountOrClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := NewService(NewMemoryRepo())
	if _, err := svc.SignIn(context.Background(), Identity{Provider: "google", Subject: "1", Email: "Ada@Example.com", Name: "Ada"}); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	tests := []struct {
		name     string
		userID   string
		status   int
		email    string
		provider string
	}{
		{name: "stored", userID: "google:1", status: http.StatusOK, email: "ada@example.com", provider: "google"},
		{name: "claims fallback", userID: "google:2", status: http.StatusOK, email: "claims@example.com", provider: "google"},
		{name: "anonymous", userID: "", status: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(func(c *gin.Context) {
				if tt.userID != "" {
					c.Set("userId", tt.userID)
					c.Set("userEmail", "claims@example.com")
				}
				c.Next()
			})
			NewHandler(svc, "/login").RegisterRoutes(router.Group("/api/v1"))

			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
			if resp.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, resp.Code)
			}
			if tt.email == "" {
				return
			}
			var body Account
			_ = json.Unmarshal(resp.Body.Bytes(), &body)
			if body.Email != tt.email || body.Provider != tt.provider {
				t.Fatalf("unexpected account %+v", body)
			}
		})
	}
}
