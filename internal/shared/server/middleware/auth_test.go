package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"cvbuilder-backend/internal/shared/auth"
)

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Auth(AuthConfig{LoginURL: "/login", PublicPrefix: []string{"/api/v1/health"}}))
	router.GET("/api/v1/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/api/v1/cvs", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userId": UserIDFromContext(c)})
	})
	router.OPTIONS("/api/v1/cvs", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return router
}

func TestAuthAllowsOptionsWithoutIdentity(t *testing.T) {
	router := newAuthRouter()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/cvs", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
}

func TestAuthRequiredCarriesLoginURL(t *testing.T) {
	router := newAuthRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cvs", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
	var payload struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Error.Code != "auth_required" {
		t.Fatalf("expected auth_required, got %s", payload.Error.Code)
	}
	if payload.Error.Details["loginUrl"] != "/login" {
		t.Fatalf("expected loginUrl in details, got %v", payload.Error.Details)
	}
}

func TestAuthAcceptsBearerAndQueryToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	token, err := auth.SignJWT(auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	router := newAuthRouter()

	tests := []struct {
		name string
		req  func() *http.Request
	}{
		{name: "header", req: func() *http.Request {
			r := httptest.NewRequest(http.MethodGet, "/api/v1/cvs", nil)
			r.Header.Set("Authorization", "Bearer "+token)
			return r
		}},
		{name: "query", req: func() *http.Request {
			return httptest.NewRequest(http.MethodGet, "/api/v1/cvs?access_token="+token, nil)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, tt.req())
			if resp.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", resp.Code)
			}
			var body map[string]string
			_ = json.Unmarshal(resp.Body.Bytes(), &body)
			if body["userId"] != "user-1" {
				t.Fatalf("expected user-1, got %q", body["userId"])
			}
		})
	}
}

func TestAuthSkipsPublicPrefix(t *testing.T) {
	router := newAuthRouter()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}
