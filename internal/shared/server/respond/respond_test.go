package respond

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestErrorWritesEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/x", func(c *gin.Context) {
		Error(c, http.StatusConflict, "generation_in_progress", "A CV is already being generated", gin.H{"sessionId": "s1"})
	})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/x", nil))

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}
	var body ErrorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "generation_in_progress" || body.Error.Message == "" {
		t.Fatalf("unexpected body %+v", body)
	}
	details, ok := body.Error.Details.(map[string]any)
	if !ok || details["sessionId"] != "s1" {
		t.Fatalf("unexpected details %v", body.Error.Details)
	}
}

func TestUnauthorizedCarriesBearerChallenge(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/x", func(c *gin.Context) {
		Error(c, http.StatusUnauthorized, "auth_required", "Sign in to continue", nil)
	})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/x", nil))

	if got := resp.Header().Get("WWW-Authenticate"); got == "" {
		t.Fatalf("expected WWW-Authenticate header")
	}
}

func TestListSendsEmptyArray(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/x", func(c *gin.Context) {
		List[string](c, nil, 20, 0)
	})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/x", nil))

	if body := resp.Body.String(); body != `{"items":[],"limit":20,"offset":0}` {
		t.Fatalf("unexpected body %s", body)
	}
}
