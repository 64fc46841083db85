package users

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cvbuilder-backend/internal/shared/server/middleware"
	"cvbuilder-backend/internal/shared/server/respond"
)

// Handler serves the signed-in account.
type Handler struct {
	Svc      *Service
	LoginURL string
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, loginURL string) *Handler {
	return &Handler{Svc: svc, LoginURL: loginURL}
}

// RegisterRoutes attaches the /me endpoint.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.me)
}

// me returns the stored account. When the account row is missing (memory
// repo after a restart) the token claims are returned instead.
func (h *Handler) me(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		middleware.AbortAuthRequired(c, h.LoginURL, "Sign in to continue")
		return
	}

	acct, err := h.Svc.Get(c.Request.Context(), userID)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		acct = Account{
			ID:         userID,
			Email:      middleware.UserEmailFromContext(c),
			Name:       middleware.UserNameFromContext(c),
			PictureURL: middleware.UserPictureFromContext(c),
		}
		if i := strings.IndexByte(userID, ':'); i > 0 {
			acct.Provider = userID[:i]
		}
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load account", nil)
		return
	}
	respond.JSON(c, http.StatusOK, acct)
}
