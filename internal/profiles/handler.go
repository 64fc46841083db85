package profiles

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cvbuilder-backend/internal/generation"
	"cvbuilder-backend/internal/shared/server/middleware"
	"cvbuilder-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc      *Service
	LoginURL string
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, loginURL string) *Handler {
	return &Handler{Svc: svc, LoginURL: loginURL}
}

// RegisterRoutes attaches profile routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/profile", h.get)
	rg.PATCH("/profile", h.update)
	rg.POST("/profile/photo", h.uploadPhoto)
	rg.GET("/profile/photo", h.photo)
	rg.POST("/profile/generate", h.generate)
}

func (h *Handler) get(c *gin.Context) {
	p, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond.JSON(c, http.StatusOK, ToResponse(p))
}

func (h *Handler) update(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	p, err := h.Svc.Update(c.Request.Context(), middleware.UserIDFromContext(c), req.patch())
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond.JSON(c, http.StatusOK, ToResponse(p))
}

func (h *Handler) uploadPhoto(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxPhotoBytes+(1<<20))
	fileHeader, err := c.FormFile("photo")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "photo is required", nil)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read photo", nil)
		return
	}
	defer file.Close()

	p, err := h.Svc.UploadPhoto(c.Request.Context(), middleware.UserIDFromContext(c), file)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond.JSON(c, http.StatusCreated, ToResponse(p))
}

func (h *Handler) photo(c *gin.Context) {
	url, err := h.Svc.PhotoURL(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"url": url})
}

func (h *Handler) generate(c *gin.Context) {
	p, err := h.Svc.GenerateFromSources(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond.JSON(c, http.StatusOK, ToResponse(p))
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var gerr *generation.Error
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "profile photo not found", nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, generation.ErrAuthRequired):
		middleware.AbortAuthRequired(c, h.LoginURL, generation.UserMessage(err))
	case errors.As(err, &gerr):
		respond.Error(c, http.StatusBadGateway, string(gerr.Kind), generation.UserMessage(err), gin.H{"status": gerr.Status})
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to process profile", nil)
	}
}
