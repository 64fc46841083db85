package sources

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"cvbuilder-backend/internal/shared/server/middleware"
	"cvbuilder-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches source document routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/sources", h.list)
	rg.POST("/sources", h.create)
	rg.DELETE("/sources/:id", h.delete)
	rg.POST("/sources/presign", h.presign)
}

// create accepts a multipart upload, or a JSON body registering an object
// uploaded through a presigned URL.
func (h *Handler) create(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if strings.HasPrefix(c.ContentType(), "application/json") {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Key) == "" {
			respond.Error(c, http.StatusBadRequest, "validation_error", "key is required", nil)
			return
		}
		doc, err := h.Svc.Register(c.Request.Context(), userID, req.Key, req.FileName, req.ContentType)
		if err != nil {
			writeError(c, err)
			return
		}
		respond.JSON(c, http.StatusCreated, toResponse(doc))
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes+(1<<20))
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	doc, err := h.Svc.Upload(c.Request.Context(), userID, fileHeader.Filename, fileHeader.Header.Get("Content-Type"), file)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.JSON(c, http.StatusCreated, toResponse(doc))
}

func (h *Handler) list(c *gin.Context) {
	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	docs, err := h.Svc.List(c.Request.Context(), middleware.UserIDFromContext(c), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		resp = append(resp, toResponse(doc))
	}
	respond.List(c, resp, limit, offset)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.Svc.Delete(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) presign(c *gin.Context) {
	var req presignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	out, err := h.Svc.Presign(c.Request.Context(), middleware.UserIDFromContext(c),
		strings.TrimSpace(req.FileName), strings.TrimSpace(req.ContentType), req.SizeBytes)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.JSON(c, http.StatusOK, out)
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "source document not found", nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrPresignUnsupported):
		respond.Error(c, http.StatusNotImplemented, "presign_unsupported", "direct uploads need the S3 object store", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to process source document", nil)
	}
}
