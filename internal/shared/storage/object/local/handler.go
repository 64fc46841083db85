package local

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"cvbuilder-backend/internal/shared/server/respond"
	"cvbuilder-backend/internal/shared/storage/object"
)

// Handler serves objects from a local store over HTTP.
type Handler struct {
	Store *Store
}

// RegisterRoutes attaches the download route.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/objects/*key", h.download)
}

func (h *Handler) download(c *gin.Context) {
	key, err := object.CleanKey(c.Param("key"))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_key", "Invalid object key", nil)
		return
	}
	if !h.Store.Authorize(key, c.Query("expires"), c.Query("sig")) {
		respond.Error(c, http.StatusForbidden, "forbidden", "Link expired or invalid", nil)
		return
	}

	info, err := h.Store.Stat(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "Object not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "storage_read_error", "Failed to read object", nil)
		return
	}
	rc, err := h.Store.Open(c.Request.Context(), key)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "storage_read_error", "Failed to read object", nil)
		return
	}
	defer rc.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Header("Content-Length", strconv.FormatInt(info.Size, 10))
	c.Header("Cache-Control", "private, max-age=60")
	c.Header("Content-Disposition", "inline; filename=\""+filepath.Base(key)+"\"")
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, rc)
}
