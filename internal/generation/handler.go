package generation

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"cvbuilder-backend/internal/cvs"
	"cvbuilder-backend/internal/shared/server/middleware"
	"cvbuilder-backend/internal/shared/server/respond"
)

const defaultHeartbeat = 15 * time.Second

// Handler exposes the coordinator over HTTP.
type Handler struct {
	Coord     *Coordinator
	LoginURL  string
	Heartbeat time.Duration
}

// NewHandler constructs a Handler.
func NewHandler(coord *Coordinator, loginURL string) *Handler {
	return &Handler{Coord: coord, LoginURL: loginURL}
}

// RegisterRoutes attaches generation routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/cvs", h.create)
	rg.POST("/cvs/:id/generate", h.generate)
	rg.GET("/cvs/:id/artifact", h.artifact)
	rg.POST("/cvs/:id/artifact/refresh", h.refresh)
	rg.POST("/cvs/:id/artifact/retry", h.retry)
	rg.GET("/generation/sessions/:id", h.session)
	rg.GET("/generation/sessions/:id/events", h.sessionEvents)
	rg.GET("/notifications/stream", h.notifications)
}

type createRequest struct {
	JobDescription string `json:"jobDescription"`
	Name           string `json:"name"`
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	rec, err := h.Coord.CreatePendingRecord(c.Request.Context(), middleware.UserIDFromContext(c), req.JobDescription, req.Name)
	if err != nil {
		if errors.Is(err, ErrStoreWrite) && rec.IsTemporary {
			c.Set(middleware.CVIDKey, rec.ID)
			respond.JSON(c, http.StatusAccepted, gin.H{
				"cv":       cvs.ToResponse(rec),
				"degraded": true,
				"message":  UserMessage(err),
			})
			return
		}
		h.writeError(c, err)
		return
	}
	c.Set(middleware.CVIDKey, rec.ID)
	respond.JSON(c, http.StatusCreated, cvs.ToResponse(rec))
}

func (h *Handler) generate(c *gin.Context) {
	c.Set(middleware.CVIDKey, c.Param("id"))
	snap, err := h.Coord.StartGeneration(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Set(middleware.SessionIDKey, snap.ID)
	respond.JSON(c, http.StatusAccepted, snap)
}

func (h *Handler) artifact(c *gin.Context) {
	c.Set(middleware.CVIDKey, c.Param("id"))
	ctx := c.Request.Context()
	userID := middleware.UserIDFromContext(c)
	rec, err := h.Coord.Record(ctx, userID, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	lookup, err := h.Coord.CheckArtifactExists(ctx, userID, rec.Name)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond.JSON(c, http.StatusOK, lookup)
}

func (h *Handler) refresh(c *gin.Context) {
	c.Set(middleware.CVIDKey, c.Param("id"))
	url, err := h.Coord.RefreshDisplay(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"url": url})
}

func (h *Handler) retry(c *gin.Context) {
	c.Set(middleware.CVIDKey, c.Param("id"))
	ctx := c.Request.Context()
	userID := middleware.UserIDFromContext(c)
	rec, err := h.Coord.Record(ctx, userID, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	lookup, err := h.Coord.Retry(ctx, userID, rec.Name)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond.JSON(c, http.StatusOK, lookup)
}

func (h *Handler) session(c *gin.Context) {
	c.Set(middleware.SessionIDKey, c.Param("id"))
	snap, err := h.Coord.Session(middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond.JSON(c, http.StatusOK, snap)
}

func (h *Handler) sessionEvents(c *gin.Context) {
	c.Set(middleware.SessionIDKey, c.Param("id"))
	sub, err := h.Coord.Subscribe(middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.stream(c, sub)
}

func (h *Handler) notifications(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		middleware.AbortAuthRequired(c, h.LoginURL, "Sign in to continue")
		return
	}
	h.stream(c, h.Coord.SubscribeOwner(userID))
}

// stream writes events as server-sent events until the subscription closes
// or the client goes away.
func (h *Handler) stream(c *gin.Context, sub *Subscription) {
	defer sub.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	interval := h.Heartbeat
	if interval <= 0 {
		interval = defaultHeartbeat
	}
	heartbeat := time.NewTicker(interval)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			c.Writer.Flush()
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			c.SSEvent(string(ev.Type), ev)
			c.Writer.Flush()
		}
	}
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrAuthRequired):
		middleware.AbortAuthRequired(c, h.LoginURL, UserMessage(err))
	case errors.Is(err, ErrRecordNotFound):
		respond.Error(c, http.StatusNotFound, string(KindRecordNotFound), "cv not found", nil)
	case errors.Is(err, ErrSessionNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "session not found", nil)
	case errors.Is(err, ErrInProgress):
		var details gin.H
		if id, ok := h.Coord.ActiveSession(c.Param("id")); ok {
			details = gin.H{"sessionId": id}
		}
		respond.Error(c, http.StatusConflict, string(KindInProgress), UserMessage(err), details)
	case errors.Is(err, ErrServiceError):
		var gerr *Error
		errors.As(err, &gerr)
		respond.Error(c, http.StatusBadGateway, string(KindServiceError), UserMessage(err), gin.H{"status": gerr.Status})
	case errors.Is(err, ErrArtifactUnavailable):
		respond.Error(c, http.StatusNotFound, string(KindArtifactUnavailable), UserMessage(err), nil)
	case errors.Is(err, ErrTimeout):
		respond.Error(c, http.StatusGatewayTimeout, string(KindTimeout), UserMessage(err), nil)
	case errors.Is(err, ErrStoreWrite), errors.Is(err, ErrStorageRead):
		respond.Error(c, http.StatusServiceUnavailable, string(KindOf(err)), UserMessage(err), nil)
	case errors.Is(err, cvs.ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to process generation request", nil)
	}
}
