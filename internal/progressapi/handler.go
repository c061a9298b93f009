// Package progressapi serves transfer progress Records over HTTP, for pollers outside the uploading process.
package progressapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/alanbriolat/video-uploader/progress"
)

type Handler struct {
	store progress.Store
	log   *zap.SugaredLogger
}

func NewHandler(store progress.Store) *Handler {
	return &Handler{store: store, log: zap.S().Named("progressapi")}
}

func (h *Handler) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/progress", h.Get)
}

// Get answers GET /progress?id=<upload identifier> with the stored Record, or 404 if there isn't one.
func (h *Handler) Get(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing id"})
		return
	}
	record, err := progress.Get(c.Request.Context(), h.store, id)
	if err != nil {
		h.log.Errorf("failed to read progress for %q: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read progress"})
		return
	}
	if value, ok := record.Get(); ok {
		c.JSON(http.StatusOK, value)
	} else {
		c.JSON(http.StatusNotFound, gin.H{"error": "no progress for id"})
	}
}

// NewRouter builds a gin engine serving Handler, logging requests through zap.
func NewRouter(store progress.Store) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(zap.S().Named("http")))
	NewHandler(store).RegisterRoutes(&router.RouterGroup)
	return router
}

func requestLogger(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debugw("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
