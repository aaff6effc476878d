package queueapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/lorequeue/middleware"
)

// RequestTimeout bounds every API request.
const RequestTimeout = 10 * time.Second

// RegisterRoutes mounts the queue API under /queues.
func RegisterRoutes(r gin.IRouter, h HandlerInterface) {
	q := r.Group("/queues/:queue")
	{
		q.POST("/items", h.Enqueue)
		q.GET("/items", h.List)
		q.GET("/items/:id", h.Get)
		q.POST("/items/:id/complete", h.Complete)
		q.POST("/items/:id/fail", h.Fail)
		q.POST("/items/:id/delay", h.Delay)

		q.POST("/claim", h.Claim)
		q.GET("/peek", h.Peek)
		q.GET("/stats", h.Stats)
		q.GET("/gate", h.Gate)

		q.GET("/worlds/:world/pending", h.WorldPending)
		q.GET("/worlds/:world/history", h.WorldHistory)

		q.POST("/cleanup", h.Cleanup)
		q.POST("/expire", h.Expire)
	}
}

// NewRouter builds the gin engine with the standard middleware chain.
func NewRouter(h HandlerInterface, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestLogger(logger),
		middleware.TimeoutMiddleware(RequestTimeout),
		middleware.ErrorHandler(logger),
	)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	RegisterRoutes(r, h)
	return r
}
