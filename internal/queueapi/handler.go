package queueapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/lorequeue/common"
	"github.com/joshu-sajeev/lorequeue/internal/dto"
	"github.com/joshu-sajeev/lorequeue/middleware"
)

const defaultHistoryLimit = 20

type QueueHandler struct {
	service ServiceInterface
}

func NewQueueHandler(s ServiceInterface) *QueueHandler {
	return &QueueHandler{service: s}
}

var _ HandlerInterface = (*QueueHandler)(nil)

// Enqueue binds an EnqueueDTO and returns 201 with the new item id.
func (h *QueueHandler) Enqueue(c *gin.Context) {
	var req dto.EnqueueDTO
	if !middleware.Bind(c, &req) {
		c.Abort()
		return
	}

	resp, err := h.service.Enqueue(c.Request.Context(), c.Param("queue"), &req)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Claim returns 200 with the claimed item, or 204 when nothing is eligible.
func (h *QueueHandler) Claim(c *gin.Context) {
	item, err := h.service.Claim(c.Request.Context(), c.Param("queue"))
	if err != nil {
		c.Error(err)
		return
	}
	writeItemOrEmpty(c, item)
}

func (h *QueueHandler) Peek(c *gin.Context) {
	item, err := h.service.Peek(c.Request.Context(), c.Param("queue"))
	if err != nil {
		c.Error(err)
		return
	}
	writeItemOrEmpty(c, item)
}

func (h *QueueHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("queue"), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// List requires a status query parameter.
func (h *QueueHandler) List(c *gin.Context) {
	status := c.Query("status")
	if status == "" {
		c.Error(common.Errf(http.StatusBadRequest, "status parameter is required"))
		return
	}

	items, err := h.service.List(c.Request.Context(), c.Param("queue"), status)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *QueueHandler) Complete(c *gin.Context) {
	if err := h.service.Complete(c.Request.Context(), c.Param("queue"), c.Param("id")); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *QueueHandler) Fail(c *gin.Context) {
	var req dto.FailDTO
	if !middleware.Bind(c, &req) {
		return
	}

	if err := h.service.Fail(c.Request.Context(), c.Param("queue"), c.Param("id"), &req); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *QueueHandler) Delay(c *gin.Context) {
	var req dto.DelayDTO
	if !middleware.Bind(c, &req) {
		return
	}

	if err := h.service.Delay(c.Request.Context(), c.Param("queue"), c.Param("id"), &req); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *QueueHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context(), c.Param("queue"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *QueueHandler) Gate(c *gin.Context) {
	gate, err := h.service.Gate(c.Request.Context(), c.Param("queue"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gate)
}

func (h *QueueHandler) WorldPending(c *gin.Context) {
	items, err := h.service.WorldPending(c.Request.Context(), c.Param("queue"), c.Param("world"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// WorldHistory reads an optional limit query parameter, default 20.
func (h *QueueHandler) WorldHistory(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.Error(common.Errf(http.StatusBadRequest, "invalid limit"))
			return
		}
		limit = n
	}

	items, err := h.service.WorldHistory(c.Request.Context(), c.Param("queue"), c.Param("world"), limit)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *QueueHandler) Cleanup(c *gin.Context) {
	var req dto.OlderThanDTO
	if !middleware.Bind(c, &req) {
		return
	}

	resp, err := h.service.Cleanup(c.Request.Context(), c.Param("queue"), &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *QueueHandler) Expire(c *gin.Context) {
	var req dto.OlderThanDTO
	if !middleware.Bind(c, &req) {
		return
	}

	resp, err := h.service.Expire(c.Request.Context(), c.Param("queue"), &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func writeItemOrEmpty(c *gin.Context, item *dto.ItemResponseDTO) {
	if item == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, item)
}
