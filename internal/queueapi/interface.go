package queueapi

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/lorequeue/internal/dto"
)

// ServiceInterface defines the queue operations exposed over HTTP. Every
// method takes the queue name from the route and returns common.APIError
// values the error middleware can render.
type ServiceInterface interface {
	Enqueue(ctx context.Context, queueName string, req *dto.EnqueueDTO) (*dto.EnqueueResponseDTO, error)
	Claim(ctx context.Context, queueName string) (*dto.ItemResponseDTO, error)
	Peek(ctx context.Context, queueName string) (*dto.ItemResponseDTO, error)
	Get(ctx context.Context, queueName, id string) (*dto.ItemResponseDTO, error)
	List(ctx context.Context, queueName, status string) ([]dto.ItemResponseDTO, error)
	Complete(ctx context.Context, queueName, id string) error
	Fail(ctx context.Context, queueName, id string, req *dto.FailDTO) error
	Delay(ctx context.Context, queueName, id string, req *dto.DelayDTO) error
	Stats(ctx context.Context, queueName string) (*dto.StatsDTO, error)
	Gate(ctx context.Context, queueName string) (*dto.GateDTO, error)
	WorldPending(ctx context.Context, queueName, worldID string) ([]dto.ItemResponseDTO, error)
	WorldHistory(ctx context.Context, queueName, worldID string, limit int) ([]dto.ItemResponseDTO, error)
	Cleanup(ctx context.Context, queueName string, req *dto.OlderThanDTO) (*dto.CountDTO, error)
	Expire(ctx context.Context, queueName string, req *dto.OlderThanDTO) (*dto.CountDTO, error)
}

// HandlerInterface defines the contract for HTTP request handlers.
type HandlerInterface interface {
	Enqueue(c *gin.Context)
	Claim(c *gin.Context)
	Peek(c *gin.Context)
	Get(c *gin.Context)
	List(c *gin.Context)
	Complete(c *gin.Context)
	Fail(c *gin.Context)
	Delay(c *gin.Context)
	Stats(c *gin.Context)
	Gate(c *gin.Context)
	WorldPending(c *gin.Context)
	WorldHistory(c *gin.Context)
	Cleanup(c *gin.Context)
	Expire(c *gin.Context)
}
