package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/storehook/webhook-svc/internal/database"
	"github.com/storehook/webhook-svc/internal/rabbitmq"
)

// HealthHandler reports the health of the service's backing stores
type HealthHandler struct {
	db  *gorm.DB
	rdb *redis.Client
	rmq *rabbitmq.Connection
}

// NewHealthHandler creates a health handler with dependencies
func NewHealthHandler(db *gorm.DB, rdb *redis.Client, rmq *rabbitmq.Connection) *HealthHandler {
	return &HealthHandler{
		db:  db,
		rdb: rdb,
		rmq: rmq,
	}
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// HealthCheck handles the health check endpoint
func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	services := make(map[string]string)
	status := "healthy"

	if err := database.HealthCheck(ctx, h.db); err != nil {
		services["database"] = "unhealthy: " + err.Error()
		status = "unhealthy"
	} else {
		services["database"] = "healthy"
	}

	if err := h.rdb.Ping(ctx).Err(); err != nil {
		services["redis"] = "unhealthy: " + err.Error()
		status = "unhealthy"
	} else {
		services["redis"] = "healthy"
	}

	if h.rmq == nil || !h.rmq.IsHealthy() {
		services["rabbitmq"] = "unhealthy: connection closed"
		status = "unhealthy"
	} else {
		services["rabbitmq"] = "healthy"
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  services,
	}

	if status == "unhealthy" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(response)
	}

	return c.JSON(response)
}
