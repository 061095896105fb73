package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/storehook/webhook-svc/internal/dispatcher"
)

// BatchProcessor runs one dispatch pass over the pending queue
type BatchProcessor interface {
	ProcessBatch(ctx context.Context) ([]dispatcher.TaskResult, error)
}

// WebhookHandler exposes the on-demand and sweep trigger surfaces over HTTP
type WebhookHandler struct {
	disp   BatchProcessor
	secret string
	logger *zap.Logger
}

// NewWebhookHandler creates the webhook trigger handler
func NewWebhookHandler(disp BatchProcessor, secret string, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		disp:   disp,
		secret: secret,
		logger: logger,
	}
}

// Dispatch handles POST /api/v1/webhooks/dispatch — the authenticated
// on-demand batch run. Returns the processed count; individual delivery
// failures do not affect the response status.
func (h *WebhookHandler) Dispatch(c *fiber.Ctx) error {
	if c.Get("x-webhook-secret") != h.secret {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid webhook secret",
		})
	}

	results, err := h.disp.ProcessBatch(c.Context())
	if err != nil {
		h.logger.Error("On-demand dispatch failed to read queue",
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"processed": len(results),
		"message":   "Webhook batch processed",
	})
}

// Sweep handles POST /api/v1/webhooks/sweep — the unauthenticated surface
// for external schedulers. Returns per-task results for caller-side
// inspection.
func (h *WebhookHandler) Sweep(c *fiber.Ctx) error {
	results, err := h.disp.ProcessBatch(c.Context())
	if err != nil {
		h.logger.Error("Sweep failed to read queue",
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if len(results) == 0 {
		return c.JSON(fiber.Map{
			"message": "No pending webhooks",
		})
	}

	return c.JSON(fiber.Map{
		"results": results,
	})
}
