package handlers

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storehook/webhook-svc/internal/dispatcher"
	"github.com/storehook/webhook-svc/internal/models"
)

// GatewayConfirmation is the inbound payment-confirmation payload from the
// payment gateway. ResponseCode 0 means the payment succeeded; ReturnValue
// carries the internal order id.
type GatewayConfirmation struct {
	ResponseCode   int    `json:"responseCode"`
	ReturnValue    string `json:"returnValue"`
	TransactionID  string `json:"transactionId"`
	ApprovalNumber string `json:"approvalNumber"`
	DocumentURL    string `json:"documentUrl"`
}

// OrderStore is the order persistence surface the payment handler needs
type OrderStore interface {
	dispatcher.OrderSource
	MarkOrderPaid(ctx context.Context, orderID uuid.UUID, transactionID, approvalNumber, documentURL string) (*models.Order, error)
}

// NoteWriter appends a note to a CRM contact record
type NoteWriter interface {
	AppendContactNote(ctx context.Context, contactID, note string) error
}

// PaidEmitter enqueues the order_paid notification task
type PaidEmitter interface {
	EmitOrderPaid(ctx context.Context, businessID, orderID uuid.UUID) (*models.NotificationTask, error)
}

// DirectDispatcher fires the synchronous order_paid delivery
type DirectDispatcher interface {
	DispatchOrderEvent(ctx context.Context, orders dispatcher.OrderSource, orderID uuid.UUID, eventType models.EventType) error
}

// PaymentHandler handles the inbound gateway confirmation webhook. Marking
// the order paid is the primary operation; the CRM note and the outbound
// notifications are side channels whose failures never change the response.
type PaymentHandler struct {
	orders  OrderStore
	notes   NoteWriter
	emitter PaidEmitter
	disp    DirectDispatcher
	logger  *zap.Logger
}

// NewPaymentHandler creates the payment confirmation handler
func NewPaymentHandler(orders OrderStore, notes NoteWriter, emitter PaidEmitter, disp DirectDispatcher, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		orders:  orders,
		notes:   notes,
		emitter: emitter,
		disp:    disp,
		logger:  logger,
	}
}

// Confirm handles POST /api/v1/payments/confirm
func (h *PaymentHandler) Confirm(c *fiber.Ctx) error {
	var confirmation GatewayConfirmation
	if err := c.BodyParser(&confirmation); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to parse gateway payload",
			"error":   err.Error(),
		})
	}

	if confirmation.ResponseCode != 0 {
		h.logger.Warn("Gateway reported unsuccessful payment",
			zap.Int("response_code", confirmation.ResponseCode),
			zap.String("return_value", confirmation.ReturnValue),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Payment was not successful",
			"error":   fmt.Sprintf("gateway response code %d", confirmation.ResponseCode),
		})
	}

	orderID, err := uuid.Parse(confirmation.ReturnValue)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Invalid order id in gateway payload",
			"error":   err.Error(),
		})
	}

	ctx := c.Context()

	order, err := h.orders.MarkOrderPaid(ctx, orderID, confirmation.TransactionID, confirmation.ApprovalNumber, confirmation.DocumentURL)
	if err != nil {
		h.logger.Error("Failed to mark order paid",
			zap.String("order_id", orderID.String()),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to update order",
			"error":   err.Error(),
		})
	}

	h.logger.Info("Order marked paid",
		zap.String("order_id", order.ID.String()),
		zap.String("transaction_id", confirmation.TransactionID),
	)

	// Side channels below: payment is already confirmed, so failures are
	// logged and never raised to the gateway.
	h.appendPaymentNote(ctx, order, &confirmation)

	if _, err := h.emitter.EmitOrderPaid(ctx, order.BusinessID, order.ID); err != nil {
		h.logger.Error("Failed to enqueue order_paid notification",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}

	if err := h.disp.DispatchOrderEvent(ctx, h.orders, order.ID, models.OrderPaid); err != nil {
		h.logger.Error("Direct order_paid dispatch failed",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}

	return c.JSON(fiber.Map{
		"message":   "Payment confirmed",
		"orderId":   order.ID,
		"orderData": order,
	})
}

// appendPaymentNote writes the free-text payment note to the customer's CRM
// contact record
func (h *PaymentHandler) appendPaymentNote(ctx context.Context, order *models.Order, confirmation *GatewayConfirmation) {
	if order.CustomerID == nil {
		return
	}

	customer, err := h.orders.GetCustomer(ctx, *order.CustomerID)
	if err != nil {
		h.logger.Warn("Failed to load customer for CRM note",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		return
	}
	if customer.CRMContactID == nil {
		return
	}

	note := fmt.Sprintf("Payment received for order %s: %.2f %s (transaction %s, approval %s)",
		order.ID, order.Total, order.Currency, confirmation.TransactionID, confirmation.ApprovalNumber)

	if err := h.notes.AppendContactNote(ctx, *customer.CRMContactID, note); err != nil {
		h.logger.Warn("Failed to append CRM contact note",
			zap.String("order_id", order.ID.String()),
			zap.String("contact_id", *customer.CRMContactID),
			zap.Error(err),
		)
	}
}
