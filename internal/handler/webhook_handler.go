package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/campushq/messaging/internal/service"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type StatusApplier interface {
	Apply(ctx context.Context, update service.StatusUpdate) error
}

// WebhookHandler receives carrier delivery callbacks. The carrier posts
// form-encoded Twilio-style payloads and retries anything that is not a 2xx,
// so the handler only rejects requests it could never use.
type WebhookHandler struct {
	status StatusApplier
	logger *zap.Logger
}

func NewWebhookHandler(status StatusApplier, logger *zap.Logger) (*WebhookHandler, error) {
	if status == nil {
		return nil, fmt.Errorf("status service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{status: status, logger: logger}, nil
}

func RegisterWebhookRoutes(router fiber.Router, status StatusApplier, logger *zap.Logger) error {
	h, err := NewWebhookHandler(status, logger)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/webhooks/sms", h.SMSStatus)

	return nil
}

func (h *WebhookHandler) SMSStatus(c *fiber.Ctx) error {
	update := service.StatusUpdate{
		ProviderMessageID: strings.TrimSpace(c.FormValue("MessageSid")),
		ProviderStatus:    strings.TrimSpace(c.FormValue("MessageStatus")),
		ErrorCode:         strings.TrimSpace(c.FormValue("ErrorCode")),
		ErrorMessage:      strings.TrimSpace(c.FormValue("ErrorMessage")),
	}

	if update.ProviderMessageID == "" || update.ProviderStatus == "" {
		return fiber.NewError(fiber.StatusBadRequest, "MessageSid and MessageStatus are required")
	}

	if err := h.status.Apply(c.Context(), update); err != nil {
		h.logger.Error("failed to apply sms status callback",
			zap.String("providerMessageId", update.ProviderMessageID),
			zap.Error(err),
		)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to process status callback")
	}

	return c.SendStatus(fiber.StatusNoContent)
}
