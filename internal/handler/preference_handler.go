package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/campushq/messaging/internal/domain"
	"github.com/gofiber/fiber/v2"
)

type PreferenceAdmin interface {
	Get(ctx context.Context, userID string) (*domain.Preference, error)
	Upsert(ctx context.Context, pref *domain.Preference) error
}

type PreferenceHandler struct {
	service PreferenceAdmin
}

func NewPreferenceHandler(service PreferenceAdmin) (*PreferenceHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("preference service is required")
	}
	return &PreferenceHandler{service: service}, nil
}

func RegisterPreferenceRoutes(router fiber.Router, service PreferenceAdmin) error {
	h, err := NewPreferenceHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/preferences/:userId", h.GetPreference)
	v1.Put("/preferences/:userId", h.UpsertPreference)

	return nil
}

type preferencePayload struct {
	EmailEnabled       bool `json:"emailEnabled"`
	EmailMarketing     bool `json:"emailMarketing"`
	EmailNotifications bool `json:"emailNotifications"`
	SMSEnabled         bool `json:"smsEnabled"`
	SMSMarketing       bool `json:"smsMarketing"`
	SMSNotifications   bool `json:"smsNotifications"`
}

type preferenceResponse struct {
	UserID string `json:"userId"`
	preferencePayload
	UpdatedAt time.Time `json:"updatedAt"`
}

func (h *PreferenceHandler) GetPreference(c *fiber.Ctx) error {
	pref, err := h.service.Get(c.Context(), strings.TrimSpace(c.Params("userId")))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toPreferenceResponse(pref))
}

func (h *PreferenceHandler) UpsertPreference(c *fiber.Ctx) error {
	var payload preferencePayload
	if err := c.BodyParser(&payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	pref := &domain.Preference{
		UserID:             strings.TrimSpace(c.Params("userId")),
		EmailEnabled:       payload.EmailEnabled,
		EmailMarketing:     payload.EmailMarketing,
		EmailNotifications: payload.EmailNotifications,
		SMSEnabled:         payload.SMSEnabled,
		SMSMarketing:       payload.SMSMarketing,
		SMSNotifications:   payload.SMSNotifications,
	}

	if err := h.service.Upsert(c.Context(), pref); err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toPreferenceResponse(pref))
}

func toPreferenceResponse(p *domain.Preference) preferenceResponse {
	if p == nil {
		return preferenceResponse{}
	}

	return preferenceResponse{
		UserID: p.UserID,
		preferencePayload: preferencePayload{
			EmailEnabled:       p.EmailEnabled,
			EmailMarketing:     p.EmailMarketing,
			EmailNotifications: p.EmailNotifications,
			SMSEnabled:         p.SMSEnabled,
			SMSMarketing:       p.SMSMarketing,
			SMSNotifications:   p.SMSNotifications,
		},
		UpdatedAt: p.UpdatedAt,
	}
}
