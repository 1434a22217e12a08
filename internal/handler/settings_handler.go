package handler

import (
	"context"
	"fmt"

	"github.com/campushq/messaging/internal/domain"
	"github.com/gofiber/fiber/v2"
)

type SettingsAdmin interface {
	Get(ctx context.Context) (*domain.Settings, error)
	Update(ctx context.Context, settings *domain.Settings) error
}

type SettingsHandler struct {
	service SettingsAdmin
}

func NewSettingsHandler(service SettingsAdmin) (*SettingsHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("settings service is required")
	}
	return &SettingsHandler{service: service}, nil
}

func RegisterSettingsRoutes(router fiber.Router, service SettingsAdmin) error {
	h, err := NewSettingsHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/settings", h.GetSettings)
	v1.Put("/settings", h.UpdateSettings)

	return nil
}

type settingsPayload struct {
	EmailEnabled bool   `json:"emailEnabled"`
	SMTPHost     string `json:"smtpHost"`
	SMTPPort     int    `json:"smtpPort"`
	SMTPUsername string `json:"smtpUsername"`
	SMTPPassword string `json:"smtpPassword,omitempty"`
	FromAddress  string `json:"fromAddress"`
	FromName     string `json:"fromName"`
	ReplyTo      string `json:"replyTo"`

	SMSEnabled    bool   `json:"smsEnabled"`
	SMSAccountSID string `json:"smsAccountSid"`
	SMSAuthToken  string `json:"smsAuthToken,omitempty"`
	SMSFromNumber string `json:"smsFromNumber"`

	DefaultEmailOptIn bool `json:"defaultEmailOptIn"`
	DefaultSMSOptIn   bool `json:"defaultSmsOptIn"`

	EmailHourlyLimit int `json:"emailHourlyLimit"`
	SMSHourlyLimit   int `json:"smsHourlyLimit"`
}

func (h *SettingsHandler) GetSettings(c *fiber.Ctx) error {
	settings, err := h.service.Get(c.Context())
	if err != nil {
		return toHTTPError(err)
	}

	// Secrets never leave the service, not even to admins.
	return c.Status(fiber.StatusOK).JSON(settingsPayload{
		EmailEnabled: settings.EmailEnabled,
		SMTPHost:     settings.SMTPHost,
		SMTPPort:     settings.SMTPPort,
		SMTPUsername: settings.SMTPUsername,
		FromAddress:  settings.FromAddress,
		FromName:     settings.FromName,
		ReplyTo:      settings.ReplyTo,

		SMSEnabled:    settings.SMSEnabled,
		SMSAccountSID: settings.SMSAccountSID,
		SMSFromNumber: settings.SMSFromNumber,

		DefaultEmailOptIn: settings.DefaultEmailOptIn,
		DefaultSMSOptIn:   settings.DefaultSMSOptIn,

		EmailHourlyLimit: settings.EmailHourlyLimit,
		SMSHourlyLimit:   settings.SMSHourlyLimit,
	})
}

func (h *SettingsHandler) UpdateSettings(c *fiber.Ctx) error {
	var payload settingsPayload
	if err := c.BodyParser(&payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	settings := &domain.Settings{
		ID:           domain.SettingsID,
		EmailEnabled: payload.EmailEnabled,
		SMTPHost:     payload.SMTPHost,
		SMTPPort:     payload.SMTPPort,
		SMTPUsername: payload.SMTPUsername,
		SMTPPassword: payload.SMTPPassword,
		FromAddress:  payload.FromAddress,
		FromName:     payload.FromName,
		ReplyTo:      payload.ReplyTo,

		SMSEnabled:    payload.SMSEnabled,
		SMSAccountSID: payload.SMSAccountSID,
		SMSAuthToken:  payload.SMSAuthToken,
		SMSFromNumber: payload.SMSFromNumber,

		DefaultEmailOptIn: payload.DefaultEmailOptIn,
		DefaultSMSOptIn:   payload.DefaultSMSOptIn,

		EmailHourlyLimit: payload.EmailHourlyLimit,
		SMSHourlyLimit:   payload.SMSHourlyLimit,
	}

	// Blank secrets mean "keep what is stored"; the read path never returns
	// them, so the admin UI cannot echo them back.
	if settings.SMTPPassword == "" || settings.SMSAuthToken == "" {
		if current, err := h.service.Get(c.Context()); err == nil {
			if settings.SMTPPassword == "" {
				settings.SMTPPassword = current.SMTPPassword
			}
			if settings.SMSAuthToken == "" {
				settings.SMSAuthToken = current.SMSAuthToken
			}
		}
	}

	if err := h.service.Update(c.Context(), settings); err != nil {
		return toHTTPError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
