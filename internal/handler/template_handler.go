package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/campushq/messaging/internal/domain"
	"github.com/campushq/messaging/internal/service"
	"github.com/gofiber/fiber/v2"
)

type TemplateAdmin interface {
	Create(ctx context.Context, t *domain.Template) (*domain.Template, error)
	Update(ctx context.Context, id string, patch service.TemplateUpdate) (*domain.Template, error)
	Get(ctx context.Context, id string) (*domain.Template, error)
	List(ctx context.Context, channel *domain.Channel) ([]domain.Template, error)
	Delete(ctx context.Context, id string) error
}

type TemplateHandler struct {
	service TemplateAdmin
}

func NewTemplateHandler(service TemplateAdmin) (*TemplateHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("template service is required")
	}
	return &TemplateHandler{service: service}, nil
}

func RegisterTemplateRoutes(router fiber.Router, service TemplateAdmin) error {
	h, err := NewTemplateHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/templates", h.CreateTemplate)
	v1.Get("/templates", h.ListTemplates)
	v1.Get("/templates/:id", h.GetTemplate)
	v1.Patch("/templates/:id", h.UpdateTemplate)
	v1.Delete("/templates/:id", h.DeleteTemplate)

	return nil
}

type createTemplateRequest struct {
	Slug        string   `json:"slug"`
	Name        string   `json:"name"`
	Channel     string   `json:"channel"`
	Subject     string   `json:"subject"`
	HTMLBody    string   `json:"htmlBody"`
	TextBody    string   `json:"textBody"`
	Body        string   `json:"body"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Variables   []string `json:"variables"`
	IsActive    *bool    `json:"isActive"`
}

type updateTemplateRequest struct {
	Name        *string  `json:"name"`
	Subject     *string  `json:"subject"`
	HTMLBody    *string  `json:"htmlBody"`
	TextBody    *string  `json:"textBody"`
	Body        *string  `json:"body"`
	Category    *string  `json:"category"`
	Description *string  `json:"description"`
	Variables   []string `json:"variables"`
	IsActive    *bool    `json:"isActive"`
}

type templateResponse struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Channel     string    `json:"channel"`
	Version     int       `json:"version"`
	Subject     string    `json:"subject,omitempty"`
	HTMLBody    string    `json:"htmlBody,omitempty"`
	TextBody    string    `json:"textBody,omitempty"`
	Body        string    `json:"body,omitempty"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
	Variables   []string  `json:"variables,omitempty"`
	IsActive    bool      `json:"isActive"`
	IsSystem    bool      `json:"isSystem"`
	SentCount   int64     `json:"sentCount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (h *TemplateHandler) CreateTemplate(c *fiber.Ctx) error {
	var req createTemplateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	channel, err := domain.ParseChannelFromString(req.Channel)
	if err != nil {
		return toHTTPError(err)
	}
	category, err := parseOptionalCategory(req.Category)
	if err != nil {
		return toHTTPError(err)
	}

	tpl := &domain.Template{
		Slug:        strings.TrimSpace(req.Slug),
		Name:        strings.TrimSpace(req.Name),
		Channel:     channel,
		Subject:     req.Subject,
		HTMLBody:    req.HTMLBody,
		TextBody:    req.TextBody,
		Body:        req.Body,
		Category:    category,
		Description: req.Description,
		Variables:   req.Variables,
		IsActive:    true,
	}
	if req.IsActive != nil {
		tpl.IsActive = *req.IsActive
	}

	created, err := h.service.Create(c.Context(), tpl)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toTemplateResponse(created))
}

func (h *TemplateHandler) UpdateTemplate(c *fiber.Ctx) error {
	var req updateTemplateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	patch := service.TemplateUpdate{
		Name:        req.Name,
		Subject:     req.Subject,
		HTMLBody:    req.HTMLBody,
		TextBody:    req.TextBody,
		Body:        req.Body,
		Description: req.Description,
		Variables:   req.Variables,
		IsActive:    req.IsActive,
	}
	if req.Category != nil {
		category, err := domain.ParseCategoryFromString(*req.Category)
		if err != nil {
			return toHTTPError(err)
		}
		patch.Category = &category
	}

	updated, err := h.service.Update(c.Context(), strings.TrimSpace(c.Params("id")), patch)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toTemplateResponse(updated))
}

func (h *TemplateHandler) GetTemplate(c *fiber.Ctx) error {
	tpl, err := h.service.Get(c.Context(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toTemplateResponse(tpl))
}

func (h *TemplateHandler) ListTemplates(c *fiber.Ctx) error {
	var channel *domain.Channel
	if rawChannel := strings.TrimSpace(c.Query("channel")); rawChannel != "" {
		parsed, err := domain.ParseChannelFromString(rawChannel)
		if err != nil {
			return toHTTPError(err)
		}
		channel = &parsed
	}

	templates, err := h.service.List(c.Context(), channel)
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]templateResponse, 0, len(templates))
	for i := range templates {
		responses = append(responses, toTemplateResponse(&templates[i]))
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": responses})
}

func (h *TemplateHandler) DeleteTemplate(c *fiber.Ctx) error {
	if err := h.service.Delete(c.Context(), strings.TrimSpace(c.Params("id"))); err != nil {
		return toHTTPError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func toTemplateResponse(t *domain.Template) templateResponse {
	if t == nil {
		return templateResponse{}
	}

	return templateResponse{
		ID:          t.ID,
		Slug:        t.Slug,
		Name:        t.Name,
		Channel:     t.Channel.String(),
		Version:     t.Version,
		Subject:     t.Subject,
		HTMLBody:    t.HTMLBody,
		TextBody:    t.TextBody,
		Body:        t.Body,
		Category:    t.Category.String(),
		Description: t.Description,
		Variables:   t.Variables,
		IsActive:    t.IsActive,
		IsSystem:    t.IsSystem,
		SentCount:   t.SentCount,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}
