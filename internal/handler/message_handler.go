package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/campushq/messaging/internal/domain"
	"github.com/campushq/messaging/internal/repository"
	"github.com/campushq/messaging/internal/service"
	"github.com/gofiber/fiber/v2"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100

	defaultStatsDays  = 30
	defaultMaxRetries = 3
)

type MessageDispatcher interface {
	SendEmail(ctx context.Context, req service.EmailRequest) (service.SendResult, error)
	SendSMS(ctx context.Context, req service.SMSRequest) (service.SendResult, error)
	SendTemplatedEmail(ctx context.Context, req service.TemplatedEmailRequest) (service.SendResult, error)
	SendTemplatedSMS(ctx context.Context, req service.TemplatedSMSRequest) (service.SendResult, error)
	SendBulkEmails(ctx context.Context, reqs []service.EmailRequest, delay time.Duration) (service.BulkResult, error)
	SendBulkSMS(ctx context.Context, reqs []service.SMSRequest, delay time.Duration) (service.BulkResult, error)
}

type RetrySweep interface {
	Sweep(ctx context.Context, channel domain.Channel, maxRetries int) (int, error)
}

type MessageStats interface {
	GetStats(ctx context.Context, channel domain.Channel, days int) (*service.Stats, error)
}

type MessageStore interface {
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	List(ctx context.Context, params repository.ListParams) ([]domain.Message, int64, error)
}

type MessageHandler struct {
	dispatcher MessageDispatcher
	sweeper    RetrySweep
	stats      MessageStats
	messages   MessageStore
}

func NewMessageHandler(dispatcher MessageDispatcher, sweeper RetrySweep, stats MessageStats, messages MessageStore) (*MessageHandler, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if sweeper == nil {
		return nil, fmt.Errorf("retry sweeper is required")
	}
	if stats == nil {
		return nil, fmt.Errorf("stats aggregator is required")
	}
	if messages == nil {
		return nil, fmt.Errorf("message store is required")
	}

	return &MessageHandler{
		dispatcher: dispatcher,
		sweeper:    sweeper,
		stats:      stats,
		messages:   messages,
	}, nil
}

func RegisterMessageRoutes(router fiber.Router, dispatcher MessageDispatcher, sweeper RetrySweep, stats MessageStats, messages MessageStore) error {
	h, err := NewMessageHandler(dispatcher, sweeper, stats, messages)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/messages/email", h.SendEmail)
	v1.Post("/messages/sms", h.SendSMS)
	v1.Post("/messages/email/templated", h.SendTemplatedEmail)
	v1.Post("/messages/sms/templated", h.SendTemplatedSMS)
	v1.Post("/messages/email/bulk", h.SendBulkEmails)
	v1.Post("/messages/sms/bulk", h.SendBulkSMS)
	v1.Post("/messages/email/retry", h.RetryChannel(domain.ChannelEmail))
	v1.Post("/messages/sms/retry", h.RetryChannel(domain.ChannelSMS))
	v1.Get("/messages/email/stats", h.StatsForChannel(domain.ChannelEmail))
	v1.Get("/messages/sms/stats", h.StatsForChannel(domain.ChannelSMS))
	v1.Get("/messages/:id", h.GetMessage)
	v1.Get("/messages", h.ListMessages)

	return nil
}

type sendEmailRequest struct {
	To            string            `json:"to"`
	ToName        string            `json:"toName"`
	Subject       string            `json:"subject"`
	HTMLBody      string            `json:"htmlBody"`
	TextBody      string            `json:"textBody"`
	UserID        *string           `json:"userId"`
	Category      string            `json:"category"`
	Variables     map[string]string `json:"variables"`
	ReferenceType *string           `json:"referenceType"`
	ReferenceID   *string           `json:"referenceId"`
}

type sendSMSRequest struct {
	To            string            `json:"to"`
	Body          string            `json:"body"`
	UserID        *string           `json:"userId"`
	Category      string            `json:"category"`
	Variables     map[string]string `json:"variables"`
	ReferenceType *string           `json:"referenceType"`
	ReferenceID   *string           `json:"referenceId"`
}

type templatedSendRequest struct {
	To            string            `json:"to"`
	ToName        string            `json:"toName"`
	UserID        *string           `json:"userId"`
	TemplateSlug  string            `json:"templateSlug"`
	Variables     map[string]string `json:"variables"`
	ReferenceType *string           `json:"referenceType"`
	ReferenceID   *string           `json:"referenceId"`
}

type bulkEmailRequest struct {
	Messages []sendEmailRequest `json:"messages"`
	DelayMs  int                `json:"delayMs"`
}

type bulkSMSRequest struct {
	Messages []sendSMSRequest `json:"messages"`
	DelayMs  int              `json:"delayMs"`
}

type messageResponse struct {
	ID                string            `json:"id"`
	Channel           string            `json:"channel"`
	Category          string            `json:"category"`
	Recipient         string            `json:"recipient"`
	RecipientName     string            `json:"recipientName,omitempty"`
	Subject           string            `json:"subject,omitempty"`
	Status            string            `json:"status"`
	UserID            *string           `json:"userId,omitempty"`
	TemplateID        *string           `json:"templateId,omitempty"`
	TemplateVariables map[string]string `json:"templateVariables,omitempty"`
	ReferenceType     *string           `json:"referenceType,omitempty"`
	ReferenceID       *string           `json:"referenceId,omitempty"`
	ProviderMessageID *string           `json:"providerMessageId,omitempty"`
	ErrorCode         *string           `json:"errorCode,omitempty"`
	ErrorMessage      *string           `json:"errorMessage,omitempty"`
	RetryCount        int               `json:"retryCount"`
	SegmentCount      int               `json:"segmentCount,omitempty"`
	SentAt            *time.Time        `json:"sentAt,omitempty"`
	DeliveredAt       *time.Time        `json:"deliveredAt,omitempty"`
	FailedAt          *time.Time        `json:"failedAt,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

type listMessagesResponse struct {
	Data []messageResponse `json:"data"`
	Meta listMeta          `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

func (h *MessageHandler) SendEmail(c *fiber.Ctx) error {
	var req sendEmailRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	emailReq, err := toEmailRequest(req)
	if err != nil {
		return toHTTPError(err)
	}

	result, err := h.dispatcher.SendEmail(c.Context(), emailReq)
	if err != nil {
		return toHTTPError(err)
	}
	return sendResultResponse(c, result)
}

func (h *MessageHandler) SendSMS(c *fiber.Ctx) error {
	var req sendSMSRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	smsReq, err := toSMSRequest(req)
	if err != nil {
		return toHTTPError(err)
	}

	result, err := h.dispatcher.SendSMS(c.Context(), smsReq)
	if err != nil {
		return toHTTPError(err)
	}
	return sendResultResponse(c, result)
}

func (h *MessageHandler) SendTemplatedEmail(c *fiber.Ctx) error {
	var req templatedSendRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.TemplateSlug) == "" {
		return toHTTPError(fmt.Errorf("%w: templateSlug is required", domain.ErrValidation))
	}

	result, err := h.dispatcher.SendTemplatedEmail(c.Context(), service.TemplatedEmailRequest{
		To:            req.To,
		ToName:        req.ToName,
		UserID:        req.UserID,
		TemplateSlug:  strings.TrimSpace(req.TemplateSlug),
		Variables:     req.Variables,
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return sendResultResponse(c, result)
}

func (h *MessageHandler) SendTemplatedSMS(c *fiber.Ctx) error {
	var req templatedSendRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.TemplateSlug) == "" {
		return toHTTPError(fmt.Errorf("%w: templateSlug is required", domain.ErrValidation))
	}

	result, err := h.dispatcher.SendTemplatedSMS(c.Context(), service.TemplatedSMSRequest{
		To:            req.To,
		UserID:        req.UserID,
		TemplateSlug:  strings.TrimSpace(req.TemplateSlug),
		Variables:     req.Variables,
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return sendResultResponse(c, result)
}

func (h *MessageHandler) SendBulkEmails(c *fiber.Ctx) error {
	var req bulkEmailRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.Messages) == 0 {
		return toHTTPError(fmt.Errorf("%w: messages is required", domain.ErrValidation))
	}

	delay, err := bulkDelay(req.DelayMs)
	if err != nil {
		return toHTTPError(err)
	}

	requests := make([]service.EmailRequest, 0, len(req.Messages))
	for _, item := range req.Messages {
		emailReq, err := toEmailRequest(item)
		if err != nil {
			return toHTTPError(err)
		}
		requests = append(requests, emailReq)
	}

	result, err := h.dispatcher.SendBulkEmails(c.Context(), requests, delay)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(result)
}

func (h *MessageHandler) SendBulkSMS(c *fiber.Ctx) error {
	var req bulkSMSRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.Messages) == 0 {
		return toHTTPError(fmt.Errorf("%w: messages is required", domain.ErrValidation))
	}

	delay, err := bulkDelay(req.DelayMs)
	if err != nil {
		return toHTTPError(err)
	}

	requests := make([]service.SMSRequest, 0, len(req.Messages))
	for _, item := range req.Messages {
		smsReq, err := toSMSRequest(item)
		if err != nil {
			return toHTTPError(err)
		}
		requests = append(requests, smsReq)
	}

	result, err := h.dispatcher.SendBulkSMS(c.Context(), requests, delay)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(result)
}

func (h *MessageHandler) RetryChannel(channel domain.Channel) fiber.Handler {
	return func(c *fiber.Ctx) error {
		maxRetries := c.QueryInt("maxRetries", defaultMaxRetries)
		if maxRetries < 1 {
			return toHTTPError(fmt.Errorf("%w: maxRetries must be >= 1", domain.ErrValidation))
		}

		retried, err := h.sweeper.Sweep(c.Context(), channel, maxRetries)
		if err != nil {
			return toHTTPError(err)
		}

		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"channel": channel.String(),
			"retried": retried,
		})
	}
}

func (h *MessageHandler) StatsForChannel(channel domain.Channel) fiber.Handler {
	return func(c *fiber.Ctx) error {
		days := c.QueryInt("days", defaultStatsDays)
		stats, err := h.stats.GetStats(c.Context(), channel, days)
		if err != nil {
			return toHTTPError(err)
		}

		return c.Status(fiber.StatusOK).JSON(stats)
	}
}

func (h *MessageHandler) GetMessage(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	msg, err := h.messages.GetByID(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toMessageResponse(msg))
}

func (h *MessageHandler) ListMessages(c *fiber.Ctx) error {
	params, err := parseListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	messages, total, err := h.messages.List(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]messageResponse, 0, len(messages))
	for i := range messages {
		responses = append(responses, toMessageResponse(&messages[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listMessagesResponse{
		Data: responses,
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func sendResultResponse(c *fiber.Ctx, result service.SendResult) error {
	status := fiber.StatusOK
	if !result.Success {
		status = fiber.StatusUnprocessableEntity
	}
	return c.Status(status).JSON(result)
}

func toEmailRequest(req sendEmailRequest) (service.EmailRequest, error) {
	category, err := parseOptionalCategory(req.Category)
	if err != nil {
		return service.EmailRequest{}, err
	}

	return service.EmailRequest{
		To:            strings.TrimSpace(req.To),
		ToName:        req.ToName,
		Subject:       req.Subject,
		HTMLBody:      req.HTMLBody,
		TextBody:      req.TextBody,
		UserID:        req.UserID,
		Variables:     req.Variables,
		Category:      category,
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
	}, nil
}

func toSMSRequest(req sendSMSRequest) (service.SMSRequest, error) {
	category, err := parseOptionalCategory(req.Category)
	if err != nil {
		return service.SMSRequest{}, err
	}

	return service.SMSRequest{
		To:            strings.TrimSpace(req.To),
		Body:          req.Body,
		UserID:        req.UserID,
		Variables:     req.Variables,
		Category:      category,
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
	}, nil
}

// bulkDelay converts the caller-supplied delay. Zero means "use the channel
// default", chosen downstream.
func bulkDelay(delayMs int) (time.Duration, error) {
	if delayMs < 0 {
		return 0, fmt.Errorf("%w: delayMs cannot be negative", domain.ErrValidation)
	}
	return time.Duration(delayMs) * time.Millisecond, nil
}

func parseOptionalCategory(raw string) (domain.Category, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return domain.CategoryTransactional, nil
	}
	return domain.ParseCategoryFromString(trimmed)
}

func parseListParams(c *fiber.Ctx) (repository.ListParams, error) {
	params := repository.ListParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.ListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.ListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseStatusFromString(rawStatus)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.Status = &status
	}

	if rawChannel := strings.TrimSpace(c.Query("channel")); rawChannel != "" {
		channel, err := domain.ParseChannelFromString(rawChannel)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.Channel = &channel
	}

	if rawCategory := strings.TrimSpace(c.Query("category")); rawCategory != "" {
		category, err := domain.ParseCategoryFromString(rawCategory)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.Category = &category
	}

	if rawUserID := strings.TrimSpace(c.Query("userId")); rawUserID != "" {
		params.UserID = &rawUserID
	}

	from, err := parseRFC3339Query(c.Query("from"), "from")
	if err != nil {
		return repository.ListParams{}, err
	}
	to, err := parseRFC3339Query(c.Query("to"), "to")
	if err != nil {
		return repository.ListParams{}, err
	}
	params.From = from
	params.To = to

	return params, nil
}

func parseRFC3339Query(value string, field string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC3339", domain.ErrValidation, field)
	}
	return &t, nil
}

func toMessageResponse(m *domain.Message) messageResponse {
	if m == nil {
		return messageResponse{}
	}

	return messageResponse{
		ID:                m.ID,
		Channel:           m.Channel.String(),
		Category:          m.Category.String(),
		Recipient:         m.Recipient,
		RecipientName:     m.RecipientName,
		Subject:           m.Subject,
		Status:            m.Status.String(),
		UserID:            m.UserID,
		TemplateID:        m.TemplateID,
		TemplateVariables: m.TemplateVariables,
		ReferenceType:     m.ReferenceType,
		ReferenceID:       m.ReferenceID,
		ProviderMessageID: m.ProviderMessageID,
		ErrorCode:         m.ErrorCode,
		ErrorMessage:      m.ErrorMessage,
		RetryCount:        m.RetryCount,
		SegmentCount:      m.SegmentCount,
		SentAt:            m.SentAt,
		DeliveredAt:       m.DeliveredAt,
		FailedAt:          m.FailedAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrOptedOut):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	default:
		return err
	}
}
