package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/campushq/messaging/internal/domain"
	"github.com/campushq/messaging/internal/observability"
	"github.com/campushq/messaging/internal/provider"
	"github.com/campushq/messaging/internal/ratelimit"
	"github.com/campushq/messaging/internal/repository"
	"github.com/campushq/messaging/internal/settings"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SendResult is the structured outcome of one dispatch call. Business
// failures (unconfigured channel, denied preference, transport rejection)
// land here; persistence failures propagate as errors instead.
type SendResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	RecordID  string `json:"recordId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// EmailRequest is one raw email send.
type EmailRequest struct {
	To            string
	ToName        string
	Subject       string
	HTMLBody      string
	TextBody      string
	UserID        *string
	TemplateID    *string
	Variables     map[string]string
	Category      domain.Category
	ReferenceType *string
	ReferenceID   *string
}

// SMSRequest is one raw SMS send.
type SMSRequest struct {
	To            string
	Body          string
	UserID        *string
	TemplateID    *string
	Variables     map[string]string
	Category      domain.Category
	ReferenceType *string
	ReferenceID   *string
}

// Dispatcher drives a single send end to end: resolve settings, persist the
// record, walk it QUEUED -> SENDING -> SENT/FAILED around the transport
// call. Retries are a separate sweep, never automatic within one call.
type Dispatcher struct {
	messages  repository.MessageRepository
	templates repository.TemplateRepository
	prefs     repository.PreferenceRepository
	resolver  *settings.Resolver
	email     provider.Provider
	sms       provider.Provider
	limiter   ratelimit.RateLimiter
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

func NewDispatcher(
	messages repository.MessageRepository,
	templates repository.TemplateRepository,
	prefs repository.PreferenceRepository,
	resolver *settings.Resolver,
	email provider.Provider,
	sms provider.Provider,
	limiter ratelimit.RateLimiter,
	logger *zap.Logger,
) (*Dispatcher, error) {
	if messages == nil {
		return nil, fmt.Errorf("message repository is required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("settings resolver is required")
	}
	if email == nil || sms == nil {
		return nil, fmt.Errorf("email and sms providers are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		messages:  messages,
		templates: templates,
		prefs:     prefs,
		resolver:  resolver,
		email:     email,
		sms:       sms,
		limiter:   limiter,
		logger:    logger,
		now:       time.Now,
	}, nil
}

func (d *Dispatcher) SetMetrics(metrics *observability.Metrics) {
	if d == nil {
		return
	}
	d.metrics = metrics
}

// SendEmail dispatches one raw email. No record is written when the channel
// is unconfigured or the hourly cap is hit: nothing was attempted.
func (d *Dispatcher) SendEmail(ctx context.Context, req EmailRequest) (SendResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := d.resolver.Email(ctx)
	if !cfg.Enabled {
		return SendResult{Error: "email is not configured"}, nil
	}
	if denied, err := d.overHourlyLimit(ctx, domain.ChannelEmail, cfg.HourlyLimit); err != nil {
		return SendResult{}, err
	} else if denied {
		return SendResult{Error: "email hourly rate limit exceeded"}, nil
	}

	to, err := d.email.NormalizeDestination(req.To)
	if err != nil {
		return SendResult{Error: err.Error()}, nil
	}

	msg := &domain.Message{
		ID:                uuid.NewString(),
		Channel:           domain.ChannelEmail,
		Category:          normalizeCategory(req.Category),
		Recipient:         to,
		RecipientName:     strings.TrimSpace(req.ToName),
		Subject:           req.Subject,
		HTMLBody:          req.HTMLBody,
		TextBody:          req.TextBody,
		UserID:            req.UserID,
		TemplateID:        req.TemplateID,
		TemplateVariables: req.Variables,
		ReferenceType:     req.ReferenceType,
		ReferenceID:       req.ReferenceID,
		Status:            domain.StatusQueued,
	}
	if err := msg.Validate(); err != nil {
		return SendResult{Error: err.Error()}, nil
	}

	return d.dispatch(ctx, msg, d.email)
}

// SendSMS dispatches one raw SMS. The destination is normalized to E.164
// before both the segment-count calculation and the transport call.
func (d *Dispatcher) SendSMS(ctx context.Context, req SMSRequest) (SendResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := d.resolver.SMS(ctx)
	if !cfg.Enabled {
		return SendResult{Error: "sms is not configured"}, nil
	}
	if denied, err := d.overHourlyLimit(ctx, domain.ChannelSMS, cfg.HourlyLimit); err != nil {
		return SendResult{}, err
	} else if denied {
		return SendResult{Error: "sms hourly rate limit exceeded"}, nil
	}

	to, err := d.sms.NormalizeDestination(req.To)
	if err != nil {
		return SendResult{Error: err.Error()}, nil
	}

	msg := &domain.Message{
		ID:                uuid.NewString(),
		Channel:           domain.ChannelSMS,
		Category:          normalizeCategory(req.Category),
		Recipient:         to,
		TextBody:          req.Body,
		UserID:            req.UserID,
		TemplateID:        req.TemplateID,
		TemplateVariables: req.Variables,
		ReferenceType:     req.ReferenceType,
		ReferenceID:       req.ReferenceID,
		Status:            domain.StatusQueued,
		SegmentCount:      domain.SegmentCount(req.Body),
	}
	if err := msg.Validate(); err != nil {
		return SendResult{Error: err.Error()}, nil
	}

	return d.dispatch(ctx, msg, d.sms)
}

// dispatch persists the record and runs the send state machine. The record
// exists before any transport call so failures are never silently dropped.
func (d *Dispatcher) dispatch(ctx context.Context, msg *domain.Message, p provider.Provider) (SendResult, error) {
	if err := d.messages.Create(ctx, msg); err != nil {
		return SendResult{}, fmt.Errorf("failed to persist message record: %w", err)
	}

	success, err := d.attempt(ctx, msg, p)
	if err != nil {
		return SendResult{}, err
	}

	result := SendResult{
		Success:  success,
		RecordID: msg.ID,
	}
	if success && msg.ProviderMessageID != nil {
		result.MessageID = *msg.ProviderMessageID
	}
	if !success && msg.ErrorMessage != nil {
		result.Error = *msg.ErrorMessage
	}
	return result, nil
}

// attempt runs one transport attempt on an existing record: SENDING, then
// SENT or FAILED. Used by both first sends and the retry sweep.
func (d *Dispatcher) attempt(ctx context.Context, msg *domain.Message, p provider.Provider) (bool, error) {
	if err := d.messages.UpdateStatus(ctx, msg.ID, domain.StatusSending); err != nil {
		return false, fmt.Errorf("failed to mark message as sending: %w", err)
	}
	msg.Status = domain.StatusSending

	channelName := strings.ToLower(msg.Channel.String())
	sendStart := d.now()
	resp, sendErr := p.Send(ctx, *msg)
	if d.metrics != nil {
		d.metrics.ObserveSendDuration(channelName, d.now().Sub(sendStart))
	}

	if sendErr == nil {
		now := d.now().UTC()
		providerID := ""
		if resp != nil {
			providerID = strings.TrimSpace(resp.MessageID)
		}

		if err := d.messages.MarkSent(ctx, msg.ID, providerID, now); err != nil {
			return false, fmt.Errorf("failed to mark message as sent: %w", err)
		}
		msg.Status = domain.StatusSent
		msg.SentAt = &now
		if providerID != "" {
			msg.ProviderMessageID = &providerID
		}

		if msg.TemplateID != nil && d.templates != nil {
			if err := d.templates.IncrementSentCount(ctx, *msg.TemplateID); err != nil {
				d.logger.Warn("failed to increment template sent count",
					zap.String("templateId", *msg.TemplateID),
					zap.Error(err),
				)
			}
		}

		if d.metrics != nil {
			d.metrics.IncMessageSent(channelName)
		}
		return true, nil
	}

	now := d.now().UTC()
	errMsg := sendErr.Error()
	errCode := provider.ErrorCode(sendErr)
	if errors.Is(sendErr, domain.ErrNotConfigured) {
		errCode = "not_configured"
	}

	if err := d.messages.MarkFailed(ctx, msg.ID, errCode, errMsg, now); err != nil {
		return false, fmt.Errorf("failed to mark message as failed: %w", err)
	}
	msg.Status = domain.StatusFailed
	msg.FailedAt = &now
	msg.ErrorMessage = &errMsg
	msg.RetryCount++

	d.logger.Warn("message dispatch failed",
		zap.String("messageId", msg.ID),
		zap.String("channel", channelName),
		zap.Bool("transient", provider.IsTransient(sendErr)),
		zap.Error(sendErr),
	)
	if d.metrics != nil {
		reason := "permanent_error"
		if provider.IsTransient(sendErr) {
			reason = "transient_error"
		}
		d.metrics.IncMessageFailed(channelName, reason)
	}
	return false, nil
}

// Redispatch re-attempts an existing FAILED record using its stored content
// snapshot. Template edits after the original send never change what is
// retried.
func (d *Dispatcher) Redispatch(ctx context.Context, msg *domain.Message) (bool, error) {
	if msg == nil {
		return false, fmt.Errorf("message is required")
	}

	var p provider.Provider
	switch msg.Channel {
	case domain.ChannelEmail:
		p = d.email
	case domain.ChannelSMS:
		p = d.sms
	default:
		return false, fmt.Errorf("%w: invalid channel %q", domain.ErrValidation, msg.Channel)
	}

	if d.metrics != nil {
		d.metrics.IncMessageRetried(strings.ToLower(msg.Channel.String()))
	}
	return d.attempt(ctx, msg, p)
}

func (d *Dispatcher) overHourlyLimit(ctx context.Context, channel domain.Channel, limit int) (bool, error) {
	if d.limiter == nil || limit <= 0 {
		return false, nil
	}

	allowed, err := d.limiter.Allow(ctx, strings.ToLower(channel.String()), int64(limit))
	if err != nil {
		// Availability over enforcement: a broken limiter must not block sends.
		d.logger.Warn("rate limiter check failed, allowing send",
			zap.String("channel", channel.String()),
			zap.Error(err),
		)
		return false, nil
	}
	return !allowed, nil
}

func normalizeCategory(c domain.Category) domain.Category {
	if !c.IsValid() {
		return domain.CategoryTransactional
	}
	return c
}
