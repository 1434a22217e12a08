package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/campushq/messaging/internal/domain"
)

// TemplatedEmailRequest is a send addressed by template slug.
type TemplatedEmailRequest struct {
	To            string
	ToName        string
	UserID        *string
	TemplateSlug  string
	Variables     map[string]string
	ReferenceType *string
	ReferenceID   *string
}

// TemplatedSMSRequest is an SMS send addressed by template slug.
type TemplatedSMSRequest struct {
	To            string
	UserID        *string
	TemplateSlug  string
	Variables     map[string]string
	ReferenceType *string
	ReferenceID   *string
}

// SendTemplatedEmail resolves the template, applies the preference gate when
// a user id is present, interpolates the content, and delegates to the raw
// dispatcher. Template and preference denials short-circuit with no record
// written.
func (d *Dispatcher) SendTemplatedEmail(ctx context.Context, req TemplatedEmailRequest) (SendResult, error) {
	tpl, result, err := d.resolveForSend(ctx, req.TemplateSlug, domain.ChannelEmail, req.UserID)
	if tpl == nil {
		return result, err
	}

	return d.SendEmail(ctx, EmailRequest{
		To:            req.To,
		ToName:        req.ToName,
		Subject:       domain.Interpolate(tpl.Subject, req.Variables),
		HTMLBody:      domain.Interpolate(tpl.HTMLBody, req.Variables),
		TextBody:      domain.Interpolate(tpl.TextBody, req.Variables),
		UserID:        req.UserID,
		TemplateID:    &tpl.ID,
		Variables:     req.Variables,
		Category:      tpl.Category,
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
	})
}

// SendTemplatedSMS is the SMS counterpart of SendTemplatedEmail.
func (d *Dispatcher) SendTemplatedSMS(ctx context.Context, req TemplatedSMSRequest) (SendResult, error) {
	tpl, result, err := d.resolveForSend(ctx, req.TemplateSlug, domain.ChannelSMS, req.UserID)
	if tpl == nil {
		return result, err
	}

	return d.SendSMS(ctx, SMSRequest{
		To:            req.To,
		Body:          domain.Interpolate(tpl.Body, req.Variables),
		UserID:        req.UserID,
		TemplateID:    &tpl.ID,
		Variables:     req.Variables,
		Category:      tpl.Category,
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
	})
}

// resolveForSend looks up the template by exact slug and runs the preference
// gate. A nil template means stop: either a business denial in the result or
// a persistence error.
func (d *Dispatcher) resolveForSend(
	ctx context.Context,
	slug string,
	channel domain.Channel,
	userID *string,
) (*domain.Template, SendResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if d.templates == nil {
		return nil, SendResult{}, fmt.Errorf("template repository is not configured")
	}

	tpl, err := d.templates.GetBySlug(ctx, slug, channel)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, SendResult{Error: fmt.Sprintf("%s: %q", domain.ErrTemplateNotFound, slug)}, nil
	}
	if err != nil {
		return nil, SendResult{}, fmt.Errorf("failed to resolve template: %w", err)
	}
	if !tpl.IsActive {
		return nil, SendResult{Error: fmt.Sprintf("%s: %q", domain.ErrTemplateInactive, slug)}, nil
	}

	if userID != nil {
		allowed, reason, err := d.checkSendAllowed(ctx, *userID, channel, tpl.Category)
		if err != nil {
			return nil, SendResult{}, err
		}
		if !allowed {
			return nil, SendResult{Error: reason}, nil
		}
	}

	return tpl, SendResult{}, nil
}

// checkSendAllowed applies the preference gate. Users without a preference
// record are allowed; the channel flag dominates the category sub-flags, and
// transactional sends are only ever blocked by the channel flag.
func (d *Dispatcher) checkSendAllowed(
	ctx context.Context,
	userID string,
	channel domain.Channel,
	category domain.Category,
) (bool, string, error) {
	if d.prefs == nil {
		return true, "", nil
	}

	pref, err := d.prefs.GetByUserID(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return true, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("failed to load notification preferences: %w", err)
	}

	if pref.Allows(channel, category) {
		return true, "", nil
	}
	return false, fmt.Sprintf("user has opted out of %s %s messages",
		strings.ToLower(category.String()), strings.ToLower(channel.String())), nil
}
