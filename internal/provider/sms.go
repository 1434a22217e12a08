package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/campushq/messaging/internal/domain"
	"github.com/campushq/messaging/internal/settings"
	"github.com/go-resty/resty/v2"
)

const defaultSMSTimeout = 10 * time.Second

// smsAPIResponse is the provider's message resource, Twilio wire format.
type smsAPIResponse struct {
	Sid          string  `json:"sid"`
	Status       string  `json:"status"`
	ErrorCode    *int    `json:"error_code"`
	ErrorMessage *string `json:"error_message"`
	Message      string  `json:"message"`
	Code         *int    `json:"code"`
}

// SMSProvider sends messages through a Twilio-compatible REST API.
type SMSProvider struct {
	resolver    *settings.Resolver
	client      *resty.Client
	callbackURL string
}

// NewSMSProvider builds the provider. callbackURL is where the carrier posts
// delivery-status updates; empty disables status callbacks.
func NewSMSProvider(resolver *settings.Resolver, callbackURL string) (*SMSProvider, error) {
	client := resty.New()
	client.SetTimeout(defaultSMSTimeout)
	client.SetRetryCount(0)

	return NewSMSProviderWithClient(resolver, callbackURL, client)
}

func NewSMSProviderWithClient(resolver *settings.Resolver, callbackURL string, client *resty.Client) (*SMSProvider, error) {
	if resolver == nil {
		return nil, fmt.Errorf("settings resolver is required")
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultSMSTimeout)
	}
	client.SetRetryCount(0)

	return &SMSProvider{
		resolver:    resolver,
		client:      client,
		callbackURL: strings.TrimSpace(callbackURL),
	}, nil
}

func (p *SMSProvider) Channel() domain.Channel {
	return domain.ChannelSMS
}

func (p *SMSProvider) NormalizeDestination(to string) (string, error) {
	normalized := domain.NormalizePhone(to)
	if normalized == "" {
		return "", fmt.Errorf("%w: invalid phone number %q", domain.ErrValidation, to)
	}
	return normalized, nil
}

func (p *SMSProvider) Send(ctx context.Context, msg domain.Message) (*Response, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}

	cfg := p.resolver.SMS(ctx)
	if !cfg.Enabled {
		return nil, domain.ErrNotConfigured
	}

	form := map[string]string{
		"From": cfg.FromNumber,
		"To":   msg.Recipient,
		"Body": msg.TextBody,
	}
	if p.callbackURL != "" {
		form["StatusCallback"] = p.callbackURL
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		strings.TrimRight(cfg.APIBaseURL, "/"), cfg.AccountSID)

	response, err := p.client.R().
		SetContext(ctx).
		SetBasicAuth(cfg.AccountSID, cfg.AuthToken).
		SetFormData(form).
		Post(endpoint)
	if err != nil {
		return nil, &ProviderError{
			Message:   "sms api request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, &ProviderError{
			Message:   "sms api returned empty response",
			Transient: true,
		}
	}

	body := response.Body()
	var parsed smsAPIResponse
	_ = json.Unmarshal(body, &parsed)

	if response.IsError() {
		return nil, &ProviderError{
			StatusCode: response.StatusCode(),
			Code:       apiErrorCode(&parsed),
			Message:    apiErrorMessage(&parsed, string(body)),
			Transient:  isTransientStatus(response.StatusCode()),
		}
	}

	if strings.TrimSpace(parsed.Sid) == "" {
		return nil, &ProviderError{
			StatusCode: response.StatusCode(),
			Message:    "sms api response missing message sid",
			Transient:  false,
		}
	}

	return &Response{
		MessageID:  parsed.Sid,
		StatusCode: response.StatusCode(),
		Body:       string(body),
	}, nil
}

func apiErrorCode(parsed *smsAPIResponse) string {
	if parsed.Code != nil {
		return fmt.Sprintf("%d", *parsed.Code)
	}
	if parsed.ErrorCode != nil {
		return fmt.Sprintf("%d", *parsed.ErrorCode)
	}
	return ""
}

func apiErrorMessage(parsed *smsAPIResponse, raw string) string {
	if strings.TrimSpace(parsed.Message) != "" {
		return parsed.Message
	}
	if parsed.ErrorMessage != nil && strings.TrimSpace(*parsed.ErrorMessage) != "" {
		return *parsed.ErrorMessage
	}
	return strings.TrimSpace(raw)
}

func isTransientStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= http.StatusInternalServerError
}
