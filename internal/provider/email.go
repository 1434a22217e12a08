package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/campushq/messaging/internal/domain"
	"github.com/campushq/messaging/internal/settings"
	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

// sendFunc performs the actual SMTP delivery; injectable so dispatch logic
// is testable without a live mail server.
type sendFunc func(cfg settings.EmailConfig, m *gomail.Message) error

// EmailProvider delivers mail over SMTP. The dialer is constructed lazily on
// first use and cached until the resolved credentials change.
type EmailProvider struct {
	resolver *settings.Resolver
	send     sendFunc

	mu         sync.Mutex
	dialer     *gomail.Dialer
	dialerKey  string
	dialerOnce bool
}

func NewEmailProvider(resolver *settings.Resolver) (*EmailProvider, error) {
	if resolver == nil {
		return nil, fmt.Errorf("settings resolver is required")
	}

	p := &EmailProvider{resolver: resolver}
	p.send = p.dialAndSend
	return p, nil
}

// NewEmailProviderWithSender injects a custom delivery function.
func NewEmailProviderWithSender(resolver *settings.Resolver, send sendFunc) (*EmailProvider, error) {
	p, err := NewEmailProvider(resolver)
	if err != nil {
		return nil, err
	}
	if send != nil {
		p.send = send
	}
	return p, nil
}

func (p *EmailProvider) Channel() domain.Channel {
	return domain.ChannelEmail
}

func (p *EmailProvider) NormalizeDestination(to string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(to))
	if normalized == "" || !strings.Contains(normalized, "@") {
		return "", fmt.Errorf("%w: invalid email address %q", domain.ErrValidation, to)
	}
	return normalized, nil
}

func (p *EmailProvider) Send(ctx context.Context, msg domain.Message) (*Response, error) {
	if p == nil || p.resolver == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}

	cfg := p.resolver.Email(ctx)
	if !cfg.Enabled {
		return nil, domain.ErrNotConfigured
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", cfg.FromAddress, cfg.FromName)
	if msg.RecipientName != "" {
		m.SetAddressHeader("To", msg.Recipient, msg.RecipientName)
	} else {
		m.SetHeader("To", msg.Recipient)
	}
	if cfg.ReplyTo != "" {
		m.SetHeader("Reply-To", cfg.ReplyTo)
	}
	m.SetHeader("Subject", msg.Subject)

	if msg.TextBody != "" {
		m.SetBody("text/plain", msg.TextBody)
		if msg.HTMLBody != "" {
			m.AddAlternative("text/html", msg.HTMLBody)
		}
	} else {
		m.SetBody("text/html", msg.HTMLBody)
	}

	if err := p.send(cfg, m); err != nil {
		return nil, &ProviderError{
			Message:   "smtp delivery failed",
			Transient: true,
			Cause:     err,
		}
	}

	// SMTP has no provider-assigned id; generate one so delivery callbacks
	// and audit queries have a stable handle.
	return &Response{MessageID: "smtp-" + uuid.NewString()}, nil
}

func (p *EmailProvider) dialAndSend(cfg settings.EmailConfig, m *gomail.Message) error {
	return p.dialerFor(cfg).DialAndSend(m)
}

func (p *EmailProvider) dialerFor(cfg settings.EmailConfig) *gomail.Dialer {
	key := fmt.Sprintf("%s:%d:%s:%s", cfg.Host, cfg.Port, cfg.Username, cfg.Password)

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.dialerOnce || p.dialerKey != key {
		p.dialer = gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
		p.dialerKey = key
		p.dialerOnce = true
	}
	return p.dialer
}
