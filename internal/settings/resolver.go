package settings

import (
	"context"
	"errors"
	"strings"

	"github.com/campushq/messaging/internal/config"
	"github.com/campushq/messaging/internal/domain"
	"github.com/campushq/messaging/internal/repository"
	"go.uber.org/zap"
)

// EmailConfig is the resolved email channel configuration. Enabled is false
// when neither the settings row nor the environment supplies usable
// credentials; dispatch checks the flag and fails gracefully.
type EmailConfig struct {
	Enabled     bool
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	FromName    string
	ReplyTo     string
	HourlyLimit int
}

// SMSConfig is the resolved SMS channel configuration.
type SMSConfig struct {
	Enabled     bool
	AccountSID  string
	AuthToken   string
	FromNumber  string
	APIBaseURL  string
	HourlyLimit int
}

// Resolver resolves channel configuration database-first with environment
// fallback. It never returns an error to callers: a broken settings read
// degrades to the environment tier, and an unusable environment tier
// degrades to a disabled channel.
type Resolver struct {
	repo   repository.SettingsRepository
	cfg    *config.Config
	logger *zap.Logger
}

func NewResolver(repo repository.SettingsRepository, cfg *config.Config, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{repo: repo, cfg: cfg, logger: logger}
}

func (r *Resolver) Email(ctx context.Context) EmailConfig {
	stored := r.stored(ctx)

	if stored.EmailUsable() {
		return EmailConfig{
			Enabled:     true,
			Host:        stored.SMTPHost,
			Port:        stored.SMTPPort,
			Username:    stored.SMTPUsername,
			Password:    stored.SMTPPassword,
			FromAddress: stored.FromAddress,
			FromName:    stored.FromName,
			ReplyTo:     stored.ReplyTo,
			HourlyLimit: stored.EmailHourlyLimit,
		}
	}

	if r.cfg != nil &&
		strings.TrimSpace(r.cfg.SMTPHost) != "" &&
		strings.TrimSpace(r.cfg.EmailFromAddress) != "" {
		return EmailConfig{
			Enabled:     true,
			Host:        r.cfg.SMTPHost,
			Port:        r.cfg.SMTPPort,
			Username:    r.cfg.SMTPUsername,
			Password:    r.cfg.SMTPPassword,
			FromAddress: r.cfg.EmailFromAddress,
			FromName:    r.cfg.EmailFromName,
			ReplyTo:     r.cfg.EmailReplyTo,
			HourlyLimit: r.cfg.EmailHourlyLimit,
		}
	}

	return EmailConfig{Enabled: false}
}

func (r *Resolver) SMS(ctx context.Context) SMSConfig {
	stored := r.stored(ctx)

	baseURL := ""
	if r.cfg != nil {
		baseURL = r.cfg.SMSAPIBaseURL
	}

	if stored.SMSUsable() {
		return SMSConfig{
			Enabled:     true,
			AccountSID:  stored.SMSAccountSID,
			AuthToken:   stored.SMSAuthToken,
			FromNumber:  stored.SMSFromNumber,
			APIBaseURL:  baseURL,
			HourlyLimit: stored.SMSHourlyLimit,
		}
	}

	if r.cfg != nil &&
		strings.TrimSpace(r.cfg.SMSAccountSID) != "" &&
		strings.TrimSpace(r.cfg.SMSAuthToken) != "" &&
		strings.TrimSpace(r.cfg.SMSFromNumber) != "" {
		return SMSConfig{
			Enabled:     true,
			AccountSID:  r.cfg.SMSAccountSID,
			AuthToken:   r.cfg.SMSAuthToken,
			FromNumber:  r.cfg.SMSFromNumber,
			APIBaseURL:  baseURL,
			HourlyLimit: r.cfg.SMSHourlyLimit,
		}
	}

	return SMSConfig{Enabled: false}
}

// Defaults returns the stored default opt-in flags for new accounts.
func (r *Resolver) Defaults(ctx context.Context) (emailOptIn, smsOptIn bool) {
	stored := r.stored(ctx)
	if stored == nil {
		return true, false
	}
	return stored.DefaultEmailOptIn, stored.DefaultSMSOptIn
}

func (r *Resolver) stored(ctx context.Context) *domain.Settings {
	if r.repo == nil {
		return nil
	}

	stored, err := r.repo.Get(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.logger.Warn("failed to load messaging settings, using environment defaults", zap.Error(err))
		}
		return nil
	}
	return stored
}
