package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/campushq/messaging/internal/domain"
	"github.com/campushq/messaging/internal/repository"
	"go.uber.org/zap"
)

// SettingsService is the admin surface over the singleton settings row.
type SettingsService struct {
	settings repository.SettingsRepository
	logger   *zap.Logger
}

func NewSettingsService(settings repository.SettingsRepository, logger *zap.Logger) (*SettingsService, error) {
	if settings == nil {
		return nil, fmt.Errorf("settings repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{settings: settings, logger: logger}, nil
}

// Get returns the stored settings, or a zero-value row when none has been
// saved yet so the admin UI always has something to render.
func (s *SettingsService) Get(ctx context.Context) (*domain.Settings, error) {
	stored, err := s.settings.Get(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.Settings{ID: domain.SettingsID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return stored, nil
}

func (s *SettingsService) Update(ctx context.Context, settings *domain.Settings) error {
	if settings == nil {
		return fmt.Errorf("%w: settings payload is required", domain.ErrValidation)
	}
	if settings.EmailHourlyLimit < 0 || settings.SMSHourlyLimit < 0 {
		return fmt.Errorf("%w: hourly limits cannot be negative", domain.ErrValidation)
	}

	if err := s.settings.Upsert(ctx, settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	s.logger.Info("messaging settings updated",
		zap.Bool("emailEnabled", settings.EmailEnabled),
		zap.Bool("smsEnabled", settings.SMSEnabled),
	)
	return nil
}
