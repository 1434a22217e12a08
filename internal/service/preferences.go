package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/campushq/messaging/internal/domain"
	"github.com/campushq/messaging/internal/repository"
	"go.uber.org/zap"
)

// PreferenceService manages per-user notification preferences. Reads for
// users without a record return the fully-allowed default instead of an
// error, mirroring how the send-time gate treats them.
type PreferenceService struct {
	prefs    repository.PreferenceRepository
	settings repository.SettingsRepository
	logger   *zap.Logger
}

func NewPreferenceService(
	prefs repository.PreferenceRepository,
	settings repository.SettingsRepository,
	logger *zap.Logger,
) (*PreferenceService, error) {
	if prefs == nil {
		return nil, fmt.Errorf("preference repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PreferenceService{prefs: prefs, settings: settings, logger: logger}, nil
}

func (s *PreferenceService) Get(ctx context.Context, userID string) (*domain.Preference, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}

	pref, err := s.prefs.GetByUserID(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return s.defaultPreference(ctx, userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}
	return pref, nil
}

func (s *PreferenceService) Upsert(ctx context.Context, pref *domain.Preference) error {
	if pref == nil || strings.TrimSpace(pref.UserID) == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	pref.UserID = strings.TrimSpace(pref.UserID)

	if err := s.prefs.Upsert(ctx, pref); err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}

	s.logger.Info("notification preferences saved", zap.String("userId", pref.UserID))
	return nil
}

func (s *PreferenceService) defaultPreference(ctx context.Context, userID string) *domain.Preference {
	var stored *domain.Settings
	if s.settings != nil {
		if got, err := s.settings.Get(ctx); err == nil {
			stored = got
		}
	}
	return domain.NewPreference(userID, stored)
}
