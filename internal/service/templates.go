package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/campushq/messaging/internal/domain"
	"github.com/campushq/messaging/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TemplateService is the admin surface over the template store. Senders
// resolve templates through the dispatcher instead.
type TemplateService struct {
	templates repository.TemplateRepository
	logger    *zap.Logger
}

func NewTemplateService(templates repository.TemplateRepository, logger *zap.Logger) (*TemplateService, error) {
	if templates == nil {
		return nil, fmt.Errorf("template repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemplateService{templates: templates, logger: logger}, nil
}

// Create validates and stores a new template at version 1. The slug must be
// unused on the template's channel; the same slug may exist on the other
// channel.
func (s *TemplateService) Create(ctx context.Context, tpl *domain.Template) (*domain.Template, error) {
	if tpl == nil {
		return nil, fmt.Errorf("%w: template is required", domain.ErrValidation)
	}

	tpl.ID = uuid.NewString()
	tpl.Version = 1
	tpl.SentCount = 0
	if !tpl.Category.IsValid() {
		tpl.Category = domain.CategoryTransactional
	}
	if err := tpl.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.templates.GetBySlug(ctx, tpl.Slug, tpl.Channel)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("failed to check slug availability: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: template slug %q already exists for channel %s",
			domain.ErrValidation, tpl.Slug, tpl.Channel)
	}

	if err := s.templates.Create(ctx, tpl); err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}

	s.logger.Info("template created",
		zap.String("templateId", tpl.ID),
		zap.String("slug", tpl.Slug),
		zap.String("channel", tpl.Channel.String()),
	)
	return tpl, nil
}

// TemplateUpdate carries the editable fields. Slug and channel are fixed at
// creation; nil pointers leave the stored value alone.
type TemplateUpdate struct {
	Name        *string
	Subject     *string
	HTMLBody    *string
	TextBody    *string
	Body        *string
	Category    *domain.Category
	Description *string
	Variables   []string
	IsActive    *bool
}

// Update applies the patch and bumps the version only when rendered content
// actually changed, so template history stays meaningful.
func (s *TemplateService) Update(ctx context.Context, id string, patch TemplateUpdate) (*domain.Template, error) {
	current, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := *current
	if patch.Name != nil {
		updated.Name = *patch.Name
	}
	if patch.Subject != nil {
		updated.Subject = *patch.Subject
	}
	if patch.HTMLBody != nil {
		updated.HTMLBody = *patch.HTMLBody
	}
	if patch.TextBody != nil {
		updated.TextBody = *patch.TextBody
	}
	if patch.Body != nil {
		updated.Body = *patch.Body
	}
	if patch.Category != nil {
		if !patch.Category.IsValid() {
			return nil, fmt.Errorf("%w: invalid category %q", domain.ErrValidation, *patch.Category)
		}
		updated.Category = *patch.Category
	}
	if patch.Description != nil {
		updated.Description = *patch.Description
	}
	if patch.Variables != nil {
		updated.Variables = patch.Variables
	}
	if patch.IsActive != nil {
		updated.IsActive = *patch.IsActive
	}

	if err := updated.Validate(); err != nil {
		return nil, err
	}

	if updated.ContentChanged(current) {
		updated.Version = current.Version + 1
	}

	if err := s.templates.Update(ctx, &updated); err != nil {
		return nil, fmt.Errorf("failed to update template: %w", err)
	}

	s.logger.Info("template updated",
		zap.String("templateId", updated.ID),
		zap.Int("version", updated.Version),
	)
	return &updated, nil
}

func (s *TemplateService) Get(ctx context.Context, id string) (*domain.Template, error) {
	return s.templates.GetByID(ctx, id)
}

func (s *TemplateService) List(ctx context.Context, channel *domain.Channel) ([]domain.Template, error) {
	if channel != nil && !channel.IsValid() {
		return nil, fmt.Errorf("%w: invalid channel %q", domain.ErrValidation, *channel)
	}
	return s.templates.List(ctx, channel)
}

// Delete removes a template. System templates are load-bearing for the
// application's own flows and cannot be deleted, only deactivated.
func (s *TemplateService) Delete(ctx context.Context, id string) error {
	tpl, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if tpl.IsSystem {
		return fmt.Errorf("%w: system template %q cannot be deleted", domain.ErrValidation, tpl.Slug)
	}

	if err := s.templates.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}

	s.logger.Info("template deleted",
		zap.String("templateId", id),
		zap.String("slug", tpl.Slug),
	)
	return nil
}
