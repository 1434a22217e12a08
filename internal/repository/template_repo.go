package repository

import (
	"context"
	"errors"

	"github.com/campushq/messaging/internal/domain"
	"gorm.io/gorm"
)

type TemplateRepository interface {
	Create(ctx context.Context, t *domain.Template) error
	Update(ctx context.Context, t *domain.Template) error
	GetByID(ctx context.Context, id string) (*domain.Template, error)
	GetBySlug(ctx context.Context, slug string, channel domain.Channel) (*domain.Template, error)
	List(ctx context.Context, channel *domain.Channel) ([]domain.Template, error)
	Delete(ctx context.Context, id string) error
	IncrementSentCount(ctx context.Context, id string) error
}

type GormTemplateRepo struct {
	db *gorm.DB
}

func NewGormTemplateRepo(db *gorm.DB) *GormTemplateRepo {
	return &GormTemplateRepo{db: db}
}

func (r *GormTemplateRepo) Create(ctx context.Context, t *domain.Template) error {
	model := templateModelFromDomain(t)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if t != nil {
		*t = *templateModelToDomain(model)
	}
	return nil
}

func (r *GormTemplateRepo) Update(ctx context.Context, t *domain.Template) error {
	model := templateModelFromDomain(t)
	result := r.db.WithContext(ctx).
		Model(&TemplateModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]any{
			"name":        model.Name,
			"version":     model.Version,
			"subject":     model.Subject,
			"html_body":   model.HTMLBody,
			"text_body":   model.TextBody,
			"body":        model.Body,
			"category":    model.Category,
			"description": model.Description,
			"variables":   model.Variables,
			"is_active":   model.IsActive,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormTemplateRepo) GetByID(ctx context.Context, id string) (*domain.Template, error) {
	var model TemplateModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return templateModelToDomain(&model), nil
}

func (r *GormTemplateRepo) GetBySlug(ctx context.Context, slug string, channel domain.Channel) (*domain.Template, error) {
	var model TemplateModel
	err := r.db.WithContext(ctx).
		Where("slug = ? AND channel = ?", slug, channel).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return templateModelToDomain(&model), nil
}

func (r *GormTemplateRepo) List(ctx context.Context, channel *domain.Channel) ([]domain.Template, error) {
	query := r.db.WithContext(ctx).Model(&TemplateModel{})
	if channel != nil {
		query = query.Where("channel = ?", *channel)
	}

	var models []TemplateModel
	if err := query.Order("slug ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	templates := make([]domain.Template, 0, len(models))
	for i := range models {
		templates = append(templates, *templateModelToDomain(&models[i]))
	}
	return templates, nil
}

func (r *GormTemplateRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&TemplateModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormTemplateRepo) IncrementSentCount(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&TemplateModel{}).
		Where("id = ?", id).
		Update("sent_count", gorm.Expr("sent_count + 1")).Error
}
