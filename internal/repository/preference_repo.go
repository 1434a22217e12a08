package repository

import (
	"context"
	"errors"

	"github.com/campushq/messaging/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PreferenceRepository interface {
	GetByUserID(ctx context.Context, userID string) (*domain.Preference, error)
	Upsert(ctx context.Context, p *domain.Preference) error
}

type GormPreferenceRepo struct {
	db *gorm.DB
}

func NewGormPreferenceRepo(db *gorm.DB) *GormPreferenceRepo {
	return &GormPreferenceRepo{db: db}
}

func (r *GormPreferenceRepo) GetByUserID(ctx context.Context, userID string) (*domain.Preference, error) {
	var model PreferenceModel
	err := r.db.WithContext(ctx).First(&model, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return preferenceModelToDomain(&model), nil
}

func (r *GormPreferenceRepo) Upsert(ctx context.Context, p *domain.Preference) error {
	model := preferenceModelFromDomain(p)

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).
		Create(model).Error
	if err != nil {
		return err
	}
	if p != nil {
		*p = *preferenceModelToDomain(model)
	}
	return nil
}
