package repository

import (
	"context"
	"errors"
	"time"

	"github.com/campushq/messaging/internal/domain"
	"gorm.io/gorm"
)

type ListParams struct {
	Status   *domain.Status
	Channel  *domain.Channel
	Category *domain.Category
	UserID   *string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// StatusCount is one group-by bucket from the stats queries.
type StatusCount struct {
	Status domain.Status `gorm:"column:status"`
	Count  int64         `gorm:"column:count"`
}

type CategoryCount struct {
	Category domain.Category `gorm:"column:category"`
	Count    int64           `gorm:"column:count"`
}

type MessageRepository interface {
	Create(ctx context.Context, m *domain.Message) error
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	List(ctx context.Context, params ListParams) ([]domain.Message, int64, error)
	UpdateStatus(ctx context.Context, id string, status domain.Status) error
	MarkSent(ctx context.Context, id string, providerMessageID string, at time.Time) error
	MarkFailed(ctx context.Context, id string, errorCode, errorMessage string, at time.Time) error
	ApplyProviderStatus(ctx context.Context, providerMessageID string, status domain.Status, errorCode, errorMessage *string, at time.Time) (int64, error)
	ListFailedForRetry(ctx context.Context, channel domain.Channel, maxRetries, limit int) ([]domain.Message, error)
	CountByStatus(ctx context.Context, channel domain.Channel, since time.Time) ([]StatusCount, error)
	CountByCategory(ctx context.Context, channel domain.Channel, since time.Time) ([]CategoryCount, error)
	SumSegments(ctx context.Context, since time.Time) (int64, error)
}

type GormMessageRepo struct {
	db *gorm.DB
}

func NewGormMessageRepo(db *gorm.DB) *GormMessageRepo {
	return &GormMessageRepo{db: db}
}

func (r *GormMessageRepo) Create(ctx context.Context, m *domain.Message) error {
	model := messageModelFromDomain(m)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if m != nil {
		*m = *messageModelToDomain(model)
	}
	return nil
}

func (r *GormMessageRepo) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	var model MessageModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return messageModelToDomain(&model), nil
}

func (r *GormMessageRepo) List(ctx context.Context, params ListParams) ([]domain.Message, int64, error) {
	query := r.db.WithContext(ctx).Model(&MessageModel{})

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Channel != nil {
		query = query.Where("channel = ?", *params.Channel)
	}
	if params.Category != nil {
		query = query.Where("category = ?", *params.Category)
	}
	if params.UserID != nil {
		query = query.Where("user_id = ?", *params.UserID)
	}
	if params.From != nil {
		query = query.Where("created_at >= ?", *params.From)
	}
	if params.To != nil {
		query = query.Where("created_at <= ?", *params.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	pageSize = min(pageSize, 100)

	var models []MessageModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	messages := make([]domain.Message, 0, len(models))
	for i := range models {
		messages = append(messages, *messageModelToDomain(&models[i]))
	}

	return messages, total, nil
}

func (r *GormMessageRepo) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	result := r.db.WithContext(ctx).
		Model(&MessageModel{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormMessageRepo) MarkSent(ctx context.Context, id string, providerMessageID string, at time.Time) error {
	updates := map[string]any{
		"status":  domain.StatusSent,
		"sent_at": at,
	}
	if providerMessageID != "" {
		updates["provider_message_id"] = providerMessageID
	}

	result := r.db.WithContext(ctx).
		Model(&MessageModel{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormMessageRepo) MarkFailed(ctx context.Context, id string, errorCode, errorMessage string, at time.Time) error {
	updates := map[string]any{
		"status":        domain.StatusFailed,
		"failed_at":     at,
		"error_message": errorMessage,
		"retry_count":   gorm.Expr("retry_count + 1"),
		"last_retry_at": at,
	}
	if errorCode != "" {
		updates["error_code"] = errorCode
	}

	result := r.db.WithContext(ctx).
		Model(&MessageModel{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ApplyProviderStatus updates every record carrying the given provider
// message id (in practice exactly one) from an inbound delivery callback.
func (r *GormMessageRepo) ApplyProviderStatus(
	ctx context.Context,
	providerMessageID string,
	status domain.Status,
	errorCode, errorMessage *string,
	at time.Time,
) (int64, error) {
	updates := map[string]any{"status": status}

	switch status {
	case domain.StatusDelivered:
		updates["delivered_at"] = at
	case domain.StatusOpened:
		updates["opened_at"] = at
	case domain.StatusClicked:
		updates["clicked_at"] = at
	case domain.StatusBounced:
		updates["bounced_at"] = at
	case domain.StatusFailed:
		updates["failed_at"] = at
	}
	if errorCode != nil {
		updates["error_code"] = *errorCode
	}
	if errorMessage != nil {
		updates["error_message"] = *errorMessage
	}

	result := r.db.WithContext(ctx).
		Model(&MessageModel{}).
		Where("provider_message_id = ?", providerMessageID).
		Updates(updates)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *GormMessageRepo) ListFailedForRetry(
	ctx context.Context,
	channel domain.Channel,
	maxRetries, limit int,
) ([]domain.Message, error) {
	var models []MessageModel
	err := r.db.WithContext(ctx).
		Where("channel = ? AND status = ? AND retry_count < ?", channel, domain.StatusFailed, maxRetries).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	messages := make([]domain.Message, 0, len(models))
	for i := range models {
		messages = append(messages, *messageModelToDomain(&models[i]))
	}
	return messages, nil
}

func (r *GormMessageRepo) CountByStatus(
	ctx context.Context,
	channel domain.Channel,
	since time.Time,
) ([]StatusCount, error) {
	var counts []StatusCount
	err := r.db.WithContext(ctx).
		Model(&MessageModel{}).
		Select("status, COUNT(*) AS count").
		Where("channel = ? AND created_at >= ?", channel, since).
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *GormMessageRepo) CountByCategory(
	ctx context.Context,
	channel domain.Channel,
	since time.Time,
) ([]CategoryCount, error) {
	var counts []CategoryCount
	err := r.db.WithContext(ctx).
		Model(&MessageModel{}).
		Select("category, COUNT(*) AS count").
		Where("channel = ? AND created_at >= ?", channel, since).
		Group("category").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// SumSegments totals SMS segments in the window, the unit SMS providers bill by.
func (r *GormMessageRepo) SumSegments(ctx context.Context, since time.Time) (int64, error) {
	var total *int64
	err := r.db.WithContext(ctx).
		Model(&MessageModel{}).
		Select("SUM(segment_count)").
		Where("channel = ? AND created_at >= ?", domain.ChannelSMS, since).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}
