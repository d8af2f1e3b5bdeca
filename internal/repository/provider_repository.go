package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/fixaro/marketplace-core/internal/model"
)

type ProviderRepository interface {
	// Та же реализация поверх открытой транзакции.
	WithTx(tx *gorm.DB) ProviderRepository
	GetByID(ctx context.Context, id string) (*model.Provider, error)
	Create(ctx context.Context, provider *model.Provider) error
	// Обновить денормализованный агрегат оценок.
	UpdateRatingAggregate(ctx context.Context, id string, avg float64, count int64) error
}

type GormProviderRepository struct {
	db *gorm.DB
}

func NewGormProviderRepository(db *gorm.DB) *GormProviderRepository {
	return &GormProviderRepository{db: db}
}

func (r *GormProviderRepository) WithTx(tx *gorm.DB) ProviderRepository {
	return &GormProviderRepository{db: tx}
}

func (r *GormProviderRepository) GetByID(ctx context.Context, id string) (*model.Provider, error) {
	var p model.Provider
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormProviderRepository) Create(ctx context.Context, provider *model.Provider) error {
	return r.db.WithContext(ctx).Create(provider).Error
}

func (r *GormProviderRepository) UpdateRatingAggregate(ctx context.Context, id string, avg float64, count int64) error {
	return r.db.WithContext(ctx).
		Model(&model.Provider{}).
		Where("id = ?", id).
		Updates(map[string]any{"rating_avg": avg, "rating_count": count}).
		Error
}
