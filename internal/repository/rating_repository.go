package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/fixaro/marketplace-core/internal/model"
)

type RatingRepository interface {
	// Та же реализация поверх открытой транзакции.
	WithTx(tx *gorm.DB) RatingRepository
	Create(ctx context.Context, rating *model.Rating) error
	GetByAppointmentID(ctx context.Context, appointmentID string) (*model.Rating, error)
	ListByProvider(ctx context.Context, providerID string, limit, offset int) ([]model.Rating, int64, error)
	// Среднее и количество по всем оценкам провайдера.
	AggregateForProvider(ctx context.Context, providerID string) (avg float64, count int64, err error)
}

type GormRatingRepository struct {
	db *gorm.DB
}

func NewGormRatingRepository(db *gorm.DB) *GormRatingRepository {
	return &GormRatingRepository{db: db}
}

func (r *GormRatingRepository) WithTx(tx *gorm.DB) RatingRepository {
	return &GormRatingRepository{db: tx}
}

func (r *GormRatingRepository) Create(ctx context.Context, rating *model.Rating) error {
	return r.db.WithContext(ctx).Create(rating).Error
}

func (r *GormRatingRepository) GetByAppointmentID(ctx context.Context, appointmentID string) (*model.Rating, error) {
	var rt model.Rating
	if err := r.db.WithContext(ctx).First(&rt, "appointment_id = ?", appointmentID).Error; err != nil {
		return nil, err
	}
	return &rt, nil
}

func (r *GormRatingRepository) ListByProvider(
	ctx context.Context,
	providerID string,
	limit, offset int,
) ([]model.Rating, int64, error) {
	var (
		ratings []model.Rating
		total   int64
	)

	q := r.db.WithContext(ctx).
		Model(&model.Rating{}).
		Where("provider_id = ?", providerID)

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}

	if err := q.Order("created_at DESC").Find(&ratings).Error; err != nil {
		return nil, 0, err
	}

	return ratings, total, nil
}

func (r *GormRatingRepository) AggregateForProvider(ctx context.Context, providerID string) (float64, int64, error) {
	type agg struct {
		Avg   float64
		Count int64
	}
	var a agg
	err := r.db.WithContext(ctx).
		Model(&model.Rating{}).
		Select("COALESCE(AVG(value), 0) AS avg, COUNT(*) AS count").
		Where("provider_id = ?", providerID).
		Scan(&a).Error
	if err != nil {
		return 0, 0, err
	}
	return a.Avg, a.Count, nil
}
