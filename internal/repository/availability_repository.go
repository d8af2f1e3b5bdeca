package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/fixaro/marketplace-core/internal/model"
	"github.com/fixaro/marketplace-core/internal/timeslot"
)

type AvailabilityRepository interface {
	// Та же реализация поверх открытой транзакции.
	WithTx(tx *gorm.DB) AvailabilityRepository
	// Все слоты провайдера, упорядоченные по дню недели и началу.
	ListByProvider(ctx context.Context, providerID string) ([]model.AvailabilitySlot, error)
	// Слоты провайдера на день недели (активные и нет), по началу.
	ListByProviderAndDay(ctx context.Context, providerID string, day timeslot.DayOfWeek) ([]model.AvailabilitySlot, error)
	// Только активные слоты провайдера на день недели.
	ListActiveByProviderAndDay(ctx context.Context, providerID string, day timeslot.DayOfWeek) ([]model.AvailabilitySlot, error)
	// Найти слот по ID.
	GetByID(ctx context.Context, id string) (*model.AvailabilitySlot, error)
	// Создать слот.
	Create(ctx context.Context, slot *model.AvailabilitySlot) error
	// Обновить слот целиком.
	Update(ctx context.Context, slot *model.AvailabilitySlot) error
	// Удалить слот.
	Delete(ctx context.Context, id string) error
}

type GormAvailabilityRepository struct {
	db *gorm.DB
}

func NewGormAvailabilityRepository(db *gorm.DB) *GormAvailabilityRepository {
	return &GormAvailabilityRepository{db: db}
}

func (r *GormAvailabilityRepository) WithTx(tx *gorm.DB) AvailabilityRepository {
	return &GormAvailabilityRepository{db: tx}
}

func (r *GormAvailabilityRepository) ListByProvider(ctx context.Context, providerID string) ([]model.AvailabilitySlot, error) {
	var slots []model.AvailabilitySlot
	err := r.db.WithContext(ctx).
		Where("provider_id = ?", providerID).
		Order("day_of_week ASC, start_minute ASC").
		Find(&slots).Error
	if err != nil {
		return nil, err
	}
	return slots, nil
}

func (r *GormAvailabilityRepository) ListByProviderAndDay(
	ctx context.Context,
	providerID string,
	day timeslot.DayOfWeek,
) ([]model.AvailabilitySlot, error) {
	var slots []model.AvailabilitySlot
	err := r.db.WithContext(ctx).
		Where("provider_id = ? AND day_of_week = ?", providerID, int(day)).
		Order("start_minute ASC").
		Find(&slots).Error
	if err != nil {
		return nil, err
	}
	return slots, nil
}

func (r *GormAvailabilityRepository) ListActiveByProviderAndDay(
	ctx context.Context,
	providerID string,
	day timeslot.DayOfWeek,
) ([]model.AvailabilitySlot, error) {
	var slots []model.AvailabilitySlot
	err := r.db.WithContext(ctx).
		Where("provider_id = ? AND day_of_week = ? AND is_active = ?", providerID, int(day), true).
		Order("start_minute ASC").
		Find(&slots).Error
	if err != nil {
		return nil, err
	}
	return slots, nil
}

func (r *GormAvailabilityRepository) GetByID(ctx context.Context, id string) (*model.AvailabilitySlot, error) {
	var slot model.AvailabilitySlot
	if err := r.db.WithContext(ctx).First(&slot, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &slot, nil
}

func (r *GormAvailabilityRepository) Create(ctx context.Context, slot *model.AvailabilitySlot) error {
	return r.db.WithContext(ctx).Create(slot).Error
}

func (r *GormAvailabilityRepository) Update(ctx context.Context, slot *model.AvailabilitySlot) error {
	return r.db.WithContext(ctx).
		Model(&model.AvailabilitySlot{}).
		Where("id = ?", slot.ID).
		Updates(map[string]any{
			"day_of_week":  slot.DayOfWeek,
			"start_minute": slot.StartMinute,
			"end_minute":   slot.EndMinute,
			"is_active":    slot.IsActive,
		}).Error
}

func (r *GormAvailabilityRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&model.AvailabilitySlot{}, "id = ?", id).Error
}
