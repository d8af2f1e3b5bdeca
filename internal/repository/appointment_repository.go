package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/fixaro/marketplace-core/internal/model"
)

type AppointmentRepository interface {
	// Та же реализация поверх открытой транзакции.
	WithTx(tx *gorm.DB) AppointmentRepository
	// Создать новую запись.
	Create(ctx context.Context, appt *model.Appointment) error
	// Получить запись по ID.
	GetByID(ctx context.Context, id string) (*model.Appointment, error)
	// Активные записи провайдера в интервале [from, to).
	ListActiveByProviderBetween(ctx context.Context, providerID string, from, to time.Time) ([]model.Appointment, error)
	// Сколько записей ссылается на слот шаблона.
	CountByAvailabilityID(ctx context.Context, slotID string) (int64, error)
	// Список записей клиента за период с пагинацией.
	ListByCustomer(ctx context.Context, customerID string, from, to time.Time, limit, offset int) ([]model.Appointment, int64, error)
	// Список записей провайдера за период с пагинацией.
	ListByProvider(ctx context.Context, providerID string, from, to time.Time, limit, offset int) ([]model.Appointment, int64, error)
}

// Реализация на GORM.
type GormAppointmentRepository struct {
	db *gorm.DB
}

func NewGormAppointmentRepository(db *gorm.DB) *GormAppointmentRepository {
	return &GormAppointmentRepository{db: db}
}

func (r *GormAppointmentRepository) WithTx(tx *gorm.DB) AppointmentRepository {
	return &GormAppointmentRepository{db: tx}
}

func (r *GormAppointmentRepository) Create(ctx context.Context, appt *model.Appointment) error {
	return r.db.WithContext(ctx).Create(appt).Error
}

func (r *GormAppointmentRepository) GetByID(ctx context.Context, id string) (*model.Appointment, error) {
	var a model.Appointment
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *GormAppointmentRepository) ListActiveByProviderBetween(
	ctx context.Context,
	providerID string,
	from, to time.Time,
) ([]model.Appointment, error) {
	var appts []model.Appointment
	err := r.db.WithContext(ctx).
		Where("provider_id = ?", providerID).
		Where("scheduled_at >= ? AND scheduled_at < ?", from, to).
		Where("status IN ?", model.ActiveStatuses()).
		Order("scheduled_at ASC").
		Find(&appts).Error
	if err != nil {
		return nil, err
	}
	return appts, nil
}

func (r *GormAppointmentRepository) CountByAvailabilityID(ctx context.Context, slotID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.Appointment{}).
		Where("availability_id = ?", slotID).
		Count(&n).Error
	return n, err
}

func (r *GormAppointmentRepository) ListByCustomer(
	ctx context.Context,
	customerID string,
	from, to time.Time,
	limit, offset int,
) ([]model.Appointment, int64, error) {
	return r.listByActor(ctx, "customer_id", customerID, from, to, limit, offset)
}

func (r *GormAppointmentRepository) ListByProvider(
	ctx context.Context,
	providerID string,
	from, to time.Time,
	limit, offset int,
) ([]model.Appointment, int64, error) {
	return r.listByActor(ctx, "provider_id", providerID, from, to, limit, offset)
}

func (r *GormAppointmentRepository) listByActor(
	ctx context.Context,
	column, id string,
	from, to time.Time,
	limit, offset int,
) ([]model.Appointment, int64, error) {
	var (
		appts []model.Appointment
		total int64
	)

	q := r.db.WithContext(ctx).
		Model(&model.Appointment{}).
		Where(column+" = ?", id)

	if !from.IsZero() {
		q = q.Where("scheduled_at >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("scheduled_at < ?", to)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}

	if err := q.Order("scheduled_at DESC").Find(&appts).Error; err != nil {
		return nil, 0, err
	}

	return appts, total, nil
}
