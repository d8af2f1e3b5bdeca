package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/fixaro/marketplace-core/internal/model"
	"github.com/fixaro/marketplace-core/internal/repository"
	"github.com/fixaro/marketplace-core/internal/timeslot"
)

// Статус слота шаблона, спроецированный на конкретную дату.
type SlotDayStatus string

const (
	SlotPast      SlotDayStatus = "past"
	SlotBooked    SlotDayStatus = "booked"
	SlotAvailable SlotDayStatus = "available"
)

// SlotProjection — один слот шаблона, вычисленный для конкретной даты.
type SlotProjection struct {
	SlotID      string        `json:"slot_id"`
	Day         string        `json:"day"`
	Start       string        `json:"start"`
	End         string        `json:"end"`
	Status      SlotDayStatus `json:"status"`
	IsAvailable bool          `json:"is_available"`
}

// BookingInput — вход createBooking. Время — строка "HH:MM", должно
// точно совпадать с началом слота шаблона.
type BookingInput struct {
	CustomerID  string
	ProviderID  string
	ServiceID   string
	Date        time.Time
	Time        string
	Description string
}

// SchedulingService — ядро: проекция недельного шаблона на календарную
// дату и валидация бронирований против конфликтов.
//
// Шаблон — не календарь: слот "понедельник 09:00" повторяется каждую
// неделю, и его занятость всегда выводится заново из множества записей
// ровно на запрошенную дату. Слот никогда не помечается занятым навсегда.
type SchedulingService struct {
	db        *gorm.DB
	slots     repository.AvailabilityRepository
	appts     repository.AppointmentRepository
	providers repository.ProviderRepository
	customers repository.CustomerRepository
	services  repository.ServiceRepository
	notifier  Notifier
	events    *EventRecorder
	log       zerolog.Logger

	// Подменяется в тестах.
	now func() time.Time
}

func NewSchedulingService(
	db *gorm.DB,
	slots repository.AvailabilityRepository,
	appts repository.AppointmentRepository,
	providers repository.ProviderRepository,
	customers repository.CustomerRepository,
	services repository.ServiceRepository,
	notifier Notifier,
	events *EventRecorder,
	log zerolog.Logger,
) *SchedulingService {
	return &SchedulingService{
		db:        db,
		slots:     slots,
		appts:     appts,
		providers: providers,
		customers: customers,
		services:  services,
		notifier:  notifier,
		events:    events,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// DayAvailability проецирует активные слоты провайдера на дату:
// past / booked / available для каждого слота.
func (s *SchedulingService) DayAvailability(
	ctx context.Context,
	providerID string,
	date time.Time,
) ([]SlotProjection, error) {
	if _, err := s.providers.GetByID(ctx, providerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: provider %s", ErrNotFound, providerID)
		}
		return nil, err
	}

	day := timeslot.DayOf(date)
	slots, err := s.slots.ListActiveByProviderAndDay(ctx, providerID, day)
	if err != nil {
		return nil, err
	}

	dayStart := timeslot.DateOnly(date)
	dayEnd := dayStart.AddDate(0, 0, 1)
	appts, err := s.appts.ListActiveByProviderBetween(ctx, providerID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	now := s.now()
	today := timeslot.DateOnly(now)
	nowClock := timeslot.ClockOf(now)

	projections := make([]SlotProjection, 0, len(slots))
	for _, slot := range slots {
		rng := slot.Range()

		status := SlotAvailable
		switch {
		case dayStart.Before(today),
			dayStart.Equal(today) && rng.Start <= nowClock:
			status = SlotPast
		case hasBookingWithin(appts, rng):
			status = SlotBooked
		}

		projections = append(projections, SlotProjection{
			SlotID:      slot.ID.String(),
			Day:         slot.Day().String(),
			Start:       rng.Start.String(),
			End:         rng.End.String(),
			Status:      status,
			IsAvailable: status == SlotAvailable,
		})
	}

	return projections, nil
}

// hasBookingWithin сообщает, попадает ли хоть одна активная запись
// в окно слота.
func hasBookingWithin(appts []model.Appointment, rng timeslot.Range) bool {
	for _, a := range appts {
		if rng.Contains(timeslot.ClockOf(a.ScheduledAt)) {
			return true
		}
	}
	return false
}

// CreateBooking валидирует и создаёт бронирование.
//
// Последовательность check-then-create атомарна: слот шаблона берётся
// под блокировку, так что два одновременных бронирования одной ячейки
// (provider, date, time) не пройдут оба.
func (s *SchedulingService) CreateBooking(ctx context.Context, in BookingInput) (*model.Appointment, error) {
	clock, err := timeslot.ParseClock(in.Time)
	if err != nil {
		return nil, err
	}

	customer, err := s.customers.GetByID(ctx, in.CustomerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: customer %s", ErrNotFound, in.CustomerID)
		}
		return nil, err
	}
	provider, err := s.providers.GetByID(ctx, in.ProviderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: provider %s", ErrNotFound, in.ProviderID)
		}
		return nil, err
	}
	svc, err := s.services.GetByID(ctx, in.ServiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: service %s", ErrNotFound, in.ServiceID)
		}
		return nil, err
	}

	date := timeslot.DateOnly(in.Date)
	scheduledAt := clock.At(date)

	appt := &model.Appointment{
		CustomerID:        customer.ID,
		ProviderID:        provider.ID,
		ServiceID:         svc.ID,
		ScheduledAt:       scheduledAt,
		Status:            model.StatusAccepted, // авто-подтверждение: слот объявлен свободным, доп. гейта нет
		RepairDescription: in.Description,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		slot, err := s.resolveFreeSlot(tx, in.ProviderID, date, clock, "")
		if err != nil {
			return err
		}

		if !scheduledAt.After(s.now()) {
			return fmt.Errorf("%w: %s", ErrPastDateTime, scheduledAt.Format(time.RFC3339))
		}

		appt.AvailabilityID = &slot.ID
		return s.appts.WithTx(tx).Create(ctx, appt)
	})
	if err != nil {
		return nil, err
	}

	if err := s.notifier.BookingConfirmed(ctx, appt); err != nil {
		s.log.Warn().Err(err).Str("appointment_id", appt.ID.String()).Msg("notify booking confirmed")
	}
	s.events.Record(ctx, model.EventTypeBookingCreated, &appt.CustomerID, &appt.ID, map[string]any{
		"provider_id":  appt.ProviderID.String(),
		"scheduled_at": appt.ScheduledAt.Format(time.RFC3339),
	})

	return appt, nil
}

// resolveFreeSlot находит слот шаблона с точным началом clock на дату date
// и проверяет, что он не занят активной записью. excludeApptID исключает
// собственную запись при переносе. Вызывается только внутри транзакции.
func (s *SchedulingService) resolveFreeSlot(
	tx *gorm.DB,
	providerID string,
	date time.Time,
	clock timeslot.ClockTime,
	excludeApptID string,
) (*model.AvailabilitySlot, error) {
	day := timeslot.DayOf(date)

	// Блокировка строки слота сериализует конкурентные бронирования
	// одной и той же ячейки (provider, date, time).
	var slot model.AvailabilitySlot
	err := lockForUpdate(tx).
		Where("provider_id = ? AND day_of_week = ? AND start_minute = ? AND is_active = ?",
			providerID, int(day), int(clock), true).
		First(&slot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s %s", ErrSlotNotFound, day, clock)
		}
		return nil, err
	}

	dayStart := timeslot.DateOnly(date)
	dayEnd := dayStart.AddDate(0, 0, 1)

	q := tx.Model(&model.Appointment{}).
		Where("provider_id = ?", providerID).
		Where("scheduled_at >= ? AND scheduled_at < ?", dayStart, dayEnd).
		Where("status IN ?", model.ActiveStatuses())
	if excludeApptID != "" {
		q = q.Where("id <> ?", excludeApptID)
	}

	var appts []model.Appointment
	if err := q.Find(&appts).Error; err != nil {
		return nil, err
	}
	if hasBookingWithin(appts, slot.Range()) {
		return nil, fmt.Errorf("%w: %s %s", ErrSlotAlreadyBooked, dayStart.Format("2006-01-02"), clock)
	}

	return &slot, nil
}
