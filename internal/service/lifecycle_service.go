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

// Роль актора. Идентичность проверяется снаружи; ядро делает только
// проверки владения.
type ActorRole string

const (
	ActorCustomer ActorRole = "customer"
	ActorProvider ActorRole = "provider"
)

// statusRank — позиция статуса в цепочке жизненного цикла.
// Параллельные словари (accepted/approved, on_the_way/in_progress)
// занимают одну позицию.
var statusRank = map[model.AppointmentStatus]int{
	model.StatusPending:    0,
	model.StatusAccepted:   1,
	model.StatusApproved:   1,
	model.StatusConfirmed:  2,
	model.StatusOnTheWay:   3,
	model.StatusInProgress: 3,
	model.StatusCompleted:  4,
}

// Статусы, из которых клиент ещё может отменить запись сам.
var customerCancellable = map[model.AppointmentStatus]bool{
	model.StatusPending:   true,
	model.StatusAccepted:  true,
	model.StatusApproved:  true,
	model.StatusConfirmed: true,
}

// LifecycleService ведёт жизненный цикл записи: переходы статусов,
// отмену, перенос и оценку.
type LifecycleService struct {
	db        *gorm.DB
	appts     repository.AppointmentRepository
	ratings   repository.RatingRepository
	providers repository.ProviderRepository
	scheduler *SchedulingService
	notifier  Notifier
	events    *EventRecorder
	log       zerolog.Logger

	now func() time.Time
}

func NewLifecycleService(
	db *gorm.DB,
	appts repository.AppointmentRepository,
	ratings repository.RatingRepository,
	providers repository.ProviderRepository,
	scheduler *SchedulingService,
	notifier Notifier,
	events *EventRecorder,
	log zerolog.Logger,
) *LifecycleService {
	return &LifecycleService{
		db:        db,
		appts:     appts,
		ratings:   ratings,
		providers: providers,
		scheduler: scheduler,
		notifier:  notifier,
		events:    events,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// GetAppointment возвращает запись по ID.
func (s *LifecycleService) GetAppointment(ctx context.Context, id string) (*model.Appointment, error) {
	appt, err := s.appts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: appointment %s", ErrNotFound, id)
		}
		return nil, err
	}
	return appt, nil
}

// ListCustomerAppointments — записи клиента за период с пагинацией.
func (s *LifecycleService) ListCustomerAppointments(
	ctx context.Context,
	customerID string,
	from, to time.Time,
	limit, offset int,
) ([]model.Appointment, int64, error) {
	return s.appts.ListByCustomer(ctx, customerID, from, to, limit, offset)
}

// ListProviderAppointments — записи провайдера за период с пагинацией.
func (s *LifecycleService) ListProviderAppointments(
	ctx context.Context,
	providerID string,
	from, to time.Time,
	limit, offset int,
) ([]model.Appointment, int64, error) {
	return s.appts.ListByProvider(ctx, providerID, from, to, limit, offset)
}

// ListProviderRatings — оценки провайдера с пагинацией.
func (s *LifecycleService) ListProviderRatings(
	ctx context.Context,
	providerID string,
	limit, offset int,
) ([]model.Rating, int64, error) {
	return s.ratings.ListByProvider(ctx, providerID, limit, offset)
}

// AdvanceStatus — провайдер двигает запись строго вперёд по цепочке
// pending → accepted/approved → confirmed → on_the_way/in_progress →
// completed; no_show доступен как боковой выход из любого нетерминального
// статуса. Отмена идёт через Cancel, не здесь.
func (s *LifecycleService) AdvanceStatus(
	ctx context.Context,
	appointmentID, providerID string,
	statusRaw string,
	finalPrice *float64,
) (*model.Appointment, error) {
	to, ok := model.NormalizeStatus(statusRaw)
	if !ok {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, statusRaw)
	}
	if to == model.StatusCancelled {
		return nil, fmt.Errorf("%w: cancellation requires a reason, use cancel", ErrInvalidTransition)
	}

	var appt model.Appointment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadOwnedAppointment(tx, &appt, appointmentID, ActorProvider, providerID); err != nil {
			return err
		}

		if appt.Status.IsTerminal() {
			return fmt.Errorf("%w: appointment is %s", ErrInvalidTransition, appt.Status)
		}
		if to != model.StatusNoShow && statusRank[to] <= statusRank[appt.Status] {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, to)
		}

		update := map[string]any{"status": to}
		if to == model.StatusCompleted && finalPrice != nil {
			update["final_price"] = *finalPrice
			appt.FinalPrice = finalPrice
		}
		if err := tx.Model(&model.Appointment{}).Where("id = ?", appt.ID).Updates(update).Error; err != nil {
			return err
		}

		appt.Status = to
		return nil
	})
	if err != nil {
		return nil, err
	}

	if appt.Status == model.StatusCompleted {
		if err := s.notifier.BookingCompleted(ctx, &appt); err != nil {
			s.log.Warn().Err(err).Str("appointment_id", appt.ID.String()).Msg("notify completion")
		}
		s.events.Record(ctx, model.EventTypeBookingCompleted, &appt.ProviderID, &appt.ID, nil)
	} else {
		s.events.Record(ctx, model.EventTypeStatusChanged, &appt.ProviderID, &appt.ID, map[string]any{
			"status": string(appt.Status),
		})
	}

	return &appt, nil
}

// Cancel отменяет запись. Клиент — только пока работа не началась
// (pending/accepted/approved/confirmed); провайдер — из любого
// нетерминального статуса, но с обязательной причиной.
func (s *LifecycleService) Cancel(
	ctx context.Context,
	appointmentID string,
	role ActorRole,
	actorID, reason string,
) (*model.Appointment, error) {
	if role == ActorProvider && reason == "" {
		return nil, ErrReasonRequired
	}

	var appt model.Appointment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadOwnedAppointment(tx, &appt, appointmentID, role, actorID); err != nil {
			return err
		}

		if appt.Status.IsTerminal() {
			return fmt.Errorf("%w: appointment is %s", ErrInvalidTransition, appt.Status)
		}
		if role == ActorCustomer && !customerCancellable[appt.Status] {
			return fmt.Errorf("%w: customer cannot cancel %s appointment", ErrInvalidTransition, appt.Status)
		}

		now := s.now()
		update := map[string]any{
			"status":       model.StatusCancelled,
			"cancelled_at": now,
		}
		if reason != "" {
			update["cancellation_reason"] = reason
			appt.CancellationReason = &reason
		}
		if err := tx.Model(&model.Appointment{}).Where("id = ?", appt.ID).Updates(update).Error; err != nil {
			return err
		}

		appt.Status = model.StatusCancelled
		appt.CancelledAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.notifier.BookingCancelled(ctx, &appt, reason); err != nil {
		s.log.Warn().Err(err).Str("appointment_id", appt.ID.String()).Msg("notify cancellation")
	}
	actorUUID := appt.CustomerID
	if role == ActorProvider {
		actorUUID = appt.ProviderID
	}
	s.events.Record(ctx, model.EventTypeBookingCancelled, &actorUUID, &appt.ID, map[string]any{
		"role":   string(role),
		"reason": reason,
	})

	return &appt, nil
}

// Reschedule переносит запись клиента на новые дату и время.
// Конфликт проверяется тем же путём, что и при бронировании; при
// неудаче запись не меняется вовсе. Перенос сбрасывает статус в
// pending — провайдер подтверждает заново.
func (s *LifecycleService) Reschedule(
	ctx context.Context,
	appointmentID, customerID string,
	date time.Time,
	timeStr string,
) (*model.Appointment, error) {
	clock, err := timeslot.ParseClock(timeStr)
	if err != nil {
		return nil, err
	}

	newDate := timeslot.DateOnly(date)
	scheduledAt := clock.At(newDate)

	var appt model.Appointment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadOwnedAppointment(tx, &appt, appointmentID, ActorCustomer, customerID); err != nil {
			return err
		}

		if appt.Status.IsTerminal() {
			return fmt.Errorf("%w: appointment is %s", ErrInvalidTransition, appt.Status)
		}

		slot, err := s.scheduler.resolveFreeSlot(tx, appt.ProviderID.String(), newDate, clock, appt.ID.String())
		if err != nil {
			return err
		}
		if !scheduledAt.After(s.now()) {
			return fmt.Errorf("%w: %s", ErrPastDateTime, scheduledAt.Format(time.RFC3339))
		}

		if err := tx.Model(&model.Appointment{}).
			Where("id = ?", appt.ID).
			Updates(map[string]any{
				"scheduled_at":    scheduledAt,
				"availability_id": slot.ID,
				"status":          model.StatusPending,
			}).Error; err != nil {
			return err
		}

		appt.ScheduledAt = scheduledAt
		appt.AvailabilityID = &slot.ID
		appt.Status = model.StatusPending
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Record(ctx, model.EventTypeBookingRescheduled, &appt.CustomerID, &appt.ID, map[string]any{
		"scheduled_at": scheduledAt.Format(time.RFC3339),
	})

	return &appt, nil
}

// Rate ставит оценку завершённой записи. Одна оценка на запись;
// агрегат провайдера пересчитывается в той же транзакции.
func (s *LifecycleService) Rate(
	ctx context.Context,
	appointmentID, customerID string,
	value int,
	comment *string,
) (*model.Rating, error) {
	if value < 1 || value > 5 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRating, value)
	}

	var rating model.Rating
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var appt model.Appointment
		if err := loadOwnedAppointment(tx, &appt, appointmentID, ActorCustomer, customerID); err != nil {
			return err
		}

		if appt.Status != model.StatusCompleted {
			return fmt.Errorf("%w: appointment is %s", ErrNotRatable, appt.Status)
		}

		ratings := s.ratings.WithTx(tx)
		if _, err := ratings.GetByAppointmentID(ctx, appt.ID.String()); err == nil {
			return fmt.Errorf("%w: appointment %s", ErrAlreadyRated, appointmentID)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		rating = model.Rating{
			AppointmentID: appt.ID,
			CustomerID:    appt.CustomerID,
			ProviderID:    appt.ProviderID,
			Value:         value,
			Comment:       comment,
		}
		if err := ratings.Create(ctx, &rating); err != nil {
			return err
		}

		// Пересчёт среднего по всем оценкам провайдера.
		avg, count, err := ratings.AggregateForProvider(ctx, appt.ProviderID.String())
		if err != nil {
			return err
		}
		return s.providers.WithTx(tx).UpdateRatingAggregate(ctx, appt.ProviderID.String(), avg, count)
	})
	if err != nil {
		return nil, err
	}

	s.events.Record(ctx, model.EventTypeRatingCreated, &rating.CustomerID, &rating.AppointmentID, map[string]any{
		"value": value,
	})

	return &rating, nil
}

// loadOwnedAppointment загружает запись под блокировкой и проверяет,
// что актор ею владеет.
func loadOwnedAppointment(tx *gorm.DB, appt *model.Appointment, id string, role ActorRole, actorID string) error {
	if err := lockForUpdate(tx).First(appt, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: appointment %s", ErrNotFound, id)
		}
		return err
	}

	owner := appt.CustomerID
	if role == ActorProvider {
		owner = appt.ProviderID
	}
	if owner.String() != actorID {
		return fmt.Errorf("%w: appointment %s", ErrNotOwner, id)
	}
	return nil
}
