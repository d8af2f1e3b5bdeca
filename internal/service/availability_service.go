package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/fixaro/marketplace-core/internal/model"
	"github.com/fixaro/marketplace-core/internal/repository"
	"github.com/fixaro/marketplace-core/internal/timeslot"
)

// AvailabilityService управляет недельным шаблоном доступности провайдера.
type AvailabilityService struct {
	db    *gorm.DB
	slots repository.AvailabilityRepository
	appts repository.AppointmentRepository
}

func NewAvailabilityService(
	db *gorm.DB,
	slots repository.AvailabilityRepository,
	appts repository.AppointmentRepository,
) *AvailabilityService {
	return &AvailabilityService{db: db, slots: slots, appts: appts}
}

// SlotPatch — частичное обновление слота; nil-поля не трогаются.
type SlotPatch struct {
	Day      *timeslot.DayOfWeek
	Start    *timeslot.ClockTime
	End      *timeslot.ClockTime
	IsActive *bool
}

// AddSlot добавляет слот в шаблон провайдера.
// Конфликт проверяется против всех слотов этого дня, активных и нет:
// правка is_active не должна внезапно легализовать пересечение.
func (s *AvailabilityService) AddSlot(
	ctx context.Context,
	providerID string,
	day timeslot.DayOfWeek,
	rng timeslot.Range,
	isActive bool,
) (*model.AvailabilitySlot, error) {
	if !day.Valid() {
		return nil, fmt.Errorf("%w: day %d", timeslot.ErrInvalidDayOfWeek, int(day))
	}
	if _, err := timeslot.NewRange(rng.Start, rng.End); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRange, rng)
	}

	slot := &model.AvailabilitySlot{
		DayOfWeek:   int(day),
		StartMinute: int(rng.Start),
		EndMinute:   int(rng.End),
		IsActive:    isActive,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Блокируем провайдера: две конкурентные вставки пересекающихся
		// слотов не должны пройти обе.
		var provider model.Provider
		if err := lockForUpdate(tx).First(&provider, "id = ?", providerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: provider %s", ErrNotFound, providerID)
			}
			return err
		}
		slot.ProviderID = provider.ID

		var existing []model.AvailabilitySlot
		if err := tx.
			Where("provider_id = ? AND day_of_week = ?", providerID, int(day)).
			Find(&existing).Error; err != nil {
			return err
		}
		for _, other := range existing {
			if rng.Conflicts(other.Range()) {
				return fmt.Errorf("%w: %s conflicts with %s", ErrOverlapConflict, rng, other.Range())
			}
		}

		return s.slots.WithTx(tx).Create(ctx, slot)
	})
	if err != nil {
		return nil, err
	}
	return slot, nil
}

// UpdateSlot применяет частичное обновление и перепроверяет пересечения
// против остальных слотов (возможно нового) дня.
func (s *AvailabilityService) UpdateSlot(ctx context.Context, slotID string, patch SlotPatch) (*model.AvailabilitySlot, error) {
	var updated model.AvailabilitySlot

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var slot model.AvailabilitySlot
		if err := lockForUpdate(tx).First(&slot, "id = ?", slotID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: slot %s", ErrNotFound, slotID)
			}
			return err
		}

		if patch.Day != nil {
			if !patch.Day.Valid() {
				return fmt.Errorf("%w: day %d", timeslot.ErrInvalidDayOfWeek, int(*patch.Day))
			}
			slot.DayOfWeek = int(*patch.Day)
		}
		if patch.Start != nil {
			slot.StartMinute = int(*patch.Start)
		}
		if patch.End != nil {
			slot.EndMinute = int(*patch.End)
		}
		if patch.IsActive != nil {
			slot.IsActive = *patch.IsActive
		}

		rng, err := timeslot.NewRange(timeslot.ClockTime(slot.StartMinute), timeslot.ClockTime(slot.EndMinute))
		if err != nil {
			return fmt.Errorf("%w: %d-%d", ErrInvalidRange, slot.StartMinute, slot.EndMinute)
		}

		var others []model.AvailabilitySlot
		if err := tx.
			Where("provider_id = ? AND day_of_week = ? AND id <> ?", slot.ProviderID, slot.DayOfWeek, slot.ID).
			Find(&others).Error; err != nil {
			return err
		}
		for _, other := range others {
			if rng.Conflicts(other.Range()) {
				return fmt.Errorf("%w: %s conflicts with %s", ErrOverlapConflict, rng, other.Range())
			}
		}

		if err := s.slots.WithTx(tx).Update(ctx, &slot); err != nil {
			return err
		}

		updated = slot
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteSlot удаляет слот, если на него не ссылается ни одна запись.
// Ссылка историческая, а не блокировка, но удалять её основание нельзя.
func (s *AvailabilityService) DeleteSlot(ctx context.Context, slotID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var slot model.AvailabilitySlot
		if err := lockForUpdate(tx).First(&slot, "id = ?", slotID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: slot %s", ErrNotFound, slotID)
			}
			return err
		}

		refs, err := s.appts.WithTx(tx).CountByAvailabilityID(ctx, slot.ID.String())
		if err != nil {
			return err
		}
		if refs > 0 {
			return fmt.Errorf("%w: slot %s has %d appointment(s)", ErrHasBookings, slotID, refs)
		}

		return s.slots.WithTx(tx).Delete(ctx, slot.ID.String())
	})
}

// GetSlot возвращает слот шаблона по ID.
func (s *AvailabilityService) GetSlot(ctx context.Context, slotID string) (*model.AvailabilitySlot, error) {
	slot, err := s.slots.GetByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: slot %s", ErrNotFound, slotID)
		}
		return nil, err
	}
	return slot, nil
}

// ListByProvider возвращает весь шаблон провайдера.
func (s *AvailabilityService) ListByProvider(ctx context.Context, providerID string) ([]model.AvailabilitySlot, error) {
	return s.slots.ListByProvider(ctx, providerID)
}

// ListByProviderAndDay возвращает слоты провайдера на день недели.
func (s *AvailabilityService) ListByProviderAndDay(
	ctx context.Context,
	providerID string,
	day timeslot.DayOfWeek,
) ([]model.AvailabilitySlot, error) {
	if !day.Valid() {
		return nil, fmt.Errorf("%w: day %d", timeslot.ErrInvalidDayOfWeek, int(day))
	}
	return s.slots.ListByProviderAndDay(ctx, providerID, day)
}

// SetWeeklyAvailability заменяет шаблон недели целиком.
// Слоты, на которые ссылаются записи, не удаляются: совпавшие с новой
// сеткой обновляются на месте (ссылка Appointment→slot переживает замену),
// остальные деактивируются. Слоты без ссылок свободно удаляются и
// пересоздаются.
func (s *AvailabilityService) SetWeeklyAvailability(
	ctx context.Context,
	providerID string,
	week map[timeslot.DayOfWeek][]timeslot.Range,
) ([]model.AvailabilitySlot, error) {
	for day, ranges := range week {
		if !day.Valid() {
			return nil, fmt.Errorf("%w: day %d", timeslot.ErrInvalidDayOfWeek, int(day))
		}
		for i, rng := range ranges {
			if _, err := timeslot.NewRange(rng.Start, rng.End); err != nil {
				return nil, fmt.Errorf("%w: %s", ErrInvalidRange, rng)
			}
			for _, other := range ranges[i+1:] {
				if rng.Conflicts(other) {
					return nil, fmt.Errorf("%w: %s conflicts with %s", ErrOverlapConflict, rng, other)
				}
			}
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var provider model.Provider
		if err := lockForUpdate(tx).First(&provider, "id = ?", providerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: provider %s", ErrNotFound, providerID)
			}
			return err
		}

		var existing []model.AvailabilitySlot
		if err := tx.
			Where("provider_id = ?", providerID).
			Order("day_of_week ASC, start_minute ASC").
			Find(&existing).Error; err != nil {
			return err
		}

		byDay := make(map[timeslot.DayOfWeek][]model.AvailabilitySlot)
		for _, slot := range existing {
			byDay[slot.Day()] = append(byDay[slot.Day()], slot)
		}

		slots := s.slots.WithTx(tx)
		appts := s.appts.WithTx(tx)

		for day := timeslot.Sunday; day <= timeslot.Saturday; day++ {
			desired := append([]timeslot.Range(nil), week[day]...)

			for _, slot := range byDay[day] {
				refs, err := appts.CountByAvailabilityID(ctx, slot.ID.String())
				if err != nil {
					return err
				}

				if refs == 0 {
					if err := slots.Delete(ctx, slot.ID.String()); err != nil {
						return err
					}
					continue
				}

				// На слот ссылаются записи: подбираем ему место в новой
				// сетке вместо удаления.
				matched := -1
				for i, rng := range desired {
					if rng.Conflicts(slot.Range()) {
						matched = i
						break
					}
				}

				if matched >= 0 {
					slot.StartMinute = int(desired[matched].Start)
					slot.EndMinute = int(desired[matched].End)
					slot.IsActive = true
					desired = append(desired[:matched], desired[matched+1:]...)
				} else {
					slot.IsActive = false
				}
				if err := slots.Update(ctx, &slot); err != nil {
					return err
				}
			}

			for _, rng := range desired {
				slot := model.AvailabilitySlot{
					ProviderID:  provider.ID,
					DayOfWeek:   int(day),
					StartMinute: int(rng.Start),
					EndMinute:   int(rng.End),
					IsActive:    true,
				}
				if err := slots.Create(ctx, &slot); err != nil {
					return err
				}
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.slots.ListByProvider(ctx, providerID)
}
