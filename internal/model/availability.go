package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/fixaro/marketplace-core/internal/timeslot"
)

// availability_slots — недельный шаблон доступности провайдера.
// Слот повторяется каждую неделю; занятость на конкретную дату
// выводится из множества Appointment, а не хранится в слоте.
type AvailabilitySlot struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	ProviderID uuid.UUID `gorm:"type:uuid;not null;index:idx_slot_provider_day,priority:1"`

	// День недели в значениях time.Weekday (Sunday = 0).
	DayOfWeek int `gorm:"not null;index:idx_slot_provider_day,priority:2"`

	// Минуты суток, [StartMinute, EndMinute), StartMinute < EndMinute.
	StartMinute int `gorm:"not null"`
	EndMinute   int `gorm:"not null"`

	IsActive bool `gorm:"not null;default:true"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`

	Provider *Provider `gorm:"foreignKey:ProviderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// Day возвращает день недели слота.
func (s *AvailabilitySlot) Day() timeslot.DayOfWeek {
	return timeslot.DayOfWeek(s.DayOfWeek)
}

// Range возвращает интервал слота внутри суток.
func (s *AvailabilitySlot) Range() timeslot.Range {
	return timeslot.Range{Start: timeslot.ClockTime(s.StartMinute), End: timeslot.ClockTime(s.EndMinute)}
}
