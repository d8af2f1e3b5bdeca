package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Тип события аудита.
type EventType string

const (
	EventTypeBookingCreated     EventType = "booking_created"
	EventTypeBookingCancelled   EventType = "booking_cancelled"
	EventTypeBookingRescheduled EventType = "booking_rescheduled"
	EventTypeBookingCompleted   EventType = "booking_completed"
	EventTypeStatusChanged      EventType = "status_changed"
	EventTypeRatingCreated      EventType = "rating_created"
)

// events — события аудита
type Event struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	EventType EventType `gorm:"type:varchar(64);not null;index"`

	CreatedAt time.Time `gorm:"not null;default:now();index"`

	ActorID       *uuid.UUID `gorm:"type:uuid;index"`
	AppointmentID *uuid.UUID `gorm:"type:uuid;index"`

	// Произвольные детали события (старый/новый статус, причина и т.п.).
	Details datatypes.JSON `gorm:"type:jsonb"`

	Appointment *Appointment `gorm:"foreignKey:AppointmentID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}
