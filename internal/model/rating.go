package model

import (
	"time"

	"github.com/google/uuid"
)

// ratings — оценка завершённой записи, не больше одной на запись.
type Rating struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	AppointmentID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	CustomerID    uuid.UUID `gorm:"type:uuid;not null;index"`
	ProviderID    uuid.UUID `gorm:"type:uuid;not null;index"`

	// Целое значение 1..5.
	Value   int     `gorm:"not null"`
	Comment *string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:now()"`

	Appointment *Appointment `gorm:"foreignKey:AppointmentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}
