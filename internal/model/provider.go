package model

import (
	"time"

	"github.com/google/uuid"
)

// Provider — исполнитель услуг (мастер по ремонту, сантехник и т.п.).
type Provider struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	// Имя/отображаемое название в интерфейсе.
	DisplayName string `gorm:"type:varchar(255);not null"`

	// Краткое описание, специализация и т.п.
	Description string `gorm:"type:text"`

	ContactPhone string `gorm:"type:varchar(32)"`

	// Денормализованный агрегат: средняя оценка и число оценок.
	// Пересчитывается при каждом добавлении Rating.
	RatingAvg   float64 `gorm:"not null;default:0"`
	RatingCount int64   `gorm:"not null;default:0"`

	IsVerified bool `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`

	// Навигационные поля для GORM (опционально, но удобно для Preload).
	Services []Service `gorm:"many2many:provider_services;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`

	Slots []AvailabilitySlot `gorm:"foreignKey:ProviderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}
