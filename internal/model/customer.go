package model

import (
	"time"

	"github.com/google/uuid"
)

// Customer — заказчик услуг. Аутентификация живёт снаружи ядра,
// здесь только идентичность и контакты.
type Customer struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	DisplayName  string `gorm:"type:varchar(255)"`
	ContactPhone string `gorm:"type:varchar(32)"`

	Note string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}
