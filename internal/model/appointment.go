package model

import (
	"time"

	"github.com/google/uuid"
)

// Статус записи. Канонический набор — объединение двух словарей,
// встречающихся у клиентов ядра; короткий словарь маппится через
// NormalizeStatus на границе.
type AppointmentStatus string

const (
	StatusPending    AppointmentStatus = "pending"
	StatusAccepted   AppointmentStatus = "accepted"
	StatusApproved   AppointmentStatus = "approved"
	StatusConfirmed  AppointmentStatus = "confirmed"
	StatusOnTheWay   AppointmentStatus = "on_the_way"
	StatusInProgress AppointmentStatus = "in_progress"
	StatusCompleted  AppointmentStatus = "completed"
	StatusCancelled  AppointmentStatus = "cancelled"
	StatusNoShow     AppointmentStatus = "no_show"
)

// statusAliases — короткий словарь статусов, приводимый к каноническому.
var statusAliases = map[string]AppointmentStatus{
	"finished":   StatusCompleted,
	"canceled":   StatusCancelled,
	"on-the-way": StatusOnTheWay,
	"noshow":     StatusNoShow,
	"no-show":    StatusNoShow,
}

// NormalizeStatus приводит статус к каноническому значению.
// Возвращает false, если строка не является ни каноническим
// статусом, ни известным алиасом.
func NormalizeStatus(s string) (AppointmentStatus, bool) {
	if alias, ok := statusAliases[s]; ok {
		return alias, true
	}
	st := AppointmentStatus(s)
	switch st {
	case StatusPending, StatusAccepted, StatusApproved, StatusConfirmed,
		StatusOnTheWay, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow:
		return st, true
	}
	return "", false
}

// ActiveStatuses — статусы, при которых запись "занимает" слот
// для проверки конфликтов.
func ActiveStatuses() []AppointmentStatus {
	return []AppointmentStatus{
		StatusPending, StatusAccepted, StatusApproved,
		StatusConfirmed, StatusOnTheWay, StatusInProgress,
	}
}

// IsTerminal сообщает, завершает ли статус жизненный цикл записи.
func (s AppointmentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// appointments — конкретная запись клиента к провайдеру на дату и время.
type Appointment struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	CustomerID uuid.UUID `gorm:"type:uuid;not null;index"`
	ProviderID uuid.UUID `gorm:"type:uuid;not null;index:idx_appt_provider_time,priority:1"`
	ServiceID  uuid.UUID `gorm:"type:uuid;not null;index"`

	// Обратная ссылка на слот шаблона, по которому сделана запись.
	// Слот не "расходуется": та же ячейка недели свободна в другие даты.
	AvailabilityID *uuid.UUID `gorm:"type:uuid;index"`

	// Точный момент начала. Индекс (provider_id, scheduled_at, status)
	// обслуживает проверку конфликтов — критичный путь ядра.
	ScheduledAt time.Time `gorm:"type:timestamp with time zone;not null;index:idx_appt_provider_time,priority:2"`

	Status AppointmentStatus `gorm:"type:varchar(32);not null;index:idx_appt_provider_time,priority:3"`

	FinalPrice         *float64 `gorm:"type:numeric"`
	RepairDescription  string   `gorm:"type:text"`
	CancellationReason *string  `gorm:"type:text"`
	CancelledAt        *time.Time

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`

	Customer     *Customer         `gorm:"foreignKey:CustomerID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Provider     *Provider         `gorm:"foreignKey:ProviderID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Service      *Service          `gorm:"foreignKey:ServiceID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Availability *AvailabilitySlot `gorm:"foreignKey:AvailabilityID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}
