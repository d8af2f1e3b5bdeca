package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fixaro/marketplace-core/internal/model"
)

// EventRecorder пишет события аудита. Запись best-effort: сбой аудита
// логируется и не влияет на породившую его операцию.
type EventRecorder struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewEventRecorder(db *gorm.DB, log zerolog.Logger) *EventRecorder {
	return &EventRecorder{db: db, log: log}
}

func (r *EventRecorder) Record(
	ctx context.Context,
	typ model.EventType,
	actorID, appointmentID *uuid.UUID,
	details map[string]any,
) {
	var payload datatypes.JSON
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			r.log.Warn().Err(err).Str("event_type", string(typ)).Msg("marshal audit details")
		} else {
			payload = datatypes.JSON(b)
		}
	}

	ev := model.Event{
		EventType:     typ,
		ActorID:       actorID,
		AppointmentID: appointmentID,
		Details:       payload,
	}
	if err := r.db.WithContext(ctx).Create(&ev).Error; err != nil {
		r.log.Warn().Err(err).Str("event_type", string(typ)).Msg("write audit event")
	}
}
