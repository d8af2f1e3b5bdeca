package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/fixaro/marketplace-core/internal/model"
)

// Notifier — внешний канал уведомлений (почта, push и т.п.).
// Вызовы fire-and-forget: ошибка уведомления логируется и не
// откатывает породившую её операцию.
type Notifier interface {
	BookingConfirmed(ctx context.Context, appt *model.Appointment) error
	BookingCancelled(ctx context.Context, appt *model.Appointment, reason string) error
	BookingCompleted(ctx context.Context, appt *model.Appointment) error
}

// LogNotifier — дефолтная реализация: пишет уведомления в лог.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) BookingConfirmed(_ context.Context, appt *model.Appointment) error {
	n.log.Info().
		Str("appointment_id", appt.ID.String()).
		Str("provider_id", appt.ProviderID.String()).
		Str("customer_id", appt.CustomerID.String()).
		Time("scheduled_at", appt.ScheduledAt).
		Msg("booking confirmed")
	return nil
}

func (n *LogNotifier) BookingCancelled(_ context.Context, appt *model.Appointment, reason string) error {
	n.log.Info().
		Str("appointment_id", appt.ID.String()).
		Str("reason", reason).
		Msg("booking cancelled")
	return nil
}

func (n *LogNotifier) BookingCompleted(_ context.Context, appt *model.Appointment) error {
	n.log.Info().
		Str("appointment_id", appt.ID.String()).
		Msg("booking completed")
	return nil
}
