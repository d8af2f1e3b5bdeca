package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/fixaro/marketplace-core/internal/model"
	"github.com/fixaro/marketplace-core/internal/timeslot"
)

// bookedEnv поднимает окружение с одной активной бронью на понедельник 09:00.
func bookedEnv(t *testing.T) (*testEnv, *model.Appointment, *model.Customer, *model.Provider) {
	t.Helper()
	env := newTestEnv(t)
	provider := env.seedProvider(t)
	customer := env.seedCustomer(t)
	svc := env.seedService(t)
	env.seedSlot(t, provider, timeslot.Monday, "09:00", "12:00")
	env.seedSlot(t, provider, timeslot.Monday, "14:00", "16:00")
	appt := env.book(t, customer, provider, svc, nextMonday, "09:00")
	return env, appt, customer, provider
}

func (e *testEnv) forceStatus(t *testing.T, appt *model.Appointment, status model.AppointmentStatus) {
	t.Helper()
	if err := e.db.Model(&model.Appointment{}).
		Where("id = ?", appt.ID).
		Update("status", status).Error; err != nil {
		t.Fatalf("force status %s: %v", status, err)
	}
	appt.Status = status
}

func TestAdvanceStatus_Forward(t *testing.T) {
	env, appt, _, provider := bookedEnv(t)
	ctx := context.Background()

	for _, status := range []string{"confirmed", "in_progress"} {
		updated, err := env.lifecycle.AdvanceStatus(ctx, appt.ID.String(), provider.ID.String(), status, nil)
		if err != nil {
			t.Fatalf("advance to %s: %v", status, err)
		}
		if string(updated.Status) != status {
			t.Fatalf("expected status %s, got %s", status, updated.Status)
		}
	}

	price := 1500.0
	updated, err := env.lifecycle.AdvanceStatus(ctx, appt.ID.String(), provider.ID.String(), "completed", &price)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if updated.Status != model.StatusCompleted {
		t.Fatalf("expected completed, got %s", updated.Status)
	}
	if updated.FinalPrice == nil || *updated.FinalPrice != price {
		t.Fatalf("expected final price %v, got %v", price, updated.FinalPrice)
	}
	if env.notifier.completed != 1 {
		t.Fatalf("expected completion notification, got %d", env.notifier.completed)
	}
}

func TestAdvanceStatus_Aliases(t *testing.T) {
	env, appt, _, provider := bookedEnv(t)

	// "on-the-way" — алиас on_the_way.
	updated, err := env.lifecycle.AdvanceStatus(context.Background(), appt.ID.String(), provider.ID.String(), "on-the-way", nil)
	if err != nil {
		t.Fatalf("advance via alias: %v", err)
	}
	if updated.Status != model.StatusOnTheWay {
		t.Fatalf("expected on_the_way, got %s", updated.Status)
	}
}

func TestAdvanceStatus_Invalid(t *testing.T) {
	env, appt, _, provider := bookedEnv(t)
	ctx := context.Background()

	// Назад по цепочке нельзя.
	env.forceStatus(t, appt, model.StatusConfirmed)
	if _, err := env.lifecycle.AdvanceStatus(ctx, appt.ID.String(), provider.ID.String(), "accepted", nil); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("backward: expected ErrInvalidTransition, got %v", err)
	}

	// Параллельный словарь той же ступени — тоже не движение вперёд.
	env.forceStatus(t, appt, model.StatusOnTheWay)
	if _, err := env.lifecycle.AdvanceStatus(ctx, appt.ID.String(), provider.ID.String(), "in_progress", nil); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("sideways: expected ErrInvalidTransition, got %v", err)
	}

	// Неизвестный статус.
	if _, err := env.lifecycle.AdvanceStatus(ctx, appt.ID.String(), provider.ID.String(), "done", nil); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("unknown status: expected ErrInvalidTransition, got %v", err)
	}

	// Отмена через advance запрещена.
	if _, err := env.lifecycle.AdvanceStatus(ctx, appt.ID.String(), provider.ID.String(), "cancelled", nil); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("cancel via advance: expected ErrInvalidTransition, got %v", err)
	}

	// Терминальная запись не двигается.
	env.forceStatus(t, appt, model.StatusCompleted)
	if _, err := env.lifecycle.AdvanceStatus(ctx, appt.ID.String(), provider.ID.String(), "no_show", nil); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("terminal: expected ErrInvalidTransition, got %v", err)
	}
}

func TestAdvanceStatus_NoShowSideExit(t *testing.T) {
	env, appt, _, provider := bookedEnv(t)

	env.forceStatus(t, appt, model.StatusInProgress)
	updated, err := env.lifecycle.AdvanceStatus(context.Background(), appt.ID.String(), provider.ID.String(), "no_show", nil)
	if err != nil {
		t.Fatalf("no_show: %v", err)
	}
	if updated.Status != model.StatusNoShow {
		t.Fatalf("expected no_show, got %s", updated.Status)
	}
}

func TestAdvanceStatus_NotOwner(t *testing.T) {
	env, appt, _, _ := bookedEnv(t)
	stranger := env.seedProvider(t)

	_, err := env.lifecycle.AdvanceStatus(context.Background(), appt.ID.String(), stranger.ID.String(), "confirmed", nil)
	if !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}

func TestCancel_Customer(t *testing.T) {
	env, appt, customer, _ := bookedEnv(t)
	ctx := context.Background()

	updated, err := env.lifecycle.Cancel(ctx, appt.ID.String(), ActorCustomer, customer.ID.String(), "")
	if err != nil {
		t.Fatalf("customer cancel: %v", err)
	}
	if updated.Status != model.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", updated.Status)
	}
	if updated.CancelledAt == nil {
		t.Fatalf("expected cancelled_at to be set")
	}
	if env.notifier.cancelled != 1 {
		t.Fatalf("expected cancellation notification, got %d", env.notifier.cancelled)
	}
}

func TestCancel_CustomerTooLate(t *testing.T) {
	env, appt, customer, _ := bookedEnv(t)

	// Работа уже идёт: клиент сам отменить не может.
	env.forceStatus(t, appt, model.StatusInProgress)
	_, err := env.lifecycle.Cancel(context.Background(), appt.ID.String(), ActorCustomer, customer.ID.String(), "")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestCancel_Provider(t *testing.T) {
	env, appt, _, provider := bookedEnv(t)
	ctx := context.Background()

	// Провайдер обязан указать причину.
	if _, err := env.lifecycle.Cancel(ctx, appt.ID.String(), ActorProvider, provider.ID.String(), ""); !errors.Is(err, ErrReasonRequired) {
		t.Fatalf("expected ErrReasonRequired, got %v", err)
	}

	// В отличие от клиента, провайдер может отменить и начатую работу.
	env.forceStatus(t, appt, model.StatusInProgress)
	updated, err := env.lifecycle.Cancel(ctx, appt.ID.String(), ActorProvider, provider.ID.String(), "заболел мастер")
	if err != nil {
		t.Fatalf("provider cancel: %v", err)
	}
	if updated.CancellationReason == nil || *updated.CancellationReason != "заболел мастер" {
		t.Fatalf("expected cancellation reason to be stored")
	}
	if env.notifier.lastReason != "заболел мастер" {
		t.Fatalf("expected reason in notification, got %q", env.notifier.lastReason)
	}
}

func TestCancel_Terminal(t *testing.T) {
	env, appt, customer, _ := bookedEnv(t)

	env.forceStatus(t, appt, model.StatusCancelled)
	_, err := env.lifecycle.Cancel(context.Background(), appt.ID.String(), ActorCustomer, customer.ID.String(), "")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for double cancel, got %v", err)
	}
}

func TestReschedule(t *testing.T) {
	env, appt, customer, _ := bookedEnv(t)

	updated, err := env.lifecycle.Reschedule(context.Background(), appt.ID.String(), customer.ID.String(), nextMonday, "14:00")
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if updated.Status != model.StatusPending {
		t.Fatalf("reschedule must reset status to pending, got %s", updated.Status)
	}
	want := timeslot.ClockTime(14 * 60).At(nextMonday)
	if !updated.ScheduledAt.Equal(want) {
		t.Fatalf("expected scheduled_at %v, got %v", want, updated.ScheduledAt)
	}
}

// Перенос на ту же ячейку другой недели: собственная запись не считается
// конфликтом.
func TestReschedule_SameSlotNextWeek(t *testing.T) {
	env, appt, customer, _ := bookedEnv(t)

	_, err := env.lifecycle.Reschedule(context.Background(), appt.ID.String(), customer.ID.String(), nextMonday.AddDate(0, 0, 7), "09:00")
	if err != nil {
		t.Fatalf("reschedule to next week: %v", err)
	}
}

func TestReschedule_ConflictKeepsOriginal(t *testing.T) {
	env, appt, customer, provider := bookedEnv(t)
	other := env.seedCustomer(t)
	svc := env.seedService(t)

	// Другой клиент занимает дневной слот.
	env.book(t, other, provider, svc, nextMonday, "14:00")

	_, err := env.lifecycle.Reschedule(context.Background(), appt.ID.String(), customer.ID.String(), nextMonday, "14:00")
	if !errors.Is(err, ErrSlotAlreadyBooked) {
		t.Fatalf("expected ErrSlotAlreadyBooked, got %v", err)
	}

	// Запись не изменилась.
	var current model.Appointment
	if err := env.db.First(&current, "id = ?", appt.ID).Error; err != nil {
		t.Fatalf("reload appointment: %v", err)
	}
	if !current.ScheduledAt.Equal(appt.ScheduledAt) || current.Status != appt.Status {
		t.Fatalf("failed reschedule must leave appointment untouched")
	}
}

func TestReschedule_PastDateTime(t *testing.T) {
	env, appt, customer, provider := bookedEnv(t)
	env.seedSlot(t, provider, timeslot.Thursday, "09:00", "11:00")

	// testNow — четверг 12:00: утро сегодняшнего дня уже прошло.
	_, err := env.lifecycle.Reschedule(context.Background(), appt.ID.String(), customer.ID.String(), testNow, "09:00")
	if !errors.Is(err, ErrPastDateTime) {
		t.Fatalf("expected ErrPastDateTime, got %v", err)
	}
}

func TestRate(t *testing.T) {
	env, appt, customer, provider := bookedEnv(t)
	ctx := context.Background()

	env.forceStatus(t, appt, model.StatusCompleted)
	comment := "быстро и аккуратно"
	rating, err := env.lifecycle.Rate(ctx, appt.ID.String(), customer.ID.String(), 5, &comment)
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if rating.Value != 5 {
		t.Fatalf("expected value 5, got %d", rating.Value)
	}

	var p model.Provider
	if err := env.db.First(&p, "id = ?", provider.ID).Error; err != nil {
		t.Fatalf("reload provider: %v", err)
	}
	if p.RatingAvg != 5 || p.RatingCount != 1 {
		t.Fatalf("expected aggregate 5/1, got %v/%d", p.RatingAvg, p.RatingCount)
	}

	// Повторная оценка той же записи запрещена.
	if _, err := env.lifecycle.Rate(ctx, appt.ID.String(), customer.ID.String(), 4, nil); !errors.Is(err, ErrAlreadyRated) {
		t.Fatalf("expected ErrAlreadyRated, got %v", err)
	}
}

func TestRate_AggregateMean(t *testing.T) {
	env, appt, customer, provider := bookedEnv(t)
	ctx := context.Background()
	svc := env.seedService(t)

	second := env.book(t, customer, provider, svc, nextMonday, "14:00")
	env.forceStatus(t, appt, model.StatusCompleted)
	env.forceStatus(t, second, model.StatusCompleted)

	if _, err := env.lifecycle.Rate(ctx, appt.ID.String(), customer.ID.String(), 5, nil); err != nil {
		t.Fatalf("rate first: %v", err)
	}
	if _, err := env.lifecycle.Rate(ctx, second.ID.String(), customer.ID.String(), 4, nil); err != nil {
		t.Fatalf("rate second: %v", err)
	}

	var p model.Provider
	if err := env.db.First(&p, "id = ?", provider.ID).Error; err != nil {
		t.Fatalf("reload provider: %v", err)
	}
	if p.RatingAvg != 4.5 || p.RatingCount != 2 {
		t.Fatalf("expected aggregate 4.5/2, got %v/%d", p.RatingAvg, p.RatingCount)
	}
}

func TestRate_Invalid(t *testing.T) {
	env, appt, customer, _ := bookedEnv(t)
	ctx := context.Background()

	// Только завершённые записи можно оценивать.
	if _, err := env.lifecycle.Rate(ctx, appt.ID.String(), customer.ID.String(), 5, nil); !errors.Is(err, ErrNotRatable) {
		t.Fatalf("expected ErrNotRatable, got %v", err)
	}

	env.forceStatus(t, appt, model.StatusCompleted)
	if _, err := env.lifecycle.Rate(ctx, appt.ID.String(), customer.ID.String(), 0, nil); !errors.Is(err, ErrInvalidRating) {
		t.Fatalf("expected ErrInvalidRating for 0, got %v", err)
	}
	if _, err := env.lifecycle.Rate(ctx, appt.ID.String(), customer.ID.String(), 6, nil); !errors.Is(err, ErrInvalidRating) {
		t.Fatalf("expected ErrInvalidRating for 6, got %v", err)
	}

	// Чужую запись оценить нельзя.
	stranger := env.seedCustomer(t)
	if _, err := env.lifecycle.Rate(ctx, appt.ID.String(), stranger.ID.String(), 5, nil); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}

func TestGetAppointment(t *testing.T) {
	env, appt, _, _ := bookedEnv(t)
	ctx := context.Background()

	got, err := env.lifecycle.GetAppointment(ctx, appt.ID.String())
	if err != nil {
		t.Fatalf("get appointment: %v", err)
	}
	if got.ID != appt.ID {
		t.Fatalf("expected appointment %s, got %s", appt.ID, got.ID)
	}

	if _, err := env.lifecycle.GetAppointment(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListAppointments(t *testing.T) {
	env, appt, customer, provider := bookedEnv(t)
	ctx := context.Background()
	svc := env.seedService(t)
	env.book(t, customer, provider, svc, nextMonday.AddDate(0, 0, 7), "09:00")

	from := nextMonday
	to := nextMonday.AddDate(0, 0, 1)

	appts, total, err := env.lifecycle.ListCustomerAppointments(ctx, customer.ID.String(), from, to, 10, 0)
	if err != nil {
		t.Fatalf("list customer appointments: %v", err)
	}
	if total != 1 || len(appts) != 1 {
		t.Fatalf("expected 1 appointment in window, got total=%d len=%d", total, len(appts))
	}
	if appts[0].ID != appt.ID {
		t.Fatalf("expected appointment %s, got %s", appt.ID, appts[0].ID)
	}

	// Широкое окно — обе записи, пагинация по одной.
	all, total, err := env.lifecycle.ListProviderAppointments(ctx, provider.ID.String(), from, to.AddDate(0, 0, 14), 1, 0)
	if err != nil {
		t.Fatalf("list provider appointments: %v", err)
	}
	if total != 2 || len(all) != 1 {
		t.Fatalf("expected total=2 page of 1, got total=%d len=%d", total, len(all))
	}
}
