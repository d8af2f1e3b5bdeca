package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fixaro/marketplace-core/internal/model"
	"github.com/fixaro/marketplace-core/internal/repository"
	"github.com/fixaro/marketplace-core/internal/timeslot"
)

// Фиксированный "сейчас" для тестов: четверг, 2026-01-01 12:00 UTC.
var testNow = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// Ближайший понедельник после testNow.
var nextMonday = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql DB: %v", err)
	}
	// Одна in-memory база на тест: не даём пулу открыть второй коннект.
	sqlDB.SetMaxOpenConns(1)

	// Minimal schema for the scheduling core (sqlite-friendly).
	schema := []string{
		`CREATE TABLE providers (
			id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			description TEXT,
			contact_phone TEXT,
			rating_avg REAL NOT NULL DEFAULT 0,
			rating_count INTEGER NOT NULL DEFAULT 0,
			is_verified INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE customers (
			id TEXT PRIMARY KEY,
			display_name TEXT,
			contact_phone TEXT,
			note TEXT,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE services (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			default_duration_min INTEGER,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE provider_services (
			provider_id TEXT NOT NULL,
			service_id TEXT NOT NULL,
			created_at DATETIME,
			updated_at DATETIME,
			PRIMARY KEY (provider_id, service_id)
		);`,
		`CREATE TABLE availability_slots (
			id TEXT PRIMARY KEY,
			provider_id TEXT NOT NULL,
			day_of_week INTEGER NOT NULL,
			start_minute INTEGER NOT NULL,
			end_minute INTEGER NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE appointments (
			id TEXT PRIMARY KEY,
			customer_id TEXT NOT NULL,
			provider_id TEXT NOT NULL,
			service_id TEXT NOT NULL,
			availability_id TEXT,
			scheduled_at DATETIME NOT NULL,
			status TEXT NOT NULL,
			final_price REAL,
			repair_description TEXT,
			cancellation_reason TEXT,
			cancelled_at DATETIME,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE ratings (
			id TEXT PRIMARY KEY,
			appointment_id TEXT NOT NULL UNIQUE,
			customer_id TEXT NOT NULL,
			provider_id TEXT NOT NULL,
			value INTEGER NOT NULL,
			comment TEXT,
			created_at DATETIME
		);`,
		`CREATE TABLE events (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			created_at DATETIME,
			actor_id TEXT,
			appointment_id TEXT,
			details TEXT
		);`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}

	return db
}

// fakeNotifier считает вызовы уведомлений.
type fakeNotifier struct {
	confirmed  int
	cancelled  int
	completed  int
	lastReason string
}

func (n *fakeNotifier) BookingConfirmed(context.Context, *model.Appointment) error {
	n.confirmed++
	return nil
}

func (n *fakeNotifier) BookingCancelled(_ context.Context, _ *model.Appointment, reason string) error {
	n.cancelled++
	n.lastReason = reason
	return nil
}

func (n *fakeNotifier) BookingCompleted(context.Context, *model.Appointment) error {
	n.completed++
	return nil
}

type testEnv struct {
	db           *gorm.DB
	availability *AvailabilityService
	scheduling   *SchedulingService
	lifecycle    *LifecycleService
	catalog      *CatalogService
	notifier     *fakeNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newTestDB(t)
	log := zerolog.Nop()

	slotRepo := repository.NewGormAvailabilityRepository(db)
	apptRepo := repository.NewGormAppointmentRepository(db)
	ratingRepo := repository.NewGormRatingRepository(db)
	providerRepo := repository.NewGormProviderRepository(db)
	customerRepo := repository.NewGormCustomerRepository(db)
	serviceRepo := repository.NewGormServiceRepository(db)

	notifier := &fakeNotifier{}
	events := NewEventRecorder(db, log)

	scheduling := NewSchedulingService(
		db, slotRepo, apptRepo, providerRepo, customerRepo, serviceRepo,
		notifier, events, log,
	)
	scheduling.now = func() time.Time { return testNow }

	lifecycle := NewLifecycleService(db, apptRepo, ratingRepo, providerRepo, scheduling, notifier, events, log)
	lifecycle.now = func() time.Time { return testNow }

	return &testEnv{
		db:           db,
		availability: NewAvailabilityService(db, slotRepo, apptRepo),
		scheduling:   scheduling,
		lifecycle:    lifecycle,
		catalog:      NewCatalogService(providerRepo, customerRepo, serviceRepo),
		notifier:     notifier,
	}
}

func (e *testEnv) seedProvider(t *testing.T) *model.Provider {
	t.Helper()
	p := &model.Provider{DisplayName: "Test Provider"}
	if err := e.db.Create(p).Error; err != nil {
		t.Fatalf("seed provider: %v", err)
	}
	return p
}

func (e *testEnv) seedCustomer(t *testing.T) *model.Customer {
	t.Helper()
	c := &model.Customer{DisplayName: "Test Customer"}
	if err := e.db.Create(c).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	return c
}

func (e *testEnv) seedService(t *testing.T) *model.Service {
	t.Helper()
	s := &model.Service{Name: "Pipe repair", IsActive: true}
	if err := e.db.Create(s).Error; err != nil {
		t.Fatalf("seed service: %v", err)
	}
	return s
}

func (e *testEnv) seedSlot(t *testing.T, p *model.Provider, day timeslot.DayOfWeek, start, end string) *model.AvailabilitySlot {
	t.Helper()
	rng, err := timeslot.ParseRange(start, end)
	if err != nil {
		t.Fatalf("parse range: %v", err)
	}
	slot := &model.AvailabilitySlot{
		ProviderID:  p.ID,
		DayOfWeek:   int(day),
		StartMinute: int(rng.Start),
		EndMinute:   int(rng.End),
		IsActive:    true,
	}
	if err := e.db.Create(slot).Error; err != nil {
		t.Fatalf("seed slot: %v", err)
	}
	return slot
}

// book создаёт бронирование через ядро и падает при ошибке.
func (e *testEnv) book(
	t *testing.T,
	customer *model.Customer,
	provider *model.Provider,
	svc *model.Service,
	date time.Time,
	clock string,
) *model.Appointment {
	t.Helper()
	appt, err := e.scheduling.CreateBooking(context.Background(), BookingInput{
		CustomerID: customer.ID.String(),
		ProviderID: provider.ID.String(),
		ServiceID:  svc.ID.String(),
		Date:       date,
		Time:       clock,
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return appt
}
