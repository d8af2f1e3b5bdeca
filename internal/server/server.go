package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/fixaro/marketplace-core/internal/ratelimit"
	"github.com/fixaro/marketplace-core/internal/service"
)

// Server — HTTP-обёртка над ядром расписания. Аутентификации здесь нет:
// идентификаторы акторов приходят уже проверенными снаружи.
type Server struct {
	echo *echo.Echo
	log  zerolog.Logger
}

func New(
	db *gorm.DB,
	availability *service.AvailabilityService,
	scheduling *service.SchedulingService,
	lifecycle *service.LifecycleService,
	catalog *service.CatalogService,
	limiter ratelimit.Limiter,
	log zerolog.Logger,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	h := &handler{
		availability: availability,
		scheduling:   scheduling,
		lifecycle:    lifecycle,
		catalog:      catalog,
	}

	e.GET("/healthz", healthHandler(db))

	e.POST("/providers", h.CreateProvider)
	e.POST("/customers", h.CreateCustomer)
	e.POST("/services", h.CreateService)
	e.GET("/services", h.ListServices)
	e.GET("/providers/:id/services", h.ListProviderServices)

	e.POST("/providers/:id/availability", h.AddSlot)
	e.GET("/providers/:id/availability", h.ListAvailability)
	e.PUT("/providers/:id/availability/week", h.SetWeeklyAvailability)
	e.GET("/availability/:id", h.GetSlot)
	e.PATCH("/availability/:id", h.UpdateSlot)
	e.DELETE("/availability/:id", h.DeleteSlot)

	e.GET("/providers/:id/schedule", h.DayAvailability)

	booking := e.Group("/bookings")
	if limiter != nil {
		keyFn := func(c echo.Context) string { return c.RealIP() }
		booking.Use(ratelimit.Middleware(limiter, keyFn, log))
	}
	booking.POST("", h.CreateBooking)

	e.GET("/appointments/:id", h.GetAppointment)
	e.POST("/appointments/:id/status", h.AdvanceStatus)
	e.POST("/appointments/:id/cancel", h.Cancel)
	e.POST("/appointments/:id/reschedule", h.Reschedule)
	e.POST("/appointments/:id/rating", h.Rate)

	e.GET("/customers/:id/appointments", h.ListCustomerAppointments)
	e.GET("/providers/:id/appointments", h.ListProviderAppointments)
	e.GET("/providers/:id/ratings", h.ListProviderRatings)

	return &Server{echo: e, log: log}
}

// Echo отдаёт внутренний роутер (для тестов).
func (s *Server) Echo() *echo.Echo { return s.echo }

func (s *Server) Start(addr string) error {
	s.log.Info().Str("addr", addr).Msg("http server listening")
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// healthHandler пингует БД.
func healthHandler(db *gorm.DB) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status": "unhealthy",
				"error":  err.Error(),
			})
		}
		return c.JSON(http.StatusOK, map[string]any{"status": "healthy"})
	}
}
