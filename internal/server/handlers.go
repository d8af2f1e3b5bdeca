package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fixaro/marketplace-core/internal/calendar"
	"github.com/fixaro/marketplace-core/internal/service"
	"github.com/fixaro/marketplace-core/internal/timeslot"
)

type handler struct {
	availability *service.AvailabilityService
	scheduling   *service.SchedulingService
	lifecycle    *service.LifecycleService
	catalog      *service.CatalogService
}

// httpError переводит доменную ошибку в HTTP-статус. Всё, что не
// распознано — инфраструктурный сбой, 500 и право вызывающего на retry.
func httpError(err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, service.ErrSlotNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrNotOwner):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrOverlapConflict),
		errors.Is(err, service.ErrSlotAlreadyBooked),
		errors.Is(err, service.ErrHasBookings),
		errors.Is(err, service.ErrPastDateTime),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrAlreadyRated),
		errors.Is(err, service.ErrNotRatable):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidRange),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrReasonRequired),
		errors.Is(err, service.ErrInvalidRating),
		errors.Is(err, timeslot.ErrInvalidClockFormat),
		errors.Is(err, timeslot.ErrInvalidTimeRange),
		errors.Is(err, timeslot.ErrInvalidDayOfWeek):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

// -- Availability --

type slotRequest struct {
	Day      string `json:"day"`
	Start    string `json:"start"`
	End      string `json:"end"`
	IsActive *bool  `json:"is_active"`
}

func (h *handler) AddSlot(c echo.Context) error {
	var req slotRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	day, err := timeslot.ParseDay(req.Day)
	if err != nil {
		return httpError(err)
	}
	rng, err := timeslot.ParseRange(req.Start, req.End)
	if err != nil {
		return httpError(err)
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	slot, err := h.availability.AddSlot(c.Request().Context(), c.Param("id"), day, rng, isActive)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, slot)
}

func (h *handler) ListAvailability(c echo.Context) error {
	providerID := c.Param("id")

	if dayStr := c.QueryParam("day"); dayStr != "" {
		day, err := timeslot.ParseDay(dayStr)
		if err != nil {
			return httpError(err)
		}
		slots, err := h.availability.ListByProviderAndDay(c.Request().Context(), providerID, day)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, slots)
	}

	slots, err := h.availability.ListByProvider(c.Request().Context(), providerID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, slots)
}

type rangeRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type weekRequest struct {
	Week map[string][]rangeRequest `json:"week"`
}

func (h *handler) SetWeeklyAvailability(c echo.Context) error {
	var req weekRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	week := make(map[timeslot.DayOfWeek][]timeslot.Range, len(req.Week))
	for dayStr, ranges := range req.Week {
		day, err := timeslot.ParseDay(dayStr)
		if err != nil {
			return httpError(err)
		}
		for _, r := range ranges {
			rng, err := timeslot.ParseRange(r.Start, r.End)
			if err != nil {
				return httpError(err)
			}
			week[day] = append(week[day], rng)
		}
	}

	slots, err := h.availability.SetWeeklyAvailability(c.Request().Context(), c.Param("id"), week)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, slots)
}

type slotPatchRequest struct {
	Day      *string `json:"day"`
	Start    *string `json:"start"`
	End      *string `json:"end"`
	IsActive *bool   `json:"is_active"`
}

func (h *handler) UpdateSlot(c echo.Context) error {
	var req slotPatchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var patch service.SlotPatch
	if req.Day != nil {
		day, err := timeslot.ParseDay(*req.Day)
		if err != nil {
			return httpError(err)
		}
		patch.Day = &day
	}
	if req.Start != nil {
		start, err := timeslot.ParseClock(*req.Start)
		if err != nil {
			return httpError(err)
		}
		patch.Start = &start
	}
	if req.End != nil {
		end, err := timeslot.ParseClock(*req.End)
		if err != nil {
			return httpError(err)
		}
		patch.End = &end
	}
	patch.IsActive = req.IsActive

	slot, err := h.availability.UpdateSlot(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, slot)
}

func (h *handler) GetSlot(c echo.Context) error {
	slot, err := h.availability.GetSlot(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, slot)
}

func (h *handler) DeleteSlot(c echo.Context) error {
	if err := h.availability.DeleteSlot(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Scheduling --

func (h *handler) DayAvailability(c echo.Context) error {
	date, err := parseDate(c.QueryParam("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
	}

	projections, err := h.scheduling.DayAvailability(c.Request().Context(), c.Param("id"), date)
	if err != nil {
		return httpError(err)
	}

	page := intQueryParam(c, "page", 1)
	pageSize := intQueryParam(c, "page_size", 0)
	return c.JSON(http.StatusOK, calendar.Paginate(projections, page, pageSize))
}

type bookingRequest struct {
	CustomerID  string `json:"customer_id"`
	ProviderID  string `json:"provider_id"`
	ServiceID   string `json:"service_id"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Description string `json:"description"`
}

func (h *handler) CreateBooking(c echo.Context) error {
	var req bookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.CustomerID == "" || req.ProviderID == "" || req.ServiceID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "customer_id, provider_id and service_id are required")
	}

	date, err := parseDate(req.Date)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
	}

	appt, err := h.scheduling.CreateBooking(c.Request().Context(), service.BookingInput{
		CustomerID:  req.CustomerID,
		ProviderID:  req.ProviderID,
		ServiceID:   req.ServiceID,
		Date:        date,
		Time:        req.Time,
		Description: req.Description,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, appt)
}

// -- Lifecycle --

func (h *handler) GetAppointment(c echo.Context) error {
	appt, err := h.lifecycle.GetAppointment(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

type statusRequest struct {
	ProviderID string   `json:"provider_id"`
	Status     string   `json:"status"`
	FinalPrice *float64 `json:"final_price"`
}

func (h *handler) AdvanceStatus(c echo.Context) error {
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ProviderID == "" || req.Status == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "provider_id and status are required")
	}

	appt, err := h.lifecycle.AdvanceStatus(c.Request().Context(), c.Param("id"), req.ProviderID, req.Status, req.FinalPrice)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

type cancelRequest struct {
	Role    string `json:"role"`
	ActorID string `json:"actor_id"`
	Reason  string `json:"reason"`
}

func (h *handler) Cancel(c echo.Context) error {
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	role := service.ActorRole(req.Role)
	if role != service.ActorCustomer && role != service.ActorProvider {
		return echo.NewHTTPError(http.StatusBadRequest, "role must be customer or provider")
	}
	if req.ActorID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "actor_id is required")
	}

	appt, err := h.lifecycle.Cancel(c.Request().Context(), c.Param("id"), role, req.ActorID, req.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

type rescheduleRequest struct {
	CustomerID string `json:"customer_id"`
	Date       string `json:"date"`
	Time       string `json:"time"`
}

func (h *handler) Reschedule(c echo.Context) error {
	var req rescheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.CustomerID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "customer_id is required")
	}

	date, err := parseDate(req.Date)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
	}

	appt, err := h.lifecycle.Reschedule(c.Request().Context(), c.Param("id"), req.CustomerID, date, req.Time)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

type ratingRequest struct {
	CustomerID string  `json:"customer_id"`
	Value      int     `json:"value"`
	Comment    *string `json:"comment"`
}

func (h *handler) Rate(c echo.Context) error {
	var req ratingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.CustomerID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "customer_id is required")
	}

	rating, err := h.lifecycle.Rate(c.Request().Context(), c.Param("id"), req.CustomerID, req.Value, req.Comment)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, rating)
}

// -- Listings --

func (h *handler) ListCustomerAppointments(c echo.Context) error {
	from, to, err := rangeQueryParams(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	appts, total, err := h.lifecycle.ListCustomerAppointments(
		c.Request().Context(), c.Param("id"), from, to,
		intQueryParam(c, "limit", 20), intQueryParam(c, "offset", 0),
	)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": appts, "total": total})
}

func (h *handler) ListProviderAppointments(c echo.Context) error {
	from, to, err := rangeQueryParams(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	appts, total, err := h.lifecycle.ListProviderAppointments(
		c.Request().Context(), c.Param("id"), from, to,
		intQueryParam(c, "limit", 20), intQueryParam(c, "offset", 0),
	)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": appts, "total": total})
}

func (h *handler) ListProviderRatings(c echo.Context) error {
	ratings, total, err := h.lifecycle.ListProviderRatings(
		c.Request().Context(), c.Param("id"),
		intQueryParam(c, "limit", 20), intQueryParam(c, "offset", 0),
	)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": ratings, "total": total})
}

// -- Catalog --

type providerRequest struct {
	DisplayName  string `json:"display_name"`
	Description  string `json:"description"`
	ContactPhone string `json:"contact_phone"`
}

func (h *handler) CreateProvider(c echo.Context) error {
	var req providerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	provider, err := h.catalog.CreateProvider(c.Request().Context(), req.DisplayName, req.Description, req.ContactPhone)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, provider)
}

type customerRequest struct {
	DisplayName  string `json:"display_name"`
	ContactPhone string `json:"contact_phone"`
}

func (h *handler) CreateCustomer(c echo.Context) error {
	var req customerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	customer, err := h.catalog.CreateCustomer(c.Request().Context(), req.DisplayName, req.ContactPhone)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, customer)
}

type serviceRequest struct {
	Name               string `json:"name"`
	Description        string `json:"description"`
	DefaultDurationMin *int64 `json:"default_duration_min"`
}

func (h *handler) CreateService(c echo.Context) error {
	var req serviceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	svc, err := h.catalog.CreateService(c.Request().Context(), req.Name, req.Description, req.DefaultDurationMin)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, svc)
}

func (h *handler) ListServices(c echo.Context) error {
	onlyActive := c.QueryParam("all") == ""

	services, total, err := h.catalog.ListServices(
		c.Request().Context(), onlyActive,
		intQueryParam(c, "limit", 50), intQueryParam(c, "offset", 0),
	)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": services, "total": total})
}

func (h *handler) ListProviderServices(c echo.Context) error {
	services, err := h.catalog.ListProviderServices(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, services)
}

func rangeQueryParams(c echo.Context) (from, to time.Time, err error) {
	if s := c.QueryParam("from"); s != "" {
		if from, err = parseDate(s); err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid from, want YYYY-MM-DD")
		}
	}
	if s := c.QueryParam("to"); s != "" {
		if to, err = parseDate(s); err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid to, want YYYY-MM-DD")
		}
	}
	return from, to, nil
}

func intQueryParam(c echo.Context, name string, def int) int {
	s := c.QueryParam(name)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
