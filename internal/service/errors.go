package service

import "errors"

// Ошибки доменных правил. Всё это клиентские ошибки (4xx на границе);
// инфраструктурные сбои приходят как любые другие error и означают
// транзиентный отказ хранилища.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidRange      = errors.New("invalid time range")
	ErrOverlapConflict   = errors.New("slot overlaps existing availability")
	ErrHasBookings       = errors.New("slot has appointment references")
	ErrSlotNotFound      = errors.New("no availability slot at requested time")
	ErrSlotAlreadyBooked = errors.New("slot already booked for this date")
	ErrPastDateTime      = errors.New("requested date/time is in the past")
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrReasonRequired    = errors.New("cancellation reason is required")
	ErrNotRatable        = errors.New("appointment is not ratable")
	ErrAlreadyRated      = errors.New("appointment already rated")
	ErrInvalidRating     = errors.New("rating value must be between 1 and 5")
	ErrNotOwner          = errors.New("actor does not own this resource")
)
