package timeslot

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

var (
	ErrInvalidClockFormat = errors.New("invalid clock time format")
	ErrInvalidTimeRange   = errors.New("invalid time range")
	ErrInvalidDayOfWeek   = errors.New("invalid day of week")
)

// ClockTime — минута суток в диапазоне [0, 1439].
type ClockTime int

const minutesPerDay = 24 * 60

var clockRe = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]$`)

// ParseClock разбирает строку вида "HH:MM" (24-часовой формат).
func ParseClock(s string) (ClockTime, error) {
	if !clockRe.MatchString(s) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClockFormat, s)
	}
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClockFormat, s)
	}
	return ClockTime(h*60 + m), nil
}

// ClockOf возвращает минуту суток момента t.
func ClockOf(t time.Time) ClockTime {
	return ClockTime(t.Hour()*60 + t.Minute())
}

func (c ClockTime) Hour() int   { return int(c) / 60 }
func (c ClockTime) Minute() int { return int(c) % 60 }

func (c ClockTime) Valid() bool { return c >= 0 && c < minutesPerDay }

// String форматирует время обратно в "HH:MM".
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// At прикладывает минуту суток к календарной дате date (часовой пояс даты сохраняется).
func (c ClockTime) At(date time.Time) time.Time {
	y, mo, d := date.Date()
	return time.Date(y, mo, d, c.Hour(), c.Minute(), 0, 0, date.Location())
}

// DayOfWeek — день недели, значения совпадают с time.Weekday (Sunday = 0).
type DayOfWeek int

const (
	Sunday DayOfWeek = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

var dayNames = [...]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// DayOf возвращает день недели календарной даты (григорианский календарь,
// не зависит от локали).
func DayOf(date time.Time) DayOfWeek {
	return DayOfWeek(date.Weekday())
}

// ParseDay разбирает английское название дня недели в нижнем регистре.
func ParseDay(s string) (DayOfWeek, error) {
	for i, name := range dayNames {
		if s == name {
			return DayOfWeek(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDayOfWeek, s)
}

func (d DayOfWeek) Valid() bool { return d >= Sunday && d <= Saturday }

func (d DayOfWeek) String() string {
	if !d.Valid() {
		return fmt.Sprintf("day(%d)", int(d))
	}
	return dayNames[d]
}

// Range — интервал внутри суток [Start, End), обе границы в минутах.
type Range struct {
	Start ClockTime
	End   ClockTime
}

// NewRange создаёт интервал и валидирует границы: start строго раньше end.
func NewRange(start, end ClockTime) (Range, error) {
	if !start.Valid() || !end.Valid() || start >= end {
		return Range{}, fmt.Errorf("%w: %s-%s", ErrInvalidTimeRange, start, end)
	}
	return Range{Start: start, End: end}, nil
}

// ParseRange разбирает пару строк "HH:MM".
func ParseRange(start, end string) (Range, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Range{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Range{}, err
	}
	return NewRange(s, e)
}

// DurationMinutes — длительность интервала в минутах.
func (r Range) DurationMinutes() int { return int(r.End - r.Start) }

// Contains сообщает, попадает ли минута c в полуоткрытый интервал.
func (r Range) Contains(c ClockTime) bool {
	return c >= r.Start && c < r.End
}

// Overlaps — классическое пересечение полуоткрытых интервалов.
func (r Range) Overlaps(other Range) bool {
	return r.Start < other.End && r.End > other.Start
}

// Conflicts — политика конфликтов расписания: пересечение ИЛИ совпадение
// любой из границ считается конфликтом. Касание "впритык" (end == start)
// тоже запрещено.
func (r Range) Conflicts(other Range) bool {
	if r.Overlaps(other) {
		return true
	}
	return r.Start == other.Start || r.End == other.End ||
		r.Start == other.End || r.End == other.Start
}

func (r Range) String() string {
	return fmt.Sprintf("%s-%s", r.Start, r.End)
}

// DateOnly обрезает момент до полуночи его календарной даты.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
