package schedule

import (
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/interval"
	"github.com/shopspring/decimal"
)

type WorkSchedule struct {
	ID          string
	CompanyID   string
	Name        string
	HoursPerDay decimal.NullDecimal
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time

	Times []WorkScheduleTime
}

type WorkScheduleTime struct {
	ID                string
	WorkScheduleID    string
	DayOfWeek         int // 1=Monday, ..., 7=Sunday
	ClockInTime       time.Time
	BreakStartTime    *time.Time
	BreakEndTime      *time.Time
	ClockOutTime      time.Time
	IsNextDayCheckout bool // Indicates if checkout is on the next day
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type EmployeeScheduleAssignment struct {
	ID             string
	EmployeeID     string
	WorkScheduleID string
	StartDate      time.Time
	EndDate        time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Portion labels a shift interval within a working day.
type Portion string

const (
	PortionMorning   Portion = "morning"
	PortionAfternoon Portion = "afternoon"
	PortionLunch     Portion = "lunch"
)

// ShiftInterval is one planned period of a working day in the employee's
// local time. Lunch intervals are kept so downstream stages can drop them.
type ShiftInterval struct {
	Start          time.Time
	End            time.Time
	Portion        Portion
	DayKey         string // YYYY-MM-DD of the calendar day the shift belongs to
	ScheduleTimeID string
}

func (s ShiftInterval) Interval() interval.Interval {
	return interval.New(s.Start, s.End, string(s.Portion))
}

func (s ShiftInterval) IsLunch() bool {
	return s.Portion == PortionLunch
}

// DaySchedule is the resolved plan of one employee for one calendar day.
type DaySchedule struct {
	Date        time.Time // local midnight
	Location    *time.Location
	Intervals   []ShiftInterval // sorted by start
	HoursPerDay decimal.NullDecimal
}

// Working returns the non-lunch intervals.
func (d DaySchedule) Working() []ShiftInterval {
	out := make([]ShiftInterval, 0, len(d.Intervals))
	for _, s := range d.Intervals {
		if !s.IsLunch() {
			out = append(out, s)
		}
	}
	return out
}

// PlannedDuration sums the non-lunch interval durations.
func (d DaySchedule) PlannedDuration() time.Duration {
	var total time.Duration
	for _, s := range d.Working() {
		total += s.End.Sub(s.Start)
	}
	return total
}

// DayWindow returns [midnight, next midnight) of the day in its location.
func (d DaySchedule) DayWindow() (time.Time, time.Time) {
	return d.Date, d.Date.AddDate(0, 0, 1)
}

// DayKey formats a date the way ShiftInterval.DayKey does.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// StartOfDay truncates t to local midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// ISOWeekday maps time.Weekday to 1=Monday..7=Sunday.
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
