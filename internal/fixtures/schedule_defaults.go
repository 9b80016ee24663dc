package fixtures

import (
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/schedule"
	"github.com/shopspring/decimal"
)

// ==========================================
// HELPER FUNCTIONS
// ==========================================

func clock(hour, minute int) time.Time {
	return time.Date(0, 1, 1, hour, minute, 0, 0, time.UTC)
}

func clockPtr(hour, minute int) *time.Time {
	t := clock(hour, minute)
	return &t
}

func hours(h int64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromInt(h))
}

// ==========================================
// STANDARD OFFICE HOURS
// ==========================================

// StandardOfficeHours is Mon-Fri 09:00-17:00 with lunch 13:00-14:00 and a
// 7 hour working day.
func StandardOfficeHours(id, companyID string) schedule.WorkSchedule {
	ws := schedule.WorkSchedule{
		ID:          id,
		CompanyID:   companyID,
		Name:        "Standard Office Hours",
		HoursPerDay: hours(7),
	}
	for day := 1; day <= 5; day++ {
		ws.Times = append(ws.Times, schedule.WorkScheduleTime{
			ID:             weekdayID(id, day),
			WorkScheduleID: id,
			DayOfWeek:      day,
			ClockInTime:    clock(9, 0),
			BreakStartTime: clockPtr(13, 0),
			BreakEndTime:   clockPtr(14, 0),
			ClockOutTime:   clock(17, 0),
		})
	}
	return ws
}

// ==========================================
// MORNING ONLY
// ==========================================

// MorningOnly is Mon-Fri 09:00-13:00 without a break. HoursPerDay is left
// unset so the planned duration drives the full-day threshold.
func MorningOnly(id, companyID string) schedule.WorkSchedule {
	ws := schedule.WorkSchedule{
		ID:        id,
		CompanyID: companyID,
		Name:      "Morning Shift",
	}
	for day := 1; day <= 5; day++ {
		ws.Times = append(ws.Times, schedule.WorkScheduleTime{
			ID:             weekdayID(id, day),
			WorkScheduleID: id,
			DayOfWeek:      day,
			ClockInTime:    clock(9, 0),
			ClockOutTime:   clock(13, 0),
		})
	}
	return ws
}

// ==========================================
// NIGHT/OVERNIGHT SHIFT SCHEDULE
// ==========================================

// NightShift is Mon-Fri 22:00-06:00 next day with a break 01:00-02:00.
func NightShift(id, companyID string) schedule.WorkSchedule {
	ws := schedule.WorkSchedule{
		ID:          id,
		CompanyID:   companyID,
		Name:        "Night Shift",
		HoursPerDay: hours(7),
	}
	for day := 1; day <= 5; day++ {
		ws.Times = append(ws.Times, schedule.WorkScheduleTime{
			ID:                weekdayID(id, day),
			WorkScheduleID:    id,
			DayOfWeek:         day,
			ClockInTime:       clock(22, 0),
			BreakStartTime:    clockPtr(1, 0),
			BreakEndTime:      clockPtr(2, 0),
			ClockOutTime:      clock(6, 0),
			IsNextDayCheckout: true,
		})
	}
	return ws
}

// ==========================================
// SPLIT SHIFT
// ==========================================

// SplitShift has two unbroken rows per weekday: 08:00-12:00 and
// 15:00-19:00.
func SplitShift(id, companyID string) schedule.WorkSchedule {
	ws := schedule.WorkSchedule{
		ID:          id,
		CompanyID:   companyID,
		Name:        "Split Shift",
		HoursPerDay: hours(8),
	}
	for day := 1; day <= 5; day++ {
		ws.Times = append(ws.Times,
			schedule.WorkScheduleTime{
				ID:             weekdayID(id, day) + "-a",
				WorkScheduleID: id,
				DayOfWeek:      day,
				ClockInTime:    clock(8, 0),
				ClockOutTime:   clock(12, 0),
			},
			schedule.WorkScheduleTime{
				ID:             weekdayID(id, day) + "-b",
				WorkScheduleID: id,
				DayOfWeek:      day,
				ClockInTime:    clock(15, 0),
				ClockOutTime:   clock(19, 0),
			},
		)
	}
	return ws
}

func weekdayID(scheduleID string, day int) string {
	return scheduleID + "-" + time.Weekday(day%7).String()
}
