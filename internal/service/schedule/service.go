package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/employee"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/schedule"
)

// noonHour splits unbroken shifts into morning and afternoon.
const noonHour = 12

type calendarResolverImpl struct {
	employeeRepo               employee.EmployeeRepository
	workScheduleRepo           schedule.WorkScheduleRepository
	employeeScheduleAssignRepo schedule.EmployeeScheduleAssignmentRepository
}

func NewCalendarResolver(
	employeeRepo employee.EmployeeRepository,
	workScheduleRepo schedule.WorkScheduleRepository,
	employeeScheduleAssignRepo schedule.EmployeeScheduleAssignmentRepository,
) schedule.CalendarProvider {
	return &calendarResolverImpl{
		employeeRepo:               employeeRepo,
		workScheduleRepo:           workScheduleRepo,
		employeeScheduleAssignRepo: employeeScheduleAssignRepo,
	}
}

// ResolveLocation implements schedule.CalendarProvider.
func (c *calendarResolverImpl) ResolveLocation(ctx context.Context, employeeID string) (*time.Location, error) {
	emp, err := c.employeeRepo.GetByID(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return locationFor(emp), nil
}

func locationFor(emp employee.Employee) *time.Location {
	for _, name := range emp.TimezoneCandidates() {
		loc, err := time.LoadLocation(name)
		if err == nil {
			return loc
		}
		slog.Warn("Skipping invalid timezone", "employee_id", emp.ID, "timezone", name, "error", err)
	}
	return time.UTC
}

// ResolveDayIntervals implements schedule.CalendarProvider.
func (c *calendarResolverImpl) ResolveDayIntervals(ctx context.Context, employeeID string, day time.Time, loc *time.Location) (schedule.DaySchedule, error) {
	if loc == nil {
		loc = time.UTC
	}
	date := schedule.StartOfDay(day, loc)

	ws, err := c.activeSchedule(ctx, employeeID, date)
	if err != nil {
		return schedule.DaySchedule{}, err
	}

	out := schedule.DaySchedule{
		Date:        date,
		Location:    loc,
		HoursPerDay: ws.HoursPerDay,
	}

	weekday := schedule.ISOWeekday(date)
	for _, row := range ws.Times {
		if row.DayOfWeek != weekday {
			continue
		}
		out.Intervals = append(out.Intervals, expandRow(employeeID, date, row)...)
	}
	sort.SliceStable(out.Intervals, func(i, j int) bool {
		return out.Intervals[i].Start.Before(out.Intervals[j].Start)
	})

	return out, nil
}

// activeSchedule applies the assignment-over-default priority.
func (c *calendarResolverImpl) activeSchedule(ctx context.Context, employeeID string, date time.Time) (schedule.WorkSchedule, error) {
	assignment, err := c.employeeScheduleAssignRepo.GetActiveAssignment(ctx, employeeID, date)
	if err != nil {
		return schedule.WorkSchedule{}, fmt.Errorf("failed to get schedule assignment: %w", err)
	}

	var scheduleID string
	if assignment != nil {
		scheduleID = assignment.WorkScheduleID
	} else {
		emp, err := c.employeeRepo.GetByID(ctx, employeeID)
		if err != nil {
			return schedule.WorkSchedule{}, fmt.Errorf("failed to get employee: %w", err)
		}
		if emp.WorkScheduleID == nil || *emp.WorkScheduleID == "" {
			return schedule.WorkSchedule{}, schedule.ErrCalendarUnavailable
		}
		scheduleID = *emp.WorkScheduleID
	}

	ws, err := c.workScheduleRepo.GetByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, schedule.ErrWorkScheduleNotFound) {
			return schedule.WorkSchedule{}, schedule.ErrCalendarUnavailable
		}
		return schedule.WorkSchedule{}, fmt.Errorf("failed to get work schedule: %w", err)
	}
	return ws, nil
}

// expandRow turns one weekday row into morning/lunch/afternoon intervals.
// Clock values earlier than the clock-in roll over to the next day.
func expandRow(employeeID string, date time.Time, row schedule.WorkScheduleTime) []schedule.ShiftInterval {
	key := schedule.DayKey(date)
	in := atClock(date, row.ClockInTime)
	out := atClock(date, row.ClockOutTime)
	if row.IsNextDayCheckout || !out.After(in) {
		out = out.AddDate(0, 0, 1)
	}

	shift := func(start, end time.Time, portion schedule.Portion) schedule.ShiftInterval {
		return schedule.ShiftInterval{
			Start:          start,
			End:            end,
			Portion:        portion,
			DayKey:         key,
			ScheduleTimeID: row.ID,
		}
	}

	if row.BreakStartTime != nil && row.BreakEndTime != nil {
		breakStart := rollAfter(atClock(date, *row.BreakStartTime), in)
		breakEnd := rollAfter(atClock(date, *row.BreakEndTime), in)
		if breakStart.After(in) && breakEnd.After(breakStart) && out.After(breakEnd) {
			return []schedule.ShiftInterval{
				shift(in, breakStart, schedule.PortionMorning),
				shift(breakStart, breakEnd, schedule.PortionLunch),
				shift(breakEnd, out, schedule.PortionAfternoon),
			}
		}
		slog.Warn("Ignoring break outside shift bounds",
			"employee_id", employeeID, "work_schedule_time_id", row.ID)
	}

	portion := schedule.PortionMorning
	if in.Hour() >= noonHour {
		portion = schedule.PortionAfternoon
	}
	return []schedule.ShiftInterval{shift(in, out, portion)}
}

func atClock(date, clock time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), clock.Hour(), clock.Minute(), clock.Second(), 0, date.Location())
}

func rollAfter(t, ref time.Time) time.Time {
	if t.Before(ref) {
		return t.AddDate(0, 0, 1)
	}
	return t
}
