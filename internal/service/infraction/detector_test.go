package infraction

import (
	"context"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/compliance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/leave"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/schedule"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/interval"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC) // Monday

func at(hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func ptr(t time.Time) *time.Time { return &t }

type fakeCoverage struct {
	leaves      []interval.Interval
	attendances []interval.Interval
}

func (f fakeCoverage) LeaveCovers(_ context.Context, start, end time.Time) (bool, error) {
	return interval.Covers(interval.New(start, end, ""), f.leaves)
}

func (f fakeCoverage) AttendanceCovers(_ context.Context, start, end time.Time) (bool, error) {
	target := interval.New(start, end, "")
	for _, a := range f.attendances {
		if a.Overlaps(target) {
			return true, nil
		}
	}
	return false, nil
}

func shift(startH, endH int, portion schedule.Portion) schedule.ShiftInterval {
	return schedule.ShiftInterval{Start: at(startH, 0), End: at(endH, 0), Portion: portion, DayKey: "2025-03-03"}
}

// standardDay is 09:00-17:00 with lunch 13:00-14:00 and 7 hours per day.
func standardDay() schedule.DaySchedule {
	return schedule.DaySchedule{
		Date:     day,
		Location: time.UTC,
		Intervals: []schedule.ShiftInterval{
			shift(9, 13, schedule.PortionMorning),
			shift(13, 14, schedule.PortionLunch),
			shift(14, 17, schedule.PortionAfternoon),
		},
		HoursPerDay: decimal.NewNullDecimal(decimal.NewFromInt(7)),
	}
}

func morningOnlyDay() schedule.DaySchedule {
	return schedule.DaySchedule{
		Date:      day,
		Location:  time.UTC,
		Intervals: []schedule.ShiftInterval{shift(9, 13, schedule.PortionMorning)},
	}
}

func input(ds schedule.DaySchedule, checkIn, checkOut *time.Time) Input {
	return Input{
		AttendanceID:      "att-1",
		EmployeeID:        "emp-1",
		CompanyID:         "co-1",
		CheckIn:           checkIn,
		CheckOut:          checkOut,
		Day:               ds,
		CalendarAvailable: true,
	}
}

func ensures(out Outcome) []leave.PenaltyAction {
	var list []leave.PenaltyAction
	for _, a := range out.Actions {
		if a.Op != leave.ActionClear {
			list = append(list, a)
		}
	}
	return list
}

func clearedPortions(out Outcome) []leave.Portion {
	var list []leave.Portion
	for _, a := range out.Actions {
		if a.Op == leave.ActionClear {
			list = append(list, a.Clear.Portions...)
		}
	}
	return list
}

func TestDetect_OnTime(t *testing.T) {
	out, err := Detect(context.Background(), compliance.DefaultConfig(),
		input(standardDay(), ptr(at(9, 5)), ptr(at(17, 0))), fakeCoverage{})
	require.NoError(t, err)

	assert.Equal(t, compliance.ClassificationNone, out.CheckIn.Classification)
	assert.Equal(t, compliance.ClassificationNone, out.CheckOut.Classification)
	assert.Equal(t, 5, out.CheckIn.DelayMinutes)
	assert.Empty(t, ensures(out))
	assert.ElementsMatch(t, []leave.Portion{leave.PortionFull, leave.PortionAM, leave.PortionPM}, clearedPortions(out))
	for _, a := range out.Actions {
		assert.Equal(t, "att-1", a.Clear.TriggerAttendanceID)
	}
}

func TestDetect_GraceBoundary(t *testing.T) {
	cfg := compliance.DefaultConfig()

	out, err := Detect(context.Background(), cfg, input(standardDay(), ptr(at(9, 10)), nil), fakeCoverage{})
	require.NoError(t, err)
	assert.Equal(t, compliance.ClassificationNone, out.CheckIn.Classification)
	assert.Empty(t, ensures(out))

	out, err = Detect(context.Background(), cfg, input(standardDay(), ptr(at(9, 11)), nil), fakeCoverage{})
	require.NoError(t, err)
	assert.Equal(t, compliance.ClassificationHalfDayLateIn, out.CheckIn.Classification)
	require.Len(t, ensures(out), 1)
	assert.Equal(t, leave.InfractionLateIn, ensures(out)[0].Ensure.InfractionType)
}

func TestDetect_LateBeyondGraceUncovered(t *testing.T) {
	out, err := Detect(context.Background(), compliance.DefaultConfig(),
		input(standardDay(), ptr(at(9, 25)), nil), fakeCoverage{})
	require.NoError(t, err)

	list := ensures(out)
	require.Len(t, list, 1)
	req := list[0].Ensure
	assert.Equal(t, leave.ActionEnsureHalfDay, list[0].Op)
	assert.Equal(t, leave.PortionAM, req.Portion)
	assert.Equal(t, leave.InfractionLateIn, req.InfractionType)
	assert.Equal(t, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), req.Date)
	assert.Equal(t, "att-1", req.TriggerAttendanceID)
	assert.Equal(t, at(9, 0), req.StartAt)
	assert.Equal(t, at(13, 0), req.EndAt)
	assert.Contains(t, req.Description, "09:25")
	assert.Contains(t, req.Description, "09:00")
	assert.Equal(t, 25, out.CheckIn.DelayMinutes)

	// Open attendance clears stale full-day and afternoon penalties.
	assert.ElementsMatch(t, []leave.Portion{leave.PortionFull, leave.PortionPM}, clearedPortions(out))
}

func TestDetect_LateExcusedByLeave(t *testing.T) {
	cov := fakeCoverage{leaves: []interval.Interval{interval.New(at(8, 0), at(10, 0), "")}}
	out, err := Detect(context.Background(), compliance.DefaultConfig(),
		input(standardDay(), ptr(at(9, 45)), nil), cov)
	require.NoError(t, err)
	assert.Equal(t, compliance.ClassificationNone, out.CheckIn.Classification)
	assert.Empty(t, ensures(out))
}

func TestDetect_FullDayEarlyDeparture(t *testing.T) {
	out, err := Detect(context.Background(), compliance.DefaultConfig(),
		input(morningOnlyDay(), ptr(at(9, 0)), ptr(at(10, 30))), fakeCoverage{})
	require.NoError(t, err)

	assert.Equal(t, compliance.ClassificationFullDay, out.CheckOut.Classification)
	require.Len(t, out.Actions, 1)
	a := out.Actions[0]
	assert.Equal(t, leave.ActionEnsureFullDay, a.Op)
	assert.Equal(t, leave.PortionFull, a.Ensure.Portion)
	assert.Equal(t, at(9, 0), a.Ensure.StartAt)
	assert.Equal(t, at(13, 0), a.Ensure.EndAt)
}

func TestDetect_FullDaySuppressedByLeaveForRestOfDay(t *testing.T) {
	cov := fakeCoverage{leaves: []interval.Interval{interval.New(at(10, 30), at(13, 0), "")}}
	out, err := Detect(context.Background(), compliance.DefaultConfig(),
		input(morningOnlyDay(), ptr(at(9, 0)), ptr(at(10, 30))), cov)
	require.NoError(t, err)

	assert.Equal(t, compliance.ClassificationNone, out.CheckOut.Classification)
	assert.Empty(t, ensures(out))
}

func TestDetect_HalfDayEarlyOut(t *testing.T) {
	out, err := Detect(context.Background(), compliance.DefaultConfig(),
		input(standardDay(), ptr(at(9, 0)), ptr(at(16, 0))), fakeCoverage{})
	require.NoError(t, err)

	assert.Equal(t, compliance.ClassificationHalfDayEarlyOut, out.CheckOut.Classification)
	assert.Equal(t, 60, out.CheckOut.DelayMinutes)
	list := ensures(out)
	require.Len(t, list, 1)
	assert.Equal(t, leave.PortionPM, list[0].Ensure.Portion)
	assert.Equal(t, leave.InfractionEarlyOut, list[0].Ensure.InfractionType)
	assert.Equal(t, at(14, 0), list[0].Ensure.StartAt)
	assert.Equal(t, at(17, 0), list[0].Ensure.EndAt)
}

func TestDetect_EarlyOutWithinGrace(t *testing.T) {
	out, err := Detect(context.Background(), compliance.DefaultConfig(),
		input(standardDay(), ptr(at(9, 0)), ptr(at(16, 50))), fakeCoverage{})
	require.NoError(t, err)
	assert.Equal(t, compliance.ClassificationNone, out.CheckOut.Classification)
	assert.Empty(t, ensures(out))
}

func TestDetect_LeftAfterMorningFlagsMissingAfternoon(t *testing.T) {
	out, err := Detect(context.Background(), compliance.DefaultConfig(),
		input(standardDay(), ptr(at(9, 0)), ptr(at(13, 0))), fakeCoverage{})
	require.NoError(t, err)

	list := ensures(out)
	require.Len(t, list, 1)
	assert.Equal(t, leave.PortionPM, list[0].Ensure.Portion)
	assert.Equal(t, leave.InfractionMissingShift, list[0].Ensure.InfractionType)
	assert.Equal(t, []leave.Portion{leave.PortionPM}, out.MissingShifts)
}

func TestDetect_TieBreakPolicy(t *testing.T) {
	// Ten hours per day puts the threshold at five hours, above the four
	// hour morning the employee completed.
	ds := standardDay()
	ds.HoursPerDay = decimal.NewNullDecimal(decimal.NewFromInt(10))
	in := input(ds, ptr(at(9, 0)), ptr(at(13, 0)))

	out, err := Detect(context.Background(), compliance.DefaultConfig(), in, fakeCoverage{})
	require.NoError(t, err)
	assert.Equal(t, compliance.ClassificationMissingShift, out.CheckOut.Classification)
	list := ensures(out)
	require.Len(t, list, 1)
	assert.Equal(t, leave.ActionEnsureHalfDay, list[0].Op)
	assert.Equal(t, leave.PortionPM, list[0].Ensure.Portion)

	cfg := compliance.DefaultConfig()
	cfg.FullDayTieBreak = compliance.TieBreakFullDay
	out, err = Detect(context.Background(), cfg, in, fakeCoverage{})
	require.NoError(t, err)
	assert.Equal(t, compliance.ClassificationFullDay, out.CheckOut.Classification)
	require.Len(t, out.Actions, 1)
	assert.Equal(t, leave.ActionEnsureFullDay, out.Actions[0].Op)
}

func TestDetect_MissingMorningBeforeLateAfternoonArrival(t *testing.T) {
	// Four hours per day keeps the 2h30 afternoon above the full-day threshold.
	ds := standardDay()
	ds.HoursPerDay = decimal.NewNullDecimal(decimal.NewFromInt(4))
	out, err := Detect(context.Background(), compliance.DefaultConfig(),
		input(ds, ptr(at(14, 30)), ptr(at(17, 0))), fakeCoverage{})
	require.NoError(t, err)

	assert.Equal(t, []leave.Portion{leave.PortionAM}, out.MissingShifts)
	byPortion := map[leave.Portion]leave.InfractionType{}
	for _, a := range ensures(out) {
		byPortion[a.Ensure.Portion] = a.Ensure.InfractionType
	}
	assert.Equal(t, leave.InfractionMissingShift, byPortion[leave.PortionAM])
	assert.Equal(t, leave.InfractionLateIn, byPortion[leave.PortionPM])
}

func TestDetect_FullDayWhenAccountedTimeBelowHalf(t *testing.T) {
	out, err := Detect(context.Background(), compliance.DefaultConfig(),
		input(standardDay(), ptr(at(14, 30)), ptr(at(17, 0))), fakeCoverage{})
	require.NoError(t, err)

	assert.Equal(t, compliance.ClassificationFullDay, out.CheckIn.Classification)
	require.Len(t, out.Actions, 1)
	assert.Equal(t, leave.ActionEnsureFullDay, out.Actions[0].Op)
	assert.Equal(t, at(9, 0), out.Actions[0].Ensure.StartAt)
	assert.Equal(t, at(17, 0), out.Actions[0].Ensure.EndAt)
}

func TestDetect_MissingShiftCoveredByLeave(t *testing.T) {
	cov := fakeCoverage{leaves: []interval.Interval{interval.New(at(9, 0), at(13, 0), "")}}
	out, err := Detect(context.Background(), compliance.DefaultConfig(),
		input(standardDay(), ptr(at(14, 0)), ptr(at(17, 0))), cov)
	require.NoError(t, err)

	assert.Empty(t, out.MissingShifts)
	assert.Empty(t, ensures(out))
	assert.Contains(t, clearedPortions(out), leave.PortionAM)
}

func TestDetect_MissingShiftCoveredByOtherAttendance(t *testing.T) {
	cov := fakeCoverage{attendances: []interval.Interval{interval.New(at(9, 0), at(12, 55), "")}}
	out, err := Detect(context.Background(), compliance.DefaultConfig(),
		input(standardDay(), ptr(at(14, 0)), ptr(at(17, 0))), cov)
	require.NoError(t, err)
	assert.Empty(t, out.MissingShifts)
	assert.Empty(t, ensures(out))
}

func TestDetect_ForwardScanStopsAtFirstGap(t *testing.T) {
	ds := schedule.DaySchedule{
		Date:     day,
		Location: time.UTC,
		Intervals: []schedule.ShiftInterval{
			shift(6, 8, schedule.PortionMorning),
			shift(8, 10, schedule.PortionMorning),
			shift(12, 14, schedule.PortionAfternoon),
			shift(14, 16, schedule.PortionAfternoon),
		},
	}
	// Leave covers the second morning shift. The employee is otherwise absent
	// after 08:00. Only the first uncovered shift is flagged.
	cov := fakeCoverage{leaves: []interval.Interval{interval.New(at(8, 0), at(10, 0), "")}}
	out, err := Detect(context.Background(), compliance.DefaultConfig(),
		input(ds, ptr(at(6, 0)), ptr(at(8, 0))), cov)
	require.NoError(t, err)
	assert.Equal(t, []leave.Portion{leave.PortionPM}, out.MissingShifts)
}

func TestDetect_NoCalendar(t *testing.T) {
	in := input(schedule.DaySchedule{Date: day, Location: time.UTC}, ptr(at(9, 0)), ptr(at(10, 0)))
	in.CalendarAvailable = false

	out, err := Detect(context.Background(), compliance.DefaultConfig(), in, fakeCoverage{})
	require.NoError(t, err)
	assert.Equal(t, compliance.ClassificationNoSchedule, out.CheckIn.Classification)
	assert.Empty(t, ensures(out))
	assert.ElementsMatch(t, []leave.Portion{leave.PortionFull, leave.PortionAM, leave.PortionPM}, clearedPortions(out))
}

func TestDetect_TimezoneDescriptions(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)
	local := func(h, m int) time.Time { return time.Date(2025, 3, 3, h, m, 0, 0, loc) }

	ds := schedule.DaySchedule{
		Date:     time.Date(2025, 3, 3, 0, 0, 0, 0, loc),
		Location: loc,
		Intervals: []schedule.ShiftInterval{
			{Start: local(9, 0), End: local(13, 0), Portion: schedule.PortionMorning},
		},
	}
	checkIn := local(9, 30).UTC()
	out, err := Detect(context.Background(), compliance.DefaultConfig(), input(ds, &checkIn, nil), fakeCoverage{})
	require.NoError(t, err)

	list := ensures(out)
	require.Len(t, list, 1)
	assert.Contains(t, list[0].Ensure.Description, "09:30")
	assert.Equal(t, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), list[0].Ensure.Date)
}

func TestPortionOf(t *testing.T) {
	assert.Equal(t, leave.PortionAM, PortionOf(schedule.PortionMorning))
	assert.Equal(t, leave.PortionPM, PortionOf(schedule.PortionAfternoon))
	assert.Equal(t, leave.PortionAM, PortionOf(schedule.PortionLunch))
	assert.Equal(t, leave.PortionAM, PortionOf("night"))
}
