package segment

import (
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/compliance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/leave"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/schedule"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/workentry"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/interval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var monday = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

func at(dayOffset, hour, minute int) time.Time {
	return monday.AddDate(0, 0, dayOffset).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func ptr(t time.Time) *time.Time { return &t }

func shift(start, end time.Time, portion schedule.Portion) schedule.ShiftInterval {
	return schedule.ShiftInterval{Start: start, End: end, Portion: portion, DayKey: schedule.DayKey(start)}
}

func emptyDay(offset int) schedule.DaySchedule {
	return schedule.DaySchedule{Date: monday.AddDate(0, 0, offset), Location: time.UTC}
}

// standardDay is 09:00-17:00 with lunch 13:00-14:00.
func standardDay(offset int) schedule.DaySchedule {
	d := emptyDay(offset)
	d.Intervals = []schedule.ShiftInterval{
		shift(at(offset, 9, 0), at(offset, 13, 0), schedule.PortionMorning),
		shift(at(offset, 13, 0), at(offset, 14, 0), schedule.PortionLunch),
		shift(at(offset, 14, 0), at(offset, 17, 0), schedule.PortionAfternoon),
	}
	return d
}

func input(checkIn, checkOut time.Time, days ...schedule.DaySchedule) Input {
	return Input{
		Attendance: attendance.Attendance{
			ID:         "att-1",
			EmployeeID: "emp-1",
			ClockIn:    ptr(checkIn),
			ClockOut:   ptr(checkOut),
		},
		Days:              days,
		CalendarAvailable: true,
	}
}

func seg(start, end time.Time, kind workentry.Kind, portion string) workentry.Segment {
	return workentry.Segment{Start: start, End: end, Kind: kind, Portion: portion}
}

func TestBuild_OnTimeClipsToSpanAndDropsLunch(t *testing.T) {
	out, err := Build(compliance.DefaultConfig(), input(at(0, 9, 5), at(0, 17, 0), emptyDay(-1), standardDay(0)))
	require.NoError(t, err)

	assert.Equal(t, []workentry.Segment{
		seg(at(0, 9, 5), at(0, 13, 0), workentry.KindRegular, "am"),
		seg(at(0, 14, 0), at(0, 17, 0), workentry.KindRegular, "pm"),
	}, out.Regular)
	assert.Empty(t, out.Overtime)
	assert.Empty(t, out.Deductions)
	assert.Equal(t, 6*time.Hour+55*time.Minute, out.Worked())
}

func TestBuild_OvertimeThreshold(t *testing.T) {
	cases := []struct {
		name     string
		checkOut time.Time
		want     []workentry.Segment
	}{
		{
			name:     "below minimum is discarded entirely",
			checkOut: at(0, 17, 29),
			want:     []workentry.Segment{},
		},
		{
			name:     "at minimum counts",
			checkOut: at(0, 17, 30),
			want:     []workentry.Segment{seg(at(0, 17, 0), at(0, 17, 30), workentry.KindOvertime, "")},
		},
		{
			name:     "above minimum counts in full",
			checkOut: at(0, 19, 0),
			want:     []workentry.Segment{seg(at(0, 17, 0), at(0, 19, 0), workentry.KindOvertime, "")},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := Build(compliance.DefaultConfig(), input(at(0, 9, 0), tc.checkOut, standardDay(0)))
			require.NoError(t, err)
			assert.Equal(t, tc.want, out.Overtime)
			assert.Equal(t, 7*time.Hour, out.Worked())
		})
	}
}

func TestBuild_NoCalendarFallsBackToSingleMorningSegment(t *testing.T) {
	in := input(at(0, 7, 0), at(0, 20, 0))
	in.CalendarAvailable = false

	out, err := Build(compliance.DefaultConfig(), in)
	require.NoError(t, err)
	assert.Equal(t, []workentry.Segment{seg(at(0, 7, 0), at(0, 20, 0), workentry.KindRegular, "am")}, out.Regular)
	assert.Empty(t, out.Overtime)
}

func TestBuild_DayWithoutShiftIsOvertime(t *testing.T) {
	// Saturday under a calendar that plans weekdays only.
	out, err := Build(compliance.DefaultConfig(), input(at(5, 10, 0), at(5, 10, 20), standardDay(4), emptyDay(5)))
	require.NoError(t, err)

	assert.Empty(t, out.Regular)
	assert.Equal(t, []workentry.Segment{seg(at(5, 10, 0), at(5, 10, 20), workentry.KindOvertime, "")}, out.Overtime)
}

func TestBuild_ExclusionsSplitSegments(t *testing.T) {
	in := input(at(0, 9, 0), at(0, 18, 0), standardDay(0))
	in.Penalties = []leave.PenaltyLeave{{
		ID:                  "pen-1",
		Portion:             leave.PortionAM,
		TriggerAttendanceID: "att-0",
		Status:              leave.PenaltyStatusActive,
		StartAt:             at(0, 9, 0),
		EndAt:               at(0, 13, 0),
	}}
	in.Unpaid = []interval.Interval{
		interval.New(at(0, 15, 0), at(0, 16, 0), "unpaid"),
		interval.New(at(0, 17, 0), at(0, 17, 15), "unpaid"),
	}

	out, err := Build(compliance.DefaultConfig(), in)
	require.NoError(t, err)

	assert.Equal(t, []workentry.Segment{
		seg(at(0, 14, 0), at(0, 15, 0), workentry.KindRegular, "pm"),
		seg(at(0, 16, 0), at(0, 17, 0), workentry.KindRegular, "pm"),
	}, out.Regular)
	assert.Equal(t, []workentry.Segment{
		seg(at(0, 17, 15), at(0, 18, 0), workentry.KindOvertime, ""),
	}, out.Overtime)
	assert.Empty(t, out.Deductions, "penalties raised by other attendances are exclusions only")
}

func TestBuild_RetractedPenaltyIsIgnored(t *testing.T) {
	in := input(at(0, 9, 0), at(0, 17, 0), standardDay(0))
	in.Penalties = []leave.PenaltyLeave{{
		ID:                  "pen-1",
		Portion:             leave.PortionAM,
		TriggerAttendanceID: "att-1",
		Status:              leave.PenaltyStatusRetracted,
		StartAt:             at(0, 9, 0),
		EndAt:               at(0, 13, 0),
	}}

	out, err := Build(compliance.DefaultConfig(), in)
	require.NoError(t, err)
	assert.Equal(t, 7*time.Hour, out.Worked())
	assert.Empty(t, out.Deductions)
}

func TestBuild_DeductionsForOwnPenaltiesSkipLunch(t *testing.T) {
	in := input(at(0, 9, 0), at(0, 10, 30), standardDay(0))
	in.Penalties = []leave.PenaltyLeave{{
		ID:                  "pen-1",
		Portion:             leave.PortionFull,
		TriggerAttendanceID: "att-1",
		Status:              leave.PenaltyStatusActive,
		StartAt:             at(0, 9, 0),
		EndAt:               at(0, 17, 0),
	}}

	out, err := Build(compliance.DefaultConfig(), in)
	require.NoError(t, err)

	assert.Empty(t, out.Regular)
	require.Len(t, out.Deductions, 2)
	assert.Equal(t, at(0, 9, 0), out.Deductions[0].Start)
	assert.Equal(t, at(0, 13, 0), out.Deductions[0].End)
	assert.Equal(t, at(0, 14, 0), out.Deductions[1].Start)
	assert.Equal(t, at(0, 17, 0), out.Deductions[1].End)
	for _, d := range out.Deductions {
		assert.Equal(t, workentry.KindPenaltyDeduction, d.Kind)
		assert.Equal(t, "full", d.Portion)
		require.NotNil(t, d.SourceLeaveID)
		assert.Equal(t, "pen-1", *d.SourceLeaveID)
	}
	assert.Len(t, out.All(), 2)
}

func TestBuild_NightShiftAcrossMidnight(t *testing.T) {
	night := emptyDay(0)
	night.Intervals = []schedule.ShiftInterval{
		shift(at(0, 22, 0), at(1, 1, 0), schedule.PortionMorning),
		shift(at(1, 1, 0), at(1, 2, 0), schedule.PortionLunch),
		shift(at(1, 2, 0), at(1, 6, 0), schedule.PortionAfternoon),
	}

	out, err := Build(compliance.DefaultConfig(), input(at(0, 22, 0), at(1, 7, 0), emptyDay(-1), night, emptyDay(1)))
	require.NoError(t, err)

	assert.Equal(t, []workentry.Segment{
		seg(at(0, 22, 0), at(1, 1, 0), workentry.KindRegular, "am"),
		seg(at(1, 2, 0), at(1, 6, 0), workentry.KindRegular, "pm"),
	}, out.Regular)
	assert.Equal(t, []workentry.Segment{
		seg(at(1, 6, 0), at(1, 7, 0), workentry.KindOvertime, ""),
	}, out.Overtime, "the shift-free next day does not count the planned night again")
}

func TestBuild_OpenAttendanceHasNoSegments(t *testing.T) {
	in := input(at(0, 9, 0), at(0, 17, 0), standardDay(0))
	in.Attendance.ClockOut = nil

	out, err := Build(compliance.DefaultConfig(), in)
	require.NoError(t, err)
	assert.Empty(t, out.All())
}

func TestBuild_StructuralErrors(t *testing.T) {
	_, err := Build(compliance.DefaultConfig(), input(at(0, 17, 0), at(0, 9, 0), standardDay(0)))
	assert.ErrorIs(t, err, attendance.ErrInvalidClockOut)

	broken := standardDay(0)
	broken.Intervals[0].End = broken.Intervals[0].Start
	_, err = Build(compliance.DefaultConfig(), input(at(0, 9, 0), at(0, 17, 0), broken))
	assert.ErrorIs(t, err, compliance.ErrStructurallyInvalidSegment)

	in := input(at(0, 9, 0), at(0, 17, 0), standardDay(0))
	in.Attendance.ClockIn, in.Attendance.ClockOut = nil, nil
	_, err = Build(compliance.DefaultConfig(), in)
	assert.ErrorIs(t, err, attendance.ErrNoClockTimes)

	// A leave ending where it starts is never silently skipped.
	in = input(at(0, 9, 0), at(0, 17, 0), standardDay(0))
	in.Unpaid = []interval.Interval{interval.New(at(0, 15, 0), at(0, 15, 0), "")}
	_, err = Build(compliance.DefaultConfig(), in)
	assert.ErrorIs(t, err, compliance.ErrStructurallyInvalidSegment)
}
