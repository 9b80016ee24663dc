// Package segment computes the worked, overtime and deduction periods of one
// attendance from its span, the planned days it touches and the time that
// must not be paid.
package segment

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/compliance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/leave"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/schedule"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/workentry"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/interval"
	"github.com/cmlabs-hris/attendance-engine/internal/service/infraction"
)

const overtimeTag = "overtime"

// Input is everything one build needs. Days must cover every local day the
// attendance touches plus the day before, sorted by date.
type Input struct {
	Attendance        attendance.Attendance
	Days              []schedule.DaySchedule
	CalendarAvailable bool

	// Penalties are the active penalties overlapping the span or dated on
	// one of the days. All of them are exclusions; those triggered by the
	// attendance also become deduction segments.
	Penalties []leave.PenaltyLeave

	// Unpaid are approved unpaid leave intervals overlapping the span.
	Unpaid []interval.Interval
}

// Output groups the segments by kind, each sorted by start.
type Output struct {
	Regular    []workentry.Segment
	Overtime   []workentry.Segment
	Deductions []workentry.Segment
}

// All returns every segment in chronological order.
func (o Output) All() []workentry.Segment {
	all := make([]workentry.Segment, 0, len(o.Regular)+len(o.Overtime)+len(o.Deductions))
	all = append(all, o.Regular...)
	all = append(all, o.Overtime...)
	all = append(all, o.Deductions...)
	sortSegments(all)
	return all
}

func (o Output) Worked() time.Duration {
	return total(o.Regular)
}

func (o Output) OvertimeDuration() time.Duration {
	return total(o.Overtime)
}

// Build computes the segments of one attendance. An open attendance yields
// no segments; a span with clock-out not after clock-in, or a malformed
// shift interval, fails with a structural error.
func Build(cfg compliance.Config, in Input) (Output, error) {
	a := in.Attendance
	if a.ClockIn == nil && a.ClockOut == nil {
		return Output{}, attendance.ErrNoClockTimes
	}
	if err := a.Validate(); err != nil {
		return Output{}, err
	}
	span, ok := a.Span()
	if !ok {
		return Output{}, nil
	}

	var planned []interval.Interval
	for _, day := range in.Days {
		for _, s := range day.Intervals {
			planned = append(planned, s.Interval())
		}
	}
	if err := interval.Validate(planned...); err != nil {
		return Output{}, fmt.Errorf("schedule for %s: %w", a.EmployeeID, err)
	}

	var regular, overtime []interval.Interval
	if !in.CalendarAvailable {
		regular = []interval.Interval{interval.New(span.Start, span.End, string(leave.PortionAM))}
	} else {
		regular = regularPieces(span, in.Days)
		var err error
		if overtime, err = overtimePieces(cfg, span, in.Days, planned); err != nil {
			return Output{}, err
		}
	}

	exclusions := append([]interval.Interval(nil), in.Unpaid...)
	for _, p := range in.Penalties {
		if p.IsActive() {
			exclusions = append(exclusions, p.Interval())
		}
	}

	if err := interval.Validate(exclusions...); err != nil {
		return Output{}, fmt.Errorf("leave for %s: %w", a.EmployeeID, err)
	}

	regular, err := interval.Subtract(interval.Merge(regular), exclusions)
	if err != nil {
		return Output{}, err
	}
	overtime, err = interval.Subtract(interval.Merge(overtime), exclusions)
	if err != nil {
		return Output{}, err
	}
	deducted, err := deductions(a.ID, in.Penalties, in.Days)
	if err != nil {
		return Output{}, err
	}

	out := Output{
		Regular:    toSegments(regular, workentry.KindRegular),
		Overtime:   toSegments(overtime, workentry.KindOvertime),
		Deductions: deducted,
	}
	return out, nil
}

// regularPieces intersects the span with every working interval, tagged by
// portion.
func regularPieces(span interval.Interval, days []schedule.DaySchedule) []interval.Interval {
	var out []interval.Interval
	for _, day := range days {
		for _, s := range day.Working() {
			piece, ok := span.Intersect(s.Start, s.End)
			if !ok {
				continue
			}
			piece.Tag = string(infraction.PortionOf(s.Portion))
			out = append(out, piece)
		}
	}
	return out
}

// overtimePieces collects the time after each day's last shift, kept only
// when it reaches the minimum, and the whole share of a day with no shift.
// Planned time of any day is never overtime.
func overtimePieces(cfg compliance.Config, span interval.Interval, days []schedule.DaySchedule, planned []interval.Interval) ([]interval.Interval, error) {
	var (
		out     []interval.Interval
		claimed []interval.Interval
		idle    []interval.Interval
	)

	for i, day := range days {
		dayStart, dayEnd := day.DayWindow()
		if !span.Overlaps(interval.New(dayStart, dayEnd, "")) {
			continue
		}

		working := day.Working()
		if len(working) == 0 {
			if piece, ok := span.Intersect(dayStart, dayEnd); ok {
				piece.Tag = overtimeTag
				idle = append(idle, piece)
			}
			continue
		}

		lastEnd := working[len(working)-1].End
		for _, s := range working {
			if s.End.After(lastEnd) {
				lastEnd = s.End
			}
		}
		boundary := span.End
		if next, ok := nextShiftStart(days[i+1:], lastEnd); ok && next.Before(boundary) {
			boundary = next
		}

		window := interval.New(lastEnd, boundary, overtimeTag)
		if !window.Valid() {
			continue
		}
		claimed = append(claimed, window)

		piece, ok := window.Intersect(span.Start, span.End)
		if !ok {
			continue
		}
		pieces, err := interval.Subtract([]interval.Interval{piece}, planned)
		if err != nil {
			return nil, err
		}
		for _, f := range pieces {
			if f.Duration() >= cfg.MinimumOvertime() {
				out = append(out, f)
			}
		}
	}

	// A day without shifts only contributes what no earlier shift already
	// claimed as its own post-shift time.
	unclaimed, err := interval.Subtract(idle, claimed)
	if err != nil {
		return nil, err
	}
	rest, err := interval.Subtract(unclaimed, planned)
	if err != nil {
		return nil, err
	}
	return append(out, rest...), nil
}

func nextShiftStart(days []schedule.DaySchedule, after time.Time) (time.Time, bool) {
	for _, day := range days {
		for _, s := range day.Working() {
			if !s.Start.Before(after) {
				return s.Start, true
			}
		}
	}
	return time.Time{}, false
}

// deductions turns penalties raised by this attendance into deduction
// segments over their working time.
func deductions(attendanceID string, penalties []leave.PenaltyLeave, days []schedule.DaySchedule) ([]workentry.Segment, error) {
	var lunch []interval.Interval
	for _, day := range days {
		for _, s := range day.Intervals {
			if s.IsLunch() {
				lunch = append(lunch, s.Interval())
			}
		}
	}

	var out []workentry.Segment
	for _, p := range penalties {
		if !p.IsActive() || p.TriggerAttendanceID != attendanceID {
			continue
		}
		id := p.ID
		pieces, err := interval.Subtract([]interval.Interval{p.Interval()}, lunch)
		if err != nil {
			return nil, fmt.Errorf("penalty %s: %w", p.ID, err)
		}
		for _, f := range pieces {
			out = append(out, workentry.Segment{
				Start:         f.Start,
				End:           f.End,
				Kind:          workentry.KindPenaltyDeduction,
				Portion:       string(p.Portion),
				SourceLeaveID: &id,
			})
		}
	}
	sortSegments(out)
	return out, nil
}

func toSegments(intervals []interval.Interval, kind workentry.Kind) []workentry.Segment {
	out := make([]workentry.Segment, 0, len(intervals))
	for _, iv := range intervals {
		portion := iv.Tag
		if kind == workentry.KindOvertime {
			portion = ""
		}
		out = append(out, workentry.Segment{
			Start:   iv.Start,
			End:     iv.End,
			Kind:    kind,
			Portion: portion,
		})
	}
	sortSegments(out)
	return out
}

func total(segments []workentry.Segment) time.Duration {
	var d time.Duration
	for _, s := range segments {
		d += s.End.Sub(s.Start)
	}
	return d
}
