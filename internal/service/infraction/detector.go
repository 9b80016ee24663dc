// Package infraction classifies one attendance against the planned shifts
// of its day. It is stateless: every call receives the calendar, the policy
// and a coverage oracle, and returns the penalty actions to apply.
package infraction

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/compliance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/leave"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/schedule"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/interval"
	"github.com/shopspring/decimal"
)

// Coverage answers whether a period is already accounted for by something
// other than the attendance being classified.
type Coverage interface {
	// LeaveCovers reports whether approved non-penalty leave covers all of
	// [start, end).
	LeaveCovers(ctx context.Context, start, end time.Time) (bool, error)
	// AttendanceCovers reports whether another attendance of the employee
	// overlaps [start, end).
	AttendanceCovers(ctx context.Context, start, end time.Time) (bool, error)
}

type Input struct {
	AttendanceID      string
	EmployeeID        string
	CompanyID         string
	CheckIn           *time.Time
	CheckOut          *time.Time
	Day               schedule.DaySchedule
	CalendarAvailable bool
}

type Outcome struct {
	CheckIn       compliance.SideResult
	CheckOut      compliance.SideResult
	MissingShifts []leave.Portion
	Actions       []leave.PenaltyAction
}

var halfDayPortions = []leave.Portion{leave.PortionAM, leave.PortionPM}

// PortionOf maps a shift label to a penalty portion. Anything that is not
// an afternoon counts as the morning.
func PortionOf(p schedule.Portion) leave.Portion {
	if p == schedule.PortionAfternoon {
		return leave.PortionPM
	}
	return leave.PortionAM
}

type flag struct {
	infraction  leave.InfractionType
	description string
}

// detection accumulates one Detect call.
type detection struct {
	cfg    compliance.Config
	in     Input
	cov    Coverage
	shifts []schedule.ShiftInterval
	loc    *time.Location
	date   time.Time

	out         Outcome
	flagged     map[leave.Portion]flag
	order       []leave.Portion
	fullDayFlag *flag
}

// Detect classifies both sides of an attendance. Half-day penalties are
// limited to one per portion: the first infraction found for a portion
// wins, in the order missing shift before clock-in, late clock-in, early
// clock-out, missing shift after clock-out. Every portion left unflagged
// gets a clear action scoped to this attendance so edits converge.
func Detect(ctx context.Context, cfg compliance.Config, in Input, cov Coverage) (Outcome, error) {
	loc := in.Day.Location
	if loc == nil {
		loc = time.UTC
	}
	d := &detection{
		cfg:     cfg,
		in:      in,
		cov:     cov,
		shifts:  in.Day.Working(),
		loc:     loc,
		date:    leave.DateOf(in.Day.Date, loc),
		flagged: make(map[leave.Portion]flag),
	}
	d.out.CheckIn = compliance.SideResult{Classification: compliance.ClassificationNone, Actual: in.CheckIn}
	d.out.CheckOut = compliance.SideResult{Classification: compliance.ClassificationNone, Actual: in.CheckOut}

	switch {
	case !in.CalendarAvailable:
		d.out.CheckIn.Classification = compliance.ClassificationNoSchedule
		d.out.CheckOut.Classification = compliance.ClassificationNoSchedule
	case len(d.shifts) == 0:
		// Flexible day, nothing to compare against.
	default:
		if in.CheckIn != nil {
			if err := d.checkIn(ctx, *in.CheckIn); err != nil {
				return Outcome{}, err
			}
		}
		if in.CheckOut != nil {
			if err := d.checkOut(ctx, *in.CheckOut); err != nil {
				return Outcome{}, err
			}
		}
	}

	d.buildActions()
	return d.out, nil
}

func (d *detection) checkIn(ctx context.Context, ci time.Time) error {
	for _, s := range d.shifts {
		if s.End.After(ci) {
			break
		}
		covered, err := d.covered(ctx, s.Start, s.End)
		if err != nil {
			return err
		}
		if !covered {
			d.flagMissing(s)
		}
	}

	idx, ok := d.currentOrNext(ci)
	if !ok {
		// Every shift of the day is already over.
		return nil
	}
	s := d.shifts[idx]
	portion := PortionOf(s.Portion)
	delay := positive(ci.Sub(s.Start))

	d.out.CheckIn.Expected = timePtr(s.Start)
	d.out.CheckIn.Portion = portion
	d.out.CheckIn.DelayMinutes = minutes(delay)

	if delay <= d.cfg.LateGrace() {
		return nil
	}
	excused, err := d.cov.LeaveCovers(ctx, s.Start, ci)
	if err != nil {
		return fmt.Errorf("failed to check leave coverage: %w", err)
	}
	if excused {
		return nil
	}

	d.out.CheckIn.Classification = compliance.ClassificationHalfDayLateIn
	d.flag(portion, leave.InfractionLateIn, fmt.Sprintf(
		"Late check-in: arrived %s, expected %s (%d min late)",
		d.clock(ci), d.clock(s.Start), minutes(delay)))
	return nil
}

func (d *detection) checkOut(ctx context.Context, co time.Time) error {
	idx, ok := interval.FindContaining(d.intervals(), co)
	if !ok {
		idx, ok = interval.FindPrevious(d.intervals(), co)
	}
	if !ok {
		idx, _ = interval.FindNext(d.intervals(), co)
	}
	s := d.shifts[idx]
	portion := PortionOf(s.Portion)
	early := positive(s.End.Sub(co))

	d.out.CheckOut.Expected = timePtr(s.End)
	d.out.CheckOut.Portion = portion
	d.out.CheckOut.DelayMinutes = minutes(early)

	full, err := d.fullDay(ctx, co)
	if err != nil {
		return err
	}
	if full {
		return nil
	}

	if err := d.scanForward(ctx, co); err != nil {
		return err
	}

	if early <= d.cfg.EarlyCheckoutGrace() {
		return nil
	}
	excused, err := d.cov.LeaveCovers(ctx, co, s.End)
	if err != nil {
		return fmt.Errorf("failed to check leave coverage: %w", err)
	}
	if excused {
		return nil
	}

	d.out.CheckOut.Classification = compliance.ClassificationHalfDayEarlyOut
	d.flag(portion, leave.InfractionEarlyOut, fmt.Sprintf(
		"Early check-out: left %s, expected %s (%d min early)",
		d.clock(co), d.clock(s.End), minutes(early)))
	return nil
}

// fullDay runs the full-day test and records its verdict. It reports true
// when a full-day penalty replaces half-day evaluation. Planned time missed
// before the clock-in or after the clock-out counts as present when leave or
// another attendance accounts for it.
func (d *detection) fullDay(ctx context.Context, co time.Time) (bool, error) {
	if d.in.CheckIn == nil {
		return false, nil
	}
	ci := *d.in.CheckIn
	first := d.shifts[0]
	last := d.shifts[len(d.shifts)-1]
	if !d.sameDay(ci, co) || !d.sameDay(co, first.Start) {
		return false, nil
	}

	accounted, err := d.worked(ci, co)
	if err != nil {
		return false, err
	}
	for _, missed := range [][2]time.Time{{first.Start, ci}, {co, last.End}} {
		covered, err := d.coveredTime(ctx, missed[0], missed[1])
		if err != nil {
			return false, err
		}
		accounted += covered
	}
	threshold := d.halfDayThreshold()
	underThreshold := threshold > 0 && accounted < threshold

	firstPortion := PortionOf(first.Portion)
	portionEnd := d.portionEnd(firstPortion)
	leftBeforeFirstPortion := false
	if co.Before(portionEnd.Add(-d.cfg.EarlyCheckoutGrace())) {
		covered, err := d.coveredTime(ctx, co, portionEnd)
		if err != nil {
			return false, err
		}
		leftBeforeFirstPortion = covered < d.plannedTime(co, portionEnd)
	}

	if !leftBeforeFirstPortion && !underThreshold {
		return false, nil
	}

	if d.cfg.FullDayTieBreak == compliance.TieBreakMissingShift && d.morningCompleted(ci, co) {
		if afternoon, ok := d.firstOfPortion(leave.PortionPM); ok {
			d.out.CheckOut.Classification = compliance.ClassificationMissingShift
			d.flag(leave.PortionPM, leave.InfractionMissingShift, fmt.Sprintf(
				"Missing afternoon shift: left %s after completing the morning, afternoon starts %s",
				d.clock(co), d.clock(afternoon.Start)))
			return true, nil
		}
	}

	d.out.CheckIn.Classification = compliance.ClassificationFullDay
	d.out.CheckOut.Classification = compliance.ClassificationFullDay
	d.fullDayFlag = &flag{
		infraction: leave.InfractionEarlyOut,
		description: fmt.Sprintf(
			"Full-day absence: present %s-%s, accounted %s of required %s",
			d.clock(ci), d.clock(co), formatDuration(accounted), formatDuration(threshold)),
	}
	return true, nil
}

// plannedPieces clips the working shifts to [start, end).
func (d *detection) plannedPieces(start, end time.Time) []interval.Interval {
	var out []interval.Interval
	for _, s := range d.shifts {
		if piece, ok := s.Interval().Intersect(start, end); ok {
			out = append(out, piece)
		}
	}
	return out
}

func (d *detection) plannedTime(start, end time.Time) time.Duration {
	return interval.Total(d.plannedPieces(start, end))
}

// coveredTime sums the planned pieces of [start, end) that leave or another
// attendance accounts for.
func (d *detection) coveredTime(ctx context.Context, start, end time.Time) (time.Duration, error) {
	var total time.Duration
	for _, piece := range d.plannedPieces(start, end) {
		covered, err := d.covered(ctx, piece.Start, piece.End)
		if err != nil {
			return 0, err
		}
		if covered {
			total += piece.Duration()
		}
	}
	return total, nil
}

// scanForward flags the first uncovered shift starting at or after the
// clock-out. Covered shifts are skipped and the scan stops at the first gap.
func (d *detection) scanForward(ctx context.Context, co time.Time) error {
	for _, s := range d.shifts {
		if s.Start.Before(co) {
			continue
		}
		covered, err := d.covered(ctx, s.Start, s.End)
		if err != nil {
			return err
		}
		if covered {
			continue
		}
		d.flagMissing(s)
		return nil
	}
	return nil
}

func (d *detection) covered(ctx context.Context, start, end time.Time) (bool, error) {
	ok, err := d.cov.LeaveCovers(ctx, start, end)
	if err != nil {
		return false, fmt.Errorf("failed to check leave coverage: %w", err)
	}
	if ok {
		return true, nil
	}
	ok, err = d.cov.AttendanceCovers(ctx, start, end)
	if err != nil {
		return false, fmt.Errorf("failed to check attendance coverage: %w", err)
	}
	return ok, nil
}

func (d *detection) flagMissing(s schedule.ShiftInterval) {
	portion := PortionOf(s.Portion)
	if _, done := d.flagged[portion]; done {
		return
	}
	d.out.MissingShifts = append(d.out.MissingShifts, portion)
	d.flag(portion, leave.InfractionMissingShift, fmt.Sprintf(
		"Missing shift: no attendance or leave for %s-%s",
		d.clock(s.Start), d.clock(s.End)))
}

func (d *detection) flag(portion leave.Portion, infraction leave.InfractionType, description string) {
	if _, done := d.flagged[portion]; done {
		return
	}
	d.flagged[portion] = flag{infraction: infraction, description: description}
	d.order = append(d.order, portion)
}

func (d *detection) buildActions() {
	base := leave.EnsurePenaltyRequest{
		EmployeeID:          d.in.EmployeeID,
		CompanyID:           d.in.CompanyID,
		Date:                d.date,
		TriggerAttendanceID: d.in.AttendanceID,
	}
	clear := func(portions ...leave.Portion) leave.PenaltyAction {
		return leave.PenaltyAction{Op: leave.ActionClear, Clear: leave.PenaltyFilter{
			EmployeeID:          d.in.EmployeeID,
			Date:                d.date,
			Portions:            portions,
			Types:               leave.AllInfractionTypes,
			TriggerAttendanceID: d.in.AttendanceID,
		}}
	}

	if d.fullDayFlag != nil {
		req := base
		req.Portion = leave.PortionFull
		req.InfractionType = d.fullDayFlag.infraction
		req.Description = d.fullDayFlag.description
		req.StartAt = d.shifts[0].Start
		req.EndAt = d.shifts[len(d.shifts)-1].End
		d.out.Actions = []leave.PenaltyAction{{Op: leave.ActionEnsureFullDay, Ensure: req}}
		return
	}

	d.out.Actions = append(d.out.Actions, clear(leave.PortionFull))
	for _, portion := range halfDayPortions {
		if _, ok := d.flagged[portion]; !ok {
			d.out.Actions = append(d.out.Actions, clear(portion))
		}
	}
	for _, portion := range d.order {
		f := d.flagged[portion]
		req := base
		req.Portion = portion
		req.InfractionType = f.infraction
		req.Description = f.description
		req.StartAt, req.EndAt = d.portionBounds(portion)
		d.out.Actions = append(d.out.Actions, leave.PenaltyAction{Op: leave.ActionEnsureHalfDay, Ensure: req})
	}
}

// currentOrNext returns the shift the clock-in belongs to: the one still
// running at ci, otherwise the next one to start.
func (d *detection) currentOrNext(ci time.Time) (int, bool) {
	ivs := d.intervals()
	if idx, ok := interval.FindContaining(ivs, ci); ok && ivs[idx].End.After(ci) {
		return idx, true
	}
	for i, iv := range ivs {
		if iv.End.After(ci) {
			return i, true
		}
	}
	return -1, false
}

func (d *detection) intervals() []interval.Interval {
	out := make([]interval.Interval, len(d.shifts))
	for i, s := range d.shifts {
		out[i] = s.Interval()
	}
	return out
}

// portionBounds spans every working shift of the portion.
func (d *detection) portionBounds(portion leave.Portion) (time.Time, time.Time) {
	var start, end time.Time
	for _, s := range d.shifts {
		if PortionOf(s.Portion) != portion {
			continue
		}
		if start.IsZero() || s.Start.Before(start) {
			start = s.Start
		}
		if s.End.After(end) {
			end = s.End
		}
	}
	if start.IsZero() {
		return d.shifts[0].Start, d.shifts[len(d.shifts)-1].End
	}
	return start, end
}

func (d *detection) portionEnd(portion leave.Portion) time.Time {
	_, end := d.portionBounds(portion)
	return end
}

func (d *detection) firstOfPortion(portion leave.Portion) (schedule.ShiftInterval, bool) {
	for _, s := range d.shifts {
		if PortionOf(s.Portion) == portion {
			return s, true
		}
	}
	return schedule.ShiftInterval{}, false
}

// morningCompleted reports an on-time arrival for the morning and a
// departure no earlier than its end, both within grace.
func (d *detection) morningCompleted(ci, co time.Time) bool {
	if _, ok := d.firstOfPortion(leave.PortionAM); !ok {
		return false
	}
	start, end := d.portionBounds(leave.PortionAM)
	return !ci.After(start.Add(d.cfg.LateGrace())) && !co.Before(end.Add(-d.cfg.EarlyCheckoutGrace()))
}

// worked is the attendance span minus any planned lunch.
func (d *detection) worked(ci, co time.Time) (time.Duration, error) {
	var lunches []interval.Interval
	for _, s := range d.in.Day.Intervals {
		if s.IsLunch() {
			lunches = append(lunches, s.Interval())
		}
	}
	rest, err := interval.Subtract([]interval.Interval{interval.New(ci, co, "")}, lunches)
	if err != nil {
		return 0, err
	}
	return interval.Total(rest), nil
}

// halfDayThreshold is half of the configured daily hours, or half of the
// planned working time when the schedule does not configure them.
func (d *detection) halfDayThreshold() time.Duration {
	if hpd := d.in.Day.HoursPerDay; hpd.Valid && hpd.Decimal.IsPositive() {
		seconds := hpd.Decimal.Mul(decimal.NewFromInt(3600)).Div(decimal.NewFromInt(2))
		return time.Duration(seconds.IntPart()) * time.Second
	}
	return d.in.Day.PlannedDuration() / 2
}

func (d *detection) sameDay(a, b time.Time) bool {
	return schedule.DayKey(a.In(d.loc)) == schedule.DayKey(b.In(d.loc))
}

func (d *detection) clock(t time.Time) string {
	return t.In(d.loc).Format("15:04")
}

func positive(v time.Duration) time.Duration {
	if v < 0 {
		return 0
	}
	return v
}

func minutes(v time.Duration) int {
	return int(v / time.Minute)
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func formatDuration(v time.Duration) string {
	v = v.Round(time.Minute)
	return fmt.Sprintf("%dh%02dm", int(v.Hours()), int(v.Minutes())%60)
}
