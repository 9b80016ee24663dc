package compliance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/compliance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/employee"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/leave"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/notification"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/schedule"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/workentry"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/interval"
	"github.com/cmlabs-hris/attendance-engine/internal/service/infraction"
	"github.com/cmlabs-hris/attendance-engine/internal/service/segment"
	"github.com/shopspring/decimal"
)

// maxDetectionSweeps bounds how often a top-level pass repeats detection
// while penalties keep changing.
const maxDetectionSweeps = 4

type complianceServiceImpl struct {
	cfg            compliance.Config
	locker         compliance.Locker
	calendar       schedule.CalendarProvider
	employeeRepo   employee.EmployeeRepository
	attendanceRepo attendance.AttendanceRepository
	penaltyRepo    leave.PenaltyRepository
	leaveRepo      leave.LeaveRepository
	penalties      leave.PenaltyManager
	reconciler     workentry.Reconciler
	hook           notification.Hook
}

// NewComplianceService wires the pipeline. The hook hears about penalties
// created by a top-level pass once that pass has committed; it may be nil.
func NewComplianceService(
	cfg compliance.Config,
	locker compliance.Locker,
	calendar schedule.CalendarProvider,
	employeeRepo employee.EmployeeRepository,
	attendanceRepo attendance.AttendanceRepository,
	penaltyRepo leave.PenaltyRepository,
	leaveRepo leave.LeaveRepository,
	penalties leave.PenaltyManager,
	reconciler workentry.Reconciler,
	hook notification.Hook,
) compliance.Service {
	return &complianceServiceImpl{
		cfg:            cfg,
		locker:         locker,
		calendar:       calendar,
		employeeRepo:   employeeRepo,
		attendanceRepo: attendanceRepo,
		penaltyRepo:    penaltyRepo,
		leaveRepo:      leaveRepo,
		penalties:      penalties,
		reconciler:     reconciler,
		hook:           hook,
	}
}

// pass is the state shared by every attendance of one invocation.
type pass struct {
	cfg      compliance.Config
	employee employee.Employee
	loc      *time.Location
	days     map[string]dayPlan
}

type dayPlan struct {
	schedule  schedule.DaySchedule
	available bool
}

// ProcessAttendance implements compliance.Service.
func (s *complianceServiceImpl) ProcessAttendance(ctx context.Context, attendanceID string) (compliance.BatchResult, error) {
	a, err := s.attendanceRepo.GetByID(ctx, attendanceID)
	if err != nil {
		return compliance.BatchResult{}, fmt.Errorf("failed to get attendance: %w", err)
	}

	loc, err := s.calendar.ResolveLocation(ctx, a.EmployeeID)
	if err != nil {
		return compliance.BatchResult{}, err
	}

	from := schedule.StartOfDay(a.Anchor(), loc)
	to := from.AddDate(0, 0, 1)
	if a.ClockOut != nil {
		if last := schedule.StartOfDay(*a.ClockOut, loc).AddDate(0, 0, 1); last.After(to) {
			to = last
		}
	}
	return s.RecomputeRange(ctx, a.EmployeeID, from, to)
}

// RecomputeRange implements compliance.Service.
func (s *complianceServiceImpl) RecomputeRange(ctx context.Context, employeeID string, from, to time.Time) (compliance.BatchResult, error) {
	if to.Before(from) {
		return compliance.BatchResult{}, compliance.ErrInvalidDateRange
	}

	ctx = compliance.WithGuard(ctx)
	if compliance.IsNested(ctx) {
		var batch compliance.BatchResult
		err := s.recomputeLocked(ctx, employeeID, from, to, &batch)
		return batch, err
	}

	var batch compliance.BatchResult
	err := s.locker.WithEmployeeLock(ctx, employeeID, func(ctx context.Context) error {
		batch = compliance.BatchResult{}
		return s.recomputeLocked(ctx, employeeID, from, to, &batch)
	})
	if err != nil {
		if errors.Is(err, compliance.ErrReentrancyDepthExceeded) {
			slog.Error("Recompute aborted", "employee_id", employeeID, "error", err)
		}
		return compliance.BatchResult{}, err
	}

	s.announce(ctx, employeeID, batch)
	return batch, nil
}

// HandleLeaveChange implements compliance.Service.
func (s *complianceServiceImpl) HandleLeaveChange(ctx context.Context, change compliance.LeaveChange) (compliance.BatchResult, error) {
	if !change.End.After(change.Start) {
		return compliance.BatchResult{}, fmt.Errorf("%w: leave %s", leave.ErrInvalidLeaveWindow, change.LeaveID)
	}

	loc, err := s.calendar.ResolveLocation(ctx, change.EmployeeID)
	if err != nil {
		return compliance.BatchResult{}, err
	}

	// A night shift anchored on the previous day can reach into the leave.
	from := schedule.StartOfDay(change.Start, loc).AddDate(0, 0, -1)
	to := schedule.StartOfDay(change.End.Add(-time.Nanosecond), loc).AddDate(0, 0, 1)

	slog.Info("Leave change received",
		"employee_id", change.EmployeeID,
		"leave_id", change.LeaveID,
		"from", from,
		"to", to)

	return s.RecomputeRange(ctx, change.EmployeeID, from, to)
}

// Recompute implements compliance.Service. Without a guard on ctx the
// request is treated as a fresh top-level invocation.
func (s *complianceServiceImpl) Recompute(ctx context.Context, req compliance.RecomputeRequest) error {
	if _, ok := compliance.GuardFrom(ctx); !ok {
		var err error
		switch {
		case req.Reason == compliance.ReasonLeaveChange:
			_, err = s.HandleLeaveChange(ctx, compliance.LeaveChange{
				EmployeeID: req.EmployeeID,
				LeaveID:    req.LeaveID,
				Start:      req.From,
				End:        req.To,
			})
		case req.AttendanceID != "":
			_, err = s.ProcessAttendance(ctx, req.AttendanceID)
		default:
			_, err = s.RecomputeRange(ctx, req.EmployeeID, req.From, req.To)
		}
		return err
	}

	if req.AttendanceID == "" {
		var batch compliance.BatchResult
		return s.recomputeLocked(ctx, req.EmployeeID, req.From, req.To, &batch)
	}

	a, err := s.attendanceRepo.GetByID(ctx, req.AttendanceID)
	if err != nil {
		return fmt.Errorf("failed to get attendance: %w", err)
	}
	p, err := s.newPass(ctx, a.EmployeeID)
	if err != nil {
		return err
	}
	_, err = s.process(ctx, p, a)
	return err
}

// recomputeLocked runs every attendance anchored in [from, to) in clock-in
// order. Pure failures are recorded per attendance; anything else aborts.
func (s *complianceServiceImpl) recomputeLocked(ctx context.Context, employeeID string, from, to time.Time, batch *compliance.BatchResult) error {
	p, err := s.newPass(ctx, employeeID)
	if err != nil {
		return err
	}

	list, err := s.attendanceRepo.ListByEmployeeBetween(ctx, employeeID, from, to)
	if err != nil {
		return fmt.Errorf("failed to list attendances: %w", err)
	}

	if compliance.IsNested(ctx) {
		return s.sweep(ctx, p, list, batch)
	}

	// A penalty written for a later attendance can change what an earlier
	// one should carry, so detection repeats until a sweep writes nothing.
	changes := make(map[string][]leave.PenaltyChange)
	for n := 1; ; n++ {
		var current compliance.BatchResult
		if err := s.sweep(ctx, p, list, &current); err != nil {
			return err
		}

		settled := true
		for _, r := range current.Results {
			if len(r.PenaltyChanges) > 0 {
				settled = false
				changes[r.AttendanceID] = append(changes[r.AttendanceID], r.PenaltyChanges...)
			}
		}

		if settled || n == maxDetectionSweeps {
			if !settled {
				slog.Warn("Penalties still changing after final sweep",
					"employee_id", employeeID,
					"sweeps", n)
			}
			for i := range current.Results {
				current.Results[i].PenaltyChanges = changes[current.Results[i].AttendanceID]
			}
			*batch = current
			return nil
		}
	}
}

// sweep processes list once in clock-in order.
func (s *complianceServiceImpl) sweep(ctx context.Context, p *pass, list []attendance.Attendance, batch *compliance.BatchResult) error {
	employeeID := p.employee.ID
	for _, a := range list {
		result, err := s.process(ctx, p, a)
		if err != nil {
			if compliance.IsPureFailure(err) {
				slog.Warn("Attendance skipped",
					"employee_id", employeeID,
					"attendance_id", a.ID,
					"error", err)
				batch.Failures = append(batch.Failures, compliance.Failure{AttendanceID: a.ID, Error: err.Error()})
				continue
			}
			return fmt.Errorf("attendance %s: %w", a.ID, err)
		}
		batch.Results = append(batch.Results, result)
	}
	return nil
}

// announce hands the hook every penalty the committed batch created that is
// still active. Records retracted later in the same pass stay silent.
func (s *complianceServiceImpl) announce(ctx context.Context, employeeID string, batch compliance.BatchResult) {
	if s.hook == nil {
		return
	}

	seen := make(map[string]struct{})
	for _, r := range batch.Results {
		for _, c := range r.PenaltyChanges {
			if c.Op != leave.ChangeCreated {
				continue
			}
			if _, ok := seen[c.PenaltyID]; ok {
				continue
			}
			seen[c.PenaltyID] = struct{}{}

			current, err := s.penaltyRepo.GetByID(ctx, c.PenaltyID)
			if err != nil {
				slog.Warn("Penalty notice skipped",
					"employee_id", employeeID,
					"penalty_id", c.PenaltyID,
					"error", err)
				continue
			}
			if current.IsActive() {
				s.hook.PenaltyActivated(ctx, current)
			}
		}
	}
}

func (s *complianceServiceImpl) newPass(ctx context.Context, employeeID string) (*pass, error) {
	emp, err := s.employeeRepo.GetByID(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	loc, err := s.calendar.ResolveLocation(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	return &pass{
		cfg:      s.cfg,
		employee: emp,
		loc:      loc,
		days:     make(map[string]dayPlan),
	}, nil
}

// process runs detection, penalty application, segment building and
// reconciliation for one attendance. Nested passes skip the first two.
func (s *complianceServiceImpl) process(ctx context.Context, p *pass, a attendance.Attendance) (compliance.Result, error) {
	result := compliance.Result{
		AttendanceID:  a.ID,
		EmployeeID:    a.EmployeeID,
		WorkedHours:   decimal.Zero,
		OvertimeHours: decimal.Zero,
	}

	if a.ClockIn == nil && a.ClockOut == nil {
		return result, attendance.ErrNoClockTimes
	}
	if err := a.Validate(); err != nil {
		return result, err
	}

	anchor, err := s.day(ctx, p, schedule.StartOfDay(a.Anchor(), p.loc))
	if err != nil {
		return result, err
	}
	result.CalendarAvailable = anchor.available

	days, err := s.segmentDays(ctx, p, a)
	if err != nil {
		return result, err
	}
	// Malformed shifts abort before anything is written.
	for _, d := range days {
		for _, iv := range d.Intervals {
			if err := interval.Validate(iv.Interval()); err != nil {
				return result, err
			}
		}
	}

	if compliance.IsNested(ctx) {
		result.SkippedDetection = true
	} else {
		outcome, err := infraction.Detect(ctx, p.cfg, infraction.Input{
			AttendanceID:      a.ID,
			EmployeeID:        a.EmployeeID,
			CompanyID:         a.CompanyID,
			CheckIn:           a.ClockIn,
			CheckOut:          a.ClockOut,
			Day:               anchor.schedule,
			CalendarAvailable: anchor.available,
		}, &coverage{
			leaveRepo:      s.leaveRepo,
			attendanceRepo: s.attendanceRepo,
			employeeID:     a.EmployeeID,
			attendanceID:   a.ID,
		})
		if err != nil {
			return result, err
		}
		result.CheckIn = outcome.CheckIn
		result.CheckOut = outcome.CheckOut
		result.MissingShifts = outcome.MissingShifts

		changes, err := s.penalties.Apply(ctx, outcome.Actions)
		if err != nil {
			return result, err
		}
		result.PenaltyChanges = changes
	}

	in := segment.Input{
		Attendance:        a,
		Days:              days,
		CalendarAvailable: anchor.available,
	}
	if span, ok := a.Span(); ok {
		in.Penalties, err = s.exclusionPenalties(ctx, a.EmployeeID, span, days, p.loc)
		if err != nil {
			return result, err
		}
		in.Unpaid, err = s.leaveRepo.FindUnpaidIntervals(ctx, a.EmployeeID, span.Start, span.End)
		if err != nil {
			return result, fmt.Errorf("failed to find unpaid leave: %w", err)
		}
	}

	out, err := segment.Build(p.cfg, in)
	if err != nil {
		return result, err
	}

	report, err := s.reconciler.Reconcile(ctx, workentry.ReconcileInput{
		EmployeeID:   a.EmployeeID,
		ContractID:   p.employee.ContractID,
		AttendanceID: a.ID,
		Segments:     out.All(),
	})
	if err != nil {
		return result, err
	}
	result.Entries = report
	result.WorkedHours = hours(out.Worked())
	result.OvertimeHours = hours(out.OvertimeDuration())

	slog.Info("Attendance reconciled",
		"employee_id", a.EmployeeID,
		"attendance_id", a.ID,
		"nested", result.SkippedDetection,
		"penalty_changes", len(result.PenaltyChanges),
		"entries_created", len(report.Created),
		"entries_updated", len(report.Updated),
		"entries_deactivated", len(report.Deactivated),
		"conflicts", len(report.Conflicts))

	return result, nil
}

// day resolves one local day once per pass. A missing calendar is a plan
// without shifts, never an error.
func (s *complianceServiceImpl) day(ctx context.Context, p *pass, date time.Time) (dayPlan, error) {
	key := schedule.DayKey(date)
	if plan, ok := p.days[key]; ok {
		return plan, nil
	}

	ds, err := s.calendar.ResolveDayIntervals(ctx, p.employee.ID, date, p.loc)
	plan := dayPlan{schedule: ds, available: true}
	if err != nil {
		if !errors.Is(err, schedule.ErrCalendarUnavailable) {
			return dayPlan{}, err
		}
		plan = dayPlan{
			schedule: schedule.DaySchedule{Date: date, Location: p.loc},
		}
	}
	p.days[key] = plan
	return plan, nil
}

// segmentDays returns the plans from the day before clock-in to the day of
// clock-out, so a night shift started the previous evening is included.
func (s *complianceServiceImpl) segmentDays(ctx context.Context, p *pass, a attendance.Attendance) ([]schedule.DaySchedule, error) {
	first := schedule.StartOfDay(a.Anchor(), p.loc)
	last := first
	if a.ClockOut != nil {
		last = schedule.StartOfDay(*a.ClockOut, p.loc)
	}

	var days []schedule.DaySchedule
	for d := first.AddDate(0, 0, -1); !d.After(last); d = d.AddDate(0, 0, 1) {
		plan, err := s.day(ctx, p, d)
		if err != nil {
			return nil, err
		}
		days = append(days, plan.schedule)
	}
	return days, nil
}

// exclusionPenalties gathers active penalties overlapping the span or dated
// on any of the days, without duplicates.
func (s *complianceServiceImpl) exclusionPenalties(ctx context.Context, employeeID string, span interval.Interval, days []schedule.DaySchedule, loc *time.Location) ([]leave.PenaltyLeave, error) {
	overlapping, err := s.penaltyRepo.FindActivePenaltiesOverlapping(ctx, employeeID, span.Start, span.End)
	if err != nil {
		return nil, fmt.Errorf("failed to find penalties: %w", err)
	}

	seen := make(map[string]struct{}, len(overlapping))
	out := make([]leave.PenaltyLeave, 0, len(overlapping))
	add := func(list []leave.PenaltyLeave) {
		for _, p := range list {
			if _, ok := seen[p.ID]; ok {
				continue
			}
			seen[p.ID] = struct{}{}
			out = append(out, p)
		}
	}
	add(overlapping)

	for _, d := range days {
		dated, err := s.penaltyRepo.FindActivePenalties(ctx, employeeID, leave.DateOf(d.Date, loc))
		if err != nil {
			return nil, fmt.Errorf("failed to find penalties: %w", err)
		}
		add(dated)
	}
	return out, nil
}

func hours(d time.Duration) decimal.Decimal {
	return decimal.NewFromInt(int64(d / time.Second)).Div(decimal.NewFromInt(3600)).Round(2)
}
