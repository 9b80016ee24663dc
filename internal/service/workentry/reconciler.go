package workentry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/workentry"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/interval"
)

const (
	reasonOverlapsValidated = "segment overlaps a validated entry"
	reasonValidatedRetained = "validated entry retained without a matching segment"
	reasonBecameValidated   = "entry was validated during reconciliation"
)

type reconcilerImpl struct {
	workEntryRepo workentry.WorkEntryRepository
}

func NewReconciler(workEntryRepo workentry.WorkEntryRepository) workentry.Reconciler {
	return &reconcilerImpl{workEntryRepo: workEntryRepo}
}

// Reconcile implements workentry.Reconciler.
func (r *reconcilerImpl) Reconcile(ctx context.Context, in workentry.ReconcileInput) (workentry.Report, error) {
	var report workentry.Report

	segments := make([]workentry.Segment, len(in.Segments))
	copy(segments, in.Segments)
	for _, s := range segments {
		if err := interval.Validate(s.Interval()); err != nil {
			return report, fmt.Errorf("attendance %s: %w", in.AttendanceID, err)
		}
	}
	sortSegments(segments)

	existing, err := r.workEntryRepo.FindByAttendance(ctx, in.AttendanceID)
	if err != nil {
		return report, fmt.Errorf("failed to find work entries: %w", err)
	}

	var validated, mutable []workentry.WorkEntry
	for _, e := range existing {
		switch {
		case e.IsValidated() && e.Active:
			validated = append(validated, e)
		case !e.IsValidated():
			mutable = append(mutable, e)
		}
	}

	targets, err := r.routeAroundValidated(segments, validated, &report)
	if err != nil {
		return report, fmt.Errorf("attendance %s: %w", in.AttendanceID, err)
	}

	consumed := make(map[string]bool, len(mutable))
	assigned := make([]*workentry.WorkEntry, len(targets))

	// Exact matches first so an unchanged ledger stays untouched.
	for i, seg := range targets {
		for j := range mutable {
			e := &mutable[j]
			if consumed[e.ID] || !seg.Matches(*e) || e.Portion != seg.Portion {
				continue
			}
			consumed[e.ID] = true
			assigned[i] = e
			break
		}
	}

	// Remaining segments reuse leftover entries in chronological order.
	next := 0
	for i := range targets {
		if assigned[i] != nil {
			continue
		}
		for next < len(mutable) && consumed[mutable[next].ID] {
			next++
		}
		if next < len(mutable) {
			consumed[mutable[next].ID] = true
			assigned[i] = &mutable[next]
			next++
		}
	}

	for i, seg := range targets {
		if assigned[i] == nil {
			created, err := r.workEntryRepo.Create(ctx, newEntry(in, seg))
			if err != nil {
				return report, fmt.Errorf("failed to create work entry: %w", err)
			}
			report.Created = append(report.Created, created.ID)
			slog.Debug("Work entry created", "entry_id", created.ID, "attendance_id", in.AttendanceID, "kind", seg.Kind)
			continue
		}

		e := *assigned[i]
		if upToDate(e, in, seg) {
			report.Unchanged = append(report.Unchanged, e.ID)
			continue
		}
		apply(&e, in, seg)
		if err := r.workEntryRepo.Update(ctx, e); err != nil {
			if errors.Is(err, workentry.ErrEntryValidated) {
				report.Conflicts = append(report.Conflicts, conflictOf(e, seg, reasonBecameValidated))
				continue
			}
			return report, fmt.Errorf("failed to update work entry: %w", err)
		}
		report.Updated = append(report.Updated, e.ID)
		slog.Debug("Work entry updated", "entry_id", e.ID, "attendance_id", in.AttendanceID, "kind", seg.Kind)
	}

	for _, e := range mutable {
		if consumed[e.ID] || !e.Active {
			continue
		}
		if err := r.workEntryRepo.Deactivate(ctx, e.ID); err != nil {
			if errors.Is(err, workentry.ErrEntryValidated) {
				report.Conflicts = append(report.Conflicts, workentry.Conflict{
					EntryID: e.ID, Start: e.Start, End: e.End, Kind: e.Kind, Reason: reasonBecameValidated,
				})
				continue
			}
			return report, fmt.Errorf("failed to deactivate work entry: %w", err)
		}
		report.Deactivated = append(report.Deactivated, e.ID)
		slog.Debug("Work entry deactivated", "entry_id", e.ID, "attendance_id", in.AttendanceID)
	}

	if err := r.deduplicate(ctx, in, segments, existing, &report); err != nil {
		return report, err
	}

	report.Partial = len(report.Conflicts) > 0
	return report, nil
}

// routeAroundValidated drops the parts of each segment already held by a
// validated entry and records a conflict for every validated entry that
// disagrees with the target set.
func (r *reconcilerImpl) routeAroundValidated(segments []workentry.Segment, validated []workentry.WorkEntry, report *workentry.Report) ([]workentry.Segment, error) {
	if len(validated) == 0 {
		return segments, nil
	}

	satisfied := make(map[string]bool, len(validated))
	overlapped := make(map[string]bool, len(validated))
	var targets []workentry.Segment

	for _, seg := range segments {
		var exact *workentry.WorkEntry
		for i := range validated {
			if !satisfied[validated[i].ID] && seg.Matches(validated[i]) {
				exact = &validated[i]
				break
			}
		}
		if exact != nil {
			satisfied[exact.ID] = true
			report.Unchanged = append(report.Unchanged, exact.ID)
			continue
		}

		var locked []interval.Interval
		for _, v := range validated {
			if v.Interval().Overlaps(seg.Interval()) {
				locked = append(locked, v.Interval())
				overlapped[v.ID] = true
				report.Conflicts = append(report.Conflicts, conflictOf(v, seg, reasonOverlapsValidated))
			}
		}
		if len(locked) == 0 {
			targets = append(targets, seg)
			continue
		}
		pieces, err := interval.Subtract([]interval.Interval{seg.Interval()}, locked)
		if err != nil {
			return nil, err
		}
		for _, f := range pieces {
			piece := seg
			piece.Start, piece.End = f.Start, f.End
			targets = append(targets, piece)
		}
	}

	for _, v := range validated {
		if satisfied[v.ID] || overlapped[v.ID] {
			continue
		}
		report.Conflicts = append(report.Conflicts, workentry.Conflict{
			EntryID: v.ID, Start: v.Start, End: v.End, Kind: v.Kind, Reason: reasonValidatedRetained,
		})
	}

	sortSegments(targets)
	return targets, nil
}

// deduplicate deactivates active entries that describe the same time as a
// better-linked entry. It looks at the employee's ledger around the
// reconciled range so duplicates left by concurrent passes are caught too.
func (r *reconcilerImpl) deduplicate(ctx context.Context, in workentry.ReconcileInput, segments []workentry.Segment, existing []workentry.WorkEntry, report *workentry.Report) error {
	start, end, ok := bounds(segments, existing)
	if !ok {
		return nil
	}

	active, err := r.workEntryRepo.FindActiveBetween(ctx, in.EmployeeID, start, end)
	if err != nil {
		return fmt.Errorf("failed to find work entries for deduplication: %w", err)
	}

	groups := make(map[string][]workentry.WorkEntry)
	var keys []string
	for _, e := range active {
		k := e.DedupKey()
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], e)
	}

	for _, k := range keys {
		group := groups[k]
		if len(group) < 2 {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool {
			return keeperRank(group[i], in.AttendanceID) < keeperRank(group[j], in.AttendanceID) ||
				(keeperRank(group[i], in.AttendanceID) == keeperRank(group[j], in.AttendanceID) && olderThan(group[i], group[j]))
		})
		for _, dup := range group[1:] {
			if dup.IsValidated() {
				continue
			}
			if err := r.workEntryRepo.Deactivate(ctx, dup.ID); err != nil {
				if errors.Is(err, workentry.ErrEntryValidated) {
					continue
				}
				return fmt.Errorf("failed to deactivate duplicate work entry: %w", err)
			}
			report.Deduplicated = append(report.Deduplicated, dup.ID)
			slog.Warn("Duplicate work entry deactivated",
				"entry_id", dup.ID,
				"kept_entry_id", group[0].ID,
				"employee_id", in.EmployeeID)
		}
	}
	return nil
}

// keeperRank orders duplicate candidates, lowest first: validated, linked to
// the reconciled attendance, linked to anything, orphan.
func keeperRank(e workentry.WorkEntry, attendanceID string) int {
	switch {
	case e.IsValidated():
		return 0
	case e.SourceAttendanceID != nil && *e.SourceAttendanceID == attendanceID:
		return 1
	case e.SourceAttendanceID != nil || e.SourceLeaveID != nil:
		return 2
	default:
		return 3
	}
}

func olderThan(a, b workentry.WorkEntry) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func bounds(segments []workentry.Segment, existing []workentry.WorkEntry) (time.Time, time.Time, bool) {
	var start, end time.Time
	found := false
	widen := func(s, e time.Time) {
		if !found || s.Before(start) {
			start = s
		}
		if !found || e.After(end) {
			end = e
		}
		found = true
	}
	for _, s := range segments {
		widen(s.Start, s.End)
	}
	for _, e := range existing {
		widen(e.Start, e.End)
	}
	return start, end, found
}

func newEntry(in workentry.ReconcileInput, seg workentry.Segment) workentry.WorkEntry {
	attendanceID := in.AttendanceID
	e := workentry.WorkEntry{
		EmployeeID:         in.EmployeeID,
		SourceAttendanceID: &attendanceID,
		State:              workentry.StateMutable,
	}
	apply(&e, in, seg)
	return e
}

func apply(e *workentry.WorkEntry, in workentry.ReconcileInput, seg workentry.Segment) {
	e.ContractID = in.ContractID
	e.Start = seg.Start.UTC()
	e.End = seg.End.UTC()
	e.Kind = seg.Kind
	e.Portion = seg.Portion
	e.SourceLeaveID = seg.SourceLeaveID
	e.Active = true
}

func upToDate(e workentry.WorkEntry, in workentry.ReconcileInput, seg workentry.Segment) bool {
	return e.Active &&
		seg.Matches(e) &&
		e.Portion == seg.Portion &&
		e.ContractID == in.ContractID &&
		sameID(e.SourceLeaveID, seg.SourceLeaveID)
}

func sameID(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func conflictOf(e workentry.WorkEntry, seg workentry.Segment, reason string) workentry.Conflict {
	return workentry.Conflict{
		EntryID: e.ID,
		Start:   seg.Start,
		End:     seg.End,
		Kind:    seg.Kind,
		Reason:  reason,
	}
}

func sortSegments(segments []workentry.Segment) {
	sort.SliceStable(segments, func(i, j int) bool {
		a, b := segments[i], segments[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if !a.End.Equal(b.End) {
			return a.End.Before(b.End)
		}
		return a.Kind < b.Kind
	})
}
