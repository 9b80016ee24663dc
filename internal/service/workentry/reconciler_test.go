package workentry

import (
	"context"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/compliance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/workentry"
	"github.com/cmlabs-hris/attendance-engine/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func strPtr(s string) *string { return &s }

func regular(start, end time.Time, portion string) workentry.Segment {
	return workentry.Segment{Start: start, End: end, Kind: workentry.KindRegular, Portion: portion}
}

func reconcileInput(segments ...workentry.Segment) workentry.ReconcileInput {
	return workentry.ReconcileInput{
		EmployeeID:   "emp-1",
		ContractID:   "ctr-1",
		AttendanceID: "att-1",
		Segments:     segments,
	}
}

func existingEntry(start, end time.Time, state workentry.State) workentry.WorkEntry {
	return workentry.WorkEntry{
		EmployeeID:         "emp-1",
		ContractID:         "ctr-1",
		Start:              start,
		End:                end,
		Kind:               workentry.KindRegular,
		Portion:            "am",
		SourceAttendanceID: strPtr("att-1"),
		Active:             true,
		State:              state,
	}
}

func activeEntries(store *memory.Store) []workentry.WorkEntry {
	var out []workentry.WorkEntry
	for _, e := range store.WorkEntries("emp-1") {
		if e.Active {
			out = append(out, e)
		}
	}
	return out
}

func TestReconcile_CreatesThenConverges(t *testing.T) {
	store := memory.NewStore()
	reconciler := NewReconciler(memory.NewWorkEntryRepository(store))
	ctx := context.Background()
	in := reconcileInput(regular(at(14, 0), at(17, 0), "pm"), regular(at(9, 5), at(13, 0), "am"))

	report, err := reconciler.Reconcile(ctx, in)
	require.NoError(t, err)
	assert.Len(t, report.Created, 2)
	assert.False(t, report.Partial)

	entries := activeEntries(store)
	require.Len(t, entries, 2)
	assert.Equal(t, at(9, 5), entries[0].Start)
	assert.Equal(t, "am", entries[0].Portion)
	assert.Equal(t, "ctr-1", entries[0].ContractID)
	require.NotNil(t, entries[0].SourceAttendanceID)
	assert.Equal(t, "att-1", *entries[0].SourceAttendanceID)

	report, err = reconciler.Reconcile(ctx, in)
	require.NoError(t, err)
	assert.False(t, report.Changed())
	assert.Len(t, report.Unchanged, 2)
	assert.Equal(t, entries, activeEntries(store))
}

func TestReconcile_ReusesMutableEntriesInOrder(t *testing.T) {
	store := memory.NewStore()
	first := store.PutWorkEntry(existingEntry(at(9, 0), at(12, 0), workentry.StateMutable))
	second := store.PutWorkEntry(existingEntry(at(14, 0), at(16, 0), workentry.StateMutable))
	reconciler := NewReconciler(memory.NewWorkEntryRepository(store))

	report, err := reconciler.Reconcile(context.Background(), reconcileInput(
		regular(at(9, 5), at(13, 0), "am"),
		regular(at(14, 0), at(17, 0), "pm"),
	))
	require.NoError(t, err)
	assert.Empty(t, report.Created)
	assert.Equal(t, []string{first.ID, second.ID}, report.Updated)

	entries := activeEntries(store)
	require.Len(t, entries, 2)
	assert.Equal(t, first.ID, entries[0].ID)
	assert.Equal(t, at(13, 0), entries[0].End)
	assert.Equal(t, second.ID, entries[1].ID)
	assert.Equal(t, "pm", entries[1].Portion)
}

func TestReconcile_DeactivatesUnjustifiedEntries(t *testing.T) {
	store := memory.NewStore()
	keep := store.PutWorkEntry(existingEntry(at(9, 0), at(13, 0), workentry.StateMutable))
	drop := store.PutWorkEntry(existingEntry(at(14, 0), at(17, 0), workentry.StateMutable))
	reconciler := NewReconciler(memory.NewWorkEntryRepository(store))

	report, err := reconciler.Reconcile(context.Background(), reconcileInput(regular(at(9, 0), at(13, 0), "am")))
	require.NoError(t, err)
	assert.Equal(t, []string{keep.ID}, report.Unchanged)
	assert.Equal(t, []string{drop.ID}, report.Deactivated)

	all := store.WorkEntries("emp-1")
	require.Len(t, all, 2, "entries are never deleted")
	assert.False(t, all[1].Active)
}

func TestReconcile_ReactivatesMatchingInactiveEntry(t *testing.T) {
	store := memory.NewStore()
	old := existingEntry(at(9, 0), at(13, 0), workentry.StateMutable)
	old.Active = false
	old = store.PutWorkEntry(old)
	reconciler := NewReconciler(memory.NewWorkEntryRepository(store))

	report, err := reconciler.Reconcile(context.Background(), reconcileInput(regular(at(9, 0), at(13, 0), "am")))
	require.NoError(t, err)
	assert.Equal(t, []string{old.ID}, report.Updated)
	assert.Empty(t, report.Created)
	assert.Len(t, activeEntries(store), 1)
}

func TestReconcile_ValidatedEntryIsNeverTouched(t *testing.T) {
	store := memory.NewStore()
	locked := store.PutWorkEntry(existingEntry(at(9, 0), at(13, 0), workentry.StateValidated))
	reconciler := NewReconciler(memory.NewWorkEntryRepository(store))

	report, err := reconciler.Reconcile(context.Background(), reconcileInput(regular(at(9, 0), at(13, 0), "am")))
	require.NoError(t, err)
	assert.Empty(t, report.Created, "no duplicate for a locked interval")
	assert.Equal(t, []string{locked.ID}, report.Unchanged)
	assert.False(t, report.Partial)

	got := store.WorkEntries("emp-1")
	require.Len(t, got, 1)
	assert.Equal(t, locked, got[0])
}

func TestReconcile_RoutesAroundOverlappingValidatedEntry(t *testing.T) {
	store := memory.NewStore()
	locked := store.PutWorkEntry(existingEntry(at(9, 0), at(12, 0), workentry.StateValidated))
	reconciler := NewReconciler(memory.NewWorkEntryRepository(store))

	report, err := reconciler.Reconcile(context.Background(), reconcileInput(regular(at(8, 30), at(13, 0), "am")))
	require.NoError(t, err)
	assert.True(t, report.Partial)
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, locked.ID, report.Conflicts[0].EntryID)
	assert.Len(t, report.Created, 2)

	entries := activeEntries(store)
	require.Len(t, entries, 3)
	assert.Equal(t, at(8, 30), entries[0].Start)
	assert.Equal(t, at(9, 0), entries[0].End)
	assert.Equal(t, locked, entries[1])
	assert.Equal(t, at(12, 0), entries[2].Start)
	assert.Equal(t, at(13, 0), entries[2].End)
}

func TestReconcile_EmptyTargetKeepsValidatedAndReportsPartial(t *testing.T) {
	store := memory.NewStore()
	locked := store.PutWorkEntry(existingEntry(at(9, 0), at(13, 0), workentry.StateValidated))
	loose := store.PutWorkEntry(existingEntry(at(14, 0), at(17, 0), workentry.StateMutable))
	reconciler := NewReconciler(memory.NewWorkEntryRepository(store))

	report, err := reconciler.Reconcile(context.Background(), reconcileInput())
	require.NoError(t, err)
	assert.True(t, report.Partial)
	assert.Equal(t, []string{loose.ID}, report.Deactivated)
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, locked.ID, report.Conflicts[0].EntryID)

	entries := activeEntries(store)
	require.Len(t, entries, 1)
	assert.Equal(t, locked.ID, entries[0].ID)
}

func TestReconcile_RejectsStructurallyInvalidSegment(t *testing.T) {
	store := memory.NewStore()
	reconciler := NewReconciler(memory.NewWorkEntryRepository(store))

	_, err := reconciler.Reconcile(context.Background(), reconcileInput(
		regular(at(9, 0), at(13, 0), "am"),
		regular(at(15, 0), at(14, 0), "pm"),
	))
	assert.ErrorIs(t, err, compliance.ErrStructurallyInvalidSegment)
	assert.Empty(t, store.WorkEntries("emp-1"), "nothing is written before validation passes")
}

func TestReconcile_DeduplicatesOrphans(t *testing.T) {
	store := memory.NewStore()
	orphan := existingEntry(at(9, 0), at(13, 0), workentry.StateMutable)
	orphan.SourceAttendanceID = nil
	orphan = store.PutWorkEntry(orphan)
	reconciler := NewReconciler(memory.NewWorkEntryRepository(store))

	report, err := reconciler.Reconcile(context.Background(), reconcileInput(regular(at(9, 0), at(13, 0), "am")))
	require.NoError(t, err)
	require.Len(t, report.Created, 1)
	assert.Equal(t, []string{orphan.ID}, report.Deduplicated)

	entries := activeEntries(store)
	require.Len(t, entries, 1)
	assert.Equal(t, report.Created[0], entries[0].ID)
}

func TestReconcile_LinksDeductionsToPenalty(t *testing.T) {
	store := memory.NewStore()
	reconciler := NewReconciler(memory.NewWorkEntryRepository(store))

	_, err := reconciler.Reconcile(context.Background(), reconcileInput(workentry.Segment{
		Start:         at(14, 0),
		End:           at(17, 0),
		Kind:          workentry.KindPenaltyDeduction,
		Portion:       "pm",
		SourceLeaveID: strPtr("pen-1"),
	}))
	require.NoError(t, err)

	entries := activeEntries(store)
	require.Len(t, entries, 1)
	assert.Equal(t, workentry.KindPenaltyDeduction, entries[0].Kind)
	require.NotNil(t, entries[0].SourceLeaveID)
	assert.Equal(t, "pen-1", *entries[0].SourceLeaveID)
}
