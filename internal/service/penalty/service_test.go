package penalty

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/compliance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/leave"
	"github.com/cmlabs-hris/attendance-engine/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

type recordingDispatcher struct {
	requests []compliance.RecomputeRequest
	err      error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, req compliance.RecomputeRequest) error {
	d.requests = append(d.requests, req)
	return d.err
}

func setup() (*memory.Store, leave.PenaltyManager, *recordingDispatcher) {
	store := memory.NewStore()
	dispatcher := &recordingDispatcher{}
	return store, NewPenaltyManager(memory.NewPenaltyRepository(store), dispatcher), dispatcher
}

func at(hour int) time.Time {
	return day.Add(time.Duration(hour) * time.Hour)
}

func halfDay(portion leave.Portion, infraction leave.InfractionType, trigger string) leave.EnsurePenaltyRequest {
	start, end := at(9), at(13)
	if portion == leave.PortionPM {
		start, end = at(14), at(17)
	}
	return leave.EnsurePenaltyRequest{
		EmployeeID:          "emp-1",
		CompanyID:           "co-1",
		Date:                day,
		Portion:             portion,
		InfractionType:      infraction,
		Description:         "late",
		TriggerAttendanceID: trigger,
		StartAt:             start,
		EndAt:               end,
	}
}

func fullDay(trigger string) leave.EnsurePenaltyRequest {
	req := halfDay(leave.PortionFull, leave.InfractionEarlyOut, trigger)
	req.StartAt, req.EndAt = at(9), at(17)
	return req
}

func active(store *memory.Store) []leave.PenaltyLeave {
	var out []leave.PenaltyLeave
	for _, p := range store.Penalties("emp-1") {
		if p.IsActive() {
			out = append(out, p)
		}
	}
	return out
}

func TestEnsureHalfDayPenalty_CreatesOnce(t *testing.T) {
	store, manager, dispatcher := setup()
	ctx := context.Background()

	changes, err := manager.EnsureHalfDayPenalty(ctx, halfDay(leave.PortionAM, leave.InfractionLateIn, "att-1"))
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, leave.ChangeCreated, changes[0].Op)
	assert.Equal(t, changes[0].PenaltyID, changes[0].Penalty.ID)
	assert.Equal(t, "co-1", changes[0].Penalty.CompanyID)
	assert.True(t, changes[0].Penalty.IsActive())
	require.Len(t, dispatcher.requests, 1)
	assert.Equal(t, "att-1", dispatcher.requests[0].AttendanceID)

	changes, err = manager.EnsureHalfDayPenalty(ctx, halfDay(leave.PortionAM, leave.InfractionLateIn, "att-1"))
	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.Len(t, dispatcher.requests, 1)

	penalties := active(store)
	require.Len(t, penalties, 1)
	assert.Equal(t, leave.PortionAM, penalties[0].Portion)
	assert.Equal(t, at(9), penalties[0].StartAt)
}

func TestEnsureHalfDayPenalty_UpdatesChangedInfraction(t *testing.T) {
	store, manager, _ := setup()
	ctx := context.Background()

	_, err := manager.EnsureHalfDayPenalty(ctx, halfDay(leave.PortionPM, leave.InfractionMissingShift, "att-1"))
	require.NoError(t, err)

	req := halfDay(leave.PortionPM, leave.InfractionEarlyOut, "att-1")
	req.Description = "left early"
	changes, err := manager.EnsureHalfDayPenalty(ctx, req)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, leave.ChangeUpdated, changes[0].Op)
	assert.Equal(t, "left early", changes[0].Penalty.Description)

	penalties := active(store)
	require.Len(t, penalties, 1)
	assert.Equal(t, leave.InfractionEarlyOut, penalties[0].InfractionType)
	assert.Equal(t, "left early", penalties[0].Description)
}

func TestEnsureHalfDayPenalty_NoOpUnderFullDay(t *testing.T) {
	store, manager, _ := setup()
	ctx := context.Background()

	_, err := manager.EnsureFullDayPenalty(ctx, fullDay("att-1"))
	require.NoError(t, err)

	changes, err := manager.EnsureHalfDayPenalty(ctx, halfDay(leave.PortionAM, leave.InfractionLateIn, "att-1"))
	require.NoError(t, err)
	assert.Empty(t, changes)

	penalties := active(store)
	require.Len(t, penalties, 1)
	assert.Equal(t, leave.PortionFull, penalties[0].Portion)
}

func TestEnsureHalfDayPenalty_KeepsPortionOwnedByOtherAttendance(t *testing.T) {
	store, manager, _ := setup()
	ctx := context.Background()

	_, err := manager.EnsureHalfDayPenalty(ctx, halfDay(leave.PortionPM, leave.InfractionLateIn, "att-2"))
	require.NoError(t, err)

	changes, err := manager.EnsureHalfDayPenalty(ctx, halfDay(leave.PortionPM, leave.InfractionMissingShift, "att-1"))
	require.NoError(t, err)
	assert.Empty(t, changes)

	penalties := active(store)
	require.Len(t, penalties, 1)
	assert.Equal(t, "att-2", penalties[0].TriggerAttendanceID)
}

func TestEnsureHalfDayPenalty_RejectsFullPortion(t *testing.T) {
	_, manager, _ := setup()

	_, err := manager.EnsureHalfDayPenalty(context.Background(), halfDay(leave.PortionFull, leave.InfractionLateIn, "att-1"))
	assert.ErrorIs(t, err, leave.ErrInvalidPortion)
}

func TestEnsureFullDayPenalty_ConvertsOldestAndRetractsRest(t *testing.T) {
	store, manager, dispatcher := setup()
	ctx := context.Background()

	_, err := manager.EnsureHalfDayPenalty(ctx, halfDay(leave.PortionAM, leave.InfractionLateIn, "att-1"))
	require.NoError(t, err)
	_, err = manager.EnsureHalfDayPenalty(ctx, halfDay(leave.PortionPM, leave.InfractionMissingShift, "att-2"))
	require.NoError(t, err)
	oldest := active(store)[0]
	dispatcher.requests = nil

	changes, err := manager.EnsureFullDayPenalty(ctx, fullDay("att-1"))
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, leave.ChangeUpdated, changes[0].Op)
	assert.Equal(t, leave.ChangeRetracted, changes[1].Op)
	assert.Equal(t, leave.PortionFull, changes[0].Penalty.Portion)
	assert.False(t, changes[1].Penalty.IsActive())

	penalties := active(store)
	require.Len(t, penalties, 1)
	assert.Equal(t, oldest.ID, penalties[0].ID)
	assert.Equal(t, leave.PortionFull, penalties[0].Portion)
	assert.Equal(t, at(9), penalties[0].StartAt)
	assert.Equal(t, at(17), penalties[0].EndAt)

	var targets []string
	for _, r := range dispatcher.requests {
		targets = append(targets, r.AttendanceID)
	}
	assert.ElementsMatch(t, []string{"att-1", "att-2"}, targets)

	changes, err = manager.EnsureFullDayPenalty(ctx, fullDay("att-1"))
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestClearPenalties_TriggerScoped(t *testing.T) {
	store, manager, _ := setup()
	ctx := context.Background()

	_, err := manager.EnsureHalfDayPenalty(ctx, halfDay(leave.PortionAM, leave.InfractionLateIn, "att-1"))
	require.NoError(t, err)
	_, err = manager.EnsureHalfDayPenalty(ctx, halfDay(leave.PortionPM, leave.InfractionLateIn, "att-2"))
	require.NoError(t, err)

	changes, err := manager.ClearPenalties(ctx, leave.PenaltyFilter{
		EmployeeID:          "emp-1",
		Date:                day,
		TriggerAttendanceID: "att-1",
	})
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, leave.ChangeRetracted, changes[0].Op)
	assert.Equal(t, leave.PortionAM, changes[0].Portion)

	penalties := active(store)
	require.Len(t, penalties, 1)
	assert.Equal(t, "att-2", penalties[0].TriggerAttendanceID)

	retracted := store.Penalties("emp-1")
	var found bool
	for _, p := range retracted {
		if p.Status == leave.PenaltyStatusRetracted {
			found = true
			assert.NotNil(t, p.RetractedAt)
		}
	}
	assert.True(t, found, "retracted penalties are kept for audit")
}

func TestClearPenalties_FiltersByPortionAndType(t *testing.T) {
	store, manager, _ := setup()
	ctx := context.Background()

	_, err := manager.EnsureHalfDayPenalty(ctx, halfDay(leave.PortionAM, leave.InfractionLateIn, "att-1"))
	require.NoError(t, err)
	_, err = manager.EnsureHalfDayPenalty(ctx, halfDay(leave.PortionPM, leave.InfractionMissingShift, "att-1"))
	require.NoError(t, err)

	changes, err := manager.ClearPenalties(ctx, leave.PenaltyFilter{
		EmployeeID:          "emp-1",
		Date:                day,
		Portions:            []leave.Portion{leave.PortionPM},
		Types:               []leave.InfractionType{leave.InfractionLateIn},
		TriggerAttendanceID: "att-1",
	})
	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.Len(t, active(store), 2)
}

func TestApply_RunsActionsInOrder(t *testing.T) {
	store, manager, _ := setup()
	ctx := context.Background()

	changes, err := manager.Apply(ctx, []leave.PenaltyAction{
		{Op: leave.ActionClear, Clear: leave.PenaltyFilter{EmployeeID: "emp-1", Date: day, TriggerAttendanceID: "att-1"}},
		{Op: leave.ActionEnsureHalfDay, Ensure: halfDay(leave.PortionAM, leave.InfractionLateIn, "att-1")},
		{Op: leave.ActionEnsureHalfDay, Ensure: halfDay(leave.PortionPM, leave.InfractionEarlyOut, "att-1")},
	})
	require.NoError(t, err)
	assert.Len(t, changes, 2)
	assert.Len(t, active(store), 2)

	_, err = manager.Apply(ctx, []leave.PenaltyAction{{Op: "bogus"}})
	assert.Error(t, err)
}

func TestDispatchFailurePropagates(t *testing.T) {
	_, manager, dispatcher := setup()
	dispatcher.err = compliance.ErrReentrancyDepthExceeded

	_, err := manager.EnsureHalfDayPenalty(context.Background(), halfDay(leave.PortionAM, leave.InfractionLateIn, "att-1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, compliance.ErrReentrancyDepthExceeded))
}
