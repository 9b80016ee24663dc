package compliance

import (
	"errors"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/workentry"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/interval"
)

var (
	// ErrStructurallyInvalidSegment marks a segment or interval with
	// end <= start. It aborts the pass of the attendance concerned.
	ErrStructurallyInvalidSegment = interval.ErrInvalidInterval

	// ErrLockedEntryConflict is recovered inside reconciliation and only
	// surfaces as a Conflict in the report.
	ErrLockedEntryConflict = workentry.ErrEntryValidated

	ErrReentrancyDepthExceeded = errors.New("reentrancy depth exceeded")
	ErrInvalidConfig           = errors.New("invalid compliance config")
	ErrInvalidDateRange        = errors.New("end date must not be before start date")
)

// IsPureFailure reports whether err comes from computation over the
// attendance itself rather than from a collaborator. Pure failures abort
// one attendance and let a batch continue.
func IsPureFailure(err error) bool {
	return errors.Is(err, ErrStructurallyInvalidSegment) ||
		errors.Is(err, attendance.ErrInvalidClockOut) ||
		errors.Is(err, attendance.ErrNoClockTimes)
}
