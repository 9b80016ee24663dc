package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/auth"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/compliance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/employee"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/leave"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/schedule"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/workentry"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/recompute"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	// Auth domain errors
	case errors.Is(err, auth.ErrInvalidToken):
		Unauthorized(w, "Invalid or expired token")
	case errors.Is(err, auth.ErrTokenRevoked):
		Unauthorized(w, "Token revoked")
	case errors.Is(err, auth.ErrManagerAccessRequired):
		Forbidden(w, "Manager or owner access required")
	case errors.Is(err, auth.ErrCompanyScope):
		Forbidden(w, "Resource belongs to another company")

	// Not found
	case errors.Is(err, attendance.ErrAttendanceNotFound):
		NotFound(w, "Attendance not found")
	case errors.Is(err, employee.ErrEmployeeNotFound):
		NotFound(w, "Employee not found")
	case errors.Is(err, leave.ErrPenaltyNotFound):
		NotFound(w, "Penalty not found")
	case errors.Is(err, workentry.ErrWorkEntryNotFound):
		NotFound(w, "Work entry not found")
	case errors.Is(err, schedule.ErrWorkScheduleNotFound):
		NotFound(w, "Work schedule not found")

	// Engine errors
	case errors.Is(err, compliance.ErrStructurallyInvalidSegment),
		errors.Is(err, attendance.ErrInvalidClockOut),
		errors.Is(err, attendance.ErrNoClockTimes):
		InvalidAttendance(w, err.Error())
	case errors.Is(err, compliance.ErrInvalidDateRange):
		BadRequest(w, err.Error(), nil)
	case errors.Is(err, recompute.ErrQueueFull):
		ServiceUnavailable(w, "QUEUE_FULL", "Recompute queue is full, retry later")
	case errors.Is(err, recompute.ErrQueueStopped):
		ServiceUnavailable(w, "SHUTTING_DOWN", "Server is shutting down, retry later")
	case errors.Is(err, compliance.ErrReentrancyDepthExceeded):
		slog.Error("Recompute nesting limit reached", "error", err)
		InternalServerError(w, "Recompute nesting limit reached")

	// Default
	default:
		slog.Error("Unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
